// Package validation provides struct and field validation built on
// go-playground/validator.
//
// Struct validation uses `validate` tags and reports field names from
// their json tags:
//
//	type LoginRequest struct {
//	    Email    string `json:"email" validate:"required,email"`
//	    Password string `json:"password" validate:"required"`
//	}
//
//	if err := validation.Validate(req); err != nil { ... }
package validation
