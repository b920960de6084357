// Package identitytest provides an in-process fake identity backend
// implementing the REST surface the authkit flows consume: credential
// login with session cookies, profile probing, logout, one-time email
// verification codes, profile mutation, and single-use OAuth
// authorization-code exchange.
//
// It exists for package tests and local development; nothing in it is
// suitable for production use.
//
//	backend := identitytest.New()
//	defer backend.Close()
//	backend.AddUser("Alice", "alice@example.com", "correct-horse")
package identitytest
