// Package identity defines the wire types shared by the authkit auth
// flows: the user profile owned by the identity backend and the success
// envelope its auth endpoints respond with.
package identity
