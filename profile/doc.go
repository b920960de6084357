// Package profile mutates the backend-owned user profile, including
// the verified email-change path.
//
// Changing the email address requires proving control of the new
// address first: RequestEmailChangeCode asks the backend to send a
// one-time code to the candidate address, and Update must carry that
// code alongside the new email. An email edit without a requested code
// fails locally before any network request is issued.
//
// Only fields that actually differ from the cached profile are sent;
// on success the backend's response replaces the cached profile
// wholesale.
package profile
