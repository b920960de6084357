// Package session drives the client-observable session lifecycle:
// credential login, logout, and the authentication probe.
//
// The session itself is server-held. The client never stores a token;
// it discovers whether it is authenticated by probing the profile
// endpoint, so the backend's view of the session can never diverge from
// the client's.
package session
