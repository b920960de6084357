// Package httpclient provides the credentialed HTTP transport used by
// every authkit flow.
//
// The client owns an in-memory cookie jar: the ambient session
// credential is set by the identity backend on login or OAuth success
// and attached to every subsequent request automatically. Non-2xx
// responses are normalized into typed *Error values with a
// human-readable message extracted from the backend's JSON error body.
//
// # Basic Usage
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.praxislearn.dev",
//	    Timeout: 30 * time.Second,
//	})
//
//	profile, err := httpclient.Get[identity.UserProfile](client, ctx, "/auth/user/profile")
package httpclient
