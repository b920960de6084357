package identity

// UserProfile is the backend-owned user record. Clients hold only a
// transient cached copy; the backend response is always the source of
// truth for the saved shape.
type UserProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"image_url,omitempty"`
}

// Envelope is the response shape of the identity backend's auth
// endpoints. Success is a pointer because some endpoints omit the flag
// entirely and signal success via the HTTP status alone.
type Envelope struct {
	Success *bool        `json:"success,omitempty"`
	Message string       `json:"message,omitempty"`
	User    *UserProfile `json:"user,omitempty"`
}

// Succeeded reports whether the envelope indicates success. An absent
// flag counts as success: the transport has already rejected non-2xx
// responses by the time an envelope is decoded.
func (e Envelope) Succeeded() bool {
	return e.Success == nil || *e.Success
}

// Failed reports whether the backend explicitly flagged a failure.
func (e Envelope) Failed() bool {
	return e.Success != nil && !*e.Success
}
