package profile

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/praxislearn/authkit/httpclient"
	"github.com/praxislearn/authkit/identity"
	"github.com/praxislearn/authkit/logger"
	"github.com/praxislearn/authkit/validation"
)

const (
	profilePath    = "/auth/user/profile"
	requestOTPPath = "/auth/user/request-otp/"
)

// Pending identifies where an email change is in its lifecycle.
type Pending int

const (
	// PendingNone means no email change is in flight.
	PendingNone Pending = iota
	// PendingCodeRequested means a verification code was dispatched to
	// the candidate address. A rejected mutation returns here, not to
	// PendingNone: the candidate intent is still valid and the user
	// may request a fresh code.
	PendingCodeRequested
	// PendingSubmitted means a mutation carrying the code is in flight.
	PendingSubmitted
)

// String returns the pending state name.
func (p Pending) String() string {
	switch p {
	case PendingNone:
		return "none"
	case PendingCodeRequested:
		return "code_requested"
	case PendingSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// PreconditionError is a local failure raised before any network
// request. Its message is a corrective instruction for the user.
type PreconditionError struct {
	Message string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return e.Message
}

// pendingEmailChange is ephemeral client-local state. It exists only
// between "request code" and "submit update" and is never persisted.
type pendingEmailChange struct {
	candidateEmail string
	otpRequested   bool
}

// Service mutates the user profile against the identity backend.
type Service struct {
	http  *httpclient.Client
	blobs BlobStore
	log   *logger.Logger

	mu           sync.Mutex
	current      *identity.UserProfile
	pending      *pendingEmailChange
	pendingState Pending
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		s.log = log.WithComponent("profile")
	}
}

// WithBlobStore sets the avatar upload capability.
func WithBlobStore(blobs BlobStore) Option {
	return func(s *Service) {
		s.blobs = blobs
	}
}

// NewService creates a profile service on top of the shared transport.
func NewService(http *httpclient.Client, opts ...Option) *Service {
	s := &Service{
		http: http,
		log:  logger.NewDefault("authkit").WithComponent("profile"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetProfile primes the cached profile, typically from a session probe.
func (s *Service) SetProfile(p identity.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &p
}

// Load fetches the current profile from the backend and caches it.
func (s *Service) Load(ctx context.Context) (*identity.UserProfile, error) {
	p, err := httpclient.Get[identity.UserProfile](s.http, ctx, profilePath)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &p
	return &p, nil
}

// Profile returns a copy of the cached profile, or nil when none is loaded.
func (s *Service) Profile() *identity.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}

// PendingState returns the email-change lifecycle state.
func (s *Service) PendingState() Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingState
}

// RequestEmailChangeCode asks the backend to dispatch a one-time code
// to the candidate address (the new one, not the current one). It must
// be called before an Update that changes the email.
func (s *Service) RequestEmailChangeCode(ctx context.Context, candidateEmail string) error {
	if err := validation.Email(candidateEmail); err != nil {
		return &PreconditionError{Message: fmt.Sprintf("Enter a valid email address: %v", err)}
	}

	env, err := httpclient.Post[identity.Envelope](s.http, ctx,
		requestOTPPath+url.PathEscape(candidateEmail), nil)
	if err != nil {
		return err
	}
	if env.Failed() {
		msg := env.Message
		if msg == "" {
			msg = "Could not send a verification code"
		}
		return fmt.Errorf("%s", msg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &pendingEmailChange{candidateEmail: candidateEmail, otpRequested: true}
	s.pendingState = PendingCodeRequested

	s.log.Info("verification code requested", logger.Fields(
		logger.FieldOperation, "request_email_change_code",
		logger.FieldEmail, candidateEmail,
		logger.FieldState, s.pendingState.String(),
	))
	return nil
}

// CancelEmailChange discards any pending email-change state, e.g. on
// form teardown.
func (s *Service) CancelEmailChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.pendingState = PendingNone
}

// Edits are the requested profile changes. Nil pointers mean "leave
// unchanged"; only fields that differ from the cached profile end up
// in the outgoing payload.
type Edits struct {
	Name *string
	// ImageURL is an already-uploaded avatar URL.
	ImageURL *string
	// Image is a raw avatar that must be uploaded first. Takes
	// precedence over ImageURL when both are set.
	Image *Blob
	Email *string
	// OTP is the verification code for an email change.
	OTP string
}

// updateRequest is the sparse mutation payload. Unchanged fields are
// omitted entirely so the backend never sees incidental overwrites.
type updateRequest struct {
	Name     *string `json:"name,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
	Email    *string `json:"email,omitempty"`
	OTP      *string `json:"otp,omitempty"`
}

// Update applies the edits to the backend profile.
//
// Requests are issued strictly in order: avatar upload first (when a
// raw image is supplied), then a single mutation request. An email
// change without a code requested for that exact candidate address
// fails locally before any network I/O. On success the backend's
// response replaces the cached profile wholesale and pending
// email-change state is cleared; on failure the cache is untouched.
func (s *Service) Update(ctx context.Context, edits Edits) (*identity.UserProfile, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, &PreconditionError{Message: "No profile loaded; call Load or SetProfile first"}
	}
	current := *s.current
	pending := s.pending
	s.mu.Unlock()

	// Upload must complete before the mutation; a failed upload aborts
	// the whole update so the profile never references a missing avatar.
	imageURL := edits.ImageURL
	if edits.Image != nil {
		if s.blobs == nil {
			return nil, &PreconditionError{Message: "No blob store configured for avatar uploads"}
		}
		uploaded, err := s.blobs.Upload(ctx, edits.Image.Name, edits.Image.Content)
		if err != nil {
			return nil, fmt.Errorf("upload avatar: %w", err)
		}
		imageURL = &uploaded
	}

	req := updateRequest{}
	changed := false
	emailChanging := false

	if edits.Name != nil && *edits.Name != current.Name {
		req.Name = edits.Name
		changed = true
	}
	if imageURL != nil && *imageURL != current.ImageURL {
		req.ImageURL = imageURL
		changed = true
	}
	if edits.Email != nil && *edits.Email != current.Email {
		if pending == nil || !pending.otpRequested || pending.candidateEmail != *edits.Email {
			return nil, &PreconditionError{
				Message: "Changing the email requires a verification code; call RequestEmailChangeCode for the new address first",
			}
		}
		if edits.OTP == "" {
			return nil, &PreconditionError{
				Message: "Enter the verification code sent to the new email address",
			}
		}
		req.Email = edits.Email
		otp := edits.OTP
		req.OTP = &otp
		changed = true
		emailChanging = true
	}

	if !changed {
		// True no-op: nothing to send.
		return &current, nil
	}

	if emailChanging {
		s.mu.Lock()
		s.pendingState = PendingSubmitted
		s.mu.Unlock()
	}

	saved, err := httpclient.Put[identity.UserProfile](s.http, ctx, profilePath, req)
	if err != nil {
		if emailChanging {
			// Rejected: back to code_requested, not none. The
			// candidate intent survives; the code does not get
			// reused across attempts.
			s.mu.Lock()
			s.pendingState = PendingCodeRequested
			s.mu.Unlock()
		}
		s.log.Warn("profile update rejected", logger.Fields(
			logger.FieldOperation, "update",
			logger.FieldError, err.Error(),
		))
		return nil, err
	}

	s.mu.Lock()
	s.current = &saved
	s.pending = nil
	s.pendingState = PendingNone
	s.mu.Unlock()

	s.log.Info("profile updated", logger.Fields(
		logger.FieldOperation, "update",
		logger.FieldUserID, saved.ID,
	))
	return &saved, nil
}
