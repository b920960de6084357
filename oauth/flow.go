package oauth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praxislearn/authkit/httpclient"
	"github.com/praxislearn/authkit/identity"
	"github.com/praxislearn/authkit/logger"
)

// State identifies where a Flow is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateInitiating
	StateRedirected
	StateCallbackPending
	StateAuthenticated
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitiating:
		return "initiating"
	case StateRedirected:
		return "redirected"
	case StateCallbackPending:
		return "callback_pending"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	// MsgCancelled is reported when the provider returned an error
	// parameter (the user declined or aborted).
	MsgCancelled = "Authentication was cancelled"
	// MsgNoCode is reported when the callback carried neither a code
	// nor an error.
	MsgNoCode = "No authorization code received"

	defaultExchangePath = "/oauth2/callback"
	defaultRetreatDelay = 3 * time.Second
)

// Config configures an OAuth flow.
type Config struct {
	// AuthorizeURL is the provider's authorization endpoint.
	AuthorizeURL string `yaml:"authorize_url" mapstructure:"authorize_url"`

	// ClientID is the OAuth2 client identifier.
	ClientID string `yaml:"client_id" mapstructure:"client_id"`

	// RedirectURL is where the provider sends the browser back to.
	RedirectURL string `yaml:"redirect_url" mapstructure:"redirect_url"`

	// Scopes are the requested scopes (default: openid, email, profile).
	Scopes []string `yaml:"scopes" mapstructure:"scopes"`

	// ExchangePath is the backend endpoint that trades the code for a
	// session (default: /oauth2/callback).
	ExchangePath string `yaml:"exchange_path" mapstructure:"exchange_path"`

	// RetreatDelay is how long the caller should display a failure
	// before navigating back to the login entry point (default: 3s).
	// This is a UX contract, not a retry interval.
	RetreatDelay time.Duration `yaml:"retreat_delay" mapstructure:"retreat_delay"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"openid", "email", "profile"}
	}
	if c.ExchangePath == "" {
		c.ExchangePath = defaultExchangePath
	}
	if c.RetreatDelay == 0 {
		c.RetreatDelay = defaultRetreatDelay
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.AuthorizeURL == "" {
		return fmt.Errorf("oauth: authorize_url is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("oauth: client_id is required")
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("oauth: redirect_url is required")
	}
	return nil
}

// Flow is a single user's OAuth authorization attempt.
type Flow struct {
	cfg  Config
	http *httpclient.Client
	log  *logger.Logger

	mu         sync.Mutex
	state      State
	stateToken string
	consumed   map[string]Result
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(f *Flow) {
		f.log = log.WithComponent("oauth")
	}
}

// NewFlow creates an OAuth flow on top of the shared transport.
func NewFlow(cfg Config, http *httpclient.Client, opts ...Option) (*Flow, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Flow{
		cfg:      cfg,
		http:     http,
		state:    StateIdle,
		consumed: make(map[string]Result),
		log:      logger.NewDefault("authkit").WithComponent("oauth"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// State returns the flow's current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Begin constructs the provider authorization URL. This is a pure
// construction step: no network call happens here, and the actual
// authorization takes place at the external provider after the caller
// navigates the browser to the returned URL.
func (f *Flow) Begin() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateIdle && f.state != StateFailed {
		return "", fmt.Errorf("oauth: cannot begin from state %s", f.state)
	}
	f.state = StateInitiating

	token, err := GenerateState()
	if err != nil {
		f.state = StateIdle
		return "", fmt.Errorf("oauth: generate state: %w", err)
	}
	f.stateToken = token

	u, err := url.Parse(f.cfg.AuthorizeURL)
	if err != nil {
		f.state = StateIdle
		return "", fmt.Errorf("oauth: parse authorize_url: %w", err)
	}

	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", f.cfg.ClientID)
	q.Set("redirect_uri", f.cfg.RedirectURL)
	q.Set("scope", strings.Join(f.cfg.Scopes, " "))
	q.Set("state", token)
	u.RawQuery = q.Encode()

	f.state = StateRedirected
	f.log.Info("authorization initiated", logger.Fields(
		logger.FieldOperation, "begin",
		logger.FieldState, f.state.String(),
	))
	return u.String(), nil
}

// Callback carries the query parameters the provider redirected back with.
type Callback struct {
	Code       string
	State      string
	ErrorParam string
}

// Result is the terminal outcome of a callback.
type Result struct {
	// State is StateAuthenticated or StateFailed.
	State State
	// Authenticated reports whether a session now exists.
	Authenticated bool
	// Profile is the user summary on success.
	Profile *identity.UserProfile
	// Message is the user-displayable failure reason.
	Message string
	// RetreatAfter is how long to display the failure before
	// navigating back to the login entry point. Zero on success.
	RetreatAfter time.Duration
}

type exchangeRequest struct {
	Code  string `json:"code"`
	State string `json:"state,omitempty"`
}

// HandleCallback consumes the provider callback and, when a code is
// present, exchanges it with the backend for a session. The code is
// treated as single-use: invoking HandleCallback again with the same
// code replays the prior result without issuing a second exchange
// request.
func (f *Flow) HandleCallback(ctx context.Context, cb Callback) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb.Code != "" {
		if prior, ok := f.consumed[cb.Code]; ok {
			f.log.Debug("duplicate callback suppressed", logger.Fields(
				logger.FieldOperation, "callback",
			))
			return prior
		}
	}

	f.state = StateCallbackPending

	if cb.ErrorParam != "" {
		return f.fail(cb.Code, MsgCancelled)
	}
	if cb.Code == "" {
		return f.fail("", MsgNoCode)
	}

	env, err := httpclient.Post[identity.Envelope](f.http, ctx, f.cfg.ExchangePath,
		exchangeRequest{Code: cb.Code, State: cb.State},
		httpclient.WithHeader("X-Request-ID", uuid.NewString()))
	if err != nil {
		return f.fail(cb.Code, httpclient.MessageOf(err, "Authentication failed"))
	}
	if !env.Succeeded() {
		msg := env.Message
		if msg == "" {
			msg = "Authentication failed"
		}
		return f.fail(cb.Code, msg)
	}

	f.state = StateAuthenticated
	result := Result{
		State:         StateAuthenticated,
		Authenticated: true,
		Profile:       env.User,
	}
	f.consumed[cb.Code] = result
	f.log.Info("authorization code exchanged", logger.Fields(
		logger.FieldOperation, "callback",
		logger.FieldState, f.state.String(),
	))
	return result
}

// fail transitions to StateFailed and records the result against the
// code (when present) so a re-fired callback replays it.
func (f *Flow) fail(code, msg string) Result {
	f.state = StateFailed
	result := Result{
		State:        StateFailed,
		Message:      msg,
		RetreatAfter: f.cfg.RetreatDelay,
	}
	if code != "" {
		f.consumed[code] = result
	}
	f.log.Warn("authorization failed", logger.Fields(
		logger.FieldOperation, "callback",
		logger.FieldState, f.state.String(),
		logger.FieldError, msg,
	))
	return result
}
