package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/praxislearn/authkit/httpclient"
	"github.com/praxislearn/authkit/identity"
	"github.com/praxislearn/authkit/logger"
)

const (
	profilePath = "/auth/user/profile"
	loginPath   = "/auth/user/login"
	logoutPath  = "/auth/user/logout"
)

// Client performs session operations against the identity backend.
type Client struct {
	http *httpclient.Client
	log  *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log.WithComponent("session")
	}
}

// New creates a session client on top of the shared transport.
func New(http *httpclient.Client, opts ...Option) *Client {
	c := &Client{
		http: http,
		log:  logger.NewDefault("authkit").WithComponent("session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status is the result of an authentication probe.
type Status struct {
	Authenticated bool
	Profile       *identity.UserProfile
}

// Check probes the current authentication status by fetching the
// caller's profile. Every failure, whether the backend is unreachable
// or answered 401/403 or even 5xx, means "not authenticated": the
// negative case is expected and never surfaces as an error. Safe to
// call repeatedly; this layer does no caching.
func (c *Client) Check(ctx context.Context) Status {
	profile, err := httpclient.Get[identity.UserProfile](c.http, ctx, profilePath)
	if err != nil {
		c.log.Debug("probe negative", logger.Fields(
			logger.FieldOperation, "check",
			logger.FieldError, err.Error(),
		))
		return Status{}
	}
	return Status{Authenticated: true, Profile: &profile}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email/password for a backend-held session. On success
// the backend sets the session cookie on the shared transport and the
// minimal user summary is returned. On failure the transport-classified
// message is surfaced verbatim; a failed login is terminal for the
// attempt and it is the caller's decision whether to retry.
func (c *Client) Login(ctx context.Context, email, password string) (*identity.UserProfile, error) {
	env, err := httpclient.Post[identity.Envelope](c.http, ctx, loginPath, loginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		c.log.Warn("login failed", logger.Fields(
			logger.FieldOperation, "login",
			logger.FieldEmail, email,
			logger.FieldError, err.Error(),
		))
		return nil, err
	}
	if env.Failed() {
		msg := env.Message
		if msg == "" {
			msg = "Login failed"
		}
		return nil, errors.New(msg)
	}

	c.log.Info("login succeeded", logger.Fields(
		logger.FieldOperation, "login",
		logger.FieldEmail, email,
	))
	return env.User, nil
}

// Logout destroys the backend session. The backend clears the session
// cookie via Set-Cookie; the empty response body is a unit success.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := httpclient.Post[struct{}](c.http, ctx, logoutPath, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	c.log.Info("logged out", logger.Fields(logger.FieldOperation, "logout"))
	return nil
}
