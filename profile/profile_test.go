package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/praxislearn/authkit/httpclient"
	"github.com/praxislearn/authkit/identity"
	"github.com/praxislearn/authkit/identitytest"
	"github.com/praxislearn/authkit/logger"
	"github.com/praxislearn/authkit/util"
)

func newService(t *testing.T, baseURL string, opts ...Option) *Service {
	t.Helper()
	transport, err := httpclient.New(httpclient.Config{BaseURL: baseURL})
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	return NewService(transport, opts...)
}

// recordingBackend captures mutation payloads and counts requests.
type recordingBackend struct {
	srv      *httptest.Server
	requests int64
	lastBody []byte
}

func newRecordingBackend(t *testing.T, respond identity.UserProfile) *recordingBackend {
	t.Helper()
	rb := &recordingBackend{}
	rb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&rb.requests, 1)
		body, _ := io.ReadAll(r.Body)
		rb.lastBody = body
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(respond)
	}))
	t.Cleanup(rb.srv.Close)
	return rb
}

func TestUpdateSendsOnlyChangedFields(t *testing.T) {
	saved := identity.UserProfile{ID: "u1", Name: "Alicia", Email: "alice@example.com"}
	backend := newRecordingBackend(t, saved)

	svc := newService(t, backend.srv.URL)
	svc.SetProfile(identity.UserProfile{ID: "u1", Name: "Alice", Email: "alice@example.com", ImageURL: "https://img/x.png"})

	_, err := svc.Update(context.Background(), Edits{
		Name: util.Ptr("Alicia"),
		// Same values as cached: must not appear in the payload.
		Email:    util.Ptr("alice@example.com"),
		ImageURL: util.Ptr("https://img/x.png"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(backend.lastBody, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["name"] != "Alicia" {
		t.Errorf("payload name = %v", payload["name"])
	}
	for _, forbidden := range []string{"email", "image_url", "otp"} {
		if _, ok := payload[forbidden]; ok {
			t.Errorf("unchanged field %q must not be sent, payload: %s", forbidden, backend.lastBody)
		}
	}
}

func TestUpdateNoOpSkipsNetwork(t *testing.T) {
	backend := newRecordingBackend(t, identity.UserProfile{})
	svc := newService(t, backend.srv.URL)
	svc.SetProfile(identity.UserProfile{ID: "u1", Name: "Alice", Email: "alice@example.com"})

	got, err := svc.Update(context.Background(), Edits{Name: util.Ptr("Alice")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Alice" {
		t.Errorf("no-op should return the cached profile, got %+v", got)
	}
	if backend.requests != 0 {
		t.Errorf("no-op issued %d requests, want 0", backend.requests)
	}
}

func TestUpdateEmailWithoutCodeFailsLocally(t *testing.T) {
	backend := newRecordingBackend(t, identity.UserProfile{})
	svc := newService(t, backend.srv.URL)
	svc.SetProfile(identity.UserProfile{ID: "u1", Email: "alice@example.com"})

	_, err := svc.Update(context.Background(), Edits{Email: util.Ptr("new@example.com"), OTP: "123456"})

	var pre *PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if !strings.Contains(pre.Message, "RequestEmailChangeCode") {
		t.Errorf("message should instruct the caller, got %q", pre.Message)
	}
	if backend.requests != 0 {
		t.Errorf("local failure issued %d requests, want 0", backend.requests)
	}
}

func TestUpdateEmailCodeForDifferentCandidateFailsLocally(t *testing.T) {
	backend := identitytest.New()
	defer backend.Close()
	backend.AddUser("Alice", "alice@example.com", "correct-horse")

	svc := newService(t, backend.URL())
	svc.SetProfile(identity.UserProfile{ID: "u1", Email: "alice@example.com"})

	if err := svc.RequestEmailChangeCode(context.Background(), "first@example.com"); err != nil {
		t.Fatal(err)
	}

	// A code was requested, but for a different address.
	_, err := svc.Update(context.Background(), Edits{Email: util.Ptr("second@example.com"), OTP: "000000"})
	var pre *PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
}

func TestEmailChangeRoundTrip(t *testing.T) {
	backend := identitytest.New()
	defer backend.Close()
	backend.AddUser("Alice", "alice@example.com", "correct-horse")

	transport, err := httpclient.New(httpclient.Config{BaseURL: backend.URL()})
	if err != nil {
		t.Fatal(err)
	}
	// Authenticate the shared transport first.
	if _, err := httpclient.Post[identity.Envelope](transport, context.Background(),
		"/auth/user/login", map[string]string{"email": "alice@example.com", "password": "correct-horse"}); err != nil {
		t.Fatal(err)
	}

	svc := NewService(transport, WithLogger(logger.Nop()))
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := svc.RequestEmailChangeCode(context.Background(), "new@x.com"); err != nil {
		t.Fatalf("request code: %v", err)
	}
	if svc.PendingState() != PendingCodeRequested {
		t.Fatalf("pending = %s, want code_requested", svc.PendingState())
	}

	otp := backend.LastOTP("new@x.com")
	if otp == "" {
		t.Fatal("backend recorded no OTP")
	}

	saved, err := svc.Update(context.Background(), Edits{Email: util.Ptr("new@x.com"), OTP: otp})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if saved.Email != "new@x.com" {
		t.Errorf("saved email = %q, want new@x.com", saved.Email)
	}
	if got := svc.Profile(); got == nil || got.Email != "new@x.com" {
		t.Errorf("cached profile should be replaced, got %+v", got)
	}
	if svc.PendingState() != PendingNone {
		t.Errorf("pending state should be cleared, got %s", svc.PendingState())
	}
}

func TestRejectedCodeReturnsToCodeRequested(t *testing.T) {
	backend := identitytest.New()
	defer backend.Close()
	backend.AddUser("Alice", "alice@example.com", "correct-horse")

	transport, err := httpclient.New(httpclient.Config{BaseURL: backend.URL()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := httpclient.Post[identity.Envelope](transport, context.Background(),
		"/auth/user/login", map[string]string{"email": "alice@example.com", "password": "correct-horse"}); err != nil {
		t.Fatal(err)
	}

	svc := NewService(transport, WithLogger(logger.Nop()))
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := svc.RequestEmailChangeCode(context.Background(), "new@x.com"); err != nil {
		t.Fatal(err)
	}

	before := svc.Profile()
	_, err = svc.Update(context.Background(), Edits{Email: util.Ptr("new@x.com"), OTP: "999999"})
	if err == nil {
		t.Fatal("expected rejection for a wrong code")
	}
	if svc.PendingState() != PendingCodeRequested {
		t.Errorf("pending = %s, want code_requested (candidate intent survives)", svc.PendingState())
	}
	if got := svc.Profile(); got.Email != before.Email {
		t.Errorf("cache must stay unchanged on failure, got %+v", got)
	}
}

// failingBlobStore always fails uploads.
type failingBlobStore struct{}

func (failingBlobStore) Upload(context.Context, string, io.Reader) (string, error) {
	return "", fmt.Errorf("blob store unavailable")
}

// stubBlobStore returns a fixed URL.
type stubBlobStore struct {
	url      string
	uploads  int
	lastName string
}

func (s *stubBlobStore) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	s.uploads++
	s.lastName = name
	return s.url, nil
}

func TestUploadFailureAbortsUpdate(t *testing.T) {
	backend := newRecordingBackend(t, identity.UserProfile{})
	svc := newService(t, backend.srv.URL, WithBlobStore(failingBlobStore{}))
	svc.SetProfile(identity.UserProfile{ID: "u1", Name: "Alice"})

	_, err := svc.Update(context.Background(), Edits{
		Name:  util.Ptr("Alicia"),
		Image: &Blob{Name: "avatar.png", Content: strings.NewReader("png")},
	})
	if err == nil {
		t.Fatal("expected upload failure to abort the update")
	}
	if backend.requests != 0 {
		t.Errorf("mutation was issued despite upload failure (%d requests)", backend.requests)
	}
}

func TestUploadRunsBeforeMutation(t *testing.T) {
	saved := identity.UserProfile{ID: "u1", Name: "Alice", ImageURL: "https://cdn/avatar.png"}
	backend := newRecordingBackend(t, saved)
	blobs := &stubBlobStore{url: "https://cdn/avatar.png"}

	svc := newService(t, backend.srv.URL, WithBlobStore(blobs))
	svc.SetProfile(identity.UserProfile{ID: "u1", Name: "Alice"})

	got, err := svc.Update(context.Background(), Edits{
		Image: &Blob{Name: "avatar.png", Content: strings.NewReader("png")},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if blobs.uploads != 1 {
		t.Errorf("uploads = %d, want 1", blobs.uploads)
	}

	var payload map[string]any
	json.Unmarshal(backend.lastBody, &payload)
	if payload["image_url"] != "https://cdn/avatar.png" {
		t.Errorf("mutation should carry the uploaded URL, payload: %s", backend.lastBody)
	}
	if got.ImageURL != "https://cdn/avatar.png" {
		t.Errorf("unexpected saved profile: %+v", got)
	}
}

func TestUpdateWithoutLoadedProfile(t *testing.T) {
	svc := newService(t, "http://unused.invalid")
	_, err := svc.Update(context.Background(), Edits{Name: util.Ptr("X")})
	var pre *PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
}

func TestRequestEmailChangeCodeValidatesLocally(t *testing.T) {
	backend := newRecordingBackend(t, identity.UserProfile{})
	svc := newService(t, backend.srv.URL)

	err := svc.RequestEmailChangeCode(context.Background(), "not-an-email")
	var pre *PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if backend.requests != 0 {
		t.Errorf("invalid email issued %d requests, want 0", backend.requests)
	}
}

func TestCancelEmailChange(t *testing.T) {
	backend := identitytest.New()
	defer backend.Close()

	svc := newService(t, backend.URL())
	if err := svc.RequestEmailChangeCode(context.Background(), "new@x.com"); err != nil {
		t.Fatal(err)
	}
	svc.CancelEmailChange()
	if svc.PendingState() != PendingNone {
		t.Errorf("pending = %s, want none", svc.PendingState())
	}
}
