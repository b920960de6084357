package identitytest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"testing"
)

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestLoginSetsSessionCookie(t *testing.T) {
	backend := New()
	defer backend.Close()
	backend.AddUser("Alice", "alice@example.com", "correct-horse")

	client := newBrowser(t)
	resp := postJSON(t, client, backend.URL()+"/auth/user/login",
		map[string]string{"email": "alice@example.com", "password": "correct-horse"})
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	found := false
	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookieName && cookie.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("login should set the session cookie")
	}

	// The session cookie authenticates the profile endpoint.
	profResp, err := client.Get(backend.URL() + "/auth/user/profile")
	if err != nil {
		t.Fatal(err)
	}
	defer profResp.Body.Close()
	if profResp.StatusCode != 200 {
		t.Errorf("profile status = %d, want 200", profResp.StatusCode)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	backend := New()
	defer backend.Close()
	backend.AddUser("Alice", "alice@example.com", "correct-horse")

	resp := postJSON(t, newBrowser(t), backend.URL()+"/auth/user/login",
		map[string]string{"email": "alice@example.com", "password": "wrong"})
	defer resp.Body.Close()

	if resp.StatusCode != 401 {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestProfileWithoutSession(t *testing.T) {
	backend := New()
	defer backend.Close()

	resp, err := http.Get(backend.URL() + "/auth/user/profile")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 401 {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	backend := New()
	defer backend.Close()
	backend.AddUser("Alice", "alice@example.com", "correct-horse")

	client := newBrowser(t)
	postJSON(t, client, backend.URL()+"/auth/user/login",
		map[string]string{"email": "alice@example.com", "password": "correct-horse"}).Body.Close()

	resp := postJSON(t, client, backend.URL()+"/auth/user/logout", nil)
	resp.Body.Close()
	if resp.StatusCode != 204 {
		t.Fatalf("logout status = %d, want 204", resp.StatusCode)
	}

	profResp, err := client.Get(backend.URL() + "/auth/user/profile")
	if err != nil {
		t.Fatal(err)
	}
	defer profResp.Body.Close()
	if profResp.StatusCode != 401 {
		t.Errorf("probe after logout = %d, want 401", profResp.StatusCode)
	}
}

func TestAuthorizationCodeIsSingleUse(t *testing.T) {
	backend := New()
	defer backend.Close()
	backend.AddUser("Alice", "alice@example.com", "correct-horse")
	backend.SeedAuthorizationCode("code-1", "alice@example.com")

	first := postJSON(t, newBrowser(t), backend.URL()+"/oauth2/callback",
		map[string]string{"code": "code-1"})
	first.Body.Close()
	if first.StatusCode != 200 {
		t.Fatalf("first exchange = %d, want 200", first.StatusCode)
	}

	second := postJSON(t, newBrowser(t), backend.URL()+"/oauth2/callback",
		map[string]string{"code": "code-1"})
	second.Body.Close()
	if second.StatusCode != 400 {
		t.Errorf("replayed exchange = %d, want 400", second.StatusCode)
	}
	if got := backend.ExchangeCount("code-1"); got != 2 {
		t.Errorf("ExchangeCount = %d, want 2", got)
	}
}

func TestEmailChangeRequiresOTP(t *testing.T) {
	backend := New()
	defer backend.Close()
	backend.AddUser("Alice", "alice@example.com", "correct-horse")

	client := newBrowser(t)
	postJSON(t, client, backend.URL()+"/auth/user/login",
		map[string]string{"email": "alice@example.com", "password": "correct-horse"}).Body.Close()

	// Without a code the update is rejected.
	req, _ := http.NewRequest(http.MethodPut, backend.URL()+"/auth/user/profile",
		bytes.NewReader([]byte(`{"email":"new@example.com"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("update without otp = %d, want 400", resp.StatusCode)
	}

	// Request a code for the new address, then retry with it.
	postJSON(t, client, backend.URL()+"/auth/user/request-otp/new@example.com", nil).Body.Close()
	otp := backend.LastOTP("new@example.com")
	if otp == "" {
		t.Fatal("no OTP recorded")
	}

	body, _ := json.Marshal(map[string]string{"email": "new@example.com", "otp": otp})
	req, _ = http.NewRequest(http.MethodPut, backend.URL()+"/auth/user/profile", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("update with otp = %d, want 200", resp.StatusCode)
	}

	if _, ok := backend.Profile("new@example.com"); !ok {
		t.Error("profile should be re-keyed to the new email")
	}
}
