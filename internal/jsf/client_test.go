package jsf

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

const loginForm = `<html><body><form id="mainForm">
<input type="hidden" name="javax.faces.ViewState" value="vs-login"/>
<button id="mainForm:loginBtn" type="submit">Sign in</button>
</form></body></html>`

func newLoginServer(t *testing.T, accept func(email, password string) bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login.jsf", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, loginForm)
			return
		}
		if r.FormValue(ParamViewState) != "vs-login" {
			fmt.Fprintf(w, `<html><body><div class="%s">state mismatch</div>%s</body></html>`, ErrorMarker, loginForm)
			return
		}
		if accept(r.FormValue("mainForm:email"), r.FormValue("mainForm:password")) {
			http.Redirect(w, r, "/draft.jsf", http.StatusFound)
			return
		}
		fmt.Fprintf(w, `<html><body><div class="%s">bad credentials</div>%s</body></html>`, ErrorMarker, loginForm)
	})
	mux.HandleFunc("/draft.jsf", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form id="mainForm"><input type="hidden" name="javax.faces.ViewState" value="vs-draft"/></form></body></html>`)
	})
	return httptest.NewServer(mux)
}

func testClient(t *testing.T, baseURL, email, password string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, "shipbot-test", model.Credentials{Email: email, Password: password}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestAuthenticateSuccess(t *testing.T) {
	ts := newLoginServer(t, func(email, password string) bool {
		return email == "ops@example.com" && password == "hunter2"
	})
	defer ts.Close()

	c := testClient(t, ts.URL, "ops@example.com", "hunter2")
	hooked := false
	c.OnAuthenticated = func(ctx context.Context) error {
		hooked = true
		return nil
	}
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !hooked {
		t.Fatalf("expected post-login discovery hook to run")
	}
}

func TestAuthenticateRejectedByMarkerNotStatus(t *testing.T) {
	ts := newLoginServer(t, func(email, password string) bool { return false })
	defer ts.Close()

	c := testClient(t, ts.URL, "ops@example.com", "wrong")
	err := c.Authenticate(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestPasswordRotationDuringLoginIsSafe(t *testing.T) {
	ts := newLoginServer(t, func(email, password string) bool { return password != "" })
	defer ts.Close()

	c := testClient(t, ts.URL, "ops@example.com", "hunter2")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			c.SetPassword(fmt.Sprintf("rotated-%d", i))
		}
	}()
	for i := 0; i < 10; i++ {
		if err := c.Authenticate(context.Background()); err != nil {
			t.Fatalf("authenticate: %v", err)
		}
	}
	<-done
}

func TestGetSessionPageDetectsExpiry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/draft.jsf", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login.jsf", http.StatusFound)
	})
	mux.HandleFunc("/login.jsf", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, loginForm)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := testClient(t, ts.URL, "ops@example.com", "hunter2")
	_, err := c.GetSessionPage(context.Background(), DraftPath, "")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestWithSessionReauthenticatesAndRestartsStep(t *testing.T) {
	ts := newLoginServer(t, func(email, password string) bool { return true })
	defer ts.Close()

	c := testClient(t, ts.URL, "ops@example.com", "hunter2")
	attempts := 0
	err := c.WithSession(context.Background(), func() error {
		attempts++
		if attempts == 1 {
			return ErrSessionExpired
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with session: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected step to restart once, ran %d times", attempts)
	}
}

func TestWithSessionStopsOnAuthFailure(t *testing.T) {
	ts := newLoginServer(t, func(email, password string) bool { return false })
	defer ts.Close()

	c := testClient(t, ts.URL, "ops@example.com", "stale")
	err := c.WithSession(context.Background(), func() error { return ErrSessionExpired })
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected auth failure to surface, got %v", err)
	}
}
