package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fakeAPI struct {
	access string
	admin  bool
}

func newFakeAPI(t *testing.T, admin bool) *httptest.Server {
	t.Helper()
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	f := &fakeAPI{access: access, admin: admin}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return srv
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/auth/login" {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "alice" || body["password"] != "s3cret-pass" {
			reply(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
			return
		}
		reply(w, http.StatusOK, map[string]string{"access": f.access})
		return
	}
	if r.URL.Path == "/api/auth/register" {
		reply(w, http.StatusBadRequest, map[string]any{"username": []string{"A user with that username already exists."}})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+f.access {
		reply(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid"})
		return
	}
	switch r.URL.Path {
	case "/api/auth/me":
		reply(w, http.StatusOK, map[string]any{"id": 7, "username": "alice", "email": "alice@example.com", "is_admin": f.admin})
	case "/api/radio/logs":
		reply(w, http.StatusOK, []map[string]any{
			{"id": 1, "username": "bob", "frequency": 101.5, "joined_at": "2026-03-01T10:00:00Z"},
		})
	default:
		http.NotFound(w, r)
	}
}

// run executes the radio command with isolated settings and state.
func run(t *testing.T, apiURL, stateDB, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	base := []string{
		"--config", filepath.Join(t.TempDir(), "settings.yaml"),
		"--api-url", apiURL,
		"--state-db", stateDB,
		"--log-level", "error",
	}
	root.SetArgs(append(args, base...))
	err := root.Execute()
	return out.String(), err
}

func TestLoginWhoamiLogout(t *testing.T) {
	srv := newFakeAPI(t, false)
	db := filepath.Join(t.TempDir(), "state", "state.db")

	out, err := run(t, srv.URL, db, "alice\ns3cret-pass\n", "login")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Signed in as alice") {
		t.Errorf("login output = %q", out)
	}

	out, err = run(t, srv.URL, db, "", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	for _, want := range []string{"username: alice", "email:    alice@example.com", "role:     operator"} {
		if !strings.Contains(out, want) {
			t.Errorf("whoami output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, srv.URL, db, "", "logs"); err == nil || !strings.Contains(err.Error(), "only available to admins") {
		t.Errorf("logs as operator: err = %v", err)
	}

	if _, err := run(t, srv.URL, db, "", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := run(t, srv.URL, db, "", "whoami"); err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Errorf("whoami after logout: err = %v", err)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := newFakeAPI(t, false)
	db := filepath.Join(t.TempDir(), "state.db")

	_, err := run(t, srv.URL, db, "", "login", "-u", "alice", "-p", "wrong-pass")
	if err == nil || !strings.Contains(err.Error(), "No active account") {
		t.Fatalf("login err = %v", err)
	}
	if _, err := run(t, srv.URL, db, "", "whoami"); err == nil {
		t.Error("whoami succeeded after failed login")
	}
}

func TestAdminLogs(t *testing.T) {
	srv := newFakeAPI(t, true)
	db := filepath.Join(t.TempDir(), "state.db")

	if _, err := run(t, srv.URL, db, "", "login", "-u", "alice", "-p", "s3cret-pass"); err != nil {
		t.Fatalf("login: %v", err)
	}
	out, err := run(t, srv.URL, db, "", "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(out, "USER") || !strings.Contains(out, "bob") || !strings.Contains(out, "101.50 MHz") {
		t.Errorf("logs output:\n%s", out)
	}
}

func TestRegister(t *testing.T) {
	srv := newFakeAPI(t, false)
	db := filepath.Join(t.TempDir(), "state.db")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"short password", []string{"register", "-u", "carol", "-p", "short"}, "password"},
		{"bad username", []string{"register", "-u", "car ol", "-p", "long-enough"}, "username"},
		{"taken", []string{"register", "-u", "alice", "-p", "long-enough"}, "already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, srv.URL, db, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	root := NewRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if got := out.String(); got != "radio dev\n" {
		t.Errorf("version output = %q", got)
	}
}
