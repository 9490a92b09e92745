package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/campus-identity/config"
	"github.com/oksasatya/campus-identity/internal/application/recovery"
	"github.com/oksasatya/campus-identity/internal/application/verification"
)

type provider struct {
	mu        sync.Mutex
	password  string
	passwords []string
	calls     map[string]int

	// rejectUpdates fails that many password updates before accepting one.
	rejectUpdates int
}

func (p *provider) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

func reply(w http.ResponseWriter, status int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "success": status < 300, "message": msg, "data": data})
}

func session(access, purpose string, verified bool) map[string]any {
	return map[string]any{
		"identity":          map[string]any{"id": "u1", "email": "jane@college.edu", "name": "Jane", "verified": verified, "institution": "State University", "year": 2},
		"access_token":      access,
		"refresh_token":     "refresh-" + access,
		"access_expires_at": time.Now().Add(time.Hour),
		"purpose":           purpose,
	}
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[r.URL.Path]++

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Path {
	case "/api/login":
		if body["password"] != p.password {
			reply(w, http.StatusUnauthorized, "Invalid email or password", nil)
			return
		}
		reply(w, http.StatusOK, "login successful", session("A1", "session", true))
	case "/api/signup":
		reply(w, http.StatusCreated, "signup successful", session("A1", "session", strings.HasSuffix(body["email"].(string), ".edu")))
	case "/api/logout":
		reply(w, http.StatusOK, "logged out", nil)
	case "/api/session":
		reply(w, http.StatusUnauthorized, "session not found", nil)
	case "/api/auth/recovery/session":
		if body["access_token"] != "RA" || body["refresh_token"] != "RR" {
			reply(w, http.StatusUnauthorized, "Invalid or expired reset link", nil)
			return
		}
		reply(w, http.StatusOK, "recovery session established", session("RA", "recovery", true))
	case "/api/auth/password":
		pw, _ := body["password"].(string)
		if p.rejectUpdates > 0 {
			p.rejectUpdates--
			reply(w, http.StatusUnprocessableEntity, "New password should be different from the old password.", nil)
			return
		}
		p.passwords = append(p.passwords, pw)
		reply(w, http.StatusOK, "password updated", nil)
	case "/api/auth/reset/init":
		reply(w, http.StatusOK, "sent", map[string]any{"reset_link": "http://localhost:3000/reset-password#type=recovery&access_token=RA&refresh_token=RR"})
	default:
		reply(w, http.StatusNotFound, "not found", nil)
	}
}

type harness struct {
	cfg      *config.Config
	provider *provider
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	p := &provider{password: "secret1"}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	return &harness{
		provider: p,
		cfg: &config.Config{
			APIBaseURL:          srv.URL + "/api",
			HTTPClientTimeout:   5 * time.Second,
			SessionBackend:      "file",
			SessionFile:         filepath.Join(t.TempDir(), "session.json"),
			SessionKey:          "campus_identity_user",
			VerifySizeThreshold: 30000,
		},
	}
}

// run executes one CLI invocation with stdin and returns stdout.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	root := NewRootCmd(h.cfg, logger)
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLogin_PersistsAcrossInvocations(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "secret1\n", "login", "--email", "jane@college.edu")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Jane (verified student)")

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Jane (verified student) <jane@college.edu>")
	assert.Contains(t, out, "State University, year 2")
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "jane@college.edu\nnope\n", "login")
	require.EqualError(t, err, "invalid email or password")

	out, err := h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
}

func TestSignup_PasswordMismatchSendsNothing(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "secret1\nsecret2\n", "signup", "--email", "jane@college.edu", "--name", "Jane")
	require.EqualError(t, err, "passwords do not match")
	assert.Zero(t, h.provider.count("/api/signup"))
}

func TestSignup_NonAcademicEmailGetsVerifyHint(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "secret1\nsecret1\n", "signup", "--email", "jane@gmail.com", "--name", "Jane")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, Jane")
	assert.Contains(t, out, "campus verify")
}

func TestLogout_ClearsSessionAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "secret1\n", "login", "--email", "jane@college.edu")
	require.NoError(t, err)

	out, err := h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")
	assert.Equal(t, 1, h.provider.count("/api/logout"))

	_, err = h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Equal(t, 1, h.provider.count("/api/logout"))

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
}

func TestResetRequest_PrintsDevelopmentLink(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "reset-request", "--email", "jane@college.edu")
	require.NoError(t, err)
	assert.Contains(t, out, "a reset link is on its way")
	assert.Contains(t, out, "access_token=RA")
}

func TestResetPassword_InvalidLink(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "reset-password", "--link", "http://localhost:3000/reset-password#type=signup&access_token=RA&refresh_token=RR")
	require.EqualError(t, err, recovery.InvalidLinkMessage)
	assert.ErrorIs(t, err, recovery.ErrInvalidRecoveryLink)
	assert.Zero(t, h.provider.count("/api/auth/recovery/session"))
}

func TestResetPassword_RejectedTokens(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "reset-password", "--link", "http://localhost:3000/reset-password#type=recovery&access_token=BAD&refresh_token=RR")
	require.EqualError(t, err, recovery.InvalidLinkMessage)
	assert.ErrorIs(t, err, recovery.ErrSessionEstablishmentFailed)
	assert.Equal(t, 1, h.provider.count("/api/auth/recovery/session"))
}

func TestResetPassword_RepromptsOnPolicyThenUpdates(t *testing.T) {
	h := newHarness(t)
	link := "http://localhost:3000/reset-password#type=recovery&access_token=RA&refresh_token=RR"

	out, err := h.run(t, "abc\nabc\nnewpass1\nnewpass2\nnewpass1\nnewpass1\n", "reset-password", "--link", link)
	require.NoError(t, err)
	assert.Contains(t, out, "Password must be at least 6 characters")
	assert.Contains(t, out, "Passwords do not match")
	assert.Contains(t, out, "Your password has been updated.")
	assert.Equal(t, []string{"newpass1"}, h.provider.passwords)
}

func TestResetPassword_RepromptsWhenProviderRejectsUpdate(t *testing.T) {
	h := newHarness(t)
	h.provider.rejectUpdates = 1
	link := "http://localhost:3000/reset-password#type=recovery&access_token=RA&refresh_token=RR"

	out, err := h.run(t, "oldpass1\noldpass1\nnewpass1\nnewpass1\n", "reset-password", "--link", link)
	require.NoError(t, err)
	assert.Contains(t, out, "New password should be different from the old password.")
	assert.Contains(t, out, "Your password has been updated.")
	assert.Equal(t, 2, h.provider.count("/api/auth/password"))
	assert.Equal(t, []string{"newpass1"}, h.provider.passwords)
}

func TestResetPassword_GivesUpWhenProviderKeepsRejecting(t *testing.T) {
	h := newHarness(t)
	h.provider.rejectUpdates = 5
	link := "http://localhost:3000/reset-password#type=recovery&access_token=RA&refresh_token=RR"

	_, err := h.run(t, "pass111\npass111\npass222\npass222\npass333\npass333\n", "reset-password", "--link", link)
	var rejected *recovery.PasswordUpdateError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, maxPasswordAttempts, h.provider.count("/api/auth/password"))
}

func TestResetPassword_GivesUpAfterRepeatedPolicyFailures(t *testing.T) {
	h := newHarness(t)
	link := "http://localhost:3000/reset-password#type=recovery&access_token=RA&refresh_token=RR"

	_, err := h.run(t, "a\na\nb\nb\nc\nc\n", "reset-password", "--link", link)
	var policy *recovery.PasswordPolicyError
	require.ErrorAs(t, err, &policy)
	assert.Zero(t, h.provider.count("/api/auth/password"))
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0o600))
	return path
}

func TestVerify_RequiresSignIn(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "verify", writeFile(t, "id.png", 40000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestVerify_Outcomes(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "secret1\n", "login", "--email", "jane@college.edu")
	require.NoError(t, err)

	out, err := h.run(t, "", "verify", writeFile(t, "id.png", 40000))
	require.NoError(t, err)
	assert.Contains(t, out, "Alex Johnson")
	assert.Contains(t, out, "STU-2024-08731")

	out, err = h.run(t, "", "verify", writeFile(t, "id.jpg", 1200))
	require.ErrorIs(t, err, verification.ErrVerificationRejected)
	assert.Contains(t, out, "Unable to verify ID")

	out, err = h.run(t, "", "verify", writeFile(t, "notes.txt", 40000))
	require.ErrorIs(t, err, verification.ErrUnsupportedFileType)
	assert.Contains(t, out, "Please upload an image file")
	assert.NotContains(t, out, "Verifying")
}

func TestDetectContentType_SniffsWithoutExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan")
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	require.NoError(t, os.WriteFile(path, png, 0o600))

	ct, err := detectContentType(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
}
