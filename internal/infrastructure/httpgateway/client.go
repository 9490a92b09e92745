// Package httpgateway talks to the identity provider's HTTP API on behalf of
// the CLI. It implements the authenticator used by the session manager and
// the session, establisher and updater ports of the recovery controller.
package httpgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
	"github.com/oksasatya/campus-identity/internal/domain/repository"
)

// APIError is a non-2xx answer from the provider. Message is the provider's
// own text and is shown to users as is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Unwrap maps well-known statuses onto domain errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusConflict:
		return entity.ErrEmailTaken
	case http.StatusUnauthorized:
		return entity.ErrUnauthenticated
	}
	return nil
}

// envelope mirrors the provider's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type sessionData struct {
	Identity         *entity.Identity `json:"identity"`
	AccessToken      string           `json:"access_token"`
	RefreshToken     string           `json:"refresh_token"`
	AccessExpiresAt  time.Time        `json:"access_expires_at"`
	RefreshExpiresAt time.Time        `json:"refresh_expires_at"`
	Purpose          string           `json:"purpose"`
}

func (d sessionData) authSession() *entity.AuthSession {
	return &entity.AuthSession{
		Identity:        d.Identity,
		AccessToken:     d.AccessToken,
		RefreshToken:    d.RefreshToken,
		AccessExpiresAt: d.AccessExpiresAt,
		Purpose:         d.Purpose,
	}
}

// storedTokens is what the client persists between runs.
type storedTokens struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

type Client struct {
	baseURL string
	http    *http.Client
	kv      repository.KeyValueStore
	authKey string
	logger  *logrus.Logger

	mu       sync.Mutex
	tokens   *storedTokens
	recovery *entity.AuthSession // never persisted
}

// New builds a client for baseURL (for example http://localhost:8080/api).
// Session tokens are persisted in kv under authKey.
func New(ctx context.Context, baseURL string, httpClient *http.Client, kv repository.KeyValueStore, authKey string, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		kv:      kv,
		authKey: authKey,
		logger:  logger,
	}
	c.tokens = c.loadTokens(ctx)
	return c
}

func (c *Client) loadTokens(ctx context.Context) *storedTokens {
	if c.kv == nil {
		return nil
	}
	raw, ok, err := c.kv.Get(ctx, c.authKey)
	if err != nil || !ok {
		return nil
	}
	var t storedTokens
	if err := json.Unmarshal(raw, &t); err != nil || t.AccessToken == "" {
		c.logger.WithField("key", c.authKey).Warn("discarding unreadable stored tokens")
		return nil
	}
	return &t
}

func (c *Client) saveTokens(ctx context.Context, t *storedTokens) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
	if c.kv == nil {
		return
	}
	var err error
	if t == nil {
		err = c.kv.Delete(ctx, c.authKey)
	} else {
		b, _ := json.Marshal(t)
		err = c.kv.Set(ctx, c.authKey, b)
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", c.authKey).Warn("persist tokens failed")
	}
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recovery != nil {
		return c.recovery.AccessToken
	}
	if c.tokens != nil {
		return c.tokens.AccessToken
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path, token string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&env); err != nil {
		if res.StatusCode >= 300 {
			return &APIError{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		}
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if res.StatusCode >= 300 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return &APIError{Status: res.StatusCode, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) openSession(ctx context.Context, d sessionData) (*entity.Identity, error) {
	if d.Identity == nil || d.AccessToken == "" {
		return nil, errors.New("identity provider returned no session")
	}
	c.saveTokens(ctx, &storedTokens{
		AccessToken:     d.AccessToken,
		RefreshToken:    d.RefreshToken,
		AccessExpiresAt: d.AccessExpiresAt,
	})
	return d.Identity, nil
}

// SignIn authenticates with email and password. Wrong credentials surface as
// entity.ErrInvalidCredentials.
func (c *Client) SignIn(ctx context.Context, email, password string) (*entity.Identity, error) {
	var d sessionData
	err := c.do(ctx, http.MethodPost, "/login", "", map[string]string{"email": email, "password": password}, &d)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, entity.ErrInvalidCredentials
		}
		return nil, err
	}
	return c.openSession(ctx, d)
}

// SignUp registers u with password and returns the identity the provider stored.
func (c *Client) SignUp(ctx context.Context, u *entity.Identity, password string) (*entity.Identity, error) {
	body := map[string]any{
		"email":          u.Email,
		"password":       password,
		"name":           u.Name,
		"institution":    u.Institution,
		"field_of_study": u.FieldOfStudy,
		"year":           u.Year,
		"bio":            u.Bio,
		"anonymous":      u.Anonymous,
	}
	var d sessionData
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, &d); err != nil {
		return nil, err
	}
	return c.openSession(ctx, d)
}

// SignOut ends the provider session. Local tokens are dropped even when the
// provider cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.accessToken()
	c.mu.Lock()
	c.recovery = nil
	c.mu.Unlock()
	c.saveTokens(ctx, nil)
	if token == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/logout", token, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	return err
}

// CurrentSession returns the live provider session, or nil when there is none.
func (c *Client) CurrentSession(ctx context.Context) (*entity.AuthSession, error) {
	c.mu.Lock()
	if c.recovery != nil {
		s := *c.recovery
		c.mu.Unlock()
		return &s, nil
	}
	c.mu.Unlock()

	token := c.accessToken()
	if token == "" {
		return nil, nil
	}
	var d sessionData
	err := c.do(ctx, http.MethodGet, "/session", token, nil, &d)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		if rerr := c.refresh(ctx); rerr != nil {
			return nil, nil
		}
		err = c.do(ctx, http.MethodGet, "/session", c.accessToken(), nil, &d)
	}
	if err != nil {
		return nil, err
	}
	return d.authSession(), nil
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	t := c.tokens
	c.mu.Unlock()
	if t == nil || t.RefreshToken == "" {
		return entity.ErrUnauthenticated
	}
	var d sessionData
	if err := c.do(ctx, http.MethodPost, "/refresh", "", map[string]string{"refresh_token": t.RefreshToken}, &d); err != nil {
		c.saveTokens(ctx, nil)
		return err
	}
	_, err := c.openSession(ctx, d)
	return err
}

// EstablishSession exchanges a recovery token pair for a recovery session.
// The session lives in memory only.
func (c *Client) EstablishSession(ctx context.Context, accessToken, refreshToken string) (*entity.AuthSession, error) {
	var d sessionData
	body := map[string]string{"access_token": accessToken, "refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/recovery/session", "", body, &d); err != nil {
		return nil, err
	}
	s := d.authSession()
	c.mu.Lock()
	c.recovery = s
	c.mu.Unlock()
	cp := *s
	return &cp, nil
}

// UpdatePassword changes the password of the current session. The provider
// revokes every session on success, so local tokens are dropped too.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	token := c.accessToken()
	if token == "" {
		return entity.ErrUnauthenticated
	}
	if err := c.do(ctx, http.MethodPut, "/auth/password", token, map[string]string{"password": newPassword}, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.recovery = nil
	c.mu.Unlock()
	c.saveTokens(ctx, nil)
	return nil
}

// RequestPasswordReset asks the provider to email a reset link. The returned
// link is only filled in by development servers.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var d struct {
		ResetLink string `json:"reset_link"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/reset/init", "", map[string]string{"email": email}, &d); err != nil {
		return "", err
	}
	return d.ResetLink, nil
}
