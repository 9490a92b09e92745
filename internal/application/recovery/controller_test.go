package recovery

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

// fakeProvider implements SessionSource, TokenEstablisher and PasswordUpdater.
type fakeProvider struct {
	Current    *entity.AuthSession
	CurrentErr error

	EstablishErr error
	UpdateErr    error

	CurrentCalls   int
	EstablishCalls int
	UpdateCalls    int
	LastAccess     string
	LastRefresh    string
	LastPassword   string
}

func (f *fakeProvider) CurrentSession(context.Context) (*entity.AuthSession, error) {
	f.CurrentCalls++
	return f.Current, f.CurrentErr
}

func (f *fakeProvider) EstablishSession(_ context.Context, access, refresh string) (*entity.AuthSession, error) {
	f.EstablishCalls++
	f.LastAccess, f.LastRefresh = access, refresh
	if f.EstablishErr != nil {
		return nil, f.EstablishErr
	}
	return &entity.AuthSession{AccessToken: access, RefreshToken: refresh, Purpose: entity.PurposeRecovery}, nil
}

func (f *fakeProvider) UpdatePassword(_ context.Context, pw string) error {
	f.UpdateCalls++
	f.LastPassword = pw
	return f.UpdateErr
}

func newController(p *fakeProvider) *Controller {
	return NewController(p, p, p, nil)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

const validLink = "https://campus.example/reset-password#type=recovery&access_token=A&refresh_token=B"

func TestController_StartsChecking(t *testing.T) {
	c := newController(&fakeProvider{})
	assert.Equal(t, StateChecking, c.State())
	v := c.View()
	assert.True(t, v.Spinner)
	assert.False(t, v.Form)
}

func TestController_ExistingSessionSkipsTokens(t *testing.T) {
	p := &fakeProvider{Current: &entity.AuthSession{AccessToken: "existing"}}
	c := newController(p)

	st := c.Start(context.Background(), mustURL(t, validLink))

	assert.Equal(t, StateReady, st)
	assert.Zero(t, p.EstablishCalls)
	assert.Equal(t, "existing", c.Session().AccessToken)
}

func TestController_EstablishesFromLink(t *testing.T) {
	p := &fakeProvider{}
	c := newController(p)

	st := c.Start(context.Background(), mustURL(t, validLink))

	require.Equal(t, StateReady, st)
	assert.Equal(t, 1, p.EstablishCalls)
	assert.Equal(t, "A", p.LastAccess)
	assert.Equal(t, "B", p.LastRefresh)
	assert.True(t, c.View().Form)
}

func TestController_CurrentSessionErrorFallsBackToLink(t *testing.T) {
	p := &fakeProvider{CurrentErr: errors.New("offline")}
	c := newController(p)

	assert.Equal(t, StateReady, c.Start(context.Background(), mustURL(t, validLink)))
	assert.Equal(t, 1, p.EstablishCalls)
}

func TestController_RejectsMissingIntent(t *testing.T) {
	p := &fakeProvider{}
	c := newController(p)

	st := c.Start(context.Background(), mustURL(t, "https://campus.example/reset-password?type=recovery"))

	assert.Equal(t, StateRejected, st)
	assert.Equal(t, InvalidLinkMessage, c.Reason())
	assert.ErrorIs(t, c.Err(), ErrInvalidRecoveryLink)
	assert.Zero(t, p.EstablishCalls)
	v := c.View()
	assert.Equal(t, InvalidLinkMessage, v.Message)
	assert.Equal(t, "/", v.Link)
}

func TestController_RejectsWhenEstablishFails(t *testing.T) {
	p := &fakeProvider{EstablishErr: errors.New("token expired")}
	c := newController(p)

	st := c.Start(context.Background(), mustURL(t, validLink))

	assert.Equal(t, StateRejected, st)
	assert.Equal(t, InvalidLinkMessage, c.Reason())
	assert.ErrorIs(t, c.Err(), ErrSessionEstablishmentFailed)
}

func TestController_StartRunsOnce(t *testing.T) {
	p := &fakeProvider{}
	c := newController(p)
	c.Start(context.Background(), mustURL(t, validLink))
	c.Start(context.Background(), mustURL(t, validLink))
	assert.Equal(t, 1, p.EstablishCalls)
	assert.Equal(t, 1, p.CurrentCalls)
}

func TestController_SubmitBeforeReady(t *testing.T) {
	p := &fakeProvider{}
	c := newController(p)
	assert.ErrorIs(t, c.Submit(context.Background(), "secret1", "secret1"), ErrNotReady)

	c.Start(context.Background(), mustURL(t, "/nothing"))
	assert.ErrorIs(t, c.Submit(context.Background(), "secret1", "secret1"), ErrNotReady)
	assert.Zero(t, p.UpdateCalls)
}

func TestController_PasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		field    string
		message  string
	}{
		{"too short", "abc12", "abc12", "password", "Password must be at least 6 characters"},
		{"mismatch", "abcdef", "abcdeg", "confirm_password", "Passwords do not match"},
		{"both", "abc", "xyz", "password", "Password must be at least 6 characters"},
		{"empty", "", "", "password", "Password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{}
			c := newController(p)
			require.Equal(t, StateReady, c.Start(context.Background(), mustURL(t, validLink)))

			err := c.Submit(context.Background(), tt.password, tt.confirm)

			var perr *PasswordPolicyError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
			assert.Equal(t, tt.message, perr.Message)
			assert.Zero(t, p.UpdateCalls)
			assert.Equal(t, StateReady, c.State())
		})
	}
}

func TestController_SixCharactersIsEnough(t *testing.T) {
	p := &fakeProvider{}
	c := newController(p)
	c.Start(context.Background(), mustURL(t, validLink))

	require.NoError(t, c.Submit(context.Background(), "abcdef", "abcdef"))
	assert.Equal(t, "abcdef", p.LastPassword)
}

func TestController_UpdateFailureIsRetryable(t *testing.T) {
	p := &fakeProvider{UpdateErr: errors.New("New password should be different from the old password.")}
	c := newController(p)
	c.Start(context.Background(), mustURL(t, validLink))

	err := c.Submit(context.Background(), "secret1", "secret1")
	var uerr *PasswordUpdateError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "New password should be different from the old password.", uerr.Message)
	assert.Equal(t, StateReady, c.State())

	p.UpdateErr = nil
	require.NoError(t, c.Submit(context.Background(), "secret2", "secret2"))
	assert.Equal(t, StateCompleted, c.State())
	assert.Equal(t, 2, p.UpdateCalls)
}

func TestController_CompletedAcceptsNoMoreSubmissions(t *testing.T) {
	p := &fakeProvider{}
	c := newController(p)
	c.Start(context.Background(), mustURL(t, validLink))
	require.NoError(t, c.Submit(context.Background(), "secret1", "secret1"))

	assert.ErrorIs(t, c.Submit(context.Background(), "secret2", "secret2"), ErrRecoveryCompleted)
	assert.Equal(t, 1, p.UpdateCalls)
	v := c.View()
	assert.Equal(t, "/login", v.Link)
	assert.False(t, v.Form)
}
