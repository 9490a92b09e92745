package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

// ---- fakes ----

type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	setErr  error
	deletes int
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, key)
	return nil
}

type fakeAuth struct {
	SignInFunc func(ctx context.Context, email, password string) (*entity.Identity, error)
	SignUpFunc func(ctx context.Context, u *entity.Identity, password string) (*entity.Identity, error)

	SignOutCalls int
	LastPassword string
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (*entity.Identity, error) {
	f.LastPassword = password
	if f.SignInFunc != nil {
		return f.SignInFunc(ctx, email, password)
	}
	return &entity.Identity{ID: "id-" + email, Email: email, Year: 1}, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, u *entity.Identity, password string) (*entity.Identity, error) {
	f.LastPassword = password
	if f.SignUpFunc != nil {
		return f.SignUpFunc(ctx, u, password)
	}
	return u, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.SignOutCalls++
	return nil
}

func newManager(t *testing.T, kv *memKV, auth *fakeAuth) *Manager {
	t.Helper()
	return NewManager(NewStore(context.Background(), kv, DefaultKey, nil), auth, nil)
}

// ---- store init ----

func TestNewStore_RehydratesPersistedIdentity(t *testing.T) {
	kv := newMemKV()
	b, err := json.Marshal(entity.Identity{ID: "u1", Email: "a@b.edu", Verified: true})
	require.NoError(t, err)
	kv.data[DefaultKey] = b

	s := NewStore(context.Background(), kv, "", nil)

	u, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)
	assert.True(t, u.Verified)
	assert.False(t, s.Loading())
}

func TestNewStore_MalformedDataMeansNoSession(t *testing.T) {
	for name, raw := range map[string]string{
		"garbage":    "{not json",
		"empty":      "",
		"missing id": `{"email":"x@y.edu"}`,
		"wrong type": `[1,2,3]`,
	} {
		t.Run(name, func(t *testing.T) {
			kv := newMemKV()
			kv.data[DefaultKey] = []byte(raw)
			s := NewStore(context.Background(), kv, DefaultKey, nil)
			_, ok := s.Identity()
			assert.False(t, ok)
		})
	}
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	m := newManager(t, newMemKV(), &fakeAuth{})
	_, err := m.Login(context.Background(), "a@b.edu", "secret1")
	require.NoError(t, err)

	snap := m.Store().Snapshot()
	snap.Identity.Name = "mutated"

	u, _ := m.Store().Identity()
	assert.NotEqual(t, "mutated", u.Name)
}

// ---- login ----

func TestLogin_PersistsIdentity(t *testing.T) {
	kv := newMemKV()
	auth := &fakeAuth{}
	m := newManager(t, kv, auth)

	s, err := m.Login(context.Background(), "jane@college.edu", "hunter22")
	require.NoError(t, err)
	require.True(t, s.Authenticated())
	assert.False(t, s.Loading)
	assert.Equal(t, "hunter22", auth.LastPassword)

	var stored entity.Identity
	require.NoError(t, json.Unmarshal(kv.data[DefaultKey], &stored))
	assert.Equal(t, s.Identity.ID, stored.ID)
}

func TestLogin_FailureLeavesPriorSessionUntouched(t *testing.T) {
	kv := newMemKV()
	auth := &fakeAuth{}
	m := newManager(t, kv, auth)
	_, err := m.Login(context.Background(), "first@college.edu", "pw1234")
	require.NoError(t, err)
	before := append([]byte(nil), kv.data[DefaultKey]...)

	auth.SignInFunc = func(context.Context, string, string) (*entity.Identity, error) {
		return nil, entity.ErrInvalidCredentials
	}
	s, err := m.Login(context.Background(), "second@college.edu", "wrong")

	require.ErrorIs(t, err, entity.ErrInvalidCredentials)
	require.NotNil(t, s.Identity)
	assert.Equal(t, "id-first@college.edu", s.Identity.ID)
	assert.False(t, s.Loading)
	assert.Equal(t, before, kv.data[DefaultKey])
}

func TestLogin_LoadingOnlyWhileInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	auth := &fakeAuth{SignInFunc: func(ctx context.Context, email, _ string) (*entity.Identity, error) {
		close(entered)
		<-release
		return &entity.Identity{ID: "u1", Email: email}, nil
	}}
	m := newManager(t, newMemKV(), auth)
	assert.False(t, m.Store().Loading())

	done := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), "a@b.edu", "pw1234")
		done <- err
	}()

	<-entered
	assert.True(t, m.Store().Loading())

	_, err := m.Login(context.Background(), "a@b.edu", "pw1234")
	assert.ErrorIs(t, err, ErrOperationInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, m.Store().Loading())
}

func TestLogin_PersistFailureKeepsInMemorySession(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errors.New("disk full")
	m := newManager(t, kv, &fakeAuth{})

	s, err := m.Login(context.Background(), "a@b.edu", "pw1234")
	require.NoError(t, err)
	assert.True(t, s.Authenticated())
	_, ok := kv.data[DefaultKey]
	assert.False(t, ok)
}

// ---- signup ----

func TestSignup_VerifiedFollowsEmailDomain(t *testing.T) {
	cases := map[string]bool{
		"jane@college.edu":   true,
		"jane@gmail.com":     false,
		"JANE@MIT.EDU":       true,
		"tom@ox.ac.uk":       true,
		"li@unimelb.edu.au":  true,
		"bob@education.com":  false,
		"eve@edu.example.io": false,
		"":                   false,
	}
	for email, want := range cases {
		t.Run(email, func(t *testing.T) {
			m := newManager(t, newMemKV(), &fakeAuth{})
			s, err := m.Signup(context.Background(), entity.ProfileFields{Email: email}, "pw1234")
			require.NoError(t, err)
			assert.Equal(t, want, s.Identity.Verified)
		})
	}
}

func TestSignup_DefaultsOmittedFields(t *testing.T) {
	var sent *entity.Identity
	auth := &fakeAuth{SignUpFunc: func(_ context.Context, u *entity.Identity, _ string) (*entity.Identity, error) {
		sent = u
		return u, nil
	}}
	m := newManager(t, newMemKV(), auth)
	m.now = func() time.Time { return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC) }

	s, err := m.Signup(context.Background(), entity.ProfileFields{Email: "jane@college.edu"}, "pw1234")
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, "", s.Identity.Name)
	assert.Equal(t, "", s.Identity.Institution)
	assert.Equal(t, "", s.Identity.Bio)
	assert.Equal(t, 1, s.Identity.Year)
	assert.Equal(t, time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC), s.Identity.CreatedAt)
}

func TestSignup_FailureDoesNotPersist(t *testing.T) {
	kv := newMemKV()
	auth := &fakeAuth{SignUpFunc: func(context.Context, *entity.Identity, string) (*entity.Identity, error) {
		return nil, entity.ErrEmailTaken
	}}
	m := newManager(t, kv, auth)

	s, err := m.Signup(context.Background(), entity.ProfileFields{Email: "jane@college.edu"}, "pw1234")
	require.ErrorIs(t, err, entity.ErrEmailTaken)
	assert.False(t, s.Authenticated())
	assert.Empty(t, kv.data)
}

// ---- logout ----

func TestLogout_Idempotent(t *testing.T) {
	kv := newMemKV()
	auth := &fakeAuth{}
	m := newManager(t, kv, auth)
	_, err := m.Login(context.Background(), "a@b.edu", "pw1234")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		m.Logout(context.Background())
		s := m.Store().Snapshot()
		assert.False(t, s.Authenticated())
		_, ok := kv.data[DefaultKey]
		assert.False(t, ok)
	}
	assert.Equal(t, 1, auth.SignOutCalls)
}

func TestLogout_WhenNeverLoggedIn(t *testing.T) {
	auth := &fakeAuth{}
	m := newManager(t, newMemKV(), auth)
	m.Logout(context.Background())
	assert.False(t, m.Store().Snapshot().Authenticated())
	assert.Zero(t, auth.SignOutCalls)
}

func TestLogout_RemovesMalformedPersistedData(t *testing.T) {
	kv := newMemKV()
	kv.data[DefaultKey] = []byte("{broken")
	m := newManager(t, kv, &fakeAuth{})

	m.Logout(context.Background())
	_, ok := kv.data[DefaultKey]
	assert.False(t, ok)
}
