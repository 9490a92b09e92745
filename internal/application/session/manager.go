package session

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

// Authenticator is the identity provider as seen by the manager.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*entity.Identity, error)
	SignUp(ctx context.Context, u *entity.Identity, password string) (*entity.Identity, error)
	SignOut(ctx context.Context) error
}

// Manager runs login, signup and logout against an Authenticator and keeps
// the Store in sync. It is the Store's only writer.
type Manager struct {
	store  *Store
	auth   Authenticator
	logger *logrus.Logger
	now    func() time.Time
}

func NewManager(store *Store, auth Authenticator, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = discardLogger()
	}
	return &Manager{store: store, auth: auth, logger: logger, now: time.Now}
}

func (m *Manager) Store() *Store { return m.store }

// Login authenticates and installs the returned identity. On failure the
// previous session is left as it was.
func (m *Manager) Login(ctx context.Context, email, password string) (entity.Session, error) {
	if err := m.store.begin(); err != nil {
		return m.store.Snapshot(), err
	}
	u, err := m.auth.SignIn(ctx, email, password)
	if err == nil && u == nil {
		err = errors.New("identity provider returned no identity")
	}
	if err != nil {
		m.store.abort()
		m.logger.WithError(err).WithField("email", email).Info("login failed")
		return m.store.Snapshot(), err
	}
	s := m.store.commit(ctx, u)
	m.logger.WithField("identity_id", u.ID).Info("login succeeded")
	return s, nil
}

// Signup creates an identity from fields. The verified flag is derived here,
// from the email, and never again.
func (m *Manager) Signup(ctx context.Context, fields entity.ProfileFields, password string) (entity.Session, error) {
	if err := m.store.begin(); err != nil {
		return m.store.Snapshot(), err
	}
	candidate := entity.NewIdentity(fields, m.now())
	u, err := m.auth.SignUp(ctx, candidate, password)
	if err == nil && u == nil {
		err = errors.New("identity provider returned no identity")
	}
	if err != nil {
		m.store.abort()
		m.logger.WithError(err).WithField("email", fields.Email).Info("signup failed")
		return m.store.Snapshot(), err
	}
	s := m.store.commit(ctx, u)
	m.logger.WithFields(logrus.Fields{"identity_id": u.ID, "verified": u.Verified}).Info("signup succeeded")
	return s, nil
}

// Logout clears the session. Calling it while signed out does nothing.
func (m *Manager) Logout(ctx context.Context) {
	if !m.store.clear(ctx) {
		return
	}
	if m.auth == nil {
		return
	}
	if err := m.auth.SignOut(ctx); err != nil {
		m.logger.WithError(err).Warn("provider sign out failed")
	}
}
