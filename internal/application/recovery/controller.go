package recovery

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

// InvalidLinkMessage is shown for every unusable reset link, whatever the cause.
const InvalidLinkMessage = "Invalid or expired reset link. Please request a new password reset."

const (
	msgPasswordTooShort = "Password must be at least 6 characters"
	msgPasswordMismatch = "Passwords do not match"
)

var (
	ErrInvalidRecoveryLink        = errors.New(InvalidLinkMessage)
	ErrSessionEstablishmentFailed = errors.New(InvalidLinkMessage)
	ErrNotReady                   = errors.New("recovery session is not ready")
	ErrRecoveryCompleted          = errors.New("password already updated")
	ErrOperationInFlight          = errors.New("password update already in progress")
)

// PasswordPolicyError is a local validation failure; nothing was sent.
type PasswordPolicyError struct {
	Field   string
	Message string
}

func (e *PasswordPolicyError) Error() string { return e.Message }

// PasswordUpdateError carries the identity provider's message verbatim.
type PasswordUpdateError struct {
	Message string
	Err     error
}

func (e *PasswordUpdateError) Error() string { return e.Message }
func (e *PasswordUpdateError) Unwrap() error { return e.Err }

// SessionSource reports an already established provider session, if any.
type SessionSource interface {
	CurrentSession(ctx context.Context) (*entity.AuthSession, error)
}

// TokenEstablisher turns a recovery token pair into a provider session.
type TokenEstablisher interface {
	EstablishSession(ctx context.Context, accessToken, refreshToken string) (*entity.AuthSession, error)
}

// PasswordUpdater changes the password of the current provider session.
type PasswordUpdater interface {
	UpdatePassword(ctx context.Context, newPassword string) error
}

// State is the controller's position in the recovery flow.
type State int

const (
	StateChecking State = iota
	StateReady
	StateRejected
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateReady:
		return "ready"
	case StateRejected:
		return "rejected"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// View is what the presentation layer should render for a state.
type View struct {
	State   State  `json:"-"`
	Name    string `json:"state"`
	Message string `json:"message,omitempty"`
	Link    string `json:"link,omitempty"`
	Form    bool   `json:"form"`
	Spinner bool   `json:"spinner"`
}

type passwordForm struct {
	Password string `validate:"min=6"`
	Confirm  string `validate:"eqfield=Password"`
}

// Controller drives one password recovery: checking -> ready | rejected,
// then ready -> completed on a successful submission.
type Controller struct {
	sessions    SessionSource
	establisher TokenEstablisher
	updater     PasswordUpdater
	logger      *logrus.Logger
	validate    *validator.Validate

	mu         sync.Mutex
	state      State
	reason     string
	started    bool
	submitting bool
	session    *entity.AuthSession
	intent     *entity.RecoveryIntent
}

func NewController(sessions SessionSource, establisher TokenEstablisher, updater PasswordUpdater, logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Controller{
		sessions:    sessions,
		establisher: establisher,
		updater:     updater,
		logger:      logger,
		validate:    validator.New(),
		state:       StateChecking,
	}
}

// Start resolves the recovery session. It runs once; later calls return the
// state already reached.
func (c *Controller) Start(ctx context.Context, link *url.URL) State {
	c.mu.Lock()
	if c.started {
		st := c.state
		c.mu.Unlock()
		return st
	}
	c.started = true
	c.mu.Unlock()

	if s := c.existingSession(ctx); s != nil {
		return c.settle(StateReady, "", s, nil)
	}

	intent, ok := Extract(link)
	if !ok {
		c.logger.Info("recovery link carries no usable intent")
		return c.settle(StateRejected, InvalidLinkMessage, nil, nil)
	}

	s, err := c.establisher.EstablishSession(ctx, intent.AccessToken, intent.RefreshToken)
	if err != nil || s == nil {
		c.logger.WithError(err).WithField("provenance", intent.Provenance.String()).Info("recovery session rejected")
		return c.settle(StateRejected, InvalidLinkMessage, nil, &intent)
	}
	return c.settle(StateReady, "", s, &intent)
}

func (c *Controller) existingSession(ctx context.Context) *entity.AuthSession {
	if c.sessions == nil {
		return nil
	}
	s, err := c.sessions.CurrentSession(ctx)
	if err != nil {
		c.logger.WithError(err).Debug("current session lookup failed")
		return nil
	}
	return s
}

func (c *Controller) settle(st State, reason string, s *entity.AuthSession, intent *entity.RecoveryIntent) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = st
	c.reason = reason
	c.session = s
	c.intent = intent
	return st
}

// Submit validates the new password locally and, if it passes, sends it to
// the identity provider. Provider failures keep the controller ready.
func (c *Controller) Submit(ctx context.Context, password, confirm string) error {
	c.mu.Lock()
	switch {
	case c.state == StateCompleted:
		c.mu.Unlock()
		return ErrRecoveryCompleted
	case c.state != StateReady:
		c.mu.Unlock()
		return ErrNotReady
	case c.submitting:
		c.mu.Unlock()
		return ErrOperationInFlight
	}
	if err := c.checkPolicy(password, confirm); err != nil {
		c.mu.Unlock()
		return err
	}
	c.submitting = true
	c.mu.Unlock()

	err := c.updater.UpdatePassword(ctx, password)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.logger.WithError(err).Info("password update rejected")
		return &PasswordUpdateError{Message: err.Error(), Err: err}
	}
	c.state = StateCompleted
	return nil
}

// checkPolicy reports the first violated rule: length, then confirmation.
func (c *Controller) checkPolicy(password, confirm string) error {
	err := c.validate.Struct(passwordForm{Password: password, Confirm: confirm})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.StructField() == "Password" {
				return &PasswordPolicyError{Field: "password", Message: msgPasswordTooShort}
			}
		}
		return &PasswordPolicyError{Field: "confirm_password", Message: msgPasswordMismatch}
	}
	return &PasswordPolicyError{Field: "password", Message: err.Error()}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason is the user-facing message of a rejected controller.
func (c *Controller) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Err maps a rejected state to its error; nil otherwise.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRejected {
		return nil
	}
	if c.intent == nil {
		return ErrInvalidRecoveryLink
	}
	return ErrSessionEstablishmentFailed
}

// Session is the provider session the password change will apply to.
func (c *Controller) Session() *entity.AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// View applies the render policy to the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{State: c.state, Name: c.state.String()}
	switch c.state {
	case StateChecking:
		v.Spinner = true
	case StateRejected:
		v.Message = c.reason
		v.Link = "/"
	case StateReady:
		v.Form = true
	case StateCompleted:
		v.Message = "Your password has been updated."
		v.Link = "/login"
	}
	return v
}
