package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/config"
	"github.com/oksasatya/campus-identity/internal/domain/entity"
	repo "github.com/oksasatya/campus-identity/internal/domain/repository"
	"github.com/oksasatya/campus-identity/pkg/helpers"
	"github.com/oksasatya/campus-identity/pkg/mailer"
	mailtpl "github.com/oksasatya/campus-identity/pkg/mailer/templates"
)

var (
	ErrInvalidRecovery = errors.New("invalid or expired recovery session")
	ErrSessionRevoked  = errors.New("session no longer active")
)

const identityCacheTTL = 10 * time.Minute

// EmailPublisher enqueues email jobs for the worker.
type EmailPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

type Service struct {
	Repo    repo.IdentityRepository
	JWT     *helpers.JWTManager
	Redis   *redis.Client
	Logger  *logrus.Logger
	ES      *elasticsearch.Client
	ESIndex string
	Cfg     *config.Config
	Mail    EmailPublisher

	now func() time.Time
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func NewService(repo repo.IdentityRepository, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, cfg *config.Config) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Service{
		Repo:    repo,
		JWT:     jwt,
		Redis:   rdb,
		Logger:  logger,
		ES:      es,
		ESIndex: cfg.ESIdentitiesIndex,
		Cfg:     cfg,
		now:     time.Now,
	}
}

// SetPublisher enables email jobs. A nil publisher leaves them disabled.
func (s *Service) SetPublisher(p *helpers.RabbitPublisher) {
	if p == nil {
		s.Mail = nil
		return
	}
	s.Mail = p
}

type SignupInput struct {
	Email        string
	Password     string
	Name         string
	Institution  string
	FieldOfStudy string
	Year         int
	Bio          string
	Anonymous    bool
}

// Signup registers an identity and opens a session for it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*entity.Identity, TokenPair, error) {
	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	u := entity.NewIdentity(entity.ProfileFields{
		Email:        in.Email,
		Name:         in.Name,
		Institution:  in.Institution,
		FieldOfStudy: in.FieldOfStudy,
		Year:         in.Year,
		Bio:          in.Bio,
		Anonymous:    in.Anonymous,
	}, s.now())
	if err := s.Repo.Create(ctx, u, hash); err != nil {
		if !errors.Is(err, entity.ErrEmailTaken) {
			s.Logger.WithError(err).WithField("email", u.Email).Error("create identity failed")
		}
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	_ = s.indexIdentity(ctx, u)
	s.publish(ctx, u.Email, mailtpl.NewWelcomeData(s.Cfg, u.Name, u.Email, u.Institution, u.Verified, mailtpl.WithTime(s.now())))
	s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "verified": u.Verified}).Info("identity registered")
	return u, pair, nil
}

// Authenticate validates email/password and returns the identity without issuing tokens.
// Only an unknown email or a wrong password yields ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.Identity, error) {
	u, hash, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, entity.ErrIdentityNotFound) || (err == nil && u == nil) {
		return nil, entity.ErrInvalidCredentials
	}
	if err != nil {
		s.Logger.WithError(err).Error("lookup identity by email failed")
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if !helpers.CheckPassword(hash, password) {
		return nil, entity.ErrInvalidCredentials
	}
	return u, nil
}

// IssueTokens generates access/refresh tokens and records a session in Redis.
func (s *Service) IssueTokens(ctx context.Context, u *entity.Identity) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, sid)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		return TokenPair{}, err
	}

	if s.Redis != nil {
		fields := map[string]any{
			"user_id":    u.ID,
			"email":      u.Email,
			"name":       u.Name,
			"sid":        sid,
			"purpose":    helpers.PurposeSession,
			"created_at": nowRFC3339(),
		}
		key := helpers.SessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.JWT.RefreshTTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*entity.Identity, TokenPair, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, *entity.Identity, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil || claims.Purpose != helpers.PurposeSession {
		return TokenPair{}, nil, entity.ErrInvalidCredentials
	}
	if !s.sessionMatches(ctx, helpers.SessionKey(claims.UserID), claims.SessionID) {
		return TokenPair{}, nil, entity.ErrInvalidCredentials
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil || u == nil {
		return TokenPair{}, nil, entity.ErrInvalidCredentials
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, u, nil
}

// Logout drops the session identified by sid. Unknown or stale sessions are ignored.
func (s *Service) Logout(ctx context.Context, userID, purpose, sid string) {
	if s.Redis == nil || userID == "" {
		return
	}
	key := helpers.SessionKeyFor(purpose, userID)
	if !s.sessionMatches(ctx, key, sid) {
		return
	}
	if err := s.Redis.Del(ctx, key).Err(); err != nil {
		s.Logger.WithError(err).WithField("key", key).Warn("drop session failed")
	}
}

// CurrentSession describes the caller's session for the given token.
func (s *Service) CurrentSession(ctx context.Context, userID, purpose, access string, exp time.Time) (*entity.AuthSession, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &entity.AuthSession{
		Identity:        u,
		AccessToken:     access,
		AccessExpiresAt: exp,
		Purpose:         purpose,
	}, nil
}

func (s *Service) sessionMatches(ctx context.Context, key, sid string) bool {
	if s.Redis == nil {
		return true
	}
	return helpers.SessionLive(ctx, s.Redis, key, sid)
}

// RequestPasswordReset issues a recovery token pair for email and enqueues the
// reset email. It returns the reset link, or "" when the email is unknown.
func (s *Service) RequestPasswordReset(ctx context.Context, email, ip, userAgent string) (string, error) {
	u, _, err := s.Repo.GetByEmail(ctx, email)
	if err != nil || u == nil {
		s.Logger.WithField("email", email).Info("reset requested for unknown email")
		return "", nil
	}
	ttl := s.Cfg.RecoveryTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	sid := uuid.NewString()
	access, refresh, _, err := s.JWT.GenerateRecoveryPair(u.ID, sid, ttl)
	if err != nil {
		return "", err
	}
	if s.Redis != nil {
		key := helpers.RecoveryKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]any{
			"user_id":    u.ID,
			"sid":        sid,
			"purpose":    helpers.PurposeRecovery,
			"created_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, ttl)
		if _, rErr := pipe.Exec(ctx); rErr != nil {
			return "", rErr
		}
	}
	link := BuildRecoveryLink(s.Cfg.ResetPasswordURL, access, refresh)
	s.publish(ctx, u.Email, mailtpl.NewForgotPasswordData(s.Cfg, u.Name, u.Email,
		mailtpl.WithResetURL(link),
		mailtpl.WithExpiresIn(ttl),
		mailtpl.WithTime(s.now()),
		mailtpl.WithIP(ip),
		mailtpl.WithUserAgent(userAgent),
	))
	return link, nil
}

// BuildRecoveryLink places the recovery tokens in the URL fragment so they
// never reach server logs.
func BuildRecoveryLink(base, access, refresh string) string {
	v := url.Values{}
	v.Set("type", entity.RecoveryType)
	v.Set("access_token", access)
	v.Set("refresh_token", refresh)
	return base + "#" + v.Encode()
}

// EstablishRecovery validates a recovery token pair and returns the recovery session it proves.
func (s *Service) EstablishRecovery(ctx context.Context, access, refresh string) (*entity.AuthSession, error) {
	claims, err := s.JWT.ParseRecoveryPair(access, refresh)
	if err != nil {
		return nil, ErrInvalidRecovery
	}
	if !s.sessionMatches(ctx, helpers.RecoveryKey(claims.UserID), claims.SessionID) {
		return nil, ErrInvalidRecovery
	}
	u, err := s.GetProfile(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidRecovery
	}
	sess := &entity.AuthSession{
		Identity:     u,
		AccessToken:  access,
		RefreshToken: refresh,
		Purpose:      entity.PurposeRecovery,
	}
	if claims.ExpiresAt != nil {
		sess.AccessExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// UpdatePassword replaces the caller's password. A recovery session is
// consumed by the change, and every open session of the user is revoked.
func (s *Service) UpdatePassword(ctx context.Context, userID, purpose, sid, newPassword, ip, userAgent string) error {
	if !s.sessionMatches(ctx, helpers.SessionKeyFor(purpose, userID), sid) {
		return ErrSessionRevoked
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, userID, hash); err != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Error("update password failed")
		return err
	}
	if s.Redis != nil {
		if err := s.Redis.Del(ctx, helpers.RecoveryKey(userID), helpers.SessionKey(userID)).Err(); err != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("revoke sessions failed")
		}
	}
	if u, err := s.GetProfile(ctx, userID); err == nil {
		s.publish(ctx, u.Email, mailtpl.NewPasswordChangedData(s.Cfg, u.Name, u.Email,
			mailtpl.WithTime(s.now()),
			mailtpl.WithIP(ip),
			mailtpl.WithUserAgent(userAgent),
		))
	}
	s.Logger.WithFields(logrus.Fields{"user_id": userID, "purpose": purpose}).Info("password updated")
	return nil
}

func (s *Service) publish(ctx context.Context, to string, data map[string]any) {
	if s.Mail == nil || !s.Cfg.MailSendEnabled {
		return
	}
	job := mailer.NewTemplateJob(to, data)
	if err := s.Mail.PublishJSON(ctx, job); err != nil {
		s.Logger.WithError(err).WithField("to", to).Warn("failed to publish email job")
	}
}
