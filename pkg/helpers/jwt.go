package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposeSession  = "session"
	PurposeRecovery = "recovery"
)

var ErrTokenPurpose = errors.New("token purpose mismatch")

// JWTManager handles generation and validation of JWT tokens
type JWTManager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}
}

// Claims ties a token to a user and to one server-side session (sid).
// Purpose separates ordinary sessions from password-recovery sessions.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	Purpose   string `json:"pur"`
	jwt.RegisteredClaims
}

func (m *JWTManager) GenerateAccessToken(userID, sid string) (string, time.Time, error) {
	return sign(m.AccessSecret, userID, sid, PurposeSession, m.AccessTTL)
}

func (m *JWTManager) GenerateRefreshToken(userID, sid string) (string, time.Time, error) {
	return sign(m.RefreshSecret, userID, sid, PurposeSession, m.RefreshTTL)
}

// GenerateRecoveryPair issues the access/refresh pair embedded in a reset link.
// Both halves expire after ttl.
func (m *JWTManager) GenerateRecoveryPair(userID, sid string, ttl time.Duration) (access, refresh string, exp time.Time, err error) {
	access, exp, err = sign(m.AccessSecret, userID, sid, PurposeRecovery, ttl)
	if err != nil {
		return "", "", time.Time{}, err
	}
	refresh, _, err = sign(m.RefreshSecret, userID, sid, PurposeRecovery, ttl)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return access, refresh, exp, nil
}

func sign(secret []byte, userID, sid, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := &Claims{
		UserID:    userID,
		SessionID: sid,
		Purpose:   purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(secret)
	return s, exp, err
}

func (m *JWTManager) ParseAccessToken(tokenStr string) (*Claims, error) {
	return parseToken(tokenStr, m.AccessSecret)
}

func (m *JWTManager) ParseRefreshToken(tokenStr string) (*Claims, error) {
	return parseToken(tokenStr, m.RefreshSecret)
}

// ParseRecoveryPair validates both halves of a recovery link and checks
// they belong to the same recovery session.
func (m *JWTManager) ParseRecoveryPair(access, refresh string) (*Claims, error) {
	ac, err := m.ParseAccessToken(access)
	if err != nil {
		return nil, err
	}
	rc, err := m.ParseRefreshToken(refresh)
	if err != nil {
		return nil, err
	}
	if ac.Purpose != PurposeRecovery || rc.Purpose != PurposeRecovery {
		return nil, ErrTokenPurpose
	}
	if ac.UserID != rc.UserID || ac.SessionID != rc.SessionID {
		return nil, errors.New("token pair mismatch")
	}
	return ac, nil
}

func parseToken(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
