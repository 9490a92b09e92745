package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/config"
	app "github.com/oksasatya/campus-identity/internal/application"
	"github.com/oksasatya/campus-identity/internal/domain/entity"
	"github.com/oksasatya/campus-identity/internal/interface/middleware"
	"github.com/oksasatya/campus-identity/pkg/helpers"
	"github.com/oksasatya/campus-identity/pkg/response"
	"github.com/oksasatya/campus-identity/pkg/validation"
)

type AuthHandler struct {
	Svc     *app.Service
	Logger  *logrus.Logger
	Cfg     *config.Config
	Cookies *helpers.CookieManager
}

func NewAuthHandler(svc *app.Service, logger *logrus.Logger, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cfg: cfg, Cookies: helpers.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure)}
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString(middleware.CtxRealIP); ip != "" {
		return ip
	}
	return c.ClientIP()
}

type signupRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,pwd"`
	Name         string `json:"name" binding:"max=120"`
	Institution  string `json:"institution" binding:"max=200"`
	FieldOfStudy string `json:"field_of_study" binding:"max=200"`
	Year         int    `json:"year" binding:"omitempty,studyyear"`
	Bio          string `json:"bio" binding:"max=2000"`
	Anonymous    bool   `json:"anonymous"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type recoverySessionRequest struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type updatePasswordRequest struct {
	Password string `json:"password" binding:"required,pwd"`
}

// sessionPayload is the body returned by every endpoint that opens a session.
type sessionPayload struct {
	Identity         *entity.Identity `json:"identity"`
	AccessToken      string           `json:"access_token"`
	RefreshToken     string           `json:"refresh_token,omitempty"`
	AccessExpiresAt  time.Time        `json:"access_expires_at"`
	RefreshExpiresAt time.Time        `json:"refresh_expires_at,omitempty"`
	Purpose          string           `json:"purpose"`
}

func (h *AuthHandler) issue(c *gin.Context, status int, u *entity.Identity, pair app.TokenPair, msg string) {
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, status, sessionPayload{
		Identity:         u,
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessTokenExpiry,
		RefreshExpiresAt: pair.RefreshTokenExpiry,
		Purpose:          entity.PurposeSession,
	}, msg, nil)
}

// Signup POST /api/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, pair, err := h.Svc.Signup(c.Request.Context(), app.SignupInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		Institution:  req.Institution,
		FieldOfStudy: req.FieldOfStudy,
		Year:         req.Year,
		Bio:          req.Bio,
		Anonymous:    req.Anonymous,
	})
	if errors.Is(err, entity.ErrEmailTaken) {
		response.Error(c, http.StatusConflict, "An account with this email already exists", nil)
		return
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "signup failed", nil)
		return
	}
	h.issue(c, http.StatusCreated, u, pair, "signup successful")
}

// Login POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, entity.ErrInvalidCredentials) {
		response.Error(c, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}
	if err != nil {
		h.Logger.WithError(err).Error("login failed")
		response.Error(c, http.StatusInternalServerError, "login failed, try again", nil)
		return
	}
	h.issue(c, http.StatusOK, u, pair, "login successful")
}

// Refresh POST /api/refresh, refresh token from cookie or {"refresh_token"}
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, _ := c.Cookie(helpers.RefreshCookie)
	if refresh == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.ShouldBindJSON(&body)
		refresh = body.RefreshToken
	}
	if refresh == "" {
		response.Error(c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, u, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	h.issue(c, http.StatusOK, u, pair, "token refreshed")
}

// Logout POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Svc.Logout(c.Request.Context(), c.GetString(middleware.CtxUserID), c.GetString(middleware.CtxTokenPurpose), c.GetString(middleware.CtxSessionID))
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

// Session GET /api/session
func (h *AuthHandler) Session(c *gin.Context) {
	exp := c.GetTime(middleware.CtxTokenExpiry)
	sess, err := h.Svc.CurrentSession(c.Request.Context(),
		c.GetString(middleware.CtxUserID),
		c.GetString(middleware.CtxTokenPurpose),
		c.GetString(middleware.CtxAccessToken),
		exp,
	)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "session not found", nil)
		return
	}
	response.Success(c, http.StatusOK, sessionPayload{
		Identity:        sess.Identity,
		AccessToken:     sess.AccessToken,
		AccessExpiresAt: sess.AccessExpiresAt,
		Purpose:         sess.Purpose,
	}, "session", nil)
}

// ResetInit POST /api/auth/reset/init {email}
// Always answers 200 so the endpoint cannot be used to probe for accounts.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	link, err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email, clientIP(c), c.GetHeader("User-Agent"))
	if err != nil {
		h.Logger.WithError(err).Warn("reset init failed")
	}
	data := gin.H{"sent": true}
	if h.Cfg.Env == "development" && link != "" {
		data["reset_link"] = link
	}
	response.Success(c, http.StatusOK, data, "If that email is registered, a reset link is on its way", nil)
}

// RecoverySession POST /api/auth/recovery/session {access_token, refresh_token}
func (h *AuthHandler) RecoverySession(c *gin.Context) {
	var req recoverySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	sess, err := h.Svc.EstablishRecovery(c.Request.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "Invalid or expired reset link", nil)
		return
	}
	response.Success(c, http.StatusOK, sessionPayload{
		Identity:        sess.Identity,
		AccessToken:     sess.AccessToken,
		RefreshToken:    sess.RefreshToken,
		AccessExpiresAt: sess.AccessExpiresAt,
		Purpose:         sess.Purpose,
	}, "recovery session established", nil)
}

// UpdatePassword PUT /api/auth/password {password}
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Password must be at least 6 characters", validation.ToDetails(err))
		return
	}
	err := h.Svc.UpdatePassword(c.Request.Context(),
		c.GetString(middleware.CtxUserID),
		c.GetString(middleware.CtxTokenPurpose),
		c.GetString(middleware.CtxSessionID),
		req.Password,
		clientIP(c),
		c.GetHeader("User-Agent"),
	)
	if errors.Is(err, app.ErrSessionRevoked) {
		response.Error(c, http.StatusUnauthorized, "Session expired. Please request a new password reset.", nil)
		return
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to update password", nil)
		return
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"updated": true}, "password updated", nil)
}
