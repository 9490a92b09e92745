package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/campus-identity/internal/interface/http"
	"github.com/oksasatya/campus-identity/internal/interface/middleware"
	"github.com/oksasatya/campus-identity/pkg/helpers"
)

// AuthModule wires session and password-recovery routes.
// Public: POST /api/signup, /api/login, /api/refresh, /api/auth/reset/init, /api/auth/recovery/session
// Protected: POST /api/logout, GET /api/session, PUT /api/auth/password
type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
	Redis   *redis.Client
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager, rdb *redis.Client) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt, Redis: rdb}
}

func (m *AuthModule) Name() string { return "auth" }

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	signupLimiter := middleware.RateLimit(m.Redis, middleware.PerMinute(5), middleware.KeyByIP(), nil)
	loginLimiter := middleware.RateLimit(m.Redis, middleware.PerMinute(10), middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(m.Redis, middleware.PerMinute(60), middleware.KeyByIP(), nil)
	resetInitLimiter := middleware.RateLimit(m.Redis, middleware.PerMinute(5), middleware.KeyByIPAndPath(), nil)
	recoveryLimiter := middleware.RateLimit(m.Redis, middleware.PerMinute(30), middleware.KeyByIPAndPath(), nil)

	rg.POST("/signup", signupLimiter, m.Handler.Signup)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/auth/reset/init", resetInitLimiter, m.Handler.ResetInit)
	rg.POST("/auth/recovery/session", recoveryLimiter, m.Handler.RecoverySession)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Redis, m.JWT))
	auth.Use(middleware.RateLimit(m.Redis, middleware.PerMinute(30), middleware.KeyByUserID(), nil))
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/session", m.Handler.Session)
		auth.PUT("/auth/password", m.Handler.UpdatePassword)
	}
}
