package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/campus-identity/internal/interface/http"
	"github.com/oksasatya/campus-identity/internal/interface/middleware"
	"github.com/oksasatya/campus-identity/pkg/helpers"
)

// IdentityModule wires profile, directory search and document verification.
// All routes require a regular (non-recovery) session.
type IdentityModule struct {
	Profile      *handlers.IdentityHandler
	Verification *handlers.VerificationHandler
	JWT          *helpers.JWTManager
	Redis        *redis.Client
}

func NewIdentityModule(p *handlers.IdentityHandler, v *handlers.VerificationHandler, jwt *helpers.JWTManager, rdb *redis.Client) *IdentityModule {
	return &IdentityModule{Profile: p, Verification: v, JWT: jwt, Redis: rdb}
}

func (m *IdentityModule) Name() string { return "identity" }

func (m *IdentityModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Redis, m.JWT), middleware.SessionOnly())
	auth.Use(
		middleware.RateLimit(m.Redis, middleware.PerMinute(300), middleware.KeyByIP(), nil),
		middleware.RateLimit(m.Redis, middleware.PerMinute(120), middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("/profile", m.Profile.GetProfile)
		auth.PUT("/profile", m.Profile.UpdateProfile)
		auth.GET("/identities/search", m.Profile.Search)
	}

	verify := rg.Group("/verification")
	verify.Use(middleware.Auth(m.Redis, m.JWT), middleware.SessionOnly())
	verify.Use(middleware.RateLimit(m.Redis, middleware.PerMinute(10), middleware.KeyByUserID(), nil))
	{
		verify.POST("/documents", m.Verification.Upload)
	}
}
