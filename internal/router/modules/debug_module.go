package modules

import (
	"expvar"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/campus-identity/internal/interface/middleware"
)

// DebugModule serves expvar counters (verification outcomes among them) to
// private networks only.
type DebugModule struct {
	Redis *redis.Client
}

func NewDebugModule(rdb *redis.Client) *DebugModule { return &DebugModule{Redis: rdb} }

func (m *DebugModule) Name() string { return "debug" }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rg.GET("/debug/vars",
		middleware.Only(middleware.AllowPrivateIP()),
		middleware.RateLimit(m.Redis, middleware.PerMinute(120), middleware.KeyByIP(), nil),
		gin.WrapH(expvar.Handler()),
	)
}
