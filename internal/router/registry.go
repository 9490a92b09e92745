package router

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/pkg/response"
)

const healthTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Registry collects modules and health checks and mounts them on /api.
type Registry struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
	logger *logrus.Logger

	middlewares []gin.HandlerFunc
	modules     []Module
	checks      map[string]HealthCheck
}

func NewRegistry(engine *gin.Engine, logger *logrus.Logger) *Registry {
	return &Registry{
		Engine: engine,
		API:    engine.Group("/api"),
		logger: logger,
		checks: map[string]HealthCheck{},
	}
}

func (r *Registry) Use(mw ...gin.HandlerFunc) {
	r.middlewares = append(r.middlewares, mw...)
}

func (r *Registry) Add(mod Module) {
	r.modules = append(r.modules, mod)
}

func (r *Registry) AddCheck(name string, check HealthCheck) {
	r.checks[name] = check
}

// RegisterAll mounts GET /api/health and every module, in the order added.
func (r *Registry) RegisterAll() {
	if len(r.middlewares) > 0 {
		r.API.Use(r.middlewares...)
	}
	r.API.GET("/health", r.health)
	for _, m := range r.modules {
		m.Register(r.API)
		r.logger.WithField("module", m.Name()).Debug("module registered")
	}
}

func (r *Registry) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := r.checks[name](ctx); err != nil {
			healthy = false
			status[name] = err.Error()
			r.logger.WithError(err).WithField("check", name).Warn("health check failed")
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		response.Error(c, http.StatusServiceUnavailable, "unhealthy", status)
		return
	}
	response.Success(c, http.StatusOK, status, "healthy", nil)
}
