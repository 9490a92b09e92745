package router

import (
	"context"

	app "github.com/oksasatya/campus-identity/internal/application"
	"github.com/oksasatya/campus-identity/internal/application/verification"
	"github.com/oksasatya/campus-identity/internal/container"
	gcsinfra "github.com/oksasatya/campus-identity/internal/infrastructure/gcs"
	pginfra "github.com/oksasatya/campus-identity/internal/infrastructure/postgres"
	handlers "github.com/oksasatya/campus-identity/internal/interface/http"
	"github.com/oksasatya/campus-identity/internal/router/modules"
)

type identityDeps struct {
	Service      *app.Service
	Auth         *handlers.AuthHandler
	Profile      *handlers.IdentityHandler
	Verification *handlers.VerificationHandler
}

func buildIdentityDeps(c *container.Container) identityDeps {
	cfg, logger := c.Config, c.Logger
	service := app.NewService(pginfra.NewIdentityRepository(c.PG), c.JWT, c.Redis, logger, c.ES, cfg)
	service.SetPublisher(c.Rabbit)

	var previews verification.PreviewStore = verification.NewMemoryPreviewStore()
	if c.GCS != nil && cfg.GCSBucket != "" {
		previews = gcsinfra.NewPreviewStore(c.GCS, cfg.GCSBucket, cfg.GCSPreviewPrefix, logger)
	}
	classifier := verification.SizeClassifier{Threshold: cfg.VerifySizeThreshold, Delay: cfg.VerifyDelay}

	return identityDeps{
		Service:      service,
		Auth:         handlers.NewAuthHandler(service, logger, cfg),
		Profile:      handlers.NewIdentityHandler(service, logger),
		Verification: handlers.NewVerificationHandler(classifier, previews, logger),
	}
}

// InitModules wires every feature module and health check from c into r.
// Call once at startup, before RegisterAll.
func InitModules(ctx context.Context, r *Registry, c *container.Container) {
	deps := buildIdentityDeps(c)
	if err := deps.Service.EnsureIndex(ctx); err != nil {
		c.Logger.WithError(err).Warn("identity index not ready; search will be degraded")
	}

	r.Add(modules.NewAuthModule(deps.Auth, c.JWT, c.Redis))
	r.Add(modules.NewIdentityModule(deps.Profile, deps.Verification, c.JWT, c.Redis))
	if c.Config.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(c.Redis))
	}
	for name, check := range c.HealthChecks() {
		r.AddCheck(name, check)
	}
}
