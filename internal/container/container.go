// Package container builds and owns the process-wide clients of the API
// server. Optional clients (GCS, Elasticsearch, RabbitMQ) stay nil when not
// configured or unreachable.
package container

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/config"
	pginfra "github.com/oksasatya/campus-identity/internal/infrastructure/postgres"
	"github.com/oksasatya/campus-identity/pkg/helpers"
)

type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	PG     *pgxpool.Pool
	Redis  *redis.Client
	GCS    *storage.Client
	ES     *elasticsearch.Client
	Rabbit *helpers.RabbitPublisher
	JWT    *helpers.JWTManager

	closers []func()
}

// New connects the required stores (Postgres, Redis) and whatever optional
// services are configured. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (c *Container, err error) {
	c = &Container{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if c.PG, err = pginfra.NewPool(ctx, cfg); err != nil {
		return nil, err
	}
	c.onClose(c.PG.Close)
	if err = pginfra.Migrate(cfg, logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	c.Redis = helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	c.onClose(func() { _ = c.Redis.Close() })
	if err = c.Redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if cfg.GCSBucket != "" {
		if c.GCS, err = helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath); err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		c.onClose(func() { _ = c.GCS.Close() })
	}

	if es, esErr := helpers.NewESClient(cfg.ElasticsearchAddrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass); esErr != nil {
		logger.WithError(esErr).Warn("elasticsearch disabled")
	} else {
		c.ES = es
	}

	if cfg.MailSendEnabled && cfg.RabbitMQURL != "" {
		pub, pubErr := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if pubErr != nil {
			logger.WithError(pubErr).Warn("rabbitmq unavailable; emails will not be sent")
		} else {
			c.Rabbit = pub
			c.onClose(pub.Close)
		}
	}

	c.JWT = helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	return c, nil
}

func (c *Container) onClose(fn func()) { c.closers = append(c.closers, fn) }

// Close releases clients in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// HealthChecks reports the liveness probes of the required stores.
func (c *Container) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if c.PG != nil {
		checks["postgres"] = c.PG.Ping
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	return checks
}
