// Package cli is the campus command-line client. It hosts the session
// manager, the password-recovery controller and the document verification
// machine on top of the identity provider's HTTP API.
package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/config"
	"github.com/oksasatya/campus-identity/internal/application/session"
	"github.com/oksasatya/campus-identity/internal/domain/repository"
	"github.com/oksasatya/campus-identity/internal/infrastructure/httpgateway"
	"github.com/oksasatya/campus-identity/internal/infrastructure/kvstore"
	"github.com/oksasatya/campus-identity/pkg/helpers"
)

const redisKeyPrefix = "campus:"

// App holds what every command needs, built once per invocation.
type App struct {
	Cfg      *config.Config
	Logger   *logrus.Logger
	Gateway  *httpgateway.Client
	Sessions *session.Manager

	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	a := &App{Cfg: cfg, Logger: logger}
	kv, err := a.openStore()
	if err != nil {
		return nil, err
	}
	store := session.NewStore(ctx, kv, cfg.SessionKey, logger)
	a.Gateway = httpgateway.New(ctx, cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPClientTimeout}, kv, cfg.SessionKey+".auth", logger)
	a.Sessions = session.NewManager(store, a.Gateway, logger)
	return a, nil
}

func (a *App) openStore() (repository.KeyValueStore, error) {
	switch a.Cfg.SessionBackend {
	case "redis":
		rdb := helpers.NewRedisClient(a.Cfg.RedisAddr, a.Cfg.RedisPassword, a.Cfg.RedisDB)
		a.closers = append(a.closers, rdb.Close)
		return kvstore.NewRedisStore(rdb, redisKeyPrefix), nil
	case "", "file":
		path := a.Cfg.SessionFile
		if path == "" {
			p, err := kvstore.DefaultFilePath()
			if err != nil {
				return nil, fmt.Errorf("locate session file: %w", err)
			}
			path = p
		}
		return kvstore.NewFileStore(path), nil
	default:
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q (want file or redis)", a.Cfg.SessionBackend)
	}
}

func (a *App) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}
