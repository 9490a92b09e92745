package helpers

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the service logger: text in development, JSON elsewhere.
// level overrides the env default when it parses ("debug", "warn", ...).
func NewLogger(appName, env, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if env == "development" {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if lvl, err := logrus.ParseLevel(level); err == nil && level != "" {
		logger.SetLevel(lvl)
	}
	logger.AddHook(appHook{fields: logrus.Fields{"app": appName, "env": env}})
	logger.WithField("level", logger.GetLevel().String()).Info("logger initialized")
	return logger
}

// appHook stamps every entry with the service identity.
type appHook struct {
	fields logrus.Fields
}

func (appHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h appHook) Fire(e *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}
