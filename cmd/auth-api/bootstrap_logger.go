package main

import (
	config "github.com/NordCoder/authgate/internal/config/auth-api"
	"github.com/NordCoder/authgate/internal/obs"

	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.AsLoggerConfig())
}
