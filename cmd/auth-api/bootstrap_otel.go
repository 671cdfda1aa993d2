package main

import (
	"context"

	config "github.com/NordCoder/authgate/internal/config/auth-api"
	"github.com/NordCoder/authgate/internal/obs"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.AsOTELConfig())
	if err != nil {
		return nil, err
	}
	return closer.Shutdown, nil
}
