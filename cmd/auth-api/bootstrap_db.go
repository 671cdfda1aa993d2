package main

import (
	"context"

	config "github.com/NordCoder/authgate/internal/config/auth-api"
	pg "github.com/NordCoder/authgate/internal/repository/postgres"
)

func initDB(ctx context.Context, cfg *config.Config) (*pg.DB, error) {
	return pg.New(ctx, cfg.DB)
}
