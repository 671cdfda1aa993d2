package main

import (
	authn "github.com/NordCoder/authgate/internal/auth"
	config "github.com/NordCoder/authgate/internal/config/auth-api"
	pg "github.com/NordCoder/authgate/internal/repository/postgres"
	"github.com/NordCoder/authgate/internal/services/auth-api/auth"

	"go.uber.org/zap"
)

func buildAuthServer(cfg *config.Config, logger *zap.Logger, db *pg.DB, events *eventsHandle) (*auth.Server, error) {
	tokens, err := authn.NewTokenService(cfg.Auth.AsTokenConfig())
	if err != nil {
		return nil, err
	}

	uc := auth.NewUsecase(auth.Deps{
		Tx:       pg.NewTransactor(db, logger),
		Users:    pg.NewUserRepo(db),
		Subjects: pg.NewSubjectRepo(db),
		Revoked:  pg.NewRevokedTokenRepo(db),
		Outbox:   events.Repo,
		Tokens:   tokens,
		Hasher:   authn.NewBcryptHasher(cfg.Auth.BcryptCost),
		Logger:   logger.Named("auth"),
	}, auth.Config{
		RevocationGrace: cfg.Auth.RevocationGrace,
	})

	return auth.NewServer(uc, auth.Opts{
		Logger: logger.Named("auth.http"),
		Cookie: auth.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Path:   cfg.Auth.CookiePath,
			Domain: cfg.Auth.CookieDomain,
			Secure: cfg.Auth.CookieSecure,
			MaxAge: cfg.Auth.RefreshTTL,
		},
	}), nil
}
