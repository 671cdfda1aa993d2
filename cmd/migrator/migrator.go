package main

import (
	"flag"
	"os"

	"github.com/NordCoder/authgate/internal/obs"
	"github.com/NordCoder/authgate/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func main() {
	down := flag.Bool("down", false, "roll back the latest migration instead of applying")
	flag.Parse()

	logger, err := obs.NewLogger(obs.LogConfig{Level: "info", App: "authgate", Component: "migrator"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		logger.Fatal("DB_URL is empty")
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal("set dialect", zap.Error(err))
	}
	db, err := goose.OpenDBWithDriver("pgx", dbURL)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	if *down {
		err = goose.Down(db, ".")
	} else {
		err = goose.Up(db, ".")
	}
	if err != nil {
		logger.Fatal("migrate", zap.Bool("down", *down), zap.Error(err))
	}
	logger.Info("migrations applied", zap.Bool("down", *down))
}
