package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	config "github.com/NordCoder/authgate/internal/config/auth-api"
	"github.com/NordCoder/authgate/internal/obs"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("AUTHGATE_CONFIG"), "path to YAML config (optional)")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	logger.Info("starting auth-api", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(rootCtx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	events, err := initEvents(rootCtx, cfg, logger, db)
	if err != nil {
		logger.Fatal("events init", zap.Error(err))
	}
	defer events.Close()

	authSrv, err := buildAuthServer(cfg, logger, db, events)
	if err != nil {
		logger.Fatal("build auth", zap.Error(err))
	}

	grpcServer, grpcLn, health, err := buildGRPCServer(cfg, logger)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}
	go watchHealth(rootCtx, health, db, logger)

	grpcErrCh := make(chan error, 1)
	go func() { grpcErrCh <- serveGRPC(grpcServer, grpcLn, cfg, logger) }()

	httpSrv, closeHTTP, err := buildHTTPServer(cfg, authSrv)
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}
	defer closeHTTP()

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	metricsSrv := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, logger,
		obs.HealthCheck{Name: "postgres", Check: db.Ping},
	)

	relayDone := events.Start(rootCtx)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case err := <-grpcErrCh:
		if err != nil {
			logger.Error("grpc serve", zap.Error(err))
		}
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	health.Shutdown()
	_ = httpSrv.Shutdown(shCtx)
	_ = metricsSrv.Shutdown(shCtx)
	grpcServer.GracefulStop()

	select {
	case <-relayDone:
	case <-shCtx.Done():
		logger.Warn("outbox relay did not stop in time")
	}
	logger.Info("bye")
}
