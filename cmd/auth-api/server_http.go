package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	config "github.com/NordCoder/authgate/internal/config/auth-api"
	"github.com/NordCoder/authgate/internal/obs"
	"github.com/NordCoder/authgate/internal/services/auth-api/auth"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// buildHTTPServer serves the auth routes and /healthz, which asks the gRPC
// health service.
func buildHTTPServer(cfg *config.Config, authSrv *auth.Server) (*http.Server, func(), error) {
	conn, err := grpc.NewClient(
		dialAddr(cfg.Server.GRPCAddr),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("grpc client: %w", err)
	}

	mux := runtime.NewServeMux(
		runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)),
	)
	if err := authSrv.Register(mux); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	handler := obs.HTTPHandler(withCORS(cfg.Server.CORSOrigins)(mux), "auth-api")

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	return httpSrv, func() { _ = conn.Close() }, nil
}

func dialAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "localhost" + listen
	}
	return listen
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
