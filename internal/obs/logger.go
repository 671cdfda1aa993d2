package obs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level  string
	Pretty bool
	App    string
	Env    string
	Ver    string
	// Component names the binary inside the deployment: auth-api,
	// migrator, kafka-init.
	Component string
}

// NewLogger builds the process logger. Every entry carries service, env,
// version and component; stack traces are kept for errors only.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	var cfg zap.Config
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fields := []zap.Field{
		zap.String("service", c.App),
		zap.String("env", c.Env),
		zap.String("version", c.Ver),
	}
	if c.Component != "" {
		fields = append(fields, zap.String("component", c.Component))
	}
	return cfg.Build(
		zap.Fields(fields...),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// ForFlow scopes log to one auth flow of the current request.
func ForFlow(ctx context.Context, log *zap.Logger, flow string) *zap.Logger {
	if log == nil {
		return nil
	}
	return WithTrace(ctx, log).With(zap.String("flow", flow))
}

// TokenRef logs a short fingerprint of token instead of the token, so
// entries about the same token can be correlated.
func TokenRef(token string) zap.Field {
	if token == "" {
		return zap.Skip()
	}
	sum := sha256.Sum256([]byte(token))
	return zap.String("token_ref", hex.EncodeToString(sum[:6]))
}
