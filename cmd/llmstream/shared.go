package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cronus42/goose"
	"github.com/cronus42/goose/observability"
	"github.com/cronus42/goose/providers/anthropic"
	"github.com/cronus42/goose/providers/bedrock"
	"github.com/cronus42/goose/providers/lorem"
)

// Exit codes.
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitInvalid     = 2
	ExitAuth        = 3
	ExitRateLimited = 4
)

// session is everything a command needs to talk to one provider.
type session struct {
	cfg      *llmprovider.Config
	provider llmprovider.Provider
	obs      *observability.Observability
	metrics  *http.Server
}

// openSession loads the configuration, applies flag overrides and builds the
// provider, wrapped with metrics and tracing when they are enabled.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := llmprovider.LoadConfig()
	if err != nil {
		return nil, err
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setupLogger(cfg.LogLevel)

	provider, err := newProvider(ctx, cfg, log.Logger)
	if err != nil {
		return nil, err
	}

	obs, err := observability.New(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, provider: obs.Wrap(provider), obs: obs}
	if obs.Metrics != nil {
		s.metrics = serveMetrics(cfg.MetricsAddr, obs.Metrics)
	}
	return s, nil
}

// Close flushes spans and stops the metrics endpoint.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.obs.Shutdown(ctx)
	if s.metrics != nil {
		_ = s.metrics.Shutdown(ctx)
	}
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

func newProvider(ctx context.Context, cfg *llmprovider.Config, logger zerolog.Logger) (llmprovider.Provider, error) {
	switch llmprovider.ProviderID(cfg.Provider) {
	case llmprovider.ProviderBedrock:
		opts := []bedrock.Option{
			bedrock.WithLogger(logger),
			bedrock.WithRetryConfig(cfg.Retry),
			bedrock.WithBufferSize(cfg.StreamBuffer),
		}
		if cfg.Model != "" {
			opts = append(opts, bedrock.WithDefaultModel(cfg.Model))
		}
		return bedrock.NewProvider(ctx, cfg, opts...)
	case llmprovider.ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithLogger(logger),
			anthropic.WithBufferSize(cfg.StreamBuffer),
		}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithDefaultModel(cfg.Model))
		}
		return anthropic.NewProvider(cfg, opts...)
	case llmprovider.ProviderLorem:
		return lorem.NewProvider(lorem.WithLogger(logger), lorem.WithBufferSize(cfg.StreamBuffer)), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func serveMetrics(addr string, metrics *observability.MetricsCollector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("metrics endpoint started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()
	return server
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case llmprovider.IsAuthError(err):
		return ExitAuth
	case llmprovider.IsInvalidRequest(err):
		return ExitInvalid
	case errors.Is(err, llmprovider.ErrRateLimited):
		return ExitRateLimited
	default:
		return ExitFailure
	}
}
