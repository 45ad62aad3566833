package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/debemdeboas/race-posts/internal/config"
	"github.com/debemdeboas/race-posts/internal/db"
	"github.com/debemdeboas/race-posts/internal/gateway"
	"github.com/debemdeboas/race-posts/internal/intake"
	"github.com/debemdeboas/race-posts/internal/logger"
	"github.com/debemdeboas/race-posts/internal/model"
	"github.com/debemdeboas/race-posts/internal/web"
)

//go:embed static/* templates/*
var content embed.FS

const sweepInterval = 5 * time.Minute

func main() {
	configPath := flag.String("config", config.Path(), "Path to the YAML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file loaded")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Msgf(config.ErrLoadConfigFmt, err)
	}

	l := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	config.SetLogger(l)
	db.SetLogger(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, l)
	if err != nil {
		l.Fatal().Msgf(config.ErrBuildGatewayFmt, err)
	}
	defer app.backends.Close()

	go app.server.Sessions().Run(ctx, sweepInterval, func(dropped int) {
		l.Debug().Int("dropped", dropped).Msg("Expired form sessions swept")
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	l.Info().Str("addr", srv.Addr).Msg("Server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Fatal().Err(err).Msg("Server stopped")
	}
	l.Info().Msg("Server stopped")
}

type app struct {
	backends *gateway.Backends
	server   *web.Server
}

func newApp(ctx context.Context, cfg *config.Config, l zerolog.Logger) (*app, error) {
	backends, err := gateway.Open(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	server, err := web.New(backends.Gateway, content, web.Options{
		Owner:          model.UserID(cfg.Identity.DefaultOwner),
		Policy:         intake.Policy{MaxBytes: cfg.Image.MaxBytes},
		DiscardOrphans: cfg.Blob.DiscardOrphans,
		Logger:         l,
	})
	if err != nil {
		backends.Close()
		return nil, err
	}

	// Images kept in memory are only reachable through this server.
	if blobs, ok := backends.Blobs.(*gateway.MemoryBlobStore); ok {
		server.Handle(blobs.BasePath(), blobs)
	}

	return &app{backends: backends, server: server}, nil
}
