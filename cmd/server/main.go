package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"outsider/internal/config"
	"outsider/internal/db"
	"outsider/internal/game"
	"outsider/internal/logging"
	"outsider/internal/scenario"
	"outsider/internal/server"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	catalog := scenario.Default()
	if cfg.ScenariosFile != "" {
		loaded, err := scenario.LoadFile(cfg.ScenariosFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.ScenariosFile).Msg("failed to load scenarios")
		}
		catalog = loaded
	}
	log.Info().Int("scenarios", catalog.Len()).Int("capacity", catalog.Capacity()).Msg("scenario catalog ready")
	if fitted, changed := cfg.FitPlayers(catalog.Capacity()); changed {
		log.Warn().Int("min_players", cfg.MinPlayers).Int("using", fitted.MinPlayers).Msg("MIN_PLAYERS exceeds room capacity, lowering it")
		cfg = fitted
	}

	var recorder *server.Recorder
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(conn); err != nil {
				log.Fatal().Err(err).Msg("database migration failed")
			}
		}
		recorder = server.NewRecorder(conn, 1024)
	} else {
		log.Info().Msg("DATABASE_URL not set, round history disabled")
	}

	dir := game.NewDirectory(game.DirectoryConfig{
		Catalog:    catalog,
		MinPlayers: cfg.MinPlayers,
		MaxPlayers: cfg.MaxPlayers,
		StaleAfter: cfg.RoomStaleAfter(),
	})
	srv := server.New(dir, catalog, cfg, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go dir.RunSweeper(ctx, cfg.SweepInterval())

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr()).Strs("origins", cfg.AllowedOrigins).Msg("outsider server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("history drain")
	}
}
