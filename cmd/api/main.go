package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energy-exchange/internal/config"
	"energy-exchange/internal/interfaces/router"
	"energy-exchange/internal/pkg/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	logging.Setup(cfg.LogLevel, cfg.IsProduction())

	app, rt, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rt.DB != nil {
		sqlDB, err := rt.DB.DB()
		if err != nil {
			log.Fatal().Err(err).Msg("database handle")
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		log.Info().Msg("database connected")
		defer sqlDB.Close()
	}
	if rt.Rdb != nil {
		if err := rt.Rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		log.Info().Msg("redis connected")
		defer rt.Rdb.Close()
	}

	go rt.Desk.RunJanitor(ctx, time.Minute, cfg.AttemptMaxAge)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("mode", string(rt.Desk.Mode())).Str("env", cfg.Env).Msg("server running")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
