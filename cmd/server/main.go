package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/roomchat/internal/broadcast"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/log"
	"github.com/Tyrowin/roomchat/internal/moderation"
	"github.com/Tyrowin/roomchat/internal/registry"
	"github.com/Tyrowin/roomchat/internal/room"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default: ./config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.L().Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.L().Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.L().Error().Err(err).Msg("failed to close store")
		}
	}()
	log.L().Info().Str("driver", cfg.Store.Driver).Msg("store opened")

	moderator := moderation.FromConfig(cfg.Moderation)
	log.L().Info().Int("terms", moderator.Terms()).Msg("moderation loaded")

	engine := broadcast.New()
	directory := room.New(st, moderator, engine, cfg.Room)
	directory.Start()

	srv := server.New(cfg.Server, directory, engine, registry.New())
	srv.Start()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.L().Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.L().Error().Err(err).Msg("server error")
		}
	}

	if err := srv.Shutdown(); err != nil {
		log.L().Error().Err(err).Msg("server shutdown incomplete")
	}
	if err := directory.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		log.L().Error().Err(err).Msg("room directory shutdown incomplete")
	}

	log.L().Info().Msg("roomchat stopped")
}
