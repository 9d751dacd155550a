package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/config"
	"github.com/vasiliy-maslov/grocery-storefront/internal/logger"
	"github.com/vasiliy-maslov/grocery-storefront/internal/mockapi"
)

func main() {
	cfg, err := config.LoadMock(".env")
	if err != nil {
		logger.Setup("mock-backend", "info", "console")
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup("mock-backend", cfg.App.LogLevel, cfg.App.LogFormat)

	store := mockapi.NewStore()
	store.Seed()
	server := mockapi.NewServer(store, mockapi.Options{
		RequireToken: cfg.Mock.RequireToken,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Mock.Port,
		Handler:      server.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Mock.Port).Msg("Starting mock backend")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Mock backend stopped")
}
