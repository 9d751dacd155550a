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
	"github.com/vasiliy-maslov/grocery-storefront/internal/apiclient"
	"github.com/vasiliy-maslov/grocery-storefront/internal/cart"
	"github.com/vasiliy-maslov/grocery-storefront/internal/config"
	storefrontHttp "github.com/vasiliy-maslov/grocery-storefront/internal/handler/http"
	"github.com/vasiliy-maslov/grocery-storefront/internal/logger"
	"github.com/vasiliy-maslov/grocery-storefront/internal/order"
	"github.com/vasiliy-maslov/grocery-storefront/internal/session"
	"github.com/vasiliy-maslov/grocery-storefront/internal/storage"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logger.Setup("storefront", "info", "console")
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Setup("storefront", cfg.App.LogLevel, cfg.App.LogFormat)

	log.Info().Str("storage", cfg.Storage.Driver).Str("api", cfg.API.BaseURL).Msg("Storefront starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	sess := session.New(store)
	if err := sess.Restore(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to restore session, continuing as guest")
	}

	client, err := apiclient.New(apiclient.Config{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		RetryMax: cfg.API.RetryMax,
	}, sess)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create API client")
	}

	engine := cart.NewEngine(ctx, cart.NewRepository(store), sess, client)
	defer engine.Close()

	orderSvc := order.NewService(client, sess)
	poller := order.NewPoller(orderSvc, sess, cfg.Delivery.PollInterval, func(active []order.Delivery) {
		log.Info().Int("active_deliveries", len(active)).Msg("Active deliveries changed")
	})
	go poller.Run(ctx)

	router := storefrontHttp.NewRouter(
		storefrontHttp.NewSessionHandler(sess),
		storefrontHttp.NewCartHandler(engine),
		storefrontHttp.NewOrderHandler(orderSvc, poller),
	)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Storefront stopped")
}
