package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/shopfront/internal/checkout"
	"github.com/Skotchmaster/shopfront/internal/config"
	"github.com/Skotchmaster/shopfront/internal/events"
	"github.com/Skotchmaster/shopfront/internal/httpserver"
	"github.com/Skotchmaster/shopfront/internal/localstore"
	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/reconcile"
	"github.com/Skotchmaster/shopfront/internal/remote"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	kv, err := localstore.Open(initCtx, cfg.LocalStore)
	cancel()
	if err != nil {
		log.Fatalf("local store init error: %v", err)
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	}

	local := localstore.NewAdapter(kv, localstore.WithLogger(logger))
	client := remote.NewClient(cfg.APIBaseURL,
		remote.WithTimeout(cfg.RemoteTimeout),
		remote.WithRateLimit(cfg.RemoteRPS, 10),
		remote.WithLogger(logger),
	)

	notices := reconcile.NewNotices(0)
	storeOpts := []reconcile.Option{
		reconcile.WithNotices(notices),
		reconcile.WithPublisher(pub),
		reconcile.WithLogger(logger),
	}
	cart := reconcile.NewCartStore(local, client, storeOpts...)
	wishlist := reconcile.NewWishlistStore(local, client, storeOpts...)
	orders := checkout.NewService(cart, client, local, checkout.WithPublisher(pub), checkout.WithLogger(logger))

	syncCtx, cancel := context.WithTimeout(logging.IntoContext(context.Background(), logger), cfg.RemoteTimeout)
	if err := cart.Sync(syncCtx); err != nil {
		logger.Warn("startup_cart_sync_degraded", "error", err)
	}
	if err := wishlist.Sync(syncCtx); err != nil {
		logger.Warn("startup_wishlist_sync_degraded", "error", err)
	}
	cancel()

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	for _, m := range httpserver.Common(logger) {
		e.Use(m)
	}
	if cfg.CSRFProtect {
		e.Use(httpserver.CSRF(httpserver.DefaultCSRFConfig()))
	}

	httpserver.Register(e, &httpserver.Deps{
		Local:    local,
		Remote:   client,
		Cart:     cart,
		Wishlist: wishlist,
		Notices:  notices,
		Checkout: orders,
	})

	go func() {
		logger.Info("storefront listening", "addr", cfg.ListenAddr, "api", cfg.APIBaseURL, "mode", cfg.Mode)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
	if err := pub.Close(); err != nil {
		logger.Error("event publisher close", "error", err)
	}
	if err := kv.Close(); err != nil {
		logger.Error("local store close", "error", err)
	}

	logger.Info("shutdown complete")
}
