package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/mockup-studio/internal/api"
	"github.com/timmy/mockup-studio/internal/app"
	"github.com/timmy/mockup-studio/internal/config"
	"github.com/timmy/mockup-studio/internal/logger"
)

func main() {
	// CONFIG_PATH points at a config file in production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := app.NewLogger(&cfg.Log, "mockup-studio-api")
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	studio, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer studio.Close()

	studio.Dispatcher.Start(ctx)

	router := api.SetupRouter(&cfg.Server, &api.Deps{
		Dispatcher:    studio.Dispatcher,
		Broker:        studio.Broker,
		Samples:       studio.Samples,
		GenerationLog: studio.GenerationLog,
		DB:            studio.DB,
		Logger:        appLogger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	// Cancels the running job; its runner records it as cancelled.
	stop()
	studio.Dispatcher.Wait()

	appLogger.Info("Server exited")
}
