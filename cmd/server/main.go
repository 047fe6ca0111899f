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

	"pdf-annotation-sync/internal/config"
	"pdf-annotation-sync/internal/handler"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	// Wiring
	container, err := config.NewContainer()
	if err != nil {
		log.Fatalf("failed to build container: %v", err)
	}
	cfg := container.Config

	// Handlers
	highlightHandler := handler.NewHighlightHandler(
		container.HighlightService,
		container.Logger,
		cfg.GetMaxBodyBytes(),
	)

	rateLimiter := handler.NewRateLimiter(cfg.GetRateLimitRPS(), cfg.GetRateLimitBurst(), container.Logger)

	// Router
	router := handler.NewRouter(highlightHandler, handler.RouterOptions{
		AllowedOrigins: cfg.GetAllowedOrigins(),
		Middlewares: []mux.MiddlewareFunc{
			handler.RequestLogger(container.Logger),
			rateLimiter.Middleware,
		},
	})

	// start server
	server := &http.Server{
		Addr:              ":" + cfg.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			container.Logger.Error("Server failed to start", err)
			os.Exit(1)
		}
	}()
	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		container.Logger.Error("Server shutdown failed", err)
	}
	if err := container.Close(); err != nil {
		container.Logger.Error("Failed to close annotation store", err)
	}

	container.Logger.Info("Server exited")
}
