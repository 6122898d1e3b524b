package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"

	"github.com/Xombi17/MEETease/internal/adapters/http"
	"github.com/Xombi17/MEETease/internal/app"
	"github.com/Xombi17/MEETease/internal/core/usecases"
	"github.com/Xombi17/MEETease/internal/pkg/config"
	"github.com/Xombi17/MEETease/internal/pkg/logging"
	"github.com/Xombi17/MEETease/internal/pkg/telemetry"
)

const serviceName = "meetease-api"

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	backends := app.ConnectBackends(cfg, serviceName)
	defer backends.Close()

	providers := app.Providers(cfg, backends.CacheService())
	resolver := app.Resolver(cfg, providers)
	bridge := backends.Bridge(cfg)
	if !bridge.Enabled() {
		slog.Warn("session sync disabled, sessions are local to this instance")
	}

	sessions := usecases.NewSessionManager(bridge, resolver, app.DefaultSettings(cfg))
	defer sessions.Close()

	deps := &http.Dependencies{
		Sessions:      sessions,
		Providers:     providers,
		NATSConnected: backends.NATSConnected(),
		ValkeyPing:    backends.ValkeyPing(),
	}

	server := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "MEETease API",
	})
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		MaxAge:       3600,
	}))

	http.SetupRoutes(server, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "sync", bridge.Enabled())
		if err := server.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
