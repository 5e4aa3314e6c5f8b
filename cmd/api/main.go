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
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/crimescope/internal/adapters/http"
	natsadapter "github.com/samirrijal/crimescope/internal/adapters/nats"
	"github.com/samirrijal/crimescope/internal/bootstrap"
	"github.com/samirrijal/crimescope/internal/core/ports"
	"github.com/samirrijal/crimescope/internal/pkg/config"
	"github.com/samirrijal/crimescope/internal/pkg/logging"
	"github.com/samirrijal/crimescope/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("crimescope-api")
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

	// Live map clients are fed from NATS when it is up, otherwise straight
	// from this process.
	hub := http.NewHub()
	var events ports.EventPublisher = hub
	var natsConn *nats.Conn

	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, relaying fetch events locally", "error", err)
		} else {
			defer pub.Close()
			events = pub
			natsConn = pub.Conn()

			sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
			if err != nil {
				slog.Warn("nats subscriber unavailable", "error", err)
			} else {
				defer sub.Close()
				if err := sub.SubscribeFetchEvents(ctx, "", hub.Broadcast); err != nil {
					slog.Warn("subscribe fetch events failed", "error", err)
				}
			}
		}
	}

	engine, err := bootstrap.NewEngine(ctx, cfg, events)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	deps := &http.Dependencies{
		Crimes:         engine.Crimes,
		Hub:            hub,
		NATS:           natsConn,
		KMLEnabled:     cfg.KML.Dir != "",
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		RateLimit:      cfg.Server.RateLimit,
	}
	if engine.Remote != nil {
		deps.Cache = engine.Remote
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "CrimeScope API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "ETag, Link, X-Cache, X-Coverage, X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
