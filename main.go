package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/location"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/pkg/config"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/server"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	if err := logger.Init(zapcore.InfoLevel, zap.String("service", "perez-core")); err != nil {
		return err
	}
	lg := logger.Log
	defer lg.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	otelShutdown, err := server.InitObservability("perez-core", ":"+cfg.MetricsPort, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			lg.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer srv.Close()

	if err := srv.Bootstrap(ctx); err != nil {
		return err
	}

	router := server.SetupRouter(cfg, srv.Store(), srv.Ready(), lg)
	srv.SetRouter(router)

	// Expired locations are swept in the background on top of the
	// TTL the backend may enforce natively.
	pruner := location.NewPruner(srv.Store(), cfg.PruneInterval, lg)
	go pruner.Run(ctx)

	// Start pprof server (on separate port, not exposed publicly)
	server.StartPprofServer(":6060")

	httpServer := srv.HTTPServer()

	done := make(chan bool, 1)
	go server.GracefulShutdown(httpServer, lg, done)

	lg.Info("Server starting",
		zap.String("port", cfg.ServerPort),
		zap.String("backend", string(cfg.Storage.Backend)))
	if err := httpServer.ListenAndServe(); err != nil {
		lg.Error("Server error", zap.Error(err))
	}

	<-done
	lg.Info("Graceful shutdown complete")

	return nil
}
