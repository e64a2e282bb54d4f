package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/voicebridge/vad-engine/pkg/config"
	"github.com/voicebridge/vad-engine/pkg/metrics"
	"github.com/voicebridge/vad-engine/pkg/server"
	"github.com/voicebridge/vad-engine/pkg/session"
	"github.com/voicebridge/vad-engine/pkg/trace"
	"github.com/voicebridge/vad-engine/pkg/vad"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceCfg := trace.DefaultConfig()
	traceCfg.ExporterType = cfg.Tracing.Exporter
	traceCfg.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	traceCfg.SamplingRate = cfg.Tracing.SamplingRate
	if err := trace.Initialize(ctx, traceCfg); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			log.Printf("Tracing shutdown: %v", err)
		}
	}()

	mets := metrics.New(prometheus.DefaultRegisterer)

	manager := session.NewManager(session.ManagerConfig{
		SessionTimeout:  cfg.Sessions.GetSessionTimeout(),
		CleanupInterval: cfg.Sessions.GetCleanupInterval(),
		Backend:         vad.Backend(cfg.Sessions.Backend),
		Debug:           cfg.Sessions.Debug,
	}, vad.SystemClock{}, mets)
	defer manager.Close()

	srv := server.NewServer(server.ServerConfig{
		Addr:            cfg.Server.Addr,
		WSPath:          cfg.Server.WSPath,
		AuthToken:       cfg.Server.AuthToken,
		ControlTimeout:  cfg.Server.GetControlTimeout(),
		ReadBufferSize:  cfg.Server.ReadBufferSize,
		WriteBufferSize: cfg.Server.WriteBufferSize,
	}, manager, mets)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
