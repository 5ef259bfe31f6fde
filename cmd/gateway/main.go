package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sebas/voicebridge/internal/banner"
	"github.com/sebas/voicebridge/internal/gateway/config"
	"github.com/sebas/voicebridge/internal/gateway/events"
	"github.com/sebas/voicebridge/internal/gateway/media"
	"github.com/sebas/voicebridge/internal/gateway/metrics"
	"github.com/sebas/voicebridge/internal/gateway/presence"
	"github.com/sebas/voicebridge/internal/gateway/routing"
	"github.com/sebas/voicebridge/internal/gateway/session"
	"github.com/sebas/voicebridge/internal/gateway/transport/webrtc"
	"github.com/sebas/voicebridge/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		closer := logger.InitWithRotatingFile(cfg.LogFile, 100, 5)
		defer closer.Close()
	} else {
		logger.InitLogger(os.Stdout)
	}

	banner.Print("VoiceBridge Call Gateway", []banner.ConfigLine{
		{Label: "Bind", Value: fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port)},
		{Label: "Advertise", Value: cfg.AdvertiseAddr},
		{Label: "Node", Value: cfg.NodeID},
		{Label: "Trunk", Value: cfg.TrunkAddress},
		{Label: "Metrics", Value: cfg.MetricsAddr},
		{Label: "Log level", Value: cfg.LogLevel},
	})

	presenceStore := presence.NewStore(presence.StoreConfig{
		CleanupInterval: 30 * time.Second,
		DefaultExpires:  cfg.PresenceDefaultExpires,
		MinExpires:      cfg.PresenceMinExpires,
		MaxExpires:      cfg.PresenceMaxExpires,
	})
	defer presenceStore.Close()

	routerCfg := routing.DefaultConfig()
	routerCfg.TrunkAddress = cfg.TrunkAddress
	routerCfg.LookupTimeout = cfg.LookupTimeout
	router := routing.NewRouter(routerCfg, presenceStore)

	registry := session.NewRegistry()
	defer registry.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	publisher := events.NewLoggingPublisher(slog.Default())
	defer publisher.Close()

	engineCfg := session.DefaultEngineConfig(cfg.NodeID)
	engineCfg.RetryPolicy = routing.RetryPolicy{
		BaseDelay:   cfg.RetryBaseDelay,
		Multiplier:  cfg.RetryMultiplier,
		MaxAttempts: cfg.RetryMaxAttempts,
	}
	engineCfg.NegotiationTimeout = cfg.NegotiationTimeout

	factory := func(ctx context.Context, sessionID string) (media.Transport, error) {
		return webrtc.New(webrtc.Config{STUNServer: cfg.STUNServer})
	}

	engine := session.NewEngine(engineCfg, registry, router, presenceStore, publisher, m, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	slog.Info("VoiceBridge gateway started",
		"bind", cfg.BindAddr,
		"port", cfg.Port,
		"node", cfg.NodeID,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Received signal, shutting down", "signal", sig)
	cancel()

	shutdown(engine, registry)
	time.Sleep(500 * time.Millisecond)
}

// serveMetrics exposes the Prometheus endpoint until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics available", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Metrics server error", "error", err)
	}
}

// shutdown hangs up every active call before exit.
func shutdown(engine *session.Engine, registry *session.Registry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	registry.ForEach(func(s *session.CallSession) bool {
		if !s.IsTerminated() {
			if err := engine.Hangup(ctx, s.ID, "system", session.CauseError); err != nil {
				slog.Warn("Failed to hang up session on shutdown", "call_id", s.ID, "error", err)
			}
		}
		return true
	})
}
