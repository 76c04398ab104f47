// Roundhouse is a bus-driven utterance dispatch daemon: it routes
// natural-language utterances through an ordered pipeline of interpreter
// stages until one claims them, then forwards the result to the owning
// handler over the message bus.
//
// Usage:
//
//	roundhouse [flags]
//	roundhouse --config /path/to/roundhouse.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nadzzz/roundhouse/internal/bus"
	"github.com/nadzzz/roundhouse/internal/config"
	"github.com/nadzzz/roundhouse/internal/gateway"
	"github.com/nadzzz/roundhouse/internal/health"
	"github.com/nadzzz/roundhouse/internal/intent"
	"github.com/nadzzz/roundhouse/internal/lang"
	"github.com/nadzzz/roundhouse/internal/pipeline"
	"github.com/nadzzz/roundhouse/internal/session"
	"github.com/nadzzz/roundhouse/internal/stage"
	"github.com/nadzzz/roundhouse/internal/transform"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/roundhouse.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("roundhouse %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("roundhouse starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize the message bus backend.
	var msgBus bus.Bus
	switch cfg.Bus.Backend {
	case "mqtt":
		msgBus, err = bus.NewMQTT(bus.MQTTOptions{
			Broker:      cfg.Bus.Broker,
			ClientID:    cfg.Bus.ClientID,
			TopicPrefix: cfg.Bus.TopicPrefix,
			QoS:         byte(cfg.Bus.QoS),
		})
		if err != nil {
			slog.Error("failed to connect message bus", "error", err)
			os.Exit(1)
		}
		slog.Info("using mqtt bus", "broker", cfg.Bus.Broker, "prefix", cfg.Bus.TopicPrefix)
	case "inproc":
		msgBus = bus.NewInproc()
		slog.Info("using in-process bus")
	default:
		slog.Error("unknown bus backend", "backend", cfg.Bus.Backend)
		os.Exit(1)
	}

	// Language disambiguation.
	langs, err := lang.New(cfg.Lang.Enabled, cfg.Lang.Default)
	if err != nil {
		slog.Error("invalid language configuration", "error", err)
		os.Exit(1)
	}

	// Session store.
	store := session.NewStore(msgBus, cfg.Session.TTL, cfg.Lang.Default)

	// Stage registry: external interpreter plugins would register here.
	// Every configured slot left unbound is filled once, now — the
	// catch-all when enabled for the lowest fallback slot, a declining
	// placeholder otherwise.
	registry := pipeline.NewRegistry()
	if cfg.Pipeline.CatchAll.Enabled && !registry.Has("fallback_low") {
		registry.Register(stage.CatchAll("fallback_low", cfg.Pipeline.CatchAll.IntentType))
	}
	for _, name := range cfg.Pipeline.Stages {
		if !registry.Has(name) {
			registry.Register(stage.Decline(name))
		}
	}
	slog.Info("pipeline configured", "stages", cfg.Pipeline.Stages)

	dispatcher := pipeline.NewDispatcher(registry, cfg.Pipeline.Stages)

	// Transformer chain: plugins are supplied at startup; none built in.
	transforms := transform.NewService(nil, nil)

	// Intent service and its bus subscriptions.
	svc := intent.New(msgBus, store, transforms, dispatcher, langs, cfg.Sounds.Error)
	if err := svc.Register(msgBus); err != nil {
		slog.Error("failed to subscribe intent service", "error", err)
		os.Exit(1)
	}

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort)
	healthServer.SetComponent("bus", true)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start the HTTP gateway.
	var gw *gateway.Server
	if cfg.Server.GatewayEnabled {
		gw = gateway.New(cfg.Server.GatewayPort, msgBus)
		healthServer.SetComponent("gateway", false)
		go func() {
			healthServer.SetComponent("gateway", true)
			if err := gw.ListenAndServe(ctx); err != nil {
				slog.Error("gateway failed", "error", err)
				healthServer.SetComponent("gateway", false)
			}
		}()
	}

	slog.Info("roundhouse ready",
		"bus", cfg.Bus.Backend,
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")

	if gw != nil {
		if err := gw.Close(); err != nil {
			slog.Error("gateway close error", "error", err)
		}
	}
	if err := msgBus.Close(); err != nil {
		slog.Error("bus close error", "error", err)
	}

	slog.Info("roundhouse stopped")
}
