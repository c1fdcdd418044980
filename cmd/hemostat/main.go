package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jondmarien/hemostat/internal/agentrt"
	"github.com/jondmarien/hemostat/internal/alertagent"
	"github.com/jondmarien/hemostat/internal/analyzer"
	"github.com/jondmarien/hemostat/internal/broker"
	"github.com/jondmarien/hemostat/internal/clock"
	"github.com/jondmarien/hemostat/internal/config"
	"github.com/jondmarien/hemostat/internal/kvstore"
	"github.com/jondmarien/hemostat/internal/logging"
	"github.com/jondmarien/hemostat/internal/monitor"
	"github.com/jondmarien/hemostat/internal/notify"
	"github.com/jondmarien/hemostat/internal/responder"
	"github.com/jondmarien/hemostat/internal/runtime"
)

// version is set at build time via -X main.version=$(VERSION).
var version = "dev"

// backendFactory opens a fresh broker+store connection pair for one agent.
// In standalone mode every agent must share the same pair (the in-process
// broker only delivers between subscribers registered on the same
// broker.Broker, and the embedded Bolt file can only be held open by one
// handle); in networked mode each agent dials its own Redis/MQTT
// connection, the same as if it were its own process.
type backendFactory func() (kvstore.Store, broker.Broker, error)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	subcommand := os.Args[1]

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogJSON)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if subcommand == "audit" {
		if len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: hemostat audit <container>")
			os.Exit(1)
		}
		if err := runAudit(ctx, cfg, os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "audit: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log.Info("hemostat starting", "version", version, "mode", subcommand, "standalone", cfg.Standalone())

	newBackends := backendFactoryFor(cfg)

	dockerClient, err := runtime.NewClient(cfg.DockerHost)
	if err != nil {
		log.Error("failed to create container runtime client", "error", err)
		os.Exit(1)
	}
	defer dockerClient.Close()

	sinks := buildSinks(cfg, log)

	runAgent := func(ctx context.Context, name string) error {
		store, brk, err := newBackends()
		if err != nil {
			return fmt.Errorf("%s: open backends: %w", name, err)
		}
		rt := agentrt.New(name, brk, store, log)
		if err := rt.Connect(ctx); err != nil {
			return fmt.Errorf("%s: connect: %w", name, err)
		}
		defer rt.Close()

		switch name {
		case "monitor":
			return monitor.New(rt, dockerClient, cfg, clock.Real{}).Run(ctx)
		case "analyzer":
			var model analyzer.Classifier
			if cfg.ModelEnabled() && cfg.ModelEndpoint != "" {
				model = analyzer.NewModelClassifier(cfg.ModelEndpoint, cfg.ModelAPIKey)
			}
			return analyzer.New(rt, cfg, model).Run(ctx)
		case "responder":
			return responder.New(rt, dockerClient, cfg).Run(ctx)
		case "alert":
			return alertagent.New(rt, cfg, sinks).Run(ctx)
		default:
			return fmt.Errorf("unknown agent %q", name)
		}
	}

	names := []string{"monitor", "analyzer", "responder", "alert"}
	switch subcommand {
	case "all":
		runAll(ctx, log, names, runAgent)
	case "monitor", "analyzer", "responder", "alert":
		if err := runAgent(ctx, subcommand); err != nil && ctx.Err() == nil {
			log.Error("agent exited with error", "mode", subcommand, "error", err)
			os.Exit(1)
		}
		log.Info("hemostat shutdown complete", "mode", subcommand)
	default:
		usage()
		os.Exit(1)
	}
}

// runAll starts every named agent in its own goroutine and waits for all to
// return (on context cancellation during shutdown).
func runAll(ctx context.Context, log *logging.Logger, names []string, runAgent func(ctx context.Context, name string) error) {
	var wg sync.WaitGroup
	for _, name := range names {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runAgent(ctx, name); err != nil && ctx.Err() == nil {
				log.Error("agent exited with error", "mode", name, "error", err)
			}
		}()
	}
	wg.Wait()
	log.Info("hemostat shutdown complete", "mode", "all")
}

// backendFactoryFor returns a backendFactory for cfg's deployment mode. In
// standalone mode one shared Bolt store + in-process broker is opened
// immediately and handed back on every call (so every agent in "all" mode
// joins the same in-process bus). In networked mode each call dials a
// fresh Redis/MQTT connection.
func backendFactoryFor(cfg *config.Config) backendFactory {
	if cfg.Standalone() {
		var (
			once  sync.Once
			store kvstore.Store
			brk   broker.Broker
			err   error
		)
		return func() (kvstore.Store, broker.Broker, error) {
			once.Do(func() {
				store, err = kvstore.OpenBolt(cfg.BoltPath)
				if err != nil {
					err = fmt.Errorf("open bolt store: %w", err)
					return
				}
				brk = broker.NewInProcess()
			})
			return store, brk, err
		}
	}

	return func() (kvstore.Store, broker.Broker, error) {
		store, err := kvstore.NewRedis(context.Background(), kvstore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		mqttBroker := broker.NewMQTT(broker.MQTTConfig{
			Broker:   cfg.MQTTBrokerURL,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		})
		return store, mqttBroker, nil
	}
}

// buildSinks wires the Alert agent's delivery chain: a required webhook
// sink when HEMOSTAT_WEBHOOK_URL is set, plus an optional Slack sink.
func buildSinks(cfg *config.Config, log *logging.Logger) *notify.Multi {
	var sinks []notify.Notifier
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.WebhookURL, nil))
	}
	if cfg.SlackToken != "" && cfg.SlackChannel != "" {
		sinks = append(sinks, notify.NewSlack(cfg.SlackToken, cfg.SlackChannel))
	}
	if cfg.NotifyMQTTEnabled && cfg.MQTTBrokerURL != "" {
		sinks = append(sinks, notify.NewMQTT(cfg.MQTTBrokerURL, cfg.NotifyMQTTTopic, "", cfg.MQTTUsername, cfg.MQTTPassword, 0))
	}
	return notify.NewMulti(log, sinks...)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hemostat <monitor|analyzer|responder|alert|all|audit> [args]")
}
