package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"LCM-Bus/internal/config"
	"LCM-Bus/internal/exlcm"
	"LCM-Bus/internal/lcm"
	"LCM-Bus/internal/lcm/codec"
	"LCM-Bus/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	url := flag.String("url", "", "provider url, overrides config")
	channel := flag.String("channel", "EXAMPLE", "channel to subscribe to")
	kind := flag.String("type", "example", "message type: example or string")
	flag.Parse()

	if err := run(*configPath, *url, *channel, *kind); err != nil {
		fmt.Fprintln(os.Stderr, "lcm-subscriber:", err)
		os.Exit(1)
	}
}

func run(configPath, url, channel, kind string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if url != "" {
		cfg.URL = url
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := lcm.New(
		lcm.WithURL(cfg.URL),
		lcm.WithLogger(logger.Named("lcm")),
		lcm.WithQueueCapacity(cfg.QueueCapacity),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	switch kind {
	case "example":
		_, err = lcm.Subscribe(client, channel, func(m exlcm.ExampleT) {
			logger.Info("received example_t",
				zap.String("channel", channel),
				zap.Int64("timestamp", m.Timestamp),
				zap.Float64s("position", m.Position[:]),
				zap.Float64s("orientation", m.Orientation[:]),
				zap.Int16s("ranges", m.Ranges),
				zap.String("name", m.Name),
				zap.Bool("enabled", m.Enabled))
		})
	case "string":
		_, err = lcm.Subscribe(client, channel, func(m codec.String) {
			logger.Info("received string", zap.String("channel", channel), zap.String("message", string(m)))
		})
	default:
		return fmt.Errorf("unknown type %q", kind)
	}
	if err != nil {
		return err
	}
	logger.Info("subscribed", zap.String("channel", channel), zap.String("url", cfg.URL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	for {
		if err := client.HandleContext(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
