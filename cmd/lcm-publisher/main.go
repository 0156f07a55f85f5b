package main

import (
	"flag"
	"fmt"
	"os"
	"time"

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
	channel := flag.String("channel", "EXAMPLE", "channel to publish on")
	kind := flag.String("type", "example", "message type: example or string")
	text := flag.String("text", "example string", "name field or string payload")
	count := flag.Int("count", 1, "messages to send")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between messages")
	flag.Parse()

	if err := run(*configPath, *url, *channel, *kind, *text, *count, *interval); err != nil {
		fmt.Fprintln(os.Stderr, "lcm-publisher:", err)
		os.Exit(1)
	}
}

func run(configPath, url, channel, kind, text string, count int, interval time.Duration) error {
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

	client, err := lcm.New(lcm.WithURL(cfg.URL), lcm.WithLogger(logger.Named("lcm")))
	if err != nil {
		return err
	}
	defer client.Close()

	for i := 0; i < count; i++ {
		var msg codec.Encoder
		switch kind {
		case "example":
			msg = exlcm.ExampleT{
				Timestamp:   time.Now().UnixMicro(),
				Position:    [3]float64{1, 2, 3},
				Orientation: [4]float64{1, 0, 0, 0},
				NumRanges:   15,
				Ranges:      []int16{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14},
				Name:        text,
				Enabled:     true,
			}
		case "string":
			msg = codec.String(text)
		default:
			return fmt.Errorf("unknown type %q", kind)
		}
		if err := client.Publish(channel, msg); err != nil {
			return err
		}
		logger.Info("published", zap.String("channel", channel), zap.Int("seq", i))
		if i+1 < count {
			time.Sleep(interval)
		}
	}
	return nil
}
