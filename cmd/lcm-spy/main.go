package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"LCM-Bus/internal/config"
	"LCM-Bus/internal/lcm"
	"LCM-Bus/internal/logging"
	"LCM-Bus/internal/spy"
	"LCM-Bus/internal/spyapi"
)

func main() {
	addr := flag.String("addr", ":8090", "http listen address")
	configPath := flag.String("config", "", "optional YAML config file")
	url := flag.String("url", "", "provider url, overrides config")
	watch := flag.String("watch", "", "comma-separated channels to watch at startup")
	flag.Parse()

	if err := run(*addr, *configPath, *url, *watch); err != nil {
		fmt.Fprintln(os.Stderr, "lcm-spy:", err)
		os.Exit(1)
	}
}

func run(addr, configPath, url, watch string) error {
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

	monitor := spy.NewMonitor(client, spy.DefaultTypes(), logger.Named("spy"))
	for _, ch := range strings.Split(watch, ",") {
		if ch = strings.TrimSpace(ch); ch == "" {
			continue
		}
		if _, err := monitor.Watch(ch); err != nil {
			return fmt.Errorf("watch %q: %w", ch, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	spyapi.NewServer(monitor).Register(mux)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 2)
	go func() { errCh <- monitor.Run(ctx) }()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("lcm-spy listening", zap.String("addr", addr), zap.String("url", cfg.URL))

	select {
	case <-ctx.Done():
	case err = <-errCh:
		stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http shutdown", zap.Error(serr))
	}
	return err
}
