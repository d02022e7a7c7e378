// Command server runs the streamrelay heartbeat relay.
//
// Configuration is read from a YAML file (see -config) and STREAMRELAY_*
// environment variables:
//
//	STREAMRELAY_UPSTREAM_URL      - Upstream provider base URL (required)
//	STREAMRELAY_PORT              - Listen port (default: 8080)
//	STREAMRELAY_ROUTE_PREFIX      - Inbound route prefix (default: /v1)
//	STREAMRELAY_API_KEY           - Server-side fallback upstream key
//	STREAMRELAY_HEARTBEAT_FORMAT  - "openai" or "gemini" (default: openai)
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/streamrelay/pkg/config"
	"github.com/rhuss/streamrelay/pkg/debug"
	"github.com/rhuss/streamrelay/pkg/observability"
	"github.com/rhuss/streamrelay/pkg/relay"
	"github.com/rhuss/streamrelay/pkg/transport"
	transporthttp "github.com/rhuss/streamrelay/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateRelay(); err != nil {
		return err
	}

	debug.Init(debug.Options{
		Categories: cfg.Debug.Categories,
		Level:      cfg.Debug.Level,
		Format:     cfg.Debug.Format,
	})

	format, err := relay.ParseFormat(cfg.Heartbeat.Format)
	if err != nil {
		return err
	}

	rl := relay.New(relay.Config{
		BaseURL:      cfg.Upstream.BaseURL,
		APIKeyHeader: cfg.Upstream.APIKeyHeader,
		Timeout:      cfg.Upstream.Timeout,
		Heartbeat: relay.HeartbeatConfig{
			Interval: cfg.Heartbeat.Interval,
			MaxCount: cfg.Heartbeat.MaxCount,
			Text:     cfg.Heartbeat.Text,
			Format:   format,
		},
	})

	handler := relay.NewHandler(rl, relay.HandlerConfig{
		RoutePrefix:  cfg.Upstream.RoutePrefix,
		ServerAPIKey: cfg.Upstream.APIKey,
	}, transport.NewInFlightRegistry())

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	srv := transporthttp.NewServer(mux, []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodyBytes),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}, observability.MetricsMiddleware)

	slog.Info("relay configured",
		"upstream", cfg.Upstream.BaseURL,
		"route_prefix", cfg.Upstream.RoutePrefix,
		"heartbeat_interval", cfg.Heartbeat.Interval,
		"heartbeat_format", string(format),
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	return srv.ListenAndServe()
}
