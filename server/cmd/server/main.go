package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/guidesense/guidesense/pkg/diagnosis"
	"github.com/guidesense/guidesense/pkg/reportrpc"
	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/server/internal/alerts"
	"github.com/guidesense/guidesense/server/internal/api"
	"github.com/guidesense/guidesense/server/internal/auth"
	"github.com/guidesense/guidesense/server/internal/config"
	"github.com/guidesense/guidesense/server/internal/metrics"
	"github.com/guidesense/guidesense/server/internal/receiver"
	"github.com/guidesense/guidesense/server/internal/store"
	"github.com/guidesense/guidesense/server/internal/ws"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory (e.g. ui/dist); leave empty to disable")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("guidesense-server starting", "config", *configPath, "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"retention", cfg.Server.Retention.Age,
		"guides", len(cfg.Server.Guides),
		"alert_rules", len(cfg.Server.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Report store with background retention eviction, seeded with the guide catalog.
	st := store.New(cfg.Server.Retention.Age, cfg.Server.Retention.MaxPerGuide)
	st.Seed(cfg.Server.Guides)
	go st.Run(ctx)

	// Alerts engine: evaluates rules on every accepted report.
	alertEngine := alerts.New(cfg.Server.Alerts)

	// WebSocket hub: pushes reports as they arrive and a summary every 5 seconds.
	hub := ws.New(st, 5*time.Second)
	go hub.Run(ctx)

	exporter := metrics.New(st, alertEngine.Firing, hub.Count)

	// Every accepted report, whether from an agent or the REST analyze
	// endpoint, flows through the same receiver.
	recv := receiver.New(st,
		alertEngine.Evaluate,
		hub.Publish,
		exporter.Observe,
	)

	// gRPC server with optional API key authentication interceptor.
	interceptor := auth.APIKeyInterceptor(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	reportrpc.RegisterReportServiceServer(grpcSrv, recv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port",
			"port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC receiver listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// Combined HTTP server: REST API, WebSocket hub and metrics on HTTPPort.
	apiHandler := api.New(st, api.Options{
		Analyzer:   diagnosis.New(),
		Accept:     func(r *types.DiagnosisReport) { recv.Accept(r) },
		Alerts:     alertEngine,
		MaxSamples: cfg.Server.Analysis.MaxSamples,
		Timeout:    cfg.Server.Analysis.Timeout,
		Version:    version,
	})
	requireKey := auth.HTTPMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		"/api/v1/health",
	)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", requireKey(apiHandler))
	httpMux.Handle("/ws/stream", requireKey(hub))
	httpMux.Handle("/metrics", exporter)

	// Optional: serve the pre-built dashboard from a local directory.
	// Usage:  ./bin/guidesense-server -config config/server.yaml -ui-dir ui/dist
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			// SPA fallback: if the requested file doesn't exist, serve index.html.
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("guidesense-server shutting down")
	grpcSrv.GracefulStop()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	alertEngine.Wait()
}
