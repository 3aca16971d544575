package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/guidesense/guidesense/agent/internal/capture"
	"github.com/guidesense/guidesense/agent/internal/compute"
	"github.com/guidesense/guidesense/agent/internal/config"
	"github.com/guidesense/guidesense/agent/internal/security"
	"github.com/guidesense/guidesense/agent/internal/shipper"
	"github.com/guidesense/guidesense/pkg/diagnosis"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("guidesense-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"agent_id", cfg.Agent.ID,
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sources", len(cfg.Agent.Sources),
		"workers", cfg.Agent.Workers,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := compute.NewEngine(diagnosis.New(), cfg.Agent.HistorySize, cfg.Agent.AnalysisTimeout)

	// Start the gRPC shipper; runs until ctx is cancelled.
	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	// Captures from every source feed one bounded worker pool.
	captures := make(chan *capture.Capture, cfg.Agent.Workers)
	var workers sync.WaitGroup
	for i := range cfg.Agent.Workers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			analyse(ctx, i, engine, ship, captures)
		}()
	}

	sup := newSupervisor(ctx, captures, cfg.Agent.MaxSamples)
	sup.apply(cfg.Agent.Sources)
	if len(cfg.Agent.Sources) == 0 {
		slog.Warn("no sources configured, agent will idle until the config gains one")
	}

	// Hot reload adds, restarts and stops capturers. Worker count, buffer
	// size and server settings need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			sup.apply(updated.Agent.Sources)
			keep := make(map[string]bool, len(updated.Agent.Sources))
			for _, src := range updated.Agent.Sources {
				keep[src.ID] = true
			}
			engine.Forget(keep)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("guidesense-agent shutting down", "unsent_reports", ship.Pending())
	sup.wait()
	workers.Wait()
}

// analyse runs one worker: every capture is diagnosed and the report queued
// for shipping.
func analyse(ctx context.Context, id int, engine *compute.Engine, ship *shipper.Shipper, in <-chan *capture.Capture) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-in:
			report, err := engine.Process(ctx, c, time.Now().UTC())
			if err != nil {
				slog.Warn("analysis skipped", "worker", id, "source", c.SourceID, "origin", c.Origin, "err", err)
				continue
			}
			ship.Ship(report)
			slog.Info("diagnosis",
				"source", c.SourceID,
				"report", report.ID,
				"health_score", report.HealthScore,
				"severity", report.Severity,
				"trend", report.Outlook.Trend,
			)
		}
	}
}

// supervisor owns one goroutine per configured source.
type supervisor struct {
	ctx        context.Context
	out        chan<- *capture.Capture
	maxSamples int

	mu      sync.Mutex
	running map[string]*runningSource
	wg      sync.WaitGroup
}

type runningSource struct {
	src    config.Source
	cancel context.CancelFunc
}

func newSupervisor(ctx context.Context, out chan<- *capture.Capture, maxSamples int) *supervisor {
	return &supervisor{ctx: ctx, out: out, maxSamples: maxSamples, running: make(map[string]*runningSource)}
}

// apply reconciles running capturers with sources: removed or changed
// sources are stopped, new or changed ones started.
func (s *supervisor) apply(sources []config.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]config.Source, len(sources))
	for _, src := range sources {
		want[src.ID] = src
	}
	for id, r := range s.running {
		if src, ok := want[id]; !ok || src != r.src {
			r.cancel()
			delete(s.running, id)
			slog.Info("stopped source", "id", id)
		}
	}
	for _, src := range sources {
		if _, ok := s.running[src.ID]; ok {
			continue
		}
		c, err := capture.New(src, s.maxSamples)
		if err != nil {
			slog.Error("skipping source, could not build capturer", "source", src.ID, "err", err)
			continue
		}
		ctx, cancel := context.WithCancel(s.ctx)
		s.running[src.ID] = &runningSource{src: src, cancel: cancel}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := c.Run(ctx, s.out); err != nil {
				slog.Error("capturer stopped", "source", src.ID, "err", err)
			}
		}()
		go checkCert(ctx, src)
		slog.Info("registered source", "id", src.ID, "type", src.Type, "guide", src.Guide.Series)
	}
}

// checkCert logs the gateway certificate state of an https source.
func checkCert(ctx context.Context, src config.Source) {
	cs := security.Check(ctx, src, time.Now())
	if cs == nil {
		return
	}
	attrs := []any{"source", cs.SourceID, "status", cs.Status, "issuer", cs.Issuer, "days_left", cs.DaysLeft}
	switch cs.Status {
	case security.StatusValid:
		slog.Debug("gateway certificate", attrs...)
	default:
		slog.Warn("gateway certificate", attrs...)
	}
}

func (s *supervisor) wait() {
	s.wg.Wait()
}
