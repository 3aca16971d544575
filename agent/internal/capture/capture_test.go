package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guidesense/guidesense/agent/internal/config"
)

// gatewayMetrics is a velocity exposition from a drive gateway with one
// series per axis.
const gatewayMetrics = `
# HELP guide_velocity_mps Current carriage velocity.
# TYPE guide_velocity_mps gauge
guide_velocity_mps{axis="x"} 0.4
guide_velocity_mps{axis="y"} 0.6
# HELP drive_temperature_celsius Drive temperature.
# TYPE drive_temperature_celsius gauge
drive_temperature_celsius 41.5
`

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		src     config.Source
		wantErr bool
	}{
		{"spool", config.Source{ID: "a", Type: config.TypeSpool, Path: "/tmp"}, false},
		{"http", config.Source{ID: "b", Type: config.TypeHTTP, Endpoint: "http://localhost"}, false},
		{"unknown", config.Source{ID: "c", Type: "modbus"}, true},
		{"bad mtls", config.Source{ID: "d", Type: config.TypeHTTP, Endpoint: "https://x",
			Auth: config.AuthConfig{Mode: "mtls", CertFile: "/nonexistent.pem", KeyFile: "/nonexistent.key"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.src, 1000)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil || c == nil {
				t.Fatalf("New() = %v, %v", c, err)
			}
		})
	}
}

func TestAuthRoundTripper(t *testing.T) {
	tests := []struct {
		name  string
		auth  config.AuthConfig
		env   map[string]string
		check func(t *testing.T, r *http.Request)
	}{
		{
			name: "apikey",
			auth: config.AuthConfig{Mode: "apikey", Header: "X-Gateway-Key", KeyEnv: "TEST_GW_KEY"},
			env:  map[string]string{"TEST_GW_KEY": "k1"},
			check: func(t *testing.T, r *http.Request) {
				if got := r.Header.Get("X-Gateway-Key"); got != "k1" {
					t.Errorf("api key header: got %q", got)
				}
			},
		},
		{
			name: "bearer",
			auth: config.AuthConfig{Mode: "bearer", TokenEnv: "TEST_GW_TOKEN"},
			env:  map[string]string{"TEST_GW_TOKEN": "tok"},
			check: func(t *testing.T, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer tok" {
					t.Errorf("authorization: got %q", got)
				}
			},
		},
		{
			name: "basic",
			auth: config.AuthConfig{Mode: "basic", Username: "ops", PasswordEnv: "TEST_GW_PASS"},
			env:  map[string]string{"TEST_GW_PASS": "pw"},
			check: func(t *testing.T, r *http.Request) {
				u, p, ok := r.BasicAuth()
				if !ok || u != "ops" || p != "pw" {
					t.Errorf("basic auth: got %q %q %v", u, p, ok)
				}
			},
		},
		{
			name: "none",
			auth: config.AuthConfig{Mode: "none"},
			check: func(t *testing.T, r *http.Request) {
				if r.Header.Get("Authorization") != "" {
					t.Error("unexpected authorization header")
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			var got *http.Request
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			client, err := buildHTTPClient(config.Source{ID: "gw", Auth: tc.auth})
			if err != nil {
				t.Fatalf("buildHTTPClient: %v", err)
			}
			resp, err := client.Get(srv.URL)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			resp.Body.Close()
			tc.check(t, got)
		})
	}
}

func TestFetchVelocity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(gatewayMetrics))
	}))
	defer srv.Close()

	v, err := fetchVelocity(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetchVelocity: %v", err)
	}
	if v < 0.4999 || v > 0.5001 {
		t.Errorf("velocity: got %v, want mean 0.5", v)
	}
}

func TestFetchVelocity_Missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("drive_temperature_celsius 41.5\n"))
	}))
	defer srv.Close()

	if _, err := fetchVelocity(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatal("expected error for missing gauge")
	}
}

func TestHTTPCapturer_Poll(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/waveform", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"cap-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("accept: got %q", got)
		}
		w.Header().Set("ETag", `"cap-1"`)
		_, _ = w.Write([]byte(`{"samples":[0.1,-0.1,0.2],"sampling_rate":12800}`))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(gatewayMetrics))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &httpCapturer{
		src: config.Source{
			ID: "gw", Type: config.TypeHTTP, Format: config.FormatJSON,
			Endpoint: srv.URL + "/waveform", VelocityEndpoint: srv.URL + "/metrics",
			SamplingRate: 25600, Velocity: 0.1,
			Guide: config.GuideConfig{SpecID: 3, Series: "HRC25", Preload: "V1"},
		},
		client: srv.Client(),
		now:    func() time.Time { return fixed },
	}

	c := h.poll(context.Background())
	if c == nil || c.Err != nil {
		t.Fatalf("first poll: %+v", c)
	}
	if c.Sample.SamplingRate != 12800 {
		t.Errorf("sampling rate from payload: got %d", c.Sample.SamplingRate)
	}
	if c.Sample.Velocity < 0.4999 || c.Sample.Velocity > 0.5001 {
		t.Errorf("velocity from gauge: got %v", c.Sample.Velocity)
	}
	if c.Sample.Guide.SpecID != 3 || c.Sample.Guide.Series != "HRC25" {
		t.Errorf("guide identity: got %+v", c.Sample.Guide)
	}
	if !c.CapturedAt.Equal(fixed) || c.SourceID != "gw" {
		t.Errorf("capture meta: got %v %q", c.CapturedAt, c.SourceID)
	}

	if again := h.poll(context.Background()); again != nil {
		t.Errorf("unchanged waveform should not produce a capture, got %+v", again)
	}
	if hits.Load() != 2 {
		t.Errorf("gateway hits: got %d, want 2", hits.Load())
	}
}

func TestHTTPCapturer_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "sensor offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := &httpCapturer{
		src:    config.Source{ID: "gw", Type: config.TypeHTTP, Endpoint: srv.URL, Format: config.FormatCSV},
		client: srv.Client(),
		now:    time.Now,
	}
	c := h.poll(context.Background())
	if c == nil || c.Err == nil {
		t.Fatalf("expected failed capture, got %+v", c)
	}
	if !strings.Contains(c.Err.Error(), "503") {
		t.Errorf("error should carry the status: %v", c.Err)
	}
}

func TestHTTPCapturer_RunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("1\n2\n3\n"))
	}))
	defer srv.Close()

	h := &httpCapturer{
		src:    config.Source{ID: "gw", Type: config.TypeHTTP, Endpoint: srv.URL, Format: config.FormatCSV, Interval: time.Hour, SamplingRate: 1000},
		client: srv.Client(),
		now:    time.Now,
	}
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan *Capture, 1)
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, out) }()

	select {
	case c := <-out:
		if len(c.Sample.Samples) != 3 || c.Sample.SamplingRate != 1000 {
			t.Errorf("capture: got %+v", c.Sample)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no capture delivered")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSpoolCapturer(t *testing.T) {
	spool := t.TempDir()
	archive := filepath.Join(t.TempDir(), "done")

	writeFile(t, filepath.Join(spool, "acc_00001.csv"), "9,39,39,65664,0.552,-0.146\n9,39,39,65703,0.501,-0.48\n")
	writeFile(t, filepath.Join(spool, ".hidden.csv"), "1\n")

	s := &spoolCapturer{
		src: config.Source{
			ID: "bearing1_1", Type: config.TypeSpool, Path: spool, ArchiveDir: archive,
			Format: config.FormatPHM, Axis: "horizontal", Velocity: 0.5,
		},
		maxSamples: 100,
		now:        time.Now,
		settle:     20 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan *Capture, 4)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	first := receive(t, out)
	if first.Err != nil {
		t.Fatalf("backlog capture: %v", first.Err)
	}
	if len(first.Sample.Samples) != 2 || first.Sample.Samples[0] != 0.552 {
		t.Errorf("samples: got %v", first.Sample.Samples)
	}
	if first.Sample.SamplingRate != 25600 || first.Sample.Velocity != 0.5 {
		t.Errorf("rate/velocity: got %d %v", first.Sample.SamplingRate, first.Sample.Velocity)
	}

	// New file after the watch is running; a bad one yields a failed capture.
	writeFile(t, filepath.Join(spool, "acc_00002.csv"), "broken line\n")
	second := receive(t, out)
	if second.Err == nil {
		t.Errorf("expected decode error for %s", second.Origin)
	}

	waitFor(t, func() bool {
		_, err := os.Stat(filepath.Join(archive, "acc_00001.csv"))
		return err == nil
	})
	if _, err := os.Stat(filepath.Join(spool, ".hidden.csv")); err != nil {
		t.Errorf("hidden file must be left alone: %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestSpoolCapturer_Prune(t *testing.T) {
	spool := t.TempDir()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	s := &spoolCapturer{seen: make(map[string]time.Time), maxSeen: 2}

	var kept []string
	for i, name := range []string{"acc_00001.csv", "acc_00002.csv", "acc_00003.csv"} {
		path := filepath.Join(spool, name)
		writeFile(t, path, "1\n")
		s.seen[path] = base.Add(time.Duration(i) * time.Minute)
		kept = append(kept, path)
	}
	s.seen[filepath.Join(spool, "acc_00000.csv")] = base.Add(-time.Minute) // already gone

	s.prune()

	if len(s.seen) != 2 {
		t.Fatalf("seen: got %d entries, want 2: %v", len(s.seen), s.seen)
	}
	if _, ok := s.seen[kept[0]]; ok {
		t.Error("oldest entry should be evicted once over the cap")
	}
	for _, path := range kept[1:] {
		if _, ok := s.seen[path]; !ok {
			t.Errorf("%s dropped", filepath.Base(path))
		}
	}
}

func TestSpoolCapturer_MissingDir(t *testing.T) {
	s := &spoolCapturer{
		src: config.Source{ID: "x", Type: config.TypeSpool, Path: filepath.Join(t.TempDir(), "absent")},
		now: time.Now,
	}
	if err := s.Run(context.Background(), make(chan *Capture)); err == nil {
		t.Fatal("expected error for missing spool directory")
	}
}

func TestEligible(t *testing.T) {
	tests := map[string]bool{
		"/s/acc_00001.csv": true,
		"/s/capture.json":  true,
		"/s/.acc.csv":      false,
		"/s/acc.csv~":      false,
		"/s/acc.csv.tmp":   false,
		"/s/acc.csv.part":  false,
	}
	for path, want := range tests {
		if got := eligible(path); got != want {
			t.Errorf("eligible(%q) = %v, want %v", path, got, want)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func receive(t *testing.T, out <-chan *Capture) *Capture {
	t.Helper()
	select {
	case c := <-out:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for capture")
		return nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
