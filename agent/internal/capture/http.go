package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/guidesense/guidesense/agent/internal/config"
	"github.com/guidesense/guidesense/pkg/waveform"
)

type httpCapturer struct {
	src        config.Source
	client     *http.Client
	maxSamples int
	now        func() time.Time

	// etag of the last waveform delivered; the gateway answers 304 while
	// the capture is unchanged.
	etag string
}

// Run polls the gateway immediately and then every src.Interval.
func (h *httpCapturer) Run(ctx context.Context, out chan<- *Capture) error {
	interval := h.src.Interval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	slog.Info("capture: polling gateway", "source", h.src.ID, "endpoint", h.src.Endpoint, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if c := h.poll(ctx); c != nil {
			if !send(ctx, out, c) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll fetches one waveform. It returns nil when the gateway has nothing
// new or ctx was cancelled mid-request.
func (h *httpCapturer) poll(ctx context.Context) *Capture {
	now := h.now()
	w, etag, err := h.fetch(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		slog.Warn("capture: gateway fetch failed", "source", h.src.ID, "err", err)
		return failed(h.src, h.src.Endpoint, now, fmt.Errorf("capture %q: %w", h.src.ID, err))
	}
	if w == nil {
		return nil
	}
	h.etag = etag

	if h.src.VelocityEndpoint != "" {
		v, err := fetchVelocity(ctx, h.client, h.src.VelocityEndpoint)
		if err != nil {
			slog.Warn("capture: velocity fetch failed, using configured velocity",
				"source", h.src.ID, "err", err)
		} else {
			w.Velocity = v
		}
	}
	return newCapture(h.src, h.src.Endpoint, now, *w)
}

func (h *httpCapturer) fetch(ctx context.Context) (*waveform.Waveform, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.src.Endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", acceptFor(h.src.Format))
	if h.etag != "" {
		req.Header.Set("If-None-Match", h.etag)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified, http.StatusNoContent:
		return nil, "", nil
	default:
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	w, err := waveform.Decode(resp.Body, decodeOptions(h.src, h.maxSamples))
	if err != nil {
		return nil, "", err
	}
	return &w, resp.Header.Get("ETag"), nil
}

func acceptFor(format string) string {
	if format == waveform.FormatJSON {
		return "application/json"
	}
	return "text/csv"
}
