package capture

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/guidesense/guidesense/agent/internal/config"
	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/pkg/waveform"
)

const defaultFetchTimeout = 10 * time.Second

// VelocityMetric is the gauge read from a source's velocity endpoint.
const VelocityMetric = "guide_velocity_mps"

// Capture is one acquired waveform for a single source.
type Capture struct {
	SourceID   string
	CapturedAt time.Time

	// Origin is the file path or URL the waveform came from.
	Origin string

	// Sample is ready for diagnosis.Analyzer. SamplingRate and Velocity
	// fall back to the source configuration when the capture omits them.
	Sample types.Sample

	// Err is non-nil if acquisition failed (connectivity, auth, parse).
	// Sample is empty in that case.
	Err error
}

// Capturer is implemented by every acquisition mode. Run delivers captures
// to out until ctx is cancelled; it returns a non-nil error only when the
// capturer cannot start.
type Capturer interface {
	Run(ctx context.Context, out chan<- *Capture) error
}

// New returns the appropriate Capturer for the given source configuration.
// maxSamples bounds the decoded length of every capture.
func New(src config.Source, maxSamples int) (Capturer, error) {
	switch src.Type {
	case config.TypeSpool:
		return &spoolCapturer{src: src, maxSamples: maxSamples, now: time.Now}, nil
	case config.TypeHTTP:
		client, err := buildHTTPClient(src)
		if err != nil {
			return nil, fmt.Errorf("capture %q: build http client: %w", src.ID, err)
		}
		return &httpCapturer{src: src, client: client, maxSamples: maxSamples, now: time.Now}, nil
	default:
		return nil, fmt.Errorf("capture: unsupported type %q", src.Type)
	}
}

// decodeOptions maps a source's format settings onto waveform options.
func decodeOptions(src config.Source, maxSamples int) waveform.Options {
	return waveform.Options{
		Format:     src.Format,
		Column:     src.Column,
		Axis:       src.Axis,
		MaxSamples: maxSamples,
	}
}

// newCapture builds a Capture from a decoded waveform, merging the source's
// configured sampling rate, velocity and guide identity.
func newCapture(src config.Source, origin string, at time.Time, w waveform.Waveform) *Capture {
	w.ApplyDefaults(src.SamplingRate, src.Velocity)
	return &Capture{
		SourceID:   src.ID,
		CapturedAt: at.UTC(),
		Origin:     origin,
		Sample: types.Sample{
			Samples:      w.Samples,
			SamplingRate: w.SamplingRate,
			Velocity:     w.Velocity,
			Guide:        src.Identity(),
		},
	}
}

// failed builds a Capture carrying only an acquisition error.
func failed(src config.Source, origin string, at time.Time, err error) *Capture {
	return &Capture{SourceID: src.ID, CapturedAt: at.UTC(), Origin: origin, Err: err}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(src config.Source) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if src.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(src.Auth.CertFile, src.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if src.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(src.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", src.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: src.Auth,
		},
		Timeout: defaultFetchTimeout,
	}, nil
}

// get performs an HTTP GET and returns the open body on 200 OK.
// The caller closes it.
func get(ctx context.Context, client *http.Client, url, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// fetchVelocity reads the guide_velocity_mps gauge from a Prometheus text
// endpoint. Several series (one per axis label, say) are averaged.
func fetchVelocity(ctx context.Context, client *http.Client, url string) (float64, error) {
	body, err := get(ctx, client, url, string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err != nil {
		return 0, err
	}
	defer body.Close()

	mfs, err := parseMetrics(body)
	if err != nil {
		return 0, err
	}
	mf := mfs[VelocityMetric]
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0, fmt.Errorf("metric %s not exposed", VelocityMetric)
	}
	v := sumFamily(mf) / float64(len(mf.GetMetric()))
	if v < 0 {
		return 0, fmt.Errorf("metric %s is negative: %v", VelocityMetric, v)
	}
	return v, nil
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all gauge, counter, or untyped values in a MetricFamily.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
