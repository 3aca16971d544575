package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/types"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "health_score < 60", "kurtosis > 8",
	// "severity == severe", "defect_detected == true".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`

	// MinSeverity drops alerts below this level: info | warning | critical.
	// Empty delivers everything.
	MinSeverity string `yaml:"min_severity"`
}

// Wants reports whether an alert of the given severity goes to this webhook.
func (w WebhookConfig) Wants(severity string) bool {
	return alertRank(severity) >= alertRank(w.MinSeverity)
}

func alertRank(s string) int {
	switch s {
	case "critical":
		return 2
	case "warning":
		return 1
	default:
		return 0
	}
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultGRPCPort        = 50051
	DefaultHTTPPort        = 8080
	DefaultRetention       = 30 * 24 * time.Hour
	DefaultMaxPerGuide     = 10000
	DefaultMaxSamples      = 1 << 20
	DefaultAnalysisTimeout = 30 * time.Second
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC receiver listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming gRPC and REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Retention controls how long reports are kept in memory.
	Retention RetentionConfig `yaml:"retention"`

	// Analysis bounds the synchronous POST /api/v1/analyze endpoint.
	Analysis AnalysisConfig `yaml:"analysis"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`

	// Guides seeds the guide-spec registry at startup.
	Guides []types.GuideSpec `yaml:"guides"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	// "mtls" is accepted but requires a TLS listener in front of the server.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// RetentionConfig controls report eviction.
type RetentionConfig struct {
	// Age is how long a report stays in the store after its timestamp.
	// Default: 720h (30 days).
	Age time.Duration `yaml:"age"`

	// MaxPerGuide caps the reports held per guide spec; the oldest are
	// dropped first. Default: 10000.
	MaxPerGuide int `yaml:"max_per_guide"`
}

// AnalysisConfig bounds server-side analyses.
type AnalysisConfig struct {
	MaxSamples int           `yaml:"max_samples"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	for i := range cfg.Server.Guides {
		if cfg.Server.Guides[i].Preload == "" {
			cfg.Server.Guides[i].Preload = guide.DefaultPreloadClass
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			Retention: RetentionConfig{
				Age:         DefaultRetention,
				MaxPerGuide: DefaultMaxPerGuide,
			},
			Analysis: AnalysisConfig{
				MaxSamples: DefaultMaxSamples,
				Timeout:    DefaultAnalysisTimeout,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "mtls", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|mtls|none", s.Auth.Mode)
	}
	if s.Retention.Age <= 0 {
		return fmt.Errorf("server.retention.age must be positive")
	}
	if s.Retention.MaxPerGuide <= 0 {
		return fmt.Errorf("server.retention.max_per_guide must be positive")
	}
	if s.Analysis.MaxSamples <= 0 {
		return fmt.Errorf("server.analysis.max_samples must be positive")
	}
	if s.Analysis.Timeout <= 0 {
		return fmt.Errorf("server.analysis.timeout must be positive")
	}

	seen := make(map[int64]bool, len(s.Guides))
	for i, g := range s.Guides {
		if g.ID <= 0 {
			return fmt.Errorf("server.guides[%d]: id must be positive", i)
		}
		if seen[g.ID] {
			return fmt.Errorf("server.guides[%d]: duplicate id %d", i, g.ID)
		}
		seen[g.ID] = true
		if err := ValidateGuideSpec(g); err != nil {
			return fmt.Errorf("server.guides[%d]: %w", i, err)
		}
	}

	for i, r := range s.Alerts.Rules {
		if r.Name == "" || r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name and condition are required", i)
		}
		switch r.Severity {
		case "", "critical", "warning", "info":
		default:
			return fmt.Errorf("server.alerts.rules[%d]: unknown severity %q", i, r.Severity)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "teams", "slack", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}

// ValidateGuideSpec checks the fields of a guide spec shared by the config
// catalog and POST /api/v1/guide-specs.
func ValidateGuideSpec(g types.GuideSpec) error {
	if g.Series == "" {
		return fmt.Errorf("series is required")
	}
	switch g.Preload {
	case "VC", "V0", "V1", "V2":
	default:
		return fmt.Errorf("preload %q unknown: want VC|V0|V1|V2", g.Preload)
	}
	if g.C0 < 0 || g.C100 < 0 || g.SpeedMax < 0 || g.Stroke < 0 {
		return fmt.Errorf("ratings, speed and stroke must not be negative")
	}
	return nil
}
