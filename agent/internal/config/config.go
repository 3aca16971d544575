package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/pkg/waveform"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval    = 30 * time.Second
	DefaultBufferSize      = 1000
	DefaultWorkers         = 4
	DefaultMaxSamples      = 1 << 20
	DefaultAnalysisTimeout = 30 * time.Second
	DefaultHistorySize     = 100
	DefaultFormat          = FormatCSV
	DefaultPHMAxis         = "horizontal"
)

// Source types.
const (
	TypeSpool = "spool"
	TypeHTTP  = "http"
)

// Waveform file formats.
const (
	FormatCSV  = waveform.FormatCSV
	FormatPHM  = waveform.FormatPHM
	FormatJSON = waveform.FormatJSON
)

// Config is the top-level agent configuration. Fields map 1:1 to
// config.example.yaml; the server section of a shared file is ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ID names this agent in shipped reports. Defaults to the hostname.
	ID string `yaml:"id"`

	// ServerEndpoint is the gRPC address of guidesense-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// PollInterval is the default polling period of http sources.
	PollInterval time.Duration `yaml:"poll_interval"`

	// BufferSize is the maximum number of reports held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// Workers bounds the number of analyses running at once.
	Workers int `yaml:"workers"`

	// MaxSamples rejects captures longer than this many samples.
	MaxSamples int `yaml:"max_samples"`

	// AnalysisTimeout cancels the wavelet stage of a long analysis.
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`

	// HistorySize is the number of past analyses kept per source for the
	// health trend and RUL outlook.
	HistorySize int `yaml:"history_size"`

	// Sources is the list of monitored guides.
	Sources []Source `yaml:"sources"`

	// ServerAuth configures how the agent authenticates to guidesense-server.
	// Supports: mtls | apikey | none.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// Source describes one monitored linear guide and where its waveforms come
// from.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Type is spool (watch a directory for waveform files) or http (poll a
	// sensor gateway).
	Type string `yaml:"type"`

	// Path is the spool directory watched for new files (spool only).
	Path string `yaml:"path"`

	// ArchiveDir receives processed spool files. When empty, processed
	// files are left in place and skipped on later events.
	ArchiveDir string `yaml:"archive_dir"`

	// Endpoint is the URL returning the latest waveform (http only).
	Endpoint string `yaml:"endpoint"`

	// VelocityEndpoint optionally serves a Prometheus text exposition with
	// a guide_velocity_mps gauge that overrides Velocity.
	VelocityEndpoint string `yaml:"velocity_endpoint"`

	// Interval overrides agent.poll_interval for this source.
	Interval time.Duration `yaml:"interval"`

	// Format is csv | phm | json.
	Format string `yaml:"format"`

	// Column is the zero-based CSV column holding the samples (csv only).
	Column int `yaml:"column"`

	// Axis selects the PHM 2012 channel: horizontal | vertical (phm only).
	Axis string `yaml:"axis"`

	// SamplingRate in Hz, used when the capture does not carry its own.
	SamplingRate int `yaml:"sampling_rate"`

	// Velocity in m/s, used when the capture does not carry its own.
	Velocity float64 `yaml:"velocity"`

	// Guide identifies the guide under test.
	Guide GuideConfig `yaml:"guide"`

	// Auth configures how the agent authenticates to this source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// GuideConfig identifies the guide a source is mounted on.
type GuideConfig struct {
	SpecID  int64  `yaml:"spec_id"`
	Series  string `yaml:"series"`
	Preload string `yaml:"preload"`
}

// Identity returns the analysis identity of the source's guide.
func (s Source) Identity() types.GuideIdentity {
	return types.GuideIdentity{SpecID: s.Guide.SpecID, Series: s.Guide.Series, Preload: s.Guide.Preload}
}

// AuthConfig specifies the authentication mode for a source or the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the header (HTTP) or metadata key (gRPC) carrying the API key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable holding a bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	return lookupEnv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	return lookupEnv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	return lookupEnv(a.PasswordEnv)
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applySourceDefaults(&cfg.Agent)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	host, _ := os.Hostname()
	return &Config{
		Agent: AgentConfig{
			ID:              host,
			PollInterval:    DefaultPollInterval,
			BufferSize:      DefaultBufferSize,
			Workers:         DefaultWorkers,
			MaxSamples:      DefaultMaxSamples,
			AnalysisTimeout: DefaultAnalysisTimeout,
			HistorySize:     DefaultHistorySize,
		},
	}
}

// applySourceDefaults fills per-source fields that inherit agent settings.
func applySourceDefaults(a *AgentConfig) {
	for i := range a.Sources {
		src := &a.Sources[i]
		if src.Format == "" {
			src.Format = DefaultFormat
		}
		if src.Interval == 0 {
			src.Interval = a.PollInterval
		}
		if src.Format == FormatPHM && src.Axis == "" {
			src.Axis = DefaultPHMAxis
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if a.PollInterval <= 0 {
		return fmt.Errorf("agent.poll_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if a.Workers <= 0 {
		return fmt.Errorf("agent.workers must be positive")
	}
	if a.MaxSamples <= 0 {
		return fmt.Errorf("agent.max_samples must be positive")
	}
	if a.AnalysisTimeout <= 0 {
		return fmt.Errorf("agent.analysis_timeout must be positive")
	}
	if a.HistorySize <= 0 {
		return fmt.Errorf("agent.history_size must be positive")
	}

	seen := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true

		switch src.Type {
		case TypeSpool:
			if src.Path == "" {
				return fmt.Errorf("sources[%d] %q: path is required for spool sources", i, src.ID)
			}
		case TypeHTTP:
			if src.Endpoint == "" {
				return fmt.Errorf("sources[%d] %q: endpoint is required for http sources", i, src.ID)
			}
		default:
			return fmt.Errorf("sources[%d] %q: unknown type %q", i, src.ID, src.Type)
		}

		switch src.Format {
		case FormatCSV, FormatPHM, FormatJSON:
		default:
			return fmt.Errorf("sources[%d] %q: unknown format %q", i, src.ID, src.Format)
		}
		if src.Format == FormatPHM && src.Axis != "horizontal" && src.Axis != "vertical" {
			return fmt.Errorf("sources[%d] %q: axis must be horizontal or vertical", i, src.ID)
		}
		if src.Column < 0 {
			return fmt.Errorf("sources[%d] %q: column must not be negative", i, src.ID)
		}
		if src.SamplingRate < 0 {
			return fmt.Errorf("sources[%d] %q: sampling_rate must not be negative", i, src.ID)
		}
		if src.Velocity < 0 {
			return fmt.Errorf("sources[%d] %q: velocity must not be negative", i, src.ID)
		}

		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
	}

	switch a.ServerAuth.Mode {
	case "mtls", "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth: unknown mode %q", a.ServerAuth.Mode)
	}
	return nil
}
