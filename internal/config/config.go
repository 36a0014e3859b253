package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/content-localizer/internal/common"
)

// Config is the root configuration loaded from YAML.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Limits   LimitsConfig   `yaml:"limits"`
	LLM      LLMConfig      `yaml:"llm"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Poller   PollerConfig   `yaml:"poller"`
}

// ServerConfig holds HTTP server and runtime settings.
type ServerConfig struct {
	Addr          string        `yaml:"address"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	StorageDir    string        `yaml:"storageDir"`
	DatabasePath  string        `yaml:"databasePath"` // optional, overrides default storageDir/localizer.db
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`
	UploadURLTTL  time.Duration `yaml:"uploadUrlTtl"` // advisory expiry reported for upload URLs
	LogLevel      string        `yaml:"logLevel"`     // debug|info|warn|error
}

// LimitsConfig holds the per-file-type upload size ceilings.
type LimitsConfig struct {
	Text  ByteSize `yaml:"text"`
	Image ByteSize `yaml:"image"`
	Video ByteSize `yaml:"video"`
}

// LLMConfig selects the transform provider and provider-specific options.
type LLMConfig struct {
	Provider string          `yaml:"provider"` // "mock" or "aiproxy"
	Mock     MockSettings    `yaml:"mock"`
	AIProxy  AIProxySettings `yaml:"aiproxy"`
}

// MockSettings config for the mock transformer.
type MockSettings struct {
	Delay time.Duration `yaml:"delay"`
}

// AIProxySettings config for the AI Proxy (OpenAI-compatible) transformer.
type AIProxySettings struct {
	BaseURL        string        `yaml:"baseUrl"` // e.g. http://localhost:8900
	APIKey         string        `yaml:"apiKey"`  // optional
	Model          string        `yaml:"model"`
	SystemPrompt   string        `yaml:"systemPrompt"`   // optional system message override
	Temperature    float32       `yaml:"temperature"`    // optional
	MaxTokens      int           `yaml:"maxTokens"`      // optional
	RequestTimeout time.Duration `yaml:"requestTimeout"` // deadline per transform call
}

// DispatchConfig tunes the change-feed consumer.
type DispatchConfig struct {
	FeedCapacity int `yaml:"feedCapacity"`
	BatchSize    int `yaml:"batchSize"`
}

// PollerConfig tunes the client-side status polling loop.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"maxAttempts"`
}

// ByteSize represents a size in bytes that unmarshals from strings like "10Mi", "20MB", "512KiB", "1024".
type ByteSize uint64

// UnmarshalYAML implements yaml unmarshalling for ByteSize.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		str := strings.TrimSpace(value.Value)
		parsed, err := ParseByteSize(str)
		if err != nil {
			return err
		}
		*b = ByteSize(parsed)
		return nil
	}
	return fmt.Errorf("invalid bytesize node kind: %v", value.Kind)
}

var reNumeric = regexp.MustCompile(`^\d+$`)

// ParseByteSize parses a string like "10Mi", "20MB", "512KiB", "1024" into bytes.
// Supports Kubernetes-style quantities for binary units: Ki, Mi, Gi (case-insensitive).
// Also accepts KiB/MiB/GiB and decimal KB/MB/GB, and bare bytes.
func ParseByteSize(s string) (uint64, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}
	if reNumeric.MatchString(s) {
		val, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size number: %w", err)
		}
		return val, nil
	}

	up := strings.ToUpper(s)

	type unit struct {
		suffix string
		value  uint64
	}
	units := []unit{
		{"KI", 1024},
		{"MI", 1024 * 1024},
		{"GI", 1024 * 1024 * 1024},
		{"KIB", 1024},
		{"MIB", 1024 * 1024},
		{"GIB", 1024 * 1024 * 1024},
		{"KB", 1000},
		{"MB", 1000 * 1000},
		{"GB", 1000 * 1000 * 1000},
		{"B", 1},
	}
	for _, u := range units {
		if strings.HasSuffix(up, u.suffix) {
			num := strings.TrimSpace(s[:len(s)-len(u.suffix)])
			val, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size number in %q: %w", orig, err)
			}
			return uint64(val * float64(u.value)), nil
		}
	}
	return 0, fmt.Errorf("unknown size suffix in %q", orig)
}

// Load reads YAML config from path, expands environment variables, and validates it.
// If path is empty, it will attempt to read from env var LOCALIZER_CONFIG, then default to "config.yaml".
func Load(path string) (*Config, error) {
	if path == "" {
		if env := os.Getenv("LOCALIZER_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - reading sanitized config file path is expected
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.StorageDir != "" {
		if err := os.MkdirAll(cfg.Server.StorageDir, 0o750); err != nil {
			return nil, fmt.Errorf("ensure storageDir: %w", err)
		}
	}
	if cfg.Server.DatabasePath == "" {
		cfg.Server.DatabasePath = filepath.Join(cfg.Server.StorageDir, "localizer.db")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 2 * time.Minute
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Server.StorageDir == "" {
		cfg.Server.StorageDir = "data"
	}
	if cfg.Server.ShutdownGrace == 0 {
		cfg.Server.ShutdownGrace = 15 * time.Second
	}
	if cfg.Server.UploadURLTTL == 0 {
		cfg.Server.UploadURLTTL = common.DefaultUploadURLTTL * time.Second
	}
	if strings.TrimSpace(cfg.Server.LogLevel) == "" {
		cfg.Server.LogLevel = "info"
	}

	// Upload ceilings per file type
	if cfg.Limits.Text == 0 {
		cfg.Limits.Text = ByteSize(1 * 1024 * 1024)
	}
	if cfg.Limits.Image == 0 {
		cfg.Limits.Image = ByteSize(10 * 1024 * 1024)
	}
	if cfg.Limits.Video == 0 {
		cfg.Limits.Video = ByteSize(100 * 1024 * 1024)
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "mock"
	}
	if cfg.LLM.Mock.Delay == 0 {
		cfg.LLM.Mock.Delay = 500 * time.Millisecond
	}
	if strings.EqualFold(cfg.LLM.Provider, "aiproxy") {
		if strings.TrimSpace(cfg.LLM.AIProxy.BaseURL) == "" {
			cfg.LLM.AIProxy.BaseURL = "http://localhost:8900"
		}
		if strings.TrimSpace(cfg.LLM.AIProxy.Model) == "" {
			cfg.LLM.AIProxy.Model = "gpt-5"
		}
	}
	if cfg.LLM.AIProxy.RequestTimeout == 0 {
		cfg.LLM.AIProxy.RequestTimeout = 60 * time.Second
	}

	if cfg.Dispatch.FeedCapacity <= 0 {
		cfg.Dispatch.FeedCapacity = common.DefaultFeedCapacity
	}
	if cfg.Dispatch.BatchSize <= 0 {
		cfg.Dispatch.BatchSize = common.DefaultBatchSize
	}

	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = 2 * time.Second
	}
	if cfg.Poller.MaxAttempts <= 0 {
		cfg.Poller.MaxAttempts = common.DefaultPollMaxAttempts
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Provider)) {
	case "mock":
	case "aiproxy":
		if strings.TrimSpace(cfg.LLM.AIProxy.BaseURL) == "" {
			return fmt.Errorf("aiproxy.baseUrl is required")
		}
		if strings.TrimSpace(cfg.LLM.AIProxy.Model) == "" {
			return fmt.Errorf("aiproxy.model is required")
		}
	default:
		return fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}

	if cfg.Limits.Text > cfg.Limits.Image || cfg.Limits.Image > cfg.Limits.Video {
		return errors.New("limits must be ordered text <= image <= video")
	}
	return nil
}
