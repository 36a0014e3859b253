package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1024", 1024},
		{"1Ki", 1024},
		{"10Mi", 10 * 1024 * 1024},
		{"1Gi", 1024 * 1024 * 1024},
		{"512KiB", 512 * 1024},
		{"2MiB", 2 * 1024 * 1024},
		{"20MB", 20 * 1000 * 1000},
		{"1kb", 1000},
		{"100B", 100},
		{"1.5Mi", 1572864},
	}
	for _, c := range cases {
		got, err := ParseByteSize(c.in)
		if err != nil {
			t.Fatalf("ParseByteSize(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseByteSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"", "Mi", "ten megabytes", "10XX"} {
		if _, err := ParseByteSize(bad); err == nil {
			t.Fatalf("ParseByteSize(%q): expected error", bad)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	storage := t.TempDir()
	path := writeConfig(t, "server:\n  storageDir: "+storage+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("address = %q", cfg.Server.Addr)
	}
	if cfg.Server.DatabasePath != filepath.Join(storage, "localizer.db") {
		t.Fatalf("database path = %q", cfg.Server.DatabasePath)
	}
	if cfg.LLM.Provider != "mock" {
		t.Fatalf("provider = %q, want mock", cfg.LLM.Provider)
	}
	if cfg.Limits.Text != 1*1024*1024 || cfg.Limits.Image != 10*1024*1024 || cfg.Limits.Video != 100*1024*1024 {
		t.Fatalf("limit defaults wrong: %+v", cfg.Limits)
	}
	if cfg.Poller.Interval != 2*time.Second || cfg.Poller.MaxAttempts != 30 {
		t.Fatalf("poller defaults wrong: %+v", cfg.Poller)
	}
	if cfg.Dispatch.FeedCapacity != 256 || cfg.Dispatch.BatchSize != 16 {
		t.Fatalf("dispatch defaults wrong: %+v", cfg.Dispatch)
	}
}

func TestLoad_ParsesValues(t *testing.T) {
	storage := t.TempDir()
	path := writeConfig(t, `
server:
  address: ":9090"
  storageDir: `+storage+`
  logLevel: debug
limits:
  text: 2Mi
  image: 20Mi
  video: 200Mi
llm:
  provider: aiproxy
  aiproxy:
    baseUrl: http://localhost:8900
    model: gpt-test
    requestTimeout: 30s
poller:
  interval: 500ms
  maxAttempts: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.LogLevel != "debug" {
		t.Fatalf("server config wrong: %+v", cfg.Server)
	}
	if cfg.Limits.Text != 2*1024*1024 {
		t.Fatalf("text limit = %d", cfg.Limits.Text)
	}
	if cfg.LLM.AIProxy.Model != "gpt-test" || cfg.LLM.AIProxy.RequestTimeout != 30*time.Second {
		t.Fatalf("aiproxy config wrong: %+v", cfg.LLM.AIProxy)
	}
	if cfg.Poller.Interval != 500*time.Millisecond || cfg.Poller.MaxAttempts != 5 {
		t.Fatalf("poller config wrong: %+v", cfg.Poller)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_LOCALIZER_KEY", "secret-key")
	storage := t.TempDir()
	path := writeConfig(t, `
server:
  storageDir: `+storage+`
llm:
  provider: aiproxy
  aiproxy:
    baseUrl: http://localhost:8900
    model: gpt-test
    apiKey: ${TEST_LOCALIZER_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.AIProxy.APIKey != "secret-key" {
		t.Fatalf("api key = %q, want expanded env value", cfg.LLM.AIProxy.APIKey)
	}
}

func TestLoad_EnvPathFallback(t *testing.T) {
	storage := t.TempDir()
	path := writeConfig(t, "server:\n  storageDir: "+storage+"\n")
	t.Setenv("LOCALIZER_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.StorageDir != storage {
		t.Fatalf("storage dir = %q", cfg.Server.StorageDir)
	}
}

func TestLoad_Validation(t *testing.T) {
	storage := t.TempDir()

	path := writeConfig(t, `
server:
  storageDir: `+storage+`
llm:
  provider: quantum
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	path = writeConfig(t, `
server:
  storageDir: `+storage+`
limits:
  text: 10Mi
  image: 1Mi
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unordered limits")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
