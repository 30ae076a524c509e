package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("Load() port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Server.KeepAlive || cfg.Server.AdminPath != "/_admin" {
			t.Errorf("Load() server = %+v", cfg.Server)
		}
		if cfg.Server.ReadTimeout != 30*time.Second {
			t.Errorf("Load() read timeout = %v", cfg.Server.ReadTimeout)
		}
		if !cfg.Routing.IgnoreCase || !cfg.Routing.IgnoreMultiSlash || !cfg.Routing.IgnoreTrailingSlash || !cfg.Routing.InternalRedirect {
			t.Errorf("Load() routing = %+v", cfg.Routing)
		}
		want := []string{"incoming", "validation", "authentication", "authorization", "general"}
		if !slices.Equal(cfg.Pipeline.Stages, want) {
			t.Errorf("Load() stages = %v, want %v", cfg.Pipeline.Stages, want)
		}
		if cfg.Journal.Driver != "memory" || cfg.Journal.Capacity != 1000 {
			t.Errorf("Load() journal = %+v", cfg.Journal)
		}
	})

	t.Run("env var port override", func(t *testing.T) {
		t.Setenv("STAGEHAND_SERVER__PORT", "9000")
		t.Setenv("STAGEHAND_ROUTING__INTERNAL_REDIRECT", "false")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("Load() port = %v, want 9000", cfg.Server.Port)
		}
		if cfg.Routing.InternalRedirect {
			t.Error("Load() internal redirect not cleared from env")
		}
	})

	t.Run("missing file is ignored", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	})
}

func TestLoad_File(t *testing.T) {
	t.Setenv("JOURNAL_DIR", "/var/lib/stagehand")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  host: 127.0.0.1
  port: 7070
  keep_alive: true
  request_timeout: 5s
routing:
  ignore_case: false
pipeline:
  stages: [incoming, general]
auth:
  api_keys:
    - key_hash: 625faa3fbbc3d2bd9d6ee7678d04cc5339cb33dc68d9b58451853d60046e226a
      principal: editor
journal:
  driver: sqlite
  path: ${JOURNAL_DIR}/journal.db
telemetry:
  enabled: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STAGEHAND_SERVER__PORT", "7171")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Server.Addr(); got != "127.0.0.1:7171" {
		t.Errorf("Addr() = %q, env should override the file", got)
	}
	if !cfg.Server.KeepAlive {
		t.Error("keep_alive from file was overwritten by the default")
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("request timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Routing.IgnoreCase || !cfg.Routing.IgnoreMultiSlash {
		t.Errorf("routing = %+v", cfg.Routing)
	}
	if !slices.Equal(cfg.Pipeline.Stages, []string{"incoming", "general"}) {
		t.Errorf("stages = %v", cfg.Pipeline.Stages)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0].Principal != "editor" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Journal.Path != "/var/lib/stagehand/journal.db" {
		t.Errorf("journal path = %q", cfg.Journal.Path)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.ServiceName != "stagehand" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "journal:\n  driver: postgres\n"},
		{"half tls", "server:\n  tls:\n    cert_file: cert.pem\n"},
		{"short key hash", "auth:\n  api_keys:\n    - key_hash: abc\n"},
		{"malformed", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected an error")
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
