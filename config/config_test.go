package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadServer_Defaults(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `{"certificate_fingerprint":"0123456789abcdef0123456789abcdef01234567"}`)
	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.ServerPort != defaultServerPort {
		t.Errorf("ServerPort = %d, want default %d", cfg.ServerPort, defaultServerPort)
	}
	if !cfg.PacingEnabled {
		t.Error("PacingEnabled should default to true")
	}
}

func TestLoadServer_ExplicitValues(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `{"certificate_fingerprint":"0123456789abcdef0123456789abcdef01234567","server_port":9000,"pacing_enabled":false}`)
	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.ServerPort != 9000 {
		t.Errorf("ServerPort = %d, want 9000", cfg.ServerPort)
	}
	if cfg.PacingEnabled {
		t.Error("PacingEnabled should be false")
	}
}

func TestLoadServer_RejectsBadFingerprint(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `{"certificate_fingerprint":"tooshort"}`)
	if _, err := LoadServer(path); err == nil {
		t.Fatal("expected error for undersized fingerprint")
	}
}

func TestLoadServer_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadServer(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `{}`)
	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.ServerPort != defaultServerPort {
		t.Errorf("ServerPort = %d, want default %d", cfg.ServerPort, defaultServerPort)
	}
}

func TestLoadClient_ExplicitPort(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `{"server_port":5555}`)
	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.ServerPort != 5555 {
		t.Errorf("ServerPort = %d, want 5555", cfg.ServerPort)
	}
}
