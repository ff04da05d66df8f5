package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnvMissingFileIsNotAnError(t *testing.T) {
	t.Parallel()
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
}

func TestLoadDotEnvProcessEnvWins(t *testing.T) {
	t.Setenv("SYNC_DOTENV_EXISTING", "from-process")

	path := filepath.Join(t.TempDir(), ".env")
	content := "# local overrides\n" +
		"SYNC_DOTENV_NEW=abc\n" +
		"SYNC_DOTENV_EXISTING=from-file\n" +
		`SYNC_DOTENV_QUOTED="spaced value"` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("SYNC_DOTENV_NEW"); got != "abc" {
		t.Fatalf("SYNC_DOTENV_NEW = %q", got)
	}
	if got := os.Getenv("SYNC_DOTENV_QUOTED"); got != "spaced value" {
		t.Fatalf("SYNC_DOTENV_QUOTED = %q", got)
	}
	if got := os.Getenv("SYNC_DOTENV_EXISTING"); got != "from-process" {
		t.Fatalf("SYNC_DOTENV_EXISTING = %q, want the process value kept", got)
	}
}

func TestLoadDotEnvMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(`SYNC_DOTENV_BAD="unterminated`), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := LoadDotEnv(path); err == nil {
		t.Fatal("LoadDotEnv() accepted a malformed file")
	}
}
