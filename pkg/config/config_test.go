package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	Name    string        `split_words:"true" required:"true"`
	Timeout time.Duration `split_words:"true" default:"5s"`
}

func TestExportEnvironmentKeepsExistingVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "CFGTEST_NAME=from-file\nCFGTEST_TIMEOUT=9s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("CFGTEST_NAME", "from-env")

	if err := exportEnvironment(path); err != nil {
		t.Fatalf("exportEnvironment() error = %v", err)
	}

	if got := os.Getenv("CFGTEST_NAME"); got != "from-env" {
		t.Fatalf("CFGTEST_NAME = %q, want %q", got, "from-env")
	}
	if got := os.Getenv("CFGTEST_TIMEOUT"); got != "9s" {
		t.Fatalf("CFGTEST_TIMEOUT = %q, want %q", got, "9s")
	}
	os.Unsetenv("CFGTEST_TIMEOUT")
}

func TestExportEnvironmentIfExistsMissingFile(t *testing.T) {
	t.Parallel()

	if err := exportEnvironmentIfExists(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("exportEnvironmentIfExists() error = %v", err)
	}
}

func TestPrefixLabel(t *testing.T) {
	t.Parallel()

	if got := prefixLabel(""); got != "(root)" {
		t.Fatalf("prefixLabel(\"\") = %q", got)
	}
	if got := prefixLabel("REDIS"); got != "REDIS" {
		t.Fatalf("prefixLabel(REDIS) = %q", got)
	}
}
