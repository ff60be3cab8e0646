package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
storage:
  conversations_dir: /tmp/odesk-chats
  archive_path: /tmp/odesk-archive.db
runtime:
  base_url: http://127.0.0.1:11434/v1
  api_key: dummy
  model: qwen2.5:7b
  timeout: 90s
log:
  level: debug
`

// TestLoad verifies that Load unmarshals a full config file.
func TestLoad(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(sampleConfig); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.ConversationsDir != "/tmp/odesk-chats" {
		t.Fatalf("unexpected conversations dir: %s", cfg.Storage.ConversationsDir)
	}
	if cfg.Runtime.Model != "qwen2.5:7b" {
		t.Fatalf("unexpected model: %s", cfg.Runtime.Model)
	}
	if cfg.Runtime.Timeout != 90*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Runtime.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %s", cfg.Log.Level)
	}
}

// TestLoad_MissingConfigPath verifies that a CONFIG_PATH naming a nonexistent
// file is treated like a missing file, not an error.
func TestLoad_MissingConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "no-such-config.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Runtime.Model != "llama3" {
		t.Fatalf("unexpected default model: %s", cfg.Runtime.Model)
	}
}

// TestLoad_MissingFile verifies that defaults apply when no config file exists.
func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Runtime.BaseURL != "http://127.0.0.1:11434/v1" {
		t.Fatalf("unexpected default base url: %s", cfg.Runtime.BaseURL)
	}
	if cfg.Runtime.Model != "llama3" {
		t.Fatalf("unexpected default model: %s", cfg.Runtime.Model)
	}
	if cfg.Storage.ConversationsDir == "" {
		t.Fatal("expected a default conversations dir")
	}
}
