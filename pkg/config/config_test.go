package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromStringYAML(t *testing.T) {
	t.Setenv("SPRITE_TEST_HISTORY", "/tmp/sprite-history.json")
	cfg, err := LoadFromString(`
runtime:
  timeout_ms: 1500
  max_call_depth: 64
  log_execution: true
server:
  port: 9090
history:
  file: ${SPRITE_TEST_HISTORY}
globals:
  limit: 10
  name: sprite
`, "yaml")
	if err != nil {
		t.Fatalf("load yaml failed: %v", err)
	}
	rc := cfg.RuntimeConfig()
	if rc.Timeout != 1500*time.Millisecond || rc.MaxCallDepth != 64 || !rc.LogExecution {
		t.Fatalf("unexpected runtime config %+v", rc)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("expected port override on top of default host, got %+v", cfg.Server)
	}
	if cfg.History.File != "/tmp/sprite-history.json" {
		t.Fatalf("expected env expansion, got %q", cfg.History.File)
	}
	if !cfg.Cache.Enabled || cfg.Cache.MaxPrograms != 1024 {
		t.Fatalf("expected cache defaults to survive, got %+v", cfg.Cache)
	}
	if len(cfg.Globals) != 2 || cfg.Globals["name"] != "sprite" {
		t.Fatalf("unexpected globals %#v", cfg.Globals)
	}
	if cfg.Addr() != "0.0.0.0:9090" {
		t.Fatalf("unexpected addr %s", cfg.Addr())
	}
}

func TestLoadFromStringJSON(t *testing.T) {
	cfg, err := LoadFromString(`{"runtime": {"max_call_depth": 8}, "cache": {"enabled": false}}`, "json")
	if err != nil {
		t.Fatalf("load json failed: %v", err)
	}
	if cfg.Runtime.MaxCallDepth != 8 || cfg.Cache.Enabled {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.RuntimeConfig().Timeout != 0 {
		t.Fatalf("timeout should stay off")
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"negative timeout": `{"runtime": {"timeout_ms": -1}}`,
		"negative depth":   `{"runtime": {"max_call_depth": -2}}`,
		"empty cache":      `{"cache": {"enabled": true, "max_programs": 0}}`,
		"bad port":         `{"server": {"port": 70000}}`,
		"keyword global":   `{"globals": {"while": 1}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFromString(content, "json"); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if _, err := LoadFromString("{}", "toml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sprite.yml")
	if err := os.WriteFile(path, []byte("runtime:\n  max_call_depth: 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Runtime.MaxCallDepth != 3 {
		t.Fatalf("expected depth 3, got %d", cfg.Runtime.MaxCallDepth)
	}
	if _, err := Load(filepath.Join(dir, "sprite.ini")); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestDetectConfigFormat(t *testing.T) {
	cfg, err := DetectConfigFormat(`{"server": {"version": "1.2.3"}}`)
	if err != nil {
		t.Fatalf("detect json failed: %v", err)
	}
	if cfg.Server.Version != "1.2.3" {
		t.Fatalf("unexpected version %q", cfg.Server.Version)
	}
	cfg, err = DetectConfigFormat("server:\n  version: yaml\n")
	if err != nil {
		t.Fatalf("detect yaml failed: %v", err)
	}
	if cfg.Server.Version != "yaml" {
		t.Fatalf("unexpected version %q", cfg.Server.Version)
	}
}
