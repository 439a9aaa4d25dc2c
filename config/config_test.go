package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9090"
mysql:
  dsn: "user:pass@tcp(127.0.0.1:3306)/ptv?charset=utf8mb4&parseTime=True"
redis:
  addr: "127.0.0.1:6379"
generation:
  endpoint: "https://gen.example"
  api_key: "sk-test"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Generation.Endpoint != "https://gen.example" {
		t.Errorf("endpoint = %q", cfg.Generation.Endpoint)
	}

	g := cfg.Generation
	if g.PollIntervalSec != 3 || g.PollTimeoutMin != 30 {
		t.Errorf("poll defaults: interval=%d timeout=%d", g.PollIntervalSec, g.PollTimeoutMin)
	}
	if g.ImageCount != 3 || g.BaseUnitSec != 8 || g.AspectRatio != "16:9" {
		t.Errorf("generation defaults: count=%d unit=%d ratio=%q", g.ImageCount, g.BaseUnitSec, g.AspectRatio)
	}
	if g.SeedMin != 1 || g.SeedMax != 2147483647 {
		t.Errorf("seed defaults: min=%d max=%d", g.SeedMin, g.SeedMax)
	}
}

func TestLoadExplicitValuesKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
generation:
  endpoint: "https://gen.example"
  poll_interval_sec: 10
  image_count: 5
  base_unit_sec: 6
  seed_min: 100
  seed_max: 999
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g := cfg.Generation
	if g.PollIntervalSec != 10 || g.ImageCount != 5 || g.BaseUnitSec != 6 {
		t.Errorf("explicit values overwritten: %+v", g)
	}
	if g.SeedMin != 100 || g.SeedMax != 999 {
		t.Errorf("seed range overwritten: min=%d max=%d", g.SeedMin, g.SeedMax)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
