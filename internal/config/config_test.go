package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Router.URL != "http://localhost:9099" {
		t.Fatalf("router url=%q", cfg.Router.URL)
	}
	if cfg.Bench.Samples != 50 || cfg.Bench.Concurrency != 4 {
		t.Fatalf("bench defaults=%d/%d", cfg.Bench.Samples, cfg.Bench.Concurrency)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("timeout=%v", cfg.RequestTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROUTER_URL", "http://router:9099")
	t.Setenv("ROUTER_CAPS", "text, image ,")
	t.Setenv("SAMPLE_REQUESTS", "7")
	t.Setenv("CONCURRENCY", "2")
	t.Setenv("REQUEST_TIMEOUT", "2.5")
	t.Setenv("ISSUER_AUTO_KEY", "off")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Router.URL != "http://router:9099" {
		t.Fatalf("router url=%q", cfg.Router.URL)
	}
	if len(cfg.Router.Caps) != 2 || cfg.Router.Caps[0] != "text" || cfg.Router.Caps[1] != "image" {
		t.Fatalf("caps=%v", cfg.Router.Caps)
	}
	if cfg.Bench.Samples != 7 || cfg.Bench.Concurrency != 2 {
		t.Fatalf("bench=%d/%d", cfg.Bench.Samples, cfg.Bench.Concurrency)
	}
	if cfg.RequestTimeout != 2500*time.Millisecond {
		t.Fatalf("timeout=%v", cfg.RequestTimeout)
	}
	if cfg.Issuer.AutoKey {
		t.Fatalf("auto key should be disabled")
	}
}

func TestUpstreamBaseURLPriority(t *testing.T) {
	t.Setenv("ROUTEPROBE_BASE_URL", "http://first:8000")
	t.Setenv("OPENAI_BASE_URL", "http://second:8000")
	if got := UpstreamBaseURL(); got != "http://first:8000" {
		t.Fatalf("base url=%q", got)
	}
	t.Setenv("ROUTEPROBE_BASE_URL", "")
	if got := UpstreamBaseURL(); got != "http://second:8000" {
		t.Fatalf("base url=%q", got)
	}
}
