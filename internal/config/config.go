package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// UpstreamBaseURLEnvs are checked in order when a plan does not pin an
// upstream base URL. The first non-empty value wins.
var UpstreamBaseURLEnvs = []string{
	"ROUTEPROBE_BASE_URL",
	"OPENAI_BASE_URL",
}

type Config struct {
	Router struct {
		URL         string
		Alias       string
		PrivacyMode string
		Caps        []string
	}

	Issuer struct {
		URL      string
		AutoKey  bool
		KeyLabel string
		KeyTTL   time.Duration
	}

	Bench struct {
		Samples     int
		Concurrency int
		OutputPath  string
	}

	Pricing struct {
		File string
	}

	RequestTimeout time.Duration

	// DumpDir receives diagnostic artifacts (unparsable upstream bodies).
	DumpDir string
}

// Load builds the effective configuration: defaults, then a local .env file
// (values never override variables already exported), then environment
// variables.
func Load() (*Config, error) {
	// Ignore a missing .env; it is optional for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	cfg.Router.URL = "http://localhost:9099"
	cfg.Router.Alias = "edu-general"
	cfg.Router.PrivacyMode = "features_only"
	cfg.Router.Caps = []string{"text"}

	cfg.Issuer.URL = "http://localhost:8088"
	cfg.Issuer.AutoKey = true
	cfg.Issuer.KeyLabel = "routeprobe"
	cfg.Issuer.KeyTTL = 24 * time.Hour

	cfg.Bench.Samples = 50
	cfg.Bench.Concurrency = 4
	cfg.Bench.OutputPath = "./perf_report.json"

	cfg.RequestTimeout = 15 * time.Second
	cfg.DumpDir = "."
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ROUTER_URL")); v != "" {
		cfg.Router.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("ROUTER_ALIAS")); v != "" {
		cfg.Router.Alias = v
	}
	if v := strings.TrimSpace(os.Getenv("ROUTER_PRIVACY")); v != "" {
		cfg.Router.PrivacyMode = v
	}
	if v := strings.TrimSpace(os.Getenv("ROUTER_CAPS")); v != "" {
		cfg.Router.Caps = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("ISSUER_URL")); v != "" {
		cfg.Issuer.URL = v
	}
	cfg.Issuer.AutoKey = envBool("ISSUER_AUTO_KEY", cfg.Issuer.AutoKey)
	if v := strings.TrimSpace(os.Getenv("ISSUER_KEY_LABEL")); v != "" {
		cfg.Issuer.KeyLabel = v
	}
	if v := strings.TrimSpace(os.Getenv("ISSUER_KEY_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Issuer.KeyTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("SAMPLE_REQUESTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Bench.Samples = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Bench.Concurrency = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("OUTPUT_PATH")); v != "" {
		cfg.Bench.OutputPath = v
	}
	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RequestTimeout = time.Duration(f * float64(time.Second))
		}
	}
	if v := strings.TrimSpace(os.Getenv("PRICE_FILE")); v != "" {
		cfg.Pricing.File = v
	}
	if v := strings.TrimSpace(os.Getenv("DUMP_DIR")); v != "" {
		cfg.DumpDir = v
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Router.URL) == "" {
		return errors.New("router url is required (set ROUTER_URL)")
	}
	if cfg.Bench.Samples <= 0 {
		return errors.New("sample count must be positive")
	}
	if cfg.Bench.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	return nil
}

// UpstreamBaseURL returns the configured upstream base URL override, checking
// the candidate variables in their fixed priority order.
func UpstreamBaseURL() string {
	for _, name := range UpstreamBaseURLEnvs {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
