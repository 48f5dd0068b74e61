// Package credential resolves the bearer token used for upstream calls.
//
// Resolution order: the plan's auth_env variable, the probe's own key
// variable, a previously minted token (memory, then cache file), the generic
// OPENAI_API_KEY fallback, and finally - when enabled - a freshly minted key
// from the issuer's /keys/generate endpoint. First-token minting is guarded
// single-flight so concurrent callers never race to mint duplicates.
package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// KeyEnv is the probe's own token variable, checked before fallbacks.
	KeyEnv = "ROUTEPROBE_API_KEY"
	// FallbackEnv is the generic credential slot most upstreams accept.
	FallbackEnv = "OPENAI_API_KEY"

	// DefaultCacheFile holds the last minted token in plaintext, next to the
	// working directory, so repeated runs reuse it.
	DefaultCacheFile = ".routeprobe_token"
)

// ConfigurationError means no usable credential could be resolved. It is
// fatal and never retried: retrying cannot change missing configuration.
// Err carries the mint failure when auto-generation was attempted.
type ConfigurationError struct {
	AuthEnv string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s is not set and key auto-generation failed: %v", e.AuthEnv, e.Err)
	}
	return fmt.Sprintf("%s is not set; export it or enable key auto-generation", e.AuthEnv)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IssuedKey is the issuer's /keys/generate response.
type IssuedKey struct {
	ID        string   `json:"id"`
	Token     string   `json:"token"`
	Label     string   `json:"label"`
	Scopes    []string `json:"scopes"`
	ExpiresAt int64    `json:"expires_at"`
}

// MintInput shapes a key-generation request. ExpiresAt wins over TTL when
// both are set.
type MintInput struct {
	Label     string
	TTL       time.Duration
	ExpiresAt int64
	Scopes    []string
}

type Provider struct {
	IssuerURL  string
	HTTPClient *http.Client
	Timeout    time.Duration

	// AutoGenerate permits minting a key when nothing else resolves.
	AutoGenerate bool
	Label        string
	TTL          time.Duration
	CacheFile    string

	// Getenv is injectable for tests; defaults to os.Getenv.
	Getenv func(string) string

	mu     sync.Mutex
	cached string
	flight *flight
}

type flight struct {
	done  chan struct{}
	token string
	err   error
}

// Resolve returns a usable bearer token for the named credential slot.
func (p *Provider) Resolve(ctx context.Context, authEnv string) (string, error) {
	slot := strings.TrimSpace(authEnv)
	if slot == "" {
		slot = FallbackEnv
	}
	if tok := strings.TrimSpace(p.getenv(slot)); tok != "" {
		return tok, nil
	}
	if tok := strings.TrimSpace(p.getenv(KeyEnv)); tok != "" {
		return tok, nil
	}
	if tok := p.cachedToken(); tok != "" {
		return tok, nil
	}
	if tok := p.loadCacheFile(); tok != "" {
		p.mu.Lock()
		p.cached = tok
		p.mu.Unlock()
		return tok, nil
	}
	if slot != FallbackEnv {
		if tok := strings.TrimSpace(p.getenv(FallbackEnv)); tok != "" {
			return tok, nil
		}
	}
	if !p.AutoGenerate {
		return "", &ConfigurationError{AuthEnv: slot}
	}

	f, owner := p.beginFlight()
	if !owner {
		select {
		case <-f.done:
			if f.err != nil {
				return "", f.err
			}
			return f.token, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	defer p.endFlight(f)

	key, err := p.Mint(ctx, MintInput{Label: p.Label, TTL: p.TTL})
	if err != nil {
		f.err = &ConfigurationError{AuthEnv: slot, Err: err}
		return "", f.err
	}
	token := strings.TrimSpace(key.Token)
	if token == "" {
		f.err = &ConfigurationError{AuthEnv: slot, Err: fmt.Errorf("issuer returned an empty token")}
		return "", f.err
	}
	p.mu.Lock()
	p.cached = token
	p.mu.Unlock()
	p.saveCacheFile(token)
	f.token = token
	return token, nil
}

// Invalidate drops the in-memory token, forcing the next Resolve to go back
// through the file or the issuer.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cached = ""
	p.mu.Unlock()
}

// Mint calls the issuer's /keys/generate endpoint.
func (p *Provider) Mint(ctx context.Context, in MintInput) (IssuedKey, error) {
	base := strings.TrimRight(strings.TrimSpace(p.IssuerURL), "/")
	if base == "" {
		return IssuedKey{}, fmt.Errorf("issuer url is empty")
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = "routeprobe"
	}

	payload := map[string]any{"label": label}
	if in.ExpiresAt > 0 {
		payload["expires_at"] = in.ExpiresAt
	} else if in.TTL > 0 {
		payload["ttl_seconds"] = int(in.TTL.Seconds())
	}
	if len(in.Scopes) > 0 {
		payload["scopes"] = in.Scopes
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return IssuedKey{}, err
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, base+"/keys/generate", bytes.NewReader(raw))
	if err != nil {
		return IssuedKey{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	hc := p.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return IssuedKey{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return IssuedKey{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return IssuedKey{}, fmt.Errorf("keys/generate failed: status=%d body=%q", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var key IssuedKey
	if err := json.Unmarshal(body, &key); err != nil {
		return IssuedKey{}, fmt.Errorf("keys/generate non-json response: %w", err)
	}
	return key, nil
}

func (p *Provider) getenv(name string) string {
	if p.Getenv != nil {
		return p.Getenv(name)
	}
	return os.Getenv(name)
}

func (p *Provider) cachedToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cached
}

func (p *Provider) cachePath() string {
	if path := strings.TrimSpace(p.CacheFile); path != "" {
		return path
	}
	return DefaultCacheFile
}

func (p *Provider) loadCacheFile() string {
	// #nosec G304 -- cache path comes from trusted config.
	b, err := os.ReadFile(p.cachePath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (p *Provider) saveCacheFile(token string) {
	path := p.cachePath()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return
		}
	}
	_ = os.WriteFile(path, []byte(token+"\n"), 0o600)
}

func (p *Provider) beginFlight() (*flight, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flight != nil {
		return p.flight, false
	}
	f := &flight{done: make(chan struct{})}
	p.flight = f
	return f, true
}

func (p *Provider) endFlight(f *flight) {
	p.mu.Lock()
	if p.flight == f {
		p.flight = nil
	}
	p.mu.Unlock()
	close(f.done)
}
