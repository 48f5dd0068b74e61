package usage

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestNormalizeLegacyNames(t *testing.T) {
	rec := Normalize(map[string]any{
		"prompt_tokens":     float64(120),
		"completion_tokens": float64(30),
	})
	if rec.InputTokens != 120 || rec.OutputTokens != 30 {
		t.Fatalf("rec=%+v", rec)
	}
}

func TestNormalizeCanonicalIsIdentity(t *testing.T) {
	raw := map[string]any{
		"input_tokens":                float64(100),
		"output_tokens":               float64(40),
		"cache_read_input_tokens":     float64(25),
		"cache_creation_input_tokens": float64(5),
		// Legacy names must not override canonical ones.
		"prompt_tokens":     float64(999),
		"completion_tokens": float64(999),
	}
	rec := Normalize(raw)
	if rec.InputTokens != 100 || rec.OutputTokens != 40 {
		t.Fatalf("rec=%+v", rec)
	}
	if rec.CacheReadInputTokens != 25 || rec.CacheCreationInputTokens != 5 {
		t.Fatalf("rec=%+v", rec)
	}
}

func TestNormalizeEmptyDefaultsToZero(t *testing.T) {
	rec := Normalize(map[string]any{})
	if rec.InputTokens != 0 || rec.OutputTokens != 0 {
		t.Fatalf("rec=%+v", rec)
	}
}

func TestStandardInputNeverNegative(t *testing.T) {
	rec := Record{InputTokens: 100, CacheReadInputTokens: 80, CacheCreationInputTokens: 50}
	if got := rec.StandardInputTokens(); got != 0 {
		t.Fatalf("standard input=%d want 0", got)
	}
}

func TestEstimateCostCacheTiers(t *testing.T) {
	rec := Normalize(map[string]any{
		"input_tokens":            float64(1000),
		"cache_read_input_tokens": float64(200),
		"output_tokens":           float64(100),
	})
	price := Price{InputUSDPerMillion: 0.20, CacheInputUSDPerMillion: 0.05, OutputUSDPerMillion: 0.80}
	got := EstimateCost(rec, price)
	want := 800.0/1e6*0.20 + 200.0/1e6*0.05 + 100.0/1e6*0.80 // 0.00017
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("cost=%v want=%v", got, want)
	}
}

func TestFromBodyTolerant(t *testing.T) {
	if rec := FromBody([]byte(`not json`)); rec != (Record{}) {
		t.Fatalf("rec=%+v", rec)
	}
	rec := FromBody([]byte(`{"usage":{"prompt_tokens":12,"completion_tokens":3}}`))
	if rec.InputTokens != 12 || rec.OutputTokens != 3 {
		t.Fatalf("rec=%+v", rec)
	}
}

func TestLoadTableYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "price.yaml")
	doc := `
version: v1
unit: usd_per_1m_tokens
entries:
  - model: gpt-5-nano
    cost:
      input: 0.05
      cache_input: 0.005
      output: 0.4
  - model: other
    cost:
      input: 1.0
      output: 2.0
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write price: %v", err)
	}
	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	p, ok := table["gpt-5-nano"]
	if !ok || p.OutputUSDPerMillion != 0.4 {
		t.Fatalf("entry=%+v ok=%v", p, ok)
	}
	// cache_input defaults to the input rate when absent.
	if table["other"].CacheInputUSDPerMillion != 1.0 {
		t.Fatalf("cache fallback=%v", table["other"].CacheInputUSDPerMillion)
	}
}

func TestLoadTableEmptyPathDefaults(t *testing.T) {
	table, err := LoadTable("")
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if _, ok := table["gpt-4.1-nano"]; !ok {
		t.Fatalf("default table missing gpt-4.1-nano")
	}
}

func TestSourceReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "price.yaml")
	write := func(rate float64) {
		doc := `
entries:
  - model: m1
    cost:
      input: ` + strconv.FormatFloat(rate, 'f', -1, 64) + `
      output: 1.0
`
		if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
			t.Fatalf("write price: %v", err)
		}
	}
	write(0.1)
	src, err := NewSource(path)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	before := src.Table()
	write(0.2)
	if err := src.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if before["m1"].InputUSDPerMillion != 0.1 {
		t.Fatalf("old snapshot mutated: %+v", before["m1"])
	}
	if src.Table()["m1"].InputUSDPerMillion != 0.2 {
		t.Fatalf("new snapshot=%+v", src.Table()["m1"])
	}
}
