package usage

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultPriceUnit = "usd_per_1m_tokens"

// Price is the static per-model rate card, in USD per million tokens.
type Price struct {
	InputUSDPerMillion      float64
	CacheInputUSDPerMillion float64
	OutputUSDPerMillion     float64
}

// Table maps model id to its price entry. Tables are immutable once built;
// hot reload swaps whole snapshots.
type Table map[string]Price

// DefaultTable covers the models the probe is characterized against.
func DefaultTable() Table {
	return Table{
		"gpt-4.1-nano": {InputUSDPerMillion: 0.20, CacheInputUSDPerMillion: 0.05, OutputUSDPerMillion: 0.80},
		"gpt-5-nano":   {InputUSDPerMillion: 0.050, CacheInputUSDPerMillion: 0.005, OutputUSDPerMillion: 0.400},
		"gpt-5-mini":   {InputUSDPerMillion: 0.250, CacheInputUSDPerMillion: 0.025, OutputUSDPerMillion: 2.000},
	}
}

// EstimateCost prices a normalized usage record: non-cached input at the
// input rate, cached input (read + creation) at the cache rate, output at the
// output rate. Pure and deterministic.
func EstimateCost(rec Record, price Price) float64 {
	cost := usdFromMTokens(rec.StandardInputTokens(), price.InputUSDPerMillion)
	cost += usdFromMTokens(rec.CachedInputTokens(), price.CacheInputUSDPerMillion)
	cost += usdFromMTokens(rec.OutputTokens, price.OutputUSDPerMillion)
	return cost
}

func usdFromMTokens(tokens int, rate float64) float64 {
	return float64(tokens) / 1_000_000 * rate
}

type priceFile struct {
	Version string      `yaml:"version"`
	Unit    string      `yaml:"unit"`
	Entries []priceItem `yaml:"entries"`
}

type priceItem struct {
	Model string             `yaml:"model"`
	Cost  map[string]float64 `yaml:"cost"`
}

// LoadTable reads a yaml price file. Cost keys: input, cache_input, output.
// An empty path returns the built-in default table.
func LoadTable(path string) (Table, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultTable(), nil
	}
	// #nosec G304 -- path is provided by trusted config/env.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc priceFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse price file %q failed: %w", path, err)
	}
	if unit := strings.TrimSpace(doc.Unit); unit != "" && unit != defaultPriceUnit {
		return nil, fmt.Errorf("unsupported price unit %q in %q", unit, path)
	}

	out := Table{}
	for _, entry := range doc.Entries {
		model := strings.TrimSpace(entry.Model)
		if model == "" || len(entry.Cost) == 0 {
			continue
		}
		p := Price{
			InputUSDPerMillion:      entry.Cost["input"],
			CacheInputUSDPerMillion: entry.Cost["cache_input"],
			OutputUSDPerMillion:     entry.Cost["output"],
		}
		if p.CacheInputUSDPerMillion == 0 {
			p.CacheInputUSDPerMillion = p.InputUSDPerMillion
		}
		out[model] = p
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("price file %q has no usable entries", path)
	}
	return out, nil
}
