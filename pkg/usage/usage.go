// Package usage normalizes upstream token accounting and prices it.
//
// The two invocation protocols name their counters differently
// (input_tokens/prompt_tokens, output_tokens/completion_tokens); everything
// is normalized to the responses-style names before cost estimation.
package usage

import "encoding/json"

// Record is the canonical usage shape. InputTokens and OutputTokens are
// always meaningful after normalization, defaulting to zero.
type Record struct {
	InputTokens              int
	OutputTokens             int
	CacheReadInputTokens     int
	CacheCreationInputTokens int
}

// Normalize maps protocol-specific field names onto the canonical record.
// Canonical names win over legacy ones; a record already using canonical
// names round-trips unchanged.
func Normalize(raw map[string]any) Record {
	rec := Record{
		InputTokens:              coerceInt(raw["input_tokens"]),
		OutputTokens:             coerceInt(raw["output_tokens"]),
		CacheReadInputTokens:     coerceInt(raw["cache_read_input_tokens"]),
		CacheCreationInputTokens: coerceInt(raw["cache_creation_input_tokens"]),
	}
	if rec.InputTokens == 0 {
		rec.InputTokens = coerceInt(raw["prompt_tokens"])
	}
	if rec.OutputTokens == 0 {
		rec.OutputTokens = coerceInt(raw["completion_tokens"])
	}
	return rec
}

// FromBody pulls the usage object out of a raw response body. A missing or
// malformed usage block yields a zero record.
func FromBody(body []byte) Record {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return Record{}
	}
	u, _ := root["usage"].(map[string]any)
	if u == nil {
		return Record{}
	}
	return Normalize(u)
}

// StandardInputTokens is the portion of input billed at the full input rate:
// whatever was not served from cache, clamped at zero.
func (r Record) StandardInputTokens() int {
	n := r.InputTokens - r.CacheReadInputTokens - r.CacheCreationInputTokens
	if n < 0 {
		return 0
	}
	return n
}

func (r Record) CachedInputTokens() int {
	return r.CacheReadInputTokens + r.CacheCreationInputTokens
}

// TotalTokens is display-only.
func (r Record) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

func coerceInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
	}
	return 0
}
