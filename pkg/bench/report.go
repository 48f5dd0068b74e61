package bench

import (
	"encoding/json"
	"math"
	"os"
	"sort"
)

// LatencyStats are computed over successful samples only.
type LatencyStats struct {
	Min float64 `json:"min"`
	Avg float64 `json:"avg"`
	P95 float64 `json:"p95"`
	Max float64 `json:"max"`
}

// Summary is the aggregate view of one benchmark batch. Latency is nil when
// no sample succeeded, so the serialized report omits the block entirely
// rather than publishing zeros that look like measurements.
type Summary struct {
	Samples   int           `json:"samples"`
	Successes int           `json:"successes"`
	Errors    int           `json:"errors"`
	Latency   *LatencyStats `json:"latency_ms,omitempty"`

	CacheStates    map[string]int `json:"cache_states"`
	ErrorBreakdown map[string]int `json:"error_breakdown,omitempty"`

	// RepresentativeError is the lowest-index failed sample, kept so a
	// report reader sees one concrete message per failing batch.
	RepresentativeError *Sample `json:"representative_error,omitempty"`
}

// Failed reports whether the batch should be treated as a failure. A single
// errored sample fails the whole run.
func (s *Summary) Failed() bool {
	return s.Errors > 0
}

// Summarize folds classified samples into a Summary. Order of the input does
// not matter; the representative error is chosen by sample index.
func Summarize(samples []Sample) *Summary {
	sum := &Summary{
		Samples:     len(samples),
		CacheStates: map[string]int{},
	}

	var latencies []float64
	for i := range samples {
		s := samples[i]
		if s.Succeeded() {
			sum.Successes++
			sum.CacheStates[s.CacheState]++
			latencies = append(latencies, s.LatencyMs)
			continue
		}
		sum.Errors++
		if sum.ErrorBreakdown == nil {
			sum.ErrorBreakdown = map[string]int{}
		}
		sum.ErrorBreakdown[s.ErrorCode]++
		if sum.RepresentativeError == nil || s.Index < sum.RepresentativeError.Index {
			cp := s
			sum.RepresentativeError = &cp
		}
	}

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		sum.Latency = &LatencyStats{
			Min: latencies[0],
			Avg: mean(latencies),
			P95: percentile95(latencies),
			Max: latencies[len(latencies)-1],
		}
	}
	return sum
}

func mean(sorted []float64) float64 {
	var total float64
	for _, v := range sorted {
		total += v
	}
	return total / float64(len(sorted))
}

// percentile95 is the nearest-rank 95th percentile: the value at rank
// ceil(0.95*n) of the ascending-sorted slice.
func percentile95(sorted []float64) float64 {
	n := len(sorted)
	rank := int(math.Ceil(0.95 * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}

// Document is the persisted report envelope: the run parameters alongside
// the aggregate so a report file is self-describing.
type Document struct {
	RouterURL   string   `json:"router_url"`
	IssuerURL   string   `json:"issuer_url,omitempty"`
	Samples     int      `json:"samples"`
	Concurrency int      `json:"concurrency"`
	Report      *Summary `json:"report"`
}

// WriteReport persists the document as indented JSON.
func WriteReport(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
