// Package bench drives concurrent plan fetches against the routing service
// and aggregates cost-free telemetry: latency percentiles, cache-state and
// error-code histograms.
package bench

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgefn/routeprobe/pkg/plan"
)

// Synthetic statuses for failures that never produced a real HTTP status or
// invalidated a 2xx response.
const (
	StatusTransportFailure  = 599
	StatusContractViolation = 598
)

// Sample is the terminal outcome of one plan fetch. Exactly one of the
// success fields (CacheState/RouteID/Tier) or the error fields
// (ErrorCode/ErrorMessage) is populated.
type Sample struct {
	Index     int     `json:"index"`
	Status    int     `json:"status"`
	LatencyMs float64 `json:"latency_ms"`

	CacheState string `json:"cache_state,omitempty"`
	RouteID    string `json:"route_id,omitempty"`
	Tier       string `json:"tier,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (s Sample) Succeeded() bool {
	return s.Status >= 200 && s.Status < 300
}

type Fetcher interface {
	Fetch(ctx context.Context, in plan.FetchInput) (plan.Result, error)
}

type Harness struct {
	Client      Fetcher
	Input       plan.FetchInput
	Samples     int
	Concurrency int

	// OnSample observes each classified sample as it completes, in
	// completion order. Calls are serialized. Optional; used for
	// per-sample log lines.
	OnSample func(Sample)
}

// Run dispatches the configured number of plan fetches across a bounded
// worker pool and aggregates the outcomes. Every sample terminates
// classified; one sample's failure never aborts the batch. The returned
// error only reports harness-level misuse, not sample failures.
func (h *Harness) Run(ctx context.Context) (*Summary, error) {
	if h.Samples <= 0 {
		return nil, errors.New("sample count must be positive")
	}
	concurrency := h.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu      sync.Mutex
		samples = make([]Sample, 0, h.Samples)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < h.Samples; i++ {
		idx := i
		g.Go(func() error {
			s := h.runOne(gctx, idx)
			mu.Lock()
			samples = append(samples, s)
			// Serialized under the same lock so observers never interleave.
			if h.OnSample != nil {
				h.OnSample(s)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Summarize(samples), nil
}

func (h *Harness) runOne(ctx context.Context, idx int) Sample {
	started := time.Now()
	res, err := h.Client.Fetch(ctx, h.Input)
	latencyMs := float64(time.Since(started)) / float64(time.Millisecond)

	if err != nil {
		return classifyError(idx, latencyMs, err)
	}
	return Sample{
		Index:      idx,
		Status:     res.Status,
		LatencyMs:  float64(res.Latency) / float64(time.Millisecond),
		CacheState: plan.CacheState(res.Headers),
		RouteID:    res.Plan.RouteID,
		Tier:       tier(res.Headers),
	}
}

func classifyError(idx int, latencyMs float64, err error) Sample {
	s := Sample{Index: idx, LatencyMs: latencyMs}

	var rerr *plan.RequestError
	if errors.As(err, &rerr) {
		s.Status = rerr.Status
		s.ErrorCode = rerr.ErrorCode()
		s.ErrorMessage = rerr.Message
		if s.ErrorMessage == "" {
			s.ErrorMessage = rerr.Body
		}
		return s
	}
	var verr *plan.ValidationError
	if errors.As(err, &verr) {
		s.Status = StatusContractViolation
		s.ErrorCode = "MISSING_HEADERS"
		s.ErrorMessage = verr.Error()
		return s
	}
	s.Status = StatusTransportFailure
	s.ErrorCode = "TRANSPORT_ERROR"
	s.ErrorMessage = err.Error()
	return s
}

func tier(h http.Header) string {
	return h.Get("X-Route-Tier")
}
