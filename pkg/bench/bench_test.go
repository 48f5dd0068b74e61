package bench

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgefn/routeprobe/pkg/plan"
)

type scriptedFetcher struct {
	calls   atomic.Int64
	outcome func(n int) (plan.Result, error)
}

func (f *scriptedFetcher) Fetch(ctx context.Context, in plan.FetchInput) (plan.Result, error) {
	n := int(f.calls.Add(1)) - 1
	return f.outcome(n)
}

func okResult(cacheState string) plan.Result {
	h := http.Header{}
	h.Set("X-Route-Cache", cacheState)
	h.Set("X-Route-Tier", "standard")
	return plan.Result{
		Plan:    plan.Plan{RouteID: "r-123"},
		Headers: h,
		Status:  200,
		Latency: 12 * time.Millisecond,
	}
}

func TestRunMixedOutcomes(t *testing.T) {
	f := &scriptedFetcher{outcome: func(n int) (plan.Result, error) {
		switch {
		case n < 3:
			return plan.Result{}, &plan.RequestError{Status: 429, Code: "RATE_LIMITED", Message: "slow down"}
		case n < 5:
			return plan.Result{}, &plan.RequestError{Status: 500, Body: "internal error"}
		default:
			return okResult("hit"), nil
		}
	}}
	h := &Harness{Client: f, Samples: 50, Concurrency: 4}

	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Samples != 50 || sum.Successes != 45 || sum.Errors != 5 {
		t.Fatalf("got samples=%d successes=%d errors=%d", sum.Samples, sum.Successes, sum.Errors)
	}
	if !sum.Failed() {
		t.Fatal("batch with errors must be marked failed")
	}
	if sum.ErrorBreakdown["RATE_LIMITED"] != 3 {
		t.Fatalf("RATE_LIMITED count = %d, want 3", sum.ErrorBreakdown["RATE_LIMITED"])
	}
	if sum.ErrorBreakdown["HTTP_500"] != 2 {
		t.Fatalf("HTTP_500 count = %d, want 2", sum.ErrorBreakdown["HTTP_500"])
	}
	if sum.CacheStates["hit"] != 45 {
		t.Fatalf("cache hit count = %d, want 45", sum.CacheStates["hit"])
	}
	if sum.Latency == nil {
		t.Fatal("latency stats missing despite successes")
	}
	if sum.RepresentativeError == nil {
		t.Fatal("representative error missing")
	}
}

func TestRunAllErrorsOmitsLatency(t *testing.T) {
	f := &scriptedFetcher{outcome: func(n int) (plan.Result, error) {
		return plan.Result{}, &plan.TransportError{Err: errors.New("connection refused")}
	}}
	h := &Harness{Client: f, Samples: 5, Concurrency: 2}

	sum, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Latency != nil {
		t.Fatalf("latency stats should be absent with zero successes, got %+v", sum.Latency)
	}
	if sum.ErrorBreakdown["TRANSPORT_ERROR"] != 5 {
		t.Fatalf("TRANSPORT_ERROR count = %d, want 5", sum.ErrorBreakdown["TRANSPORT_ERROR"])
	}
	if sum.RepresentativeError.Status != StatusTransportFailure {
		t.Fatalf("transport failure status = %d, want %d", sum.RepresentativeError.Status, StatusTransportFailure)
	}
}

func TestRunObservesSamples(t *testing.T) {
	f := &scriptedFetcher{outcome: func(n int) (plan.Result, error) {
		return okResult("miss"), nil
	}}
	var observed atomic.Int64
	h := &Harness{
		Client:      f,
		Samples:     8,
		Concurrency: 3,
		OnSample:    func(Sample) { observed.Add(1) },
	}
	if _, err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := observed.Load(); got != 8 {
		t.Fatalf("observed %d samples, want 8", got)
	}
}

func TestClassifyValidationError(t *testing.T) {
	s := classifyError(0, 3.5, &plan.ValidationError{Missing: []string{"X-Route-Id"}})
	if s.Status != StatusContractViolation {
		t.Fatalf("status = %d, want %d", s.Status, StatusContractViolation)
	}
	if s.ErrorCode != "MISSING_HEADERS" {
		t.Fatalf("code = %q", s.ErrorCode)
	}
	if !strings.Contains(s.ErrorMessage, "X-Route-Id") {
		t.Fatalf("message %q does not name the missing header", s.ErrorMessage)
	}
}

func TestSummarizePercentileNearestRank(t *testing.T) {
	samples := make([]Sample, 0, 100)
	for i := 0; i < 100; i++ {
		samples = append(samples, Sample{Index: i, Status: 200, LatencyMs: float64(i + 1), CacheState: "hit"})
	}
	sum := Summarize(samples)
	if sum.Latency.P95 != 95 {
		t.Fatalf("p95 = %v, want 95", sum.Latency.P95)
	}
	if sum.Latency.Min != 1 || sum.Latency.Max != 100 {
		t.Fatalf("min/max = %v/%v", sum.Latency.Min, sum.Latency.Max)
	}
	if sum.Latency.Avg != 50.5 {
		t.Fatalf("avg = %v, want 50.5", sum.Latency.Avg)
	}
}

func TestSummarizeRepresentativeErrorByIndex(t *testing.T) {
	sum := Summarize([]Sample{
		{Index: 7, Status: 500, ErrorCode: "HTTP_500", ErrorMessage: "later"},
		{Index: 2, Status: 429, ErrorCode: "RATE_LIMITED", ErrorMessage: "first"},
	})
	if sum.RepresentativeError.Index != 2 {
		t.Fatalf("representative index = %d, want 2", sum.RepresentativeError.Index)
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf_report.json")
	doc := Document{
		RouterURL:   "http://localhost:9099",
		Samples:     5,
		Concurrency: 2,
		Report:      Summarize([]Sample{{Index: 0, Status: 500, ErrorCode: "HTTP_500"}}),
	}
	if err := WriteReport(path, doc); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if got["router_url"] != "http://localhost:9099" {
		t.Fatalf("router_url = %v", got["router_url"])
	}
	report, ok := got["report"].(map[string]any)
	if !ok {
		t.Fatalf("report block missing: %v", got)
	}
	if _, present := report["latency_ms"]; present {
		t.Fatal("latency_ms must be omitted when no sample succeeded")
	}
}
