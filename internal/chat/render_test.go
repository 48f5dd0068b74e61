package chat

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/edgefn/routeprobe/pkg/plan"
	"github.com/edgefn/routeprobe/pkg/usage"
)

func TestFormatCost(t *testing.T) {
	if got := FormatCost(0.0001234, true); got != "$0.000123" {
		t.Fatalf("FormatCost = %q", got)
	}
	if got := FormatCost(0, false); got != "n/a" {
		t.Fatalf("unknown cost = %q, want n/a", got)
	}
}

func TestFormatEstCost(t *testing.T) {
	if got := FormatEstCost(120); got != "$0.000120" {
		t.Fatalf("FormatEstCost = %q", got)
	}
	if got := FormatEstCost(0); got != "n/a" {
		t.Fatalf("zero hint = %q, want n/a", got)
	}
}

func TestRenderSnapshotShowsRoutingDecision(t *testing.T) {
	h := http.Header{}
	h.Set("Config-Revision", "rev-9")
	tr := &TurnResult{
		Plan: plan.Plan{
			RouteID:   "r-abc",
			Hints:     plan.Hints{Tier: "standard", EstCostMicro: 120},
			PolicyRev: "pol-9",
		},
		Headers:        h,
		CacheState:     "hit",
		CanonicalModel: "gpt-5-nano",
	}
	out := RenderSnapshot(tr)
	for _, want := range []string{"r-abc", "gpt-5-nano", "standard", "hit", "rev-9", "pol-9", "$0.000120"} {
		if !strings.Contains(out, want) {
			t.Fatalf("snapshot missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTrace(t *testing.T) {
	tr := &TurnResult{
		PlanLatency:   12 * time.Millisecond,
		InvokeLatency: 340 * time.Millisecond,
		Usage:         usage.Record{InputTokens: 1000, OutputTokens: 200, CacheReadInputTokens: 100},
		CostUSD:       0.000125,
		CostKnown:     true,
	}
	out := RenderTrace(tr)
	for _, want := range []string{"12ms", "340ms", "in=900", "cached=100", "out=200", "$0.000125"} {
		if !strings.Contains(out, want) {
			t.Fatalf("trace missing %q: %s", want, out)
		}
	}
}
