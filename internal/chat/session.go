// Package chat runs the interactive routed-chat session: one plan fetch and
// one upstream invocation per user turn, with cost accounting in between.
package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/edgefn/routeprobe/pkg/extract"
	"github.com/edgefn/routeprobe/pkg/invoke"
	"github.com/edgefn/routeprobe/pkg/plan"
	"github.com/edgefn/routeprobe/pkg/usage"
)

// TurnResult is everything one completed turn surfaces to the UI.
type TurnResult struct {
	Reply string

	Plan    plan.Plan
	Headers http.Header

	PlanLatency   time.Duration
	InvokeLatency time.Duration

	Usage     usage.Record
	CostUSD   float64
	CostKnown bool

	CacheState     string
	CanonicalModel string
}

// Session owns the transcript and drives the per-turn pipeline sequentially.
// Not safe for concurrent turns; the UIs serialize input.
type Session struct {
	Plans     *plan.Client
	Invoker   *invoke.Invoker
	Extractor *extract.Extractor
	Prices    *usage.Source

	Alias       string
	PrivacyMode string
	Caps        []string

	transcript []plan.Turn
}

// Transcript returns a copy of the turns accumulated so far.
func (s *Session) Transcript() []plan.Turn {
	out := make([]plan.Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Do executes one turn: plan fetch, message assembly, upstream invocation,
// text extraction, usage accounting. The transcript only grows when the turn
// completes; a failed turn leaves it untouched so the retry sees the same
// history.
func (s *Session) Do(ctx context.Context, userMessage string) (*TurnResult, error) {
	// The plan request sees the message being routed: the pending user turn
	// rides along so the router's summary covers it, even on the first turn.
	pending := append(s.Transcript(), plan.Turn{Role: "user", Content: userMessage})

	planStart := time.Now()
	res, err := s.Plans.Fetch(ctx, plan.FetchInput{
		Alias:        s.Alias,
		PrivacyMode:  s.PrivacyMode,
		Caps:         s.Caps,
		Conversation: pending,
	})
	if err != nil {
		return nil, err
	}
	planLatency := time.Since(planStart)

	messages := invoke.BuildMessages(&res.Plan, s.transcript, userMessage)

	invokeStart := time.Now()
	body, err := s.Invoker.Invoke(ctx, &res.Plan, messages)
	if err != nil {
		return nil, err
	}
	invokeLatency := time.Since(invokeStart)

	reply := s.Extractor.Text(body)
	rec := usage.FromBody(body)

	tr := &TurnResult{
		Reply:          reply,
		Plan:           res.Plan,
		Headers:        res.Headers,
		PlanLatency:    planLatency,
		InvokeLatency:  invokeLatency,
		Usage:          rec,
		CacheState:     plan.CacheState(res.Headers),
		CanonicalModel: plan.CanonicalModel(res.Headers),
	}
	if price, ok := s.lookupPrice(tr); ok {
		tr.CostUSD = usage.EstimateCost(rec, price)
		tr.CostKnown = true
	}

	s.transcript = append(s.transcript,
		plan.Turn{Role: "user", Content: userMessage},
		plan.Turn{Role: "assistant", Content: reply},
	)
	return tr, nil
}

// lookupPrice prefers the canonically resolved model name, then the plan's
// upstream model id.
func (s *Session) lookupPrice(tr *TurnResult) (usage.Price, bool) {
	if s.Prices == nil {
		return usage.Price{}, false
	}
	if tr.CanonicalModel != "" {
		if p, ok := s.Prices.Lookup(tr.CanonicalModel); ok {
			return p, true
		}
	}
	if tr.Plan.Canonical.Model != "" {
		if p, ok := s.Prices.Lookup(tr.Plan.Canonical.Model); ok {
			return p, true
		}
	}
	return s.Prices.Lookup(tr.Plan.Upstream.ModelID)
}
