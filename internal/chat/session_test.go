package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edgefn/routeprobe/pkg/extract"
	"github.com/edgefn/routeprobe/pkg/invoke"
	"github.com/edgefn/routeprobe/pkg/plan"
	"github.com/edgefn/routeprobe/pkg/usage"
)

type staticCreds string

func (s staticCreds) Resolve(ctx context.Context, authEnv string) (string, error) {
	return string(s), nil
}

func planHandler(t *testing.T, upstreamURL string, gotPlanBody *[]map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode plan request: %v", err)
		}
		if gotPlanBody != nil {
			*gotPlanBody = append(*gotPlanBody, body)
		}
		h := w.Header()
		h.Set("Router-Schema", "1.1")
		h.Set("Router-Latency", "1.5")
		h.Set("Config-Revision", "rev-9")
		h.Set("Catalog-Revision", "cat-9")
		h.Set("X-Route-Cache", "hit")
		h.Set("X-Route-Id", "r-abc")
		h.Set("X-Resolved-Model", "gpt-5-nano")
		h.Set("X-Route-Tier", "standard")
		h.Set("X-Policy-Rev", "pol-9")
		h.Set("X-Content-Used", "summary")
		h.Set("X-Canonical-Model", "gpt-5-nano")
		h.Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"route_id": "r-abc",
			"upstream": map[string]any{
				"base_url": upstreamURL,
				"model_id": "gpt-5-nano",
				"mode":     "responses",
			},
			"hints":      map[string]any{"tier": "standard", "est_cost_micro": 120},
			"canonical":  map[string]any{"model": "gpt-5-nano"},
			"policy_rev": "pol-9",
		})
	}
}

func upstreamHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("upstream path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"output": [{"content": [{"type": "output_text", "text": "hello there"}]}],
			"usage": {"input_tokens": 1000, "output_tokens": 200}
		}`))
	}
}

func newTestSession(t *testing.T, gotPlanBody *[]map[string]any) *Session {
	t.Helper()
	upstream := httptest.NewServer(upstreamHandler(t))
	t.Cleanup(upstream.Close)
	router := httptest.NewServer(planHandler(t, upstream.URL, gotPlanBody))
	t.Cleanup(router.Close)

	prices, err := usage.NewSource("")
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	return &Session{
		Plans:       &plan.Client{BaseURL: router.URL},
		Invoker:     &invoke.Invoker{Credentials: staticCreds("sk-test")},
		Extractor:   &extract.Extractor{},
		Prices:      prices,
		Alias:       "edu-general",
		PrivacyMode: "features_only",
	}
}

func TestDoRunsFullTurn(t *testing.T) {
	s := newTestSession(t, nil)

	tr, err := s.Do(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if tr.Reply != "hello there" {
		t.Fatalf("reply = %q", tr.Reply)
	}
	if tr.CacheState != "hit" {
		t.Fatalf("cache state = %q", tr.CacheState)
	}
	if !tr.CostKnown {
		t.Fatal("cost should resolve from the default price table")
	}
	// 1000 input at $0.050/M plus 200 output at $0.400/M.
	want := 1000*0.050/1e6 + 200*0.400/1e6
	if diff := tr.CostUSD - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("cost = %v, want %v", tr.CostUSD, want)
	}
	if got := len(s.Transcript()); got != 2 {
		t.Fatalf("transcript length = %d, want 2", got)
	}
}

func TestDoPlanRequestIncludesPendingTurn(t *testing.T) {
	var bodies []map[string]any
	s := newTestSession(t, &bodies)

	if _, err := s.Do(context.Background(), "what is the waterfall's name"); err != nil {
		t.Fatalf("first Do: %v", err)
	}

	if len(bodies) != 1 {
		t.Fatalf("plan requests = %d", len(bodies))
	}
	conv, ok := bodies[0]["conversation"].(map[string]any)
	if !ok {
		t.Fatalf("first plan request missing conversation: %v", bodies[0])
	}
	if turns, _ := conv["turns"].(float64); turns != 1 {
		t.Fatalf("conversation.turns = %v, want 1", conv["turns"])
	}
	summary, _ := conv["summary"].(string)
	if !strings.Contains(summary, "USER: what is the waterfall's name") {
		t.Fatalf("summary does not cover the routed message: %q", summary)
	}
}

func TestDoSendsConversationOnLaterTurns(t *testing.T) {
	var bodies []map[string]any
	s := newTestSession(t, &bodies)

	if _, err := s.Do(context.Background(), "first"); err != nil {
		t.Fatalf("first Do: %v", err)
	}
	if _, err := s.Do(context.Background(), "second"); err != nil {
		t.Fatalf("second Do: %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("plan requests = %d", len(bodies))
	}
	conv, ok := bodies[1]["conversation"].(map[string]any)
	if !ok {
		t.Fatalf("second plan request missing conversation: %v", bodies[1])
	}
	// Two committed turns plus the pending one.
	if turns, _ := conv["turns"].(float64); turns != 3 {
		t.Fatalf("conversation.turns = %v, want 3", conv["turns"])
	}
	summary, _ := conv["summary"].(string)
	for _, want := range []string{"USER: first", "ASSISTANT: hello there", "USER: second"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q: %q", want, summary)
		}
	}
}

func TestDoFailureLeavesTranscriptUntouched(t *testing.T) {
	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "NO_ROUTE", "message": "no provider available"}`))
	}))
	t.Cleanup(router.Close)

	s := &Session{
		Plans:     &plan.Client{BaseURL: router.URL},
		Invoker:   &invoke.Invoker{Credentials: staticCreds("sk-test")},
		Extractor: &extract.Extractor{},
		Alias:     "edu-general",
	}
	if _, err := s.Do(context.Background(), "hi"); err == nil {
		t.Fatal("expected plan error")
	}
	if got := len(s.Transcript()); got != 0 {
		t.Fatalf("transcript length after failed turn = %d, want 0", got)
	}
}
