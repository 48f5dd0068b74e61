package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	schemaVersion = "1.1"
	apiSurface    = "responses"

	// Soft token-budget estimates forwarded to the router for planning.
	estimatePromptTokens    = 2048
	estimateMaxOutputTokens = 512

	summaryTurns = 4
)

// MandatoryHeaders is the routing service's observability contract. A 2xx
// plan response missing any of these is rejected before a Plan is built.
// Keep the exact name set; it doubles as a regression guard against silent
// contract drift on the router side.
var MandatoryHeaders = []string{
	"Router-Schema",
	"Router-Latency",
	"Config-Revision",
	"Catalog-Revision",
	"X-Route-Cache",
	"X-Route-Id",
	"X-Resolved-Model",
	"X-Route-Tier",
	"X-Policy-Rev",
	"X-Content-Used",
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type FetchInput struct {
	Alias        string
	PrivacyMode  string
	Caps         []string
	Conversation []Turn
}

// Result carries the parsed plan plus the response metadata the benchmark
// harness aggregates over.
type Result struct {
	Plan    Plan
	Headers http.Header
	Status  int
	Latency time.Duration
}

type planRequest struct {
	SchemaVersion string               `json:"schema_version"`
	RequestID     string               `json:"request_id"`
	Alias         string               `json:"alias"`
	API           string               `json:"api"`
	PrivacyMode   string               `json:"privacy_mode"`
	Stream        bool                 `json:"stream"`
	Caps          []string             `json:"caps"`
	Conversation  *conversationSummary `json:"conversation,omitempty"`
	Overrides     map[string]any       `json:"overrides"`
	Estimates     estimates            `json:"estimates"`
}

type conversationSummary struct {
	Summary string `json:"summary"`
	Turns   int    `json:"turns"`
}

type estimates struct {
	PromptTokens    int `json:"prompt_tokens"`
	MaxOutputTokens int `json:"max_output_tokens"`
}

// Fetch asks the routing service for an execution plan.
//
// Failure modes map onto the error taxonomy: *TransportError before a status
// is obtained, *RequestError on non-2xx, *ValidationError on a 2xx response
// missing mandatory headers. A missing route_id in an otherwise valid plan is
// not an error; whatever is present is propagated.
func (c *Client) Fetch(ctx context.Context, in FetchInput) (Result, error) {
	body := planRequest{
		SchemaVersion: schemaVersion,
		RequestID:     uuid.NewString(),
		Alias:         strings.TrimSpace(in.Alias),
		API:           apiSurface,
		PrivacyMode:   strings.TrimSpace(in.PrivacyMode),
		Stream:        false,
		Caps:          in.Caps,
		Overrides:     map[string]any{},
		Estimates: estimates{
			PromptTokens:    estimatePromptTokens,
			MaxOutputTokens: estimateMaxOutputTokens,
		},
	}
	if len(in.Conversation) > 0 {
		body.Conversation = &conversationSummary{
			Summary: SummarizeConversation(in.Conversation),
			Turns:   len(in.Conversation),
		}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("encode plan request: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/") + "/route/plan"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("build plan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	started := time.Now()
	resp, err := hc.Do(req)
	latency := time.Since(started)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, parseRequestError(resp.StatusCode, respBody)
	}
	if missing := missingHeaders(resp.Header); len(missing) > 0 {
		return Result{}, &ValidationError{Missing: missing}
	}

	var p Plan
	if err := json.Unmarshal(respBody, &p); err != nil {
		return Result{}, &RequestError{Status: resp.StatusCode, Code: "malformed_plan", Message: err.Error(), Body: string(respBody)}
	}
	return Result{
		Plan:    p,
		Headers: resp.Header,
		Status:  resp.StatusCode,
		Latency: latency,
	}, nil
}

// SummarizeConversation builds the compact history preview the router plans
// against: the last few turns, role-prefixed, newline-joined.
func SummarizeConversation(turns []Turn) string {
	start := 0
	if len(turns) > summaryTurns {
		start = len(turns) - summaryTurns
	}
	lines := make([]string, 0, summaryTurns)
	for _, turn := range turns[start:] {
		lines = append(lines, strings.ToUpper(NormalizeRole(turn.Role))+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}

// CacheState reads the cache-state indicator, defaulting to "unknown".
func CacheState(h http.Header) string {
	if v := strings.TrimSpace(h.Get("X-Route-Cache")); v != "" {
		return v
	}
	return "unknown"
}

// CanonicalModel reads the canonically resolved model header, when present.
func CanonicalModel(h http.Header) string {
	return strings.TrimSpace(h.Get("X-Canonical-Model"))
}

func missingHeaders(h http.Header) []string {
	var missing []string
	for _, name := range MandatoryHeaders {
		if len(h.Values(name)) == 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseRequestError(status int, body []byte) *RequestError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && strings.TrimSpace(eb.Error) != "" {
		return &RequestError{Status: status, Code: eb.Error, Message: eb.Message}
	}
	return &RequestError{Status: status, Body: string(body)}
}
