// Package invoke executes a routing plan against the upstream model
// endpoint, speaking whichever of the two invocation protocols the plan
// selects.
package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edgefn/routeprobe/pkg/plan"
)

// routeIDTagLimit bounds the correlation tag forwarded upstream.
const routeIDTagLimit = 64

// CredentialResolver supplies the bearer token for an upstream call. A
// failure to resolve surfaces as *credential.ConfigurationError from the
// concrete provider; it is passed through untouched so callers can tell
// missing configuration from call failures.
type CredentialResolver interface {
	Resolve(ctx context.Context, authEnv string) (string, error)
}

// Error is an upstream invocation failure, deliberately a different type
// from the plan package's errors: "routing failed" and "model call failed"
// are attributed to different boundaries.
type Error struct {
	Status int // 0 when no HTTP status was obtained
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream invocation failed: %v", e.Err)
	}
	return fmt.Sprintf("upstream invocation failed: status=%d body=%q", e.Status, strings.TrimSpace(e.Body))
}

func (e *Error) Unwrap() error { return e.Err }

type Invoker struct {
	Credentials CredentialResolver
	HTTPClient  *http.Client
	Timeout     time.Duration

	// BaseURLOverride is consulted when the plan itself carries no upstream
	// base URL (resolved from the environment candidates by the caller).
	BaseURLOverride string
}

// NormalizeBaseURL strips a trailing protocol-specific suffix and ensures a
// versioned /v1 base. Idempotent.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	base = strings.TrimSuffix(base, "/responses")
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

// BuildMessages assembles the upstream message list for one turn: the plan's
// system overlay first (trimmed), the prior transcript with unknown roles
// coerced to "user", then the new user message.
func BuildMessages(p *plan.Plan, conversation []plan.Turn, userMessage string) []plan.Turn {
	messages := make([]plan.Turn, 0, len(conversation)+2)
	if overlay := strings.TrimSpace(p.PromptOverlays.SystemOverlay); overlay != "" {
		messages = append(messages, plan.Turn{Role: "system", Content: overlay})
	}
	for _, turn := range conversation {
		messages = append(messages, plan.Turn{Role: plan.NormalizeRole(turn.Role), Content: turn.Content})
	}
	messages = append(messages, plan.Turn{Role: "user", Content: userMessage})
	return messages
}

// Invoke performs the upstream call and returns the raw response body.
// The plan and the message list are never mutated.
func (iv *Invoker) Invoke(ctx context.Context, p *plan.Plan, messages []plan.Turn) ([]byte, error) {
	token, err := iv.Credentials.Resolve(ctx, p.Upstream.AuthEnv)
	if err != nil {
		return nil, err
	}

	rawBase := strings.TrimSpace(p.Upstream.BaseURL)
	if rawBase == "" {
		rawBase = iv.BaseURLOverride
	}
	if rawBase == "" {
		return nil, &Error{Err: fmt.Errorf("plan has no upstream base_url and no override is configured")}
	}
	base := NormalizeBaseURL(rawBase)

	var (
		path    string
		payload map[string]any
	)
	if p.IsChatMode() {
		path = "/chat/completions"
		payload = chatPayload(p, messages)
	} else {
		path = "/responses"
		payload = responsesPayload(p, messages)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Err: err}
	}

	timeout := iv.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, base+path, bytes.NewReader(raw))
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range p.Upstream.Headers {
		if strings.TrimSpace(k) != "" {
			req.Header.Set(k, v)
		}
	}

	hc := iv.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &Error{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func chatPayload(p *plan.Plan, messages []plan.Turn) map[string]any {
	payload := map[string]any{
		"model":                 p.Upstream.ModelID,
		"messages":              messages,
		"max_completion_tokens": p.MaxOutputTokens(),
	}
	if rid := strings.TrimSpace(p.RouteID); rid != "" {
		payload["user"] = truncate(rid, routeIDTagLimit)
	}
	return payload
}

func responsesPayload(p *plan.Plan, messages []plan.Turn) map[string]any {
	input := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		input = append(input, map[string]any{
			"role": m.Role,
			"content": []map[string]any{
				{"type": "input_text", "text": m.Content},
			},
		})
	}
	payload := map[string]any{
		"model":             p.Upstream.ModelID,
		"input":             input,
		"max_output_tokens": p.MaxOutputTokens(),
	}
	metadata := map[string]any{}
	if rid := strings.TrimSpace(p.RouteID); rid != "" {
		metadata["route_id"] = rid
	}
	if rev := strings.TrimSpace(p.PolicyRev); rev != "" {
		metadata["policy_revision"] = rev
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}
	return payload
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
