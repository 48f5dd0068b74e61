package plan

import "strings"

const (
	// ModeChat selects the flat chat-completions invocation protocol.
	ModeChat = "chat"
	// ModeResponses selects the structured responses invocation protocol.
	ModeResponses = "responses"

	// DefaultMaxOutputTokens applies when the plan carries no output limit.
	DefaultMaxOutputTokens = 512
)

// Plan is one routing decision. It is built once from the router response and
// read-only afterwards.
type Plan struct {
	RouteID        string         `json:"route_id"`
	Upstream       Upstream       `json:"upstream"`
	Limits         Limits         `json:"limits"`
	Hints          Hints          `json:"hints"`
	PromptOverlays PromptOverlays `json:"prompt_overlays"`
	Canonical      Canonical      `json:"canonical"`
	PolicyRev      string         `json:"policy_rev"`
}

type Upstream struct {
	BaseURL string            `json:"base_url"`
	ModelID string            `json:"model_id"`
	Mode    string            `json:"mode"`
	AuthEnv string            `json:"auth_env"`
	Headers map[string]string `json:"headers"`
}

type Limits struct {
	MaxOutputTokens *int `json:"max_output_tokens"`
}

type Hints struct {
	Tier         string `json:"tier"`
	EstCostMicro int64  `json:"est_cost_micro"`
}

type PromptOverlays struct {
	SystemOverlay string `json:"system_overlay"`
}

type Canonical struct {
	Model string `json:"model"`
}

// Turn is a single conversation message. The transcript is append-only and
// owned by the interactive session loop.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NormalizeRole coerces unknown roles to "user".
func NormalizeRole(role string) string {
	switch role {
	case "user", "assistant", "system":
		return role
	default:
		return "user"
	}
}

// Mode returns the effective invocation mode, lowercased and defaulted.
func (p *Plan) Mode() string {
	m := strings.ToLower(strings.TrimSpace(p.Upstream.Mode))
	if m == "" {
		return ModeResponses
	}
	return m
}

// IsChatMode reports whether the plan selects the chat-completions protocol.
// Any mode containing "chat" counts, matching the router's loose contract.
func (p *Plan) IsChatMode() bool {
	return strings.Contains(p.Mode(), ModeChat)
}

// MaxOutputTokens resolves the output cap, applying the default in one place
// so the default policy stays auditable.
func (p *Plan) MaxOutputTokens() int {
	if p.Limits.MaxOutputTokens == nil || *p.Limits.MaxOutputTokens <= 0 {
		return DefaultMaxOutputTokens
	}
	return *p.Limits.MaxOutputTokens
}
