package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Faint(true)
	valueStyle = lipgloss.NewStyle().Bold(true)
	traceStyle = lipgloss.NewStyle().Faint(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// FormatCost renders an estimated cost in dollars, or "n/a" when no price
// was known for the model.
func FormatCost(usd float64, known bool) string {
	if !known {
		return "n/a"
	}
	return fmt.Sprintf("$%.6f", usd)
}

// FormatEstCost renders the router's own cost hint, micro-dollars on the
// wire.
func FormatEstCost(micro int64) string {
	if micro <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("$%.6f", float64(micro)/1e6)
}

// RenderSnapshot draws the routing decision panel shown after each plan
// fetch.
func RenderSnapshot(tr *TurnResult) string {
	model := tr.CanonicalModel
	if model == "" {
		model = tr.Plan.Upstream.ModelID
	}
	rows := []struct {
		label string
		value string
	}{
		{"route", orDash(tr.Plan.RouteID)},
		{"model", orDash(model)},
		{"tier", orDash(tr.Plan.Hints.Tier)},
		{"cache", orDash(tr.CacheState)},
		{"config rev", orDash(tr.Headers.Get("Config-Revision"))},
		{"policy rev", orDash(tr.Plan.PolicyRev)},
		{"est cost", FormatEstCost(tr.Plan.Hints.EstCostMicro)},
	}
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", row.label)))
		b.WriteString(" ")
		b.WriteString(valueStyle.Render(row.value))
	}
	return panelStyle.Render(b.String())
}

// RenderTrace is the one-line per-turn telemetry summary.
func RenderTrace(tr *TurnResult) string {
	return traceStyle.Render(fmt.Sprintf(
		"plan %s · invoke %s · tokens in=%d cached=%d out=%d · cost %s",
		formatMs(tr.PlanLatency),
		formatMs(tr.InvokeLatency),
		tr.Usage.StandardInputTokens(),
		tr.Usage.CachedInputTokens(),
		tr.Usage.OutputTokens,
		FormatCost(tr.CostUSD, tr.CostKnown),
	))
}

func RenderError(err error) string {
	return errorStyle.Render("error: " + err.Error())
}

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
