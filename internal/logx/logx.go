package logx

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

var enableColor = isatty.IsTerminal(os.Stdout.Fd()) && strings.TrimSpace(os.Getenv("NO_COLOR")) == ""

// ANSI colors
const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
)

func ColorizeStatus(status int) string {
	s := strconv.Itoa(status)
	if !enableColor {
		return s
	}
	return statusColor(status) + s + colorReset
}

// statusColor buckets the statuses a probe actually sees: success, client
// error, and everything else (server errors plus the harness's synthetic
// transport/contract statuses).
func statusColor(status int) string {
	switch {
	case status >= 200 && status < 300:
		return colorGreen
	case status >= 400 && status < 500:
		return colorYellow
	default:
		return colorRed
	}
}

// FormatCallLine prints a single line per outbound call.
//
// Example:
// [RPB] 2026/08/31 - 17:44:22 | 200 | 12.3ms | POST "/route/plan" | alias=edu-general cache=hit
func FormatCallLine(
	ts time.Time,
	status int,
	latency time.Duration,
	method string,
	path string,
	fields map[string]any,
) string {
	base := fmt.Sprintf(
		`[RPB] %s | %s | %s | %s %q`,
		ts.Format("2006/01/02 - 15:04:05"),
		ColorizeStatus(status),
		latency.String(),
		strings.TrimSpace(method),
		path,
	)
	extra := formatFields(fields)
	if extra == "" {
		return base
	}
	return base + " | " + extra
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", k, t))
		case float64:
			// Costs are tiny fractions of a dollar; never print scientific notation.
			s := strings.TrimSpace(strconv.FormatFloat(t, 'f', 12, 64))
			s = strings.TrimRight(s, "0")
			s = strings.TrimRight(s, ".")
			if s == "" || s == "-" {
				s = "0"
			}
			parts = append(parts, fmt.Sprintf("%s=%s", k, s))
		default:
			s := strings.TrimSpace(fmt.Sprintf("%v", v))
			if s == "" || s == "<nil>" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", k, s))
		}
	}
	return strings.Join(parts, " ")
}
