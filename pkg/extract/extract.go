// Package extract normalizes upstream response bodies into plain text.
//
// Two incompatible body shapes are tolerated: the structured "responses"
// shape (top-level "output" list with nested content blocks) and the
// "chat completions" shape ("choices" list with message content). The walk
// never fails on malformed nesting; unrecognized nodes are skipped.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// maxWalkDepth bounds the recursive walk so adversarial nesting cannot
// exhaust the stack.
const maxWalkDepth = 32

type shapeKind int

const (
	shapeUnknown shapeKind = iota
	shapeResponses
	shapeChat
)

// Dumper persists an unparsable body for post-mortem inspection. Dump
// failures are deliberately swallowed: diagnostics must never fail the call.
type Dumper interface {
	Dump(raw []byte)
}

type Extractor struct {
	// Dumper receives the raw body when no text could be extracted. Optional.
	Dumper Dumper
}

// Text extracts all human-readable output from a raw response body.
//
// Fragments are trimmed, empty ones dropped, and the rest joined with
// newlines in encounter order. When neither shape yields text the raw body is
// dumped and a bracketed placeholder describing the available diagnostic
// hints is returned instead.
func (e *Extractor) Text(raw []byte) string {
	var root map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &root); err != nil {
		root = nil
	}

	var chunks []string
	switch discriminate(root) {
	case shapeResponses:
		chunks = collectResponsesText(root)
		if len(joinFragments(chunks)) == 0 {
			// An empty "output" list plus a "choices" list happens on
			// gateways that merge both protocols; fall through.
			chunks = append(chunks, collectChoicesText(root["choices"])...)
		}
	case shapeChat:
		chunks = collectChoicesText(root["choices"])
	}

	text := joinFragments(chunks)
	if text != "" {
		return text
	}

	if e.Dumper != nil {
		e.Dumper.Dump(raw)
	}
	return placeholder(root)
}

func discriminate(root map[string]any) shapeKind {
	if root == nil {
		return shapeUnknown
	}
	if _, ok := root["output"]; ok {
		return shapeResponses
	}
	if _, ok := root["choices"]; ok {
		return shapeChat
	}
	return shapeUnknown
}

func collectResponsesText(root map[string]any) []string {
	entries, _ := root["output"].([]any)
	var chunks []string
	for _, entry := range entries {
		chunks = append(chunks, gatherText(entry, 0)...)
	}
	return chunks
}

// gatherText walks a responses-shape node depth-first, collecting every
// {type: output_text|text} fragment. "text" may be a plain string or itself a
// list of strings / {text} objects.
func gatherText(node any, depth int) []string {
	if depth > maxWalkDepth {
		return nil
	}
	var collected []string
	switch t := node.(type) {
	case map[string]any:
		switch t["type"] {
		case "output_text", "text":
			switch v := t["text"].(type) {
			case string:
				collected = append(collected, v)
			case []any:
				for _, item := range v {
					switch iv := item.(type) {
					case string:
						collected = append(collected, iv)
					case map[string]any:
						if s, ok := iv["text"].(string); ok && s != "" {
							collected = append(collected, s)
						}
					}
				}
			}
		}
		if content, ok := t["content"].([]any); ok {
			for _, child := range content {
				collected = append(collected, gatherText(child, depth+1)...)
			}
		}
	case []any:
		for _, child := range t {
			collected = append(collected, gatherText(child, depth+1)...)
		}
	}
	return collected
}

func collectChoicesText(choices any) []string {
	arr, _ := choices.([]any)
	var chunks []string
	for _, it := range arr {
		choice, _ := it.(map[string]any)
		if choice == nil {
			continue
		}
		message, _ := choice["message"].(map[string]any)
		if message == nil {
			continue
		}
		switch content := message["content"].(type) {
		case string:
			chunks = append(chunks, content)
		case []any:
			for _, seg := range content {
				switch sv := seg.(type) {
				case string:
					chunks = append(chunks, sv)
				case map[string]any:
					if s, ok := sv["text"].(string); ok && s != "" {
						chunks = append(chunks, s)
					}
				}
			}
		}
	}
	return chunks
}

func joinFragments(chunks []string) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if s := strings.TrimSpace(chunk); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// placeholder lists the diagnostic hints in a fixed order: completion status,
// incomplete/stop reason, output-token usage.
func placeholder(root map[string]any) string {
	var bits []string
	if root != nil {
		if s, ok := root["status"].(string); ok && s != "" {
			bits = append(bits, "status="+s)
		}
		if details, ok := root["incomplete_details"].(map[string]any); ok {
			if reason, ok := details["reason"].(string); ok && reason != "" {
				bits = append(bits, "reason="+reason)
			}
		}
		if usage, ok := root["usage"].(map[string]any); ok {
			if n, ok := usage["output_tokens"].(float64); ok && n != 0 {
				bits = append(bits, fmt.Sprintf("output_tokens=%d", int(n)))
			}
		}
	}
	details := "model returned no text"
	if len(bits) > 0 {
		details = strings.Join(bits, ", ")
	}
	return "[no text returned: " + details + "]"
}
