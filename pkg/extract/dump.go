package extract

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

const DefaultDumpName = "routeprobe_last_response.json"

// FileDumper writes the last unparsable response body to a fixed path so a
// failed extraction can be inspected after the fact. Each dump overwrites the
// previous one.
type FileDumper struct {
	Dir string
}

func (d *FileDumper) Path() string {
	dir := strings.TrimSpace(d.Dir)
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, DefaultDumpName)
}

func (d *FileDumper) Dump(raw []byte) {
	path := d.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	out := raw
	var buf bytes.Buffer
	if json.Indent(&buf, bytes.TrimSpace(raw), "", "  ") == nil {
		out = buf.Bytes()
	}
	_ = os.WriteFile(path, out, 0o600)
}
