package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/calhue/internal/colour"
	"github.com/jmylchreest/calhue/internal/dominant"
)

// Output formats.
const (
	formatHex   = "hex"
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// imageColours is the structured output for one image.
type imageColours struct {
	Path    string   `json:"path" yaml:"path"`
	Colours []string `json:"colours" yaml:"colours"`
	Error   string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func toImageColours(results []dominant.Result) []imageColours {
	out := make([]imageColours, len(results))
	for i, r := range results {
		out[i] = imageColours{Path: r.Path, Colours: r.Colours}
		if out[i].Colours == nil {
			out[i].Colours = []string{}
		}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}

// writeStructured writes v as indented JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// formatColours joins hex codes for display, drawing each as a swatch
// when preview is set.
func formatColours(hexes []string, preview bool) string {
	if !preview {
		return strings.Join(hexes, " ")
	}
	parts := make([]string, 0, len(hexes))
	for _, h := range hexes {
		c, err := colour.ParseHex(h)
		if err != nil {
			parts = append(parts, h)
			continue
		}
		parts = append(parts, colour.ColourPreviewWithText(c, h, 8))
	}
	return strings.Join(parts, " ")
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// checkFormat rejects formats outside valid.
func checkFormat(format string, valid ...string) error {
	if slices.Contains(valid, format) {
		return nil
	}
	return fmt.Errorf("unsupported format %q (valid: %s)", format, strings.Join(valid, ", "))
}
