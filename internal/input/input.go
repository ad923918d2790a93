// Package input reads precedence constraints from files. The scheduler
// itself never parses text; everything it sees arrives through here.
//
// Supported formats, chosen by file extension:
//
//	.yaml .yml  edges: [{before: C, after: A}], tasks: [Q]
//	.json       {"edges": [{"before": "C", "after": "A"}], "tasks": ["Q"]}
//	.hcl        step "A" { after = ["C"] }
//	anything    Step C must be finished before step A can begin.
package input

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

var (
	// ErrMalformedInput is wrapped by every parse failure.
	ErrMalformedInput = errors.New("malformed input")
	// ErrUnknownFormat is returned for a format name Parse does not know.
	ErrUnknownFormat = errors.New("unknown input format")
)

// Format names accepted by Parse.
const (
	FormatText = "text"
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatHCL  = "hcl"
)

// Plan is a parsed input file.
type Plan struct {
	Edges []types.Edge[types.TaskID]
	Tasks []types.TaskID // declared tasks, isolated unless they also appear in an edge
}

// Load reads path and parses it in the format implied by its extension.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return Parse(FormatOf(path), filepath.Base(path), data)
}

// FormatOf maps a file name to a format. Unknown extensions are text.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".hcl":
		return FormatHCL
	default:
		return FormatText
	}
}

// Parse decodes data in the given format. name is used in error messages.
func Parse(format, name string, data []byte) (*Plan, error) {
	switch format {
	case FormatText:
		return parseText(name, data)
	case FormatYAML:
		return parseYAML(name, data)
	case FormatJSON:
		return parseJSON(name, data)
	case FormatHCL:
		return parseHCL(name, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func malformed(name string, line int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if line > 0 {
		return fmt.Errorf("%s:%d: %w: %s", name, line, ErrMalformedInput, msg)
	}
	return fmt.Errorf("%s: %w: %s", name, ErrMalformedInput, msg)
}

func (p *Plan) addEdge(before, after string) {
	p.Edges = append(p.Edges, types.NewEdge(types.TaskID(before), types.TaskID(after)))
}
