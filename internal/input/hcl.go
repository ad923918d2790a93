package input

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

type hclFile struct {
	Steps []*hclStep `hcl:"step,block"`
}

// hclStep is one step block; After names its prerequisites.
type hclStep struct {
	Name  string   `hcl:"name,label"`
	After []string `hcl:"after,optional"`
}

// parseHCL declares every step as a task, so a step with no after list
// that nothing depends on is scheduled as an isolated task.
func parseHCL(name string, data []byte) (*Plan, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, name)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, diags)
	}

	plan := &Plan{}
	for _, step := range parsed.Steps {
		plan.Tasks = append(plan.Tasks, types.TaskID(step.Name))
		for _, before := range step.After {
			if before == "" {
				return nil, malformed(name, 0, "step %q: empty prerequisite", step.Name)
			}
			plan.addEdge(before, step.Name)
		}
	}
	return plan, nil
}
