package input

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

type yamlDocument struct {
	Edges []yamlEdge `yaml:"edges"`
	Tasks []string   `yaml:"tasks"`
}

type yamlEdge struct {
	Before string `yaml:"before"`
	After  string `yaml:"after"`
	Line   int    `yaml:"-"`
}

func (e *yamlEdge) UnmarshalYAML(node *yaml.Node) error {
	type plain yamlEdge
	if err := node.Decode((*plain)(e)); err != nil {
		return err
	}
	e.Line = node.Line
	return nil
}

func parseYAML(name string, data []byte) (*Plan, error) {
	var doc yamlDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, malformed(name, 0, "%v", err)
	}

	plan := &Plan{}
	for _, e := range doc.Edges {
		if e.Before == "" || e.After == "" {
			return nil, malformed(name, e.Line, "edge needs both before and after")
		}
		plan.addEdge(e.Before, e.After)
	}
	for _, t := range doc.Tasks {
		if t == "" {
			return nil, malformed(name, 0, "empty task name")
		}
		plan.Tasks = append(plan.Tasks, types.TaskID(t))
	}
	return plan, nil
}
