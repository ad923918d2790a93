package input

import (
	"github.com/tidwall/gjson"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

// parseJSON accepts edges as {"before", "after"} objects or as
// two element arrays.
func parseJSON(name string, data []byte) (*Plan, error) {
	if !gjson.ValidBytes(data) {
		return nil, malformed(name, 0, "invalid JSON")
	}
	doc := gjson.ParseBytes(data)

	edges := doc.Get("edges")
	if edges.Exists() && !edges.IsArray() {
		return nil, malformed(name, 0, "edges must be an array")
	}

	plan := &Plan{}
	var err error
	edges.ForEach(func(key, item gjson.Result) bool {
		before, after := edgeEnds(item)
		if before == "" || after == "" {
			err = malformed(name, 0, "edges[%d]: need a before and an after task", key.Int())
			return false
		}
		plan.addEdge(before, after)
		return true
	})
	if err != nil {
		return nil, err
	}

	for i, t := range doc.Get("tasks").Array() {
		if t.Type != gjson.String || t.Str == "" {
			return nil, malformed(name, 0, "tasks[%d]: not a task name", i)
		}
		plan.Tasks = append(plan.Tasks, types.TaskID(t.Str))
	}
	return plan, nil
}

func edgeEnds(item gjson.Result) (string, string) {
	var before, after gjson.Result
	if item.IsArray() {
		pair := item.Array()
		if len(pair) != 2 {
			return "", ""
		}
		before, after = pair[0], pair[1]
	} else {
		before, after = item.Get("before"), item.Get("after")
	}
	if before.Type != gjson.String || after.Type != gjson.String {
		return "", ""
	}
	return before.Str, after.Str
}
