package input

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

var sentence = regexp.MustCompile(`^Step (\S+) must be finished before step (\S+) can begin\.$`)

// parseText reads one constraint sentence per line. Blank lines are skipped.
func parseText(name string, data []byte) (*Plan, error) {
	plan := &Plan{}
	scanner := bufio.NewScanner(bytes.NewReader(data))

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		m := sentence.FindStringSubmatch(text)
		if m == nil {
			return nil, malformed(name, line, "%q", text)
		}
		plan.addEdge(m[1], m[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, malformed(name, line, "%v", err)
	}
	return plan, nil
}
