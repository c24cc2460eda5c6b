package alert

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is a parsed threshold expression: one or more comparisons of the
// monitor's value against literal bounds, joined by "or".
// Example: "value > 100 or value < 10".
type Condition struct {
	clauses []clause
}

type clause struct {
	op        string
	threshold float64
}

var validOps = map[string]bool{">": true, ">=": true, "<": true, "<=": true}

// ParseCondition validates and compiles a condition string. Called at rule
// save time so malformed conditions are rejected before they are stored.
func ParseCondition(input string) (*Condition, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty condition")
	}

	var c Condition
	for _, part := range strings.Split(input, " or ") {
		fields := strings.Fields(part)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed clause %q: want \"value <op> <number>\"", strings.TrimSpace(part))
		}
		if fields[0] != "value" {
			return nil, fmt.Errorf("clause must compare %q, got %q", "value", fields[0])
		}
		if !validOps[fields[1]] {
			return nil, fmt.Errorf("unsupported operator %q", fields[1])
		}
		threshold, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q", fields[2])
		}
		c.clauses = append(c.clauses, clause{op: fields[1], threshold: threshold})
	}
	return &c, nil
}

// Match reports whether any clause is satisfied by the value.
func (c *Condition) Match(value float64) bool {
	for _, cl := range c.clauses {
		switch cl.op {
		case ">":
			if value > cl.threshold {
				return true
			}
		case ">=":
			if value >= cl.threshold {
				return true
			}
		case "<":
			if value < cl.threshold {
				return true
			}
		case "<=":
			if value <= cl.threshold {
				return true
			}
		}
	}
	return false
}
