package filter

import (
	"errors"
	"regexp"

	"github.com/John-Robertt/loonsub/internal/model"
)

// ErrInvalid is returned when a Filter value was supplied explicitly but
// carries no decision (the zero value). Callers that do not want filtering
// must say so with None(); an empty Filter is treated as a caller bug, not
// as "no filtering".
var ErrInvalid = errors.New("filter 参数不合法（既不是 None 也不是有效条件）")

// Criteria selects nodes by name and/or type.
//
// Include: node name must match at least one pattern (empty = match all).
// Exclude: node name must match none of the patterns.
// Types: node type must be listed (empty = all types).
type Criteria struct {
	Include []*regexp.Regexp
	Exclude []*regexp.Regexp
	Types   []string
}

type kind int

const (
	kindInvalid kind = iota
	kindNone
	kindCriteria
)

// Filter is a small sum type: None() or Match(Criteria). The zero value is
// deliberately invalid so that "explicitly passed but empty" is
// distinguishable from "explicitly declined".
type Filter struct {
	kind kind
	crit Criteria
}

// None returns the filter that keeps every node.
func None() Filter { return Filter{kind: kindNone} }

// Match returns a filter applying c.
func Match(c Criteria) Filter { return Filter{kind: kindCriteria, crit: c} }

// Apply returns the nodes selected by f, preserving input order. The input
// slice is never mutated; the result is always a fresh slice.
func Apply(nodes []model.Node, f Filter) ([]model.Node, error) {
	switch f.kind {
	case kindNone:
		out := make([]model.Node, len(nodes))
		copy(out, nodes)
		return out, nil
	case kindCriteria:
		out := make([]model.Node, 0, len(nodes))
		for _, n := range nodes {
			if f.crit.matches(n) {
				out = append(out, n)
			}
		}
		return out, nil
	default:
		return nil, ErrInvalid
	}
}

func (c Criteria) matches(n model.Node) bool {
	if len(c.Types) > 0 {
		ok := false
		for _, t := range c.Types {
			if n.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, re := range c.Exclude {
		if re.MatchString(n.Name) {
			return false
		}
	}
	if len(c.Include) == 0 {
		return true
	}
	for _, re := range c.Include {
		if re.MatchString(n.Name) {
			return true
		}
	}
	return false
}
