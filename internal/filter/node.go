package filter

import (
	"fmt"
	"regexp"
)

// Tristate is the three-valued result of evaluating a condition.
type Tristate int8

const (
	Unknown Tristate = iota
	False
	True
)

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Of converts a boolean into a known Tristate.
func Of(b bool) Tristate {
	if b {
		return True
	}
	return False
}

// Record exposes named string fields to conditions.
type Record interface {
	Field(name string) (string, bool)
}

// Fields is a map-backed Record.
type Fields map[string]string

func (f Fields) Field(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

// Node is a condition evaluated against one record. Nodes are immutable after
// construction and safe for concurrent use.
type Node interface {
	Evaluate(rec Record) Tristate
}

// And is False as soon as a child is False, True when at least one child is
// True and none is False, and Unknown otherwise.
type And struct {
	Children []Node
}

func (n And) Evaluate(rec Record) Tristate {
	result := Unknown
	for _, child := range n.Children {
		switch child.Evaluate(rec) {
		case False:
			return False
		case True:
			result = True
		}
	}
	return result
}

// Or is the dual of And: True as soon as a child is True.
type Or struct {
	Children []Node
}

func (n Or) Evaluate(rec Record) Tristate {
	result := Unknown
	for _, child := range n.Children {
		switch child.Evaluate(rec) {
		case True:
			return True
		case False:
			result = False
		}
	}
	return result
}

// Not inverts a known result and keeps Unknown.
type Not struct {
	Child Node
}

func (n Not) Evaluate(rec Record) Tristate {
	switch n.Child.Evaluate(rec) {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// ColumnMatch tests a field against a regular expression that must match the
// whole value. A missing field yields Unknown.
type ColumnMatch struct {
	Field   string
	Pattern string
	re      *regexp.Regexp
}

func compileFull(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

// NewColumnMatch compiles pattern as a full-string match on field.
func NewColumnMatch(field, pattern string) (ColumnMatch, error) {
	re, err := compileFull(pattern)
	if err != nil {
		return ColumnMatch{}, fmt.Errorf("compile %q: %w", pattern, err)
	}
	return ColumnMatch{Field: field, Pattern: pattern, re: re}, nil
}

// MustColumnMatch is NewColumnMatch for patterns known to be valid.
func MustColumnMatch(field, pattern string) ColumnMatch {
	m, err := NewColumnMatch(field, pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func (n ColumnMatch) Evaluate(rec Record) Tristate {
	value, ok := rec.Field(n.Field)
	if !ok {
		return Unknown
	}
	re := n.re
	if re == nil {
		// Built as a literal; an invalid pattern cannot decide.
		var err error
		if re, err = compileFull(n.Pattern); err != nil {
			return Unknown
		}
	}
	return Of(re.MatchString(value))
}

// Evaluate applies node to rec. A nil node is Unknown.
func Evaluate(node Node, rec Record) Tristate {
	if node == nil {
		return Unknown
	}
	return node.Evaluate(rec)
}

// Resolve evaluates node and maps Unknown to the given default. A nil node
// selects every record.
func Resolve(node Node, rec Record, unknown bool) bool {
	if node == nil {
		return true
	}
	switch node.Evaluate(rec) {
	case True:
		return true
	case False:
		return false
	default:
		return unknown
	}
}
