package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	DefaultOrSeparator = "||"
	DefaultComparator  = "[!=]="
)

// ErrMalformedExpression reports a filter branch that is not a
// column/operator/value triple.
var ErrMalformedExpression = errors.New("malformed filter expression")

// Parser turns textual expressions such as "fileName==.*\.raw||fileType!=PEAK"
// into condition trees.
type Parser struct {
	OrSeparator string
	Comparator  *regexp.Regexp
}

// NewParser builds a parser. Empty arguments select the defaults.
func NewParser(orSeparator, comparator string) (*Parser, error) {
	if orSeparator == "" {
		orSeparator = DefaultOrSeparator
	}
	if comparator == "" {
		comparator = DefaultComparator
	}
	re, err := regexp.Compile(comparator)
	if err != nil {
		return nil, fmt.Errorf("compile comparator %q: %w", comparator, err)
	}
	return &Parser{OrSeparator: orSeparator, Comparator: re}, nil
}

// Parse reads one expression. Branches separated by the OR separator become an
// Or node; a branch whose comparator starts with '!' is negated.
func (p *Parser) Parse(expr string) (Node, error) {
	branches := strings.Split(expr, p.OrSeparator)
	children := make([]Node, 0, len(branches))
	for _, branch := range branches {
		node, err := p.parseBranch(branch)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return Or{Children: children}, nil
}

// ParseAll AND-combines several expressions. No expressions yield a nil node,
// which selects everything.
func (p *Parser) ParseAll(exprs []string) (Node, error) {
	nodes := make([]Node, 0, len(exprs))
	for _, expr := range exprs {
		node, err := p.Parse(expr)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return nodes[0], nil
	}
	return And{Children: nodes}, nil
}

func (p *Parser) parseBranch(branch string) (Node, error) {
	loc := p.Comparator.FindStringIndex(branch)
	if loc == nil || loc[0] == 0 || loc[1] == len(branch) || loc[0] == loc[1] {
		return nil, fmt.Errorf("%w: %q does not match '.+%s.+'", ErrMalformedExpression, branch, p.Comparator)
	}
	column := branch[:loc[0]]
	pattern := branch[loc[1]:]
	match, err := NewColumnMatch(column, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedExpression, branch, err)
	}
	if branch[loc[0]] == '!' {
		return Not{Child: match}, nil
	}
	return match, nil
}
