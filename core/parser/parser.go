// Package parser builds the record tree from lexer tokens.
//
// The parser keeps an explicit stack of open nodes. A token at level L is
// attached to the nearest open node at level L-1; level 0 starts a new
// record. A token with no possible parent becomes a root extension node
// and is reported as a level jump, so no input is lost and no depth limit
// applies.
package parser

import (
	"io"
	"iter"

	"github.com/FocuswithJustin/Lineage/core/issue"
	"github.com/FocuswithJustin/Lineage/core/lexer"
)

// TokenSource supplies tokens; *lexer.Lexer satisfies it.
type TokenSource interface {
	Next() (lexer.Token, error)
}

type issueSource interface {
	Issues() issue.List
}

// Parser turns a token stream into top-level records.
type Parser struct {
	src   TokenSource
	stack []*Node
	// open holds the roots produced since the last level-0 token: the
	// current record plus any root extensions that followed it.
	open   []*Node
	ready  []*Node
	index  *XRefIndex
	issues issue.List
	err    error
}

// New creates a Parser reading from src.
func New(src TokenSource) *Parser {
	return &Parser{src: src, index: newXRefIndex()}
}

// FromLines creates a Parser with its own lexer over lines.
func FromLines(lines lexer.LineSource) *Parser {
	return New(lexer.New(lines))
}

// Index returns the cross-reference index built so far. It is complete once
// NextRecord has returned io.EOF.
func (p *Parser) Index() *XRefIndex {
	return p.index
}

// Issues returns the lexer's issues followed by the parser's own.
func (p *Parser) Issues() issue.List {
	var out issue.List
	if is, ok := p.src.(issueSource); ok {
		out = append(out, is.Issues()...)
	}
	return append(out, p.issues...)
}

// NextRecord returns the next top-level node once it is closed by the
// following level-0 token or by the end of input. Root extension nodes are
// returned in input order after the record they followed. It returns io.EOF
// when the input is exhausted; other source errors are returned as is.
func (p *Parser) NextRecord() (*Node, error) {
	for len(p.ready) == 0 {
		if p.err != nil {
			return nil, p.err
		}
		tok, err := p.src.Next()
		if err == io.EOF {
			p.ready = append(p.ready, p.open...)
			p.open = nil
			p.stack = nil
			p.err = io.EOF
			continue
		}
		if err != nil {
			p.err = err
			return nil, err
		}
		p.push(tok)
	}

	n := p.ready[0]
	p.ready[0] = nil
	p.ready = p.ready[1:]
	return n, nil
}

// Records returns the remaining records as an iterator.
func (p *Parser) Records() iter.Seq2[*Node, error] {
	return func(yield func(*Node, error) bool) {
		for {
			n, err := p.NextRecord()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(n, nil) {
				return
			}
		}
	}
}

// Parse drains the parser into a Forest.
func (p *Parser) Parse() (*Forest, error) {
	f := &Forest{Index: p.index}
	for n, err := range p.Records() {
		if err != nil {
			return nil, err
		}
		f.Roots = append(f.Roots, n)
	}
	return f, nil
}

// Parse reads every token from src and returns the forest and all issues.
func Parse(src TokenSource) (*Forest, issue.List, error) {
	p := New(src)
	f, err := p.Parse()
	return f, p.Issues(), err
}

func (p *Parser) push(tok lexer.Token) {
	if lexer.IsContinuation(tok.Tag) {
		p.fold(tok)
		return
	}

	n := &Node{Token: tok}
	if tok.Level == 0 {
		p.ready = append(p.ready, p.open...)
		p.open = []*Node{n}
		p.stack = append(p.stack[:0], n)
		if tok.XRef != "" {
			p.define(n)
		}
		return
	}

	if i := p.parentOf(tok.Level); i >= 0 {
		parent := p.stack[i]
		parent.Children = append(parent.Children, n)
		p.stack = append(p.stack[:i+1], n)
		return
	}

	p.issues.Add(issue.KindLevelJump, issue.SeverityWarning, "", tok.Line,
		"%s at level %d has no parent at level %d; kept as a root extension",
		tok.Tag, tok.Level, tok.Level-1)
	p.open = append(p.open, n)
	p.stack = append(p.stack, n)
}

// fold merges a continuation token that was separated from its owner.
func (p *Parser) fold(tok lexer.Token) {
	if i := p.parentOf(tok.Level); i >= 0 {
		owner := p.stack[i]
		owner.Append(tok)
		p.stack = p.stack[:i+1]
		return
	}
	p.issues.Add(issue.KindOrphanContinuation, issue.SeverityWarning, "", tok.Line,
		"%s at level %d has no owner; kept as a root extension", tok.Tag, tok.Level)
	p.open = append(p.open, &Node{Token: tok})
}

// parentOf returns the stack position of the nearest node at level-1.
func (p *Parser) parentOf(level int) int {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].Level == level-1 {
			return i
		}
	}
	return -1
}

func (p *Parser) define(n *Node) {
	id, ok := lexer.PointerID(n.XRef)
	if !ok {
		p.issues.Add(issue.KindInvalidPointer, issue.SeverityWarning, "", n.Line,
			"record %s declares unusable cross-reference %s", n.Tag, n.XRef)
		return
	}
	if prev, exists := p.index.byID[id]; exists {
		p.issues.Add(issue.KindDuplicateXRef, issue.SeverityWarning, id, n.Line,
			"%s already defined at line %d; first definition kept", n.XRef, prev.node.Line)
		return
	}
	p.index.add(id, n)
}
