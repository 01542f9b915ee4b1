// Package lexer turns lines of the genealogical interchange format into
// tokens.
//
// Every line has the shape
//
//	LEVEL [@XREF@] TAG [VALUE]
//
// where an XREF right after the level declares the record that the line
// owns. Two continuation tags extend the value of the line they belong to:
//
//	CONC  appends its value with no separator
//	CONT  appends a line break, then its value
//
// A CONT applied to an owner that has no value at all (for example
// "1 NOTE" followed by "2 CONT first") starts the value without a leading
// line break. Continuation lines that directly follow their owner are folded
// here; the rare continuation separated from its owner by other children is
// passed through and folded by the parser.
package lexer

import (
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Lineage/core/issue"
)

// Continuation tags.
const (
	TagConc = "CONC"
	TagCont = "CONT"
)

// IsContinuation reports whether tag is CONC or CONT.
func IsContinuation(tag string) bool {
	return tag == TagConc || tag == TagCont
}

// Token is one logical line.
type Token struct {
	Level int
	// XRef is the pointer this line declares, written with its @ delimiters.
	XRef string
	Tag  string
	// Value is the text after the tag, verbatim. HasValue distinguishes an
	// absent value from an empty one.
	Value    string
	HasValue bool
	// Line is the 1-based physical line the token starts on.
	Line int
	// Span is the number of physical lines folded into the token.
	Span int
}

// Append folds a continuation token into t.
func (t *Token) Append(c Token) {
	switch c.Tag {
	case TagConc:
		t.Value += c.Value
	case TagCont:
		if t.HasValue || t.Span > 1 {
			t.Value += "\n" + c.Value
		} else {
			t.Value = c.Value
		}
	default:
		return
	}
	t.HasValue = true
	t.Span += c.Span
}

// Pointer returns the id inside a pointer value such as "@I1@".
func (t Token) Pointer() (string, bool) {
	return PointerID(t.Value)
}

// PointerID returns the id inside "@ID@". Values with embedded spaces or
// the "@#" escape prefix are not pointers.
func PointerID(v string) (string, bool) {
	if len(v) < 3 || v[0] != '@' || v[len(v)-1] != '@' {
		return "", false
	}
	id := v[1 : len(v)-1]
	if strings.ContainsAny(id, "@ ") || strings.HasPrefix(id, "#") {
		return "", false
	}
	return id, true
}

// LineSource supplies raw lines; *source.Reader satisfies it.
type LineSource interface {
	Next() (string, error)
}

// Lexer pulls lines from a LineSource and produces tokens.
type Lexer struct {
	src     LineSource
	line    int
	pending *Token
	err     error
	issues  issue.List
}

// New creates a Lexer over src.
func New(src LineSource) *Lexer {
	return &Lexer{src: src}
}

// Issues returns the malformed-line issues recorded so far.
func (l *Lexer) Issues() issue.List {
	return l.issues
}

// Next returns the next token, io.EOF after the last one, or the source's
// error. Source errors are sticky.
func (l *Lexer) Next() (Token, error) {
	for {
		if l.err != nil {
			if l.err == io.EOF && l.pending != nil {
				tok := *l.pending
				l.pending = nil
				return tok, nil
			}
			return Token{}, l.err
		}

		tok, err := l.read()
		if err != nil {
			l.err = err
			continue
		}

		if l.pending == nil {
			l.pending = &tok
			continue
		}
		if IsContinuation(tok.Tag) && tok.Level == l.pending.Level+1 {
			l.pending.Append(tok)
			continue
		}

		out := *l.pending
		l.pending = &tok
		return out, nil
	}
}

// read returns the next well-formed token, skipping blank and malformed lines.
func (l *Lexer) read() (Token, error) {
	for {
		raw, err := l.src.Next()
		if err != nil {
			return Token{}, err
		}
		l.line++

		tok, reason, ok := Parse(raw)
		if ok {
			tok.Line = l.line
			return tok, nil
		}
		if reason != "" {
			l.issues.Add(issue.KindMalformedLine, issue.SeverityWarning, "", l.line,
				"%s: %q", reason, truncate(raw, 80))
		}
	}
}

// Parse splits one physical line into a token. For blank lines it returns
// ok=false with an empty reason; for malformed lines the reason says why.
func Parse(raw string) (tok Token, reason string, ok bool) {
	s := strings.TrimLeft(raw, " \t")
	if strings.TrimSpace(s) == "" {
		return Token{}, "", false
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Token{}, "line does not start with a level number", false
	}
	level, err := strconv.Atoi(s[:i])
	if err != nil {
		return Token{}, "level number out of range", false
	}
	rest := s[i:]
	if rest == "" || !delimiter(rest[0]) {
		return Token{}, "missing tag", false
	}
	rest = strings.TrimLeft(rest, " \t")

	var xref string
	if strings.HasPrefix(rest, "@") {
		end := strings.IndexByte(rest[1:], '@')
		if end < 0 {
			return Token{}, "unterminated cross-reference", false
		}
		xref = rest[:end+2]
		rest = rest[end+2:]
		if rest == "" || !delimiter(rest[0]) {
			return Token{}, "missing tag", false
		}
		rest = strings.TrimLeft(rest, " \t")
	}

	tag, value, hasValue := rest, "", false
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		tag, value, hasValue = rest[:i], rest[i+1:], true
	}
	if !validTag(tag) {
		if tag == "" {
			return Token{}, "missing tag", false
		}
		return Token{}, "invalid tag", false
	}

	return Token{
		Level:    level,
		XRef:     xref,
		Tag:      tag,
		Value:    value,
		HasValue: hasValue,
		Span:     1,
	}, "", true
}

// delimiter reports whether c separates fields. Runs of delimiters are
// allowed before the tag; the value starts after exactly one.
func delimiter(c byte) bool {
	return c == ' ' || c == '\t'
}

func validTag(tag string) bool {
	if tag == "" {
		return false
	}
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
