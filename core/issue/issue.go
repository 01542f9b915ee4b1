// Package issue defines the non-fatal findings produced while reading,
// parsing, transforming and validating genealogical data.
//
// Issues are data, not errors: every stage appends to a List and keeps
// going, and callers decide whether any of them should fail a run.
package issue

import (
	"fmt"
	"sort"
)

// Kind classifies an issue.
type Kind string

// Issue kinds.
const (
	KindMalformedLine      Kind = "malformed-line"
	KindOrphanContinuation Kind = "orphan-continuation"
	KindLevelJump          Kind = "level-jump"
	KindDuplicateXRef      Kind = "duplicate-xref"
	KindMissingXRef        Kind = "missing-xref"
	KindDanglingPointer    Kind = "dangling-pointer"
	KindPointerMismatch    Kind = "pointer-mismatch"
	KindInvalidPointer     Kind = "invalid-pointer"
	KindInlineSource       Kind = "inline-source"
	KindImplausibleDate    Kind = "implausible-date"
	KindTextualDate        Kind = "textual-date"
	KindMissingName        Kind = "missing-name"
	KindEmptyUnion         Kind = "empty-union"
	KindBrokenLink         Kind = "broken-link"
	KindUnknownSex         Kind = "unknown-sex"
)

// Severity ranks how serious an issue is.
type Severity int

// Severity levels, from least to most serious.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText renders the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeverity parses "info", "warning" or "error".
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", s)
}

// Issue is a single finding.
type Issue struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	// EntityID is the bundle id of the affected entity, if any.
	EntityID string `json:"entity_id,omitempty"`
	// Line is the 1-based source line, 0 when the issue is not tied to input.
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	loc := ""
	if i.Line > 0 {
		loc = fmt.Sprintf("line %d: ", i.Line)
	}
	if i.EntityID != "" {
		loc += i.EntityID + ": "
	}
	return fmt.Sprintf("%s [%s] %s%s", i.Severity, i.Kind, loc, i.Message)
}

// List is an ordered collection of issues.
type List []Issue

// Add appends an issue built from its parts.
func (l *List) Add(kind Kind, sev Severity, entityID string, line int, format string, args ...any) {
	*l = append(*l, Issue{
		Kind:     kind,
		Severity: sev,
		EntityID: entityID,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Filter returns the issues of the given kind.
func (l List) Filter(kind Kind) List {
	var out List
	for _, i := range l {
		if i.Kind == kind {
			out = append(out, i)
		}
	}
	return out
}

// AtLeast returns the issues whose severity is at least sev.
func (l List) AtLeast(sev Severity) List {
	var out List
	for _, i := range l {
		if i.Severity >= sev {
			out = append(out, i)
		}
	}
	return out
}

// HasErrors reports whether any issue has error severity.
func (l List) HasErrors() bool {
	for _, i := range l {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of issues per kind.
func (l List) Count() map[Kind]int {
	counts := make(map[Kind]int)
	for _, i := range l {
		counts[i.Kind]++
	}
	return counts
}

// Sorted returns a copy ordered by line, then entity, then kind.
// Issues without a line sort after those with one.
func (l List) Sorted() List {
	out := make(List, len(l))
	copy(out, l)
	sort.SliceStable(out, func(a, b int) bool {
		la, lb := out[a].Line, out[b].Line
		if (la == 0) != (lb == 0) {
			return lb == 0
		}
		if la != lb {
			return la < lb
		}
		if out[a].EntityID != out[b].EntityID {
			return out[a].EntityID < out[b].EntityID
		}
		return out[a].Kind < out[b].Kind
	})
	return out
}
