package lexer

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/Lineage/core/issue"
	"github.com/FocuswithJustin/Lineage/core/source"
)

func lexAll(t *testing.T, input string) ([]Token, issue.List) {
	t.Helper()
	r, err := source.FromString(input)
	if err != nil {
		t.Fatalf("FromString failed: %v", err)
	}
	l := New(r)
	var toks []Token
	for {
		tok, err := l.Next()
		if err == io.EOF {
			return toks, l.Issues()
		}
		if err != nil {
			t.Fatalf("Next() failed: %v", err)
		}
		toks = append(toks, tok)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   Token
		reason string
	}{
		{
			name: "record definition",
			raw:  "0 @I1@ INDI",
			want: Token{Level: 0, XRef: "@I1@", Tag: "INDI", Span: 1},
		},
		{
			name: "value",
			raw:  "1 NAME John /Doe/",
			want: Token{Level: 1, Tag: "NAME", Value: "John /Doe/", HasValue: true, Span: 1},
		},
		{
			name: "pointer value",
			raw:  "1 FAMS @F1@",
			want: Token{Level: 1, Tag: "FAMS", Value: "@F1@", HasValue: true, Span: 1},
		},
		{
			name: "empty value is present",
			raw:  "1 NOTE ",
			want: Token{Level: 1, Tag: "NOTE", HasValue: true, Span: 1},
		},
		{
			name: "value kept verbatim",
			raw:  "2 CONC  leading space and trailing ",
			want: Token{Level: 2, Tag: "CONC", Value: " leading space and trailing ", HasValue: true, Span: 1},
		},
		{
			name: "leading whitespace tolerated",
			raw:  "   2 DATE 1850",
			want: Token{Level: 2, Tag: "DATE", Value: "1850", HasValue: true, Span: 1},
		},
		{
			name: "vendor tag",
			raw:  "1 _UID 1234",
			want: Token{Level: 1, Tag: "_UID", Value: "1234", HasValue: true, Span: 1},
		},
		{
			name: "tab before value",
			raw:  "1 NAME\tJohn /Doe/",
			want: Token{Level: 1, Tag: "NAME", Value: "John /Doe/", HasValue: true, Span: 1},
		},
		{
			name: "tabs between fields",
			raw:  "0\t@N1@\tNOTE \tindented",
			want: Token{Level: 0, XRef: "@N1@", Tag: "NOTE", Value: "\tindented", HasValue: true, Span: 1},
		},
		{
			name: "tab-only value is present",
			raw:  "1 NOTE\t",
			want: Token{Level: 1, Tag: "NOTE", HasValue: true, Span: 1},
		},
		{name: "no level", raw: "NAME John", reason: "line does not start with a level number"},
		{name: "missing tag", raw: "1", reason: "missing tag"},
		{name: "missing tag after xref", raw: "0 @I1@", reason: "missing tag"},
		{name: "unterminated xref", raw: "0 @I1 INDI", reason: "unterminated cross-reference"},
		{name: "level glued to tag", raw: "1NAME x", reason: "missing tag"},
		{name: "bad tag", raw: "1 NA-ME x", reason: "invalid tag"},
		{name: "level overflow", raw: "99999999999999999999999 TAG", reason: "level number out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason, ok := Parse(tt.raw)
			if tt.reason != "" {
				if ok || reason != tt.reason {
					t.Errorf("Parse(%q) = ok %v, reason %q; want reason %q", tt.raw, ok, reason, tt.reason)
				}
				return
			}
			if !ok {
				t.Fatalf("Parse(%q) failed: %s", tt.raw, reason)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestBlankLine(t *testing.T) {
	if _, reason, ok := Parse("  \t "); ok || reason != "" {
		t.Errorf("blank line: ok %v, reason %q", ok, reason)
	}
}

func TestContinuation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "CONT on note with value",
			input: "0 @N1@ NOTE Line one\n1 CONT Line two\n",
			want:  "Line one\nLine two",
		},
		{
			name:  "CONT lines on note without value",
			input: "0 @N1@ NOTE\n1 CONT Line one\n1 CONT Line two\n",
			want:  "Line one\nLine two",
		},
		{
			name:  "CONC joins without separator",
			input: "1 NOTE This is a lo\n2 CONC ng word\n",
			want:  "This is a long word",
		},
		{
			name:  "CONC keeps spaces",
			input: "1 NOTE split \n2 CONC here\n",
			want:  "split here",
		},
		{
			name:  "mixed",
			input: "1 NOTE a\n2 CONC b\n2 CONT c\n2 CONC d\n",
			want:  "ab\ncd",
		},
		{
			name:  "empty CONT is a blank line",
			input: "1 NOTE first\n2 CONT\n2 CONT third\n",
			want:  "first\n\nthird",
		},
		{
			name:  "empty value then CONT",
			input: "1 NOTE \n2 CONT second\n",
			want:  "\nsecond",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, issues := lexAll(t, tt.input)
			if len(issues) != 0 {
				t.Errorf("unexpected issues: %v", issues)
			}
			if len(toks) != 1 {
				t.Fatalf("got %d tokens, want 1: %+v", len(toks), toks)
			}
			if toks[0].Value != tt.want {
				t.Errorf("Value = %q, want %q", toks[0].Value, tt.want)
			}
			if !toks[0].HasValue {
				t.Error("HasValue = false after continuation")
			}
		})
	}
}

func TestContinuationSpanAndLines(t *testing.T) {
	toks, _ := lexAll(t, "0 HEAD\n1 NOTE a\n2 CONT b\n2 CONT c\n1 SOUR x\n")
	if len(toks) != 3 {
		t.Fatalf("got %d tokens, want 3", len(toks))
	}
	note := toks[1]
	if note.Line != 2 || note.Span != 3 {
		t.Errorf("note Line/Span = %d/%d, want 2/3", note.Line, note.Span)
	}
	if toks[2].Line != 5 {
		t.Errorf("SOUR Line = %d, want 5", toks[2].Line)
	}
}

func TestDetachedContinuationPassesThrough(t *testing.T) {
	toks, _ := lexAll(t, "1 NOTE a\n2 SOUR @S1@\n2 CONT b\n")
	var tags []string
	for _, tok := range toks {
		tags = append(tags, tok.Tag)
	}
	if strings.Join(tags, ",") != "NOTE,SOUR,CONT" {
		t.Errorf("tags = %v", tags)
	}
}

func TestMalformedLinesSkipped(t *testing.T) {
	input := "0 @I1@ INDI\nthis is junk\n\n1 NAME John /Doe/\n1\n"
	toks, issues := lexAll(t, input)

	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
	if toks[1].Line != 4 {
		t.Errorf("NAME Line = %d, want 4", toks[1].Line)
	}
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2: %v", len(issues), issues)
	}
	for i, line := range []int{2, 5} {
		if issues[i].Kind != issue.KindMalformedLine || issues[i].Line != line {
			t.Errorf("issue %d = %v, want malformed-line at %d", i, issues[i], line)
		}
	}
}

type errSource struct {
	lines []string
	err   error
}

func (s *errSource) Next() (string, error) {
	if len(s.lines) == 0 {
		return "", s.err
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func TestSourceErrorIsSticky(t *testing.T) {
	cause := errors.New("disk gone")
	l := New(&errSource{lines: []string{"0 HEAD", "0 TRLR"}, err: cause})

	if tok, err := l.Next(); err != nil || tok.Tag != "HEAD" {
		t.Fatalf("Next() = %+v, %v", tok, err)
	}
	for i := 0; i < 2; i++ {
		if _, err := l.Next(); !errors.Is(err, cause) {
			t.Errorf("Next() error = %v, want %v", err, cause)
		}
	}
}

func TestPointerID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"@I1@", "I1", true},
		{"@F_23@", "F_23", true},
		{"@@", "", false},
		{"@#DGREGORIAN@", "", false},
		{"@I 1@", "", false},
		{"I1", "", false},
		{"@I1", "", false},
	}
	for _, tt := range tests {
		got, ok := PointerID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("PointerID(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
