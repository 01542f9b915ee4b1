package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

// dateGrammar is the participle grammar for source dates.
// Examples: "12 JUN 1850", "ABT 1850", "BET 1850 AND 1855", "FROM MAR 1900 TO 1910",
// "INT 1850 (about the time of the flood)".
//
//nolint:govet // participle grammar tags are not standard struct tags
type dateGrammar struct {
	Range     *rangeExpr     `  @@`
	Period    *periodExpr    `| @@`
	Until     *untilExpr     `| @@`
	Interp    *interpExpr    `| @@`
	Qualified *qualifiedExpr `| @@`
	Plain     *datePart      `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type rangeExpr struct {
	Start *datePart `("BET" | "BETWEEN") @@`
	End   *datePart `"AND" @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type periodExpr struct {
	From *datePart `"FROM" @@`
	To   *datePart `("TO" @@)?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type untilExpr struct {
	To *datePart `"TO" @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type interpExpr struct {
	Date   *datePart `"INT" @@`
	Phrase *string   `@Phrase?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type qualifiedExpr struct {
	Qualifier string    `@("ABT" | "ABOUT" | "CIRCA" | "CAL" | "EST" | "BEF" | "BEFORE" | "AFT" | "AFTER")`
	Date      *datePart `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type datePart struct {
	Full      *fullDate  `  @@`
	MonthYear *monthYear `| @@`
	Year      *string    `| @Int`
}

//nolint:govet // participle grammar tags are not standard struct tags
type fullDate struct {
	Day   string `@Int`
	Month string `@Month`
	Year  string `@Int`
}

//nolint:govet // participle grammar tags are not standard struct tags
type monthYear struct {
	Month string `@Month`
	Year  string `@Int`
}

// dateLexer defines the lexer for source dates. Input is upper-cased first.
var dateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Phrase", Pattern: `\([^)]*\)`},
	{Name: "Keyword", Pattern: `(ABOUT|ABT|CIRCA|CAL|EST|BEFORE|BEF|AFTER|AFT|BETWEEN|BET|AND|FROM|TO|INT)\b`},
	{Name: "Month", Pattern: `(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)\b`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// dateParser is the participle parser for source dates.
var dateParser = participle.MustBuild[dateGrammar](
	participle.Lexer(dateLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(3),
)

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

const gregorianEscape = "@#DGREGORIAN@"

// Date normalizes a source date. It never fails: anything it cannot read,
// including other calendars and dual years, becomes a textual date that
// keeps the raw value.
func Date(raw string) bundle.Date {
	textual := bundle.Date{Kind: bundle.DateTextual, Raw: raw}

	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimSpace(strings.ReplaceAll(s, gregorianEscape, ""))
	if s == "" || strings.Contains(s, "@#") {
		return textual
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		textual.Phrase = phraseOf(raw)
		return textual
	}

	parsed, err := dateParser.ParseString("", s)
	if err != nil {
		return textual
	}

	d, ok := fromGrammar(parsed)
	if !ok {
		return textual
	}
	if parsed.Interp != nil && parsed.Interp.Phrase != nil {
		d.Phrase = phraseOf(raw)
	}
	d.Raw = raw
	return d
}

// phraseOf returns the parenthesized text of raw in its original case.
func phraseOf(raw string) string {
	open, end := strings.Index(raw, "("), strings.LastIndex(raw, ")")
	if open < 0 || end < open {
		return ""
	}
	return strings.TrimSpace(raw[open+1 : end])
}

func fromGrammar(g *dateGrammar) (bundle.Date, bool) {
	switch {
	case g.Range != nil:
		return span(bundle.DateBetween, g.Range.Start, g.Range.End)
	case g.Period != nil && g.Period.To != nil:
		return span(bundle.DateBetween, g.Period.From, g.Period.To)
	case g.Period != nil:
		return single(bundle.DateAfter, g.Period.From)
	case g.Until != nil:
		return single(bundle.DateBefore, g.Until.To)
	case g.Interp != nil:
		return single(bundle.DateAbout, g.Interp.Date)
	case g.Qualified != nil:
		return single(qualifierKind(g.Qualified.Qualifier), g.Qualified.Date)
	case g.Plain != nil:
		return single(bundle.DateExact, g.Plain)
	}
	return bundle.Date{}, false
}

func qualifierKind(q string) string {
	switch q {
	case "BEF", "BEFORE":
		return bundle.DateBefore
	case "AFT", "AFTER":
		return bundle.DateAfter
	default:
		return bundle.DateAbout
	}
}

func single(kind string, p *datePart) (bundle.Date, bool) {
	iso, precision, ok := p.iso()
	if !ok {
		return bundle.Date{}, false
	}
	return bundle.Date{Kind: kind, ISO: iso, Precision: precision}, true
}

func span(kind string, start, end *datePart) (bundle.Date, bool) {
	d, ok := single(kind, start)
	if !ok {
		return d, false
	}
	iso, _, ok := end.iso()
	if !ok {
		return bundle.Date{}, false
	}
	d.End = iso
	return d, true
}

// iso renders the part as a partial ISO 8601 date. Numbers are read in base
// 10 so that zero-padded days and years keep their meaning.
func (p *datePart) iso() (string, string, bool) {
	switch {
	case p.Full != nil:
		y, ok := year(p.Full.Year)
		if !ok {
			return "", "", false
		}
		m := months[p.Full.Month]
		day, err := strconv.Atoi(p.Full.Day)
		if err != nil || day < 1 || day > daysIn(y, m) {
			return "", "", false
		}
		return fmt.Sprintf("%04d-%02d-%02d", y, int(m), day), bundle.PrecisionDay, true
	case p.MonthYear != nil:
		y, ok := year(p.MonthYear.Year)
		if !ok {
			return "", "", false
		}
		return fmt.Sprintf("%04d-%02d", y, int(months[p.MonthYear.Month])), bundle.PrecisionMonth, true
	case p.Year != nil:
		y, ok := year(*p.Year)
		if !ok {
			return "", "", false
		}
		return fmt.Sprintf("%04d", y), bundle.PrecisionYear, true
	}
	return "", "", false
}

func year(s string) (int, bool) {
	y, err := strconv.Atoi(s)
	return y, err == nil && validYear(y)
}

func validYear(y int) bool {
	return y >= 1 && y <= 9999
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
