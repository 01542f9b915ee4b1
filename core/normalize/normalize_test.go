package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/Lineage/core/bundle"
)

func TestDate(t *testing.T) {
	tests := []struct {
		raw  string
		want bundle.Date
	}{
		{"12 JUN 1850", bundle.Date{Kind: "exact", ISO: "1850-06-12", Precision: "day"}},
		{"JUN 1850", bundle.Date{Kind: "exact", ISO: "1850-06", Precision: "month"}},
		{"1850", bundle.Date{Kind: "exact", ISO: "1850", Precision: "year"}},
		{"  12 jun 1850 ", bundle.Date{Kind: "exact", ISO: "1850-06-12", Precision: "day"}},
		{"@#DGREGORIAN@ 1 JAN 1900", bundle.Date{Kind: "exact", ISO: "1900-01-01", Precision: "day"}},
		{"ABT 1850", bundle.Date{Kind: "about", ISO: "1850", Precision: "year"}},
		{"ABOUT 1850", bundle.Date{Kind: "about", ISO: "1850", Precision: "year"}},
		{"CIRCA MAR 1850", bundle.Date{Kind: "about", ISO: "1850-03", Precision: "month"}},
		{"CAL 1850", bundle.Date{Kind: "about", ISO: "1850", Precision: "year"}},
		{"EST 1850", bundle.Date{Kind: "about", ISO: "1850", Precision: "year"}},
		{"BEF 1900", bundle.Date{Kind: "before", ISO: "1900", Precision: "year"}},
		{"BEFORE 2 FEB 1900", bundle.Date{Kind: "before", ISO: "1900-02-02", Precision: "day"}},
		{"AFT 1900", bundle.Date{Kind: "after", ISO: "1900", Precision: "year"}},
		{"AFTER 1900", bundle.Date{Kind: "after", ISO: "1900", Precision: "year"}},
		{"BET 1850 AND 1855", bundle.Date{Kind: "between", ISO: "1850", End: "1855", Precision: "year"}},
		{"BETWEEN JAN 1850 AND 3 MAR 1851", bundle.Date{Kind: "between", ISO: "1850-01", End: "1851-03-03", Precision: "month"}},
		{"FROM 1900 TO 1910", bundle.Date{Kind: "between", ISO: "1900", End: "1910", Precision: "year"}},
		{"FROM 1900", bundle.Date{Kind: "after", ISO: "1900", Precision: "year"}},
		{"TO 1910", bundle.Date{Kind: "before", ISO: "1910", Precision: "year"}},
		{"INT 1850 (Around the Flood)", bundle.Date{Kind: "about", ISO: "1850", Precision: "year", Phrase: "Around the Flood"}},
		{"INT 1850", bundle.Date{Kind: "about", ISO: "1850", Precision: "year"}},
		{"29 FEB 1904", bundle.Date{Kind: "exact", ISO: "1904-02-29", Precision: "day"}},
		{"0987", bundle.Date{Kind: "exact", ISO: "0987", Precision: "year"}},

		{"29 FEB 1900", bundle.Date{Kind: "textual"}},
		{"31 APR 1850", bundle.Date{Kind: "textual"}},
		{"0 JAN 1850", bundle.Date{Kind: "textual"}},
		{"0", bundle.Date{Kind: "textual"}},
		{"12 JUN", bundle.Date{Kind: "textual"}},
		{"1750/51", bundle.Date{Kind: "textual"}},
		{"@#DJULIAN@ 1 JAN 1700", bundle.Date{Kind: "textual"}},
		{"spring of 1850", bundle.Date{Kind: "textual"}},
		{"ABT", bundle.Date{Kind: "textual"}},
		{"BET 1850", bundle.Date{Kind: "textual"}},
		{"1850 1851", bundle.Date{Kind: "textual"}},
		{"", bundle.Date{Kind: "textual"}},
		{"(Stillborn)", bundle.Date{Kind: "textual", Phrase: "Stillborn"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			want := tt.want
			want.Raw = tt.raw
			got := Date(tt.raw)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Date(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestPlace(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		sep  string
		want bundle.Place
	}{
		{
			name: "simple",
			raw:  "Paris, France",
			want: bundle.Place{Raw: "Paris, France", Parts: []string{"Paris", "France"}, Normalized: "Paris, France"},
		},
		{
			name: "empty jurisdictions dropped",
			raw:  " Springfield ,, Sangamon,  Illinois ,USA",
			want: bundle.Place{
				Raw:        " Springfield ,, Sangamon,  Illinois ,USA",
				Parts:      []string{"Springfield", "Sangamon", "Illinois", "USA"},
				Normalized: "Springfield, Sangamon, Illinois, USA",
			},
		},
		{
			name: "internal whitespace collapsed",
			raw:  "New   York,USA",
			want: bundle.Place{Raw: "New   York,USA", Parts: []string{"New York", "USA"}, Normalized: "New York, USA"},
		},
		{
			name: "NFC",
			raw:  "Zürich, Schweiz",
			want: bundle.Place{Raw: "Zürich, Schweiz", Parts: []string{"Zürich", "Schweiz"}, Normalized: "Zürich, Schweiz"},
		},
		{
			name: "custom separator",
			raw:  "Lyon; Rhône; France",
			sep:  ";",
			want: bundle.Place{Raw: "Lyon; Rhône; France", Parts: []string{"Lyon", "Rhône", "France"}, Normalized: "Lyon, Rhône, France"},
		},
		{
			name: "only separators",
			raw:  ", ,",
			want: bundle.Place{Raw: ", ,"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Place(tt.raw, tt.sep)); diff != "" {
				t.Errorf("Place(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		raw  string
		want bundle.Name
	}{
		{"John /Doe/", bundle.Name{Given: "John", Surname: "Doe", Full: "John Doe"}},
		{"John  Quincy /Adams/ Jr.", bundle.Name{Given: "John Quincy", Surname: "Adams", Suffix: "Jr.", Full: "John Quincy Adams Jr."}},
		{"/Smith/", bundle.Name{Surname: "Smith", Full: "Smith"}},
		{"Mary", bundle.Name{Given: "Mary", Full: "Mary"}},
		{"Jean /de la  Fontaine", bundle.Name{Given: "Jean", Surname: "de la Fontaine", Full: "Jean de la Fontaine"}},
		{"//", bundle.Name{}},
		{"", bundle.Name{}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			want := tt.want
			want.Raw = tt.raw
			if diff := cmp.Diff(want, Name(tt.raw)); diff != "" {
				t.Errorf("Name(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}
