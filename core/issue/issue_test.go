package issue

import (
	"encoding/json"
	"testing"
)

func TestListAdd(t *testing.T) {
	var l List
	l.Add(KindDanglingPointer, SeverityWarning, "I1", 7, "pointer %s does not resolve", "@F9@")

	if len(l) != 1 {
		t.Fatalf("len = %d, want 1", len(l))
	}
	got := l[0]
	if got.Message != "pointer @F9@ does not resolve" {
		t.Errorf("Message = %q", got.Message)
	}
	if got.String() != "warning [dangling-pointer] line 7: I1: pointer @F9@ does not resolve" {
		t.Errorf("String() = %q", got.String())
	}
}

func TestListQueries(t *testing.T) {
	l := List{
		{Kind: KindTextualDate, Severity: SeverityInfo},
		{Kind: KindDanglingPointer, Severity: SeverityWarning},
		{Kind: KindDanglingPointer, Severity: SeverityError},
	}

	if got := len(l.Filter(KindDanglingPointer)); got != 2 {
		t.Errorf("Filter() len = %d, want 2", got)
	}
	if got := len(l.AtLeast(SeverityWarning)); got != 2 {
		t.Errorf("AtLeast(warning) len = %d, want 2", got)
	}
	if !l.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
	if l[:2].HasErrors() {
		t.Error("HasErrors() on warnings only = true")
	}
	counts := l.Count()
	if counts[KindDanglingPointer] != 2 || counts[KindTextualDate] != 1 {
		t.Errorf("Count() = %v", counts)
	}
}

func TestSorted(t *testing.T) {
	l := List{
		{Kind: KindMissingName, EntityID: "I2"},
		{Kind: KindLevelJump, Line: 9},
		{Kind: KindMalformedLine, Line: 2},
		{Kind: KindEmptyUnion, EntityID: "F1"},
	}
	got := l.Sorted()
	want := []Kind{KindMalformedLine, KindLevelJump, KindEmptyUnion, KindMissingName}
	for i, k := range want {
		if got[i].Kind != k {
			t.Errorf("Sorted()[%d].Kind = %s, want %s", i, got[i].Kind, k)
		}
	}
	if l[0].Kind != KindMissingName {
		t.Error("Sorted() modified the receiver")
	}
}

func TestSeverityText(t *testing.T) {
	data, err := json.Marshal(Issue{Kind: KindUnknownSex, Severity: SeverityError, Message: "x"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"kind":"unknown-sex","severity":"error","message":"x"}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var back Issue
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Severity != SeverityError {
		t.Errorf("Severity = %v, want error", back.Severity)
	}

	if _, err := ParseSeverity("fatal"); err == nil {
		t.Error("ParseSeverity(fatal) should fail")
	}
	if s, _ := ParseSeverity("warn"); s != SeverityWarning {
		t.Errorf("ParseSeverity(warn) = %v", s)
	}
}
