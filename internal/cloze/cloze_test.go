package cloze

import (
	"testing"

	"spares/internal/settingscodec"
)

func TestParseGrouping(t *testing.T) {
	cases := map[string]Grouping{
		"*":      {Kind: GroupingAll},
		"3":      {Kind: GroupingAuto, Auto: 3},
		"verbs":  {Kind: GroupingCustom, Name: "verbs"},
	}
	for in, want := range cases {
		got := ParseGrouping(in)
		if got != want {
			t.Errorf("ParseGrouping(%q) = %+v, want %+v", in, got, want)
		}
	}
}

func TestParseCardSettingsAndRoundTrip(t *testing.T) {
	base := DefaultGroupingSettings(0)
	out, err := ParseCardSettings("o:1,2;g:verbs;r:;h:a hint", base, settingscodec.ClozeSettingsKeys())
	if err != nil {
		t.Fatalf("ParseCardSettings: %v", err)
	}
	if len(out.Orders) != 2 || out.Orders[0] != 1 || out.Orders[1] != 2 {
		t.Errorf("Orders = %v", out.Orders)
	}
	if out.Grouping.Kind != GroupingCustom || out.Grouping.Name != "verbs" {
		t.Errorf("Grouping = %+v", out.Grouping)
	}
	if !out.IncludeForwardCard || !out.IncludeBackwardCard {
		t.Errorf("r: should include both forward and backward cards")
	}
	if out.Hint != "a hint" {
		t.Errorf("Hint = %q", out.Hint)
	}

	rebuilt := ConstructClozeString(out)
	reparsed, err := ParseCardSettings(rebuilt, DefaultGroupingSettings(0), settingscodec.ClozeSettingsKeys())
	if err != nil {
		t.Fatalf("reparsing round-trip %q: %v", rebuilt, err)
	}
	if reparsed.Grouping != out.Grouping || reparsed.Hint != out.Hint {
		t.Errorf("round trip mismatch: got %+v, want %+v", reparsed, out)
	}
}

func TestConstructClozeStringNeverEmitsSuspend(t *testing.T) {
	suspended := true
	g := DefaultGroupingSettings(0)
	g.IsSuspended = &suspended
	out := ConstructClozeString(g)
	if out != "" {
		t.Fatalf("is_suspended must never be emitted, got %q", out)
	}
}

func TestParseCardSettingsUnknownKey(t *testing.T) {
	_, err := ParseCardSettings("bogus:1", DefaultGroupingSettings(0), settingscodec.ClozeSettingsKeys())
	if err == nil {
		t.Fatalf("expected error for unknown settings key")
	}
}

func TestMarkdownGetClozesBasic(t *testing.T) {
	ops, ok := Registry["markdown"]
	if !ok {
		t.Fatalf("markdown dialect not registered")
	}
	matches, err := ops.GetClozes("The capital of France is {{Paris}}.")
	if err != nil {
		t.Fatalf("GetClozes: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	text := "The capital of France is {{Paris}}."
	body := text[matches[0].Body.Start:matches[0].Body.End]
	if body != "Paris" {
		t.Errorf("body = %q", body)
	}
}

func TestMarkdownGetClozesWithSettings(t *testing.T) {
	ops := Registry["markdown"]
	text := "{{[o:1;g:2]Paris}} is the capital."
	matches, err := ops.GetClozes(text)
	if err != nil {
		t.Fatalf("GetClozes: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches", len(matches))
	}
	if matches[0].RawSettings != "o:1;g:2" {
		t.Errorf("RawSettings = %q", matches[0].RawSettings)
	}
	body := text[matches[0].Body.Start:matches[0].Body.End]
	if body != "Paris" {
		t.Errorf("body = %q", body)
	}
}

func TestMarkdownGetClozesNestedOuterFirst(t *testing.T) {
	ops := Registry["markdown"]
	text := "{{outer {{inner}} text}}"
	matches, err := ops.GetClozes(text)
	if err != nil {
		t.Fatalf("GetClozes: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].StartDelim.Start != 0 {
		t.Errorf("outer match should come first, got %+v", matches[0])
	}
}

func TestMarkdownGetClozesEmptyBody(t *testing.T) {
	ops := Registry["markdown"]
	_, err := ops.GetClozes("{{}}")
	if _, ok := err.(*ErrEmptyCloze); !ok {
		t.Fatalf("want ErrEmptyCloze, got %v", err)
	}
}

func TestMarkdownGetClozesIgnoresMathSpans(t *testing.T) {
	ops := Registry["markdown"]
	matches, err := ops.GetClozes("the formula $a = \\{\\{b\\}\\}$ is not a cloze but {{this}} is")
	if err != nil {
		t.Fatalf("GetClozes: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1 (math span should be masked)", len(matches))
	}
}

func TestMarkdownGetLinkedNotes(t *testing.T) {
	ops := Registry["markdown"]
	links := ops.GetLinkedNotes(`see \li{other-note} and \li{another}`)
	if len(links) != 2 || links[0] != "other-note" || links[1] != "another" {
		t.Errorf("GetLinkedNotes = %v", links)
	}
}
