// Package cloze implements the per-dialect cloze extractors (spec
// component C3) behind a capability table (spec section 9: "model dynamic
// dispatch over parsers as a capability table").
package cloze

import (
	"fmt"
	"strconv"
	"strings"

	"spares/internal/delim"
	"spares/internal/settingscodec"
)

// Grouping identifies which card a cloze belongs to: All ("*") expands into
// one copy per distinct explicit grouping elsewhere in the note; Auto(n) is
// an implicit numbered grouping; Custom(name) is an explicit named grouping.
type Grouping struct {
	Kind GroupingKind
	Auto int
	Name string
}

type GroupingKind int

const (
	GroupingAll GroupingKind = iota
	GroupingAuto
	GroupingCustom
)

func (g Grouping) String() string {
	switch g.Kind {
	case GroupingAll:
		return "*"
	case GroupingAuto:
		return strconv.Itoa(g.Auto)
	default:
		return g.Name
	}
}

// ParseGrouping parses one grouping token ("*", a bare integer, or a name).
func ParseGrouping(s string) Grouping {
	s = strings.TrimSpace(s)
	if s == "*" {
		return Grouping{Kind: GroupingAll}
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Grouping{Kind: GroupingAuto, Auto: n}
	}
	return Grouping{Kind: GroupingCustom, Name: s}
}

// FrontConceal controls whether a card conceals only its own grouping's
// clozes or all groupings' clozes on the front.
type FrontConceal int

const (
	FrontConcealOnlyGrouping FrontConceal = iota
	FrontConcealAllGroupings
)

func ParseFrontConceal(s string) FrontConceal {
	if s == "all" {
		return FrontConcealAllGroupings
	}
	return FrontConcealOnlyGrouping
}

func (f FrontConceal) String() string {
	if f == FrontConcealAllGroupings {
		return "all"
	}
	return ""
}

// BackReveal controls whether a card's back shows the full note or only
// answered clozes.
type BackReveal int

const (
	BackRevealFullNote BackReveal = iota
	BackRevealOnlyAnswered
)

func ParseBackReveal(s string) BackReveal {
	if s == "a" {
		return BackRevealOnlyAnswered
	}
	return BackRevealFullNote
}

func (b BackReveal) String() string {
	if b == BackRevealOnlyAnswered {
		return "a"
	}
	return ""
}

// GroupingSettings is the per-cloze-per-grouping settings record (spec
// section 3). Orders is nil until C5 renumbering assigns it.
type GroupingSettings struct {
	Grouping            Grouping
	Orders              []int
	IncludeForwardCard  bool
	IncludeBackwardCard bool
	IsSuspended         *bool // tri-state: nil = untouched
	HiddenNoAnswer      bool
	FrontConceal        FrontConceal
	BackReveal          BackReveal
	Hint                string
	Hidden              bool // internal: consulted by boil-up and rewrite merging; compilation never sets it
}

// DefaultGroupingSettings returns the zero-value settings for a newly seen
// cloze: Auto grouping keyed by its own index, forward card only, no
// suspension change.
func DefaultGroupingSettings(autoIndex int) GroupingSettings {
	return GroupingSettings{
		Grouping:           Grouping{Kind: GroupingAuto, Auto: autoIndex},
		IncludeForwardCard: true,
	}
}

// ParseCardSettings parses a raw cloze settings string (spec section 4.2
// key table: o, g, r, ro, s, h, hide, f, b) against the default
// GroupingSettings baseline, returning the merged settings. It returns one
// GroupingSettings per string: a key that repeats overwrites its earlier
// value, and a comma-separated grouping value such as "A,B" is taken as a
// single grouping name, not split into several groupings.
func ParseCardSettings(raw string, base GroupingSettings, keys settingscodec.KeyTable) (GroupingSettings, error) {
	out := base
	pairs, err := settingscodec.ParsePairs(raw, settingscodec.DefaultKVDelim, settingscodec.DefaultSegmentDelim, "")
	if err != nil {
		return out, err
	}
	for _, kv := range pairs {
		field, ok := keys.Canonicalize(kv.Key)
		if !ok {
			return out, &settingscodec.ErrInvalidSettings{
				Description: fmt.Sprintf("unknown cloze setting key %q", kv.Key),
				At:          settingscodec.Span(kv.At),
			}
		}
		switch field {
		case "orders":
			out.Orders = nil
			for _, tok := range strings.Split(kv.Value, ",") {
				tok = strings.TrimSpace(tok)
				if tok == "" {
					continue
				}
				n, err := strconv.Atoi(tok)
				if err != nil {
					return out, &settingscodec.ErrInvalidSettings{
						Description: fmt.Sprintf("invalid order %q", tok),
						At:          settingscodec.Span(kv.At),
					}
				}
				out.Orders = append(out.Orders, n)
			}
		case "grouping":
			out.Grouping = ParseGrouping(kv.Value)
		case "include-reverse":
			out.IncludeBackwardCard = true
		case "reverse-only":
			out.IncludeForwardCard = false
			out.IncludeBackwardCard = true
		case "suspend":
			v := kv.Value != "n"
			out.IsSuspended = &v
		case "hint":
			out.Hint = kv.Value
		case "hidden-no-answer":
			out.HiddenNoAnswer = true
		case "front-conceal":
			out.FrontConceal = ParseFrontConceal(kv.Value)
		case "back-reveal":
			out.BackReveal = ParseBackReveal(kv.Value)
		}
	}
	return out, nil
}

// ConstructClozeString rebuilds the canonical settings string for one
// GroupingSettings record. is_suspended (the "s" key) is never emitted,
// matching spec section 4.2's explicit deserialize-only rule: emitting it
// would permanently re-mark cards as suspended on every subsequent
// rewrite.
func ConstructClozeString(g GroupingSettings) string {
	var parts []string
	if len(g.Orders) > 0 {
		strs := make([]string, len(g.Orders))
		for i, o := range g.Orders {
			strs[i] = strconv.Itoa(o)
		}
		parts = append(parts, "o:"+strings.Join(strs, ","))
	}
	if g.Grouping.Kind != GroupingAuto {
		parts = append(parts, "g:"+g.Grouping.String())
	}
	if g.IncludeBackwardCard && g.IncludeForwardCard {
		parts = append(parts, "r:")
	} else if g.IncludeBackwardCard && !g.IncludeForwardCard {
		parts = append(parts, "ro:")
	}
	if g.Hint != "" {
		parts = append(parts, "h:"+g.Hint)
	}
	if g.HiddenNoAnswer {
		parts = append(parts, "hide:")
	}
	if g.FrontConceal == FrontConcealAllGroupings {
		parts = append(parts, "f:all")
	}
	if g.BackReveal == BackRevealOnlyAnswered {
		parts = append(parts, "b:a")
	}
	return strings.Join(parts, ";")
}

// Match is one extracted cloze occurrence. SettingsMatch is contained in
// either StartDelim or EndDelim depending on dialect.
type Match struct {
	StartDelim    delim.Span
	EndDelim      delim.Span
	SettingsMatch delim.Span // zero value if no settings present
	Body          delim.Span
	RawSettings   string
}

// ErrEmptyCloze is raised when a cloze's body span is empty.
type ErrEmptyCloze struct{ At delim.Span }

func (e *ErrEmptyCloze) Error() string {
	return fmt.Sprintf("empty cloze body at %d..%d", e.At.Start, e.At.End)
}

// Extractor is implemented by each markup dialect.
type Extractor interface {
	GetClozes(text string) ([]Match, error)
}

// ParserOps is the per-dialect capability table referenced by spec section
// 9: a record of function values instead of a dynamic-dispatch interface
// hierarchy, so new dialects register a table rather than a new type
// switch arm.
type ParserOps struct {
	Name             string
	GetClozes        func(text string) ([]Match, error)
	ConstructCloze   func(body, settings string) (prefix, suffix string)
	ConstructComment func(text string) string
	FileExtension    string
	NoteSettingsKeys settingscodec.KeyTable
	ClozeSettingsKeys settingscodec.KeyTable
	GetLinkedNotes   func(text string) []string
}

// Registry of known dialects, populated by init() in each dialect's file.
var Registry = map[string]ParserOps{}

func register(ops ParserOps) { Registry[ops.Name] = ops }
