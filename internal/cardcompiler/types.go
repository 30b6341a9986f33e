// Package cardcompiler implements the core card-compilation algorithm
// (spec component C5): merging clozes, grouping them into cards,
// validating orderings, detecting duplicates, boiling up settings,
// renumbering orders, rewriting the source with byte-offset-consistent
// edits, applying conceal/reveal, and emitting NotePart sequences.
//
// Grounded on original_source/spares/src/parsers/cards/mod.rs.
package cardcompiler

import (
	"fmt"

	"spares/internal/cloze"
	"spares/internal/delim"
)

// clozeItem is one merged cloze (text or image-occlusion) in dense
// document order, carrying a mutable copy of its delimiter spans that gets
// updated as rewrite edits are applied upstream of it.
type clozeItem struct {
	index            int
	start            delim.Span
	end              delim.Span
	settingsSpan     delim.Span
	settings         cloze.GroupingSettings
	isImageOcclusion bool
	imageIndex       int // index into a parallel image-occlusion shapes slice, if applicable
}

// HiddenReplacement describes how a cloze's body renders on a side of a
// card: answered (with optional hint) or not-to-answer (concealed with no
// hint requirement).
type HiddenReplacement struct {
	ToAnswer    bool
	Hint        string
}

// PartKind enumerates NotePart variants (spec section 4.5).
type PartKind int

const (
	PartSurrounding PartKind = iota
	PartClozeStart
	PartClozeEnd
	PartClozeData
	PartImageOcclusion
)

// NotePart is one reconstructable fragment of a card's rendered text. Span
// locates the fragment in the compiled (rewritten) source; Text is filled in
// by resolveText once the final rewritten string is known.
type NotePart struct {
	Kind         PartKind
	Span         delim.Span
	Text         string
	Replacement  HiddenReplacement
	ClozeIndices []int // for PartImageOcclusion
}

// CardData is one compiled card: its grouping, resolved order(s),
// suspension, conceal/reveal policy, derived back_type, and the flat
// NotePart sequence that reconstructs its rendered text.
type CardData struct {
	Grouping     cloze.Grouping
	Orders       []int
	MemberIndex  []int // merged-cloze indices belonging to this card's own grouping (pre-conceal/reveal expansion)
	IsSuspended  *bool
	FrontConceal cloze.FrontConceal
	BackReveal   cloze.BackReveal
	BackType     BackKind
	Forward      []NotePart
	Backward     []NotePart // only populated if IncludeBackwardCard
}

// BackKind mirrors model.BackType without importing internal/model: a
// lower-level compiler package should not depend on the persistence-facing
// model package. internal/notedriver maps this to model.BackType at the
// boundary.
type BackKind int

const (
	BackTypeFullNote BackKind = iota
	BackTypeOnlyAnswered
)

// Errors (spec section 7, Card kind).
type ErrSameGroupingNestedClozes struct {
	Cloze1, Cloze2 delim.Span
}

func (e *ErrSameGroupingNestedClozes) Error() string {
	return fmt.Sprintf("clozes at %d..%d and %d..%d share a grouping but are nested",
		e.Cloze1.Start, e.Cloze1.End, e.Cloze2.Start, e.Cloze2.End)
}

type ErrMultipleDuplicateCards struct{ Groupings []string }

func (e *ErrMultipleDuplicateCards) Error() string {
	return fmt.Sprintf("duplicate cards detected across groupings: %v", e.Groupings)
}

type ErrAllClozesHidden struct{}

func (e *ErrAllClozesHidden) Error() string { return "all clozes on this card are hidden" }

type ErrNonsensicalConcealReveal struct{}

func (e *ErrNonsensicalConcealReveal) Error() string {
	return "front_conceal=OnlyGrouping with back_reveal=OnlyAnswered and more than one grouping is nonsensical"
}
