package cardcompiler

import (
	"sort"

	"spares/internal/cloze"
	"spares/internal/delim"
)

// physKey identifies one physical cloze occurrence in the source text,
// shared by every logical-grouping clone produced by expandAllGrouping.
type physKey struct{ start int }

// pointEdit is one (range, replacement) edit against the original source,
// per spec section 9's explicit edit-list model (replacing the original's
// interior-mutability rewrite with a position map).
type pointEdit struct {
	orig        delim.Span
	replacement string
}

// mergeForRewrite combines every grouping-clone's settings for the same
// physical cloze into the single settings record that is actually written
// back to the source: orders are unioned (a cloze expanded via grouping
// "*" backs more than one card, and must record every order it was
// assigned), other fields are taken from whichever clone is not hidden.
func mergeForRewrite(a, b cloze.GroupingSettings) cloze.GroupingSettings {
	out := a
	orderSet := map[int]bool{}
	for _, o := range a.Orders {
		orderSet[o] = true
	}
	for _, o := range b.Orders {
		orderSet[o] = true
	}
	if len(orderSet) > 0 {
		out.Orders = out.Orders[:0]
		for o := range orderSet {
			out.Orders = append(out.Orders, o)
		}
		sort.Ints(out.Orders)
	}
	if a.Hidden && !b.Hidden {
		out = b
		out.Orders = a.Orders
	}
	if b.IncludeBackwardCard {
		out.IncludeBackwardCard = true
	}
	if b.FrontConceal == cloze.FrontConcealAllGroupings {
		out.FrontConceal = cloze.FrontConcealAllGroupings
	}
	if b.BackReveal == cloze.BackRevealOnlyAnswered {
		out.BackReveal = cloze.BackRevealOnlyAnswered
	}
	if a.Grouping != b.Grouping {
		// clones of one physical cloze in different groupings come from "*",
		// so the physical rewrite keeps the literal "*"
		out.Grouping = cloze.Grouping{Kind: cloze.GroupingAll}
	}
	return out
}

// rewriteSource constructs the canonical settings string for every
// physical cloze and rewrites the source accordingly (spec section 4.5
// step 8), then updates every grouping member's start/end spans in-place
// to their post-rewrite positions so NotePart emission can slice the
// rewritten string directly.
func rewriteSource(data string, groups map[string][]clozeItem, names []string, parser ParserAdapter) (string, error) {
	physSettings := map[physKey]cloze.GroupingSettings{}
	physItem := map[physKey]clozeItem{}
	var keys []physKey

	for _, name := range names {
		for _, m := range groups[name] {
			key := physKey{m.start.Start}
			if existing, ok := physSettings[key]; ok {
				physSettings[key] = mergeForRewrite(existing, m.settings)
			} else {
				physSettings[key] = m.settings
				physItem[key] = m
				keys = append(keys, key)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].start < keys[j].start })

	var edits []pointEdit
	for _, key := range keys {
		item := physItem[key]
		settingsStr := cloze.ConstructClozeString(physSettings[key])
		prefix, suffix := parser.ConstructCloze("", settingsStr)
		edits = append(edits, pointEdit{orig: item.start, replacement: prefix})
		edits = append(edits, pointEdit{orig: item.end, replacement: suffix})
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].orig.Start < edits[j].orig.Start })

	var out []byte
	cursor := 0
	newSpanByOrigStart := map[int]delim.Span{}
	delta := 0
	for _, e := range edits {
		out = append(out, data[cursor:e.orig.Start]...)
		newStart := len(out)
		out = append(out, e.replacement...)
		newSpanByOrigStart[e.orig.Start] = delim.Span{Start: newStart, End: len(out)}
		delta += len(e.replacement) - (e.orig.End - e.orig.Start)
		cursor = e.orig.End
	}
	out = append(out, data[cursor:]...)
	_ = delta

	rewritten := string(out)

	for _, name := range names {
		members := groups[name]
		for i := range members {
			key := physKey{members[i].start.Start}
			if sp, ok := newSpanByOrigStart[members[i].start.Start]; ok {
				members[i].start = sp
			}
			if sp, ok := newSpanByOrigStart[physEndKeyLookup(physItem, key)]; ok {
				members[i].end = sp
			}
		}
		groups[name] = members
	}

	return rewritten, nil
}

// physEndKeyLookup returns the original start offset of the end-delimiter
// edit for the physical cloze identified by key, so its post-rewrite span
// can be looked up in newSpanByOrigStart (which is keyed by original
// edit-start offsets for both start- and end-delimiter edits).
func physEndKeyLookup(physItem map[physKey]clozeItem, key physKey) int {
	return physItem[key].end.Start
}
