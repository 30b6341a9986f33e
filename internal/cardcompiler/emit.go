package cardcompiler

import (
	"sort"

	"spares/internal/cloze"
	"spares/internal/delim"
)

// conceal policy lives on the first (boiled) member of a grouping; find it.
func groupingPolicy(members []clozeItem) cloze.GroupingSettings {
	for _, m := range members {
		if !m.settings.Hidden {
			return m.settings
		}
	}
	return members[0].settings
}

func memberKeySet(members []clozeItem) map[int]clozeItem {
	set := map[int]clozeItem{}
	for _, m := range members {
		set[m.start.Start] = m
	}
	return set
}

// allPhysicalTimeline flattens every distinct physical cloze occurrence
// across all groupings (by final, post-rewrite start position) in document
// order, used to walk the full note when emitting a single card's NotePart
// sequence (spec section 4.5 step 11).
func allPhysicalTimeline(groups map[string][]clozeItem, names []string) []clozeItem {
	seen := map[int]bool{}
	var out []clozeItem
	for _, name := range names {
		for _, m := range groups[name] {
			if seen[m.start.Start] {
				continue
			}
			seen[m.start.Start] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start.Start < out[j].start.Start })
	return out
}

// buildCard assembles one CardData for the grouping named by the given
// members, applying conceal/reveal (step 9) and emitting NotePart
// sequences (step 11), then deriving BackType (step 12). data is the final
// rewritten source, used to resolve each NotePart's Text from its Span.
func buildCard(data string, members []clozeItem, names []string, groups map[string][]clozeItem, opts Options) (CardData, error) {
	policy := groupingPolicy(members)
	frontConceal := policy.FrontConceal
	backReveal := policy.BackReveal

	ownMembers := memberKeySet(members)
	timeline := allPhysicalTimeline(groups, names)

	groupingCount := len(names)
	concealExtra := map[int]bool{}
	if frontConceal == cloze.FrontConcealAllGroupings || backReveal == cloze.BackRevealOnlyAnswered {
		for _, item := range timeline {
			if _, isMember := ownMembers[item.start.Start]; isMember {
				continue
			}
			concealExtra[item.start.Start] = true
		}
	}

	if frontConceal == cloze.FrontConcealOnlyGrouping && backReveal == cloze.BackRevealOnlyAnswered && groupingCount > 1 {
		return CardData{}, &ErrNonsensicalConcealReveal{}
	}

	forward, allHiddenFwd := renderSide(len(data), timeline, ownMembers, concealExtra, false)
	if allHiddenFwd {
		return CardData{}, &ErrAllClozesHidden{}
	}
	var backward []NotePart
	if policy.IncludeBackwardCard {
		backward, _ = renderSide(len(data), timeline, ownMembers, concealExtra, true)
	}

	backType := BackTypeFullNote
	if backReveal == cloze.BackRevealOnlyAnswered && groupingCount > 1 {
		backType = BackTypeOnlyAnswered
	}

	var orders []int
	for _, m := range members {
		orders = append(orders, m.settings.Orders...)
	}
	sort.Ints(orders)

	memberIdx := make([]int, 0, len(members))
	for _, m := range members {
		memberIdx = append(memberIdx, m.index)
	}

	return CardData{
		Grouping:     policy.Grouping,
		Orders:       orders,
		MemberIndex:  memberIdx,
		IsSuspended:  policy.IsSuspended,
		FrontConceal: frontConceal,
		BackReveal:   backReveal,
		BackType:     backType,
		Forward:      resolveText(forward, data),
		Backward:     resolveText(backward, data),
	}, nil
}

// renderSide walks the full-note timeline once, producing the NotePart
// sequence for one side of a card. For the forward side, member clozes are
// concealed (ToAnswer) and everything else renders plainly; for the
// backward side the roles invert: the answer the forward side conceals is
// shown outright, and everything else is left untouched (spec section 4.5
// step 11 — the back side reveals what the front withholds).
func renderSide(dataLen int, timeline []clozeItem, ownMembers map[int]clozeItem, concealExtra map[int]bool, backward bool) ([]NotePart, bool) {
	var parts []NotePart
	allHidden := true
	cursor := 0
	for _, item := range timeline {
		if cursor < item.start.Start {
			parts = append(parts, NotePart{Kind: PartSurrounding, Span: delim.Span{Start: cursor, End: item.start.Start}})
		}
		_, isMember := ownMembers[item.start.Start]
		isConcealExtra := concealExtra[item.start.Start]

		switch {
		case isMember && !backward:
			toAnswer := !item.settings.HiddenNoAnswer
			if toAnswer {
				allHidden = false
			}
			parts = append(parts,
				NotePart{Kind: PartClozeStart, Span: item.start},
				NotePart{Kind: PartClozeData, Span: delim.Span{Start: item.start.End, End: item.end.Start}, Replacement: HiddenReplacement{ToAnswer: toAnswer, Hint: item.settings.Hint}},
				NotePart{Kind: PartClozeEnd, Span: item.end},
			)
		case isConcealExtra:
			parts = append(parts,
				NotePart{Kind: PartClozeStart, Span: item.start},
				NotePart{Kind: PartClozeData, Span: delim.Span{Start: item.start.End, End: item.end.Start}, Replacement: HiddenReplacement{ToAnswer: false}},
				NotePart{Kind: PartClozeEnd, Span: item.end},
			)
		case isMember && backward:
			allHidden = false
			parts = append(parts, NotePart{Kind: PartSurrounding, Span: delim.Span{Start: item.start.Start, End: item.end.End}})
		default:
			parts = append(parts, NotePart{Kind: PartSurrounding, Span: delim.Span{Start: item.start.Start, End: item.end.End}})
		}
		cursor = item.end.End
	}
	if cursor < dataLen {
		parts = append(parts, NotePart{Kind: PartSurrounding, Span: delim.Span{Start: cursor, End: dataLen}})
	}
	return parts, allHidden
}

// resolveText fills in each NotePart's Text from its Span against the final
// rewritten source.
func resolveText(parts []NotePart, data string) []NotePart {
	for i := range parts {
		parts[i].Text = spanText(parts[i].Span, data)
	}
	return parts
}
