package cardcompiler

import (
	"sort"
	"strconv"
	"strings"

	"spares/internal/cloze"
	"spares/internal/delim"
	"spares/internal/settingscodec"
)

// ParserAdapter is the subset of cloze.ParserOps the compiler needs to
// construct rewritten delimiters; passed explicitly rather than importing
// cloze.ParserOps wholesale so tests can supply a minimal fake.
type ParserAdapter struct {
	ConstructCloze func(body, settings string) (prefix, suffix string)
}

// Options configures one compile run (spec section 4.5 "Input").
type Options struct {
	AddOrder            bool
	DefaultFrontConceal cloze.FrontConceal
	DefaultBackReveal   cloze.BackReveal
	Parser              ParserAdapter
}

// Compile runs the full C5 algorithm over data and its extracted cloze
// matches (already merged across dialect extractors and image-occlusion
// parsing by the caller), returning the compiled cards and the
// (possibly) rewritten source.
func Compile(data string, matches []cloze.Match, opts Options) ([]CardData, string, error) {
	items := mergeAndIndex(matches)
	keys := settingscodec.ClozeSettingsKeys()
	for i := range items {
		raw := strings.TrimSpace(spanText(items[i].settingsSpan, data))
		raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
		base := cloze.DefaultGroupingSettings(i + 1)
		base.FrontConceal = opts.DefaultFrontConceal
		base.BackReveal = opts.DefaultBackReveal
		gs, err := cloze.ParseCardSettings(raw, base, keys)
		if err != nil {
			return nil, data, err
		}
		items[i].settings = gs
	}

	items = expandAllGrouping(items)

	groups := groupByGrouping(items)
	groupNames := sortedGroupNames(groups)

	if err := validateOrderings(groups, groupNames); err != nil {
		return nil, data, err
	}
	if err := detectDuplicates(groups, groupNames); err != nil {
		return nil, data, err
	}

	boilUpSettings(groups, groupNames)

	if opts.AddOrder {
		assignOrders(groups, groupNames)
	}

	rewritten, err := rewriteSource(data, groups, groupNames, opts.Parser)
	if err != nil {
		return nil, data, err
	}

	cards := make([]CardData, 0, len(groupNames))
	for _, name := range groupNames {
		members := groups[name]
		card, err := buildCard(rewritten, members, groupNames, groups, opts)
		if err != nil {
			return nil, rewritten, err
		}
		cards = append(cards, card)
	}

	return cards, rewritten, nil
}

// spanText extracts the text of a Span from data (Span is a byte range).
func spanText(s delim.Span, data string) string {
	if s.Start >= s.End || s.End > len(data) {
		return ""
	}
	return data[s.Start:s.End]
}

// mergeAndIndex converts extractor matches into clozeItems ordered by
// start_delim.End (spec section 4.5 step 1) and assigns a dense index.
func mergeAndIndex(matches []cloze.Match) []clozeItem {
	sorted := make([]cloze.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartDelim.End < sorted[j].StartDelim.End
	})
	items := make([]clozeItem, len(sorted))
	for i, m := range sorted {
		items[i] = clozeItem{
			index:        i,
			start:        m.StartDelim,
			end:          m.EndDelim,
			settingsSpan: m.SettingsMatch,
		}
	}
	return items
}

// expandAllGrouping expands any cloze whose grouping is All into one copy
// per distinct explicit Custom grouping name appearing elsewhere in the
// note (spec section 4.5 step 2, property 5: "grouping * equivalence").
func expandAllGrouping(items []clozeItem) []clozeItem {
	var explicitNames []string
	seen := map[string]bool{}
	for _, it := range items {
		if it.settings.Grouping.Kind == cloze.GroupingCustom && !seen[it.settings.Grouping.Name] {
			seen[it.settings.Grouping.Name] = true
			explicitNames = append(explicitNames, it.settings.Grouping.Name)
		}
	}
	if len(explicitNames) == 0 {
		return items
	}
	var out []clozeItem
	for _, it := range items {
		if it.settings.Grouping.Kind != cloze.GroupingAll {
			out = append(out, it)
			continue
		}
		for _, name := range explicitNames {
			clone := it
			clone.settings.Grouping = cloze.Grouping{Kind: cloze.GroupingCustom, Name: name}
			out = append(out, clone)
		}
	}
	return out
}

func groupingKey(g cloze.Grouping) string { return g.String() }

// groupByGrouping buckets items (which may appear in more than one bucket
// after expansion) by grouping key, preserving document order within each
// bucket.
func groupByGrouping(items []clozeItem) map[string][]clozeItem {
	groups := map[string][]clozeItem{}
	for _, it := range items {
		key := groupingKey(it.settings.Grouping)
		groups[key] = append(groups[key], it)
	}
	return groups
}

func sortedGroupNames(groups map[string][]clozeItem) []string {
	names := make([]string, 0, len(groups))
	for k := range groups {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		return firstIndex(groups[names[i]]) < firstIndex(groups[names[j]])
	})
	return names
}

func firstIndex(members []clozeItem) int {
	min := members[0].index
	for _, m := range members {
		if m.index < min {
			min = m.index
		}
	}
	return min
}

// validateOrderings checks that each grouping's member endpoint sequence is
// strictly increasing, permitting image-occlusion clozes to share
// positions (spec section 4.5 step 4).
func validateOrderings(groups map[string][]clozeItem, names []string) error {
	for _, name := range names {
		members := append([]clozeItem(nil), groups[name]...)
		sort.Slice(members, func(i, j int) bool { return members[i].start.Start < members[j].start.Start })
		for i := 1; i < len(members); i++ {
			prev, cur := members[i-1], members[i]
			if cur.start.Start < prev.end.End && !(prev.isImageOcclusion && cur.isImageOcclusion) {
				return &ErrSameGroupingNestedClozes{Cloze1: prev.start, Cloze2: cur.start}
			}
		}
	}
	return nil
}

// detectDuplicates rejects groupings whose (sorted member indices,
// hidden_no_answer) signature exactly matches another grouping's (spec
// section 4.5 step 5, invariant 6).
func detectDuplicates(groups map[string][]clozeItem, names []string) error {
	seen := map[string]string{}
	var dupes []string
	for _, name := range names {
		members := groups[name]
		idx := make([]int, len(members))
		for i, m := range members {
			idx[i] = m.index
		}
		sort.Ints(idx)
		sig := ""
		for _, i := range idx {
			sig += ","
			sig += itoa(i)
		}
		if members[0].settings.HiddenNoAnswer {
			sig += ";hidden"
		}
		if other, ok := seen[sig]; ok {
			dupes = append(dupes, other, name)
		}
		seen[sig] = name
	}
	if len(dupes) > 0 {
		return &ErrMultipleDuplicateCards{Groupings: dupes}
	}
	return nil
}

func itoa(i int) string { return strconv.Itoa(i) }

// boilUpSettings lifts non-default settings found on any non-hidden member
// of a grouping to the first non-hidden member, resetting the rest to
// defaults (spec section 4.5 step 6). hidden/hidden_no_answer are per-cloze
// and never boiled.
func boilUpSettings(groups map[string][]clozeItem, names []string) {
	for _, name := range names {
		members := groups[name]
		firstNonHidden := -1
		for i, m := range members {
			if !m.settings.Hidden {
				firstNonHidden = i
				break
			}
		}
		if firstNonHidden == -1 {
			continue
		}
		boiled := cloze.GroupingSettings{Grouping: members[firstNonHidden].settings.Grouping}
		for _, m := range members {
			if m.settings.IncludeBackwardCard {
				boiled.IncludeBackwardCard = true
			}
			if m.settings.IsSuspended != nil {
				boiled.IsSuspended = m.settings.IsSuspended
			}
			if m.settings.FrontConceal == cloze.FrontConcealAllGroupings {
				boiled.FrontConceal = cloze.FrontConcealAllGroupings
			}
			if m.settings.BackReveal == cloze.BackRevealOnlyAnswered {
				boiled.BackReveal = cloze.BackRevealOnlyAnswered
			}
			if m.settings.Hint != "" && boiled.Hint == "" {
				boiled.Hint = m.settings.Hint
			}
		}
		boiled.IncludeForwardCard = true
		for i := range members {
			hidden := members[i].settings.Hidden
			hiddenNoAnswer := members[i].settings.HiddenNoAnswer
			orders := members[i].settings.Orders
			if i == firstNonHidden {
				members[i].settings = boiled
			} else {
				members[i].settings = cloze.GroupingSettings{Grouping: members[i].settings.Grouping, IncludeForwardCard: true}
			}
			members[i].settings.Hidden = hidden
			members[i].settings.HiddenNoAnswer = hiddenNoAnswer
			members[i].settings.Orders = orders
		}
		groups[name] = members
	}
}
