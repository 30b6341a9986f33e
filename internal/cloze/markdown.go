package cloze

import (
	"regexp"
	"strings"

	"spares/internal/delim"
	"spares/internal/settingscodec"
)

// mdMaskRanges returns the byte ranges of text that must be ignored when
// scanning for `{{ }}` clozes: math spans ($...$, $$...$$), fenced
// ```math``` blocks, and HTML-style comments <!--- ... --->. Spec section
// 4.3(b,c).
func mdMaskRanges(text string) []delim.Span {
	var ranges []delim.Span
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?s)\$\$.*?\$\$`),
		regexp.MustCompile(`(?s)\$[^$\n]*?\$`),
		regexp.MustCompile("(?s)```math.*?```"),
		regexp.MustCompile(`(?s)<!---.*?--->`),
	}
	for _, p := range patterns {
		for _, m := range p.FindAllStringIndex(text, -1) {
			ranges = append(ranges, delim.Span{Start: m[0], End: m[1]})
		}
	}
	return ranges
}

func inMaskedRange(pos int, ranges []delim.Span) bool {
	for _, r := range ranges {
		if pos >= r.Start && pos < r.End {
			return true
		}
	}
	return false
}

// mdGetClozes scans for balanced `{{ ... }}` regions, honoring a leading
// backslash escape, nesting, and suppressing recognition inside math and
// HTML-comment contexts. Optional `[settings]` immediately after the
// opening `{{` is captured as the settings span.
func mdGetClozes(text string) ([]Match, error) {
	masked := mdMaskRanges(text)
	var matches []Match
	var stack []int // byte offsets of unmatched "{{" opens

	i := 0
	for i < len(text)-1 {
		if text[i] == '\\' {
			i += 2
			continue
		}
		if inMaskedRange(i, masked) {
			i++
			continue
		}
		if text[i] == '{' && text[i+1] == '{' {
			stack = append(stack, i)
			i += 2
			continue
		}
		if text[i] == '}' && text[i+1] == '}' && len(stack) > 0 {
			openPos := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			startDelim := delim.Span{Start: openPos, End: openPos + 2}
			endDelim := delim.Span{Start: i, End: i + 2}
			bodyStart := startDelim.End
			var settingsSpan delim.Span
			if bodyStart < len(text) && text[bodyStart] == '[' {
				if sp, ok := delim.FindPair(text, bodyStart, '[', ']'); ok {
					settingsSpan = sp
					bodyStart = sp.End
					startDelim.End = sp.End
				}
			}
			body := delim.Span{Start: bodyStart, End: endDelim.Start}
			if body.Start >= body.End {
				return nil, &ErrEmptyCloze{At: delim.Span{Start: startDelim.Start, End: endDelim.End}}
			}
			raw := ""
			if settingsSpan.End > settingsSpan.Start {
				raw = strings.Trim(text[settingsSpan.Start:settingsSpan.End], "[]")
			}
			matches = append(matches, Match{
				StartDelim:    startDelim,
				EndDelim:      endDelim,
				SettingsMatch: settingsSpan,
				Body:          body,
				RawSettings:   raw,
			})
			i += 2
			continue
		}
		i++
	}
	if len(stack) != 0 {
		return nil, &delim.ErrUnbalancedNesting{At: delim.Span{Start: stack[len(stack)-1], End: stack[len(stack)-1] + 2}}
	}
	// outer-first by opening position
	for a := 1; a < len(matches); a++ {
		for b := a; b > 0 && matches[b].StartDelim.Start < matches[b-1].StartDelim.Start; b-- {
			matches[b], matches[b-1] = matches[b-1], matches[b]
		}
	}
	return matches, nil
}

func mdConstructCloze(body, settings string) (string, string) {
	if settings == "" {
		return "{{", "}}"
	}
	return "{{[" + settings + "]", "}}"
}

func mdConstructComment(text string) string {
	return "<!--- " + text + " --->\n"
}

var mdLinkRe = regexp.MustCompile(`\\li\{([^}]*)\}`)

func mdGetLinkedNotes(text string) []string {
	var out []string
	for _, m := range mdLinkRe.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func init() {
	register(ParserOps{
		Name:              "markdown",
		GetClozes:         mdGetClozes,
		ConstructCloze:    mdConstructCloze,
		ConstructComment:  mdConstructComment,
		FileExtension:     ".md",
		NoteSettingsKeys:  settingscodec.NoteSettingsKeys(),
		ClozeSettingsKeys: settingscodec.ClozeSettingsKeys(),
		GetLinkedNotes:    mdGetLinkedNotes,
	})
}
