package cloze

import (
	"regexp"

	"spares/internal/delim"
	"spares/internal/settingscodec"
)

// typstFindBracket finds a `[...]` region starting at openIdx honoring `\]`
// escapes and depth-tracking nested `[...]` (spec section 4.3: "a
// bracket-balancing scanner honoring \] escapes and not confusing nested
// [...] content with closings").
func typstFindBracket(text string, openIdx int) (delim.Span, bool) {
	if openIdx >= len(text) || text[openIdx] != '[' {
		return delim.Span{}, false
	}
	depth := 0
	i := openIdx
	for i < len(text) {
		switch {
		case text[i] == '\\' && i+1 < len(text) && text[i+1] == ']':
			i += 2
			continue
		case text[i] == '[':
			depth++
		case text[i] == ']':
			depth--
			if depth == 0 {
				return delim.Span{Start: openIdx, End: i + 1}, true
			}
		}
		i++
	}
	return delim.Span{}, false
}

var typstClStart = regexp.MustCompile(`#cl`)

// typstGetClozes handles `#cl[body][settings]` where settings follow the
// body (spec section 4.3/4.6).
func typstGetClozes(text string) ([]Match, error) {
	var out []Match
	for _, m := range typstClStart.FindAllStringIndex(text, -1) {
		startDelim := delim.Span{Start: m[0], End: m[1]}
		bodySpan, ok := typstFindBracket(text, startDelim.End)
		if !ok {
			continue
		}
		startDelim.End = bodySpan.Start + 1
		body := delim.Span{Start: bodySpan.Start + 1, End: bodySpan.End - 1}
		if body.Start >= body.End {
			return nil, &ErrEmptyCloze{At: delim.Span{Start: startDelim.Start, End: bodySpan.End}}
		}
		bodyCloseBracket := bodySpan.End - 1
		endDelim := delim.Span{Start: bodyCloseBracket, End: bodySpan.End}
		var settingsSpan delim.Span
		raw := ""
		if settingsBracket, ok := typstFindBracket(text, bodySpan.End); ok {
			settingsSpan = settingsBracket
			raw = text[settingsBracket.Start+1 : settingsBracket.End-1]
			endDelim = delim.Span{Start: bodyCloseBracket, End: settingsBracket.End}
		}
		out = append(out, Match{
			StartDelim:    startDelim,
			EndDelim:      endDelim,
			SettingsMatch: settingsSpan,
			Body:          body,
			RawSettings:   raw,
		})
	}
	return out, nil
}

func typstConstructCloze(body, settings string) (string, string) {
	if settings == "" {
		return "#cl[", "]"
	}
	return "#cl[", "][" + settings + "]"
}

func typstConstructComment(text string) string { return "// " + text + "\n" }

var typstLinkRe = regexp.MustCompile(`#lin\(\[([^\]]*)\]\)`)

func typstGetLinkedNotes(text string) []string {
	var out []string
	for _, m := range typstLinkRe.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func init() {
	register(ParserOps{
		Name:              "typst",
		GetClozes:         typstGetClozes,
		ConstructCloze:    typstConstructCloze,
		ConstructComment:  typstConstructComment,
		FileExtension:     ".typ",
		NoteSettingsKeys:  settingscodec.NoteSettingsKeys(),
		ClozeSettingsKeys: settingscodec.ClozeSettingsKeys(),
		GetLinkedNotes:    typstGetLinkedNotes,
	})
}
