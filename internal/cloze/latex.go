package cloze

import (
	"regexp"
	"strings"

	"spares/internal/delim"
	"spares/internal/settingscodec"
)

// latexEnvPairs finds balanced \begin{name}...\end{name} regions for a
// given environment name, permitting nesting of the same environment name
// (spec section 4.1/4.3).
func latexEnvPairs(text, name string) ([]delim.Pair, error) {
	start := regexp.MustCompile(`\\begin\{` + regexp.QuoteMeta(name) + `\}`)
	end := regexp.MustCompile(`\\end\{` + regexp.QuoteMeta(name) + `\}`)
	return delim.FindPairs(text, start, end)
}

var latexSettingsRe = regexp.MustCompile(`^\s*\[([^\]]*)\]`)

func latexBodyAndSettings(text string, bodyStart, bodyEnd int) (body delim.Span, settings delim.Span, raw string) {
	segment := text[bodyStart:bodyEnd]
	if m := latexSettingsRe.FindStringSubmatchIndex(segment); m != nil {
		settings = delim.Span{Start: bodyStart + m[0], End: bodyStart + m[1]}
		raw = segment[m[2]:m[3]]
		body = delim.Span{Start: bodyStart + m[1], End: bodyEnd}
		return
	}
	return delim.Span{Start: bodyStart, End: bodyEnd}, delim.Span{}, ""
}

// latexGetClozesNote handles \begin{cl}[settings]...\end{cl}.
func latexGetClozesNote(text string) ([]Match, error) {
	pairs, err := latexEnvPairs(text, "cl")
	if err != nil {
		return nil, err
	}
	var out []Match
	for _, p := range pairs {
		body, settingsSpan, raw := latexBodyAndSettings(text, p.Start.End, p.End.Start)
		if body.Start >= body.End {
			return nil, &ErrEmptyCloze{At: delim.Span{Start: p.Start.Start, End: p.End.End}}
		}
		start := p.Start
		if settingsSpan.End > settingsSpan.Start {
			start.End = settingsSpan.End
		}
		out = append(out, Match{
			StartDelim:    start,
			EndDelim:      p.End,
			SettingsMatch: settingsSpan,
			Body:          body,
			RawSettings:   raw,
		})
	}
	return out, nil
}

// latexGetClozesExercise handles
// \begin{exercise}[...]...\end{exercise}\n\begin{solution}[settings]...\end{solution}:
// the solution body is the cloze body, and the solution's leading brackets
// are its settings (spec section 4.3).
func latexGetClozesExercise(text string) ([]Match, error) {
	exPairs, err := latexEnvPairs(text, "exercise")
	if err != nil {
		return nil, err
	}
	solPairs, err := latexEnvPairs(text, "solution")
	if err != nil {
		return nil, err
	}
	var out []Match
	for i, ex := range exPairs {
		if i >= len(solPairs) {
			break
		}
		sol := solPairs[i]
		body, settingsSpan, raw := latexBodyAndSettings(text, sol.Start.End, sol.End.Start)
		if body.Start >= body.End {
			return nil, &ErrEmptyCloze{At: delim.Span{Start: ex.Start.Start, End: sol.End.End}}
		}
		out = append(out, Match{
			StartDelim:    ex.Start,
			EndDelim:      sol.End,
			SettingsMatch: settingsSpan,
			Body:          body,
			RawSettings:   raw,
		})
	}
	return out, nil
}

func latexConstructClozeNote(body, settings string) (string, string) {
	if settings == "" {
		return `\begin{cl}`, `\end{cl}`
	}
	return `\begin{cl}[` + settings + `]`, `\end{cl}`
}

func latexConstructClozeExercise(body, settings string) (string, string) {
	prefix := `\begin{exercise}\end{exercise}` + "\n" + `\begin{solution}`
	if settings != "" {
		prefix += "[" + settings + "]"
	}
	return prefix, `\end{solution}`
}

func latexConstructComment(text string) string { return "% " + text + "\n" }

var latexLinkRe = regexp.MustCompile(`\\li\{([^}]*)\}`)

func latexGetLinkedNotes(text string) []string {
	var out []string
	for _, m := range latexLinkRe.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// latexSettingsBlockRe matches a standalone \se{key: value; ...} directive
// used for note-level settings (spec section 6).
var latexSettingsBlockRe = regexp.MustCompile(`(?s)\\se\{(.*?)\}`)

func latexExtractSettingsBlocks(text string) []string {
	var out []string
	for _, m := range latexSettingsBlockRe.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

func init() {
	register(ParserOps{
		Name:              "latex-note",
		GetClozes:         latexGetClozesNote,
		ConstructCloze:    latexConstructClozeNote,
		ConstructComment:  latexConstructComment,
		FileExtension:     ".tex",
		NoteSettingsKeys:  settingscodec.NoteSettingsKeys(),
		ClozeSettingsKeys: settingscodec.ClozeSettingsKeys(),
		GetLinkedNotes:    latexGetLinkedNotes,
	})
	register(ParserOps{
		Name:              "latex-exercise",
		GetClozes:         latexGetClozesExercise,
		ConstructCloze:    latexConstructClozeExercise,
		ConstructComment:  latexConstructComment,
		FileExtension:     ".tex",
		NoteSettingsKeys:  settingscodec.NoteSettingsKeys(),
		ClozeSettingsKeys: settingscodec.ClozeSettingsKeys(),
		GetLinkedNotes:    latexGetLinkedNotes,
	})
}
