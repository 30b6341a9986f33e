// Package notedriver orchestrates the per-note pipeline (spec component
// C6): split the settings text preceding a note region into rolling
// global/local settings, resolve adapter-namespaced keys, run the card
// compiler (C5) with add_order tied to the Add action, extract linked-note
// keywords, and accumulate warnings/errors onto a NoteSettings result.
//
// Grounded on original_source/spares/src/parsers/notes/mod.rs.
package notedriver

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"spares/internal/cardcompiler"
	"spares/internal/cloze"
	"spares/internal/settingscodec"
)

// Action is the note-level operation a NoteSettings describes.
type Action int

const (
	ActionAdd Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "add"
	}
}

func parseAction(s string) Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "update":
		return ActionUpdate
	case "delete":
		return ActionDelete
	default:
		return ActionAdd
	}
}

// GlobalSettings is the rolling state threaded across a stream of notes in
// one input: global-prefixed ("g-") settings mutate it; every note's local
// settings start as a clone of it (spec section 4.6).
type GlobalSettings struct {
	Values map[string]string
}

// NewGlobalSettings returns an empty rolling global-settings state.
func NewGlobalSettings() *GlobalSettings {
	return &GlobalSettings{Values: map[string]string{}}
}

// NoteSettings is C6's output: the resolved action, tags, keywords,
// suspension, custom data, conceal/reveal defaults, the compiled cards, and
// any accumulated warnings (spec section 4.6).
type NoteSettings struct {
	Action             Action
	NoteID             *int64
	Tags               []string
	Keywords           []string
	IsSuspended        *bool
	CustomData         map[string]any
	FrontConceal       cloze.FrontConceal
	BackReveal         cloze.BackReveal
	ResolvedCardsCount int
	LinkedNotes        []string
	Cards              []cardcompiler.CardData
	RewrittenData      string
	Warnings           []string
}

// Driver resolves settings text and note bodies for one parser dialect.
type Driver struct {
	ops cloze.ParserOps
}

// New builds a Driver bound to a dialect's capability table.
func New(ops cloze.ParserOps) *Driver {
	return &Driver{ops: ops}
}

// ResolveNote runs the full C6 orchestration for one note region: rawSettings
// is the accumulated settings text preceding this note since the last note
// or start of input; body is the note's own text; matches are the cloze
// occurrences already extracted from body by C3/C4. global is mutated
// in-place by any "g-" prefixed settings found in rawSettings.
func (d *Driver) ResolveNote(rawSettings, body string, matches []cloze.Match, global *GlobalSettings) (*NoteSettings, error) {
	pairs, err := settingscodec.ParsePairs(rawSettings, settingscodec.DefaultKVDelim, settingscodec.DefaultSegmentDelim, settingscodec.DefaultGlobalPrefix)
	if err != nil {
		return nil, err
	}

	keys := d.ops.NoteSettingsKeys
	if keys == nil {
		keys = settingscodec.NoteSettingsKeys()
	}

	for _, kv := range pairs {
		if !kv.Global {
			continue
		}
		field, ok := keys.Canonicalize(kv.Key)
		if !ok {
			field = kv.Key
		}
		global.Values[field] = kv.Value
	}

	local := make(map[string]string, len(global.Values))
	for k, v := range global.Values {
		local[k] = v
	}
	customData := map[string]any{}
	for _, kv := range pairs {
		if kv.Global {
			continue
		}
		field, ok := keys.Canonicalize(kv.Key)
		if !ok {
			// Adapter-namespaced key (e.g. "anki-note-id"): routed into
			// custom_data under its raw name rather than rejected.
			customData[kv.Key] = kv.Value
			continue
		}
		local[field] = kv.Value
	}

	ns := &NoteSettings{CustomData: customData}

	ns.Action = parseAction(local["action"])

	if raw, ok := local["note-id"]; ok {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("notedriver: invalid note-id %q: %w", raw, err)
		}
		ns.NoteID = &id
	}

	switch ns.Action {
	case ActionUpdate:
		if ns.NoteID == nil {
			return nil, fmt.Errorf("notedriver: action=update requires note-id")
		}
	case ActionDelete:
		if ns.NoteID == nil {
			return nil, fmt.Errorf("notedriver: action=delete requires note-id")
		}
	case ActionAdd:
		if ns.NoteID != nil {
			ns.Warnings = append(ns.Warnings, "note-id present on action=add is ignored")
		}
	}

	if raw, ok := local["tags"]; ok {
		ns.Tags = settingscodec.ApplyListSettings(nil, raw)
	}
	if raw, ok := local["keywords"]; ok {
		ns.Keywords = settingscodec.ApplyListSettings(nil, raw)
	}
	if raw, ok := local["is-suspended"]; ok {
		v := strings.EqualFold(strings.TrimSpace(raw), "true")
		ns.IsSuspended = &v
	}
	if raw, ok := local["front-conceal"]; ok {
		ns.FrontConceal = cloze.ParseFrontConceal(raw)
	}
	if raw, ok := local["back-reveal"]; ok {
		ns.BackReveal = cloze.ParseBackReveal(raw)
	}
	if raw, ok := local["custom-data"]; ok && strings.TrimSpace(raw) != "" {
		extra := map[string]any{}
		if err := json.Unmarshal([]byte(raw), &extra); err != nil {
			return nil, fmt.Errorf("notedriver: invalid custom-data JSON: %w", err)
		}
		for k, v := range extra {
			customData[k] = v
		}
	}

	for _, kw := range ns.Keywords {
		if strings.Contains(strings.ToUpper(kw), "TODO") {
			ns.Warnings = append(ns.Warnings, fmt.Sprintf("keyword %q contains a TODO token", kw))
		}
	}
	if strings.Contains(strings.ToUpper(body), "TODO") {
		ns.Warnings = append(ns.Warnings, "note body contains a TODO token")
	}

	compileOpts := cardcompiler.Options{
		AddOrder:            ns.Action == ActionAdd,
		DefaultFrontConceal: ns.FrontConceal,
		DefaultBackReveal:   ns.BackReveal,
		Parser:              cardcompiler.ParserAdapter{ConstructCloze: d.ops.ConstructCloze},
	}

	cards, rewritten, err := cardcompiler.Compile(body, matches, compileOpts)
	if err != nil {
		return nil, err
	}
	ns.Cards = cards
	ns.RewrittenData = rewritten
	ns.ResolvedCardsCount = len(cards)

	if d.ops.GetLinkedNotes != nil {
		ns.LinkedNotes = d.ops.GetLinkedNotes(body)
	}

	return ns, nil
}
