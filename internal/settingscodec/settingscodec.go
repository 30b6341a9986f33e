// Package settingscodec implements the key:value;... settings mini-language
// (spec component C2) shared by note-level and cloze-level settings
// strings, including read/write key aliasing and global-prefix handling.
package settingscodec

import (
	"fmt"
	"strings"
)

// Span is a byte range into the settings string being parsed, used for
// error reporting.
type Span struct {
	Start int
	End   int
}

// ErrInvalidSettings is raised when a settings segment has no key/value
// delimiter or has an empty key after trimming. An empty value is allowed.
type ErrInvalidSettings struct {
	Description string
	At          Span
}

func (e *ErrInvalidSettings) Error() string { return e.Description }

// DefaultKVDelim and DefaultSegmentDelim are the canonical settings
// delimiters: "key:value;key:value".
const (
	DefaultKVDelim      = ":"
	DefaultSegmentDelim = ";"
	DefaultGlobalPrefix = "g-"
)

// KV is one parsed key/value pair. Global is true when the raw key carried
// the global-settings prefix.
type KV struct {
	Key    string
	Value  string
	Global bool
	At     Span
}

// ParsePairs splits s on segDelim into segments, trims each, skips empty
// segments, splits each remaining segment on the first kvDelim, and trims
// both halves. A segment without kvDelim, or whose key is empty after
// trimming, is an ErrInvalidSettings; an empty value (as in "r:") is kept.
// Keys prefixed with globalPrefix are reported with Global=true and have
// the prefix stripped.
func ParsePairs(s, kvDelim, segDelim, globalPrefix string) ([]KV, error) {
	var out []KV
	offset := 0
	for _, seg := range strings.Split(s, segDelim) {
		segStart := offset
		offset += len(seg) + len(segDelim)
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			continue
		}
		idx := strings.Index(trimmed, kvDelim)
		if idx < 0 {
			return nil, &ErrInvalidSettings{
				Description: fmt.Sprintf("settings segment %q is missing a %q delimiter", trimmed, kvDelim),
				At:          Span{segStart, segStart + len(seg)},
			}
		}
		key := strings.TrimSpace(trimmed[:idx])
		value := strings.TrimSpace(trimmed[idx+len(kvDelim):])
		if key == "" {
			return nil, &ErrInvalidSettings{
				Description: fmt.Sprintf("settings segment %q has an empty key", trimmed),
				At:          Span{segStart, segStart + len(seg)},
			}
		}
		global := false
		if globalPrefix != "" && strings.HasPrefix(key, globalPrefix) {
			global = true
			key = key[len(globalPrefix):]
		}
		out = append(out, KV{Key: key, Value: value, Global: global, At: Span{segStart, segStart + len(seg)}})
	}
	return out, nil
}

// KeySpec describes the accepted input aliases and the canonical output key
// for one logical settings field (spec's ReadWriteValue::Same/Different).
type KeySpec struct {
	Read  []string
	Write string
}

// Same declares a key whose read and write forms are identical.
func Same(k string) KeySpec { return KeySpec{Read: []string{k}, Write: k} }

// Different declares a key with distinct read aliases and a canonical write
// form.
func Different(write string, read ...string) KeySpec { return KeySpec{Read: read, Write: write} }

// KeyTable maps a logical field name (e.g. "tags") to its KeySpec. Field
// names are internal identifiers, never themselves emitted.
type KeyTable map[string]KeySpec

// Canonicalize resolves a raw input key to the logical field name it
// belongs to, checking all Read aliases across the table.
func (t KeyTable) Canonicalize(rawKey string) (field string, ok bool) {
	for field, spec := range t {
		for _, alias := range spec.Read {
			if alias == rawKey {
				return field, true
			}
		}
	}
	return "", false
}

// EmitSettings rebuilds a canonical "key:value;key:value" string in the
// given field order, using each field's Write key, skipping fields whose
// value is empty (defaulted) and fields named in noEmit (e.g.
// "is_suspended", which is deserialize-only per spec section 4.2).
func EmitSettings(order []string, values map[string]string, table KeyTable, noEmit map[string]bool) string {
	var parts []string
	for _, field := range order {
		if noEmit[field] {
			continue
		}
		v, ok := values[field]
		if !ok || v == "" {
			continue
		}
		spec, ok := table[field]
		if !ok {
			continue
		}
		parts = append(parts, spec.Write+DefaultKVDelim+v)
	}
	return strings.Join(parts, DefaultSegmentDelim)
}

// ApplyListToken applies one comma-separated list-settings token to an
// existing ordered, de-duplicated list (used for tags/keywords). A token
// "-*" clears the list. A token prefixed with "-" removes that single
// value. Any other token adds the value if not already present.
func ApplyListToken(existing []string, token string) []string {
	token = strings.TrimSpace(token)
	if token == "" {
		return existing
	}
	if token == "-*" {
		return nil
	}
	if strings.HasPrefix(token, "-") {
		remove := strings.TrimSpace(token[1:])
		out := existing[:0:0]
		for _, v := range existing {
			if v != remove {
				out = append(out, v)
			}
		}
		return out
	}
	for _, v := range existing {
		if v == token {
			return existing
		}
	}
	return append(existing, token)
}

// ApplyListSettings splits a comma-separated settings value into tokens and
// folds ApplyListToken over each in order.
func ApplyListSettings(existing []string, commaSeparated string) []string {
	for _, tok := range strings.Split(commaSeparated, ",") {
		existing = ApplyListToken(existing, tok)
	}
	return existing
}

// NoteSettingsKeys is the canonical note-level key table (spec section 6).
// Logical field names used as map keys throughout the note driver: "note-id",
// "action", "tags", "keywords", "is-suspended", "front-conceal",
// "back-reveal", "custom-data".
func NoteSettingsKeys() KeyTable {
	return KeyTable{
		"note-id":       Same("note-id"),
		"action":        Same("action"),
		"tags":          Different("tags", "tags", "t"),
		"keywords":      Different("keywords", "keywords", "k"),
		"is-suspended":  Same("is-suspended"),
		"front-conceal": Same("front-conceal"),
		"back-reveal":   Same("back-reveal"),
		"custom-data":   Same("custom-data"),
	}
}

// ClozeSettingsKeys is the canonical per-cloze key table (spec section 6):
// o (orders), g (grouping), r (include-reverse), ro (reverse-only),
// s (suspend), h (hint), hide (hidden-no-answer), f (front-conceal),
// b (back-reveal).
func ClozeSettingsKeys() KeyTable {
	return KeyTable{
		"orders":          Same("o"),
		"grouping":        Same("g"),
		"include-reverse": Same("r"),
		"reverse-only":    Same("ro"),
		"suspend":         Same("s"),
		"hint":            Same("h"),
		"hidden-no-answer": Same("hide"),
		"front-conceal":   Same("f"),
		"back-reveal":     Same("b"),
	}
}

// NoEmitIsSuspended names the fields that are parsed but never re-emitted:
// is_suspended is deserialize-only, preventing a rewrite loop from
// permanently marking cards suspended (spec section 4.2).
func NoEmitIsSuspended() map[string]bool {
	return map[string]bool{"is-suspended": true, "suspend": true}
}
