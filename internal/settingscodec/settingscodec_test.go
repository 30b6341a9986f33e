package settingscodec

import (
	"reflect"
	"testing"
)

func TestParsePairsBasic(t *testing.T) {
	kvs, err := ParsePairs("o:1;g:mygroup", DefaultKVDelim, DefaultSegmentDelim, DefaultGlobalPrefix)
	if err != nil {
		t.Fatalf("ParsePairs: %v", err)
	}
	want := []KV{
		{Key: "o", Value: "1", At: Span{0, 3}},
		{Key: "g", Value: "mygroup", At: Span{4, 13}},
	}
	if len(kvs) != len(want) {
		t.Fatalf("got %d pairs, want %d: %+v", len(kvs), len(want), kvs)
	}
	for i := range want {
		if kvs[i].Key != want[i].Key || kvs[i].Value != want[i].Value {
			t.Errorf("pair %d = %+v, want %+v", i, kvs[i], want[i])
		}
	}
}

func TestParsePairsGlobalPrefix(t *testing.T) {
	kvs, err := ParsePairs("g-s:true;o:2", DefaultKVDelim, DefaultSegmentDelim, DefaultGlobalPrefix)
	if err != nil {
		t.Fatalf("ParsePairs: %v", err)
	}
	if len(kvs) != 2 {
		t.Fatalf("got %d pairs", len(kvs))
	}
	if !kvs[0].Global || kvs[0].Key != "s" || kvs[0].Value != "true" {
		t.Errorf("global pair wrong: %+v", kvs[0])
	}
	if kvs[1].Global {
		t.Errorf("second pair should not be global: %+v", kvs[1])
	}
}

func TestParsePairsSkipsEmptySegments(t *testing.T) {
	kvs, err := ParsePairs("o:1;;  ;g:x", DefaultKVDelim, DefaultSegmentDelim, DefaultGlobalPrefix)
	if err != nil {
		t.Fatalf("ParsePairs: %v", err)
	}
	if len(kvs) != 2 {
		t.Fatalf("got %d pairs, want 2: %+v", len(kvs), kvs)
	}
}

func TestParsePairsMissingDelimiter(t *testing.T) {
	_, err := ParsePairs("broken", DefaultKVDelim, DefaultSegmentDelim, DefaultGlobalPrefix)
	if _, ok := err.(*ErrInvalidSettings); !ok {
		t.Fatalf("want ErrInvalidSettings, got %v", err)
	}
}

func TestParsePairsEmptyKey(t *testing.T) {
	_, err := ParsePairs(":value", DefaultKVDelim, DefaultSegmentDelim, DefaultGlobalPrefix)
	if _, ok := err.(*ErrInvalidSettings); !ok {
		t.Fatalf("want ErrInvalidSettings, got %v", err)
	}
}

func TestKeyTableCanonicalize(t *testing.T) {
	table := NoteSettingsKeys()
	field, ok := table.Canonicalize("t")
	if !ok || field != "tags" {
		t.Fatalf("Canonicalize(t) = %q, %v", field, ok)
	}
	if _, ok := table.Canonicalize("unknown-key"); ok {
		t.Fatalf("Canonicalize should fail for an unknown key")
	}
}

func TestEmitSettingsRoundTrip(t *testing.T) {
	table := ClozeSettingsKeys()
	order := []string{"orders", "grouping", "suspend"}
	values := map[string]string{"orders": "1", "grouping": "g1"}
	out := EmitSettings(order, values, table, NoEmitIsSuspended())
	if out != "o:1;g:g1" {
		t.Fatalf("EmitSettings = %q", out)
	}
	kvs, err := ParsePairs(out, DefaultKVDelim, DefaultSegmentDelim, DefaultGlobalPrefix)
	if err != nil {
		t.Fatalf("ParsePairs(%q): %v", out, err)
	}
	if len(kvs) != len(values) {
		t.Fatalf("reparsed %d pairs, want %d: %+v", len(kvs), len(values), kvs)
	}
	for _, kv := range kvs {
		field, ok := table.Canonicalize(kv.Key)
		if !ok || values[field] != kv.Value {
			t.Errorf("reparsed pair %q:%q does not map back to %v", kv.Key, kv.Value, values)
		}
	}
}

func TestEmitSettingsSkipsNoEmit(t *testing.T) {
	table := NoteSettingsKeys()
	values := map[string]string{"is-suspended": "true", "action": "update"}
	out := EmitSettings([]string{"is-suspended", "action"}, values, table, NoEmitIsSuspended())
	if out != "action:update" {
		t.Fatalf("EmitSettings = %q, is-suspended should never round-trip", out)
	}
}

func TestApplyListTokenAddRemoveClear(t *testing.T) {
	list := ApplyListSettings(nil, "a,b,c")
	if !reflect.DeepEqual(list, []string{"a", "b", "c"}) {
		t.Fatalf("got %v", list)
	}
	list = ApplyListToken(list, "-b")
	if !reflect.DeepEqual(list, []string{"a", "c"}) {
		t.Fatalf("after remove, got %v", list)
	}
	list = ApplyListToken(list, "a")
	if !reflect.DeepEqual(list, []string{"a", "c"}) {
		t.Fatalf("adding a duplicate should be a no-op, got %v", list)
	}
	list = ApplyListToken(list, "-*")
	if list != nil {
		t.Fatalf("-* should clear the list, got %v", list)
	}
}
