package query

import (
	"fmt"
	"strings"
)

// FieldType is the declared type of a known field (spec section 4.7
// "Types").
type FieldType int

const (
	TypeInteger FieldType = iota
	TypeFloat
	TypeString
	TypeDateTime
	TypeJSON
	TypeBoolean
)

// ErrUnknownField is raised for a field path not in the known-fields table.
type ErrUnknownField struct{ Field string }

func (e *ErrUnknownField) Error() string { return fmt.Sprintf("unknown field %q", e.Field) }

// ErrTypeMismatch is raised when a literal's type cannot compare against a
// field's declared type.
type ErrTypeMismatch struct {
	Field string
	Type  FieldType
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("value type does not match field %q", e.Field)
}

// TableRequirements is the join bit-set accumulated bottom-up while
// compiling a TokenTree (spec section 9).
type TableRequirements struct {
	Card   bool
	Parser bool
}

// Builder compiles a TokenTree into a parameterized SQL query (spec section
// 4.7 "Compilation output").
type Builder struct {
	reqs TableRequirements
	args []any
}

// CompileSelect renders tree as a full SELECT over note (joining card and/or
// parser only when referenced), returning the SQL text and its positional
// arguments.
func CompileSelect(tree *TokenTree) (string, []any, error) {
	b := &Builder{}
	where, err := b.render(tree)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT DISTINCT note.id FROM note")
	if b.reqs.Parser {
		sb.WriteString(" LEFT JOIN parser ON parser.id = note.parser_id")
	}
	if b.reqs.Card {
		sb.WriteString(" LEFT JOIN card ON card.note_id = note.id")
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(where)

	return sb.String(), b.args, nil
}

func (b *Builder) render(t *TokenTree) (string, error) {
	if t.Atom != nil {
		return b.renderComparison(t.Atom)
	}
	switch t.BoolOp {
	case OpNot:
		inner, err := b.render(t.Children[0])
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case OpAnd, OpOr:
		joiner := " AND "
		if t.BoolOp == OpOr {
			joiner = " OR "
		}
		parts := make([]string, len(t.Children))
		for i, c := range t.Children {
			s, err := b.render(c)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, joiner) + ")", nil
	}
	return "", fmt.Errorf("query: unreachable tree node")
}

// noteColumns maps a single-segment note-level field to its SQL column and
// type (spec section 4.7 field table).
var noteColumns = map[string]struct {
	col string
	typ FieldType
}{
	"id":          {"note.id", TypeInteger},
	"data":        {"note.data", TypeString},
	"created_at":  {"note.created_at", TypeDateTime},
	"updated_at":  {"note.updated_at", TypeDateTime},
	"keyword":     {"note.keywords", TypeString},
	"parser_name": {"parser.name", TypeString},
}

var cardColumns = map[string]struct {
	col string
	typ FieldType
}{
	"id":                {"card.id", TypeInteger},
	"created_at":        {"card.created_at", TypeDateTime},
	"updated_at":        {"card.updated_at", TypeDateTime},
	"stability":         {"card.stability", TypeFloat},
	"difficulty":        {"card.difficulty", TypeFloat},
	"desired_retention": {"card.desired_retention", TypeFloat},
	"state":             {"card.state", TypeInteger},
}

// specialStateCodes mirrors model.SpecialState's ordinals without importing
// internal/model (query stays persistence-shape-only).
var specialStateCodes = map[string]int{
	"suspended":        1,
	"user_buried":      2,
	"scheduler_buried": 3,
}

func (b *Builder) renderComparison(c *Comparison) (string, error) {
	path := c.Field.Path
	opSQL, err := sqlOp(c.Op)
	if err != nil {
		return "", err
	}

	switch {
	case len(path) == 1 && path[0] == "tag":
		if c.Op != CmpEq {
			return "", &ErrTypeMismatch{Field: "tag", Type: TypeString}
		}
		b.args = append(b.args, c.Value.Str, c.Value.Str)
		return "(EXISTS (SELECT 1 FROM note_tag JOIN tag ON tag.id = note_tag.tag_id WHERE note_tag.note_id = note.id AND tag.name = ?)" +
			" OR EXISTS (SELECT 1 FROM card_tag JOIN tag ON tag.id = card_tag.tag_id JOIN card ON card.id = card_tag.card_id WHERE card.note_id = note.id AND tag.name = ?))", nil

	case len(path) == 1 && path[0] == "custom_data":
		if !c.Field.HasPtr {
			return "", &ErrUnknownField{Field: "custom_data"}
		}
		b.args = append(b.args, c.Field.Pointer, litArgForOp(c.Value, c.Op))
		return fmt.Sprintf("json_extract(note.custom_data, ?) %s ?", opSQL), nil

	case len(path) == 1 && path[0] == "linked_to":
		b.args = append(b.args, intArg(c.Value))
		return fmt.Sprintf("EXISTS (SELECT 1 FROM note_link WHERE note_link.parent_note_id = note.id AND note_link.linked_note_id %s ?)", opSQL), nil

	case len(path) == 1:
		col, ok := noteColumns[path[0]]
		if !ok {
			return "", &ErrUnknownField{Field: path[0]}
		}
		if path[0] == "parser_name" {
			b.reqs.Parser = true
		}
		if err := checkType(path[0], col.typ, c.Value); err != nil {
			return "", err
		}
		b.args = append(b.args, litArgForOp(c.Value, c.Op))
		return fmt.Sprintf("%s %s ?", col.col, opSQL), nil

	case len(path) == 2 && path[0] == "c":
		b.reqs.Card = true
		switch path[1] {
		case "suspended", "user_buried", "scheduler_buried":
			code := specialStateCodes[path[1]]
			wantTrue := c.Value.Kind == VBool && c.Value.Bool
			if wantTrue {
				b.args = append(b.args, code)
				return "card.special_state = ?", nil
			}
			b.args = append(b.args, code)
			return "(card.special_state IS NULL OR card.special_state != ?)", nil
		case "rated":
			b.args = append(b.args, litArgForOp(c.Value, c.Op))
			return fmt.Sprintf("EXISTS (SELECT 1 FROM review_log WHERE review_log.card_id = card.id AND review_log.rating %s ?)", opSQL), nil
		case "custom_data":
			if !c.Field.HasPtr {
				return "", &ErrUnknownField{Field: "c.custom_data"}
			}
			b.args = append(b.args, c.Field.Pointer, litArgForOp(c.Value, c.Op))
			return fmt.Sprintf("json_extract(card.custom_data, ?) %s ?", opSQL), nil
		default:
			col, ok := cardColumns[path[1]]
			if !ok {
				return "", &ErrUnknownField{Field: "c." + path[1]}
			}
			if err := checkType("c."+path[1], col.typ, c.Value); err != nil {
				return "", err
			}
			b.args = append(b.args, litArgForOp(c.Value, c.Op))
			return fmt.Sprintf("%s %s ?", col.col, opSQL), nil
		}
	}

	return "", &ErrUnknownField{Field: c.Field.String()}
}

// litArgForOp converts a parsed literal to its SQL bind value, wrapping
// strings used with the substring operator in LIKE wildcards.
func litArgForOp(v Value, op CompareOp) any {
	switch v.Kind {
	case VString:
		if op == CmpLike {
			return "%" + v.Str + "%"
		}
		return v.Str
	case VInt:
		return v.Int
	case VFloat:
		return v.Float
	case VBool:
		if v.Bool {
			return 1
		}
		return 0
	}
	return nil
}

func intArg(v Value) any {
	if v.Kind == VInt {
		return v.Int
	}
	return litArgForOp(v, CmpEq)
}

func sqlOp(op CompareOp) (string, error) {
	switch op {
	case CmpEq:
		return "=", nil
	case CmpGt:
		return ">", nil
	case CmpGte:
		return ">=", nil
	case CmpLt:
		return "<", nil
	case CmpLte:
		return "<=", nil
	case CmpLike:
		return "LIKE", nil
	}
	return "", fmt.Errorf("query: unknown comparison operator")
}

func checkType(field string, declared FieldType, v Value) error {
	switch declared {
	case TypeInteger:
		if v.Kind != VInt && v.Kind != VFloat {
			return &ErrTypeMismatch{Field: field, Type: declared}
		}
	case TypeFloat:
		if v.Kind != VInt && v.Kind != VFloat {
			return &ErrTypeMismatch{Field: field, Type: declared}
		}
	case TypeBoolean:
		if v.Kind != VBool {
			return &ErrTypeMismatch{Field: field, Type: declared}
		}
	case TypeDateTime:
		if v.Kind != VString && v.Kind != VInt {
			return &ErrTypeMismatch{Field: field, Type: declared}
		}
	case TypeString, TypeJSON:
		// String/Json accept any literal kind per spec section 4.7.
	}
	return nil
}
