package delim

import (
	"regexp"
	"testing"
)

var (
	curlyOpen  = regexp.MustCompile(`\{`)
	curlyClose = regexp.MustCompile(`\}`)
)

func TestFindPairsNested(t *testing.T) {
	text := "a{b{c}d}e"
	pairs, err := FindPairs(text, curlyOpen, curlyClose)
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("want 2 pairs, got %d: %+v", len(pairs), pairs)
	}
	if pairs[0].Start.Start != 1 || pairs[0].End.Start != 7 {
		t.Errorf("outer pair wrong span: %+v", pairs[0])
	}
	if pairs[1].Start.Start != 3 || pairs[1].End.Start != 5 {
		t.Errorf("inner pair wrong span: %+v", pairs[1])
	}
}

func TestFindPairsUnequalMatches(t *testing.T) {
	_, err := FindPairs("a{b{c}d", curlyOpen, curlyClose)
	if _, ok := err.(*ErrUnequalMatches); !ok {
		t.Fatalf("want ErrUnequalMatches, got %v", err)
	}
}

func TestFindPairsUnbalanced(t *testing.T) {
	_, err := FindPairs("a}b{c", curlyOpen, curlyClose)
	if _, ok := err.(*ErrUnbalancedNesting); !ok {
		t.Fatalf("want ErrUnbalancedNesting, got %v", err)
	}
}

func TestFindPair(t *testing.T) {
	text := `\cloze{outer {inner} text}`
	span, ok := FindPair(text, 6, '{', '}')
	if !ok {
		t.Fatalf("FindPair: not found")
	}
	if text[span.Start:span.End] != "{outer {inner} text}" {
		t.Errorf("wrong span: %q", text[span.Start:span.End])
	}
}

func TestFindPairNoOpenAtOffset(t *testing.T) {
	_, ok := FindPair("abc", 0, '{', '}')
	if ok {
		t.Fatalf("expected ok=false when openCh is not at searchFrom")
	}
}

func TestFindPairUnterminated(t *testing.T) {
	_, ok := FindPair("{abc", 0, '{', '}')
	if ok {
		t.Fatalf("expected ok=false for unterminated pair")
	}
}
