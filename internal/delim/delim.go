// Package delim implements the pair-matching primitives for nested
// delimiters (spec component C1): given start/end matchers over a string,
// produce outer-first (start, end) span pairs by stack-based matching.
package delim

import (
	"fmt"
	"regexp"
)

// Span is a half-open byte range [Start, End) into the source text.
type Span struct {
	Start int
	End   int
}

// ErrUnequalMatches is returned when the start and end matcher counts differ.
type ErrUnequalMatches struct {
	Starts int
	Ends   int
}

func (e *ErrUnequalMatches) Error() string {
	return fmt.Sprintf("unequal matches: %d starts, %d ends", e.Starts, e.Ends)
}

// ErrUnbalancedNesting is returned when an end delimiter appears with no
// corresponding open start delimiter on the stack.
type ErrUnbalancedNesting struct {
	At Span
}

func (e *ErrUnbalancedNesting) Error() string {
	return fmt.Sprintf("unbalanced nesting at %d..%d", e.At.Start, e.At.End)
}

// Pair is a matched (start, end) delimiter span, outer-first in document
// order of the opening delimiter.
type Pair struct {
	Start Span
	End   Span
}

// FindPairs scans text for non-overlapping start/end delimiter occurrences
// (located by the given regexps) and returns them matched by a stack,
// permitting nesting. Order of returned pairs is outer-first.
func FindPairs(text string, start, end *regexp.Regexp) ([]Pair, error) {
	type mark struct {
		span   Span
		isOpen bool
	}
	var marks []mark
	for _, m := range start.FindAllStringIndex(text, -1) {
		marks = append(marks, mark{Span{m[0], m[1]}, true})
	}
	for _, m := range end.FindAllStringIndex(text, -1) {
		marks = append(marks, mark{Span{m[0], m[1]}, false})
	}
	// stable sort by start position, opens before closes at identical offsets
	for i := 1; i < len(marks); i++ {
		for j := i; j > 0 && marks[j].span.Start < marks[j-1].span.Start; j-- {
			marks[j], marks[j-1] = marks[j-1], marks[j]
		}
	}

	numStarts, numEnds := 0, 0
	for _, m := range marks {
		if m.isOpen {
			numStarts++
		} else {
			numEnds++
		}
	}
	if numStarts != numEnds {
		return nil, &ErrUnequalMatches{Starts: numStarts, Ends: numEnds}
	}

	var stack []Span
	var pairs []Pair
	for _, m := range marks {
		if m.isOpen {
			stack = append(stack, m.span)
			continue
		}
		if len(stack) == 0 {
			return nil, &ErrUnbalancedNesting{At: m.span}
		}
		openSpan := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pairs = append(pairs, Pair{Start: openSpan, End: m.span})
	}
	if len(stack) != 0 {
		return nil, &ErrUnbalancedNesting{At: stack[len(stack)-1]}
	}

	// Re-order outer-first: sort by start position ascending (already the
	// case since stack pops nearest-open first for a given end, but
	// siblings/parents can interleave after popping).
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].Start.Start < pairs[j-1].Start.Start; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
	return pairs, nil
}

// FindPair scans text starting at searchFrom for a single balanced
// open/close brace pair (e.g. LaTeX `\command{...}`), honoring nesting of
// the same open/close rune pair. Returns the span of the full `{...}`
// region including braces, or ok=false if openCh is not found at
// searchFrom.
func FindPair(text string, searchFrom int, openCh, closeCh byte) (Span, bool) {
	if searchFrom >= len(text) || text[searchFrom] != openCh {
		return Span{}, false
	}
	depth := 0
	for i := searchFrom; i < len(text); i++ {
		switch text[i] {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return Span{searchFrom, i + 1}, true
			}
		}
	}
	return Span{}, false
}
