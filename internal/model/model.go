// Package model holds the core persisted types shared across the engine:
// notes, cards, review logs and tags (spec data model, section 3).
package model

import (
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs/v3"
)

// SpecialState suppresses or alters scheduling for a card without deleting it.
type SpecialState int

const (
	SpecialStateNone SpecialState = iota
	SpecialStateSuspended
	SpecialStateUserBuried
	SpecialStateSchedulerBuried
)

// BackType controls whether a card's back shows the full note or only the
// answered clozes.
type BackType int

const (
	BackTypeFullNote BackType = iota
	BackTypeOnlyAnswered
)

// Rating mirrors the memory-model rating codes: 1=Again, 2=Hard, 3=Good, 4=Easy.
type Rating int

const (
	RatingAgain Rating = 1
	RatingHard  Rating = 2
	RatingGood  Rating = 3
	RatingEasy  Rating = 4
)

// State mirrors the memory-model card states: 1=New, 2=Learning, 3=Review, 4=Relearning.
type State int

const (
	StateNew State = iota + 1
	StateLearning
	StateReview
	StateRelearning
)

// Note is a rich-text document carrying embedded clozes and optional image
// occlusions. Invariants: Data valid in ParserName's dialect; every cloze
// carries a unique sequential order after compilation; Keywords distinct by
// trimmed value.
type Note struct {
	ID         int64
	ParserID   int64
	ParserName string
	Data       string
	Keywords   []string
	Tags       []string
	CustomData map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Card is a derived review unit. (NoteID, Order) is unique.
type Card struct {
	ID               int64
	NoteID           int64
	Order            int
	BackType         BackType
	Due              time.Time
	Stability        float64
	Difficulty       float64
	DesiredRetention float64
	State            State
	SpecialState     SpecialState
	CustomData       map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Suspended reports whether scheduling actions are suppressed for this card.
func (c *Card) Suspended() bool { return c.SpecialState == SpecialStateSuspended }

// ReviewLog is an append-only record of a single review event. Logs for a
// card are totally ordered by ReviewedAt, strictly increasing.
type ReviewLog struct {
	ID             int64
	CardID         int64
	ReviewedAt     time.Time
	Rating         Rating
	Duration       time.Duration // always seconds at rest, per spec section 6
	SchedulerName  string
	ScheduledTime  time.Duration
	PreviousState  State
	CustomData     map[string]any
}

// Tag is either manual (Query == "") or filtered, where membership is
// computed from a query rather than stored note_tag/card_tag rows.
type Tag struct {
	ID         int64
	Name       string
	ParentID   *int64
	Description string
	Query      string
	AutoDelete bool
}

// Filtered reports whether membership in this tag is query-derived.
func (t *Tag) Filtered() bool { return t.Query != "" }

// NoteLink records a resolved reference from one note to another, matched by
// keyword during note-driver linked-note extraction (C6).
type NoteLink struct {
	ParentNoteID   int64
	LinkedNoteID   int64
	MatchedKeyword string
}

// FilteredProgressKey is the custom_data sub-object key reserved for
// filtered-tag graduation progress, avoiding collisions with other JSON keys
// that might reuse a tag id as a string (spec section 9, open question 2).
// No package in this repository reads or writes progress under it.
const FilteredProgressKey = "_filtered"

// FSRSCard converts a Card to the go-fsrs representation used by the
// scheduler core (C8). lastReview is the time of the previous review, or
// the zero value if there is none.
func (c *Card) FSRSCard(lastReview time.Time) fsrs.Card {
	return fsrs.Card{
		Due:           c.Due,
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		LastReview:    lastReview,
		State:         fsrs.State(c.State - 1),
		ElapsedDays:   0,
		ScheduledDays: 0,
		Reps:          0,
		Lapses:        0,
	}
}
