package model

import (
	"testing"
	"time"
)

func TestCardSuspended(t *testing.T) {
	c := Card{SpecialState: SpecialStateSuspended}
	if !c.Suspended() {
		t.Errorf("Suspended() should be true for SpecialStateSuspended")
	}
	c.SpecialState = SpecialStateUserBuried
	if c.Suspended() {
		t.Errorf("Suspended() should be false for SpecialStateUserBuried")
	}
}

func TestTagFiltered(t *testing.T) {
	manual := Tag{Name: "manual"}
	if manual.Filtered() {
		t.Errorf("a tag with no query should not be Filtered")
	}
	filtered := Tag{Name: "due-soon", Query: "c.state = 2"}
	if !filtered.Filtered() {
		t.Errorf("a tag with a query should be Filtered")
	}
}

func TestCardFSRSCardConvertsStateAndClearsTransientFields(t *testing.T) {
	due := time.Now().Add(24 * time.Hour)
	last := time.Now().Add(-24 * time.Hour)
	c := Card{Due: due, Stability: 5, Difficulty: 3, State: StateReview}
	fc := c.FSRSCard(last)
	if fc.Due != due || fc.Stability != 5 || fc.Difficulty != 3 {
		t.Errorf("FSRSCard did not carry over the card's own fields: %+v", fc)
	}
	if !fc.LastReview.Equal(last) {
		t.Errorf("LastReview = %v, want %v", fc.LastReview, last)
	}
	if int(fc.State) != int(StateReview)-1 {
		t.Errorf("State = %v, want %v", fc.State, int(StateReview)-1)
	}
	if fc.Reps != 0 || fc.Lapses != 0 || fc.ElapsedDays != 0 || fc.ScheduledDays != 0 {
		t.Errorf("FSRSCard should clear the transient counters: %+v", fc)
	}
}
