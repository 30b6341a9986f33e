// Package bulkschedule implements advance/postpone/reschedule bulk
// operations with safety constraints (spec component C10).
//
// Grounded on original_source/spares/src/schedulers/fsrs/mod.rs's
// advance/postpone/get_advance_safe_count/get_postpone_safe_count (query
// shape: due > limit AND state = Review AND special_state IS NULL).
package bulkschedule

import (
	"math"
	"time"

	"spares/internal/config"
	"spares/internal/model"
	"spares/internal/smartschedule"
)

// Action selects which direction a bulk move applies.
type Action int

const (
	ActionAdvance Action = iota
	ActionPostpone
)

// eligible mirrors the original's card selection: Review state, not in any
// special state, and on the correct side of cardDueLimit for the action.
func eligible(c model.Card, action Action, cardDueLimit time.Time) bool {
	if c.State != model.StateReview || c.SpecialState != model.SpecialStateNone {
		return false
	}
	if action == ActionAdvance {
		return c.Due.After(cardDueLimit)
	}
	return !c.Due.After(cardDueLimit)
}

// safeToMove reports whether moving card's due date keeps its projected
// retention change within cfg.RetentionSafetyBand (spec section 4.10's
// "safety filter"). Retention under the FSRS forgetting curve is
// (1 + elapsed/(9*stability))^-1; the absolute change between retention at
// the old and new due date is compared with the band. The card's
// DesiredRetention is not consulted.
func safeToMove(c model.Card, newDue time.Time, cfg config.SchedulerConfig) bool {
	if c.Stability <= 0 {
		return true
	}
	retentionAt := func(due time.Time) float64 {
		elapsedDays := due.Sub(c.CreatedAt).Hours() / 24
		if elapsedDays < 0 {
			elapsedDays = 0
		}
		return math.Pow(1+elapsedDays/(9*c.Stability), -1)
	}
	before := retentionAt(c.Due)
	after := retentionAt(newDue)
	delta := after - before
	if delta < 0 {
		delta = -delta
	}
	return delta <= cfg.RetentionSafetyBand
}

// GetSafeCount returns how many of cards are eligible and safe to move for
// action, without mutating anything (spec's get_{advance,postpone}_safe_count).
func GetSafeCount(cards []model.Card, action Action, cardDueLimit time.Time, minIvl, maxIvl time.Duration, cfg config.SchedulerConfig) int {
	count := 0
	for _, c := range cards {
		if !eligible(c, action, cardDueLimit) {
			continue
		}
		newDue := clampMove(c, action, minIvl, maxIvl)
		if safeToMove(c, newDue, cfg) {
			count++
		}
	}
	return count
}

func clampMove(c model.Card, action Action, minIvl, maxIvl time.Duration) time.Time {
	interval := c.Due.Sub(c.CreatedAt)
	if action == ActionAdvance {
		interval = interval / 2
	} else {
		interval = interval * 2
	}
	if interval < minIvl {
		interval = minIvl
	}
	if interval > maxIvl {
		interval = maxIvl
	}
	return c.CreatedAt.Add(interval)
}

// Move applies advance or postpone to up to n eligible-and-safe cards,
// returning the updated cards (spec's advance/postpone).
func Move(cards []model.Card, n int, action Action, cardDueLimit time.Time, minIvl, maxIvl time.Duration, cfg config.SchedulerConfig) []model.Card {
	var moved []model.Card
	for _, c := range cards {
		if len(moved) >= n {
			break
		}
		if !eligible(c, action, cardDueLimit) {
			continue
		}
		newDue := clampMove(c, action, minIvl, maxIvl)
		if !safeToMove(c, newDue, cfg) {
			continue
		}
		updated := c
		updated.Due = newDue
		moved = append(moved, updated)
	}
	return moved
}

// Reschedule reruns the smart scheduler against every card's existing logs
// (spec's "reschedule" op), recomputing Due from each card's own history and
// its siblings'.
func Reschedule(cards []model.Card, logsByCard map[int64][]model.ReviewLog, siblingsByNote map[int64][]smartschedule.Sibling, smart *smartschedule.Smart, at time.Time) []model.Card {
	out := make([]model.Card, len(cards))
	for i, c := range cards {
		logs := logsByCard[c.ID]
		siblings := siblingsByNote[c.NoteID]
		updated := c
		updated.Due = smart.Schedule(c, logs, siblings, at)
		out[i] = updated
	}
	return out
}
