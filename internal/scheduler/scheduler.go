// Package scheduler implements the memory-model scheduler core (spec
// component C8): rating a card, burying it, and the filtered-tag
// sub-scheduler, wrapping github.com/open-spaced-repetition/go-fsrs/v3 the
// way the teacher's Collection.Answer already does.
//
// Grounded on original_source/spares/src/schedulers/fsrs/mod.rs.
package scheduler

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs/v3"

	"spares/internal/config"
	"spares/internal/model"
)

// SchedulerName is recorded on every ReviewLog the way the original tags
// review_log.scheduler_name, so multiple scheduler implementations could
// coexist against the same store.
const SchedulerName = "fsrs"

var (
	ErrSuspended      = errors.New("scheduler: card is suspended")
	ErrInvalidRating  = errors.New("scheduler: rating must be 1..4")
	ErrAlreadyBuried  = errors.New("scheduler: card is already buried")
)

// FSRS wraps a go-fsrs parameter set; the zero value is invalid, use New.
type FSRS struct {
	params fsrs.Parameters
}

// New builds a scheduler using go-fsrs's default weights.
func New() *FSRS { return &FSRS{params: fsrs.DefaultParam()} }

// NewWithParams builds a scheduler from explicit FSRS weights, e.g. loaded
// per-collection from persisted optimizer output.
func NewWithParams(p fsrs.Parameters) *FSRS { return &FSRS{params: p} }

// Schedule rates card with rating, returning the updated card and the new
// review log (spec section 4.8's abstract `schedule` contract).
func (f *FSRS) Schedule(card *model.Card, lastReviewedAt time.Time, rating model.Rating, reviewedAt time.Time, duration time.Duration) (model.Card, model.ReviewLog, error) {
	if card.Suspended() {
		return model.Card{}, model.ReviewLog{}, ErrSuspended
	}
	if rating < model.RatingAgain || rating > model.RatingEasy {
		return model.Card{}, model.ReviewLog{}, ErrInvalidRating
	}

	previousState := card.State
	fc := card.FSRSCard(lastReviewedAt)
	results := fsrs.NewFSRS(f.params).Repeat(fc, reviewedAt)

	info, ok := results[fsrs.Rating(rating)]
	if !ok {
		return model.Card{}, model.ReviewLog{}, fmt.Errorf("scheduler: no scheduling info for rating %d", rating)
	}

	updated := *card
	updated.Due = info.Card.Due
	updated.Stability = info.Card.Stability
	updated.Difficulty = info.Card.Difficulty
	updated.State = model.State(info.Card.State + 1)

	reviewLog := model.ReviewLog{
		CardID:        card.ID,
		ReviewedAt:    reviewedAt,
		Rating:        rating,
		Duration:      duration,
		SchedulerName: SchedulerName,
		ScheduledTime: info.Card.Due.Sub(reviewedAt),
		PreviousState: previousState,
	}
	return updated, reviewLog, nil
}

// Bury marks a card so it is excluded from study until the next unburial
// pass, without touching its memory-model state.
func (f *FSRS) Bury(card *model.Card) (model.Card, error) {
	if card.SpecialState == model.SpecialStateSchedulerBuried {
		return model.Card{}, ErrAlreadyBuried
	}
	updated := *card
	updated.SpecialState = model.SpecialStateSchedulerBuried
	return updated, nil
}

// FilteredProgress is the per-(card, tag) progress that FilteredTagSchedule
// takes and returns; this package does not store it in Card.CustomData.
type FilteredProgress struct {
	Good int `json:"good"`
}

// FilteredTagSchedule implements "card graduates out of the filtered tag
// after K good ratings or any easy rating" (spec section 4.8). A nil return
// signals the caller should remove the (card, tag) relation.
func (f *FSRS) FilteredTagSchedule(progress *FilteredProgress, rating model.Rating, goodThreshold int) *FilteredProgress {
	switch rating {
	case model.RatingAgain, model.RatingHard:
		if progress == nil {
			return &FilteredProgress{}
		}
		return &FilteredProgress{Good: progress.Good}
	case model.RatingEasy:
		return nil
	case model.RatingGood:
		good := 1
		if progress != nil {
			good = progress.Good + 1
		}
		if good >= goodThreshold {
			return nil
		}
		return &FilteredProgress{Good: good}
	default:
		return progress
	}
}

// Leech is a card flagged for having lapsed past the configured threshold.
type Leech struct {
	CardID int64
	Lapses int
}

// Leeches finds Review-state, non-suspended cards whose Again-rating count
// in logs exceeds cfg.LeechLapseThreshold (spec's leech detection, carried
// from original_source's get_leeches as a SPEC_FULL.md supplement).
func Leeches(cards []model.Card, logsByCard map[int64][]model.ReviewLog, cfg config.SchedulerConfig) []Leech {
	var out []Leech
	for _, c := range cards {
		if c.State != model.StateReview || c.Suspended() {
			continue
		}
		lapses := 0
		for _, l := range logsByCard[c.ID] {
			if l.PreviousState == model.StateReview && l.Rating == model.RatingAgain {
				lapses++
			}
		}
		if lapses > cfg.LeechLapseThreshold {
			out = append(out, Leech{CardID: c.ID, Lapses: lapses})
		}
	}
	return out
}

// reviewWeights favors Good the way original_source's generate_review_history
// weights its synthetic rating draw ([Again, Hard, Good, Easy] = [1,3,5,3]).
var reviewWeights = []struct {
	rating model.Rating
	weight int
}{
	{model.RatingAgain, 1},
	{model.RatingHard, 3},
	{model.RatingGood, 5},
	{model.RatingEasy, 3},
}

func sampleRating(rng *rand.Rand) model.Rating {
	total := 0
	for _, w := range reviewWeights {
		total += w.weight
	}
	n := rng.Intn(total)
	for _, w := range reviewWeights {
		if n < w.weight {
			return w.rating
		}
		n -= w.weight
	}
	return model.RatingGood
}

// GenerateReviewHistory synthesizes a plausible review log for a fresh card,
// used to backfill siblings for testing/seed data (spec section 9's
// "generate_review_history" supplement). Each step advances the simulated
// clock by the scheduled interval.
func (f *FSRS) GenerateReviewHistory(card model.Card, numReviews int, firstReviewDate time.Time, rng *rand.Rand) ([]model.ReviewLog, model.Card) {
	logs := make([]model.ReviewLog, 0, numReviews)
	at := firstReviewDate
	var lastReview time.Time
	cur := card
	for i := 0; i < numReviews; i++ {
		rating := sampleRating(rng)
		updated, log, err := f.Schedule(&cur, lastReview, rating, at, 0)
		if err != nil {
			break
		}
		logs = append(logs, log)
		lastReview = at
		cur = updated
		at = cur.Due
	}
	return logs, cur
}
