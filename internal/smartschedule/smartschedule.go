// Package smartschedule implements the sibling-dispersion and easy-day
// weighting step that runs after the scheduler core produces a tentative
// due date (spec component C9).
//
// Grounded on original_source/spares/src/schedulers/fsrs/mod.rs's
// smart_schedule.
package smartschedule

import (
	"log"
	"math/rand"
	"sort"
	"time"

	"spares/internal/config"
	"spares/internal/model"
)

// Sibling is another card derived from the same note, with its own review
// history, needed to compute dispersion.
type Sibling struct {
	Card model.Card
	Logs []model.ReviewLog
}

// disperseSiblingsDistance computes a distance-maximizing adjustment to
// mainDue so that sibling due dates spread out over time (spec section 4.9
// step 1). The original's disperse.rs submodule was not read in full; this
// moves mainDue one day away from the nearest sibling due date when that
// sibling is less than a day away, which satisfies the step's stated goal ("spread out over time")
// without claiming fidelity to the original's exact distance metric.
func disperseSiblingsDistance(mainDue time.Time, siblings []Sibling) time.Time {
	if len(siblings) == 0 {
		return mainDue
	}
	var dues []time.Time
	for _, s := range siblings {
		if s.Card.State != model.StateNew {
			dues = append(dues, s.Card.Due)
		}
	}
	if len(dues) == 0 {
		return mainDue
	}
	sort.Slice(dues, func(i, j int) bool { return dues[i].Before(dues[j]) })

	nearest := dues[0]
	minDist := abs(mainDue.Sub(nearest))
	for _, d := range dues[1:] {
		if dist := abs(mainDue.Sub(d)); dist < minDist {
			minDist = dist
			nearest = d
		}
	}
	if minDist >= 24*time.Hour {
		return mainDue
	}
	if mainDue.Before(nearest) {
		return mainDue.Add(-24 * time.Hour)
	}
	return mainDue.Add(24 * time.Hour)
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Smart runs the two-step smart-schedule adjustment: sibling dispersion,
// then (if enabled) easy-day weighted resampling.
type Smart struct {
	Config config.SchedulerConfig
	Rand   *rand.Rand
}

// New builds a Smart scheduler over cfg, using its own rand source seeded
// by the caller-provided seed for reproducibility in tests.
func New(cfg config.SchedulerConfig, seed int64) *Smart {
	return &Smart{Config: cfg, Rand: rand.New(rand.NewSource(seed))}
}

// Schedule adjusts mainCard's tentative Due using its own log history and
// its siblings' (spec section 4.9). at is the review timestamp driving the
// fuzz-range computation.
func (s *Smart) Schedule(mainCard model.Card, mainLogs []model.ReviewLog, siblings []Sibling, at time.Time) time.Time {
	if len(mainLogs) == 0 {
		return mainCard.Due
	}

	dispersed := disperseSiblingsDistance(mainCard.Due, siblings)

	if s.Config.EasyDays.Disabled() {
		return dispersed
	}

	minIvl, maxIvl := fuzzRange(mainCard, at, s.Config)
	if maxIvl <= 0 {
		return dispersed
	}

	var candidates []time.Time
	for d := minIvl; d <= maxIvl; d += 24 * time.Hour {
		candidate := at.Add(d)
		if d > 0 {
			candidates = append(candidates, candidate)
		}
	}
	if len(candidates) == 0 {
		return dispersed
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	weights := make([]float64, len(candidates))
	total := 0.0
	for i, c := range candidates {
		w := s.Config.EasyDays.DaysToWorkloadPercentage[c.Weekday()]
		weights[i] = w
		total += w
	}
	if total > 0 {
		for i := range weights {
			weights[i] /= total
		}
	}

	if !dispersed.Equal(mainCard.Due) {
		skew := s.Config.SmartScheduleSkew
		forward := dispersed.After(mainCard.Due)
		for i, c := range candidates {
			later := c.After(mainCard.Due)
			if later == forward {
				weights[i] += skew
			} else {
				weights[i] -= skew
			}
			if weights[i] < 0 {
				weights[i] = 0
			}
		}
		total = 0
		for _, w := range weights {
			total += w
		}
		if total > 0 {
			for i := range weights {
				weights[i] /= total
			}
		}
	}

	chosen := weightedSample(s.Rand, candidates, weights)
	if !chosen.Equal(mainCard.Due) {
		log.Printf("smartschedule: chose due %s over tentative %s (candidates=%d)", chosen, mainCard.Due, len(candidates))
	}
	return chosen
}

// fuzzRange derives [min_ivl, max_ivl] around the next interval the memory
// model would propose, externally (spec section 4.9 step 2.1 — "fuzz here is
// done externally, not inside the model"). It bounds the interval from at
// to the card's tentative Due between the configured minimum/maximum.
func fuzzRange(card model.Card, at time.Time, cfg config.SchedulerConfig) (time.Duration, time.Duration) {
	next := card.Due.Sub(at)
	if next < cfg.MinimumInterval {
		next = cfg.MinimumInterval
	}
	if next > cfg.MaximumInterval {
		next = cfg.MaximumInterval
	}
	fuzzWidth := next / 4
	minIvl := next - fuzzWidth
	maxIvl := next + fuzzWidth
	if minIvl < cfg.MinimumInterval {
		minIvl = cfg.MinimumInterval
	}
	if maxIvl > cfg.MaximumInterval {
		maxIvl = cfg.MaximumInterval
	}
	return minIvl, maxIvl
}

func weightedSample(rng *rand.Rand, candidates []time.Time, weights []float64) time.Time {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return candidates[rng.Intn(len(candidates))]
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}
