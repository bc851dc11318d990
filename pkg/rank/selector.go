package rank

import (
	"math/rand"
)

// Strategy names.
const (
	StrategyTop       = "top"
	StrategyTopRandom = "top_random"
	StrategyWeighted  = "weighted"
)

// DefaultTopK is the pool size for top_random when none is configured.
const DefaultTopK = 3

// Selector picks one record from a ranked list. The random source is
// injectable so selection is reproducible in tests.
type Selector struct {
	strategy string
	topK     int
	rng      *rand.Rand
}

// NewSelector creates a Selector. A nil rng falls back to the global
// source. Unknown strategies behave like "top".
func NewSelector(strategy string, topK int, rng *rand.Rand) *Selector {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Selector{strategy: strategy, topK: topK, rng: rng}
}

// Select picks a record from the ranked list. Empty input yields nil,
// not an error; callers treat that as "no candidate available".
func (s *Selector) Select(ranked []Ranked) *Ranked {
	if len(ranked) == 0 {
		return nil
	}

	switch s.strategy {
	case StrategyTopRandom:
		k := s.topK
		if k > len(ranked) {
			k = len(ranked)
		}
		return &ranked[s.intn(k)]
	case StrategyWeighted:
		return s.selectWeighted(ranked)
	default:
		return &ranked[0]
	}
}

// selectWeighted draws with probability proportional to score. When
// the total score mass is non-positive it degrades to a uniform draw.
func (s *Selector) selectWeighted(ranked []Ranked) *Ranked {
	var total float64
	for _, r := range ranked {
		if r.Score > 0 {
			total += r.Score
		}
	}
	if total <= 0 {
		return &ranked[s.intn(len(ranked))]
	}

	target := s.float64() * total
	var cumulative float64
	for i := range ranked {
		if ranked[i].Score <= 0 {
			continue
		}
		cumulative += ranked[i].Score
		if target < cumulative {
			return &ranked[i]
		}
	}
	return &ranked[len(ranked)-1]
}

func (s *Selector) intn(n int) int {
	if s.rng != nil {
		return s.rng.Intn(n)
	}
	return rand.Intn(n)
}

func (s *Selector) float64() float64 {
	if s.rng != nil {
		return s.rng.Float64()
	}
	return rand.Float64()
}
