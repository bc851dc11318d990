// Package rank scores voice candidates against a criteria set and
// picks one under a configurable strategy.
package rank

import (
	"fmt"
	"sort"
	"strings"

	"lectern/pkg/config"
	"lectern/pkg/model"
)

// Ranked pairs a candidate with its computed score.
type Ranked struct {
	Record *model.VoiceRecord
	Score  float64
	// Details explains the score for debug logging.
	Details string
}

// Rank scores candidates and returns them ordered best-first. The sort
// is stable: ties keep original catalog order.
func Rank(candidates []*model.VoiceRecord, criteria model.Criteria, weights config.RankWeights) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))
	for _, v := range candidates {
		score := v.QualityScore
		var details []string
		details = append(details, fmt.Sprintf("quality %.2f", v.QualityScore))

		gender, accent, age, useCase := criteria.Matches(v)
		if gender {
			score += weights.Gender
			details = append(details, fmt.Sprintf("gender +%.2f", weights.Gender))
		}
		if accent {
			score += weights.Accent
			details = append(details, fmt.Sprintf("accent +%.2f", weights.Accent))
		}
		if age {
			score += weights.Age
			details = append(details, fmt.Sprintf("age +%.2f", weights.Age))
		}
		if useCase {
			score += weights.UseCase
			details = append(details, fmt.Sprintf("use_case +%.2f", weights.UseCase))
		}

		ranked = append(ranked, Ranked{
			Record:  v,
			Score:   score,
			Details: strings.Join(details, ", "),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
