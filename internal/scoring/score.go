package scoring

import (
	"sort"

	"github.com/walletpulse/walletpulse/internal/settings"
)

// Normalize maps a raw indicator value into [0,100]. Values outside
// [min,max] clamp to the edges; higher_is_better=false inverts the scale.
func Normalize(value float64, ind settings.Indicator) float64 {
	if ind.Max == ind.Min {
		return 0
	}
	norm := (value - ind.Min) / (ind.Max - ind.Min)
	if !ind.HigherIsBetter {
		norm = 1 - norm
	}
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	return norm * 100
}

// Score computes per-dimension scores and the weighted overall score from a
// flat field map. Missing fields score as zero values.
func Score(fields map[string]float64, cfg settings.Scoring) (float64, map[string]float64) {
	dimensionScores := make(map[string]float64, len(cfg.Dimensions))

	totalWeight := 0.0
	for _, dim := range cfg.Dimensions {
		totalWeight += dim.Weight
	}
	if totalWeight == 0 {
		totalWeight = 1
	}

	for _, dim := range cfg.Dimensions {
		indicatorWeight := 0.0
		for _, ind := range dim.Indicators {
			indicatorWeight += ind.Weight
		}
		if indicatorWeight == 0 {
			indicatorWeight = 1
		}

		acc := 0.0
		for _, ind := range dim.Indicators {
			acc += Normalize(fields[ind.Field], ind) * ind.Weight
		}
		dimensionScore := 0.0
		if len(dim.Indicators) > 0 {
			dimensionScore = acc / indicatorWeight
		}
		dimensionScores[dim.Key] = dimensionScore
	}

	overall := 0.0
	for _, dim := range cfg.Dimensions {
		overall += dimensionScores[dim.Key] * dim.Weight
	}
	overall /= totalWeight
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}
	return overall, dimensionScores
}

// Tier returns the highest level whose threshold the score clears. Levels
// are scanned in descending threshold order; no match yields "N/A".
func Tier(score float64, levels []settings.Level) string {
	sorted := make([]settings.Level, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinScore > sorted[j].MinScore
	})
	for _, level := range sorted {
		if score >= level.MinScore {
			return level.Level
		}
	}
	return "N/A"
}
