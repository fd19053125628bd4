package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/walletpulse/walletpulse/internal/settings"
)

func TestNormalize(t *testing.T) {
	ind := settings.Indicator{Min: 0, Max: 100, HigherIsBetter: true, Weight: 1}

	assert.Equal(t, 50.0, Normalize(50, ind))
	assert.Equal(t, 0.0, Normalize(-5, ind), "values below min clamp to 0")
	assert.Equal(t, 100.0, Normalize(250, ind), "values above max clamp to 100")
}

func TestNormalizeInverted(t *testing.T) {
	ind := settings.Indicator{Min: 0, Max: 100, HigherIsBetter: false, Weight: 1}

	assert.Equal(t, 100.0, Normalize(0, ind))
	assert.Equal(t, 0.0, Normalize(100, ind))
	assert.Equal(t, 0.0, Normalize(150, ind), "above max still clamps after inversion")
}

func TestNormalizeDegenerateRange(t *testing.T) {
	ind := settings.Indicator{Min: 5, Max: 5, HigherIsBetter: true, Weight: 1}
	assert.Equal(t, 0.0, Normalize(5, ind))
}

func TestScoreWeightsDimensions(t *testing.T) {
	cfg := settings.Scoring{
		Dimensions: []settings.Dimension{
			{
				Key: "wins", Weight: 75,
				Indicators: []settings.Indicator{
					{Field: "win_rate", Min: 0, Max: 1, HigherIsBetter: true, Weight: 1},
				},
			},
			{
				Key: "drawdown", Weight: 25,
				Indicators: []settings.Indicator{
					{Field: "max_drawdown", Min: 0, Max: 100, HigherIsBetter: false, Weight: 1},
				},
			},
		},
	}
	fields := map[string]float64{"win_rate": 1.0, "max_drawdown": 100}

	overall, dims := Score(fields, cfg)
	assert.Equal(t, 100.0, dims["wins"])
	assert.Equal(t, 0.0, dims["drawdown"])
	assert.InDelta(t, 75.0, overall, 1e-9)
}

func TestScoreWeightsIndicators(t *testing.T) {
	cfg := settings.Scoring{
		Dimensions: []settings.Dimension{
			{
				Key: "mixed", Weight: 1,
				Indicators: []settings.Indicator{
					{Field: "a", Min: 0, Max: 1, HigherIsBetter: true, Weight: 3},
					{Field: "b", Min: 0, Max: 1, HigherIsBetter: true, Weight: 1},
				},
			},
		},
	}
	// a normalizes to 100 with weight 3, b to 0 with weight 1.
	overall, dims := Score(map[string]float64{"a": 1, "b": 0}, cfg)
	assert.InDelta(t, 75.0, dims["mixed"], 1e-9)
	assert.InDelta(t, 75.0, overall, 1e-9)
}

func TestScoreMissingFieldsCountAsZero(t *testing.T) {
	cfg := settings.Scoring{
		Dimensions: []settings.Dimension{
			{
				Key: "return", Weight: 1,
				Indicators: []settings.Indicator{
					{Field: "total_pnl", Min: -100, Max: 100, HigherIsBetter: true, Weight: 1},
				},
			},
		},
	}
	overall, _ := Score(map[string]float64{}, cfg)
	assert.InDelta(t, 50.0, overall, 1e-9, "a missing field scores as its zero value")
}

func TestTier(t *testing.T) {
	levels := settings.DefaultScoring().Levels

	assert.Equal(t, "S", Tier(95, levels))
	assert.Equal(t, "S", Tier(90, levels), "threshold is inclusive")
	assert.Equal(t, "A+", Tier(89.99, levels))
	assert.Equal(t, "B", Tier(60, levels))
	assert.Equal(t, "C", Tier(0, levels))
	assert.Equal(t, "N/A", Tier(-1, levels))
}

func TestTierUnsortedLevels(t *testing.T) {
	levels := []settings.Level{
		{Level: "C", MinScore: 0},
		{Level: "S", MinScore: 90},
		{Level: "A", MinScore: 70},
	}
	assert.Equal(t, "S", Tier(92, levels))
	assert.Equal(t, "A", Tier(75, levels))
}
