package settings

import (
	"encoding/json"

	"github.com/walletpulse/walletpulse/internal/errs"
)

const scoringKey = "scoring.config"

type Indicator struct {
	Field          string  `json:"field"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	HigherIsBetter bool    `json:"higher_is_better"`
	Weight         float64 `json:"weight"`
}

type Dimension struct {
	Key        string      `json:"key"`
	Name       string      `json:"name"`
	Weight     float64     `json:"weight"`
	Indicators []Indicator `json:"indicators"`
}

type Level struct {
	Level    string  `json:"level"`
	MinScore float64 `json:"min_score"`
}

type Scoring struct {
	Dimensions []Dimension `json:"dimensions"`
	Levels     []Level     `json:"levels"`
}

func DefaultScoring() Scoring {
	return Scoring{
		Dimensions: []Dimension{
			{
				Key: "return", Name: "Return", Weight: 30,
				Indicators: []Indicator{
					{Field: "total_pnl", Min: -100000, Max: 100000, HigherIsBetter: true, Weight: 1},
					{Field: "avg_pnl", Min: -1000, Max: 1000, HigherIsBetter: true, Weight: 1},
				},
			},
			{
				Key: "risk", Name: "Risk control", Weight: 20,
				Indicators: []Indicator{
					{Field: "max_drawdown", Min: 0, Max: 100000, HigherIsBetter: false, Weight: 1},
				},
			},
			{
				Key: "risk_adjusted", Name: "Risk-adjusted return", Weight: 15,
				Indicators: []Indicator{
					{Field: "win_rate", Min: 0, Max: 1, HigherIsBetter: true, Weight: 1},
				},
			},
			{
				Key: "trade_quality", Name: "Trade quality", Weight: 15,
				Indicators: []Indicator{
					{Field: "trades", Min: 0, Max: 500, HigherIsBetter: true, Weight: 1},
				},
			},
			{
				Key: "stability", Name: "Stability", Weight: 10,
				Indicators: []Indicator{
					{Field: "equity_stability", Min: 0, Max: 1, HigherIsBetter: true, Weight: 1},
				},
			},
			{
				Key: "capital_efficiency", Name: "Capital efficiency", Weight: 10,
				Indicators: []Indicator{
					{Field: "capital_efficiency", Min: 0, Max: 1, HigherIsBetter: true, Weight: 1},
				},
			},
			{
				Key: "cost", Name: "Cost control", Weight: 10,
				Indicators: []Indicator{
					{Field: "funding_cost_ratio", Min: 0, Max: 1, HigherIsBetter: false, Weight: 1},
					{Field: "effective_fee_cross", Min: 0, Max: 0.002, HigherIsBetter: false, Weight: 1},
				},
			},
			{
				Key: "portfolio", Name: "Portfolio performance", Weight: 15,
				Indicators: []Indicator{
					{Field: "portfolio_return_30d", Min: -0.5, Max: 0.5, HigherIsBetter: true, Weight: 1},
					{Field: "portfolio_max_drawdown_30d", Min: 0, Max: 0.5, HigherIsBetter: false, Weight: 1},
				},
			},
		},
		Levels: []Level{
			{Level: "S", MinScore: 90},
			{Level: "A+", MinScore: 80},
			{Level: "A", MinScore: 70},
			{Level: "B", MinScore: 60},
			{Level: "C", MinScore: 0},
		},
	}
}

func (s Scoring) Validate() error {
	if len(s.Dimensions) == 0 {
		return errs.Invalidf("dimensions must be a non-empty list")
	}
	totalWeight := 0.0
	for _, dim := range s.Dimensions {
		if dim.Key == "" {
			return errs.Invalidf("dimension requires key and weight")
		}
		if dim.Weight <= 0 {
			return errs.Invalidf("dimension %s weight must be > 0", dim.Key)
		}
		totalWeight += dim.Weight
		for _, ind := range dim.Indicators {
			if ind.Min >= ind.Max {
				return errs.Invalidf("indicator %s min must be < max", ind.Field)
			}
			if ind.Weight <= 0 {
				return errs.Invalidf("indicator %s weight must be > 0", ind.Field)
			}
		}
	}
	if totalWeight <= 0 {
		return errs.Invalidf("sum of dimension weights must be > 0")
	}
	if len(s.Levels) == 0 {
		return errs.Invalidf("levels must be a non-empty list")
	}
	for _, level := range s.Levels {
		if level.Level == "" {
			return errs.Invalidf("each level needs level and min_score")
		}
	}
	return nil
}

func decodeScoring(raw string) (Scoring, error) {
	var cfg Scoring
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return Scoring{}, err
	}
	return cfg, nil
}
