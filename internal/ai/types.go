package ai

// WalletProfile is the condensed trading history handed to the model.
type WalletProfile struct {
	Address     string
	Trades      int
	Wins        int
	Losses      int
	WinRate     float64
	TotalPnl    float64
	TotalFees   float64
	Volume      float64
	MaxDrawdown float64
	AvgPnl      float64
	Score       float64
	Level       string
	Periods     map[string]PeriodProfile
}

// PeriodProfile summarizes one rolling window.
type PeriodProfile struct {
	Pnl    float64 `json:"pnl"`
	Return float64 `json:"return"`
	Trades int     `json:"trades"`
}

// Verdict is the structured judgment parsed from the model response.
type Verdict struct {
	Style       string   `json:"style"`
	Strengths   []string `json:"strengths"`
	Risks       []string `json:"risks"`
	Suggestion  string   `json:"suggestion"`
	Score       float64  `json:"score"`
	FollowRatio float64  `json:"follow_ratio"`
}
