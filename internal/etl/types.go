package etl

import "github.com/shopspring/decimal"

// Wire shapes of the info API feeds. Numeric fields arrive as strings.

type wireFill struct {
	Time          int64  `json:"time"`
	Coin          string `json:"coin"`
	Side          string `json:"side"`
	Dir           string `json:"dir"`
	Px            string `json:"px"`
	Sz            string `json:"sz"`
	Fee           string `json:"fee"`
	FeeToken      string `json:"feeToken"`
	Crossed       bool   `json:"crossed"`
	ClosedPnl     string `json:"closedPnl"`
	StartPosition string `json:"startPosition"`
	Hash          string `json:"hash"`
	Oid           int64  `json:"oid"`
	Tid           int64  `json:"tid"`
}

type wireLedgerUpdate struct {
	Time  int64  `json:"time"`
	Hash  string `json:"hash"`
	Delta struct {
		Type      string `json:"type"`
		Token     string `json:"token"`
		Amount    string `json:"amount"`
		Usdc      string `json:"usdc"`
		UsdcValue string `json:"usdcValue"`
		Fee       string `json:"fee"`
	} `json:"delta"`
}

type wireFundingUpdate struct {
	Time int64 `json:"time"`
}

type wirePortfolioPeriod struct {
	AccountValueHistory [][2]any `json:"accountValueHistory"`
	PnlHistory          [][2]any `json:"pnlHistory"`
	Vlm                 string   `json:"vlm"`
}

// parseDec tolerates empty and malformed values; a bad historical record
// degrades to zero instead of aborting the sync.
func parseDec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
