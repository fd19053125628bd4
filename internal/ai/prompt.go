package ai

import (
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = `You are a senior analyst of perpetual-futures traders on Hyperliquid.
You receive aggregated metrics of one wallet: trade counts, win rate, realized PnL,
fees, volume, max drawdown and per-period results. Judge the wallet as a candidate
for copy-trading.

Rules:
1. Classify the trading style in a few words (e.g. "high-frequency scalper", "swing trader").
2. List concrete strengths and risks grounded in the numbers, not generic advice.
3. suggestion is one short paragraph: follow, follow with caution, or avoid, and why.
4. score is your own 0-100 judgment of copy-trading fitness.
5. follow_ratio is the fraction of capital (0.0-1.0) you would allocate; 0 when avoiding.

Answer strictly in JSON (single object):
{
  "style": "swing trader",
  "strengths": ["..."],
  "risks": ["..."],
  "suggestion": "...",
  "score": 72,
  "follow_ratio": 0.1
}`

// periodOrder keeps the prompt stable between runs.
var periodOrder = []string{"1d", "7d", "30d", "90d", "1y", "all"}

func BuildUserPrompt(profile *WalletProfile) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Wallet %s\n\n", profile.Address))
	sb.WriteString(fmt.Sprintf("Composite score: %.2f (%s)\n\n", profile.Score, profile.Level))

	sb.WriteString("## Lifetime metrics\n")
	sb.WriteString(fmt.Sprintf("- Trades: %d (wins %d / losses %d, win rate %.1f%%)\n",
		profile.Trades, profile.Wins, profile.Losses, profile.WinRate*100))
	sb.WriteString(fmt.Sprintf("- Realized PnL: %.2f USDC (avg %.2f per trade)\n",
		profile.TotalPnl, profile.AvgPnl))
	sb.WriteString(fmt.Sprintf("- Fees paid: %.2f USDC\n", profile.TotalFees))
	sb.WriteString(fmt.Sprintf("- Volume: %.0f USDC\n", profile.Volume))
	sb.WriteString(fmt.Sprintf("- Max drawdown: %.2f USDC\n\n", profile.MaxDrawdown))

	if len(profile.Periods) > 0 {
		sb.WriteString("## Per-period results\n")
		sb.WriteString("| Period | PnL | Return% | Trades |\n")
		sb.WriteString("|--------|-----|---------|--------|\n")
		for _, key := range orderedPeriods(profile.Periods) {
			p := profile.Periods[key]
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %+.2f | %d |\n",
				key, p.Pnl, p.Return, p.Trades))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Analyze the wallet and answer in JSON.")
	return sb.String()
}

func orderedPeriods(periods map[string]PeriodProfile) []string {
	keys := make([]string, 0, len(periods))
	for _, key := range periodOrder {
		if _, ok := periods[key]; ok {
			keys = append(keys, key)
		}
	}
	// Anything outside the known windows goes last, alphabetically.
	var extra []string
	for key := range periods {
		known := false
		for _, k := range periodOrder {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}
