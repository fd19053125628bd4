package scoring

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/walletpulse/walletpulse/internal/cache"
	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/settings"
	"github.com/walletpulse/walletpulse/internal/storage"
)

var one = decimal.NewFromInt(1)

// windowMs defines the rolling windows bucketed during the fill walk.
// The zero value means "all time".
var windowMs = map[string]int64{
	"1d":  86_400_000,
	"7d":  7 * 86_400_000,
	"30d": 30 * 86_400_000,
	"90d": 90 * 86_400_000,
	"1y":  365 * 86_400_000,
	"all": 0,
}

type windowStats struct {
	Pnl    decimal.Decimal
	Volume decimal.Decimal
	Trades int
}

// Engine turns a wallet's synced history into an immutable metric snapshot
// and a weighted score snapshot. It is deterministic for a fixed history,
// config and clock.
type Engine struct {
	repo     *storage.Repository
	settings *settings.Store
	cache    *cache.Cache
	logger   *logger.Logger
	now      func() time.Time
}

func NewEngine(repo *storage.Repository, store *settings.Store, c *cache.Cache, log *logger.Logger) *Engine {
	return &Engine{repo: repo, settings: store, cache: c, logger: log, now: time.Now}
}

// ComputeMetrics runs a single ordered pass over the wallet's fills and
// persists a fresh metric/score snapshot pair.
func (e *Engine) ComputeMetrics(address string) (*storage.WalletMetric, *storage.WalletScore, error) {
	cfg := e.settings.Scoring()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	fills, err := e.repo.FillsByUserAsc(address)
	if err != nil {
		return nil, nil, fmt.Errorf("load fills: %w", err)
	}
	nowMs := e.now().UnixMilli()

	if len(fills) == 0 {
		// Nothing to score: zero snapshot, sentinel tier.
		metric := &storage.WalletMetric{User: address, AsOf: nowMs, Details: "{}"}
		score := &storage.WalletScore{
			User:            address,
			AsOf:            nowMs,
			Score:           decimal.Zero,
			Level:           "N/A",
			DimensionScores: "{}",
		}
		if err := e.repo.SaveMetricAndScore(metric, score); err != nil {
			return nil, nil, err
		}
		return metric, score, nil
	}

	windows := make(map[string]*windowStats, len(windowMs))
	for key := range windowMs {
		windows[key] = &windowStats{}
	}

	var (
		totalPnl    decimal.Decimal
		totalFees   decimal.Decimal
		volume      decimal.Decimal
		equity      decimal.Decimal
		peak        decimal.Decimal
		maxDrawdown decimal.Decimal
		wins        int
		losses      int
	)

	for _, f := range fills {
		pnl := f.ClosedPnl
		notional := f.Px.Mul(f.Sz).Abs()

		totalPnl = totalPnl.Add(pnl)
		totalFees = totalFees.Add(f.Fee)
		volume = volume.Add(notional)
		switch pnl.Sign() {
		case 1:
			wins++
		case -1:
			losses++
		}

		equity = equity.Add(pnl)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if drawdown := peak.Sub(equity); drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}

		for key, window := range windowMs {
			if window == 0 || nowMs-f.TimeMs <= window {
				stats := windows[key]
				stats.Pnl = stats.Pnl.Add(pnl)
				stats.Volume = stats.Volume.Add(notional)
				stats.Trades++
			}
		}
	}

	trades := len(fills)
	tradesDec := decimal.NewFromInt(int64(trades))
	winRate := decimal.NewFromInt(int64(wins)).Div(tradesDec)
	avgPnl := totalPnl.Div(tradesDec)
	asOf := fills[len(fills)-1].TimeMs

	fields := map[string]float64{
		"trades":       float64(trades),
		"total_pnl":    totalPnl.InexactFloat64(),
		"total_fees":   totalFees.InexactFloat64(),
		"avg_pnl":      avgPnl.InexactFloat64(),
		"win_rate":     winRate.InexactFloat64(),
		"max_drawdown": maxDrawdown.InexactFloat64(),
		"volume":       volume.InexactFloat64(),
	}
	fields["equity_stability"] = clamp01(1 - maxDrawdown.Div(totalPnl.Abs().Add(one)).InexactFloat64())
	fields["capital_efficiency"] = clamp01(totalPnl.Abs().Add(one).Div(volume.Add(one)).InexactFloat64())

	fundingPaid, fundingReceived := e.fundingStats(address)
	fields["funding_paid"] = fundingPaid.InexactFloat64()
	fields["funding_received"] = fundingReceived.InexactFloat64()
	fields["funding_cost_ratio"] = fundingPaid.Div(totalPnl.Abs().Add(one)).InexactFloat64()

	for field, value := range e.feeRates(address) {
		fields[field] = value
	}
	for field, value := range e.portfolioFields(address) {
		fields[field] = value
	}

	details := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		details[key] = value
	}
	details["periods"] = periodResults(windows)
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, nil, fmt.Errorf("encode details: %w", err)
	}

	metric := &storage.WalletMetric{
		User:        address,
		AsOf:        asOf,
		Trades:      trades,
		Wins:        wins,
		Losses:      losses,
		WinRate:     winRate,
		TotalPnl:    totalPnl,
		TotalFees:   totalFees,
		Volume:      volume,
		MaxDrawdown: maxDrawdown,
		AvgPnl:      avgPnl,
		Details:     string(detailsJSON),
	}

	overall, dimensionScores := Score(fields, cfg)
	dimJSON, err := json.Marshal(dimensionScores)
	if err != nil {
		return nil, nil, fmt.Errorf("encode dimension scores: %w", err)
	}

	score := &storage.WalletScore{
		User:            address,
		AsOf:            asOf,
		Score:           decimal.NewFromFloat(overall).Round(2),
		Level:           Tier(overall, cfg.Levels),
		DimensionScores: string(dimJSON),
	}

	if err := e.repo.SaveMetricAndScore(metric, score); err != nil {
		return nil, nil, err
	}
	return metric, score, nil
}

func periodResults(windows map[string]*windowStats) map[string]map[string]any {
	results := make(map[string]map[string]any, len(windows))
	for key, stats := range windows {
		pnl := stats.Pnl.InexactFloat64()
		ratio := pnl * 100
		if !stats.Volume.IsZero() {
			ratio = stats.Pnl.Div(stats.Volume).InexactFloat64() * 100
		}
		results[key] = map[string]any{
			"pnl":    pnl,
			"return": ratio,
			"trades": stats.Trades,
		}
	}
	return results
}

// fundingStats walks the funding mirror; malformed lines are skipped so one
// bad historical record cannot abort the whole computation.
func (e *Engine) fundingStats(address string) (paid, received decimal.Decimal) {
	type fundingEvent struct {
		Delta struct {
			Usdc string `json:"usdc"`
		} `json:"delta"`
	}
	err := e.cache.EachEvent(address, "funding", func(raw []byte) error {
		var event fundingEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil
		}
		amount, err := decimal.NewFromString(event.Delta.Usdc)
		if err != nil {
			return nil
		}
		if amount.IsNegative() {
			paid = paid.Add(amount.Neg())
		} else {
			received = received.Add(amount)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("read funding mirror", "address", address, "error", err)
	}
	return paid, received
}

func (e *Engine) feeRates(address string) map[string]float64 {
	var payload struct {
		UserCrossRate string `json:"userCrossRate"`
		UserAddRate   string `json:"userAddRate"`
	}
	ok, err := e.cache.ReadJSON(address, "fees.json", &payload)
	if err != nil {
		e.logger.Error("read fees mirror", "address", address, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	rates := make(map[string]float64, 2)
	if v, err := decimal.NewFromString(payload.UserCrossRate); err == nil {
		rates["effective_fee_cross"] = v.InexactFloat64()
	}
	if v, err := decimal.NewFromString(payload.UserAddRate); err == nil {
		rates["effective_fee_add"] = v.InexactFloat64()
	}
	return rates
}

func (e *Engine) portfolioFields(address string) map[string]float64 {
	fields := make(map[string]float64)
	for period, suffix := range map[string]string{
		"week":    "7d",
		"month":   "30d",
		"allTime": "all",
	} {
		snapshot, err := e.repo.PortfolioSnapshotByPeriod(address, period)
		if err != nil {
			e.logger.Error("load portfolio snapshot", "address", address, "period", period, "error", err)
			continue
		}
		if snapshot == nil {
			continue
		}
		fields["portfolio_return_"+suffix] = snapshot.ReturnPct.InexactFloat64()
		if suffix != "all" {
			fields["portfolio_max_drawdown_"+suffix] = snapshot.MaxDrawdownPct.InexactFloat64()
		}
	}
	return fields
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
