package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/walletpulse/walletpulse/internal/storage"
)

// SyncPortfolio refreshes the per-interval portfolio series and derives one
// snapshot row per period with its return and max drawdown. Refreshes are
// rate-limited unless forced.
func (s *Syncer) SyncPortfolio(ctx context.Context, user string, force bool) (int, error) {
	if !force {
		last, err := s.repo.LatestPortfolioRefresh(user)
		if err != nil {
			return 0, err
		}
		if last != nil && s.now().Sub(last.UpdatedAt) < portfolioRefresh {
			return 0, nil
		}
	}

	payload, err := s.client.Portfolio(ctx, user)
	if err != nil {
		return 0, err
	}
	var periods [][2]json.RawMessage
	if err := json.Unmarshal(payload, &periods); err != nil {
		return 0, fmt.Errorf("parse portfolio payload: %w", err)
	}

	written := 0
	err = s.repo.DB().Write(func(tx *gorm.DB) error {
		for _, pair := range periods {
			var interval string
			if err := json.Unmarshal(pair[0], &interval); err != nil {
				continue
			}
			var period wirePortfolioPeriod
			if err := json.Unmarshal(pair[1], &period); err != nil {
				continue
			}

			accountValues := historyPoints(period.AccountValueHistory)
			pnlValues := historyPoints(period.PnlHistory)

			timestamps := make(map[int64]struct{}, len(accountValues)+len(pnlValues))
			for ts := range accountValues {
				timestamps[ts] = struct{}{}
			}
			for ts := range pnlValues {
				timestamps[ts] = struct{}{}
			}

			vlm := parseDec(period.Vlm)
			for ts := range timestamps {
				ok, err := storage.InsertPortfolioSeriesIgnore(tx, &storage.PortfolioSeries{
					User:         user,
					Interval:     interval,
					Ts:           ts,
					AccountValue: accountValues[ts],
					Pnl:          pnlValues[ts],
					Vlm:          vlm,
				})
				if err != nil {
					return err
				}
				if ok {
					written++
				}
			}

			returnPct, drawdownPct := portfolioMetrics(accountValues)
			err := storage.UpsertPortfolioSnapshot(tx, &storage.PortfolioSnapshot{
				User:           user,
				Period:         interval,
				Payload:        string(pair[1]),
				ReturnPct:      returnPct,
				MaxDrawdownPct: drawdownPct,
				Volume:         vlm,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return written, err
	}
	return written, nil
}

// historyPoints converts the wire's [ts, "value"] pairs; malformed entries
// are skipped.
func historyPoints(history [][2]any) map[int64]decimal.Decimal {
	points := make(map[int64]decimal.Decimal, len(history))
	for _, pair := range history {
		ts, ok := pair[0].(float64)
		if !ok {
			continue
		}
		val, ok := pair[1].(string)
		if !ok {
			continue
		}
		v, err := decimal.NewFromString(val)
		if err != nil {
			continue
		}
		points[int64(ts)] = v
	}
	return points
}

// portfolioMetrics computes total return and max drawdown over the account
// value walk; fewer than two points yields zeros.
func portfolioMetrics(values map[int64]decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if len(values) < 2 {
		return decimal.Zero, decimal.Zero
	}
	timestamps := make([]int64, 0, len(values))
	for ts := range values {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	start := values[timestamps[0]]
	end := values[timestamps[len(timestamps)-1]]

	var returnPct decimal.Decimal
	if !start.IsZero() {
		returnPct = end.Sub(start).Div(start)
	}

	peak := start
	maxDrawdown := decimal.Zero
	for _, ts := range timestamps {
		val := values[ts]
		if val.GreaterThan(peak) {
			peak = val
		}
		if peak.IsZero() {
			continue
		}
		if drawdown := val.Sub(peak).Div(peak); drawdown.LessThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}
	return returnPct, maxDrawdown
}
