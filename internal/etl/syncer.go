package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/walletpulse/walletpulse/internal/cache"
	"github.com/walletpulse/walletpulse/internal/hyperliquid"
	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/storage"
)

const (
	ledgerPageSize  = 500
	fillsPageSize   = 500
	fundingPageSize = 2000

	portfolioRefresh = 24 * time.Hour
)

// Syncer is the body of the sync stage: it pulls every upstream feed for a
// wallet through cursor pagination, mirrors the raw events and upserts the
// parsed rows.
type Syncer struct {
	repo   *storage.Repository
	client *hyperliquid.Client
	cache  *cache.Cache
	logger *logger.Logger
	now    func() time.Time
}

func NewSyncer(repo *storage.Repository, client *hyperliquid.Client, c *cache.Cache, log *logger.Logger) *Syncer {
	return &Syncer{repo: repo, client: client, cache: c, logger: log, now: time.Now}
}

// SyncAll runs every feed and reports per-feed row counts.
func (s *Syncer) SyncAll(ctx context.Context, address string) (map[string]any, error) {
	ledger, err := s.SyncLedger(ctx, address, 0)
	if err != nil {
		return nil, fmt.Errorf("sync ledger: %w", err)
	}
	fills, err := s.SyncFills(ctx, address, 0)
	if err != nil {
		return nil, fmt.Errorf("sync fills: %w", err)
	}
	funding, err := s.SyncFunding(ctx, address, 0)
	if err != nil {
		return nil, fmt.Errorf("sync funding: %w", err)
	}
	if err := s.SyncFees(ctx, address); err != nil {
		return nil, fmt.Errorf("sync fees: %w", err)
	}
	if err := s.SyncPositions(ctx, address); err != nil {
		return nil, fmt.Errorf("sync positions: %w", err)
	}
	orders, err := s.SyncOrders(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("sync orders: %w", err)
	}
	portfolio, err := s.SyncPortfolio(ctx, address, false)
	if err != nil {
		return nil, fmt.Errorf("sync portfolio: %w", err)
	}
	return map[string]any{
		"ledger":           ledger,
		"fills":            fills,
		"funding":          funding,
		"orders":           orders,
		"portfolio_points": portfolio,
	}, nil
}

// SyncLedger pages through non-funding ledger updates. A batch smaller than
// the page size means the feed is exhausted; the very first sync stops after
// one page to keep imports cheap.
func (s *Syncer) SyncLedger(ctx context.Context, user string, endTime int64) (int, error) {
	cursor, err := s.repo.GetCursor(user, "ledger")
	if err != nil {
		return 0, err
	}
	startTime := cursor + 1
	initialOnly := startTime <= 1

	newRows := 0
	var lastWritten int64
	for {
		batch, err := s.client.UserNonFundingLedgerUpdates(ctx, user, startTime, endTime)
		if err != nil {
			return newRows, err
		}
		if len(batch) == 0 {
			break
		}
		if err := s.cache.AppendEvents(user, "ledger", batch); err != nil {
			s.logger.Error("mirror ledger events", "address", user, "error", err)
		}

		err = s.repo.DB().Write(func(tx *gorm.DB) error {
			for _, raw := range batch {
				var item wireLedgerUpdate
				if err := json.Unmarshal(raw, &item); err != nil {
					continue
				}
				amount := item.Delta.Amount
				if amount == "" {
					amount = item.Delta.Usdc
				}
				usdcValue := item.Delta.UsdcValue
				if usdcValue == "" {
					usdcValue = item.Delta.Usdc
				}
				written, err := storage.InsertLedgerEventIgnore(tx, &storage.LedgerEvent{
					User:      user,
					TimeMs:    item.Time,
					Hash:      item.Hash,
					DeltaType: item.Delta.Type,
					Token:     item.Delta.Token,
					Amount:    parseDec(amount),
					UsdcValue: parseDec(usdcValue),
					Fee:       parseDec(item.Delta.Fee),
					RawJSON:   string(raw),
				})
				if err != nil {
					return err
				}
				if written {
					newRows++
				}
				if item.Time+1 > startTime {
					startTime = item.Time + 1
				}
				if item.Time > lastWritten {
					lastWritten = item.Time
				}
			}
			return nil
		})
		if err != nil {
			return newRows, err
		}

		if len(batch) < ledgerPageSize || initialOnly {
			break
		}
	}

	if newRows > 0 {
		if err := s.advanceCursor(user, "ledger", lastWritten); err != nil {
			return newRows, err
		}
		s.updateMeta(user, "last_ledger_time_ms", lastWritten)
	}
	return newRows, nil
}

// SyncFills pages through fills and stamps the wallet's first-observed-trade
// time from the earliest fill seen.
func (s *Syncer) SyncFills(ctx context.Context, user string, endTime int64) (int, error) {
	cursor, err := s.repo.GetCursor(user, "fills")
	if err != nil {
		return 0, err
	}
	startTime := cursor + 1
	initialOnly := startTime <= 1

	newRows := 0
	var lastWritten int64
	var earliest int64
	for {
		batch, err := s.client.UserFills(ctx, user, startTime, endTime)
		if err != nil {
			return newRows, err
		}
		if len(batch) == 0 {
			break
		}
		if err := s.cache.AppendEvents(user, "fills", batch); err != nil {
			s.logger.Error("mirror fills", "address", user, "error", err)
		}

		err = s.repo.DB().Write(func(tx *gorm.DB) error {
			for _, raw := range batch {
				var item wireFill
				if err := json.Unmarshal(raw, &item); err != nil {
					continue
				}
				written, err := storage.InsertFillIgnore(tx, &storage.Fill{
					User:          user,
					TimeMs:        item.Time,
					Tid:           item.Tid,
					Oid:           item.Oid,
					Coin:          item.Coin,
					Side:          item.Side,
					Dir:           item.Dir,
					Px:            parseDec(item.Px),
					Sz:            parseDec(item.Sz),
					Fee:           parseDec(item.Fee),
					FeeToken:      item.FeeToken,
					Crossed:       item.Crossed,
					ClosedPnl:     parseDec(item.ClosedPnl),
					StartPosition: parseDec(item.StartPosition),
					Hash:          item.Hash,
					RawJSON:       string(raw),
				})
				if err != nil {
					return err
				}
				if written {
					newRows++
				}
				if item.Time+1 > startTime {
					startTime = item.Time + 1
				}
				if item.Time > lastWritten {
					lastWritten = item.Time
				}
				if earliest == 0 || item.Time < earliest {
					earliest = item.Time
				}
			}
			return nil
		})
		if err != nil {
			return newRows, err
		}

		if len(batch) < fillsPageSize || initialOnly {
			break
		}
	}

	if newRows > 0 {
		if err := s.advanceCursor(user, "fills", lastWritten); err != nil {
			return newRows, err
		}
		s.updateMeta(user, "last_fill_time_ms", lastWritten)
		if earliest > 0 {
			if err := s.repo.StampFirstTrade(user, time.UnixMilli(earliest).UTC()); err != nil {
				s.logger.Error("stamp first trade", "address", user, "error", err)
			}
		}
	}
	return newRows, nil
}

// SyncFunding mirrors funding events; they feed the scoring engine's
// funding-cost ratio and are not stored relationally.
func (s *Syncer) SyncFunding(ctx context.Context, user string, endTime int64) (int, error) {
	cursor, err := s.repo.GetCursor(user, "funding")
	if err != nil {
		return 0, err
	}
	startTime := cursor + 1
	initialOnly := startTime <= 1

	newRows := 0
	var lastWritten int64
	for {
		batch, err := s.client.UserFunding(ctx, user, startTime, endTime)
		if err != nil {
			return newRows, err
		}
		if len(batch) == 0 {
			break
		}
		if err := s.cache.AppendEvents(user, "funding", batch); err != nil {
			s.logger.Error("mirror funding events", "address", user, "error", err)
		}
		for _, raw := range batch {
			var item wireFundingUpdate
			if err := json.Unmarshal(raw, &item); err != nil {
				continue
			}
			if item.Time+1 > startTime {
				startTime = item.Time + 1
			}
			if item.Time > lastWritten {
				lastWritten = item.Time
			}
			newRows++
		}
		if len(batch) < fundingPageSize || initialOnly {
			break
		}
	}

	if newRows > 0 {
		if err := s.advanceCursor(user, "funding", lastWritten); err != nil {
			return newRows, err
		}
		s.updateMeta(user, "last_funding_time_ms", lastWritten)
	}
	return newRows, nil
}

// SyncPositions mirrors the current clearinghouse state. Positions are
// point-in-time, not history, so the document is replaced wholesale.
func (s *Syncer) SyncPositions(ctx context.Context, user string) error {
	payload, err := s.client.ClearinghouseState(ctx, user)
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("parse clearinghouse state: %w", err)
	}
	if err := s.cache.WriteJSON(user, "positions.json", decoded); err != nil {
		return err
	}
	s.updateMeta(user, "last_position_sync_ms", s.now().UnixMilli())
	return nil
}

func (s *Syncer) SyncFees(ctx context.Context, user string) error {
	payload, err := s.client.UserFees(ctx, user)
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("parse fees payload: %w", err)
	}
	if err := s.cache.WriteJSON(user, "fees.json", decoded); err != nil {
		return err
	}
	s.updateMeta(user, "last_fee_sync_ms", s.now().UnixMilli())
	return nil
}

// SyncOrders stores the historical-orders feed; the API returns the most
// recent window in one shot, so only the cursor filter is applied.
func (s *Syncer) SyncOrders(ctx context.Context, user string) (int, error) {
	cursor, err := s.repo.GetCursor(user, "orders")
	if err != nil {
		return 0, err
	}
	startTime := cursor + 1

	batch, err := s.client.HistoricalOrders(ctx, user)
	if err != nil {
		return 0, err
	}

	type wireOrder struct {
		Order struct {
			Coin      string `json:"coin"`
			Side      string `json:"side"`
			LimitPx   string `json:"limitPx"`
			Sz        string `json:"sz"`
			OrderType string `json:"orderType"`
			Tif       string `json:"tif"`
			Reduce    bool   `json:"reduceOnly"`
			Oid       int64  `json:"oid"`
			Timestamp int64  `json:"timestamp"`
		} `json:"order"`
		Status          string `json:"status"`
		StatusTimestamp int64  `json:"statusTimestamp"`
	}

	newRows := 0
	err = s.repo.DB().Write(func(tx *gorm.DB) error {
		for _, raw := range batch {
			var item wireOrder
			if err := json.Unmarshal(raw, &item); err != nil {
				continue
			}
			if item.Order.Timestamp < startTime {
				continue
			}
			written, err := storage.InsertOrderIgnore(tx, &storage.OrderHistory{
				User:       user,
				Oid:        item.Order.Oid,
				TimeMs:     item.Order.Timestamp,
				Coin:       item.Order.Coin,
				Side:       item.Order.Side,
				LimitPx:    parseDec(item.Order.LimitPx),
				Sz:         parseDec(item.Order.Sz),
				OrderType:  item.Order.OrderType,
				Tif:        item.Order.Tif,
				ReduceOnly: item.Order.Reduce,
				Status:     item.Status,
				StatusTs:   item.StatusTimestamp,
				RawJSON:    string(raw),
			})
			if err != nil {
				return err
			}
			if written {
				newRows++
			}
			if item.Order.Timestamp+1 > startTime {
				startTime = item.Order.Timestamp + 1
			}
		}
		return nil
	})
	if err != nil {
		return newRows, err
	}

	if newRows > 0 {
		if err := s.advanceCursor(user, "orders", startTime-1); err != nil {
			return newRows, err
		}
	}
	return newRows, nil
}

func (s *Syncer) advanceCursor(user, cursorType string, lastTimeMs int64) error {
	return s.repo.DB().Write(func(tx *gorm.DB) error {
		return storage.UpsertCursor(tx, user, cursorType, lastTimeMs)
	})
}

func (s *Syncer) updateMeta(user, key string, value int64) {
	if err := s.cache.UpdateMetadata(user, map[string]any{key: value}); err != nil {
		s.logger.Error("update cache metadata", "address", user, "error", err)
	}
}
