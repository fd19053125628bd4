package scoring

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/walletpulse/walletpulse/internal/cache"
	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/settings"
	"github.com/walletpulse/walletpulse/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.Repository) {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	repo := storage.NewRepository(db)
	log := logger.New("error")
	engine := NewEngine(repo, settings.NewStore(repo, log), cache.New(filepath.Join(t.TempDir(), "cache")), log)
	engine.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return engine, repo
}

func insertFill(t *testing.T, repo *storage.Repository, user string, timeMs int64, pnl, px, sz, fee string) {
	t.Helper()
	err := repo.DB().Write(func(tx *gorm.DB) error {
		_, err := storage.InsertFillIgnore(tx, &storage.Fill{
			User:      user,
			TimeMs:    timeMs,
			Tid:       timeMs,
			Oid:       timeMs,
			Coin:      "ETH",
			Side:      "B",
			Px:        decimal.RequireFromString(px),
			Sz:        decimal.RequireFromString(sz),
			Fee:       decimal.RequireFromString(fee),
			ClosedPnl: decimal.RequireFromString(pnl),
			RawJSON:   "{}",
		})
		return err
	})
	require.NoError(t, err)
}

func TestComputeMetricsEmptyHistory(t *testing.T) {
	engine, repo := newTestEngine(t)
	const addr = "0xempty"

	metric, score, err := engine.ComputeMetrics(addr)
	require.NoError(t, err)

	assert.Equal(t, 0, metric.Trades)
	assert.True(t, score.Score.IsZero())
	assert.Equal(t, "N/A", score.Level)

	stored, err := repo.LatestScore(addr)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "N/A", stored.Level)
}

func TestComputeMetricsSinglePass(t *testing.T) {
	engine, repo := newTestEngine(t)
	const addr = "0xtrader"

	base := int64(1_699_000_000_000)
	insertFill(t, repo, addr, base, "100", "2000", "1", "2")
	insertFill(t, repo, addr, base+1000, "-40", "2100", "0.5", "1")
	insertFill(t, repo, addr, base+2000, "20", "2050", "2", "3")

	metric, score, err := engine.ComputeMetrics(addr)
	require.NoError(t, err)

	assert.Equal(t, 3, metric.Trades)
	assert.Equal(t, 2, metric.Wins)
	assert.Equal(t, 1, metric.Losses)
	assert.Equal(t, "80", metric.TotalPnl.String())
	assert.Equal(t, "6", metric.TotalFees.String())
	assert.Equal(t, "0.6667", metric.WinRate.Round(4).String())
	assert.Equal(t, "26.67", metric.AvgPnl.Round(2).String())
	// Equity walks +100, +60, +80; peak 100, trough 60.
	assert.Equal(t, "40", metric.MaxDrawdown.String())
	// 2000*1 + 2100*0.5 + 2050*2
	assert.Equal(t, "7150", metric.Volume.String())
	assert.Equal(t, base+2000, metric.AsOf)

	assert.True(t, score.Score.GreaterThan(decimal.Zero))
	assert.NotEqual(t, "N/A", score.Level)
	assert.Equal(t, metric.ID, score.MetricsID)
}

func TestComputeMetricsDeterministic(t *testing.T) {
	engine, repo := newTestEngine(t)
	const addr = "0xrepeat"

	base := int64(1_699_000_000_000)
	insertFill(t, repo, addr, base, "55.5", "3000", "1.5", "0.9")
	insertFill(t, repo, addr, base+500, "-12.25", "3100", "0.25", "0.4")

	_, first, err := engine.ComputeMetrics(addr)
	require.NoError(t, err)
	_, second, err := engine.ComputeMetrics(addr)
	require.NoError(t, err)

	assert.True(t, first.Score.Equal(second.Score),
		"same history and config must produce the same score: %s vs %s", first.Score, second.Score)
	assert.Equal(t, first.Level, second.Level)
	assert.Equal(t, first.DimensionScores, second.DimensionScores)
}

func TestComputeMetricsAppendsSnapshots(t *testing.T) {
	engine, repo := newTestEngine(t)
	const addr = "0xappend"

	base := int64(1_699_000_000_000)
	insertFill(t, repo, addr, base, "10", "100", "1", "0.1")
	_, _, err := engine.ComputeMetrics(addr)
	require.NoError(t, err)

	insertFill(t, repo, addr, base+1000, "30", "100", "1", "0.1")
	_, _, err = engine.ComputeMetrics(addr)
	require.NoError(t, err)

	var count int64
	require.NoError(t, repo.DB().Read().Model(&storage.WalletMetric{}).
		Where("user = ?", addr).Count(&count).Error)
	assert.EqualValues(t, 2, count, "snapshots are append-only")

	latest, err := repo.LatestMetric(addr)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Trades)
}
