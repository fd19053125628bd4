package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/storage"
)

func newTestSelector(t *testing.T) (*Selector, *storage.Repository) {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	repo := storage.NewRepository(db)
	return NewSelector(repo, logger.New("error")), repo
}

// syncedWallet creates a wallet eligible for batch selection.
func syncedWallet(t *testing.T, repo *storage.Repository, address string, createdAt time.Time) {
	t.Helper()
	_, err := repo.CreateWallet(address, "manual")
	require.NoError(t, err)
	err = repo.DB().Read().Model(&storage.Wallet{}).
		Where("address = ?", address).
		Updates(map[string]any{"sync_status": "synced", "created_at": createdAt}).Error
	require.NoError(t, err)
}

func saveSnapshot(t *testing.T, repo *storage.Repository, address string, score, pnl int64) {
	t.Helper()
	err := repo.SaveMetricAndScore(
		&storage.WalletMetric{User: address, AsOf: 1000, TotalPnl: decimal.NewFromInt(pnl)},
		&storage.WalletScore{User: address, AsOf: 1000, Score: decimal.NewFromInt(score), Level: "A"},
	)
	require.NoError(t, err)
}

func TestSelectPriorityOrdering(t *testing.T) {
	selector, repo := newTestSelector(t)
	created := time.Now().Add(-48 * time.Hour)

	syncedWallet(t, repo, "0xtop", created)
	syncedWallet(t, repo, "0xmid", created)
	syncedWallet(t, repo, "0xlow", created)
	saveSnapshot(t, repo, "0xtop", 95, 150_000) // 3+3 = 6
	saveSnapshot(t, repo, "0xmid", 80, 150_000) // 2+3 = 5
	saveSnapshot(t, repo, "0xlow", 95, 10_000)  // 3+1 = 4

	selected, err := selector.SelectForScope(Scope{Type: "all", BatchSize: 10}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xtop", "0xmid", "0xlow"}, selected)
}

func TestSelectSnapshotlessFloor(t *testing.T) {
	selector, repo := newTestSelector(t)
	created := time.Now().Add(-48 * time.Hour)

	syncedWallet(t, repo, "0xbare", created)
	syncedWallet(t, repo, "0xweak", created.Add(time.Hour))
	saveSnapshot(t, repo, "0xweak", 10, 0) // 1+1 = 2, ties the floor

	selected, err := selector.SelectForScope(Scope{Type: "all", BatchSize: 10}, false)
	require.NoError(t, err)
	// Equal priority: earlier creation wins.
	assert.Equal(t, []string{"0xbare", "0xweak"}, selected)
}

func TestSelectExcludesRunningAndPending(t *testing.T) {
	selector, repo := newTestSelector(t)
	created := time.Now().Add(-time.Hour)

	syncedWallet(t, repo, "0xok", created)
	for addr, status := range map[string]string{"0xrun": "running", "0xpend": "pending"} {
		_, err := repo.CreateWallet(addr, "manual")
		require.NoError(t, err)
		require.NoError(t, repo.DB().Read().Model(&storage.Wallet{}).
			Where("address = ?", addr).Update("sync_status", status).Error)
	}

	selected, err := selector.SelectForScope(Scope{Type: "all", BatchSize: 10}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xok"}, selected)
}

func TestSelectHonorsDueTimes(t *testing.T) {
	selector, repo := newTestSelector(t)
	created := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	syncedWallet(t, repo, "0xcooling", created)
	require.NoError(t, repo.DB().Read().Model(&storage.Wallet{}).
		Where("address = ?", "0xcooling").Update("next_sync_due", future).Error)

	selected, err := selector.SelectForScope(Scope{Type: "all", BatchSize: 10}, false)
	require.NoError(t, err)
	assert.Empty(t, selected)

	// force ignores the due times
	selected, err = selector.SelectForScope(Scope{Type: "all", BatchSize: 10}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xcooling"}, selected)
}

func TestSelectBatchSizeCap(t *testing.T) {
	selector, repo := newTestSelector(t)
	created := time.Now().Add(-time.Hour)

	for _, addr := range []string{"0x1", "0x2", "0x3", "0x4", "0x5"} {
		syncedWallet(t, repo, addr, created)
	}

	selected, err := selector.SelectForScope(Scope{Type: "all", BatchSize: 2}, false)
	require.NoError(t, err)
	assert.Len(t, selected, 2)
}

func TestSelectRecentScope(t *testing.T) {
	selector, repo := newTestSelector(t)

	syncedWallet(t, repo, "0xnew", time.Now().Add(-24*time.Hour))
	syncedWallet(t, repo, "0xold", time.Now().Add(-30*24*time.Hour))

	selected, err := selector.SelectForScope(Scope{Type: "recent", RecentDays: 7, BatchSize: 10}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xnew"}, selected)
}

func TestSelectTagScope(t *testing.T) {
	selector, repo := newTestSelector(t)
	created := time.Now().Add(-time.Hour)

	syncedWallet(t, repo, "0xtagged", created)
	syncedWallet(t, repo, "0xplain", created)
	require.NoError(t, repo.TagWallet("0xtagged", "whale"))

	selected, err := selector.SelectForScope(Scope{Type: "tag", Tag: "whale", BatchSize: 10}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xtagged"}, selected)

	// Empty tag matches nothing.
	selected, err = selector.SelectForScope(Scope{Type: "tag", Tag: "", BatchSize: 10}, false)
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestSelectRejectsBadInputs(t *testing.T) {
	selector, _ := newTestSelector(t)

	_, err := selector.SelectForScope(Scope{Type: "all", BatchSize: 0}, false)
	assert.Error(t, err)
	_, err = selector.SelectForScope(Scope{Type: "galaxy", BatchSize: 5}, false)
	assert.Error(t, err)
}
