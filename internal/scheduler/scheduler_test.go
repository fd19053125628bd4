package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletpulse/walletpulse/internal/errs"
	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/pipeline"
	"github.com/walletpulse/walletpulse/internal/settings"
	"github.com/walletpulse/walletpulse/internal/storage"
)

type stubDispatcher struct {
	enqueued []string
	err      error
}

func (s *stubDispatcher) EnqueueSync(address, requester string, force bool) (uint, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.enqueued = append(s.enqueued, address)
	return uint(len(s.enqueued)), nil
}

func newTestScheduler(t *testing.T, disp Dispatcher) (*Scheduler, *storage.Repository) {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	repo := storage.NewRepository(db)
	log := logger.New("error")
	store := settings.NewStore(repo, log)
	tracker := pipeline.NewTracker(repo, store, log)
	selector := pipeline.NewSelector(repo, log)
	return New(selector, tracker, disp, store, log), repo
}

func eligibleWallet(t *testing.T, repo *storage.Repository, address string) {
	t.Helper()
	_, err := repo.CreateWallet(address, "manual")
	require.NoError(t, err)
	err = repo.DB().Read().Model(&storage.Wallet{}).
		Where("address = ?", address).
		Updates(map[string]any{
			"sync_status": "synced",
			"created_at":  time.Now().Add(-24 * time.Hour),
		}).Error
	require.NoError(t, err)
}

func TestRunBatchCycleEnqueuesDueWallets(t *testing.T) {
	disp := &stubDispatcher{}
	sched, repo := newTestScheduler(t, disp)

	eligibleWallet(t, repo, "0xone")
	eligibleWallet(t, repo, "0xtwo")

	sched.RunBatchCycle()
	assert.ElementsMatch(t, []string{"0xone", "0xtwo"}, disp.enqueued)
}

func TestRunBatchCycleSkipsConflicts(t *testing.T) {
	disp := &stubDispatcher{err: errs.Conflictf("already running")}
	sched, repo := newTestScheduler(t, disp)

	eligibleWallet(t, repo, "0xbusy")

	// Conflicts are per-wallet noise, not a cycle failure.
	sched.RunBatchCycle()
	assert.Empty(t, disp.enqueued)
}

func TestRunBatchCycleEmptyBacklog(t *testing.T) {
	disp := &stubDispatcher{}
	sched, _ := newTestScheduler(t, disp)

	sched.RunBatchCycle()
	assert.Empty(t, disp.enqueued)
}
