package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletpulse/walletpulse/internal/errs"
	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/storage"
)

type captureNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureNotifier) NotifyFailure(address, stage, errText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, address+"/"+stage)
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func okRunner(ctx context.Context, address string) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

func newTestDispatcher(t *testing.T, notifier Notifier) (*Dispatcher, *Tracker, *storage.Repository) {
	t.Helper()
	tracker, repo := newTestTracker(t)
	disp := NewDispatcher(context.Background(), tracker, notifier, 2, 16, logger.New("error"))
	t.Cleanup(disp.Stop)
	return disp, tracker, repo
}

func waitForLogs(t *testing.T, repo *storage.Repository, address string, check func([]storage.ProcessingLog) bool) []storage.ProcessingLog {
	t.Helper()
	var logs []storage.ProcessingLog
	require.Eventually(t, func() bool {
		var err error
		logs, err = repo.ListLogs(storage.LogFilter{Address: address})
		require.NoError(t, err)
		return check(logs)
	}, 5*time.Second, 20*time.Millisecond)
	return logs
}

func TestDispatcherChainsStagesOnce(t *testing.T) {
	disp, _, repo := newTestDispatcher(t, nil)
	mustWallet(t, repo, "0xchain")

	disp.Register(StageSync, okRunner)
	disp.Register(StageScore, okRunner)
	disp.Register(StageAI, okRunner)

	_, err := disp.EnqueueSync("0xchain", "test", false)
	require.NoError(t, err)

	logs := waitForLogs(t, repo, "0xchain", func(logs []storage.ProcessingLog) bool {
		done := 0
		for _, l := range logs {
			if l.Status == "success" {
				done++
			}
		}
		return done == 3
	})

	byStage := map[string]storage.ProcessingLog{}
	for _, l := range logs {
		byStage[l.Stage] = l
	}
	require.Len(t, logs, 3, "each stage runs exactly once")
	assert.Equal(t, "test", byStage["sync"].ScheduledBy)
	assert.Equal(t, "pipeline", byStage["score"].ScheduledBy)
	assert.Equal(t, "pipeline", byStage["ai"].ScheduledBy)

	wallet, err := repo.GetWallet("0xchain")
	require.NoError(t, err)
	assert.Equal(t, "synced", wallet.SyncStatus)
	assert.Equal(t, "scored", wallet.ScoreStatus)
	assert.Equal(t, "completed", wallet.AIStatus)
}

func TestDispatcherFailureStopsChain(t *testing.T) {
	notifier := &captureNotifier{}
	disp, _, repo := newTestDispatcher(t, notifier)
	mustWallet(t, repo, "0xfail")

	disp.Register(StageSync, func(ctx context.Context, address string) (map[string]any, error) {
		return nil, errors.New("upstream down")
	})
	disp.Register(StageScore, okRunner)
	disp.Register(StageAI, okRunner)

	_, err := disp.EnqueueSync("0xfail", "test", false)
	require.NoError(t, err)

	logs := waitForLogs(t, repo, "0xfail", func(logs []storage.ProcessingLog) bool {
		return len(logs) == 1 && logs[0].Status == "failed"
	})
	assert.Equal(t, "sync", logs[0].Stage)
	assert.Equal(t, "upstream down", logs[0].Error)

	require.Eventually(t, func() bool { return notifier.count() == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestDispatcherSyncConflictPropagates(t *testing.T) {
	disp, tracker, repo := newTestDispatcher(t, nil)
	mustWallet(t, repo, "0xbusy")
	disp.Register(StageSync, okRunner)
	disp.Register(StageScore, okRunner)
	disp.Register(StageAI, okRunner)

	logID, err := tracker.Prepare("0xbusy", StageSync, nil, "manual", false)
	require.NoError(t, err)
	_, err = tracker.MarkRunning(logID)
	require.NoError(t, err)

	_, err = disp.EnqueueSync("0xbusy", "test", false)
	assert.True(t, errs.IsConflict(err))
}

func TestDispatcherScoreConflictSwallowed(t *testing.T) {
	disp, tracker, repo := newTestDispatcher(t, nil)
	mustWallet(t, repo, "0xquiet")
	disp.Register(StageScore, okRunner)

	logID, err := tracker.Prepare("0xquiet", StageScore, nil, "manual", false)
	require.NoError(t, err)
	_, err = tracker.MarkRunning(logID)
	require.NoError(t, err)

	id, err := disp.EnqueueScore("0xquiet", "test", false)
	assert.NoError(t, err, "score conflicts are swallowed")
	assert.Zero(t, id)
}

func TestDispatcherUnregisteredStage(t *testing.T) {
	disp, _, repo := newTestDispatcher(t, nil)
	mustWallet(t, repo, "0xnone")

	_, err := disp.EnqueueSync("0xnone", "test", false)
	assert.Error(t, err)
}

func TestDispatcherRecoversPanickingRunner(t *testing.T) {
	disp, _, repo := newTestDispatcher(t, nil)
	mustWallet(t, repo, "0xpanic")

	disp.Register(StageSync, func(ctx context.Context, address string) (map[string]any, error) {
		panic("boom")
	})

	_, err := disp.EnqueueSync("0xpanic", "test", false)
	require.NoError(t, err)

	logs := waitForLogs(t, repo, "0xpanic", func(logs []storage.ProcessingLog) bool {
		return len(logs) == 1 && logs[0].Status == "failed"
	})
	assert.Contains(t, logs[0].Error, "panic")
}
