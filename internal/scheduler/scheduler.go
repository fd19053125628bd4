package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/pipeline"
	"github.com/walletpulse/walletpulse/internal/settings"
)

// Dispatcher is the slice of the pipeline dispatcher the scheduler drives.
type Dispatcher interface {
	EnqueueSync(address, requester string, force bool) (uint, error)
}

// Scheduler owns the periodic work: the batch cycle that feeds due wallets
// into the pipeline, and the watchdog that reclaims expired leases.
type Scheduler struct {
	cron     *cron.Cron
	selector *pipeline.Selector
	tracker  *pipeline.Tracker
	disp     Dispatcher
	settings *settings.Store
	logger   *logger.Logger
}

func New(selector *pipeline.Selector, tracker *pipeline.Tracker, disp Dispatcher, store *settings.Store, log *logger.Logger) *Scheduler {
	clog := cronLogger{log}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(clog)),
		),
		selector: selector,
		tracker:  tracker,
		disp:     disp,
		settings: store,
		logger:   log,
	}
}

// Start registers the jobs and launches the cron loop. The batch interval is
// read once; changing it in settings takes effect on restart.
func (s *Scheduler) Start() error {
	cfg := s.settings.Processing()

	batchSpec := fmt.Sprintf("@every %ds", cfg.BatchIntervalSeconds)
	if _, err := s.cron.AddFunc(batchSpec, s.RunBatchCycle); err != nil {
		return fmt.Errorf("schedule batch cycle: %w", err)
	}
	if _, err := s.cron.AddFunc("0 * * * * *", s.runWatchdog); err != nil {
		return fmt.Errorf("schedule watchdog: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"batch_interval", cfg.BatchInterval().String(), "batch_size", cfg.BatchSize)
	return nil
}

// Stop halts the cron loop; already-running jobs finish on their own.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunBatchCycle selects the due backlog under the configured scope and
// enqueues the sync stage for each wallet. Per-wallet conflicts are normal
// (another requester got there first) and skipped.
func (s *Scheduler) RunBatchCycle() {
	cfg := s.settings.Processing()
	scope := pipeline.ScopeFromConfig(cfg)

	addresses, err := s.selector.SelectForScope(scope, false)
	if err != nil {
		s.logger.Error("select batch", "scope", scope.Type, "error", err)
		return
	}
	if len(addresses) == 0 {
		s.logger.Debug("batch cycle: nothing due", "scope", scope.Type)
		return
	}

	enqueued := 0
	for _, address := range addresses {
		if _, err := s.disp.EnqueueSync(address, "scheduler", false); err != nil {
			s.logger.Debug("batch enqueue skipped", "address", address, "reason", err.Error())
			continue
		}
		enqueued++
	}
	s.logger.Info("batch cycle completed",
		"scope", scope.Type, "selected", len(addresses), "enqueued", enqueued)
}

func (s *Scheduler) runWatchdog() {
	reclaimed, err := s.tracker.ReclaimExpired()
	if err != nil {
		s.logger.Error("watchdog tick", "error", err)
		return
	}
	if reclaimed > 0 {
		s.logger.Warn("watchdog reclaimed expired attempts", "count", reclaimed)
	}
}

// cronLogger adapts the app logger to the cron.Logger contract.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}
