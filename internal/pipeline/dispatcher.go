package pipeline

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"

	"github.com/walletpulse/walletpulse/internal/errs"
	"github.com/walletpulse/walletpulse/internal/logger"
)

// StageRunner executes the body of one stage for one wallet.
type StageRunner func(ctx context.Context, address string) (map[string]any, error)

// Notifier delivers best-effort failure notifications; implementations must
// swallow their own errors.
type Notifier interface {
	NotifyFailure(address, stage, errText string)
}

// chain declares the forward edges of the pipeline. There is no backward
// link and a failed stage does not re-enter the chain.
var chain = map[Stage]Stage{
	StageSync:  StageScore,
	StageScore: StageAI,
}

// Dispatcher guards stage requests through the state machine and hands the
// accepted ones to a bounded worker pool.
type Dispatcher struct {
	tracker  *Tracker
	pool     pond.Pool
	runners  map[Stage]StageRunner
	notifier Notifier
	logger   *logger.Logger
	ctx      context.Context
}

func NewDispatcher(ctx context.Context, tracker *Tracker, notifier Notifier, workers, queueSize int, log *logger.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		tracker:  tracker,
		pool:     pond.NewPool(workers, pond.WithQueueSize(queueSize)),
		runners:  make(map[Stage]StageRunner, len(stages)),
		notifier: notifier,
		logger:   log,
		ctx:      ctx,
	}
}

// Register binds a stage to its execution body. Every stage must be
// registered before the first enqueue.
func (d *Dispatcher) Register(stage Stage, runner StageRunner) {
	d.runners[stage] = runner
}

// EnqueueSync schedules the sync stage. Conflicts (already running, not yet
// due) propagate to the caller.
func (d *Dispatcher) EnqueueSync(address, requester string, force bool) (uint, error) {
	return d.enqueue(StageSync, address, requester, force)
}

// EnqueueScore schedules the score stage. Conflicts are swallowed and
// reported as job id 0 so batch callers can skip without raising.
func (d *Dispatcher) EnqueueScore(address, requester string, force bool) (uint, error) {
	id, err := d.enqueue(StageScore, address, requester, force)
	if errs.IsConflict(err) {
		return 0, nil
	}
	return id, err
}

// EnqueueAi schedules the ai stage with the same conflict contract as
// EnqueueScore.
func (d *Dispatcher) EnqueueAi(address, requester string, force bool) (uint, error) {
	id, err := d.enqueue(StageAI, address, requester, force)
	if errs.IsConflict(err) {
		return 0, nil
	}
	return id, err
}

func (d *Dispatcher) enqueue(stage Stage, address, requester string, force bool) (uint, error) {
	if _, ok := d.runners[stage]; !ok {
		return 0, fmt.Errorf("no runner registered for stage %s", stage)
	}

	logID, err := d.tracker.Prepare(address, stage, nil, requester, force)
	if err != nil {
		return 0, err
	}

	d.pool.Submit(func() {
		d.runJob(logID, stage)
	})

	d.logger.Info("stage enqueued",
		"address", address, "stage", stage.String(), "log_id", logID, "requester", requester)
	return logID, nil
}

func (d *Dispatcher) runJob(logID uint, stage Stage) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in stage job", "log_id", logID, "stage", stage.String(), "panic", fmt.Sprint(r))
			if err := d.tracker.MarkFailure(logID, fmt.Sprintf("panic: %v", r)); err != nil {
				d.logger.Error("mark panicked job failed", "log_id", logID, "error", err)
			}
		}
	}()

	address, err := d.tracker.MarkRunning(logID)
	if err != nil {
		d.logger.Error("mark running", "log_id", logID, "error", err)
		return
	}

	result, err := d.runners[stage](d.ctx, address)
	if err != nil {
		d.logger.Error("stage failed",
			"address", address, "stage", stage.String(), "log_id", logID, "error", err)
		if merr := d.tracker.MarkFailure(logID, err.Error()); merr != nil {
			d.logger.Error("mark failure", "log_id", logID, "error", merr)
		}
		if d.notifier != nil {
			d.notifier.NotifyFailure(address, stage.String(), err.Error())
		}
		return
	}

	if err := d.tracker.MarkSuccess(logID, result); err != nil {
		d.logger.Error("mark success", "log_id", logID, "error", err)
		return
	}
	d.logger.Info("stage completed", "address", address, "stage", stage.String(), "log_id", logID)

	d.followChain(stage, address)
}

// followChain enqueues the declared next stage after a success. Conflicts
// are expected (the next stage may be cooling down) and only logged.
func (d *Dispatcher) followChain(stage Stage, address string) {
	next, ok := chain[stage]
	if !ok {
		return
	}
	id, err := d.enqueue(next, address, "pipeline", false)
	switch {
	case errs.IsConflict(err):
		d.logger.Info("chained stage skipped",
			"address", address, "stage", next.String(), "reason", err.Error())
	case err != nil:
		d.logger.Error("chain enqueue", "address", address, "stage", next.String(), "error", err)
	default:
		d.logger.Info("chained stage enqueued",
			"address", address, "stage", next.String(), "log_id", id)
	}
}

// Stop drains the pool, waiting for in-flight jobs.
func (d *Dispatcher) Stop() {
	d.pool.StopAndWait()
}
