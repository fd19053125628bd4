package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/walletpulse/walletpulse/internal/errs"
	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/settings"
	"github.com/walletpulse/walletpulse/internal/storage"
)

// leaseTTL bounds how long an attempt may sit in running before the
// watchdog reclaims it.
const leaseTTL = 10 * time.Minute

// Tracker is the per-wallet, per-stage state machine. All transitions run
// in short write transactions against the embedded store.
type Tracker struct {
	db       *storage.DB
	repo     *storage.Repository
	settings *settings.Store
	logger   *logger.Logger
	now      func() time.Time
}

func NewTracker(repo *storage.Repository, store *settings.Store, log *logger.Logger) *Tracker {
	return &Tracker{
		db:       repo.DB(),
		repo:     repo,
		settings: store,
		logger:   log,
		now:      time.Now,
	}
}

// Prepare creates a pending log row and marks the wallet stage pending.
// It rejects with a ConflictError when the stage is already running, or when
// force is false and the stage's next-eligible time has not passed yet.
func (t *Tracker) Prepare(address string, stage Stage, payload map[string]any, scheduledBy string, force bool) (uint, error) {
	now := t.now()
	var logID uint
	err := t.db.Write(func(tx *gorm.DB) error {
		var wallet storage.Wallet
		if err := tx.Where("address = ?", address).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("wallet %s: %w", address, errs.ErrNotFound)
			}
			return err
		}

		if stageStatus(&wallet, stage) == "running" {
			return errs.Conflictf("%s stage already running for wallet %s", stage, address)
		}
		if !force {
			if due := stageNextDue(&wallet, stage); due != nil && now.Before(*due) {
				return errs.Conflictf("%s stage for wallet %s not due until %s", stage, address, due.Format(time.RFC3339))
			}
		}

		var maxAttempt int
		err := tx.Model(&storage.ProcessingLog{}).
			Where("wallet_address = ? AND stage = ?", address, stage.String()).
			Select("COALESCE(MAX(attempt), 0)").
			Scan(&maxAttempt).Error
		if err != nil {
			return err
		}

		var payloadJSON string
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("encode payload: %w", err)
			}
			payloadJSON = string(data)
		}

		log := storage.ProcessingLog{
			WalletAddress: address,
			Stage:         stage.String(),
			Status:        "pending",
			Attempt:       maxAttempt + 1,
			ScheduledBy:   scheduledBy,
			Payload:       payloadJSON,
		}
		if err := tx.Create(&log).Error; err != nil {
			return err
		}

		setStageStatus(&wallet, stage, "pending")
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}
		logID = log.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return logID, nil
}

// MarkRunning transitions an attempt to running and returns the wallet
// address it belongs to. A lease is stamped so a crashed worker can be
// reclaimed by the watchdog.
func (t *Tracker) MarkRunning(logID uint) (string, error) {
	now := t.now()
	var address string
	err := t.db.Write(func(tx *gorm.DB) error {
		log, stage, err := loadLog(tx, logID)
		if err != nil {
			return err
		}

		var wallet storage.Wallet
		werr := tx.Where("address = ?", log.WalletAddress).First(&wallet).Error
		if werr == nil {
			setStageStatus(&wallet, stage, "running")
			wallet.LastError = ""
			if err := tx.Save(&wallet).Error; err != nil {
				return err
			}
		} else if !errors.Is(werr, gorm.ErrRecordNotFound) {
			return werr
		}

		lease := now.Add(leaseTTL)
		log.Status = "running"
		log.StartedAt = &now
		log.LeaseExpiresAt = &lease
		if err := tx.Save(log).Error; err != nil {
			return err
		}
		address = log.WalletAddress
		return nil
	})
	if err != nil {
		return "", err
	}
	return address, nil
}

// MarkSuccess finishes an attempt, stamps the stage's last-success time and
// pushes its next-eligible time out by the configured cooldown.
func (t *Tracker) MarkSuccess(logID uint, result map[string]any) error {
	now := t.now()
	cfg := t.settings.Processing()
	return t.db.Write(func(tx *gorm.DB) error {
		log, stage, err := loadLog(tx, logID)
		if err != nil {
			return err
		}

		var wallet storage.Wallet
		werr := tx.Where("address = ?", log.WalletAddress).First(&wallet).Error
		if werr == nil {
			setStageStatus(&wallet, stage, stage.successValue())
			setStageLastSuccess(&wallet, stage, now)
			setStageNextDue(&wallet, stage, now.Add(stage.cooldown(cfg)))
			wallet.LastError = ""
			wallet.Status = stage.aggregateLabel()
			if err := tx.Save(&wallet).Error; err != nil {
				return err
			}
		} else if !errors.Is(werr, gorm.ErrRecordNotFound) {
			return werr
		}

		log.Status = "success"
		log.FinishedAt = &now
		log.LeaseExpiresAt = nil
		if result != nil {
			data, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			log.Result = string(data)
		}
		return tx.Save(log).Error
	})
}

// MarkFailure finishes an attempt as failed and records the error on both
// the log row and the wallet.
func (t *Tracker) MarkFailure(logID uint, errText string) error {
	now := t.now()
	return t.db.Write(func(tx *gorm.DB) error {
		log, stage, err := loadLog(tx, logID)
		if err != nil {
			return err
		}

		var wallet storage.Wallet
		werr := tx.Where("address = ?", log.WalletAddress).First(&wallet).Error
		if werr == nil {
			setStageStatus(&wallet, stage, "failed")
			wallet.LastError = errText
			wallet.Status = "failed"
			if err := tx.Save(&wallet).Error; err != nil {
				return err
			}
		} else if !errors.Is(werr, gorm.ErrRecordNotFound) {
			return werr
		}

		log.Status = "failed"
		log.Error = errText
		log.FinishedAt = &now
		log.LeaseExpiresAt = nil
		return tx.Save(log).Error
	})
}

// ReclaimExpired fails every running attempt whose lease has lapsed.
// Returns the number of reclaimed attempts.
func (t *Tracker) ReclaimExpired() (int, error) {
	expired, err := t.repo.ExpiredRunningLogs(t.now())
	if err != nil {
		return 0, err
	}
	reclaimed := 0
	for _, log := range expired {
		errText := fmt.Sprintf("lease expired after %s, worker presumed dead", leaseTTL)
		if err := t.MarkFailure(log.ID, errText); err != nil {
			t.logger.Error("reclaim expired attempt", "log_id", log.ID, "error", err)
			continue
		}
		t.logger.Warn("reclaimed expired attempt",
			"log_id", log.ID, "address", log.WalletAddress, "stage", log.Stage)
		reclaimed++
	}
	return reclaimed, nil
}

func loadLog(tx *gorm.DB, logID uint) (*storage.ProcessingLog, Stage, error) {
	var log storage.ProcessingLog
	if err := tx.First(&log, logID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("processing log %d: %w", logID, errs.ErrNotFound)
		}
		return nil, 0, err
	}
	stage, err := ParseStage(log.Stage)
	if err != nil {
		return nil, 0, err
	}
	return &log, stage, nil
}

// Snapshot is the operator-facing view of one wallet's pipeline state.
type Snapshot struct {
	Address      string     `json:"address"`
	Status       string     `json:"status"`
	SyncStatus   string     `json:"sync_status"`
	ScoreStatus  string     `json:"score_status"`
	AIStatus     string     `json:"ai_status"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	LastScoreAt  *time.Time `json:"last_score_at"`
	LastAIAt     *time.Time `json:"last_ai_at"`
	NextSyncDue  *time.Time `json:"next_sync_due"`
	NextScoreDue *time.Time `json:"next_score_due"`
	NextAIDue    *time.Time `json:"next_ai_due"`
	LastError    string     `json:"last_error"`
}

func (t *Tracker) WalletSnapshot(address string) (*Snapshot, error) {
	wallet, err := t.repo.GetWallet(address)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("wallet %s: %w", address, errs.ErrNotFound)
		}
		return nil, err
	}
	return &Snapshot{
		Address:      wallet.Address,
		Status:       wallet.Status,
		SyncStatus:   wallet.SyncStatus,
		ScoreStatus:  wallet.ScoreStatus,
		AIStatus:     wallet.AIStatus,
		LastSyncedAt: wallet.LastSyncedAt,
		LastScoreAt:  wallet.LastScoreAt,
		LastAIAt:     wallet.LastAIAt,
		NextSyncDue:  wallet.NextSyncDue,
		NextScoreDue: wallet.NextScoreDue,
		NextAIDue:    wallet.NextAIDue,
		LastError:    wallet.LastError,
	}, nil
}

// Summary aggregates stage counts and backlog for the operations view.
type Summary struct {
	Stages         map[string]map[string]int64 `json:"stages"`
	PendingRescore int64                       `json:"pending_rescore"`
	EstimatedBatch time.Duration               `json:"estimated_batch_duration"`
	FailedLogs     []storage.ProcessingLog     `json:"failed_logs"`
}

func (t *Tracker) Summary(failedLimit int) (*Summary, error) {
	counts, err := t.repo.StageStatusCounts()
	if err != nil {
		return nil, err
	}
	pending, err := t.repo.PendingRescoreCount(t.now())
	if err != nil {
		return nil, err
	}
	failed, err := t.repo.RecentFailedLogs(failedLimit)
	if err != nil {
		return nil, err
	}

	cfg := t.settings.Processing()
	batches := (pending + int64(cfg.BatchSize) - 1) / int64(cfg.BatchSize)
	return &Summary{
		Stages:         counts,
		PendingRescore: pending,
		EstimatedBatch: time.Duration(batches) * cfg.BatchInterval(),
		FailedLogs:     failed,
	}, nil
}
