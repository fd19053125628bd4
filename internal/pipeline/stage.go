package pipeline

import (
	"fmt"
	"time"

	"github.com/walletpulse/walletpulse/internal/settings"
	"github.com/walletpulse/walletpulse/internal/storage"
)

// Stage is one phase of the per-wallet pipeline.
type Stage int

const (
	StageSync Stage = iota
	StageScore
	StageAI
)

var stages = []Stage{StageSync, StageScore, StageAI}

func (s Stage) String() string {
	switch s {
	case StageSync:
		return "sync"
	case StageScore:
		return "score"
	case StageAI:
		return "ai"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

func ParseStage(name string) (Stage, error) {
	switch name {
	case "sync":
		return StageSync, nil
	case "score":
		return StageScore, nil
	case "ai":
		return StageAI, nil
	}
	return 0, fmt.Errorf("unknown stage: %s", name)
}

// successValue is the stage-specific terminal status written on success.
func (s Stage) successValue() string {
	switch s {
	case StageSync:
		return "synced"
	case StageScore:
		return "scored"
	case StageAI:
		return "completed"
	}
	return "success"
}

// aggregateLabel is written to the wallet's coarse status field on success.
// The field is last-writer-wins across stages, kept for compatibility.
func (s Stage) aggregateLabel() string {
	switch s {
	case StageSync:
		return "synced"
	case StageScore:
		return "scored"
	case StageAI:
		return "analyzed"
	}
	return "success"
}

func (s Stage) cooldown(cfg settings.Processing) time.Duration {
	days := 1
	switch s {
	case StageSync:
		days = cfg.SyncCooldownDays
	case StageScore:
		days = cfg.ScoreCooldownDays
	case StageAI:
		days = cfg.AICooldownDays
	}
	if days < 1 {
		days = 1
	}
	return time.Duration(days) * 24 * time.Hour
}

// Per-stage wallet fields behind exhaustive switches, no reflection.

func stageStatus(w *storage.Wallet, s Stage) string {
	switch s {
	case StageSync:
		return w.SyncStatus
	case StageScore:
		return w.ScoreStatus
	case StageAI:
		return w.AIStatus
	}
	return ""
}

func setStageStatus(w *storage.Wallet, s Stage, status string) {
	switch s {
	case StageSync:
		w.SyncStatus = status
	case StageScore:
		w.ScoreStatus = status
	case StageAI:
		w.AIStatus = status
	}
}

func stageNextDue(w *storage.Wallet, s Stage) *time.Time {
	switch s {
	case StageSync:
		return w.NextSyncDue
	case StageScore:
		return w.NextScoreDue
	case StageAI:
		return w.NextAIDue
	}
	return nil
}

func setStageNextDue(w *storage.Wallet, s Stage, t time.Time) {
	switch s {
	case StageSync:
		w.NextSyncDue = &t
	case StageScore:
		w.NextScoreDue = &t
	case StageAI:
		w.NextAIDue = &t
	}
}

func setStageLastSuccess(w *storage.Wallet, s Stage, t time.Time) {
	switch s {
	case StageSync:
		w.LastSyncedAt = &t
	case StageScore:
		w.LastScoreAt = &t
	case StageAI:
		w.LastAIAt = &t
	}
}
