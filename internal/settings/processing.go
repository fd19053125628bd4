package settings

import (
	"encoding/json"
	"time"

	"github.com/walletpulse/walletpulse/internal/errs"
)

const (
	processingKey    = "processing.settings"
	processingPreset = "processing.preset."
)

// Processing holds the runtime tunables of the pipeline.
type Processing struct {
	MaxParallelSync      int     `json:"max_parallel_sync"`
	MaxParallelScore     int     `json:"max_parallel_score"`
	RetryLimit           int     `json:"retry_limit"`
	RetryDelaySeconds    int     `json:"retry_delay_seconds"`
	RescorePeriodDays    int     `json:"rescore_period_days"`
	RescoreTriggerPct    float64 `json:"rescore_trigger_pct"`
	AIPeriodDays         int     `json:"ai_period_days"`
	ScopeType            string  `json:"scope_type"`
	ScopeRecentDays      int     `json:"scope_recent_days"`
	ScopeTag             string  `json:"scope_tag"`
	BatchSize            int     `json:"batch_size"`
	BatchIntervalSeconds int     `json:"batch_interval_seconds"`
	RequestRatePerMin    int     `json:"request_rate_per_min"`
	SyncCooldownDays     int     `json:"sync_cooldown_days"`
	ScoreCooldownDays    int     `json:"score_cooldown_days"`
	AICooldownDays       int     `json:"ai_cooldown_days"`
}

func DefaultProcessing() Processing {
	return Processing{
		MaxParallelSync:      3,
		MaxParallelScore:     3,
		RetryLimit:           3,
		RetryDelaySeconds:    600,
		RescorePeriodDays:    7,
		RescoreTriggerPct:    5.0,
		AIPeriodDays:         30,
		ScopeType:            "all",
		ScopeRecentDays:      7,
		ScopeTag:             "",
		BatchSize:            50,
		BatchIntervalSeconds: 3600,
		RequestRatePerMin:    60,
		SyncCooldownDays:     1,
		ScoreCooldownDays:    7,
		AICooldownDays:       30,
	}
}

func (p Processing) Validate() error {
	positive := map[string]int{
		"max_parallel_sync":      p.MaxParallelSync,
		"max_parallel_score":     p.MaxParallelScore,
		"retry_limit":            p.RetryLimit,
		"rescore_period_days":    p.RescorePeriodDays,
		"ai_period_days":         p.AIPeriodDays,
		"batch_size":             p.BatchSize,
		"batch_interval_seconds": p.BatchIntervalSeconds,
		"request_rate_per_min":   p.RequestRatePerMin,
		"sync_cooldown_days":     p.SyncCooldownDays,
		"score_cooldown_days":    p.ScoreCooldownDays,
		"ai_cooldown_days":       p.AICooldownDays,
	}
	for key, value := range positive {
		if value <= 0 {
			return errs.Invalidf("%s must be a positive integer", key)
		}
	}
	if p.RetryDelaySeconds < 0 {
		return errs.Invalidf("retry_delay_seconds must be a non-negative integer")
	}
	if p.RescoreTriggerPct < 0 {
		return errs.Invalidf("rescore_trigger_pct must be >= 0")
	}
	if p.ScopeRecentDays <= 0 {
		return errs.Invalidf("scope_recent_days must be a positive integer")
	}
	switch p.ScopeType {
	case "all", "today", "recent", "tag":
	default:
		return errs.Invalidf("scope_type must be one of all, today, recent, tag")
	}
	return nil
}

func (p Processing) BatchInterval() time.Duration {
	return time.Duration(p.BatchIntervalSeconds) * time.Second
}

func decodeProcessing(raw string) (Processing, error) {
	// Unknown keys are dropped, missing keys keep their defaults.
	cfg := DefaultProcessing()
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return Processing{}, err
	}
	return cfg, nil
}
