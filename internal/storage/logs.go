package storage

import (
	"time"
)

type LogFilter struct {
	Address string
	Stage   string
	Status  string
	Limit   int
	Offset  int
}

func (r *Repository) ListLogs(f LogFilter) ([]ProcessingLog, error) {
	limit := f.Limit
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := r.db.Read().Order("created_at DESC").Limit(limit).Offset(offset)
	if f.Address != "" {
		q = q.Where("wallet_address = ?", f.Address)
	}
	if f.Stage != "" {
		q = q.Where("stage = ?", f.Stage)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var logs []ProcessingLog
	err := q.Find(&logs).Error
	return logs, err
}

func (r *Repository) RecentFailedLogs(limit int) ([]ProcessingLog, error) {
	var logs []ProcessingLog
	err := r.db.Read().
		Where("status = ?", "failed").
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// ExpiredRunningLogs returns attempts stuck in running past their lease.
func (r *Repository) ExpiredRunningLogs(now time.Time) ([]ProcessingLog, error) {
	var logs []ProcessingLog
	err := r.db.Read().
		Where("status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?", "running", now).
		Find(&logs).Error
	return logs, err
}

func (r *Repository) StageStatusCounts() (map[string]map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	counts := make(map[string]map[string]int64, 3)
	for stage, column := range map[string]string{
		"sync":  "sync_status",
		"score": "score_status",
		"ai":    "ai_status",
	} {
		var rows []row
		err := r.db.Read().Model(&Wallet{}).
			Select(column + " AS status, COUNT(*) AS count").
			Group(column).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		byStatus := make(map[string]int64, len(rows))
		for _, rw := range rows {
			key := rw.Status
			if key == "" {
				key = "unknown"
			}
			byStatus[key] = rw.Count
		}
		counts[stage] = byStatus
	}
	return counts, nil
}

func (r *Repository) PendingRescoreCount(now time.Time) (int64, error) {
	var count int64
	err := r.db.Read().Model(&Wallet{}).
		Where("next_score_due IS NOT NULL AND next_score_due <= ?", now).
		Count(&count).Error
	return count, err
}
