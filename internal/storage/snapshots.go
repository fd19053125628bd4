package storage

import (
	"errors"

	"gorm.io/gorm"
)

// Metric and score snapshots are append-only: every computation inserts a
// fresh pair, superseding (never replacing) older rows.

func (r *Repository) SaveMetricAndScore(metric *WalletMetric, score *WalletScore) error {
	return r.db.Write(func(tx *gorm.DB) error {
		if err := tx.Create(metric).Error; err != nil {
			return err
		}
		score.MetricsID = metric.ID
		return tx.Create(score).Error
	})
}

func (r *Repository) LatestMetric(user string) (*WalletMetric, error) {
	var metric WalletMetric
	err := r.db.Read().
		Where("user = ?", user).
		Order("as_of DESC, id DESC").
		First(&metric).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &metric, nil
}

func (r *Repository) LatestScore(user string) (*WalletScore, error) {
	var score WalletScore
	err := r.db.Read().
		Where("user = ?", user).
		Order("as_of DESC, id DESC").
		First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// LatestScoresByUser resolves the newest score row per address in one query.
func (r *Repository) LatestScoresByUser(addresses []string) (map[string]WalletScore, error) {
	result := make(map[string]WalletScore, len(addresses))
	if len(addresses) == 0 {
		return result, nil
	}
	var scores []WalletScore
	err := r.db.Read().Raw(`
		SELECT s.* FROM wallet_scores s
		JOIN (
			SELECT user, MAX(as_of) AS max_as_of
			FROM wallet_scores WHERE user IN ? GROUP BY user
		) latest ON s.user = latest.user AND s.as_of = latest.max_as_of
		WHERE s.user IN ?`, addresses, addresses).
		Scan(&scores).Error
	if err != nil {
		return nil, err
	}
	for _, s := range scores {
		result[s.User] = s
	}
	return result, nil
}

func (r *Repository) LatestMetricsByUser(addresses []string) (map[string]WalletMetric, error) {
	result := make(map[string]WalletMetric, len(addresses))
	if len(addresses) == 0 {
		return result, nil
	}
	var metrics []WalletMetric
	err := r.db.Read().Raw(`
		SELECT m.* FROM wallet_metrics m
		JOIN (
			SELECT user, MAX(as_of) AS max_as_of
			FROM wallet_metrics WHERE user IN ? GROUP BY user
		) latest ON m.user = latest.user AND m.as_of = latest.max_as_of
		WHERE m.user IN ?`, addresses, addresses).
		Scan(&metrics).Error
	if err != nil {
		return nil, err
	}
	for _, m := range metrics {
		result[m.User] = m
	}
	return result, nil
}

// AI analyses

func (r *Repository) SaveAnalysis(analysis *AIAnalysis) error {
	return r.db.Write(func(tx *gorm.DB) error {
		return tx.Create(analysis).Error
	})
}

func (r *Repository) LatestAnalysis(address string) (*AIAnalysis, error) {
	var analysis AIAnalysis
	err := r.db.Read().
		Where("wallet_address = ?", address).
		Order("created_at DESC, id DESC").
		First(&analysis).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}
