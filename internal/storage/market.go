package storage

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fills

func (r *Repository) FillsByUserAsc(user string) ([]Fill, error) {
	var fills []Fill
	err := r.db.Read().
		Where("user = ?", user).
		Order("time_ms ASC").
		Find(&fills).Error
	return fills, err
}

// InsertFillIgnore inserts inside an existing transaction, skipping
// duplicates; returns whether a new row was written.
func InsertFillIgnore(tx *gorm.DB, fill *Fill) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(fill)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Ledger

func (r *Repository) LedgerEventsByUser(user string) ([]LedgerEvent, error) {
	var events []LedgerEvent
	err := r.db.Read().
		Where("user = ?", user).
		Order("time_ms ASC").
		Find(&events).Error
	return events, err
}

func InsertLedgerEventIgnore(tx *gorm.DB, event *LedgerEvent) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Orders

func InsertOrderIgnore(tx *gorm.DB, order *OrderHistory) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(order)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Cursors

func (r *Repository) GetCursor(user, cursorType string) (int64, error) {
	var cursor FetchCursor
	err := r.db.Read().
		Where("user = ? AND cursor_type = ?", user, cursorType).
		First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cursor.LastTimeMs, nil
}

func UpsertCursor(tx *gorm.DB, user, cursorType string, lastTimeMs int64) error {
	cursor := FetchCursor{User: user, CursorType: cursorType, LastTimeMs: lastTimeMs}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user"}, {Name: "cursor_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_time_ms", "updated_at"}),
	}).Create(&cursor).Error
}

// Portfolio

func InsertPortfolioSeriesIgnore(tx *gorm.DB, point *PortfolioSeries) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(point)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func UpsertPortfolioSnapshot(tx *gorm.DB, snapshot *PortfolioSnapshot) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "return_pct", "max_drawdown_pct", "volume", "updated_at"}),
	}).Create(snapshot).Error
}

func (r *Repository) PortfolioSnapshotByPeriod(user, period string) (*PortfolioSnapshot, error) {
	var snapshot PortfolioSnapshot
	err := r.db.Read().
		Where("user = ? AND period = ?", user, period).
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *Repository) LatestPortfolioRefresh(user string) (*PortfolioSnapshot, error) {
	var snapshot PortfolioSnapshot
	err := r.db.Read().
		Where("user = ?", user).
		Order("updated_at DESC").
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
