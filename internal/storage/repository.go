package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle for callers that manage their own
// transactions (the pipeline state machine does).
func (r *Repository) DB() *DB {
	return r.db
}

// Wallets

func (r *Repository) CreateWallet(address, source string) (*Wallet, error) {
	wallet := &Wallet{Address: address, Source: source, Status: "imported"}
	err := r.db.Write(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(wallet).Error
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (r *Repository) GetWallet(address string) (*Wallet, error) {
	var wallet Wallet
	err := r.db.Read().Where("address = ?", address).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *Repository) ListWallets(limit, offset int) ([]Wallet, error) {
	var wallets []Wallet
	err := r.db.Read().Order("created_at DESC").Limit(limit).Offset(offset).Find(&wallets).Error
	return wallets, err
}

func (r *Repository) WalletExists(address string) (bool, error) {
	var count int64
	err := r.db.Read().Model(&Wallet{}).Where("address = ?", address).Count(&count).Error
	return count > 0, err
}

// StampFirstTrade moves the wallet's first-observed-trade time backwards
// only; later observations never push it forward.
func (r *Repository) StampFirstTrade(address string, t time.Time) error {
	return r.db.Write(func(tx *gorm.DB) error {
		var wallet Wallet
		if err := tx.Where("address = ?", address).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if wallet.FirstTradeTime != nil && !t.Before(*wallet.FirstTradeTime) {
			return nil
		}
		return tx.Model(&wallet).Update("first_trade_time", t).Error
	})
}

// Tags

func (r *Repository) TaggedAddresses(tag string) ([]string, error) {
	var addresses []string
	err := r.db.Read().
		Model(&WalletTag{}).
		Joins("JOIN tags ON tags.id = wallet_tags.tag_id").
		Where("tags.name = ?", tag).
		Pluck("wallet_tags.wallet_address", &addresses).Error
	return addresses, err
}

func (r *Repository) TagWallet(address, tag string) error {
	return r.db.Write(func(tx *gorm.DB) error {
		t := Tag{Name: tag}
		if err := tx.Where("name = ?", tag).FirstOrCreate(&t).Error; err != nil {
			return err
		}
		link := WalletTag{WalletAddress: address, TagID: t.ID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	})
}

// Config store

func (r *Repository) GetConfigValue(key string) (string, bool, error) {
	var entry ConfigEntry
	err := r.db.Read().Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

func (r *Repository) UpsertConfig(key, value, description string) error {
	return r.db.Write(func(tx *gorm.DB) error {
		entry := ConfigEntry{Key: key, Value: value, Description: description}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
		}).Create(&entry).Error
	})
}

func (r *Repository) ListConfigKeys(prefix string) ([]string, error) {
	var keys []string
	err := r.db.Read().Model(&ConfigEntry{}).
		Where("key LIKE ?", prefix+"%").
		Order("key").
		Pluck("key", &keys).Error
	return keys, err
}
