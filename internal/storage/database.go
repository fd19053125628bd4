package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	writeRetries = 5
	retryBackoff = 50 * time.Millisecond
)

// DB wraps gorm with a single-writer mutex: concurrent workers funnel write
// transactions through one lock to avoid sqlite contention, reads go direct.
type DB struct {
	gorm    *gorm.DB
	writeMu sync.Mutex
}

func NewDatabase(dbPath string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	// Enable WAL mode for concurrent read/write
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := db.AutoMigrate(
		&Wallet{}, &ProcessingLog{},
		&Fill{}, &LedgerEvent{}, &OrderHistory{}, &FetchCursor{},
		&PortfolioSeries{}, &PortfolioSnapshot{},
		&WalletMetric{}, &WalletScore{}, &AIAnalysis{},
		&ConfigEntry{}, &Tag{}, &WalletTag{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DB{gorm: db}, nil
}

// Write runs fn in a transaction under the writer lock. Transient sqlite
// lock errors are retried with linear backoff; anything else surfaces as-is.
func (d *DB) Write(fn func(tx *gorm.DB) error) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	var err error
	for attempt := 0; attempt < writeRetries; attempt++ {
		err = d.gorm.Transaction(fn)
		if err == nil || !isLockError(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * retryBackoff)
	}
	return fmt.Errorf("write transaction after %d retries: %w", writeRetries, err)
}

// Read returns the underlying handle for read-only queries; those bypass
// the writer lock.
func (d *DB) Read() *gorm.DB {
	return d.gorm
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
