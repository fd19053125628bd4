package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Address string `gorm:"uniqueIndex;size:64;not null" json:"address"`
	Status  string `gorm:"size:32;not null;default:'imported'" json:"status"`
	Source  string `gorm:"size:32;default:'manual'" json:"source"`

	SyncStatus  string `gorm:"size:16;not null;default:'pending'" json:"sync_status"`
	ScoreStatus string `gorm:"size:16;not null;default:'pending'" json:"score_status"`
	AIStatus    string `gorm:"size:16;not null;default:'pending'" json:"ai_status"`

	LastSyncedAt *time.Time `json:"last_synced_at"`
	LastScoreAt  *time.Time `json:"last_score_at"`
	LastAIAt     *time.Time `json:"last_ai_at"`

	NextSyncDue  *time.Time `json:"next_sync_due"`
	NextScoreDue *time.Time `json:"next_score_due"`
	NextAIDue    *time.Time `json:"next_ai_due"`

	LastError      string     `gorm:"type:text" json:"last_error"`
	FirstTradeTime *time.Time `json:"first_trade_time"`
}

// ProcessingLog records one execution attempt of a stage for a wallet.
type ProcessingLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	WalletAddress string `gorm:"index;size:64;not null" json:"wallet_address"`
	Stage         string `gorm:"index;size:16;not null" json:"stage"`
	Status        string `gorm:"index;size:16;not null;default:'pending'" json:"status"`
	Attempt       int    `gorm:"not null" json:"attempt"`
	ScheduledBy   string `gorm:"size:64;default:'system'" json:"scheduled_by"`

	Payload string `gorm:"type:text" json:"payload"`
	Result  string `gorm:"type:text" json:"result"`
	Error   string `gorm:"type:text" json:"error"`

	StartedAt      *time.Time `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	LeaseExpiresAt *time.Time `gorm:"index" json:"lease_expires_at"`
}

type Fill struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	User          string          `gorm:"index;size:64;not null;uniqueIndex:uq_fills,priority:1" json:"user"`
	TimeMs        int64           `gorm:"index;not null;uniqueIndex:uq_fills,priority:2" json:"time_ms"`
	Tid           int64           `gorm:"uniqueIndex:uq_fills,priority:3" json:"tid"`
	Oid           int64           `gorm:"uniqueIndex:uq_fills,priority:4" json:"oid"`
	Coin          string          `gorm:"index;size:64;not null" json:"coin"`
	Side          string          `gorm:"size:8" json:"side"`
	Dir           string          `gorm:"size:32" json:"dir"`
	Px            decimal.Decimal `gorm:"type:numeric" json:"px"`
	Sz            decimal.Decimal `gorm:"type:numeric" json:"sz"`
	Fee           decimal.Decimal `gorm:"type:numeric" json:"fee"`
	FeeToken      string          `gorm:"size:32" json:"fee_token"`
	Crossed       bool            `json:"crossed"`
	ClosedPnl     decimal.Decimal `gorm:"type:numeric" json:"closed_pnl"`
	StartPosition decimal.Decimal `gorm:"type:numeric" json:"start_position"`
	Hash          string          `gorm:"size:128" json:"hash"`
	RawJSON       string          `gorm:"type:text;not null" json:"raw_json"`
}

type LedgerEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	User      string          `gorm:"index;size:64;not null;uniqueIndex:uq_ledger,priority:1" json:"user"`
	TimeMs    int64           `gorm:"index;not null;uniqueIndex:uq_ledger,priority:2" json:"time_ms"`
	Hash      string          `gorm:"size:128;not null;uniqueIndex:uq_ledger,priority:3" json:"hash"`
	DeltaType string          `gorm:"index;size:32;not null" json:"delta_type"`
	Token     string          `gorm:"size:64" json:"token"`
	Amount    decimal.Decimal `gorm:"type:numeric" json:"amount"`
	UsdcValue decimal.Decimal `gorm:"type:numeric" json:"usdc_value"`
	Fee       decimal.Decimal `gorm:"type:numeric" json:"fee"`
	RawJSON   string          `gorm:"type:text;not null" json:"raw_json"`
}

type OrderHistory struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	User       string          `gorm:"index;size:64;not null;uniqueIndex:uq_orders,priority:1" json:"user"`
	Oid        int64           `gorm:"uniqueIndex:uq_orders,priority:2" json:"oid"`
	TimeMs     int64           `gorm:"index;not null" json:"time_ms"`
	Coin       string          `gorm:"size:64" json:"coin"`
	Side       string          `gorm:"size:8" json:"side"`
	LimitPx    decimal.Decimal `gorm:"type:numeric" json:"limit_px"`
	Sz         decimal.Decimal `gorm:"type:numeric" json:"sz"`
	OrderType  string          `gorm:"size:32" json:"order_type"`
	Tif        string          `gorm:"size:16" json:"tif"`
	ReduceOnly bool            `json:"reduce_only"`
	Status     string          `gorm:"size:32" json:"status"`
	StatusTs   int64           `json:"status_ts"`
	RawJSON    string          `gorm:"type:text;not null" json:"raw_json"`
}

// FetchCursor remembers the last upstream timestamp seen per wallet and feed.
type FetchCursor struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	User       string `gorm:"size:64;not null;uniqueIndex:uq_cursor,priority:1" json:"user"`
	CursorType string `gorm:"size:32;not null;uniqueIndex:uq_cursor,priority:2" json:"cursor_type"`
	LastTimeMs int64  `gorm:"not null;default:0" json:"last_time_ms"`
}

type PortfolioSeries struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	User         string          `gorm:"index;size:64;not null;uniqueIndex:uq_portfolio_series,priority:1" json:"user"`
	Interval     string          `gorm:"index;size:16;not null;uniqueIndex:uq_portfolio_series,priority:2" json:"interval"`
	Ts           int64           `gorm:"index;not null;uniqueIndex:uq_portfolio_series,priority:3" json:"ts"`
	AccountValue decimal.Decimal `gorm:"type:numeric" json:"account_value"`
	Pnl          decimal.Decimal `gorm:"type:numeric" json:"pnl"`
	Vlm          decimal.Decimal `gorm:"type:numeric" json:"vlm"`
}

type PortfolioSnapshot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	User           string          `gorm:"index;size:64;not null;uniqueIndex:uq_portfolio_snapshot,priority:1" json:"user"`
	Period         string          `gorm:"index;size:16;not null;uniqueIndex:uq_portfolio_snapshot,priority:2" json:"period"`
	Payload        string          `gorm:"type:text;not null" json:"payload"`
	ReturnPct      decimal.Decimal `gorm:"type:numeric" json:"return_pct"`
	MaxDrawdownPct decimal.Decimal `gorm:"type:numeric" json:"max_drawdown_pct"`
	Volume         decimal.Decimal `gorm:"type:numeric" json:"volume"`
}

// WalletMetric is an immutable point-in-time aggregate; later rows supersede
// earlier ones, nothing is overwritten.
type WalletMetric struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	User        string          `gorm:"index;size:64;not null" json:"user"`
	AsOf        int64           `gorm:"index;not null" json:"as_of"`
	Trades      int             `json:"trades"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	WinRate     decimal.Decimal `gorm:"type:numeric" json:"win_rate"`
	TotalPnl    decimal.Decimal `gorm:"type:numeric" json:"total_pnl"`
	TotalFees   decimal.Decimal `gorm:"type:numeric" json:"total_fees"`
	Volume      decimal.Decimal `gorm:"type:numeric" json:"volume"`
	MaxDrawdown decimal.Decimal `gorm:"type:numeric" json:"max_drawdown"`
	AvgPnl      decimal.Decimal `gorm:"type:numeric" json:"avg_pnl"`
	Details     string          `gorm:"type:text" json:"details"`
}

type WalletScore struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	User            string          `gorm:"index;size:64;not null" json:"user"`
	AsOf            int64           `gorm:"index;not null" json:"as_of"`
	Score           decimal.Decimal `gorm:"type:numeric" json:"score"`
	Level           string          `gorm:"size:8" json:"level"`
	MetricsID       uint            `json:"metrics_id"`
	DimensionScores string          `gorm:"type:text" json:"dimension_scores"`
}

type AIAnalysis struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	WalletAddress string  `gorm:"index;size:64;not null" json:"wallet_address"`
	Version       string  `gorm:"size:16;default:'v1'" json:"version"`
	Score         float64 `json:"score"`
	Style         string  `gorm:"size:64" json:"style"`
	Strengths     string  `gorm:"type:text" json:"strengths"`
	Risks         string  `gorm:"type:text" json:"risks"`
	Suggestion    string  `gorm:"type:text" json:"suggestion"`
	FollowRatio   float64 `json:"follow_ratio"`
	RawResponse   string  `gorm:"type:text" json:"raw_response"`
}

// ConfigEntry is a key/value store for runtime tunables.
type ConfigEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	Key         string `gorm:"uniqueIndex;size:128;not null" json:"key"`
	Value       string `gorm:"type:text;not null" json:"value"`
	Description string `gorm:"type:text" json:"description"`
}

type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Name string `gorm:"uniqueIndex;size:64;not null" json:"name"`
}

type WalletTag struct {
	ID uint `gorm:"primarykey" json:"id"`

	WalletAddress string `gorm:"index;size:64;not null;uniqueIndex:uq_wallet_tag,priority:1" json:"wallet_address"`
	TagID         uint   `gorm:"not null;uniqueIndex:uq_wallet_tag,priority:2" json:"tag_id"`
}
