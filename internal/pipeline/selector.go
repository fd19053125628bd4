package pipeline

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/walletpulse/walletpulse/internal/errs"
	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/settings"
	"github.com/walletpulse/walletpulse/internal/storage"
)

var (
	scoreHighCut = decimal.NewFromInt(90)
	scoreMidCut  = decimal.NewFromInt(75)
	pnlHighCut   = decimal.NewFromInt(100000)
	pnlMidCut    = decimal.NewFromInt(20000)
)

// Scope selects which wallets a batch cycle may touch.
type Scope struct {
	Type       string
	RecentDays int
	Tag        string
	BatchSize  int
}

// Selector ranks the backlog and returns the next batch of addresses.
type Selector struct {
	repo   *storage.Repository
	logger *logger.Logger
	now    func() time.Time
}

func NewSelector(repo *storage.Repository, log *logger.Logger) *Selector {
	return &Selector{repo: repo, logger: log, now: time.Now}
}

// ScopeFromConfig builds the scope rule out of the processing settings.
func ScopeFromConfig(cfg settings.Processing) Scope {
	return Scope{
		Type:       cfg.ScopeType,
		RecentDays: cfg.ScopeRecentDays,
		Tag:        cfg.ScopeTag,
		BatchSize:  cfg.BatchSize,
	}
}

// SelectForScope filters, ranks and truncates the backlog. Wallets whose
// sync stage is running or pending are never returned; unless force, both
// the sync and score due-times must have passed.
func (s *Selector) SelectForScope(scope Scope, force bool) ([]string, error) {
	if scope.BatchSize <= 0 {
		return nil, errs.Invalidf("batch_size must be a positive integer")
	}
	now := s.now()

	q := s.repo.DB().Read().Model(&storage.Wallet{}).
		Where("sync_status NOT IN ?", []string{"running", "pending"})
	if !force {
		q = q.Where("(next_sync_due IS NULL OR next_sync_due <= ?)", now).
			Where("(next_score_due IS NULL OR next_score_due <= ?)", now)
	}

	switch scope.Type {
	case "all":
	case "today":
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		q = q.Where("created_at >= ?", today)
	case "recent":
		days := scope.RecentDays
		if days <= 0 {
			return nil, errs.Invalidf("scope_recent_days must be a positive integer")
		}
		q = q.Where("created_at >= ?", now.AddDate(0, 0, -days))
	case "tag":
		// An empty tag matches nothing, by contract.
		if scope.Tag == "" {
			return nil, nil
		}
		tagged, err := s.repo.TaggedAddresses(scope.Tag)
		if err != nil {
			return nil, err
		}
		if len(tagged) == 0 {
			return nil, nil
		}
		q = q.Where("address IN ?", tagged)
	default:
		return nil, errs.Invalidf("unknown scope type: %s", scope.Type)
	}

	var candidates []storage.Wallet
	if err := q.Find(&candidates).Error; err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	addresses := make([]string, len(candidates))
	for i, w := range candidates {
		addresses[i] = w.Address
	}
	scores, err := s.repo.LatestScoresByUser(addresses)
	if err != nil {
		return nil, err
	}
	metrics, err := s.repo.LatestMetricsByUser(addresses)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		wallet   storage.Wallet
		priority int
	}
	rankedList := make([]ranked, len(candidates))
	for i, w := range candidates {
		priority := 2 // floor for wallets without any snapshot
		if score, ok := scores[w.Address]; ok {
			p := scorePriority(score.Score)
			if metric, ok := metrics[w.Address]; ok {
				p += pnlPriority(metric.TotalPnl)
			} else {
				p++
			}
			priority = p
		} else if metric, ok := metrics[w.Address]; ok {
			priority = 1 + pnlPriority(metric.TotalPnl)
		}
		rankedList[i] = ranked{wallet: w, priority: priority}
	}

	sort.SliceStable(rankedList, func(i, j int) bool {
		a, b := rankedList[i], rankedList[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		ad, bd := dueOrZero(a.wallet.NextScoreDue), dueOrZero(b.wallet.NextScoreDue)
		if !ad.Equal(bd) {
			return ad.Before(bd)
		}
		return a.wallet.CreatedAt.Before(b.wallet.CreatedAt)
	})

	limit := scope.BatchSize
	if limit > len(rankedList) {
		limit = len(rankedList)
	}
	selected := make([]string, 0, limit)
	for _, r := range rankedList[:limit] {
		selected = append(selected, r.wallet.Address)
	}
	return selected, nil
}

func scorePriority(score decimal.Decimal) int {
	switch {
	case score.GreaterThanOrEqual(scoreHighCut):
		return 3
	case score.GreaterThanOrEqual(scoreMidCut):
		return 2
	default:
		return 1
	}
}

func pnlPriority(pnl decimal.Decimal) int {
	switch {
	case pnl.GreaterThanOrEqual(pnlHighCut):
		return 3
	case pnl.GreaterThanOrEqual(pnlMidCut):
		return 2
	default:
		return 1
	}
}

func dueOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
