package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/storage"
)

const analysisVersion = "v1"

// Analyzer is the body of the ai stage: it builds a profile from the latest
// metric/score snapshots, asks the model and persists the verdict.
type Analyzer struct {
	client *DeepSeekClient
	repo   *storage.Repository
	logger *logger.Logger
}

func NewAnalyzer(client *DeepSeekClient, repo *storage.Repository, log *logger.Logger) *Analyzer {
	return &Analyzer{client: client, repo: repo, logger: log}
}

// AnalyzeWallet runs one analysis. A wallet without a metric snapshot, or
// with an empty history, gets a canned verdict without a model call.
func (a *Analyzer) AnalyzeWallet(ctx context.Context, address string) (map[string]any, error) {
	metric, err := a.repo.LatestMetric(address)
	if err != nil {
		return nil, fmt.Errorf("load latest metric: %w", err)
	}

	if metric == nil || metric.Trades == 0 {
		analysis := &storage.AIAnalysis{
			WalletAddress: address,
			Version:       analysisVersion,
			Style:         "no data",
			Suggestion:    "No trading history available yet; sync and score the wallet first.",
		}
		if err := a.repo.SaveAnalysis(analysis); err != nil {
			return nil, fmt.Errorf("save analysis: %w", err)
		}
		return map[string]any{"analysis_id": analysis.ID, "skipped": "no trading history"}, nil
	}

	score, err := a.repo.LatestScore(address)
	if err != nil {
		return nil, fmt.Errorf("load latest score: %w", err)
	}

	profile := buildProfile(address, metric, score)

	verdict, rawResponse, err := a.client.Analyze(ctx, profile)
	if err != nil {
		return nil, err
	}

	strengths, _ := json.Marshal(verdict.Strengths)
	risks, _ := json.Marshal(verdict.Risks)
	analysis := &storage.AIAnalysis{
		WalletAddress: address,
		Version:       analysisVersion,
		Score:         verdict.Score,
		Style:         verdict.Style,
		Strengths:     string(strengths),
		Risks:         string(risks),
		Suggestion:    verdict.Suggestion,
		FollowRatio:   verdict.FollowRatio,
		RawResponse:   rawResponse,
	}
	if err := a.repo.SaveAnalysis(analysis); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	return map[string]any{
		"analysis_id":  analysis.ID,
		"style":        verdict.Style,
		"score":        verdict.Score,
		"follow_ratio": verdict.FollowRatio,
	}, nil
}

func buildProfile(address string, metric *storage.WalletMetric, score *storage.WalletScore) *WalletProfile {
	profile := &WalletProfile{
		Address:     address,
		Trades:      metric.Trades,
		Wins:        metric.Wins,
		Losses:      metric.Losses,
		WinRate:     metric.WinRate.InexactFloat64(),
		TotalPnl:    metric.TotalPnl.InexactFloat64(),
		TotalFees:   metric.TotalFees.InexactFloat64(),
		Volume:      metric.Volume.InexactFloat64(),
		MaxDrawdown: metric.MaxDrawdown.InexactFloat64(),
		AvgPnl:      metric.AvgPnl.InexactFloat64(),
		Level:       "N/A",
	}
	if score != nil {
		profile.Score = score.Score.InexactFloat64()
		profile.Level = score.Level
	}

	var details struct {
		Periods map[string]PeriodProfile `json:"periods"`
	}
	if err := json.Unmarshal([]byte(metric.Details), &details); err == nil {
		profile.Periods = details.Periods
	}
	return profile
}
