package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/walletpulse/walletpulse/internal/ai"
	"github.com/walletpulse/walletpulse/internal/cache"
	"github.com/walletpulse/walletpulse/internal/config"
	"github.com/walletpulse/walletpulse/internal/etl"
	"github.com/walletpulse/walletpulse/internal/hyperliquid"
	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/pipeline"
	"github.com/walletpulse/walletpulse/internal/scheduler"
	"github.com/walletpulse/walletpulse/internal/scoring"
	"github.com/walletpulse/walletpulse/internal/settings"
	"github.com/walletpulse/walletpulse/internal/storage"
	"github.com/walletpulse/walletpulse/internal/telegram"
	"github.com/walletpulse/walletpulse/internal/web"
)

const jobQueueSize = 256

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dbPath := flag.String("db", "data/walletpulse.db", "path to SQLite database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("starting walletpulse")

	db, err := storage.NewDatabase(*dbPath)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)
	store := settings.NewStore(repo, log)
	mirror := cache.New(cfg.CacheDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stage bodies
	hlClient := hyperliquid.NewClient(cfg.Hyperliquid.BaseURL, cfg.HyperliquidTimeout(), log)
	syncer := etl.NewSyncer(repo, hlClient, mirror, log)
	engine := scoring.NewEngine(repo, store, mirror, log)
	analyzer := ai.NewAnalyzer(ai.NewDeepSeekClient(cfg, log), repo, log)

	// Pipeline
	notifier := telegram.NewNotifier(cfg, log)
	tracker := pipeline.NewTracker(repo, store, log)
	pcfg := store.Processing()
	workers := pcfg.MaxParallelSync + pcfg.MaxParallelScore
	disp := pipeline.NewDispatcher(ctx, tracker, notifier, workers, jobQueueSize, log)
	disp.Register(pipeline.StageSync, func(ctx context.Context, address string) (map[string]any, error) {
		return syncer.SyncAll(ctx, address)
	})
	disp.Register(pipeline.StageScore, func(ctx context.Context, address string) (map[string]any, error) {
		metric, score, err := engine.ComputeMetrics(address)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"metric_id": metric.ID,
			"trades":    metric.Trades,
			"score":     score.Score,
			"level":     score.Level,
		}, nil
	})
	disp.Register(pipeline.StageAI, analyzer.AnalyzeWallet)

	selector := pipeline.NewSelector(repo, log)
	sched := scheduler.New(selector, tracker, disp, store, log)
	if err := sched.Start(); err != nil {
		log.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	webServer := web.NewServer(repo, tracker, disp, store, cfg, log)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	notifier.NotifyStatus("🤖 walletpulse started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	cancel()
	disp.Stop()

	notifier.NotifyStatus("🛑 walletpulse stopped")
	log.Info("walletpulse stopped")
}
