package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/walletpulse/walletpulse/internal/config"
	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/pipeline"
	"github.com/walletpulse/walletpulse/internal/settings"
	"github.com/walletpulse/walletpulse/internal/storage"
)

type Server struct {
	httpServer *http.Server
	repo       *storage.Repository
	tracker    *pipeline.Tracker
	dispatcher *pipeline.Dispatcher
	settings   *settings.Store
	config     *config.Config
	logger     *logger.Logger
}

func NewServer(repo *storage.Repository, tracker *pipeline.Tracker, disp *pipeline.Dispatcher, store *settings.Store, cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		repo:       repo,
		tracker:    tracker,
		dispatcher: disp,
		settings:   store,
		config:     cfg,
		logger:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/wallets", s.handleImportWallet)
	mux.HandleFunc("GET /api/wallets", s.handleListWallets)
	mux.HandleFunc("GET /api/wallets/{address}", s.handleWalletDetail)
	mux.HandleFunc("POST /api/wallets/{address}/{stage}", s.handleEnqueueStage)
	mux.HandleFunc("GET /api/logs", s.handleListLogs)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/settings/processing", s.handleGetProcessing)
	mux.HandleFunc("PUT /api/settings/processing", s.handlePutProcessing)
	mux.HandleFunc("GET /api/settings/scoring", s.handleGetScoring)
	mux.HandleFunc("PUT /api/settings/scoring", s.handlePutScoring)
	mux.HandleFunc("GET /api/settings/presets", s.handleListPresets)
	mux.HandleFunc("PUT /api/settings/presets/{name}", s.handleSavePreset)
	mux.HandleFunc("POST /api/settings/presets/{name}/apply", s.handleApplyPreset)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
