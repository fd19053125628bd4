package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/walletpulse/walletpulse/internal/errs"
	"github.com/walletpulse/walletpulse/internal/settings"
	"github.com/walletpulse/walletpulse/internal/storage"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsValidation(err):
		status = http.StatusBadRequest
	case errs.IsConflict(err):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Wallets

type importRequest struct {
	Address string   `json:"address"`
	Source  string   `json:"source"`
	Tags    []string `json:"tags"`
}

func (s *Server) handleImportWallet(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errs.Invalidf("invalid request body: %v", err))
		return
	}
	address := strings.ToLower(strings.TrimSpace(req.Address))
	if !strings.HasPrefix(address, "0x") || len(address) != 42 {
		s.writeError(w, errs.Invalidf("address must be a 0x-prefixed 40-hex-char wallet address"))
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}

	existed, err := s.repo.WalletExists(address)
	if err != nil {
		s.writeError(w, err)
		return
	}
	wallet, err := s.repo.CreateWallet(address, req.Source)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if existed {
		// The insert was a no-op; answer with the stored row.
		if w, err := s.repo.GetWallet(address); err == nil {
			wallet = w
		}
	}
	for _, tag := range req.Tags {
		if tag == "" {
			continue
		}
		if err := s.repo.TagWallet(address, tag); err != nil {
			s.writeError(w, err)
			return
		}
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}

	// A fresh wallet starts its first sync right away; the batch selector
	// skips pending wallets, so nothing else would pick it up.
	var jobID uint
	if !existed {
		jobID, err = s.dispatcher.EnqueueSync(address, "import", false)
		if err != nil && !errs.IsConflict(err) {
			s.writeError(w, err)
			return
		}
	}
	s.writeJSON(w, status, map[string]any{"wallet": wallet, "sync_job_id": jobID})
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	wallets, err := s.repo.ListWallets(limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"wallets": wallets, "count": len(wallets)})
}

func (s *Server) handleWalletDetail(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(r.PathValue("address"))

	snapshot, err := s.tracker.WalletSnapshot(address)
	if err != nil {
		s.writeError(w, err)
		return
	}

	detail := map[string]any{"wallet": snapshot}
	if metric, err := s.repo.LatestMetric(address); err == nil && metric != nil {
		detail["metric"] = metric
	}
	if score, err := s.repo.LatestScore(address); err == nil && score != nil {
		detail["score"] = score
	}
	if analysis, err := s.repo.LatestAnalysis(address); err == nil && analysis != nil {
		detail["analysis"] = analysis
	}
	s.writeJSON(w, http.StatusOK, detail)
}

// handleEnqueueStage schedules one stage for one wallet. The sync stage
// reports conflicts as 409; score and ai swallow them and answer job id 0.
func (s *Server) handleEnqueueStage(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(r.PathValue("address"))
	force := r.URL.Query().Get("force") == "true"

	var (
		jobID uint
		err   error
	)
	switch r.PathValue("stage") {
	case "sync":
		jobID, err = s.dispatcher.EnqueueSync(address, "api", force)
	case "score":
		jobID, err = s.dispatcher.EnqueueScore(address, "api", force)
	case "ai":
		jobID, err = s.dispatcher.EnqueueAi(address, "api", force)
	default:
		s.writeError(w, errs.Invalidf("unknown stage: %s", r.PathValue("stage")))
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID})
}

// Logs and summary

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	filter := storage.LogFilter{
		Address: strings.ToLower(r.URL.Query().Get("address")),
		Stage:   r.URL.Query().Get("stage"),
		Status:  r.URL.Query().Get("status"),
		Limit:   queryInt(r, "limit", 50),
		Offset:  queryInt(r, "offset", 0),
	}
	logs, err := s.repo.ListLogs(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.tracker.Summary(20)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// Settings

func (s *Server) handleGetProcessing(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.settings.Processing())
}

func (s *Server) handlePutProcessing(w http.ResponseWriter, r *http.Request) {
	var cfg settings.Processing
	if err := decodeOver(r, settings.DefaultProcessing(), &cfg); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.settings.SaveProcessing(cfg); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleGetScoring(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.settings.Scoring())
}

func (s *Server) handlePutScoring(w http.ResponseWriter, r *http.Request) {
	var cfg settings.Scoring
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, errs.Invalidf("invalid request body: %v", err))
		return
	}
	if err := s.settings.SaveScoring(cfg); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	names, err := s.settings.ListProcessingPresets()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"presets": names})
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var cfg settings.Processing
	if err := decodeOver(r, settings.DefaultProcessing(), &cfg); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.settings.SaveProcessingPreset(name, cfg); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cfg, err := s.settings.ApplyProcessingPreset(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

// decodeOver unmarshals the request body on top of defaults so partial
// updates keep unmentioned fields at their default values.
func decodeOver(r *http.Request, defaults settings.Processing, out *settings.Processing) error {
	*out = defaults
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errs.Invalidf("invalid request body: %v", err)
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
