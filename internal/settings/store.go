package settings

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/storage"
)

// Store reads and writes the runtime tunables through the db-backed config
// store. A missing or malformed entry falls back to the defaults.
type Store struct {
	repo   *storage.Repository
	logger *logger.Logger
}

func NewStore(repo *storage.Repository, log *logger.Logger) *Store {
	return &Store{repo: repo, logger: log}
}

func (s *Store) Processing() Processing {
	raw, ok, err := s.repo.GetConfigValue(processingKey)
	if err != nil {
		s.logger.Error("load processing config", "error", err)
		return DefaultProcessing()
	}
	if !ok {
		return DefaultProcessing()
	}
	cfg, err := decodeProcessing(raw)
	if err != nil {
		s.logger.Error("decode processing config, using defaults", "error", err)
		return DefaultProcessing()
	}
	return cfg
}

func (s *Store) SaveProcessing(cfg Processing) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode processing config: %w", err)
	}
	return s.repo.UpsertConfig(processingKey, string(data), "Processing pipeline settings")
}

func (s *Store) Scoring() Scoring {
	raw, ok, err := s.repo.GetConfigValue(scoringKey)
	if err != nil {
		s.logger.Error("load scoring config", "error", err)
		return DefaultScoring()
	}
	if !ok {
		return DefaultScoring()
	}
	cfg, err := decodeScoring(raw)
	if err != nil {
		s.logger.Error("decode scoring config, using defaults", "error", err)
		return DefaultScoring()
	}
	return cfg
}

func (s *Store) SaveScoring(cfg Scoring) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode scoring config: %w", err)
	}
	return s.repo.UpsertConfig(scoringKey, string(data), "Scoring module configuration")
}

// Presets ("templates") are named processing configs stored alongside the
// active one; applying a preset copies it over the active key.

func (s *Store) SaveProcessingPreset(name string, cfg Processing) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode preset: %w", err)
	}
	return s.repo.UpsertConfig(processingPreset+name, string(data), "Processing preset "+name)
}

func (s *Store) ApplyProcessingPreset(name string) (Processing, error) {
	raw, ok, err := s.repo.GetConfigValue(processingPreset + name)
	if err != nil {
		return Processing{}, err
	}
	if !ok {
		return Processing{}, fmt.Errorf("preset %q not found", name)
	}
	cfg, err := decodeProcessing(raw)
	if err != nil {
		return Processing{}, fmt.Errorf("decode preset %q: %w", name, err)
	}
	if err := s.SaveProcessing(cfg); err != nil {
		return Processing{}, err
	}
	return cfg, nil
}

func (s *Store) ListProcessingPresets() ([]string, error) {
	keys, err := s.repo.ListConfigKeys(processingPreset)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, strings.TrimPrefix(key, processingPreset))
	}
	return names, nil
}
