package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletpulse/walletpulse/internal/errs"
	"github.com/walletpulse/walletpulse/internal/logger"
	"github.com/walletpulse/walletpulse/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.Repository) {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	repo := storage.NewRepository(db)
	return NewStore(repo, logger.New("error")), repo
}

func TestProcessingDefaultsWhenUnset(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Equal(t, DefaultProcessing(), store.Processing())
}

func TestProcessingRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	cfg := DefaultProcessing()
	cfg.BatchSize = 17
	cfg.ScopeType = "recent"
	cfg.ScopeRecentDays = 3
	require.NoError(t, store.SaveProcessing(cfg))

	loaded := store.Processing()
	assert.Equal(t, 17, loaded.BatchSize)
	assert.Equal(t, "recent", loaded.ScopeType)
	assert.Equal(t, 3, loaded.ScopeRecentDays)
}

func TestProcessingPartialJSONKeepsDefaults(t *testing.T) {
	store, repo := newTestStore(t)

	require.NoError(t, repo.UpsertConfig("processing.settings", `{"batch_size": 5}`, ""))
	cfg := store.Processing()
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, DefaultProcessing().SyncCooldownDays, cfg.SyncCooldownDays)
}

func TestProcessingMalformedFallsBack(t *testing.T) {
	store, repo := newTestStore(t)

	require.NoError(t, repo.UpsertConfig("processing.settings", "not json", ""))
	assert.Equal(t, DefaultProcessing(), store.Processing())
}

func TestSaveProcessingValidates(t *testing.T) {
	store, _ := newTestStore(t)

	cfg := DefaultProcessing()
	cfg.BatchSize = 0
	err := store.SaveProcessing(cfg)
	assert.True(t, errs.IsValidation(err))

	cfg = DefaultProcessing()
	cfg.ScopeType = "galaxy"
	err = store.SaveProcessing(cfg)
	assert.True(t, errs.IsValidation(err))

	cfg = DefaultProcessing()
	cfg.RetryDelaySeconds = -1
	err = store.SaveProcessing(cfg)
	assert.True(t, errs.IsValidation(err))
}

func TestScoringRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	cfg := DefaultScoring()
	cfg.Dimensions[0].Weight = 42
	require.NoError(t, store.SaveScoring(cfg))

	loaded := store.Scoring()
	assert.Equal(t, 42.0, loaded.Dimensions[0].Weight)
}

func TestSaveScoringValidates(t *testing.T) {
	store, _ := newTestStore(t)

	cfg := DefaultScoring()
	cfg.Dimensions = nil
	assert.True(t, errs.IsValidation(store.SaveScoring(cfg)))

	cfg = DefaultScoring()
	cfg.Dimensions[0].Indicators[0].Min = 10
	cfg.Dimensions[0].Indicators[0].Max = 10
	assert.True(t, errs.IsValidation(store.SaveScoring(cfg)))

	cfg = DefaultScoring()
	cfg.Levels = nil
	assert.True(t, errs.IsValidation(store.SaveScoring(cfg)))
}

func TestProcessingPresets(t *testing.T) {
	store, _ := newTestStore(t)

	aggressive := DefaultProcessing()
	aggressive.BatchSize = 200
	require.NoError(t, store.SaveProcessingPreset("aggressive", aggressive))

	names, err := store.ListProcessingPresets()
	require.NoError(t, err)
	assert.Equal(t, []string{"aggressive"}, names)

	applied, err := store.ApplyProcessingPreset("aggressive")
	require.NoError(t, err)
	assert.Equal(t, 200, applied.BatchSize)
	assert.Equal(t, 200, store.Processing().BatchSize, "apply copies the preset over the active config")

	_, err = store.ApplyProcessingPreset("missing")
	assert.Error(t, err)
}
