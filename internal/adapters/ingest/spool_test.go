package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/adapters/storage"
	"github.com/mikey/email-guardian/internal/config"
	"github.com/mikey/email-guardian/internal/ml"
	"github.com/mikey/email-guardian/internal/pipeline"
)

func newSpoolFixture(t *testing.T) (*SpoolService, *storage.MemoryStorage, string) {
	t.Helper()

	store := storage.NewMemoryStorage()
	logger := zap.NewNop()

	pipe := pipeline.New(
		store,
		ml.NewBasicScorer(logger),
		ml.NewAdvancedScorer(logger),
		ml.NewProfileStore(30, 2000),
		ml.NewCommGraph(1000, 100),
		nil,
		nil,
		config.ScoringConfig{
			SeverityWeights:       map[string]float64{"low": 1, "medium": 2, "high": 3, "critical": 5},
			SecurityWeight:        0.3,
			KeywordWeight:         0.2,
			MLWeight:              0.25,
			AdvancedMLWeight:      0.25,
			FlagThreshold:         5,
			SecurityFlagThreshold: 3,
			CaseThreshold:         8,
			CriticalBand:          15,
			HighBand:              10,
			MediumBand:            5,
			NeutralScore:          2.5,
			DampenerFactor:        0.5,
		},
		10,
		logger,
	)

	dir := t.TempDir()
	service := NewSpoolService(dir, time.Minute, NewCSVSource(logger), pipe, logger)
	require.NoError(t, service.Start())
	t.Cleanup(func() { service.Stop() })

	return service, store, dir
}

func TestScanProcessesAndArchivesFile(t *testing.T) {
	service, store, dir := newSpoolFixture(t)

	content := exportHeader + "\n" +
		`2026-08-28 10:00:00,alice@corp.com,quarterly numbers,-,bob@corp.com,2026-08,no,-,finance,accounting,-,-,-,-` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "export.csv"), []byte(content), 0o644))

	service.Scan()

	assert.Equal(t, 1, store.EmailCount())

	_, err := os.Stat(filepath.Join(dir, processedDir, "export.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "export.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestScanMovesRejectedFileToFailed(t *testing.T) {
	service, store, dir := newSpoolFixture(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.csv"),
		[]byte("_time,sender\n2026-08-28,alice@corp.com\n"), 0o644))

	service.Scan()

	assert.Zero(t, store.EmailCount())
	_, err := os.Stat(filepath.Join(dir, failedDir, "broken.csv"))
	assert.NoError(t, err)
}

func TestScanIgnoresNonCSVFiles(t *testing.T) {
	service, store, dir := newSpoolFixture(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	service.Scan()

	assert.Zero(t, store.EmailCount())
	_, err := os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}
