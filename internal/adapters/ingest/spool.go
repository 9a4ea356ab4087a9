package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
	"github.com/mikey/email-guardian/internal/pipeline"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// SpoolService watches a spool directory for CSV exports and runs each one
// through the pipeline. Handled files are moved into processed/ or failed/
// so a crash mid-scan never double-processes a file it already moved.
type SpoolService struct {
	dir      string
	interval time.Duration
	source   *CSVSource
	pipe     *pipeline.Pipeline
	logger   *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSpoolService creates a spool watcher over the given directory
func NewSpoolService(dir string, interval time.Duration, source *CSVSource, pipe *pipeline.Pipeline, logger *zap.Logger) *SpoolService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SpoolService{
		dir:      dir,
		interval: interval,
		source:   source,
		pipe:     pipe,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start creates the spool layout and begins polling
func (s *SpoolService) Start() error {
	for _, dir := range []string{s.dir, filepath.Join(s.dir, processedDir), filepath.Join(s.dir, failedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating spool directory %s: %w", dir, err)
		}
	}

	s.wg.Add(1)
	go s.run()

	s.logger.Info("Spool service started",
		zap.String("dir", s.dir),
		zap.Duration("interval", s.interval))
	return nil
}

// Stop halts polling and waits for an in-flight scan to finish
func (s *SpoolService) Stop() error {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Spool service stopped")
	return nil
}

func (s *SpoolService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// One scan immediately so a restart drains the backlog without
	// waiting a full interval.
	s.scan()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.scan()
		}
	}
}

// Scan processes every pending export once. Exposed for one-shot draining
// from tooling and tests.
func (s *SpoolService) Scan() {
	s.scan()
}

func (s *SpoolService) scan() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("Spool scan failed", zap.Error(err))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}

		select {
		case <-s.stopCh:
			return
		default:
		}

		s.handleFile(filepath.Join(s.dir, entry.Name()))
	}
}

func (s *SpoolService) handleFile(path string) {
	logger := s.logger.With(zap.String("file", filepath.Base(path)))
	logger.Info("Processing export")

	inbound, err := s.source.ParseFile(path)
	if err != nil {
		logger.Error("Export rejected", zap.Error(err))
		s.move(path, failedDir, logger)
		return
	}

	summary, err := s.pipe.Process(context.Background(), inbound)
	if err != nil {
		logger.Error("Pipeline run failed", zap.Error(err))
		s.move(path, failedDir, logger)
		return
	}

	logger.Info("Export processed",
		zap.Int("emails", summary.TotalEmails),
		zap.Int("recipients", summary.TotalRecipients),
		zap.Int("excluded", summary.Excluded),
		zap.Int("flagged", summary.Flagged),
		zap.Int("cases", summary.CasesGenerated))
	s.move(path, processedDir, logger)
}

func (s *SpoolService) move(path, subdir string, logger *zap.Logger) {
	target := filepath.Join(s.dir, subdir, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		logger.Error("Moving export failed", zap.Error(err))
	}
}

var _ core.IngestService = (*SpoolService)(nil)
