package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"barbearia/internal/config"
	"barbearia/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type BackupService struct {
	config config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	l := logger.With().Str("component", "backup").Logger()
	return &BackupService{
		config: cfg,
		logger: &l,
		now:    time.Now,
	}
}

// Schedule registers retention cleanup on c.
func (s *BackupService) Schedule(c *cron.Cron) error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return nil
	}
	if _, err := c.AddFunc(s.config.Schedule, func() { s.CleanupOldBackups() }); err != nil {
		return fmt.Errorf("schedule backup cleanup %q: %w", s.config.Schedule, err)
	}
	s.logger.Info().Str("schedule", s.config.Schedule).Msg("Backup cleanup scheduled")
	return nil
}

// PerformBackup writes every document in docs to <path>/<name>_<timestamp>.json,
// all under the same timestamp.
func (s *BackupService) PerformBackup(docs map[string][]byte) ([]string, error) {
	if !s.config.Enabled || len(docs) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(s.config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	timestamp := s.now().Format("20060102_150405.000")
	paths := make([]string, 0, len(docs))
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		backupPath := filepath.Join(s.config.Path, fmt.Sprintf("%s_%s.json", name, timestamp))
		if err := os.WriteFile(backupPath, docs[name], 0o644); err != nil {
			return paths, fmt.Errorf("write backup %s: %w", name, err)
		}
		paths = append(paths, backupPath)
	}

	metrics.IncBackupTaken()
	s.logger.Debug().Str("timestamp", timestamp).Strs("paths", paths).Msg("Backup written")
	return paths, nil
}

// CleanupOldBackups removes backups older than the retention period and
// returns how many were deleted.
func (s *BackupService) CleanupOldBackups() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	files, err := os.ReadDir(s.config.Path)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return 0
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("Deleting old backup")
			if err := os.Remove(filepath.Join(s.config.Path, file.Name())); err != nil {
				s.logger.Error().Err(err).Str("file", file.Name()).Msg("Failed to delete backup")
				continue
			}
			removed++
		}
	}
	return removed
}
