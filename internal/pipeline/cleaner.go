package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultStaleTempFileAge        = time.Hour
	DefaultTempFileCleanupInterval = 15 * time.Minute
)

// StartTempFileCleaner periodically removes upload copies that a crashed or
// killed process left behind in dir. Requests always remove their own file.
func StartTempFileCleaner(ctx context.Context, dir string, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = DefaultTempFileCleanupInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultStaleTempFileAge
	}
	go cleanupLoop(ctx, dir, interval, maxAge)
}

func cleanupLoop(ctx context.Context, dir string, interval, maxAge time.Duration) {
	if _, err := SweepStaleTempFiles(dir, maxAge); err != nil {
		log.Warn().Err(err).Msg("cleanup temp files")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := SweepStaleTempFiles(dir, maxAge); err != nil {
				log.Warn().Err(err).Msg("cleanup temp files")
			}
		}
	}
}

// SweepStaleTempFiles deletes lexibrief-*.pdf files in dir older than maxAge
// and returns how many were removed.
func SweepStaleTempFiles(dir string, maxAge time.Duration) (int, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	matches, err := filepath.Glob(filepath.Join(dir, tempFilePattern))
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("remove stale temp file")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("count", removed).Str("dir", dir).Msg("removed stale temp files")
	}
	return removed, nil
}
