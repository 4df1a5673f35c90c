package heartbeat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PruneImages deletes heartbeat-marked files from per-day image
// directories older than the trailing retention window. Directories whose
// name does not parse as a day, and files without the heartbeat marker
// (intruder images), are left untouched. It returns the number of files
// removed.
func PruneImages(imagesPath string, now time.Time, retentionDays int) (int, error) {
	entries, err := os.ReadDir(imagesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing image directories: %w", err)
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		day, err := time.ParseInLocation(dayDirLayout, entry.Name(), now.Location())
		if err != nil {
			continue
		}
		if !day.Before(cutoff) {
			continue
		}

		dayDir := filepath.Join(imagesPath, entry.Name())
		files, err := os.ReadDir(dayDir)
		if err != nil {
			return removed, fmt.Errorf("listing %s: %w", dayDir, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.Contains(f.Name(), Marker) {
				continue
			}
			if err := os.Remove(filepath.Join(dayDir, f.Name())); err != nil {
				return removed, fmt.Errorf("removing %s: %w", f.Name(), err)
			}
			removed++
		}
	}
	return removed, nil
}
