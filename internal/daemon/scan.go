package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/syncsentinel/syncsentinel/internal/synclog"
)

// DefaultPollInterval is used by PollDir when no interval is configured.
const DefaultPollInterval = 2 * time.Second

// LogFile describes a sync log found in a directory.
type LogFile struct {
	Path    string
	Format  synclog.Format
	Size    int64
	ModTime time.Time
}

// ListLogs returns the sync logs directly inside dir, newest first.
// Subdirectories are not searched.
func ListLogs(dir string) ([]LogFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var logs []LogFile
	for _, e := range entries {
		if e.IsDir() || !synclog.IsLogFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		path := filepath.Join(dir, e.Name())
		logs = append(logs, LogFile{
			Path:    path,
			Format:  synclog.FormatForPath(path),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].ModTime.Equal(logs[j].ModTime) {
			return logs[i].Path > logs[j].Path
		}
		return logs[i].ModTime.After(logs[j].ModTime)
	})
	return logs, nil
}

// PollConfig configures PollDir.
type PollConfig struct {
	// Dir is the directory to scan.
	Dir string

	// Interval between scans (default: DefaultPollInterval).
	Interval time.Duration

	// Logger for scan failures.
	Logger *slog.Logger
}

// PollCallback receives logs that appeared since the previous scan, oldest
// first.
type PollCallback func(paths []string)

// PollDir scans cfg.Dir on a ticker and reports logs that were not present
// before. Logs that exist when polling starts are treated as already seen.
// It returns ctx.Err() when ctx is done.
//
// Scan failures are logged and polling continues, so a share that drops
// off the network is picked up again when it returns.
func PollDir(ctx context.Context, cfg PollConfig, callback PollCallback) error {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	seen := make(map[string]bool)
	if logs, err := ListLogs(cfg.Dir); err != nil {
		cfg.Logger.Warn("initial scan failed", "dir", cfg.Dir, "error", err)
	} else {
		for _, l := range logs {
			seen[l.Path] = true
		}
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			logs, err := ListLogs(cfg.Dir)
			if err != nil {
				cfg.Logger.Warn("failed to scan directory", "dir", cfg.Dir, "error", err)
				continue
			}

			fresh := findNewLogs(logs, seen)
			if len(fresh) == 0 {
				continue
			}
			callback(fresh)
		}
	}
}

// findNewLogs returns the paths in logs that are not in seen, oldest first,
// and marks them as seen. logs must be ordered newest first.
func findNewLogs(logs []LogFile, seen map[string]bool) []string {
	var fresh []string
	for i := len(logs) - 1; i >= 0; i-- {
		p := logs[i].Path
		if seen[p] {
			continue
		}
		seen[p] = true
		fresh = append(fresh, p)
	}
	return fresh
}
