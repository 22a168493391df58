package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/fire-sentinel/internal/logger"
)

// snapshotFilePermissions restricts snapshots to the service user.
const snapshotFilePermissions = 0o600

// SnapshotNotifier stores the alert image on disk and then delegates.
// A failed write is logged and does not stop delivery.
type SnapshotNotifier struct {
	dir  string
	next Notifier
}

// WithSnapshots wraps next so every alert image is also written to dir.
func WithSnapshots(dir string, next Notifier) *SnapshotNotifier {
	return &SnapshotNotifier{
		dir:  filepath.Clean(dir),
		next: next,
	}
}

// Notify writes the snapshot and forwards the alert.
func (s *SnapshotNotifier) Notify(ctx context.Context, alert Alert) error {
	if len(alert.Image) > 0 {
		path, err := s.write(alert)
		if err != nil {
			logger.ErrorKV(ctx, "Failed to store alert snapshot", "error", err)
		} else {
			logger.InfoKV(ctx, "Alert snapshot stored", "path", path)
		}
	}

	return s.next.Notify(ctx, alert)
}

// SnapshotName returns the file name used for alert.
func SnapshotName(alert Alert) string {
	name := "fire_" + alert.TriggeredAt.Format("20060102_150405")

	if len(alert.EpisodeID) >= 8 {
		name += "_" + alert.EpisodeID[:8]
	}

	return name + ".jpg"
}

func (s *SnapshotNotifier) write(alert Alert) (string, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(s.dir, SnapshotName(alert))

	if err := os.WriteFile(path, alert.Image, snapshotFilePermissions); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}
