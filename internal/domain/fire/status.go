package fire

import "time"

// Counters are monotonically increasing totals since process start.
type Counters struct {
	Frames        uint64
	FrameErrors   uint64
	Episodes      uint64
	Alarms        uint64
	Notifications uint64
	LinkErrors    uint64
}

// Status is the telemetry view of the controller at a point in time.
type Status struct {
	// Phase is the machine phase after the last processed frame.
	Phase Phase
	// EpisodeID is empty while idle.
	EpisodeID string
	// EpisodeStartedAt is the wall-clock start of the live episode.
	EpisodeStartedAt time.Time
	// Confirmed mirrors Episode.Confirmed.
	Confirmed bool
	// Notified mirrors Episode.Notified.
	Notified bool
	// Delivered is set once the notification worker for this episode finished.
	Delivered bool
	// Remaining is the confirmation countdown while confirming.
	Remaining time.Duration
	// LinkHealthy is false after a failed actuator send until the next success.
	LinkHealthy bool
	// LastCommand is the last command handed to the actuator link.
	LastCommand Command
	// UpdatedAt is when the status was last written.
	UpdatedAt time.Time
	// Counters are process totals.
	Counters Counters
}

// Clone returns a copy so readers never share memory with the writer.
func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// Fields renders the status as a flat JSON-friendly document shared by the
// HTTP, websocket and gRPC surfaces.
func (s *Status) Fields() map[string]any {
	if s == nil {
		return map[string]any{}
	}

	return map[string]any{
		"phase":              s.Phase.String(),
		"episode_id":         s.EpisodeID,
		"episode_started_at": formatTime(s.EpisodeStartedAt),
		"confirmed":          s.Confirmed,
		"notified":           s.Notified,
		"delivered":          s.Delivered,
		"remaining_seconds":  s.Remaining.Seconds(),
		"link_healthy":       s.LinkHealthy,
		"last_command":       string(s.LastCommand),
		"updated_at":         formatTime(s.UpdatedAt),
		"counters": map[string]any{
			"frames":        s.Counters.Frames,
			"frame_errors":  s.Counters.FrameErrors,
			"episodes":      s.Counters.Episodes,
			"alarms":        s.Counters.Alarms,
			"notifications": s.Counters.Notifications,
			"link_errors":   s.Counters.LinkErrors,
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}
