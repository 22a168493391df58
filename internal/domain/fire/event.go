package fire

import "time"

// Event is an episode lifecycle notification for external observers.
type Event struct {
	Type      Transition `json:"type"`
	EpisodeID string     `json:"episode_id"`
	Phase     string     `json:"phase"`
	At        time.Time  `json:"at"`
}
