package player

import (
	"fmt"
	"time"

	"ostplayer/pkg/models"
)

// Status is the state-machine position of the player
type Status int

const (
	StatusIdle    Status = iota // no track loaded
	StatusLoading               // validation or source assignment in progress
	StatusReady                 // source assigned, paused
	StatusPlaying
	StatusError // last operation failed; playback is paused
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText lets Status appear as a word in JSON
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the word form written by MarshalText
func (s *Status) UnmarshalText(text []byte) error {
	for candidate := StatusIdle; candidate <= StatusError; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown player status %q", text)
}

// State is the player state owned by the Machine
type State struct {
	Status            Status  `json:"status"`
	CurrentIndex      int     `json:"currentIndex"`
	Playing           bool    `json:"isPlaying"`
	Shuffle           bool    `json:"isShuffled"`
	Repeat            bool    `json:"isRepeat"`
	Volume            float64 `json:"volume"` // 0.0 to 1.0
	UserHasInteracted bool    `json:"userHasInteracted"`
}

// Display is what the now-playing surfaces show
type Display struct {
	Title         string        `json:"title"`
	Artist        string        `json:"artist"`
	ThumbnailURL  string        `json:"thumbnail"`
	DurationLabel string        `json:"duration"`
	ElapsedLabel  string        `json:"elapsed"`
	Elapsed       time.Duration `json:"-"`
	Progress      float64       `json:"progress"` // 0.0 to 1.0
	PanelVisible  bool          `json:"panelVisible"`
}

// View is a consistent copy of everything renderers need
type View struct {
	State    State         `json:"state"`
	Display  Display       `json:"display"`
	Notice   *Notice       `json:"notice,omitempty"`
	Track    *models.Track `json:"track,omitempty"`
	Catalog  int           `json:"catalogLength"`
	Selected bool          `json:"selected"`
}

// FormatDuration renders d as m:ss
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
