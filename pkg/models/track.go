package models

// Track represents a playable entry of the catalog
type Track struct {
	Title         string `json:"title" toml:"title" yaml:"title"`
	Artist        string `json:"artist" toml:"artist" yaml:"artist"`
	DurationLabel string `json:"duration" toml:"duration" yaml:"duration"` // "m:ss" as shown on the card
	ThumbnailURL  string `json:"thumbnail" toml:"thumbnail" yaml:"thumbnail"`
	AudioURL      string `json:"audio" toml:"audio" yaml:"audio"`
	Rating        int    `json:"rating" toml:"rating" yaml:"rating"` // 0 to 5 stars
	Featured      bool   `json:"featured" toml:"featured" yaml:"featured"`
	Popular       bool   `json:"popular" toml:"popular" yaml:"popular"`
}

// MaxRating is the number of stars a card can show
const MaxRating = 5

// SessionSnapshot is the persisted projection of the player state. A nil
// field means the value was absent or could not be parsed.
type SessionSnapshot struct {
	CurrentIndex   *int     `json:"currentSongIndex,omitempty"`
	Playing        *bool    `json:"isPlaying,omitempty"`
	ElapsedSeconds *float64 `json:"currentTime,omitempty"`
	Volume         *float64 `json:"volume,omitempty"`
}

// NewSessionSnapshot builds a snapshot with every field present
func NewSessionSnapshot(index int, playing bool, elapsed, volume float64) SessionSnapshot {
	return SessionSnapshot{
		CurrentIndex:   &index,
		Playing:        &playing,
		ElapsedSeconds: &elapsed,
		Volume:         &volume,
	}
}

// IsEmpty reports whether nothing was restored
func (s SessionSnapshot) IsEmpty() bool {
	return s.CurrentIndex == nil && s.Playing == nil && s.ElapsedSeconds == nil && s.Volume == nil
}
