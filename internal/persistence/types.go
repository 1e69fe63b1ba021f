package persistence

import (
	"time"

	"subtube/internal/subtitle"
)

// BatchCheckpoint stores a completed translation batch so a restarted job
// does not re-translate lines it already paid for.
type BatchCheckpoint struct {
	JobID           string
	BatchStart      int
	BatchEnd        int
	TranslatedLines []string
	UpdatedAt       time.Time
}

// CaptionCacheEntry caches a downloaded caption track per video and
// language so repeated requests skip the subprocess round trip.
type CaptionCacheEntry struct {
	VideoID   string
	Language  string
	Auto      bool
	Track     subtitle.Track
	ExpiresAt time.Time
	UpdatedAt time.Time
}
