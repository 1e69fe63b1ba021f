package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Format names for Track.Format.
const (
	FormatSRT  = "SRT"
	FormatText = "TEXT"
)

// Line is a single timed cue: one index, one time window, one block of text.
type Line struct {
	Index          int           `json:"index"`
	StartTime      time.Duration `json:"start_time"`
	EndTime        time.Duration `json:"end_time"`
	Text           string        `json:"text"`
	TranslatedText string        `json:"translated_text,omitempty"`
}

// Track is one caption track: an ordered sequence of lines in one language.
type Track struct {
	Lines    []Line
	Language language.Tag
	Format   string
	Path     string
}

// Clone returns a deep copy so translation can replace a track without
// mutating the source.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	ret := *t
	ret.Lines = append([]Line(nil), t.Lines...)
	return &ret
}
