package youtube

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoCaptions is returned when a video has no caption track in any
// language, manual or auto-generated.
var ErrNoCaptions = errors.New("no caption track available for video")

// UpstreamError wraps a yt-dlp invocation failure so callers can tell a
// platform/network problem apart from a missing track.
type UpstreamError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("youtube %s failed: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("youtube %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

type captionFormat struct {
	Ext string `json:"ext"`
}

// VideoInfo is the subset of the yt-dlp --dump-json output the service
// needs: identity, duration, and which caption languages exist.
type VideoInfo struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Duration          int                        `json:"duration"`
	Uploader          string                     `json:"uploader"`
	WebpageURL        string                     `json:"webpage_url"`
	Subtitles         map[string][]captionFormat `json:"subtitles"`
	AutomaticCaptions map[string][]captionFormat `json:"automatic_captions"`
}

// ManualLanguages lists the languages of manually-authored caption tracks,
// sorted for deterministic selection.
func (v *VideoInfo) ManualLanguages() []string {
	return sortedKeys(v.Subtitles)
}

// AutoLanguages lists the languages of auto-generated caption tracks.
func (v *VideoInfo) AutoLanguages() []string {
	return sortedKeys(v.AutomaticCaptions)
}

func sortedKeys(m map[string][]captionFormat) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// TrackSelection names the caption track FetchCaptions will download.
type TrackSelection struct {
	Language string
	Auto     bool
}
