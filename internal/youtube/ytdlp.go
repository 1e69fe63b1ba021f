package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/singleflight"

	"subtube/internal/subtitle"
	"subtube/pkg/file"
	"subtube/pkg/log"
)

// Preferred fallback languages when the requested source language has no
// track, mirroring the platform's most common caption coverage.
var fallbackLanguages = []string{"en", "en-US", "en-GB"}

// Client fetches video metadata and caption tracks through a yt-dlp
// subprocess. Safe for concurrent use; concurrent probes of the same URL
// are collapsed into one invocation.
type Client struct {
	binary  string
	tempDir string

	probeGroup singleflight.Group
}

func NewClient(binary, tempDir string) *Client {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Client{
		binary:  binary,
		tempDir: tempDir,
	}
}

// Probe returns video metadata including which caption languages exist.
func (c *Client) Probe(ctx context.Context, url string) (*VideoInfo, error) {
	v, err, _ := c.probeGroup.Do(url, func() (any, error) {
		return c.probe(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return v.(*VideoInfo), nil
}

func (c *Client) probe(ctx context.Context, url string) (*VideoInfo, error) {
	cmdPath, err := exec.LookPath(c.binary)
	if err != nil {
		return nil, &UpstreamError{Op: "probe", Err: err}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, c.probeArgs(url)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{Op: "probe", Err: err, Stderr: trimStderr(stderr.String())}
	}

	return ParseVideoInfo(stdout.Bytes())
}

// ParseVideoInfo decodes the yt-dlp --dump-json output.
func ParseVideoInfo(data []byte) (*VideoInfo, error) {
	var info VideoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &UpstreamError{Op: "probe", Err: fmt.Errorf("invalid metadata payload: %w", err)}
	}
	if info.ID == "" {
		return nil, &UpstreamError{Op: "probe", Err: fmt.Errorf("metadata payload has no video id")}
	}
	return &info, nil
}

// SelectTrack picks the caption track to download. Manually-authored tracks
// win over auto-generated ones; within each group the requested language
// wins, then the fallback languages, then the first available track.
func SelectTrack(info *VideoInfo, requested string) (TrackSelection, error) {
	if sel, ok := pickLanguage(info.ManualLanguages(), requested); ok {
		return TrackSelection{Language: sel}, nil
	}
	if sel, ok := pickLanguage(info.AutoLanguages(), requested); ok {
		return TrackSelection{Language: sel, Auto: true}, nil
	}
	return TrackSelection{}, ErrNoCaptions
}

func pickLanguage(available []string, requested string) (string, bool) {
	if len(available) == 0 {
		return "", false
	}
	if requested != "" {
		for _, lang := range available {
			if strings.EqualFold(lang, requested) {
				return lang, true
			}
		}
	}
	for _, lang := range fallbackLanguages {
		for _, have := range available {
			if strings.EqualFold(have, lang) {
				return have, true
			}
		}
	}
	return available[0], true
}

// FetchCaptions probes the video, selects a track and downloads it as SRT.
// Returns ErrNoCaptions when the video has no track in any language.
func (c *Client) FetchCaptions(ctx context.Context, url string, requested string) (*subtitle.Track, *VideoInfo, error) {
	info, err := c.Probe(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	track, err := c.FetchCaptionsWithInfo(ctx, url, info, requested)
	if err != nil {
		return nil, info, err
	}
	return track, info, nil
}

// FetchCaptionsWithInfo downloads the selected caption track using metadata
// from an earlier probe.
func (c *Client) FetchCaptionsWithInfo(ctx context.Context, url string, info *VideoInfo, requested string) (*subtitle.Track, error) {
	sel, err := SelectTrack(info, requested)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	base := filepath.Join(c.tempDir, fmt.Sprintf("%s_%s", info.ID, file.SanitizeName(info.Title)))

	cmdPath, err := exec.LookPath(c.binary)
	if err != nil {
		return nil, &UpstreamError{Op: "captions", Err: err}
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, c.captionArgs(url, base, sel)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{Op: "captions", Err: err, Stderr: trimStderr(stderr.String())}
	}

	// yt-dlp names the output base.<lang>.srt, occasionally base.srt.
	candidates := []string{
		fmt.Sprintf("%s.%s.srt", base, sel.Language),
		base + ".srt",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			log.Debug("Downloaded caption track %s (auto=%v) to %s", sel.Language, sel.Auto, path)
			return subtitle.ReadSRTFile(path)
		}
	}

	// The subprocess exited cleanly but produced nothing; the advertised
	// track does not actually exist.
	return nil, ErrNoCaptions
}

func (c *Client) probeArgs(url string) []string {
	return []string{
		"--dump-json",
		"--no-download",
		url,
	}
}

func (c *Client) captionArgs(url, outputBase string, sel TrackSelection) []string {
	writeFlag := "--write-sub"
	if sel.Auto {
		writeFlag = "--write-auto-sub"
	}
	return []string{
		writeFlag,
		"--sub-lang", sel.Language,
		"--sub-format", "srt",
		"--convert-subs", "srt",
		"--skip-download",
		"-o", outputBase,
		url,
	}
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		return s[len(s)-max:]
	}
	return s
}

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID pulls the 11-character video id out of the usual URL
// shapes (watch?v=, youtu.be/, shorts/, embed/) or accepts a bare id.
func ExtractVideoID(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if videoIDRe.MatchString(ref) {
		return ref, true
	}

	for _, marker := range []string{"v=", "youtu.be/", "shorts/", "embed/"} {
		if idx := strings.Index(ref, marker); idx >= 0 {
			rest := ref[idx+len(marker):]
			if end := strings.IndexAny(rest, "?&#/"); end >= 0 {
				rest = rest[:end]
			}
			if videoIDRe.MatchString(rest) {
				return rest, true
			}
		}
	}
	return "", false
}
