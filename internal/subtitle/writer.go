package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// RenderOptions controls which text goes into each rendered cue.
// With both flags set the translated text is placed above the original,
// producing a bilingual track.
type RenderOptions struct {
	IncludeOriginal    bool
	IncludeTranslation bool
}

// WriteSRT renders a track in SRT form: sequence number, timing line,
// text block, blank separator.
func WriteSRT(w io.Writer, track *Track, opts RenderOptions) error {
	if track == nil {
		return fmt.Errorf("subtitle track is empty")
	}

	bw := bufio.NewWriter(w)

	for _, line := range track.Lines {
		fmt.Fprintf(bw, "%d\n", line.Index)
		fmt.Fprintf(bw, "%s --> %s\n", FormatDuration(line.StartTime), FormatDuration(line.EndTime))
		fmt.Fprintf(bw, "%s\n\n", cueText(line, opts))
	}

	return bw.Flush()
}

// WritePlainText renders a track as newline-joined text with no timing codes.
func WritePlainText(w io.Writer, track *Track, opts RenderOptions) error {
	if track == nil {
		return fmt.Errorf("subtitle track is empty")
	}

	bw := bufio.NewWriter(w)
	for _, line := range track.Lines {
		fmt.Fprintf(bw, "%s\n", cueText(line, opts))
	}
	return bw.Flush()
}

// WriteSRTFile writes the SRT rendering of a track to the given path.
func WriteSRTFile(path string, track *Track, opts RenderOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return WriteSRT(f, track, opts)
}

func cueText(line Line, opts RenderOptions) string {
	var parts []string
	if opts.IncludeTranslation && line.TranslatedText != "" {
		parts = append(parts, line.TranslatedText)
	}
	if opts.IncludeOriginal || len(parts) == 0 {
		parts = append(parts, line.Text)
	}
	return strings.Join(parts, "\n")
}

// FormatDuration formats a time.Duration as an SRT timestamp
// (HH:MM:SS,mmm).
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
