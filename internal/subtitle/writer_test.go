package subtitle

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrack() *Track {
	return &Track{
		Format: FormatSRT,
		Lines: []Line{
			{Index: 1, StartTime: 0, EndTime: 2 * time.Second, Text: "Hello", TranslatedText: "Hola"},
			{Index: 2, StartTime: 2 * time.Second, EndTime: 5 * time.Second, Text: "World", TranslatedText: "Mundo"},
			{Index: 3, StartTime: 5 * time.Second, EndTime: 8 * time.Second, Text: "Bye", TranslatedText: "Adiós"},
		},
	}
}

func TestWriteSRTRoundTrip(t *testing.T) {
	track := sampleTrack()

	var buf bytes.Buffer
	require.NoError(t, WriteSRT(&buf, track, RenderOptions{IncludeTranslation: true}))

	parsed, err := ReadSRTBytes(buf.Bytes(), "roundtrip")
	require.NoError(t, err)
	require.Len(t, parsed.Lines, len(track.Lines))

	for i, line := range parsed.Lines {
		assert.Equal(t, track.Lines[i].Index, line.Index)
		assert.Equal(t, track.Lines[i].StartTime, line.StartTime)
		assert.Equal(t, track.Lines[i].EndTime, line.EndTime)
		assert.Equal(t, track.Lines[i].TranslatedText, line.Text)
	}
}

func TestWriteSRTBilingual(t *testing.T) {
	track := sampleTrack()

	var buf bytes.Buffer
	require.NoError(t, WriteSRT(&buf, track, RenderOptions{IncludeOriginal: true, IncludeTranslation: true}))

	assert.Contains(t, buf.String(), "Hola\nHello")
	assert.Contains(t, buf.String(), "00:00:00,000 --> 00:00:02,000")
}

func TestWriteSRTFallsBackToOriginal(t *testing.T) {
	track := sampleTrack()
	track.Lines[1].TranslatedText = ""

	var buf bytes.Buffer
	require.NoError(t, WriteSRT(&buf, track, RenderOptions{IncludeTranslation: true}))
	assert.Contains(t, buf.String(), "World")
}

func TestWritePlainText(t *testing.T) {
	track := sampleTrack()

	var buf bytes.Buffer
	require.NoError(t, WritePlainText(&buf, track, RenderOptions{IncludeTranslation: true}))

	assert.Equal(t, "Hola\nMundo\nAdiós\n", buf.String())
	assert.NotContains(t, buf.String(), "-->")
}

func TestWriteSRTNilTrack(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteSRT(&buf, nil, RenderOptions{}))
}

func TestFormatDuration(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond
	assert.Equal(t, "01:02:03,045", FormatDuration(d))
	assert.Equal(t, "00:00:00,000", FormatDuration(0))
}
