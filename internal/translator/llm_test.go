package translator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtube/internal/llm"
	"subtube/internal/subtitle"
)

// fakeChatClient echoes each input line back with a prefix, optionally
// misbehaving for a number of calls to exercise the retry path.
type fakeChatClient struct {
	calls      int
	failCalls  int // return an error for the first N calls
	shortCalls int // drop the last line for the first N calls
}

func (f *fakeChatClient) ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error) {
	f.calls++
	if f.calls <= f.failCalls {
		return nil, fmt.Errorf("upstream unavailable")
	}

	lines := strings.Split(messages[len(messages)-1].Content, subtitleLineBreaker)
	if f.calls <= f.shortCalls && len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}

	translated := make([]string, len(lines))
	for i, line := range lines {
		translated[i] = "T:" + line
	}

	return &llm.ChatResponse{
		Choices: []llm.Choice{
			{Message: llm.Message{Role: "assistant", Content: strings.Join(translated, subtitleLineBreaker)}},
		},
	}, nil
}

func sampleLines(n int) []subtitle.Line {
	lines := make([]subtitle.Line, n)
	for i := range lines {
		lines[i] = subtitle.Line{
			Index:     i + 1,
			StartTime: time.Duration(i) * time.Second,
			EndTime:   time.Duration(i+1) * time.Second,
			Text:      fmt.Sprintf("line %d", i+1),
		}
	}
	return lines
}

func TestBatchTranslatePreservesStructure(t *testing.T) {
	tr := NewLLMTranslator(&fakeChatClient{})
	lines := sampleLines(7)

	got, err := tr.BatchTranslate(context.Background(), VideoMeta{Title: "Demo"}, lines, "English", "Spanish", 3)
	require.NoError(t, err)
	require.Len(t, got, 7)

	for i, line := range got {
		assert.Equal(t, i+1, line.Index)
		assert.Equal(t, time.Duration(i)*time.Second, line.StartTime)
		assert.Equal(t, time.Duration(i+1)*time.Second, line.EndTime)
		assert.Equal(t, fmt.Sprintf("line %d", i+1), line.Text)
		assert.Equal(t, fmt.Sprintf("T:line %d", i+1), line.TranslatedText)
	}
}

func TestBatchTranslateMultilineCue(t *testing.T) {
	tr := NewLLMTranslator(&fakeChatClient{})
	lines := []subtitle.Line{
		{Index: 1, EndTime: time.Second, Text: "first\nsecond"},
	}

	got, err := tr.BatchTranslate(context.Background(), VideoMeta{}, lines, "English", "Spanish", 10)
	require.NoError(t, err)

	// Inline breaks are restored in the translated text.
	assert.Equal(t, "T:first\nsecond", got[0].TranslatedText)
}

func TestBatchTranslateRetriesHalvedOnCountMismatch(t *testing.T) {
	client := &fakeChatClient{shortCalls: 1}
	tr := NewLLMTranslator(client)
	lines := sampleLines(6)

	got, err := tr.BatchTranslate(context.Background(), VideoMeta{}, lines, "English", "German", 6)
	require.NoError(t, err)

	for i, line := range got {
		assert.Equal(t, fmt.Sprintf("T:line %d", i+1), line.TranslatedText)
	}
	// First call came up short, then two halved batches.
	assert.Equal(t, 3, client.calls)
}

func TestBatchTranslatePropagatesErrors(t *testing.T) {
	tr := NewLLMTranslator(&fakeChatClient{failCalls: 100})
	lines := sampleLines(3)

	_, err := tr.BatchTranslate(context.Background(), VideoMeta{}, lines, "English", "French", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lines 1-3")
}

func TestBatchTranslateProgress(t *testing.T) {
	var reports []int
	tr := NewLLMTranslator(&fakeChatClient{}, WithProgress(func(done, total int) {
		assert.Equal(t, 5, total)
		reports = append(reports, done)
	}))

	_, err := tr.BatchTranslate(context.Background(), VideoMeta{}, sampleLines(5), "English", "Spanish", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 5}, reports)
}

func TestFixInlineBreakersAlreadyCorrect(t *testing.T) {
	translated := []string{"uno" + inlineBreakerPlaceholder + "dos"}
	fixInlineBreakers([]string{"one" + inlineBreakerPlaceholder + "two"}, translated)
	assert.Equal(t, "uno"+inlineBreakerPlaceholder+"dos", translated[0])
}

func TestFixInlineBreakersRemoveExtra(t *testing.T) {
	translated := []string{"uno" + inlineBreakerPlaceholder + "dos" + inlineBreakerPlaceholder + "tres"}
	fixInlineBreakers([]string{"plain text"}, translated)
	assert.Equal(t, 0, strings.Count(translated[0], inlineBreakerPlaceholder))
}

func TestFixInlineBreakersInsertMissing(t *testing.T) {
	translated := []string{"translated text without breaks"}
	fixInlineBreakers([]string{"one" + inlineBreakerPlaceholder + "two"}, translated)
	assert.Equal(t, 1, strings.Count(translated[0], inlineBreakerPlaceholder))
}

func TestBuildContextPromptIncludesMetadata(t *testing.T) {
	tr := &llmTranslator{}
	prompt := tr.buildContextPrompt(VideoMeta{Title: "Go Talks", Uploader: "gophercon", Duration: 1800}, "English", "Japanese")

	assert.Contains(t, prompt, "Go Talks")
	assert.Contains(t, prompt, "gophercon")
	assert.Contains(t, prompt, "English")
	assert.Contains(t, prompt, "Japanese")
	assert.Contains(t, prompt, subtitleLineBreaker)
	assert.Contains(t, prompt, "exactly match")
}
