package translator

import (
	"context"
	"fmt"
	"strings"

	"subtube/internal/llm"
	"subtube/internal/subtitle"
	"subtube/pkg/log"
)

const (
	// Separator between subtitle lines in the model conversation. A marker
	// token survives model output far more reliably than bare newlines.
	subtitleLineBreaker = "%%subtitle_breaker%%"

	// Placeholder for line breaks inside a single subtitle cue.
	inlineBreakerPlaceholder = "%%inline_breaker%%"

	defaultBatchSize = 30
)

// chatClient is the slice of the LLM client the translator needs.
type chatClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error)
}

// llmTranslator translates subtitle lines in batches through a chat model
type llmTranslator struct {
	client   chatClient
	progress BatchProgress
}

// Option configures an llmTranslator.
type Option func(*llmTranslator)

// WithProgress registers a callback fired after each completed batch.
func WithProgress(fn BatchProgress) Option {
	return func(t *llmTranslator) {
		t.progress = fn
	}
}

// NewLLMTranslator creates a translator backed by a chat completion client.
func NewLLMTranslator(client chatClient, opts ...Option) Translator {
	t := &llmTranslator{client: client}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *llmTranslator) Translate(
	ctx context.Context,
	meta VideoMeta,
	subtitleTexts []string,
	sourceLang string,
	targetLang string,
) ([]string, error) {
	systemPrompt := t.buildContextPrompt(meta, sourceLang, targetLang)
	userMessage := strings.Join(subtitleTexts, subtitleLineBreaker)

	opts := llm.NewChatCompletionOptions().WithSystemPrompt(systemPrompt)
	response, err := t.client.ChatCompletion(ctx, []llm.Message{
		{Role: "user", Content: userMessage},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	return strings.Split(content, subtitleLineBreaker), nil
}

// BatchTranslate translates all lines in order, preserving index and timing
// of every line. Translated text is filled into TranslatedText; the original
// Text is never touched.
func (t *llmTranslator) BatchTranslate(
	ctx context.Context,
	meta VideoMeta,
	subtitleLines []subtitle.Line,
	sourceLanguage string,
	targetLanguage string,
	batchSize int) ([]subtitle.Line, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	total := len(subtitleLines)
	for i := 0; i < total; i += batchSize {
		end := min(i+batchSize, total)

		translations, err := t.translateRange(ctx, meta, subtitleLines, sourceLanguage, targetLanguage, batchSize, i, end)
		if err != nil {
			return nil, err
		}

		for j, text := range translations {
			subtitleLines[i+j].TranslatedText = strings.TrimSpace(
				strings.ReplaceAll(text, inlineBreakerPlaceholder, "\n"))
		}

		if t.progress != nil {
			t.progress(end, total)
		}
	}

	return subtitleLines, nil
}

// translateRange translates lines [startIncluded, endExcluded). When the
// model returns the wrong number of lines the range is retried with the
// batch size halved, down to single lines.
func (t *llmTranslator) translateRange(
	ctx context.Context,
	meta VideoMeta,
	subtitleLines []subtitle.Line,
	sourceLanguage string,
	targetLanguage string,
	batchSize int,
	startIncluded int,
	endExcluded int,
) ([]string, error) {
	var subtitleTexts []string
	for _, line := range subtitleLines[startIncluded:endExcluded] {
		// Hide original line breaks from the model so one cue stays one line
		subtitleTexts = append(subtitleTexts, strings.ReplaceAll(line.Text, "\n", inlineBreakerPlaceholder))
	}

	translations, err := t.Translate(ctx, meta, subtitleTexts, sourceLanguage, targetLanguage)
	if err != nil {
		return nil, fmt.Errorf("batch translation failed for lines %d-%d: %w", startIncluded+1, endExcluded, err)
	}

	if len(translations) == len(subtitleTexts) {
		fixInlineBreakers(subtitleTexts, translations)
		return translations, nil
	}

	if batchSize <= 1 {
		return nil, fmt.Errorf("translation count mismatch for lines %d-%d: got %d, want %d",
			startIncluded+1, endExcluded, len(translations), len(subtitleTexts))
	}

	half := batchSize / 2
	log.Warn("Translation count mismatch for lines %d-%d (got %d, want %d), retrying with batch size %d",
		startIncluded+1, endExcluded, len(translations), len(subtitleTexts), half)

	var all []string
	for i := startIncluded; i < endExcluded; i += half {
		end := min(i+half, endExcluded)
		part, err := t.translateRange(ctx, meta, subtitleLines, sourceLanguage, targetLanguage, half, i, end)
		if err != nil {
			return nil, fmt.Errorf("retry batch translation failed for lines %d-%d: %w", i+1, end, err)
		}
		all = append(all, part...)
	}
	return all, nil
}

// fixInlineBreakers reconciles the inline break marker count of each
// translated line with its source line. Models occasionally drop or invent
// markers; a wrong count would corrupt the rendered cue.
func fixInlineBreakers(source, translated []string) {
	for i := range translated {
		if i >= len(source) {
			return
		}
		want := strings.Count(source[i], inlineBreakerPlaceholder)
		have := strings.Count(translated[i], inlineBreakerPlaceholder)

		for have > want {
			idx := strings.LastIndex(translated[i], inlineBreakerPlaceholder)
			translated[i] = translated[i][:idx] + translated[i][idx+len(inlineBreakerPlaceholder):]
			have--
		}
		if have < want {
			// Re-insert missing markers at roughly even rune offsets.
			runes := []rune(translated[i])
			missing := want - have
			var b strings.Builder
			step := len(runes) / (missing + 1)
			if step == 0 {
				step = 1
			}
			inserted := 0
			for j, r := range runes {
				b.WriteRune(r)
				if inserted < missing && (j+1)%step == 0 {
					b.WriteString(inlineBreakerPlaceholder)
					inserted++
				}
			}
			for inserted < missing {
				b.WriteString(inlineBreakerPlaceholder)
				inserted++
			}
			translated[i] = b.String()
		}
	}
}

// buildContextPrompt builds the system prompt for translation
func (t *llmTranslator) buildContextPrompt(
	meta VideoMeta,
	sourceLanguage string,
	targetLanguage string,
) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional subtitle translation expert. Translate subtitles from " +
		sourceLanguage + " to " + targetLanguage + " with natural phrasing and consistent terminology.\n\n")

	prompt.WriteString("=== VIDEO INFORMATION ===\n")
	if meta.Title != "" {
		prompt.WriteString(fmt.Sprintf("Title: %s\n", meta.Title))
	}
	if meta.Uploader != "" {
		prompt.WriteString(fmt.Sprintf("Channel: %s\n", meta.Uploader))
	}
	if meta.Duration > 0 {
		prompt.WriteString(fmt.Sprintf("Duration: %d seconds\n", meta.Duration))
	}

	prompt.WriteString("\n=== TRANSLATION GUIDELINES ===\n")
	prompt.WriteString("1. Keep names, brands and technical terms consistent across all lines\n")
	prompt.WriteString("2. Ensure " + targetLanguage + " flows naturally while preserving meaning\n")
	prompt.WriteString("3. Keep subtitle length appropriate for screen reading\n")
	prompt.WriteString("4. Preserve original line structure and " + subtitleLineBreaker + " line separators\n")
	prompt.WriteString("5. Preserve " + inlineBreakerPlaceholder + " inline break markers exactly\n")
	prompt.WriteString("6. Do NOT merge, split, reorder, or drop lines\n")

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY the translated subtitles, one per line, separated by " + subtitleLineBreaker + "\n")
	prompt.WriteString("Do not include any explanations, notes, or additional text.\n")
	prompt.WriteString("The number of output lines must exactly match the number of input lines.\n")

	return prompt.String()
}
