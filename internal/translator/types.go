package translator

import (
	"context"

	"subtube/internal/subtitle"
)

// VideoMeta carries video context handed to the model so that names,
// terminology and register match the source material.
type VideoMeta struct {
	Title    string
	Uploader string
	Duration int // seconds
}

type Translator interface {
	Translate(
		ctx context.Context,
		meta VideoMeta,
		subtitleTexts []string,
		sourceLang string,
		targetLang string,
	) ([]string, error)

	BatchTranslate(
		ctx context.Context,
		meta VideoMeta,
		subtitleLines []subtitle.Line,
		sourceLanguage string,
		targetLanguage string,
		batchSize int) ([]subtitle.Line, error)
}

// BatchProgress is invoked after each completed batch with the number of
// lines translated so far and the total line count.
type BatchProgress func(done, total int)
