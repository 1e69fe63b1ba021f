package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"subtube/internal/jobs"
	"subtube/internal/persistence"
	"subtube/internal/subtitle"
	"subtube/internal/translator"
	"subtube/internal/youtube"
	"subtube/pkg/file"
	"subtube/pkg/log"
)

// Retriever fetches video metadata and caption tracks.
type Retriever interface {
	Probe(ctx context.Context, url string) (*youtube.VideoInfo, error)
	FetchCaptionsWithInfo(ctx context.Context, url string, info *youtube.VideoInfo, requested string) (*subtitle.Track, error)
}

// Store is the slice of the persistence layer the pipeline uses. All store
// operations are best-effort; a broken store degrades to uncached behavior.
type Store interface {
	GetCaptionCache(ctx context.Context, videoID, lang string, now time.Time) (subtitle.Track, bool, error)
	PutCaptionCache(ctx context.Context, entry persistence.CaptionCacheEntry) error
	SaveBatchCheckpoint(ctx context.Context, jobID string, batchStart, batchEnd int, translatedLines []string) error
	LoadBatchCheckpoints(ctx context.Context, jobID string) ([]persistence.BatchCheckpoint, error)
	DeleteJobData(ctx context.Context, jobID string) error
}

// TranslatorFactory builds a translator reporting progress through the
// given callback. Built per job so progress can be attributed to it.
type TranslatorFactory func(progress translator.BatchProgress) translator.Translator

// Options tunes pipeline behavior.
type Options struct {
	Store      Store // optional
	OutputDir  string
	BatchSize  int
	JobTimeout time.Duration
	Progress   func(jobID string, done, total int)
	// TitleResolved fires once video metadata is known, so job listings can
	// show the real title instead of the bare video ID.
	TitleResolved func(jobID, title string)
	// CacheHit fires when a caption track is served from the cache.
	CacheHit func()
}

// Pipeline runs one translation job end to end: probe, fetch captions,
// translate, render the output file.
type Pipeline struct {
	retriever     Retriever
	newTranslator TranslatorFactory
	opts          Options
}

func New(retriever Retriever, newTranslator TranslatorFactory, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 30
	}
	return &Pipeline{
		retriever:     retriever,
		newTranslator: newTranslator,
		opts:          opts,
	}
}

// Probe exposes metadata lookup for the video info endpoint.
func (p *Pipeline) Probe(ctx context.Context, url string) (*youtube.VideoInfo, error) {
	info, err := p.retriever.Probe(ctx, url)
	if err != nil {
		return nil, Classify(err)
	}
	return info, nil
}

// Run executes a job and returns its result.
func (p *Pipeline) Run(ctx context.Context, job *jobs.TranslationJob) (*jobs.Result, error) {
	payload := job.Payload
	if payload.VideoURL == "" {
		return nil, NewError(ErrValidation, "video url is required")
	}
	if payload.TargetLanguage == "" {
		return nil, NewError(ErrValidation, "target language is required")
	}

	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}

	info, err := p.retriever.Probe(ctx, payload.VideoURL)
	if err != nil {
		return nil, Classify(err).WithContext("video_url", payload.VideoURL)
	}
	if p.opts.TitleResolved != nil && info.Title != "" {
		p.opts.TitleResolved(job.ID, info.Title)
	}

	sel, err := youtube.SelectTrack(info, payload.SourceLanguage)
	if err != nil {
		return nil, Classify(err).WithContext("video_id", info.ID)
	}

	track, err := p.fetchTrack(ctx, payload.VideoURL, info, sel)
	if err != nil {
		return nil, Classify(err).WithContext("video_id", info.ID).WithContext("language", sel.Language)
	}
	if len(track.Lines) == 0 {
		return nil, NewError(ErrParse, "caption track is empty").WithContext("video_id", info.ID)
	}

	sourceLang := payload.SourceLanguage
	if sourceLang == "" {
		sourceLang = sel.Language
		if detected := subtitle.DetectLanguage(track.Lines); detected != language.Und {
			sourceLang = detected.String()
		}
	}

	lines := track.Lines
	covered := p.restoreCheckpoints(ctx, job.ID, lines)

	if covered < len(lines) {
		if err := p.translate(ctx, job.ID, info, lines, covered, sourceLang, payload.TargetLanguage); err != nil {
			return nil, Classify(err).WithContext("video_id", info.ID)
		}
	}

	outputFile, err := p.render(info, lines, payload)
	if err != nil {
		return nil, WrapError(err, ErrUnknown, "failed to write output file")
	}

	if p.opts.Store != nil {
		if err := p.opts.Store.DeleteJobData(context.WithoutCancel(ctx), job.ID); err != nil {
			log.Warn("Failed to clear checkpoints for job %s: %v", job.ID, err)
		}
	}

	return &jobs.Result{
		OutputFile:     outputFile,
		SourceLanguage: sourceLang,
		LineCount:      len(lines),
	}, nil
}

// fetchTrack serves the caption track from the cache when possible and
// falls back to a fresh download.
func (p *Pipeline) fetchTrack(ctx context.Context, url string, info *youtube.VideoInfo, sel youtube.TrackSelection) (*subtitle.Track, error) {
	if p.opts.Store != nil {
		cached, ok, err := p.opts.Store.GetCaptionCache(ctx, info.ID, sel.Language, time.Now())
		if err != nil {
			log.Warn("Caption cache lookup failed for %s/%s: %v", info.ID, sel.Language, err)
		} else if ok {
			log.Debug("Caption cache hit for %s/%s", info.ID, sel.Language)
			if p.opts.CacheHit != nil {
				p.opts.CacheHit()
			}
			return cached.Clone(), nil
		}
	}

	track, err := p.retriever.FetchCaptionsWithInfo(ctx, url, info, sel.Language)
	if err != nil {
		return nil, err
	}

	if p.opts.Store != nil {
		entry := persistence.CaptionCacheEntry{
			VideoID:  info.ID,
			Language: sel.Language,
			Auto:     sel.Auto,
			Track:    *track.Clone(),
		}
		if err := p.opts.Store.PutCaptionCache(ctx, entry); err != nil {
			log.Warn("Failed to cache captions for %s/%s: %v", info.ID, sel.Language, err)
		}
	}
	return track, nil
}

func (p *Pipeline) translate(ctx context.Context, jobID string, info *youtube.VideoInfo, lines []subtitle.Line, covered int, sourceLang, targetLang string) error {
	total := len(lines)
	prevDone := covered

	progress := func(done, subTotal int) {
		absolute := covered + done
		if p.opts.Progress != nil {
			p.opts.Progress(jobID, absolute, total)
		}
		if p.opts.Store != nil && absolute > prevDone {
			translated := make([]string, 0, absolute-prevDone)
			for _, line := range lines[prevDone:absolute] {
				translated = append(translated, line.TranslatedText)
			}
			if err := p.opts.Store.SaveBatchCheckpoint(ctx, jobID, prevDone, absolute, translated); err != nil {
				log.Warn("Failed to save checkpoint for job %s: %v", jobID, err)
			}
		}
		prevDone = absolute
	}

	meta := translator.VideoMeta{
		Title:    info.Title,
		Uploader: info.Uploader,
		Duration: info.Duration,
	}

	tr := p.newTranslator(progress)
	_, err := tr.BatchTranslate(ctx, meta, lines[covered:],
		languageName(sourceLang), languageName(targetLang), p.opts.BatchSize)
	return err
}

// restoreCheckpoints fills translated text recovered from earlier runs and
// returns how many lines from the start are already translated.
func (p *Pipeline) restoreCheckpoints(ctx context.Context, jobID string, lines []subtitle.Line) int {
	if p.opts.Store == nil {
		return 0
	}
	checkpoints, err := p.opts.Store.LoadBatchCheckpoints(ctx, jobID)
	if err != nil {
		log.Warn("Failed to load checkpoints for job %s: %v", jobID, err)
		return 0
	}

	covered := 0
	for _, cp := range checkpoints {
		if cp.BatchStart > covered || cp.BatchEnd <= covered || cp.BatchEnd > len(lines) {
			continue
		}
		if len(cp.TranslatedLines) != cp.BatchEnd-cp.BatchStart {
			continue
		}
		for i, text := range cp.TranslatedLines {
			lines[cp.BatchStart+i].TranslatedText = text
		}
		covered = cp.BatchEnd
	}
	if covered > 0 {
		log.Info("Restored %d translated lines for job %s from checkpoints", covered, jobID)
	}
	return covered
}

func (p *Pipeline) render(info *youtube.VideoInfo, lines []subtitle.Line, payload jobs.JobPayload) (string, error) {
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	ext := "srt"
	if payload.Format == subtitle.FormatText {
		ext = "txt"
	}
	name := fmt.Sprintf("%s_%s.%s.%s", info.ID, file.SanitizeName(info.Title), payload.TargetLanguage, ext)
	path := filepath.Join(p.opts.OutputDir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	track := &subtitle.Track{Lines: lines, Format: payload.Format, Path: path}
	opts := subtitle.RenderOptions{
		IncludeOriginal:    payload.Bilingual,
		IncludeTranslation: true,
	}

	if payload.Format == subtitle.FormatText {
		err = subtitle.WritePlainText(out, track, opts)
	} else {
		err = subtitle.WriteSRT(out, track, opts)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// languageName resolves a BCP 47 code to its English display name for the
// model prompt; unknown codes pass through unchanged.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
