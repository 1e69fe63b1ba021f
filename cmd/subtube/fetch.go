package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"subtube/internal/jobs"
	"subtube/internal/llm"
	"subtube/internal/pipeline"
	"subtube/internal/subtitle"
	"subtube/internal/translator"
	"subtube/internal/youtube"
	"subtube/pkg/log"
)

var (
	fetchTargetLang string
	fetchSourceLang string
	fetchFormat     string
	fetchBilingual  bool
	fetchOutputDir  string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <video-url>",
	Short: "Translate one video's subtitles and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		videoURL := args[0]
		if _, ok := youtube.ExtractVideoID(videoURL); !ok {
			return fmt.Errorf("unrecognizable video url: %s", videoURL)
		}

		format := subtitle.FormatSRT
		switch strings.ToLower(fetchFormat) {
		case "", "srt":
		case "txt", "text":
			format = subtitle.FormatText
		default:
			return fmt.Errorf("unsupported format %q (want srt or txt)", fetchFormat)
		}

		targetLang := fetchTargetLang
		if targetLang == "" {
			targetLang = cfg.Translate.TargetLanguage
		}
		outputDir := fetchOutputDir
		if outputDir == "" {
			outputDir = cfg.Paths.OutputDir()
		}

		llmClient, err := llm.NewClient(&cfg.LLM)
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		ytClient := youtube.NewClient(cfg.Paths.YtdlpBinary, cfg.Paths.TempDir)

		factory := func(progress translator.BatchProgress) translator.Translator {
			return translator.NewLLMTranslator(llmClient, translator.WithProgress(progress))
		}
		pipe := pipeline.New(ytClient, factory, pipeline.Options{
			OutputDir:  outputDir,
			BatchSize:  cfg.Translate.BatchSize,
			JobTimeout: time.Duration(cfg.Translate.JobTimeout) * time.Second,
			Progress: func(_ string, done, total int) {
				log.Info("Translated %d/%d lines", done, total)
			},
		})

		job := &jobs.TranslationJob{
			ID:     uuid.NewString(),
			Source: "cli",
			Payload: jobs.JobPayload{
				VideoURL:       videoURL,
				SourceLanguage: fetchSourceLang,
				TargetLanguage: targetLang,
				Format:         format,
				Bilingual:      fetchBilingual,
			},
		}

		result, err := pipe.Run(cmd.Context(), job)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), result.OutputFile)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchTargetLang, "lang", "", "target language (defaults to TARGET_LANGUAGE)")
	fetchCmd.Flags().StringVar(&fetchSourceLang, "source-lang", "", "source language (auto-detected when empty)")
	fetchCmd.Flags().StringVar(&fetchFormat, "format", "srt", "output format: srt or txt")
	fetchCmd.Flags().BoolVar(&fetchBilingual, "bilingual", false, "keep original text alongside the translation")
	fetchCmd.Flags().StringVar(&fetchOutputDir, "output", "", "output directory (defaults to DATA_DIR/outputs)")
}
