package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"subtube/internal/config"
	"subtube/internal/httpapi"
	"subtube/internal/jobs"
	"subtube/internal/llm"
	"subtube/internal/persistence"
	"subtube/internal/pipeline"
	"subtube/internal/platform/metrics"
	"subtube/internal/translator"
	"subtube/internal/youtube"
	"subtube/pkg/log"
)

// tempFileMaxAge bounds how long yt-dlp scratch files survive between
// cleanup runs.
const tempFileMaxAge = 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local web service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// A second instance would corrupt the queue and fight over the port;
	// refuse to start instead of waiting.
	lock := flock.New(cfg.Paths.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance is already running (lock %s held)", cfg.Paths.LockPath())
	}
	defer lock.Unlock()

	store, err := persistence.NewSQLiteStore(cfg.Paths.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	llmClient, err := llm.NewClient(&cfg.LLM)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	ytClient := youtube.NewClient(cfg.Paths.YtdlpBinary, cfg.Paths.TempDir)
	m := metrics.New()
	queue := jobs.NewQueue(1, store)

	factory := func(progress translator.BatchProgress) translator.Translator {
		return translator.NewLLMTranslator(llmClient, translator.WithProgress(progress))
	}
	pipe := pipeline.New(ytClient, factory, pipeline.Options{
		Store:         store,
		OutputDir:     cfg.Paths.OutputDir(),
		BatchSize:     cfg.Translate.BatchSize,
		JobTimeout:    time.Duration(cfg.Translate.JobTimeout) * time.Second,
		Progress:      queue.UpdateProgress,
		TitleResolved: queue.UpdateTitle,
		CacheHit:      m.IncCaptionCacheHits,
	})

	queue.Start(func(ctx context.Context, job *jobs.TranslationJob) (*jobs.Result, error) {
		start := time.Now()
		result, err := pipe.Run(ctx, job)
		m.ObserveJobDuration(time.Since(start).Seconds())
		if err != nil {
			m.IncJobs("failed")
			return nil, err
		}
		m.IncJobs("success")
		m.AddLinesTranslated(result.LineCount)
		return result, nil
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Translate.CleanupCron, func() {
		cleanup(store, cfg.Paths.TempDir)
	}); err != nil {
		return fmt.Errorf("invalid CLEANUP_CRON %q: %w", cfg.Translate.CleanupCron, err)
	}
	scheduler.Start()

	srv := httpapi.NewServer(queue, pipe,
		httpapi.WithMetrics(m),
		httpapi.WithDefaultTargetLanguage(cfg.Translate.TargetLanguage),
	)

	// Bind before reporting ready so a taken port fails immediately.
	ln, err := net.Listen("tcp", cfg.HTTP.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTP.ListenAddr(), err)
	}
	log.Info("Listening on http://%s", cfg.HTTP.ListenAddr())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	queue.Stop()
	<-scheduler.Stop().Done()
	return err
}

// cleanup drops expired cached captions and stale yt-dlp scratch files.
func cleanup(store *persistence.SQLiteStore, tempDir string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if n, err := store.DeleteExpiredCaptionCache(ctx, time.Now()); err != nil {
		log.Error("Caption cache cleanup failed: %v", err)
	} else if n > 0 {
		log.Info("Removed %d expired caption cache entries", n)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("Failed to scan temp dir %s: %v", tempDir, err)
		}
		return
	}
	cutoff := time.Now().Add(-tempFileMaxAge)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(tempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn("Failed to remove stale temp file %s: %v", path, err)
		}
	}
}
