package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"subtube/internal/jobs"
	"subtube/internal/subtitle"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "subtube.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_JobsRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	job := &jobs.TranslationJob{
		ID:        "0e3a9c1c-6a55-4bd3-9e53-1f1f3c7a0001",
		Source:    "web",
		DedupeKey: "dQw4w9WgXcQ|en|es|SRT|false",
		Payload: jobs.JobPayload{
			VideoURL:       "https://youtu.be/dQw4w9WgXcQ",
			VideoID:        "dQw4w9WgXcQ",
			Title:          "Sample video",
			SourceLanguage: "en",
			TargetLanguage: "es",
			Format:         "SRT",
			Bilingual:      true,
		},
		Status:    jobs.StatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, job.ID, all[0].ID)
	assert.Equal(t, job.Status, all[0].Status)
	assert.Equal(t, job.Payload, all[0].Payload)
	assert.Nil(t, all[0].Result)

	// Terminal update carries the result through a restart.
	job.Status = jobs.StatusSuccess
	job.Result = &jobs.Result{OutputFile: "/data/out.srt", SourceLanguage: "en", LineCount: 42}
	require.NoError(t, store.UpsertJob(ctx, job))

	all, err = store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Result)
	assert.Equal(t, 42, all[0].Result.LineCount)
}

func TestSQLiteStore_CheckpointRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	jobID := "job-1"

	require.NoError(t, store.SaveBatchCheckpoint(ctx, jobID, 0, 2, []string{"a", "b"}))
	require.NoError(t, store.SaveBatchCheckpoint(ctx, jobID, 2, 4, []string{"c", "d"}))

	cps, err := store.LoadBatchCheckpoints(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, 0, cps[0].BatchStart)
	assert.Equal(t, []string{"a", "b"}, cps[0].TranslatedLines)

	require.NoError(t, store.DeleteJobData(ctx, jobID))
	cps, err = store.LoadBatchCheckpoints(ctx, jobID)
	require.NoError(t, err)
	assert.Empty(t, cps)
}

func TestSQLiteStore_CaptionCacheRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := CaptionCacheEntry{
		VideoID:  "dQw4w9WgXcQ",
		Language: "en",
		Auto:     false,
		Track: subtitle.Track{
			Language: language.English,
			Format:   subtitle.FormatSRT,
			Lines: []subtitle.Line{
				{Index: 1, StartTime: 0, EndTime: 2 * time.Second, Text: "Hello"},
			},
		},
		ExpiresAt: now.Add(time.Hour),
		UpdatedAt: now,
	}
	require.NoError(t, store.PutCaptionCache(ctx, entry))

	cached, ok, err := store.GetCaptionCache(ctx, "dQw4w9WgXcQ", "en", now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, language.English, cached.Language)
	require.Len(t, cached.Lines, 1)
	assert.Equal(t, "Hello", cached.Lines[0].Text)

	// Expired entries are invisible.
	_, ok, err = store.GetCaptionCache(ctx, "dQw4w9WgXcQ", "en", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_DeleteExpiredCaptionCache(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.PutCaptionCache(ctx, CaptionCacheEntry{
		VideoID:   "old-video-id",
		Language:  "en",
		Track:     subtitle.Track{Language: language.English},
		ExpiresAt: now.Add(-time.Minute),
	}))
	require.NoError(t, store.PutCaptionCache(ctx, CaptionCacheEntry{
		VideoID:   "new-video-id",
		Language:  "en",
		Track:     subtitle.Track{Language: language.English},
		ExpiresAt: now.Add(time.Hour),
	}))

	deleted, err := store.DeleteExpiredCaptionCache(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, ok, err := store.GetCaptionCache(ctx, "new-video-id", "en", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStore_MigrationsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "subtube.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening the same database must not re-apply migrations.
	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
