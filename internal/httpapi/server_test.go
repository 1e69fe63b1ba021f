package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtube/internal/jobs"
	"subtube/internal/pipeline"
	"subtube/internal/platform/metrics"
	"subtube/internal/subtitle"
	"subtube/internal/youtube"
)

type fakeProber struct {
	info *youtube.VideoInfo
	err  error
}

func (f *fakeProber) Probe(ctx context.Context, url string) (*youtube.VideoInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func testServer(t *testing.T, queue *jobs.Queue, prober Prober, opts ...Option) *Server {
	t.Helper()
	if prober == nil {
		info, err := youtube.ParseVideoInfo([]byte(`{
			"id": "dQw4w9WgXcQ",
			"title": "Sample video",
			"duration": 212,
			"uploader": "sample channel",
			"subtitles": {"en": [{"ext": "vtt"}]},
			"automatic_captions": {"ja": [{"ext": "vtt"}]}
		}`))
		require.NoError(t, err)
		prober = &fakeProber{info: info}
	}
	return NewServer(queue, prober, opts...)
}

func postJSON(t *testing.T, srv *Server, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_CreateJob(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil)

	rec := postJSON(t, srv, "/api/jobs",
		`{"video_url":"https://youtu.be/dQw4w9WgXcQ","target_language":"de","format":"srt","bilingual":true}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var ret struct {
		Created bool                 `json:"created"`
		Job     *jobs.TranslationJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))
	require.True(t, ret.Created)
	require.NotNil(t, ret.Job)
	assert.Equal(t, "dQw4w9WgXcQ", ret.Job.Payload.VideoID)
	assert.Equal(t, "de", ret.Job.Payload.TargetLanguage)
	assert.Equal(t, subtitle.FormatSRT, ret.Job.Payload.Format)
	assert.True(t, ret.Job.Payload.Bilingual)
	assert.Equal(t, jobs.StatusPending, ret.Job.Status)
}

func TestServer_CreateJob_DuplicateReturnsExisting(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil)

	body := `{"video_url":"https://youtu.be/dQw4w9WgXcQ","target_language":"de"}`
	first := postJSON(t, srv, "/api/jobs", body)
	require.Equal(t, http.StatusCreated, first.Code)

	second := postJSON(t, srv, "/api/jobs", body)
	require.Equal(t, http.StatusOK, second.Code)

	var ret struct {
		Created bool `json:"created"`
	}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &ret))
	assert.False(t, ret.Created)
}

func TestServer_CreateJob_RejectsBadInput(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{"target_language":"de"}`},
		{"unrecognizable url", `{"video_url":"https://example.com/watch","target_language":"de"}`},
		{"bad format", `{"video_url":"https://youtu.be/dQw4w9WgXcQ","format":"pdf"}`},
		{"not json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, srv, "/api/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServer_GetJob(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil)

	rec := postJSON(t, srv, "/api/jobs", `{"video_url":"https://youtu.be/dQw4w9WgXcQ","target_language":"de"}`)
	var ret struct {
		Job *jobs.TranslationJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))

	getRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+ret.Job.ID, nil))
	require.Equal(t, http.StatusOK, getRec.Code)

	missingRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(missingRec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestServer_ListJobs(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil)

	postJSON(t, srv, "/api/jobs", `{"video_url":"https://youtu.be/dQw4w9WgXcQ","target_language":"de"}`)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list []*jobs.TranslationJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
}

func TestServer_TranslateSync(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	queue.Start(func(_ context.Context, job *jobs.TranslationJob) (*jobs.Result, error) {
		return &jobs.Result{OutputFile: "/tmp/out.srt", SourceLanguage: "en", LineCount: 3}, nil
	})
	defer queue.Stop()

	srv := testServer(t, queue, nil)

	rec := postJSON(t, srv, "/api/translate", `{"video_url":"https://youtu.be/dQw4w9WgXcQ","target_language":"de"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var final jobs.TranslationJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &final))
	assert.Equal(t, jobs.StatusSuccess, final.Status)
	require.NotNil(t, final.Result)
	assert.Equal(t, 3, final.Result.LineCount)
}

func TestServer_TranslateSync_FailedJob(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	queue.Start(func(_ context.Context, _ *jobs.TranslationJob) (*jobs.Result, error) {
		return nil, pipeline.NewError(pipeline.ErrNoCaptions, "no caption track available")
	})
	defer queue.Stop()

	srv := testServer(t, queue, nil)

	rec := postJSON(t, srv, "/api/translate", `{"video_url":"https://youtu.be/dQw4w9WgXcQ","target_language":"de"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var final jobs.TranslationJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &final))
	assert.Equal(t, jobs.StatusFailed, final.Status)
	assert.Contains(t, final.Error, "NoCaptions")
}

func TestServer_VideoInfo(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/videos/info?url=https://youtu.be/dQw4w9WgXcQ", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info struct {
		ID              string   `json:"id"`
		Title           string   `json:"title"`
		ManualLanguages []string `json:"manual_languages"`
		AutoLanguages   []string `json:"auto_languages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "dQw4w9WgXcQ", info.ID)
	assert.Equal(t, []string{"en"}, info.ManualLanguages)
	assert.Equal(t, []string{"ja"}, info.AutoLanguages)
}

func TestServer_VideoInfo_UpstreamErrors(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, &fakeProber{err: &youtube.UpstreamError{Op: "probe", Stderr: "unavailable"}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/videos/info?url=https://youtu.be/dQw4w9WgXcQ", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var payload struct {
		Type   string `json:"type"`
		Advice string `json:"advice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Upstream", payload.Type)
	assert.NotEmpty(t, payload.Advice)
}

func TestServer_VideoInfo_RequiresURL(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/videos/info", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func completedJob(t *testing.T, queue *jobs.Queue, srv *Server, format string) *jobs.TranslationJob {
	t.Helper()
	rec := postJSON(t, srv, "/api/jobs",
		`{"video_url":"https://youtu.be/dQw4w9WgXcQ","target_language":"de","format":"`+format+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var ret struct {
		Job *jobs.TranslationJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	final, err := queue.Wait(ctx, ret.Job.ID)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusSuccess, final.Status)
	return final
}

func TestServer_Download(t *testing.T) {
	dir := t.TempDir()
	outputFile := filepath.Join(dir, "out.srt")
	srt := "1\n00:00:00,000 --> 00:00:02,000\nHallo\n\n2\n00:00:02,000 --> 00:00:05,000\nWelt\n\n"
	require.NoError(t, os.WriteFile(outputFile, []byte(srt), 0o644))

	queue := jobs.NewQueue(1, nil)
	queue.Start(func(_ context.Context, _ *jobs.TranslationJob) (*jobs.Result, error) {
		return &jobs.Result{OutputFile: outputFile, SourceLanguage: "en", LineCount: 2}, nil
	})
	defer queue.Stop()

	srv := testServer(t, queue, nil)
	job := completedJob(t, queue, srv, "srt")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `"out.srt"`)
	assert.Contains(t, rec.Body.String(), "Hallo")

	// Plain-text conversion strips the timing lines and swaps the extension.
	txtRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(txtRec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID+"/download?format=txt", nil))
	require.Equal(t, http.StatusOK, txtRec.Code)
	assert.Contains(t, txtRec.Header().Get("Content-Disposition"), `"out.txt"`)
	assert.NotContains(t, txtRec.Body.String(), "-->")
	assert.Contains(t, txtRec.Body.String(), "Hallo")
}

func TestServer_Download_NotReady(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil)

	rec := postJSON(t, srv, "/api/jobs", `{"video_url":"https://youtu.be/dQw4w9WgXcQ","target_language":"de"}`)
	var ret struct {
		Job *jobs.TranslationJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))

	dlRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(dlRec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+ret.Job.ID+"/download", nil))
	assert.Equal(t, http.StatusConflict, dlRec.Code)
}

func TestServer_JobStream(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil)

	postJSON(t, srv, "/api/jobs", `{"video_url":"https://youtu.be/dQw4w9WgXcQ","target_language":"de"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "data: "))
	assert.Contains(t, body, "dQw4w9WgXcQ")
}

func TestServer_IndexServesUI(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "subtube")
	assert.Contains(t, rec.Body.String(), "/api/jobs/stream")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := testServer(t, queue, nil, WithMetrics(metrics.New()))

	postJSON(t, srv, "/api/jobs", `{"video_url":"https://youtu.be/dQw4w9WgXcQ","target_language":"de"}`)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "subtube_requests_total")
	assert.Contains(t, rec.Body.String(), "subtube_active_jobs 1")
}
