package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"subtube/internal/jobs"
	"subtube/internal/pipeline"
	"subtube/internal/subtitle"
	"subtube/internal/youtube"
	"subtube/pkg/file"
)

type enqueueJobRequest struct {
	Source         string `json:"source"`
	VideoURL       string `json:"video_url"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Format         string `json:"format"`
	Bilingual      bool   `json:"bilingual"`
}

// buildPayload validates the request and normalizes it into a job payload.
func (s *Server) buildPayload(req enqueueJobRequest) (jobs.JobPayload, error) {
	if strings.TrimSpace(req.VideoURL) == "" {
		return jobs.JobPayload{}, fmt.Errorf("video_url is required")
	}
	videoID, ok := youtube.ExtractVideoID(req.VideoURL)
	if !ok {
		return jobs.JobPayload{}, fmt.Errorf("video_url is not a recognizable video reference")
	}

	format := subtitle.FormatSRT
	switch strings.ToUpper(strings.TrimSpace(req.Format)) {
	case "", "SRT":
	case "TXT", "TEXT":
		format = subtitle.FormatText
	default:
		return jobs.JobPayload{}, fmt.Errorf("format must be srt or txt")
	}

	target := strings.TrimSpace(req.TargetLanguage)
	if target == "" {
		target = s.defaultTargetLang
	}

	return jobs.JobPayload{
		VideoURL:       strings.TrimSpace(req.VideoURL),
		VideoID:        videoID,
		SourceLanguage: strings.TrimSpace(req.SourceLanguage),
		TargetLanguage: target,
		Format:         format,
		Bilingual:      req.Bilingual,
	}, nil
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	payload, err := s.buildPayload(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Source == "" {
		req.Source = "web"
	}

	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    req.Source,
		DedupeKey: payload.DedupeKey(),
		Payload:   payload,
	})
	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"created": created,
		"job":     job,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.queue.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleTranslateSync enqueues a job and blocks until it finishes, serving
// clients that want a single round trip instead of polling.
func (s *Server) handleTranslateSync(w http.ResponseWriter, r *http.Request) {
	var req enqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	payload, err := s.buildPayload(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, _ := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    "sync",
		DedupeKey: payload.DedupeKey(),
		Payload:   payload,
	})

	ctx, cancel := context.WithTimeout(r.Context(), s.syncWaitTimeout)
	defer cancel()

	final, err := s.queue.Wait(ctx, job.ID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "translation did not finish in time; poll /api/jobs/"+job.ID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if final.Status == jobs.StatusFailed {
		writeJSON(w, http.StatusBadGateway, final)
		return
	}
	writeJSON(w, http.StatusOK, final)
}

func (s *Server) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	if _, ok := youtube.ExtractVideoID(url); !ok {
		writeError(w, http.StatusBadRequest, "url is not a recognizable video reference")
		return
	}

	info, err := s.prober.Probe(r.Context(), url)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":               info.ID,
		"title":            info.Title,
		"duration":         info.Duration,
		"uploader":         info.Uploader,
		"manual_languages": info.ManualLanguages(),
		"auto_languages":   info.AutoLanguages(),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.queue.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status != jobs.StatusSuccess || job.Result == nil {
		writeError(w, http.StatusConflict, "job has no downloadable result yet")
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "", "srt", "txt":
	default:
		writeError(w, http.StatusBadRequest, "format must be srt or txt")
		return
	}

	// The rendered file already carries the video id, sanitized title and
	// target language in its name.
	name := filepath.Base(job.Result.OutputFile)

	// Plain-text conversion re-reads the rendered SRT; a job rendered as
	// text has no timings left to rebuild an SRT from.
	if format == "txt" && job.Payload.Format == subtitle.FormatSRT {
		track, err := subtitle.ReadSRTFile(job.Result.OutputFile)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "result file is no longer readable")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.ReplaceExt(name, ".txt")))
		_ = subtitle.WritePlainText(w, track, subtitle.RenderOptions{IncludeOriginal: true})
		return
	}
	if format == "srt" && job.Payload.Format == subtitle.FormatText {
		writeError(w, http.StatusBadRequest, "job output is plain text; SRT is not available")
		return
	}

	f, err := os.Open(job.Result.OutputFile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "result file is no longer readable")
		return
	}
	defer f.Close()

	contentType := "application/x-subrip"
	if job.Payload.Format == subtitle.FormatText {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, job.UpdatedAt, f)
}

func writePipelineError(w http.ResponseWriter, err error) {
	perr := pipeline.Classify(err)
	writeJSON(w, statusForErrorType(perr.Type), map[string]any{
		"error":  perr.Message,
		"type":   perr.Type.String(),
		"advice": perr.Type.Advice(),
	})
}

func statusForErrorType(t pipeline.ErrorType) int {
	switch t {
	case pipeline.ErrValidation:
		return http.StatusBadRequest
	case pipeline.ErrNotFound, pipeline.ErrNoCaptions:
		return http.StatusNotFound
	case pipeline.ErrQuota:
		return http.StatusTooManyRequests
	case pipeline.ErrTimeout:
		return http.StatusGatewayTimeout
	case pipeline.ErrUpstream, pipeline.ErrParse, pipeline.ErrTranslation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
