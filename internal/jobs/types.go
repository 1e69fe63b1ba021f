package jobs

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

// JobPayload describes one translation request.
type JobPayload struct {
	VideoURL       string `json:"video_url"`
	VideoID        string `json:"video_id"`
	Title          string `json:"title,omitempty"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language"`
	Format         string `json:"format"`
	Bilingual      bool   `json:"bilingual"`
}

// DedupeKey derives the queue dedupe key for a payload. Two requests for
// the same video with the same output settings coalesce into one job.
func (p JobPayload) DedupeKey() string {
	return fmt.Sprintf("%s|%s|%s|%s|%v",
		p.VideoID, p.SourceLanguage, p.TargetLanguage, p.Format, p.Bilingual)
}

// Progress tracks how many subtitle lines have been translated so far.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Result is produced by the executor on success.
type Result struct {
	OutputFile     string `json:"output_file"`
	SourceLanguage string `json:"source_language"`
	LineCount      int    `json:"line_count"`
}

type TranslationJob struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Progress  Progress   `json:"progress"`
	Result    *Result    `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
