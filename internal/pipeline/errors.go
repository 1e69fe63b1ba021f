package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"subtube/internal/llm"
	"subtube/internal/youtube"
)

type ErrorType int

const (
	ErrNotFound ErrorType = iota
	ErrNoCaptions
	ErrUpstream
	ErrQuota
	ErrTimeout
	ErrParse
	ErrValidation
	ErrConfig
	ErrTranslation
	ErrUnknown
)

// PipelineError is the error type crossing the pipeline boundary. Handlers
// map its Type to HTTP status codes and user-facing advice.
type PipelineError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *PipelineError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func (e *PipelineError) WithContext(key string, value any) *PipelineError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrNotFound:
		return "NotFound"
	case ErrNoCaptions:
		return "NoCaptions"
	case ErrUpstream:
		return "Upstream"
	case ErrQuota:
		return "Quota"
	case ErrTimeout:
		return "Timeout"
	case ErrParse:
		return "Parse"
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	case ErrTranslation:
		return "Translation"
	default:
		return "Unknown"
	}
}

// Advice returns a short hint for the user on how to get past the error.
func (t ErrorType) Advice() string {
	switch t {
	case ErrNotFound:
		return "Check that the video URL is correct and the video is publicly available"
	case ErrNoCaptions:
		return "This video has no caption track in any language; try a different video"
	case ErrUpstream:
		return "An upstream service failed; the video may be private, deleted or region-locked, or the translation endpoint may be unreachable"
	case ErrQuota:
		return "The translation provider rate limit or quota was hit; wait a moment and retry, or reduce request frequency"
	case ErrTimeout:
		return "The operation took too long; retry, or increase the configured timeout for long videos"
	case ErrParse:
		return "The downloaded caption file could not be parsed; the track may be malformed"
	case ErrValidation:
		return "Check the request parameters; the video URL and target language are required"
	case ErrConfig:
		return "Check that configuration files or environment variables are set correctly"
	case ErrTranslation:
		return "An issue occurred during translation; possibly overly long text or API limits, try a smaller batch size"
	default:
		return "Review the detailed error information and check relevant configuration"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *PipelineError {
	return NewErrorWithCause(errorType, message, err)
}

// Classify folds an arbitrary error from the retrieval or translation layer
// into a typed pipeline error. Already-typed errors pass through unchanged.
func Classify(err error) *PipelineError {
	if err == nil {
		return nil
	}

	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(err, ErrTimeout, "operation timed out")
	}
	if errors.Is(err, youtube.ErrNoCaptions) {
		return WrapError(err, ErrNoCaptions, "no caption track available")
	}

	var upstream *youtube.UpstreamError
	if errors.As(err, &upstream) {
		return WrapError(err, ErrUpstream, "video platform request failed").
			WithContext("op", upstream.Op)
	}

	var transport *llm.TransportError
	if errors.As(err, &transport) {
		return WrapError(err, ErrUpstream, "translation provider unreachable or returned a malformed response").
			WithContext("op", transport.Op)
	}

	var apiErr *llm.Error
	if errors.As(err, &apiErr) {
		if apiErr.IsQuota() {
			return WrapError(err, ErrQuota, "translation provider quota exceeded")
		}
		return WrapError(err, ErrTranslation, "translation request failed")
	}

	return WrapError(err, ErrUnknown, "pipeline failure")
}
