package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateInput    = errors.New("duplicate input")
	ErrTransientExternal = errors.New("transient external failure")
	ErrMalformedOutput   = errors.New("malformed output")
	ErrAssetMissing      = errors.New("asset missing")
	ErrDurationMismatch  = errors.New("duration mismatch")
	ErrRender            = errors.New("render error")
	ErrUpload            = errors.New("upload error")
	ErrConfiguration     = errors.New("configuration error")
)

// Kind is the persisted classification of a stage failure. The workflow
// manager decides between retry, review, and failure from the kind alone.
type Kind string

const (
	KindNone              Kind = ""
	KindDuplicateInput    Kind = "duplicate_input"
	KindTransientExternal Kind = "transient_external"
	KindMalformedOutput   Kind = "malformed_output"
	KindAssetMissing      Kind = "asset_missing"
	KindDurationMismatch  Kind = "duration_mismatch"
	KindRender            Kind = "render"
	KindUpload            Kind = "upload"
	KindConfiguration     Kind = "configuration"
)

var kindMarkers = []struct {
	marker error
	kind   Kind
}{
	{ErrDuplicateInput, KindDuplicateInput},
	{ErrMalformedOutput, KindMalformedOutput},
	{ErrAssetMissing, KindAssetMissing},
	{ErrDurationMismatch, KindDurationMismatch},
	{ErrRender, KindRender},
	{ErrUpload, KindUpload},
	{ErrConfiguration, KindConfiguration},
	{ErrTransientExternal, KindTransientExternal},
}

// StageError carries stage context alongside a classification marker.
type StageError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Hint      string
	Err       error
}

func (e *StageError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransientExternal
	}
	return &StageError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// WithHint attaches an operator hint to a StageError. Other errors are
// returned unchanged.
func WithHint(err error, hint string) error {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		stageErr.Hint = strings.TrimSpace(hint)
	}
	return err
}

// ErrorDetails is the structured view of a classified error used in logs and
// notifications.
type ErrorDetails struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     string
}

// Details extracts the stage context and classification from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	kind := KindOf(err)
	details := ErrorDetails{Kind: kind, Message: err.Error(), Hint: kind.Hint()}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		details.Stage = stageErr.Stage
		details.Operation = stageErr.Operation
		details.Message = stageErr.Message
		if stageErr.Hint != "" {
			details.Hint = stageErr.Hint
		}
		if stageErr.Err != nil {
			details.Cause = stageErr.Err.Error()
		}
	}
	return details
}

// Terminal reports whether err must not be retried.
func Terminal(err error) bool {
	return err != nil && !KindOf(err).Retryable()
}

// KindOf classifies err. Errors that carry no marker are treated as transient
// so a per-call deadline expiring counts as a retryable provider failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, km := range kindMarkers {
		if errors.Is(err, km.marker) {
			return km.kind
		}
	}
	return KindTransientExternal
}

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransientExternal, KindMalformedOutput:
		return true
	default:
		return false
	}
}

// Marker returns the sentinel error for the kind.
func (k Kind) Marker() error {
	for _, km := range kindMarkers {
		if km.kind == k {
			return km.marker
		}
	}
	return ErrTransientExternal
}

// ParseKind converts a persisted kind string back into a Kind.
func ParseKind(value string) Kind {
	value = strings.TrimSpace(strings.ToLower(value))
	for _, km := range kindMarkers {
		if string(km.kind) == value {
			return km.kind
		}
	}
	return KindNone
}

// Hint returns a short operator-facing next step for the kind.
func (k Kind) Hint() string {
	switch k {
	case KindTransientExternal:
		return "provider unavailable or rate limited; the job retries automatically"
	case KindMalformedOutput:
		return "provider returned unusable output; inspect the response or adjust prompts"
	case KindAssetMissing:
		return "an upstream artifact is missing on disk; resubmit from the producing stage"
	case KindDurationMismatch:
		return "segment or narration durations are invalid; check the audio stage output"
	case KindRender:
		return "ffmpeg failed; inspect the render log and ffmpeg installation"
	case KindUpload:
		return "upload failed; the fallback notification carries the local video path"
	case KindDuplicateInput:
		return "the url was already submitted"
	case KindConfiguration:
		return "fix the configuration and resubmit the job"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
