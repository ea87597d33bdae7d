package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so that callers can decide whether it is isolated
// to one organization, aborts a workflow, or is collected per row.
type Kind string

const (
	KindActivation     Kind = "activation_error"
	KindFetchExhausted Kind = "fetch_exhausted"
	KindFetch          Kind = "fetch_error"
	KindRateLimited    Kind = "rate_limited"
	KindJobCreation    Kind = "job_creation_error"
	KindJobPollTimeout Kind = "job_poll_timeout"
	KindJobFailed      Kind = "job_failed"
	KindDownload       Kind = "download_error"
	KindTransformRow   Kind = "transform_row_error"
)

// Sentinel values for errors.Is checks against an OpError.
var (
	ErrActivation     = errors.New(string(KindActivation))
	ErrFetchExhausted = errors.New(string(KindFetchExhausted))
	ErrFetch          = errors.New(string(KindFetch))
	ErrRateLimited    = errors.New(string(KindRateLimited))
	ErrJobCreation    = errors.New(string(KindJobCreation))
	ErrJobPollTimeout = errors.New(string(KindJobPollTimeout))
	ErrJobFailed      = errors.New(string(KindJobFailed))
	ErrDownload       = errors.New(string(KindDownload))
	ErrTransformRow   = errors.New(string(KindTransformRow))
)

var sentinels = map[Kind]error{
	KindActivation:     ErrActivation,
	KindFetchExhausted: ErrFetchExhausted,
	KindFetch:          ErrFetch,
	KindRateLimited:    ErrRateLimited,
	KindJobCreation:    ErrJobCreation,
	KindJobPollTimeout: ErrJobPollTimeout,
	KindJobFailed:      ErrJobFailed,
	KindDownload:       ErrDownload,
	KindTransformRow:   ErrTransformRow,
}

// OpError is a structured error for partner API operations
type OpError struct {
	Kind       Kind
	Op         string // operation that failed (e.g. "activate", "list_licenses")
	OrgID      string // organization the operation was scoped to, if any
	StatusCode int    // HTTP status code if applicable
	Body       string // response body if applicable
	Err        error
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("%s: %s failed", e.Kind, e.Op)
	if e.OrgID != "" {
		msg += " for org " + e.OrgID
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *OpError) Is(target error) bool {
	if target == nil {
		return false
	}
	if s, ok := sentinels[e.Kind]; ok && s == target {
		return true
	}
	// 429 is retried, so it only reaches an OpError once retries are spent.
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// New creates an OpError of the given kind.
func New(kind Kind, op string, err error) *OpError {
	return &OpError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first OpError in err's chain, or "" if none.
func KindOf(err error) Kind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return ""
}

// StatusOf returns the HTTP status carried by the first OpError in err's chain.
func StatusOf(err error) int {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.StatusCode
	}
	return 0
}
