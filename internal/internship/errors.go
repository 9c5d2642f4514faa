package internship

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	goerrors "github.com/go-errors/errors"
)

// Stage names the pipeline step an error originated from.
type Stage string

// Pipeline stages.
const (
	StageFetch   Stage = "fetch"
	StageParse   Stage = "parse"
	StagePersist Stage = "persist"
)

// Error is the single failure shape returned by every pipeline stage.
type Error struct {
	Stage Stage
	Err   error
	Stack []byte
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Stage)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StackTrace returns the stack captured when the error was created.
func (e *Error) StackTrace() []byte {
	return e.Stack
}

// NewError wraps err with a stage tag. An err that already carries a stage is
// returned unchanged so tags are never stacked.
func NewError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	var stack []byte
	var stackErr *goerrors.Error
	if errors.As(err, &stackErr) {
		stack = stackErr.Stack()
	} else {
		stack = goerrors.Wrap(err, 2).Stack()
	}
	return &Error{Stage: stage, Err: err, Stack: stack}
}

// FetchError tags err as a network, TLS or status failure.
func FetchError(err error) error {
	return NewError(StageFetch, err)
}

// ParseError tags err as an HTML parse failure.
func ParseError(err error) error {
	return NewError(StageParse, err)
}

// PersistError tags err as a database or credential failure.
func PersistError(err error) error {
	return NewError(StagePersist, err)
}

// StageOf reports the stage err originated from, if it carries one.
func StageOf(err error) (Stage, bool) {
	var stageErr *Error
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// StatusError reports a response outside the 2xx range. Its message leaves the URL
// to the fetcher's wrap.
type StatusError struct {
	URL        string
	StatusCode int
	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Permanent reports whether repeating the request cannot change the outcome.
// 4xx answers are permanent except 408 and 429.
func (e *StatusError) Permanent() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// CheckStatus returns a *StatusError unless status is 2xx. headers may be nil.
func CheckStatus(url string, status int, headers http.Header) error {
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}
	return &StatusError{URL: url, StatusCode: status, RetryAfter: retryAfter(headers)}
}

// retryAfter reads a delta-seconds Retry-After header. HTTP-date values are ignored.
func retryAfter(headers http.Header) time.Duration {
	secs, err := strconv.Atoi(headers.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
