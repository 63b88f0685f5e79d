package billing

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind names a class of pipeline failure. The value is stored in
// webhook_logs.error_kind.
type ErrorKind string

const (
	KindTransport         ErrorKind = "TransportError"
	KindAuthenticity      ErrorKind = "AuthenticityError"
	KindExtraction        ErrorKind = "ExtractionError"
	KindDuplicate         ErrorKind = "DuplicateEvent"
	KindUserResolution    ErrorKind = "UserResolutionError"
	KindStateTransition   ErrorKind = "StateTransitionError"
	KindProcessingTimeout ErrorKind = "ProcessingTimeout"
	KindInternal          ErrorKind = "InternalError"
)

var (
	ErrTransport         = errors.New("unparsable webhook payload")
	ErrAuthenticity      = errors.New("webhook signature rejected")
	ErrExtraction        = errors.New("required field missing from payload")
	ErrDuplicateEvent    = errors.New("event already processed")
	ErrUserResolution    = errors.New("user account could not be resolved")
	ErrStateTransition   = errors.New("no valid subscription transition")
	ErrProcessingTimeout = errors.New("webhook processing timed out")
	ErrInternal          = errors.New("internal pipeline failure")

	ErrUnknownProvider = errors.New("unknown webhook provider")
)

var sentinels = map[ErrorKind]error{
	KindTransport:         ErrTransport,
	KindAuthenticity:      ErrAuthenticity,
	KindExtraction:        ErrExtraction,
	KindDuplicate:         ErrDuplicateEvent,
	KindUserResolution:    ErrUserResolution,
	KindStateTransition:   ErrStateTransition,
	KindProcessingTimeout: ErrProcessingTimeout,
	KindInternal:          ErrInternal,
}

// PipelineError is a classified failure raised by one pipeline stage.
type PipelineError struct {
	Kind ErrorKind
	Err  error
	// DuplicateOf is the log that first applied the event (DuplicateEvent only).
	DuplicateOf uint
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrExtraction) match any PipelineError of that kind.
func (e *PipelineError) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

func newPipelineError(kind ErrorKind, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func wrapPipelineError(kind ErrorKind, err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &PipelineError{Kind: KindProcessingTimeout, Err: err}
	}
	return &PipelineError{Kind: kind, Err: err}
}

// KindOf classifies err. Unclassified errors are reported as InternalError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindProcessingTimeout
	}
	return KindInternal
}
