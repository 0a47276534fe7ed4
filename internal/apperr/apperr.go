// Package apperr defines the structured error taxonomy returned by the engine.
//
// Every failure that reaches a caller is an *Error carrying a Kind. Callers
// match kinds with errors.Is against the package sentinels:
//
//	if errors.Is(err, apperr.ErrAuthFailure) { ... }
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindRegionNotFound      Kind = "region_not_found"
	KindAmbiguousRegion     Kind = "ambiguous_region"
	KindAuthFailure         Kind = "auth_failure"
	KindRateLimited         Kind = "rate_limited"
	KindTransient           Kind = "transient_failure"
	KindPermanent           Kind = "permanent_failure"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindTimedOut            Kind = "operation_timed_out"
	KindCanceled            Kind = "canceled"
	KindInvalidInput        Kind = "invalid_input"
	KindUnknownCategory     Kind = "unknown_category"
)

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrRegionNotFound      = &Error{Kind: KindRegionNotFound}
	ErrAmbiguousRegion     = &Error{Kind: KindAmbiguousRegion}
	ErrAuthFailure         = &Error{Kind: KindAuthFailure}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrTransient           = &Error{Kind: KindTransient}
	ErrPermanent           = &Error{Kind: KindPermanent}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrTimedOut            = &Error{Kind: KindTimedOut}
	ErrCanceled            = &Error{Kind: KindCanceled}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrUnknownCategory     = &Error{Kind: KindUnknownCategory}
)

type Error struct {
	Kind       Kind
	Message    string
	Field      string
	Candidates []string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Field != "" {
		b.WriteString(" [")
		b.WriteString(e.Field)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Candidates) > 0 {
		b.WriteString(" (candidates: ")
		b.WriteString(strings.Join(e.Candidates, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so wrapped errors match the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(field, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: fmt.Sprintf(format, args...)}
}

func RegionNotFound(query string) *Error {
	return &Error{Kind: KindRegionNotFound, Field: "region", Message: fmt.Sprintf("no region matches %q", query)}
}

func AmbiguousRegion(query string, candidates []string) *Error {
	copied := make([]string, len(candidates))
	copy(copied, candidates)
	return &Error{
		Kind:       KindAmbiguousRegion,
		Field:      "region",
		Message:    fmt.Sprintf("%q matches %d regions", query, len(candidates)),
		Candidates: copied,
	}
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the failure class is retried by the upstream client.
func Retryable(kind Kind) bool {
	return kind == KindTransient || kind == KindRateLimited
}

// Payload is the wire shape of an error at the tool-call boundary.
type Payload struct {
	Kind       Kind     `json:"kind"`
	Message    string   `json:"message"`
	Field      string   `json:"field,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// ToPayload converts any error into its boundary representation. Errors that
// carry no kind are reported as permanent failures.
func ToPayload(err error) Payload {
	var e *Error
	if !errors.As(err, &e) {
		return Payload{Kind: KindPermanent, Message: err.Error()}
	}
	message := e.Message
	if message == "" && e.Err != nil {
		message = e.Err.Error()
	} else if e.Err != nil {
		message = message + ": " + e.Err.Error()
	}
	return Payload{
		Kind:       e.Kind,
		Message:    message,
		Field:      e.Field,
		Candidates: e.Candidates,
	}
}
