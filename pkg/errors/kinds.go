package errors

import (
	stderrors "errors"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	Unknown Kind = iota
	InvalidUpload
	InvalidDocument
	MalformedResponse
	RewriteUnavailable
	StorageFailure
	RenderFailure
	UnresolvedPlaceholder
)

func (k Kind) String() string {
	switch k {
	case InvalidUpload:
		return "invalid_upload"
	case InvalidDocument:
		return "invalid_document"
	case MalformedResponse:
		return "malformed_response"
	case RewriteUnavailable:
		return "rewrite_unavailable"
	case StorageFailure:
		return "storage_failure"
	case RenderFailure:
		return "render_failure"
	case UnresolvedPlaceholder:
		return "unresolved_placeholder"
	default:
		return "unknown"
	}
}

func (k Kind) message() string {
	switch k {
	case InvalidUpload:
		return "invalid upload"
	case InvalidDocument:
		return "document could not be read"
	case MalformedResponse:
		return "rewrite service returned a malformed response"
	case RewriteUnavailable:
		return "rewrite service unavailable"
	case StorageFailure:
		return "storage write failed"
	case RenderFailure:
		return "document rendering failed"
	case UnresolvedPlaceholder:
		return "template references unknown section"
	default:
		return "unexpected error"
	}
}

// Error is a classified pipeline error. Detail is safe to show to clients;
// Err may carry provider output and is only logged.
type Error struct {
	Kind   Kind
	Op     string
	Key    string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.message())
	if e.Key != "" {
		b.WriteString(" (key ")
		b.WriteString(e.Key)
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Key == "" || t.Key == e.Key)
}

func (e *Error) clientDetail() string {
	msg := e.Kind.message()
	if e.Key != "" {
		msg += ": " + e.Key
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// E builds an *Error of the given kind for operation op wrapping err (which
// may be nil).
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if e, ok := asError(err); ok {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind. UnresolvedPlaceholder also
// counts as a RenderFailure.
func Is(err error, kind Kind) bool {
	k := KindOf(err)
	if k == kind {
		return true
	}
	return kind == RenderFailure && k == UnresolvedPlaceholder
}

// As calls the standard library errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func asError(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func asApiError(err error) (*ApiError, bool) {
	var e *ApiError
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}
