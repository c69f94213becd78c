package errors

import (
	"fmt"
	"net/http"
)

type ApiError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Kind      string `json:"kind,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Key       string `json:"key,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

var (
	ErrBadRequest       = func(detail string) *ApiError { return New(http.StatusBadRequest, "Bad Request", detail) }
	ErrNotFound         = func(detail string) *ApiError { return New(http.StatusNotFound, "Not Found", detail) }
	ErrMethodNotAllowed = func(detail string) *ApiError { return New(http.StatusMethodNotAllowed, "Method Not Allowed", detail) }
	ErrTooManyRequests  = func(detail string) *ApiError { return New(http.StatusTooManyRequests, "Too Many Requests", detail) }
	ErrInternalServer   = func(detail string) *ApiError {
		return New(http.StatusInternalServerError, "Internal Server Error", detail)
	}
	ErrServiceUnavailable = func(detail string) *ApiError {
		return New(http.StatusServiceUnavailable, "Service Unavailable", detail)
	}
	ErrLLMProcessing = func(detail string) *ApiError {
		return New(http.StatusInternalServerError, "LLM Processing Failed", detail)
	}
	ErrRenderFailed = func(detail string) *ApiError {
		return New(http.StatusInternalServerError, "Document Rendering Failed", detail)
	}
)

func New(code int, message, detail string) *ApiError {
	return &ApiError{
		Code:    code,
		Message: message,
		Detail:  detail,
	}
}

func (e *ApiError) WithRequestID(requestID string) *ApiError {
	e.RequestID = requestID
	return e
}

func (e *ApiError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

func (e *ApiError) StatusCode() int {
	return e.Code
}

// FromError converts a pipeline error into a client-facing ApiError. Only the
// kind, the offending key and the client-safe detail are exposed; wrapped
// provider errors stay in the logs.
func FromError(err error) *ApiError {
	if err == nil {
		return nil
	}
	if apiErr, ok := asApiError(err); ok {
		return apiErr
	}

	e, ok := asError(err)
	if !ok {
		return ErrInternalServer("unexpected server error occurred")
	}

	var out *ApiError
	switch e.Kind {
	case InvalidUpload, InvalidDocument:
		out = ErrBadRequest(e.clientDetail())
	case MalformedResponse, RewriteUnavailable:
		out = ErrLLMProcessing(e.clientDetail())
	case RenderFailure, UnresolvedPlaceholder:
		out = ErrRenderFailed(e.clientDetail())
	default:
		out = ErrInternalServer(e.clientDetail())
	}
	out.Kind = e.Kind.String()
	out.Key = e.Key
	return out
}
