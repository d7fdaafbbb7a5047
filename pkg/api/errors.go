package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnauthorized is returned when the backend rejects the bearer credential.
var ErrUnauthorized = errors.New("api: unauthorized")

// NetworkError wraps a transport-level failure (DNS, refused, timeout, bad JSON).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("api: %s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-success response carrying the server's message.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == 401
}

// FormError is the backend's field/detail error map for login and
// registration. Field messages are joined when the server sends a list.
type FormError struct {
	Status int
	Fields map[string]string
	Detail string
}

func (e *FormError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.Fields) == 0 {
		return fmt.Sprintf("request failed (status %d)", e.Status)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// newFormError converts a decoded error body into a FormError.
func newFormError(status int, body map[string]any, fallback string) *FormError {
	fe := &FormError{Status: status, Fields: map[string]string{}}
	for field, v := range body {
		msg := flatten(v)
		if msg == "" {
			continue
		}
		if field == "detail" {
			fe.Detail = msg
			continue
		}
		fe.Fields[field] = msg
	}
	if fe.Detail == "" && len(fe.Fields) == 0 {
		fe.Detail = fallback
	}
	return fe
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
