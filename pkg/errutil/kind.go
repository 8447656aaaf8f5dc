// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

// Package errutil holds the error kinds surfaced to callers together with
// logging and test helpers for oops errors.
package errutil

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for the caller. The zero value is KindInternal.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindBadRequest
	KindTooManyRequests
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindTooManyRequests:
		return "too_many_requests"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind onto a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error tags an optional cause with a Kind and a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Tag wraps err with kind and msg. err may be nil.
func Tag(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// NotFound returns a KindNotFound error.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Unauthorized returns a KindUnauthorized error.
func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// BadRequest returns a KindBadRequest error.
func BadRequest(msg string) error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

// TooManyRequests returns a KindTooManyRequests error.
func TooManyRequests(msg string) error {
	return &Error{Kind: KindTooManyRequests, Message: msg}
}

// KindOf returns the kind of the outermost tagged error in err's chain,
// or KindInternal when nothing in the chain is tagged.
func KindOf(err error) Kind {
	kind, _ := kindOf(err)
	return kind
}

// Message returns the caller-facing message of the outermost tagged error,
// falling back to err.Error().
func Message(err error) string {
	var tagged *Error
	if errors.As(err, &tagged) && tagged.Message != "" {
		return tagged.Message
	}
	return err.Error()
}

func kindOf(err error) (Kind, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind, true
	}
	return KindInternal, false
}
