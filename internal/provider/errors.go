// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// ErrorKind says whether a failed call may succeed if retried.
type ErrorKind int

const (
	// Transient failures (rate limits, timeouts, 5xx, connection errors)
	// may be retried.
	Transient ErrorKind = iota
	// Fatal failures (auth, invalid request) must not be retried.
	Fatal
)

func (k ErrorKind) String() string {
	if k == Fatal {
		return "fatal"
	}
	return "transient"
}

// Error is the only error type adapters return from Complete.
type Error struct {
	Kind     ErrorKind
	Provider string
	// StatusCode is the vendor HTTP status, or 0 when no response arrived.
	StatusCode int
	Message    string
	err        error
}

// NewError classifies a vendor failure by HTTP status. A zero status means
// the request never got a response and is treated as transient.
func NewError(providerName string, status int, msg string, cause error) *Error {
	kind := KindForStatus(status)
	if status == 0 && isCallerCancellation(cause) {
		kind = Fatal
	}
	return &Error{
		Kind:       kind,
		Provider:   providerName,
		StatusCode: status,
		Message:    msg,
		err: mosaicerr.Wrap(orMessage(cause, msg), codeForStatus(status),
			"provider call failed",
			mosaicerr.FieldProvider(providerName),
			mosaicerr.Field("status", status),
		),
	}
}

// NewResponseError reports a reply that could not be understood.
func NewResponseError(providerName, msg string) *Error {
	return &Error{
		Kind:     Fatal,
		Provider: providerName,
		Message:  msg,
		err:      mosaicerr.New(mosaicerr.CodeProviderResponseInvalid, msg, mosaicerr.FieldProvider(providerName)),
	}
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s error (HTTP %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Transient reports whether the call may be retried.
func (e *Error) Transient() bool {
	return e.Kind == Transient
}

// IsTransient reports whether err carries a transient *Error.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Transient()
}

// KindForStatus maps an HTTP status to an ErrorKind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 0:
		return Transient
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status == http.StatusConflict:
		return Transient
	case status >= http.StatusInternalServerError:
		return Transient
	default:
		return Fatal
	}
}

func codeForStatus(status int) mosaicerr.Code {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return mosaicerr.CodeProviderAuthUnauthorized
	case status == http.StatusTooManyRequests:
		return mosaicerr.CodeProviderRateLimitExceeded
	case status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusConflict:
		return mosaicerr.CodeProviderRequestInvalid
	default:
		return mosaicerr.CodeProviderUpstreamFailure
	}
}

func isCallerCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

func orMessage(err error, msg string) error {
	if err != nil {
		return err
	}
	return errors.New(msg)
}
