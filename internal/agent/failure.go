// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package agent

import (
	"errors"
	"fmt"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// Reason classifies why a run failed.
type Reason string

const (
	ReasonLoopBudgetExceeded Reason = "LoopBudgetExceeded"
	ReasonTimeout            Reason = "Timeout"
	ReasonTruncatedResponse  Reason = "TruncatedResponse"
	ReasonProviderError      Reason = "ProviderError"
	ReasonPathCollision      Reason = "PathCollision"
	ReasonToolFailure        Reason = "ToolFailure"
	ReasonInvalidResponse    Reason = "InvalidResponse"
	ReasonCancelled          Reason = "Cancelled"
)

var reasonCodes = map[Reason]mosaicerr.Code{
	ReasonLoopBudgetExceeded: mosaicerr.CodeAgentLoopBudgetExceeded,
	ReasonTimeout:            mosaicerr.CodeAgentLoopTimeout,
	ReasonTruncatedResponse:  mosaicerr.CodeAgentLoopTruncated,
}

// Failure is the error Run returns when the loop ends without an answer.
type Failure struct {
	Reason  Reason
	Message string
	// Iterations is the number of completion calls issued.
	Iterations int
	err        error
}

func newFailure(reason Reason, iterations int, cause error, format string, args ...any) *Failure {
	msg := fmt.Sprintf(format, args...)
	code, ok := reasonCodes[reason]
	if !ok {
		code = mosaicerr.CodeAgentLoopFailure
	}

	var err error
	if cause != nil {
		err = mosaicerr.Wrap(cause, code, msg, mosaicerr.Field("reason", string(reason)))
	} else {
		err = mosaicerr.New(code, msg, mosaicerr.Field("reason", string(reason)))
	}
	return &Failure{Reason: reason, Message: msg, Iterations: iterations, err: err}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("agent failed (%s): %s", f.Reason, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.err
}

// ReasonOf returns the failure reason carried by err, or "" when err is not
// a *Failure.
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}
