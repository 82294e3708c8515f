// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := mosaicerr.New(
		mosaicerr.CodeToolRegisterConflict,
		"tool already registered",
		mosaicerr.FieldTool("read_file"),
		mosaicerr.FieldProvider("anthropic"),
	)

	require.Error(t, err)
	assert.Equal(t, mosaicerr.CodeToolRegisterConflict, mosaicerr.CodeOf(err))
	assert.True(t, mosaicerr.HasCode(err, mosaicerr.CodeToolRegisterConflict))
	assert.True(t, mosaicerr.IsConflict(err))

	fields := mosaicerr.FieldsOf(err)
	assert.Equal(t, "read_file", fields["tool"])
	assert.Equal(t, "anthropic", fields["provider"])
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := mosaicerr.Errorf(mosaicerr.CodeConfigValidateInvalidValue, "config: agent.max_iterations must be positive, got %d", -1)
	require.Error(t, err)
	assert.Equal(t, mosaicerr.CodeConfigValidateInvalidValue, mosaicerr.CodeOf(err))
	assert.Contains(t, err.Error(), "got -1")
	assert.True(t, mosaicerr.IsInvalidInput(err))
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := mosaicerr.Errorf(mosaicerr.CodeSafeWriteFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf / With
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("no such key")
	err := mosaicerr.Wrap(root, mosaicerr.CodeSecretNotFound, "loading secret", mosaicerr.Field("service", "mosaic"))

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, mosaicerr.IsNotFound(err))
	assert.Equal(t, "mosaic", mosaicerr.FieldsOf(err)["service"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, mosaicerr.Wrap(nil, mosaicerr.CodeCLIRunFailure, "ignored"))
	assert.NoError(t, mosaicerr.Wrapf(nil, mosaicerr.CodeCLIRunFailure, "ignored %s", "arg"))
	assert.NoError(t, mosaicerr.With(nil, mosaicerr.FieldTool("x")))
}

func TestWrapfFormatsAndPreservesChain(t *testing.T) {
	root := stderrors.New("connection reset")
	err := mosaicerr.Wrapf(root, mosaicerr.CodeProviderUpstreamFailure, "calling %s model %s", "openai", "gpt-4.1")

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, mosaicerr.IsUpstreamFailure(err))
	assert.Contains(t, err.Error(), "calling openai model gpt-4.1")
}

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	base := mosaicerr.New(mosaicerr.CodeSafeWritePathCollision, "no free name")
	withCtx := mosaicerr.With(base, mosaicerr.FieldPath("src/App.tsx"))

	assert.Equal(t, mosaicerr.CodeSafeWritePathCollision, mosaicerr.CodeOf(withCtx))
	assert.Equal(t, "src/App.tsx", mosaicerr.FieldsOf(withCtx)["path"])
}

func TestWithOnPlainErrorDefaultsToLoopFailure(t *testing.T) {
	enriched := mosaicerr.With(stderrors.New("boom"), mosaicerr.FieldModel("m"))
	assert.Equal(t, mosaicerr.CodeAgentLoopFailure, mosaicerr.CodeOf(enriched))
}

func TestCodeOfReturnsInnermostCodedError(t *testing.T) {
	inner := mosaicerr.New(mosaicerr.CodeAgentLoopTimeout, "deadline")
	outer := mosaicerr.Wrap(inner, mosaicerr.CodeCLIRunFailure, "run")

	assert.Equal(t, mosaicerr.CodeAgentLoopTimeout, mosaicerr.CodeOf(outer))
	assert.True(t, mosaicerr.IsTimeout(outer))
}

func TestCodeOfPlainAndNil(t *testing.T) {
	assert.Equal(t, mosaicerr.Code(""), mosaicerr.CodeOf(nil))
	assert.Equal(t, mosaicerr.Code(""), mosaicerr.CodeOf(fmt.Errorf("plain")))
	assert.Nil(t, mosaicerr.FieldsOf(nil))
	assert.Nil(t, mosaicerr.FieldsOf(stderrors.New("plain")))
}

func TestFieldsWithEmptyKeyAreIgnored(t *testing.T) {
	err := mosaicerr.New(mosaicerr.CodeToolInputInvalid, "bad", mosaicerr.Field("", "dropped"), mosaicerr.FieldToolUseID("toolu_1"))
	fields := mosaicerr.FieldsOf(err)
	assert.Equal(t, "toolu_1", fields["tool_use_id"])
	_, hasEmpty := fields[""]
	assert.False(t, hasEmpty)
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		code  mosaicerr.Code
		check func(error) bool
	}{
		{"not found", mosaicerr.CodeProviderNotFound, mosaicerr.IsNotFound},
		{"conflict", mosaicerr.CodeToolRegisterConflict, mosaicerr.IsConflict},
		{"invalid", mosaicerr.CodeToolInputInvalid, mosaicerr.IsInvalidInput},
		{"invalid format", mosaicerr.CodeConfigParseInvalidFormat, mosaicerr.IsInvalidInput},
		{"unauthorized", mosaicerr.CodeProviderAuthUnauthorized, mosaicerr.IsUnauthorized},
		{"rate limit", mosaicerr.CodeProviderRateLimitExceeded, mosaicerr.IsBudgetExceeded},
		{"budget", mosaicerr.CodeAgentLoopBudgetExceeded, mosaicerr.IsBudgetExceeded},
		{"timeout", mosaicerr.CodeToolExecutionTimeout, mosaicerr.IsTimeout},
		{"upstream", mosaicerr.CodeProviderUpstreamFailure, mosaicerr.IsUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mosaicerr.New(tt.code, "x")
			assert.True(t, tt.check(err))
		})
	}
}

func TestClassificationNegativeCases(t *testing.T) {
	err := mosaicerr.New(mosaicerr.CodeCLIRunFailure, "x")
	assert.False(t, mosaicerr.IsNotFound(err))
	assert.False(t, mosaicerr.IsConflict(err))
	assert.False(t, mosaicerr.IsTimeout(err))
	assert.False(t, mosaicerr.IsUpstreamFailure(err))
	assert.False(t, mosaicerr.IsNotFound(nil))
	assert.False(t, mosaicerr.HasCode(nil, mosaicerr.CodeCLIRunFailure))
}

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("a")
	b := stderrors.New("b")
	joined := mosaicerr.Join(mosaicerr.CodeConfigValidateInvalidValue, a, b)

	require.Error(t, joined)
	assert.ErrorIs(t, joined, a)
	assert.ErrorIs(t, joined, b)
	assert.Equal(t, mosaicerr.CodeConfigValidateInvalidValue, mosaicerr.CodeOf(joined))
	assert.True(t, mosaicerr.IsInvalidInput(joined))
	assert.NoError(t, mosaicerr.Join(mosaicerr.CodeCLIRunFailure, nil, nil))
}
