// Package errors_test exercises the AppError type, factory functions, and
// error-chain helpers.
package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"invalid window", errors.ErrCodeInvalidWindow, "window offset must be >= 0"},
		{"invalid param", errors.CodeInvalidParam, "paragraph positions must not be empty"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
		})
	}
}

func TestAppError_ErrorFormat(t *testing.T) {
	ae := errors.New(errors.ErrCodeInvalidDocument, "document has no elements")
	assert.Equal(t, "[COH_002] document has no elements", ae.Error())

	withDetail := ae.WithDetail("id=doc-1")
	assert.Equal(t, "[COH_002] document has no elements: id=doc-1", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "ignored"))
}

func TestWrap_PreservesCodeWhenUnknown(t *testing.T) {
	inner := errors.New(errors.ErrCodeInvalidCluster, "cluster has no name")
	outer := errors.Wrap(inner, errors.CodeUnknown, "loading clusters")

	assert.Equal(t, errors.ErrCodeInvalidCluster, outer.Code)
	assert.True(t, stderrors.Is(outer, inner))
}

func TestWrap_ChainsStandardErrors(t *testing.T) {
	outer := errors.Wrap(context.Canceled, errors.ErrCodeAnalysisCancelled, "analysis aborted")

	assert.True(t, errors.Is(outer, context.Canceled))
	assert.True(t, errors.IsCode(outer, errors.ErrCodeAnalysisCancelled))
}

func TestIsCode_ThroughFmtWrapping(t *testing.T) {
	inner := errors.New(errors.ErrCodeStorage, "bucket missing")
	wrapped := fmt.Errorf("load: %w", inner)

	assert.True(t, errors.IsCode(wrapped, errors.ErrCodeStorage))
	assert.False(t, errors.IsCode(wrapped, errors.ErrCodeMessageQueue))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(errors.NotFound("x")))
	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, errors.ErrCodeInvalidWindow.HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, errors.ErrCodePipelineUnavailable.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, errors.ErrorCode("NOPE_1").HTTPStatus())
}

func TestErrorCode_Module(t *testing.T) {
	assert.Equal(t, "COH", errors.ErrCodeInvalidWindow.Module())
	assert.Equal(t, "COMMON", errors.CodeInternal.Module())
	assert.Equal(t, "OK", errors.CodeOK.Module())
}

func TestErrorCode_DefaultMessage(t *testing.T) {
	assert.Equal(t, "analysis cancelled", errors.ErrCodeAnalysisCancelled.DefaultMessage())
	assert.Equal(t, "unknown error", errors.ErrorCode("X").DefaultMessage())
}
