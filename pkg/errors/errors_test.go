package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatsInternal(t *testing.T) {
	base := stderrors.New("connection refused")
	err := ErrExternalService.WithInternal(base)

	require.Contains(t, err.Error(), "connection refused")
	require.ErrorIs(t, err, base)
	// The shared sentinel must remain untouched.
	require.Nil(t, ErrExternalService.Internal)
}

func TestFromErrorPassesThroughAppErrors(t *testing.T) {
	err := NewInvalidOperation("cannot revoke the current session")
	require.Same(t, err, FromError(err))
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.Equal(t, "INVALID_OPERATION", err.Code)
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	base := stderrors.New("boom")
	appErr := FromError(base)

	require.Equal(t, ErrInternalServer.Code, appErr.Code)
	require.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	require.ErrorIs(t, appErr, base)
}

func TestFromErrorNil(t *testing.T) {
	require.Nil(t, FromError(nil))
}

func TestWrapPreservesOriginal(t *testing.T) {
	base := stderrors.New("bad state")
	wrapped := Wrap(base, "operation failed")

	require.Equal(t, "operation failed: bad state", wrapped.Error())
	require.ErrorIs(t, wrapped, base)
}
