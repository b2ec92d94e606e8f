package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(DatabaseError, "should not wrap", nil))
}

func TestKindOfUnwrapsChain(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(StorageError, "write evidence", base)
	outer := fmt.Errorf("outer: %w", wrapped)

	assert.Equal(t, StorageError, KindOf(outer))
	assert.True(t, errors.Is(outer, base))
}

func TestKindOfUnknownWithoutAppErr(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.Equal(t, Unknown, KindOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Unauthenticated, 401},
		{Forbidden, 403},
		{BadRequest, 400},
		{NotFound, 404},
		{Timeout, 504},
		{Unknown, 500},
		{DatabaseError, 500},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.kind))
		})
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := New(NotFound, "stream not found")
	assert.Equal(t, "not_found: stream not found", err.Error())

	wrapped := Wrap(InferenceError, "classify", errors.New("nan score"))
	assert.Contains(t, wrapped.Error(), "inference_error: classify: nan score")
}
