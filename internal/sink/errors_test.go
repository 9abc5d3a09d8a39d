package sink

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinel(t *testing.T) {
	tests := []struct {
		kind Kind
		want error
	}{
		{KindUnreachable, ErrUnreachable},
		{KindPermissionDenied, ErrPermissionDenied},
		{KindMalformedExisting, ErrMalformedExisting},
		{KindRemoteQuotaOrTransport, ErrRemoteQuotaOrTransport},
	}

	cause := errors.New("boom")
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", NewError(tt.kind, "csv:x", "write", cause))
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, cause, "cause lost")

			kind, ok := KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.kind == KindRemoteQuotaOrTransport, IsRemote(err))
		})
	}
}

func TestKindOf_NotSinkError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok, "KindOf should not match a plain error")
	assert.False(t, IsRemote(nil))
}

func TestErrorMessage(t *testing.T) {
	err := NewError(KindPermissionDenied, "sheets:abc", "read", errors.New("403"))
	assert.EqualError(t, err, "sink sheets:abc: read: permission denied: 403")
}
