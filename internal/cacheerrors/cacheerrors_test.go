package cacheerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorUnwrapsToSentinel(t *testing.T) {
	err := New(KindTimeout, "GetFileStatus", "deadline exceeded")
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, Is(err, KindTimeout))
	assert.False(t, Is(err, KindRemoteIOError))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindNotReachable, "Acquire", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsReturnsFalseForUnrelatedError(t *testing.T) {
	assert.False(t, Is(errors.New("plain error"), KindTimeout))
}

func TestKindStringCoversEveryKind(t *testing.T) {
	kinds := []Kind{
		KindConfigError, KindNotReachable, KindTimeout, KindRemoteIOError,
		KindCapacityExceeded, KindInvalidHandle, KindCancellationRequested,
	}
	for _, k := range kinds {
		assert.NotEqual(t, "Unknown", k.String())
	}
}
