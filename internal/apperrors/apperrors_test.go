package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteErrorIsRateLimitExceeded(t *testing.T) {
	err := NewRateLimitExceeded("API rate limit exceeded")
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	assert.False(t, errors.Is(err, ErrAuthenticationFail))
}

func TestRemoteErrorIsAuthenticationFailure(t *testing.T) {
	err := NewAuthenticationError("Bad credentials")
	assert.True(t, errors.Is(err, ErrAuthenticationFail))
}

func TestRemoteErrorIsNotFound(t *testing.T) {
	err := NewNotFound("notification", "123")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "123")
}

func TestRemoteErrorNetworkUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewNetworkError(cause)
	assert.ErrorIs(t, err, cause)
}

func TestEngineErrorRetryExhausted(t *testing.T) {
	err := &EngineError{Kind: "RetryExhausted", Attempts: 3}
	assert.Contains(t, err.Error(), "3 attempts")
}
