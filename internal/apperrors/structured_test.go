package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	e := New(ErrWeightsDrift, "weights do not sum to 1.0")
	assert.Equal(t, "[ERR_2002_WEIGHTS_DRIFT] weights do not sum to 1.0", e.Error())

	e.WithStage("normalize")
	assert.Equal(t, "[ERR_2002_WEIGHTS_DRIFT:normalize] weights do not sum to 1.0", e.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	e := Wrap(ErrGraphStoreFailed, cause)
	assert.Same(t, cause, e.Cause)
	assert.True(t, errors.Is(e, cause))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrGraphStoreFailed, nil))
}

func TestCategoryAndRetryable(t *testing.T) {
	assert.Equal(t, "transient", Category(ErrLLMCallFailed))
	assert.True(t, IsRetryable(ErrLLMCallFailed))
	assert.Equal(t, "config", Category(ErrInvalidConfig))
	assert.False(t, IsRetryable(ErrInvalidConfig))
	assert.True(t, IsRetryable(ErrRateLimited))
}

func TestAs(t *testing.T) {
	var err error = New(ErrEntityNotFound, "not found")
	se, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, ErrEntityNotFound, se.Code)
}
