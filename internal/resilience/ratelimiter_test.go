package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketBurstAndExhaustion(t *testing.T) {
	b := NewTokenBucket(3, 1.0)
	assert.True(t, b.TryAcquire())
	assert.True(t, b.TryAcquire())
	assert.True(t, b.TryAcquire())
	assert.False(t, b.TryAcquire(), "bucket should be exhausted after capacity draws")
}

func TestTokenBucketRefills(t *testing.T) {
	b := NewTokenBucket(1, 1000.0) // fast refill for test speed
	assert.True(t, b.TryAcquire())
	assert.False(t, b.TryAcquire())
	time.Sleep(5 * time.Millisecond)
	assert.True(t, b.TryAcquire())
}

func TestSlidingWindowAdmitsUpToLimit(t *testing.T) {
	w := NewSlidingWindow(1000, 2)
	assert.True(t, w.TryAcquire())
	assert.True(t, w.TryAcquire())
	assert.False(t, w.TryAcquire())
	assert.Equal(t, 2, w.Count())
}

func TestSlidingWindowExpiresOldEntries(t *testing.T) {
	w := NewSlidingWindow(5, 1)
	assert.True(t, w.TryAcquire())
	assert.False(t, w.TryAcquire())
	time.Sleep(10 * time.Millisecond)
	assert.True(t, w.TryAcquire())
}
