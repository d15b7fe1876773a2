package gentlify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassificationWrappers(t *testing.T) {
	cause := errors.New("upstream said no")

	rateLimited := RateLimited(cause)
	assert.True(t, errors.Is(rateLimited, ErrRateLimited))
	assert.False(t, errors.Is(rateLimited, ErrTransient))
	assert.False(t, errors.Is(rateLimited, ErrPermanent))
	assert.True(t, errors.Is(rateLimited, cause))

	transient := Transient(cause)
	assert.True(t, errors.Is(transient, ErrTransient))
	assert.False(t, errors.Is(transient, ErrRateLimited))
	assert.True(t, errors.Is(transient, cause))

	permanent := Permanent(cause)
	assert.True(t, errors.Is(permanent, ErrPermanent))
	assert.False(t, errors.Is(permanent, ErrRateLimited))
	assert.True(t, errors.Is(permanent, cause))
}

func TestErrorMessagesIncludeCause(t *testing.T) {
	cause := errors.New("upstream said no")

	assert.Contains(t, RateLimited(cause).Error(), "upstream said no")
	assert.Contains(t, Transient(cause).Error(), "upstream said no")
	assert.Contains(t, Permanent(cause).Error(), "upstream said no")

	withHint := RateLimitedWithRetryAfter(cause, 5*time.Second)
	assert.Contains(t, withHint.Error(), "5000 ms")

	exhausted := &RetriesExhausted{
		AttemptsNumber: 6,
		WaitedFor:      465 * time.Second,
		Cause:          cause,
	}
	assert.Contains(t, exhausted.Error(), "6 attempts")
	assert.Contains(t, exhausted.Error(), "upstream said no")
	assert.True(t, errors.Is(exhausted, cause))
}

func TestParseRetryAfter(t *testing.T) {
	hints := map[string]time.Duration{
		"Rate limit reached, try again in 20s":      20 * time.Second,
		"Rate limit reached. Try again in 2.5 s":    2500 * time.Millisecond,
		"please retry after 30s":                    30 * time.Second,
		"slow down and retry-after 7s":              7 * time.Second,
		"Retry After 12 s and all will be forgiven": 12 * time.Second,
	}

	for message, expected := range hints {
		parsed, ok := ParseRetryAfter(message)
		assert.True(t, ok, "expected a hint in %q", message)
		assert.Equal(t, expected, parsed, "unexpected hint in %q", message)
	}

	noHints := []string{
		"",
		"too many requests",
		"try again later",
		"retry after a while",
	}

	for _, message := range noHints {
		_, ok := ParseRetryAfter(message)
		assert.False(t, ok, "expected no hint in %q", message)
	}
}
