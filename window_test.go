package gentlify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFailurePruningKeepsRecentEntries(t *testing.T) {
	ti := buildDefaultInstance(t)
	instance := ti.Instance

	instance.pushFailure(instance.currentTime())
	ti.TimeTravel(30000)
	instance.pushFailure(instance.currentTime())
	assert.Equal(t, 2, instance.FailureTimestamps.Len())

	// the first entry is now 65s old, the second 35s
	ti.TimeTravel(35000)
	instance.pruneFailures(instance.currentTime())
	assert.Equal(t, 1, instance.FailureTimestamps.Len())

	ti.TimeTravel(30000)
	instance.pruneFailures(instance.currentTime())
	assert.Equal(t, 0, instance.FailureTimestamps.Len())
}

func TestStatsPrunesWindowOnRead(t *testing.T) {
	ti := buildDefaultInstance(t)

	recordFailures(ti, 2)
	ti.AssertWindowFailures(t, 2)

	ti.TimeTravel(61000)
	ti.AssertWindowFailures(t, 0)
}

func TestDurationSamplesKeepOnlyMostRecent(t *testing.T) {
	ti := buildDefaultInstance(t)
	instance := ti.Instance

	for i := 1; i <= 12; i++ {
		instance.pushDuration(time.Duration(i) * time.Second)
	}

	assert.Equal(t, durationSampleSize, instance.Durations.Len())

	// samples 3..12 remain, averaging 7.5s
	avg, ok := instance.averageDuration()
	assert.True(t, ok)
	assert.Equal(t, 7500*time.Millisecond, avg)
}

func TestAverageDurationWithoutSamples(t *testing.T) {
	ti := buildDefaultInstance(t)

	avg, ok := ti.Instance.averageDuration()
	assert.False(t, ok)
	assert.Zero(t, avg)

	// zero and negative durations are not meaningful samples
	ti.Instance.pushDuration(0)
	ti.Instance.pushDuration(-time.Second)
	_, ok = ti.Instance.averageDuration()
	assert.False(t, ok)
}
