package gentlify

import "time"

// number of recent call durations retained for ETA estimation.
const durationSampleSize = 10

// pushFailure appends a rate-limit failure timestamp and prunes
// the window. Must be called with the Lock held.
func (instance *throttleDefaultImpl) pushFailure(t time.Time) {
	instance.FailureTimestamps.PushBack(t)
	instance.pruneFailures(t)
}

// pruneFailures drops window entries older than FailureWindow,
// keeping the invariant that no read ever observes stale failures.
// Must be called with the Lock held.
func (instance *throttleDefaultImpl) pruneFailures(now time.Time) {
	cutoff := now.Add(-instance.Config.FailureWindow)

	for instance.FailureTimestamps.Len() > 0 {
		oldest := instance.FailureTimestamps.Front().(time.Time)
		if oldest.After(cutoff) {
			break
		}
		instance.FailureTimestamps.PopFront()
	}
}

// clearFailures empties the window so that the burst that just
// triggered a deceleration cannot cascade into further ones.
// Must be called with the Lock held.
func (instance *throttleDefaultImpl) clearFailures() {
	instance.FailureTimestamps.Clear()
}

// pushDuration records a completed call duration, keeping only the
// most recent samples so the ETA stays responsive.
// Must be called with the Lock held.
func (instance *throttleDefaultImpl) pushDuration(d time.Duration) {
	if d <= 0 {
		return
	}

	instance.Durations.PushBack(d)
	for instance.Durations.Len() > durationSampleSize {
		instance.Durations.PopFront()
	}
}

// averageDuration returns the mean of the retained duration samples.
// Must be called with the Lock held.
func (instance *throttleDefaultImpl) averageDuration() (time.Duration, bool) {
	num := instance.Durations.Len()
	if num == 0 {
		return 0, false
	}

	var sum time.Duration
	for i := 0; i < num; i++ {
		sum += instance.Durations.At(i).(time.Duration)
	}

	return sum / time.Duration(num), true
}
