package gentlify

import (
	"fmt"
	"time"
)

// recordSuccess frees the slot, tracks completion and checks whether
// the cooling period has elapsed for a reacceleration step.
func (instance *throttleDefaultImpl) recordSuccess(duration time.Duration) {
	instance.Lock.Lock()

	if instance.Outstanding > 0 {
		instance.Outstanding--
	}

	instance.Completed++
	instance.pushDuration(duration)

	instance.maybeReaccelerate()

	event, emit := instance.progressEvent()

	instance.SlotFreed.Broadcast()
	instance.Lock.Unlock()

	// the observer runs user code, keep it outside the Lock
	if emit {
		instance.Observer.ProgressChanged(event)
	}
}

// recordFailure frees the slot and adds the failure to the sliding
// window. When the window reaches the threshold, it decelerates.
func (instance *throttleDefaultImpl) recordFailure() {
	now := instance.currentTime()

	instance.Lock.Lock()

	if instance.Outstanding > 0 {
		instance.Outstanding--
	}

	// any failure interrupts the cooling countdown
	instance.CoolingStart = time.Time{}

	instance.pushFailure(now)

	if instance.FailureTimestamps.Len() >= instance.Config.FailureThreshold {
		instance.decelerate(now)
	}

	instance.SlotFreed.Broadcast()
	instance.Lock.Unlock()
}

// decelerate halves the concurrency and doubles the dispatch interval.
// Must be called with the Lock held.
func (instance *throttleDefaultImpl) decelerate(now time.Time) {
	oldConcurrency := instance.CurrentConcurrency
	oldInterval := instance.DispatchInterval

	// record the safe ceiling: reacceleration must not climb
	// past the level at which pressure was observed
	if oldConcurrency < instance.SafeCeiling {
		instance.SafeCeiling = oldConcurrency
	}

	newConcurrency := oldConcurrency / 2
	if newConcurrency < minConcurrency {
		newConcurrency = minConcurrency
	}

	newInterval := oldInterval * 2
	if newInterval > instance.Config.MaxDispatchInterval {
		newInterval = instance.Config.MaxDispatchInterval
	}

	instance.CurrentConcurrency = newConcurrency
	instance.DispatchInterval = newInterval

	// the burst that tripped this deceleration must not
	// cascade into further ones
	instance.clearFailures()

	instance.CoolingStart = now

	instance.Logger.Warning(fmt.Sprintf(
		"throttle decelerated: concurrency %v -> %v, dispatch interval %v -> %v ms (safe ceiling %v)",
		oldConcurrency,
		newConcurrency,
		oldInterval.Milliseconds(),
		newInterval.Milliseconds(),
		instance.SafeCeiling,
	))
}

// maybeReaccelerate steps the concurrency back up when the cooling
// period elapsed with zero failures. Must be called with the Lock held.
func (instance *throttleDefaultImpl) maybeReaccelerate() {
	now := instance.currentTime()

	if instance.CoolingStart.IsZero() {
		// no countdown running. Start one if there is room to climb.
		if instance.CurrentConcurrency < instance.SafeCeiling {
			instance.CoolingStart = now
		}
		return
	}

	if now.Sub(instance.CoolingStart) < instance.Config.CoolingPeriod {
		return
	}

	oldConcurrency := instance.CurrentConcurrency
	oldInterval := instance.DispatchInterval

	newConcurrency := oldConcurrency + 1
	if newConcurrency > instance.SafeCeiling {
		newConcurrency = instance.SafeCeiling
	}

	newInterval := oldInterval / 2
	if newInterval < instance.Config.MinDispatchInterval {
		newInterval = instance.Config.MinDispatchInterval
	}

	if newConcurrency == oldConcurrency && newInterval == oldInterval {
		return
	}

	instance.CurrentConcurrency = newConcurrency
	instance.DispatchInterval = newInterval

	// reset the countdown for the next potential step
	instance.CoolingStart = now

	instance.Logger.Info(fmt.Sprintf(
		"throttle reaccelerated: concurrency %v -> %v, dispatch interval %v -> %v ms (safe ceiling %v)",
		oldConcurrency,
		newConcurrency,
		oldInterval.Milliseconds(),
		newInterval.Milliseconds(),
		instance.SafeCeiling,
	))
}
