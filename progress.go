package gentlify

import "time"

// Snapshot is a point-in-time view of throttle state
// and job completion, for progress reporting.
type Snapshot struct {
	Completed        int
	Total            int
	Concurrency      int
	DispatchInterval time.Duration

	// ETA is an estimate of the remaining time, valid only
	// when ETAAvailable is true (at least one call completed).
	ETA          time.Duration
	ETAAvailable bool
}

// Progress returns a point-in-time snapshot of completion
// and throttle state.
func (instance *throttleDefaultImpl) Progress() Snapshot {
	instance.Lock.Lock()
	defer instance.Lock.Unlock()

	return instance.snapshot()
}

// SetTotal updates the total task count.
// Useful when the total is not known at construction time.
func (instance *throttleDefaultImpl) SetTotal(total int) {
	instance.Lock.Lock()
	instance.Total = total
	instance.Lock.Unlock()
}

// snapshot must be called with the Lock held.
func (instance *throttleDefaultImpl) snapshot() Snapshot {
	eta, available := instance.estimateRemaining()

	return Snapshot{
		Completed:        instance.Completed,
		Total:            instance.Total,
		Concurrency:      instance.CurrentConcurrency,
		DispatchInterval: instance.DispatchInterval,
		ETA:              eta,
		ETAAvailable:     available,
	}
}

// estimateRemaining derives an ETA from the mean duration of recent
// calls, adjusted by the current concurrency.
// Before the first completion no estimate is possible.
// Must be called with the Lock held.
func (instance *throttleDefaultImpl) estimateRemaining() (time.Duration, bool) {
	remaining := instance.Total - instance.Completed
	if remaining <= 0 {
		return 0, instance.Completed > 0
	}

	avg, ok := instance.averageDuration()
	if !ok {
		// fall back to elapsed time per completed call
		if instance.Completed == 0 {
			return 0, false
		}
		elapsed := instance.currentTime().Sub(instance.StartedAt)
		avg = elapsed / time.Duration(instance.Completed)
	}
	if avg < 10*time.Millisecond {
		avg = 10 * time.Millisecond
	}

	eta := avg * time.Duration(remaining) / time.Duration(instance.CurrentConcurrency)
	return eta, true
}

// progressEvent builds the observation to emit, if the completed
// count just crossed an emission boundary: the first completion,
// every 10% of the total, and the final completion.
// Must be called with the Lock held.
func (instance *throttleDefaultImpl) progressEvent() (ProgressEvent, bool) {
	if instance.Total <= 0 {
		return ProgressEvent{}, false
	}

	step := instance.Total / 10
	if step < 1 {
		step = 1
	}

	shouldEmit := instance.Completed == instance.Total ||
		instance.Completed == 1 ||
		instance.Completed%step == 0
	if !shouldEmit {
		return ProgressEvent{}, false
	}

	snap := instance.snapshot()

	return ProgressEvent{
		Completed:        snap.Completed,
		Total:            snap.Total,
		Percent:          100.0 * float64(snap.Completed) / float64(snap.Total),
		Concurrency:      snap.Concurrency,
		DispatchInterval: snap.DispatchInterval,
		ETA:              snap.ETA,
		ETAAvailable:     snap.ETAAvailable,
	}, true
}
