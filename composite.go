package gentlify

import (
	"context"
	"time"
)

// compositeThrottleDefaultImpl gates a single call through multiple
// combined throttles, e.g. a per-model budget and a per-provider one.
type compositeThrottleDefaultImpl struct {
	Logger    Logger
	Throttles []*throttleDefaultImpl
}

// Acquire blocks until all combined throttles grant a dispatch slot.
//
// Slots are acquired in declaration order; every caller acquires the
// same way, so two composite acquisitions cannot deadlock each other.
// When one acquisition fails, the already-acquired slots are released.
func (instance *compositeThrottleDefaultImpl) Acquire(ctx context.Context) (Slot, error) {
	acquired := make([]Slot, 0, len(instance.Throttles))

	for _, throttle := range instance.Throttles {
		slot, err := throttle.Acquire(ctx)
		if err != nil {
			for _, held := range acquired {
				held.Release()
			}
			return nil, err
		}
		acquired = append(acquired, slot)
	}

	return &compositeSlot{
		slots: acquired,
	}, nil
}

// Progress returns a point-in-time snapshot of completion
// and throttle state, taken from the primary (first) throttle.
//
// All combined throttles observe the same completions, so their
// progress counters stay identical; only the primary reports.
func (instance *compositeThrottleDefaultImpl) Progress() Snapshot {
	return instance.primary().Progress()
}

// SetTotal updates the total task count on all combined throttles.
func (instance *compositeThrottleDefaultImpl) SetTotal(total int) {
	for _, throttle := range instance.Throttles {
		throttle.SetTotal(total)
	}
}

func (instance *compositeThrottleDefaultImpl) IsComposite() bool {
	return true
}

// Stats returns runtime statistics for all the combined throttles.
func (instance *compositeThrottleDefaultImpl) Stats() CompositeRuntimeStatistics {
	num := len(instance.Throttles)
	out := make([]RuntimeStatistics, num)

	for i, throttle := range instance.Throttles {
		out[i] = throttle.Stats()
	}

	return CompositeRuntimeStatistics{
		ThrottleStats: out,
	}
}

func (instance *compositeThrottleDefaultImpl) primary() *throttleDefaultImpl {
	return instance.Throttles[0]
}

// compositeSlot fans the settlement out to the slots
// of every combined throttle.
type compositeSlot struct {
	slots []Slot
}

func (slot *compositeSlot) Success(duration time.Duration) {
	for _, held := range slot.slots {
		held.Success(duration)
	}
}

func (slot *compositeSlot) Failure() {
	for _, held := range slot.slots {
		held.Failure()
	}
}

func (slot *compositeSlot) Release() {
	for _, held := range slot.slots {
		held.Release()
	}
}
