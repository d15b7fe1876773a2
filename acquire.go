package gentlify

import (
	"context"
	"sync"
	"time"
)

// Acquire blocks until a dispatch slot is available and the
// minimum dispatch interval has elapsed since the previous grant.
//
// The returned Slot must be settled exactly once with
// Success or Failure, or abandoned with Release.
// A non-nil error is returned only when ctx is cancelled
// while waiting.
func (instance *throttleDefaultImpl) Acquire(ctx context.Context) (Slot, error) {
	if err := instance.awaitConcurrencySlot(ctx); err != nil {
		return nil, err
	}

	if err := instance.awaitDispatchTurn(ctx); err != nil {
		// the call never dispatched, give the reserved slot back
		instance.releaseSlot()
		return nil, err
	}

	return &dispatchSlot{
		owner: instance,
	}, nil
}

// awaitConcurrencySlot waits until fewer than CurrentConcurrency
// slots are outstanding, then reserves one.
func (instance *throttleDefaultImpl) awaitConcurrencySlot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// wake the waiters when the context gets cancelled so they can
	// observe it and bail out. The broadcast happens under the Lock,
	// which the waiter holds between its ctx check and its Wait,
	// so the wakeup cannot be lost.
	stopWatcher := make(chan struct{})
	defer close(stopWatcher)
	go func() {
		select {
		case <-ctx.Done():
			instance.Lock.Lock()
			instance.SlotFreed.Broadcast()
			instance.Lock.Unlock()
		case <-stopWatcher:
		}
	}()

	instance.Lock.Lock()
	defer instance.Lock.Unlock()

	for instance.Outstanding >= instance.CurrentConcurrency {
		if err := ctx.Err(); err != nil {
			return err
		}
		instance.SlotFreed.Wait()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	instance.Outstanding++
	return nil
}

// awaitDispatchTurn enforces the jittered minimum spacing between
// dispatch grants. The gate serializes dispatchers so the spacing
// applies against the single shared LastDispatchAt.
func (instance *throttleDefaultImpl) awaitDispatchTurn(ctx context.Context) error {
	instance.DispatchGate.Lock()
	defer instance.DispatchGate.Unlock()

	spacing := instance.jitteredInterval()
	elapsed := instance.currentTime().Sub(instance.LastDispatchAt)
	if elapsed < spacing {
		if err := instance.sleep(ctx, spacing-elapsed); err != nil {
			return err
		}
	}

	instance.LastDispatchAt = instance.currentTime()
	return nil
}

// jitteredInterval scales the current dispatch interval by a factor of
// 1 + jitter, with jitter drawn uniformly from [0, 0.5) per call.
// The jitter desynchronizes concurrently-waiting callers so a burst of
// simultaneous retries does not dispatch in lockstep and reproduce the
// exact herd the throttle exists to prevent.
func (instance *throttleDefaultImpl) jitteredInterval() time.Duration {
	instance.Lock.Lock()
	interval := instance.DispatchInterval
	instance.Lock.Unlock()

	jitter := instance.randomFraction() * maxJitterFraction
	return time.Duration(float64(interval) * (1.0 + jitter))
}

// releaseSlot frees an outstanding slot without touching
// the adaptive state.
func (instance *throttleDefaultImpl) releaseSlot() {
	instance.Lock.Lock()
	if instance.Outstanding > 0 {
		instance.Outstanding--
	}
	instance.SlotFreed.Broadcast()
	instance.Lock.Unlock()
}

// dispatchSlot is the default Slot implementation.
//
// A slot settles exactly once: extra Success/Failure reports are
// logged and ignored, extra Release calls are silently ignored so the
// deferred-release pattern stays safe.
type dispatchSlot struct {
	owner *throttleDefaultImpl

	mu      sync.Mutex
	settled bool
}

func (slot *dispatchSlot) settle() bool {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.settled {
		return false
	}
	slot.settled = true
	return true
}

// Success reports that the call completed.
// The duration is used for ETA estimation.
func (slot *dispatchSlot) Success(duration time.Duration) {
	if !slot.settle() {
		slot.owner.Logger.Warning("dispatch slot was already settled, ignoring extra Success report")
		return
	}
	slot.owner.recordSuccess(duration)
}

// Failure reports that the call failed because of rate pressure.
func (slot *dispatchSlot) Failure() {
	if !slot.settle() {
		slot.owner.Logger.Warning("dispatch slot was already settled, ignoring extra Failure report")
		return
	}
	slot.owner.recordFailure()
}

// Release frees the slot without reporting an outcome.
// It is a no-op when the slot was already settled.
func (slot *dispatchSlot) Release() {
	if !slot.settle() {
		return
	}
	slot.owner.releaseSlot()
}
