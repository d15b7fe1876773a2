package gentlify

import (
	"context"
	"time"
)

// Throttle is the parent interface for all kinds
// of dispatch throttles.
//
// You are encouraged to use this type when storing references
// to your throttles in order to allow for easier implementations switch.
type Throttle interface {
	// Acquire blocks until a dispatch slot is available and the
	// minimum dispatch interval has elapsed since the previous grant.
	//
	// The returned Slot must be settled exactly once with
	// Success or Failure, or abandoned with Release.
	// A non-nil error is returned only when ctx is cancelled
	// while waiting.
	Acquire(ctx context.Context) (Slot, error)

	// Progress returns a point-in-time snapshot of completion
	// and throttle state.
	Progress() Snapshot

	// SetTotal updates the total task count.
	// Useful when the total is not known at construction time.
	SetTotal(total int)

	// IsComposite returns true if the throttle is a CompositeThrottle.
	IsComposite() bool
}

// StandaloneThrottle is the specialized interface for the standard
// throttles created with gentlify.New(...).
//
// Note that all types implementing StandaloneThrottle also implement Throttle:
// you are encouraged to use this type when storing references
// to your throttles in order to allow for easier implementations switch.
type StandaloneThrottle interface {
	// Acquire blocks until a dispatch slot is available and the
	// minimum dispatch interval has elapsed since the previous grant.
	//
	// The returned Slot must be settled exactly once with
	// Success or Failure, or abandoned with Release.
	// A non-nil error is returned only when ctx is cancelled
	// while waiting.
	Acquire(ctx context.Context) (Slot, error)

	// Progress returns a point-in-time snapshot of completion
	// and throttle state.
	Progress() Snapshot

	// SetTotal updates the total task count.
	// Useful when the total is not known at construction time.
	SetTotal(total int)

	// IsComposite is "inherited" from Throttle
	// and always returns false for this type.
	IsComposite() bool

	// Stats returns runtime statistics useful to evaluate
	// throttle status and adaptation.
	Stats() RuntimeStatistics
}

// CompositeThrottle is the specialized interface for the composite
// throttles created with gentlify.NewComposite(...).
//
// Note that all types implementing CompositeThrottle also implement Throttle:
// you are encouraged to use this type when storing references
// to your throttles in order to allow for easier implementations switch.
type CompositeThrottle interface {
	// Acquire blocks until all combined throttles grant a dispatch
	// slot. Slots are acquired in declaration order and released
	// together when the returned Slot is settled.
	Acquire(ctx context.Context) (Slot, error)

	// Progress returns a point-in-time snapshot of completion
	// and throttle state, taken from the primary (first) throttle.
	Progress() Snapshot

	// SetTotal updates the total task count on all combined throttles.
	SetTotal(total int)

	// IsComposite is "inherited" from Throttle
	// and always returns true for this type.
	IsComposite() bool

	// Stats returns runtime statistics for all the combined throttles.
	Stats() CompositeRuntimeStatistics
}

// Slot represents permission to issue exactly one call under the
// current concurrency and spacing limits.
//
// Each Slot must be settled exactly once: report the outcome of the
// call with Success or Failure, or abandon the slot with Release.
// Release is safe to call in a defer even after the slot was settled,
// so an early return or a panic mid-call cannot leak capacity.
type Slot interface {
	// Success reports that the call completed.
	// The duration is used for ETA estimation.
	Success(duration time.Duration)

	// Failure reports that the call failed because of rate pressure.
	// This is the signal the throttle decelerates on.
	// Failures of any other kind should Release the slot instead.
	Failure()

	// Release frees the slot without touching the adaptive state.
	// It is a no-op when the slot was already settled.
	Release()
}

// RuntimeStatistics holds runtime statistics
// for a single dispatch throttle.
type RuntimeStatistics struct {
	// CurrentConcurrency is the number of dispatch slots
	// currently permitted in flight.
	CurrentConcurrency int

	// SafeCeiling is the highest concurrency level reacceleration
	// is allowed to climb back to.
	SafeCeiling int

	// MaxConcurrency is the configured hard ceiling.
	MaxConcurrency int

	// DispatchInterval is the current minimum spacing
	// between dispatch grants.
	DispatchInterval time.Duration

	// Outstanding is the number of slots acquired and not yet settled.
	Outstanding int

	// WindowFailures is the number of rate-limit failures
	// currently inside the sliding window.
	WindowFailures int
}

// CompositeRuntimeStatistics holds runtime statistics
// for a composite dispatch throttle.
type CompositeRuntimeStatistics struct {

	// ThrottleStats holds the statistics for each combined throttle
	ThrottleStats []RuntimeStatistics
}
