package gentlify

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// throttleDefaultImpl holds all the required
// runtime data together with the parsed configuration.
type throttleDefaultImpl struct {
	Logger   Logger
	Observer ProgressObserver
	Config   *throttleEffectiveConfig

	// Time-related functions can be overridden for testing.
	TimeFunc  func() time.Time
	SleepFunc func(d time.Duration)
	RandFunc  func() float64

	// Lock guards all the mutable state below.
	// Every mutation funnels through Acquire / recordSuccess /
	// recordFailure / releaseSlot.
	Lock sync.Mutex

	// SlotFreed shares the Lock and is broadcast whenever
	// a slot is settled or concurrency is raised.
	SlotFreed *sync.Cond

	// DispatchGate serializes interval waits so the spacing is a
	// global constraint against the single shared LastDispatchAt,
	// not a per-caller one.
	DispatchGate   sync.Mutex
	LastDispatchAt time.Time

	// adaptive state
	CurrentConcurrency int
	SafeCeiling        int
	DispatchInterval   time.Duration
	Outstanding        int

	// a deque holds the rate-limit failure timestamps
	// inside the sliding window.
	FailureTimestamps *deque.Deque

	// CoolingStart marks the beginning of the current failure-free
	// cooling countdown. The zero value means no countdown is running.
	CoolingStart time.Time

	// progress tracking
	Completed int
	Total     int
	StartedAt time.Time

	// a deque holds the most recent call durations for ETA estimation.
	Durations *deque.Deque
}

// throttleEffectiveConfig holds the validated and parsed configuration
// that was obtained from the user-provided configuration.
type throttleEffectiveConfig struct {
	MaxConcurrency     int
	InitialConcurrency int
	TotalTasks         int

	MinDispatchInterval time.Duration
	MaxDispatchInterval time.Duration

	FailureThreshold int
	FailureWindow    time.Duration
	CoolingPeriod    time.Duration
}

func (instance *throttleDefaultImpl) currentTime() time.Time {
	// hook time provider here to allow easier testing
	return instance.TimeFunc()
}

// sleep waits for the given duration, returning early with the
// context error when ctx is cancelled first.
//
// When a SleepFunc was injected (usually for testing) it is used
// instead and only checked against ctx afterwards.
func (instance *throttleDefaultImpl) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	if instance.SleepFunc != nil {
		instance.SleepFunc(d)
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (instance *throttleDefaultImpl) randomFraction() float64 {
	// hook randomness provider here to allow easier testing
	return instance.RandFunc()
}

func (instance *throttleDefaultImpl) IsComposite() bool {
	return false
}

// Stats returns runtime statistics useful to evaluate
// throttle status and adaptation.
func (instance *throttleDefaultImpl) Stats() RuntimeStatistics {
	now := instance.currentTime()

	instance.Lock.Lock()
	defer instance.Lock.Unlock()

	// keep the window invariant on reads too
	instance.pruneFailures(now)

	return RuntimeStatistics{
		CurrentConcurrency: instance.CurrentConcurrency,
		SafeCeiling:        instance.SafeCeiling,
		MaxConcurrency:     instance.Config.MaxConcurrency,
		DispatchInterval:   instance.DispatchInterval,
		Outstanding:        instance.Outstanding,
		WindowFailures:     instance.FailureTimestamps.Len(),
	}
}

// core methods have been moved to the acquire.go, record.go
// and progress.go files
