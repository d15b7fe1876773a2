package gentlify

import (
	"fmt"
	"time"
)

// ProgressEvent is a structured progress observation emitted by the
// throttle whenever the completed count crosses a 10%-of-total
// boundary, on the first completion, and on the final one.
type ProgressEvent struct {
	Completed        int
	Total            int
	Percent          float64
	Concurrency      int
	DispatchInterval time.Duration

	// ETA is an estimate of the remaining time, valid only
	// when ETAAvailable is true (at least one call completed).
	ETA          time.Duration
	ETAAvailable bool
}

// ProgressObserver receives progress events for consumption
// by logging or telemetry.
//
// When no observer is provided to the throttle constructor,
// events are logged through the throttle's Logger.
type ProgressObserver interface {
	ProgressChanged(event ProgressEvent)
}

// ProgressObserverFunc adapts a plain function to the
// ProgressObserver interface.
type ProgressObserverFunc func(event ProgressEvent)

func (f ProgressObserverFunc) ProgressChanged(event ProgressEvent) {
	f(event)
}

func NewNoOpObserver() ProgressObserver {
	return &noOpObserver{}
}

type noOpObserver struct {
}

func (o *noOpObserver) ProgressChanged(event ProgressEvent) {
	// NOP
}

// logObserver is the default observer, writing progress
// observations through the throttle's Logger.
type logObserver struct {
	logger Logger
}

func newLogObserver(logger Logger) ProgressObserver {
	return &logObserver{
		logger: logger,
	}
}

func (o *logObserver) ProgressChanged(event ProgressEvent) {
	line := fmt.Sprintf(
		"progress %d/%d (%.1f%%), concurrency %d, dispatch interval %v ms",
		event.Completed,
		event.Total,
		event.Percent,
		event.Concurrency,
		event.DispatchInterval.Milliseconds(),
	)
	if event.ETAAvailable {
		line += fmt.Sprintf(", eta %.1f s", event.ETA.Seconds())
	}
	o.logger.Info(line)
}
