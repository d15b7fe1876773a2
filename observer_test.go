package gentlify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressObserverFuncAdapter(t *testing.T) {
	var received []ProgressEvent

	observer := ProgressObserverFunc(func(event ProgressEvent) {
		received = append(received, event)
	})

	observer.ProgressChanged(ProgressEvent{Completed: 5, Total: 10})

	assert.Len(t, received, 1)
	assert.Equal(t, 5, received[0].Completed)
}

func TestNoOpObserverDoesNotPanic(t *testing.T) {
	instance := NewNoOpObserver()

	instance.ProgressChanged(ProgressEvent{Completed: 5, Total: 10})
}

func TestLogObserverWritesThroughLogger(t *testing.T) {
	logs := &testLogger{}
	instance := newLogObserver(logs)

	instance.ProgressChanged(ProgressEvent{
		Completed:        5,
		Total:            10,
		Percent:          50.0,
		Concurrency:      4,
		DispatchInterval: time.Second,
		ETA:              30 * time.Second,
		ETAAvailable:     true,
	})

	assert.Len(t, logs.Messages, 1)
	assert.Contains(t, logs.Messages[0], "[i] progress 5/10 (50.0%)")
	assert.Contains(t, logs.Messages[0], "eta 30.0 s")
}

func TestLogObserverOmitsUnavailableEta(t *testing.T) {
	logs := &testLogger{}
	instance := newLogObserver(logs)

	instance.ProgressChanged(ProgressEvent{
		Completed:        1,
		Total:            10,
		Percent:          10.0,
		Concurrency:      4,
		DispatchInterval: time.Second,
	})

	assert.Len(t, logs.Messages, 1)
	assert.NotContains(t, logs.Messages[0], "eta")
}

func TestThrottleWithoutObserverLogsProgress(t *testing.T) {
	ti := buildInstance(t, func(config *Config) {
		config.TotalTasks = 2
		config.Observer = nil
	})

	recordSuccesses(ti, 2, time.Second)

	found := 0
	for _, message := range ti.Logs.Messages {
		if strings.HasPrefix(message, "[i] progress ") {
			found++
		}
	}
	assert.Equal(t, 2, found)
}
