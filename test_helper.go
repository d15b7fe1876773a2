package gentlify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	defaultTestMaxConcurrency   = 4
	defaultTestTotalTasks       = 20
	defaultTestDispatchInterval = time.Second
	defaultTestFailureWindow    = time.Duration(60) * time.Second
	defaultTestCoolingPeriod    = time.Duration(60) * time.Second
)

type testableInstance struct {
	Instance    *throttleDefaultImpl
	CurrentTime uint64
	Jitter      float64
	SleptFor    []time.Duration
	Events      []ProgressEvent
	Logs        *testLogger
}

type compositeTestableInstance struct {
	Instance    *compositeThrottleDefaultImpl
	CurrentTime uint64
	Jitter      float64
	SleptFor    []time.Duration
	Logs        *testLogger
}

type testLogger struct {
	Messages []string
}

func (l *testLogger) Debug(text string) {
	l.Messages = append(l.Messages, fmt.Sprintf("[d] %v", text))
}
func (l *testLogger) Info(text string) {
	l.Messages = append(l.Messages, fmt.Sprintf("[i] %v", text))
}
func (l *testLogger) Warning(text string) {
	l.Messages = append(l.Messages, fmt.Sprintf("[w] %v", text))
}
func (l *testLogger) Error(text string) {
	l.Messages = append(l.Messages, fmt.Sprintf("[e] %v", text))
}

func (ti *testableInstance) TimeTravel(diff int64) {
	ti.CurrentTime = uint64(int64(ti.CurrentTime) + diff)
}

func (ti *testableInstance) AssertCurrentTime(t *testing.T, expected uint64) {
	assert.Equal(t, uint64(expected), ti.CurrentTime, "the current time is expected to be %v and is instead %v", expected, ti.CurrentTime)
}

func (ti *testableInstance) AssertThrottleStatus(t *testing.T, concurrency int, safeCeiling int, interval time.Duration) {
	stats := ti.Instance.Stats()
	assert.Equal(t, concurrency, stats.CurrentConcurrency)
	assert.Equal(t, safeCeiling, stats.SafeCeiling)
	assert.Equal(t, interval, stats.DispatchInterval)
}

func (ti *testableInstance) AssertWindowFailures(t *testing.T, expected int) {
	assert.Equal(t, expected, ti.Instance.Stats().WindowFailures)
}

func buildInstance(t *testing.T, configurer func(config *Config)) *testableInstance {
	ti := testableInstance{
		CurrentTime: 1000000,
		Jitter:      0,
		Logs:        &testLogger{},
	}

	timeFunc := func() time.Time {
		return time.Unix(
			int64(ti.CurrentTime)/int64(1000),
			(int64(ti.CurrentTime)%int64(1000))*int64(1000000),
		)
	}

	sleepFunc := func(d time.Duration) {
		ti.SleptFor = append(ti.SleptFor, d)
		ti.CurrentTime = ti.CurrentTime + uint64(d.Milliseconds())
	}

	randFunc := func() float64 {
		return ti.Jitter
	}

	config := Config{
		MaxConcurrency:      defaultTestMaxConcurrency,
		TotalTasks:          defaultTestTotalTasks,
		MinDispatchInterval: defaultTestDispatchInterval,
		FailureWindow:       defaultTestFailureWindow,
		CoolingPeriod:       defaultTestCoolingPeriod,
		TimeFunc:            timeFunc,
		SleepFunc:           sleepFunc,
		RandFunc:            randFunc,
		Logger:              ti.Logs,
		Observer: ProgressObserverFunc(func(event ProgressEvent) {
			ti.Events = append(ti.Events, event)
		}),
	}

	if configurer != nil {
		configurer(&config)
	}

	instance, err := New(&config)

	if t != nil {
		assert.NotNil(t, instance)
		assert.Nil(t, err)
	}

	ti.Instance = instance.(*throttleDefaultImpl)

	return &ti
}

func buildDefaultInstance(t *testing.T) *testableInstance {
	return buildInstance(t, nil)
}

func buildCompositeInstance(t *testing.T, configurer func(config *CompositeConfig)) *compositeTestableInstance {
	ti := compositeTestableInstance{
		CurrentTime: 1000000,
		Jitter:      0,
		Logs:        &testLogger{},
	}

	timeFunc := func() time.Time {
		return time.Unix(
			int64(ti.CurrentTime)/int64(1000),
			(int64(ti.CurrentTime)%int64(1000))*int64(1000000),
		)
	}

	sleepFunc := func(d time.Duration) {
		ti.SleptFor = append(ti.SleptFor, d)
		ti.CurrentTime = ti.CurrentTime + uint64(d.Milliseconds())
	}

	randFunc := func() float64 {
		return ti.Jitter
	}

	config := CompositeConfig{
		Throttles: []Config{
			{
				MaxConcurrency:      defaultTestMaxConcurrency,
				TotalTasks:          defaultTestTotalTasks,
				MinDispatchInterval: defaultTestDispatchInterval,
				FailureWindow:       defaultTestFailureWindow,
				CoolingPeriod:       defaultTestCoolingPeriod,
			},
			{
				MaxConcurrency:      defaultTestMaxConcurrency * 2,
				TotalTasks:          defaultTestTotalTasks,
				MinDispatchInterval: defaultTestDispatchInterval / 2,
				FailureWindow:       defaultTestFailureWindow,
				CoolingPeriod:       defaultTestCoolingPeriod,
			},
		},
		TimeFunc:  timeFunc,
		SleepFunc: sleepFunc,
		RandFunc:  randFunc,
		Logger:    ti.Logs,
	}

	if configurer != nil {
		configurer(&config)
	}

	instance, err := NewComposite(&config)

	if t != nil {
		assert.NotNil(t, instance)
		assert.Nil(t, err)
	}

	ti.Instance = instance.(*compositeThrottleDefaultImpl)

	return &ti
}

func buildDefaultCompositeInstance(t *testing.T) *compositeTestableInstance {
	return buildCompositeInstance(t, nil)
}

func (ti *compositeTestableInstance) TimeTravel(diff int64) {
	ti.CurrentTime = uint64(int64(ti.CurrentTime) + diff)
}

// recordSuccesses reports the given number of completions
// directly to the throttle.
func recordSuccesses(ti *testableInstance, num int, duration time.Duration) {
	for i := 0; i < num; i++ {
		ti.Instance.recordSuccess(duration)
	}
}

// recordFailures reports the given number of rate-limit failures
// directly to the throttle.
func recordFailures(ti *testableInstance, num int) {
	for i := 0; i < num; i++ {
		ti.Instance.recordFailure()
	}
}
