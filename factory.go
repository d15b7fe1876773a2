package gentlify

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

var (
	defaultMinDispatchInterval = 200 * time.Millisecond
	defaultMaxDispatchInterval = 30 * time.Second
	defaultFailureThreshold    = 3
	defaultFailureWindow       = 60 * time.Second
	defaultCoolingPeriod       = 60 * time.Second

	// upper bound of the random jitter fraction applied
	// to the dispatch interval on every grant.
	maxJitterFraction = 0.5

	minConcurrency = 1
)

// Config holds the basic configuration for a dispatch throttle instance
type Config struct {

	// MaxConcurrency is the hard ceiling on the number
	// of dispatch slots allowed in flight. Required.
	MaxConcurrency int

	// InitialConcurrency is the number of slots permitted at startup.
	//
	// When not specified it defaults to MaxConcurrency.
	// When set lower, the throttle starts as if it had just
	// decelerated: the cooling timer is already running, so the
	// throttle climbs back toward MaxConcurrency organically after
	// sustained success instead of starting at full blast.
	InitialConcurrency int

	// TotalTasks is the total number of calls expected for this job,
	// used for progress reporting. It can be left at zero and updated
	// later with SetTotal; progress events are suppressed while it is zero.
	TotalTasks int

	// MinDispatchInterval is the floor for the spacing enforced between
	// successive dispatch grants. Reacceleration never shrinks the
	// spacing below this value.
	//
	// When not specified, a default of 200ms is assumed.
	MinDispatchInterval time.Duration

	// MaxDispatchInterval caps the spacing growth applied by
	// repeated decelerations.
	//
	// When not specified, a default of 30s is assumed.
	MaxDispatchInterval time.Duration

	// FailureThreshold is the number of rate-limit failures inside the
	// sliding window that triggers a deceleration.
	//
	// When not specified, a default of 3 is assumed.
	FailureThreshold int

	// FailureWindow is the width of the sliding window
	// used for failure tracking.
	//
	// When not specified, a default of 60s is assumed.
	FailureWindow time.Duration

	// CoolingPeriod is the amount of failure-free time required
	// before a reacceleration step.
	//
	// When not specified, a default of 60s is assumed.
	CoolingPeriod time.Duration

	// Time-related functions can be overridden to allow for easier testing
	// you should usually not override these.
	TimeFunc  func() time.Time
	SleepFunc func(d time.Duration)

	// RandFunc yields the uniform values in [0, 1) used for dispatch
	// jitter. It can be overridden to allow for easier testing,
	// you should usually not override it.
	RandFunc func() float64

	// you can pass your custom logger if you'd like to
	// but it's not required
	Logger Logger

	// Observer receives structured progress events.
	// When not provided, events are logged through the Logger.
	Observer ProgressObserver
}

type CompositeConfig struct {

	// Throttles is a required parameter holding the configurations
	// of the single throttles you want to combine together.
	//
	// A call must pass every combined throttle before dispatching,
	// and its outcome is reported to all of them.
	Throttles []Config

	// Time-related functions can be overridden to allow for easier testing
	// you should usually not override these.
	TimeFunc  func() time.Time
	SleepFunc func(d time.Duration)

	// RandFunc yields the uniform values in [0, 1) used for dispatch
	// jitter. It can be overridden to allow for easier testing,
	// you should usually not override it.
	RandFunc func() float64

	// you can pass your custom logger if you'd like to
	// but it's not required
	Logger Logger

	// Observer receives structured progress events from the primary
	// (first) throttle. When not provided, events are logged
	// through the Logger.
	Observer ProgressObserver
}

// New returns an instance of gentlify.StandaloneThrottle
// built with the specified configuration.
//
// A non-nil error is returned in case of invalid configuration.
func New(config *Config) (StandaloneThrottle, error) {
	effectiveLogger := config.Logger
	if effectiveLogger == nil {
		effectiveLogger = &defaultLogger{}
	}

	parsedConfig, err := validateConfiguration(config)
	if err != nil {
		return nil, err
	}

	effectiveObserver := config.Observer
	if effectiveObserver == nil {
		effectiveObserver = newLogObserver(effectiveLogger)
	}

	out := throttleDefaultImpl{
		Config:   parsedConfig,
		TimeFunc: config.TimeFunc,
		RandFunc: config.RandFunc,
		// SleepFunc stays nil unless provided: the default sleep
		// is context-aware and cannot be expressed as func(d).
		SleepFunc: config.SleepFunc,
		Logger:    effectiveLogger,
		Observer:  effectiveObserver,

		CurrentConcurrency: parsedConfig.InitialConcurrency,
		SafeCeiling:        parsedConfig.MaxConcurrency,
		DispatchInterval:   parsedConfig.MinDispatchInterval,
		Total:              parsedConfig.TotalTasks,
		FailureTimestamps:  deque.New(),
		Durations:          deque.New(),
	}

	if out.TimeFunc == nil {
		out.TimeFunc = time.Now
	}
	if out.RandFunc == nil {
		out.RandFunc = rand.Float64
	}

	out.SlotFreed = sync.NewCond(&out.Lock)
	out.StartedAt = out.currentTime()

	// starting below the ceiling means the cooling countdown
	// is already running
	if parsedConfig.InitialConcurrency < parsedConfig.MaxConcurrency {
		out.CoolingStart = out.StartedAt
	}

	effectiveLogger.Info(fmt.Sprintf(
		"dispatch throttle initialized: concurrency %v (max %v), dispatch interval %v ms, %v total tasks",
		parsedConfig.InitialConcurrency,
		parsedConfig.MaxConcurrency,
		parsedConfig.MinDispatchInterval.Milliseconds(),
		parsedConfig.TotalTasks,
	))

	return &out, nil
}

// validateConfiguration will parse the user-provided configuration
// to the required format for runtime while also validating it.
func validateConfiguration(config *Config) (*throttleEffectiveConfig, error) {
	out := throttleEffectiveConfig{}

	if config.MaxConcurrency < minConcurrency {
		return nil, fmt.Errorf("MaxConcurrency should be at least 1 (given: %v)", config.MaxConcurrency)
	}
	out.MaxConcurrency = config.MaxConcurrency

	if config.InitialConcurrency < 0 {
		return nil, fmt.Errorf("InitialConcurrency should be zero or positive (given: %v)", config.InitialConcurrency)
	} else if config.InitialConcurrency == 0 {
		out.InitialConcurrency = config.MaxConcurrency
	} else if config.InitialConcurrency > config.MaxConcurrency {
		return nil, fmt.Errorf("InitialConcurrency should not be greater than MaxConcurrency (given: %v over %v)", config.InitialConcurrency, config.MaxConcurrency)
	} else {
		out.InitialConcurrency = config.InitialConcurrency
	}

	if config.TotalTasks < 0 {
		return nil, fmt.Errorf("TotalTasks should be zero or positive (given: %v)", config.TotalTasks)
	}
	out.TotalTasks = config.TotalTasks

	if config.MinDispatchInterval < 0 {
		return nil, fmt.Errorf("MinDispatchInterval should be zero or positive (given: %v)", config.MinDispatchInterval)
	} else if config.MinDispatchInterval == 0 {
		out.MinDispatchInterval = defaultMinDispatchInterval
	} else {
		out.MinDispatchInterval = config.MinDispatchInterval
	}

	if config.MaxDispatchInterval < 0 {
		return nil, fmt.Errorf("MaxDispatchInterval should be zero or positive (given: %v)", config.MaxDispatchInterval)
	} else if config.MaxDispatchInterval == 0 {
		out.MaxDispatchInterval = defaultMaxDispatchInterval
	} else {
		out.MaxDispatchInterval = config.MaxDispatchInterval
	}

	if out.MaxDispatchInterval < out.MinDispatchInterval {
		return nil, fmt.Errorf("MaxDispatchInterval should not be less than MinDispatchInterval (given: %v under %v)", out.MaxDispatchInterval, out.MinDispatchInterval)
	}

	if config.FailureThreshold < 0 {
		return nil, fmt.Errorf("FailureThreshold should be zero or positive (given: %v)", config.FailureThreshold)
	} else if config.FailureThreshold == 0 {
		out.FailureThreshold = defaultFailureThreshold
	} else {
		out.FailureThreshold = config.FailureThreshold
	}

	if config.FailureWindow < 0 {
		return nil, fmt.Errorf("FailureWindow should be zero or positive (given: %v)", config.FailureWindow)
	} else if config.FailureWindow == 0 {
		out.FailureWindow = defaultFailureWindow
	} else {
		out.FailureWindow = config.FailureWindow
	}

	if config.CoolingPeriod < 0 {
		return nil, fmt.Errorf("CoolingPeriod should be zero or positive (given: %v)", config.CoolingPeriod)
	} else if config.CoolingPeriod == 0 {
		out.CoolingPeriod = defaultCoolingPeriod
	} else {
		out.CoolingPeriod = config.CoolingPeriod
	}

	return &out, nil
}

// NewComposite returns an instance of gentlify.CompositeThrottle
// built with the specified configuration, combining multiple
// throttle budgets into a single instance.
//
// A non-nil error is returned in case of invalid configuration.
func NewComposite(config *CompositeConfig) (CompositeThrottle, error) {
	effectiveLogger := config.Logger
	if effectiveLogger == nil {
		effectiveLogger = &defaultLogger{}
	}

	num := len(config.Throttles)
	if num < 1 {
		return nil, errors.New("composite throttle requires at least one component configuration")
	}

	throttles := make([]*throttleDefaultImpl, num)
	for i, subConfig := range config.Throttles {
		if subConfig.TimeFunc != nil {
			return nil, errors.New("cannot specify TimeFunc on a combined throttle. Please specify it on the parent throttle instead")
		}
		subConfig.TimeFunc = config.TimeFunc

		if subConfig.SleepFunc != nil {
			return nil, errors.New("cannot specify SleepFunc on a combined throttle. Please specify it on the parent throttle instead")
		}
		subConfig.SleepFunc = config.SleepFunc

		if subConfig.RandFunc != nil {
			return nil, errors.New("cannot specify RandFunc on a combined throttle. Please specify it on the parent throttle instead")
		}
		subConfig.RandFunc = config.RandFunc

		if subConfig.Observer != nil {
			return nil, errors.New("cannot specify Observer on a combined throttle. Please specify it on the parent throttle instead")
		}

		if subConfig.Logger == nil {
			subConfig.Logger = effectiveLogger
		}

		if i == 0 {
			subConfig.Observer = config.Observer
		} else {
			// only the primary throttle reports progress,
			// the others would emit duplicate events
			subConfig.Observer = NewNoOpObserver()
		}

		throttle, err := New(&subConfig)
		if err != nil {
			return nil, fmt.Errorf("error building throttle at index %d: %w", i, err)
		}
		throttles[i] = throttle.(*throttleDefaultImpl)
	}

	out := compositeThrottleDefaultImpl{
		Logger:    effectiveLogger,
		Throttles: throttles,
	}

	return &out, nil
}
