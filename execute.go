package gentlify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	defaultMaxAttempts = 6
	defaultBaseDelay   = 15 * time.Second
	defaultDelayCap    = 120 * time.Second
)

// RequestFunc performs one attempt of the underlying call.
//
// The submitter does not depend on what the call does, only on how
// its outcome is classified: return nil on success, or an error
// wrapped with gentlify.RateLimited / gentlify.Transient /
// gentlify.Permanent. Unclassified errors are treated as permanent.
// Results should be captured by the closure.
type RequestFunc func(ctx context.Context) error

// RetryConfig holds the configuration for a submitter instance.
type RetryConfig struct {

	// MaxAttempts is the maximum number of attempts for a single
	// logical call, counting the first one.
	//
	// When not specified, a default of 6 is assumed.
	MaxAttempts int

	// BaseDelay is the backoff delay after the first failed attempt;
	// it doubles on every following attempt up to DelayCap.
	//
	// When not specified, a default of 15s is assumed: most provider
	// limits are per-minute budgets, so a retry after a couple of
	// seconds just burns an attempt before the window rolls over.
	BaseDelay time.Duration

	// DelayCap bounds the exponential backoff growth.
	//
	// When not specified, a default of 120s is assumed.
	DelayCap time.Duration

	// Time-related functions can be overridden to allow for easier testing
	// you should usually not override these.
	TimeFunc  func() time.Time
	SleepFunc func(d time.Duration)

	// you can pass your custom logger if you'd like to
	// but it's not required
	Logger Logger
}

// ExecuteResult holds the outcome of a logical call submitted
// through a Submitter.
//
// The Error field is nil when the call eventually succeeded.
// AttemptsNumber and WaitedFor provide information about the retries
// and backoff delays applied by the submitter.
//
// You can check the returned Error field with errors.Is against the
// sentinel gentlify.ErrRetriesExhausted, or cast it to the
// gentlify.RetriesExhausted type if you need additional info.
type ExecuteResult struct {
	AttemptsNumber int
	WaitedFor      time.Duration
	Error          error
}

// Submitter executes request functions through a shared throttle,
// applying call-local exponential backoff on rate-limited and
// transient failures.
//
// The submitter's backoff is deliberately independent of the
// throttle's own deceleration: it absorbs short-lived pressure on a
// single call, while the throttle responds to aggregate pressure
// across all concurrent callers.
type Submitter interface {
	// Execute runs fn through the throttle until it succeeds,
	// a permanent failure occurs, or the attempts are exhausted.
	// In case of success a nil value is returned.
	Execute(ctx context.Context, fn RequestFunc) error

	// ExecuteWithDetails works like Execute but returns additional
	// information about the attempts and delays with the output object.
	ExecuteWithDetails(ctx context.Context, fn RequestFunc) ExecuteResult
}

// NewSubmitter returns a Submitter bound to the given throttle,
// so call sites only need to pass the request function.
//
// A non-nil error is returned in case of invalid configuration.
func NewSubmitter(throttle Throttle, config *RetryConfig) (Submitter, error) {
	if throttle == nil {
		return nil, errors.New("a throttle instance is required")
	}
	if config == nil {
		config = &RetryConfig{}
	}

	effectiveLogger := config.Logger
	if effectiveLogger == nil {
		effectiveLogger = &defaultLogger{}
	}

	parsedConfig, err := validateRetryConfiguration(config)
	if err != nil {
		return nil, err
	}

	out := submitterDefaultImpl{
		Throttle:  throttle,
		Config:    parsedConfig,
		TimeFunc:  config.TimeFunc,
		SleepFunc: config.SleepFunc,
		Logger:    effectiveLogger,
	}

	if out.TimeFunc == nil {
		out.TimeFunc = time.Now
	}

	return &out, nil
}

// validateRetryConfiguration will parse the user-provided configuration
// to the required format for runtime while also validating it.
func validateRetryConfiguration(config *RetryConfig) (*retryEffectiveConfig, error) {
	out := retryEffectiveConfig{}

	if config.MaxAttempts < 0 {
		return nil, fmt.Errorf("MaxAttempts should be zero or positive (given: %v)", config.MaxAttempts)
	} else if config.MaxAttempts == 0 {
		out.MaxAttempts = defaultMaxAttempts
	} else {
		out.MaxAttempts = config.MaxAttempts
	}

	if config.BaseDelay < 0 {
		return nil, fmt.Errorf("BaseDelay should be zero or positive (given: %v)", config.BaseDelay)
	} else if config.BaseDelay == 0 {
		out.BaseDelay = defaultBaseDelay
	} else {
		out.BaseDelay = config.BaseDelay
	}

	if config.DelayCap < 0 {
		return nil, fmt.Errorf("DelayCap should be zero or positive (given: %v)", config.DelayCap)
	} else if config.DelayCap == 0 {
		out.DelayCap = defaultDelayCap
	} else {
		out.DelayCap = config.DelayCap
	}

	if out.DelayCap < out.BaseDelay {
		return nil, fmt.Errorf("DelayCap should not be less than BaseDelay (given: %v under %v)", out.DelayCap, out.BaseDelay)
	}

	return &out, nil
}

type retryEffectiveConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	DelayCap    time.Duration
}

type submitterDefaultImpl struct {
	Throttle Throttle
	Config   *retryEffectiveConfig
	Logger   Logger

	// Time-related functions can be overridden for testing.
	TimeFunc  func() time.Time
	SleepFunc func(d time.Duration)
}

// Execute runs fn through the throttle until it succeeds,
// a permanent failure occurs, or the attempts are exhausted.
// In case of success a nil value is returned.
//
// You can check the returned error with errors.Is against
// the sentinel gentlify.ErrRetriesExhausted.
func (instance *submitterDefaultImpl) Execute(ctx context.Context, fn RequestFunc) error {
	return instance.executeWithDetails(ctx, fn).Error
}

// ExecuteWithDetails works like Execute but returns additional
// information about the attempts and delays with the output object.
func (instance *submitterDefaultImpl) ExecuteWithDetails(ctx context.Context, fn RequestFunc) ExecuteResult {
	return instance.executeWithDetails(ctx, fn)
}

func (instance *submitterDefaultImpl) executeWithDetails(ctx context.Context, fn RequestFunc) ExecuteResult {
	out := ExecuteResult{
		AttemptsNumber: 0,
		WaitedFor:      0,
		Error:          nil,
	}

	for {
		out.AttemptsNumber++

		// every attempt goes through the throttle again:
		// concurrency and spacing rules apply to retries too
		slot, err := instance.Throttle.Acquire(ctx)
		if err != nil {
			out.Error = fmt.Errorf("error acquiring dispatch slot: %w", err)
			break
		}

		started := instance.currentTime()
		callErr := fn(ctx)
		callDuration := instance.currentTime().Sub(started)

		if callErr == nil {
			slot.Success(callDuration)
			break
		}

		var rateLimit *RateLimitError
		var transient *TransientError

		if errors.As(callErr, &rateLimit) {
			// rate pressure is the one signal the throttle adapts on
			slot.Failure()
		} else if errors.As(callErr, &transient) {
			// not evidence of rate pressure,
			// keep it out of the throttle's failure window
			slot.Release()
		} else {
			slot.Release()
			instance.Logger.Warning(fmt.Sprintf("call failed and will not be retried: %s", callErr.Error()))
			out.Error = callErr
			break
		}

		delay := instance.backoffDelay(out.AttemptsNumber)
		if rateLimit != nil && rateLimit.RetryAfter > 0 {
			// the provider told us exactly how long to stay away
			delay = rateLimit.RetryAfter
		}

		instance.Logger.Warning(fmt.Sprintf(
			"call failed on attempt %v, waiting %v ms before retrying: %s",
			out.AttemptsNumber,
			delay.Milliseconds(),
			callErr.Error(),
		))

		if err := instance.sleep(ctx, delay); err != nil {
			out.Error = fmt.Errorf("error waiting to retry: %w", err)
			break
		}
		out.WaitedFor += delay

		if out.AttemptsNumber >= instance.Config.MaxAttempts {
			instance.Logger.Error(fmt.Sprintf(
				"call failed and exhausted all %v attempts: %s",
				out.AttemptsNumber,
				callErr.Error(),
			))
			out.Error = &RetriesExhausted{
				AttemptsNumber: out.AttemptsNumber,
				WaitedFor:      out.WaitedFor,
				Cause:          callErr,
			}
			break
		}

		instance.Logger.Debug("call will now be reattempted")
	}

	return out
}

// backoffDelay computes the exponential delay for the given attempt:
// BaseDelay, 2x, 4x, ... capped at DelayCap.
func (instance *submitterDefaultImpl) backoffDelay(attempt int) time.Duration {
	delay := instance.Config.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= instance.Config.DelayCap {
			return instance.Config.DelayCap
		}
	}
	if delay > instance.Config.DelayCap {
		return instance.Config.DelayCap
	}
	return delay
}

func (instance *submitterDefaultImpl) currentTime() time.Time {
	// hook time provider here to allow easier testing
	return instance.TimeFunc()
}

func (instance *submitterDefaultImpl) sleep(ctx context.Context, d time.Duration) error {
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
