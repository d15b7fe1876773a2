package gentlify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterfacesAreCorrectlyImplemented(t *testing.T) {

	isThrottle := func(i Throttle) {}
	isStandaloneThrottle := func(i StandaloneThrottle) {}
	isCompositeThrottle := func(i CompositeThrottle) {}

	standaloneInstance, _ := New(&Config{
		MaxConcurrency: 3,
	})

	compositeInstance, _ := NewComposite(&CompositeConfig{
		Throttles: []Config{
			{
				MaxConcurrency: 3,
			},
		},
	})

	isStandaloneThrottle(standaloneInstance)
	isThrottle(standaloneInstance)

	isCompositeThrottle(compositeInstance)
	isThrottle(compositeInstance)

	assert.False(t, standaloneInstance.IsComposite())
	assert.True(t, compositeInstance.IsComposite())
}

func TestFactoryBuilderWithMinimalParams(t *testing.T) {
	instance, err := New(&Config{
		MaxConcurrency: 3,
	})

	assert.Nil(t, err)
	assert.NotNil(t, instance)

	stats := instance.Stats()
	assert.Equal(t, 3, stats.CurrentConcurrency)
	assert.Equal(t, 3, stats.SafeCeiling)
	assert.Equal(t, 3, stats.MaxConcurrency)
	assert.Equal(t, defaultMinDispatchInterval, stats.DispatchInterval)
	assert.Zero(t, stats.Outstanding)
	assert.Zero(t, stats.WindowFailures)
}

func TestValidateConfigurationAppliesDefaults(t *testing.T) {
	parsed, err := validateConfiguration(&Config{
		MaxConcurrency: 5,
	})

	assert.Nil(t, err)
	assert.Equal(t, 5, parsed.MaxConcurrency)
	assert.Equal(t, 5, parsed.InitialConcurrency)
	assert.Equal(t, defaultMinDispatchInterval, parsed.MinDispatchInterval)
	assert.Equal(t, defaultMaxDispatchInterval, parsed.MaxDispatchInterval)
	assert.Equal(t, defaultFailureThreshold, parsed.FailureThreshold)
	assert.Equal(t, defaultFailureWindow, parsed.FailureWindow)
	assert.Equal(t, defaultCoolingPeriod, parsed.CoolingPeriod)
}

func TestValidateConfigurationRejectsInvalidValues(t *testing.T) {
	invalid := []Config{
		{MaxConcurrency: 0},
		{MaxConcurrency: -1},
		{MaxConcurrency: 3, InitialConcurrency: -1},
		{MaxConcurrency: 3, InitialConcurrency: 4},
		{MaxConcurrency: 3, TotalTasks: -1},
		{MaxConcurrency: 3, MinDispatchInterval: -time.Second},
		{MaxConcurrency: 3, MaxDispatchInterval: -time.Second},
		{MaxConcurrency: 3, MinDispatchInterval: time.Second, MaxDispatchInterval: 500 * time.Millisecond},
		{MaxConcurrency: 3, FailureThreshold: -1},
		{MaxConcurrency: 3, FailureWindow: -time.Second},
		{MaxConcurrency: 3, CoolingPeriod: -time.Second},
	}

	for _, config := range invalid {
		config := config
		parsed, err := validateConfiguration(&config)
		assert.Nil(t, parsed)
		assert.NotNil(t, err)

		instance, err := New(&config)
		assert.Nil(t, instance)
		assert.NotNil(t, err)
	}
}

func TestInitialConcurrencyBelowMaxStartsCoolingCountdown(t *testing.T) {
	ti := buildInstance(t, func(config *Config) {
		config.MaxConcurrency = 8
		config.InitialConcurrency = 2
	})

	assert.False(t, ti.Instance.CoolingStart.IsZero())
	ti.AssertThrottleStatus(t, 2, 8, defaultTestDispatchInterval)
}

func TestInitialConcurrencyAtMaxDoesNotStartCooling(t *testing.T) {
	ti := buildDefaultInstance(t)

	assert.True(t, ti.Instance.CoolingStart.IsZero())
	ti.AssertThrottleStatus(t, defaultTestMaxConcurrency, defaultTestMaxConcurrency, defaultTestDispatchInterval)
}

func TestNewCompositeRequiresAtLeastOneComponent(t *testing.T) {
	instance, err := NewComposite(&CompositeConfig{})

	assert.Nil(t, instance)
	assert.NotNil(t, err)
}

func TestNewCompositeRejectsHooksOnCombinedThrottles(t *testing.T) {
	invalid := []CompositeConfig{
		{Throttles: []Config{{MaxConcurrency: 3, TimeFunc: time.Now}}},
		{Throttles: []Config{{MaxConcurrency: 3, SleepFunc: func(d time.Duration) {}}}},
		{Throttles: []Config{{MaxConcurrency: 3, RandFunc: func() float64 { return 0 }}}},
		{Throttles: []Config{{MaxConcurrency: 3, Observer: NewNoOpObserver()}}},
	}

	for _, config := range invalid {
		config := config
		instance, err := NewComposite(&config)
		assert.Nil(t, instance)
		assert.NotNil(t, err)
	}
}

func TestNewCompositeReportsInvalidComponentIndex(t *testing.T) {
	instance, err := NewComposite(&CompositeConfig{
		Throttles: []Config{
			{MaxConcurrency: 3},
			{MaxConcurrency: 0},
		},
	})

	assert.Nil(t, instance)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "index 1")
}
