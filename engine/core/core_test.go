package core

import (
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

func TestMain(m *testing.M) {
	SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestEventBusOrderAndHandled(t *testing.T) {
	bus := NewEventBus()
	var calls []string
	first, second, third := "first", "second", "third"

	record := func(handled bool) FnOnEvent {
		return func(code SystemEventCode, listener interface{}, ctx EventContext) bool {
			calls = append(calls, listener.(string))
			return handled
		}
	}
	require.True(t, bus.Register(EVENT_CODE_DEVICE_RESET, first, record(false)))
	require.True(t, bus.Register(EVENT_CODE_DEVICE_RESET, second, record(true)))
	require.True(t, bus.Register(EVENT_CODE_DEVICE_RESET, third, record(false)))
	assert.False(t, bus.Register(EVENT_CODE_DEVICE_RESET, first, record(false)), "duplicate listener")
	assert.False(t, bus.Register(EVENT_CODE_DEVICE_RESET, "nil callback", nil))

	assert.True(t, bus.Fire(EVENT_CODE_DEVICE_RESET, nil, DeviceEventData{}))
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	assert.True(t, bus.Unregister(EVENT_CODE_DEVICE_RESET, second))
	assert.False(t, bus.Unregister(EVENT_CODE_DEVICE_RESET, second))
	assert.False(t, bus.Fire(EVENT_CODE_DEVICE_RESET, nil, nil))
	assert.Equal(t, []string{"first", "third"}, calls)

	assert.False(t, bus.Fire(EVENT_CODE_DEVICE_LOST, nil, nil), "no listeners")
}

func TestEventBusPayload(t *testing.T) {
	bus := NewEventBus()
	sender := &struct{}{}
	var got EventContext
	bus.Register(EVENT_CODE_RESOURCE_DESTROYED, t, func(code SystemEventCode, listener interface{}, ctx EventContext) bool {
		got = ctx
		return false
	})

	bus.Fire(EVENT_CODE_RESOURCE_DESTROYED, sender, ResourceEventData{Handle: 7, Name: "quad", Tag: 3})
	assert.Same(t, sender, got.Sender)
	assert.Equal(t, ResourceEventData{Handle: 7, Name: "quad", Tag: 3}, got.Data)
}

func TestEventBusListenerMayUnregisterItself(t *testing.T) {
	bus := NewEventBus()
	fired := 0
	var listener FnOnEvent
	listener = func(code SystemEventCode, l interface{}, ctx EventContext) bool {
		fired++
		bus.Unregister(code, l)
		return false
	}
	bus.Register(EVENT_CODE_DEVICE_LOST, "once", listener)
	bus.Fire(EVENT_CODE_DEVICE_LOST, nil, nil)
	bus.Fire(EVENT_CODE_DEVICE_LOST, nil, nil)
	assert.Equal(t, 1, fired)
}

func TestNilEventBusFire(t *testing.T) {
	var bus *EventBus
	assert.False(t, bus.Fire(EVENT_CODE_DEVICE_RESET, nil, nil))
}

func TestNativeCallErrorClassification(t *testing.T) {
	assert.NoError(t, CheckResult("present", native.ResultSuccess))

	err := CheckResult("create", native.ResultErrorOutOfDeviceMem)
	assert.ErrorIs(t, err, ErrNativeCall)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.NotErrorIs(t, err, ErrDeviceLost)

	err = CheckResult("present", native.ResultErrorDeviceLost)
	assert.ErrorIs(t, err, ErrDeviceLost)
	assert.NotErrorIs(t, err, ErrOutOfMemory)

	var nce *NativeCallError
	require.True(t, errors.As(err, &nce))
	assert.Equal(t, "present", nce.Op)
	assert.Equal(t, native.ResultErrorDeviceLost, nce.Code)

	err = CheckResult("set", native.ResultErrorInvalidCall)
	assert.ErrorIs(t, err, ErrNativeCall)
	assert.NotErrorIs(t, err, ErrDeviceLost)
}

func TestNotSupported(t *testing.T) {
	err := NotSupported("render target index", 1, native.ProfileReach)
	assert.ErrorIs(t, err, ErrNotSupported)

	var nse *NotSupportedError
	require.True(t, errors.As(err, &nse))
	assert.Equal(t, "1", nse.Limit)
	assert.Equal(t, native.ProfileReach, nse.Profile)
	assert.Contains(t, err.Error(), "limit 1")

	assert.NotContains(t, NotSupported("32-bit indices", nil, native.ProfileReach).Error(), "limit")
}

func TestFormattedErrors(t *testing.T) {
	for _, tc := range []struct {
		err    error
		target error
	}{
		{InvalidOperationf("bound %d", 1), ErrInvalidOperation},
		{ObjectDisposedf("buffer %d", 2), ErrObjectDisposed},
		{ArgumentOutOfRangef("index %d", 3), ErrArgumentOutOfRange},
		{Argumentf("name %q", "x"), ErrArgument},
		{OutOfMemoryf("staging %d bytes", 4), ErrOutOfMemory},
	} {
		assert.ErrorIs(t, tc.err, tc.target)
	}
	assert.Contains(t, Argumentf("name %q", "x").Error(), `name "x"`)
}

func TestIdentifierIsMonotonic(t *testing.T) {
	var id Identifier
	assert.Zero(t, id.Last())

	const workers, per = 8, 100
	seen := make(chan uint64, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				seen <- id.AquireNewID()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for v := range seen {
		assert.NotZero(t, v)
		assert.False(t, unique[v], "id %d issued twice", v)
		unique[v] = true
	}
	assert.Len(t, unique, workers*per)
	assert.Equal(t, uint64(workers*per), id.Last())
}

func TestMetricsRollingAverage(t *testing.T) {
	m := NewMetrics()
	assert.Zero(t, m.AverageMS())

	m.Record(0.010)
	m.Record(0.020)
	assert.Equal(t, uint64(2), m.Count())
	assert.InDelta(t, 15.0, m.AverageMS(), 1e-9)
	assert.InDelta(t, 20.0, m.LastMS(), 1e-9)

	// the window forgets the oldest samples
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Record(0.001)
	}
	assert.InDelta(t, 1.0, m.AverageMS(), 1e-9)
	assert.Equal(t, uint64(AVG_COUNT)+2, m.Count())
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Zero(t, c.Elapsed(), "a clock that was never started does not move")

	c.Start()
	c.Update()
	first := c.Elapsed()
	assert.GreaterOrEqual(t, first, 0.0)

	time.Sleep(2 * time.Millisecond)
	c.Stop()
	stopped := c.Elapsed()
	assert.GreaterOrEqual(t, c.Duration(), 2*time.Millisecond)
	c.Update()
	assert.Equal(t, stopped, c.Elapsed())
}

func TestSetLogLevel(t *testing.T) {
	require.NoError(t, SetLogLevel("debug"))
	require.NoError(t, SetLogLevel("info"))
	assert.Error(t, SetLogLevel("loud"))
}
