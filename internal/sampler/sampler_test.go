package sampler

import (
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/thermopost/hardware/bme280"
	"github.com/temoto/thermopost/internal/tele"
	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
)

type senv struct {
	s      *Sampler
	sensor *bme280.Mock
	uplink *tele.MockTransport
	pool   *tele.BufferPool
	q      *tele.Queue[*tele.Request]
}

func newSampleEnv(t testing.TB, capacity int, readings ...bme280.MockReading) *senv {
	log := log2.NewTest(t, log2.LDebug)
	stat := new(tele_api.Stat)
	env := &senv{
		sensor: bme280.NewMock(readings...),
		uplink: &tele.MockTransport{},
		pool:   tele.NewBufferPool(capacity+2, 128),
		q:      tele.NewQueue[*tele.Request](capacity),
	}
	env.s = &Sampler{
		Log:       log.Sub("sampler"),
		Sensor:    env.sensor,
		Queue:     env.q,
		Alloc:     env.pool,
		Escalator: tele.NewReporter(log.Sub("escalate"), env.uplink, stat, 0),
		Stat:      stat,
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	}
	return env
}

func TestSampleFailThenSucceed(t *testing.T) {
	t.Parallel()

	env := newSampleEnv(t, 4,
		bme280.MockReading{Err: errors.New("i2c nack")},
		bme280.MockReading{Raw: 533060},
	)
	ctx := context.Background()

	require.NoError(t, env.s.Sample(ctx))
	assert.Equal(t, 0, env.q.Len(), "failed read must not produce telemetry")
	reports := env.uplink.CallsTo(tele_api.EndpointError)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Check)
	assert.JSONEq(t, `{"error":"Failed to read temperature: i2c nack"}`, reports[0].Payload)

	require.NoError(t, env.s.Sample(ctx))
	require.Equal(t, 1, env.q.Len())
	r, err := env.q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, tele_api.EndpointTemperature, r.Endpoint)
	var reading tele_api.Temperature
	require.NoError(t, json.Unmarshal(r.Payload, &reading))
	assert.InDelta(t, 20.0, reading.Temperature, 0.01)
	assert.Equal(t, int64(1700000000), reading.Timestamp)
	env.pool.Release(r)

	assert.Len(t, env.uplink.Calls(), 1, "no more escalations after recovery")
	st := env.s.Stat.Snapshot()
	assert.Equal(t, uint32(1), st.SensorFailed)
	assert.Equal(t, uint32(1), st.Escalated)
	assert.Equal(t, uint32(1), st.Enqueued)
}

func TestSampleEscalationDropped(t *testing.T) {
	t.Parallel()

	env := newSampleEnv(t, 1, bme280.MockReading{Err: errors.New("bus error")})
	env.uplink.Default = errors.New("network unreachable")

	require.NoError(t, env.s.Sample(context.Background()))
	assert.Len(t, env.uplink.Calls(), 1, "escalation failure is not escalated")
	assert.Equal(t, uint32(1), env.s.Stat.Snapshot().EscalationDropped)
}

func TestSampleAllocFailure(t *testing.T) {
	t.Parallel()

	env := newSampleEnv(t, 4, bme280.MockReading{Raw: 533060})
	env.s.Alloc = tele.NewBufferPool(1, 4) // payload does not fit

	require.NoError(t, env.s.Sample(context.Background()))
	assert.Equal(t, 0, env.q.Len())
	assert.Empty(t, env.uplink.Calls(), "allocation fault is not escalated")
	assert.Equal(t, uint32(1), env.s.Stat.Snapshot().AllocFailed)
}

func TestSampleBlocksOnFullQueue(t *testing.T) {
	t.Parallel()

	env := newSampleEnv(t, 1)
	env.sensor.Default = &bme280.MockReading{Raw: 533060}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, env.s.Sample(ctx))

	done := make(chan error, 1)
	go func() { done <- env.s.Sample(ctx) }()
	select {
	case err := <-done:
		t.Fatalf("expected Sample to block on full queue, err=%v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 2, env.sensor.Reads(), "sensor read before Put, not held during it")

	r, err := env.q.Get(ctx)
	require.NoError(t, err)
	env.pool.Release(r)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Sample did not resume after Get")
	}
	assert.Equal(t, 1, env.q.Len())

	// cancelled Put releases buffer
	go func() { done <- env.s.Sample(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.Equal(t, context.Canceled, <-done)
	assert.Equal(t, 2, env.pool.Free())
}

func TestRunCancel(t *testing.T) {
	t.Parallel()

	env := newSampleEnv(t, 8)
	env.sensor.Default = &bme280.MockReading{Raw: 533060}
	env.s.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.s.Run(ctx) }()
	require.Eventually(t, func() bool { return env.q.Len() >= 3 }, 5*time.Second, time.Millisecond)
	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestRunSleepsAfterEachSample(t *testing.T) {
	t.Parallel()

	env := newSampleEnv(t, 8)
	env.sensor.Default = &bme280.MockReading{Raw: 533060}
	env.s.Interval = 250 * time.Millisecond
	var sleeps []time.Duration
	env.s.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		assert.Equal(t, len(sleeps), env.q.Len(), "sleep must follow queued sample")
		if len(sleeps) == 3 {
			return context.Canceled
		}
		return nil
	}
	err := env.s.Run(context.Background())
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, []time.Duration{env.s.Interval, env.s.Interval, env.s.Interval}, sleeps)
	assert.Equal(t, 3, env.q.Len())
}

func TestSamplerCheck(t *testing.T) {
	t.Parallel()

	s := &Sampler{Sensor: bme280.NewMock()}
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sampler.Queue=nil")
}
