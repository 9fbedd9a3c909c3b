package state

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/thermopost/helpers"
	"github.com/temoto/thermopost/internal/sampler"
	"github.com/temoto/thermopost/internal/tele"
	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
)

// PayloadMax bounds one request buffer. Temperature JSON is ~50 bytes.
const PayloadMax = 256

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Hardware     hardware // hardware.go
	Log          *log2.Log
	Stat         *tele_api.Stat

	// Set by Init unless assigned before.
	Transport tele_api.Transporter
	Escalator tele_api.Escalator
	Queue     *tele.Queue[*tele.Request]
	Alloc     tele.Allocator

	// Clock source and delay, tests replace them.
	Now   func() time.Time
	Sleep helpers.SleepFunc

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// Init builds delivery pipeline from config. No network or hardware IO.
// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s", g.BuildVersion)
	if g.BuildVersion == "unknown" || strings.HasSuffix(g.BuildVersion, "-dirty") {
		g.Log.Errorf("running development build version=%s", g.BuildVersion)
	}

	level, err := log2.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errors.Annotate(err, "config: log.level")
	}
	g.Log.SetLevel(level)
	if g.Stat == nil {
		g.Stat = new(tele_api.Stat)
	}
	if g.Now == nil {
		g.Now = time.Now
	}
	if g.Sleep == nil {
		g.Sleep = helpers.Sleep
	}

	capacity := cfg.Tele.QueueCapacity
	g.Queue = tele.NewQueue[*tele.Request](capacity)
	if g.Alloc == nil {
		// producer holds one, dispatcher holds one in flight
		g.Alloc = tele.NewBufferPool(capacity+2, PayloadMax)
	}

	teleLevel := level
	if cfg.Tele.LogDebug {
		teleLevel = log2.LDebug
	}
	teleLog := g.Log.Clone(teleLevel)
	if g.Transport == nil {
		g.Transport, err = tele.NewTransport(teleLog.Sub("tele"), cfg.Tele)
		if err != nil {
			return errors.Annotate(err, "tele init")
		}
	}
	if g.Escalator == nil {
		// escalation failures go to this clone only, never back into Report
		g.Escalator = tele.NewReporter(teleLog.Sub("escalate"), g.Transport, g.Stat, cfg.Tele.Timeout())
	}
	g.Log.Debugf("config: tele transport=%s capacity=%d max_retry=%d retry_delay=%v",
		cfg.Tele.Transport, capacity, cfg.Tele.MaxRetry, cfg.Tele.RetryDelay())
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Fatal(err)
	}
}

// Boot runs startup sequence before loops start: clock, ping, sensor.
// Every step only warns or escalates, device keeps going to sampling.
func (g *Global) Boot(ctx context.Context) sampler.Sensor {
	g.WaitClock(ctx)

	if err := tele.Ping(ctx, g.Transport, g.Config.Tele.Timeout()); err != nil {
		g.Log.Errorf("initial ping failed err=%v", err)
	} else {
		g.Log.Infof("initial ping successful")
	}

	sensor, err := g.Sensor()
	if err != nil {
		msg := err.Error()
		if _, ok := err.(*SensorError); !ok {
			msg = fmt.Sprintf("%s: %v", SensorStageInit, err)
		}
		g.Escalator.Report(ctx, msg)
	}
	if d := g.Hardware.Sensor.Device; d != nil {
		if err := g.checkChipID(d); err != nil {
			g.Escalator.Report(ctx, fmt.Sprintf("Failed to read chip ID: %v", err))
		}
	}
	return sensor
}

// WaitClock polls wall clock until it looks synced.
// Timestamps before that would be garbage, but timeout is not fatal.
func (g *Global) WaitClock(ctx context.Context) bool {
	cfg := &g.Config.Clock
	retry := 0
	for g.Now().Year() < cfg.MinYear {
		retry++
		if retry >= cfg.WaitRetries {
			g.Log.Errorf("clock not synced after %d polls now=%s", retry, g.Now().Format(time.RFC3339))
			return false
		}
		g.Log.Infof("waiting for system time to be set (%d/%d)", retry, cfg.WaitRetries)
		if err := g.Sleep(ctx, g.Config.ClockWait()); err != nil {
			return false
		}
	}
	return true
}

// Start launches dispatcher and sampler under g.Alive. Both stop when
// ctx is done or g.Alive is stopped.
func (g *Global) Start(ctx context.Context, sensor sampler.Sensor) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-g.Alive.StopChan():
		case <-ctx.Done():
		}
		cancel()
	}()

	d := &tele.Dispatcher{
		Log:        g.Log.Sub("dispatch"),
		Queue:      g.Queue,
		Transport:  g.Transport,
		Alloc:      g.Alloc,
		Stat:       g.Stat,
		MaxRetry:   g.Config.Tele.MaxRetry,
		RetryDelay: g.Config.Tele.RetryDelay(),
		Timeout:    g.Config.Tele.Timeout(),
		Sleep:      g.Sleep,
	}
	s := &sampler.Sampler{
		Log:       g.Log.Sub("sampler"),
		Sensor:    sensor,
		Queue:     g.Queue,
		Alloc:     g.Alloc,
		Escalator: g.Escalator,
		Stat:      g.Stat,
		Interval:  g.Config.SampleInterval(),
		Now:       g.Now,
		Sleep:     g.Sleep,
	}
	g.Alive.Add(2)
	go g.loop(ctx, "dispatch", d.Run)
	go g.loop(ctx, "sampler", s.Run)
}

func (g *Global) loop(ctx context.Context, name string, run func(context.Context) error) {
	defer g.Alive.Done()
	err := run(ctx)
	if err != nil && errors.Cause(err) != context.Canceled {
		// code error, nothing to retry
		g.Log.Errorf("%s stopped err=%v", name, errors.ErrorStack(err))
		g.Alive.Stop()
		return
	}
	g.Log.Debugf("%s stopped", name)
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			if msg, ok := args[0].(string); ok {
				err = errors.Annotatef(err, msg, args[1:]...)
			} else {
				err = errors.Annotate(err, fmt.Sprint(args...))
			}
		}
		g.Log.Error(err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

func (g *Global) Stop() {
	g.Alive.Stop()
}

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		g.closeHardware()
		return true
	case <-time.After(timeout):
		return false
	}
}
