// Package sampler is the telemetry producer: reads sensor at fixed interval
// and hands readings to delivery queue.
package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/thermopost/helpers"
	"github.com/temoto/thermopost/internal/tele"
	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
)

const DefaultInterval = 1 * time.Second

type Sensor interface {
	ReadRawTemperature() (int32, error)
	Compensate(raw int32) float64
}

type Sampler struct {
	Log       *log2.Log
	Sensor    Sensor
	Queue     *tele.Queue[*tele.Request]
	Alloc     tele.Allocator
	Escalator tele_api.Escalator
	Stat      *tele_api.Stat
	Interval  time.Duration

	Now   func() time.Time
	Sleep helpers.SleepFunc
}

func (self *Sampler) check() error {
	switch {
	case self.Sensor == nil:
		return errors.Errorf("code error Sampler.Sensor=nil")
	case self.Queue == nil:
		return errors.Errorf("code error Sampler.Queue=nil")
	case self.Alloc == nil:
		return errors.Errorf("code error Sampler.Alloc=nil")
	case self.Escalator == nil:
		return errors.Errorf("code error Sampler.Escalator=nil")
	case self.Interval < 0:
		return errors.NotValidf("Sampler.Interval=%v", self.Interval)
	}
	if self.Interval == 0 {
		self.Interval = DefaultInterval
	}
	if self.Now == nil {
		self.Now = time.Now
	}
	if self.Sleep == nil {
		self.Sleep = helpers.Sleep
	}
	if self.Stat == nil {
		self.Stat = new(tele_api.Stat)
	}
	return nil
}

// Run samples then waits Interval, until ctx is done.
// Wait starts after sample is queued, so blocked Put never causes catch-up bursts.
func (self *Sampler) Run(ctx context.Context) error {
	if err := self.check(); err != nil {
		return err
	}
	for {
		if err := self.sample(ctx); err != nil {
			return err
		}
		if err := self.Sleep(ctx, self.Interval); err != nil {
			return err
		}
	}
}

// Sample runs one cycle. Returns error only if ctx is done,
// sensor and allocation faults are handled here.
func (self *Sampler) Sample(ctx context.Context) error {
	if err := self.check(); err != nil {
		return err
	}
	return self.sample(ctx)
}

func (self *Sampler) sample(ctx context.Context) error {
	raw, err := self.Sensor.ReadRawTemperature()
	if err != nil {
		self.Stat.Inc(&self.Stat.SensorFailed)
		msg := fmt.Sprintf("Failed to read temperature: %v", err)
		self.Log.Error(msg)
		self.Escalator.Report(ctx, msg)
		return ctx.Err()
	}
	reading := tele_api.Temperature{
		Temperature: self.Sensor.Compensate(raw),
		Timestamp:   self.Now().Unix(),
	}
	payload, err := reading.Marshal()
	if err != nil {
		// not a sensor fault, nothing to tell collector
		self.Log.Errorf("marshal reading=%v err=%v", reading, err)
		return nil
	}

	r, err := self.Alloc.Alloc(tele_api.EndpointTemperature, payload)
	if err != nil {
		self.Stat.Inc(&self.Stat.AllocFailed)
		self.Log.Errorf("skip reading=%.2f err=%v", reading.Temperature, err)
		return nil
	}
	self.Log.Debugf("reading=%.2f id=%s", reading.Temperature, r.ID)
	if err := self.Queue.Put(ctx, r); err != nil {
		self.Alloc.Release(r)
		return err
	}
	self.Stat.Inc(&self.Stat.Enqueued)
	return nil
}
