package state

import (
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/thermopost/hardware/bme280"
	"github.com/temoto/thermopost/internal/sampler"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

const SensorBusMock = "mock"

// Sensor startup stages, each escalated with its own message.
const (
	SensorStageBus    = "Failed to initialize I2C bus"
	SensorStageDevice = "Failed to add I2C device"
	SensorStageInit   = "Failed to initialize BME280"
)

// SensorError tells bus fault from chip fault.
type SensorError struct {
	Stage string
	Err   error
}

func (e *SensorError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *SensorError) Cause() error  { return e.Err }

type hardware struct {
	Sensor struct {
		once
		Bus    i2c.BusCloser
		Device *bme280.Device
		// Device or Mock assigned before first Sensor() call skip bus open.
		// sensor.bus="mock" creates Mock.
		Mock *bme280.Mock
	}
}

// Sensor opens configured I2C bus on first call and initializes the chip.
// Error is remembered, later calls return same result.
func (g *Global) Sensor() (sampler.Sensor, error) {
	x := &g.Hardware.Sensor // short alias
	_ = x.do(func() error {
		if x.Mock != nil || x.Device != nil {
			return nil
		}
		cfg := &g.Config.Sensor
		if cfg.Bus == SensorBusMock {
			x.Mock = bme280.NewMock()
			x.Mock.Default = &bme280.MockReading{Raw: 533060} // ~20C
			return nil
		}
		if _, err := host.Init(); err != nil {
			return &SensorError{SensorStageBus, errors.Annotate(err, "periph host init")}
		}
		bus, err := i2creg.Open(cfg.Bus)
		if err != nil {
			return &SensorError{SensorStageBus, errors.Annotatef(err, "i2c open bus=%s", cfg.Bus)}
		}
		x.Bus = bus
		if x.Device, err = bme280.Open(bus, uint16(cfg.Addr)); err != nil {
			return &SensorError{SensorStageDevice, err}
		}
		if err := x.Device.Init(); err != nil {
			return &SensorError{SensorStageInit, errors.Annotatef(err, "bus=%s addr=%#x", cfg.Bus, cfg.Addr)}
		}
		return nil
	})
	if x.Mock != nil {
		return x.Mock, nil
	}
	if x.Device == nil {
		return sensorBroken{x.err}, x.err
	}
	// device usable even if Init failed, next read may succeed
	return x.Device, x.err
}

// sensorBroken keeps sampler loop going when device could not be attached,
// so every cycle reports the fault.
type sensorBroken struct{ err error }

func (s sensorBroken) ReadRawTemperature() (int32, error) { return 0, s.err }
func (s sensorBroken) Compensate(raw int32) float64       { return bme280.Compensate(raw) }

// checkChipID is informational, mismatch is logged but sensor stays in use.
func (g *Global) checkChipID(d *bme280.Device) error {
	id, err := d.ReadChipID()
	if err != nil {
		return err
	}
	if id != bme280.ChipID {
		g.Log.Errorf("sensor %s unexpected chip id=%#x expected=%#x", d.String(), id, bme280.ChipID)
	} else {
		g.Log.Debugf("sensor %s chip id=%#x", d.String(), id)
	}
	return nil
}

func (g *Global) closeHardware() {
	if b := g.Hardware.Sensor.Bus; b != nil {
		if err := b.Close(); err != nil {
			g.Log.Errorf("i2c close err=%v", err)
		}
	}
}

type once struct {
	sync.Mutex
	called uint32 // atomic bool
	err    error
}

func (o *once) done() bool {
	return atomic.LoadUint32(&o.called) == 1
}

func (o *once) do(f func() error) error {
	if o.done() { // fast path
		return o.err
	}
	o.Lock()
	defer o.Unlock()
	if o.done() {
		return o.err
	}
	o.err = f()
	atomic.StoreUint32(&o.called, 1)
	return o.err
}
