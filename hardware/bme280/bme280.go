// Package bme280 reads temperature from Bosch BME280 over I2C.
// Only the subset used by telemetry: reset, measurement config, chip id, raw temperature.
package bme280

import (
	"time"

	"github.com/juju/errors"
	"periph.io/x/periph/conn/i2c"
)

const (
	DefaultAddr = 0x77

	ChipID = 0x60

	RegID       = 0xD0
	RegReset    = 0xE0
	RegCtrlHum  = 0xF2
	RegStatus   = 0xF3
	RegCtrlMeas = 0xF4
	RegConfig   = 0xF5
	RegTempMSB  = 0xFA

	resetCommand = 0xB6
	// normal mode, temperature and pressure oversampling x1
	ctrlMeasNormal = 0x27
	// standby 1000ms, filter off
	configStandby1s = 0xA0

	// linear calibration measured on the deployed unit
	calibrationDivisor = 26653
)

type Device struct {
	dev   i2c.Dev
	sleep func(time.Duration)
}

func New(bus i2c.Bus, addr uint16) *Device {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Device{
		dev:   i2c.Dev{Bus: bus, Addr: addr},
		sleep: time.Sleep,
	}
}

// Open attaches device at 7 bit addr, reserved addresses are rejected.
func Open(bus i2c.Bus, addr uint16) (*Device, error) {
	if bus == nil {
		return nil, errors.NotValidf("bme280 bus=nil")
	}
	if addr != 0 && (addr < 0x08 || addr > 0x77) {
		return nil, errors.NotValidf("bme280 addr=%#x", addr)
	}
	return New(bus, addr), nil
}

func (d *Device) String() string { return d.dev.String() }

// Init performs soft reset and starts periodic measurement.
func (d *Device) Init() error {
	if err := d.writeReg(RegReset, resetCommand); err != nil {
		return errors.Annotate(err, "bme280 reset")
	}
	d.sleep(100 * time.Millisecond)
	if err := d.writeReg(RegCtrlMeas, ctrlMeasNormal); err != nil {
		return errors.Annotate(err, "bme280 ctrl_meas")
	}
	if err := d.writeReg(RegConfig, configStandby1s); err != nil {
		return errors.Annotate(err, "bme280 config")
	}
	return nil
}

func (d *Device) ReadChipID() (byte, error) {
	var b [1]byte
	if err := d.dev.Tx([]byte{RegID}, b[:]); err != nil {
		return 0, errors.Annotate(err, "bme280 read id")
	}
	return b[0], nil
}

// ReadRawTemperature returns 20 bit uncompensated temperature.
func (d *Device) ReadRawTemperature() (int32, error) {
	var b [3]byte
	if err := d.dev.Tx([]byte{RegTempMSB}, b[:]); err != nil {
		return 0, errors.Annotate(err, "bme280 read temperature")
	}
	return int32(b[0])<<12 | int32(b[1])<<4 | int32(b[2])>>4, nil
}

// Compensate converts raw value to degrees Celsius.
func (d *Device) Compensate(raw int32) float64 { return Compensate(raw) }

func Compensate(raw int32) float64 { return float64(raw) / calibrationDivisor }

func (d *Device) writeReg(reg, value byte) error {
	return d.dev.Tx([]byte{reg, value}, nil)
}
