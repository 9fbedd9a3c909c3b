// Sensor bench check: chip id and a few raw readings, no uplink.
package probe

import (
	"context"
	"strconv"

	"github.com/juju/errors"
	"github.com/temoto/thermopost/cmd/thermopost/subcmd"
	"github.com/temoto/thermopost/helpers"
	"github.com/temoto/thermopost/internal/state"
)

const defaultCount = 5

var Mod = subcmd.Mod{Name: "probe", Usage: "[count] read sensor chip id and temperature", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	config.Tele.Enabled = false
	g.MustInit(ctx, config)

	count := defaultCount
	if args := subcmd.Args(ctx); len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return errors.NotValidf("count=%q", args[0])
		}
		count = n
	}
	return Probe(ctx, g, count)
}

func Probe(ctx context.Context, g *state.Global, count int) error {
	sensor, err := g.Sensor()
	if err != nil {
		return errors.Annotate(err, "sensor")
	}
	if d := g.Hardware.Sensor.Device; d != nil {
		id, err := d.ReadChipID()
		if err != nil {
			return errors.Annotate(err, "chip id")
		}
		g.Log.Infof("bus=%s chip id=%#x", d.String(), id)
	}

	failed := 0
	for i := 1; i <= count; i++ {
		raw, err := sensor.ReadRawTemperature()
		if err == nil {
			g.Log.Infof("read %d/%d raw=%#05x celsius=%.2f", i, count, raw, sensor.Compensate(raw))
		} else {
			failed++
			g.Log.Errorf("read %d/%d err=%v", i, count, err)
		}
		if i < count {
			if err := helpers.Sleep(ctx, g.Config.SampleInterval()); err != nil {
				return err
			}
		}
	}
	if failed == count {
		return errors.Errorf("all %d reads failed", count)
	}
	return nil
}
