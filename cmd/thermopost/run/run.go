// Main mode of operation: sample sensor, deliver telemetry.
package run

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/temoto/thermopost/cmd/thermopost/subcmd"
	"github.com/temoto/thermopost/internal/state"
)

const statInterval = 1 * time.Minute

var Mod = subcmd.Mod{Name: "run", Usage: "sample sensor and deliver telemetry (default daemon)", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	subcmd.StopOnSignal(g)

	sensor := g.Boot(ctx)
	g.Start(ctx, sensor)
	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Debugf("init complete, running")

	tmr := time.NewTicker(statInterval)
	defer tmr.Stop()
	stopCh := g.Alive.StopChan()
	for g.Alive.IsRunning() {
		select {
		case <-tmr.C:
			g.Log.Infof("stat %s", g.Stat.Snapshot().String())
			subcmd.SdNotify(daemon.SdNotifyWatchdog)
		case <-stopCh:
		}
	}
	subcmd.SdNotify(daemon.SdNotifyStopping)
	if !g.StopWait(10 * time.Second) {
		g.Log.Errorf("loops did not stop in time")
	}
	g.Log.Infof("stopped %s", g.Stat.Snapshot().String())
	return nil
}
