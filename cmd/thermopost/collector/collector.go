// Receiving side, replaces Python reference server.
package collector

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/temoto/thermopost/cmd/thermopost/subcmd"
	"github.com/temoto/thermopost/internal/collector"
	"github.com/temoto/thermopost/internal/state"
	"github.com/temoto/thermopost/log2"
)

var Mod = subcmd.Mod{Name: "collector", Usage: "HTTP server accepting device telemetry", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	level, _ := log2.ParseLevel(config.Log.Level)
	g.Log.SetLevel(level)
	if level < log2.LDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	subcmd.StopOnSignal(g)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-g.Alive.StopChan():
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := collector.NewServer(g.Log.Sub("collector"), collector.NewMemory(config.Collector.Keep))
	return srv.Run(ctx, config.Collector.Listen)
}
