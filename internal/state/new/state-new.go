// Sorry, workaround to import cycles.
package state_new

import (
	"context"
	"os"
	"testing"

	"github.com/temoto/alive/v2"
	"github.com/temoto/thermopost/internal/state"
	"github.com/temoto/thermopost/log2"
	tele_api "github.com/temoto/thermopost/tele"
)

func NewContext(log *log2.Log, transport tele_api.Transporter) (context.Context, *state.Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := &state.Global{
		Alive:     alive.NewAlive(),
		Log:       log,
		Stat:      new(tele_api.Stat),
		Transport: transport,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, state.ContextKey, g)

	return ctx, g
}

// NewTestContext returns initialized Global with mock sensor unless
// config says otherwise. transport may be nil to build one from config.
func NewTestContext(t testing.TB, transport tele_api.Transporter, confString string) (context.Context, *state.Global) {
	fs := state.NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	var log *log2.Log
	if os.Getenv("thermopost_test_log_stderr") == "1" {
		log = log2.NewStderr(log2.LDebug) // useful with panics
	} else {
		log = log2.NewTest(t, log2.LDebug)
	}
	log.SetFlags(log2.LTestFlags)
	ctx, g := NewContext(log, transport)
	g.BuildVersion = "test"
	config, err := state.ReadConfig(log, fs, "test-inline")
	if err != nil {
		t.Fatalf("config err=%v", err)
	}
	if config.Log.Level == "" {
		config.Log.Level = "debug"
	}
	if err := g.Init(ctx, config); err != nil {
		t.Fatalf("init err=%v", err)
	}
	return ctx, g
}
