// Interactive uplink check from device shell.
package uplink

import (
	"context"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/thermopost/cmd/thermopost/subcmd"
	"github.com/temoto/thermopost/helpers/cli"
	"github.com/temoto/thermopost/internal/state"
	"github.com/temoto/thermopost/internal/tele"
	tele_api "github.com/temoto/thermopost/tele"
)

const modName = "uplink-cli"

var Mod = subcmd.Mod{Name: modName, Usage: "interactive shell: ping, error <text>, send <celsius>, stat", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	config.Tele.Enabled = true
	if err := config.Tele.Normalize(); err != nil {
		return errors.Annotate(err, "tele config")
	}
	config.Tele.LogDebug = true
	g.MustInit(ctx, config)

	g.Log.Debugf("uplink init complete, running")
	return cli.MainLoop(modName, newExecutor(ctx), newCompleter())
}

var suggests = []prompt.Suggest{
	{Text: "ping", Description: "fire-and-check /api/ping"},
	{Text: "error", Description: "error <text> report via /api/error"},
	{Text: "send", Description: "send <celsius> one reading with retries"},
	{Text: "stat", Description: "delivery counters"},
}

func newCompleter() func(d prompt.Document) []prompt.Suggest {
	return func(d prompt.Document) []prompt.Suggest {
		if strings.Contains(d.TextBeforeCursor(), " ") {
			return nil
		}
		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
	}
}

func newExecutor(ctx context.Context) func(string) {
	g := state.GetGlobal(ctx)
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
	return func(line string) {
		if err := execLine(ctx, g, d, line); err != nil {
			g.Log.Error(errors.ErrorStack(err))
		}
	}
}

func execLine(ctx context.Context, g *state.Global, d *tele.Dispatcher, line string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "ping":
		if err := tele.Ping(ctx, g.Transport, g.Config.Tele.Timeout()); err != nil {
			return errors.Annotate(err, "ping")
		}
		g.Log.Infof("pong")

	case "error":
		if arg == "" {
			return errors.NotValidf("error text empty")
		}
		g.Log.Infof("escalation %s", g.Escalator.Report(ctx, arg))

	case "send":
		celsius, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return errors.NewNotValid(err, "send <celsius>")
		}
		payload, err := tele_api.Temperature{Temperature: celsius, Timestamp: g.Now().Unix()}.Marshal()
		if err != nil {
			return errors.Trace(err)
		}
		r, err := g.Alloc.Alloc(tele_api.EndpointTemperature, payload)
		if err != nil {
			return errors.Trace(err)
		}
		defer g.Alloc.Release(r)
		outcome, attempts := d.Deliver(ctx, r)
		g.Log.Infof("send id=%s outcome=%s attempts=%d", r.ID, outcome, attempts)

	case "stat":
		g.Log.Infof("stat %s", g.Stat.Snapshot().String())

	default:
		return errors.NotSupportedf("command=%q, try: ping, error <text>, send <celsius>, stat", cmd)
	}
	return nil
}
