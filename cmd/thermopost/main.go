package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/thermopost/cmd/thermopost/collector"
	"github.com/temoto/thermopost/cmd/thermopost/probe"
	"github.com/temoto/thermopost/cmd/thermopost/run"
	"github.com/temoto/thermopost/cmd/thermopost/subcmd"
	"github.com/temoto/thermopost/cmd/thermopost/uplink"
	"github.com/temoto/thermopost/internal/state"
	state_new "github.com/temoto/thermopost/internal/state/new"
	"github.com/temoto/thermopost/log2"
)

var (
	log                 = log2.NewStderr(log2.LDebug)
	BuildVersion string = "unknown" // set by ldflags -X
)

var modules = []subcmd.Mod{
	probe.Mod,
	run.Mod,
	collector.Mod,
	uplink.Mod,
}

func main() {
	flags := flag.NewFlagSet("thermopost", flag.ContinueOnError)
	configPath := flags.String("config", "thermopost.hcl", "")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: thermopost [option] command\n\nOptions:\n")
		flags.PrintDefaults()
		fmt.Fprintf(flags.Output(), "\nCommands:\n")
		for _, m := range modules {
			fmt.Fprintf(flags.Output(), "  %-12s %s\n", m.Name, m.Usage)
		}
	}

	err := flags.Parse(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			flags.Usage()
			os.Exit(0)
		}
		log.Fatal(err)
	}

	mod, err := subcmd.Parse(flags.Arg(0), modules)
	if err != nil {
		flags.Usage()
		log.Fatal(err)
	}

	if subcmd.SdNotify("start") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	log.Infof("thermopost version=%s command=%s args=%s", BuildVersion, mod.Name, strings.Join(flags.Args()[1:], " "))
	ctx, g := state_new.NewContext(log, nil)
	g.BuildVersion = BuildVersion
	config := state.MustReadConfig(log, state.NewOsFullReader(), *configPath)
	ctx = context.WithValue(ctx, subcmd.ArgsContextKey, flags.Args()[1:])

	if err := mod.Main(ctx, config); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}
