/*
Strata renders a TOML scene with one indirect draw per distinct mesh.

	strata [-headless] [config.toml]

Without a path the defaults are used. -headless swaps the Vulkan backend
for the simulated one, which needs neither a window nor a GPU.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/strata/engine"
	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/testbed"
)

func main() {
	headless := flag.Bool("headless", false, "run on the simulated backend")
	flag.Parse()

	cfg := core.DefaultConfig()
	if path := flag.Arg(0); path != "" {
		loaded, err := core.LoadConfig(path)
		if err != nil {
			core.LogFatal(err.Error())
			os.Exit(1)
		}
		cfg = loaded
	}
	if *headless {
		cfg.Renderer.Backend = core.BackendHeadless
	}

	tb := testbed.NewTestGame(cfg)

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
		os.Exit(1)
	}

	if err := e.Initialize(); err != nil {
		core.LogFatal("engine failed to initialize: %s", err)
		_ = e.Shutdown()
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// stop the frame loop; Run does the teardown on the main thread
	go func() {
		<-sigCh
		e.Stop()
	}()

	// run engine
	if err := e.Run(); err != nil {
		core.LogFatal(err.Error())
		os.Exit(1)
	}
}
