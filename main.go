/*
This is an example of application that will use the
engine package to exercise device resets and resource recreation
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/continuum/engine"
	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
	"github.com/spaghettifunk/continuum/engine/renderer/native/memory"
	"github.com/spaghettifunk/continuum/testbed"
)

func main() {
	configPath := flag.String("config", "", "path of the TOML configuration, reloaded on change")
	frames := flag.Uint64("frames", 0, "stop after this many frames, 0 runs until interrupted")
	window := flag.Bool("window", false, "open a window instead of running headless")
	flag.Parse()

	tb := testbed.NewTestGame(*configPath, !*window, *frames)

	e, err := engine.New(tb.Game, memory.NewFactory(native.HiDefCapabilities()))
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("%s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// stop the loop; teardown happens on this goroutine once Run returns
	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
}
