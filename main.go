/*
This is an example application that uses the engine package
to exercise the resource lifecycle end to end.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/aurora/engine"
	"github.com/spaghettifunk/aurora/testbed"
)

func main() {
	tb, err := testbed.NewTestGame()
	if err != nil {
		panic(err)
	}

	eng, err := engine.New(tb.Game)
	if err != nil {
		panic(err)
	}

	if err := eng.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// stop the run loop on the next frame boundary
	go func() {
		<-sigCh
		eng.Stop()
	}()

	if err := eng.Run(); err != nil {
		panic(err)
	}
}
