/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/testbed"
)

func main() {
	configPath := flag.String("config", "prism.toml", "path to the TOML configuration")
	backend := flag.String("backend", "", "renderer backend, overrides the configuration (vulkan, headless)")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("failed to load configuration", "path", *configPath, "err", err)
	}
	if *backend != "" {
		cfg.Renderer.Backend = *backend
	}

	// SIGINT and SIGTERM cancel the run loop, which then shuts down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.New(cfg, testbed.NewGame(testbed.DefaultShaders))
	if err != nil {
		log.Error("failed to start engine", "err", err)
		os.Exit(1)
	}
	if err := e.Run(ctx); err != nil {
		log.Error("engine stopped with error", "err", err)
		os.Exit(1)
	}
}
