/*
Testbed application driving the frame graph renderer with a small
spinning cube scene.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spaghettifunk/framegraph/engine"
	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/testbed"
)

func loadConfig(path string) (*config.EngineConfig, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func run() error {
	var (
		configPath = flag.String("config", "assets/engine.toml", "engine configuration file")
		headless   = flag.Bool("headless", false, "record frames without a window or GPU")
		frames     = flag.Uint64("frames", 0, "stop after this many frames, 0 runs until quit")
		capture    = flag.String("capture", "", "write the last frame to this BMP file")
		graphPath  = flag.String("graph", "", "override the pass graph description")
		logLevel   = flag.String("log", "", "override the log level")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *headless {
		cfg.Render.Backend = config.BackendHeadless
	}
	if *graphPath != "" {
		cfg.Render.Graph = *graphPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	var bar *progressbar.ProgressBar
	opts := engine.Options{
		MaxFrames: *frames,
		Capture:   *capture,
		StartPosX: 100,
		StartPosY: 100,
		Progress: func(done, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "loading assets")
			}
			_ = bar.Set(done)
			if done == total {
				_ = bar.Finish()
			}
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tb := testbed.NewTestGame()
	e, err := engine.New(tb, cfg, opts)
	if err != nil {
		return err
	}
	if err := e.Initialize(ctx); err != nil {
		_ = e.Shutdown()
		return err
	}
	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "testbed: %s\n", err)
		os.Exit(1)
	}
}
