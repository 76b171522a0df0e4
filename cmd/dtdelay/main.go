// {{{ Copyright (c) Paul R. Tagliamonte <paultag@gmail.com> 2020-2021
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

// Command dtdelay relays bytes from stdin to stdout after a fixed
// wall-clock delay, preserving order and approximate inter-arrival
// timing. See SPEC_FULL.md for the full contract.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dtdelay/dtdelay/internal/clock"
	"github.com/dtdelay/dtdelay/internal/config"
	"github.com/dtdelay/dtdelay/internal/ring"
	"github.com/dtdelay/dtdelay/internal/scheduler"
)

var flags struct {
	delay      string
	capacity   string
	configPath string
	verbose    bool
	quiet      bool
}

var rootCmd = &cobra.Command{
	Use:           "dtdelay",
	Short:         "Relay stdin to stdout after a fixed delay",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flags.delay, "delay", "d", "", `delay before relaying each chunk, e.g. "500ms", "1s", "2h" (default "1s")`)
	rootCmd.Flags().StringVarP(&flags.capacity, "capacity", "c", "", `ring buffer capacity, e.g. "1MB", "256KB" (default "1MB")`)
	rootCmd.Flags().StringVar(&flags.configPath, "config", "", "optional YAML file of delay/capacity defaults, overridden by flags")
	rootCmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug-level logging on stderr")
	rootCmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "only log errors")
}

func main() {
	err := rootCmd.Execute()
	os.Exit(exitCodeFor(err))
}

func run() error {
	logger := newLogger()
	defer logger.Sync()
	log := logger.Sugar()

	overlay, err := config.LoadFile(flags.configPath)
	if err != nil {
		return err
	}

	cfg, err := config.Build(flags.delay, flags.capacity, overlay)
	if err != nil {
		return err
	}
	log.Infow("starting", "delay_ms", cfg.DelayMS, "capacity_bytes", cfg.CapacityBytes)

	r, err := ring.Init(cfg.CapacityBytes)
	if err != nil {
		return err
	}
	defer r.Close()

	// Ignore SIGPIPE for all descriptors, stdout/stderr included: a
	// broken output pipe must surface as a normal write
	// error the scheduler can react to (exit 0, per spec.md's asymmetric
	// shutdown contract), never kill the process outright.
	signal.Ignore(syscall.SIGPIPE)

	sch := scheduler.New(r, os.Stdin, os.Stdout, cfg.DelayMS, clock.NewSystem(), log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			log.Infow("signal received, requesting graceful shutdown")
			sch.RequestShutdown()
		}
	}()
	defer signal.Stop(sigCh)

	if err := sch.Run(); err != nil {
		return err
	}

	stats := sch.Stats()
	log.Infow("stopped", "bytes_in", stats.InputBytes, "bytes_out", stats.OutputBytes)
	return nil
}

func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Development = false
	switch {
	case flags.quiet:
		cfg.Level.SetLevel(zap.ErrorLevel)
	case flags.verbose:
		cfg.Level.SetLevel(zap.DebugLevel)
	default:
		cfg.Level.SetLevel(zap.InfoLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		// zap's own config is static here; this should never fail, but
		// fall back rather than lose diagnostics entirely.
		logger = zap.NewNop()
		fmt.Fprintf(os.Stderr, "dtdelay: logger init failed: %v\n", err)
	}
	return logger
}

// exitCodeFor reports a non-nil run() error on stderr and maps it to the
// process's stable exit-code contract (spec.md §6). Anything that isn't
// one of our own sentinel failures — including cobra's own flag-parsing
// errors, which never reach run() — falls into the CLI-syntax-error bucket.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "dtdelay: %v\n", err)
	switch {
	case errors.Is(err, ring.ErrAllocFailure):
		return 1
	case errors.Is(err, scheduler.ErrPollFailed):
		return 3
	case errors.Is(err, config.ErrParse), errors.Is(err, config.ErrCapacityTooSmall):
		return 10
	default:
		return 9
	}
}
