// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// beaker builds the bundled applications and writes their artifacts.
//
// Usage:
//
//	beaker [-d path] [--network name] [-o dir] [-j n] [app...]
//	beaker --list
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/aplane-algo/beaker/contracts"
	"github.com/aplane-algo/beaker/internal/application"
	"github.com/aplane-algo/beaker/internal/artifact"
	"github.com/aplane-algo/beaker/internal/compiler"
	"github.com/aplane-algo/beaker/internal/precompile"
	"github.com/aplane-algo/beaker/internal/util"
	"github.com/aplane-algo/beaker/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	dataDir     string
	network     string
	output      string
	concurrency int
	list        bool
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	var o options
	fs := pflag.NewFlagSet("beaker", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.dataDir, "data-dir", "d", "", "Data directory holding config.yaml (or set "+util.DataDirEnv+")")
	fs.StringVarP(&o.network, "network", "n", "", "Network whose algod assembles programs (overrides config)")
	fs.StringVarP(&o.output, "output", "o", "", "Artifact output directory (overrides config)")
	fs.IntVarP(&o.concurrency, "jobs", "j", 0, "Applications built in parallel (overrides config)")
	fs.BoolVarP(&o.list, "list", "l", false, "List registered applications and exit")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "beaker - build Algorand applications and their precompiled programs\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  beaker [options] [app...]\n\n")
		fmt.Fprintf(stderr, "With no app names every registered application is built.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return &o, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, names, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}
	if opts.version {
		fmt.Fprintf(stdout, "beaker %s\n", version.String())
		return 0
	}

	util.InitLogger()
	contracts.RegisterAll()

	if opts.list {
		for _, name := range application.Names() {
			fmt.Fprintln(stdout, name)
		}
		return 0
	}

	if err := build(ctx, opts, names, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(opts *options) (util.Config, error) {
	cfg, err := util.LoadConfig(util.GetDataDir(opts.dataDir))
	if err != nil {
		return util.Config{}, err
	}
	if opts.network != "" {
		cfg.Network = opts.network
	}
	if opts.output != "" {
		cfg.OutputDir = opts.output
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}
	util.Debug("loaded config",
		"network", cfg.Network, "output", cfg.OutputDir, "concurrency", cfg.Concurrency)
	return cfg, cfg.Validate()
}

func build(ctx context.Context, opts *options, names []string, stdout io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	apps := application.GetAll()
	if len(names) > 0 {
		if apps, err = application.Select(names); err != nil {
			return err
		}
	}

	algod, err := cfg.GetAlgodConfig(cfg.Network)
	if err != nil {
		return err
	}
	ac, err := compiler.NewAlgodCompiler(algod.Address(), algod.Token, cfg.CompileTimeout)
	if err != nil {
		return err
	}
	c := compiler.WithLogging(ac, util.Logger)

	util.Logger.Info("building applications",
		"count", len(apps), "network", cfg.Network, "algod", algod.Address())
	specs, err := application.BuildAll(ctx, apps, c, cfg.Concurrency,
		precompile.WithLogger(util.Logger),
		precompile.WithPageSize(cfg.PageSize),
		precompile.WithTealVersion(cfg.TealVersion),
	)
	if err != nil {
		return err
	}

	s := newStyles(useColor(stdout))
	for _, spec := range specs {
		dir := filepath.Join(cfg.OutputDir, strings.ToLower(spec.Name))
		if _, err := artifact.Dump(dir, spec); err != nil {
			return fmt.Errorf("failed to write artifacts for %s: %w", spec.Name, err)
		}
		fmt.Fprintln(stdout, s.summary(spec, dir))
	}
	return nil
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && util.SupportsColor(f)
}
