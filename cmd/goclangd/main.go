// Command goclangd is the entrypoint: bulk-index a C/C++ project from its
// compile-command manifest, then either exit or serve LSP queries over
// stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/lc168/goclangd/internal/astlib"
	"github.com/lc168/goclangd/internal/config"
	"github.com/lc168/goclangd/internal/coordinator"
	"github.com/lc168/goclangd/internal/debug"
	"github.com/lc168/goclangd/internal/lspserver"
	"github.com/lc168/goclangd/internal/manifest"
	"github.com/lc168/goclangd/internal/queryengine"
	"github.com/lc168/goclangd/internal/store"
	"github.com/lc168/goclangd/internal/version"
	"github.com/lc168/goclangd/internal/watcher"
)

func main() {
	app := &cli.App{
		Name:    "goclangd",
		Usage:   "C/C++ code intelligence: bulk indexer and LSP server",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "directory",
				Aliases: []string{"d"},
				Usage:   "project root directory containing the compile-command manifest",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "libpath",
				Aliases: []string{"l"},
				Usage:   "AST library directory, also used as the builtin -isystem include directory (falls back to " + config.LibPathEnvVar + ")",
			},
			&cli.BoolFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "after indexing, serve LSP queries on stdio instead of exiting",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "parallel indexing goroutines (default: 1)",
				Value:   1,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "goclangd: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("directory"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if jobs := c.Int("jobs"); c.IsSet("jobs") && jobs > 0 {
		cfg.Performance.Jobs = jobs
	}

	libPath := config.LibPath(c.String("libpath"))
	if err := astlib.ValidateLibPath(libPath); err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath(), true)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	co := coordinator.New(st, coordinator.Options{
		Jobs:              cfg.Performance.Jobs,
		BuiltinIncludeDir: libPath,
		ExcludeRoot:       cfg.Project.Root,
		ExcludeGlobs:      cfg.Exclude,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	debug.LogIndexing("starting bulk index of %s", cfg.Project.Root)
	if err := co.RunBulkIndex(ctx, cfg.ManifestPath()); err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	debug.LogIndexing("bulk index complete")

	if !c.Bool("server") {
		return nil
	}

	m, err := manifest.Load(cfg.ManifestPath())
	if err != nil {
		return fmt.Errorf("reload manifest for server mode: %w", err)
	}

	// The LSP event loop reads through its own non-primary connection so
	// query traffic never contends with the single primary write
	// connection on-save reindexing uses, per spec.md §9's "the LSP owns
	// a separate read connection."
	readSt, err := store.Open(cfg.DBPath(), false)
	if err != nil {
		return fmt.Errorf("open read store: %w", err)
	}
	defer readSt.Close()

	engine := queryengine.New(readSt, st, m, libPath)

	if cfg.Index.WatchMode {
		w, err := watcher.New(cfg, m.CanonicalFiles(), func(path string) { engine.OnSave(ctx, path) })
		if err != nil {
			debug.LogIndexing("watcher disabled: %v", err)
		} else {
			go w.Run(ctx)
		}
	}

	debug.SetStdioMode(true)
	srv := lspserver.New(engine, version.Version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		os.Exit(0)
	}()

	return srv.RunStdio()
}
