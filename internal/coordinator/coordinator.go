// Package coordinator drives bulk and incremental indexing: it reads the
// manifest, computes the resumable worklist against Store's persisted
// completed mtimes, dispatches the worklist across a bounded pool of
// goroutines running the Worker pipeline, and applies results back to
// Store transactionally in this process only.
//
// The source's "pool of N worker processes" (spec.md §4.4/§5) maps onto
// a goroutine pool here: Go has no GIL forcing process-level isolation
// for CPU-bound work, and astlib.Index is already safe to confine to one
// goroutine at a time. A bounded semaphore replaces the process pool;
// the single-writer invariant is preserved because only this goroutine
// (the drain loop) ever calls into Store.
package coordinator

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lc168/goclangd/internal/astlib"
	"github.com/lc168/goclangd/internal/debug"
	goclangderrors "github.com/lc168/goclangd/internal/errors"
	"github.com/lc168/goclangd/internal/manifest"
	"github.com/lc168/goclangd/internal/store"
	"github.com/lc168/goclangd/internal/types"
	"github.com/lc168/goclangd/internal/worker"
)

// commitBatchSize and progressLogInterval mirror spec.md §4.4 step 6's
// "every 50 applied results, commit" and "log progress every 20 files".
const (
	commitBatchSize     = 50
	progressLogInterval = 20
)

// Options configures one Coordinator run.
type Options struct {
	Jobs              int
	BuiltinIncludeDir string
	// ExcludeRoot and ExcludeGlobs apply Config.Exclude (spec.md §4.4's
	// worklist is independent of the manifest's own contents) before the
	// incremental mtime comparison: manifest.FilterExcluded matches each
	// entry's path (relative to ExcludeRoot) against ExcludeGlobs.
	ExcludeRoot  string
	ExcludeGlobs []string
}

// Coordinator is the indexing driver. It owns the Store's write
// connection for the duration of a bulk run.
type Coordinator struct {
	st   *store.Store
	opts Options
}

// New creates a Coordinator against an already-opened primary Store.
func New(st *store.Store, opts Options) *Coordinator {
	if opts.Jobs <= 0 {
		opts.Jobs = 1
	}
	return &Coordinator{st: st, opts: opts}
}

// workItem is one entry paired with its resolved raw compile args.
type workItem struct {
	entry types.ManifestEntry
	args  []string
}

// BuildWorklist compares manifest entries against Store's persisted
// completed mtimes, yielding the incremental resume set spec.md §4.4
// step 4 describes: any entry whose canonical file exists and either is
// absent from the completed set or whose current mtime differs from the
// recorded one.
func (c *Coordinator) BuildWorklist(m *manifest.Manifest) ([]workItem, error) {
	completed, err := c.st.CompletedMTimes()
	if err != nil {
		return nil, goclangderrors.NewStoreFatalError("completed_mtimes", err)
	}

	entries := manifest.FilterExcluded(m.Entries, c.opts.ExcludeRoot, c.opts.ExcludeGlobs)

	var items []workItem
	for _, e := range entries {
		rawArgs := manifest.RawArgs(e)
		items = append(items, workItem{entry: e, args: rawArgs})
	}

	var filtered []workItem
	for _, item := range items {
		canonical := canonicalOrEmpty(item.entry)
		if canonical == "" {
			continue
		}
		recordedMTime, known := completed[canonical]
		currentMTime, ok := statMTime(canonical)
		if !ok {
			continue
		}
		if !known || currentMTime != recordedMTime {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// RunBulkIndex runs the full sequence from spec.md §4.4: open as
// primary (caller's responsibility), enable speed mode, read manifest,
// build worklist, dispatch, drain, apply, final commit.
func (c *Coordinator) RunBulkIndex(ctx context.Context, manifestPath string) error {
	if err := c.st.EnableSpeedMode(); err != nil {
		return err
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	worklist, err := c.BuildWorklist(m)
	if err != nil {
		return err
	}
	debug.LogIndexing("worklist has %d files to (re)index", len(worklist))

	return c.dispatchAndApply(ctx, worklist)
}

// dispatchAndApply runs the worklist through a bounded goroutine pool
// and applies results to Store as they arrive, batching commits and
// logging progress per spec.md §4.4 step 6.
func (c *Coordinator) dispatchAndApply(ctx context.Context, worklist []workItem) error {
	type outcome struct {
		result worker.Result
	}

	results := make(chan outcome, len(worklist))
	sem := semaphore.NewWeighted(int64(c.opts.Jobs))
	g, gctx := errgroup.WithContext(ctx)

	for _, item := range worklist {
		item := item
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			idx := astlib.NewIndex()
			defer idx.Dispose()
			res := worker.Process(idx, item.entry, item.args, c.opts.BuiltinIncludeDir)
			select {
			case results <- outcome{result: res}:
			case <-gctx.Done():
			}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	tx, err := c.st.Begin()
	if err != nil {
		return goclangderrors.NewStoreFatalError("begin", err)
	}

	applied := 0
	processed := 0
	for o := range results {
		processed++
		switch o.result.Status {
		case worker.StatusSuccess:
			if err := store.SaveIndexResultTx(tx, o.result.File, o.result.MTime, o.result.Symbols, o.result.Refs); err != nil {
				debug.LogIndexing("apply failed for %s: %v", o.result.File, err)
			} else {
				applied++
			}
		case worker.StatusFailed:
			// Must go through the batch's open tx, not c.st.UpdateFileStatus:
			// the primary Store is pinned to one pooled connection, which
			// the open tx already holds, so a direct db.Exec here would
			// block forever waiting for a connection that tx never releases.
			if err := store.UpdateFileStatusTx(tx, o.result.File, o.result.MTime, types.StatusFailed); err != nil {
				debug.LogIndexing("failed to record failure for %s: %v", o.result.File, err)
			}
		case worker.StatusSkip:
			// Assembly sources are neither indexed nor marked failed.
		}

		if applied >= commitBatchSize {
			if err := tx.Commit(); err != nil {
				return goclangderrors.NewStoreFatalError("commit", err)
			}
			applied = 0
			tx, err = c.st.Begin()
			if err != nil {
				return goclangderrors.NewStoreFatalError("begin", err)
			}
		}

		if processed%progressLogInterval == 0 {
			debug.LogIndexing("progress: %d/%d files processed", processed, len(worklist))
		}
	}

	if err := tx.Commit(); err != nil {
		return goclangderrors.NewStoreFatalError("final_commit", err)
	}

	return g.Wait()
}

// canonicalOrEmpty resolves a manifest entry's (directory, file) pair to
// an absolute, symlink-resolved path, matching manifest.canonicalPath;
// returns "" for an entry whose file doesn't exist or can't be resolved.
func canonicalOrEmpty(e types.ManifestEntry) string {
	joined := e.File
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(e.Directory, e.File)
	}
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return ""
	}
	return resolved
}

func statMTime(path string) (float64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return float64(info.ModTime().UnixNano()) / 1e9, true
}
