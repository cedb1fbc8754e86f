package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/coderag/internal/chunker"
	"github.com/dshills/coderag/internal/embedder"
	"github.com/dshills/coderag/internal/ignore"
	"github.com/dshills/coderag/internal/store"
	"github.com/dshills/coderag/pkg/types"
)

// ErrModelChanged indicates the configured embedding model does not match
// the identity the index was built with. A forced run clears the index and
// rebuilds under the new model.
var ErrModelChanged = errors.New("embedding model changed; rerun with force to rebuild the index")

// State is the orchestrator's current phase, for status reporting.
type State string

const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateDiffing     State = "diffing"
	StateEmbedding   State = "embedding"
	StateUpserting   State = "upserting"
	StateReconciling State = "reconciling"
	StateError       State = "error"
)

// Options control a single indexing run.
type Options struct {
	// Force re-embeds every eligible file, bypassing change detection.
	Force bool
	// DryRun reports what would change without touching the store or the
	// embedding provider.
	DryRun bool
	// Workers bounds the file scan/diff pool. Defaults to NumCPU.
	Workers int
	// MaxInFlight bounds concurrent embedding batches. Defaults to 2.
	MaxInFlight int
}

func (o *Options) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = 2
	}
}

// Indexer orchestrates an indexing run over one project root: scan, diff,
// embed, upsert, reconcile. A run is exclusive per root via an advisory
// file lock; the file records it writes make the next run incremental.
type Indexer struct {
	root     string
	store    store.Store
	embedder embedder.Embedder
	chunker  *chunker.Chunker
	filter   *ignore.Filter

	state atomic.Value // State
}

// New creates an Indexer rooted at the given project directory.
func New(root string, st store.Store, emb embedder.Embedder, ch *chunker.Chunker, filter *ignore.Filter) *Indexer {
	idx := &Indexer{
		root:     root,
		store:    st,
		embedder: emb,
		chunker:  ch,
		filter:   filter,
	}
	idx.state.Store(StateIdle)
	return idx
}

// State returns the orchestrator's current phase.
func (idx *Indexer) State() State {
	return idx.state.Load().(State)
}

func (idx *Indexer) setState(s State) {
	idx.state.Store(s)
}

// Run executes one indexing run and returns its report. The report is
// non-nil even on failure; a run-level abort is reflected both in the
// report outcome and the returned error. Cancellation via ctx stops the
// run between files, never mid-reconcile, so stored records stay
// consistent with stored chunks.
func (idx *Indexer) Run(ctx context.Context, opts Options) (*types.RunReport, error) {
	opts.setDefaults()
	start := time.Now()
	report := &types.RunReport{Outcome: types.RunClean, DryRun: opts.DryRun}

	abort := func(reason string, err error) (*types.RunReport, error) {
		idx.setState(StateError)
		report.Outcome = types.RunAborted
		report.AbortReason = reason
		report.Elapsed = time.Since(start)
		return report, err
	}

	lock, err := AcquireRunLock(idx.root)
	if err != nil {
		return abort(err.Error(), err)
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			log.Printf("[indexer] failed to release run lock: %v", rerr)
		}
		idx.setState(StateIdle)
	}()

	if err := ctx.Err(); err != nil {
		return idx.finish(report, start, err)
	}

	if err := idx.checkModelIdentity(ctx, opts); err != nil {
		return abort(err.Error(), err)
	}

	// Scanning: walk the tree through the ignore filter.
	idx.setState(StateScanning)
	files, err := idx.discoverFiles()
	if err != nil {
		return abort(fmt.Sprintf("scan failed: %v", err), err)
	}
	report.FilesScanned = len(files)

	// Diffing: classify each eligible file against its stored record, and
	// find stored records whose files are gone or no longer eligible.
	idx.setState(StateDiffing)
	records, err := idx.store.ListFileRecords(ctx)
	if err != nil {
		return abort(fmt.Sprintf("failed to list file records: %v", err), err)
	}
	recByPath := make(map[string]*store.FileRecord, len(records))
	for _, rec := range records {
		recByPath[rec.FilePath] = rec
	}
	eligible := make(map[string]bool, len(files))
	for _, f := range files {
		eligible[f] = true
	}

	var (
		mu      sync.Mutex
		diffs   []*fileDiff
		skipped int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, relPath := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, derr := idx.diffFile(relPath, recByPath[relPath], opts.Force)
			mu.Lock()
			defer mu.Unlock()
			if derr != nil {
				report.Files = append(report.Files, types.FileReport{
					FilePath: relPath,
					Outcome:  types.FileFailed,
					Error:    derr.Error(),
				})
				return nil
			}
			if d.Outcome == types.FileUnchanged {
				skipped++
				return nil
			}
			diffs = append(diffs, d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return idx.finish(report, start, err)
	}
	report.FilesSkippedUnchanged = skipped

	var removed []string
	for _, rec := range records {
		if !eligible[rec.FilePath] {
			removed = append(removed, rec.FilePath)
		}
	}
	sort.Strings(removed)
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].FilePath < diffs[j].FilePath })

	if opts.DryRun {
		idx.reportDryRun(report, diffs, removed)
		report.Elapsed = time.Since(start)
		return report, nil
	}

	// Embedding and upserting, per file, with bounded in-flight batches.
	// Each worker finishes its file's reconcile before taking another, so
	// a cancelled run leaves every touched file either fully recorded or
	// untouched.
	idx.setState(StateEmbedding)
	var created, updated, deleted, embedErrs atomic.Int64
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxInFlight)
	for _, d := range diffs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr, ierr := idx.indexFile(gctx, d, recByPath[d.FilePath], &created, &updated, &deleted, &embedErrs)
			if ierr != nil {
				return ierr // run-level: store unavailable, dimension mismatch, cancellation
			}
			mu.Lock()
			report.Files = append(report.Files, fr)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		report.ChunksCreated = int(created.Load())
		report.ChunksUpdated = int(updated.Load())
		report.ChunksDeleted = int(deleted.Load())
		report.EmbeddingErrors = int(embedErrs.Load())
		return idx.finish(report, start, err)
	}

	report.ChunksCreated = int(created.Load())
	report.ChunksUpdated = int(updated.Load())
	report.ChunksDeleted = int(deleted.Load())
	report.EmbeddingErrors = int(embedErrs.Load())

	// Deletion propagation for files that disappeared or became ineligible.
	idx.setState(StateReconciling)
	for _, relPath := range removed {
		if err := ctx.Err(); err != nil {
			return idx.finish(report, start, err)
		}
		n, derr := idx.store.DeleteByFile(ctx, relPath)
		if derr != nil {
			return idx.finish(report, start, derr)
		}
		if derr := idx.store.DeleteFileRecord(ctx, relPath); derr != nil {
			return idx.finish(report, start, derr)
		}
		report.ChunksDeleted += n
		report.Files = append(report.Files, types.FileReport{
			FilePath: relPath,
			Outcome:  types.FileDeleted,
		})
	}

	if report.ErrorCount() > 0 || report.EmbeddingErrors > 0 {
		report.Outcome = types.RunWithErrors
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// checkModelIdentity rejects a run whose embedder does not match the model
// the index was built with, unless forced, in which case the index is
// cleared for a full rebuild.
func (idx *Indexer) checkModelIdentity(ctx context.Context, opts Options) error {
	info, err := idx.store.ModelInfo(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil // fresh index; identity is set on first successful embed
	}
	if err != nil {
		return fmt.Errorf("failed to read model identity: %w", err)
	}
	if info.Model == idx.embedder.Model() {
		return nil
	}
	if !opts.Force {
		return fmt.Errorf("%w (index built with %q, configured %q)", ErrModelChanged, info.Model, idx.embedder.Model())
	}
	if opts.DryRun {
		return nil
	}
	log.Printf("[indexer] model changed %q -> %q, clearing index for rebuild", info.Model, idx.embedder.Model())
	if err := idx.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear index for model change: %w", err)
	}
	return nil
}

// discoverFiles walks the project tree and returns eligible files as
// sorted project-relative slash paths.
func (idx *Indexer) discoverFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(idx.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return nil // unreadable subtree, skip
			}
			return err
		}
		if d.IsDir() {
			if path != idx.root && idx.filter.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, rerr := filepath.Rel(idx.root, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		info, ierr := d.Info()
		if ierr != nil {
			return nil // vanished between readdir and stat
		}
		if idx.filter.Eligible(rel, info.Size()) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// runLevel reports whether a store error must abort the whole run. An
// unreachable store or a vector dimension conflict poisons every remaining
// file; anything else fails only the file that hit it.
func runLevel(err error) bool {
	return errors.Is(err, store.ErrUnavailable) ||
		errors.Is(err, store.ErrDimensionMismatch) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// indexFile embeds one file's new chunks, upserts them, applies the file's
// chunk deletions, and reconciles the file record. A batch failure
// degrades to per-chunk embedding so one bad chunk does not discard the
// rest of the file. The returned error is run-level; per-chunk and
// per-file problems, store write errors included, are folded into the
// report instead. A file that fails a store write never advances its
// record, so the next run retries it.
func (idx *Indexer) indexFile(ctx context.Context, d *fileDiff, rec *store.FileRecord, created, updated, deleted, embedErrs *atomic.Int64) (types.FileReport, error) {
	fr := types.FileReport{FilePath: d.FilePath, Outcome: d.Outcome}

	texts := make([]string, len(d.ToEmbed))
	for i, c := range d.ToEmbed {
		texts[i] = c.Content
	}

	vectors, chunkErrs := idx.embedChunks(ctx, texts)
	if err := ctx.Err(); err != nil {
		return fr, err
	}

	var upserts []store.ChunkWithVector
	var failed int
	for i, c := range d.ToEmbed {
		if chunkErrs[i] != nil {
			failed++
			embedErrs.Add(1)
			log.Printf("[indexer] embed failed for %s chunk %s: %v", d.FilePath, c.ChunkID, chunkErrs[i])
			continue
		}
		upserts = append(upserts, store.ChunkWithVector{Chunk: c, Vector: vectors[i]})
	}

	if len(upserts) > 0 {
		if err := idx.establishModelInfo(ctx, len(upserts[0].Vector)); err != nil {
			return fr, err
		}
		idx.setState(StateUpserting)
		if err := idx.store.UpsertChunks(ctx, upserts); err != nil {
			if runLevel(err) {
				return fr, fmt.Errorf("upsert failed for %s: %w", d.FilePath, err)
			}
			// Record never advanced; the next run re-diffs this file.
			log.Printf("[indexer] upsert failed for %s: %v", d.FilePath, err)
			fr.Outcome = types.FileFailed
			fr.Error = fmt.Sprintf("chunk write failed: %v", err)
			return fr, nil
		}
		for _, u := range upserts {
			if d.OldIDs[u.Chunk.ChunkID] {
				updated.Add(1)
			} else {
				created.Add(1)
			}
		}
	}

	if len(d.DeleteIDs) > 0 {
		n, err := idx.store.DeleteChunks(ctx, d.DeleteIDs)
		if err != nil {
			if runLevel(err) {
				return fr, fmt.Errorf("delete failed for %s: %w", d.FilePath, err)
			}
			log.Printf("[indexer] delete failed for %s: %v", d.FilePath, err)
			fr.Outcome = types.FileFailed
			fr.Error = fmt.Sprintf("chunk delete failed: %v", err)
			return fr, nil
		}
		deleted.Add(int64(n))
	}

	// Reconcile: the record lists exactly the chunks now stored for this
	// file. Written only after the chunk writes land, so a crash between
	// the two leaves stale chunks behind, never a record claiming chunks
	// that do not exist. A failed chunk keeps the old content hash so the
	// next run re-diffs the file and retries just that chunk.
	idx.setState(StateReconciling)
	newRec := &store.FileRecord{
		FilePath:      d.FilePath,
		ChunkIDs:      append([]string{}, d.KeepIDs...),
		LastIndexedAt: time.Now().UTC(),
	}
	for _, u := range upserts {
		newRec.ChunkIDs = append(newRec.ChunkIDs, u.Chunk.ChunkID)
	}
	sort.Strings(newRec.ChunkIDs)
	if failed == 0 {
		newRec.LastContentHash = d.NewHash
	} else if rec != nil {
		newRec.LastContentHash = rec.LastContentHash
	}
	if err := idx.store.UpsertFileRecord(ctx, newRec); err != nil {
		if runLevel(err) {
			return fr, fmt.Errorf("failed to record %s: %w", d.FilePath, err)
		}
		log.Printf("[indexer] record write failed for %s: %v", d.FilePath, err)
		fr.Outcome = types.FileFailed
		fr.Error = fmt.Sprintf("file record write failed: %v", err)
		return fr, nil
	}

	if failed > 0 {
		fr.Outcome = types.FileFailed
		fr.Error = fmt.Sprintf("%d of %d chunks failed to embed", failed, len(d.ToEmbed))
	}
	return fr, nil
}

// embedChunks embeds texts as one batch, falling back to per-chunk calls
// when the batch fails so a single bad chunk is isolated. Results are
// positional; chunkErrs[i] is non-nil when vectors[i] is unusable.
func (idx *Indexer) embedChunks(ctx context.Context, texts []string) ([][]float32, []error) {
	chunkErrs := make([]error, len(texts))
	if len(texts) == 0 {
		return nil, chunkErrs
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err == nil {
		return vectors, chunkErrs
	}
	if ctx.Err() != nil {
		for i := range chunkErrs {
			chunkErrs[i] = ctx.Err()
		}
		return make([][]float32, len(texts)), chunkErrs
	}

	vectors = make([][]float32, len(texts))
	for i, text := range texts {
		v, verr := idx.embedder.Embed(ctx, text)
		if verr != nil {
			chunkErrs[i] = verr
			continue
		}
		vectors[i] = v
	}
	return vectors, chunkErrs
}

// establishModelInfo records the embedding identity on first write. The
// dimension comes from an actual vector, not provider configuration, so
// the stored value always matches stored data.
func (idx *Indexer) establishModelInfo(ctx context.Context, dimension int) error {
	_, err := idx.store.ModelInfo(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return idx.store.SetModelInfo(ctx, store.ModelInfo{
		Model:     idx.embedder.Model(),
		Dimension: dimension,
	})
}

// reportDryRun fills the report with what a real run would have done.
func (idx *Indexer) reportDryRun(report *types.RunReport, diffs []*fileDiff, removed []string) {
	for _, d := range diffs {
		for _, c := range d.ToEmbed {
			if d.OldIDs[c.ChunkID] {
				report.ChunksUpdated++
			} else {
				report.ChunksCreated++
			}
		}
		report.ChunksDeleted += len(d.DeleteIDs)
		report.Files = append(report.Files, types.FileReport{FilePath: d.FilePath, Outcome: d.Outcome})
	}
	for _, relPath := range removed {
		report.Files = append(report.Files, types.FileReport{FilePath: relPath, Outcome: types.FileDeleted})
	}
	if report.ErrorCount() > 0 {
		report.Outcome = types.RunWithErrors
	}
}

// finish classifies a run-level error as cancellation (partial) or abort
// and closes out the report.
func (idx *Indexer) finish(report *types.RunReport, start time.Time, err error) (*types.RunReport, error) {
	report.Elapsed = time.Since(start)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		idx.setState(StateIdle)
		report.Outcome = types.RunPartial
		return report, nil
	}
	idx.setState(StateError)
	report.Outcome = types.RunAborted
	report.AbortReason = err.Error()
	return report, err
}
