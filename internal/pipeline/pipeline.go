// Package pipeline runs a whole check: an index phase on the master state,
// a typecheck phase on per-worker deep copies, and a merge phase that
// substitutes every worker universe back into the master.
//
// Only the coordinator goroutine touches the master. Workers see their own
// copy and the (read-only) trees; they report into their copy's queue and
// the coordinator merges the results in input order, so output does not
// depend on scheduling.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rbcheck/internal/ast"
	"rbcheck/internal/cfg"
	"rbcheck/internal/diag"
	"rbcheck/internal/global"
	"rbcheck/internal/infer"
	"rbcheck/internal/metrics"
	"rbcheck/internal/observ"
	"rbcheck/internal/snapshot"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
	"rbcheck/internal/trace"
)

// Options tune Run.
type Options struct {
	// Jobs bounds the number of workers; <= 0 means GOMAXPROCS.
	Jobs int
	// MaxDiagnostics truncates the merged bag; <= 0 means unlimited.
	MaxDiagnostics int
	// Strictness overrides every file's sigil unless it is StrictNone.
	Strictness source.StrictLevel
	// Simplify runs the CFG simplifier after finalization.
	Simplify bool
	// Progress receives events; nil drops them.
	Progress ProgressSink
	// Cache stores the indexed master state under the input digest.
	Cache *snapshot.DiskCache
	// RunID tags events and trace spans; Run fills it when empty.
	RunID string
}

func (o Options) sink() ProgressSink {
	if o.Progress == nil {
		return nopSink{}
	}
	return o.Progress
}

// Method is one typechecked method body.
type Method struct {
	Symbol symbols.SymbolRef
	CFG    *cfg.CFG
	Types  *infer.Result
}

// FileResult holds the outcome for one input.
type FileResult struct {
	Path    string
	File    source.FileID
	Tree    *ast.Tree
	Methods []Method
}

// Result is the outcome of Run.
type Result struct {
	RunID string
	Files []FileResult
	// Bag holds every diagnostic, sorted and deduplicated.
	Bag   *diag.Bag
	Timer *observ.Timer
	// FastPaths counts worker merges that took the substitution fast path.
	FastPaths int
	// CacheErr is set when the indexed state could not be stored.
	CacheErr error
}

// workerResult is what one worker hands back to the coordinator.
type workerResult struct {
	gs    *global.GlobalState
	files []FileResult
	bag   *diag.Bag
	fault any
}

// Run checks inputs against master. master must hold frozen tables; it is
// unfrozen for the index phase and receives every merged name. Run returns
// ctx's error if it is cancelled; cancellation is observed between files.
// An internal-consistency fault raised on a worker is re-raised on the
// calling goroutine after all workers stop.
func Run(ctx context.Context, master *global.GlobalState, inputs []Input, opts Options) (*Result, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	sink := opts.sink()
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "pipeline")
	span.WithExtra("run", opts.RunID)
	defer span.End("")

	res := &Result{RunID: opts.RunID, Timer: observ.NewTimer()}
	sink.OnEvent(Event{RunID: opts.RunID, Status: StatusWorking})

	// индексация
	idx := res.Timer.Begin(string(StageIndex))
	trees, err := Index(ctx, master, inputs, opts)
	if err != nil {
		res.Timer.End(idx, "failed")
		sink.OnEvent(Event{RunID: opts.RunID, Status: StatusError, Err: err})
		return nil, err
	}
	res.Timer.End(idx, fmt.Sprintf("%d files", len(trees)))
	if opts.Cache != nil {
		if err := opts.Cache.Put(Digest(inputs, opts.Strictness), master); err != nil {
			res.CacheErr = err
		}
	}

	all := diag.NewBag(0)
	master.Errors.DrainInto(all)

	// проверка типов
	idx = res.Timer.Begin(string(StageTypecheck))
	base := master.DeepCopy()
	workers, err := typecheck(ctx, base, inputs, trees, opts)
	if err != nil {
		res.Timer.End(idx, "cancelled")
		sink.OnEvent(Event{RunID: opts.RunID, Status: StatusError, Err: err})
		return nil, err
	}
	res.Timer.End(idx, fmt.Sprintf("%d workers", len(workers)))

	// слияние
	idx = res.Timer.Begin(string(StageMerge))
	mergeStart := time.Now()
	_, mspan := trace.Start(ctx, trace.ScopePass, string(StageMerge))
	for _, w := range workers {
		subst := global.NewSubstitution(w.gs, master, base)
		if subst.UseFastPath() {
			res.FastPaths++
			metrics.Substitutions.WithLabelValues("fast").Inc()
		} else {
			metrics.Substitutions.WithLabelValues("slow").Inc()
		}
		for _, fr := range w.files {
			for _, m := range fr.Methods {
				m.CFG.Substitute(subst)
			}
			res.Files = append(res.Files, fr)
		}
		all.Merge(w.bag)
	}
	all.Sort()
	all.Dedup()
	if opts.MaxDiagnostics > 0 {
		all.Truncate(opts.MaxDiagnostics)
	}
	for _, d := range all.Items() {
		metrics.Diagnostics.WithLabelValues(d.Code.ID()).Inc()
	}
	res.Bag = all
	mspan.End("")
	metrics.PipelinePhaseDuration.WithLabelValues(string(StageMerge)).Observe(time.Since(mergeStart).Seconds())
	res.Timer.End(idx, fmt.Sprintf("%d diagnostics", all.Len()))

	sink.OnEvent(Event{RunID: opts.RunID, Status: StatusDone})
	return res, nil
}

// typecheck splits inputs into contiguous chunks, one per worker. Each
// worker deep copies base, so the master stays untouched until merge.
func typecheck(ctx context.Context, base *global.GlobalState, inputs []Input, trees []*ast.Tree, opts Options) ([]*workerResult, error) {
	start := time.Now()
	ctx, span := trace.Start(ctx, trace.ScopePass, string(StageTypecheck))
	defer span.End("")

	jobs := min(opts.Jobs, len(trees))
	if jobs == 0 {
		return nil, nil
	}
	chunk := (len(trees) + jobs - 1) / jobs
	results := make([]*workerResult, 0, jobs)
	for lo := 0; lo < len(trees); lo += chunk {
		results = append(results, &workerResult{files: make([]FileResult, 0, chunk)})
	}

	sink := opts.sink()
	for _, in := range inputs {
		sink.OnEvent(Event{RunID: opts.RunID, File: in.Path, Stage: StageTypecheck, Status: StatusQueued})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for w := range results {
		lo := w * chunk
		hi := min(lo+chunk, len(trees))
		g.Go(func() error {
			res := results[w]
			// ошибки целостности всплывают у координатора
			defer func() {
				if r := recover(); r != nil {
					res.fault = r
				}
			}()
			res.gs = base.DeepCopy()
			res.bag = diag.NewBag(0)
			for i := lo; i < hi; i++ {
				// Проверка отмены
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				res.files = append(res.files, checkFile(gctx, res.gs, inputs[i].Path, trees[i], opts))
				res.gs.Errors.DrainInto(res.bag)
			}
			return nil
		})
	}
	err := g.Wait()
	for _, r := range results {
		if r.fault != nil {
			panic(r.fault)
		}
	}
	if err != nil {
		return nil, err
	}
	metrics.PipelinePhaseDuration.WithLabelValues(string(StageTypecheck)).Observe(time.Since(start).Seconds())
	return results, nil
}

func checkFile(ctx context.Context, gs *global.GlobalState, path string, tree *ast.Tree, opts Options) FileResult {
	sink := opts.sink()
	t0 := time.Now()
	sink.OnEvent(Event{RunID: opts.RunID, File: path, Stage: StageTypecheck, Status: StatusWorking})
	ctx, span := trace.Start(ctx, trace.ScopeFile, path)

	fr := FileResult{Path: path, File: tree.File, Tree: tree}
	strict := source.StrictTrue
	if f := gs.Files.Get(tree.File); f != nil {
		strict = f.Strict
	}
	for _, def := range tree.MethodDefs() {
		md, _ := tree.Exprs.MethodDef(def)
		if !md.Symbol.Exists() {
			continue
		}
		c := cfg.Build(ctx, gs, tree, def, cfg.Options{Reporter: gs.Reporter(), Simplify: opts.Simplify})
		types := infer.Run(ctx, gs, c, infer.Options{Reporter: gs.Reporter(), Strictness: strict})
		fr.Methods = append(fr.Methods, Method{Symbol: md.Symbol, CFG: c, Types: types})
	}

	span.WithExtra("methods", fmt.Sprint(len(fr.Methods))).End("")
	metrics.PipelineFiles.WithLabelValues(string(StageTypecheck)).Inc()
	sink.OnEvent(Event{RunID: opts.RunID, File: path, Stage: StageTypecheck, Status: StatusDone, Elapsed: time.Since(t0)})
	return fr
}
