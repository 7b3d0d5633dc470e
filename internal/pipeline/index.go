package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"rbcheck/internal/ast"
	"rbcheck/internal/global"
	"rbcheck/internal/metrics"
	"rbcheck/internal/namer"
	"rbcheck/internal/rewriter"
	"rbcheck/internal/snapshot"
	"rbcheck/internal/source"
	"rbcheck/internal/trace"
)

// Input is one desugared tree document (*.tree.json).
type Input struct {
	// Path is where the document was read from.
	Path string
	Data []byte
}

// Discover returns the documents under root accepted by match, sorted by
// path for a deterministic file order. A nil match accepts every
// *.tree.json file.
func Discover(root string, match func(rel string) bool) ([]Input, error) {
	if match == nil {
		match = func(rel string) bool { return strings.HasSuffix(rel, ".tree.json") }
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if match(filepath.ToSlash(rel)) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	inputs := make([]Input, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, Input{Path: p, Data: data})
	}
	return inputs, nil
}

func snapshotInputs(inputs []Input, strict source.StrictLevel) []snapshot.Input {
	keyed := make([]snapshot.Input, 0, len(inputs))
	for _, in := range inputs {
		keyed = append(keyed, snapshot.Input{Path: in.Path, Content: in.Data, Strict: strict})
	}
	return keyed
}

// Digest keys inputs for the snapshot cache.
func Digest(inputs []Input, strict source.StrictLevel) snapshot.Key {
	return snapshot.Digest(snapshotInputs(inputs, strict))
}

// Index adds every input to master and names it: each document is decoded,
// rewritten and then all trees are named together. Index runs on the
// calling goroutine; master's tables are frozen again when it returns.
// Diagnostics land in master's error queue. A document that cannot be
// decoded fails the whole index with an error naming its path.
func Index(ctx context.Context, master *global.GlobalState, inputs []Input, opts Options) ([]*ast.Tree, error) {
	_, span := trace.Start(ctx, trace.ScopePass, string(StageIndex))
	start := time.Now()
	sink := opts.sink()

	trees := make([]*ast.Tree, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t0 := time.Now()
		sink.OnEvent(Event{RunID: opts.RunID, File: in.Path, Stage: StageIndex, Status: StatusWorking})
		tree, err := decodeInput(master, in, opts.Strictness)
		if err != nil {
			sink.OnEvent(Event{RunID: opts.RunID, File: in.Path, Stage: StageIndex, Status: StatusError, Err: err})
			span.End("failed")
			return nil, err
		}
		rewriter.Run(master, tree, master.Reporter())
		trees = append(trees, tree)
		metrics.PipelineFiles.WithLabelValues(string(StageIndex)).Inc()
		sink.OnEvent(Event{RunID: opts.RunID, File: in.Path, Stage: StageIndex, Status: StatusDone, Elapsed: time.Since(t0)})
	}
	namer.Run(master, trees, master.Reporter())

	metrics.PipelinePhaseDuration.WithLabelValues(string(StageIndex)).Observe(time.Since(start).Seconds())
	span.WithExtra("files", fmt.Sprint(len(trees))).End("")
	return trees, nil
}

func decodeInput(master *global.GlobalState, in Input, override source.StrictLevel) (*ast.Tree, error) {
	doc, err := ast.ParseDocument(in.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Path, err)
	}
	strict, err := doc.StrictLevel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Path, err)
	}
	if override != source.StrictNone {
		strict = override
	}
	path := doc.Path
	if path == "" {
		path = in.Path
	}

	defer master.UnfreezeAll().Release()
	fid := master.Files.Add(path, []byte(doc.Source), 0)
	master.Files.SetStrict(fid, strict)
	tree, err := ast.Decode(master.Names, fid, len(doc.Source), doc.Root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Path, err)
	}
	return tree, nil
}

// LoadState returns an indexed state for inputs without keeping the trees,
// reusing a cached snapshot when one matches. The bool reports a cache hit.
func LoadState(ctx context.Context, inputs []Input, opts Options) (*global.GlobalState, bool, error) {
	build := func() (*global.GlobalState, error) {
		master := global.New()
		if _, err := Index(ctx, master, inputs, opts); err != nil {
			return nil, err
		}
		return master, nil
	}
	if opts.Cache == nil {
		gs, err := build()
		return gs, false, err
	}
	return opts.Cache.Ensure(snapshotInputs(inputs, opts.Strictness), build)
}
