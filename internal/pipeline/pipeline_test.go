package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbcheck/internal/cfg"
	"rbcheck/internal/diag"
	"rbcheck/internal/global"
	"rbcheck/internal/snapshot"
	"rbcheck/internal/source"
	"rbcheck/internal/testkit"
)

const sp = `"span": [0, 1]`

func cnst(name string) string {
	return fmt.Sprintf(`{"kind": "const", %s, "name": %q}`, sp, name)
}

func send(recv, fun string, args ...string) string {
	s := fmt.Sprintf(`{"kind": "send", %s, "fun": %q, "args": [%s]`, sp, fun, strings.Join(args, ", "))
	if recv != "" {
		s += `, "recv": ` + recv
	}
	return s + "}"
}

func def(name string, params []string, body string) string {
	ps := make([]string, len(params))
	for i, p := range params {
		ps[i] = fmt.Sprintf(`{"kind": "req", "name": %q, %s}`, p, sp)
	}
	s := fmt.Sprintf(`{"kind": "def", %s, "name": %q, "params": [%s]`, sp, name, strings.Join(ps, ", "))
	if body != "" {
		s += `, "body": ` + body
	}
	return s + "}"
}

func class(name string, defs ...string) string {
	return fmt.Sprintf(`{"kind": "class", %s, "name": %s, "body": [%s]}`, sp, cnst(name), strings.Join(defs, ", "))
}

func document(path, strict, root string) Input {
	data := fmt.Sprintf(`{"path": %q, "strict": %q, "source": "0123456789", "root": %s}`, path, strict, root)
	return Input{Path: path + ".tree.json", Data: []byte(data)}
}

// program is two files: a.rb calls A#size with too few arguments and
// b.rb calls a method A does not have.
func program() []Input {
	return []Input{
		document("a.rb", "true", class("A",
			def("size", []string{"n"}, ""),
			def("go", nil, send(send(cnst("A"), "new"), "size")),
		)),
		document("b.rb", "true", class("B",
			def("run", nil, send(send(cnst("A"), "new"), "missing")),
		)),
	}
}

func run(t *testing.T, inputs []Input, opts Options) (*global.GlobalState, *Result) {
	t.Helper()
	master := global.New()
	res, err := Run(context.Background(), master, inputs, opts)
	require.NoError(t, err)
	return master, res
}

func TestRunMergesWorkersInInputOrder(t *testing.T) {
	master, res := run(t, program(), Options{Jobs: 2})

	require.Len(t, res.Files, 2)
	assert.Equal(t, "a.rb.tree.json", res.Files[0].Path)
	assert.Equal(t, "b.rb.tree.json", res.Files[1].Path)
	assert.Len(t, res.Files[0].Methods, 2)
	assert.Len(t, res.Files[1].Methods, 1)
	assert.Equal(t, 2, res.FastPaths)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, 1, res.Bag.Count(diag.InferArgCount))
	assert.Equal(t, 1, res.Bag.Count(diag.InferMethodNotFound))
	items := res.Bag.Items()
	require.Len(t, items, 2)
	assert.Less(t, items[0].Primary.File(), items[1].Primary.File(), "sorted by file")

	for _, fr := range res.Files {
		for _, m := range fr.Methods {
			for _, l := range m.CFG.Locals {
				assert.Less(t, int(l.Name), master.Names.Len(), "local of %s", master.ShowSymbol(m.Symbol))
			}
			assert.Equal(t, m.CFG, m.Types.CFG)
		}
	}
	require.NoError(t, master.SanityCheck())

	var cfgs []*cfg.CFG
	for _, fr := range res.Files {
		for _, m := range fr.Methods {
			cfgs = append(cfgs, m.CFG)
		}
	}
	require.NoError(t, testkit.CheckLocInvariants(master, cfgs, items))
}

func TestRunIsIndependentOfJobCount(t *testing.T) {
	messages := func(jobs int) []string {
		_, res := run(t, program(), Options{Jobs: jobs})
		var out []string
		for _, d := range res.Bag.Items() {
			out = append(out, fmt.Sprintf("%s %s %s", d.Code.ID(), d.Primary, d.Message))
		}
		return out
	}
	one := messages(1)
	assert.Equal(t, one, messages(2))
	assert.Equal(t, one, messages(8))
}

func TestStrictnessOverride(t *testing.T) {
	_, res := run(t, program(), Options{Strictness: source.StrictFalse})
	assert.Zero(t, res.Bag.Len())
}

func TestMaxDiagnostics(t *testing.T) {
	_, res := run(t, program(), Options{MaxDiagnostics: 1})
	assert.Equal(t, 1, res.Bag.Len())
}

func TestDecodeErrorNamesThePath(t *testing.T) {
	inputs := append(program(), Input{Path: "broken.tree.json", Data: []byte(`{"path": "x.rb"`)})
	_, err := Run(context.Background(), global.New(), inputs, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.tree.json")
}

func TestCancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, global.New(), program(), Options{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEmptyRun(t *testing.T) {
	_, res := run(t, nil, Options{})
	assert.Empty(t, res.Files)
	assert.Zero(t, res.Bag.Len())
}

func TestProgressEvents(t *testing.T) {
	ch := make(chan Event, 64)
	_, res := run(t, program(), Options{Jobs: 2, Progress: ChannelSink{Ch: ch}})
	close(ch)

	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	first, last := events[0], events[len(events)-1]
	assert.Equal(t, "", first.File)
	assert.Equal(t, StatusWorking, first.Status)
	assert.Equal(t, "", last.File)
	assert.Equal(t, StatusDone, last.Status)

	done := make(map[string]bool)
	for _, ev := range events {
		assert.Equal(t, res.RunID, ev.RunID)
		if ev.Stage == StageTypecheck && ev.Status == StatusDone {
			done[ev.File] = true
		}
	}
	assert.Equal(t, map[string]bool{"a.rb.tree.json": true, "b.rb.tree.json": true}, done)
}

func TestCacheStoresIndexedState(t *testing.T) {
	cache, err := snapshot.OpenDiskCache(t.TempDir(), "rbcheck")
	require.NoError(t, err)
	_, res := run(t, program(), Options{Cache: cache})
	require.NoError(t, res.CacheErr)

	gs, hit, err := LoadState(context.Background(), program(), Options{Cache: cache})
	require.NoError(t, err)
	assert.True(t, hit)
	_, ok := gs.Names.LookupUTF8("size")
	assert.True(t, ok)

	_, hit, err = LoadState(context.Background(), program(), Options{Cache: cache, Strictness: source.StrictStrong})
	require.NoError(t, err)
	assert.False(t, hit, "strictness is part of the key")
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	write("lib/b.tree.json", "b")
	write("a.tree.json", "a")
	write("notes.txt", "n")

	inputs, err := Discover(root, nil)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, filepath.Join(root, "a.tree.json"), inputs[0].Path)
	assert.Equal(t, []byte("b"), inputs[1].Data)

	only, err := Discover(root, func(rel string) bool { return strings.HasPrefix(rel, "lib/") })
	require.NoError(t, err)
	assert.Len(t, only, 1)
}
