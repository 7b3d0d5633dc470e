package snapshot

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"rbcheck/internal/global"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

// populated returns a state with a file, a class with a method, and a few
// extra names, as a namer run would leave it.
func populated(t *testing.T, withFile bool) (*global.GlobalState, symbols.SymbolRef) {
	t.Helper()
	gs := global.New()
	defer gs.UnfreezeAll().Release()

	var loc source.Loc
	if withFile {
		fid := gs.Files.Add("lib/a.rb", []byte("class Foo\n  def bar(x) end\nend\n"), 0)
		loc = source.NewLoc(fid, 0, 9)
	}
	foo := gs.EnterClassSymbol(loc, symbols.Root, gs.Names.EnterConstant(gs.Names.EnterUTF8("Foo")))
	gs.Sym(foo).Superclass = symbols.Object
	bar := gs.EnterMethodSymbol(loc, foo, gs.Names.EnterUTF8("bar"))
	gs.EnterMethodArgument(bar, symbols.ArgInfo{Name: gs.Names.EnterUTF8("x"), Type: "Integer"})
	gs.Sym(bar).ResultType = "String"
	gs.Names.EnterUnique(names.UniqueCFG, gs.Names.EnterUTF8("tmp"), 2)
	return gs, bar
}

func roundTrip(t *testing.T, gs *global.GlobalState, meta Meta) (*global.GlobalState, Meta) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, gs, meta))
	out, got, err := Decode(&buf)
	require.NoError(t, err)
	return out, got
}

func TestRoundTripKeepsTables(t *testing.T) {
	gs, bar := populated(t, true)
	key := Digest([]Input{{Path: "lib/a.rb", Content: []byte("x")}})
	out, meta := roundTrip(t, gs, NewMeta(key))

	assert.Equal(t, key, meta.Key)
	assert.NotEmpty(t, meta.RunID)
	assert.NotEqual(t, gs.ID, out.ID)

	require.Equal(t, gs.Names.Len(), out.Names.Len())
	for i := 1; i < gs.Names.Len(); i++ {
		ref := names.NameRef(i) // #nosec G115 -- test tables are tiny
		assert.Equal(t, gs.Names.ShowRaw(ref), out.Names.ShowRaw(ref), "name %d", i)
	}
	require.Equal(t, gs.Symbols.Len(), out.Symbols.Len())
	assert.Equal(t, "Foo#bar", out.ShowSymbol(bar))
	m := out.Sym(bar)
	assert.Equal(t, "String", m.ResultType)
	require.Len(t, m.Arguments, 1)
	assert.Equal(t, "Integer", m.Arguments[0].Type)

	foo := out.Sym(bar).Owner
	assert.Equal(t, bar, out.Symbols.FindMemberTransitive(foo, out.Sym(bar).Name))

	f := out.Files.Get(1)
	require.NotNil(t, f)
	assert.Equal(t, "lib/a.rb", f.Path)
	assert.Equal(t, gs.Files.Get(1).Hash, f.Hash)
	require.NoError(t, out.SanityCheck())
}

func TestDecodedStateIsFrozen(t *testing.T) {
	gs, _ := populated(t, false)
	out, _ := roundTrip(t, gs, Meta{})
	assert.Panics(t, func() { out.Names.EnterUTF8("late") })
}

func TestDecodedStateSubstitutesIntoOriginal(t *testing.T) {
	gs, _ := populated(t, false)
	out, _ := roundTrip(t, gs, Meta{})

	subst := global.NewSubstitution(out, gs, nil)
	require.False(t, subst.UseFastPath())
	for i := 0; i < out.Names.Len(); i++ {
		ref := names.NameRef(i) // #nosec G115
		assert.Equal(t, ref, subst.Substitute(ref))
	}
}

func TestSchemaMismatch(t *testing.T) {
	gs, _ := populated(t, false)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, gs, Meta{}))

	var raw map[string]any
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &raw))
	raw["Meta"].(map[string]any)["Schema"] = schemaVersion + 1
	bumped, err := msgpack.Marshal(raw)
	require.NoError(t, err)

	_, meta, err := Decode(bytes.NewReader(bumped))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
	assert.EqualValues(t, schemaVersion+1, meta.Schema)
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte{0xc1, 0x00}))
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	a := Input{Path: "a.rb", Content: []byte("class A; end")}
	b := Input{Path: "b.rb", Content: []byte("class B; end")}

	assert.Equal(t, Digest([]Input{a, b}), Digest([]Input{b, a}), "order does not matter")
	assert.False(t, Digest(nil).IsZero())

	edited := b
	edited.Content = []byte("class B; def x; end; end")
	assert.NotEqual(t, Digest([]Input{a, b}), Digest([]Input{a, edited}))

	stricter := b
	stricter.Strict = source.StrictStrong
	assert.NotEqual(t, Digest([]Input{a, b}), Digest([]Input{a, stricter}))
	assert.Len(t, Digest(nil).String(), 64)
}

func TestDiskCache(t *testing.T) {
	c, err := OpenDiskCache(t.TempDir(), "rbcheck")
	require.NoError(t, err)
	gs, bar := populated(t, true)
	key := Digest([]Input{{Path: "lib/a.rb", Content: gs.Files.Get(1).Content}})

	_, _, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, gs))
	out, meta, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key, meta.Key)
	assert.Equal(t, "Foo#bar", out.ShowSymbol(bar))

	require.NoError(t, c.DropAll())
	_, _, ok, err = c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskCacheEnsure(t *testing.T) {
	c, err := OpenDiskCache(t.TempDir(), "rbcheck")
	require.NoError(t, err)
	inputs := []Input{{Path: "a.rb", Content: []byte("1")}}
	builds := 0
	build := func() (*global.GlobalState, error) {
		builds++
		gs, _ := populated(t, false)
		return gs, nil
	}

	_, hit, err := c.Ensure(inputs, build)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = c.Ensure(inputs, build)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, builds)
}

func TestNilDiskCache(t *testing.T) {
	var c *DiskCache
	gs, _ := populated(t, false)
	require.NoError(t, c.Put(Key{}, gs))
	_, _, ok, err := c.Get(Key{})
	require.NoError(t, err)
	assert.False(t, ok)
}
