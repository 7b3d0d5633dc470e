package global

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbcheck/internal/enforce"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

func requireFault(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		_, ok := enforce.AsFault(recover())
		require.True(t, ok, "expected an internal consistency fault")
	}()
	fn()
}

func constName(gs *GlobalState, text string) names.NameRef {
	return gs.Names.EnterConstant(gs.Names.EnterUTF8(text))
}

func TestNewStateIsFrozen(t *testing.T) {
	gs := New()
	require.NotZero(t, gs.ID)
	require.True(t, gs.Names.Frozen())
	require.True(t, gs.Symbols.Frozen())
	require.True(t, gs.Files.Frozen())
	requireFault(t, func() { gs.Names.EnterUTF8("fresh") })
	require.NoError(t, gs.SanityCheck())
}

func TestGuardsNest(t *testing.T) {
	gs := New()
	outer := gs.UnfreezeNameTable()
	inner := gs.UnfreezeNameTable()
	inner.Release()
	assert.False(t, gs.Names.Frozen(), "inner release must keep the outer scope open")
	outer.Release()
	assert.True(t, gs.Names.Frozen())
	outer.Release()
	assert.True(t, gs.Names.Frozen())
}

func TestClassHierarchyScenario(t *testing.T) {
	gs := New()
	func() {
		defer gs.UnfreezeAll().Release()
		bar := gs.EnterClassSymbol(source.Loc(0), symbols.Root, constName(gs, "Bar"))
		foo := gs.EnterClassSymbol(source.Loc(0), symbols.Root, constName(gs, "Foo"))
		gs.Sym(bar).Superclass = symbols.Object
		gs.Sym(foo).Superclass = bar
	}()

	barName, ok := gs.Names.LookupUTF8("Bar")
	require.True(t, ok)
	barConst, ok := gs.Names.LookupConstant(barName)
	require.True(t, ok)
	bar := gs.Symbols.FindMember(symbols.Root, barConst)
	require.True(t, bar.Exists())
	assert.Equal(t, "<C <U Bar>>", gs.Names.ShowRaw(gs.Sym(bar).Name))

	fooName, _ := gs.Names.LookupUTF8("Foo")
	fooConst, _ := gs.Names.LookupConstant(fooName)
	foo := gs.Symbols.FindMember(symbols.Root, fooConst)
	require.True(t, foo.Exists())
	assert.Equal(t, bar, gs.Sym(foo).Superclass)
	assert.Equal(t, symbols.KindClass, gs.Sym(foo).Kind)
	require.NoError(t, gs.SanityCheck())
}

func TestEnterValidatesOwners(t *testing.T) {
	gs := New()
	defer gs.UnfreezeAll().Release()
	m := gs.EnterMethodSymbol(source.Loc(0), symbols.Object, gs.Names.EnterUTF8("each"))

	requireFault(t, func() { gs.EnterTypeMember(source.Loc(0), m, constName(gs, "Elem"), symbols.Invariant) })
	requireFault(t, func() { gs.EnterTypeArgument(source.Loc(0), symbols.Object, constName(gs, "U"), symbols.Invariant) })
	requireFault(t, func() { gs.EnterClassSymbol(source.Loc(0), symbols.Root, gs.Names.EnterUTF8("lower")) })
	requireFault(t, func() { gs.EnterMethodSymbol(source.Loc(0), m, gs.Names.EnterUTF8("inner")) })
	requireFault(t, func() { gs.EnterModuleSymbol(source.Loc(0), symbols.Root, names.ConstObject) })

	u := gs.EnterTypeArgument(source.Loc(0), m, constName(gs, "U"), symbols.Covariant)
	assert.Equal(t, []symbols.SymbolRef{u}, gs.Sym(m).TypeParams)
	assert.Equal(t, symbols.Covariant, gs.Sym(u).Variance)
}

func TestEnterIsIdempotentAndAddsLocs(t *testing.T) {
	gs := New()
	defer gs.UnfreezeAll().Release()
	name := constName(gs, "A")
	a1 := gs.EnterClassSymbol(source.NewLoc(1, 0, 1), symbols.Root, name)
	a2 := gs.EnterClassSymbol(source.NewLoc(1, 5, 6), symbols.Root, name)
	require.Equal(t, a1, a2)
	assert.Len(t, gs.Sym(a1).Locs, 2)
}

func TestMethodArguments(t *testing.T) {
	gs := New()
	defer gs.UnfreezeAll().Release()
	m := gs.EnterMethodSymbol(source.Loc(0), symbols.Object, gs.Names.EnterUTF8("f"))
	x := gs.Names.EnterUTF8("x")
	assert.Equal(t, 0, gs.EnterMethodArgument(m, symbols.ArgInfo{Name: x}))
	assert.Equal(t, 1, gs.EnterMethodArgument(m, symbols.ArgInfo{Name: gs.Names.EnterUTF8("y"), Flags: symbols.ArgDefault}))
	assert.Equal(t, 0, gs.EnterMethodArgument(m, symbols.ArgInfo{Name: x}))
}

func TestMangleRenameFreesTheName(t *testing.T) {
	gs := New()
	defer gs.UnfreezeAll().Release()
	f := gs.Names.EnterUTF8("f")
	old := gs.EnterMethodSymbol(source.Loc(0), symbols.Object, f)
	first := gs.MangleRenameSymbol(old)
	fresh := gs.EnterMethodSymbol(source.Loc(0), symbols.Object, f)
	require.NotEqual(t, old, fresh)
	second := gs.MangleRenameSymbol(fresh)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "<M <U f> $1>", gs.Names.ShowRaw(first))
	assert.Equal(t, "<M <U f> $2>", gs.Names.ShowRaw(second))
	require.NoError(t, gs.SanityCheck())
}

func TestSingletonClass(t *testing.T) {
	gs := New()
	defer gs.UnfreezeAll().Release()
	foo := gs.EnterClassSymbol(source.Loc(0), symbols.Root, constName(gs, "Foo"))
	single := gs.SingletonClass(foo)
	assert.Equal(t, single, gs.SingletonClass(foo))
	assert.Equal(t, foo, gs.Sym(single).Attached)
	assert.Equal(t, "<Class:Foo>", gs.ShowSymbol(single))
	m := gs.EnterMethodSymbol(source.Loc(0), single, gs.Names.EnterUTF8("build"))
	assert.Equal(t, "Foo.build", gs.ShowSymbol(m))
	require.NoError(t, gs.SanityCheck())
}

func TestDeepCopyIsIndependent(t *testing.T) {
	gs := New()
	cp := gs.DeepCopy()
	require.NotEqual(t, gs.ID, cp.ID)
	func() {
		defer cp.UnfreezeAll().Release()
		cp.EnterClassSymbol(source.Loc(0), symbols.Root, constName(cp, "OnlyInCopy"))
		cp.Files.AddVirtual("copy.rb", []byte("x"))
	}()
	_, ok := gs.Names.LookupUTF8("OnlyInCopy")
	assert.False(t, ok)
	assert.Equal(t, symbols.WellKnownCount, gs.Symbols.Len())
	assert.Equal(t, 1, gs.Files.Len())
	assert.True(t, cp.Names.Frozen(), "copy keeps the frozen flags")
}
