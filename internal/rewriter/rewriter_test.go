package rewriter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbcheck/internal/ast"
	"rbcheck/internal/diag"
	"rbcheck/internal/global"
	"rbcheck/internal/names"
)

func parse(t *testing.T, gs *global.GlobalState, src, root string) *ast.Tree {
	t.Helper()
	defer gs.UnfreezeAll().Release()
	file := gs.Files.Add("t.rb", []byte(src), 0)
	tree, err := ast.Decode(gs.Names, file, len(src), []byte(root))
	require.NoError(t, err)
	return tree
}

func run(gs *global.GlobalState, tree *ast.Tree) *diag.Bag {
	bag := diag.NewBag(0)
	Run(gs, tree, diag.BagReporter{Bag: bag})
	return bag
}

func classBody(t *testing.T, tree *ast.Tree) []ast.ExprID {
	t.Helper()
	seq, ok := tree.Exprs.InsSeq(tree.Root)
	require.True(t, ok, "root should be wrapped into a sequence")
	require.Len(t, seq.Stats, 1)
	cls, ok := tree.Exprs.ClassDef(seq.Stats[0])
	require.True(t, ok)
	return cls.Body
}

func TestPrivateOnSelfMethodIsReported(t *testing.T) {
	gs := global.New()
	src := "class A\n  private def self.foo; end\nend\n"
	tree := parse(t, gs, src, `{"kind": "class", "span": [0, 39],
		"name": {"kind": "const", "span": [6, 7], "name": "A"},
		"body": [{"kind": "send", "span": [10, 35], "fun": "private",
			"args": [{"kind": "def", "span": [18, 35], "name": "foo", "self": true}]}]}`)

	bag := run(gs, tree)
	require.Equal(t, 1, bag.Len())
	d := bag.Items()[0]
	assert.Equal(t, diag.RewriterPrivateMethodMismatch, d.Code)
	assert.Contains(t, d.Message, "private_class_method")
	require.Len(t, d.Fixes, 1)
	edit := d.Fixes[0].Edits[0]
	assert.Equal(t, "private", edit.Loc.Source(gs.Files))
	assert.Equal(t, "private_class_method", edit.NewText)

	body := classBody(t, tree)
	def, ok := tree.Exprs.MethodDef(body[0])
	require.True(t, ok, "private wrapper should be unwrapped")
	assert.True(t, def.Private)
	assert.True(t, def.IsSelf)
}

func TestPrivateClassMethodOnInstanceMethod(t *testing.T) {
	gs := global.New()
	src := "private_class_method def foo; end\n"
	tree := parse(t, gs, src, `{"kind": "send", "span": [0, 33], "fun": "private_class_method",
		"args": [{"kind": "def", "span": [21, 33], "name": "foo"}]}`)

	bag := run(gs, tree)
	require.Equal(t, 1, bag.Count(diag.RewriterPrivateMethodMismatch))
	edit := bag.Items()[0].Fixes[0].Edits[0]
	assert.Equal(t, "private_class_method", edit.Loc.Source(gs.Files))
	assert.Equal(t, "private", edit.NewText)
}

func TestPrivateWithMatchingReceiverIsSilent(t *testing.T) {
	gs := global.New()
	src := "private def foo; end\n"
	tree := parse(t, gs, src, `{"kind": "send", "span": [0, 20], "fun": "private",
		"args": [{"kind": "def", "span": [8, 20], "name": "foo"}]}`)
	bag := run(gs, tree)
	assert.Equal(t, 0, bag.Len())
	seq, _ := tree.Exprs.InsSeq(tree.Root)
	def, ok := tree.Exprs.MethodDef(seq.Stats[0])
	require.True(t, ok)
	assert.True(t, def.Private)
}

func TestAttrAccessorSynthesizesReaderAndWriter(t *testing.T) {
	gs := global.New()
	src := "class A\n  attr_accessor :foo\nend\n"
	tree := parse(t, gs, src, `{"kind": "class", "span": [0, 32],
		"name": {"kind": "const", "span": [6, 7], "name": "A"},
		"body": [{"kind": "send", "span": [10, 28], "fun": "attr_accessor",
			"args": [{"kind": "literal", "span": [24, 28], "lit": "symbol", "value": "foo"}]}]}`)

	bag := run(gs, tree)
	require.Equal(t, 0, bag.Len())
	body := classBody(t, tree)
	require.Len(t, body, 2)

	e := tree.Exprs
	reader, ok := e.MethodDef(body[0])
	require.True(t, ok)
	assert.Equal(t, "foo", gs.Names.Text(reader.Name))
	assert.Equal(t, "foo", reader.NameLoc.Source(gs.Files), "name loc should skip the colon")
	assert.True(t, reader.Synthesized)
	ivar, ok := e.UnresolvedIdent(reader.Body)
	require.True(t, ok)
	assert.Equal(t, ast.IdentInstance, ivar.Kind)
	assert.Equal(t, "@foo", gs.Names.Text(ivar.Name))

	writer, ok := e.MethodDef(body[1])
	require.True(t, ok)
	assert.Equal(t, "foo=", gs.Names.Text(writer.Name))
	require.Len(t, writer.Params, 1)
	assert.Equal(t, "foo", gs.Names.Text(writer.Params[0].Name))
	assign, ok := e.Assign(writer.Body)
	require.True(t, ok)
	assert.Equal(t, ast.ExprUnresolvedIdent, e.Kind(assign.LHS))
	assert.Equal(t, ast.ExprLocal, e.Kind(assign.RHS))

	reg := RegistryOf(gs)
	origins := reg.Origins(writer.Name)
	require.Len(t, origins, 1)
	assert.Equal(t, PassAttrWriter, origins[0].Pass)
	assert.Equal(t, reader.Name, origins[0].From)
}

func TestAttrReaderRejectsBadArguments(t *testing.T) {
	gs := global.New()
	src := "attr_reader \"9x\", 3, \"ok\"\n"
	tree := parse(t, gs, src, `{"kind": "send", "span": [0, 25], "fun": "attr_reader",
		"args": [
			{"kind": "literal", "span": [12, 16], "lit": "string", "value": "9x"},
			{"kind": "literal", "span": [18, 19], "lit": "int", "value": 3},
			{"kind": "literal", "span": [21, 25], "lit": "string", "value": "ok"}]}`)

	bag := run(gs, tree)
	require.Equal(t, 2, bag.Count(diag.RewriterBadAttrArg))
	msgs := []string{bag.Items()[0].Message, bag.Items()[1].Message}
	assert.Contains(t, msgs, `Bad attribute name "9x"`)
	assert.Contains(t, msgs, "arg must be a Symbol or String")

	seq, _ := tree.Exprs.InsSeq(tree.Root)
	require.Len(t, seq.Stats, 1)
	def, ok := tree.Exprs.MethodDef(seq.Stats[0])
	require.True(t, ok)
	assert.Equal(t, "ok", gs.Names.Text(def.Name))
}

const defaultArgsClass = `{"kind": "class", "span": [0, 10],
	"name": {"kind": "const", "span": [0, 1], "name": "A"},
	"body": [{"kind": "def", "span": [0, 10], "name": "m", %s
		"params": [
			{"kind": "req", "name": "a", "span": [1, 2]},
			{"kind": "opt", "name": "b", "span": [3, 4], "default": {"kind": "literal", "span": [5, 6], "lit": "int", "value": 1}},
			{"kind": "optkey", "name": "c", "span": [6, 7], "default": {"kind": "literal", "span": [8, 9], "lit": "nil"}}]}]}`

func TestDefaultArgsSynthesizeMethods(t *testing.T) {
	gs := global.New()
	tree := parse(t, gs, "0123456789", fmt.Sprintf(defaultArgsClass, `"sig": {"params": {"b": "Integer"}, "returns": "String"},`))
	bag := run(gs, tree)
	require.Equal(t, 0, bag.Len())

	e := tree.Exprs
	body := classBody(t, tree)
	require.Len(t, body, 3)
	m, _ := e.MethodDef(body[0])
	for _, p := range m.Params {
		assert.False(t, p.Default.IsValid(), "default of %s should move out", gs.Names.Text(p.Name))
	}
	assert.Equal(t, ast.ParamOptional, m.Params[1].Kind)

	da1, ok := gs.Names.LookupUnique(names.UniqueDefaultArg, m.Name, 1)
	require.True(t, ok)
	synth, _ := e.MethodDef(body[1])
	assert.Equal(t, da1, synth.Name)
	assert.True(t, synth.Synthesized)
	lit, ok := e.Literal(synth.Body)
	require.True(t, ok)
	assert.Equal(t, int64(1), lit.Int)
	require.NotNil(t, synth.Sig)
	assert.Equal(t, "Integer", synth.Sig.Returns)
	require.Len(t, synth.Params, 3)

	da2, ok := gs.Names.LookupUnique(names.UniqueDefaultArg, m.Name, 2)
	require.True(t, ok)
	synth2, _ := e.MethodDef(body[2])
	assert.Equal(t, da2, synth2.Name)
	assert.Nil(t, synth2.Sig, "no sig type for c")
	assert.True(t, RegistryOf(gs).IsSynthesized(da2))
}

func TestDefaultArgsSkipAbstract(t *testing.T) {
	gs := global.New()
	tree := parse(t, gs, "0123456789", fmt.Sprintf(defaultArgsClass, `"sig": {"abstract": true},`))
	run(gs, tree)
	assert.Len(t, classBody(t, tree), 1)
}

func TestRegistryFollowsSubstitution(t *testing.T) {
	master := global.New()
	RegistryOf(master)
	base := master.DeepCopy()
	worker := base.DeepCopy()

	// на мастере появляются чужие имена, чтобы сдвинуть индексы
	func() {
		defer master.UnfreezeNameTable().Release()
		master.Names.EnterUTF8("unrelated")
	}()

	tree := parse(t, worker, "0123456789", fmt.Sprintf(defaultArgsClass, ""))
	run(worker, tree)
	workerReg := RegistryOf(worker)
	require.Equal(t, 2, workerReg.Len())

	subst := global.NewSubstitution(worker, master, base)
	require.False(t, subst.UseFastPath())
	tree.Substitute(subst)

	body := classBody(t, tree)
	m, _ := tree.Exprs.MethodDef(body[0])
	assert.Equal(t, "m", master.Names.Text(m.Name))
	da1, ok := master.Names.LookupUnique(names.UniqueDefaultArg, m.Name, 1)
	require.True(t, ok)

	masterReg := RegistryOf(master)
	require.True(t, masterReg.IsSynthesized(da1))
	assert.Equal(t, m.Name, masterReg.Origins(da1)[0].From)
}

func TestWrapInstanceBecomesLet(t *testing.T) {
	gs := global.New()
	src := "Foo.wrap_instance(1)\nx.wrap_instance(1)\nFoo.wrap_instance\n"
	tree := parse(t, gs, src, `{"kind": "seq", "span": [0, 57], "stats": [
		{"kind": "send", "span": [0, 20], "fun": "wrap_instance",
			"recv": {"kind": "const", "span": [0, 3], "name": "Foo"},
			"args": [{"kind": "literal", "span": [18, 19], "lit": "int", "value": 1}]},
		{"kind": "send", "span": [21, 39], "fun": "wrap_instance",
			"recv": {"kind": "local", "span": [21, 22], "name": "x"},
			"args": [{"kind": "literal", "span": [37, 38], "lit": "int", "value": 1}]}],
		"expr": {"kind": "send", "span": [40, 57], "fun": "wrap_instance",
			"recv": {"kind": "const", "span": [40, 43], "name": "Foo"}}}`)

	bag := run(gs, tree)
	require.Equal(t, 2, bag.Count(diag.RewriterBadWrapInstance))
	var locs, msgs []string
	for _, d := range bag.Items() {
		locs = append(locs, d.Primary.Source(gs.Files))
		msgs = append(msgs, d.Message)
	}
	assert.Contains(t, locs, "x")
	assert.Contains(t, locs, "Foo.wrap_instance")
	assert.Contains(t, msgs, "Unsupported wrap_instance() on a non-constant-literal")
	assert.Contains(t, msgs, "Wrong number of arguments to `wrap_instance`. Expected: `1`, got: `0`")

	e := tree.Exprs
	seq, _ := e.InsSeq(tree.Root)
	cast, ok := e.Cast(seq.Stats[0])
	require.True(t, ok, "wrap_instance on a constant should become a cast")
	assert.Equal(t, ast.CastLet, cast.Kind)
	assert.Equal(t, ast.ExprLiteral, e.Kind(cast.Value))
	typ, ok := e.UnresolvedConst(cast.Type)
	require.True(t, ok)
	assert.Equal(t, "Foo", gs.Names.Show(typ.Name))
	assert.Equal(t, "Foo.wrap_instance(1)", e.Loc(seq.Stats[0]).Source(gs.Files))

	assert.Equal(t, ast.ExprSend, e.Kind(seq.Stats[1]))
	assert.Equal(t, ast.ExprSend, e.Kind(seq.Expr))
}

const flatfileSrc = "class A\n  flatfile do\n    from 1, :foo\n    field :bar\n    pattern 2\n  end\nend\n"

const flatfileTree = `{"kind": %q, "span": [0, 77],
	"name": {"kind": "const", "span": [6, 7], "name": "A"},
	"body": [{"kind": "send", "span": [10, 73], "fun": "flatfile",
		"block": {"kind": "block", "span": [19, 73], "body": {"kind": "seq", "span": [26, 67],
			"stats": [
				{"kind": "send", "span": [26, 38], "fun": "from", "args": [
					{"kind": "literal", "span": [31, 32], "lit": "int", "value": 1},
					{"kind": "literal", "span": [34, 38], "lit": "symbol", "value": "foo"}]},
				{"kind": "send", "span": [43, 53], "fun": "field", "args": [
					{"kind": "literal", "span": [49, 53], "lit": "symbol", "value": "bar"}]}],
			"expr": {"kind": "send", "span": [58, 67], "fun": "pattern", "args": [
				{"kind": "literal", "span": [66, 67], "lit": "int", "value": 2}]}}}}]}`

func TestFlatfileFieldsGetUntypedAccessors(t *testing.T) {
	gs := global.New()
	tree := parse(t, gs, flatfileSrc, fmt.Sprintf(flatfileTree, "class"))
	bag := run(gs, tree)
	require.Equal(t, 0, bag.Len())

	e := tree.Exprs
	body := classBody(t, tree)
	require.Len(t, body, 5, "flatfile block plus two accessors per named field")
	assert.Equal(t, ast.ExprSend, e.Kind(body[0]))

	var got []string
	for _, id := range body[1:] {
		def, ok := e.MethodDef(id)
		require.True(t, ok)
		assert.True(t, def.Synthesized)
		require.NotNil(t, def.Sig)
		assert.Equal(t, "T.untyped", def.Sig.Returns)
		assert.Equal(t, ast.ExprLiteral, e.Kind(def.Body))
		got = append(got, gs.Names.Text(def.Name))
	}
	assert.Equal(t, []string{"foo", "foo=", "bar", "bar="}, got)

	setter, _ := e.MethodDef(body[2])
	require.Len(t, setter.Params, 1)
	assert.Equal(t, names.Arg0, setter.Params[0].Name)
	assert.Equal(t, "T.untyped", setter.Sig.Params["arg0"])
	assert.Equal(t, "from 1, :foo", setter.NameLoc.Source(gs.Files))

	origins := RegistryOf(gs).Origins(setter.Name)
	require.Len(t, origins, 1)
	assert.Equal(t, PassFlatfile, origins[0].Pass)
	assert.Equal(t, "foo", gs.Names.Text(origins[0].From))
}

func TestFlatfileInModuleIsIgnored(t *testing.T) {
	gs := global.New()
	tree := parse(t, gs, flatfileSrc, fmt.Sprintf(flatfileTree, "module"))
	run(gs, tree)
	assert.Len(t, classBody(t, tree), 1)
}
