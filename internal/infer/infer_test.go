package infer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbcheck/internal/ast"
	"rbcheck/internal/cfg"
	"rbcheck/internal/diag"
	"rbcheck/internal/global"
	"rbcheck/internal/namer"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

const sp = `"span": [0, 1]`

func lit(kind string, value any) string {
	if value == nil {
		return fmt.Sprintf(`{"kind": "literal", %s, "lit": %q}`, sp, kind)
	}
	return fmt.Sprintf(`{"kind": "literal", %s, "lit": %q, "value": %#v}`, sp, kind, value)
}

func local(name string) string {
	return fmt.Sprintf(`{"kind": "local", %s, "name": %q}`, sp, name)
}

func cnst(name string) string {
	return fmt.Sprintf(`{"kind": "const", %s, "name": %q}`, sp, name)
}

func assign(name, rhs string) string {
	return fmt.Sprintf(`{"kind": "assign", %s, "lhs": %s, "rhs": %s}`, sp, local(name), rhs)
}

func send(recv, fun string, args ...string) string {
	s := fmt.Sprintf(`{"kind": "send", %s, "fun": %q, "args": [%s]`, sp, fun, strings.Join(args, ", "))
	if recv != "" {
		s += `, "recv": ` + recv
	}
	return s + "}"
}

func ifx(cond, then, els string) string {
	return fmt.Sprintf(`{"kind": "if", %s, "cond": %s, "then": %s, "else": %s}`, sp, cond, then, els)
}

func while(cond, body string) string {
	return fmt.Sprintf(`{"kind": "while", %s, "cond": %s, "body": %s}`, sp, cond, body)
}

func seq(stats ...string) string {
	last := stats[len(stats)-1]
	return fmt.Sprintf(`{"kind": "seq", %s, "stats": [%s], "expr": %s}`, sp, strings.Join(stats[:len(stats)-1], ", "), last)
}

func cast(kind, value, typ string) string {
	s := fmt.Sprintf(`{"kind": "cast", %s, "cast": %q, "value": %s`, sp, kind, value)
	if typ != "" {
		s += `, "type": ` + typ
	}
	return s + "}"
}

// method describes a def; returns is the sig's result type, empty for no sig.
type method struct {
	name    string
	self    bool
	params  []string
	returns string
	body    string
}

func (m method) json() string {
	ps := make([]string, len(m.params))
	for i, p := range m.params {
		ps[i] = fmt.Sprintf(`{"kind": "req", "name": %q, %s}`, p, sp)
	}
	s := fmt.Sprintf(`{"kind": "def", %s, "name": %q, "self": %t, "params": [%s]`, sp, m.name, m.self, strings.Join(ps, ", "))
	if m.body != "" {
		s += `, "body": ` + m.body
	}
	if m.returns != "" {
		s += fmt.Sprintf(`, "sig": {"returns": %q}`, m.returns)
	}
	return s + "}"
}

func class(name string, defs ...method) string {
	body := make([]string, len(defs))
	for i, d := range defs {
		body[i] = d.json()
	}
	return fmt.Sprintf(`{"kind": "class", %s, "name": %s, "body": [%s]}`, sp, cnst(name), strings.Join(body, ", "))
}

type fixture struct {
	gs   *global.GlobalState
	tree *ast.Tree
	bag  *diag.Bag
}

func prepare(t *testing.T, root string) *fixture {
	t.Helper()
	gs := global.New()
	f := &fixture{gs: gs, bag: diag.NewBag(0)}
	func() {
		defer gs.UnfreezeAll().Release()
		file := gs.Files.Add("t.rb", []byte("0123456789"), 0)
		tree, err := ast.Decode(gs.Names, file, 10, []byte(root))
		require.NoError(t, err)
		f.tree = tree
	}()
	namer.Run(gs, []*ast.Tree{f.tree}, diag.NopReporter{})
	return f
}

// infer builds and types the method called name.
func (f *fixture) infer(t *testing.T, name string, strict source.StrictLevel) *Result {
	t.Helper()
	for _, id := range f.tree.MethodDefs() {
		md, _ := f.tree.Exprs.MethodDef(id)
		if f.gs.Names.Text(md.Name) != name {
			continue
		}
		c := cfg.Build(context.Background(), f.gs, f.tree, id, cfg.Options{})
		return Run(context.Background(), f.gs, c, Options{Reporter: diag.BagReporter{Bag: f.bag}, Strictness: strict})
	}
	t.Fatalf("no method %s", name)
	return nil
}

func inferBody(t *testing.T, params []string, body string) (*fixture, *Result) {
	t.Helper()
	f := prepare(t, method{name: "foo", params: params, body: body}.json())
	return f, f.infer(t, "foo", source.StrictTrue)
}

func messages(bag *diag.Bag, code diag.Code) []string {
	var out []string
	for _, d := range bag.Items() {
		if d.Code == code {
			out = append(out, d.Message)
		}
	}
	return out
}

func TestJoin(t *testing.T) {
	i, s := Instance(symbols.Integer), Instance(symbols.String)
	assert.Equal(t, i, Join(Bottom, i))
	assert.Equal(t, i, Join(i, Bottom))
	assert.Equal(t, i, Join(i, i))
	assert.Equal(t, Untyped, Join(i, s))
	assert.Equal(t, Untyped, Join(Untyped, Bottom))
	assert.Equal(t, Untyped, Join(i, ClassOf(symbols.Integer)))
}

func TestLiteralReturnType(t *testing.T) {
	f, res := inferBody(t, nil, lit("int", 1))
	assert.Equal(t, Instance(symbols.Integer), res.Return)
	assert.Equal(t, "Integer", res.Return.Show(f.gs))
	assert.Zero(t, f.bag.Len())
}

func TestBranchesJoin(t *testing.T) {
	_, same := inferBody(t, []string{"a"}, ifx(local("a"), lit("int", 1), lit("int", 2)))
	assert.Equal(t, Instance(symbols.Integer), same.Return)

	_, mixed := inferBody(t, []string{"a"}, ifx(local("a"), lit("int", 1), lit("string", "s")))
	assert.Equal(t, Untyped, mixed.Return)
}

func TestLoopReachesFixpoint(t *testing.T) {
	body := seq(
		assign("x", lit("int", 1)),
		while(local("c"), assign("x", lit("string", "s"))),
		local("x"),
	)
	_, res := inferBody(t, []string{"c"}, body)
	assert.Equal(t, Untyped, res.Return)
	assert.Greater(t, res.Iterations, 1)
}

func TestAbsurdReachable(t *testing.T) {
	f, _ := inferBody(t, nil, send(cnst("T"), "absurd", lit("int", 1)))
	assert.Equal(t,
		[]string{"Control flow could reach `T.absurd` because the type `Integer` wasn't handled"},
		messages(f.bag, diag.InferNotExhaustive))
}

func TestAbsurdOnBottomAndUntypedIsSilent(t *testing.T) {
	f, _ := inferBody(t, nil, send(cnst("T"), "absurd", cast("must", lit("nil", nil), "")))
	assert.Zero(t, f.bag.Count(diag.InferNotExhaustive))

	g, _ := inferBody(t, []string{"a"}, send(cnst("T"), "absurd", local("a")))
	assert.Zero(t, g.bag.Count(diag.InferNotExhaustive))
}

func TestCasts(t *testing.T) {
	_, let := inferBody(t, []string{"a"}, cast("let", local("a"), cnst("String")))
	assert.Equal(t, Instance(symbols.String), let.Return)

	_, unsafe := inferBody(t, nil, cast("unsafe", lit("int", 1), ""))
	assert.Equal(t, Untyped, unsafe.Return)

	_, must := inferBody(t, nil, cast("must", lit("int", 1), ""))
	assert.Equal(t, Instance(symbols.Integer), must.Return)
}

func TestSignatureResultFlowsToCaller(t *testing.T) {
	f := prepare(t, class("A",
		method{name: "size", returns: "Integer", body: lit("int", 1)},
		method{name: "go", body: send(send(cnst("A"), "new"), "size")},
	))
	res := f.infer(t, "go", source.StrictTrue)
	assert.Equal(t, "Integer", res.Return.Show(f.gs))
	assert.Zero(t, f.bag.Len())
}

func TestMethodNotFoundOnUserClass(t *testing.T) {
	f := prepare(t, class("A",
		method{name: "go", body: send(send(cnst("A"), "new"), "missing")},
	))
	f.infer(t, "go", source.StrictTrue)
	assert.Equal(t, []string{"Method `missing` does not exist on `A`"}, messages(f.bag, diag.InferMethodNotFound))
}

func TestImplicitSelfSendsAreNotChecked(t *testing.T) {
	f := prepare(t, class("A",
		method{name: "go", body: send("", "puts", lit("int", 1))},
	))
	res := f.infer(t, "go", source.StrictTrue)
	assert.Zero(t, f.bag.Len())
	assert.Equal(t, Untyped, res.Return)
}

func TestArgumentCount(t *testing.T) {
	f := prepare(t, class("A",
		method{name: "one", params: []string{"x"}, body: local("x")},
		method{name: "go", body: seq(
			send(send(cnst("A"), "new"), "one"),
			send(send(cnst("A"), "new"), "one", lit("int", 1), lit("int", 2)),
		)},
	))
	f.infer(t, "go", source.StrictTrue)
	assert.Equal(t, []string{
		"Not enough arguments provided for method `A#one`. Expected: `1`, got: `0`",
		"Too many arguments provided for method `A#one`. Expected: `1`, got: `2`",
	}, messages(f.bag, diag.InferArgCount))
}

func TestSingletonSelf(t *testing.T) {
	f := prepare(t, class("A",
		method{name: "make", self: true, body: `{"kind": "self", "span": [0, 1]}`},
	))
	res := f.infer(t, "make", source.StrictTrue)
	assert.Equal(t, "T.class_of(A)", res.Return.Show(f.gs))
}

func TestUntypedReportedOnlyWhenStrong(t *testing.T) {
	retry := `{"kind": "retry", "span": [0, 1]}`
	for _, tc := range []struct {
		strict source.StrictLevel
		want   int
	}{
		{source.StrictTrue, 0},
		{source.StrictStrict, 0},
		{source.StrictStrong, 1},
	} {
		t.Run(tc.strict.String(), func(t *testing.T) {
			f := prepare(t, method{name: "foo", body: retry}.json())
			f.infer(t, "foo", tc.strict)
			assert.Equal(t, tc.want, f.bag.Count(diag.InferUntypedValue))
		})
	}
}

func TestTypesRecordedPerBinding(t *testing.T) {
	_, res := inferBody(t, nil, lit("string", "s"))
	c := res.CFG
	for _, id := range c.ForwardsTopoSort {
		require.Len(t, res.Types[id], len(c.Blocks[id].Exprs))
	}
	for i := range c.Blocks {
		if c.Blocks[i].IsDead() {
			assert.Nil(t, res.Types[i])
		}
	}
	var found bool
	for _, id := range c.ForwardsTopoSort {
		for i, b := range c.Blocks[id].Exprs {
			if b.Value.Kind == cfg.InstrLiteral && b.Value.Literal.Sym == symbols.String {
				assert.Equal(t, Instance(symbols.String), res.TypeOf(id, i))
				found = true
			}
		}
	}
	assert.True(t, found)
}
