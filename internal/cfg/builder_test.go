package cfg

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"rbcheck/internal/ast"
	"rbcheck/internal/diag"
	"rbcheck/internal/enforce"
	"rbcheck/internal/global"
	"rbcheck/internal/namer"
	"rbcheck/internal/names"
	"rbcheck/internal/symbols"
)

const sp = `"span": [0, 1]`

func lit(kind string, value any) string {
	if value == nil {
		return fmt.Sprintf(`{"kind": "literal", %s, "lit": %q}`, sp, kind)
	}
	return fmt.Sprintf(`{"kind": "literal", %s, "lit": %q, "value": %#v}`, sp, kind, value)
}

func intLit(n int) string { return lit("int", n) }

func local(name string) string {
	return fmt.Sprintf(`{"kind": "local", %s, "name": %q}`, sp, name)
}

func identNode(kind, name string) string {
	return fmt.Sprintf(`{"kind": "ident", %s, "ident": %q, "name": %q}`, sp, kind, name)
}

func cnst(name string) string {
	return fmt.Sprintf(`{"kind": "const", %s, "name": %q}`, sp, name)
}

func assign(lhs, rhs string) string {
	return fmt.Sprintf(`{"kind": "assign", %s, "lhs": %s, "rhs": %s}`, sp, lhs, rhs)
}

func send(recv, fun string, args ...string) string {
	s := fmt.Sprintf(`{"kind": "send", %s, "fun": %q, "args": [%s]`, sp, fun, strings.Join(args, ", "))
	if recv != "" {
		s += `, "recv": ` + recv
	}
	return s + "}"
}

func sendBlock(recv, fun string, params []string, body string) string {
	ps := make([]string, len(params))
	for i, p := range params {
		ps[i] = fmt.Sprintf(`{"kind": "req", "name": %q, %s}`, p, sp)
	}
	blk := fmt.Sprintf(`{"kind": "block", %s, "params": [%s], "body": %s}`, sp, strings.Join(ps, ", "), body)
	s := fmt.Sprintf(`{"kind": "send", %s, "fun": %q, "args": [], "block": %s`, sp, fun, blk)
	if recv != "" {
		s += `, "recv": ` + recv
	}
	return s + "}"
}

func ifx(cond, then, els string) string {
	s := fmt.Sprintf(`{"kind": "if", %s, "cond": %s`, sp, cond)
	if then != "" {
		s += `, "then": ` + then
	}
	if els != "" {
		s += `, "else": ` + els
	}
	return s + "}"
}

func while(cond, body string) string {
	return fmt.Sprintf(`{"kind": "while", %s, "cond": %s, "body": %s}`, sp, cond, body)
}

func jump(kind, value string) string {
	if value == "" {
		return fmt.Sprintf(`{"kind": %q, %s}`, kind, sp)
	}
	return fmt.Sprintf(`{"kind": %q, %s, "value": %s}`, kind, sp, value)
}

func seq(stats ...string) string {
	last := stats[len(stats)-1]
	return fmt.Sprintf(`{"kind": "seq", %s, "stats": [%s], "expr": %s}`, sp, strings.Join(stats[:len(stats)-1], ", "), last)
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

func class(name string, body ...string) string {
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
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		f.tree = tree
	}()
	namer.Run(gs, []*ast.Tree{f.tree}, diag.NopReporter{})
	return f
}

// method builds the CFG of the method called name.
func (f *fixture) method(t *testing.T, name string, opts Options) *CFG {
	t.Helper()
	if opts.Reporter == nil {
		opts.Reporter = diag.BagReporter{Bag: f.bag}
	}
	for _, id := range f.tree.MethodDefs() {
		md, _ := f.tree.Exprs.MethodDef(id)
		if f.gs.Names.Text(md.Name) == name {
			return Build(context.Background(), f.gs, f.tree, id, opts)
		}
	}
	t.Fatalf("no method %s", name)
	return nil
}

func buildDef(t *testing.T, params []string, body string) (*fixture, *CFG) {
	t.Helper()
	f := prepare(t, def("foo", params, body))
	c := f.method(t, "foo", Options{})
	if err := Validate(c); err != nil {
		t.Fatalf("Validate: %v\n%s", err, c.String(f.gs))
	}
	return f, c
}

func findBindings(c *CFG, kind InstrKind) []*Binding {
	var out []*Binding
	for _, bb := range c.Blocks {
		for i := range bb.Exprs {
			if bb.Exprs[i].Value.Kind == kind {
				out = append(out, &bb.Exprs[i])
			}
		}
	}
	return out
}

func findSend(t *testing.T, f *fixture, c *CFG, fun string) *Binding {
	t.Helper()
	for _, b := range findBindings(c, InstrSend) {
		if f.gs.Names.Text(b.Value.Send.Fun) == fun {
			return b
		}
	}
	t.Fatalf("no send %s in\n%s", fun, c.String(f.gs))
	return nil
}

func localNamed(t *testing.T, f *fixture, c *CFG, name string) LocalRef {
	t.Helper()
	ref, ok := f.gs.Names.LookupUTF8(name)
	if !ok {
		t.Fatalf("name %s not interned", name)
	}
	l, ok := c.LookupLocal(ref, 0)
	if !ok {
		t.Fatalf("no local %s", name)
	}
	return l
}

func TestZeroArgSend(t *testing.T) {
	f, c := buildDef(t, nil, send("", "bar"))
	s := findSend(t, f, c, "bar").Value.Send
	if s.Args == nil || len(s.Args) != 0 || len(s.ArgLocs) != 0 {
		t.Fatalf("args = %v, want empty", s.Args)
	}
	if s.Link != nil {
		t.Fatalf("zero-arg send without block has a link")
	}
	if !s.IsPrivateOk {
		t.Fatalf("send without receiver must allow private calls")
	}
	if got := c.Local(s.Recv); got.Name != names.StatTemp {
		t.Fatalf("receiver temp = %v", got)
	}
}

func TestPrologue(t *testing.T) {
	f, c := buildDef(t, []string{"a", "b"}, local("b"))
	entry := c.Entry()
	if len(entry.Exprs) != 3 {
		t.Fatalf("entry has %d bindings:\n%s", len(entry.Exprs), c.String(f.gs))
	}
	if b := entry.Exprs[0]; b.Bind != LocalSelf || b.Value.Kind != InstrLoadSelf || b.Value.LoadSelf.Link != nil {
		t.Fatalf("entry[0] = %s", b.Value.Show(f.gs, c))
	}
	for i, name := range []string{"a", "b"} {
		b := entry.Exprs[i+1]
		if b.Value.Kind != InstrLoadArg || b.Value.LoadArg.ArgIndex != i || b.Bind != localNamed(t, f, c, name) {
			t.Fatalf("entry[%d] = %s", i+1, b.Value.Show(f.gs, c))
		}
	}
	if entry.Exit.IsConditional() || entry.Exit.Then == DeadBlock {
		t.Fatalf("entry exit = %+v", entry.Exit)
	}
	if len(entry.BackEdges) != 0 {
		t.Fatalf("entry has predecessors %v", entry.BackEdges)
	}
	ret := findBindings(c, InstrReturn)
	if len(ret) != 1 || ret[0].Bind != LocalFinalReturn {
		t.Fatalf("want one final return, got %d", len(ret))
	}
	if got := c.Local(ret[0].Value.Return.What).Name; got != names.ReturnMethodTemp {
		t.Fatalf("return reads %s", f.gs.Show(got))
	}
}

func TestLoadArgPastSymbolArgumentsFaults(t *testing.T) {
	f := prepare(t, def("foo", []string{"a", "b"}, local("a")))
	id := f.tree.MethodDefs()[0]
	md, _ := f.tree.Exprs.MethodDef(id)
	// символ знает меньше аргументов, чем дерево
	sym := f.gs.Sym(md.Symbol)
	sym.Arguments = sym.Arguments[:1]

	defer func() {
		r := recover()
		fault, ok := enforce.AsFault(r)
		if !ok {
			t.Fatalf("expected *enforce.Fault, got %T", r)
		}
		if !strings.Contains(fault.Msg, "Object#foo has 1 arguments, parameter 1 requested") {
			t.Fatalf("unexpected message %q", fault.Msg)
		}
	}()
	Build(context.Background(), f.gs, f.tree, id, Options{Reporter: diag.NopReporter{}})
	t.Fatal("Build did not fault")
}

func TestUndeclaredVariableReportedOnce(t *testing.T) {
	f, c := buildDef(t, nil, identNode("local", "y"))
	if n := f.bag.Count(diag.CFGUndeclaredVariable); n != 1 {
		t.Fatalf("got %d undeclared variable errors, want 1", n)
	}
	if n := len(findBindings(c, InstrUnanalyzable)); n != 1 {
		t.Fatalf("got %d unanalyzable bindings, want 1", n)
	}
	if msg := f.bag.Items()[0].Message; msg != "Use of undeclared variable `y`" {
		t.Fatalf("message = %q", msg)
	}
}

func TestImplicitNilForUnassignedLocal(t *testing.T) {
	f, c := buildDef(t, nil, local("x"))
	x := localNamed(t, f, c, "x")
	var found bool
	for _, b := range c.Entry().Exprs {
		if b.Bind == x {
			found = b.Value.Kind == InstrLiteral && b.Value.Literal.Kind == ast.LitNil
		}
	}
	if !found {
		t.Fatalf("entry does not define x as nil:\n%s", c.String(f.gs))
	}
	if f.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", f.bag.Items())
	}
}

func TestAssignedInOneBranchNeedsNoNil(t *testing.T) {
	body := seq(
		ifx(local("c"), assign(local("x"), intLit(1)), ""),
		local("x"),
	)
	f, c := buildDef(t, []string{"c"}, body)
	x := localNamed(t, f, c, "x")
	for _, b := range c.Entry().Exprs {
		if b.Bind == x {
			t.Fatalf("x is defined on some path and must not be nil-initialized")
		}
	}
}

func TestSecondWriteStartsNewBlock(t *testing.T) {
	body := seq(
		assign(local("x"), intLit(1)),
		assign(local("x"), intLit(2)),
		local("x"),
	)
	f, c := buildDef(t, nil, body)
	x := localNamed(t, f, c, "x")
	var blocks []BlockID
	for _, bb := range c.Blocks {
		for _, b := range bb.Exprs {
			if b.Bind == x {
				blocks = append(blocks, bb.ID)
			}
		}
	}
	if len(blocks) != 2 || blocks[0] == blocks[1] {
		t.Fatalf("writes of x in blocks %v:\n%s", blocks, c.String(f.gs))
	}
}

func TestIfShape(t *testing.T) {
	f, c := buildDef(t, []string{"c"}, ifx(local("c"), intLit(1), intLit(2)))
	var branch *BasicBlock
	for _, bb := range c.Blocks {
		if bb.Exit.IsConditional() {
			if branch != nil {
				t.Fatalf("two conditional exits")
			}
			branch = bb
		}
	}
	if branch == nil {
		t.Fatalf("no branch:\n%s", c.String(f.gs))
	}
	if branch.Exit.Then == branch.Exit.Else {
		t.Fatalf("branch targets coincide")
	}
	thenBB, elseBB := c.Block(branch.Exit.Then), c.Block(branch.Exit.Else)
	if thenBB.Exit.Then != elseBB.Exit.Then {
		t.Fatalf("arms do not join: %d vs %d", thenBB.Exit.Then, elseBB.Exit.Then)
	}
	join := c.Block(thenBB.Exit.Then)
	if len(join.BackEdges) != 2 || join.BackEdges[0] > join.BackEdges[1] {
		t.Fatalf("join preds = %v", join.BackEdges)
	}
	if !slicesContain(branch.Args, branch.Exit.Cond) && !branch.writes(branch.Exit.Cond) {
		t.Fatalf("branch condition is neither read nor written in the block")
	}
}

func slicesContain(refs []LocalRef, ref LocalRef) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}

func TestIfWithBothArmsReturning(t *testing.T) {
	body := ifx(local("c"), jump("return", intLit(1)), jump("return", intLit(2)))
	_, c := buildDef(t, []string{"c"}, body)
	if n := len(findBindings(c, InstrReturn)); n != 2 {
		t.Fatalf("got %d returns, want 2 (the method end is unreachable)", n)
	}
	if n := len(c.Dead().BackEdges); n != 2 {
		t.Fatalf("dead sink preds = %v", c.Dead().BackEdges)
	}
}

func TestWhileLoop(t *testing.T) {
	body := while(local("c"), assign(local("x"), intLit(1)))
	f, c := buildDef(t, []string{"c"}, body)
	var headers []*BasicBlock
	for _, bb := range c.Blocks {
		if bb.Has(FlagLoopHeader) {
			headers = append(headers, bb)
		}
	}
	if len(headers) != 1 {
		t.Fatalf("got %d loop headers:\n%s", len(headers), c.String(f.gs))
	}
	h := headers[0]
	if h.OuterLoops != 1 || !h.Exit.IsConditional() {
		t.Fatalf("header = %+v", h)
	}
	body0 := c.Block(h.Exit.Then)
	if body0.OuterLoops != 1 || body0.Exit.Then != h.ID {
		t.Fatalf("loop body does not jump back to the header: %+v", body0.Exit)
	}
	exit := c.Block(h.Exit.Else)
	if exit.OuterLoops != 0 || len(exit.Exprs) != 1 || exit.Exprs[0].Value.Literal.Kind != ast.LitNil {
		t.Fatalf("loop exit must bind nil:\n%s", c.String(f.gs))
	}
}

func TestBreakWritesLoopResult(t *testing.T) {
	body := assign(local("r"), while(local("c"), jump("break", intLit(7))))
	f, c := buildDef(t, []string{"c"}, body)
	r := localNamed(t, f, c, "r")
	writes := 0
	for _, bb := range c.Blocks {
		for _, b := range bb.Exprs {
			if b.Bind == r && b.Value.Kind == InstrLiteral {
				writes++
			}
		}
	}
	// break 7 and the nil of a loop that ended normally
	if writes != 2 {
		t.Fatalf("r written by %d literals:\n%s", writes, c.String(f.gs))
	}
}

func TestSendWithBlock(t *testing.T) {
	body := sendBlock(local("xs"), "each", []string{"x"}, send("", "puts", local("x")))
	f, c := buildDef(t, []string{"xs"}, body)
	if c.MaxRubyBlockID != 1 {
		t.Fatalf("MaxRubyBlockID = %d", c.MaxRubyBlockID)
	}
	each := findSend(t, f, c, "each").Value.Send
	link := each.Link
	if link == nil || link.BlockID != 1 || len(link.Params) != 1 || f.gs.Names.Text(link.Params[0].Name) != "x" {
		t.Fatalf("link = %+v", link)
	}
	for _, kind := range []InstrKind{InstrLoadYieldParams, InstrBlockReturn, InstrSolveConstraint} {
		bs := findBindings(c, kind)
		if len(bs) != 1 || bs[0].Value.Link() != link {
			t.Fatalf("%s does not share the send's link", kind)
		}
	}
	var selfInBlock int
	for _, b := range findBindings(c, InstrLoadSelf) {
		if b.Value.LoadSelf.Link == link && b.Value.LoadSelf.Fallback == LocalSelf {
			selfInBlock++
		}
	}
	if selfInBlock != 1 {
		t.Fatalf("block does not rebind self")
	}
	var header *BasicBlock
	for _, bb := range c.Blocks {
		if bb.Exit.Cond == LocalBlockCall {
			header = bb
		}
	}
	if header == nil || !header.Has(FlagLoopHeader) || !header.Has(FlagBlockBody) {
		t.Fatalf("no block loop header:\n%s", c.String(f.gs))
	}
	if b := c.Block(header.Exit.Then); b.RubyBlockID != 1 || b.OuterLoops != 1 {
		t.Fatalf("block body = %+v", b)
	}
	solve := c.Block(header.Exit.Else)
	if solve.RubyBlockID != 0 || solve.Exprs[0].Value.Kind != InstrSolveConstraint {
		t.Fatalf("header else must solve the constraint:\n%s", c.String(f.gs))
	}
	if slicesContain(header.Args, LocalBlockCall) {
		t.Fatalf("<blockCall> must not be a block argument")
	}
}

func TestNextInsideBlockReturnsFromBlock(t *testing.T) {
	body := sendBlock("", "each", nil, jump("next", intLit(1)))
	_, c := buildDef(t, nil, body)
	if n := len(findBindings(c, InstrBlockReturn)); n != 1 {
		t.Fatalf("got %d block returns, want 1", n)
	}
}

func TestJumpsWithoutScope(t *testing.T) {
	f, c := buildDef(t, nil, seq(jump("break", ""), jump("next", intLit(1))))
	if n := f.bag.Count(diag.CFGNoNextScope); n != 2 {
		t.Fatalf("got %d no-scope errors, want 2", n)
	}
	if len(findBindings(c, InstrReturn)) != 1 {
		t.Fatalf("method must still return normally")
	}
}

func TestReturnOfReturn(t *testing.T) {
	f, _ := buildDef(t, nil, jump("return", jump("return", intLit(1))))
	if n := f.bag.Count(diag.CFGReturnExprVoid); n != 1 {
		t.Fatalf("got %d void return errors, want 1", n)
	}
}

func TestCodeAfterReturnIsDead(t *testing.T) {
	f, c := buildDef(t, nil, seq(jump("return", intLit(1)), intLit(2)))
	var dead int
	for _, bb := range c.Blocks {
		if bb.IsDead() {
			dead++
			for _, id := range c.ForwardsTopoSort {
				if id == bb.ID {
					t.Fatalf("dead bb%d in topo order", id)
				}
			}
		}
	}
	if dead == 0 {
		t.Fatalf("no dead block:\n%s", c.String(f.gs))
	}
}

func TestDeadCodeKeepsLoopAndBlockContext(t *testing.T) {
	loop := while(local("c"), seq(jump("break", ""), intLit(41)))
	blk := sendBlock("", "each", nil, seq(jump("next", ""), intLit(42)))
	f, c := buildDef(t, []string{"c"}, seq(loop, blk))

	holder := func(n int64) *BasicBlock {
		for _, bb := range c.Blocks {
			for _, b := range bb.Exprs {
				if b.Value.Kind == InstrLiteral && b.Value.Literal.Int == n {
					return bb
				}
			}
		}
		t.Fatalf("no literal %d in\n%s", n, c.String(f.gs))
		return nil
	}

	afterBreak := holder(41)
	if !afterBreak.IsDead() || afterBreak.OuterLoops != 1 || afterBreak.RubyBlockID != 0 {
		t.Fatalf("code after break = %+v", afterBreak)
	}
	afterNext := holder(42)
	if !afterNext.IsDead() || afterNext.OuterLoops != 1 || afterNext.RubyBlockID != 1 || !afterNext.Has(FlagBlockBody) {
		t.Fatalf("code after next = %+v", afterNext)
	}
}

func TestTAbsurd(t *testing.T) {
	f, c := buildDef(t, []string{"x"}, send(cnst("T"), "absurd", local("x")))
	abs := findBindings(c, InstrTAbsurd)
	if len(abs) != 1 {
		t.Fatalf("no TAbsurd:\n%s", c.String(f.gs))
	}
	for _, b := range findBindings(c, InstrSend) {
		if b.Value.Send.Fun == names.Absurd {
			t.Fatalf("T.absurd must not stay a send")
		}
	}
}

func TestCast(t *testing.T) {
	body := fmt.Sprintf(`{"kind": "cast", %s, "cast": "let", "value": %s, "type": %s}`, sp, intLit(1), cnst("Integer"))
	f, c := buildDef(t, nil, body)
	casts := findBindings(c, InstrCast)
	if len(casts) != 1 {
		t.Fatalf("no cast:\n%s", c.String(f.gs))
	}
	cast := casts[0].Value.Cast
	if cast.Kind != ast.CastLet || cast.Type != symbols.Integer {
		t.Fatalf("cast = %+v", cast)
	}
}

func TestArrayLiteralSendsToMagic(t *testing.T) {
	body := fmt.Sprintf(`{"kind": "array", %s, "elems": [%s, %s]}`, sp, intLit(1), intLit(2))
	f, c := buildDef(t, nil, body)
	s := findSend(t, f, c, "<build-array>").Value.Send
	if len(s.Args) != 2 {
		t.Fatalf("args = %v", s.Args)
	}
	if c.Local(s.Recv).Name != names.Magic {
		t.Fatalf("receiver = %s", c.Local(s.Recv).show(f.gs.Names))
	}
	aliases := findBindings(c, InstrAlias)
	if len(aliases) != 1 || aliases[0].Value.Alias.What != symbols.Magic {
		t.Fatalf("receiver is not aliased to <Magic>")
	}
}

func TestUnsupportedConstructs(t *testing.T) {
	rescue := fmt.Sprintf(`{"kind": "rescue", %s, "body": %s, "handlers": []}`, sp, intLit(1))
	cases := []struct {
		body string
		why  string
	}{
		{rescue, "rescue"},
		{jump("retry", ""), "retry"},
		{def("inner", nil, intLit(1)), "Nested method definition"},
	}
	for _, tc := range cases {
		t.Run(tc.why, func(t *testing.T) {
			f, c := buildDef(t, nil, tc.body)
			ns := findBindings(c, InstrNotSupported)
			if len(ns) != 1 || ns[0].Value.NotSupported.Why != tc.why {
				t.Fatalf("want NotSupported(%s):\n%s", tc.why, c.String(f.gs))
			}
		})
	}
}

func TestFieldsAreAliasedInPrologue(t *testing.T) {
	root := class("A",
		def("set", nil, assign(identNode("instance", "@x"), intLit(1))),
		def("get", nil, identNode("instance", "@x")),
		def("bad", nil, identNode("instance", "@y")),
	)
	f := prepare(t, root)
	c := f.method(t, "get", Options{})
	if err := Validate(c); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	x := localNamed(t, f, c, "@x")
	var alias *Binding
	for i, b := range c.Entry().Exprs {
		if b.Bind == x {
			alias = &c.Entry().Exprs[i]
		}
	}
	if alias == nil || alias.Value.Kind != InstrAlias || f.gs.Sym(alias.Value.Alias.What).Kind != symbols.KindField {
		t.Fatalf("@x is not aliased to its field:\n%s", c.String(f.gs))
	}

	f.method(t, "bad", Options{})
	if n := f.bag.Count(diag.CFGUndeclaredVariable); n != 1 {
		t.Fatalf("unknown field: got %d errors, want 1", n)
	}
}

func TestSimplifyOption(t *testing.T) {
	f := prepare(t, def("foo", nil, seq(jump("return", intLit(1)), intLit(2))))
	plain := f.method(t, "foo", Options{})
	simple := f.method(t, "foo", Options{Simplify: true})
	if len(simple.Blocks) >= len(plain.Blocks) {
		t.Fatalf("simplify kept %d of %d blocks", len(simple.Blocks), len(plain.Blocks))
	}
	if err := Validate(simple); err != nil {
		t.Fatalf("Validate: %v\n%s", err, simple.String(f.gs))
	}
	for _, bb := range simple.Blocks {
		if bb.IsDead() {
			t.Fatalf("bb%d survived simplification dead", bb.ID)
		}
	}
}
