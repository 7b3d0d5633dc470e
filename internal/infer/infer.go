// Package infer walks a finalized CFG and assigns every binding a type
// from a small lattice. The walk only checks what the lattice can decide:
// reachable T.absurd, calls to missing methods of user classes, argument
// counts and, in strong files, untyped values.
package infer

import (
	"context"
	"fmt"
	"strconv"

	"rbcheck/internal/ast"
	"rbcheck/internal/cfg"
	"rbcheck/internal/diag"
	"rbcheck/internal/global"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
	"rbcheck/internal/trace"
)

// Options tune Run.
type Options struct {
	// Reporter receives inference diagnostics. Nil drops them.
	Reporter diag.Reporter
	// Strictness is the sigil of the file the method lives in.
	Strictness source.StrictLevel
}

// Result holds the types computed for one CFG.
type Result struct {
	CFG *cfg.CFG
	// Types is indexed by block ID, then by binding index. Dead blocks have none.
	Types [][]Type
	// Return joins every value the method returns.
	Return Type
	// Iterations counts fixpoint sweeps.
	Iterations int
}

// TypeOf returns the type bound by binding i of block id.
func (r *Result) TypeOf(id cfg.BlockID, i int) Type {
	if int(id) >= len(r.Types) || i >= len(r.Types[id]) {
		return Bottom
	}
	return r.Types[id][i]
}

// TypeAt returns the type of the innermost binding whose location covers loc.
func (r *Result) TypeAt(loc source.Loc) (Type, bool) {
	best := -1
	var bestID cfg.BlockID
	for _, id := range r.CFG.ForwardsTopoSort {
		for i, b := range r.CFG.Blocks[id].Exprs {
			if !b.Loc.Exists() || !b.Loc.Contains(loc) {
				continue
			}
			if best < 0 || b.Loc.Len() < r.CFG.Blocks[bestID].Exprs[best].Loc.Len() {
				best, bestID = i, id
			}
		}
	}
	if best < 0 {
		return Bottom, false
	}
	return r.TypeOf(bestID, best), true
}

type walker struct {
	gs     *global.GlobalState
	c      *cfg.CFG
	rep    diag.Reporter
	strict source.StrictLevel
	method symbols.SymbolRef
	self   Type
	// out is the state at the end of each block; nil until first visit.
	out [][]Type
}

// Run types c. It needs the global state the CFG was built against and
// does not mutate it.
func Run(ctx context.Context, gs *global.GlobalState, c *cfg.CFG, opts Options) *Result {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeMethod, "infer", trace.CurrentSpan(ctx).SpanID)
	rep := opts.Reporter
	if rep == nil {
		rep = diag.NopReporter{}
	}
	w := &walker{
		gs:     gs,
		c:      c,
		rep:    rep,
		strict: opts.Strictness,
		method: c.Symbol,
		self:   selfType(gs, c.Symbol),
		out:    make([][]Type, len(c.Blocks)),
	}
	res := &Result{CFG: c, Types: make([][]Type, len(c.Blocks))}

	// решётка высоты 3, так что хватает конечного числа проходов
	for changed := true; changed; {
		changed = false
		res.Iterations++
		for _, id := range c.ForwardsTopoSort {
			state := w.entryState(id)
			for i := range c.Blocks[id].Exprs {
				b := &c.Blocks[id].Exprs[i]
				state[b.Bind] = w.eval(b, state, false)
			}
			if !equalStates(w.out[id], state) {
				w.out[id] = state
				changed = true
			}
		}
	}

	res.Return = Bottom
	for _, id := range c.ForwardsTopoSort {
		state := w.entryState(id)
		types := make([]Type, len(c.Blocks[id].Exprs))
		for i := range c.Blocks[id].Exprs {
			b := &c.Blocks[id].Exprs[i]
			t := w.eval(b, state, true)
			state[b.Bind] = t
			types[i] = t
			if b.Value.Kind == cfg.InstrReturn {
				res.Return = Join(res.Return, state[b.Value.Return.What])
			}
		}
		res.Types[id] = types
	}

	span.WithExtra("iterations", strconv.Itoa(res.Iterations)).End(gs.ShowSymbol(c.Symbol))
	return res
}

// selfType is the type of self inside method.
func selfType(gs *global.GlobalState, method symbols.SymbolRef) Type {
	if !method.Exists() {
		return Untyped
	}
	owner := gs.Sym(method).Owner
	if attached := gs.Sym(owner).Attached; attached.Exists() {
		return ClassOf(attached)
	}
	return Instance(owner)
}

// entryState joins the states of the live predecessors of id.
func (w *walker) entryState(id cfg.BlockID) []Type {
	state := make([]Type, len(w.c.Locals))
	for _, pred := range w.c.Blocks[id].BackEdges {
		prev := w.out[pred]
		if prev == nil {
			continue
		}
		for i := range state {
			state[i] = Join(state[i], prev[i])
		}
	}
	return state
}

func equalStates(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// eval computes the type bound by b. Diagnostics are only reported when
// report is set, so each one fires once after the fixpoint is reached.
func (w *walker) eval(b *cfg.Binding, state []Type, report bool) Type {
	in := &b.Value
	switch in.Kind {
	case cfg.InstrIdent:
		return state[in.Ident.What]
	case cfg.InstrAlias:
		sym := w.gs.Sym(in.Alias.What)
		if sym.IsClassOrModule() {
			return ClassOf(in.Alias.What)
		}
		return Untyped
	case cfg.InstrSend:
		return w.send(b, state, report)
	case cfg.InstrReturn:
		return state[in.Return.What]
	case cfg.InstrBlockReturn:
		return state[in.BlockReturn.What]
	case cfg.InstrLoadSelf:
		if in.LoadSelf.Link == nil {
			return w.self
		}
		if in.LoadSelf.Fallback.Exists() {
			return state[in.LoadSelf.Fallback]
		}
		return Untyped
	case cfg.InstrLoadArg:
		args := w.gs.Sym(in.LoadArg.Method).Arguments
		if i := in.LoadArg.ArgIndex; i < len(args) && args[i].Type != "" {
			return typeFromSig(w.gs, args[i].Type)
		}
		return Untyped
	case cfg.InstrLiteral:
		return Instance(in.Literal.Sym)
	case cfg.InstrCast:
		return w.cast(in.Cast, state)
	case cfg.InstrTAbsurd:
		if t := state[in.TAbsurd.What]; report && !t.IsBottom() && !t.IsUntyped() {
			diag.ReportError(w.rep, diag.InferNotExhaustive, b.Loc,
				fmt.Sprintf("Control flow could reach `T.absurd` because the type `%s` wasn't handled", t.Show(w.gs))).
				Emit()
		}
		return Bottom
	case cfg.InstrSolveConstraint:
		return state[in.SolveConstraint.Send]
	case cfg.InstrNotSupported:
		if report && w.strict >= source.StrictStrong {
			diag.ReportError(w.rep, diag.InferUntypedValue, b.Loc,
				fmt.Sprintf("Value is `T.untyped` because `%s` is not supported", in.NotSupported.Why)).
				Emit()
		}
		return Untyped
	}
	return Untyped
}

func (w *walker) cast(c cfg.CastInstr, state []Type) Type {
	switch c.Kind {
	case ast.CastLet, ast.CastCast:
		if c.Type.Exists() {
			return Instance(c.Type)
		}
		return Untyped
	case ast.CastMust:
		t := state[c.Value]
		if t == Instance(symbols.NilClass) {
			return Bottom
		}
		return t
	}
	return Untyped
}

func (w *walker) send(b *cfg.Binding, state []Type, report bool) Type {
	s := &b.Value.Send
	switch s.Fun {
	case names.BuildArray:
		return Instance(symbols.Array)
	case names.BuildHash:
		return Instance(symbols.Hash)
	}
	recv := state[s.Recv]
	switch recv.Kind {
	case TypeBottom:
		return Bottom
	case TypeUntyped:
		if report && !s.IsPrivateOk && w.strict >= source.StrictStrong {
			diag.ReportError(w.rep, diag.InferUntypedValue, s.FunLoc,
				fmt.Sprintf("Call to method `%s` on `T.untyped`", w.gs.Show(s.Fun))).
				Emit()
		}
		return Untyped
	}

	method := Lookup(w.gs, recv, s.Fun)
	if !method.Exists() {
		if recv.Kind == TypeClassOf && s.Fun == names.New {
			return Instance(recv.Class)
		}
		if report && w.checkable(recv, s) {
			diag.ReportError(w.rep, diag.InferMethodNotFound, s.FunLoc,
				fmt.Sprintf("Method `%s` does not exist on `%s`", w.gs.Show(s.Fun), recv.Show(w.gs))).
				Emit()
		}
		return Untyped
	}
	m := w.gs.Sym(method)
	if report {
		w.checkArity(b, method, m)
	}
	if recv.Kind == TypeClassOf && s.Fun == names.New {
		return Instance(recv.Class)
	}
	if m.ResultType == "" {
		return Untyped
	}
	return typeFromSig(w.gs, m.ResultType)
}

// Lookup finds the method fun on values of type t. Class objects search
// the singleton classes of t.Class and its superclasses.
func Lookup(gs *global.GlobalState, t Type, fun names.NameRef) symbols.SymbolRef {
	if t.Kind == TypeInstance {
		return gs.Symbols.FindMemberTransitive(t.Class, fun)
	}
	if t.Kind != TypeClassOf {
		return symbols.NoSymbol
	}
	// синглтоны не наследуют друг друга, поэтому идём по суперклассам вручную
	for cur := t.Class; cur.Exists(); cur = gs.Sym(cur).Superclass {
		if single := gs.LookupSingletonClass(cur); single.Exists() {
			if m := gs.Symbols.FindMemberTransitive(single, fun); m.Exists() {
				return m
			}
		}
		if gs.Sym(cur).Kind == symbols.KindModule {
			break
		}
	}
	return symbols.NoSymbol
}

// checkable reports whether a missing method on t is worth an error: the
// receiver is an explicit user class whose ancestors all resolved.
func (w *walker) checkable(t Type, s *cfg.SendInstr) bool {
	if s.IsPrivateOk || int(t.Class) < symbols.WellKnownCount {
		return false
	}
	for _, anc := range w.gs.Symbols.Ancestors(t.Class) {
		if anc == symbols.StubModule || w.gs.Sym(anc).Superclass == symbols.StubModule {
			return false
		}
	}
	return true
}

func (w *walker) checkArity(b *cfg.Binding, ref symbols.SymbolRef, m *symbols.Symbol) {
	required, optional, repeated := 0, 0, false
	for _, a := range m.Arguments {
		switch {
		case a.IsKeyword(), a.IsBlock():
		case a.IsRepeated():
			repeated = true
		case a.IsDefault():
			optional++
		default:
			required++
		}
	}
	got := len(b.Value.Send.Args)
	name := w.gs.ShowSymbol(ref)
	switch {
	case got < required:
		diag.ReportError(w.rep, diag.InferArgCount, b.Loc,
			fmt.Sprintf("Not enough arguments provided for method `%s`. Expected: `%s`, got: `%d`",
				name, arity(required, optional, repeated), got)).
			WithNote(m.Loc(), fmt.Sprintf("`%s` defined here", w.gs.Show(m.Name))).
			Emit()
	case !repeated && got > required+optional:
		diag.ReportError(w.rep, diag.InferArgCount, b.Loc,
			fmt.Sprintf("Too many arguments provided for method `%s`. Expected: `%s`, got: `%d`",
				name, arity(required, optional, repeated), got)).
			WithNote(m.Loc(), fmt.Sprintf("`%s` defined here", w.gs.Show(m.Name))).
			Emit()
	}
}

func arity(required, optional int, repeated bool) string {
	switch {
	case repeated:
		return strconv.Itoa(required) + "+"
	case optional > 0:
		return fmt.Sprintf("%d..%d", required, required+optional)
	}
	return strconv.Itoa(required)
}
