package cfg

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fortio.org/safecast"

	"rbcheck/internal/ast"
	"rbcheck/internal/diag"
	"rbcheck/internal/enforce"
	"rbcheck/internal/global"
	"rbcheck/internal/metrics"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
	"rbcheck/internal/trace"
)

// Options tune Build.
type Options struct {
	// Reporter receives CFG diagnostics. Nil drops them.
	Reporter diag.Reporter
	// Simplify runs Simplify after finalization.
	Simplify bool
}

type fieldAlias struct {
	local LocalRef
	sym   symbols.SymbolRef
	loc   source.Loc
}

type builder struct {
	gs     *global.GlobalState
	nt     *names.Table
	e      *ast.Exprs
	rep    diag.Reporter
	method symbols.SymbolRef
	// owner is the class-like the method is defined on.
	owner symbols.SymbolRef

	cfg     *CFG
	locals  *locals
	aliases []fieldAlias
	aliasOf map[names.NameRef]LocalRef
	counts  [numInstrKinds]int

	// loops and rubyBlock belong to the innermost walk in progress; code
	// reopened after a jump inherits them.
	loops     int
	rubyBlock int
}

// Build lowers the method definition def of tree. The namer must have
// entered the method; user errors are reported and degrade the affected
// value to Unanalyzable, so Build always returns a graph.
func Build(ctx context.Context, gs *global.GlobalState, tree *ast.Tree, def ast.ExprID, opts Options) *CFG {
	md, ok := tree.Exprs.MethodDef(def)
	enforce.That(ok, "cfg.Build: expression %d is not a method definition", def)
	enforce.That(md.Symbol.Exists(), "cfg.Build: method %s has no symbol", gs.Show(md.Name))

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeMethod, "cfg_build", trace.CurrentSpan(ctx).SpanID)
	start := time.Now()

	rep := opts.Reporter
	if rep == nil {
		rep = diag.NopReporter{}
	}
	loc := tree.Exprs.Loc(def)
	b := &builder{
		gs:      gs,
		nt:      gs.Names,
		e:       tree.Exprs,
		rep:     rep,
		method:  md.Symbol,
		owner:   gs.Sym(md.Symbol).Owner,
		locals:  newLocals(),
		aliasOf: make(map[names.NameRef]LocalRef),
		cfg:     &CFG{Symbol: md.Symbol, File: tree.File, Loc: loc},
	}
	params := append([]ast.Param(nil), md.Params...)

	entry := b.fresh(0, 0)
	dead := b.fresh(0, 0)
	dead.Exit = BlockExit{Cond: LocalUnconditional, Then: DeadBlock, Else: DeadBlock}
	first := b.fresh(0, 0)

	ret := b.locals.temp(names.ReturnMethodTemp)
	last := b.walk(walkCtx{target: ret}, md.Body, first)
	if last.ID != DeadBlock {
		end := loc.CopyEndWithZeroLength()
		last = b.emit(last, LocalFinalReturn, end, Instr{Kind: InstrReturn, Return: ReturnInstr{What: ret}})
		b.jump(last, dead, end)
	}
	b.prologue(entry, first, params, loc)

	c := b.cfg
	c.Locals = b.locals.vars
	finalize(c)
	if opts.Simplify {
		Simplify(c)
	}

	metrics.CFGBuilds.Inc()
	metrics.CFGBlocks.Observe(float64(len(c.Blocks)))
	for k, n := range b.counts {
		if n > 0 {
			metrics.CFGInstructions.WithLabelValues(InstrKind(k).String()).Add(float64(n)) // #nosec G115 -- k < numInstrKinds
		}
	}
	metrics.CFGBuildDuration.Observe(time.Since(start).Seconds())
	span.WithExtra("blocks", strconv.Itoa(len(c.Blocks))).End(gs.ShowSymbol(md.Symbol))
	return c
}

// prologue fills the entry block: self, arguments, field aliases and an
// explicit nil for every local that some path reads before writing.
func (b *builder) prologue(entry, first *BasicBlock, params []ast.Param, loc source.Loc) {
	at := loc.CopyWithZeroLength()
	defined := localSet{}
	entry.Exprs = append(entry.Exprs, Binding{Bind: LocalSelf, Loc: at, Value: Instr{Kind: InstrLoadSelf}})
	defined.add(LocalSelf)

	args := b.gs.Sym(b.method).Arguments
	for i, p := range params {
		enforce.That(i < len(args), "cfg: %s has %d arguments, parameter %d requested",
			b.gs.ShowSymbol(b.method), len(args), i)
		ref := b.local(p.Name, 0)
		entry.Exprs = append(entry.Exprs, Binding{Bind: ref, Loc: p.Loc, Value: Instr{
			Kind:    InstrLoadArg,
			LoadArg: LoadArgInstr{Method: b.method, ArgIndex: i},
		}})
		defined.add(ref)
	}
	for _, a := range b.aliases {
		entry.Exprs = append(entry.Exprs, Binding{Bind: a.local, Loc: a.loc, Value: Instr{
			Kind:  InstrAlias,
			Alias: AliasInstr{What: a.sym},
		}})
		defined.add(a.local)
	}

	b.cfg.Locals = b.locals.vars
	in, live := mayDefined(b.cfg.Blocks, first.ID, defined)
	missing := localSet{}
	undefinedUses(b.cfg.Blocks, in, live, func(_ *BasicBlock, ref LocalRef) {
		if !b.cfg.IsTemp(b.nt, ref) {
			missing.add(ref)
		}
	})
	for _, ref := range missing.sorted() {
		entry.Exprs = append(entry.Exprs, Binding{Bind: ref, Loc: at, Value: nilLiteral()})
	}
	for i := range entry.Exprs {
		b.counts[entry.Exprs[i].Value.Kind]++
	}
	b.jump(entry, first, at)
}

func (b *builder) fresh(loops, rubyBlock int) *BasicBlock {
	n, err := safecast.Conv[int32](len(b.cfg.Blocks))
	if err != nil {
		panic(fmt.Errorf("cfg blocks overflow: %w", err))
	}
	bb := &BasicBlock{
		ID:          BlockID(n),
		Exit:        BlockExit{Cond: LocalUnconditional, Then: DeadBlock, Else: DeadBlock},
		OuterLoops:  loops,
		RubyBlockID: rubyBlock,
	}
	if rubyBlock != 0 {
		bb.Flags |= FlagBlockBody
	}
	b.cfg.Blocks = append(b.cfg.Blocks, bb)
	return bb
}

// emit appends a binding to cur and returns the block that now holds it.
// Code after a return lands in a fresh unreachable block; a second write
// to the same local starts a new block.
func (b *builder) emit(cur *BasicBlock, bind LocalRef, loc source.Loc, in Instr) *BasicBlock {
	if cur.ID == DeadBlock {
		cur = b.fresh(b.loops, b.rubyBlock)
	}
	if cur.writes(bind) {
		next := b.fresh(cur.OuterLoops, cur.RubyBlockID)
		b.jump(cur, next, loc)
		cur = next
	}
	cur.Exprs = append(cur.Exprs, Binding{Bind: bind, Loc: loc, Value: in})
	b.counts[in.Kind]++
	if in.Kind == InstrSend {
		metrics.CFGSendArgs.Observe(float64(len(in.Send.Args)))
	}
	return cur
}

func (b *builder) jump(from, to *BasicBlock, loc source.Loc) {
	if from.ID == DeadBlock {
		return
	}
	from.Exit = BlockExit{Cond: LocalUnconditional, Then: to.ID, Else: to.ID, Loc: loc}
}

func (b *builder) branch(from *BasicBlock, cond LocalRef, then, els *BasicBlock, loc source.Loc) {
	if from.ID == DeadBlock {
		return
	}
	from.Exit = BlockExit{Cond: cond, Then: then.ID, Else: els.ID, Loc: loc}
}

func (b *builder) dead() *BasicBlock { return b.cfg.Blocks[DeadBlock] }

func (b *builder) local(name names.NameRef, unique uint32) LocalRef {
	return b.locals.enter(LocalVar{Name: name, Unique: unique})
}

func (b *builder) temp() LocalRef { return b.locals.temp(names.StatTemp) }

// field returns the local standing for an instance, class or global
// variable. The first reference binds it to the field symbol in the
// prologue. Reads of unknown fields fail; writes create a plain local.
func (b *builder) field(kind ast.IdentKind, name names.NameRef, loc source.Loc, write bool) (LocalRef, bool) {
	if ref, ok := b.aliasOf[name]; ok {
		return ref, true
	}
	sym := b.lookupField(kind, name)
	if !sym.Exists() && !write {
		return LocalNone, false
	}
	ref := b.local(name, 0)
	b.aliasOf[name] = ref
	if sym.Exists() {
		b.aliases = append(b.aliases, fieldAlias{local: ref, sym: sym, loc: loc})
	}
	return ref, true
}

func (b *builder) lookupField(kind ast.IdentKind, name names.NameRef) symbols.SymbolRef {
	table := b.gs.Symbols
	var sym symbols.SymbolRef
	switch kind {
	case ast.IdentGlobal:
		sym = table.FindMember(symbols.Root, name)
	case ast.IdentClass:
		owner := b.owner
		if attached := table.Get(owner).Attached; attached.Exists() {
			owner = attached
		}
		sym = table.FindMemberTransitive(owner, name)
	default:
		sym = table.FindMemberTransitive(b.owner, name)
	}
	if sym.Exists() && table.Get(sym).Kind != symbols.KindField {
		return symbols.NoSymbol
	}
	return sym
}

func (b *builder) undeclared(loc source.Loc, name names.NameRef) {
	diag.ReportError(b.rep, diag.CFGUndeclaredVariable, loc,
		fmt.Sprintf("Use of undeclared variable `%s`", b.nt.Show(name))).Emit()
}

func nilLiteral() Instr {
	return Instr{Kind: InstrLiteral, Literal: LiteralInstr{Kind: ast.LitNil, Sym: symbols.NilClass}}
}

func unanalyzable() Instr { return Instr{Kind: InstrUnanalyzable} }

func ident(ref LocalRef) Instr { return Instr{Kind: InstrIdent, Ident: IdentInstr{What: ref}} }
