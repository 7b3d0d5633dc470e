package cfg

import (
	"rbcheck/internal/ast"
	"rbcheck/internal/diag"
	"rbcheck/internal/enforce"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

// walkCtx is the lowering context of one expression.
type walkCtx struct {
	// target receives the value of the expression.
	target    LocalRef
	loops     int
	rubyBlock int
	link      *SendAndBlockLink
	// nextScope and breakScope are nil outside loops and blocks.
	nextScope   *BasicBlock
	breakScope  *BasicBlock
	breakTarget LocalRef
	// inBlock is set when next must return from a Ruby block rather
	// than restart a while loop.
	inBlock bool
}

func (c walkCtx) withTarget(t LocalRef) walkCtx {
	c.target = t
	return c
}

// walk lowers id into cur and returns the block control continues in,
// DeadBlock when it never continues.
func (b *builder) walk(c walkCtx, id ast.ExprID, cur *BasicBlock) *BasicBlock {
	outerLoops, outerBlock := b.loops, b.rubyBlock
	b.loops, b.rubyBlock = c.loops, c.rubyBlock
	defer func() { b.loops, b.rubyBlock = outerLoops, outerBlock }()

	e := b.e
	loc := e.Loc(id)
	switch kind := e.Kind(id); kind {
	case ast.ExprEmpty:
		return b.emit(cur, c.target, loc, nilLiteral())
	case ast.ExprLiteral:
		lit, _ := e.Literal(id)
		return b.emit(cur, c.target, loc, literal(lit))
	case ast.ExprLocal:
		l, _ := e.Local(id)
		return b.emit(cur, c.target, loc, ident(b.local(l.Name, l.Unique)))
	case ast.ExprUnresolvedIdent:
		return b.readIdent(c, id, cur)
	case ast.ExprSelf:
		return b.emit(cur, c.target, loc, ident(LocalSelf))
	case ast.ExprConstantLit:
		cl, _ := e.ConstantLit(id)
		if !cl.Symbol.Exists() {
			return b.emit(cur, c.target, loc, unanalyzable())
		}
		return b.emit(cur, c.target, loc, Instr{Kind: InstrAlias, Alias: AliasInstr{What: cl.Symbol}})
	case ast.ExprUnresolvedConst:
		return b.notSupported(c, cur, loc, "Unresolved constant")
	case ast.ExprAssign:
		return b.assign(c, id, cur)
	case ast.ExprSend:
		return b.send(c, id, cur)
	case ast.ExprIf:
		return b.ifExpr(c, id, cur)
	case ast.ExprWhile:
		return b.whileExpr(c, id, cur)
	case ast.ExprBreak:
		return b.breakExpr(c, id, cur)
	case ast.ExprNext:
		return b.nextExpr(c, id, cur)
	case ast.ExprReturn:
		return b.returnExpr(c, id, cur)
	case ast.ExprInsSeq:
		seq, _ := e.InsSeq(id)
		stats, last := append([]ast.ExprID(nil), seq.Stats...), seq.Expr
		for _, s := range stats {
			cur = b.walk(c.withTarget(b.temp()), s, cur)
		}
		return b.walk(c, last, cur)
	case ast.ExprCast:
		return b.cast(c, id, cur)
	case ast.ExprArray:
		arr, _ := e.Array(id)
		return b.magicSend(c, cur, loc, names.BuildArray, append([]ast.ExprID(nil), arr.Elems...))
	case ast.ExprHash:
		h, _ := e.Hash(id)
		kv := make([]ast.ExprID, 0, 2*len(h.Keys))
		for i := range h.Keys {
			kv = append(kv, h.Keys[i], h.Values[i])
		}
		return b.magicSend(c, cur, loc, names.BuildHash, kv)
	case ast.ExprRetry:
		return b.notSupported(c, cur, loc, "retry")
	case ast.ExprRescue:
		return b.notSupported(c, cur, loc, "rescue")
	case ast.ExprMethodDef:
		return b.notSupported(c, cur, loc, "Nested method definition")
	case ast.ExprClassDef:
		return b.notSupported(c, cur, loc, "Class definition in method body")
	case ast.ExprBlock:
		return b.notSupported(c, cur, loc, "Block without a send")
	default:
		enforce.Failf("cfg: unexpected expression kind %s", kind)
		return nil
	}
}

func literal(lit *ast.ExprLiteralData) Instr {
	out := LiteralInstr{Kind: lit.Kind, Int: lit.Int, Float: lit.Float, Text: lit.Text}
	switch lit.Kind {
	case ast.LitNil:
		out.Sym = symbols.NilClass
	case ast.LitTrue:
		out.Sym = symbols.TrueClass
	case ast.LitFalse:
		out.Sym = symbols.FalseClass
	case ast.LitInt:
		out.Sym = symbols.Integer
	case ast.LitFloat:
		out.Sym = symbols.Float
	case ast.LitString:
		out.Sym = symbols.String
	case ast.LitSymbol:
		out.Sym = symbols.Sym
	}
	return Instr{Kind: InstrLiteral, Literal: out}
}

func (b *builder) notSupported(c walkCtx, cur *BasicBlock, loc source.Loc, why string) *BasicBlock {
	return b.emit(cur, c.target, loc, Instr{Kind: InstrNotSupported, NotSupported: NotSupportedInstr{Why: why}})
}

func (b *builder) readIdent(c walkCtx, id ast.ExprID, cur *BasicBlock) *BasicBlock {
	loc := b.e.Loc(id)
	ident0, _ := b.e.UnresolvedIdent(id)
	kind, name := ident0.Kind, ident0.Name
	if kind == ast.IdentLocal {
		b.undeclared(loc, name)
		return b.emit(cur, c.target, loc, unanalyzable())
	}
	ref, ok := b.field(kind, name, loc, false)
	if !ok {
		b.undeclared(loc, name)
		return b.emit(cur, c.target, loc, unanalyzable())
	}
	return b.emit(cur, c.target, loc, ident(ref))
}

func (b *builder) assign(c walkCtx, id ast.ExprID, cur *BasicBlock) *BasicBlock {
	e := b.e
	loc := e.Loc(id)
	a, _ := e.Assign(id)
	lhs, rhs := a.LHS, a.RHS

	var ref LocalRef
	switch e.Kind(lhs) {
	case ast.ExprLocal:
		l, _ := e.Local(lhs)
		ref = b.local(l.Name, l.Unique)
	case ast.ExprUnresolvedIdent:
		u, _ := e.UnresolvedIdent(lhs)
		if u.Kind == ast.IdentLocal {
			ref = b.local(u.Name, 0)
		} else {
			ref, _ = b.field(u.Kind, u.Name, e.Loc(lhs), true)
		}
	default:
		cur = b.walk(c.withTarget(b.temp()), rhs, cur)
		return b.notSupported(c, cur, loc, "Dynamic constant assignment")
	}
	cur = b.walk(c.withTarget(ref), rhs, cur)
	return b.emit(cur, c.target, loc, ident(ref))
}

func (b *builder) ifExpr(c walkCtx, id ast.ExprID, cur *BasicBlock) *BasicBlock {
	e := b.e
	d, _ := e.If(id)
	cond, then, els := d.Cond, d.Then, d.Else

	condTemp := b.temp()
	cur = b.walk(c.withTarget(condTemp), cond, cur)
	thenBlock := b.fresh(c.loops, c.rubyBlock)
	elseBlock := b.fresh(c.loops, c.rubyBlock)
	b.branch(cur, condTemp, thenBlock, elseBlock, e.Loc(cond))

	thenEnd := b.walk(c, then, thenBlock)
	elseEnd := b.walk(c, els, elseBlock)
	if thenEnd.ID == DeadBlock && elseEnd.ID == DeadBlock {
		return b.dead()
	}
	join := b.fresh(c.loops, c.rubyBlock)
	b.jump(thenEnd, join, e.Loc(id))
	b.jump(elseEnd, join, e.Loc(id))
	return join
}

func (b *builder) whileExpr(c walkCtx, id ast.ExprID, cur *BasicBlock) *BasicBlock {
	e := b.e
	loc := e.Loc(id)
	w, _ := e.While(id)
	cond, body := w.Cond, w.Body

	header := b.fresh(c.loops+1, c.rubyBlock)
	b.jump(cur, header, loc)

	inner := c
	inner.loops++
	condTemp := b.temp()
	headerEnd := b.walk(inner.withTarget(condTemp), cond, header)

	bodyBlock := b.fresh(c.loops+1, c.rubyBlock)
	breakNotCalled := b.fresh(c.loops, c.rubyBlock)
	cont := b.fresh(c.loops, c.rubyBlock)
	b.branch(headerEnd, condTemp, bodyBlock, breakNotCalled, e.Loc(cond))

	inner.target = b.temp()
	inner.nextScope = header
	inner.breakScope = cont
	inner.breakTarget = c.target
	inner.inBlock = false
	bodyEnd := b.walk(inner, body, bodyBlock)
	b.jump(bodyEnd, header, loc)

	breakNotCalled = b.emit(breakNotCalled, c.target, loc, nilLiteral())
	b.jump(breakNotCalled, cont, loc)
	return cont
}

func (b *builder) breakExpr(c walkCtx, id ast.ExprID, cur *BasicBlock) *BasicBlock {
	loc := b.e.Loc(id)
	j, _ := b.e.Jump(id)
	value := j.Value
	if c.breakScope == nil {
		diag.ReportError(b.rep, diag.CFGNoNextScope, loc, "No `do` block around `break`").Emit()
		return b.walk(c, value, cur)
	}
	cur = b.walk(c.withTarget(c.breakTarget), value, cur)
	b.jump(cur, c.breakScope, loc)
	return b.dead()
}

func (b *builder) nextExpr(c walkCtx, id ast.ExprID, cur *BasicBlock) *BasicBlock {
	loc := b.e.Loc(id)
	j, _ := b.e.Jump(id)
	value := j.Value
	if c.nextScope == nil {
		diag.ReportError(b.rep, diag.CFGNoNextScope, loc, "No `do` block around `next`").Emit()
		return b.walk(c, value, cur)
	}
	tmp := b.temp()
	cur = b.walk(c.withTarget(tmp), value, cur)
	if c.inBlock {
		cur = b.emit(cur, LocalFinalReturn, loc, Instr{
			Kind:        InstrBlockReturn,
			BlockReturn: BlockReturnInstr{Link: c.link, What: tmp},
		})
	}
	b.jump(cur, c.nextScope, loc)
	return b.dead()
}

func (b *builder) returnExpr(c walkCtx, id ast.ExprID, cur *BasicBlock) *BasicBlock {
	loc := b.e.Loc(id)
	j, _ := b.e.Jump(id)
	value := j.Value
	tmp := b.temp()
	cur = b.walk(c.withTarget(tmp), value, cur)
	if cur.ID == DeadBlock {
		diag.ReportError(b.rep, diag.CFGReturnExprVoid, b.e.Loc(value),
			"Expression passed to `return` does not have a value").Emit()
		return cur
	}
	cur = b.emit(cur, LocalFinalReturn, loc, Instr{Kind: InstrReturn, Return: ReturnInstr{What: tmp}})
	b.jump(cur, b.dead(), loc)
	return b.dead()
}

func (b *builder) cast(c walkCtx, id ast.ExprID, cur *BasicBlock) *BasicBlock {
	e := b.e
	loc := e.Loc(id)
	d, _ := e.Cast(id)
	kind, value, typ := d.Kind, d.Value, d.Type

	tmp := b.temp()
	cur = b.walk(c.withTarget(tmp), value, cur)
	sym := symbols.NoSymbol
	if cl, ok := e.ConstantLit(typ); ok {
		sym = cl.Symbol
	}
	return b.emit(cur, c.target, loc, Instr{Kind: InstrCast, Cast: CastInstr{Value: tmp, Type: sym, Kind: kind}})
}

// magicSend lowers array and hash literals to sends on <Magic>.
func (b *builder) magicSend(c walkCtx, cur *BasicBlock, loc source.Loc, fun names.NameRef, elems []ast.ExprID) *BasicBlock {
	magic := b.locals.temp(names.Magic)
	cur = b.emit(cur, magic, loc.CopyWithZeroLength(), Instr{Kind: InstrAlias, Alias: AliasInstr{What: symbols.Magic}})
	args := make([]LocalRef, 0, len(elems))
	argLocs := make([]source.Loc, 0, len(elems))
	for _, el := range elems {
		tmp := b.temp()
		cur = b.walk(c.withTarget(tmp), el, cur)
		args = append(args, tmp)
		argLocs = append(argLocs, b.e.Loc(el))
	}
	return b.emit(cur, c.target, loc, Instr{Kind: InstrSend, Send: SendInstr{
		Recv:        magic,
		RecvLoc:     loc.CopyWithZeroLength(),
		Fun:         fun,
		FunLoc:      loc,
		Args:        args,
		ArgLocs:     argLocs,
		IsPrivateOk: true,
	}})
}
