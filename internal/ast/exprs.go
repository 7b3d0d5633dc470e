package ast

import (
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

// Exprs manages allocation of expressions.
type Exprs struct {
	Arena     *Arena[Expr]
	Literals  *Arena[ExprLiteralData]
	Locals    *Arena[ExprLocalData]
	Idents    *Arena[ExprUnresolvedIdentData]
	Constants *Arena[ExprConstantLitData]
	Consts    *Arena[ExprUnresolvedConstData]
	Assigns   *Arena[ExprAssignData]
	Sends     *Arena[ExprSendData]
	Blocks    *Arena[ExprBlockData]
	Ifs       *Arena[ExprIfData]
	Whiles    *Arena[ExprWhileData]
	Jumps     *Arena[ExprJumpData]
	Seqs      *Arena[ExprInsSeqData]
	Casts     *Arena[ExprCastData]
	Arrays    *Arena[ExprArrayData]
	Hashes    *Arena[ExprHashData]
	Rescues   *Arena[ExprRescueData]
	Methods   *Arena[ExprMethodDefData]
	Classes   *Arena[ExprClassDefData]
}

// NewExprs creates a new Exprs with per-kind arenas preallocated using capHint.
// If capHint is 0, a default capacity of 1<<8 is used.
func NewExprs(capHint uint) *Exprs {
	if capHint == 0 {
		capHint = 1 << 8
	}
	small := capHint/8 + 1
	return &Exprs{
		Arena:     NewArena[Expr](capHint),
		Literals:  NewArena[ExprLiteralData](capHint),
		Locals:    NewArena[ExprLocalData](capHint),
		Idents:    NewArena[ExprUnresolvedIdentData](small),
		Constants: NewArena[ExprConstantLitData](small),
		Consts:    NewArena[ExprUnresolvedConstData](small),
		Assigns:   NewArena[ExprAssignData](capHint),
		Sends:     NewArena[ExprSendData](capHint),
		Blocks:    NewArena[ExprBlockData](small),
		Ifs:       NewArena[ExprIfData](small),
		Whiles:    NewArena[ExprWhileData](small),
		Jumps:     NewArena[ExprJumpData](small),
		Seqs:      NewArena[ExprInsSeqData](small),
		Casts:     NewArena[ExprCastData](small),
		Arrays:    NewArena[ExprArrayData](small),
		Hashes:    NewArena[ExprHashData](small),
		Rescues:   NewArena[ExprRescueData](small),
		Methods:   NewArena[ExprMethodDefData](small),
		Classes:   NewArena[ExprClassDefData](small),
	}
}

func (e *Exprs) new(kind ExprKind, loc source.Loc, payload uint32) ExprID {
	return ExprID(e.Arena.Allocate(Expr{Kind: kind, Loc: loc, Payload: PayloadID(payload)}))
}

// Get returns the expression with the given ID.
func (e *Exprs) Get(id ExprID) *Expr {
	return e.Arena.Get(uint32(id))
}

// Kind returns the kind of id, ExprEmpty for NoExprID.
func (e *Exprs) Kind(id ExprID) ExprKind {
	if x := e.Get(id); x != nil {
		return x.Kind
	}
	return ExprEmpty
}

// Loc returns the location of id.
func (e *Exprs) Loc(id ExprID) source.Loc {
	if x := e.Get(id); x != nil {
		return x.Loc
	}
	return 0
}

func payload[T any](e *Exprs, id ExprID, kind ExprKind, arena *Arena[T]) (*T, bool) {
	x := e.Get(id)
	if x == nil || x.Kind != kind {
		return nil, false
	}
	return arena.Get(uint32(x.Payload)), true
}

func (e *Exprs) NewEmpty(loc source.Loc) ExprID { return e.new(ExprEmpty, loc, 0) }
func (e *Exprs) NewSelf(loc source.Loc) ExprID  { return e.new(ExprSelf, loc, 0) }
func (e *Exprs) NewRetry(loc source.Loc) ExprID { return e.new(ExprRetry, loc, 0) }

func (e *Exprs) NewLiteral(loc source.Loc, data ExprLiteralData) ExprID {
	return e.new(ExprLiteral, loc, e.Literals.Allocate(data))
}

func (e *Exprs) Literal(id ExprID) (*ExprLiteralData, bool) {
	return payload(e, id, ExprLiteral, e.Literals)
}

func (e *Exprs) NewLocal(loc source.Loc, name names.NameRef, unique uint32) ExprID {
	return e.new(ExprLocal, loc, e.Locals.Allocate(ExprLocalData{Name: name, Unique: unique}))
}

func (e *Exprs) Local(id ExprID) (*ExprLocalData, bool) {
	return payload(e, id, ExprLocal, e.Locals)
}

func (e *Exprs) NewUnresolvedIdent(loc source.Loc, kind IdentKind, name names.NameRef) ExprID {
	return e.new(ExprUnresolvedIdent, loc, e.Idents.Allocate(ExprUnresolvedIdentData{Kind: kind, Name: name}))
}

func (e *Exprs) UnresolvedIdent(id ExprID) (*ExprUnresolvedIdentData, bool) {
	return payload(e, id, ExprUnresolvedIdent, e.Idents)
}

func (e *Exprs) NewConstantLit(loc source.Loc, sym symbols.SymbolRef, original ExprID) ExprID {
	return e.new(ExprConstantLit, loc, e.Constants.Allocate(ExprConstantLitData{Symbol: sym, Original: original}))
}

func (e *Exprs) ConstantLit(id ExprID) (*ExprConstantLitData, bool) {
	return payload(e, id, ExprConstantLit, e.Constants)
}

func (e *Exprs) NewUnresolvedConst(loc source.Loc, scope ExprID, name names.NameRef) ExprID {
	return e.new(ExprUnresolvedConst, loc, e.Consts.Allocate(ExprUnresolvedConstData{Scope: scope, Name: name}))
}

func (e *Exprs) UnresolvedConst(id ExprID) (*ExprUnresolvedConstData, bool) {
	return payload(e, id, ExprUnresolvedConst, e.Consts)
}

func (e *Exprs) NewAssign(loc source.Loc, lhs, rhs ExprID) ExprID {
	return e.new(ExprAssign, loc, e.Assigns.Allocate(ExprAssignData{LHS: lhs, RHS: rhs}))
}

func (e *Exprs) Assign(id ExprID) (*ExprAssignData, bool) {
	return payload(e, id, ExprAssign, e.Assigns)
}

func (e *Exprs) NewSend(loc source.Loc, data ExprSendData) ExprID {
	return e.new(ExprSend, loc, e.Sends.Allocate(data))
}

func (e *Exprs) Send(id ExprID) (*ExprSendData, bool) {
	return payload(e, id, ExprSend, e.Sends)
}

func (e *Exprs) NewBlock(loc source.Loc, params []Param, body ExprID) ExprID {
	return e.new(ExprBlock, loc, e.Blocks.Allocate(ExprBlockData{Params: params, Body: body}))
}

func (e *Exprs) Block(id ExprID) (*ExprBlockData, bool) {
	return payload(e, id, ExprBlock, e.Blocks)
}

func (e *Exprs) NewIf(loc source.Loc, cond, then, els ExprID) ExprID {
	return e.new(ExprIf, loc, e.Ifs.Allocate(ExprIfData{Cond: cond, Then: then, Else: els}))
}

func (e *Exprs) If(id ExprID) (*ExprIfData, bool) {
	return payload(e, id, ExprIf, e.Ifs)
}

func (e *Exprs) NewWhile(loc source.Loc, cond, body ExprID) ExprID {
	return e.new(ExprWhile, loc, e.Whiles.Allocate(ExprWhileData{Cond: cond, Body: body}))
}

func (e *Exprs) While(id ExprID) (*ExprWhileData, bool) {
	return payload(e, id, ExprWhile, e.Whiles)
}

// NewJump creates a break, next or return.
func (e *Exprs) NewJump(kind ExprKind, loc source.Loc, value ExprID) ExprID {
	switch kind {
	case ExprBreak, ExprNext, ExprReturn:
	default:
		panic("ast.NewJump: " + kind.String() + " is not a jump")
	}
	return e.new(kind, loc, e.Jumps.Allocate(ExprJumpData{Value: value}))
}

// Jump returns the payload of a break, next or return.
func (e *Exprs) Jump(id ExprID) (*ExprJumpData, bool) {
	x := e.Get(id)
	if x == nil || (x.Kind != ExprBreak && x.Kind != ExprNext && x.Kind != ExprReturn) {
		return nil, false
	}
	return e.Jumps.Get(uint32(x.Payload)), true
}

func (e *Exprs) NewInsSeq(loc source.Loc, stats []ExprID, expr ExprID) ExprID {
	return e.new(ExprInsSeq, loc, e.Seqs.Allocate(ExprInsSeqData{Stats: stats, Expr: expr}))
}

func (e *Exprs) InsSeq(id ExprID) (*ExprInsSeqData, bool) {
	return payload(e, id, ExprInsSeq, e.Seqs)
}

func (e *Exprs) NewCast(loc source.Loc, kind CastKind, value, typ ExprID) ExprID {
	return e.new(ExprCast, loc, e.Casts.Allocate(ExprCastData{Kind: kind, Value: value, Type: typ}))
}

func (e *Exprs) Cast(id ExprID) (*ExprCastData, bool) {
	return payload(e, id, ExprCast, e.Casts)
}

func (e *Exprs) NewArray(loc source.Loc, elems []ExprID) ExprID {
	return e.new(ExprArray, loc, e.Arrays.Allocate(ExprArrayData{Elems: elems}))
}

func (e *Exprs) Array(id ExprID) (*ExprArrayData, bool) {
	return payload(e, id, ExprArray, e.Arrays)
}

func (e *Exprs) NewHash(loc source.Loc, keys, values []ExprID) ExprID {
	return e.new(ExprHash, loc, e.Hashes.Allocate(ExprHashData{Keys: keys, Values: values}))
}

func (e *Exprs) Hash(id ExprID) (*ExprHashData, bool) {
	return payload(e, id, ExprHash, e.Hashes)
}

func (e *Exprs) NewRescue(loc source.Loc, data ExprRescueData) ExprID {
	return e.new(ExprRescue, loc, e.Rescues.Allocate(data))
}

func (e *Exprs) Rescue(id ExprID) (*ExprRescueData, bool) {
	return payload(e, id, ExprRescue, e.Rescues)
}

func (e *Exprs) NewMethodDef(loc source.Loc, data ExprMethodDefData) ExprID {
	return e.new(ExprMethodDef, loc, e.Methods.Allocate(data))
}

func (e *Exprs) MethodDef(id ExprID) (*ExprMethodDefData, bool) {
	return payload(e, id, ExprMethodDef, e.Methods)
}

func (e *Exprs) NewClassDef(loc source.Loc, data ExprClassDefData) ExprID {
	return e.new(ExprClassDef, loc, e.Classes.Allocate(data))
}

func (e *Exprs) ClassDef(id ExprID) (*ExprClassDefData, bool) {
	return payload(e, id, ExprClassDef, e.Classes)
}

// Replace overwrites the node at id in place, keeping the id stable.
func (e *Exprs) Replace(id, with ExprID) {
	*e.Get(id) = *e.Get(with)
}

// ResolveConstant turns the unresolved constant at id into a ConstantLit in
// place. The unresolved node moves to a fresh id kept as Original.
func (e *Exprs) ResolveConstant(id ExprID, sym symbols.SymbolRef) {
	old := *e.Get(id)
	orig := ExprID(e.Arena.Allocate(old))
	payload := e.Constants.Allocate(ExprConstantLitData{Symbol: sym, Original: orig})
	*e.Get(id) = Expr{Kind: ExprConstantLit, Loc: old.Loc, Payload: PayloadID(payload)}
}

// ReplaceWithCast turns the node at id into a cast of value, keeping its loc.
func (e *Exprs) ReplaceWithCast(id ExprID, kind CastKind, value, typ ExprID) {
	payload := e.Casts.Allocate(ExprCastData{Kind: kind, Value: value, Type: typ})
	x := e.Get(id)
	x.Kind = ExprCast
	x.Payload = PayloadID(payload)
}
