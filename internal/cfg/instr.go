package cfg

import (
	"rbcheck/internal/ast"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

// InstrKind enumerates instruction kinds.
type InstrKind uint8

const (
	// InstrIdent copies a local.
	InstrIdent InstrKind = iota
	// InstrAlias names a resolved symbol.
	InstrAlias
	// InstrSend is a dynamic dispatch.
	InstrSend
	InstrReturn
	InstrBlockReturn
	InstrLoadSelf
	// InstrLoadArg binds a formal parameter of the method.
	InstrLoadArg
	// InstrLoadYieldParams binds the values a block was yielded.
	InstrLoadYieldParams
	InstrLiteral
	InstrCast
	// InstrTAbsurd marks an exhaustiveness check.
	InstrTAbsurd
	// InstrSolveConstraint finishes the generic constraint of an earlier send.
	InstrSolveConstraint
	InstrUnanalyzable
	// InstrNotSupported marks a construct the builder does not model.
	InstrNotSupported
	numInstrKinds
)

var instrKindNames = [...]string{
	InstrIdent:           "Ident",
	InstrAlias:           "Alias",
	InstrSend:            "Send",
	InstrReturn:          "Return",
	InstrBlockReturn:     "BlockReturn",
	InstrLoadSelf:        "LoadSelf",
	InstrLoadArg:         "LoadArg",
	InstrLoadYieldParams: "LoadYieldParams",
	InstrLiteral:         "Literal",
	InstrCast:            "Cast",
	InstrTAbsurd:         "TAbsurd",
	InstrSolveConstraint: "SolveConstraint",
	InstrUnanalyzable:    "Unanalyzable",
	InstrNotSupported:    "NotSupported",
}

func (k InstrKind) String() string {
	if k < numInstrKinds {
		return instrKindNames[k]
	}
	return "Unknown"
}

// Instr is one instruction. Exactly the payload selected by Kind is meaningful.
type Instr struct {
	Kind InstrKind

	Ident           IdentInstr
	Alias           AliasInstr
	Send            SendInstr
	Return          ReturnInstr
	BlockReturn     BlockReturnInstr
	LoadSelf        LoadSelfInstr
	LoadArg         LoadArgInstr
	LoadYieldParams LoadYieldParamsInstr
	Literal         LiteralInstr
	Cast            CastInstr
	TAbsurd         TAbsurdInstr
	SolveConstraint SolveConstraintInstr
	NotSupported    NotSupportedInstr
}

type IdentInstr struct {
	What LocalRef
}

type AliasInstr struct {
	What symbols.SymbolRef
}

// SendAndBlockLink ties a send to the block passed to it. The send, the
// block's LoadSelf and LoadYieldParams, every BlockReturn out of the block
// and the SolveConstraint after it share one link.
type SendAndBlockLink struct {
	Fun names.NameRef
	// Params describes the block's parameters.
	Params []symbols.ArgInfo
	// BlockID numbers the blocks of one method from 1.
	BlockID int
}

type SendInstr struct {
	Recv    LocalRef
	RecvLoc source.Loc
	Fun     names.NameRef
	FunLoc  source.Loc
	Args    []LocalRef
	ArgLocs []source.Loc
	// IsPrivateOk is set when the call site has no explicit receiver.
	IsPrivateOk bool
	// Link is nil for sends without a block.
	Link *SendAndBlockLink
}

type ReturnInstr struct {
	What LocalRef
}

type BlockReturnInstr struct {
	Link *SendAndBlockLink
	What LocalRef
}

// LoadSelfInstr binds self. Link is nil at method entry; inside a block
// self is whatever the callee binds, falling back to Fallback.
type LoadSelfInstr struct {
	Link     *SendAndBlockLink
	Fallback LocalRef
}

type LoadArgInstr struct {
	Method   symbols.SymbolRef
	ArgIndex int
}

type LoadYieldParamsInstr struct {
	Link *SendAndBlockLink
}

type LiteralInstr struct {
	Kind  ast.LitKind
	Int   int64
	Float float64
	// Text holds string contents and symbol names.
	Text names.NameRef
	// Sym is the class of the value.
	Sym symbols.SymbolRef
}

type CastInstr struct {
	Value LocalRef
	// Type is NoSymbol for must and unsafe.
	Type symbols.SymbolRef
	Kind ast.CastKind
}

type TAbsurdInstr struct {
	What LocalRef
}

type SolveConstraintInstr struct {
	Send LocalRef
	Link *SendAndBlockLink
}

type NotSupportedInstr struct {
	Why string
}

// Uses appends the locals read by in to dst and returns the result.
func (in *Instr) Uses(dst []LocalRef) []LocalRef {
	switch in.Kind {
	case InstrIdent:
		dst = append(dst, in.Ident.What)
	case InstrSend:
		dst = append(dst, in.Send.Recv)
		dst = append(dst, in.Send.Args...)
	case InstrReturn:
		dst = append(dst, in.Return.What)
	case InstrBlockReturn:
		dst = append(dst, in.BlockReturn.What)
	case InstrLoadSelf:
		if in.LoadSelf.Fallback.Exists() {
			dst = append(dst, in.LoadSelf.Fallback)
		}
	case InstrCast:
		dst = append(dst, in.Cast.Value)
	case InstrTAbsurd:
		dst = append(dst, in.TAbsurd.What)
	case InstrSolveConstraint:
		dst = append(dst, in.SolveConstraint.Send)
	}
	return dst
}

// Link returns the block link an instruction refers to, if any.
func (in *Instr) Link() *SendAndBlockLink {
	switch in.Kind {
	case InstrSend:
		return in.Send.Link
	case InstrBlockReturn:
		return in.BlockReturn.Link
	case InstrLoadSelf:
		return in.LoadSelf.Link
	case InstrLoadYieldParams:
		return in.LoadYieldParams.Link
	case InstrSolveConstraint:
		return in.SolveConstraint.Link
	}
	return nil
}

// Binding is one instruction together with the local it defines.
type Binding struct {
	Bind  LocalRef
	Loc   source.Loc
	Value Instr
}

// Uses returns the locals b reads.
func (b *Binding) Uses() []LocalRef { return b.Value.Uses(nil) }
