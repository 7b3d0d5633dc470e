package ast

import (
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

// ExprKind enumerates the nodes of a desugared tree.
type ExprKind uint8

const (
	ExprEmpty ExprKind = iota
	ExprLiteral
	// ExprLocal is a local variable already resolved by the desugarer.
	ExprLocal
	// ExprUnresolvedIdent is an instance, class or global variable, or a
	// local the desugarer could not bind.
	ExprUnresolvedIdent
	ExprSelf
	// ExprConstantLit is a constant reference resolved to a symbol.
	ExprConstantLit
	ExprUnresolvedConst
	ExprAssign
	ExprSend
	ExprBlock
	ExprIf
	ExprWhile
	ExprBreak
	ExprNext
	ExprReturn
	ExprRetry
	ExprInsSeq
	ExprCast
	ExprArray
	ExprHash
	ExprRescue
	ExprMethodDef
	ExprClassDef
)

var exprKindNames = [...]string{
	ExprEmpty:           "empty",
	ExprLiteral:         "literal",
	ExprLocal:           "local",
	ExprUnresolvedIdent: "ident",
	ExprSelf:            "self",
	ExprConstantLit:     "constant",
	ExprUnresolvedConst: "const",
	ExprAssign:          "assign",
	ExprSend:            "send",
	ExprBlock:           "block",
	ExprIf:              "if",
	ExprWhile:           "while",
	ExprBreak:           "break",
	ExprNext:            "next",
	ExprReturn:          "return",
	ExprRetry:           "retry",
	ExprInsSeq:          "seq",
	ExprCast:            "cast",
	ExprArray:           "array",
	ExprHash:            "hash",
	ExprRescue:          "rescue",
	ExprMethodDef:       "def",
	ExprClassDef:        "class",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) {
		return exprKindNames[k]
	}
	return "unknown"
}

// Expr is a node header; the payload lives in the arena for its kind.
type Expr struct {
	Kind    ExprKind
	Loc     source.Loc
	Payload PayloadID
}

// LitKind says what a literal holds.
type LitKind uint8

const (
	LitNil LitKind = iota
	LitTrue
	LitFalse
	LitInt
	LitFloat
	LitString
	LitSymbol
)

var litKindNames = [...]string{"nil", "true", "false", "int", "float", "string", "symbol"}

func (k LitKind) String() string {
	if int(k) < len(litKindNames) {
		return litKindNames[k]
	}
	return "unknown"
}

type ExprLiteralData struct {
	Kind  LitKind
	Int   int64
	Float float64
	// Text is the interned content of string and symbol literals.
	Text names.NameRef
}

type ExprLocalData struct {
	Name names.NameRef
	// Unique disambiguates shadowed locals of the same name (block params).
	Unique uint32
}

// IdentKind is the namespace of an unresolved identifier.
type IdentKind uint8

const (
	IdentLocal IdentKind = iota
	IdentInstance
	IdentClass
	IdentGlobal
)

type ExprUnresolvedIdentData struct {
	Kind IdentKind
	Name names.NameRef
}

type ExprConstantLitData struct {
	Symbol symbols.SymbolRef
	// Original keeps the unresolved form for queries and error messages.
	Original ExprID
}

type ExprUnresolvedConstData struct {
	// Scope is NoExprID for a lexically scoped lookup, else the explicit scope (A::B).
	Scope ExprID
	Name  names.NameRef
}

type ExprAssignData struct {
	LHS ExprID
	RHS ExprID
}

type ExprSendData struct {
	Recv ExprID
	Fun  names.NameRef
	Args []ExprID
	// Block is NoExprID or an ExprBlock.
	Block ExprID
	// PrivateOk is set when the call has no explicit receiver.
	PrivateOk bool
	FunLoc    source.Loc
}

// ParamKind is the passing convention of a method or block parameter.
type ParamKind uint8

const (
	ParamRequired ParamKind = iota
	ParamOptional
	ParamRest
	ParamKeyword
	ParamOptionalKeyword
	ParamBlock
)

type Param struct {
	Kind    ParamKind
	Name    names.NameRef
	Loc     source.Loc
	Default ExprID
}

type ExprBlockData struct {
	Params []Param
	Body   ExprID
}

type ExprIfData struct {
	Cond, Then, Else ExprID
}

type ExprWhileData struct {
	Cond, Body ExprID
}

// ExprJumpData is the payload of break, next and return.
type ExprJumpData struct {
	Value ExprID
}

type ExprInsSeqData struct {
	Stats []ExprID
	Expr  ExprID
}

// CastKind is the flavor of a T.let / T.cast / T.must / T.unsafe assertion.
type CastKind uint8

const (
	CastLet CastKind = iota
	CastCast
	CastMust
	CastUnsafe
)

var castKindNames = [...]string{"let", "cast", "must", "unsafe"}

func (k CastKind) String() string {
	if int(k) < len(castKindNames) {
		return castKindNames[k]
	}
	return "unknown"
}

type ExprCastData struct {
	Kind  CastKind
	Value ExprID
	// Type is a constant expression, NoExprID for must/unsafe.
	Type ExprID
}

type ExprArrayData struct {
	Elems []ExprID
}

type ExprHashData struct {
	Keys   []ExprID
	Values []ExprID
}

type ExprRescueData struct {
	Body     ExprID
	Handlers []ExprID
	Else     ExprID
	Ensure   ExprID
}

// Sig is the desugared form of a sig block attached to a method.
type Sig struct {
	Params      map[string]string
	Returns     string
	Void        bool
	Abstract    bool
	Override    bool
	Overridable bool
	Final       bool
}

type ExprMethodDefData struct {
	Name    names.NameRef
	NameLoc source.Loc
	Params  []Param
	Body    ExprID
	// IsSelf marks def self.foo.
	IsSelf bool
	Sig    *Sig
	// Private is set when the def is an argument of private / private_class_method.
	Private bool
	// Synthesized marks methods created by a rewriter pass.
	Synthesized bool
	// Symbol is filled by the namer.
	Symbol symbols.SymbolRef
}

// ClassKind distinguishes class from module definitions.
type ClassKind uint8

const (
	ClassKindClass ClassKind = iota
	ClassKindModule
)

type ExprClassDefData struct {
	Kind       ClassKind
	Name       ExprID
	Superclass ExprID
	Body       []ExprID
	// Symbol is filled by the namer.
	Symbol symbols.SymbolRef
}
