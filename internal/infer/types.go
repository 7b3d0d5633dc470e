package infer

import (
	"strings"

	"rbcheck/internal/global"
	"rbcheck/internal/symbols"
)

// TypeKind selects the shape of a Type.
type TypeKind uint8

const (
	// TypeBottom is the type of values that never exist: unreachable
	// code and the result of T.must(nil).
	TypeBottom TypeKind = iota
	TypeUntyped
	// TypeInstance is an instance of Class.
	TypeInstance
	// TypeClassOf is the class object Class itself.
	TypeClassOf
)

// Type is the flow-insensitive approximation the walker keeps per local.
// The lattice is Bottom below every class type below Untyped.
type Type struct {
	Kind  TypeKind
	Class symbols.SymbolRef
}

var (
	Bottom  = Type{Kind: TypeBottom}
	Untyped = Type{Kind: TypeUntyped}
)

func Instance(class symbols.SymbolRef) Type { return Type{Kind: TypeInstance, Class: class} }
func ClassOf(class symbols.SymbolRef) Type  { return Type{Kind: TypeClassOf, Class: class} }

func (t Type) IsBottom() bool  { return t.Kind == TypeBottom }
func (t Type) IsUntyped() bool { return t.Kind == TypeUntyped }

// Join is the least upper bound of two types.
func Join(a, b Type) Type {
	switch {
	case a == b:
		return a
	case a.IsBottom():
		return b
	case b.IsBottom():
		return a
	}
	return Untyped
}

// Show renders t the way diagnostics print types.
func (t Type) Show(gs *global.GlobalState) string {
	switch t.Kind {
	case TypeBottom:
		return "T.noreturn"
	case TypeUntyped:
		return "T.untyped"
	case TypeClassOf:
		return "T.class_of(" + gs.ShowSymbol(t.Class) + ")"
	}
	return gs.ShowSymbol(t.Class)
}

// resolveTypeName maps a signature type such as "Integer" or "A::B" to
// its class, walking constants from the root. Anything else is NoSymbol.
func resolveTypeName(gs *global.GlobalState, text string) symbols.SymbolRef {
	text = strings.TrimPrefix(strings.TrimSpace(text), "::")
	if text == "" {
		return symbols.NoSymbol
	}
	cur := symbols.Root
	for _, part := range strings.Split(text, "::") {
		utf8, ok := gs.Names.LookupUTF8(part)
		if !ok {
			return symbols.NoSymbol
		}
		cnst, ok := gs.Names.LookupConstant(utf8)
		if !ok {
			return symbols.NoSymbol
		}
		cur = gs.Symbols.FindMember(cur, cnst)
		if !cur.Exists() || !gs.Sym(cur).IsClassOrModule() {
			return symbols.NoSymbol
		}
	}
	return cur
}

// typeFromSig converts a signature type string; unknown names are untyped.
func typeFromSig(gs *global.GlobalState, text string) Type {
	if text == "void" {
		return Untyped
	}
	if ref := resolveTypeName(gs, text); ref.Exists() {
		return Instance(ref)
	}
	return Untyped
}
