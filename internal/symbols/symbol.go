package symbols

import (
	"strings"

	"rbcheck/internal/names"
	"rbcheck/internal/source"
)

// Kind classifies a symbol.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindClass
	KindModule
	KindMethod
	KindField
	KindStaticField
	KindTypeMember
	KindTypeArgument
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindModule:
		return "module"
	case KindMethod:
		return "method"
	case KindField:
		return "field"
	case KindStaticField:
		return "static-field"
	case KindTypeMember:
		return "type-member"
	case KindTypeArgument:
		return "type-argument"
	default:
		return "invalid"
	}
}

// IsClassOrModule reports class-like kinds, the only legal owners of members.
func (k Kind) IsClassOrModule() bool { return k == KindClass || k == KindModule }

// Flags encode kind-specific attributes.
type Flags uint16

const (
	FlagAbstract Flags = 1 << iota
	FlagOverridable
	FlagOverride
	FlagPrivate
	FlagProtected
	FlagFinal
	// FlagRewriterSynthesized marks methods created by a DSL rewriter.
	FlagRewriterSynthesized
	// FlagLinearizationComputed is set once a class's ancestors are known.
	FlagLinearizationComputed
	// FlagStub marks class-like symbols created for constants that did not resolve.
	FlagStub
)

var flagLabels = []struct {
	f     Flags
	label string
}{
	{FlagAbstract, "abstract"},
	{FlagOverridable, "overridable"},
	{FlagOverride, "override"},
	{FlagPrivate, "private"},
	{FlagProtected, "protected"},
	{FlagFinal, "final"},
	{FlagRewriterSynthesized, "synthesized"},
	{FlagLinearizationComputed, "linearized"},
	{FlagStub, "stub"},
}

// Strings returns a slice of textual flag labels.
func (f Flags) Strings() []string {
	if f == 0 {
		return nil
	}
	var out []string
	for _, fl := range flagLabels {
		if f&fl.f != 0 {
			out = append(out, fl.label)
		}
	}
	return out
}

func (f Flags) String() string { return strings.Join(f.Strings(), "|") }

// Variance of a type member or type argument.
type Variance int8

const (
	Contravariant Variance = -1
	Invariant     Variance = 0
	Covariant     Variance = 1
)

// ArgFlags describe how a method parameter may be passed.
type ArgFlags uint8

const (
	ArgKeyword ArgFlags = 1 << iota
	ArgDefault
	ArgBlock
	ArgRepeated
)

// ArgInfo is one formal parameter of a method.
type ArgInfo struct {
	Name  names.NameRef
	Loc   source.Loc
	Flags ArgFlags
	// Type is the textual signature type, empty when unannotated.
	Type string
}

func (a ArgInfo) IsKeyword() bool  { return a.Flags&ArgKeyword != 0 }
func (a ArgInfo) IsDefault() bool  { return a.Flags&ArgDefault != 0 }
func (a ArgInfo) IsBlock() bool    { return a.Flags&ArgBlock != 0 }
func (a ArgInfo) IsRepeated() bool { return a.Flags&ArgRepeated != 0 }

// MaxLocs caps the number of declaration sites kept per symbol.
const MaxLocs = 8

// Symbol is one entry in the table.
type Symbol struct {
	Name  names.NameRef
	Owner SymbolRef
	Kind  Kind
	Flags Flags
	Locs  []source.Loc

	// class / module
	Superclass SymbolRef
	Mixins     []SymbolRef
	Members    []SymbolRef // порядок вставки
	memberIdx  map[names.NameRef]SymbolRef
	// Attached points from a singleton class to the class it belongs to.
	Attached  SymbolRef
	Singleton SymbolRef

	// method
	Arguments  []ArgInfo
	ResultType string
	TypeParams []SymbolRef

	// type member / argument
	Variance Variance
}

// Loc returns the first declaration site.
func (s *Symbol) Loc() source.Loc {
	if len(s.Locs) == 0 {
		return 0
	}
	return s.Locs[0]
}

// AddLoc records a declaration site, ignoring duplicates and keeping at most MaxLocs.
func (s *Symbol) AddLoc(loc source.Loc) {
	if !loc.Exists() {
		return
	}
	for _, l := range s.Locs {
		if l == loc {
			return
		}
	}
	if len(s.Locs) >= MaxLocs {
		s.Locs[len(s.Locs)-1] = loc
		return
	}
	s.Locs = append(s.Locs, loc)
}

func (s *Symbol) IsClassOrModule() bool { return s.Kind.IsClassOrModule() }
func (s *Symbol) IsMethod() bool        { return s.Kind == KindMethod }
func (s *Symbol) Has(f Flags) bool      { return s.Flags&f == f }

// Member looks up a direct member by name.
func (s *Symbol) Member(name names.NameRef) SymbolRef {
	return s.memberIdx[name]
}

func (s *Symbol) clone() Symbol {
	cp := *s
	cp.Locs = append([]source.Loc(nil), s.Locs...)
	cp.Mixins = append([]SymbolRef(nil), s.Mixins...)
	cp.Members = append([]SymbolRef(nil), s.Members...)
	cp.Arguments = append([]ArgInfo(nil), s.Arguments...)
	cp.TypeParams = append([]SymbolRef(nil), s.TypeParams...)
	if s.memberIdx != nil {
		cp.memberIdx = make(map[names.NameRef]SymbolRef, len(s.memberIdx))
		for k, v := range s.memberIdx {
			cp.memberIdx[k] = v
		}
	}
	return cp
}
