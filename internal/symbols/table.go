package symbols

import (
	"fmt"

	"fortio.org/safecast"

	"rbcheck/internal/enforce"
	"rbcheck/internal/names"
)

// Table is an append-only symbol arena. Index 0 is the NoSymbol sentinel and
// index 1 is Root, which owns itself.
type Table struct {
	data   []Symbol
	frozen bool
}

type wellKnownClass struct {
	ref   SymbolRef
	name  names.NameRef
	kind  Kind
	super SymbolRef
}

var wellKnownClasses = [...]wellKnownClass{
	{BasicObject, names.ConstBasicObject, KindClass, NoSymbol},
	{Object, names.ConstObject, KindClass, BasicObject},
	{Kernel, names.ConstKernel, KindModule, NoSymbol},
	{Module, names.ConstModule, KindClass, Object},
	{Class, names.ConstClass, KindClass, Module},
	{NilClass, names.ConstNilClass, KindClass, Object},
	{TrueClass, names.ConstTrueClass, KindClass, Object},
	{FalseClass, names.ConstFalseClass, KindClass, Object},
	{Integer, names.ConstInteger, KindClass, Object},
	{Float, names.ConstFloat, KindClass, Object},
	{String, names.ConstString, KindClass, Object},
	{Sym, names.ConstSymbol, KindClass, Object},
	{T, names.ConstT, KindModule, NoSymbol},
	{StubModule, names.ConstStubModule, KindModule, NoSymbol},
	{Array, names.ConstArray, KindClass, Object},
	{Hash, names.ConstHash, KindClass, Object},
	{Proc, names.ConstProc, KindClass, Object},
	{Comparable, names.ConstComparable, KindModule, NoSymbol},
	{StandardError, names.ConstStandardError, KindClass, Object},
	{Magic, names.ConstMagic, KindModule, NoSymbol},
}

// NewTable returns a table holding Root and the well-known classes.
func NewTable() *Table {
	t := &Table{data: make([]Symbol, 1, 256)}
	t.data = append(t.data, Symbol{
		Name:  names.RootName,
		Owner: Root, // единственное разрешённое обратное ребро
		Kind:  KindClass,
		Flags: FlagLinearizationComputed,
	})
	for _, wk := range wellKnownClasses {
		got := t.Append(Symbol{Name: wk.name, Owner: Root, Kind: wk.kind, Superclass: wk.super})
		enforce.That(got == wk.ref, "well-known symbol landed at %d, want %d", got, wk.ref)
	}
	t.Get(Object).Mixins = []SymbolRef{Kernel}
	for ref := Root; ref < numWellKnown; ref++ {
		t.Get(ref).Flags |= FlagLinearizationComputed
	}
	return t
}

// Frozen reports whether appending is currently forbidden.
func (t *Table) Frozen() bool { return t.frozen }

// SetFrozen changes the frozen flag and returns the previous value.
func (t *Table) SetFrozen(frozen bool) bool {
	old := t.frozen
	t.frozen = frozen
	return old
}

// Len reports the number of slots including the sentinel.
func (t *Table) Len() int { return len(t.data) }

// Get returns the symbol for ref. An out-of-range ref is a fault.
func (t *Table) Get(ref SymbolRef) *Symbol {
	enforce.That(int(ref) < len(t.data), "symbol %d out of range (%d symbols)", ref, len(t.data))
	return &t.data[ref]
}

// Append adds sym as a new member of sym.Owner. The owner must already exist
// and must not have a member with the same name.
func (t *Table) Append(sym Symbol) SymbolRef {
	enforce.That(!t.frozen, "symbol table is frozen")
	value, err := safecast.Conv[uint32](len(t.data))
	if err != nil {
		panic(fmt.Errorf("symbols arena overflow: %w", err))
	}
	ref := SymbolRef(value)
	enforce.That(sym.Owner.Exists() && sym.Owner < ref, "symbol %d: owner %d must be entered first", ref, sym.Owner)
	owner := &t.data[sym.Owner]
	enforce.That(owner.memberIdx[sym.Name] == NoSymbol, "owner %d already has a member named %d", sym.Owner, sym.Name)
	if owner.memberIdx == nil {
		owner.memberIdx = make(map[names.NameRef]SymbolRef)
	}
	owner.memberIdx[sym.Name] = ref
	owner.Members = append(owner.Members, ref)
	sym.memberIdx = nil
	sym.Members = nil
	t.data = append(t.data, sym)
	return ref
}

// Rename gives ref a new name, keeping its owner's member index in step.
func (t *Table) Rename(ref SymbolRef, name names.NameRef) {
	enforce.That(!t.frozen, "symbol table is frozen")
	enforce.That(ref != Root, "cannot rename root")
	sym := t.Get(ref)
	owner := t.Get(sym.Owner)
	enforce.That(owner.memberIdx[name] == NoSymbol, "owner %d already has a member named %d", sym.Owner, name)
	delete(owner.memberIdx, sym.Name)
	owner.memberIdx[name] = ref
	sym.Name = name
}

// FindMember returns owner's direct member called name, or NoSymbol.
func (t *Table) FindMember(owner SymbolRef, name names.NameRef) SymbolRef {
	return t.Get(owner).Member(name)
}

// FindMemberTransitive looks name up along owner's ancestors.
func (t *Table) FindMemberTransitive(owner SymbolRef, name names.NameRef) SymbolRef {
	for _, anc := range t.Ancestors(owner) {
		if m := t.FindMember(anc, name); m.Exists() {
			return m
		}
	}
	return NoSymbol
}

// Ancestors linearizes a class-like symbol: itself, its mixins with the
// most recently included first, then its superclass's ancestors.
func (t *Table) Ancestors(ref SymbolRef) []SymbolRef {
	var out []SymbolRef
	seen := make(map[SymbolRef]bool)
	for cur := ref; cur.Exists() && !seen[cur]; cur = t.Get(cur).Superclass {
		seen[cur] = true
		out = append(out, cur)
		mixins := t.Get(cur).Mixins
		for i := len(mixins) - 1; i >= 0; i-- {
			if m := mixins[i]; !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// DerivesFrom reports whether ref has base among its ancestors.
func (t *Table) DerivesFrom(ref, base SymbolRef) bool {
	for _, anc := range t.Ancestors(ref) {
		if anc == base {
			return true
		}
	}
	return false
}

// EnclosingClass walks owners until it reaches a class-like symbol.
func (t *Table) EnclosingClass(ref SymbolRef) SymbolRef {
	for ref.Exists() && !t.Get(ref).IsClassOrModule() {
		ref = t.Get(ref).Owner
	}
	return ref
}

// ShowFullName renders the qualified name: A::B for constants, A#m for
// instance methods, A.m for singleton methods.
func (t *Table) ShowFullName(nt *names.Table, ref SymbolRef) string {
	if !ref.Exists() {
		return "<none>"
	}
	sym := t.Get(ref)
	if ref == Root {
		return nt.Show(sym.Name)
	}
	short := nt.Show(sym.Name)
	if sym.Owner == Root {
		return short
	}
	owner := t.Get(sym.Owner)
	switch {
	case sym.Kind == KindMethod && owner.Attached.Exists():
		return t.ShowFullName(nt, owner.Attached) + "." + short
	case sym.Kind == KindMethod:
		return t.ShowFullName(nt, sym.Owner) + "#" + short
	case sym.Kind == KindTypeArgument:
		return t.ShowFullName(nt, sym.Owner) + "<" + short + ">"
	default:
		return t.ShowFullName(nt, sym.Owner) + "::" + short
	}
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := &Table{data: make([]Symbol, len(t.data), cap(t.data)), frozen: t.frozen}
	for i := range t.data {
		out.data[i] = t.data[i].clone()
	}
	return out
}
