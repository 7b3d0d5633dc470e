package global

import (
	"rbcheck/internal/enforce"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
)

// VerifyFastPath makes the fast path also run the slow-path walk and check
// that it produced the identity. Off by default; rbcheck --debug-checks
// turns it on.
var VerifyFastPath = false

// Substitution translates NameRefs minted against one universe into
// equivalent NameRefs of another. SymbolRefs need no translation: the two
// universes must already agree on every symbol.
type Substitution struct {
	toID      uint32
	fastPath  bool
	nameSubst []names.NameRef
}

// NewSubstitution merges from into to.
//
// Files present in from but absent or NotYetRead in to are copied over.
// When commonParent is given and from added no names or symbols on top of
// it, the result is the identity. Otherwise every name of from is
// re-interned into to, in index order. Any disagreement between the symbol
// tables is a fault, as is to failing its sanity check afterwards.
func NewSubstitution(from, to, commonParent *GlobalState) *Substitution {
	enforce.That(to.ID != 0, "substitution target has no id")
	enforce.That(from.Symbols.Len() == to.Symbols.Len(),
		"cannot substitute symbols yet: from has %d, to has %d", from.Symbols.Len(), to.Symbols.Len())
	if err := from.SanityCheck(); err != nil {
		enforce.Failf("substitution source is inconsistent: %v", err)
	}

	s := &Substitution{toID: to.ID}
	copyFiles(from, to)

	if commonParent != nil &&
		from.Names.Len() == commonParent.Names.Len() &&
		from.Symbols.Len() == commonParent.Symbols.Len() {
		enforce.That(to.Names.Len() >= from.Names.Len(), "to has fewer names than from")
		enforce.That(to.Symbols.Len() >= from.Symbols.Len(), "to has fewer symbols than from")
		s.fastPath = true
	}

	if !s.fastPath || VerifyFastPath {
		s.substituteNames(from, to)
		for i, sym := range from.Symbols.All() {
			if i == 0 {
				continue
			}
			enforce.That(s.substitute(sym.Name) == sym.Name,
				"symbol %d name %s moved during substitution", i, from.Names.ShowRaw(sym.Name))
			enforce.That(sym.Name == to.Symbols.All()[i].Name,
				"symbol %d is %s in from but %s in to", i, from.Names.ShowRaw(sym.Name), to.Names.ShowRaw(to.Symbols.All()[i].Name))
		}
	}

	for _, ext := range to.extensions {
		ext.Merge(from, to, s)
	}

	if err := to.SanityCheck(); err != nil {
		enforce.Failf("substitution target is inconsistent: %v", err)
	}
	return s
}

func copyFiles(from, to *GlobalState) {
	defer to.UnfreezeFileTable().Release()
	to.Files.Lock()
	defer to.Files.Unlock()
	// файл 0 зарезервирован
	for i := 1; i < from.Files.Len(); i++ {
		id := source.FileID(i) // #nosec G115 -- file tables are bounded by uint16
		f := from.Files.Get(id)
		if f == nil || f.Type == source.NotYetRead {
			continue
		}
		if i < to.Files.LenLocked() && to.Files.GetLocked(id) == f {
			continue
		}
		if i < to.Files.LenLocked() {
			cur := to.Files.GetLocked(id)
			enforce.That(cur == nil || cur.Type == source.NotYetRead,
				"file %d differs between universes and is already read in the target", i)
		}
		to.Files.EnterAt(f, id)
	}
}

func (s *Substitution) substituteNames(from, to *GlobalState) {
	defer to.UnfreezeNameTable().Release()
	s.nameSubst = make([]names.NameRef, 0, from.Names.Len())
	for i := 0; i < from.Names.Len(); i++ {
		if i == 0 {
			s.nameSubst = append(s.nameSubst, names.NoName)
			continue
		}
		n := from.Names.Get(names.NameRef(i)) // #nosec G115 -- bounded by Len
		var ref names.NameRef
		switch n.Kind {
		case names.KindUnique:
			ref = to.Names.EnterUnique(n.Unique, s.substitute(n.Original), n.Num)
		case names.KindUTF8:
			ref = to.Names.EnterUTF8(n.Text)
		case names.KindConstant:
			ref = to.Names.EnterConstant(s.substitute(n.Original))
		default:
			enforce.Failf("name %d has no kind", i)
		}
		enforce.That(!s.fastPath || int(ref) == i, "fast path is not the identity at name %d", i)
		s.nameSubst = append(s.nameSubst, ref)
	}
}

func (s *Substitution) substitute(from names.NameRef) names.NameRef {
	enforce.That(int(from) < len(s.nameSubst), "name %d was not substituted yet", from)
	return s.nameSubst[from]
}

// Substitute translates a NameRef of from into the equivalent NameRef of to.
func (s *Substitution) Substitute(from names.NameRef) names.NameRef {
	if s.fastPath {
		return from
	}
	return s.substitute(from)
}

// UseFastPath reports whether the substitution is the identity.
func (s *Substitution) UseFastPath() bool { return s.fastPath }

// ToID is the id of the universe the substitution targets.
func (s *Substitution) ToID() uint32 { return s.toID }
