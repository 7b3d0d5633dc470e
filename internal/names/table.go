package names

import (
	"errors"
	"fmt"
	"strings"

	"fortio.org/safecast"

	"rbcheck/internal/enforce"
)

// Table is an append-only name store. Slot 0 holds the empty name.
type Table struct {
	names    []Name
	utf8     map[string]NameRef
	unique   map[uniqueKey]NameRef
	constant map[NameRef]NameRef
	frozen   bool
}

// NewTable returns a table holding exactly the well-known names.
func NewTable() *Table {
	t := &Table{
		names:    make([]Name, 0, 256),
		utf8:     make(map[string]NameRef, 256),
		unique:   make(map[uniqueKey]NameRef),
		constant: make(map[NameRef]NameRef, 64),
	}
	t.names = append(t.names, Name{})
	for i := RootName; i < numUTF8; i++ {
		got := t.EnterUTF8(wellKnownText[i])
		enforce.That(got == i, "well-known name %q landed at %d, want %d", wellKnownText[i], got, i)
	}
	for i := numUTF8; i < numWellKnown; i++ {
		got := t.EnterConstant(wellKnownConst[i-numUTF8])
		enforce.That(got == i, "well-known constant landed at %d, want %d", got, i)
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

// Len is the number of names including slot 0.
func (t *Table) Len() int { return len(t.names) }

// Get returns the content of ref. An out-of-range ref is a fault.
func (t *Table) Get(ref NameRef) Name {
	enforce.That(int(ref) < len(t.names), "name %d out of range (%d names)", ref, len(t.names))
	return t.names[ref]
}

// Exists reports whether ref is a non-empty name of this table.
func (t *Table) Exists(ref NameRef) bool {
	return ref != NoName && int(ref) < len(t.names)
}

func (t *Table) push(n Name) NameRef {
	enforce.That(!t.frozen, "name table is frozen")
	idx, err := safecast.Conv[uint32](len(t.names))
	if err != nil {
		panic(fmt.Errorf("name table overflow: %w", err))
	}
	t.names = append(t.names, n)
	return NameRef(idx)
}

// EnterUTF8 interns raw text.
func (t *Table) EnterUTF8(text string) NameRef {
	if ref, ok := t.utf8[text]; ok {
		return ref
	}
	ref := t.push(Name{Kind: KindUTF8, Text: text})
	t.utf8[text] = ref
	return ref
}

// EnterUnique interns a synthesized name. The same (kind, original, num)
// always yields the same NameRef.
func (t *Table) EnterUnique(kind UniqueKind, original NameRef, num uint32) NameRef {
	enforce.That(kind != UniqueNone, "unique name without a kind")
	enforce.That(t.Exists(original), "unique name over missing original %d", original)
	key := uniqueKey{kind: kind, original: original, num: num}
	if ref, ok := t.unique[key]; ok {
		return ref
	}
	ref := t.push(Name{Kind: KindUnique, Unique: kind, Original: original, Num: num})
	t.unique[key] = ref
	return ref
}

// EnterConstant interns the constant-namespace form of name.
func (t *Table) EnterConstant(name NameRef) NameRef {
	enforce.That(t.Exists(name), "constant over missing name %d", name)
	enforce.That(t.names[name].Kind != KindConstant, "constant of a constant name %d", name)
	if ref, ok := t.constant[name]; ok {
		return ref
	}
	ref := t.push(Name{Kind: KindConstant, Original: name})
	t.constant[name] = ref
	return ref
}

// LookupUTF8 finds text without interning it.
func (t *Table) LookupUTF8(text string) (NameRef, bool) {
	ref, ok := t.utf8[text]
	return ref, ok
}

// LookupConstant finds the constant form of name without interning it.
func (t *Table) LookupConstant(name NameRef) (NameRef, bool) {
	ref, ok := t.constant[name]
	return ref, ok
}

// LookupUnique finds a unique name without interning it.
func (t *Table) LookupUnique(kind UniqueKind, original NameRef, num uint32) (NameRef, bool) {
	ref, ok := t.unique[uniqueKey{kind: kind, original: original, num: num}]
	return ref, ok
}

// Show renders the name the way a user would write it.
func (t *Table) Show(ref NameRef) string {
	n := t.Get(ref)
	switch n.Kind {
	case KindUTF8:
		return n.Text
	case KindUnique:
		switch n.Unique {
		case UniqueSingleton:
			return "<Class:" + t.Show(n.Original) + ">"
		case UniqueOverload:
			return fmt.Sprintf("%s (overload.%d)", t.Show(n.Original), n.Num)
		}
		return t.Show(n.Original)
	case KindConstant:
		return t.Show(n.Original)
	default:
		return ""
	}
}

// ShowRaw renders the full structure of a name, e.g. <C <U Bar>>.
func (t *Table) ShowRaw(ref NameRef) string {
	n := t.Get(ref)
	switch n.Kind {
	case KindUTF8:
		return "<U " + n.Text + ">"
	case KindUnique:
		return fmt.Sprintf("<%s %s $%d>", n.Unique, t.ShowRaw(n.Original), n.Num)
	case KindConstant:
		return "<C " + t.ShowRaw(n.Original) + ">"
	default:
		return "<none>"
	}
}

// Text returns the underlying text of a UTF8 or constant name and
// the original's text for unique names.
func (t *Table) Text(ref NameRef) string {
	n := t.Get(ref)
	for n.Kind != KindUTF8 {
		if n.Kind == KindNone {
			return ""
		}
		n = t.Get(n.Original)
	}
	return n.Text
}

// IsSynthetic reports names users cannot write: unique names and text in angle brackets.
func (t *Table) IsSynthetic(ref NameRef) bool {
	n := t.Get(ref)
	if n.Kind == KindUnique {
		return true
	}
	text := t.Text(ref)
	return strings.HasPrefix(text, "<") && strings.HasSuffix(text, ">")
}

// Clone copies the table. The copy is independent of t.
func (t *Table) Clone() *Table {
	out := &Table{
		names:    append(make([]Name, 0, cap(t.names)), t.names...),
		utf8:     make(map[string]NameRef, len(t.utf8)),
		unique:   make(map[uniqueKey]NameRef, len(t.unique)),
		constant: make(map[NameRef]NameRef, len(t.constant)),
		frozen:   t.frozen,
	}
	for k, v := range t.utf8 {
		out.utf8[k] = v
	}
	for k, v := range t.unique {
		out.unique[k] = v
	}
	for k, v := range t.constant {
		out.constant[k] = v
	}
	return out
}

// All returns the raw names including slot 0. Callers must not mutate it.
func (t *Table) All() []Name { return t.names }

// Restore rebuilds a table from raw names, e.g. a decoded snapshot. The
// well-known prefix must match NewTable exactly. The result is frozen.
func Restore(raw []Name) (*Table, error) {
	fresh := NewTable()
	if len(raw) < len(fresh.names) {
		return nil, fmt.Errorf("restore names: %d names, want at least %d", len(raw), len(fresh.names))
	}
	for i := range fresh.names {
		if raw[i] != fresh.names[i] {
			return nil, fmt.Errorf("restore names: well-known name %d differs", i)
		}
	}
	t := &Table{
		names:    append(make([]Name, 0, len(raw)), raw...),
		utf8:     make(map[string]NameRef, len(raw)),
		unique:   make(map[uniqueKey]NameRef),
		constant: make(map[NameRef]NameRef),
		frozen:   true,
	}
	for i := 1; i < len(raw); i++ {
		n := raw[i]
		ref := NameRef(i) // #nosec G115 -- raw came from a table of at most 2^32 names
		switch n.Kind {
		case KindUTF8:
			t.utf8[n.Text] = ref
		case KindUnique:
			t.unique[uniqueKey{kind: n.Unique, original: n.Original, num: n.Num}] = ref
		case KindConstant:
			t.constant[n.Original] = ref
		}
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("restore names: %w", err)
	}
	return t, nil
}

// Validate checks the append-order invariant and that the lookup maps
// agree with the slice.
func (t *Table) Validate() error {
	var errs []error
	if len(t.names) < WellKnownCount {
		errs = append(errs, fmt.Errorf("name table holds %d names, fewer than the %d well-known", len(t.names), WellKnownCount))
	}
	for i := 1; i < len(t.names); i++ {
		n := t.names[i]
		ref := NameRef(i)
		switch n.Kind {
		case KindUTF8:
			if t.utf8[n.Text] != ref {
				errs = append(errs, fmt.Errorf("name %d: utf8 index points to %d", i, t.utf8[n.Text]))
			}
		case KindUnique, KindConstant:
			if n.Original == NoName || n.Original >= ref {
				errs = append(errs, fmt.Errorf("name %d: original %d not entered before it", i, n.Original))
			}
		default:
			errs = append(errs, fmt.Errorf("name %d: empty kind", i))
		}
	}
	if got := len(t.utf8) + len(t.unique) + len(t.constant); got != len(t.names)-1 {
		errs = append(errs, fmt.Errorf("lookup maps hold %d names, table %d", got, len(t.names)-1))
	}
	return errors.Join(errs...)
}
