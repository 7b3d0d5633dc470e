package symbols

import (
	"errors"
	"fmt"

	"rbcheck/internal/names"
)

// Validate walks the arena checking structural invariants. Returns nil if
// everything is consistent; otherwise aggregates all detected issues.
func (t *Table) Validate(nt *names.Table) error {
	var errs []error
	if len(t.data) < WellKnownCount {
		return fmt.Errorf("symbol table holds %d symbols, fewer than the %d well-known", len(t.data), WellKnownCount)
	}
	if t.data[Root].Owner != Root {
		errs = append(errs, fmt.Errorf("root is owned by %d", t.data[Root].Owner))
	}
	for idx := 1; idx < len(t.data); idx++ {
		ref := SymbolRef(idx) // #nosec G115 -- bounded by Append
		sym := &t.data[idx]
		if sym.Kind == KindInvalid {
			errs = append(errs, fmt.Errorf("symbol %d has invalid kind", ref))
		}
		if nt != nil && int(sym.Name) >= nt.Len() {
			errs = append(errs, fmt.Errorf("symbol %d has name %d outside the name table", ref, sym.Name))
		}
		if ref != Root {
			if !sym.Owner.Exists() || sym.Owner >= ref {
				errs = append(errs, fmt.Errorf("symbol %d has owner %d entered after it", ref, sym.Owner))
				continue
			}
			if t.data[sym.Owner].memberIdx[sym.Name] != ref {
				errs = append(errs, fmt.Errorf("symbol %d is missing from owner %d members", ref, sym.Owner))
			}
		}
		if int(sym.Superclass) >= len(t.data) {
			errs = append(errs, fmt.Errorf("symbol %d has superclass %d out of range", ref, sym.Superclass))
		}
		for _, m := range sym.Mixins {
			if !m.Exists() || int(m) >= len(t.data) || t.data[m].Kind != KindModule {
				errs = append(errs, fmt.Errorf("symbol %d mixes in %d which is not a module", ref, m))
			}
		}
		if len(sym.Members) != len(sym.memberIdx) {
			errs = append(errs, fmt.Errorf("symbol %d member list has %d entries, index %d", ref, len(sym.Members), len(sym.memberIdx)))
		}
		for _, m := range sym.Members {
			if int(m) >= len(t.data) || t.data[m].Owner != ref {
				errs = append(errs, fmt.Errorf("symbol %d lists member %d it does not own", ref, m))
			}
		}
	}
	return errors.Join(errs...)
}

// Restore rebuilds a table from raw symbols, e.g. a decoded snapshot.
// Member indexes are derived from each symbol's Members list.
func Restore(syms []Symbol, nt *names.Table) (*Table, error) {
	t := &Table{data: make([]Symbol, len(syms))}
	for i := range syms {
		t.data[i] = syms[i].clone()
		t.data[i].memberIdx = nil
	}
	for i := range t.data {
		sym := &t.data[i]
		if len(sym.Members) == 0 {
			continue
		}
		sym.memberIdx = make(map[names.NameRef]SymbolRef, len(sym.Members))
		for _, m := range sym.Members {
			if int(m) >= len(t.data) {
				return nil, fmt.Errorf("symbol %d lists member %d out of range", i, m)
			}
			sym.memberIdx[t.data[m].Name] = m
		}
	}
	if err := t.Validate(nt); err != nil {
		return nil, fmt.Errorf("restore symbols: %w", err)
	}
	return t, nil
}

// All returns the raw arena including the sentinel. Callers must not mutate it.
func (t *Table) All() []Symbol { return t.data }
