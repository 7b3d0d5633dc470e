// Package global owns GlobalState: the name table, symbol table, file table
// and error queue of one analysis universe.
//
// Tables start frozen. A phase that appends takes an unfreeze guard and
// releases it when done:
//
//	defer gs.UnfreezeSymbolTable().Release()
//
// Appending to a frozen table is an internal-consistency fault.
package global

import (
	"errors"
	"fmt"
	"sync/atomic"

	"rbcheck/internal/diag"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

var nextStateID atomic.Uint32

// GlobalState is one analysis universe.
type GlobalState struct {
	// ID is process-unique and never zero.
	ID      uint32
	Names   *names.Table
	Symbols *symbols.Table
	Files   *source.FileSet
	Errors  *diag.Queue

	extensions []Extension
}

// New creates a universe holding only the well-known names and symbols.
// All tables are frozen.
func New() *GlobalState {
	files := source.NewFileSet()
	gs := &GlobalState{
		ID:      nextStateID.Add(1),
		Names:   names.NewTable(),
		Symbols: symbols.NewTable(),
		Files:   files,
		Errors:  diag.NewQueue(files),
	}
	gs.Names.SetFrozen(true)
	gs.Symbols.SetFrozen(true)
	gs.Files.SetFrozen(true)
	return gs
}

// Restore assembles a universe from tables decoded elsewhere. The tables
// are frozen and the state gets a fresh ID.
func Restore(nt *names.Table, st *symbols.Table, files *source.FileSet) *GlobalState {
	nt.SetFrozen(true)
	st.SetFrozen(true)
	files.SetFrozen(true)
	return &GlobalState{
		ID:      nextStateID.Add(1),
		Names:   nt,
		Symbols: st,
		Files:   files,
		Errors:  diag.NewQueue(files),
	}
}

// DeepCopy returns an independent universe. Files are shared by pointer
// because they are immutable; everything else is copied. The copy gets a
// fresh ID and an empty error queue.
func (gs *GlobalState) DeepCopy() *GlobalState {
	files := gs.Files.Clone()
	cp := &GlobalState{
		ID:      nextStateID.Add(1),
		Names:   gs.Names.Clone(),
		Symbols: gs.Symbols.Clone(),
		Files:   files,
		Errors:  diag.NewQueue(files),
	}
	for _, ext := range gs.extensions {
		cp.extensions = append(cp.extensions, ext.DeepCopy())
	}
	return cp
}

// SanityCheck validates every table. Callers treat a non-nil error as a fault.
func (gs *GlobalState) SanityCheck() error {
	var errs []error
	if err := gs.Names.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("names: %w", err))
	}
	if err := gs.Symbols.Validate(gs.Names); err != nil {
		errs = append(errs, fmt.Errorf("symbols: %w", err))
	}
	for i := 1; i < gs.Files.Len(); i++ {
		if f := gs.Files.Get(source.FileID(i)); f != nil && int(f.ID) != i { // #nosec G115 -- bounded by Len
			errs = append(errs, fmt.Errorf("files: slot %d holds file %d", i, f.ID))
		}
	}
	return errors.Join(errs...)
}

// Reporter is the error queue as a diag.Reporter.
func (gs *GlobalState) Reporter() diag.Reporter { return gs.Errors }

// Show is a shortcut for gs.Names.Show.
func (gs *GlobalState) Show(ref names.NameRef) string { return gs.Names.Show(ref) }

// ShowSymbol renders the fully-qualified name of a symbol.
func (gs *GlobalState) ShowSymbol(ref symbols.SymbolRef) string {
	return gs.Symbols.ShowFullName(gs.Names, ref)
}

// Sym is a shortcut for gs.Symbols.Get.
func (gs *GlobalState) Sym(ref symbols.SymbolRef) *symbols.Symbol { return gs.Symbols.Get(ref) }
