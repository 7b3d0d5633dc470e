package cfg

import (
	"fmt"

	"fortio.org/safecast"

	"rbcheck/internal/names"
)

// LocalRef indexes CFG.Locals.
type LocalRef uint32

// Well-known locals, present in every CFG at these indexes.
const (
	LocalNone LocalRef = iota
	// LocalUnconditional is the condition of unconditional exits.
	LocalUnconditional
	// LocalBlockCall is the opaque condition of a block loop header: the
	// callee decides whether the block runs again.
	LocalBlockCall
	LocalSelf
	// LocalFinalReturn is bound by every Return and BlockReturn.
	LocalFinalReturn
	numWellKnownLocals
)

func (ref LocalRef) Exists() bool { return ref != LocalNone }

// LocalVar is a variable of one method body. Temporaries carry a
// synthetic name and a per-CFG Unique; user locals keep the Unique the
// desugarer gave them, zero unless shadowed.
type LocalVar struct {
	Name   names.NameRef
	Unique uint32
}

func (v LocalVar) show(nt *names.Table) string {
	if v.Unique == 0 {
		return nt.Show(v.Name)
	}
	return fmt.Sprintf("%s$%d", nt.Show(v.Name), v.Unique)
}

// locals interns LocalVars of one CFG.
type locals struct {
	vars  []LocalVar
	index map[LocalVar]LocalRef
	temps uint32
}

func newLocals() *locals {
	l := &locals{index: make(map[LocalVar]LocalRef, 32)}
	for _, v := range []LocalVar{
		{},
		{Name: names.Unconditional},
		{Name: names.BlockCall},
		{Name: names.SelfLocal},
		{Name: names.FinalReturn},
	} {
		l.enter(v)
	}
	return l
}

func (l *locals) enter(v LocalVar) LocalRef {
	if ref, ok := l.index[v]; ok {
		return ref
	}
	n, err := safecast.Conv[uint32](len(l.vars))
	if err != nil {
		panic(fmt.Errorf("cfg locals overflow: %w", err))
	}
	ref := LocalRef(n)
	l.vars = append(l.vars, v)
	l.index[v] = ref
	return ref
}

// temp allocates a fresh temporary named after kind, e.g. <statTemp>$3.
func (l *locals) temp(kind names.NameRef) LocalRef {
	l.temps++
	return l.enter(LocalVar{Name: kind, Unique: l.temps})
}
