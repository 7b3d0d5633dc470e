// Package enforce reports internal-consistency faults.
//
// A fault is a programming error in rbcheck itself or in one of its
// collaborators: a frozen table mutated, a symbol entered under the wrong
// owner, two global states that disagree about their symbols. Faults are
// never recovered inside the analysis core; they unwind as panics carrying
// a *Fault so the command layer can tell them apart from ordinary crashes.
package enforce

import "fmt"

// Fault is the panic value raised by That and Failf.
type Fault struct {
	Msg string
}

func (f *Fault) Error() string {
	return "internal consistency fault: " + f.Msg
}

// That panics with a *Fault when cond is false.
func That(cond bool, format string, args ...any) {
	if cond {
		return
	}
	Failf(format, args...)
}

// Failf panics with a *Fault unconditionally.
func Failf(format string, args ...any) {
	panic(&Fault{Msg: fmt.Sprintf(format, args...)})
}

// AsFault extracts a *Fault from a recovered panic value.
func AsFault(r any) (*Fault, bool) {
	f, ok := r.(*Fault)
	return f, ok
}
