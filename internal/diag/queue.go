package diag

import (
	"sync"

	"rbcheck/internal/source"
)

// Queue is the goroutine-safe error sink of a global state. It drops
// diagnostics whose code is stricter than the file they point into.
type Queue struct {
	mu         sync.Mutex
	files      *source.FileSet
	items      []Diagnostic
	suppressed int
}

// NewQueue binds a queue to the file table used for strictness lookups.
func NewQueue(files *source.FileSet) *Queue {
	return &Queue{files: files}
}

func (q *Queue) Report(code Code, sev Severity, primary source.Loc, msg string, notes []Note, fixes []Fix) {
	if !q.enabled(code, primary) {
		q.mu.Lock()
		q.suppressed++
		q.mu.Unlock()
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Diagnostic{
		Severity: sev, Code: code, Message: msg,
		Primary: primary, Notes: notes, Fixes: fixes,
	})
}

func (q *Queue) enabled(code Code, primary source.Loc) bool {
	if q.files == nil || primary.File() == 0 {
		return true
	}
	f := q.files.Get(primary.File())
	if f == nil {
		return true
	}
	return f.Strict.Allows(code.StrictLevel())
}

// Drain removes and returns everything queued so far.
func (q *Queue) Drain() []Diagnostic {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// DrainInto moves queued diagnostics into bag.
func (q *Queue) DrainInto(bag *Bag) {
	for _, d := range q.Drain() {
		bag.Add(d)
	}
}

// Len is the number of queued diagnostics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Suppressed counts diagnostics dropped by strictness.
func (q *Queue) Suppressed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suppressed
}
