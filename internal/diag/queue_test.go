package diag

import (
	"sync"
	"testing"

	"rbcheck/internal/source"
)

func TestQueueFiltersByFileStrictness(t *testing.T) {
	fs := source.NewFileSet()
	lax := fs.AddVirtual("lax.rb", []byte("x"))
	strict := fs.AddVirtual("strict.rb", []byte("x"))
	fs.SetStrict(strict, source.StrictStrict)

	q := NewQueue(fs)
	ReportError(q, CFGUndeclaredVariable, source.NewLoc(lax, 0, 1), "dropped").Emit()
	ReportError(q, CFGUndeclaredVariable, source.NewLoc(strict, 0, 1), "kept").Emit()
	ReportError(q, CFGNoNextScope, source.NewLoc(lax, 0, 1), "kept too").Emit()

	if q.Len() != 2 || q.Suppressed() != 1 {
		t.Fatalf("len=%d suppressed=%d", q.Len(), q.Suppressed())
	}
	got := q.Drain()
	if len(got) != 2 || q.Len() != 0 {
		t.Fatalf("drain returned %d, left %d", len(got), q.Len())
	}
}

func TestQueueConcurrentReports(t *testing.T) {
	q := NewQueue(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Report(InternalError, SevError, 0, "boom", nil, nil)
			}
		}()
	}
	wg.Wait()
	if q.Len() != 800 {
		t.Fatalf("len = %d", q.Len())
	}
}

func TestBagSortDedupAndLimit(t *testing.T) {
	b := NewBag(3)
	l1 := source.NewLoc(1, 5, 6)
	l0 := source.NewLoc(1, 0, 1)
	b.Add(NewError(CFGReturnExprVoid, l1, "b"))
	b.Add(NewError(CFGNoNextScope, l0, "a"))
	b.Add(NewError(CFGNoNextScope, l0, "a"))
	if b.Add(NewError(CFGNoNextScope, l0, "over")) {
		t.Fatal("limit not enforced")
	}
	b.Sort()
	b.Dedup()
	if b.Len() != 2 || b.Items()[0].Primary != l0 {
		t.Fatalf("items %+v", b.Items())
	}
	if b.Count(CFGNoNextScope) != 1 || !b.HasErrors() {
		t.Fatal("count/has-errors")
	}
}

func TestDedupReporter(t *testing.T) {
	b := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: b})
	for i := 0; i < 3; i++ {
		r.Report(CFGNoNextScope, SevError, source.NewLoc(1, 0, 1), "same", nil, nil)
	}
	if b.Len() != 1 {
		t.Fatalf("len = %d", b.Len())
	}
}
