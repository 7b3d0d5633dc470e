package global

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

type recordingExt struct {
	merges int
	seen   []names.NameRef
	watch  []names.NameRef
}

func (e *recordingExt) Name() string { return "recording" }

func (e *recordingExt) Merge(from, to *GlobalState, subst *Substitution) {
	e.merges++
	for _, n := range e.watch {
		e.seen = append(e.seen, subst.Substitute(n))
	}
}

func (e *recordingExt) DeepCopy() Extension {
	cp := *e
	return &cp
}

func withFastPathVerification(t *testing.T) {
	old := VerifyFastPath
	VerifyFastPath = true
	t.Cleanup(func() { VerifyFastPath = old })
}

func TestSubstitutionFastPathIsIdentity(t *testing.T) {
	withFastPathVerification(t)
	master := New()
	base := master.DeepCopy()
	worker := base.DeepCopy()

	subst := NewSubstitution(worker, master, base)
	require.True(t, subst.UseFastPath())
	for i := 0; i < worker.Names.Len(); i++ {
		ref := names.NameRef(i)
		assert.Equal(t, ref, subst.Substitute(ref))
	}
}

func TestSubstitutionSlowPathPreservesContent(t *testing.T) {
	master := New()
	base := master.DeepCopy()

	// master получает имена от другого воркера
	func() {
		defer master.UnfreezeNameTable().Release()
		master.Names.EnterUTF8("from-other-worker")
		master.Names.EnterUTF8("shared")
	}()

	worker := base.DeepCopy()
	var fresh []names.NameRef
	func() {
		defer worker.UnfreezeNameTable().Release()
		shared := worker.Names.EnterUTF8("shared")
		fresh = append(fresh,
			shared,
			worker.Names.EnterUTF8("only-worker"),
			worker.Names.EnterConstant(shared),
			worker.Names.EnterUnique(names.UniqueCFG, shared, 3),
		)
		fresh = append(fresh, worker.Names.EnterUnique(names.UniqueDefaultArg, fresh[3], 1))
	}()

	subst := NewSubstitution(worker, master, base)
	require.False(t, subst.UseFastPath())
	for i := 1; i < worker.Names.Len(); i++ {
		ref := names.NameRef(i)
		got := subst.Substitute(ref)
		assert.Equal(t, worker.Names.ShowRaw(ref), master.Names.ShowRaw(got), "name %d", i)
	}
	for i := 0; i < base.Names.Len(); i++ {
		assert.Equal(t, names.NameRef(i), subst.Substitute(names.NameRef(i)), "pre-existing names keep their index")
	}
	sharedInMaster, _ := master.Names.LookupUTF8("shared")
	assert.Equal(t, sharedInMaster, subst.Substitute(fresh[0]))
	require.NoError(t, master.SanityCheck())
}

func TestSubstitutionWithoutParentTakesSlowPath(t *testing.T) {
	master := New()
	worker := master.DeepCopy()
	subst := NewSubstitution(worker, master, nil)
	assert.False(t, subst.UseFastPath())
	assert.Equal(t, names.ConstObject, subst.Substitute(names.ConstObject))
}

func TestSubstitutionCopiesFiles(t *testing.T) {
	master := New()
	var reserved source.FileID
	func() {
		defer master.UnfreezeFileTable().Release()
		master.Files.AddVirtual("a.rb", []byte("a"))
		reserved = master.Files.Reserve("b.rb")
	}()
	base := master.DeepCopy()

	worker := base.DeepCopy()
	var filled *source.File
	var added source.FileID
	func() {
		defer worker.UnfreezeFileTable().Release()
		filled = &source.File{ID: reserved, Path: "b.rb", Content: []byte("b"), Type: source.Normal}
		worker.Files.EnterAt(filled, reserved)
		added = worker.Files.AddVirtual("c.rb", []byte("c"))
	}()

	NewSubstitution(worker, master, base)
	assert.Same(t, filled, master.Files.Get(reserved))
	assert.Same(t, worker.Files.Get(added), master.Files.Get(added))
	assert.True(t, master.Files.Frozen(), "file table is frozen again after merge")
}

func TestSubstitutionRunsExtensions(t *testing.T) {
	master := New()
	ext := &recordingExt{}
	master.AddExtension(ext)
	base := master.DeepCopy()
	worker := base.DeepCopy()
	func() {
		defer worker.UnfreezeNameTable().Release()
		ext.watch = []names.NameRef{worker.Names.EnterUTF8("tracked")}
	}()
	NewSubstitution(worker, master, base)
	require.Equal(t, 1, ext.merges)
	tracked, ok := master.Names.LookupUTF8("tracked")
	require.True(t, ok)
	assert.Equal(t, []names.NameRef{tracked}, ext.seen)
	assert.NotSame(t, ext, worker.Extension("recording"), "deep copy clones extensions")
}

func TestSubstitutionSymbolDivergenceIsFatal(t *testing.T) {
	master := New()
	worker := master.DeepCopy()
	func() {
		defer worker.UnfreezeAll().Release()
		worker.EnterClassSymbol(source.Loc(0), symbols.Root, constName(worker, "Extra"))
	}()
	requireFault(t, func() { NewSubstitution(worker, master, nil) })
}

func TestSubstitutionSymbolNameMismatchIsFatal(t *testing.T) {
	master := New()
	worker := master.DeepCopy()
	func() {
		defer master.UnfreezeAll().Release()
		master.EnterClassSymbol(source.Loc(0), symbols.Root, constName(master, "InMaster"))
	}()
	func() {
		defer worker.UnfreezeAll().Release()
		worker.EnterClassSymbol(source.Loc(0), symbols.Root, constName(worker, "InWorker"))
	}()
	requireFault(t, func() { NewSubstitution(worker, master, nil) })
}
