package source

import (
	"os"
	"path/filepath"
	"testing"

	"rbcheck/internal/enforce"
)

func expectFault(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if _, ok := enforce.AsFault(recover()); !ok {
			t.Fatal("expected an internal consistency fault")
		}
	}()
	fn()
}

func TestFileSetReservesSlotZero(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.rb", []byte("x"))
	if id != 1 {
		t.Fatalf("first file id = %d, want 1", id)
	}
	if fs.Get(0) != nil {
		t.Fatal("slot 0 must stay empty")
	}
	if fs.Get(7) != nil {
		t.Fatal("out of range id must return nil")
	}
}

func TestFileSetVersioning(t *testing.T) {
	fs := NewFileSet()
	id1 := fs.Add("test.rb", []byte("hello world"), 0)
	id2 := fs.Add("test.rb", []byte("hello universe"), 0)
	if id1 == id2 {
		t.Fatal("re-adding a path must allocate a new id")
	}
	latest, ok := fs.GetLatest("test.rb")
	if !ok || latest != id2 {
		t.Fatalf("GetLatest = %d,%v; want %d", latest, ok, id2)
	}
	// старая версия остаётся доступной
	if string(fs.Get(id1).Content) != "hello world" {
		t.Fatalf("old content lost: %q", fs.Get(id1).Content)
	}
}

func TestFileSetFrozenAddFaults(t *testing.T) {
	fs := NewFileSet()
	fs.SetFrozen(true)
	expectFault(t, func() { fs.AddVirtual("a.rb", nil) })
}

func TestEnterAtFillsNotYetRead(t *testing.T) {
	src := NewFileSet()
	id := src.AddVirtual("a.rb", []byte("1"))

	dst := NewFileSet()
	reserved := dst.Reserve("a.rb")
	if reserved != id {
		t.Fatalf("reserved id %d, want %d", reserved, id)
	}
	dst.EnterAt(src.Get(id), id)
	if dst.Get(id) != src.Get(id) {
		t.Fatal("EnterAt must share the *File")
	}
	expectFault(t, func() { dst.EnterAt(src.Get(id), id) })
}

func TestEnterAtGrowsTable(t *testing.T) {
	dst := NewFileSet()
	f := &File{ID: 3, Path: "c.rb"}
	dst.EnterAt(f, 3)
	if dst.Len() != 4 {
		t.Fatalf("len = %d, want 4", dst.Len())
	}
	if dst.Get(2) != nil {
		t.Fatal("gap slot should be empty")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	fs := NewFileSet()
	fs.AddVirtual("a.rb", []byte("a"))
	cp := fs.Clone()
	cp.AddVirtual("b.rb", []byte("b"))
	if fs.Len() != 2 || cp.Len() != 3 {
		t.Fatalf("lens: orig=%d clone=%d", fs.Len(), cp.Len())
	}
	if fs.Get(1) != cp.Get(1) {
		t.Fatal("files are shared between clones")
	}
}

func TestSetStrictDoesNotLeakIntoClones(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.rb", nil)
	cp := fs.Clone()
	fs.SetStrict(id, StrictStrict)
	if fs.Get(id).Strict != StrictStrict {
		t.Fatalf("strict = %v", fs.Get(id).Strict)
	}
	if cp.Get(id).Strict != StrictTrue {
		t.Fatalf("clone strict changed to %v", cp.Get(id).Strict)
	}
}

func TestLoadNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.rb")
	if err := os.WriteFile(path, []byte("\xEF\xBB\xBFa\r\nb\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	fs := NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	f := fs.Get(id)
	if string(f.Content) != "a\nb\n" {
		t.Fatalf("content %q", f.Content)
	}
	if f.Flags&FileHadBOM == 0 || f.Flags&FileNormalizedCRLF == 0 {
		t.Fatalf("flags %b", f.Flags)
	}
	if _, err := fs.Load(filepath.Join(dir, "missing.rb")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGetLine(t *testing.T) {
	fs := NewFileSet()
	f := fs.Get(fs.AddVirtual("a.rb", []byte("one\ntwo\nthree")))
	for i, want := range []string{"", "one", "two", "three", ""} {
		if got := f.GetLine(uint32(i)); got != want {
			t.Errorf("line %d = %q, want %q", i, got, want)
		}
	}
}
