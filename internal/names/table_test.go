package names

import (
	"testing"

	"rbcheck/internal/enforce"
)

func TestInterningIsIdempotent(t *testing.T) {
	tbl := NewTable()
	for _, text := range []string{"foo", "Bar", "<weird>", "ünïcode", ""} {
		a := tbl.EnterUTF8(text)
		b := tbl.EnterUTF8(text)
		if a != b {
			t.Errorf("EnterUTF8(%q) returned %d then %d", text, a, b)
		}
	}
	foo := tbl.EnterUTF8("foo")
	if tbl.EnterConstant(foo) != tbl.EnterConstant(foo) {
		t.Error("EnterConstant is not idempotent")
	}
	if tbl.EnterUnique(UniqueDefaultArg, foo, 2) != tbl.EnterUnique(UniqueDefaultArg, foo, 2) {
		t.Error("EnterUnique is not idempotent")
	}
	if tbl.EnterUnique(UniqueDefaultArg, foo, 2) == tbl.EnterUnique(UniqueDefaultArg, foo, 3) {
		t.Error("different nums must give different names")
	}
}

func TestWellKnownNames(t *testing.T) {
	tbl := NewTable()
	if tbl.Len() != WellKnownCount {
		t.Fatalf("fresh table len = %d, want %d", tbl.Len(), WellKnownCount)
	}
	if got, _ := tbl.LookupUTF8("<static-init>"); got != StaticInit {
		t.Fatalf("<static-init> = %d, want %d", got, StaticInit)
	}
	if got, _ := tbl.LookupConstant(Object); got != ConstObject {
		t.Fatalf("constant Object = %d, want %d", got, ConstObject)
	}
	if err := tbl.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestShowRaw(t *testing.T) {
	tbl := NewTable()
	bar := tbl.EnterUTF8("Bar")
	tests := []struct {
		ref  NameRef
		want string
	}{
		{bar, "<U Bar>"},
		{tbl.EnterConstant(bar), "<C <U Bar>>"},
		{tbl.EnterUTF8("test new name"), "<U test new name>"},
		{tbl.EnterUnique(UniqueNamer, bar, 1), "<N <U Bar> $1>"},
		{tbl.EnterUnique(UniqueSingleton, bar, 1), "<S <U Bar> $1>"},
	}
	for _, tt := range tests {
		if got := tbl.ShowRaw(tt.ref); got != tt.want {
			t.Errorf("ShowRaw(%d) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestShow(t *testing.T) {
	tbl := NewTable()
	foo := tbl.EnterUTF8("foo")
	tests := []struct {
		ref  NameRef
		want string
	}{
		{foo, "foo"},
		{tbl.EnterConstant(foo), "foo"},
		{tbl.EnterUnique(UniqueCFG, foo, 4), "foo"},
		{tbl.EnterUnique(UniqueOverload, foo, 1), "foo (overload.1)"},
		{tbl.EnterUnique(UniqueSingleton, tbl.EnterConstant(foo), 1), "<Class:foo>"},
	}
	for _, tt := range tests {
		if got := tbl.Show(tt.ref); got != tt.want {
			t.Errorf("Show = %q, want %q", got, tt.want)
		}
	}
}

func TestFrozenTableFaultsOnlyOnAppend(t *testing.T) {
	tbl := NewTable()
	foo := tbl.EnterUTF8("foo")
	tbl.SetFrozen(true)
	if tbl.EnterUTF8("foo") != foo {
		t.Fatal("existing names are still reachable when frozen")
	}
	defer func() {
		if _, ok := enforce.AsFault(recover()); !ok {
			t.Fatal("expected fault")
		}
	}()
	tbl.EnterUTF8("bar")
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := NewTable()
	cp := tbl.Clone()
	added := cp.EnterUTF8("only-in-copy")
	if _, ok := tbl.LookupUTF8("only-in-copy"); ok {
		t.Fatal("clone leaked into original")
	}
	if tbl.Len() == cp.Len() {
		t.Fatal("lengths should differ")
	}
	if cp.Text(added) != "only-in-copy" {
		t.Fatal("bad text")
	}
	if err := cp.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestIsSynthetic(t *testing.T) {
	tbl := NewTable()
	foo := tbl.EnterUTF8("foo")
	if tbl.IsSynthetic(foo) {
		t.Error("foo is a user name")
	}
	if !tbl.IsSynthetic(BlockCall) {
		t.Error("<blockCall> is synthetic")
	}
	if !tbl.IsSynthetic(tbl.EnterUnique(UniqueDefaultArg, foo, 0)) {
		t.Error("unique names are synthetic")
	}
}
