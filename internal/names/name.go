// Package names is the append-only name table of a global state.
//
// A NameRef is an index into the table. Interning is content addressed:
// entering the same content twice yields the same NameRef, and a NameRef
// never changes meaning once handed out. Index 0 is the empty name.
package names

import "fmt"

// NameRef is a stable handle into a Table.
type NameRef uint32

// Kind discriminates the three shapes of a name.
type Kind uint8

const (
	KindNone Kind = iota
	// KindUTF8 is raw interned text.
	KindUTF8
	// KindUnique is a compiler-synthesized name: (unique kind, original, num).
	KindUnique
	// KindConstant wraps another name to place it in the constant namespace.
	KindConstant
)

func (k Kind) String() string {
	switch k {
	case KindUTF8:
		return "utf8"
	case KindUnique:
		return "unique"
	case KindConstant:
		return "constant"
	default:
		return "none"
	}
}

// UniqueKind says which phase minted a unique name.
type UniqueKind uint8

const (
	UniqueNone UniqueKind = iota
	UniqueParser
	UniqueDesugar
	UniqueNamer
	UniqueSingleton
	UniqueOverload
	UniqueCFG
	UniqueDefaultArg
	UniqueMangleRename
	UniqueTypeVarName
)

var uniqueLetters = [...]string{
	UniqueNone:         "?",
	UniqueParser:       "P",
	UniqueDesugar:      "D",
	UniqueNamer:        "N",
	UniqueSingleton:    "S",
	UniqueOverload:     "O",
	UniqueCFG:          "Q",
	UniqueDefaultArg:   "DA",
	UniqueMangleRename: "M",
	UniqueTypeVarName:  "T",
}

func (k UniqueKind) String() string {
	if int(k) < len(uniqueLetters) {
		return uniqueLetters[k]
	}
	return fmt.Sprintf("UniqueKind(%d)", uint8(k))
}

// Name is the content behind a NameRef.
//
// For KindUTF8 only Text is set. For KindUnique Unique, Original and Num
// are set. For KindConstant Original is the wrapped name.
type Name struct {
	Kind     Kind
	Text     string
	Unique   UniqueKind
	Original NameRef
	Num      uint32
}

type uniqueKey struct {
	kind     UniqueKind
	original NameRef
	num      uint32
}
