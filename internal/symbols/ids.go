package symbols

// SymbolRef identifies a symbol inside a Table.
type SymbolRef uint32

// NoSymbol marks the absence of a symbol reference.
const NoSymbol SymbolRef = 0

// Exists reports whether the ref points at an allocated symbol.
func (ref SymbolRef) Exists() bool { return ref != NoSymbol }

// Well-known symbols. symbols.NewTable enters them in this order so the
// refs are identical in every table.
const (
	Root SymbolRef = iota + 1
	BasicObject
	Object
	Kernel
	Module
	Class
	NilClass
	TrueClass
	FalseClass
	Integer
	Float
	String
	// Sym is the Symbol class.
	Sym
	T
	StubModule
	Array
	Hash
	Proc
	Comparable
	StandardError
	// Magic receives the synthetic sends that build array and hash literals.
	Magic
	numWellKnown
)

// WellKnownCount is the table length (sentinel included) of a fresh table.
const WellKnownCount = int(numWellKnown)
