package names

// Well-known UTF8 names, entered by NewTable in this exact order so their
// NameRefs are identical in every table.
const (
	NoName NameRef = iota
	RootName
	SelfLocal
	BlockCall
	Unconditional
	FinalReturn
	ReturnMethodTemp
	StatTemp
	BlockTemp
	BlockPassTemp
	StaticInit
	Magic
	SquareBrackets
	SquareBracketsEq
	BuildArray
	BuildHash
	Initialize
	New
	Call
	Absurd
	Let
	Cast
	Must
	Unsafe
	Private
	PrivateClassMethod
	Protected
	Public
	AttrReader
	AttrWriter
	AttrAccessor
	Sig
	Returns
	Params
	Void
	Untyped
	Include
	Extend
	Puts
	WrapInstance
	Flatfile
	From
	Field
	Pattern
	Arg0
	Block
	Object
	BasicObject
	Kernel
	Module
	Class
	NilClass
	TrueClass
	FalseClass
	Integer
	Float
	String
	Symbol
	T
	StubModule
	Array
	Hash
	Proc
	Comparable
	StandardError
	numUTF8
)

var wellKnownText = [numUTF8]string{
	NoName:             "",
	RootName:           "<root>",
	SelfLocal:          "<self>",
	BlockCall:          "<blockCall>",
	Unconditional:      "<unconditional>",
	FinalReturn:        "<finalReturn>",
	ReturnMethodTemp:   "<returnMethodTemp>",
	StatTemp:           "<statTemp>",
	BlockTemp:          "<block>",
	BlockPassTemp:      "<blockPassTemp>",
	StaticInit:         "<static-init>",
	Magic:              "<Magic>",
	SquareBrackets:     "[]",
	SquareBracketsEq:   "[]=",
	BuildArray:         "<build-array>",
	BuildHash:          "<build-hash>",
	Initialize:         "initialize",
	New:                "new",
	Call:               "call",
	Absurd:             "absurd",
	Let:                "let",
	Cast:               "cast",
	Must:               "must",
	Unsafe:             "unsafe",
	Private:            "private",
	PrivateClassMethod: "private_class_method",
	Protected:          "protected",
	Public:             "public",
	AttrReader:         "attr_reader",
	AttrWriter:         "attr_writer",
	AttrAccessor:       "attr_accessor",
	Sig:                "sig",
	Returns:            "returns",
	Params:             "params",
	Void:               "void",
	Untyped:            "untyped",
	Include:            "include",
	Extend:             "extend",
	Puts:               "puts",
	WrapInstance:       "wrap_instance",
	Flatfile:           "flatfile",
	From:               "from",
	Field:              "field",
	Pattern:            "pattern",
	Arg0:               "arg0",
	Block:              "blk",
	Object:             "Object",
	BasicObject:        "BasicObject",
	Kernel:             "Kernel",
	Module:             "Module",
	Class:              "Class",
	NilClass:           "NilClass",
	TrueClass:          "TrueClass",
	FalseClass:         "FalseClass",
	Integer:            "Integer",
	Float:              "Float",
	String:             "String",
	Symbol:             "Symbol",
	T:                  "T",
	StubModule:         "StubModule",
	Array:              "Array",
	Hash:               "Hash",
	Proc:               "Proc",
	Comparable:         "Comparable",
	StandardError:      "StandardError",
}

// Well-known constant names, entered right after the UTF8 ones.
const (
	ConstObject NameRef = numUTF8 + iota
	ConstBasicObject
	ConstKernel
	ConstModule
	ConstClass
	ConstNilClass
	ConstTrueClass
	ConstFalseClass
	ConstInteger
	ConstFloat
	ConstString
	ConstSymbol
	ConstT
	ConstStubModule
	ConstArray
	ConstHash
	ConstProc
	ConstComparable
	ConstStandardError
	ConstRoot
	ConstMagic
	numWellKnown
)

var wellKnownConst = [numWellKnown - numUTF8]NameRef{
	ConstObject - numUTF8:        Object,
	ConstBasicObject - numUTF8:   BasicObject,
	ConstKernel - numUTF8:        Kernel,
	ConstModule - numUTF8:        Module,
	ConstClass - numUTF8:         Class,
	ConstNilClass - numUTF8:      NilClass,
	ConstTrueClass - numUTF8:     TrueClass,
	ConstFalseClass - numUTF8:    FalseClass,
	ConstInteger - numUTF8:       Integer,
	ConstFloat - numUTF8:         Float,
	ConstString - numUTF8:        String,
	ConstSymbol - numUTF8:        Symbol,
	ConstT - numUTF8:             T,
	ConstStubModule - numUTF8:    StubModule,
	ConstArray - numUTF8:         Array,
	ConstHash - numUTF8:          Hash,
	ConstProc - numUTF8:          Proc,
	ConstComparable - numUTF8:    Comparable,
	ConstStandardError - numUTF8: StandardError,
	ConstRoot - numUTF8:          RootName,
	ConstMagic - numUTF8:         Magic,
}

// WellKnownCount is the number of names every fresh table starts with.
const WellKnownCount = int(numWellKnown)
