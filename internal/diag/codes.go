package diag

import (
	"fmt"

	"rbcheck/internal/source"
)

type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Внутренние
	InternalError Code = 1001

	// Rewriter (DSL passes)
	RewriterBadWrapInstance       Code = 3502
	RewriterPrivateMethodMismatch Code = 3503
	RewriterBadDefaultArg         Code = 3504
	RewriterBadAttrArg            Code = 3505

	// Namer
	NamerModuleKindRedefinition Code = 4012
	NamerRedefinitionOfMethod   Code = 4010
	NamerInvalidClassOwner      Code = 4015

	// Resolver
	ResolverStubConstant       Code = 5002
	ResolverCircularSuperclass Code = 5011
	ResolverMixinNotModule     Code = 5012
	ResolverSuperclassNotClass Code = 5013

	// CFG
	CFGNoNextScope        Code = 6001
	CFGUndeclaredVariable Code = 6002
	CFGReturnExprVoid     Code = 6003

	// Inference
	InferUntypedValue   Code = 7018
	InferNotExhaustive  Code = 7026
	InferMethodNotFound Code = 7003
	InferArgCount       Code = 7004
)

type codeInfo struct {
	title  string
	strict source.StrictLevel
}

var codeTable = map[Code]codeInfo{
	UnknownCode:                   {"Unknown error", source.StrictNone},
	InternalError:                 {"Internal error", source.StrictNone},
	RewriterBadWrapInstance:       {"Unsupported wrap_instance call", source.StrictFalse},
	RewriterPrivateMethodMismatch: {"Use private_class_method to define private class methods", source.StrictFalse},
	RewriterBadDefaultArg:         {"Unsupported default argument", source.StrictFalse},
	RewriterBadAttrArg:            {"Argument to attr_* must be a Symbol or String", source.StrictFalse},
	NamerModuleKindRedefinition:   {"Redefining constant with a different kind", source.StrictFalse},
	NamerRedefinitionOfMethod:     {"Method redefined with a different signature", source.StrictTrue},
	NamerInvalidClassOwner:        {"Class or module defined inside a method", source.StrictFalse},
	ResolverStubConstant:          {"Unable to resolve constant", source.StrictFalse},
	ResolverCircularSuperclass:    {"Circular superclass dependency", source.StrictFalse},
	ResolverMixinNotModule:        {"Only modules can be included or extended", source.StrictFalse},
	ResolverSuperclassNotClass:    {"Superclass must be a class", source.StrictFalse},
	CFGNoNextScope:                {"No scope for next", source.StrictFalse},
	CFGUndeclaredVariable:         {"Use of undeclared variable", source.StrictStrict},
	CFGReturnExprVoid:             {"Expression does not produce a value", source.StrictTrue},
	InferUntypedValue:             {"Value is untyped", source.StrictStrong},
	InferNotExhaustive:            {"Control flow could reach T.absurd", source.StrictTrue},
	InferMethodNotFound:           {"Method does not exist", source.StrictTrue},
	InferArgCount:                 {"Wrong number of arguments", source.StrictTrue},
}

// ID is the stable short form used in golden output: a phase prefix and the number.
func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("INT%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("RWR%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("NMR%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("RSV%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("CFG%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("INF%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	info, ok := codeTable[c]
	if !ok {
		return codeTable[UnknownCode].title
	}
	return info.title
}

// StrictLevel is the minimum file strictness at which c is reported.
func (c Code) StrictLevel() source.StrictLevel {
	return codeTable[c].strict
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
