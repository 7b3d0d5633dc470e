package global

import (
	"rbcheck/internal/enforce"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

// enter returns owner's member called name when it already has the wanted
// kind, else appends a new symbol. A member of a different kind is a fault;
// the namer checks for that case and mangles the old symbol first.
func (gs *GlobalState) enter(loc source.Loc, owner symbols.SymbolRef, name names.NameRef, kind symbols.Kind) symbols.SymbolRef {
	enforce.That(gs.Names.Exists(name), "entering symbol with missing name %d", name)
	if existing := gs.Symbols.FindMember(owner, name); existing.Exists() {
		sym := gs.Symbols.Get(existing)
		enforce.That(sym.Kind == kind, "%s is a %s, not a %s", gs.ShowSymbol(existing), sym.Kind, kind)
		sym.AddLoc(loc)
		return existing
	}
	sym := symbols.Symbol{Name: name, Owner: owner, Kind: kind}
	sym.AddLoc(loc)
	return gs.Symbols.Append(sym)
}

func (gs *GlobalState) requireClassLike(owner symbols.SymbolRef, what string) {
	enforce.That(owner.Exists() && int(owner) < gs.Symbols.Len(), "%s: owner %d does not exist", what, owner)
	enforce.That(gs.Symbols.Get(owner).IsClassOrModule(), "%s: owner %s is not class-like", what, gs.ShowSymbol(owner))
}

func (gs *GlobalState) requireConstantName(name names.NameRef, what string) {
	enforce.That(gs.Names.Exists(name) && gs.Names.Get(name).Kind == names.KindConstant,
		"%s: name %s is not a constant name", what, gs.Names.ShowRaw(name))
}

// EnterClassSymbol enters (or finds) a class named name inside owner.
// The superclass stays unset until the namer resolves it.
func (gs *GlobalState) EnterClassSymbol(loc source.Loc, owner symbols.SymbolRef, name names.NameRef) symbols.SymbolRef {
	gs.requireClassLike(owner, "enterClassSymbol")
	gs.requireConstantName(name, "enterClassSymbol")
	return gs.enter(loc, owner, name, symbols.KindClass)
}

// EnterModuleSymbol enters (or finds) a module named name inside owner.
func (gs *GlobalState) EnterModuleSymbol(loc source.Loc, owner symbols.SymbolRef, name names.NameRef) symbols.SymbolRef {
	gs.requireClassLike(owner, "enterModuleSymbol")
	gs.requireConstantName(name, "enterModuleSymbol")
	return gs.enter(loc, owner, name, symbols.KindModule)
}

// EnterMethodSymbol enters (or finds) a method named name on owner.
func (gs *GlobalState) EnterMethodSymbol(loc source.Loc, owner symbols.SymbolRef, name names.NameRef) symbols.SymbolRef {
	gs.requireClassLike(owner, "enterMethodSymbol")
	enforce.That(gs.Names.Get(name).Kind != names.KindConstant, "enterMethodSymbol: %s is a constant name", gs.Names.ShowRaw(name))
	return gs.enter(loc, owner, name, symbols.KindMethod)
}

// EnterFieldSymbol enters an instance or class variable on owner.
func (gs *GlobalState) EnterFieldSymbol(loc source.Loc, owner symbols.SymbolRef, name names.NameRef) symbols.SymbolRef {
	gs.requireClassLike(owner, "enterFieldSymbol")
	return gs.enter(loc, owner, name, symbols.KindField)
}

// EnterStaticFieldSymbol enters a non-class constant such as A = 1.
func (gs *GlobalState) EnterStaticFieldSymbol(loc source.Loc, owner symbols.SymbolRef, name names.NameRef) symbols.SymbolRef {
	gs.requireClassLike(owner, "enterStaticFieldSymbol")
	gs.requireConstantName(name, "enterStaticFieldSymbol")
	return gs.enter(loc, owner, name, symbols.KindStaticField)
}

// EnterTypeMember enters a generic type member on a class-like owner.
func (gs *GlobalState) EnterTypeMember(loc source.Loc, owner symbols.SymbolRef, name names.NameRef, variance symbols.Variance) symbols.SymbolRef {
	gs.requireClassLike(owner, "enterTypeMember")
	gs.requireConstantName(name, "enterTypeMember")
	ref := gs.enter(loc, owner, name, symbols.KindTypeMember)
	gs.Symbols.Get(ref).Variance = variance
	return ref
}

// EnterTypeArgument enters a generic type parameter of a method.
func (gs *GlobalState) EnterTypeArgument(loc source.Loc, owner symbols.SymbolRef, name names.NameRef, variance symbols.Variance) symbols.SymbolRef {
	enforce.That(owner.Exists() && int(owner) < gs.Symbols.Len(), "enterTypeArgument: owner %d does not exist", owner)
	enforce.That(gs.Symbols.Get(owner).IsMethod(), "enterTypeArgument: owner %s is not a method", gs.ShowSymbol(owner))
	ref := gs.enter(loc, owner, name, symbols.KindTypeArgument)
	sym := gs.Symbols.Get(ref)
	sym.Variance = variance
	m := gs.Symbols.Get(owner)
	for _, p := range m.TypeParams {
		if p == ref {
			return ref
		}
	}
	m.TypeParams = append(m.TypeParams, ref)
	return ref
}

// EnterMethodArgument appends a formal parameter to method and returns its index.
// Re-entering a parameter with the same name returns the existing index.
func (gs *GlobalState) EnterMethodArgument(method symbols.SymbolRef, arg symbols.ArgInfo) int {
	enforce.That(!gs.Symbols.Frozen(), "symbol table is frozen")
	m := gs.Symbols.Get(method)
	enforce.That(m.IsMethod(), "enterMethodArgument: %s is not a method", gs.ShowSymbol(method))
	for i, a := range m.Arguments {
		if a.Name == arg.Name {
			return i
		}
	}
	m.Arguments = append(m.Arguments, arg)
	return len(m.Arguments) - 1
}

// SingletonClass returns the singleton class of a class-like symbol,
// creating it on first use. Needs both the name and symbol tables unfrozen
// the first time.
func (gs *GlobalState) SingletonClass(ref symbols.SymbolRef) symbols.SymbolRef {
	gs.requireClassLike(ref, "singletonClass")
	sym := gs.Symbols.Get(ref)
	if sym.Singleton.Exists() {
		return sym.Singleton
	}
	enforce.That(!sym.Attached.Exists(), "singleton of singleton %s", gs.ShowSymbol(ref))
	name := gs.Names.EnterUnique(names.UniqueSingleton, sym.Name, 1)
	single := gs.enter(sym.Loc(), sym.Owner, name, symbols.KindClass)
	// после Append указатель sym мог устареть
	sym = gs.Symbols.Get(ref)
	sym.Singleton = single
	s := gs.Symbols.Get(single)
	s.Attached = ref
	s.Superclass = symbols.Class
	s.Flags |= symbols.FlagLinearizationComputed
	return single
}

// LookupSingletonClass is SingletonClass without creation.
func (gs *GlobalState) LookupSingletonClass(ref symbols.SymbolRef) symbols.SymbolRef {
	return gs.Symbols.Get(ref).Singleton
}

// MangleRenameSymbol moves ref out of the way under a fresh unique name so
// its old name can be entered again. Returns the new name.
func (gs *GlobalState) MangleRenameSymbol(ref symbols.SymbolRef) names.NameRef {
	sym := gs.Symbols.Get(ref)
	owner := sym.Owner
	for num := uint32(1); ; num++ {
		name := gs.Names.EnterUnique(names.UniqueMangleRename, sym.Name, num)
		if !gs.Symbols.FindMember(owner, name).Exists() {
			gs.Symbols.Rename(ref, name)
			return name
		}
	}
}
