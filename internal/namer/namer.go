// Package namer enters the classes, modules, methods and fields a tree
// defines, then binds constant references with a trivial lexical lookup.
//
// It runs on the master GlobalState, single-threaded, before CFG
// construction. Unresolvable constants are reported and bound to
// StubModule so later phases never see an UnresolvedConst.
package namer

import (
	"fmt"

	"rbcheck/internal/ast"
	"rbcheck/internal/diag"
	"rbcheck/internal/global"
	"rbcheck/internal/names"
	"rbcheck/internal/symbols"
)

// Run names every tree. Classes of all trees are entered before any
// superclass, mixin, method or constant reference is resolved, so files may
// refer to each other in any order.
func Run(gs *global.GlobalState, trees []*ast.Tree, rep diag.Reporter) {
	defer gs.UnfreezeNameTable().Release()
	defer gs.UnfreezeSymbolTable().Release()

	namers := make([]*namer, 0, len(trees))
	for _, tree := range trees {
		n := &namer{gs: gs, tree: tree, rep: rep}
		n.enterClasses(tree.Root, rootScope())
		namers = append(namers, n)
	}
	for _, n := range namers {
		n.resolveHierarchy(n.tree.Root, rootScope())
	}
	for _, n := range namers {
		n.stat(n.tree.Root, rootScope())
	}
}

type namer struct {
	gs   *global.GlobalState
	tree *ast.Tree
	rep  diag.Reporter
}

// scope is the lexical context of an expression.
type scope struct {
	// lexical lists the enclosing class-likes, outermost (Root) first.
	lexical []symbols.SymbolRef
	// method is set inside a def body.
	method symbols.SymbolRef
	// self is the class whose instances self refers to.
	self symbols.SymbolRef
	// static is set at class level, where self is the class object itself.
	static bool
}

func rootScope() scope {
	return scope{lexical: []symbols.SymbolRef{symbols.Root}, self: symbols.Object}
}

func (s scope) class() symbols.SymbolRef { return s.lexical[len(s.lexical)-1] }

func (s scope) nest(cls symbols.SymbolRef) scope {
	lex := make([]symbols.SymbolRef, len(s.lexical), len(s.lexical)+1)
	copy(lex, s.lexical)
	return scope{lexical: append(lex, cls), self: cls, static: true}
}

func (n *namer) show(ref symbols.SymbolRef) string { return n.gs.ShowSymbol(ref) }

func (n *namer) enterClasses(id ast.ExprID, sc scope) {
	e := n.tree.Exprs
	switch e.Kind(id) {
	case ast.ExprInsSeq:
		seq, _ := e.InsSeq(id)
		for _, s := range seq.Stats {
			n.enterClasses(s, sc)
		}
	case ast.ExprClassDef:
		sym := n.enterClass(id, sc)
		cls, _ := e.ClassDef(id)
		cls.Symbol = sym
		inner := sc.nest(sym)
		for _, s := range append([]ast.ExprID(nil), cls.Body...) {
			n.enterClasses(s, inner)
		}
	}
}

func (n *namer) enterClass(id ast.ExprID, sc scope) symbols.SymbolRef {
	e := n.tree.Exprs
	cls, _ := e.ClassDef(id)
	kind, nameID, loc := cls.Kind, cls.Name, e.Loc(id)
	if lit, ok := e.ConstantLit(nameID); ok {
		// уже назван (повторный прогон)
		return lit.Symbol
	}
	c, _ := e.UnresolvedConst(nameID)
	name, scopeID := c.Name, c.Scope
	owner := sc.class()
	if scopeID.IsValid() {
		if s := n.bindConst(scopeID, sc); s.Exists() && s != symbols.StubModule && n.gs.Sym(s).IsClassOrModule() {
			owner = s
		}
	}

	want := symbols.KindClass
	if kind == ast.ClassKindModule {
		want = symbols.KindModule
	}
	if existing := n.gs.Symbols.FindMember(owner, name); existing.Exists() && n.gs.Sym(existing).Kind != want {
		prev := n.gs.Sym(existing)
		diag.ReportError(n.rep, diag.NamerModuleKindRedefinition, loc,
			fmt.Sprintf("Redefining constant `%s` as a %s", n.show(existing), want)).
			WithNote(prev.Loc(), "Previous definition as a "+prev.Kind.String()).
			Emit()
		n.gs.MangleRenameSymbol(existing)
	}

	var sym symbols.SymbolRef
	if want == symbols.KindModule {
		sym = n.gs.EnterModuleSymbol(loc, owner, name)
	} else {
		sym = n.gs.EnterClassSymbol(loc, owner, name)
	}
	e.ResolveConstant(nameID, sym)
	return sym
}

// resolveHierarchy binds superclasses and include/extend arguments.
func (n *namer) resolveHierarchy(id ast.ExprID, sc scope) {
	e := n.tree.Exprs
	switch e.Kind(id) {
	case ast.ExprInsSeq:
		seq, _ := e.InsSeq(id)
		for _, s := range seq.Stats {
			n.resolveHierarchy(s, sc)
		}
	case ast.ExprClassDef:
		cls, _ := e.ClassDef(id)
		sym, superID, body := cls.Symbol, cls.Superclass, append([]ast.ExprID(nil), cls.Body...)
		n.resolveSuperclass(sym, superID, sc)
		inner := sc.nest(sym)
		for _, s := range body {
			if send, ok := e.Send(s); ok && send.PrivateOk && (send.Fun == names.Include || send.Fun == names.Extend) {
				n.mixin(sym, s, inner)
				continue
			}
			n.resolveHierarchy(s, inner)
		}
		n.gs.Sym(sym).Flags |= symbols.FlagLinearizationComputed
	}
}

func (n *namer) resolveSuperclass(sym symbols.SymbolRef, superID ast.ExprID, sc scope) {
	cls := n.gs.Sym(sym)
	if cls.Kind != symbols.KindClass {
		return
	}
	if !superID.IsValid() {
		if !cls.Superclass.Exists() && sym != symbols.BasicObject {
			cls.Superclass = symbols.Object
		}
		return
	}
	loc := n.tree.Exprs.Loc(superID)
	super := n.bindConst(superID, sc)
	switch {
	case !super.Exists():
		// динамический суперкласс (Struct.new(...)) не разрешаем
		super = symbols.Object
	case super == symbols.StubModule:
		super = symbols.Object
	case n.gs.Sym(super).Kind != symbols.KindClass:
		diag.ReportError(n.rep, diag.ResolverSuperclassNotClass, loc,
			fmt.Sprintf("Superclass of `%s` must be a class, `%s` is a %s", n.show(sym), n.show(super), n.gs.Sym(super).Kind)).Emit()
		super = symbols.Object
	case super == sym || n.gs.Symbols.DerivesFrom(super, sym):
		diag.ReportError(n.rep, diag.ResolverCircularSuperclass, loc,
			fmt.Sprintf("Circular superclass: `%s` derives from `%s`", n.show(super), n.show(sym))).Emit()
		super = symbols.Object
	}
	cls = n.gs.Sym(sym)
	if cls.Superclass.Exists() && cls.Superclass != super && cls.Superclass != symbols.Object {
		// первое объявление побеждает
		return
	}
	cls.Superclass = super
}

func (n *namer) mixin(cls symbols.SymbolRef, sendID ast.ExprID, sc scope) {
	e := n.tree.Exprs
	send, _ := e.Send(sendID)
	fun, args := send.Fun, append([]ast.ExprID(nil), send.Args...)
	target := cls
	if fun == names.Extend {
		target = n.gs.SingletonClass(cls)
	}
	for _, arg := range args {
		kind := e.Kind(arg)
		if kind != ast.ExprUnresolvedConst && kind != ast.ExprConstantLit {
			continue
		}
		m := n.bindConst(arg, sc)
		if m == symbols.StubModule {
			continue
		}
		if n.gs.Sym(m).Kind != symbols.KindModule {
			diag.ReportError(n.rep, diag.ResolverMixinNotModule, e.Loc(arg),
				fmt.Sprintf("Only modules can be `%s`d, `%s` is a %s", n.gs.Show(fun), n.show(m), n.gs.Sym(m).Kind)).Emit()
			continue
		}
		t := n.gs.Sym(target)
		if !containsRef(t.Mixins, m) {
			t.Mixins = append(t.Mixins, m)
		}
	}
}

func containsRef(refs []symbols.SymbolRef, ref symbols.SymbolRef) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}

// lookup finds a constant lexically, then along the innermost class's
// ancestors, then at the root.
func (n *namer) lookup(sc scope, name names.NameRef) symbols.SymbolRef {
	for i := len(sc.lexical) - 1; i >= 0; i-- {
		if m := n.gs.Symbols.FindMember(sc.lexical[i], name); m.Exists() {
			return m
		}
	}
	if m := n.gs.Symbols.FindMemberTransitive(sc.class(), name); m.Exists() {
		return m
	}
	return n.gs.Symbols.FindMember(symbols.Root, name)
}

// bindConst resolves the constant expression at id in place and returns
// its symbol. A miss is reported once and binds StubModule.
func (n *namer) bindConst(id ast.ExprID, sc scope) symbols.SymbolRef {
	e := n.tree.Exprs
	if lit, ok := e.ConstantLit(id); ok {
		return lit.Symbol
	}
	c, ok := e.UnresolvedConst(id)
	if !ok {
		return symbols.NoSymbol
	}
	name, scopeID := c.Name, c.Scope
	var sym symbols.SymbolRef
	if scopeID.IsValid() {
		owner := n.bindConst(scopeID, sc)
		switch {
		case owner == symbols.StubModule:
			sym = symbols.StubModule
		case owner.Exists() && n.gs.Sym(owner).IsClassOrModule():
			sym = n.gs.Symbols.FindMemberTransitive(owner, name)
		}
	} else {
		sym = n.lookup(sc, name)
	}
	if !sym.Exists() {
		diag.ReportError(n.rep, diag.ResolverStubConstant, e.Loc(id),
			fmt.Sprintf("Unable to resolve constant `%s`", n.gs.Show(name))).Emit()
		sym = symbols.StubModule
	}
	e.ResolveConstant(id, sym)
	return sym
}
