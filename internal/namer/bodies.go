package namer

import (
	"fmt"

	"rbcheck/internal/ast"
	"rbcheck/internal/diag"
	"rbcheck/internal/names"
	"rbcheck/internal/symbols"
)

// stat names a statement at file or class level.
func (n *namer) stat(id ast.ExprID, sc scope) {
	e := n.tree.Exprs
	switch e.Kind(id) {
	case ast.ExprInsSeq:
		seq, _ := e.InsSeq(id)
		stats, last := append([]ast.ExprID(nil), seq.Stats...), seq.Expr
		for _, s := range stats {
			n.stat(s, sc)
		}
		n.expr(last, sc)
	case ast.ExprClassDef:
		n.classBody(id, sc)
	case ast.ExprMethodDef:
		n.method(id, sc)
	default:
		n.expr(id, sc)
	}
}

func (n *namer) classBody(id ast.ExprID, sc scope) {
	e := n.tree.Exprs
	cls, _ := e.ClassDef(id)
	if !cls.Symbol.Exists() {
		// класс внутри выражения: первые два прохода его не видели
		sym := n.enterClass(id, sc)
		cls, _ = e.ClassDef(id)
		cls.Symbol = sym
		n.resolveHierarchy(id, sc)
		cls, _ = e.ClassDef(id)
	}
	sym, super, body := cls.Symbol, cls.Superclass, append([]ast.ExprID(nil), cls.Body...)
	if super.IsValid() && e.Kind(super) != ast.ExprConstantLit {
		n.expr(super, sc)
	}
	inner := sc.nest(sym)
	for _, s := range body {
		if send, ok := e.Send(s); ok && send.PrivateOk && (send.Fun == names.Include || send.Fun == names.Extend) {
			continue
		}
		n.stat(s, inner)
	}
}

func argFlags(kind ast.ParamKind) symbols.ArgFlags {
	switch kind {
	case ast.ParamOptional:
		return symbols.ArgDefault
	case ast.ParamRest:
		return symbols.ArgRepeated
	case ast.ParamKeyword:
		return symbols.ArgKeyword
	case ast.ParamOptionalKeyword:
		return symbols.ArgKeyword | symbols.ArgDefault
	case ast.ParamBlock:
		return symbols.ArgBlock
	}
	return 0
}

func (n *namer) argInfos(def *ast.ExprMethodDefData) []symbols.ArgInfo {
	out := make([]symbols.ArgInfo, 0, len(def.Params))
	for _, p := range def.Params {
		info := symbols.ArgInfo{Name: p.Name, Loc: p.Loc, Flags: argFlags(p.Kind)}
		if def.Sig != nil {
			info.Type = def.Sig.Params[n.gs.Names.Text(p.Name)]
		}
		out = append(out, info)
	}
	return out
}

func sameArity(a, b []symbols.ArgInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Flags != b[i].Flags {
			return false
		}
	}
	return true
}

// method enters the symbol for a def and names its body.
func (n *namer) method(id ast.ExprID, sc scope) {
	e := n.tree.Exprs
	def, _ := e.MethodDef(id)
	loc := e.Loc(id)
	owner := sc.class()
	if owner == symbols.Root {
		owner = symbols.Object
	}
	if def.IsSelf {
		owner = n.gs.SingletonClass(owner)
	}
	args := n.argInfos(def)

	if existing := n.gs.Symbols.FindMember(owner, def.Name); existing.Exists() {
		prev := n.gs.Sym(existing)
		if prev.IsMethod() && !sameArity(prev.Arguments, args) {
			diag.ReportError(n.rep, diag.NamerRedefinitionOfMethod, loc,
				fmt.Sprintf("Method `%s` redefined without matching argument count. Expected: `%d`, got: `%d`",
					n.show(existing), len(prev.Arguments), len(args))).
				WithNote(prev.Loc(), "Previous definition").
				Emit()
			n.gs.MangleRenameSymbol(existing)
		}
	}

	sym := n.gs.EnterMethodSymbol(loc, owner, def.Name)
	if len(n.gs.Sym(sym).Arguments) == 0 {
		for _, a := range args {
			n.gs.EnterMethodArgument(sym, a)
		}
	}
	m := n.gs.Sym(sym)
	if def.Private {
		m.Flags |= symbols.FlagPrivate
	}
	if def.Synthesized {
		m.Flags |= symbols.FlagRewriterSynthesized
	}
	if sig := def.Sig; sig != nil {
		if sig.Abstract {
			m.Flags |= symbols.FlagAbstract
		}
		if sig.Override {
			m.Flags |= symbols.FlagOverride
		}
		if sig.Overridable {
			m.Flags |= symbols.FlagOverridable
		}
		if sig.Final {
			m.Flags |= symbols.FlagFinal
		}
		m.ResultType = sig.Returns
		if sig.Void {
			m.ResultType = "void"
		}
	}

	def, _ = e.MethodDef(id)
	def.Symbol = sym
	body := scope{lexical: sc.lexical, method: sym, self: owner}
	defaults := make([]ast.ExprID, 0, len(def.Params))
	for _, p := range def.Params {
		if p.Default.IsValid() {
			defaults = append(defaults, p.Default)
		}
	}
	bodyID := def.Body
	for _, d := range defaults {
		n.expr(d, body)
	}
	n.expr(bodyID, body)
}

// fieldOwner is the class-like an instance, class or global variable of
// the given kind belongs to in scope sc.
func (n *namer) fieldOwner(kind ast.IdentKind, sc scope) symbols.SymbolRef {
	switch kind {
	case ast.IdentGlobal:
		return symbols.Root
	case ast.IdentClass:
		cls := sc.class()
		if cls == symbols.Root {
			return symbols.Object
		}
		return cls
	}
	if sc.static {
		return n.gs.SingletonClass(sc.self)
	}
	return sc.self
}

// expr names everything below id: constant references, casts, field
// writes and nested definitions.
func (n *namer) expr(id ast.ExprID, sc scope) {
	e := n.tree.Exprs
	switch e.Kind(id) {
	case ast.ExprEmpty, ast.ExprConstantLit:
		return
	case ast.ExprUnresolvedConst:
		n.bindConst(id, sc)
		return
	case ast.ExprClassDef:
		if sc.method.Exists() {
			diag.ReportError(n.rep, diag.NamerInvalidClassOwner, e.Loc(id),
				fmt.Sprintf("Class definition inside method `%s`", n.show(sc.method))).Emit()
			return
		}
		n.classBody(id, sc)
		return
	case ast.ExprMethodDef:
		outer := sc
		outer.method = symbols.NoSymbol
		n.method(id, outer)
		return
	case ast.ExprSend:
		n.castSend(id, sc)
	case ast.ExprAssign:
		n.assign(id, sc)
	}
	for _, c := range n.tree.Children(id) {
		n.expr(c, sc)
	}
}

func (n *namer) assign(id ast.ExprID, sc scope) {
	e := n.tree.Exprs
	a, _ := e.Assign(id)
	lhs := a.LHS
	if ident, ok := e.UnresolvedIdent(lhs); ok && ident.Kind != ast.IdentLocal {
		n.gs.EnterFieldSymbol(e.Loc(lhs), n.fieldOwner(ident.Kind, sc), ident.Name)
		return
	}
	c, ok := e.UnresolvedConst(lhs)
	if !ok || sc.method.Exists() {
		return
	}
	owner, name := sc.class(), c.Name
	if c.Scope.IsValid() {
		s := n.bindConst(c.Scope, sc)
		if !s.Exists() || s == symbols.StubModule || !n.gs.Sym(s).IsClassOrModule() {
			e.ResolveConstant(lhs, symbols.StubModule)
			return
		}
		owner = s
	}
	if existing := n.gs.Symbols.FindMember(owner, name); existing.Exists() && n.gs.Sym(existing).Kind != symbols.KindStaticField {
		prev := n.gs.Sym(existing)
		diag.ReportError(n.rep, diag.NamerModuleKindRedefinition, e.Loc(lhs),
			fmt.Sprintf("Redefining constant `%s` as a static-field", n.show(existing))).
			WithNote(prev.Loc(), "Previous definition as a "+prev.Kind.String()).
			Emit()
		n.gs.MangleRenameSymbol(existing)
	}
	sym := n.gs.EnterStaticFieldSymbol(e.Loc(lhs), owner, name)
	e.ResolveConstant(lhs, sym)
}

// castSend rewrites T.let / T.cast / T.must / T.unsafe into casts.
// T.absurd stays a send; the CFG builder handles it.
func (n *namer) castSend(id ast.ExprID, sc scope) {
	e := n.tree.Exprs
	send, _ := e.Send(id)
	recv, fun, args := send.Recv, send.Fun, send.Args
	if k := e.Kind(recv); k != ast.ExprUnresolvedConst && k != ast.ExprConstantLit {
		return
	}
	var kind ast.CastKind
	want := 1
	switch fun {
	case names.Let:
		kind, want = ast.CastLet, 2
	case names.Cast:
		kind, want = ast.CastCast, 2
	case names.Must:
		kind = ast.CastMust
	case names.Unsafe:
		kind = ast.CastUnsafe
	default:
		return
	}
	if len(args) != want || n.bindConst(recv, sc) != symbols.T {
		return
	}
	typ := ast.NoExprID
	if want == 2 {
		typ = args[1]
	}
	e.ReplaceWithCast(id, kind, args[0], typ)
}
