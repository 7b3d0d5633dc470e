package ast

import (
	"rbcheck/internal/source"
)

// Tree is one desugared file: a root expression plus the arenas backing it.
type Tree struct {
	File  source.FileID
	Root  ExprID
	Exprs *Exprs
}

// NewTree creates an empty tree for file.
func NewTree(file source.FileID, capHint uint) *Tree {
	return &Tree{File: file, Exprs: NewExprs(capHint)}
}

// Children returns the direct sub-expressions of id in evaluation order.
func (t *Tree) Children(id ExprID) []ExprID {
	e := t.Exprs
	var out []ExprID
	add := func(ids ...ExprID) {
		for _, c := range ids {
			if c.IsValid() {
				out = append(out, c)
			}
		}
	}
	switch e.Kind(id) {
	case ExprConstantLit:
		// Original is kept for display only.
	case ExprUnresolvedConst:
		d, _ := e.UnresolvedConst(id)
		add(d.Scope)
	case ExprAssign:
		d, _ := e.Assign(id)
		add(d.LHS, d.RHS)
	case ExprSend:
		d, _ := e.Send(id)
		add(d.Recv)
		add(d.Args...)
		add(d.Block)
	case ExprBlock:
		d, _ := e.Block(id)
		for _, p := range d.Params {
			add(p.Default)
		}
		add(d.Body)
	case ExprIf:
		d, _ := e.If(id)
		add(d.Cond, d.Then, d.Else)
	case ExprWhile:
		d, _ := e.While(id)
		add(d.Cond, d.Body)
	case ExprBreak, ExprNext, ExprReturn:
		d, _ := e.Jump(id)
		add(d.Value)
	case ExprInsSeq:
		d, _ := e.InsSeq(id)
		add(d.Stats...)
		add(d.Expr)
	case ExprCast:
		d, _ := e.Cast(id)
		add(d.Value, d.Type)
	case ExprArray:
		d, _ := e.Array(id)
		add(d.Elems...)
	case ExprHash:
		d, _ := e.Hash(id)
		for i := range d.Keys {
			add(d.Keys[i], d.Values[i])
		}
	case ExprRescue:
		d, _ := e.Rescue(id)
		add(d.Body)
		add(d.Handlers...)
		add(d.Else, d.Ensure)
	case ExprMethodDef:
		d, _ := e.MethodDef(id)
		for _, p := range d.Params {
			add(p.Default)
		}
		add(d.Body)
	case ExprClassDef:
		d, _ := e.ClassDef(id)
		add(d.Name, d.Superclass)
		add(d.Body...)
	}
	return out
}

// Walk visits id and its descendants in pre-order. Returning false from
// visit skips the children of that node.
func (t *Tree) Walk(id ExprID, visit func(ExprID) bool) {
	if !id.IsValid() || !visit(id) {
		return
	}
	for _, c := range t.Children(id) {
		t.Walk(c, visit)
	}
}

// MethodDefs returns every method definition in the tree, outermost first.
func (t *Tree) MethodDefs() []ExprID {
	var out []ExprID
	t.Walk(t.Root, func(id ExprID) bool {
		if t.Exprs.Kind(id) == ExprMethodDef {
			out = append(out, id)
		}
		return true
	})
	return out
}

// ClassDefs returns every class or module definition in the tree.
func (t *Tree) ClassDefs() []ExprID {
	var out []ExprID
	t.Walk(t.Root, func(id ExprID) bool {
		if t.Exprs.Kind(id) == ExprClassDef {
			out = append(out, id)
		}
		return true
	})
	return out
}
