package ast

import "rbcheck/internal/names"

// NameSubst maps names of one universe into another.
type NameSubst interface {
	Substitute(names.NameRef) names.NameRef
}

// Substitute rewrites every NameRef held by the tree. Trees decoded or
// rewritten on a worker copy go through here before the master sees them.
func (t *Tree) Substitute(subst NameSubst) {
	e := t.Exprs
	for i := range e.Literals.data {
		if d := &e.Literals.data[i]; d.Kind == LitString || d.Kind == LitSymbol {
			d.Text = subst.Substitute(d.Text)
		}
	}
	for i := range e.Locals.data {
		e.Locals.data[i].Name = subst.Substitute(e.Locals.data[i].Name)
	}
	for i := range e.Idents.data {
		e.Idents.data[i].Name = subst.Substitute(e.Idents.data[i].Name)
	}
	for i := range e.Consts.data {
		e.Consts.data[i].Name = subst.Substitute(e.Consts.data[i].Name)
	}
	for i := range e.Sends.data {
		e.Sends.data[i].Fun = subst.Substitute(e.Sends.data[i].Fun)
	}
	for i := range e.Blocks.data {
		substParams(e.Blocks.data[i].Params, subst)
	}
	for i := range e.Methods.data {
		d := &e.Methods.data[i]
		d.Name = subst.Substitute(d.Name)
		substParams(d.Params, subst)
	}
}

func substParams(ps []Param, subst NameSubst) {
	for i := range ps {
		ps[i].Name = subst.Substitute(ps[i].Name)
	}
}
