package rewriter

import (
	"rbcheck/internal/ast"
	"rbcheck/internal/names"
)

type defKey struct {
	name   names.NameRef
	isSelf bool
}

// defaultArgs moves each default value out of its parameter into a
// synthesized method named <DA m $n>, taking the same parameters. The
// parameter stays optional. Overloaded methods (several sigs for one
// name) and abstract methods are left alone.
func (c *ctx) defaultArgs(owner ast.ExprID) {
	e := c.tree.Exprs
	sigs := make(map[defKey]int)
	for _, id := range *c.stats(owner) {
		if def, ok := e.MethodDef(id); ok && def.Sig != nil {
			sigs[defKey{def.Name, def.IsSelf}]++
		}
	}

	var added []ast.ExprID
	for _, id := range *c.stats(owner) {
		def, ok := e.MethodDef(id)
		if !ok || def.Synthesized || sigs[defKey{def.Name, def.IsSelf}] > 1 {
			continue
		}
		if def.Sig != nil && def.Sig.Abstract {
			continue
		}
		num := uint32(1)
		for i := range def.Params {
			p := def.Params[i]
			if !p.Default.IsValid() {
				continue
			}
			name := c.gs.Names.EnterUnique(names.UniqueDefaultArg, def.Name, num)
			num++
			params := make([]ast.Param, len(def.Params))
			for j, q := range def.Params {
				q.Default = ast.NoExprID
				params[j] = q
			}
			synth := ast.ExprMethodDefData{
				Name:        name,
				NameLoc:     e.Loc(p.Default),
				Params:      params,
				Body:        p.Default,
				IsSelf:      def.IsSelf,
				Private:     def.Private,
				Synthesized: true,
			}
			if def.Sig != nil {
				if typ, ok := def.Sig.Params[c.gs.Names.Text(p.Name)]; ok {
					synth.Sig = &ast.Sig{Params: def.Sig.Params, Returns: typ}
				}
			}
			def.Params[i].Default = ast.NoExprID
			c.reg.record(name, Origin{Pass: PassDefaultArgs, From: def.Name, Loc: synth.NameLoc})
			added = append(added, e.NewMethodDef(synth.NameLoc, synth))
			// NewMethodDef may have moved the arena
			def, _ = e.MethodDef(id)
		}
	}
	if len(added) > 0 {
		stats := c.stats(owner)
		*stats = append(*stats, added...)
	}
}
