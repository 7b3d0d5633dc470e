package rewriter

import (
	"rbcheck/internal/ast"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
)

const untypedSig = "T.untyped"

// flatfiles gives every field of a flatfile block an untyped reader and
// writer on the enclosing class:
//
//	flatfile do
//	  from 1..2, :foo
//	  pattern(/A-Z/, :bar)
//	  field :baz
//	end
//
// adds foo, foo=, bar, bar=, baz and baz=. The block itself stays. Modules
// and the file's top level are skipped.
func (c *ctx) flatfiles(owner ast.ExprID) {
	e := c.tree.Exprs
	cls, ok := e.ClassDef(owner)
	if !ok || cls.Kind != ast.ClassKindClass {
		return
	}
	var fields []ast.ExprID
	for _, id := range cls.Body {
		send, ok := e.Send(id)
		if !ok || send.Fun != names.Flatfile || !send.Block.IsValid() {
			continue
		}
		blk, _ := e.Block(send.Block)
		if seq, ok := e.InsSeq(blk.Body); ok {
			fields = append(fields, seq.Stats...)
			fields = append(fields, seq.Expr)
		} else {
			fields = append(fields, blk.Body)
		}
	}

	var added []ast.ExprID
	for _, id := range fields {
		name, ok := c.flatfileField(id)
		if !ok {
			continue
		}
		loc := e.Loc(id)
		getter := c.synthesize(loc, loc, name, nil, nilAt(e, loc), PassFlatfile, name)
		def, _ := e.MethodDef(getter)
		def.Sig = &ast.Sig{Returns: untypedSig}

		setterName := c.gs.Names.EnterUTF8(c.gs.Names.Text(name) + "=")
		params := []ast.Param{{Kind: ast.ParamRequired, Name: names.Arg0, Loc: loc}}
		setter := c.synthesize(loc, loc, setterName, params, nilAt(e, loc), PassFlatfile, name)
		def, _ = e.MethodDef(setter)
		def.Sig = &ast.Sig{Params: map[string]string{"arg0": untypedSig}, Returns: untypedSig}

		added = append(added, getter, setter)
	}
	if len(added) > 0 {
		cls, _ = e.ClassDef(owner)
		cls.Body = append(cls.Body, added...)
	}
}

// flatfileField reads the field name of one `from`, `field` or `pattern`
// line: the first argument when it is a symbol, else the second.
func (c *ctx) flatfileField(id ast.ExprID) (names.NameRef, bool) {
	e := c.tree.Exprs
	send, ok := e.Send(id)
	if !ok || len(send.Args) == 0 || e.Kind(send.Recv) != ast.ExprSelf {
		return names.NoName, false
	}
	if send.Fun != names.From && send.Fun != names.Field && send.Fun != names.Pattern {
		return names.NoName, false
	}
	for _, arg := range send.Args[:min(2, len(send.Args))] {
		if lit, ok := e.Literal(arg); ok && lit.Kind == ast.LitSymbol {
			return lit.Text, true
		}
	}
	return names.NoName, false
}

func nilAt(e *ast.Exprs, loc source.Loc) ast.ExprID {
	return e.NewLiteral(loc, ast.ExprLiteralData{Kind: ast.LitNil})
}
