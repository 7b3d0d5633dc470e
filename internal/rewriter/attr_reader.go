package rewriter

import (
	"strconv"
	"strings"
	"unicode"

	"rbcheck/internal/ast"
	"rbcheck/internal/diag"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
)

// attrReader replaces attr_reader / attr_writer / attr_accessor calls with
// the methods they define:
//
//	attr_accessor :foo
//
// becomes
//
//	def foo; @foo; end
//	def foo=(foo); @foo = foo; end
func (c *ctx) attrReader(owner ast.ExprID) {
	e := c.tree.Exprs
	old := *c.stats(owner)
	out := make([]ast.ExprID, 0, len(old))
	for _, id := range old {
		send, ok := e.Send(id)
		if !ok || !send.PrivateOk || send.Block.IsValid() {
			out = append(out, id)
			continue
		}
		makeReader := send.Fun == names.AttrReader || send.Fun == names.AttrAccessor
		makeWriter := send.Fun == names.AttrWriter || send.Fun == names.AttrAccessor
		if !makeReader && !makeWriter {
			out = append(out, id)
			continue
		}
		loc := e.Loc(id)
		for _, arg := range append([]ast.ExprID(nil), send.Args...) {
			name, argLoc, ok := c.attrName(arg)
			if !ok {
				continue
			}
			ivar := c.gs.Names.EnterUTF8("@" + c.gs.Names.Text(name))
			if makeReader {
				body := e.NewUnresolvedIdent(argLoc, ast.IdentInstance, ivar)
				out = append(out, c.synthesize(loc, argLoc, name, nil, body, PassAttrReader, name))
			}
			if makeWriter {
				setter := c.gs.Names.EnterUTF8(c.gs.Names.Text(name) + "=")
				lhs := e.NewUnresolvedIdent(argLoc, ast.IdentInstance, ivar)
				rhs := e.NewLocal(argLoc, name, 0)
				body := e.NewAssign(loc, lhs, rhs)
				params := []ast.Param{{Kind: ast.ParamRequired, Name: name, Loc: argLoc}}
				out = append(out, c.synthesize(loc, argLoc, setter, params, body, PassAttrWriter, name))
			}
		}
	}
	*c.stats(owner) = out
}

func (c *ctx) synthesize(loc, nameLoc source.Loc, name names.NameRef, params []ast.Param, body ast.ExprID, pass Pass, from names.NameRef) ast.ExprID {
	c.reg.record(name, Origin{Pass: pass, From: from, Loc: nameLoc})
	return c.tree.Exprs.NewMethodDef(loc, ast.ExprMethodDefData{
		Name:        name,
		NameLoc:     nameLoc,
		Params:      params,
		Body:        body,
		Synthesized: true,
	})
}

// attrName extracts the attribute name of one attr_* argument.
func (c *ctx) attrName(arg ast.ExprID) (names.NameRef, source.Loc, bool) {
	e := c.tree.Exprs
	loc := e.Loc(arg)
	lit, ok := e.Literal(arg)
	if ok && lit.Kind == ast.LitSymbol {
		// :foo -> foo
		if f := c.gs.Files.Get(loc.File()); f != nil && loc.Len() > 1 && strings.HasPrefix(loc.Source(c.gs.Files), ":") {
			loc = source.NewLoc(loc.File(), loc.Begin()+1, loc.End())
		}
		return lit.Text, loc, true
	}
	if ok && lit.Kind == ast.LitString {
		text := c.gs.Names.Text(lit.Text)
		if validAttr(text) {
			return lit.Text, loc, true
		}
		diag.ReportError(c.rep, diag.RewriterBadAttrArg, loc, "Bad attribute name "+strconv.Quote(text)).Emit()
		return names.NoName, loc, false
	}
	diag.ReportError(c.rep, diag.RewriterBadAttrArg, loc, "arg must be a Symbol or String").Emit()
	return names.NoName, loc, false
}

func validAttr(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
