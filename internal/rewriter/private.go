package rewriter

import (
	"rbcheck/internal/ast"
	"rbcheck/internal/diag"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
)

// private unwraps `private def m`, `private_class_method def self.m` and
// `protected def m` into the bare definition, flagging it private. Using
// the wrong wrapper for the def's receiver is reported with a fix.
func (c *ctx) private(owner ast.ExprID) {
	e := c.tree.Exprs
	for i, id := range *c.stats(owner) {
		send, ok := e.Send(id)
		if !ok || len(send.Args) != 1 || !send.PrivateOk || send.Block.IsValid() {
			continue
		}
		if send.Fun != names.Private && send.Fun != names.PrivateClassMethod && send.Fun != names.Protected {
			continue
		}
		def, ok := e.MethodDef(send.Args[0])
		if !ok {
			continue
		}
		loc := e.Loc(id)
		switch {
		case send.Fun == names.Private && def.IsSelf:
			c.mismatch(loc, "private_class_method", "class", len("private"))
		case send.Fun == names.PrivateClassMethod && !def.IsSelf:
			c.mismatch(loc, "private", "instance", len("private_class_method"))
		}
		def.Private = send.Fun != names.Protected
		(*c.stats(owner))[i] = send.Args[0]
	}
}

func (c *ctx) mismatch(loc source.Loc, want, kind string, keywordLen int) {
	end := min(loc.Begin()+uint32(keywordLen), loc.End()) // #nosec G115 -- keyword lengths are tiny
	replace := source.NewLoc(loc.File(), loc.Begin(), end)
	diag.ReportError(c.rep, diag.RewriterPrivateMethodMismatch, loc,
		"Use `"+want+"` to define private "+kind+" methods").
		WithFix("Replace with `"+want+"`", diag.FixEdit{Loc: replace, NewText: want}).
		Emit()
}
