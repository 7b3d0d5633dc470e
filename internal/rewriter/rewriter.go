// Package rewriter expands DSL calls in a desugared tree into plain
// definitions before the namer sees it. Default arguments become
// synthesized methods; attr_* calls and flatfile fields become accessors.
// Private def wrappers are unwrapped, and wrap_instance becomes a T.let.
package rewriter

import (
	"rbcheck/internal/ast"
	"rbcheck/internal/diag"
	"rbcheck/internal/global"
)

// Run applies every pass to tree. It takes the name table guard itself.
func Run(gs *global.GlobalState, tree *ast.Tree, rep diag.Reporter) {
	defer gs.UnfreezeNameTable().Release()
	reg := RegistryOf(gs)
	c := &ctx{gs: gs, tree: tree, rep: rep, reg: reg}

	owners := c.owners()
	c.wrapInstance()
	for _, owner := range owners {
		c.private(owner)
		c.attrReader(owner)
		c.flatfiles(owner)
		c.defaultArgs(owner)
	}
}

type ctx struct {
	gs   *global.GlobalState
	tree *ast.Tree
	rep  diag.Reporter
	reg  *Registry
}

// owners returns the nodes whose statement lists passes may append to: the
// file's top-level sequence and every class body. A non-sequence root is
// wrapped first.
func (c *ctx) owners() []ast.ExprID {
	e := c.tree.Exprs
	if !c.tree.Root.IsValid() {
		return nil
	}
	if e.Kind(c.tree.Root) != ast.ExprInsSeq {
		loc := e.Loc(c.tree.Root)
		nilLit := e.NewLiteral(loc.CopyEndWithZeroLength(), ast.ExprLiteralData{Kind: ast.LitNil})
		c.tree.Root = e.NewInsSeq(loc, []ast.ExprID{c.tree.Root}, nilLit)
	}
	return append([]ast.ExprID{c.tree.Root}, c.tree.ClassDefs()...)
}

// stats returns the statement list of owner. The pointer is only valid
// until the next allocation in the tree.
func (c *ctx) stats(owner ast.ExprID) *[]ast.ExprID {
	if seq, ok := c.tree.Exprs.InsSeq(owner); ok {
		return &seq.Stats
	}
	cls, _ := c.tree.Exprs.ClassDef(owner)
	return &cls.Body
}
