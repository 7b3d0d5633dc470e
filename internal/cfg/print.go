package cfg

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"rbcheck/internal/ast"
	"rbcheck/internal/global"
	"rbcheck/internal/symbols"
)

// DumpOptions control Dump.
type DumpOptions struct {
	// Raw prints instructions and names in their structural form.
	Raw bool
}

// Dump writes a text form of c, one block per paragraph in ID order.
func Dump(w io.Writer, gs *global.GlobalState, c *CFG, opts DumpOptions) error {
	if c == nil {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "method %s {\n", gs.ShowSymbol(c.Symbol))
	for _, bb := range c.Blocks {
		sb.WriteString("\n")
		dumpBlock(&sb, gs, c, bb, opts)
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// String renders c the way Dump does.
func (c *CFG) String(gs *global.GlobalState) string {
	var sb strings.Builder
	if err := Dump(&sb, gs, c, DumpOptions{}); err != nil {
		return ""
	}
	return sb.String()
}

func dumpBlock(sb *strings.Builder, gs *global.GlobalState, c *CFG, bb *BasicBlock, opts DumpOptions) {
	fmt.Fprintf(sb, "bb%d(", bb.ID)
	for i, a := range bb.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.showLocal(gs, a, opts.Raw))
	}
	sb.WriteString(")")
	if bb.RubyBlockID != 0 {
		fmt.Fprintf(sb, "[rubyBlockId=%d]", bb.RubyBlockID)
	}
	sb.WriteString(":")
	if len(bb.BackEdges) > 0 {
		sb.WriteString(" # preds:")
		for _, p := range bb.BackEdges {
			fmt.Fprintf(sb, " bb%d", p)
		}
	}
	if bb.Has(FlagLoopHeader) {
		sb.WriteString(" loop")
	}
	if bb.IsDead() {
		sb.WriteString(" dead")
	}
	sb.WriteString("\n")

	for i := range bb.Exprs {
		bind := &bb.Exprs[i]
		rhs := bind.Value.Show(gs, c)
		if opts.Raw {
			rhs = bind.Value.ShowRaw(gs, c)
		}
		fmt.Fprintf(sb, "    %s = %s\n", c.showLocal(gs, bind.Bind, opts.Raw), rhs)
	}

	exit := bb.Exit
	if bb.ID == DeadBlock {
		sb.WriteString("    <unconditional> -> bb1\n")
		return
	}
	if exit.IsConditional() {
		fmt.Fprintf(sb, "    %s -> (bb%d, bb%d)\n", c.showLocal(gs, exit.Cond, opts.Raw), exit.Then, exit.Else)
		return
	}
	fmt.Fprintf(sb, "    <unconditional> -> bb%d\n", exit.Then)
}

func (c *CFG) showLocal(gs *global.GlobalState, ref LocalRef, raw bool) string {
	v := c.Local(ref)
	if !raw {
		return v.show(gs.Names)
	}
	if v.Unique == 0 {
		return gs.Names.ShowRaw(v.Name)
	}
	return fmt.Sprintf("%s$%d", gs.Names.ShowRaw(v.Name), v.Unique)
}

func (c *CFG) showLocals(gs *global.GlobalState, refs []LocalRef, raw bool) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = c.showLocal(gs, r, raw)
	}
	return strings.Join(parts, ", ")
}

func showType(gs *global.GlobalState, sym symbols.SymbolRef) string {
	if !sym.Exists() {
		return "T.untyped"
	}
	return gs.ShowSymbol(sym)
}

func (in *Instr) showLiteral(gs *global.GlobalState, raw bool) string {
	l := &in.Literal
	text := gs.Show
	if raw {
		text = gs.Names.ShowRaw
	}
	switch l.Kind {
	case ast.LitNil, ast.LitTrue, ast.LitFalse:
		return l.Kind.String()
	case ast.LitInt:
		return fmt.Sprintf("literal(%d)", l.Int)
	case ast.LitFloat:
		return "literal(" + strconv.FormatFloat(l.Float, 'g', -1, 64) + ")"
	case ast.LitString:
		if raw {
			return "literal(" + text(l.Text) + ")"
		}
		return "literal(" + strconv.Quote(text(l.Text)) + ")"
	case ast.LitSymbol:
		return "literal(:" + text(l.Text) + ")"
	}
	return "literal(?)"
}

func showLink(gs *global.GlobalState, link *SendAndBlockLink) string {
	if link == nil {
		return ""
	}
	return fmt.Sprintf("%s#%d", gs.Show(link.Fun), link.BlockID)
}

// Show renders the right-hand side of a binding in the form used by
// dumps and golden tests.
func (in *Instr) Show(gs *global.GlobalState, c *CFG) string {
	switch in.Kind {
	case InstrIdent:
		return c.showLocal(gs, in.Ident.What, false)
	case InstrAlias:
		return "alias " + gs.ShowSymbol(in.Alias.What)
	case InstrSend:
		s := &in.Send
		out := fmt.Sprintf("%s.%s(%s)", c.showLocal(gs, s.Recv, false), gs.Show(s.Fun), c.showLocals(gs, s.Args, false))
		if s.Link != nil {
			out += fmt.Sprintf(" do<%d>", s.Link.BlockID)
		}
		return out
	case InstrReturn:
		return "return " + c.showLocal(gs, in.Return.What, false)
	case InstrBlockReturn:
		return fmt.Sprintf("blockreturn<%s> %s", showLink(gs, in.BlockReturn.Link), c.showLocal(gs, in.BlockReturn.What, false))
	case InstrLoadSelf:
		if in.LoadSelf.Link == nil {
			return "loadSelf"
		}
		return fmt.Sprintf("loadSelf(%s)", showLink(gs, in.LoadSelf.Link))
	case InstrLoadArg:
		args := gs.Sym(in.LoadArg.Method).Arguments
		if i := in.LoadArg.ArgIndex; i >= 0 && i < len(args) {
			return fmt.Sprintf("load_arg(%s)", gs.Show(args[i].Name))
		}
		return fmt.Sprintf("load_arg(%d)", in.LoadArg.ArgIndex)
	case InstrLoadYieldParams:
		return fmt.Sprintf("load_yield_params(%s)", showLink(gs, in.LoadYieldParams.Link))
	case InstrLiteral:
		return in.showLiteral(gs, false)
	case InstrCast:
		return fmt.Sprintf("cast(%s, %s, %s)", c.showLocal(gs, in.Cast.Value, false), showType(gs, in.Cast.Type), in.Cast.Kind)
	case InstrTAbsurd:
		return fmt.Sprintf("T.absurd(%s)", c.showLocal(gs, in.TAbsurd.What, false))
	case InstrSolveConstraint:
		return fmt.Sprintf("Solve<%s, %s>", c.showLocal(gs, in.SolveConstraint.Send, false), showLink(gs, in.SolveConstraint.Link))
	case InstrUnanalyzable:
		return "<unanalyzable>"
	case InstrNotSupported:
		return fmt.Sprintf("NotSupported(%s)", in.NotSupported.Why)
	}
	return "<unknown>"
}

// ShowRaw renders the instruction with its kind and structural names.
func (in *Instr) ShowRaw(gs *global.GlobalState, c *CFG) string {
	local := func(ref LocalRef) string { return c.showLocal(gs, ref, true) }
	switch in.Kind {
	case InstrIdent:
		return fmt.Sprintf("Ident{what = %s}", local(in.Ident.What))
	case InstrAlias:
		return fmt.Sprintf("Alias{what = %s}", gs.ShowSymbol(in.Alias.What))
	case InstrSend:
		s := &in.Send
		block := "none"
		if s.Link != nil {
			block = strconv.Itoa(s.Link.BlockID)
		}
		return fmt.Sprintf("Send{recv = %s, fun = %s, args = (%s), privateOk = %t, block = %s}",
			local(s.Recv), gs.Names.ShowRaw(s.Fun), c.showLocals(gs, s.Args, true), s.IsPrivateOk, block)
	case InstrReturn:
		return fmt.Sprintf("Return{what = %s}", local(in.Return.What))
	case InstrBlockReturn:
		return fmt.Sprintf("BlockReturn{link = %s, what = %s}", showLink(gs, in.BlockReturn.Link), local(in.BlockReturn.What))
	case InstrLoadSelf:
		return fmt.Sprintf("LoadSelf{link = %s, fallback = %s}", showLink(gs, in.LoadSelf.Link), local(in.LoadSelf.Fallback))
	case InstrLoadArg:
		return fmt.Sprintf("LoadArg{method = %s, index = %d}", gs.ShowSymbol(in.LoadArg.Method), in.LoadArg.ArgIndex)
	case InstrLoadYieldParams:
		return fmt.Sprintf("LoadYieldParams{link = %s}", showLink(gs, in.LoadYieldParams.Link))
	case InstrLiteral:
		return fmt.Sprintf("Literal{%s, class = %s}", in.showLiteral(gs, true), gs.ShowSymbol(in.Literal.Sym))
	case InstrCast:
		return fmt.Sprintf("Cast{value = %s, type = %s, kind = %s}", local(in.Cast.Value), showType(gs, in.Cast.Type), in.Cast.Kind)
	case InstrTAbsurd:
		return fmt.Sprintf("TAbsurd{what = %s}", local(in.TAbsurd.What))
	case InstrSolveConstraint:
		return fmt.Sprintf("SolveConstraint{send = %s, link = %s}", local(in.SolveConstraint.Send), showLink(gs, in.SolveConstraint.Link))
	case InstrUnanalyzable:
		return "Unanalyzable{}"
	case InstrNotSupported:
		return fmt.Sprintf("NotSupported{why = %q}", in.NotSupported.Why)
	}
	return "Unknown{}"
}
