package query

import (
	"bytes"
	"strings"

	"rbcheck/internal/global"
	"rbcheck/internal/infer"
	"rbcheck/internal/symbols"
)

// Signature describes the method being called at a cursor.
type Signature struct {
	Symbol symbols.SymbolRef
	// Label is the qualified method name with its parameter list.
	Label  string
	Params []string
	// Active indexes Params; it may run past the end for surplus arguments.
	Active int
	// Doc renders the parameter list with the active one in bold markdown.
	Doc string
}

// SignatureHelp finds the innermost call around off and the method it
// resolves to. The active parameter is the number of commas between the
// end of the method name and the cursor. src is the file's text.
func SignatureHelp(gs *global.GlobalState, res *infer.Result, src []byte, off uint32) (*Signature, bool) {
	c := res.CFG
	id, idx, ok := enclosingSend(c, off)
	if !ok {
		return nil, false
	}
	send := &c.Blocks[id].Exprs[idx].Value.Send
	method := infer.Lookup(gs, localType(res, id, idx, send.Recv), send.Fun)
	if !method.Exists() {
		return nil, false
	}

	active := 0
	if from := send.FunLoc.End(); send.FunLoc.Exists() && from <= off && int(off) <= len(src) {
		active = bytes.Count(src[from:off], []byte{','})
	}
	m := gs.Sym(method)
	sig := &Signature{Symbol: method, Active: active}
	doc := make([]string, 0, len(m.Arguments))
	for i, a := range m.Arguments {
		p := paramLabel(gs, a)
		sig.Params = append(sig.Params, p)
		if i == active {
			p = "**_" + p + "_**"
		}
		doc = append(doc, p)
	}
	sig.Label = gs.ShowSymbol(method) + "(" + strings.Join(sig.Params, ", ") + ")"
	sig.Doc = "(" + strings.Join(doc, ", ") + ")"
	return sig, true
}

func paramLabel(gs *global.GlobalState, a symbols.ArgInfo) string {
	name := gs.Names.Text(a.Name)
	switch {
	case a.IsBlock():
		name = "&" + name
	case a.IsRepeated() && a.IsKeyword():
		name = "**" + name
	case a.IsRepeated():
		name = "*" + name
	case a.IsKeyword():
		name += ":"
	}
	if a.Type != "" {
		name += " " + a.Type
	}
	return name
}
