package query

import (
	"fmt"
	"sort"
	"strings"

	"rbcheck/internal/cfg"
	"rbcheck/internal/global"
	"rbcheck/internal/infer"
	"rbcheck/internal/names"
	"rbcheck/internal/symbols"
)

// CompletionKind says what a completion item inserts.
type CompletionKind uint8

const (
	CompletionKeyword CompletionKind = iota + 1
	CompletionLocal
	CompletionMethod
)

func (k CompletionKind) String() string {
	switch k {
	case CompletionKeyword:
		return "keyword"
	case CompletionLocal:
		return "local"
	case CompletionMethod:
		return "method"
	}
	return "unknown"
}

// CompletionItem is one suggestion.
type CompletionItem struct {
	Label string
	Kind  CompletionKind
	// Detail is the qualified method name or a short keyword description.
	Detail string
	// Insert is a snippet with ${n} tab stops.
	Insert string
	// SortText orders items the way they are returned.
	SortText string
	Symbol   symbols.SymbolRef
}

// Ruby keywords, sorted.
var keywords = []string{
	"BEGIN", "END", "__ENCODING__", "__FILE__", "__LINE__", "alias", "and", "begin", "break",
	"case", "class", "def", "defined?", "do", "else", "elsif", "end", "ensure", "false", "for",
	"if", "in", "module", "next", "nil", "not", "or", "redo", "rescue", "retry", "return",
	"self", "super", "then", "true", "undef", "unless", "until", "when", "while", "yield",
}

// hasSimilarName is the completion filter: the typed prefix appears anywhere in name.
func hasSimilarName(name, prefix string) bool {
	return strings.Contains(name, prefix)
}

// Complete answers a completion request at off inside the method typed by
// res. The send whose method name covers off supplies the receiver and
// the prefix typed so far. Calls without an explicit receiver also offer
// keywords and locals, before methods.
func Complete(gs *global.GlobalState, res *infer.Result, off uint32) []CompletionItem {
	c := res.CFG
	id, idx, ok := sendAt(c, off)
	if !ok {
		return nil
	}
	bind := &c.Blocks[id].Exprs[idx]
	send := &bind.Value.Send
	prefix := gs.Names.Text(send.Fun)
	if typed := off - send.FunLoc.Begin(); int(typed) < len(prefix) {
		prefix = prefix[:typed]
	}

	var items []CompletionItem
	if send.IsPrivateOk {
		items = append(items, keywordItems(prefix)...)
		items = append(items, localItems(gs, c, prefix)...)
	}
	recv := localType(res, id, idx, send.Recv)
	items = append(items, methodItems(gs, recv, prefix, send.IsPrivateOk)...)
	for i := range items {
		items[i].SortText = fmt.Sprintf("%06d", i)
	}
	return items
}

func keywordItems(prefix string) []CompletionItem {
	var out []CompletionItem
	for _, kw := range keywords {
		if strings.HasPrefix(kw, prefix) {
			out = append(out, CompletionItem{Label: kw, Kind: CompletionKeyword, Detail: "(keyword)", Insert: kw})
		}
	}
	return out
}

func localItems(gs *global.GlobalState, c *cfg.CFG, prefix string) []CompletionItem {
	seen := make(map[string]bool)
	var out []CompletionItem
	for i := range c.Locals {
		ref := cfg.LocalRef(i) // #nosec G115 -- bounded by Locals
		if c.IsTemp(gs.Names, ref) {
			continue
		}
		name := gs.Names.Text(c.Local(ref).Name)
		if name == "" || seen[name] || !hasSimilarName(name, prefix) {
			continue
		}
		seen[name] = true
		out = append(out, CompletionItem{Label: name, Kind: CompletionLocal, Detail: "(local)", Insert: name})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Label < out[b].Label })
	return out
}

type methodCandidate struct {
	ref   symbols.SymbolRef
	name  string
	depth int
}

// methodItems lists methods reachable on recv, nearest ancestor first.
// A name shadowed by a nearer ancestor is listed once.
func methodItems(gs *global.GlobalState, recv infer.Type, prefix string, privateOk bool) []CompletionItem {
	var chain []symbols.SymbolRef
	switch recv.Kind {
	case infer.TypeInstance:
		chain = gs.Symbols.Ancestors(recv.Class)
	case infer.TypeClassOf:
		for cur := recv.Class; cur.Exists(); cur = gs.Sym(cur).Superclass {
			if single := gs.LookupSingletonClass(cur); single.Exists() {
				chain = append(chain, single)
			}
		}
		chain = append(chain, gs.Symbols.Ancestors(symbols.Class)...)
	default:
		return nil
	}

	seen := make(map[names.NameRef]bool)
	var cands []methodCandidate
	for depth, owner := range chain {
		for _, ref := range gs.Sym(owner).Members {
			m := gs.Sym(ref)
			if !m.IsMethod() || seen[m.Name] || gs.Names.IsSynthetic(m.Name) {
				continue
			}
			seen[m.Name] = true
			if m.Has(symbols.FlagPrivate) && !privateOk {
				continue
			}
			name := gs.Show(m.Name)
			if !hasSimilarName(name, prefix) {
				continue
			}
			cands = append(cands, methodCandidate{ref: ref, name: name, depth: depth})
		}
	}
	sort.SliceStable(cands, func(a, b int) bool {
		x, y := cands[a], cands[b]
		if x.depth != y.depth {
			return x.depth < y.depth
		}
		xp, yp := strings.HasPrefix(x.name, prefix), strings.HasPrefix(y.name, prefix)
		if xp != yp {
			return xp
		}
		if x.name != y.name {
			return x.name < y.name
		}
		return x.ref < y.ref
	})

	out := make([]CompletionItem, 0, len(cands))
	for _, cand := range cands {
		out = append(out, CompletionItem{
			Label:  cand.name,
			Kind:   CompletionMethod,
			Detail: gs.ShowSymbol(cand.ref),
			Insert: methodSnippet(gs, cand.ref),
			Symbol: cand.ref,
		})
	}
	return out
}

// methodSnippet renders "name(${1}, key: ${2})${0}". Block and defaulted
// arguments get no tab stop.
func methodSnippet(gs *global.GlobalState, ref symbols.SymbolRef) string {
	m := gs.Sym(ref)
	var args []string
	stop := 1
	for _, a := range m.Arguments {
		if a.IsBlock() || a.IsDefault() {
			continue
		}
		if a.IsKeyword() {
			args = append(args, fmt.Sprintf("%s: ${%d}", gs.Names.Text(a.Name), stop))
		} else {
			args = append(args, fmt.Sprintf("${%d}", stop))
		}
		stop++
	}
	name := gs.Show(m.Name)
	if len(args) == 0 {
		return name + "${0}"
	}
	return name + "(" + strings.Join(args, ", ") + ")${0}"
}

// localType is the type of ref just before binding idx of block id: the
// last write earlier in the block, or the join of every write in the CFG.
func localType(res *infer.Result, id cfg.BlockID, idx int, ref cfg.LocalRef) infer.Type {
	exprs := res.CFG.Blocks[id].Exprs
	for i := idx - 1; i >= 0; i-- {
		if exprs[i].Bind == ref {
			return res.TypeOf(id, i)
		}
	}
	t := infer.Bottom
	for _, bid := range res.CFG.ForwardsTopoSort {
		for i, b := range res.CFG.Blocks[bid].Exprs {
			if b.Bind == ref {
				t = infer.Join(t, res.TypeOf(bid, i))
			}
		}
	}
	return t
}
