package query

import (
	"sort"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"rbcheck/internal/global"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

const (
	// MaxWorkspaceSymbols caps WorkspaceSymbols when limit <= 0.
	MaxWorkspaceSymbols = 50
	maxLocsPerSymbol    = 10
)

// SymbolInfo is one workspace-symbol answer: a symbol at one of its locs.
type SymbolInfo struct {
	Symbol    symbols.SymbolRef
	Name      string
	Kind      symbols.Kind
	Container string
	Loc       source.Loc
	Score     int
}

func isNamespaceSeparator(r rune) bool { return r == ':' || r == '.' }

// partialMatch scores how well query[from:] matches name. It returns the
// score (lower is better) and how far into query the match got. Each
// query rune must appear in order; matches at word starts cost less than
// matches mid-word, and mid-word matches are refused when prefixOnly.
func partialMatch(name, query []rune, from int, prefixOnly bool) (int, int) {
	qi := from
	score, matched := 0, from
	for qi < len(query) && isNamespaceSeparator(query[qi]) {
		qi++
	}
	si := 0
	var prev, cur rune
	for qi < len(query) {
		q := query[qi]
		qi++
		lower := unicode.IsLower(q)
		consumed := 0
		for si < len(name) {
			prev, cur = cur, name[si]
			si++
			consumed++
			if q != cur && !(lower && unicode.ToLower(q) == unicode.ToLower(cur)) {
				continue
			}
			if consumed == 1 {
				if q != cur {
					score++
				}
				matched = qi
				break
			} else if !(unicode.IsLetter(prev) || unicode.IsDigit(prev)) || unicode.IsUpper(cur) {
				score += 100 + consumed
				matched = qi
				break
			} else if !prefixOnly {
				score += 200 + consumed
				matched = qi
				break
			}
		}
	}
	if matched != from {
		score += len(name)
	}
	return score, matched
}

type scoreInfo struct {
	eligible bool
	score    int
	// progress is how much of the query the owner chain matched; -1 when unset.
	progress int
}

// WorkspaceSymbols finds symbols whose qualified names fuzzily match q.
// The first pass lets owners consume a prefix of the query so "A::b"
// finds b inside A; the second pass retries every symbol on its own.
// Results are ordered by score, then by symbol id.
func WorkspaceSymbols(gs *global.GlobalState, q string, limit int) []SymbolInfo {
	if limit <= 0 {
		limit = MaxWorkspaceSymbols
	}
	query := []rune(norm.NFC.String(q))
	if len(query) == 0 {
		return nil
	}
	n := gs.Symbols.Len()
	infos := make([]scoreInfo, n)
	for i := range infos {
		infos[i].progress = -1
	}
	short := make([][]rune, n)

	for i := int(symbols.Root); i < n; i++ {
		sym := gs.Sym(symbols.SymbolRef(i)) // #nosec G115 -- bounded by the table length
		if gs.Names.Get(sym.Name).Kind == names.KindUnique {
			continue
		}
		short[i] = []rune(norm.NFC.String(gs.Show(sym.Name)))
		owner := infos[sym.Owner]
		ownerScore, ownerProgress := owner.score, owner.progress
		if !owner.eligible || ownerProgress < 0 {
			ownerScore, ownerProgress = 0, 0
		}
		if symbols.SymbolRef(i) == sym.Owner { // #nosec G115
			ownerScore, ownerProgress = 0, 0
		}
		score, progress := partialMatch(short[i], query, ownerProgress, true)
		infos[i] = scoreInfo{eligible: true, score: ownerScore + score, progress: progress}
	}

	type candidate struct {
		ref   symbols.SymbolRef
		score int
	}
	var candidates []candidate
	end := len(query)
	for i := int(symbols.Root); i < n; i++ {
		info := infos[i]
		if !info.eligible {
			continue
		}
		ref := symbols.SymbolRef(i) // #nosec G115
		owner := infos[gs.Sym(ref).Owner]
		if ref == gs.Sym(ref).Owner {
			owner = scoreInfo{progress: -1}
		}
		best, found := 0, false
		if info.progress == end && !(owner.progress == end && owner.score <= info.score) {
			best, found = info.score, true
		}
		if score, progress := partialMatch(short[i], query, 0, false); progress == end && (!found || best > score) {
			best, found = score, true
		}
		if owner.progress > 0 && owner.progress != end {
			if score, progress := partialMatch(short[i], query, owner.progress, false); progress == end &&
				(!found || best > owner.score+score) {
				best, found = owner.score+score, true
			}
		}
		if found {
			candidates = append(candidates, candidate{ref: ref, score: best})
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].score < candidates[b].score })

	var out []SymbolInfo
	for _, c := range candidates {
		if hideSymbol(gs, c.ref) {
			continue
		}
		sym := gs.Sym(c.ref)
		for k, loc := range sym.Locs {
			if k >= maxLocsPerSymbol || len(out) >= limit {
				break
			}
			if !loc.Exists() || loc.File() == 0 {
				continue
			}
			out = append(out, SymbolInfo{
				Symbol:    c.ref,
				Name:      gs.Show(sym.Name),
				Kind:      sym.Kind,
				Container: gs.ShowSymbol(sym.Owner),
				Loc:       loc,
				Score:     c.score,
			})
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

// hideSymbol filters symbols a user never wrote: the root, singleton
// classes, unresolved stubs, static initializers and rewriter output.
func hideSymbol(gs *global.GlobalState, ref symbols.SymbolRef) bool {
	if !ref.Exists() || ref == symbols.Root || int(ref) >= gs.Symbols.Len() {
		return true
	}
	sym := gs.Sym(ref)
	if sym.IsClassOrModule() && (sym.Attached.Exists() || sym.Superclass == symbols.StubModule) {
		return true
	}
	if sym.Name == names.StaticInit {
		return true
	}
	if n := gs.Names.Get(sym.Name); n.Kind == names.KindUnique && n.Original == names.StaticInit {
		return true
	}
	if sym.IsMethod() && sym.Has(symbols.FlagRewriterSynthesized) {
		return true
	}
	return false
}
