package ast

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"fortio.org/safecast"

	"rbcheck/internal/names"
	"rbcheck/internal/source"
)

// Document is the on-disk form of a desugared file (*.tree.json).
type Document struct {
	// Path is the original source path, used for diagnostics.
	Path string `json:"path"`
	// Strict is the file's strictness sigil; empty means "true".
	Strict string `json:"strict"`
	// Source is the original text the spans point into.
	Source string          `json:"source"`
	Root   json.RawMessage `json:"root"`
}

// ParseDocument reads the envelope of a tree file without decoding the tree.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("tree document: %w", err)
	}
	if len(doc.Root) == 0 {
		return nil, errors.New("tree document: missing root")
	}
	return &doc, nil
}

// StrictLevel parses the document's strictness sigil.
func (d *Document) StrictLevel() (source.StrictLevel, error) {
	if d.Strict == "" {
		return source.StrictTrue, nil
	}
	return source.ParseStrictLevel(d.Strict)
}

type rawParam struct {
	Kind    string    `json:"kind"`
	Name    string    `json:"name"`
	Span    [2]uint32 `json:"span"`
	Default *rawNode  `json:"default"`
}

type rawSig struct {
	Params      map[string]string `json:"params"`
	Returns     string            `json:"returns"`
	Void        bool              `json:"void"`
	Abstract    bool              `json:"abstract"`
	Override    bool              `json:"override"`
	Overridable bool              `json:"overridable"`
	Final       bool              `json:"final"`
}

// rawNode is the union of every node's JSON fields. name, body and value
// change shape with the kind, so they stay raw until the kind is known.
type rawNode struct {
	Kind    string          `json:"kind"`
	Span    [2]uint32       `json:"span"`
	Name    json.RawMessage `json:"name"`
	Body    json.RawMessage `json:"body"`
	Value   json.RawMessage `json:"value"`
	Lit     string          `json:"lit"`
	Ident   string          `json:"ident"`
	Unique  uint32          `json:"unique"`
	Scope   *rawNode        `json:"scope"`
	LHS     *rawNode        `json:"lhs"`
	RHS     *rawNode        `json:"rhs"`
	Recv    *rawNode        `json:"recv"`
	Fun     string          `json:"fun"`
	FunSpan *[2]uint32      `json:"fun_span"`
	Args    []*rawNode      `json:"args"`
	Block   *rawNode        `json:"block"`
	Params  []rawParam      `json:"params"`
	Cond    *rawNode        `json:"cond"`
	Then    *rawNode        `json:"then"`
	Else    *rawNode        `json:"else"`
	Stats   []*rawNode      `json:"stats"`
	Expr    *rawNode        `json:"expr"`
	Cast    string          `json:"cast"`
	Type    *rawNode        `json:"type"`
	Elems   []*rawNode      `json:"elems"`
	Keys    []*rawNode      `json:"keys"`
	Values  []*rawNode      `json:"values"`
	Rescue  []*rawNode      `json:"handlers"`
	Ensure  *rawNode        `json:"ensure"`
	NameLoc *[2]uint32      `json:"name_span"`
	Self    bool            `json:"self"`
	Sig     *rawSig         `json:"sig"`
	Private bool            `json:"private"`
	Super   *rawNode        `json:"superclass"`
}

type decoder struct {
	nt     *names.Table
	file   source.FileID
	srcLen uint32
	tree   *Tree
}

// Decode builds a tree from the JSON root of a document. Names are interned
// into nt, which must be unfrozen. srcLen bounds every span.
func Decode(nt *names.Table, file source.FileID, srcLen int, root json.RawMessage) (*Tree, error) {
	n, err := safecast.Conv[uint32](srcLen)
	if err != nil || n >= source.NoOffset {
		return nil, fmt.Errorf("decode: source of %d bytes is too large", srcLen)
	}
	var raw rawNode
	if err := json.Unmarshal(root, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	d := &decoder{nt: nt, file: file, srcLen: n, tree: NewTree(file, 0)}
	id, err := d.node(&raw, "root")
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	d.tree.Root = id
	return d.tree, nil
}

func (d *decoder) loc(span [2]uint32, path string) (source.Loc, error) {
	if span[0] > span[1] || span[1] > d.srcLen {
		return 0, fmt.Errorf("%s: span [%d, %d] out of range (source has %d bytes)", path, span[0], span[1], d.srcLen)
	}
	return source.NewLoc(d.file, span[0], span[1]), nil
}

func (d *decoder) optional(n *rawNode, path string) (ExprID, error) {
	if n == nil {
		return NoExprID, nil
	}
	return d.node(n, path)
}

func (d *decoder) list(ns []*rawNode, path string) ([]ExprID, error) {
	out := make([]ExprID, 0, len(ns))
	for i, n := range ns {
		if n == nil {
			return nil, fmt.Errorf("%s[%d]: null node", path, i)
		}
		id, err := d.node(n, path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (d *decoder) nameString(raw json.RawMessage, path string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", fmt.Errorf("%s: name must be a non-empty string", path)
	}
	return s, nil
}

var paramKinds = map[string]ParamKind{
	"req":    ParamRequired,
	"opt":    ParamOptional,
	"rest":   ParamRest,
	"key":    ParamKeyword,
	"optkey": ParamOptionalKeyword,
	"block":  ParamBlock,
}

func (d *decoder) params(ps []rawParam, path string) ([]Param, error) {
	out := make([]Param, 0, len(ps))
	for i, p := range ps {
		ppath := path + ".params[" + strconv.Itoa(i) + "]"
		kind, ok := paramKinds[p.Kind]
		if !ok {
			return nil, fmt.Errorf("%s: unknown parameter kind %q", ppath, p.Kind)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("%s: parameter without a name", ppath)
		}
		loc, err := d.loc(p.Span, ppath)
		if err != nil {
			return nil, err
		}
		def, err := d.optional(p.Default, ppath+".default")
		if err != nil {
			return nil, err
		}
		if def.IsValid() && kind != ParamOptional && kind != ParamOptionalKeyword {
			return nil, fmt.Errorf("%s: only optional parameters take a default", ppath)
		}
		out = append(out, Param{Kind: kind, Name: d.nt.EnterUTF8(p.Name), Loc: loc, Default: def})
	}
	return out, nil
}

var litKinds = map[string]LitKind{
	"nil":    LitNil,
	"true":   LitTrue,
	"false":  LitFalse,
	"int":    LitInt,
	"float":  LitFloat,
	"string": LitString,
	"symbol": LitSymbol,
}

var identKinds = map[string]IdentKind{
	"":         IdentLocal,
	"local":    IdentLocal,
	"instance": IdentInstance,
	"class":    IdentClass,
	"global":   IdentGlobal,
}

var castKinds = map[string]CastKind{
	"let":    CastLet,
	"cast":   CastCast,
	"must":   CastMust,
	"unsafe": CastUnsafe,
}

func (d *decoder) literal(n *rawNode, loc source.Loc, path string) (ExprID, error) {
	kind, ok := litKinds[n.Lit]
	if !ok {
		return NoExprID, fmt.Errorf("%s: unknown literal kind %q", path, n.Lit)
	}
	data := ExprLiteralData{Kind: kind}
	switch kind {
	case LitInt:
		if err := json.Unmarshal(n.Value, &data.Int); err != nil {
			return NoExprID, fmt.Errorf("%s: int literal: %w", path, err)
		}
	case LitFloat:
		if err := json.Unmarshal(n.Value, &data.Float); err != nil {
			return NoExprID, fmt.Errorf("%s: float literal: %w", path, err)
		}
	case LitString, LitSymbol:
		var s string
		if err := json.Unmarshal(n.Value, &s); err != nil {
			return NoExprID, fmt.Errorf("%s: %s literal: %w", path, kind, err)
		}
		data.Text = d.nt.EnterUTF8(s)
	}
	return d.tree.Exprs.NewLiteral(loc, data), nil
}

func (d *decoder) node(n *rawNode, path string) (ExprID, error) {
	path = path + "<" + n.Kind + ">"
	loc, err := d.loc(n.Span, path)
	if err != nil {
		return NoExprID, err
	}
	e := d.tree.Exprs
	switch n.Kind {
	case "empty":
		return e.NewEmpty(loc), nil
	case "self":
		return e.NewSelf(loc), nil
	case "retry":
		return e.NewRetry(loc), nil
	case "literal":
		return d.literal(n, loc, path)
	case "local":
		s, err := d.nameString(n.Name, path)
		if err != nil {
			return NoExprID, err
		}
		return e.NewLocal(loc, d.nt.EnterUTF8(s), n.Unique), nil
	case "ident":
		s, err := d.nameString(n.Name, path)
		if err != nil {
			return NoExprID, err
		}
		kind, ok := identKinds[n.Ident]
		if !ok {
			return NoExprID, fmt.Errorf("%s: unknown identifier kind %q", path, n.Ident)
		}
		return e.NewUnresolvedIdent(loc, kind, d.nt.EnterUTF8(s)), nil
	case "const":
		s, err := d.nameString(n.Name, path)
		if err != nil {
			return NoExprID, err
		}
		scope, err := d.optional(n.Scope, path+".scope")
		if err != nil {
			return NoExprID, err
		}
		return e.NewUnresolvedConst(loc, scope, d.nt.EnterConstant(d.nt.EnterUTF8(s))), nil
	case "assign":
		if n.LHS == nil || n.RHS == nil {
			return NoExprID, fmt.Errorf("%s: assign needs lhs and rhs", path)
		}
		lhs, err := d.node(n.LHS, path+".lhs")
		if err != nil {
			return NoExprID, err
		}
		switch e.Kind(lhs) {
		case ExprLocal, ExprUnresolvedIdent, ExprUnresolvedConst:
		default:
			return NoExprID, fmt.Errorf("%s: cannot assign to %s", path, e.Kind(lhs))
		}
		rhs, err := d.node(n.RHS, path+".rhs")
		if err != nil {
			return NoExprID, err
		}
		return e.NewAssign(loc, lhs, rhs), nil
	case "send":
		return d.send(n, loc, path)
	case "block":
		params, err := d.params(n.Params, path)
		if err != nil {
			return NoExprID, err
		}
		body, err := d.bodyNode(n.Body, loc, path)
		if err != nil {
			return NoExprID, err
		}
		return e.NewBlock(loc, params, body), nil
	case "if":
		if n.Cond == nil {
			return NoExprID, fmt.Errorf("%s: if without cond", path)
		}
		cond, err := d.node(n.Cond, path+".cond")
		if err != nil {
			return NoExprID, err
		}
		then, err := d.optional(n.Then, path+".then")
		if err != nil {
			return NoExprID, err
		}
		els, err := d.optional(n.Else, path+".else")
		if err != nil {
			return NoExprID, err
		}
		return e.NewIf(loc, cond, then, els), nil
	case "while":
		if n.Cond == nil {
			return NoExprID, fmt.Errorf("%s: while without cond", path)
		}
		cond, err := d.node(n.Cond, path+".cond")
		if err != nil {
			return NoExprID, err
		}
		body, err := d.bodyNode(n.Body, loc, path)
		if err != nil {
			return NoExprID, err
		}
		return e.NewWhile(loc, cond, body), nil
	case "break", "next", "return":
		var value ExprID
		if len(n.Value) > 0 && !bytes.Equal(n.Value, []byte("null")) {
			var raw rawNode
			if err := json.Unmarshal(n.Value, &raw); err != nil {
				return NoExprID, fmt.Errorf("%s.value: %w", path, err)
			}
			if value, err = d.node(&raw, path+".value"); err != nil {
				return NoExprID, err
			}
		}
		kinds := map[string]ExprKind{"break": ExprBreak, "next": ExprNext, "return": ExprReturn}
		return e.NewJump(kinds[n.Kind], loc, value), nil
	case "seq":
		stats, err := d.list(n.Stats, path+".stats")
		if err != nil {
			return NoExprID, err
		}
		expr, err := d.optional(n.Expr, path+".expr")
		if err != nil {
			return NoExprID, err
		}
		if !expr.IsValid() {
			expr = e.NewLiteral(loc.CopyEndWithZeroLength(), ExprLiteralData{Kind: LitNil})
		}
		return e.NewInsSeq(loc, stats, expr), nil
	case "cast":
		kind, ok := castKinds[n.Cast]
		if !ok {
			return NoExprID, fmt.Errorf("%s: unknown cast kind %q", path, n.Cast)
		}
		var raw rawNode
		if err := json.Unmarshal(n.Value, &raw); err != nil {
			return NoExprID, fmt.Errorf("%s.value: %w", path, err)
		}
		value, err := d.node(&raw, path+".value")
		if err != nil {
			return NoExprID, err
		}
		typ, err := d.optional(n.Type, path+".type")
		if err != nil {
			return NoExprID, err
		}
		return e.NewCast(loc, kind, value, typ), nil
	case "array":
		elems, err := d.list(n.Elems, path+".elems")
		if err != nil {
			return NoExprID, err
		}
		return e.NewArray(loc, elems), nil
	case "hash":
		if len(n.Keys) != len(n.Values) {
			return NoExprID, fmt.Errorf("%s: %d keys but %d values", path, len(n.Keys), len(n.Values))
		}
		keys, err := d.list(n.Keys, path+".keys")
		if err != nil {
			return NoExprID, err
		}
		values, err := d.list(n.Values, path+".values")
		if err != nil {
			return NoExprID, err
		}
		return e.NewHash(loc, keys, values), nil
	case "rescue":
		body, err := d.bodyNode(n.Body, loc, path)
		if err != nil {
			return NoExprID, err
		}
		handlers, err := d.list(n.Rescue, path+".handlers")
		if err != nil {
			return NoExprID, err
		}
		els, err := d.optional(n.Else, path+".else")
		if err != nil {
			return NoExprID, err
		}
		ensure, err := d.optional(n.Ensure, path+".ensure")
		if err != nil {
			return NoExprID, err
		}
		return e.NewRescue(loc, ExprRescueData{Body: body, Handlers: handlers, Else: els, Ensure: ensure}), nil
	case "def":
		return d.methodDef(n, loc, path)
	case "class", "module":
		return d.classDef(n, loc, path)
	case "constant":
		return NoExprID, fmt.Errorf("%s: resolved constants are produced by the namer, not read from input", path)
	default:
		return NoExprID, fmt.Errorf("%s: unknown node kind", path)
	}
}

// bodyNode decodes a single-expression body. A missing body is an empty node.
func (d *decoder) bodyNode(raw json.RawMessage, loc source.Loc, path string) (ExprID, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return d.tree.Exprs.NewEmpty(loc.CopyEndWithZeroLength()), nil
	}
	var n rawNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return NoExprID, fmt.Errorf("%s.body: %w", path, err)
	}
	return d.node(&n, path+".body")
}

func (d *decoder) send(n *rawNode, loc source.Loc, path string) (ExprID, error) {
	if n.Fun == "" {
		return NoExprID, fmt.Errorf("%s: send without fun", path)
	}
	e := d.tree.Exprs
	data := ExprSendData{Fun: d.nt.EnterUTF8(n.Fun), FunLoc: loc}
	if n.FunSpan != nil {
		funLoc, err := d.loc(*n.FunSpan, path+".fun_span")
		if err != nil {
			return NoExprID, err
		}
		data.FunLoc = funLoc
	}
	if n.Recv == nil {
		// foo(x) is self.foo(x) with private access allowed
		data.Recv = e.NewSelf(loc.CopyWithZeroLength())
		data.PrivateOk = true
	} else {
		recv, err := d.node(n.Recv, path+".recv")
		if err != nil {
			return NoExprID, err
		}
		data.Recv = recv
		data.PrivateOk = e.Kind(recv) == ExprSelf
	}
	args, err := d.list(n.Args, path+".args")
	if err != nil {
		return NoExprID, err
	}
	data.Args = args
	if n.Block != nil {
		blk, err := d.node(n.Block, path+".block")
		if err != nil {
			return NoExprID, err
		}
		if e.Kind(blk) != ExprBlock {
			return NoExprID, fmt.Errorf("%s: block argument is a %s", path, e.Kind(blk))
		}
		data.Block = blk
	}
	return e.NewSend(loc, data), nil
}

func (d *decoder) methodDef(n *rawNode, loc source.Loc, path string) (ExprID, error) {
	s, err := d.nameString(n.Name, path)
	if err != nil {
		return NoExprID, err
	}
	data := ExprMethodDefData{
		Name:    d.nt.EnterUTF8(s),
		NameLoc: loc,
		IsSelf:  n.Self,
		Private: n.Private,
	}
	if n.NameLoc != nil {
		if data.NameLoc, err = d.loc(*n.NameLoc, path+".name_span"); err != nil {
			return NoExprID, err
		}
	}
	if data.Params, err = d.params(n.Params, path); err != nil {
		return NoExprID, err
	}
	if data.Body, err = d.bodyNode(n.Body, loc, path); err != nil {
		return NoExprID, err
	}
	if n.Sig != nil {
		data.Sig = &Sig{
			Params:      n.Sig.Params,
			Returns:     n.Sig.Returns,
			Void:        n.Sig.Void,
			Abstract:    n.Sig.Abstract,
			Override:    n.Sig.Override,
			Overridable: n.Sig.Overridable,
			Final:       n.Sig.Final,
		}
	}
	return d.tree.Exprs.NewMethodDef(loc, data), nil
}

func (d *decoder) classDef(n *rawNode, loc source.Loc, path string) (ExprID, error) {
	data := ExprClassDefData{Kind: ClassKindClass}
	if n.Kind == "module" {
		data.Kind = ClassKindModule
	}
	var rawName rawNode
	if err := json.Unmarshal(n.Name, &rawName); err != nil {
		return NoExprID, fmt.Errorf("%s.name: %w", path, err)
	}
	name, err := d.node(&rawName, path+".name")
	if err != nil {
		return NoExprID, err
	}
	if d.tree.Exprs.Kind(name) != ExprUnresolvedConst {
		return NoExprID, fmt.Errorf("%s: class name must be a constant", path)
	}
	data.Name = name
	if n.Super != nil {
		if data.Kind == ClassKindModule {
			return NoExprID, fmt.Errorf("%s: module with a superclass", path)
		}
		if data.Superclass, err = d.node(n.Super, path+".superclass"); err != nil {
			return NoExprID, err
		}
	}
	var body []*rawNode
	if len(n.Body) > 0 {
		if err := json.Unmarshal(n.Body, &body); err != nil {
			return NoExprID, fmt.Errorf("%s.body: %w", path, err)
		}
	}
	if data.Body, err = d.list(body, path+".body"); err != nil {
		return NoExprID, err
	}
	return d.tree.Exprs.NewClassDef(loc, data), nil
}
