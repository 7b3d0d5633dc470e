package rewriter

import (
	"maps"
	"slices"

	"rbcheck/internal/global"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
)

// Pass names the rewriter pass that produced a definition.
type Pass uint8

const (
	PassDefaultArgs Pass = iota + 1
	PassAttrReader
	PassAttrWriter
	PassFlatfile
)

func (p Pass) String() string {
	switch p {
	case PassDefaultArgs:
		return "default-args"
	case PassAttrReader:
		return "attr-reader"
	case PassAttrWriter:
		return "attr-writer"
	case PassFlatfile:
		return "flatfile"
	}
	return "unknown"
}

// Origin says where a synthesized method came from.
type Origin struct {
	Pass Pass
	// From is the method whose default produced it, or the attribute name.
	From names.NameRef
	Loc  source.Loc
}

const registryName = "rewriter"

// Registry is a GlobalState extension recording every synthesized method
// name. It follows names through substitution so the master state knows
// the origins of methods synthesized on worker copies.
type Registry struct {
	origins map[names.NameRef][]Origin
}

// RegistryOf returns the registry attached to gs, attaching an empty one
// on first use.
func RegistryOf(gs *global.GlobalState) *Registry {
	if ext, ok := gs.Extension(registryName).(*Registry); ok {
		return ext
	}
	reg := &Registry{origins: make(map[names.NameRef][]Origin)}
	gs.AddExtension(reg)
	return reg
}

func (r *Registry) Name() string { return registryName }

func (r *Registry) record(name names.NameRef, o Origin) {
	if slices.Contains(r.origins[name], o) {
		return
	}
	r.origins[name] = append(r.origins[name], o)
}

// Origins returns the recorded origins of a synthesized method name.
func (r *Registry) Origins(name names.NameRef) []Origin {
	return r.origins[name]
}

// IsSynthesized reports whether name was produced by a rewriter pass.
func (r *Registry) IsSynthesized(name names.NameRef) bool {
	return len(r.origins[name]) > 0
}

// Len is the number of distinct synthesized names.
func (r *Registry) Len() int { return len(r.origins) }

func (r *Registry) Merge(from, _ *global.GlobalState, subst *global.Substitution) {
	src, ok := from.Extension(registryName).(*Registry)
	if !ok || src == r {
		return
	}
	for _, name := range slices.Sorted(maps.Keys(src.origins)) {
		for _, o := range src.origins[name] {
			o.From = subst.Substitute(o.From)
			r.record(subst.Substitute(name), o)
		}
	}
}

func (r *Registry) DeepCopy() global.Extension {
	cp := &Registry{origins: make(map[names.NameRef][]Origin, len(r.origins))}
	for k, v := range r.origins {
		cp.origins[k] = slices.Clone(v)
	}
	return cp
}
