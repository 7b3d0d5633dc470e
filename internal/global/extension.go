package global

// Extension is a pluggable piece of per-universe semantic state that must
// follow names across substitution. Merge is called after the tables of
// from have been substituted into to and before to is sanity checked.
type Extension interface {
	Name() string
	Merge(from, to *GlobalState, subst *Substitution)
	DeepCopy() Extension
}

// AddExtension registers ext. Registering a second extension with the same name replaces the first.
func (gs *GlobalState) AddExtension(ext Extension) {
	for i, e := range gs.extensions {
		if e.Name() == ext.Name() {
			gs.extensions[i] = ext
			return
		}
	}
	gs.extensions = append(gs.extensions, ext)
}

// Extension returns the extension registered under name, or nil.
func (gs *GlobalState) Extension(name string) Extension {
	for _, e := range gs.extensions {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

// Extensions lists registered extensions in registration order.
func (gs *GlobalState) Extensions() []Extension {
	return gs.extensions
}
