package global

// Guard restores a table's frozen flag on Release. Guards nest: an inner
// guard restores the unfrozen state its outer guard established.
type Guard struct {
	restore func()
}

// Release puts the table back the way the guard found it. Releasing twice is a no-op.
func (g *Guard) Release() {
	if g == nil || g.restore == nil {
		return
	}
	g.restore()
	g.restore = nil
}

func (gs *GlobalState) UnfreezeNameTable() *Guard {
	old := gs.Names.SetFrozen(false)
	return &Guard{restore: func() { gs.Names.SetFrozen(old) }}
}

func (gs *GlobalState) UnfreezeSymbolTable() *Guard {
	old := gs.Symbols.SetFrozen(false)
	return &Guard{restore: func() { gs.Symbols.SetFrozen(old) }}
}

func (gs *GlobalState) UnfreezeFileTable() *Guard {
	old := gs.Files.SetFrozen(false)
	return &Guard{restore: func() { gs.Files.SetFrozen(old) }}
}

// UnfreezeAll unfreezes all three tables at once.
func (gs *GlobalState) UnfreezeAll() *Guard {
	n, s, f := gs.UnfreezeNameTable(), gs.UnfreezeSymbolTable(), gs.UnfreezeFileTable()
	return &Guard{restore: func() {
		f.Release()
		s.Release()
		n.Release()
	}}
}
