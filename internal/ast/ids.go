package ast

type (
	// ExprID is a handle into Exprs. Zero means "no expression".
	ExprID uint32
	// PayloadID indexes the per-kind payload arena of an expression.
	PayloadID uint32
)

const (
	NoExprID    ExprID    = 0
	NoPayloadID PayloadID = 0
)

func (id ExprID) IsValid() bool    { return id != NoExprID }
func (id PayloadID) IsValid() bool { return id != NoPayloadID }
