package cfg

import (
	"rbcheck/internal/ast"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

func (b *builder) isAbsurd(s *ast.ExprSendData) bool {
	if s.Fun != names.Absurd || len(s.Args) != 1 || s.Block.IsValid() {
		return false
	}
	cl, ok := b.e.ConstantLit(s.Recv)
	return ok && cl.Symbol == symbols.T
}

func (b *builder) send(c walkCtx, id ast.ExprID, cur *BasicBlock) *BasicBlock {
	e := b.e
	loc := e.Loc(id)
	s, _ := e.Send(id)
	if b.isAbsurd(s) {
		tmp := b.temp()
		cur = b.walk(c.withTarget(tmp), s.Args[0], cur)
		return b.emit(cur, c.target, loc, Instr{Kind: InstrTAbsurd, TAbsurd: TAbsurdInstr{What: tmp}})
	}
	recvExpr, argExprs, blockExpr := s.Recv, append([]ast.ExprID(nil), s.Args...), s.Block
	send := SendInstr{
		RecvLoc:     e.Loc(recvExpr),
		Fun:         s.Fun,
		FunLoc:      s.FunLoc,
		IsPrivateOk: s.PrivateOk,
		Args:        make([]LocalRef, 0, len(argExprs)),
		ArgLocs:     make([]source.Loc, 0, len(argExprs)),
	}

	send.Recv = b.temp()
	cur = b.walk(c.withTarget(send.Recv), recvExpr, cur)
	for _, a := range argExprs {
		tmp := b.temp()
		cur = b.walk(c.withTarget(tmp), a, cur)
		send.Args = append(send.Args, tmp)
		send.ArgLocs = append(send.ArgLocs, e.Loc(a))
	}
	if !blockExpr.IsValid() {
		return b.emit(cur, c.target, loc, Instr{Kind: InstrSend, Send: send})
	}
	return b.sendWithBlock(c, send, blockExpr, loc, cur)
}

func blockParamInfo(params []ast.Param) []symbols.ArgInfo {
	out := make([]symbols.ArgInfo, 0, len(params))
	for _, p := range params {
		info := symbols.ArgInfo{Name: p.Name, Loc: p.Loc}
		switch p.Kind {
		case ast.ParamOptional:
			info.Flags = symbols.ArgDefault
		case ast.ParamRest:
			info.Flags = symbols.ArgRepeated
		case ast.ParamKeyword:
			info.Flags = symbols.ArgKeyword
		case ast.ParamOptionalKeyword:
			info.Flags = symbols.ArgKeyword | symbols.ArgDefault
		case ast.ParamBlock:
			info.Flags = symbols.ArgBlock
		}
		out = append(out, info)
	}
	return out
}

// sendWithBlock lowers a send with a literal block:
//
//	current:  sendTemp = recv.fun(args)        -> header
//	header:   if <blockCall> then body else solve
//	body:     <self> = loadSelf; params...; walk -> blockreturn -> header
//	solve:    target = Solve<sendTemp, fun>    -> post
//
// break inside the block writes target and jumps to post.
func (b *builder) sendWithBlock(c walkCtx, send SendInstr, blockExpr ast.ExprID, loc source.Loc, cur *BasicBlock) *BasicBlock {
	e := b.e
	blk, _ := e.Block(blockExpr)
	params, body := append([]ast.Param(nil), blk.Params...), blk.Body
	blockLoc := e.Loc(blockExpr)

	b.cfg.MaxRubyBlockID++
	blockID := b.cfg.MaxRubyBlockID
	link := &SendAndBlockLink{Fun: send.Fun, Params: blockParamInfo(params), BlockID: blockID}
	send.Link = link

	sendTemp := b.temp()
	cur = b.emit(cur, sendTemp, loc, Instr{Kind: InstrSend, Send: send})

	header := b.fresh(c.loops+1, blockID)
	solve := b.fresh(c.loops, c.rubyBlock)
	post := b.fresh(c.loops, c.rubyBlock)
	bodyBlock := b.fresh(c.loops+1, blockID)
	b.jump(cur, header, loc)
	b.branch(header, LocalBlockCall, bodyBlock, solve, blockLoc)

	bodyBlock = b.emit(bodyBlock, LocalSelf, blockLoc, Instr{
		Kind:     InstrLoadSelf,
		LoadSelf: LoadSelfInstr{Link: link, Fallback: LocalSelf},
	})
	argTemp := b.locals.temp(names.BlockTemp)
	bodyBlock = b.emit(bodyBlock, argTemp, blockLoc, Instr{
		Kind:            InstrLoadYieldParams,
		LoadYieldParams: LoadYieldParamsInstr{Link: link},
	})
	for i, p := range params {
		idx := b.temp()
		bodyBlock = b.emit(bodyBlock, idx, p.Loc, Instr{Kind: InstrLiteral, Literal: LiteralInstr{
			Kind: ast.LitInt, Int: int64(i), Sym: symbols.Integer,
		}})
		bodyBlock = b.emit(bodyBlock, b.local(p.Name, 0), p.Loc, Instr{Kind: InstrSend, Send: SendInstr{
			Recv:    argTemp,
			RecvLoc: blockLoc,
			Fun:     names.SquareBrackets,
			FunLoc:  p.Loc,
			Args:    []LocalRef{idx},
			ArgLocs: []source.Loc{p.Loc},
		}})
	}

	rv := b.temp()
	inner := walkCtx{
		target:      rv,
		loops:       c.loops + 1,
		rubyBlock:   blockID,
		link:        link,
		nextScope:   header,
		breakScope:  post,
		breakTarget: c.target,
		inBlock:     true,
	}
	last := b.walk(inner, body, bodyBlock)
	if last.ID != DeadBlock {
		last = b.emit(last, LocalFinalReturn, blockLoc, Instr{
			Kind:        InstrBlockReturn,
			BlockReturn: BlockReturnInstr{Link: link, What: rv},
		})
		b.jump(last, header, blockLoc)
	}

	solve = b.emit(solve, c.target, loc, Instr{
		Kind:            InstrSolveConstraint,
		SolveConstraint: SolveConstraintInstr{Send: sendTemp, Link: link},
	})
	b.jump(solve, post, loc)
	return post
}
