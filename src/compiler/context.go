package compiler

import "tinygo.org/x/go-llvm"

// IfContext is the control-flow scaffolding kept only while emitting a single if/elif/else
// construct.
type IfContext struct {
	builder   llvm.Builder
	fn        llvm.Value
	Final     llvm.BasicBlock
	IfBlock   llvm.BasicBlock
	ElseBlock llvm.BasicBlock
	interm    llvm.BasicBlock // outstanding fan-out block awaiting the next elif/else target.
}

// NewIfContext eagerly creates Final, IfBlock and ElseBlock so every branch target exists before
// any condition is evaluated.
func NewIfContext(builder llvm.Builder, fn llvm.Value) *IfContext {
	return &IfContext{
		builder:   builder,
		fn:        fn,
		Final:     llvm.AddBasicBlock(fn, "if.end"),
		IfBlock:   llvm.AddBasicBlock(fn, "if.then"),
		ElseBlock: llvm.AddBasicBlock(fn, "if.else"),
	}
}

// MakeIf emits the `if` alternative's branch (step 2): from the builder's current insertion point,
// conditionally branch to IfBlock versus ElseBlock (hasMore false) or a fresh intermediate block
// (hasMore true), then positions the builder at IfBlock for the caller to emit the body into.
func (c *IfContext) MakeIf(cond llvm.Value, hasMore bool) {
	falseTarget := c.nextFalseTarget(hasMore)
	c.builder.CreateCondBr(cond, c.IfBlock, falseTarget)
	c.builder.SetInsertPointAtEnd(c.IfBlock)
}

// MakeElif emits one `elif` alternative's branch (step 3): positions at the most recently created
// intermediate block, branches it to a fresh elif block versus ElseBlock or the next intermediate,
// then positions the builder at the elif block.
func (c *IfContext) MakeElif(cond llvm.Value, hasMore bool) {
	c.builder.SetInsertPointAtEnd(c.interm)
	elifBlock := llvm.AddBasicBlock(c.fn, "if.elif")
	falseTarget := c.nextFalseTarget(hasMore)
	c.builder.CreateCondBr(cond, elifBlock, falseTarget)
	c.builder.SetInsertPointAtEnd(elifBlock)
}

func (c *IfContext) nextFalseTarget(hasMore bool) llvm.BasicBlock {
	if !hasMore {
		return c.ElseBlock
	}
	c.interm = llvm.AddBasicBlock(c.fn, "if.interm")
	return c.interm
}

// PositionAtElse positions the builder at ElseBlock for the caller to emit the else body into
// (step 4). Must only be called when an else clause is present.
func (c *IfContext) PositionAtElse() {
	c.builder.SetInsertPointAtEnd(c.ElseBlock)
}

// Converge branches the current block to Final unless it already has a terminator (the body just
// emitted ended in its own `return`, for instance).
func (c *IfContext) Converge(alreadyTerminated bool) {
	if !alreadyTerminated {
		c.builder.CreateBr(c.Final)
	}
}

// BranchUnusedElseToFinal gives ElseBlock a terminator when no `else` clause was present in the
// source. The last alternative's false edge still targets the eagerly created ElseBlock, which
// then branches straight on to Final.
func (c *IfContext) BranchUnusedElseToFinal() {
	c.builder.SetInsertPointAtEnd(c.ElseBlock)
	c.builder.CreateBr(c.Final)
}

// PositionAtFinal positions the outer builder at Final (step 5).
func (c *IfContext) PositionAtFinal() {
	c.builder.SetInsertPointAtEnd(c.Final)
}

// WhileContext is the control-flow scaffolding kept only while emitting a single while loop.
type WhileContext struct {
	builder llvm.Builder
	While   llvm.BasicBlock
	Final   llvm.BasicBlock
}

// NewWhileContext eagerly creates While and Final so both loop targets exist before the entry
// condition is evaluated.
func NewWhileContext(builder llvm.Builder, fn llvm.Value) *WhileContext {
	return &WhileContext{
		builder: builder,
		While:   llvm.AddBasicBlock(fn, "while.body"),
		Final:   llvm.AddBasicBlock(fn, "while.end"),
	}
}

// Enter branches on the loop guard (which the caller evaluated at the current insertion point) to
// While or Final (step 2), then positions the builder at While for the caller to emit the body into.
func (c *WhileContext) Enter(cond llvm.Value) {
	c.builder.CreateCondBr(cond, c.While, c.Final)
	c.builder.SetInsertPointAtEnd(c.While)
}

// Loop branches on the loop guard the caller re-evaluated at the end of the body, back to While or
// out to Final (step 3), unless the body already terminated itself (e.g. with `return`).
func (c *WhileContext) Loop(alreadyTerminated bool, cond llvm.Value) {
	if alreadyTerminated {
		return
	}
	c.builder.CreateCondBr(cond, c.While, c.Final)
}

// PositionAtFinal positions the outer builder at Final (step 4).
func (c *WhileContext) PositionAtFinal() {
	c.builder.SetInsertPointAtEnd(c.Final)
}
