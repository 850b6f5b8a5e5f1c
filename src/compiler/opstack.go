package compiler

import (
	"pimo/src/util"

	"tinygo.org/x/go-llvm"
)

// defaultStackSize is the OperatorStack's default slot count when a stack expression doesn't
// request an explicit size.
const defaultStackSize = 128

// OperatorStack is a per-expression LIFO of opaque pointers materialised inside the emitting
// function's frame: an alloca of {[N x i8*], i32 top, i32 size} plus a generated push/pop
// function pair.
type OperatorStack struct {
	ID         string
	StructType llvm.Type
	Alloca     llvm.Value
	PushFn     llvm.Value
	PopFn      llvm.Value
	Size       int
}

// NewOperatorStack allocates a fresh stack of the given size (0 means defaultStackSize) on fn's
// frame, and emits its push_<id>/pop_<id> function pair into mod. builder's insertion point must
// already be inside fn's entry (or current) block; the alloca is created there.
func NewOperatorStack(ctx llvm.Context, mod llvm.Module, builder llvm.Builder, fn llvm.Value, size int) *OperatorStack {
	if size <= 0 {
		size = defaultStackSize
	}
	id := util.NewID()

	i8ptr := llvm.PointerType(llvm.Int8Type(), 0)
	arr := llvm.ArrayType(i8ptr, size)
	structType := ctx.StructCreateNamed("stack_" + id)
	structType.StructSetBody([]llvm.Type{arr, llvm.Int32Type(), llvm.Int32Type()}, false)

	alloca := builder.CreateAlloca(structType, "stack_"+id)
	topPtr := builder.CreateStructGEP(alloca, 1, "")
	builder.CreateStore(llvm.ConstInt(llvm.Int32Type(), 0, false), topPtr)
	sizePtr := builder.CreateStructGEP(alloca, 2, "")
	builder.CreateStore(llvm.ConstInt(llvm.Int32Type(), uint64(size), false), sizePtr)

	s := &OperatorStack{ID: id, StructType: structType, Alloca: alloca, Size: size}
	s.PushFn = genPush(ctx, mod, structType, id, i8ptr)
	s.PopFn = genPop(ctx, mod, structType, id, i8ptr)
	return s
}

// genPush emits push_<id>(stack*, i8*) -> void: writes the payload at the current top slot and
// increments top, only if the stack isn't full.
func genPush(ctx llvm.Context, mod llvm.Module, structType llvm.Type, id string, i8ptr llvm.Type) llvm.Value {
	structPtr := llvm.PointerType(structType, 0)
	ftyp := llvm.FunctionType(llvm.VoidType(), []llvm.Type{structPtr, i8ptr}, false)
	fn := llvm.AddFunction(mod, "push_"+id, ftyp)
	stackArg, valArg := fn.Param(0), fn.Param(1)

	b := ctx.NewBuilder()
	defer b.Dispose()

	entry := llvm.AddBasicBlock(fn, "entry")
	write := llvm.AddBasicBlock(fn, "write")
	merge := llvm.AddBasicBlock(fn, "merge")

	b.SetInsertPointAtEnd(entry)
	top := b.CreateLoad(b.CreateStructGEP(stackArg, 1, ""), "top")
	size := b.CreateLoad(b.CreateStructGEP(stackArg, 2, ""), "size")
	full := b.CreateICmp(llvm.IntUGE, top, size, "full")
	b.CreateCondBr(full, merge, write)

	b.SetInsertPointAtEnd(write)
	slot := b.CreateGEP(b.CreateStructGEP(stackArg, 0, ""), []llvm.Value{
		llvm.ConstInt(llvm.Int32Type(), 0, false), top,
	}, "slot")
	b.CreateStore(valArg, slot)
	newTop := b.CreateAdd(top, llvm.ConstInt(llvm.Int32Type(), 1, false), "newtop")
	b.CreateStore(newTop, b.CreateStructGEP(stackArg, 1, ""))
	b.CreateBr(merge)

	b.SetInsertPointAtEnd(merge)
	b.CreateRetVoid()
	return fn
}

// genPop emits pop_<id>(stack*) -> i8*: decrements top and returns the popped pointer, or null if
// the stack was already empty.
func genPop(ctx llvm.Context, mod llvm.Module, structType llvm.Type, id string, i8ptr llvm.Type) llvm.Value {
	structPtr := llvm.PointerType(structType, 0)
	ftyp := llvm.FunctionType(i8ptr, []llvm.Type{structPtr}, false)
	fn := llvm.AddFunction(mod, "pop_"+id, ftyp)
	stackArg := fn.Param(0)

	b := ctx.NewBuilder()
	defer b.Dispose()

	entry := llvm.AddBasicBlock(fn, "entry")
	read := llvm.AddBasicBlock(fn, "read")
	empty := llvm.AddBasicBlock(fn, "empty")
	merge := llvm.AddBasicBlock(fn, "merge")

	b.SetInsertPointAtEnd(entry)
	top := b.CreateLoad(b.CreateStructGEP(stackArg, 1, ""), "top")
	isEmpty := b.CreateICmp(llvm.IntEQ, top, llvm.ConstInt(llvm.Int32Type(), 0, false), "empty")
	b.CreateCondBr(isEmpty, empty, read)

	b.SetInsertPointAtEnd(read)
	newTop := b.CreateSub(top, llvm.ConstInt(llvm.Int32Type(), 1, false), "newtop")
	b.CreateStore(newTop, b.CreateStructGEP(stackArg, 1, ""))
	slot := b.CreateGEP(b.CreateStructGEP(stackArg, 0, ""), []llvm.Value{
		llvm.ConstInt(llvm.Int32Type(), 0, false), newTop,
	}, "slot")
	val := b.CreateLoad(slot, "val")
	b.CreateBr(merge)

	b.SetInsertPointAtEnd(empty)
	nullPtr := llvm.ConstNull(i8ptr)
	b.CreateBr(merge)

	b.SetInsertPointAtEnd(merge)
	phi := b.CreatePHI(i8ptr, "result")
	phi.AddIncoming([]llvm.Value{val, nullPtr}, []llvm.BasicBlock{read, empty})
	b.CreateRet(phi)
	return fn
}

// Push calls the generated push_<id> function at the current insertion point. v must already be
// an i8* (the caller bitcasts a typed pointer first).
func (s *OperatorStack) Push(builder llvm.Builder, v llvm.Value) {
	builder.CreateCall(s.PushFn, []llvm.Value{s.Alloca, v}, "")
}

// Pop calls the generated pop_<id> function, returning an i8*.
func (s *OperatorStack) Pop(builder llvm.Builder) llvm.Value {
	return builder.CreateCall(s.PopFn, []llvm.Value{s.Alloca}, "pop")
}
