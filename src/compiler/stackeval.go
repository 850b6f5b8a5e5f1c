package compiler

import (
	"pimo/src/block"
	"pimo/src/cerr"
	"pimo/src/scope"
	"pimo/src/token"

	"tinygo.org/x/go-llvm"
)

// stackMachine evaluates one composite (stack-form) expression. It keeps two parallel views of the
// same LIFO: vals is the Go-side bookkeeping the evaluator actually computes with (every pushed
// Value's real LLVM type and value), while rt is the materialised runtime OperatorStack — every
// push/pop here also drives rt's generated push_<id>/pop_<id> calls, so the runtime stack stays a
// faithful mirror of vals and the introspective operators (.%, ..%, size-probing !) can read real
// top/base/size off of it instead of off Go-side state alone.
type stackMachine struct {
	c    *Compiler
	rt   *OperatorStack
	vals []Value
}

// evalStack evaluates a Stack-kind block's children left to right: literal/name/nested-stack
// elements push, operator tokens pop their operands and push a result.
func (c *Compiler) evalStack(sc *scope.Scope, blk *block.Block, typeCtx *llvm.Type) (Value, error) {
	fn := sc.EnclosingFunction()
	if fn == nil {
		return Value{}, cerr.New(cerr.InvalidInstructionContext, c.Program, 0, "stack expression outside a function body")
	}

	size := 0
	if blk.HasSize {
		size = blk.Size
	}
	rt := NewOperatorStack(c.Ctx, c.Module, c.Builder, fn.LLVMFunction, size)
	sm := &stackMachine{c: c, rt: rt}

	for _, el := range blk.Children {
		if tok, ok := el.(token.Token); ok && tok.Kind == token.Operator {
			if err := sm.apply(tok); err != nil {
				return Value{}, err
			}
			continue
		}
		v, err := c.evalElement(sc, el, nil)
		if err != nil {
			return Value{}, err
		}
		sm.push(v)
	}

	result, err := sm.pop()
	if err != nil {
		return Value{}, err
	}
	if typeCtx != nil && result.Type != *typeCtx {
		result = c.coerce(result, *typeCtx)
	}
	return result, nil
}

// coerce converts v to want. Integer to integer is a sign-extending or truncating cast; any other
// pair reinterprets v's bit pattern as want: spill, bitcast the address, reload.
func (c *Compiler) coerce(v Value, want llvm.Type) Value {
	if v.Type.TypeKind() == llvm.IntegerTypeKind && want.TypeKind() == llvm.IntegerTypeKind {
		return Value{Type: want, Val: c.Builder.CreateIntCast(v.Val, want, "")}
	}
	alloca := c.Builder.CreateAlloca(v.Type, "")
	c.Builder.CreateStore(v.Val, alloca)
	cast := c.Builder.CreateBitCast(alloca, llvm.PointerType(want, 0), "")
	return Value{Type: want, Val: c.Builder.CreateLoad(cast, "")}
}

// push spills v to a fresh cell (or reuses its existing address) and drives the runtime stack's
// push_<id> with the bitcast-to-i8* address, alongside recording v itself for the Go side.
func (sm *stackMachine) push(v Value) {
	c := sm.c
	var ptr llvm.Value
	if v.HasPtr {
		ptr = v.Ptr
	} else {
		ptr = c.Builder.CreateAlloca(v.Type, "")
		c.Builder.CreateStore(v.Val, ptr)
	}
	i8 := c.Builder.CreateBitCast(ptr, llvm.PointerType(llvm.Int8Type(), 0), "")
	sm.rt.Push(c.Builder, i8)
	sm.vals = append(sm.vals, v)
}

// pop removes and returns the most recently pushed Value, also driving the runtime stack's
// pop_<id> so its top/array stay in sync for subsequent .%/..%/! probes.
func (sm *stackMachine) pop() (Value, error) {
	if len(sm.vals) == 0 {
		return Value{}, cerr.New(cerr.InvalidOperator, sm.c.Program, 0, "operator stack underflow")
	}
	v := sm.vals[len(sm.vals)-1]
	sm.vals = sm.vals[:len(sm.vals)-1]
	sm.rt.Pop(sm.c.Builder)
	return v, nil
}

// apply dispatches one operator token against the stack.
func (sm *stackMachine) apply(tok token.Token) error {
	c := sm.c
	switch tok.Text {
	case ".%":
		sm.pushRaw(sm.peekTop())
		return nil
	case "..%":
		sm.pushRaw(sm.base())
		return nil
	case "!":
		// Bare "!" is overloaded between "push the stack's size" and unary logical-not. Nothing
		// distinguishes the two lexically, so the empty-stack case (no operand available to
		// negate yet) resolves to the size-push reading; otherwise it's unary not.
		if len(sm.vals) == 0 {
			t := llvm.Int32Type()
			sm.push(Value{Type: t, Val: llvm.ConstInt(t, uint64(sm.rt.Size), false)})
			return nil
		}
		v, err := sm.pop()
		if err != nil {
			return err
		}
		zero := llvm.ConstInt(v.Type, 0, false)
		cmp := c.Builder.CreateICmp(llvm.IntEQ, v.Val, zero, "")
		sm.push(Value{Type: llvm.Int1Type(), Val: cmp})
		return nil
	case "%":
		v, err := sm.pop()
		if err != nil {
			return err
		}
		if v.Type.TypeKind() != llvm.PointerTypeKind {
			return cerr.New(cerr.InvalidOperator, c.Program, tok.Line, tok.Text)
		}
		elem := v.Type.ElementType()
		loaded := c.Builder.CreateLoad(v.Val, "")
		sm.push(Value{Type: elem, Val: loaded})
		return nil
	case "dup":
		v, err := sm.pop()
		if err != nil {
			return err
		}
		sm.push(v)
		sm.push(v)
		return nil
	case "*":
		v, err := sm.pop()
		if err != nil {
			return err
		}
		alloca := c.Builder.CreateAlloca(v.Type, "")
		c.Builder.CreateStore(v.Val, alloca)
		sm.push(Value{Type: llvm.PointerType(v.Type, 0), Val: alloca, Ptr: alloca, HasPtr: true})
		return nil
	case "+":
		return sm.binary(func(a, b llvm.Value) llvm.Value { return c.Builder.CreateAdd(a, b, "") })
	case "-":
		return sm.binary(func(a, b llvm.Value) llvm.Value { return c.Builder.CreateSub(a, b, "") })
	case "and":
		return sm.binary(func(a, b llvm.Value) llvm.Value { return c.Builder.CreateAnd(a, b, "") })
	case "or":
		return sm.binary(func(a, b llvm.Value) llvm.Value { return c.Builder.CreateOr(a, b, "") })
	case "==":
		return sm.compare(llvm.IntEQ)
	case "!=":
		return sm.compare(llvm.IntNE)
	case "<=":
		return sm.compare(llvm.IntULE)
	case ">=":
		return sm.compare(llvm.IntUGE)
	case "<":
		return sm.compare(llvm.IntULT)
	case ">":
		return sm.compare(llvm.IntUGT)
	default:
		return cerr.New(cerr.InvalidOperator, c.Program, tok.Line, tok.Text)
	}
}

// binary pops b then a (source order a op b), applies f, pushes the result at a's type.
func (sm *stackMachine) binary(f func(a, b llvm.Value) llvm.Value) error {
	b, err := sm.pop()
	if err != nil {
		return err
	}
	a, err := sm.pop()
	if err != nil {
		return err
	}
	sm.push(Value{Type: a.Type, Val: f(a.Val, b.Val)})
	return nil
}

// compare pops b then a, emits an unsigned integer comparison.
func (sm *stackMachine) compare(pred llvm.IntPredicate) error {
	b, err := sm.pop()
	if err != nil {
		return err
	}
	a, err := sm.pop()
	if err != nil {
		return err
	}
	cmp := sm.c.Builder.CreateICmp(pred, a.Val, b.Val, "")
	sm.push(Value{Type: llvm.Int1Type(), Val: cmp})
	return nil
}

// pushRaw pushes an already-i8* pointer value directly (bypassing push's spill logic, since .%/..%
// hand back an address that is already live storage) and records it in vals as a generic pointer.
func (sm *stackMachine) pushRaw(i8 llvm.Value) {
	sm.rt.Push(sm.c.Builder, i8)
	sm.vals = append(sm.vals, Value{Type: llvm.PointerType(llvm.Int8Type(), 0), Val: i8})
}

// peekTop reads the raw i8* currently stored at the runtime stack's top slot, without popping.
func (sm *stackMachine) peekTop() llvm.Value {
	c := sm.c
	b := c.Builder
	top := b.CreateLoad(b.CreateStructGEP(sm.rt.Alloca, 1, ""), "")
	prev := b.CreateSub(top, llvm.ConstInt(llvm.Int32Type(), 1, false), "")
	slot := b.CreateGEP(b.CreateStructGEP(sm.rt.Alloca, 0, ""), []llvm.Value{
		llvm.ConstInt(llvm.Int32Type(), 0, false), prev,
	}, "")
	return b.CreateLoad(slot, "")
}

// base returns the runtime stack's array base address, bitcast to i8*.
func (sm *stackMachine) base() llvm.Value {
	c := sm.c
	b := c.Builder
	slot0 := b.CreateGEP(b.CreateStructGEP(sm.rt.Alloca, 0, ""), []llvm.Value{
		llvm.ConstInt(llvm.Int32Type(), 0, false), llvm.ConstInt(llvm.Int32Type(), 0, false),
	}, "")
	return b.CreateBitCast(slot0, llvm.PointerType(llvm.Int8Type(), 0), "")
}
