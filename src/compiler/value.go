package compiler

import (
	"strconv"
	"strings"

	"pimo/src/block"
	"pimo/src/cerr"
	"pimo/src/scope"
	"pimo/src/token"

	"tinygo.org/x/go-llvm"
)

// Value is the transient, per-use bundle produced by evaluating a Token or Block. Never stored —
// every declaration/assignment spills it to a fresh alloca immediately.
type Value struct {
	Type   llvm.Type
	Val    llvm.Value
	Ptr    llvm.Value // set when Val is itself the address of backing storage (e.g. a string literal).
	HasPtr bool
}

// llvmTypeOf resolves a Type-kind token's LLVM type, falling back to looking its text up in the
// recognised-type table when the lexer didn't already attach one (a bare "i32" keyword has no
// explicit ":type" suffix to attach, so HasLLVMType is false and the text itself names the type).
func llvmTypeOf(tok token.Token) (llvm.Type, bool) {
	if tok.HasLLVMType {
		return tok.LLVMType, true
	}
	return token.LLVMTypeByName(tok.Text)
}

// evalElement evaluates either a Token (a simple literal/name form) or a *block.Block (a
// composite stack expression).
func (c *Compiler) evalElement(sc *scope.Scope, el interface{}, typeCtx *llvm.Type) (Value, error) {
	switch v := el.(type) {
	case token.Token:
		return c.evalToken(sc, v, typeCtx)
	case *block.Block:
		if v.Kind == block.Stack {
			return c.evalStack(sc, v, typeCtx)
		}
		return Value{}, cerr.New(cerr.InvalidLiteralValueType, c.Program, 0, v.Kind.String())
	default:
		return Value{}, cerr.New(cerr.InvalidLiteralValueType, c.Program, 0, "unrecognised element")
	}
}

func (c *Compiler) evalToken(sc *scope.Scope, tok token.Token, typeCtx *llvm.Type) (Value, error) {
	switch tok.Kind {
	case token.Integer:
		return c.evalInteger(tok, typeCtx)
	case token.Decimal:
		return c.evalDecimal(tok, typeCtx)
	case token.Boolean:
		return c.evalBoolean(tok)
	case token.String:
		return c.evalString(tok)
	case token.Name:
		return c.evalName(sc, tok, typeCtx)
	default:
		return Value{}, cerr.New(cerr.InvalidLiteralValueType, c.Program, tok.Line, tok.Kind.String())
	}
}

// widthForInt picks the narrowest recognised integer width that an integer literal's value fits
// in as signed two's complement.
func widthForInt(n int64) llvm.Type {
	for _, w := range []int{8, 16, 24, 32, 64, 128} {
		lo := -(int64(1) << uint(w-1))
		hi := (int64(1) << uint(w-1)) - 1
		if w >= 64 {
			// int64 itself cannot overflow a 64+ bit signed range.
			return llvm.IntType(w)
		}
		if n >= lo && n <= hi {
			return llvm.IntType(w)
		}
	}
	return llvm.IntType(256)
}

func (c *Compiler) evalInteger(tok token.Token, typeCtx *llvm.Type) (Value, error) {
	n, err := strconv.ParseInt(tok.Text, 10, 64)
	if err != nil {
		return Value{}, cerr.New(cerr.InvalidLiteralValueType, c.Program, tok.Line, tok.Text)
	}
	var typ llvm.Type
	switch {
	case tok.HasLLVMType:
		typ = tok.LLVMType
	case typeCtx != nil:
		typ = *typeCtx
	default:
		typ = widthForInt(n)
	}
	return Value{Type: typ, Val: llvm.ConstInt(typ, uint64(n), true)}, nil
}

func (c *Compiler) evalDecimal(tok token.Token, typeCtx *llvm.Type) (Value, error) {
	f, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return Value{}, cerr.New(cerr.InvalidLiteralValueType, c.Program, tok.Line, tok.Text)
	}
	var typ llvm.Type
	switch {
	case tok.HasLLVMType:
		typ = tok.LLVMType
	case typeCtx != nil:
		typ = *typeCtx
	case float64(float32(f)) == f:
		typ = llvm.FloatType()
	default:
		typ = llvm.DoubleType()
	}
	return Value{Type: typ, Val: llvm.ConstFloat(typ, f)}, nil
}

func (c *Compiler) evalBoolean(tok token.Token) (Value, error) {
	var v uint64
	if strings.EqualFold(tok.Text, "true") {
		v = 1
	}
	t := llvm.Int1Type()
	return Value{Type: t, Val: llvm.ConstInt(t, v, false)}, nil
}

// evalString allocates a [N x i8] on the emitting function's frame and populates it element-wise.
func (c *Compiler) evalString(tok token.Token) (Value, error) {
	bytes := []byte(tok.Text)
	n := len(bytes)
	arr := llvm.ArrayType(llvm.Int8Type(), n)
	alloca := c.Builder.CreateAlloca(arr, "str")
	for i, by := range bytes {
		ptr := c.Builder.CreateGEP(alloca, []llvm.Value{
			llvm.ConstInt(llvm.Int32Type(), 0, false),
			llvm.ConstInt(llvm.Int32Type(), uint64(i), false),
		}, "")
		c.Builder.CreateStore(llvm.ConstInt(llvm.Int8Type(), uint64(by), false), ptr)
	}
	return Value{Type: arr, Val: alloca, Ptr: alloca, HasPtr: true}, nil
}

// evalName resolves a dotted (or memory-qualified) name and evaluates it per its scope kind.
func (c *Compiler) evalName(sc *scope.Scope, tok token.Token, typeCtx *llvm.Type) (Value, error) {
	var target *scope.Scope
	var ok bool
	if tok.Memory != "" {
		memScope, mok := sc.Root().Lookup(tok.Memory)
		if !mok {
			return Value{}, cerr.New(cerr.NameNotFound, c.Program, tok.Line, tok.Memory)
		}
		target, ok = memScope.Lookup(tok.Text)
	} else {
		target, ok = sc.Lookup(tok.Text)
	}
	if !ok {
		return Value{}, cerr.New(cerr.NameNotFound, c.Program, tok.Line, tok.Text)
	}

	switch target.Kind {
	case scope.Variable:
		return c.loadVariable(target, typeCtx)
	case scope.Function:
		return c.evalCall(sc, target, tok, typeCtx)
	default:
		return Value{}, cerr.New(cerr.InvalidElementType, c.Program, tok.Line, tok.Text)
	}
}

// loadVariable double-loads through a Variable's storage cell: the cell holds a pointer to the
// live value, itself reloaded here, then dereferenced once more to produce the value.
func (c *Compiler) loadVariable(v *scope.Scope, typeCtx *llvm.Type) (Value, error) {
	cellVal := c.Builder.CreateLoad(v.Storage, "")
	want := v.VarType
	if typeCtx != nil {
		want = *typeCtx
	}
	if want != v.VarType {
		cellVal = c.Builder.CreateBitCast(cellVal, llvm.PointerType(want, 0), "")
	}
	loaded := c.Builder.CreateLoad(cellVal, "")
	return Value{Type: want, Val: loaded}, nil
}

// evalCall evaluates a function call: each argument is evaluated independently against its
// parameter's declared type (no type context propagates further than that), argument count is
// checked before any IR for the call is built.
func (c *Compiler) evalCall(sc *scope.Scope, fnScope *scope.Scope, tok token.Token, typeCtx *llvm.Type) (Value, error) {
	var argElems []interface{}
	if tok.CallOptions != nil {
		argElems = tok.CallOptions.Elements()
	}
	argGroups := splitByComma(argElems)
	// A single-parameter call with an empty options block yields one empty group; treat that as
	// zero arguments rather than one missing argument.
	if len(argGroups) == 1 && len(argGroups[0]) == 0 {
		argGroups = nil
	}

	params := fnScope.Params
	if len(argGroups) != len(params) {
		return Value{}, cerr.New(cerr.InvalidArgumentSyntax, c.Program, tok.Line, tok.Text)
	}

	args := make([]llvm.Value, len(params))
	for i, group := range argGroups {
		if len(group) != 1 {
			return Value{}, cerr.New(cerr.InvalidArgumentSyntax, c.Program, tok.Line, tok.Text)
		}
		pt := params[i].Type
		v, err := c.evalElement(sc, group[0], &pt)
		if err != nil {
			return Value{}, err
		}
		args[i] = v.Val
	}

	result := c.Builder.CreateCall(fnScope.LLVMFunction, args, "")
	retType := fnScope.ReturnType
	if typeCtx != nil {
		retType = *typeCtx
	}
	return Value{Type: retType, Val: result}, nil
}

// splitByComma splits a flat element list on Delimiter "," tokens, the same boundary-scanning
// idea compileBody uses for ";" in compile.go.
func splitByComma(elems []interface{}) [][]interface{} {
	var out [][]interface{}
	var cur []interface{}
	for _, e := range elems {
		if t, ok := e.(token.Token); ok && t.Kind == token.Delimiter && t.Text == "," {
			out = append(out, cur)
			cur = nil
			continue
		}
		cur = append(cur, e)
	}
	out = append(out, cur)
	return out
}
