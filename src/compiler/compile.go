// Package compiler implements component E: the semantic compiler. It walks the post-expansion
// block tree against a GlobalScope and emits LLVM IR.
package compiler

import (
	"strings"

	"pimo/src/block"
	"pimo/src/cerr"
	"pimo/src/scope"
	"pimo/src/token"
	"pimo/src/util"

	"tinygo.org/x/go-llvm"
)

// Compiler owns the single LLVM context/module/builder triple live for one compilation: exactly
// one active insertion point exists at any instant.
type Compiler struct {
	Program string
	Ctx     llvm.Context
	Module  llvm.Module
	Builder llvm.Builder
	Global  *scope.Scope
}

// New sets up a fresh context/module/builder for compiling program.
func New(program string) *Compiler {
	ctx := llvm.NewContext()
	b := ctx.NewBuilder()
	m := ctx.NewModule(program)
	m.SetTarget(llvm.DefaultTargetTriple())
	return &Compiler{Program: program, Ctx: ctx, Module: m, Builder: b}
}

// Dispose releases the LLVM resources New allocated.
func (c *Compiler) Dispose() {
	c.Builder.Dispose()
	c.Module.Dispose()
	c.Ctx.Dispose()
}

// GenModule compiles root's tree into c.Module against a fresh GlobalScope.
func (c *Compiler) GenModule(root *block.Block) (llvm.Module, error) {
	c.Global = scope.NewGlobal()
	if _, err := c.compileBody(c.Global, root.Children, true); err != nil {
		return c.Module, err
	}
	return c.Module, nil
}

// compileBody compiles a flat (already block-folded) element list as a sequence of instructions,
// splitting plain statements on ";" but letting func/proc/if/while consume their own trailing
// Segment-block bodies directly. allowEmpty controls whether a zero-length body is EmptySegment or
// a quiet no-op: function bodies allow it (an empty `proc` compiles to an implicit `ret void`);
// if/elif/else/while bodies do not, since an empty conditional or loop body is almost always a
// source mistake worth flagging rather than the reasonable base case a function body is.
func (c *Compiler) compileBody(sc *scope.Scope, elems []interface{}, allowEmpty bool) (bool, error) {
	if len(elems) == 0 {
		if allowEmpty {
			return false, nil
		}
		return false, cerr.New(cerr.EmptySegment, c.Program, 0)
	}

	terminated := false
	i, n := 0, len(elems)
	for i < n {
		tok, ok := elems[i].(token.Token)
		if !ok {
			return terminated, cerr.New(cerr.InvalidInstruction, c.Program, 0, "unexpected block")
		}
		if terminated {
			return terminated, cerr.New(cerr.InvalidInstructionContext, c.Program, tok.Line, "unreachable after return")
		}

		switch {
		case tok.Is(token.Instruction, "func"), tok.Is(token.Instruction, "proc"):
			consumed, err := c.compileFuncDecl(sc, elems[i:])
			if err != nil {
				return terminated, err
			}
			i += consumed
		case tok.Is(token.Instruction, "if"):
			consumed, err := c.compileIf(sc, elems[i:])
			if err != nil {
				return terminated, err
			}
			i += consumed
		case tok.Is(token.Instruction, "while"):
			consumed, err := c.compileWhile(sc, elems[i:])
			if err != nil {
				return terminated, err
			}
			i += consumed
		case tok.Is(token.Instruction, "return"):
			consumed, err := c.compileReturn(sc, elems[i:])
			if err != nil {
				return terminated, err
			}
			i += consumed
			terminated = true
		default:
			end := i
			for end < n {
				if d, ok := elems[end].(token.Token); ok && d.Kind == token.Delimiter && d.Text == ";" {
					break
				}
				end++
			}
			// A ";" with nothing before it (e.g. the one closing an if/while) is an empty statement.
			if end > i {
				if err := c.compileStatement(sc, elems[i:end]); err != nil {
					return terminated, err
				}
			}
			if end < n {
				end++
			}
			i = end
		}
	}
	return terminated, nil
}

// compileFuncDecl handles `func <type> <name>(<params>) { <body> }` and `proc <name> { <body> }`.
// Returns how many of elems it consumed.
func (c *Compiler) compileFuncDecl(sc *scope.Scope, elems []interface{}) (int, error) {
	instrTok := elems[0].(token.Token)
	isProc := instrTok.Is(token.Instruction, "proc")

	idx := 1
	var retType llvm.Type
	if isProc {
		retType = llvm.VoidType()
	} else {
		typeTok, ok := elems[idx].(token.Token)
		if !ok || typeTok.Kind != token.Type {
			return 0, cerr.New(cerr.InvalidInstructionSyntax, c.Program, instrTok.Line, "func", "expected return type")
		}
		retType, _ = llvmTypeOf(typeTok)
		idx++
	}

	nameTok, ok := elems[idx].(token.Token)
	if !ok || nameTok.Kind != token.Name {
		return 0, cerr.New(cerr.InvalidInstructionSyntax, c.Program, instrTok.Line, "func/proc", "expected name")
	}
	idx++

	var params []scope.Param
	if !isProc && nameTok.CallOptions != nil {
		groups := splitByComma(nameTok.CallOptions.Elements())
		if !(len(groups) == 1 && len(groups[0]) == 0) {
			for _, g := range groups {
				if len(g) != 2 {
					return 0, cerr.New(cerr.InvalidInstructionSyntax, c.Program, nameTok.Line, "parameter")
				}
				pt, pok := g[0].(token.Token)
				pn, nok := g[1].(token.Token)
				if !pok || !nok || pt.Kind != token.Type || pn.Kind != token.Name {
					return 0, cerr.New(cerr.InvalidInstructionSyntax, c.Program, nameTok.Line, "parameter")
				}
				ptType, _ := llvmTypeOf(pt)
				params = append(params, scope.Param{Name: pn.Text, Type: ptType})
			}
		}
	}

	// Function identifiers: the declared name at the root scope (so "main" stays "main"), and for
	// any other root-level symbol; a synthetic func_<id> everywhere else to avoid collisions
	// between same-named locally scoped helpers declared in different call sites.
	symbol := nameTok.Text
	if sc.Kind != scope.Global {
		symbol = "func_" + util.NewID()
	}

	paramTypes := make([]llvm.Type, len(params))
	for i, p := range params {
		paramTypes[i] = p.Type
	}
	fnType := llvm.FunctionType(retType, paramTypes, false)
	fnVal := llvm.AddFunction(c.Module, symbol, fnType)

	fnScope := scope.NewFunction(nameTok.Text, retType, isProc)
	fnScope.LLVMFunction = fnVal
	fnScope.Params = params
	if !sc.Declare(nameTok.Text, fnScope) {
		return 0, cerr.New(cerr.NameAlreadyTaken, c.Program, nameTok.Line, nameTok.Text)
	}

	consumed := idx
	if idx < len(elems) {
		if body, ok := elems[idx].(*block.Block); ok && body.Kind == block.Segment {
			// A nested declaration moves the builder into the new function; return it to the
			// enclosing function's block afterwards so that body's code keeps landing there.
			nested := sc.Kind != scope.Global
			var outer llvm.BasicBlock
			if nested {
				outer = c.Builder.GetInsertBlock()
			}
			if err := c.compileFuncBody(fnScope, fnVal, body); err != nil {
				return 0, err
			}
			if nested {
				c.Builder.SetInsertPointAtEnd(outer)
			}
			consumed = idx + 1
		}
	}
	return consumed, nil
}

// compileFuncBody appends an entry block, spills each parameter to a local cell, and recurses into
// the body, appending an implicit terminator if the body did not already emit one.
func (c *Compiler) compileFuncBody(fnScope *scope.Scope, fnVal llvm.Value, body *block.Block) error {
	entry := llvm.AddBasicBlock(fnVal, "entry")
	fnScope.EntryBlock = entry
	c.Builder.SetInsertPointAtEnd(entry)

	for i, p := range fnScope.Params {
		cell := c.Builder.CreateAlloca(llvm.PointerType(p.Type, 0), p.Name)
		valueAlloca := c.Builder.CreateAlloca(p.Type, "")
		c.Builder.CreateStore(fnVal.Param(i), valueAlloca)
		c.Builder.CreateStore(valueAlloca, cell)
		sc := scope.NewVariable(p.Name, p.Type, cell, false)
		fnScope.Declare(p.Name, sc)
	}

	terminated, err := c.compileBody(fnScope, body.Children, true)
	if err != nil {
		return err
	}
	if !terminated {
		if fnScope.IsVoid {
			c.Builder.CreateRetVoid()
		} else {
			c.Builder.CreateRet(llvm.ConstNull(fnScope.ReturnType))
		}
	}
	return nil
}

// compileReturn handles `return [<expr>]`.
func (c *Compiler) compileReturn(sc *scope.Scope, elems []interface{}) (int, error) {
	instrTok := elems[0].(token.Token)
	fn := sc.EnclosingFunction()
	if fn == nil {
		return 0, cerr.New(cerr.InvalidInstructionContext, c.Program, instrTok.Line, "return outside a function")
	}

	end := 1
	n := len(elems)
	for end < n {
		if d, ok := elems[end].(token.Token); ok && d.Kind == token.Delimiter && d.Text == ";" {
			break
		}
		end++
	}
	exprElems := elems[1:end]

	switch {
	case len(exprElems) == 0:
		if fn.IsVoid {
			c.Builder.CreateRetVoid()
		} else {
			c.Builder.CreateRet(llvm.ConstNull(fn.ReturnType))
		}
	case len(exprElems) == 1:
		rt := fn.ReturnType
		v, err := c.evalElement(sc, exprElems[0], &rt)
		if err != nil {
			return 0, err
		}
		c.Builder.CreateRet(v.Val)
	default:
		return 0, cerr.New(cerr.InvalidInstructionSyntax, c.Program, instrTok.Line, "return")
	}

	consumed := end
	if end < n {
		consumed++
	}
	return consumed, nil
}

// toBranchCond compares a condition value against its zero value using unsigned "!=", producing
// the i1 a CreateCondBr expects regardless of the condition's source width.
func (c *Compiler) toBranchCond(v Value) llvm.Value {
	return c.Builder.CreateICmp(llvm.IntNE, v.Val, llvm.ConstInt(v.Type, 0, false), "")
}

// ifAlt is one (cond, body) alternative of an if/elif chain.
type ifAlt struct {
	cond interface{}
	body *block.Block
}

// compileIf handles `if <cond> <seg> [elif <cond> <seg>]* [else <seg>]`.
func (c *Compiler) compileIf(sc *scope.Scope, elems []interface{}) (int, error) {
	instrTok := elems[0].(token.Token)
	idx := 1
	n := len(elems)

	readAlt := func() (ifAlt, error) {
		if idx >= n {
			return ifAlt{}, cerr.New(cerr.InvalidInstructionSyntax, c.Program, instrTok.Line, "if", "missing condition")
		}
		cond := elems[idx]
		idx++
		body, ok := elems[idx].(*block.Block)
		if !ok || body.Kind != block.Segment {
			return ifAlt{}, cerr.New(cerr.InvalidInstructionSyntax, c.Program, instrTok.Line, "if", "missing body")
		}
		idx++
		return ifAlt{cond: cond, body: body}, nil
	}

	first, err := readAlt()
	if err != nil {
		return 0, err
	}
	alts := []ifAlt{first}

	var elseBody *block.Block
	for idx < n {
		t, ok := elems[idx].(token.Token)
		if !ok {
			break
		}
		if t.Is(token.Instruction, "elif") {
			idx++
			a, err := readAlt()
			if err != nil {
				return 0, err
			}
			alts = append(alts, a)
			continue
		}
		if t.Is(token.Instruction, "else") {
			idx++
			body, ok := elems[idx].(*block.Block)
			if !ok || body.Kind != block.Segment {
				return 0, cerr.New(cerr.InvalidInstructionSyntax, c.Program, instrTok.Line, "else", "missing body")
			}
			idx++
			elseBody = body
		}
		break
	}

	fn := sc.EnclosingFunction()
	if fn == nil {
		return 0, cerr.New(cerr.InvalidInstructionContext, c.Program, instrTok.Line, "if outside a function")
	}
	ifctx := NewIfContext(c.Builder, fn.LLVMFunction)

	for k, a := range alts {
		if k > 0 {
			// An elif's condition is evaluated in the intermediate block it branches from.
			c.Builder.SetInsertPointAtEnd(ifctx.interm)
		}
		condVal, err := c.evalElement(sc, a.cond, nil)
		if err != nil {
			return 0, err
		}
		cond := c.toBranchCond(condVal)
		hasMore := k < len(alts)-1
		if k == 0 {
			ifctx.MakeIf(cond, hasMore)
		} else {
			ifctx.MakeElif(cond, hasMore)
		}
		term, err := c.compileBody(sc, a.body.Children, false)
		if err != nil {
			return 0, err
		}
		ifctx.Converge(term)
	}

	if elseBody != nil {
		ifctx.PositionAtElse()
		term, err := c.compileBody(sc, elseBody.Children, false)
		if err != nil {
			return 0, err
		}
		ifctx.Converge(term)
	} else {
		ifctx.BranchUnusedElseToFinal()
	}
	ifctx.PositionAtFinal()

	return idx, nil
}

// compileWhile handles `while <cond> <seg>`.
func (c *Compiler) compileWhile(sc *scope.Scope, elems []interface{}) (int, error) {
	instrTok := elems[0].(token.Token)
	if len(elems) < 3 {
		return 0, cerr.New(cerr.InvalidInstructionSyntax, c.Program, instrTok.Line, "while")
	}
	condElem := elems[1]
	body, ok := elems[2].(*block.Block)
	if !ok || body.Kind != block.Segment {
		return 0, cerr.New(cerr.InvalidInstructionSyntax, c.Program, instrTok.Line, "while", "missing body")
	}

	fn := sc.EnclosingFunction()
	if fn == nil {
		return 0, cerr.New(cerr.InvalidInstructionContext, c.Program, instrTok.Line, "while outside a function")
	}
	wctx := NewWhileContext(c.Builder, fn.LLVMFunction)

	entryCond, err := c.evalElement(sc, condElem, nil)
	if err != nil {
		return 0, err
	}
	wctx.Enter(c.toBranchCond(entryCond))

	terminated, err := c.compileBody(sc, body.Children, false)
	if err != nil {
		return 0, err
	}
	if terminated {
		wctx.Loop(true, llvm.Value{})
	} else {
		loopCond, err := c.evalElement(sc, condElem, nil)
		if err != nil {
			return 0, err
		}
		wctx.Loop(false, c.toBranchCond(loopCond))
	}
	wctx.PositionAtFinal()

	return 3, nil
}

// compileStatement dispatches the remaining instruction forms that are always ";"-terminated:
// variable declaration, assignment, "ops", and a bare expression for side effects.
func (c *Compiler) compileStatement(sc *scope.Scope, stmt []interface{}) error {
	if len(stmt) == 0 {
		return cerr.New(cerr.EmptySegment, c.Program, 0)
	}

	if instrTok, ok := stmt[0].(token.Token); ok && instrTok.Is(token.Instruction, "ops") {
		return c.compileOps(sc, stmt)
	}

	if len(stmt) >= 2 {
		t0, ok0 := stmt[0].(token.Token)
		t1, ok1 := stmt[1].(token.Token)
		if ok0 && ok1 && (t0.Kind == token.Type || t0.Kind == token.Name) && t1.Kind == token.Name {
			return c.compileVarDecl(sc, t0, stmt[1:])
		}
		if ok0 && ok1 && t0.Kind == token.Name && t1.Kind == token.Operator && t1.Text == "=" {
			return c.compileAssign(sc, t0, stmt[2:])
		}
	}

	_, err := c.evalElement(sc, stmt[0], nil)
	return err
}

// compileVarDecl handles `<type> <name> [= <expr>]` / `<StructName> <name> [= <expr>]`.
func (c *Compiler) compileVarDecl(sc *scope.Scope, typeTok token.Token, rest []interface{}) error {
	nameTok := rest[0].(token.Token)

	var varType llvm.Type
	if typeTok.Kind == token.Type {
		varType, _ = llvmTypeOf(typeTok)
	} else {
		target, ok := sc.Lookup(typeTok.Text)
		if !ok {
			return cerr.New(cerr.NameNotFound, c.Program, typeTok.Line, typeTok.Text)
		}
		if target.Kind == scope.Structure {
			// Structure bodies are unimplemented: there is no LLVM type to back storage with.
			return cerr.New(cerr.NotType, c.Program, typeTok.Line, typeTok.Text)
		}
		return cerr.New(cerr.NotStructure, c.Program, typeTok.Line, typeTok.Text)
	}

	var init *Value
	if len(rest) > 1 {
		eqTok, ok := rest[1].(token.Token)
		if !ok || eqTok.Kind != token.Operator || eqTok.Text != "=" {
			return cerr.New(cerr.InvalidInstructionSyntax, c.Program, nameTok.Line, "declaration")
		}
		exprElems := rest[2:]
		if len(exprElems) != 1 {
			return cerr.New(cerr.InvalidInstructionSyntax, c.Program, nameTok.Line, "declaration")
		}
		v, err := c.evalElement(sc, exprElems[0], &varType)
		if err != nil {
			return err
		}
		init = &v
	}

	cell := c.Builder.CreateAlloca(llvm.PointerType(varType, 0), nameTok.Text)
	valueAlloca := c.Builder.CreateAlloca(varType, "")
	if init != nil {
		c.Builder.CreateStore(init.Val, valueAlloca)
	} else {
		c.Builder.CreateStore(llvm.ConstNull(varType), valueAlloca)
	}
	c.Builder.CreateStore(valueAlloca, cell)

	vs := scope.NewVariable(nameTok.Text, varType, cell, false)
	if !sc.Declare(nameTok.Text, vs) {
		return cerr.New(cerr.NameAlreadyTaken, c.Program, nameTok.Line, nameTok.Text)
	}
	return nil
}

// compileAssign handles `<name> = <expr>`.
func (c *Compiler) compileAssign(sc *scope.Scope, nameTok token.Token, exprElems []interface{}) error {
	target, ok := sc.Lookup(nameTok.Text)
	if !ok {
		return cerr.New(cerr.NameNotFound, c.Program, nameTok.Line, nameTok.Text)
	}
	if target.Kind != scope.Variable {
		return cerr.New(cerr.InvalidElementType, c.Program, nameTok.Line, nameTok.Text)
	}
	if len(exprElems) != 1 {
		return cerr.New(cerr.InvalidInstructionSyntax, c.Program, nameTok.Line, "assignment")
	}

	vt := target.VarType
	v, err := c.evalElement(sc, exprElems[0], &vt)
	if err != nil {
		return err
	}
	valueAlloca := c.Builder.CreateAlloca(vt, "")
	c.Builder.CreateStore(v.Val, valueAlloca)
	c.Builder.CreateStore(valueAlloca, target.Storage)
	return nil
}

// compileOps handles `ops (<op> <dest-var> <operand>+) …`: each parenthesised group applies its
// operator pairwise, left to right, re-reading dest fresh from storage before every application.
func (c *Compiler) compileOps(sc *scope.Scope, stmt []interface{}) error {
	for _, e := range stmt[1:] {
		grp, ok := e.(*block.Block)
		if !ok || grp.Kind != block.Options {
			continue
		}
		if err := c.compileOneOp(sc, grp); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileOneOp(sc *scope.Scope, grp *block.Block) error {
	els := grp.Elements()
	if len(els) < 3 {
		return cerr.New(cerr.InvalidInstructionSyntax, c.Program, 0, "ops")
	}
	opTok, ok := els[0].(token.Token)
	if !ok {
		return cerr.New(cerr.InvalidInstructionSyntax, c.Program, 0, "ops")
	}
	destTok, ok := els[1].(token.Token)
	if !ok || destTok.Kind != token.Name {
		return cerr.New(cerr.InvalidInstructionSyntax, c.Program, opTok.Line, "ops")
	}
	dest, found := sc.Lookup(destTok.Text)
	if !found || dest.Kind != scope.Variable {
		return cerr.New(cerr.NameNotFound, c.Program, destTok.Line, destTok.Text)
	}

	var combine func(a, b llvm.Value) llvm.Value
	switch strings.ToLower(opTok.Text) {
	case "add":
		combine = func(a, b llvm.Value) llvm.Value { return c.Builder.CreateAdd(a, b, "") }
	case "sub":
		combine = func(a, b llvm.Value) llvm.Value { return c.Builder.CreateSub(a, b, "") }
	default:
		return cerr.New(cerr.InvalidOperator, c.Program, opTok.Line, opTok.Text)
	}

	for _, operandEl := range els[2:] {
		vt := dest.VarType
		operand, err := c.evalElement(sc, operandEl, &vt)
		if err != nil {
			return err
		}
		cur, err := c.loadVariable(dest, &vt)
		if err != nil {
			return err
		}
		result := combine(cur.Val, operand.Val)
		valueAlloca := c.Builder.CreateAlloca(vt, "")
		c.Builder.CreateStore(result, valueAlloca)
		c.Builder.CreateStore(valueAlloca, dest.Storage)
	}
	return nil
}
