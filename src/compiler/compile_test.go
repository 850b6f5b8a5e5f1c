package compiler

import (
	"strings"
	"testing"

	"pimo/src/block"
	"pimo/src/macro"
	"pimo/src/source"
)

// compileSrc runs the full pipeline (intern, lex, block-parse, macro-expand, compile) the way
// cmd/pimoc's run() does, returning the rendered module text on success.
func compileSrc(t *testing.T, src string) (string, error) {
	t.Helper()
	text, strs, err := source.Intern("main.pim", src)
	if err != nil {
		t.Fatalf("Intern: %s", err)
	}
	lines, err := source.Lex("main.pim", text, strs)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	root, err := block.Parse("main.pim", lines)
	if err != nil {
		t.Fatalf("block.Parse: %s", err)
	}
	block.PostProcess(root)

	table, err := macro.CollectDirectives("main.pim", lines)
	if err != nil {
		t.Fatalf("CollectDirectives: %s", err)
	}
	if err := macro.Expand("main.pim", root, table); err != nil {
		t.Fatalf("Expand: %s", err)
	}

	c := New("main.pim")
	defer c.Dispose()
	mod, err := c.GenModule(root)
	if err != nil {
		return "", err
	}
	return mod.String(), nil
}

// TestEmptyProcBodyGetsImplicitVoidReturn checks that an empty `proc` body compiles to a function
// with an implicit void return rather than being rejected as an EmptySegment.
func TestEmptyProcBodyGetsImplicitVoidReturn(t *testing.T) {
	out, err := compileSrc(t, "proc main { }")
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	if !strings.Contains(out, "@main") {
		t.Errorf("module text = %q, want a definition of @main", out)
	}
	if !strings.Contains(out, "ret void") {
		t.Errorf("module text = %q, want an implicit ret void", out)
	}
}

// TestReturnConstantInteger checks a function returning a bare integer literal compiles cleanly.
func TestReturnConstantInteger(t *testing.T) {
	out, err := compileSrc(t, "func i32 main() { return 42; }")
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	if !strings.Contains(out, "define i32 @main") {
		t.Errorf("module text = %q, want define i32 @main", out)
	}
}

// TestMacroReferenceExpandsBeforeCompilation checks a "§NAME" macro reference is substituted in
// before compilation sees it, so it compiles the same as the literal it stands for.
func TestMacroReferenceExpandsBeforeCompilation(t *testing.T) {
	out, err := compileSrc(t, "# define FORTY_TWO 42\nfunc i32 main() { return §FORTY_TWO; }")
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	if !strings.Contains(out, "define i32 @main") {
		t.Errorf("module text = %q, want define i32 @main", out)
	}
}

// TestIfElseBranchesOnLiteralCondition checks a bare boolean literal condition produces both
// branch targets.
func TestIfElseBranchesOnLiteralCondition(t *testing.T) {
	out, err := compileSrc(t, "func i32 main() { if true { return 1; } else { return 0; }; }")
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	for _, want := range []string{"if.then", "if.else"} {
		if !strings.Contains(out, want) {
			t.Errorf("module text missing block %q:\n%s", want, out)
		}
	}
}

// TestWhileCountdownReassignsLoopVariable checks a while loop that reassigns its own counter each
// iteration compiles down to a standard body/end basic-block pair.
func TestWhileCountdownReassignsLoopVariable(t *testing.T) {
	out, err := compileSrc(t, `func i32 main() {
		i32 n = 3;
		while [n 0 !=] { n = [n 1 -]; };
		return n;
	}`)
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	if !strings.Contains(out, "while.body") || !strings.Contains(out, "while.end") {
		t.Errorf("module text missing while.body/while.end:\n%s", out)
	}
}

// TestStackExpressionDupAndAdd checks a composite stack expression using "dup" and "+" compiles.
func TestStackExpressionDupAndAdd(t *testing.T) {
	out, err := compileSrc(t, "func i32 main() { return [3 dup +]; }")
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	if !strings.Contains(out, "define i32 @main") {
		t.Errorf("module text = %q, want define i32 @main", out)
	}
}

func TestEmptyIfBodyIsEmptySegment(t *testing.T) {
	_, err := compileSrc(t, "proc main { if true { } }")
	if err == nil {
		t.Fatal("expected EmptySegment error for an empty if body")
	}
}

func TestEmptyWhileBodyIsEmptySegment(t *testing.T) {
	_, err := compileSrc(t, "proc main { while true { } }")
	if err == nil {
		t.Fatal("expected EmptySegment error for an empty while body")
	}
}

func TestVariableDeclarationAndReturn(t *testing.T) {
	out, err := compileSrc(t, "func i32 main() { i32 x = 3; return x; }")
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	if !strings.Contains(out, "define i32 @main") {
		t.Errorf("module text = %q, want define i32 @main", out)
	}
}

func TestAssignmentToUndeclaredNameErrors(t *testing.T) {
	_, err := compileSrc(t, "proc main { x = 3; }")
	if err == nil {
		t.Fatal("expected NameNotFound error assigning to an undeclared name")
	}
}

func TestIfElifElseChain(t *testing.T) {
	out, err := compileSrc(t, `func i32 main() {
		i32 x = 1;
		if [x 1 ==] { return 10; }
		elif [x 2 ==] { return 20; }
		else { return 30; };
	}`)
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	for _, want := range []string{"if.then", "if.elif", "if.else"} {
		if !strings.Contains(out, want) {
			t.Errorf("module text missing block %q:\n%s", want, out)
		}
	}
}

func TestFunctionCallWithArguments(t *testing.T) {
	out, err := compileSrc(t, `func i32 add(i32 a, i32 b) { return [a b +]; }
	func i32 main() { return add(1, 2); }`)
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	if !strings.Contains(out, "call i32 @add") {
		t.Errorf("module text = %q, want a call to @add", out)
	}
}

func TestFunctionCallArgumentCountMismatchErrors(t *testing.T) {
	_, err := compileSrc(t, `func i32 add(i32 a, i32 b) { return [a b +]; }
	func i32 main() { return add(1); }`)
	if err == nil {
		t.Fatal("expected InvalidArgumentSyntax error for a wrong argument count")
	}
}

func TestNestedFunctionGetsSyntheticSymbol(t *testing.T) {
	out, err := compileSrc(t, `proc main {
		func i32 helper() { return 1; }
	}`)
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	if strings.Contains(out, "@helper") {
		t.Errorf("module text should not use the literal name @helper for a nested declaration:\n%s", out)
	}
	if !strings.Contains(out, "@func_") {
		t.Errorf("module text missing synthesized func_<id> symbol:\n%s", out)
	}
}

func TestOpsAddAccumulatesIntoDestination(t *testing.T) {
	out, err := compileSrc(t, `proc main {
		i32 x = 1;
		ops (add x 1 2 3);
	}`)
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	if !strings.Contains(out, "@main") {
		t.Errorf("module text = %q, want @main", out)
	}
}

func TestReturnOutsideFunctionErrors(t *testing.T) {
	_, err := compileSrc(t, "return 1;")
	if err == nil {
		t.Fatal("expected InvalidInstructionContext error for return at global scope")
	}
}

func TestCodeAfterReturnIsUnreachable(t *testing.T) {
	_, err := compileSrc(t, "proc main { return; i32 x = 1; }")
	if err == nil {
		t.Fatal("expected InvalidInstructionContext error for code following a return")
	}
}

func TestDuplicateDeclarationErrors(t *testing.T) {
	_, err := compileSrc(t, "proc main { i32 x = 1; i32 x = 2; }")
	if err == nil {
		t.Fatal("expected NameAlreadyTaken error for a redeclared name")
	}
}

func TestInvalidOperatorErrors(t *testing.T) {
	_, err := compileSrc(t, "func i32 main() { return [1 2 $]; }")
	if err == nil {
		t.Fatal("expected a lexical classification or compile error for an unrecognised operator")
	}
}

func TestVarDeclWithUnresolvedStructNameErrors(t *testing.T) {
	_, err := compileSrc(t, "proc main { Point p; }")
	if err == nil {
		t.Fatal("expected NameNotFound error for an undeclared type/structure name")
	}
}
