package source

import (
	"testing"

	"pimo/src/token"
)

func lexOne(t *testing.T, src string) []token.Token {
	t.Helper()
	text, strs, err := Intern("main.pim", src)
	if err != nil {
		t.Fatalf("Intern: %s", err)
	}
	lines, err := Lex("main.pim", text, strs)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	return lines[0].Tokens
}

func TestLexBasicDeclaration(t *testing.T) {
	toks := lexOne(t, "i32 x = 3")
	want := []struct {
		kind token.Kind
		text string
	}{
		{token.Type, "i32"},
		{token.Name, "x"},
		{token.Operator, "="},
		{token.Integer, "3"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Text != w.text {
			t.Errorf("token %d = %q/%s, want %q/%s", i, toks[i].Text, toks[i].Kind, w.text, w.kind)
		}
	}
}

func TestLexLineCommentStopsScanning(t *testing.T) {
	toks := lexOne(t, "return // trailing remark")
	if len(toks) != 1 || toks[0].Text != "return" {
		t.Errorf("toks = %v, want just [return]", toks)
	}
}

func TestLexFusedComparisonOperators(t *testing.T) {
	toks := lexOne(t, "a == b != c <= d >= e")
	var ops []string
	for _, tok := range toks {
		if tok.Kind == token.Operator {
			ops = append(ops, tok.Text)
		}
	}
	want := []string{"==", "!=", "<=", ">="}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("ops[%d] = %q, want %q", i, ops[i], want[i])
		}
	}
}

func TestLexSizedStackOpener(t *testing.T) {
	toks := lexOne(t, "4:[ 1 2 3 4 ]")
	if toks[0].Text != "[" || !toks[0].HasSize || toks[0].Size != 4 {
		t.Errorf("first token = %+v, want sized [ with Size 4", toks[0])
	}
}

func TestLexQualifiedName(t *testing.T) {
	toks := lexOne(t, "GLOBAL::counter")
	if len(toks) != 1 {
		t.Fatalf("got %d tokens, want 1: %v", len(toks), toks)
	}
	if toks[0].Text != "counter" || toks[0].Memory != "GLOBAL" {
		t.Errorf("token = %+v, want Memory=GLOBAL Text=counter", toks[0])
	}
}

func TestLexStackIntrospectionOperators(t *testing.T) {
	toks := lexOne(t, ".% ..%")
	if len(toks) != 2 || toks[0].Text != ".%" || toks[1].Text != "..%" {
		t.Errorf("toks = %v, want [.% ..%]", toks)
	}
}

func TestLexExplicitTypeSuffix(t *testing.T) {
	toks := lexOne(t, "x:i32")
	if len(toks) != 1 {
		t.Fatalf("got %d tokens, want 1: %v", len(toks), toks)
	}
	if toks[0].Text != "x" || !toks[0].HasLLVMType {
		t.Errorf("token = %+v, want HasLLVMType", toks[0])
	}
}

func TestLexStringReference(t *testing.T) {
	text, strs, err := Intern("main.pim", `"hi there"`)
	if err != nil {
		t.Fatalf("Intern: %s", err)
	}
	lines, err := Lex("main.pim", text, strs)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	toks := lines[0].Tokens
	if len(toks) != 1 || toks[0].Kind != token.String || toks[0].Text != "hi there" {
		t.Errorf("toks = %v, want single String token", toks)
	}
}

func TestLexUnknownStringHandleErrors(t *testing.T) {
	_, err := Lex("main.pim", "&99", map[string]string{})
	if err == nil {
		t.Fatal("expected error for unresolved string handle")
	}
}

func TestLexMacroCallRequiresUpperName(t *testing.T) {
	if _, err := Lex("main.pim", "§lower", map[string]string{}); err == nil {
		t.Error("expected NotUpperCaseMacroName error for lowercase macro call")
	}
	toks := lexOne(t, "§UPPER")
	if len(toks) != 1 || toks[0].Kind != token.Macro || toks[0].Text != "UPPER" {
		t.Errorf("toks = %v, want single Macro token UPPER", toks)
	}
}

func TestLexBlankLinesAreSkipped(t *testing.T) {
	text, strs, err := Intern("main.pim", "\n\nreturn\n\n")
	if err != nil {
		t.Fatalf("Intern: %s", err)
	}
	lines, err := Lex("main.pim", text, strs)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	if len(lines) != 1 || lines[0].Line != 3 {
		t.Errorf("lines = %+v, want single line at 3", lines)
	}
}
