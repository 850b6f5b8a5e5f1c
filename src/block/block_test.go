package block

import (
	"testing"

	"pimo/src/source"
	"pimo/src/token"
)

func parseSrc(t *testing.T, src string) *Block {
	t.Helper()
	text, strs, err := source.Intern("main.pim", src)
	if err != nil {
		t.Fatalf("Intern: %s", err)
	}
	lines, err := source.Lex("main.pim", text, strs)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	root, err := Parse("main.pim", lines)
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	return root
}

func TestParseFoldsNestedBrackets(t *testing.T) {
	root := parseSrc(t, "proc main { return }")
	if len(root.Children) != 3 {
		t.Fatalf("root.Children = %d, want 3 (proc, main, segment)", len(root.Children))
	}
	seg, ok := root.Children[len(root.Children)-1].(*Block)
	if !ok || seg.Kind != Segment {
		t.Fatalf("last child = %+v, want a Segment block", root.Children[len(root.Children)-1])
	}
	if len(seg.Children) != 1 {
		t.Fatalf("segment children = %d, want 1 (return)", len(seg.Children))
	}
}

func TestParseUnclosedBlockErrors(t *testing.T) {
	text, strs, err := source.Intern("main.pim", "proc main {")
	if err != nil {
		t.Fatalf("Intern: %s", err)
	}
	lines, err := source.Lex("main.pim", text, strs)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	if _, err := Parse("main.pim", lines); err == nil {
		t.Fatal("expected BlockDelimitation error for unclosed segment")
	}
}

func TestParseMismatchedCloserErrors(t *testing.T) {
	text, strs, err := source.Intern("main.pim", "proc main { ]")
	if err != nil {
		t.Fatalf("Intern: %s", err)
	}
	lines, err := source.Lex("main.pim", text, strs)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	if _, err := Parse("main.pim", lines); err == nil {
		t.Fatal("expected BlockDelimitation error for a ] closing a { segment")
	}
}

func TestParseEmptyStackErrors(t *testing.T) {
	text, strs, err := source.Intern("main.pim", "x = [ ]")
	if err != nil {
		t.Fatalf("Intern: %s", err)
	}
	lines, err := source.Lex("main.pim", text, strs)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	if _, err := Parse("main.pim", lines); err == nil {
		t.Fatal("expected BlockDelimitation error for an empty stack")
	}
}

func TestParseDirectiveLineIsInvisible(t *testing.T) {
	root := parseSrc(t, "# define FOO 1\nproc main { return }")
	for _, c := range root.Children {
		if tok, ok := c.(token.Token); ok && tok.Text == "#" {
			t.Fatalf("directive token leaked into block tree: %+v", tok)
		}
	}
}

func TestPostProcessCollapsesDottedName(t *testing.T) {
	root := parseSrc(t, "x = foo.bar")
	PostProcess(root)
	var found bool
	for _, c := range root.Children {
		if tok, ok := c.(token.Token); ok && tok.Kind == token.Name && tok.Text == "foo.bar" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected collapsed name foo.bar in %v", root.Children)
	}
}

func TestPostProcessAttachesTypeSuffix(t *testing.T) {
	root := parseSrc(t, "x:i32 = 3")
	PostProcess(root)
	tok, ok := root.Children[0].(token.Token)
	if !ok || tok.Text != "x" || !tok.HasLLVMType {
		t.Errorf("root.Children[0] = %+v, want x with HasLLVMType", root.Children[0])
	}
}

func TestPostProcessAttachesCallOptions(t *testing.T) {
	root := parseSrc(t, "foo ( 1 , 2 )")
	PostProcess(root)
	tok, ok := root.Children[0].(token.Token)
	if !ok || tok.Text != "foo" || tok.CallOptions == nil {
		t.Fatalf("root.Children[0] = %+v, want foo with CallOptions", root.Children[0])
	}
	if len(tok.CallOptions.Elements()) == 0 {
		t.Errorf("expected non-empty call options")
	}
}

func TestBlockKindString(t *testing.T) {
	if Root.String() != "root" || Stack.String() != "stack" || Segment.String() != "segment" || Options.String() != "options" {
		t.Error("Kind.String() mismatch for one of Root/Stack/Segment/Options")
	}
}
