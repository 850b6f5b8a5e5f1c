// Package macro implements component D: the "#define" directive pass over the flat token stream,
// and the fixpoint macro-expansion pass over the block tree.
//
// Directive collection validates each "#define" line before recording it; expansion substitutes
// macro references in a fixpoint loop bounded against runaway mutual recursion.
package macro

import (
	"pimo/src/block"
	"pimo/src/cerr"
	"pimo/src/source"
	"pimo/src/token"
)

// maxMacroExpansionPasses bounds the expansion fixpoint. Mutual recursion (A expands to a token
// naming B, B to one naming A) never reaches zero macro-kind tokens; rather than detect call
// cycles at definition time this just bounds the loop, turning a would-be hang into a diagnosable
// InvalidMacro error.
const maxMacroExpansionPasses = 256

// Table maps a macro name to its recorded body tokens.
type Table map[string][]token.Token

// CollectDirectives scans the flat per-line token stream for "# define NAME <body>" lines (the
// only directive this spec's LLVM backend accepts — the historical "# mem"/"# acmem" directives
// are not, and fall through to InvalidPreprocessorCommand). Directive lines are identified the
// same way block.Parse skips them: tokens[0] is the operator "#".
func CollectDirectives(program string, lines []source.Line) (Table, error) {
	table := make(Table)
	for _, ln := range lines {
		if len(ln.Tokens) == 0 || ln.Tokens[0].Kind != token.Operator || ln.Tokens[0].Text != "#" {
			continue
		}
		rest := ln.Tokens[1:]
		if len(rest) == 0 || rest[0].Kind != token.Name || !equalFoldASCII(rest[0].Text, "define") {
			return nil, cerr.New(cerr.InvalidPreprocessorCommand, program, ln.Line, directiveWord(rest))
		}
		if len(rest) < 2 {
			return nil, cerr.New(cerr.InvalidMacro, program, ln.Line, "missing macro name")
		}
		nameTok := rest[1]
		if !token.IsUpperName(nameTok.Text) {
			return nil, cerr.New(cerr.NotUpperCaseMacroName, program, ln.Line, nameTok.Text)
		}
		body := rest[2:]
		if len(body) == 0 {
			return nil, cerr.New(cerr.InvalidMacro, program, ln.Line, nameTok.Text, "empty body")
		}
		for _, bt := range body {
			if bt.Kind == token.Macro && equalFoldASCII(bt.Text, nameTok.Text) {
				return nil, cerr.New(cerr.InvalidMacro, program, ln.Line, nameTok.Text, "self-referential body")
			}
		}
		if _, exists := table[nameTok.Text]; exists {
			return nil, cerr.New(cerr.NameAlreadyTaken, program, ln.Line, nameTok.Text)
		}
		table[nameTok.Text] = body
	}
	return table, nil
}

func directiveWord(rest []token.Token) string {
	if len(rest) == 0 {
		return ""
	}
	return rest[0].Text
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Expand replaces every macro-kind token in root's tree with its recorded body, in place,
// fixpointing until no macro token remains. An undefined macro encountered during expansion is
// InvalidMacro.
func Expand(program string, root *block.Block, table Table) error {
	var lastName string
	for pass := 0; pass < maxMacroExpansionPasses; pass++ {
		substituted := 0
		var firstErr error

		var walk func(b *block.Block)
		walk = func(b *block.Block) {
			if firstErr != nil {
				return
			}
			out := make([]interface{}, 0, len(b.Children))
			for _, c := range b.Children {
				if firstErr != nil {
					return
				}
				if t, ok := c.(token.Token); ok && t.Kind == token.Macro {
					body, found := table[t.Text]
					if !found {
						firstErr = cerr.New(cerr.InvalidMacro, program, t.Line, t.Text)
						return
					}
					for _, bt := range body {
						out = append(out, bt)
					}
					substituted++
					lastName = t.Text
					continue
				}
				if cb, ok := c.(*block.Block); ok {
					walk(cb)
				}
				out = append(out, c)
			}
			b.Children = out
		}
		walk(root)
		if firstErr != nil {
			return firstErr
		}
		if substituted == 0 {
			return nil
		}
	}
	return cerr.New(cerr.InvalidMacro, program, 0, lastName, "expansion exceeded bound", "possible mutual recursion")
}
