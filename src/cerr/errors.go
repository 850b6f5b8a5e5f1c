// Package cerr defines the single error type and flat error-kind taxonomy shared by every
// pipeline layer. It is a leaf package — the lexer, block parser, macro layer and semantic
// compiler all import it, and it imports none of them, so it carries no dependency on
// token/block/scope to avoid import cycles.
package cerr

import (
	"fmt"
	"strings"
)

// Kind is the flat error taxonomy the pipeline reports through. Every Kind is fatal: there is no
// recovery path, and no layer catches and retries around one.
type Kind string

const (
	InvalidStringReference    Kind = "InvalidStringReference"
	NotUpperCaseMacroName     Kind = "NotUpperCaseMacroName"
	BlockDelimitation         Kind = "BlockDelimitation"
	SemicolonSeparation       Kind = "SemicolonSeparation"
	EmptySegment              Kind = "EmptySegment"
	InvalidPreprocessorCommand Kind = "InvalidPreprocessorCommand"
	InvalidMacro              Kind = "InvalidMacro"
	InvalidNameCase           Kind = "InvalidNameCase"
	NameNotFound              Kind = "NameNotFound"
	NameAlreadyTaken          Kind = "NameAlreadyTaken"
	InvalidInstruction        Kind = "InvalidInstruction"
	InvalidInstructionSyntax  Kind = "InvalidInstructionSyntax"
	InvalidInstructionContext Kind = "InvalidInstructionContext"
	InvalidElementType        Kind = "InvalidElementType"
	InvalidLiteralValueType   Kind = "InvalidLiteralValueType"
	InvalidOperator           Kind = "InvalidOperator"
	InvalidArgumentSyntax     Kind = "InvalidArgumentSyntax"
	InvalidTypeValue          Kind = "InvalidTypeValue"
	NotStructure              Kind = "NotStructure"
	NotType                   Kind = "NotType"
)

// Error is the single error type every pipeline layer returns for a user-triggered condition. It
// carries enough to render "<path>:<line>: <kind>: <arg1> ↳ <arg2> …" plus a source snippet with a
// caret, the way the driver prints a failure to the user.
type Error struct {
	Kind    Kind
	Program string // Logical source path, e.g. "main.pim".
	Line    int
	Snippet string // The offending source line, for caret rendering. May be empty.
	Column  int    // 0-indexed caret column into Snippet. Ignored if Snippet is empty.
	Args    []string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d: %s", e.Program, e.Line, e.Kind)
	if len(e.Args) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Args, " ↳ "))
	}
	if e.Snippet != "" {
		fmt.Fprintf(&b, "\n  %s\n  %s^", e.Snippet, strings.Repeat(" ", clampColumn(e.Column, len(e.Snippet))))
	}
	return b.String()
}

func clampColumn(col, max int) int {
	if col < 0 {
		return 0
	}
	if col > max {
		return max
	}
	return col
}

// New builds an *Error with no source snippet attached. Callers that have a snippet handy use
// NewAt instead; the two-constructor split mirrors how little of the pipeline actually has a
// source line in scope (the macro and scope layers mostly don't).
func New(kind Kind, program string, line int, args ...string) *Error {
	return &Error{Kind: kind, Program: program, Line: line, Args: args}
}

// NewAt builds an *Error with a source snippet and caret column attached.
func NewAt(kind Kind, program string, line int, snippet string, column int, args ...string) *Error {
	return &Error{Kind: kind, Program: program, Line: line, Snippet: snippet, Column: column, Args: args}
}
