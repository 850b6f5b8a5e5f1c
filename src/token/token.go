// Package token defines the lexical unit produced by the lexer and consumed by the block parser,
// the macro layer and the semantic compiler.
package token

import (
	"fmt"

	"tinygo.org/x/go-llvm"
)

// Kind differentiates the lexical category of a Token. Kind is determined by a Token's text unless
// the lexer attaches an explicit Kind (strings, macros, typed names carrying a "::" memory
// qualifier, sized stack openers, etc).
type Kind int

const (
	Unknown Kind = iota
	Integer
	Decimal
	Boolean
	String
	Name
	Macro
	Type
	Register
	Operator
	Delimiter
	Instruction
	PPCommand
	PPOSCommand
)

// String returns a print friendly name of the Kind, used in error messages.
func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case Boolean:
		return "boolean"
	case String:
		return "string"
	case Name:
		return "name"
	case Macro:
		return "macro"
	case Type:
		return "type"
	case Register:
		return "register"
	case Operator:
		return "operator"
	case Delimiter:
		return "delimiter"
	case Instruction:
		return "instruction"
	case PPCommand:
		return "ppcommand"
	case PPOSCommand:
		return "pposcommand"
	default:
		return "unknown"
	}
}

// Options is the subset of block.Block the token package can refer to without creating an import
// cycle with package block: a name token attaches its call-site or parameter-list arguments as an
// opaque value and block.Block satisfies this interface.
type Options interface {
	// Elements returns the ordered children carried by the attached block.
	Elements() []interface{}
}

// Token is a lexical unit: its original text, its Kind, and a sparse attribute bag. Attributes are
// modeled as dedicated optional fields rather than a generic map, since a Token only ever carries
// the attributes its Kind can produce.
type Token struct {
	Text string // Original textual form.
	Kind Kind
	Line int // Source line the token was scanned from. 1-indexed.

	// Size is attached to a sized stack opener ("N:[") or a sized dereference operator ("N:%").
	Size    int
	HasSize bool

	// Length is attached to a sized type ("typeN").
	Length    int
	HasLength bool

	// Type is attached to any literal or name carrying an explicit LLVM type via ":type" suffix.
	LLVMType    llvm.Type
	HasLLVMType bool

	// Memory qualifies a name token of the form "UPPER::lower".
	Memory string

	// CallOptions is the options block attached to a name token for call syntax or parameter
	// lists, populated by the block post-parser (block.PostProcess).
	CallOptions Options
}

// New returns a Token whose Kind is derived from its text via Classify.
func New(text string, line int) Token {
	return Token{Text: text, Kind: Classify(text), Line: line}
}

// NewKind returns a Token with an explicit Kind, bypassing classification.
func NewKind(text string, kind Kind, line int) Token {
	return Token{Text: text, Kind: kind, Line: line}
}

// String returns a print friendly representation of the token for error messages and dumps.
func (t Token) String() string {
	return fmt.Sprintf("%q (%s, line %d)", t.Text, t.Kind, t.Line)
}

// Is returns true if the token has the given Kind and its text equals s, case-insensitively for
// everything but string literals.
func (t Token) Is(kind Kind, s string) bool {
	if t.Kind != kind {
		return false
	}
	if kind == String {
		return t.Text == s
	}
	return equalFold(t.Text, s)
}

// IsKind returns true if the token has the given Kind.
func (t Token) IsKind(kind Kind) bool {
	return t.Kind == kind
}

// equalFold is a tiny case-insensitive ASCII compare, avoiding importing strings for one call site
// scattered across the package.
func equalFold(a, b string) bool {
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
