package token

import (
	"strconv"
	"strings"

	"tinygo.org/x/go-llvm"
)

// llvmTypes maps a recognised literal type name to its LLVM IR type. Populated lazily because
// llvm.IntType / llvm.FloatType etc require an initialised runtime, so construction is explicit
// and cached rather than run as a package-level var initializer.
var llvmTypes map[string]llvm.Type

// LLVMTypeByName returns the LLVM IR type bound to a recognised type name, and true if it exists.
func LLVMTypeByName(name string) (llvm.Type, bool) {
	if llvmTypes == nil {
		llvmTypes = map[string]llvm.Type{
			"u8": llvm.Int8Type(), "i8": llvm.Int8Type(),
			"u16": llvm.Int16Type(), "i16": llvm.Int16Type(),
			"u24": llvm.IntType(24), "i24": llvm.IntType(24),
			"u32": llvm.Int32Type(), "i32": llvm.Int32Type(),
			"u64": llvm.Int64Type(), "i64": llvm.Int64Type(),
			"u128": llvm.IntType(128), "i128": llvm.IntType(128),
			"u256": llvm.IntType(256), "i256": llvm.IntType(256),
			"f32": llvm.FloatType(), "float": llvm.FloatType(),
			"f64": llvm.DoubleType(), "double": llvm.DoubleType(),
			"chr":  llvm.Int8Type(),
			"bool": llvm.Int1Type(),
			"void": llvm.VoidType(),
			// Aliases.
			"int":  llvm.Int32Type(),
			"dec":  llvm.DoubleType(),
			"byte": llvm.Int8Type(),
		}
	}
	t, ok := llvmTypes[name]
	return t, ok
}

// registers is the set of legacy backend register names still recognised by the lexer; the
// semantic compiler never consumes a Register-kind token.
var registers = map[string]bool{
	"ax": true, "bx": true, "cx": true, "dx": true,
	"si": true, "di": true, "bp": true, "sp": true,
}

// instructions is the set of leading keywords recognised by the instruction dispatcher.
var instructions = map[string]bool{
	"func": true, "proc": true, "return": true,
	"if": true, "elif": true, "else": true, "while": true, "ops": true,
}

// operators is the set of operator lexemes: fused comparison/stack operators plus the single
// character arithmetic and structural operators.
var operators = map[string]bool{
	"#": true, "##": true, "~": true, ":": true, "%": true, "=": true, "^": true, ".": true,
	"+": true, "-": true, "*": true, "!": true, "dup": true, "and": true, "or": true,
	".%": true, "..%": true, "==": true, "!=": true, "<=": true, ">=": true, "<": true, ">": true,
}

var delimiters = map[string]bool{
	";": true, ",": true, "[": true, "]": true, "{": true, "}": true, "(": true, ")": true,
}

// IsValidName returns true if s is a syntactically valid identifier: starts with a letter or
// underscore, and consists only of letters, digits and underscores.
func IsValidName(s string) bool {
	if s == "" {
		return false
	}
	if s[0] >= '0' && s[0] <= '9' {
		return false
	}
	for _, c := range s {
		if !isNameChar(c) {
			return false
		}
	}
	return true
}

func isNameChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

// IsUpperName returns true if s has no lowercase letters (an empty or non-alphabetic string
// trivially qualifies too, since it has no lowercase letters to fail on).
func IsUpperName(s string) bool { return s == strings.ToUpper(s) }

// IsLowerName returns true if s has no uppercase letters.
func IsLowerName(s string) bool { return s == strings.ToLower(s) }

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isDecimal(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return false
	}
	return isInteger(parts[0]) && isInteger(parts[1])
}

func isBoolean(s string) bool {
	l := strings.ToLower(s)
	return l == "true" || l == "false"
}

// Classify returns the Kind a raw lexeme would get if no lexer rule attaches an explicit Kind.
// Checks in a fixed priority order: boolean, integer, decimal, delimiter, operator, instruction,
// register, type, valid name, else unknown — so a lexeme that could match more than one shape
// (e.g. a register name that also happens to be all-uppercase) resolves consistently.
func Classify(s string) Kind {
	switch {
	case isBoolean(s):
		return Boolean
	case isInteger(s):
		return Integer
	case isDecimal(s):
		return Decimal
	case delimiters[s]:
		return Delimiter
	case operators[strings.ToLower(s)]:
		return Operator
	case instructions[strings.ToLower(s)]:
		return Instruction
	case registers[s]:
		return Register
	case isType(s):
		return Type
	case IsValidName(s):
		return Name
	default:
		return Unknown
	}
}

func isType(s string) bool {
	_, ok := LLVMTypeByName(s)
	return ok
}

// ParseSizedTypeName validates an already-split sized type: base must be a recognised type name
// and lenStr a non-negative decimal integer. Returns the length, or ok=false if either check fails.
func ParseSizedTypeName(base, lenStr string) (int, bool) {
	n, err := strconv.Atoi(lenStr)
	if err != nil || n < 0 {
		return 0, false
	}
	_, ok := LLVMTypeByName(base)
	if !ok {
		return 0, false
	}
	return n, true
}
