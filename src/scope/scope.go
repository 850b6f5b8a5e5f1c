// Package scope implements the Scope (Name) hierarchy: GlobalScope, Function, Variable, and a
// Structure stub.
package scope

import (
	"strings"

	"tinygo.org/x/go-llvm"
)

// Kind discriminates the concrete Scope variant.
type Kind int

const (
	Global Kind = iota
	Function
	Variable
	Structure
)

func (k Kind) String() string {
	switch k {
	case Global:
		return "global"
	case Function:
		return "function"
	case Variable:
		return "variable"
	case Structure:
		return "structure"
	default:
		return "unknown"
	}
}

// Scope is a node in the hierarchical symbol table. Only the fields relevant to its Kind are
// populated; see the Kind-specific constructors below.
type Scope struct {
	Kind     Kind
	Name     string
	Parent   *Scope
	Children map[string]*Scope

	// Function fields.
	LLVMFunction llvm.Value
	EntryBlock   llvm.BasicBlock
	ReturnType   llvm.Type
	IsVoid       bool
	Terminated   bool // not set by package compiler, which tracks termination per body while compiling.
	Params       []Param

	// Variable fields. Storage is typed pointer-to-pointer-to-VarType: the cell holds a pointer
	// that is itself reassigned on every `name = expr`, so a load through Storage is always one
	// indirection away from the live value.
	VarType  llvm.Type
	Storage  llvm.Value
	Constant bool
}

// Param is one entry of a Function scope's declared parameter list, in declaration order.
type Param struct {
	Name string
	Type llvm.Type
}

// NewGlobal constructs the single root scope.
func NewGlobal() *Scope {
	return &Scope{Kind: Global, Children: make(map[string]*Scope)}
}

// NewFunction constructs a Function scope. LLVMFunction and EntryBlock are filled in by the caller:
// the compiler builds the LLVM function first, then this scope, and declares the scope before
// compiling the body so the body can call the function recursively.
func NewFunction(name string, retType llvm.Type, isVoid bool) *Scope {
	return &Scope{Kind: Function, Name: name, Children: make(map[string]*Scope), ReturnType: retType, IsVoid: isVoid}
}

// NewVariable constructs a Variable scope.
func NewVariable(name string, varType llvm.Type, storage llvm.Value, constant bool) *Scope {
	return &Scope{Kind: Variable, Name: name, VarType: varType, Storage: storage, Constant: constant}
}

// NewStructure constructs a Structure stub. Structure bodies are unimplemented: this exists only
// so a `<StructName> <name>` declaration has something to resolve to. A name resolving to a
// Structure is reported as NotType (there is no LLVM type to back storage with), told apart from a
// name that resolves to something that isn't a structure at all (NotStructure).
func NewStructure(name string) *Scope {
	return &Scope{Kind: Structure, Name: name}
}

// Declare adds child under s keyed by name. Returns false if the name is already taken in this
// scope — the caller (package compiler) turns that into a NameAlreadyTaken error with source
// location attached.
func (s *Scope) Declare(name string, child *Scope) bool {
	if s.Children == nil {
		s.Children = make(map[string]*Scope)
	}
	if _, exists := s.Children[name]; exists {
		return false
	}
	child.Name = name
	child.Parent = s
	s.Children[name] = child
	return true
}

// Lookup resolves a dotted path relative to s; the segment "^" ascends to the parent scope. If
// path has no dot and doesn't resolve directly against s's own children, the enclosing scope chain
// is searched next — ordinary lexical scoping for a bare name used inside a nested Function body.
func (s *Scope) Lookup(path string) (*Scope, bool) {
	segs := strings.Split(path, ".")
	if target, ok := resolveFrom(s, segs); ok {
		return target, true
	}
	if len(segs) == 1 && segs[0] != "^" {
		for p := s.Parent; p != nil; p = p.Parent {
			if child, ok := p.Children[segs[0]]; ok {
				return child, true
			}
		}
	}
	return nil, false
}

func resolveFrom(s *Scope, segs []string) (*Scope, bool) {
	cur := s
	for _, seg := range segs {
		if seg == "^" {
			if cur.Parent == nil {
				return nil, false
			}
			cur = cur.Parent
			continue
		}
		if cur.Children == nil {
			return nil, false
		}
		child, ok := cur.Children[seg]
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// Root walks up to the GlobalScope.
func (s *Scope) Root() *Scope {
	cur := s
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// EnclosingFunction walks up to the nearest Function scope, or nil if s is not nested inside one
// (e.g. s is the GlobalScope itself, evaluating a top-level expression).
func (s *Scope) EnclosingFunction() *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == Function {
			return cur
		}
	}
	return nil
}
