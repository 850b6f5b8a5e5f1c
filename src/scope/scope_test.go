package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/go-llvm"
)

func TestDeclareRejectsDuplicateName(t *testing.T) {
	g := NewGlobal()
	ok := g.Declare("foo", NewVariable("foo", llvm.Int32Type(), llvm.Value{}, false))
	require.True(t, ok)

	ok = g.Declare("foo", NewVariable("foo", llvm.Int32Type(), llvm.Value{}, false))
	assert.False(t, ok, "redeclaring the same name in the same scope must fail")
}

func TestLookupDirectChild(t *testing.T) {
	g := NewGlobal()
	v := NewVariable("x", llvm.Int32Type(), llvm.Value{}, false)
	g.Declare("x", v)

	got, ok := g.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, v, got)
}

func TestLookupAscendsWithCaret(t *testing.T) {
	g := NewGlobal()
	fn := NewFunction("main", llvm.VoidType(), true)
	g.Declare("main", fn)

	got, ok := fn.Lookup("^")
	require.True(t, ok)
	assert.Same(t, g, got)
}

func TestLookupFallsBackToEnclosingScope(t *testing.T) {
	g := NewGlobal()
	v := NewVariable("counter", llvm.Int32Type(), llvm.Value{}, false)
	g.Declare("counter", v)

	fn := NewFunction("main", llvm.VoidType(), true)
	g.Declare("main", fn)

	got, ok := fn.Lookup("counter")
	require.True(t, ok, "a bare name not declared in the function should fall back to the enclosing scope")
	assert.Equal(t, v, got)
}

func TestLookupDottedPathDoesNotFallBack(t *testing.T) {
	g := NewGlobal()
	fn := NewFunction("main", llvm.VoidType(), true)
	g.Declare("main", fn)

	_, ok := fn.Lookup("nested.missing")
	assert.False(t, ok, "a dotted path that fails to resolve must not fall back to enclosing-scope search")
}

func TestLookupUnresolvedReturnsFalse(t *testing.T) {
	g := NewGlobal()
	_, ok := g.Lookup("nowhere")
	assert.False(t, ok)
}

func TestRootWalksToGlobalScope(t *testing.T) {
	g := NewGlobal()
	fn := NewFunction("main", llvm.VoidType(), true)
	g.Declare("main", fn)
	v := NewVariable("x", llvm.Int32Type(), llvm.Value{}, false)
	fn.Declare("x", v)

	assert.Same(t, g, v.Root())
}

func TestEnclosingFunctionFindsNearestFunction(t *testing.T) {
	g := NewGlobal()
	fn := NewFunction("main", llvm.VoidType(), true)
	g.Declare("main", fn)
	v := NewVariable("x", llvm.Int32Type(), llvm.Value{}, false)
	fn.Declare("x", v)

	assert.Same(t, fn, v.EnclosingFunction())
	assert.Nil(t, g.EnclosingFunction())
}

func TestNewStructureResolvesWithStructureKind(t *testing.T) {
	g := NewGlobal()
	st := NewStructure("Point")
	g.Declare("Point", st)

	got, ok := g.Lookup("Point")
	require.True(t, ok)
	assert.Equal(t, Structure, got.Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "global", Global.String())
	assert.Equal(t, "function", Function.String())
	assert.Equal(t, "variable", Variable.String())
	assert.Equal(t, "structure", Structure.String())
}
