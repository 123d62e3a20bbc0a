package value

import (
	"testing"

	"github.com/0x264/charon/pkg/bytecode"
	"github.com/stretchr/testify/require"
)

func TestIsTrueFalsyValues(t *testing.T) {
	require.False(t, Null().IsTrue())
	require.False(t, Bool(false).IsTrue())
	require.False(t, Long(0).IsTrue())
	require.False(t, Double(0).IsTrue())
}

func TestIsTrueTruthyValues(t *testing.T) {
	require.True(t, Bool(true).IsTrue())
	require.True(t, Long(1).IsTrue())
	require.True(t, Long(-1).IsTrue())
	require.True(t, Double(0.5).IsTrue())
	require.True(t, String("").IsTrue())
	require.True(t, String("x").IsTrue())
}

func TestIsFalseIsComplementOfIsTrue(t *testing.T) {
	vals := []Value{Null(), Bool(false), Bool(true), Long(0), Long(5), Double(0), String("")}
	for _, v := range vals {
		require.Equal(t, !v.IsTrue(), v.IsFalse())
	}
}

func TestStringifyPrimitives(t *testing.T) {
	require.Equal(t, "null", Stringify(Null()))
	require.Equal(t, "true", Stringify(Bool(true)))
	require.Equal(t, "false", Stringify(Bool(false)))
	require.Equal(t, "42", Stringify(Long(42)))
	require.Equal(t, "3.5", Stringify(Double(3.5)))
	require.Equal(t, "hi", Stringify(String("hi")))
}

func TestStringifyClassAndInstance(t *testing.T) {
	class := &bytecode.Class{Name: "Point"}
	require.Equal(t, "<class: Point>", Stringify(Class(class)))

	inst := NewInstance(class)
	require.Equal(t, "<class: Point's instance>", Stringify(inst))
}

func TestStringifyFunctionAndMethod(t *testing.T) {
	fn := &bytecode.Function{Name: "add"}
	require.Equal(t, "<function: add>", Stringify(Function(fn)))

	method := &bytecode.Method{Function: bytecode.Function{Name: "getX"}, ClassName: "Point"}
	inst := NewInstance(&bytecode.Class{Name: "Point"})
	require.Equal(t, "<class: Point's method: getX>", Stringify(Method(inst.Instance, method)))
}

func TestStringifyForeignFunction(t *testing.T) {
	f := &ForeignFunction{Name: "__print"}
	require.Equal(t, "<foreign function: __print>", Stringify(Foreign(f)))
}

func TestEqualBooleanCollapsesAgainstBoolOnly(t *testing.T) {
	require.True(t, Equal(Bool(true), Bool(true)))
	require.False(t, Equal(Bool(true), Bool(false)))
	require.False(t, Equal(Bool(true), Long(1)))
	require.False(t, Equal(Long(1), Bool(true)))
}

func TestEqualPrimitivesByValue(t *testing.T) {
	require.True(t, Equal(Long(5), Long(5)))
	require.False(t, Equal(Long(5), Long(6)))
	require.True(t, Equal(Double(1.5), Double(1.5)))
	require.True(t, Equal(String("a"), String("a")))
	require.False(t, Equal(String("a"), String("b")))
	require.True(t, Equal(Null(), Null()))
}

func TestEqualDifferentKindsAreUnequal(t *testing.T) {
	require.False(t, Equal(Long(1), Double(1)))
	require.False(t, Equal(Long(1), String("1")))
}

func TestEqualInstancesCompareByIdentity(t *testing.T) {
	class := &bytecode.Class{Name: "Point"}
	a := NewInstance(class)
	b := NewInstance(class)
	require.False(t, Equal(a, b))
	require.True(t, Equal(a, a))
}

func TestEqualClassesCompareByIdentity(t *testing.T) {
	c1 := &bytecode.Class{Name: "Point"}
	c2 := &bytecode.Class{Name: "Point"}
	require.True(t, Equal(Class(c1), Class(c1)))
	require.False(t, Equal(Class(c1), Class(c2)))
}

func TestTypeName(t *testing.T) {
	require.Equal(t, "null", TypeName(Null()))
	require.Equal(t, "bool", TypeName(Bool(true)))
	require.Equal(t, "long", TypeName(Long(1)))
	require.Equal(t, "double", TypeName(Double(1)))
	require.Equal(t, "string", TypeName(String("")))
	require.Equal(t, "instance", TypeName(NewInstance(&bytecode.Class{Name: "P"})))
}

func TestNewInstanceHasIndependentFieldMaps(t *testing.T) {
	class := &bytecode.Class{Name: "Point"}
	a := NewInstance(class)
	b := NewInstance(class)
	a.Instance.Fields["x"] = Long(1)
	_, ok := b.Instance.Fields["x"]
	require.False(t, ok)
}
