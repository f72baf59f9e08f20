package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankha-lang/ankhavm/pkg/ankhaconfig"
	"github.com/ankha-lang/ankhavm/pkg/ankhalog"
	"github.com/ankha-lang/ankhavm/pkg/ast"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/ankha-lang/ankhavm/pkg/value"
	"github.com/ankha-lang/ankhavm/pkg/vm"
	"github.com/ankha-lang/ankhavm/pkg/vmcontext"
)

func newTestRegistry(t *testing.T) (*registry.Registry, map[value.PrimitiveName]*types.Handle) {
	t.Helper()
	typesReg := types.NewRegistry()
	handles, err := value.InstallCoreTypes(typesReg)
	require.NoError(t, err)

	reg := registry.New()
	reg.Types = typesReg
	vm.Install(reg)
	return reg, handles
}

// addI64Native mirrors pkg/vm's test fixture: a native "add" over two
// Owned I64 values, registered so a compiled script can CallFunction it.
func addI64Native(ctx registry.Context, reg *registry.Registry) error {
	b, err := ctx.PopValue()
	if err != nil {
		return err
	}
	a, err := ctx.PopValue()
	if err != nil {
		return err
	}
	av, bv := a.(*value.Owned), b.(*value.Owned)
	sum := av.Slot.Data.(int64) + bv.Slot.Data.(int64)
	ctx.PushValue(value.NewOwned(av.Type, sum))
	return nil
}

func strPtr(s string) *string { return &s }

// TestCompilePackageLowersFunctionToInvocableScript exercises the whole
// compile_package path: an ast.Module with a single two-input function whose
// body calls a pre-registered native, compiled into a registry.Function and
// run end-to-end through vm.Invoke.
func TestCompilePackageLowersFunctionToInvocableScript(t *testing.T) {
	reg, handles := newTestRegistry(t)
	i64 := handles[value.I64]
	reg.AddFunction(&registry.Function{
		Name:        "add",
		InputTypes:  []types.Hash{i64.Hash, i64.Hash},
		OutputTypes: []types.Hash{i64.Hash},
		Kind:        registry.Native,
		Impl:        addI64Native,
	})

	i64Ref := ast.TypeRef{Name: "I64"}
	fn := ast.Function{
		Name:    "sum_plus_one",
		Inputs:  []ast.Param{{Name: "a", Type: i64Ref, Managed: true}, {Name: "b", Type: i64Ref, Managed: true}},
		Outputs: []ast.Param{{Name: "result", Type: i64Ref, Managed: true}},
		Body: []ast.Operation{
			ast.OpPushFromRegister{Name: "a"},
			ast.OpPushFromRegister{Name: "b"},
			ast.OpCallFunction{Query: registry.FunctionQuery{Name: strPtr("add")}},
			ast.OpLiteral{Value: ast.Literal{Primitive: value.I64, Int: 1}},
			ast.OpCallFunction{Query: registry.FunctionQuery{Name: strPtr("add")}},
		},
	}
	file := ast.File{Modules: []ast.Module{{Name: "math", Functions: []ast.Function{fn}}}}

	c := New(reg)
	require.NoError(t, c.CompilePackage([]ast.File{file}))

	ctx := vmcontext.New(reg, ankhalog.Nop(), ankhaconfig.Default())
	outputs, err := vm.Invoke(ctx, reg, "math::sum_plus_one", []value.Value{
		value.NewOwned(i64, int64(2)),
		value.NewOwned(i64, int64(3)),
	})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Equal(t, int64(6), outputs[0].(*value.Owned).Slot.Data)
}

// TestCompilePackageInternsStructsBeforeFunctions confirms a function body
// can Structure a struct declared in the same module, and that the output
// carries the interned geo::Point type, since struct/enum interning runs
// as its own pass before any function is lowered.
func TestCompilePackageInternsStructsBeforeFunctions(t *testing.T) {
	reg, handles := newTestRegistry(t)
	i32 := handles[value.I32]
	_ = i32

	point := ast.Struct{
		Name: "Point",
		Fields: []ast.Field{
			{Name: "x", Type: ast.TypeRef{Name: "I32"}, Managed: false},
		},
	}
	fn := ast.Function{
		Name:    "make_point",
		Outputs: []ast.Param{{Name: "p", Type: ast.TypeRef{Module: "geo", Name: "Point"}, Managed: true}},
		Body: []ast.Operation{
			ast.OpLiteral{Value: ast.Literal{Primitive: value.I32, Int: 7}},
			ast.OpStructure{TypeQuery: registry.TypeQuery{Name: strPtr("Point")}, Fields: []string{"x"}},
		},
	}
	file := ast.File{Modules: []ast.Module{{Name: "geo", Structs: []ast.Struct{point}, Functions: []ast.Function{fn}}}}

	c := New(reg)
	require.NoError(t, c.CompilePackage([]ast.File{file}))

	ctx := vmcontext.New(reg, ankhalog.Nop(), ankhaconfig.Default())
	outputs, err := vm.Invoke(ctx, reg, "geo::make_point", nil)
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	pointHandle, ok := reg.Types.ByQualifiedName("geo::Point")
	require.True(t, ok)
	owned, ok := outputs[0].(*value.Owned)
	require.True(t, ok)
	require.Equal(t, pointHandle.Hash, owned.Type.Hash)
}
