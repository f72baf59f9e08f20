package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankha-lang/ankhavm/pkg/ankhaconfig"
	"github.com/ankha-lang/ankhavm/pkg/ankhalog"
	"github.com/ankha-lang/ankhavm/pkg/ast"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/ankha-lang/ankhavm/pkg/value"
	"github.com/ankha-lang/ankhavm/pkg/vmcontext"
)

// newTestVM builds a Registry with core types installed and RunScript
// wired in as the ScriptRunner, plus a fresh Context over it — the minimal
// setup every test in this file shares.
func newTestVM(t *testing.T) (*registry.Registry, *vmcontext.Context, map[value.PrimitiveName]*types.Handle) {
	t.Helper()
	typesReg := types.NewRegistry()
	handles, err := value.InstallCoreTypes(typesReg)
	require.NoError(t, err)

	reg := registry.New()
	reg.Types = typesReg
	Install(reg)

	ctx := vmcontext.New(reg, ankhalog.Nop(), ankhaconfig.Default())
	return reg, ctx, handles
}

// addI64Native implements a Native "add" function over two I64 Owned
// values, in the style spec.md's test scenario 1 (arithmetic) expects.
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

func registerAdd(reg *registry.Registry, i64 *types.Handle) {
	reg.AddFunction(&registry.Function{
		Name:        "add",
		InputTypes:  []types.Hash{i64.Hash, i64.Hash},
		OutputTypes: []types.Hash{i64.Hash},
		Kind:        registry.Native,
		Impl:        addI64Native,
	})
}

func TestArithmeticCallFunction(t *testing.T) {
	reg, ctx, handles := newTestVM(t)
	i64 := handles[value.I64]
	registerAdd(reg, i64)

	f := newFrame(ctx, reg)
	ops := []ast.Operation{
		ast.OpLiteral{Value: ast.Literal{Primitive: value.I64, Int: 1}},
		ast.OpLiteral{Value: ast.Literal{Primitive: value.I64, Int: 2}},
		ast.OpCallFunction{Query: registry.FunctionQuery{Name: strPtr("add")}},
	}
	require.NoError(t, f.evalSequence(ops))
	require.Equal(t, 1, ctx.StackLen())

	result, err := ctx.PopValue()
	require.NoError(t, err)
	owned, ok := result.(*value.Owned)
	require.True(t, ok)
	require.Equal(t, int64(3), owned.Slot.Data)
}

func TestStructureAndDestructureRoundTrip(t *testing.T) {
	reg, ctx, handles := newTestVM(t)
	i32 := handles[value.I32]

	fooHandle, err := reg.Types.Intern(types.Descriptor{
		Name: "Foo",
		StructFields: []*types.FieldDescriptor{
			{Name: "a", Visibility: types.Public, Managed: false, Type: i32},
		},
		CanInitialize: false,
	})
	require.NoError(t, err)

	f := newFrame(ctx, reg)
	ops := []ast.Operation{
		ast.OpLiteral{Value: ast.Literal{Primitive: value.I32, Int: 42}},
		ast.OpStructure{
			TypeQuery: registry.TypeQuery{Name: strPtr("Foo")},
			Fields:    []string{"a"},
		},
	}
	require.NoError(t, f.evalSequence(ops))

	v, err := ctx.PeekValue()
	require.NoError(t, err)
	owned, ok := v.(*value.Owned)
	require.True(t, ok)
	require.Equal(t, fooHandle.Hash, owned.Type.Hash)

	require.NoError(t, f.eval(ast.OpDestructure{Fields: []string{"a"}}))
	field, err := ctx.PopValue()
	require.NoError(t, err)
	fieldOwned, ok := field.(*value.Owned)
	require.True(t, ok)
	require.Equal(t, int64(42), fieldOwned.Slot.Data)
}

// makeCountdownStep is a native function taking one I64 and returning
// (decremented I64, Bool continue-flag) — the shape LoopScope's body
// convention (pop raw boolean at the end) needs to drive a countdown.
func makeCountdownStep(i64, boolHandle *types.Handle) registry.NativeFn {
	return func(ctx registry.Context, reg *registry.Registry) error {
		v, err := ctx.PopValue()
		if err != nil {
			return err
		}
		n := v.(*value.Owned).Slot.Data.(int64) - 1
		ctx.PushValue(value.NewOwned(i64, n))
		ctx.PushValue(value.NewOwned(boolHandle, n > 0))
		return nil
	}
}

func TestLoopScopeCountsDown(t *testing.T) {
	reg, ctx, handles := newTestVM(t)
	i64 := handles[value.I64]
	boolHandle := handles[value.Bool]
	reg.AddFunction(&registry.Function{
		Name:        "countdown_step",
		InputTypes:  []types.Hash{i64.Hash},
		OutputTypes: []types.Hash{i64.Hash, boolHandle.Hash},
		Kind:        registry.Native,
		Impl:        makeCountdownStep(i64, boolHandle),
	})

	require.NoError(t, ctx.PushScope(false))
	tok, err := ctx.MakeRegister()
	require.NoError(t, err)
	ctx.PushValue(value.NewOwned(i64, int64(3)))
	require.NoError(t, ctx.PopToRegister(tok))

	f := newFrame(ctx, reg)
	f.names["n"] = tok

	loop := ast.OpLoopScope{Body: []ast.Operation{
		ast.OpPushFromRegister{Name: "n"},
		ast.OpCallFunction{Query: registry.FunctionQuery{Name: strPtr("countdown_step")}},
		ast.OpStackUnwrapBoolean{},
		ast.OpPopToRegister{Name: "n"},
	}}
	require.NoError(t, f.eval(loop))
	require.Equal(t, 0, ctx.StackLen())

	require.NoError(t, ctx.PushFromRegister(tok))
	final, err := ctx.PopValue()
	require.NoError(t, err)
	require.Equal(t, int64(0), final.(*value.Owned).Slot.Data)
	require.NoError(t, ctx.PopScope())
}

func TestPushScopeClosesEarlyOnExplicitPopScope(t *testing.T) {
	reg, ctx, _ := newTestVM(t)
	f := newFrame(ctx, reg)

	before := ctx.ScopeDepth()
	op := ast.OpPushScope{Body: []ast.Operation{
		ast.OpLiteral{Value: ast.Literal{Primitive: value.I32, Int: 1}},
		ast.OpPopScope{},
	}}
	require.NoError(t, f.eval(op))
	require.Equal(t, before, ctx.ScopeDepth())
	require.Equal(t, 0, ctx.StackLen(), "the literal pushed inside the scope is dropped on early exit")
}

func TestInvokeResolvesQualifiedName(t *testing.T) {
	reg, ctx, handles := newTestVM(t)
	i64 := handles[value.I64]
	registerAdd(reg, i64)

	outputs, err := Invoke(ctx, reg, "add", []value.Value{
		value.NewOwned(i64, int64(10)),
		value.NewOwned(i64, int64(32)),
	})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Equal(t, int64(42), outputs[0].(*value.Owned).Slot.Data)
}

func strPtr(s string) *string { return &s }
