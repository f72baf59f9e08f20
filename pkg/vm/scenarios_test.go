package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/ast"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

// callExpr builds the GroupReversed shape invokeFunction expects for a call
// with arguments (spec.md §8 scenario 5, "calculator"): the call itself
// listed first, its argument expressions following in reverse declared
// order and evaluated back-to-front, so by the time CallFunction runs the stack holds
// each argument's result in declared order — see evalGroupReversed's own
// doc comment for why this ordering, rather than a plain forward Group, is
// how the source arranges call-with-arguments composition.
func callExpr(name string, args ...ast.Operation) ast.Operation {
	items := make([]ast.Operation, 0, len(args)+1)
	items = append(items, ast.OpCallFunction{Query: registry.FunctionQuery{Name: strPtr(name)}})
	for i := len(args) - 1; i >= 0; i-- {
		items = append(items, args[i])
	}
	return ast.OpGroupReversed{Items: items}
}

func litF64(v float64) ast.Operation {
	return ast.OpLiteral{Value: ast.Literal{Primitive: value.F64, Float: v}}
}

func registerF64BinOp(reg *registry.Registry, f64 *types.Handle, name string, op func(a, b float64) float64) {
	reg.AddFunction(&registry.Function{
		Name:        name,
		InputTypes:  []types.Hash{f64.Hash, f64.Hash},
		OutputTypes: []types.Hash{f64.Hash},
		Kind:        registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			b, err := ctx.PopValue()
			if err != nil {
				return err
			}
			a, err := ctx.PopValue()
			if err != nil {
				return err
			}
			av, bv := a.(*value.Owned), b.(*value.Owned)
			result := op(av.Slot.Data.(float64), bv.Slot.Data.(float64))
			ctx.PushValue(value.NewOwned(f64, result))
			return nil
		},
	})
}

// TestCalculatorExpression covers spec.md §8 scenario 5: (3 + 4) * 2 - 1 / 5
// lowered to GroupReversed nodes calling add/sub/mul/div on F64 literals.
func TestCalculatorExpression(t *testing.T) {
	reg, ctx, handles := newTestVM(t)
	f64 := handles[value.F64]
	registerF64BinOp(reg, f64, "add", func(a, b float64) float64 { return a + b })
	registerF64BinOp(reg, f64, "sub", func(a, b float64) float64 { return a - b })
	registerF64BinOp(reg, f64, "mul", func(a, b float64) float64 { return a * b })
	registerF64BinOp(reg, f64, "div", func(a, b float64) float64 { return a / b })

	expr := callExpr("sub",
		callExpr("mul", callExpr("add", litF64(3), litF64(4)), litF64(2)),
		callExpr("div", litF64(1), litF64(5)),
	)

	f := newFrame(ctx, reg)
	require.NoError(t, f.eval(expr))
	require.Equal(t, 1, ctx.StackLen())

	result, err := ctx.PopValue()
	require.NoError(t, err)
	require.InDelta(t, 13.8, result.(*value.Owned).Slot.Data.(float64), 1e-9)
}

// TestFactorialRecursiveScript covers spec.md §8 scenario 3: a scripted
// factorial(n) with base case n==1 -> 1 and recursive case n * factorial(n-1),
// calling itself back through the registry by qualified name the same way
// any other CallFunction resolves — recursion needs no special support
// since the function is already registered before its own body ever runs.
func TestFactorialRecursiveScript(t *testing.T) {
	reg, ctx, handles := newTestVM(t)
	i64 := handles[value.I64]
	boolHandle := handles[value.Bool]

	reg.AddFunction(&registry.Function{
		Name:        "eq1",
		InputTypes:  []types.Hash{i64.Hash},
		OutputTypes: []types.Hash{boolHandle.Hash},
		Kind:        registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			v, err := ctx.PopValue()
			if err != nil {
				return err
			}
			n := v.(*value.Owned).Slot.Data.(int64)
			ctx.PushValue(value.NewOwned(boolHandle, n == 1))
			return nil
		},
	})
	reg.AddFunction(&registry.Function{
		Name:        "sub1",
		InputTypes:  []types.Hash{i64.Hash},
		OutputTypes: []types.Hash{i64.Hash},
		Kind:        registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			v, err := ctx.PopValue()
			if err != nil {
				return err
			}
			n := v.(*value.Owned).Slot.Data.(int64)
			ctx.PushValue(value.NewOwned(i64, n-1))
			return nil
		},
	})
	registerAdd(reg, i64) // unused by factorial, but exercises the shared fixture
	reg.AddFunction(&registry.Function{
		Name:        "mul",
		InputTypes:  []types.Hash{i64.Hash, i64.Hash},
		OutputTypes: []types.Hash{i64.Hash},
		Kind:        registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			b, err := ctx.PopValue()
			if err != nil {
				return err
			}
			a, err := ctx.PopValue()
			if err != nil {
				return err
			}
			av, bv := a.(*value.Owned), b.(*value.Owned)
			ctx.PushValue(value.NewOwned(i64, av.Slot.Data.(int64)*bv.Slot.Data.(int64)))
			return nil
		},
	})

	body := []ast.Operation{
		ast.OpPushFromRegister{Name: "n"},
		ast.OpCallFunction{Query: registry.FunctionQuery{Name: strPtr("eq1")}},
		ast.OpStackUnwrapBoolean{},
		ast.OpBranchScope{
			OnTrue: []ast.Operation{
				ast.OpLiteral{Value: ast.Literal{Primitive: value.I64, Int: 1}},
			},
			OnFalse: []ast.Operation{
				ast.OpPushFromRegister{Name: "n"},
				ast.OpPushFromRegister{Name: "n"},
				ast.OpCallFunction{Query: registry.FunctionQuery{Name: strPtr("sub1")}},
				ast.OpCallFunction{Query: registry.FunctionQuery{Name: strPtr("factorial")}},
				ast.OpCallFunction{Query: registry.FunctionQuery{Name: strPtr("mul")}},
			},
		},
	}
	reg.AddFunction(&registry.Function{
		Name:        "factorial",
		InputTypes:  []types.Hash{i64.Hash},
		OutputTypes: []types.Hash{i64.Hash},
		Kind:        registry.Scripted,
		Body: &Script{
			Name:        "factorial",
			InputNames:  []string{"n"},
			OutputCount: 1,
			Body:        body,
		},
	})

	outputs, err := Invoke(ctx, reg, "factorial", []value.Value{value.NewOwned(i64, int64(5))})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Equal(t, int64(120), outputs[0].(*value.Owned).Slot.Data)
}

// TestBorrowViolationOnSwappedBorrowMut covers spec.md §8 scenario 4: Owned,
// Borrow (a live shared Ref now sits above the original), Swap (the
// original rises back to the top with its borrow still outstanding
// beneath), BorrowMut — which must fail since an exclusive borrow can never
// coexist with a live shared one.
func TestBorrowViolationOnSwappedBorrowMut(t *testing.T) {
	reg, ctx, _ := newTestVM(t)

	f := newFrame(ctx, reg)
	ops := []ast.Operation{
		ast.OpLiteral{Value: ast.Literal{Primitive: value.I64, Int: 7}},
		ast.OpBorrow{},
		ast.OpSwap{},
		ast.OpBorrowMut{},
	}
	err := f.evalSequence(ops)
	require.Error(t, err)
	require.True(t, ankhaerr.Is(err, ankhaerr.BorrowViolation), "expected a borrow violation, got %v", err)
}
