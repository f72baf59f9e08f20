package vmcontext

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankha-lang/ankhavm/pkg/ankhaconfig"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	reg := registry.New()
	return New(reg, nil, ankhaconfig.Default())
}

func TestStackPushPopOrder(t *testing.T) {
	ctx := newTestContext(t)
	reg := ctx.Registry
	handles, err := value.InstallCoreTypes(reg.Types)
	require.NoError(t, err)

	a := value.NewOwned(handles[value.I32], int64(1))
	b := value.NewOwned(handles[value.I32], int64(2))
	ctx.PushValue(a)
	ctx.PushValue(b)

	top, err := ctx.PopValue()
	require.NoError(t, err)
	require.Same(t, value.Value(b), top)

	next, err := ctx.PopValue()
	require.NoError(t, err)
	require.Same(t, value.Value(a), next)

	_, err = ctx.PopValue()
	require.Error(t, err, "popping an empty stack is a fatal abort")
}

func TestRegisterRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	handles, err := value.InstallCoreTypes(ctx.Registry.Types)
	require.NoError(t, err)

	tok, err := ctx.MakeRegister()
	require.NoError(t, err)

	owned := value.NewOwned(handles[value.I32], int64(7))
	ctx.PushValue(owned)
	require.NoError(t, ctx.PopToRegister(tok))

	require.NoError(t, ctx.PushFromRegister(tok))
	top, err := ctx.PopValue()
	require.NoError(t, err)
	require.Same(t, value.Value(owned), top)

	require.NoError(t, ctx.DropRegister(tok))
}

func TestPopScopeUnwindsStackAndRegisters(t *testing.T) {
	ctx := newTestContext(t)
	handles, err := value.InstallCoreTypes(ctx.Registry.Types)
	require.NoError(t, err)

	require.NoError(t, ctx.PushScope(false))
	baseDepth := ctx.StackLen()

	ctx.PushValue(value.NewOwned(handles[value.I32], int64(1)))
	_, err = ctx.MakeRegister()
	require.NoError(t, err)

	require.NoError(t, ctx.PopScope())
	require.Equal(t, baseDepth, ctx.StackLen())
}

func TestLoopScopeDoesNotPopTheLoopFrame(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.PushScope(true))
	require.Equal(t, 1, ctx.ScopeDepth())

	require.NoError(t, ctx.PushScope(false)) // nested block inside the loop body
	require.Equal(t, 2, ctx.ScopeDepth())

	require.NoError(t, ctx.LoopScope())
	require.Equal(t, 1, ctx.ScopeDepth(), "loop_scope discards nested frames but keeps the loop frame open")
}

func TestBranchScopeExitsThroughTheLoop(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.PushScope(false)) // outer function scope
	require.NoError(t, ctx.PushScope(true))  // loop
	require.NoError(t, ctx.PushScope(false)) // loop body block

	require.NoError(t, ctx.BranchScope())
	require.Equal(t, 1, ctx.ScopeDepth(), "branch_scope exits up to and including the loop frame")
}

func TestForkProducesDisjointState(t *testing.T) {
	ctx := newTestContext(t)
	handles, err := value.InstallCoreTypes(ctx.Registry.Types)
	require.NoError(t, err)
	ctx.PushValue(value.NewOwned(handles[value.I32], int64(1)))

	child := ctx.Fork()
	require.Same(t, ctx.Registry, child.Registry)
	require.Equal(t, 0, child.StackLen())
	require.Equal(t, 1, ctx.StackLen())
}
