// closure.go is grounded on original_source's library/closure.rs (again
// dropping the Async variant, see array.go/DESIGN.md): a closure pairs a
// reflection::Function handle with an array of values captured at
// creation time, pushed ahead of the caller's own arguments on `call`.
package stdlib

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
	"github.com/ankha-lang/ankhavm/pkg/vm"
)

type nativeClosure struct {
	function *vm.FunctionHandle
	captured []value.Value
}

func closureFinalizer(payload any) {
	c := payload.(*nativeClosure)
	for _, v := range c.captured {
		if v != nil {
			_ = value.Drop(v)
		}
	}
}

func installClosure(reg *registry.Registry) error {
	h, err := registerNativeType(reg, closureModule, "Closure", closureFinalizer)
	if err != nil {
		return err
	}

	// from_function(function) — a closure with no captured values.
	reg.AddFunction(&registry.Function{
		Name: "from_function", ModuleName: closureModule,
		Kind: registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, fh, err := nativePayload[*vm.FunctionHandle](ctx)
			if err != nil {
				return err
			}
			ctx.PushValue(value.NewOwned(h, &nativeClosure{function: fh}))
			return nil
		},
	})

	// new(function, captured) — captured is a native array.Array whose
	// items are moved into the closure's own capture slice.
	reg.AddFunction(&registry.Function{
		Name: "new", ModuleName: closureModule,
		Kind: registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, arr, err := nativePayload[*nativeArray](ctx)
			if err != nil {
				return err
			}
			_, fh, err := nativePayload[*vm.FunctionHandle](ctx)
			if err != nil {
				return err
			}
			ctx.PushValue(value.NewOwned(h, &nativeClosure{function: fh, captured: arr.items}))
			return nil
		},
	})

	// call(closure, args) invokes the wrapped function with the closure's
	// captured values pushed first, then args — the captured-then-given
	// order original_source's Closure::invoke builds by pushing arguments
	// then captures onto a LIFO stack (each reversed so declaration order
	// comes out right); here call/Invoke already take args in declared
	// order, so this simply concatenates captured ++ args.
	// call's own OutputTypes is deliberately left empty: the wrapped
	// function's output count is only known at call time, so outputs are
	// pushed directly by this Impl rather than returned through the
	// normal fixed-arity Native convention — reg.Invoke pops exactly
	// len(OutputTypes) values after Impl runs, and leaving that at zero
	// means the values this Impl just pushed are left untouched on ctx's
	// stack, exactly where the caller expects them.
	reg.AddFunction(&registry.Function{
		Name: "call", ModuleName: closureModule,
		OwnerTypeHash: &h.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, arr, err := nativePayload[*nativeArray](ctx)
			if err != nil {
				return err
			}
			_, c, err := nativePayload[*nativeClosure](ctx)
			if err != nil {
				return err
			}
			args := make([]value.Value, 0, len(c.captured)+len(arr.items))
			args = append(args, c.captured...)
			args = append(args, arr.items...)
			if c.function == nil || c.function.Function == nil {
				return ankhaerr.New(ankhaerr.Internal, "closure.call", "closure holds no function handle")
			}
			outputs, err := reg.Invoke(ctx, c.function.Function, args)
			if err != nil {
				return err
			}
			for _, o := range outputs {
				ctx.PushValue(o)
			}
			return nil
		},
	})

	return nil
}
