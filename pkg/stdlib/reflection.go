// reflection.go is grounded on original_source's library/reflection.rs:
// script-visible Type and Function handles onto registry entries. A
// reflection::Function wraps exactly the *vm.FunctionHandle payload
// pkg/vm's CallIndirect expects (spec.md's "Reflection facade" —
// CallIndirect pops a value, extracts its raw payload, and invokes it as
// a function handle), so a script obtains a callable with function_of
// and later applies it with CallIndirect or hands it to
// closure::Closure without this package needing to know CallIndirect's
// internals beyond that one payload shape.
package stdlib

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/ankha-lang/ankhavm/pkg/value"
	"github.com/ankha-lang/ankhavm/pkg/vm"
)

type nativeType struct {
	Handle *types.Handle
}

func installReflection(reg *registry.Registry) error {
	typeHandle, err := registerNativeType(reg, reflectionModule, "Type", nil)
	if err != nil {
		return err
	}
	fnHandle, err := registerNativeType(reg, reflectionModule, "Function", nil)
	if err != nil {
		return err
	}

	reg.AddFunction(&registry.Function{
		Name: "type_of", ModuleName: reflectionModule,
		Kind: registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			v, err := ctx.PopValue()
			if err != nil {
				return err
			}
			ctx.PushValue(value.NewOwned(typeHandle, &nativeType{Handle: v.TypeHandle()}))
			return nil
		},
	})

	typeMethod := func(name string, impl registry.NativeFn) {
		reg.AddFunction(&registry.Function{
			Name: name, ModuleName: reflectionModule, OwnerTypeHash: &typeHandle.Hash,
			Kind: registry.Native, Impl: impl,
		})
	}
	typeMethod("name", func(ctx registry.Context, reg *registry.Registry) error {
		_, t, err := nativePayload[*nativeType](ctx)
		if err != nil {
			return err
		}
		h, ok := reg.Types.ByQualifiedName("String")
		if !ok {
			return ankhaerr.New(ankhaerr.RegistryMiss, "reflection.name", "String primitive not installed")
		}
		ctx.PushValue(value.NewOwned(h, t.Handle.Name))
		return nil
	})
	typeMethod("module_name", func(ctx registry.Context, reg *registry.Registry) error {
		_, t, err := nativePayload[*nativeType](ctx)
		if err != nil {
			return err
		}
		h, ok := reg.Types.ByQualifiedName("String")
		if !ok {
			return ankhaerr.New(ankhaerr.RegistryMiss, "reflection.module_name", "String primitive not installed")
		}
		ctx.PushValue(value.NewOwned(h, t.Handle.ModuleName))
		return nil
	})

	// function_of resolves a function by bare (unmoduled) name and wraps
	// it as a script-callable handle. No method_of is registered: the
	// query never includes an owning type, so a method is found only if
	// its name resolves on its own.
	reg.AddFunction(&registry.Function{
		Name: "function_of", ModuleName: reflectionModule,
		Kind: registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			name, err := popString(ctx)
			if err != nil {
				return err
			}
			fn, err := reg.ResolveFunction(registry.FunctionQuery{Name: &name})
			if err != nil {
				return err
			}
			ctx.PushValue(value.NewOwned(fnHandle, &vm.FunctionHandle{Function: fn}))
			return nil
		},
	})

	fnMethod := func(name string, impl registry.NativeFn) {
		reg.AddFunction(&registry.Function{
			Name: name, ModuleName: reflectionModule, OwnerTypeHash: &fnHandle.Hash,
			Kind: registry.Native, Impl: impl,
		})
	}
	fnMethod("name", func(ctx registry.Context, reg *registry.Registry) error {
		_, fh, err := nativePayload[*vm.FunctionHandle](ctx)
		if err != nil {
			return err
		}
		h, ok := reg.Types.ByQualifiedName("String")
		if !ok {
			return ankhaerr.New(ankhaerr.RegistryMiss, "reflection.name", "String primitive not installed")
		}
		ctx.PushValue(value.NewOwned(h, fh.Function.Name))
		return nil
	})

	return nil
}
