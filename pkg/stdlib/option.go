// option.go is grounded on original_source's library/option.rs (the
// AnkhaOption type array.rs and dictionary.rs both return from get/pop/
// remove): a native optional-value wrapper around one of the five managed
// kinds, rather than a language-level Option enum — scripts test/unwrap it
// through plain native functions, same as every other stdlib type here.
package stdlib

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

// nativeOption holds at most one managed value. A nil Value means None —
// this is the payload array.get/dictionary.get/... synthesize when an
// index or key lookup comes up empty, matching original_source's
// `unwrap_or_default()` fallback to `AnkhaOption::None`.
type nativeOption struct {
	Value value.Value
}

func optionFinalizer(payload any) {
	o := payload.(*nativeOption)
	if o.Value != nil {
		_ = value.Drop(o.Value)
	}
}

func installOption(reg *registry.Registry) error {
	h, err := registerNativeType(reg, optionModule, "Option", optionFinalizer)
	if err != nil {
		return err
	}

	reg.AddFunction(&registry.Function{
		Name: "is_some", ModuleName: optionModule,
		OwnerTypeHash: &h.Hash,
		InputTypes:    []types.Hash{h.Hash},
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, opt, err := nativePayload[*nativeOption](ctx)
			if err != nil {
				return err
			}
			return pushBool(ctx, reg, opt.Value != nil)
		},
	})
	reg.AddFunction(&registry.Function{
		Name: "is_none", ModuleName: optionModule,
		OwnerTypeHash: &h.Hash,
		InputTypes:    []types.Hash{h.Hash},
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, opt, err := nativePayload[*nativeOption](ctx)
			if err != nil {
				return err
			}
			return pushBool(ctx, reg, opt.Value == nil)
		},
	})
	// unwrap consumes the Option and pushes its contained value, fatally
	// aborting on None (spec.md §3's Initialization error for "unboxing
	// with no payload" generalizes directly to unwrapping an empty Option).
	reg.AddFunction(&registry.Function{
		Name: "unwrap", ModuleName: optionModule,
		OwnerTypeHash: &h.Hash,
		InputTypes:    []types.Hash{h.Hash},
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, opt, err := nativePayload[*nativeOption](ctx)
			if err != nil {
				return err
			}
			if opt.Value == nil {
				return ankhaerr.New(ankhaerr.InitializationError, "option.unwrap", "called on a None option")
			}
			ctx.PushValue(opt.Value)
			return nil
		},
	})
	return nil
}

// newSomeOwned wraps an already-popped managed value into a fresh Owned
// Option, used internally by array.get/dictionary.get and friends rather
// than exposed as a script-callable constructor (a script builds Some via
// those accessors, not by calling option.some directly — original_source
// has no public `Option::some` constructor either, only the derived
// accessor methods on Array/Dictionary).
func newSomeOwned(reg *registry.Registry, v value.Value) (*value.Owned, error) {
	h, ok := reg.Types.ByQualifiedName(optionModule + "::Option")
	if !ok {
		return nil, ankhaerr.New(ankhaerr.RegistryMiss, "stdlib", "option::Option not installed")
	}
	return value.NewOwned(h, &nativeOption{Value: v}), nil
}

func newNoneOwned(reg *registry.Registry) (*value.Owned, error) {
	return newSomeOwned(reg, nil)
}
