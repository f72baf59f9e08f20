// array.go is grounded on original_source's library/array.rs. The Rust
// crate defines both a synchronous Array and an AsyncArray variant built
// on a different internal option type; this reimplementation keeps only
// the synchronous Array (see DESIGN.md for why AsyncArray is dropped
// rather than adapted) and otherwise keeps array.rs's method set:
// with_capacity, reserve, resize, is_empty, size, exists, is_valid, get,
// push, pop, insert, remove, swap_remove, clear, swap.
package stdlib

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

type nativeArray struct {
	items []value.Value
}

func arrayFinalizer(payload any) {
	a := payload.(*nativeArray)
	for _, v := range a.items {
		if v != nil {
			_ = value.Drop(v)
		}
	}
}

func installArray(reg *registry.Registry) error {
	h, err := registerNativeType(reg, arrayModule, "Array", arrayFinalizer)
	if err != nil {
		return err
	}
	owner := &h.Hash

	method := func(name string, impl registry.NativeFn) {
		reg.AddFunction(&registry.Function{
			Name: name, ModuleName: arrayModule, OwnerTypeHash: owner,
			Kind: registry.Native, Impl: impl,
		})
	}

	reg.AddFunction(&registry.Function{
		Name: "with_capacity", ModuleName: arrayModule,
		Kind: registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			n, err := popIndex(ctx)
			if err != nil {
				return err
			}
			ctx.PushValue(value.NewOwned(h, &nativeArray{items: make([]value.Value, 0, n)}))
			return nil
		},
	})

	method("reserve", func(ctx registry.Context, reg *registry.Registry) error {
		n, err := popIndex(ctx)
		if err != nil {
			return err
		}
		o, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		grown := make([]value.Value, len(a.items), len(a.items)+n)
		copy(grown, a.items)
		a.items = grown
		self, err := remintSelf(o, a)
		if err != nil {
			return err
		}
		ctx.PushValue(self)
		return nil
	})

	method("resize", func(ctx registry.Context, reg *registry.Registry) error {
		n, err := popIndex(ctx)
		if err != nil {
			return err
		}
		o, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		if n <= len(a.items) {
			for _, v := range a.items[n:] {
				if v != nil {
					_ = value.Drop(v)
				}
			}
			a.items = a.items[:n]
		} else {
			a.items = append(a.items, make([]value.Value, n-len(a.items))...)
		}
		self, err := remintSelf(o, a)
		if err != nil {
			return err
		}
		ctx.PushValue(self)
		return nil
	})

	method("is_empty", func(ctx registry.Context, reg *registry.Registry) error {
		_, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		return pushBool(ctx, reg, len(a.items) == 0)
	})

	method("size", func(ctx registry.Context, reg *registry.Registry) error {
		_, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		return pushUsize(ctx, reg, len(a.items))
	})

	method("exists", func(ctx registry.Context, reg *registry.Registry) error {
		i, err := popIndex(ctx)
		if err != nil {
			return err
		}
		_, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		return pushBool(ctx, reg, i >= 0 && i < len(a.items))
	})

	method("is_valid", func(ctx registry.Context, reg *registry.Registry) error {
		i, err := popIndex(ctx)
		if err != nil {
			return err
		}
		_, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		return pushBool(ctx, reg, i >= 0 && i < len(a.items) && a.items[i] != nil)
	})

	// get returns an option::Option wrapping a Ref borrow of the element
	// (spec.md-style: reads borrow rather than move, matching
	// original_source's `item.borrow()`). A script that wants to consume
	// the element outright uses remove/pop/swap_remove instead.
	method("get", func(ctx registry.Context, reg *registry.Registry) error {
		i, err := popIndex(ctx)
		if err != nil {
			return err
		}
		_, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		if i < 0 || i >= len(a.items) || a.items[i] == nil {
			opt, err := newNoneOwned(reg)
			if err != nil {
				return err
			}
			ctx.PushValue(opt)
			return nil
		}
		ref, err := value.Borrow(a.items[i])
		if err != nil {
			return err
		}
		opt, err := newSomeOwned(reg, ref)
		if err != nil {
			return err
		}
		ctx.PushValue(opt)
		return nil
	})

	method("push", func(ctx registry.Context, reg *registry.Registry) error {
		v, err := ctx.PopValue()
		if err != nil {
			return err
		}
		o, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		a.items = append(a.items, v)
		self, err := remintSelf(o, a)
		if err != nil {
			return err
		}
		ctx.PushValue(self)
		return nil
	})

	method("pop", func(ctx registry.Context, reg *registry.Registry) error {
		_, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		if len(a.items) == 0 {
			opt, err := newNoneOwned(reg)
			if err != nil {
				return err
			}
			ctx.PushValue(opt)
			return nil
		}
		last := a.items[len(a.items)-1]
		a.items = a.items[:len(a.items)-1]
		opt, err := newSomeOwned(reg, last)
		if err != nil {
			return err
		}
		ctx.PushValue(opt)
		return nil
	})

	method("insert", func(ctx registry.Context, reg *registry.Registry) error {
		v, err := ctx.PopValue()
		if err != nil {
			return err
		}
		i, err := popIndex(ctx)
		if err != nil {
			return err
		}
		o, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		if i < 0 || i > len(a.items) {
			return ankhaerr.New(ankhaerr.ShapeMismatch, "array.insert", "index %d out of range (len %d)", i, len(a.items))
		}
		a.items = append(a.items, nil)
		copy(a.items[i+1:], a.items[i:])
		a.items[i] = v
		self, err := remintSelf(o, a)
		if err != nil {
			return err
		}
		ctx.PushValue(self)
		return nil
	})

	method("remove", func(ctx registry.Context, reg *registry.Registry) error {
		i, err := popIndex(ctx)
		if err != nil {
			return err
		}
		_, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		if i < 0 || i >= len(a.items) {
			opt, err := newNoneOwned(reg)
			if err != nil {
				return err
			}
			ctx.PushValue(opt)
			return nil
		}
		v := a.items[i]
		a.items = append(a.items[:i], a.items[i+1:]...)
		opt, err := newSomeOwned(reg, v)
		if err != nil {
			return err
		}
		ctx.PushValue(opt)
		return nil
	})

	method("swap_remove", func(ctx registry.Context, reg *registry.Registry) error {
		i, err := popIndex(ctx)
		if err != nil {
			return err
		}
		_, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		if i < 0 || i >= len(a.items) {
			opt, err := newNoneOwned(reg)
			if err != nil {
				return err
			}
			ctx.PushValue(opt)
			return nil
		}
		v := a.items[i]
		last := len(a.items) - 1
		a.items[i] = a.items[last]
		a.items = a.items[:last]
		opt, err := newSomeOwned(reg, v)
		if err != nil {
			return err
		}
		ctx.PushValue(opt)
		return nil
	})

	method("clear", func(ctx registry.Context, reg *registry.Registry) error {
		o, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		for _, v := range a.items {
			if v != nil {
				_ = value.Drop(v)
			}
		}
		a.items = a.items[:0]
		self, err := remintSelf(o, a)
		if err != nil {
			return err
		}
		ctx.PushValue(self)
		return nil
	})

	method("swap", func(ctx registry.Context, reg *registry.Registry) error {
		to, err := popIndex(ctx)
		if err != nil {
			return err
		}
		from, err := popIndex(ctx)
		if err != nil {
			return err
		}
		o, a, err := nativePayload[*nativeArray](ctx)
		if err != nil {
			return err
		}
		if from >= 0 && from < len(a.items) && to >= 0 && to < len(a.items) {
			a.items[from], a.items[to] = a.items[to], a.items[from]
		}
		self, err := remintSelf(o, a)
		if err != nil {
			return err
		}
		ctx.PushValue(self)
		return nil
	})

	return nil
}
