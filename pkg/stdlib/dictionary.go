// dictionary.go is grounded on original_source's library/dictionary.rs,
// keeping only the synchronous Dictionary (see array.go's header and
// DESIGN.md for why the Rust crate's Async variant is dropped): a
// string-keyed map of managed values with the same get/insert/remove/
// size/clear/is_empty/exists method set Array exposes for indices.
package stdlib

import (
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

type nativeDictionary struct {
	items map[string]value.Value
}

func dictionaryFinalizer(payload any) {
	d := payload.(*nativeDictionary)
	for _, v := range d.items {
		if v != nil {
			_ = value.Drop(v)
		}
	}
}

func installDictionary(reg *registry.Registry) error {
	h, err := registerNativeType(reg, dictionaryModule, "Dictionary", dictionaryFinalizer)
	if err != nil {
		return err
	}
	owner := &h.Hash

	method := func(name string, impl registry.NativeFn) {
		reg.AddFunction(&registry.Function{
			Name: name, ModuleName: dictionaryModule, OwnerTypeHash: owner,
			Kind: registry.Native, Impl: impl,
		})
	}

	reg.AddFunction(&registry.Function{
		Name: "new", ModuleName: dictionaryModule,
		Kind: registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			ctx.PushValue(value.NewOwned(h, &nativeDictionary{items: make(map[string]value.Value)}))
			return nil
		},
	})

	method("is_empty", func(ctx registry.Context, reg *registry.Registry) error {
		_, d, err := nativePayload[*nativeDictionary](ctx)
		if err != nil {
			return err
		}
		return pushBool(ctx, reg, len(d.items) == 0)
	})

	method("size", func(ctx registry.Context, reg *registry.Registry) error {
		_, d, err := nativePayload[*nativeDictionary](ctx)
		if err != nil {
			return err
		}
		return pushUsize(ctx, reg, len(d.items))
	})

	method("exists", func(ctx registry.Context, reg *registry.Registry) error {
		k, err := popString(ctx)
		if err != nil {
			return err
		}
		_, d, err := nativePayload[*nativeDictionary](ctx)
		if err != nil {
			return err
		}
		_, ok := d.items[k]
		return pushBool(ctx, reg, ok)
	})

	// get returns an option::Option wrapping a Ref borrow of the value at
	// key, matching array.get's borrow-not-move convention.
	method("get", func(ctx registry.Context, reg *registry.Registry) error {
		k, err := popString(ctx)
		if err != nil {
			return err
		}
		_, d, err := nativePayload[*nativeDictionary](ctx)
		if err != nil {
			return err
		}
		v, ok := d.items[k]
		if !ok {
			opt, err := newNoneOwned(reg)
			if err != nil {
				return err
			}
			ctx.PushValue(opt)
			return nil
		}
		ref, err := value.Borrow(v)
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

	method("insert", func(ctx registry.Context, reg *registry.Registry) error {
		v, err := ctx.PopValue()
		if err != nil {
			return err
		}
		k, err := popString(ctx)
		if err != nil {
			return err
		}
		o, d, err := nativePayload[*nativeDictionary](ctx)
		if err != nil {
			return err
		}
		if old, ok := d.items[k]; ok && old != nil {
			_ = value.Drop(old)
		}
		d.items[k] = v
		self, err := remintSelf(o, d)
		if err != nil {
			return err
		}
		ctx.PushValue(self)
		return nil
	})

	method("remove", func(ctx registry.Context, reg *registry.Registry) error {
		k, err := popString(ctx)
		if err != nil {
			return err
		}
		_, d, err := nativePayload[*nativeDictionary](ctx)
		if err != nil {
			return err
		}
		v, ok := d.items[k]
		if !ok {
			opt, err := newNoneOwned(reg)
			if err != nil {
				return err
			}
			ctx.PushValue(opt)
			return nil
		}
		delete(d.items, k)
		opt, err := newSomeOwned(reg, v)
		if err != nil {
			return err
		}
		ctx.PushValue(opt)
		return nil
	})

	method("clear", func(ctx registry.Context, reg *registry.Registry) error {
		o, d, err := nativePayload[*nativeDictionary](ctx)
		if err != nil {
			return err
		}
		for k, v := range d.items {
			if v != nil {
				_ = value.Drop(v)
			}
			delete(d.items, k)
		}
		self, err := remintSelf(o, d)
		if err != nil {
			return err
		}
		ctx.PushValue(self)
		return nil
	})

	return nil
}
