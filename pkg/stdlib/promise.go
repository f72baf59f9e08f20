// promise.go is grounded on original_source's library/promise.rs: a
// Promise wraps a closure that is handed a PromiseResolver to call back
// with success or failure, and on_success/on_failure register further
// closures to run when that happens. The Rust crate threads this through
// an Arc<RwLock<Promise>> chain for composability (resolving a promise may
// itself resolve another); this reimplementation keeps the single-level
// resolve/reject + callback shape and composes chained promises the same
// way a script would — by resolving one promise's on_success with a
// closure that resolves the next — rather than baking chaining into the
// native type itself.
package stdlib

import (
	"sync"

	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

type nativePromise struct {
	mu         sync.Mutex
	settled    bool
	rejected   bool
	result     value.Value
	onSuccess  *nativeClosure
	onFailure  *nativeClosure
}

// nativeResolver is the callback handle a Promise's own closure receives
// to report its outcome; resolve/reject are idempotent past the first
// call, matching a promise's single-settlement invariant.
type nativeResolver struct {
	p *nativePromise
}

func installPromise(reg *registry.Registry) error {
	resolverHandle, err := registerNativeType(reg, promiseModule, "PromiseResolver", nil)
	if err != nil {
		return err
	}
	promiseHandle, err := registerNativeType(reg, promiseModule, "Promise", nil)
	if err != nil {
		return err
	}

	reg.AddFunction(&registry.Function{
		Name: "new", ModuleName: promiseModule,
		Kind: registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			ctx.PushValue(value.NewOwned(promiseHandle, &nativePromise{}))
			return nil
		},
	})

	settle := func(ctx registry.Context, reg *registry.Registry, rejected bool) error {
		v, err := ctx.PopValue()
		if err != nil {
			return err
		}
		_, r, err := nativePayload[*nativeResolver](ctx)
		if err != nil {
			return err
		}
		p := r.p
		p.mu.Lock()
		if p.settled {
			p.mu.Unlock()
			return value.Drop(v)
		}
		p.settled = true
		p.rejected = rejected
		p.result = v
		callback := p.onFailure
		if !rejected {
			callback = p.onSuccess
		}
		p.mu.Unlock()
		if callback == nil || callback.function == nil || callback.function.Function == nil {
			return nil
		}
		ref, err := value.Borrow(v)
		if err != nil {
			return err
		}
		args := append(append([]value.Value{}, callback.captured...), ref)
		_, err = reg.Invoke(ctx, callback.function.Function, args)
		return err
	}

	reg.AddFunction(&registry.Function{
		Name: "resolve", ModuleName: promiseModule,
		OwnerTypeHash: &resolverHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			return settle(ctx, reg, false)
		},
	})
	reg.AddFunction(&registry.Function{
		Name: "reject", ModuleName: promiseModule,
		OwnerTypeHash: &resolverHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			return settle(ctx, reg, true)
		},
	})

	// execute(promise, closure) runs closure immediately, passing it a
	// fresh PromiseResolver bound to promise.
	reg.AddFunction(&registry.Function{
		Name: "execute", ModuleName: promiseModule,
		OwnerTypeHash: &promiseHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, c, err := nativePayload[*nativeClosure](ctx)
			if err != nil {
				return err
			}
			_, p, err := nativePayload[*nativePromise](ctx)
			if err != nil {
				return err
			}
			if c.function == nil || c.function.Function == nil {
				return nil
			}
			resolver := value.NewOwned(resolverHandle, &nativeResolver{p: p})
			args := append(append([]value.Value{}, c.captured...), resolver)
			_, err = reg.Invoke(ctx, c.function.Function, args)
			return err
		},
	})

	reg.AddFunction(&registry.Function{
		Name: "on_success", ModuleName: promiseModule,
		OwnerTypeHash: &promiseHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, c, err := nativePayload[*nativeClosure](ctx)
			if err != nil {
				return err
			}
			_, p, err := nativePayload[*nativePromise](ctx)
			if err != nil {
				return err
			}
			return attachCallback(ctx, reg, promiseHandle, p, &p.onSuccess, c, false)
		},
	})
	reg.AddFunction(&registry.Function{
		Name: "on_failure", ModuleName: promiseModule,
		OwnerTypeHash: &promiseHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, c, err := nativePayload[*nativeClosure](ctx)
			if err != nil {
				return err
			}
			_, p, err := nativePayload[*nativePromise](ctx)
			if err != nil {
				return err
			}
			return attachCallback(ctx, reg, promiseHandle, p, &p.onFailure, c, true)
		},
	})

	reg.AddFunction(&registry.Function{
		Name: "resolved", ModuleName: promiseModule,
		OwnerTypeHash: &promiseHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, p, err := nativePayload[*nativePromise](ctx)
			if err != nil {
				return err
			}
			p.mu.Lock()
			defer p.mu.Unlock()
			return pushBool(ctx, reg, p.settled && !p.rejected)
		},
	})
	reg.AddFunction(&registry.Function{
		Name: "rejected", ModuleName: promiseModule,
		OwnerTypeHash: &promiseHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, p, err := nativePayload[*nativePromise](ctx)
			if err != nil {
				return err
			}
			p.mu.Lock()
			defer p.mu.Unlock()
			return pushBool(ctx, reg, p.settled && p.rejected)
		},
	})

	return nil
}

// attachCallback registers closure as p's success/failure callback, and
// if p already settled on the matching outcome before the callback was
// attached, invokes it immediately with a borrow of the stored result —
// a promise's settlement is permanent, so a late subscriber must still
// observe it. Pushes p back so on_success/on_failure chain fluently.
func attachCallback(ctx registry.Context, reg *registry.Registry, promiseHandle *types.Handle, p *nativePromise, slot **nativeClosure, closure *nativeClosure, forRejection bool) error {
	p.mu.Lock()
	*slot = closure
	fire := p.settled && p.rejected == forRejection
	result := p.result
	p.mu.Unlock()

	if fire && closure.function != nil && closure.function.Function != nil {
		ref, err := value.Borrow(result)
		if err != nil {
			return err
		}
		args := append(append([]value.Value{}, closure.captured...), ref)
		if _, err := reg.Invoke(ctx, closure.function.Function, args); err != nil {
			return err
		}
	}
	ctx.PushValue(value.NewOwned(promiseHandle, p))
	return nil
}
