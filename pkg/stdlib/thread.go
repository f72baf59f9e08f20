// thread.go is grounded on original_source's library/thread.rs: spawn a
// closure onto its own thread, forked context included, and report/await
// completion. original_source does this with std::thread::spawn over a
// forked intuicio Context; this reimplementation spawns a goroutine over a
// vmcontext.Context.Fork()'d/Adopt()'d child, the idiom pkg/vmcontext's own
// doc comments describe as "how spec.md §6's thread.spawn gives a spawned
// goroutine isolated evaluator state".
package stdlib

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
	"github.com/ankha-lang/ankhavm/pkg/vmcontext"
)

type nativeThread struct {
	done     int32 // atomic bool
	wg       sync.WaitGroup
	result   []value.Value
	runErr   error
}

func installThread(reg *registry.Registry) error {
	h, err := registerNativeType(reg, threadModule, "Thread", nil)
	if err != nil {
		return err
	}

	// new(closure, args) forks ctx, spawns a goroutine running closure
	// with args, and returns a Thread handle immediately.
	reg.AddFunction(&registry.Function{
		Name: "new", ModuleName: threadModule,
		Kind: registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, args, err := nativePayload[*nativeArray](ctx)
			if err != nil {
				return err
			}
			_, c, err := nativePayload[*nativeClosure](ctx)
			if err != nil {
				return err
			}
			parent, ok := ctx.(*vmcontext.Context)
			if !ok {
				return ankhaerr.New(ankhaerr.Internal, "thread.new", "context is not a *vmcontext.Context (%T)", ctx)
			}

			t := &nativeThread{}
			t.wg.Add(1)
			child := parent.Fork()
			callArgs := append(append([]value.Value{}, c.captured...), args.items...)

			go func() {
				defer t.wg.Done()
				child.Adopt()
				defer atomic.StoreInt32(&t.done, 1)
				if c.function == nil || c.function.Function == nil {
					t.runErr = ankhaerr.New(ankhaerr.Internal, "thread.new", "closure holds no function handle")
					return
				}
				outputs, err := reg.Invoke(child, c.function.Function, callArgs)
				if err != nil {
					t.runErr = err
					return
				}
				t.result = outputs
			}()

			ctx.PushValue(value.NewOwned(h, t))
			return nil
		},
	})

	reg.AddFunction(&registry.Function{
		Name: "is_finished", ModuleName: threadModule,
		OwnerTypeHash: &h.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, t, err := nativePayload[*nativeThread](ctx)
			if err != nil {
				return err
			}
			return pushBool(ctx, reg, atomic.LoadInt32(&t.done) == 1)
		},
	})

	// join blocks until the thread completes, then pushes its outputs in
	// declared order, fatally aborting if the thread's own invocation
	// failed or if it runs past the host's configured
	// ThreadJoinTimeout (0 means block indefinitely).
	reg.AddFunction(&registry.Function{
		Name: "join", ModuleName: threadModule,
		OwnerTypeHash: &h.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, t, err := nativePayload[*nativeThread](ctx)
			if err != nil {
				return err
			}
			var timeout time.Duration
			if vc, ok := ctx.(*vmcontext.Context); ok {
				timeout = vc.Config().ThreadJoinTimeout
			}
			if err := waitThread(t, timeout); err != nil {
				return err
			}
			if t.runErr != nil {
				return t.runErr
			}
			for _, v := range t.result {
				ctx.PushValue(v)
			}
			return nil
		},
	})

	return nil
}

// waitThread blocks on t's completion, or until timeout elapses (timeout <=
// 0 means block indefinitely) — returned error is a fatal abort, distinct
// from a thread's own runErr.
func waitThread(t *nativeThread, timeout time.Duration) error {
	if timeout <= 0 {
		t.wg.Wait()
		return nil
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ankhaerr.New(ankhaerr.Internal, "thread.join", "timed out after %s", timeout)
	}
}
