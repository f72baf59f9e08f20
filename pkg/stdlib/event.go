// event.go is grounded on original_source's library/event.rs: an Event
// holds a set of subscribed closures, identified by an opaque handle
// (there: a typid::ID; here: a uuid) so a script can unsubscribe a
// specific closure later without holding onto the closure value itself.
package stdlib

import (
	"github.com/google/uuid"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

type nativeEvent struct {
	subscribers map[uuid.UUID]*nativeClosure
}

func installEvent(reg *registry.Registry) error {
	eventHandleType, err := registerNativeType(reg, eventModule, "EventHandle", nil)
	if err != nil {
		return err
	}
	eventType, err := registerNativeType(reg, eventModule, "Event", nil)
	if err != nil {
		return err
	}

	reg.AddFunction(&registry.Function{
		Name: "new", ModuleName: eventModule,
		Kind: registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			ctx.PushValue(value.NewOwned(eventType, &nativeEvent{subscribers: make(map[uuid.UUID]*nativeClosure)}))
			return nil
		},
	})

	reg.AddFunction(&registry.Function{
		Name: "is_bound", ModuleName: eventModule,
		OwnerTypeHash: &eventType.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, e, err := nativePayload[*nativeEvent](ctx)
			if err != nil {
				return err
			}
			return pushBool(ctx, reg, len(e.subscribers) > 0)
		},
	})

	// subscribe(event, closure) registers closure and returns an
	// EventHandle a script holds onto to unsubscribe it later.
	reg.AddFunction(&registry.Function{
		Name: "subscribe", ModuleName: eventModule,
		OwnerTypeHash: &eventType.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, c, err := nativePayload[*nativeClosure](ctx)
			if err != nil {
				return err
			}
			_, e, err := nativePayload[*nativeEvent](ctx)
			if err != nil {
				return err
			}
			id := uuid.New()
			e.subscribers[id] = c
			ctx.PushValue(value.NewOwned(eventHandleType, id))
			return nil
		},
	})

	reg.AddFunction(&registry.Function{
		Name: "unsubscribe", ModuleName: eventModule,
		OwnerTypeHash: &eventType.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, id, err := nativePayload[uuid.UUID](ctx)
			if err != nil {
				return err
			}
			_, e, err := nativePayload[*nativeEvent](ctx)
			if err != nil {
				return err
			}
			delete(e.subscribers, id)
			return nil
		},
	})

	reg.AddFunction(&registry.Function{
		Name: "clear", ModuleName: eventModule,
		OwnerTypeHash: &eventType.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, e, err := nativePayload[*nativeEvent](ctx)
			if err != nil {
				return err
			}
			for id := range e.subscribers {
				delete(e.subscribers, id)
			}
			return nil
		},
	})

	// dispatch(event, arg) fires every subscribed closure, in no particular
	// order, with its captured values followed by a shared borrow of arg as
	// the call arguments —
	// a Ref rather than arg itself, since arg can only be moved into one
	// subscriber's Owned argument but many subscribers may need to read
	// it; original_source sidesteps this by only ever calling a single
	// registered effect (PromiseResolver has at most one on_resolved), a
	// constraint this multi-subscriber Event does not share.
	reg.AddFunction(&registry.Function{
		Name: "dispatch", ModuleName: eventModule,
		OwnerTypeHash: &eventType.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			arg, err := ctx.PopValue()
			if err != nil {
				return err
			}
			_, e, err := nativePayload[*nativeEvent](ctx)
			if err != nil {
				return err
			}
			for _, c := range e.subscribers {
				if c.function == nil || c.function.Function == nil {
					return ankhaerr.New(ankhaerr.Internal, "event.dispatch", "subscriber holds no function handle")
				}
				ref, err := value.Borrow(arg)
				if err != nil {
					return err
				}
				args := append(append([]value.Value{}, c.captured...), ref)
				if _, err := reg.Invoke(ctx, c.function.Function, args); err != nil {
					return err
				}
			}
			return value.Drop(arg)
		},
	})

	return nil
}
