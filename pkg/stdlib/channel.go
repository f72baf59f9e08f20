// channel.go is grounded on original_source's library/channel.rs: a
// Sender/Receiver pair backed there by std::sync::mpsc, here by a Go
// channel of value.Value, with open, send, receive (non-blocking),
// receive_blocking, receive_timeout and flush. No operation closes or
// terminates a channel: the Go channel stays open, so receive_blocking on
// an empty channel waits until a sender delivers a value.
package stdlib

import (
	"time"

	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
	"github.com/ankha-lang/ankhavm/pkg/vmcontext"
)

// defaultChannelCapacity is used when ctx isn't a *vmcontext.Context (e.g.
// a test double) so channel.open still behaves outside the real host.
const defaultChannelCapacity = 64

type nativeSender struct {
	ch chan value.Value
}

type nativeReceiver struct {
	ch chan value.Value
}

func installChannel(reg *registry.Registry) error {
	senderHandle, err := registerNativeType(reg, channelModule, "Sender", nil)
	if err != nil {
		return err
	}
	receiverHandle, err := registerNativeType(reg, channelModule, "Receiver", nil)
	if err != nil {
		return err
	}

	// open creates a linked sender/receiver pair over a shared buffered
	// channel (spec.md's "message broker" style fan-out primitive — this
	// reimplementation names it `open` rather than the bare `channel`
	// original_source uses, since `channel` collides with this module's
	// own name in a script's qualified-call convention). Buffer capacity
	// comes from the host's ankhaconfig.Config.DefaultChannelCapacity when
	// ctx is a real *vmcontext.Context, falling back to a fixed default.
	reg.AddFunction(&registry.Function{
		Name: "open", ModuleName: channelModule,
		Kind: registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			capacity := defaultChannelCapacity
			if vc, ok := ctx.(*vmcontext.Context); ok && vc.Config().DefaultChannelCapacity > 0 {
				capacity = vc.Config().DefaultChannelCapacity
			}
			ch := make(chan value.Value, capacity)
			ctx.PushValue(value.NewOwned(senderHandle, &nativeSender{ch: ch}))
			ctx.PushValue(value.NewOwned(receiverHandle, &nativeReceiver{ch: ch}))
			return nil
		},
	})

	reg.AddFunction(&registry.Function{
		Name: "send", ModuleName: channelModule,
		OwnerTypeHash: &senderHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			v, err := ctx.PopValue()
			if err != nil {
				return err
			}
			_, s, err := nativePayload[*nativeSender](ctx)
			if err != nil {
				return err
			}
			s.ch <- v
			return nil
		},
	})

	// receive is non-blocking: None if nothing is queued.
	reg.AddFunction(&registry.Function{
		Name: "receive", ModuleName: channelModule,
		OwnerTypeHash: &receiverHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, r, err := nativePayload[*nativeReceiver](ctx)
			if err != nil {
				return err
			}
			select {
			case v := <-r.ch:
				opt, err := newSomeOwned(reg, v)
				if err != nil {
					return err
				}
				ctx.PushValue(opt)
			default:
				opt, err := newNoneOwned(reg)
				if err != nil {
					return err
				}
				ctx.PushValue(opt)
			}
			return nil
		},
	})

	reg.AddFunction(&registry.Function{
		Name: "receive_blocking", ModuleName: channelModule,
		OwnerTypeHash: &receiverHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, r, err := nativePayload[*nativeReceiver](ctx)
			if err != nil {
				return err
			}
			v, ok := <-r.ch
			if !ok {
				opt, err := newNoneOwned(reg)
				if err != nil {
					return err
				}
				ctx.PushValue(opt)
				return nil
			}
			opt, err := newSomeOwned(reg, v)
			if err != nil {
				return err
			}
			ctx.PushValue(opt)
			return nil
		},
	})

	reg.AddFunction(&registry.Function{
		Name: "receive_timeout", ModuleName: channelModule,
		OwnerTypeHash: &receiverHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			millis, err := popIndex(ctx)
			if err != nil {
				return err
			}
			_, r, err := nativePayload[*nativeReceiver](ctx)
			if err != nil {
				return err
			}
			select {
			case v := <-r.ch:
				opt, err := newSomeOwned(reg, v)
				if err != nil {
					return err
				}
				ctx.PushValue(opt)
			case <-time.After(time.Duration(millis) * time.Millisecond):
				opt, err := newNoneOwned(reg)
				if err != nil {
					return err
				}
				ctx.PushValue(opt)
			}
			return nil
		},
	})

	reg.AddFunction(&registry.Function{
		Name: "flush", ModuleName: channelModule,
		OwnerTypeHash: &receiverHandle.Hash,
		Kind:          registry.Native,
		Impl: func(ctx registry.Context, reg *registry.Registry) error {
			_, r, err := nativePayload[*nativeReceiver](ctx)
			if err != nil {
				return err
			}
			for {
				select {
				case v := <-r.ch:
					if v != nil {
						_ = value.Drop(v)
					}
				default:
					return nil
				}
			}
		},
	})

	return nil
}
