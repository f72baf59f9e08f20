package stdlib

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

// popOwned pops the top of ctx's stack and requires it be Owned, the kind
// every stdlib function here takes `self`/arguments by, matching
// original_source's library methods taking `&self`/`&mut self`/by-value
// (none of these native bodies accept a borrow directly — a script passes
// `self` by Owned, and borrows/mutates it by holding the Owned across
// calls, same as pkg/vm's CallMethod dispatch convention).
func popOwned(ctx registry.Context) (*value.Owned, error) {
	v, err := ctx.PopValue()
	if err != nil {
		return nil, err
	}
	o, ok := v.(*value.Owned)
	if !ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "stdlib", "expected an Owned value, got %s", v.Kind())
	}
	return o, nil
}

// popIndex pops an Owned integer primitive and returns it as an int,
// accepting any of the signed/unsigned integer payload shapes
// literalPayload produces (int64 or uint64) so a script may index with
// whichever integer primitive it declared the parameter as.
func popIndex(ctx registry.Context) (int, error) {
	o, err := popOwned(ctx)
	if err != nil {
		return 0, err
	}
	switch n := o.Slot.Data.(type) {
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	default:
		return 0, ankhaerr.New(ankhaerr.TypeMismatch, "stdlib", "expected an integer index, got %T", o.Slot.Data)
	}
}

func popBool(ctx registry.Context) (bool, error) {
	o, err := popOwned(ctx)
	if err != nil {
		return false, err
	}
	b, ok := o.Slot.Data.(bool)
	if !ok {
		return false, ankhaerr.New(ankhaerr.TypeMismatch, "stdlib", "expected a Bool, got %T", o.Slot.Data)
	}
	return b, nil
}

func popString(ctx registry.Context) (string, error) {
	o, err := popOwned(ctx)
	if err != nil {
		return "", err
	}
	s, ok := o.Slot.Data.(string)
	if !ok {
		return "", ankhaerr.New(ankhaerr.TypeMismatch, "stdlib", "expected a String, got %T", o.Slot.Data)
	}
	return s, nil
}

// nativePayload extracts a native module's Go-side payload from the
// top-of-stack Owned and type-asserts it to T, failing with a
// KindMismatch fatal abort rather than panicking on a script that passes
// the wrong `self`.
func nativePayload[T any](ctx registry.Context) (*value.Owned, T, error) {
	o, err := popOwned(ctx)
	if err != nil {
		var zero T
		return nil, zero, err
	}
	p, ok := o.Slot.Data.(T)
	if !ok {
		var zero T
		return nil, zero, ankhaerr.New(ankhaerr.KindMismatch, "stdlib", "expected %T payload, got %T", zero, o.Slot.Data)
	}
	return o, p, nil
}

// remintSelf closes out o's own strong token — fatally aborting if o still
// has outstanding borrows, per spec.md §4.2's "Drop of the strong side
// fails-fast if any borrow counters are nonzero" — and returns a fresh Owned
// of the same type wrapping payload under a new token. The collection
// methods in array.go and dictionary.go that call this pop self, mutate the
// native payload in place, and hand self back to the caller (mutators that
// return an element instead, such as array.go's pop/remove/swap_remove,
// do not hand self back); this is the chokepoint that stops a script
// from borrowing a collection, swapping the Owned back to the top, and
// calling a mutator out from under the outstanding borrow.
func remintSelf(o *value.Owned, payload any) (*value.Owned, error) {
	if err := o.Token.Drop(); err != nil {
		return nil, err
	}
	return value.NewOwned(o.Type, payload), nil
}

func pushBool(ctx registry.Context, reg *registry.Registry, b bool) error {
	h, ok := reg.Types.ByQualifiedName("Bool")
	if !ok {
		return ankhaerr.New(ankhaerr.RegistryMiss, "stdlib", "Bool primitive not installed")
	}
	ctx.PushValue(value.NewOwned(h, b))
	return nil
}

func pushUsize(ctx registry.Context, reg *registry.Registry, n int) error {
	h, ok := reg.Types.ByQualifiedName("Usize")
	if !ok {
		return ankhaerr.New(ankhaerr.RegistryMiss, "stdlib", "Usize primitive not installed")
	}
	ctx.PushValue(value.NewOwned(h, uint64(n)))
	return nil
}
