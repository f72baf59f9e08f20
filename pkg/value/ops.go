package value

import (
	"reflect"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/types"
)

// sourceAndSlot extracts the (source, *Slot) pair a value borrows from, or
// an error if the kind cannot be borrowed from at all (none, currently —
// the table in spec.md §3 allows borrow() from all five kinds). For a
// strong side (Owned, Box) this hands out a fresh *WeakHandle rather than
// the strong side itself, matching spec.md §3's "derived Refs/RefMuts/
// Lazys hold weak handles"; Ref/RefMut/Lazy already hold a weak handle as
// their own Src, so borrowing again from one of those just forwards it.
func sourceAndSlot(v Value) (source, *Slot, *types.Handle, error) {
	switch t := v.(type) {
	case *Owned:
		return t.Token.Weak(), t.Slot, t.Type, nil
	case *Ref:
		return t.Src, t.Slot, t.Type, nil
	case *RefMut:
		return t.Src, t.Slot, t.Type, nil
	case *Lazy:
		return t.Src, t.Slot, t.Type, nil
	case *Box:
		return t.Cell.Weak(), t.Cell.slot, t.Cell.Type, nil
	default:
		return nil, nil, nil, ankhaerr.New(ankhaerr.KindMismatch, "borrow", "unrecognized value kind %T", v)
	}
}

// Borrow implements borrow(Owned|Ref|RefMut|Lazy|Box) -> Ref: succeeds iff
// no active exclusive borrow exists; increments the shared-borrow counter.
func Borrow(v Value) (*Ref, error) {
	src, slot, t, err := sourceAndSlot(v)
	if err != nil {
		return nil, err
	}
	if !src.alive() {
		return nil, ankhaerr.New(ankhaerr.DeadToken, "borrow", "source is dead")
	}
	if err := src.borrowShared(); err != nil {
		return nil, err
	}
	return &Ref{Type: t, Src: src, Slot: slot}, nil
}

// BorrowMut implements borrow_mut(Owned|RefMut|Lazy|Box) -> RefMut: invalid
// from Ref per spec.md §4.2 and Open Question (a) — which this
// reimplementation outlaws outright rather than allowing an unsafe escape
// hatch.
func BorrowMut(v Value) (*RefMut, error) {
	if _, ok := v.(*Ref); ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "borrow_mut", "cannot borrow_mut from a Ref")
	}
	src, slot, t, err := sourceAndSlot(v)
	if err != nil {
		return nil, err
	}
	if !src.alive() {
		return nil, ankhaerr.New(ankhaerr.DeadToken, "borrow_mut", "source is dead")
	}
	if err := src.borrowExclusive(); err != nil {
		return nil, err
	}
	return &RefMut{Type: t, Src: src, Slot: slot}, nil
}

// MakeLazy implements lazy(Owned|Box) -> Lazy. Invalid from Ref/RefMut;
// given a Lazy it returns a copy of that handle, the same result CloneLazy
// gives (the spec's "Lazy-from-Lazy via clone" exception).
func MakeLazy(v Value) (*Lazy, error) {
	switch v.(type) {
	case *Ref, *RefMut:
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "lazy", "cannot derive lazy from %s", v.Kind())
	}
	src, slot, t, err := sourceAndSlot(v)
	if err != nil {
		return nil, err
	}
	if !src.alive() {
		return nil, ankhaerr.New(ankhaerr.DeadToken, "lazy", "source is dead")
	}
	return &Lazy{Type: t, Src: src, Slot: slot}, nil
}

// CloneLazy duplicates a Lazy handle without touching any borrow counter,
// the "Lazy-from-Lazy via clone" path spec.md §4.2 carves out.
func CloneLazy(l *Lazy) (*Lazy, error) {
	if !l.Alive() {
		return nil, ankhaerr.New(ankhaerr.DeadToken, "lazy", "source is dead")
	}
	return &Lazy{Type: l.Type, Src: l.Src, Slot: l.Slot}, nil
}

// ReleaseBorrow drops a Ref/RefMut/Lazy, releasing whatever borrow counter
// it was holding (Lazy holds none). Owned/Box go through Drop instead.
func ReleaseBorrow(v Value) {
	switch t := v.(type) {
	case *Ref:
		t.Src.releaseShared()
	case *RefMut:
		t.Src.releaseExclusive()
	case *Lazy:
		// no counter was ever taken
	}
}

// CopyFrom implements copy_from(source, any kind): requires is_copy;
// performs a bitwise copy into a freshly allocated Owned of the same type.
func CopyFrom(v Value) (*Owned, error) {
	_, slot, t, err := sourceAndSlot(v)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.IsCopy {
		return nil, ankhaerr.New(ankhaerr.TypeMismatch, "copy_from", "type %q is not copy-capable", safeName(t))
	}
	return NewOwned(t, deepCopy(slot.Data)), nil
}

// MoveInto implements move_into(Owned -> RefMut|Lazy|Box): the destination's
// current payload is dropped (finalizer runs), then source bytes overwrite
// destination; source is consumed (its token dies without its own
// finalizer running, since ownership of the bytes moved into dst).
func MoveInto(dst Value, src *Owned) error {
	if err := requireSameType(dst.TypeHandle(), src.Type, "move_into"); err != nil {
		return err
	}
	switch t := dst.(type) {
	case *RefMut, *Lazy:
		if l, ok := t.(*Lazy); ok {
			if err := l.Src.borrowExclusive(); err != nil {
				return err
			}
			defer l.Src.releaseExclusive()
		}
		slot := slotOf(t)
		runFinalizer(dst.TypeHandle(), slot.Data)
		slot.Data = src.Slot.Data
	case *Box:
		if err := t.Cell.borrowExclusive(); err != nil {
			return err
		}
		defer t.Cell.releaseExclusive()
		if t.Cell.initialized {
			runFinalizer(t.Cell.Type, t.Cell.slot.Data)
		}
		t.Cell.SetPayload(src.Slot.Data)
	default:
		return ankhaerr.New(ankhaerr.KindMismatch, "move_into", "destination must be RefMut, Lazy, or Box, got %s", dst.Kind())
	}
	src.Token.dead = true // consumed
	return nil
}

// SwapIn implements swap_in(Owned <-> RefMut|Lazy|Box): byte-wise swap;
// neither side is dropped; types must match.
func SwapIn(dst Value, src *Owned) error {
	if err := requireSameType(dst.TypeHandle(), src.Type, "swap_in"); err != nil {
		return err
	}
	var dstSlot *Slot
	switch t := dst.(type) {
	case *RefMut, *Lazy:
		if l, ok := t.(*Lazy); ok {
			if err := l.Src.borrowExclusive(); err != nil {
				return err
			}
			defer l.Src.releaseExclusive()
		}
		dstSlot = slotOf(t)
	case *Box:
		if err := t.Cell.borrowExclusive(); err != nil {
			return err
		}
		defer t.Cell.releaseExclusive()
		t.Cell.mu.Lock()
		t.Cell.initialized = true
		t.Cell.mu.Unlock()
		dstSlot = t.Cell.slot
	default:
		return ankhaerr.New(ankhaerr.KindMismatch, "swap_in", "destination must be RefMut, Lazy, or Box, got %s", dst.Kind())
	}
	src.Slot.Data, dstSlot.Data = dstSlot.Data, src.Slot.Data
	return nil
}

func slotOf(v Value) *Slot {
	switch t := v.(type) {
	case *RefMut:
		return t.Slot
	case *Lazy:
		return t.Slot
	case *Ref:
		return t.Slot
	case *Owned:
		return t.Slot
	case *Box:
		return t.Cell.slot
	}
	return nil
}

// RawCell is the unmanaged (untracked) stack representation produced by
// Unmanage and consumed by Manage: layout/type/finalizer plus raw bytes,
// with no borrow tracking attached.
type RawCell struct {
	Type *types.Handle
	Slot *Slot
}

// Manage wraps a raw stack cell with a fresh lifetime token, producing an
// Owned — the inverse of Unmanage.
func Manage(raw *RawCell) *Owned {
	return &Owned{Type: raw.Type, Token: NewStrongToken(), Slot: raw.Slot}
}

// ConsumeRaw marks o's token dead without running its finalizer and
// returns its payload: the "move the bytes out, consume the owner without
// finalizing" step Box promotion and unmanaged-field writes both need,
// since the destination becomes responsible for the bytes.
func ConsumeRaw(o *Owned) any {
	o.Token.dead = true
	return o.Slot.Data
}

// Unmanage unwraps an Owned into a raw, owning stack cell with the same
// bytes (still finalizable via its Type.Finalizer), losing borrow tracking.
// Testable property 4 (spec.md §8): Manage then Unmanage round-trips to
// bit-identical bytes and the same type hash.
func Unmanage(o *Owned) *RawCell {
	return &RawCell{Type: o.Type, Slot: o.Slot}
}

// Drop finalizes and releases a managed value. Every value popped off the
// stack or evicted from a register must have Drop called on it exactly
// once (testable property 3, spec.md §8).
func Drop(v Value) error {
	switch t := v.(type) {
	case *Owned:
		runFinalizer(t.Type, t.Slot.Data)
		return t.Token.Drop()
	case *Box:
		return t.Drop()
	case *Ref, *RefMut, *Lazy:
		ReleaseBorrow(v)
		return nil
	default:
		return ankhaerr.New(ankhaerr.KindMismatch, "drop", "unrecognized value kind %T", v)
	}
}

func runFinalizer(t *types.Handle, payload any) {
	if t != nil && t.Finalizer != nil {
		t.Finalizer(payload)
	}
}

func requireSameType(a, b *types.Handle, op string) error {
	if a == nil || b == nil || a.Hash != b.Hash {
		return ankhaerr.New(ankhaerr.TypeMismatch, op, "type mismatch: %s vs %s", safeName(a), safeName(b))
	}
	return nil
}

func safeName(t *types.Handle) string {
	if t == nil {
		return "<nil>"
	}
	return t.QualifiedName()
}

// deepCopy performs the bitwise-copy semantics CopyFrom needs: primitives
// copy by value already (Go assignment); struct/enum Instances need their
// field slots cloned recursively so the copy does not alias the source.
func deepCopy(data any) any {
	switch d := data.(type) {
	case *Instance:
		cp := &Instance{Handle: d.Handle, Fields: make([]*Slot, len(d.Fields))}
		for i, s := range d.Fields {
			if s == nil {
				continue
			}
			cp.Fields[i] = &Slot{Data: deepCopyFieldSlot(s.Data)}
		}
		return cp
	case *EnumInstance:
		cp := &EnumInstance{Handle: d.Handle, Discriminant: d.Discriminant}
		if d.Payload != nil {
			cp.Payload = deepCopy(d.Payload).(*Instance)
		}
		return cp
	default:
		return data
	}
}

// deepCopyFieldSlot copies a field slot's contents: managed fields hold a
// Value (is_copy was validated against the *enclosing* type only; an Owned
// field is copied into a fresh Owned and any other kind is shared as is,
// and neither this function nor Intern checks that a managed field's own
// type is copy-capable), unmanaged fields hold a raw payload
// copied by reflect.DeepCopy-free value semantics (Go values already copy
// by assignment; only pointers need explicit cloning, and raw fields here
// never hold pointers the copy must chase beyond nested Instances).
func deepCopyFieldSlot(data any) any {
	if v, ok := data.(Value); ok {
		switch t := v.(type) {
		case *Owned:
			return NewOwned(t.Type, deepCopy(t.Slot.Data))
		default:
			return v
		}
	}
	return deepCopy(data)
}

// BitEqual reports whether two payloads are byte-for-byte equal, used by
// testable property 6 (Copy yields two values whose CopyFrom comparison is
// byte-equal) and property 4 (Manage/Unmanage round trip).
func BitEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
