package value

import (
	"sync"
	"sync/atomic"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/types"
)

// BoxCell is a reference-counted heap cell: type, finalizer, current
// refcount, an "alive" flag, and an optionally-initialized payload. It acts
// as the "strong" side for Refs/RefMuts/Lazys borrowed out of a Box, just
// as StrongToken does for an Owned — but liveness is governed by the
// refcount reaching zero rather than by a single explicit Drop, and a Box's
// borrow discipline is deliberately permissive: per spec.md §3 a shared Box
// may hand out a RefMut regardless of how many other Box clones exist,
// because the type system assumes external synchronization across clones
// (§5) — only same-process, same-Box-instance exclusivity is enforced here.
//
// Adapted from the teacher's pkg/memory/region.go refcount-via-atomic
// idiom and original_source library/promise.rs's Arc<RwLock<..>> shared
// mutable state, translated to a plain sync.Mutex-guarded cell.
type BoxCell struct {
	mu          sync.Mutex
	Type        *types.Handle
	Finalizer   types.Finalizer
	refcount    int32
	alive_      bool
	initialized bool
	slot        *Slot
	shared      int
	exclusive   int
}

// NewUninitializedBoxCell creates a Box cell with no payload yet ("uninit"
// per spec.md §4.2's lifecycle note).
func NewUninitializedBoxCell(t *types.Handle, finalizer types.Finalizer) *BoxCell {
	return &BoxCell{Type: t, Finalizer: finalizer, refcount: 1, alive_: true, slot: &Slot{}}
}

// NewInitializedBoxCell creates a Box cell already holding payload.
func NewInitializedBoxCell(t *types.Handle, finalizer types.Finalizer, payload any) *BoxCell {
	c := NewUninitializedBoxCell(t, finalizer)
	c.slot.Data = payload
	c.initialized = true
	return c
}

func (c *BoxCell) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive_
}

func (c *BoxCell) borrowShared() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive_ {
		return ankhaerr.New(ankhaerr.DeadToken, "borrow", "box already dropped")
	}
	if c.exclusive > 0 {
		return ankhaerr.New(ankhaerr.BorrowViolation, "borrow", "exclusive borrow already outstanding on box")
	}
	c.shared++
	return nil
}

func (c *BoxCell) releaseShared() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shared > 0 {
		c.shared--
	}
}

func (c *BoxCell) borrowExclusive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive_ {
		return ankhaerr.New(ankhaerr.DeadToken, "borrow_mut", "box already dropped")
	}
	if c.exclusive > 0 {
		return ankhaerr.New(ankhaerr.BorrowViolation, "borrow_mut", "exclusive borrow already outstanding on box")
	}
	if c.shared > 0 {
		return ankhaerr.New(ankhaerr.BorrowViolation, "borrow_mut", "shared borrow(s) outstanding on box")
	}
	c.exclusive = 1
	return nil
}

func (c *BoxCell) releaseExclusive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exclusive = 0
}

// Weak returns a weak handle onto this cell for a derived Ref/RefMut/Lazy
// to hold as its Src, the same pairing StrongToken.Weak gives an Owned's
// borrows — here with no meaningful generation, since a Box's liveness is
// governed by refcount/alive_ rather than a generation counter.
func (c *BoxCell) Weak() *WeakHandle {
	return &WeakHandle{target: c}
}

// IsInitialized reports whether the cell holds a payload.
func (c *BoxCell) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Payload returns the cell's current payload, failing with a fatal
// InitializationError if the Box has never been initialized (spec.md §7).
func (c *BoxCell) Payload() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil, ankhaerr.New(ankhaerr.InitializationError, "box", "unboxing uninitialized box of type %q", c.Type.QualifiedName())
	}
	return c.slot.Data, nil
}

// SetPayload initializes or overwrites the cell's payload directly (used by
// MoveInto/SwapIn when the destination is a Box).
func (c *BoxCell) SetPayload(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot.Data = v
	c.initialized = true
}

// Box is a shared, owned, nullable reference-counted handle.
type Box struct {
	Cell *BoxCell
}

func (b *Box) Kind() Kind                { return KindBox }
func (b *Box) TypeHandle() *types.Handle { return b.Cell.Type }
func (b *Box) sealedValue()              {}

// NewBox promotes an Owned value into a fresh Box cell holding a copy of
// its bytes; the original Owned is dropped without running its finalizer
// (the bytes, and the responsibility for them, move into the cell),
// exactly as spec.md §4.5's Box operation specifies.
func NewBox(o *Owned) (*Box, error) {
	if o.Token.exclusive > 0 || o.Token.shared > 0 {
		// an Owned with outstanding borrows cannot be consumed
		return nil, ankhaerr.New(ankhaerr.BorrowViolation, "box", "cannot box a value with outstanding borrows")
	}
	cell := NewInitializedBoxCell(o.Type, finalizerOf(o.Type), o.Slot.Data)
	o.Token.dead = true // consumed, not finalized
	return &Box{Cell: cell}, nil
}

func finalizerOf(t *types.Handle) types.Finalizer {
	if t == nil {
		return nil
	}
	return t.Finalizer
}

// Clone increments the refcount and returns a new Box handle sharing the
// same cell — this is DuplicateBox (spec.md §4.5).
func (b *Box) Clone() *Box {
	atomic.AddInt32(&b.Cell.refcount, 1)
	return &Box{Cell: b.Cell}
}

// Drop decrements the refcount; the final drop (refcount reaches zero)
// invokes the finalizer (if the cell is initialized) and marks the cell
// dead. Testable property 8 (spec.md §8): a box with refcount R cloned K
// times requires R+K drops to finalize — each Clone bumps refcount, each
// Drop decrements it, and only the decrement that observes zero finalizes.
func (b *Box) Drop() error {
	if atomic.AddInt32(&b.Cell.refcount, -1) > 0 {
		return nil
	}
	b.Cell.mu.Lock()
	defer b.Cell.mu.Unlock()
	if b.Cell.shared > 0 || b.Cell.exclusive > 0 {
		return ankhaerr.New(ankhaerr.BorrowViolation, "drop", "cannot drop box with outstanding borrows")
	}
	if b.Cell.initialized && b.Cell.Finalizer != nil {
		b.Cell.Finalizer(b.Cell.slot.Data)
	}
	b.Cell.alive_ = false
	b.Cell.initialized = false
	b.Cell.slot.Data = nil
	return nil
}
