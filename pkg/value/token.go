package value

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
)

// Generation is a random 64-bit generation number, directly adapted from
// the teacher's pkg/memory/genref.go (Vale-style generational references):
// a strong side is stamped with a random generation at creation; dropping
// it zeroes the generation, invalidating every weak handle that remembered
// the old value. Randomness (rather than a sequential counter) avoids
// tracking reuse or handling overflow, at the cost of a negligible
// (1/2^64) collision probability — the same tradeoff genref.go documents.
type Generation uint64

func randomGeneration() Generation {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return Generation(0xDEADBEEF)
	}
	return Generation(binary.LittleEndian.Uint64(buf[:]))
}

// source is implemented by whatever a Ref/RefMut/Lazy borrows from: a
// StrongToken (derived from an Owned) or a *BoxCell (derived from a Box).
// Unifying both behind one interface lets Ref/RefMut/Lazy stay oblivious to
// which kind produced them, matching the table in spec.md §3 where Ref/
// RefMut/Lazy may be borrowed out of any of the five kinds.
type source interface {
	borrowShared() error
	releaseShared()
	borrowExclusive() error
	releaseExclusive()
	alive() bool
}

// StrongToken is the strong side of a lifetime token: it is owned by
// exactly one Owned value and carries the two borrow counters invariant 1
// (spec.md §8) requires: exclusive_borrows(T) ∈ {0,1}, and never positive
// at the same time as shared_borrows(T).
type StrongToken struct {
	mu         sync.Mutex
	generation Generation
	shared     int
	exclusive  int
	dead       bool
}

// NewStrongToken mints a fresh, live strong token.
func NewStrongToken() *StrongToken {
	return &StrongToken{generation: randomGeneration()}
}

func (t *StrongToken) alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.dead
}

func (t *StrongToken) borrowShared() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return ankhaerr.New(ankhaerr.DeadToken, "borrow", "strong token already dropped")
	}
	if t.exclusive > 0 {
		return ankhaerr.New(ankhaerr.BorrowViolation, "borrow", "exclusive borrow already outstanding")
	}
	t.shared++
	return nil
}

func (t *StrongToken) releaseShared() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shared > 0 {
		t.shared--
	}
}

func (t *StrongToken) borrowExclusive() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return ankhaerr.New(ankhaerr.DeadToken, "borrow_mut", "strong token already dropped")
	}
	if t.exclusive > 0 {
		return ankhaerr.New(ankhaerr.BorrowViolation, "borrow_mut", "exclusive borrow already outstanding")
	}
	if t.shared > 0 {
		return ankhaerr.New(ankhaerr.BorrowViolation, "borrow_mut", "shared borrow(s) outstanding")
	}
	t.exclusive = 1
	return nil
}

func (t *StrongToken) releaseExclusive() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exclusive > 0 {
		t.exclusive = 0
	}
}

// Drop marks the strong token dead, invalidating every outstanding weak
// handle. It fails fast (a fatal abort, not a recoverable error — see
// pkg/ankhaerr) if any borrow counters are still nonzero, per spec.md
// §4.2's invariant: "Drop of the strong side fails-fast if any borrow
// counters are nonzero".
func (t *StrongToken) Drop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return nil
	}
	if t.shared > 0 || t.exclusive > 0 {
		return ankhaerr.New(ankhaerr.BorrowViolation, "drop",
			"cannot drop strong token with outstanding borrows (shared=%d exclusive=%d)", t.shared, t.exclusive)
	}
	t.dead = true
	t.generation = 0
	return nil
}

// Weak returns a weak handle bound to this strong token's current
// generation.
func (t *StrongToken) Weak() *WeakHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &WeakHandle{target: t, rememberedGeneration: t.generation}
}

// WeakHandle is the weak side of a lifetime token: an O(1)-checkable
// remembrance of the strong side's generation at the moment it was
// derived. Every Ref/RefMut/Lazy holds one of these as its Src (spec.md
// §3: "derived Refs/RefMuts/Lazys hold weak handles") rather than the
// strong side directly, so a stale handle left over from a dead/reused
// token is caught by generation mismatch instead of silently aliasing
// whatever now occupies that memory — the same Vale-style check the
// teacher's pkg/memory/genref.go performs on every GenRef.Deref.
//
// WeakHandle itself implements the `source` interface: borrow calls
// re-check liveness, then delegate to the target so the actual counters
// stay on the strong side (StrongToken or BoxCell), shared across every
// weak handle derived from it.
type WeakHandle struct {
	target               source
	rememberedGeneration Generation // only meaningful when target is *StrongToken
}

// Alive reports whether the strong side is still live, i.e. whether
// upgrading this weak handle would succeed.
func (w *WeakHandle) Alive() bool {
	if w == nil || w.target == nil {
		return false
	}
	if st, ok := w.target.(*StrongToken); ok {
		st.mu.Lock()
		defer st.mu.Unlock()
		return !st.dead && st.generation == w.rememberedGeneration
	}
	return w.target.alive()
}

func (w *WeakHandle) alive() bool { return w.Alive() }

func (w *WeakHandle) borrowShared() error {
	if !w.Alive() {
		return ankhaerr.New(ankhaerr.DeadToken, "borrow", "weak handle's target is no longer alive")
	}
	return w.target.borrowShared()
}

func (w *WeakHandle) releaseShared() { w.target.releaseShared() }

func (w *WeakHandle) borrowExclusive() error {
	if !w.Alive() {
		return ankhaerr.New(ankhaerr.DeadToken, "borrow_mut", "weak handle's target is no longer alive")
	}
	return w.target.borrowExclusive()
}

func (w *WeakHandle) releaseExclusive() { w.target.releaseExclusive() }
