package vmcontext

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

// RegisterToken identifies one allocated register slot. Slots are never
// reused while live — DropRegister tombstones the slot rather than
// compacting the file, so a token stays valid (or detectably dead) for as
// long as the register file exists.
type RegisterToken int

// registers is the evaluator's named-slot storage for MakeRegister/
// PushFromRegister/PopToRegister (spec.md §4.4's register operations). Each
// slot holds a value.Value directly, since a register may hold whichever of
// the five kinds a script placed there.
type register struct {
	occupied bool
	val      value.Value
}

type registers struct {
	entries []register
}

func newRegisters(capacity int) *registers {
	return &registers{entries: make([]register, 0, capacity)}
}

// makeRegister allocates a fresh, empty register and returns its token.
func (r *registers) makeRegister() RegisterToken {
	r.entries = append(r.entries, register{})
	return RegisterToken(len(r.entries) - 1)
}

func (r *registers) checkRange(tok RegisterToken) error {
	if tok < 0 || int(tok) >= len(r.entries) {
		return ankhaerr.New(ankhaerr.RegisterOutOfRange, "register", "register %d out of range (len %d)", tok, len(r.entries))
	}
	return nil
}

// dropRegister drops whatever value currently occupies tok (if any) and
// marks the slot empty. The token itself remains out of range only if it
// never existed; a dropped-but-existing register can still be targeted
// (e.g. re-populated by a later PopToRegister), matching the teacher's
// slice-based local-variable slots that outlive individual assignments.
func (r *registers) dropRegister(tok RegisterToken) error {
	if err := r.checkRange(tok); err != nil {
		return err
	}
	e := &r.entries[tok]
	if e.occupied {
		if err := value.Drop(e.val); err != nil {
			return err
		}
	}
	e.occupied = false
	e.val = nil
	return nil
}

// pushFromRegister reads tok's current value onto the caller-supplied
// stack without removing it from the register (spec.md §4.4: reading a
// register does not consume it; only DropRegister or a later PopToRegister
// overwrite does).
func (r *registers) pushFromRegister(tok RegisterToken) (value.Value, error) {
	if err := r.checkRange(tok); err != nil {
		return nil, err
	}
	e := &r.entries[tok]
	if !e.occupied {
		return nil, ankhaerr.New(ankhaerr.RegisterOutOfRange, "push_from_register", "register %d is empty", tok)
	}
	return e.val, nil
}

// popToRegister stores v into tok, dropping whatever previously occupied
// it.
func (r *registers) popToRegister(tok RegisterToken, v value.Value) error {
	if err := r.checkRange(tok); err != nil {
		return err
	}
	e := &r.entries[tok]
	if e.occupied {
		if err := value.Drop(e.val); err != nil {
			return err
		}
	}
	e.occupied = true
	e.val = v
	return nil
}

func (r *registers) len() int { return len(r.entries) }
