// Package value implements the Managed Value Model (component B): the five
// variant containers (Owned, Ref, RefMut, Lazy, Box), lifetime tokens, and
// the conversion/borrow algebra of spec.md §3-4.2.
//
// Per the reimplementation guidance in spec.md §9, the five kinds are
// encoded as a tagged sum — one Go struct type per kind, matched
// exhaustively by every operation — rather than as a single struct with a
// dynamic type-hash-driven branch (the bug class spec.md calls out: "a new
// kind is added but some operation forgets a branch"). Go does not check a
// type switch for exhaustiveness; most switches here end in a default
// branch that reports an unrecognized kind.
package value

import "github.com/ankha-lang/ankhavm/pkg/types"

// Kind tags which of the five ownership roles a Value plays.
type Kind byte

const (
	KindOwned Kind = iota
	KindRef
	KindRefMut
	KindLazy
	KindBox
)

func (k Kind) String() string {
	switch k {
	case KindOwned:
		return "Owned"
	case KindRef:
		return "Ref"
	case KindRefMut:
		return "RefMut"
	case KindLazy:
		return "Lazy"
	case KindBox:
		return "Box"
	default:
		return "?"
	}
}

// Slot is the mutable storage a managed value ultimately points at: for a
// primitive it holds the Go-native payload (int64, float64, bool, rune,
// string, ...); for a struct/enum it holds *Instance. Ref/RefMut/Lazy
// derived from an Owned/Box share the very same *Slot, so writes through a
// RefMut are visible through the original Owned — there is deliberately no
// copy-on-borrow.
type Slot struct {
	Data any
}

// Value is the sealed interface implemented by exactly the five kinds.
// Every VM operation that needs to branch on kind does so with a type
// switch over the five concrete types below; the compiler does not check
// such a switch for exhaustiveness.
type Value interface {
	Kind() Kind
	TypeHandle() *types.Handle
	sealedValue()
}

// Owned is the sole-ownership kind: it holds the strong side of a lifetime
// token and may legally be borrowed (Ref/RefMut), turned Lazy, moved-from,
// or promoted to a Box.
type Owned struct {
	Type  *types.Handle
	Token *StrongToken
	Slot  *Slot
}

func (o *Owned) Kind() Kind                 { return KindOwned }
func (o *Owned) TypeHandle() *types.Handle  { return o.Type }
func (o *Owned) sealedValue()               {}

// NewOwned allocates a fresh Owned value of the given type around payload.
func NewOwned(t *types.Handle, payload any) *Owned {
	return &Owned{Type: t, Token: NewStrongToken(), Slot: &Slot{Data: payload}}
}

// Ref is a shared, non-owning borrow: many Refs may coexist, but not
// alongside a RefMut on the same token.
type Ref struct {
	Type *types.Handle
	Src  source
	Slot *Slot
}

func (r *Ref) Kind() Kind                { return KindRef }
func (r *Ref) TypeHandle() *types.Handle { return r.Type }
func (r *Ref) sealedValue()              {}

// RefMut is an exclusive, non-owning borrow: at most one may exist, and
// only when no Ref is outstanding.
type RefMut struct {
	Type *types.Handle
	Src  source
	Slot *Slot
}

func (r *RefMut) Kind() Kind                { return KindRefMut }
func (r *RefMut) TypeHandle() *types.Handle { return r.Type }
func (r *RefMut) sealedValue()              {}

// Lazy is a non-exclusive read/write handle: acquiring one touches no
// borrow counter (spec.md §3: "defers borrow-checking to the moment of
// access"); only operations performed *through* a Lazy (borrow_mut,
// move_into, swap_in) consult the counters, at the moment they run.
type Lazy struct {
	Type *types.Handle
	Src  source
	Slot *Slot
}

func (l *Lazy) Kind() Kind                { return KindLazy }
func (l *Lazy) TypeHandle() *types.Handle { return l.Type }
func (l *Lazy) sealedValue()              {}

// Alive reports whether the Ref/RefMut/Lazy's source token is still live.
// Any further operation against a dead source is a fatal DeadToken abort.
func (r *Ref) Alive() bool    { return r.Src.alive() }
func (r *RefMut) Alive() bool { return r.Src.alive() }
func (l *Lazy) Alive() bool   { return l.Src.alive() }
