package value

import (
	"testing"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/stretchr/testify/require"
)

func i32Handle(t *testing.T) *types.Handle {
	t.Helper()
	reg := types.NewRegistry()
	handles, err := InstallCoreTypes(reg)
	require.NoError(t, err)
	return handles[I32]
}

func TestBorrowExclusivityInvariant(t *testing.T) {
	i32 := i32Handle(t)
	owned := NewOwned(i32, int64(42))

	ref1, err := Borrow(owned)
	require.NoError(t, err)
	_, err = Borrow(owned)
	require.NoError(t, err, "multiple shared borrows are legal")

	_, err = BorrowMut(owned)
	require.Error(t, err, "exclusive borrow must fail while shared borrows are outstanding")

	ReleaseBorrow(ref1)
}

func TestBorrowMutFromRefIsOutlawed(t *testing.T) {
	i32 := i32Handle(t)
	owned := NewOwned(i32, int64(1))
	ref, err := Borrow(owned)
	require.NoError(t, err)

	_, err = BorrowMut(ref)
	require.Error(t, err)
	require.True(t, ankhaerr.Is(err, ankhaerr.KindMismatch))
}

func TestDropFailsFastWithOutstandingBorrows(t *testing.T) {
	i32 := i32Handle(t)
	owned := NewOwned(i32, int64(1))
	_, err := Borrow(owned)
	require.NoError(t, err)

	err = Drop(owned)
	require.Error(t, err, "dropping a strong token with a live borrow must fail fast")
}

func TestDeadTokenDetection(t *testing.T) {
	i32 := i32Handle(t)
	owned := NewOwned(i32, int64(7))
	ref, err := Borrow(owned)
	require.NoError(t, err)
	ReleaseBorrow(ref)
	require.NoError(t, Drop(owned))

	require.False(t, ref.Alive())
}

func TestManageUnmanageRoundTrip(t *testing.T) {
	i32 := i32Handle(t)
	owned := NewOwned(i32, int64(99))
	raw := Unmanage(owned)
	require.Equal(t, i32.Hash, raw.Type.Hash)

	reManaged := Manage(raw)
	require.True(t, BitEqual(reManaged.Slot.Data, int64(99)))
	require.Equal(t, i32.Hash, reManaged.Type.Hash)
}

func TestCopyFromRequiresCopyCapableType(t *testing.T) {
	i32 := i32Handle(t)
	owned := NewOwned(i32, int64(5))
	clone, err := CopyFrom(owned)
	require.NoError(t, err)
	require.True(t, BitEqual(clone.Slot.Data, owned.Slot.Data))

	notCopy := &types.Handle{Name: "NotCopy", IsCopy: false}
	noncopyOwned := NewOwned(notCopy, "x")
	_, err = CopyFrom(noncopyOwned)
	require.Error(t, err)
}

func TestMoveIntoConsumesSource(t *testing.T) {
	i32 := i32Handle(t)
	dstOwned := NewOwned(i32, int64(0))
	dstRefMut, err := BorrowMut(dstOwned)
	require.NoError(t, err)

	src := NewOwned(i32, int64(42))
	require.NoError(t, MoveInto(dstRefMut, src))
	require.Equal(t, int64(42), dstOwned.Slot.Data)
	require.True(t, src.Token.dead, "source token must be consumed")
}

func TestSwapInExchangesBytesWithoutDropping(t *testing.T) {
	i32 := i32Handle(t)
	dstOwned := NewOwned(i32, int64(10))
	dstRefMut, err := BorrowMut(dstOwned)
	require.NoError(t, err)

	src := NewOwned(i32, int64(20))
	require.NoError(t, SwapIn(dstRefMut, src))
	require.Equal(t, int64(20), dstOwned.Slot.Data)
	require.Equal(t, int64(10), src.Slot.Data)
	require.False(t, src.Token.dead, "swap_in consumes neither side")
}

func TestBoxRefcountDropCount(t *testing.T) {
	i32 := i32Handle(t)
	owned := NewOwned(i32, int64(2))
	box, err := NewBox(owned)
	require.NoError(t, err)

	clone1 := box.Clone()
	clone2 := box.Clone()

	require.NoError(t, box.Drop())
	require.True(t, box.Cell.alive())
	require.NoError(t, clone1.Drop())
	require.True(t, box.Cell.alive())
	require.NoError(t, clone2.Drop())
	require.False(t, box.Cell.alive())
}

func TestBoxUninitializedDerefFails(t *testing.T) {
	i32 := i32Handle(t)
	cell := NewUninitializedBoxCell(i32, nil)
	_, err := cell.Payload()
	require.Error(t, err)
}

func TestBorrowUnmanagedFieldKeepsEnclosingTokenLive(t *testing.T) {
	// Grounded on testable property 7 (spec.md §8): borrowing a field via
	// BorrowUnmanagedField keeps the enclosing value's lifetime token
	// reachable until the derived Ref drops; this package expresses that as
	// the field Ref holding a weak handle onto the enclosing Owned's
	// StrongToken as its Src. BorrowUnmanagedField rejects an Owned, so the
	// field is borrowed through a Lazy of the enclosing value.
	i32 := i32Handle(t)
	structHandle := &types.Handle{
		Name:   "Pair",
		IsCopy: false,
		Struct: &types.Struct{Fields: []*types.Field{
			{Name: "a", Type: i32, Managed: false},
		}},
	}
	inst := NewInstance(structHandle)
	inst.FieldSlot("a").Data = int64(11)

	enclosing := NewOwned(structHandle, inst)
	lazy, err := MakeLazy(enclosing)
	require.NoError(t, err)
	fieldRef, err := BorrowUnmanagedField(lazy, "a", nil)
	require.NoError(t, err)

	require.Error(t, Drop(enclosing), "must not drop while the field ref's borrow is outstanding")
	ReleaseBorrow(fieldRef)
	require.NoError(t, Drop(enclosing))
}
