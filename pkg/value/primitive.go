package value

import (
	"math/big"

	"github.com/ankha-lang/ankhavm/pkg/types"
)

// PrimitiveName enumerates the literal primitive set from spec.md §4.5:
// Unit, Bool, I8..I128/Isize, U8..U128/Usize, F32/F64, Char, String.
type PrimitiveName string

const (
	Unit   PrimitiveName = "Unit"
	Bool   PrimitiveName = "Bool"
	I8     PrimitiveName = "I8"
	I16    PrimitiveName = "I16"
	I32    PrimitiveName = "I32"
	I64    PrimitiveName = "I64"
	I128   PrimitiveName = "I128"
	Isize  PrimitiveName = "Isize"
	U8     PrimitiveName = "U8"
	U16    PrimitiveName = "U16"
	U32    PrimitiveName = "U32"
	U64    PrimitiveName = "U64"
	U128   PrimitiveName = "U128"
	Usize  PrimitiveName = "Usize"
	F32    PrimitiveName = "F32"
	F64    PrimitiveName = "F64"
	Char   PrimitiveName = "Char"
	String PrimitiveName = "String"
)

// primitiveLayouts gives each primitive its Go-native size/alignment. I128/
// U128 are stored as *big.Int (see ZeroValue below and pkg/vm's
// literalPayload) but still occupy a fixed
// nominal slot so struct layout arithmetic has a stable width to work with.
var primitiveLayouts = map[PrimitiveName]types.Layout{
	Unit:   {Size: 0, Align: 1},
	Bool:   {Size: 1, Align: 1},
	I8:     {Size: 1, Align: 1},
	I16:    {Size: 2, Align: 2},
	I32:    {Size: 4, Align: 4},
	I64:    {Size: 8, Align: 8},
	I128:   {Size: 16, Align: 8},
	Isize:  {Size: 8, Align: 8},
	U8:     {Size: 1, Align: 1},
	U16:    {Size: 2, Align: 2},
	U32:    {Size: 4, Align: 4},
	U64:    {Size: 8, Align: 8},
	U128:   {Size: 16, Align: 8},
	Usize:  {Size: 8, Align: 8},
	F32:    {Size: 4, Align: 4},
	F64:    {Size: 8, Align: 8},
	Char:   {Size: 4, Align: 4},
	String: {Size: 16, Align: 8},
}

// InstallCoreTypes registers the five managed-value container descriptors
// (conceptually — the kinds themselves are a Go tagged sum, not registry
// entries) and the primitive types, as spec.md §6's install_core_types
// embedding entry point.
func InstallCoreTypes(reg *types.Registry) (map[PrimitiveName]*types.Handle, error) {
	out := make(map[PrimitiveName]*types.Handle, len(primitiveLayouts))
	for name, layout := range primitiveLayouts {
		layout := layout
		h, err := reg.Intern(types.Descriptor{
			Name:            string(name),
			CanInitialize:   true,
			IsCopy:          true,
			PrimitiveLayout: &layout,
			ExplicitHash:    hashPtr(types.HashName(string(name))),
		})
		if err != nil {
			return nil, err
		}
		out[name] = h
	}
	return out, nil
}

func hashPtr(h types.Hash) *types.Hash { return &h }

// ZeroValue returns the Go-native default payload for a primitive, used
// when Structure default-initializes a field and by Literal(Unit).
func ZeroValue(name PrimitiveName) any {
	switch name {
	case Unit:
		return struct{}{}
	case Bool:
		return false
	case I8, I16, I32, I64, Isize:
		return int64(0)
	case I128, U128:
		return new(big.Int)
	case U8, U16, U32, U64, Usize:
		return uint64(0)
	case F32:
		return float32(0)
	case F64:
		return float64(0)
	case Char:
		return rune(0)
	case String:
		return ""
	default:
		return nil
	}
}
