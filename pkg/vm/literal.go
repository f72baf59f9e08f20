package vm

import (
	"math/big"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/ast"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

// literalPayload converts an ast.Literal into the Go-native payload its
// primitive type stores, matching value.ZeroValue's type choices per
// primitive (I128/U128 use *big.Int, wide enough that literal construction
// never silently truncates).
func literalPayload(l ast.Literal) (any, error) {
	switch l.Primitive {
	case value.Unit:
		return struct{}{}, nil
	case value.Bool:
		return l.Bool, nil
	case value.I8, value.I16, value.I32, value.I64, value.Isize:
		return l.Int, nil
	case value.I128:
		return new(big.Int).SetInt64(l.Int), nil
	case value.U8, value.U16, value.U32, value.U64, value.Usize:
		return l.Uint, nil
	case value.U128:
		return new(big.Int).SetUint64(l.Uint), nil
	case value.F32:
		return float32(l.Float), nil
	case value.F64:
		return l.Float, nil
	case value.Char:
		return l.Char, nil
	case value.String:
		return l.String, nil
	default:
		return nil, ankhaerr.New(ankhaerr.TypeMismatch, "literal", "unknown primitive %q", l.Primitive)
	}
}

// buildLiteral resolves L's primitive type handle from the registry and
// allocates a freshly-Owned value of it, per the Literal expression
// operation (spec.md §4.5).
func buildLiteral(types_ *types.Registry, l ast.Literal) (*value.Owned, error) {
	h, ok := types_.ByQualifiedName(string(l.Primitive))
	if !ok {
		return nil, ankhaerr.New(ankhaerr.RegistryMiss, "literal", "primitive type %q is not installed", l.Primitive)
	}
	payload, err := literalPayload(l)
	if err != nil {
		return nil, err
	}
	return value.NewOwned(h, payload), nil
}

// rawPayload extracts the Go-native payload underneath any of the five
// kinds, used by StackUnwrapBoolean (and debugging/equality helpers) that
// need the bytes rather than the managed wrapper.
func rawPayload(v value.Value) (any, error) {
	switch t := v.(type) {
	case *value.Owned:
		return t.Slot.Data, nil
	case *value.Ref:
		return t.Slot.Data, nil
	case *value.RefMut:
		return t.Slot.Data, nil
	case *value.Lazy:
		return t.Slot.Data, nil
	case *value.Box:
		return t.Cell.Payload()
	default:
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "raw_payload", "unrecognized value kind %T", v)
	}
}

func asBool(payload any) (bool, error) {
	b, ok := payload.(bool)
	if !ok {
		return false, ankhaerr.New(ankhaerr.TypeMismatch, "stack_unwrap_boolean", "payload is not a Bool (%T)", payload)
	}
	return b, nil
}
