package ast

// codec.go gives the AST a JSON wire format so cmd/ankhavm's loader.Parse
// can read a package off disk. Operation is a sealed Go interface (spec.md
// §4.5's tagged-sum discipline, see operations.go) so encoding/json cannot
// round-trip it without help: every variant is wrapped in an envelope
// carrying its tag, and the handful of variants that themselves nest
// Operation/[]Operation (OpExpression, OpGroup, OpGroupReversed,
// OpPushScope, OpLoopScope, OpBranchScope) get a shadow "wire" struct that
// holds json.RawMessage in place of the interface field, decoded
// recursively through EncodeOperation/DecodeOperation.
import (
	"encoding/json"
	"fmt"

	"github.com/ankha-lang/ankhavm/pkg/types"
)

type opEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EncodeOperation converts a single Operation into its tagged wire form.
func EncodeOperation(op Operation) (json.RawMessage, error) {
	var tag string
	var payload any

	switch v := op.(type) {
	case OpLiteral:
		tag, payload = "literal", v
	case OpStackDrop:
		tag, payload = "stack_drop", v
	case OpStackUnwrapBoolean:
		tag, payload = "stack_unwrap_boolean", v
	case OpBorrow:
		tag, payload = "borrow", v
	case OpBorrowMut:
		tag, payload = "borrow_mut", v
	case OpLazy:
		tag, payload = "lazy", v
	case OpBorrowField:
		tag, payload = "borrow_field", v
	case OpBorrowMutField:
		tag, payload = "borrow_mut_field", v
	case OpBorrowUnmanagedField:
		tag, payload = "borrow_unmanaged_field", v
	case OpBorrowMutUnmanagedField:
		tag, payload = "borrow_mut_unmanaged_field", v
	case OpCopyFrom:
		tag, payload = "copy_from", v
	case OpMoveInto:
		tag, payload = "move_into", v
	case OpSwapIn:
		tag, payload = "swap_in", v
	case OpDestructure:
		tag, payload = "destructure", v
	case OpStructure:
		tag, payload = "structure", v
	case OpBox:
		tag, payload = "box", v
	case OpManage:
		tag, payload = "manage", v
	case OpUnmanage:
		tag, payload = "unmanage", v
	case OpCopy:
		tag, payload = "copy", v
	case OpSwap:
		tag, payload = "swap", v
	case OpDuplicateBox:
		tag, payload = "duplicate_box", v
	case OpEnsureStackType:
		tag, payload = "ensure_stack_type", v
	case OpEnsureRegisterType:
		tag, payload = "ensure_register_type", v
	case OpEnsureStackKind:
		tag, payload = "ensure_stack_kind", v
	case OpEnsureRegisterKind:
		tag, payload = "ensure_register_kind", v
	case OpCallMethod:
		tag, payload = "call_method", v
	case OpCallIndirect:
		tag, payload = "call_indirect", v
	case OpMakeRegister:
		tag, payload = "make_register", v
	case OpDropRegister:
		tag, payload = "drop_register", v
	case OpPushFromRegister:
		tag, payload = "push_from_register", v
	case OpPopToRegister:
		tag, payload = "pop_to_register", v
	case OpCallFunction:
		tag, payload = "call_function", v
	case OpPopScope:
		tag, payload = "pop_scope", v

	case OpExpression:
		expr, err := EncodeOperation(v.Expr)
		if err != nil {
			return nil, err
		}
		tag, payload = "expression", struct {
			Expr json.RawMessage `json:"expr"`
		}{expr}
	case OpGroup:
		items, err := encodeOperations(v.Items)
		if err != nil {
			return nil, err
		}
		tag, payload = "group", struct {
			Items []json.RawMessage `json:"items"`
		}{items}
	case OpGroupReversed:
		items, err := encodeOperations(v.Items)
		if err != nil {
			return nil, err
		}
		tag, payload = "group_reversed", struct {
			Items []json.RawMessage `json:"items"`
		}{items}
	case OpPushScope:
		body, err := encodeOperations(v.Body)
		if err != nil {
			return nil, err
		}
		tag, payload = "push_scope", struct {
			Body []json.RawMessage `json:"body"`
		}{body}
	case OpLoopScope:
		body, err := encodeOperations(v.Body)
		if err != nil {
			return nil, err
		}
		tag, payload = "loop_scope", struct {
			Body []json.RawMessage `json:"body"`
		}{body}
	case OpBranchScope:
		onTrue, err := encodeOperations(v.OnTrue)
		if err != nil {
			return nil, err
		}
		var onFalse []json.RawMessage
		if v.OnFalse != nil {
			onFalse, err = encodeOperations(v.OnFalse)
			if err != nil {
				return nil, err
			}
		}
		tag, payload = "branch_scope", struct {
			OnTrue  []json.RawMessage `json:"on_true"`
			OnFalse []json.RawMessage `json:"on_false,omitempty"`
		}{onTrue, onFalse}

	default:
		return nil, fmt.Errorf("ast: no wire tag for operation type %T", op)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(opEnvelope{Type: tag, Data: data})
}

func encodeOperations(ops []Operation) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(ops))
	for i, op := range ops {
		data, err := EncodeOperation(op)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

// DecodeOperation parses a single tagged wire operation back into its
// concrete Operation variant.
func DecodeOperation(raw json.RawMessage) (Operation, error) {
	var env opEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("ast: decoding operation envelope: %w", err)
	}

	unmarshalInto := func(v any) error {
		if len(env.Data) == 0 {
			return nil
		}
		return json.Unmarshal(env.Data, v)
	}

	switch env.Type {
	case "literal":
		var v OpLiteral
		return v, unmarshalInto(&v)
	case "stack_drop":
		return OpStackDrop{}, nil
	case "stack_unwrap_boolean":
		return OpStackUnwrapBoolean{}, nil
	case "borrow":
		return OpBorrow{}, nil
	case "borrow_mut":
		return OpBorrowMut{}, nil
	case "lazy":
		return OpLazy{}, nil
	case "borrow_field":
		var v OpBorrowField
		return v, unmarshalInto(&v)
	case "borrow_mut_field":
		var v OpBorrowMutField
		return v, unmarshalInto(&v)
	case "borrow_unmanaged_field":
		var v OpBorrowUnmanagedField
		return v, unmarshalInto(&v)
	case "borrow_mut_unmanaged_field":
		var v OpBorrowMutUnmanagedField
		return v, unmarshalInto(&v)
	case "copy_from":
		return OpCopyFrom{}, nil
	case "move_into":
		return OpMoveInto{}, nil
	case "swap_in":
		return OpSwapIn{}, nil
	case "destructure":
		var v OpDestructure
		return v, unmarshalInto(&v)
	case "structure":
		var v OpStructure
		return v, unmarshalInto(&v)
	case "box":
		return OpBox{}, nil
	case "manage":
		return OpManage{}, nil
	case "unmanage":
		return OpUnmanage{}, nil
	case "copy":
		return OpCopy{}, nil
	case "swap":
		return OpSwap{}, nil
	case "duplicate_box":
		return OpDuplicateBox{}, nil
	case "ensure_stack_type":
		var v OpEnsureStackType
		return v, unmarshalInto(&v)
	case "ensure_register_type":
		var v OpEnsureRegisterType
		return v, unmarshalInto(&v)
	case "ensure_stack_kind":
		var v OpEnsureStackKind
		return v, unmarshalInto(&v)
	case "ensure_register_kind":
		var v OpEnsureRegisterKind
		return v, unmarshalInto(&v)
	case "call_method":
		var v OpCallMethod
		return v, unmarshalInto(&v)
	case "call_indirect":
		return OpCallIndirect{}, nil
	case "make_register":
		var v OpMakeRegister
		return v, unmarshalInto(&v)
	case "drop_register":
		var v OpDropRegister
		return v, unmarshalInto(&v)
	case "push_from_register":
		var v OpPushFromRegister
		return v, unmarshalInto(&v)
	case "pop_to_register":
		var v OpPopToRegister
		return v, unmarshalInto(&v)
	case "call_function":
		var v OpCallFunction
		return v, unmarshalInto(&v)
	case "pop_scope":
		return OpPopScope{}, nil

	case "expression":
		var wire struct {
			Expr json.RawMessage `json:"expr"`
		}
		if err := unmarshalInto(&wire); err != nil {
			return nil, err
		}
		expr, err := DecodeOperation(wire.Expr)
		if err != nil {
			return nil, err
		}
		return OpExpression{Expr: expr}, nil
	case "group":
		var wire struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := unmarshalInto(&wire); err != nil {
			return nil, err
		}
		items, err := decodeOperations(wire.Items)
		if err != nil {
			return nil, err
		}
		return OpGroup{Items: items}, nil
	case "group_reversed":
		var wire struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := unmarshalInto(&wire); err != nil {
			return nil, err
		}
		items, err := decodeOperations(wire.Items)
		if err != nil {
			return nil, err
		}
		return OpGroupReversed{Items: items}, nil
	case "push_scope":
		var wire struct {
			Body []json.RawMessage `json:"body"`
		}
		if err := unmarshalInto(&wire); err != nil {
			return nil, err
		}
		body, err := decodeOperations(wire.Body)
		if err != nil {
			return nil, err
		}
		return OpPushScope{Body: body}, nil
	case "loop_scope":
		var wire struct {
			Body []json.RawMessage `json:"body"`
		}
		if err := unmarshalInto(&wire); err != nil {
			return nil, err
		}
		body, err := decodeOperations(wire.Body)
		if err != nil {
			return nil, err
		}
		return OpLoopScope{Body: body}, nil
	case "branch_scope":
		var wire struct {
			OnTrue  []json.RawMessage `json:"on_true"`
			OnFalse []json.RawMessage `json:"on_false,omitempty"`
		}
		if err := unmarshalInto(&wire); err != nil {
			return nil, err
		}
		onTrue, err := decodeOperations(wire.OnTrue)
		if err != nil {
			return nil, err
		}
		var onFalse []Operation
		if wire.OnFalse != nil {
			onFalse, err = decodeOperations(wire.OnFalse)
			if err != nil {
				return nil, err
			}
		}
		return OpBranchScope{OnTrue: onTrue, OnFalse: onFalse}, nil

	default:
		return nil, fmt.Errorf("ast: unknown operation tag %q", env.Type)
	}
}

func decodeOperations(raws []json.RawMessage) ([]Operation, error) {
	out := make([]Operation, len(raws))
	for i, raw := range raws {
		op, err := DecodeOperation(raw)
		if err != nil {
			return nil, err
		}
		out[i] = op
	}
	return out, nil
}

// wireFunction/wireModule/wireFile mirror Function/Module/File but hold
// raw operation bodies, letting the surrounding struct fields (Name,
// Inputs, Outputs, Meta, ...) round-trip through the default encoder.
type wireFunction struct {
	Name       string
	OwnerType  *TypeRef
	Visibility json.RawMessage
	Meta       *Meta
	Inputs     []Param
	Outputs    []Param
	Body       []json.RawMessage
}

// EncodeFile renders a File to its JSON wire form.
func EncodeFile(f File) ([]byte, error) {
	type wireModule struct {
		Name      string
		Structs   []Struct
		Enums     []Enum
		Functions []wireFunction
	}
	type wireFile struct {
		Path         string
		Dependencies []string
		Modules      []wireModule
	}

	out := wireFile{Path: f.Path, Dependencies: f.Dependencies}
	for _, m := range f.Modules {
		wm := wireModule{Name: m.Name, Structs: m.Structs, Enums: m.Enums}
		for _, fn := range m.Functions {
			body, err := encodeOperations(fn.Body)
			if err != nil {
				return nil, err
			}
			vis, err := json.Marshal(fn.Visibility)
			if err != nil {
				return nil, err
			}
			wm.Functions = append(wm.Functions, wireFunction{
				Name: fn.Name, OwnerType: fn.OwnerType, Visibility: vis,
				Meta: fn.Meta, Inputs: fn.Inputs, Outputs: fn.Outputs, Body: body,
			})
		}
		out.Modules = append(out.Modules, wm)
	}
	return json.Marshal(out)
}

// DecodeFile parses a File back out of its JSON wire form — the counterpart
// loader.Parse calls for every package file a host reads off disk.
func DecodeFile(path string, data []byte) (File, error) {
	type wireModule struct {
		Name      string
		Structs   []Struct
		Enums     []Enum
		Functions []wireFunction
	}
	type wireFile struct {
		Path         string
		Dependencies []string
		Modules      []wireModule
	}

	var in wireFile
	if err := json.Unmarshal(data, &in); err != nil {
		return File{}, fmt.Errorf("ast: decoding file %q: %w", path, err)
	}

	f := File{Path: path, Dependencies: in.Dependencies}
	for _, wm := range in.Modules {
		m := Module{Name: wm.Name, Structs: wm.Structs, Enums: wm.Enums}
		for _, wfn := range wm.Functions {
			body, err := decodeOperations(wfn.Body)
			if err != nil {
				return File{}, fmt.Errorf("ast: decoding file %q function %q: %w", path, wfn.Name, err)
			}
			var vis types.Visibility
			if len(wfn.Visibility) > 0 {
				if err := json.Unmarshal(wfn.Visibility, &vis); err != nil {
					return File{}, fmt.Errorf("ast: decoding file %q function %q visibility: %w", path, wfn.Name, err)
				}
			}
			m.Functions = append(m.Functions, Function{
				Name: wfn.Name, OwnerType: wfn.OwnerType, Visibility: vis,
				Meta: wfn.Meta, Inputs: wfn.Inputs, Outputs: wfn.Outputs, Body: body,
			})
		}
		f.Modules = append(f.Modules, m)
	}
	return f, nil
}
