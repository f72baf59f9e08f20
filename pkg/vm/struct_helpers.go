package vm

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

// primitiveNameOf maps a primitive type handle back to its value.PrimitiveName
// so Destructure/fillDefaults can compute a zero value for an unmanaged field.
func primitiveNameOf(t *types.Handle) value.PrimitiveName {
	return value.PrimitiveName(t.Name)
}

// requireAllFieldsSet enforces spec.md §4.5's Structure rule: "if the type
// cannot default-initialize, the caller must supply every field."
func requireAllFieldsSet(h *types.Handle, given []string) error {
	seen := make(map[string]bool, len(given))
	for _, name := range given {
		seen[name] = true
	}
	for _, fd := range h.Struct.Fields {
		if !seen[fd.Name] {
			return ankhaerr.New(ankhaerr.InitializationError, "structure",
				"type %q cannot default-initialize; field %q was not supplied", h.QualifiedName(), fd.Name)
		}
	}
	return nil
}

// fillDefaults zero-fills unmanaged fields the caller left unsupplied, for
// types whose can_initialize bit permits it. Managed fields left unsupplied
// stay nil — a struct with a managed field that has no Owned default of its
// own cannot be meaningfully default-constructed by this generic path, and
// scripts relying on that should be routed through Structure with every
// managed field explicit instead.
func fillDefaults(h *types.Handle, inst *value.Instance, given []string) {
	seen := make(map[string]bool, len(given))
	for _, name := range given {
		seen[name] = true
	}
	for _, fd := range h.Struct.Fields {
		if seen[fd.Name] || fd.Managed {
			continue
		}
		slot := inst.FieldSlot(fd.Name)
		if fd.Type != nil && fd.Type.IsPrimitive() {
			slot.Data = value.ZeroValue(primitiveNameOf(fd.Type))
		}
	}
}
