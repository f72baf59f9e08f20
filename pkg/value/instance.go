package value

import "github.com/ankha-lang/ankhavm/pkg/types"

// Instance is the runtime representation of a struct value: one Slot per
// declared field, in declaration order, mirroring types.Struct.Fields. A
// managed field's Slot holds a Value (Owned/Ref/RefMut/Lazy/Box); an
// unmanaged field's Slot holds the raw Go-native payload directly.
//
// This is the safe stand-in for "base + offset" byte addressing: rather
// than reinterpreting raw memory at a computed offset, BorrowField/
// BorrowUnmanagedField find the field by name and index into Fields at its
// declared position (types.Field.Offset still names the nominal byte offset
// but is not read here).
type Instance struct {
	Handle *types.Handle
	Fields []*Slot
}

// NewInstance default-initializes an Instance for t: every managed field
// slot holds nil until assigned by Structure; an unmanaged field slot holds
// t's zero value convention (nil, overwritten by Structure or left as the
// type's default).
func NewInstance(t *types.Handle) *Instance {
	if t.Struct == nil {
		return &Instance{Handle: t}
	}
	fields := make([]*Slot, len(t.Struct.Fields))
	for i := range fields {
		fields[i] = &Slot{}
	}
	return &Instance{Handle: t, Fields: fields}
}

// FieldSlot returns the slot for the named field, or nil if no such field
// exists on this instance's type.
func (inst *Instance) FieldSlot(name string) *Slot {
	if inst.Handle.Struct == nil {
		return nil
	}
	for i, f := range inst.Handle.Struct.Fields {
		if f.Name == name {
			return inst.Fields[i]
		}
	}
	return nil
}

// FieldDescriptor returns the types.Field describing the named field.
func (inst *Instance) FieldDescriptor(name string) *types.Field {
	return inst.Handle.FieldByName(name)
}

// EnumInstance is the runtime representation of an enum value: an active
// discriminant plus that variant's field instance, per the fixed
// discriminant-at-offset-0 convention (SPEC_FULL.md §3, Open Question b).
type EnumInstance struct {
	Handle       *types.Handle
	Discriminant byte
	Payload      *Instance
}

// NewEnumInstance builds an EnumInstance for the variant identified by
// discriminant. types.EnumVariant carries no name (Intern keeps only a
// variant's discriminant and fields), so construction here proceeds by
// discriminant.
func NewEnumInstance(t *types.Handle, discriminant byte) *EnumInstance {
	variant := t.Enum.VariantByDiscriminant(discriminant)
	if variant == nil {
		return &EnumInstance{Handle: t, Discriminant: discriminant}
	}
	fields := make([]*Slot, len(variant.Fields))
	for i := range fields {
		fields[i] = &Slot{}
	}
	return &EnumInstance{
		Handle:       t,
		Discriminant: discriminant,
		Payload:      &Instance{Handle: t, Fields: fields},
	}
}
