package value

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/types"
)

// instanceOf extracts the *Instance a referable value's slot currently
// holds, failing ShapeMismatch if the referent is not a struct instance
// (e.g. a primitive or an enum payload accessed the wrong way).
func instanceOf(v Value) (*Instance, error) {
	_, slot, t, err := sourceAndSlot(v)
	if err != nil {
		return nil, err
	}
	inst, ok := slot.Data.(*Instance)
	if !ok {
		return nil, ankhaerr.New(ankhaerr.ShapeMismatch, "field", "type %q is not a struct instance", safeName(t))
	}
	return inst, nil
}

func fieldDescriptor(inst *Instance, name string) (*types.Field, error) {
	fd := inst.FieldDescriptor(name)
	if fd == nil {
		return nil, ankhaerr.New(ankhaerr.ShapeMismatch, "field", "no field %q on type %q", name, safeName(inst.Handle))
	}
	return fd, nil
}

func matchesFilters(kind Kind, vis *types.Field, kindFilter *Kind, visibilityFilter *types.Visibility) error {
	if kindFilter != nil && *kindFilter != kind {
		return ankhaerr.New(ankhaerr.KindMismatch, "field", "field kind %s does not match filter %s", kind, *kindFilter)
	}
	if visibilityFilter != nil && *visibilityFilter != vis.Visibility {
		return ankhaerr.New(ankhaerr.ShapeMismatch, "field", "field %q visibility does not match filter", vis.Name)
	}
	return nil
}

// BorrowField pops semantics: the caller has already popped v (a non-Owned
// referable) off the stack; this locates fieldName in v's struct instance,
// requires it to hold a managed Value, and returns a shared borrow into
// that nested value — spec.md §4.5's BorrowField.
func BorrowField(v Value, fieldName string, kindFilter *Kind, visibilityFilter *types.Visibility) (*Ref, error) {
	if _, ok := v.(*Owned); ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "borrow_field", "BorrowField requires a non-Owned referable")
	}
	inst, err := instanceOf(v)
	if err != nil {
		return nil, err
	}
	fd, err := fieldDescriptor(inst, fieldName)
	if err != nil {
		return nil, err
	}
	if !fd.Managed {
		return nil, ankhaerr.New(ankhaerr.ShapeMismatch, "borrow_field", "field %q is unmanaged; use BorrowUnmanagedField", fieldName)
	}
	slot := inst.FieldSlot(fieldName)
	fieldVal, ok := slot.Data.(Value)
	if !ok {
		return nil, ankhaerr.New(ankhaerr.InitializationError, "borrow_field", "field %q has not been initialized", fieldName)
	}
	if err := matchesFilters(fieldVal.Kind(), fd, kindFilter, visibilityFilter); err != nil {
		return nil, err
	}
	return Borrow(fieldVal)
}

// BorrowMutField is BorrowField's exclusive counterpart; illegal when v is
// a Ref (spec.md §4.5: "same but exclusive; illegal on Ref").
func BorrowMutField(v Value, fieldName string, kindFilter *Kind, visibilityFilter *types.Visibility) (*RefMut, error) {
	if _, ok := v.(*Ref); ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "borrow_mut_field", "cannot BorrowMutField through a Ref")
	}
	if _, ok := v.(*Owned); ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "borrow_mut_field", "BorrowMutField requires a non-Owned referable")
	}
	inst, err := instanceOf(v)
	if err != nil {
		return nil, err
	}
	fd, err := fieldDescriptor(inst, fieldName)
	if err != nil {
		return nil, err
	}
	if !fd.Managed {
		return nil, ankhaerr.New(ankhaerr.ShapeMismatch, "borrow_mut_field", "field %q is unmanaged; use BorrowMutUnmanagedField", fieldName)
	}
	slot := inst.FieldSlot(fieldName)
	fieldVal, ok := slot.Data.(Value)
	if !ok {
		return nil, ankhaerr.New(ankhaerr.InitializationError, "borrow_mut_field", "field %q has not been initialized", fieldName)
	}
	if err := matchesFilters(fieldVal.Kind(), fd, kindFilter, visibilityFilter); err != nil {
		return nil, err
	}
	return BorrowMut(fieldVal)
}

// BorrowUnmanagedField fabricates a shared borrow into a raw (not managed)
// field by binding to the enclosing value's lifetime token/cell, per
// spec.md §9's "Raw field access": "synthesize a fresh Ref bound to the
// enclosing token" for unmanaged fields.
func BorrowUnmanagedField(v Value, fieldName string, visibilityFilter *types.Visibility) (*Ref, error) {
	if _, ok := v.(*Owned); ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "borrow_unmanaged_field", "BorrowUnmanagedField requires a non-Owned referable")
	}
	src, _, _, err := sourceAndSlot(v)
	if err != nil {
		return nil, err
	}
	inst, err := instanceOf(v)
	if err != nil {
		return nil, err
	}
	fd, err := fieldDescriptor(inst, fieldName)
	if err != nil {
		return nil, err
	}
	if fd.Managed {
		return nil, ankhaerr.New(ankhaerr.ShapeMismatch, "borrow_unmanaged_field", "field %q is managed; use BorrowField", fieldName)
	}
	if visibilityFilter != nil && *visibilityFilter != fd.Visibility {
		return nil, ankhaerr.New(ankhaerr.ShapeMismatch, "borrow_unmanaged_field", "field %q visibility does not match filter", fieldName)
	}
	if !src.alive() {
		return nil, ankhaerr.New(ankhaerr.DeadToken, "borrow_unmanaged_field", "enclosing value is dead")
	}
	if err := src.borrowShared(); err != nil {
		return nil, err
	}
	return &Ref{Type: fd.Type, Src: src, Slot: inst.FieldSlot(fieldName)}, nil
}

// BorrowMutUnmanagedField is BorrowUnmanagedField's exclusive counterpart.
func BorrowMutUnmanagedField(v Value, fieldName string, visibilityFilter *types.Visibility) (*RefMut, error) {
	if _, ok := v.(*Ref); ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "borrow_mut_unmanaged_field", "cannot BorrowMutUnmanagedField through a Ref")
	}
	if _, ok := v.(*Owned); ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "borrow_mut_unmanaged_field", "BorrowMutUnmanagedField requires a non-Owned referable")
	}
	src, _, _, err := sourceAndSlot(v)
	if err != nil {
		return nil, err
	}
	inst, err := instanceOf(v)
	if err != nil {
		return nil, err
	}
	fd, err := fieldDescriptor(inst, fieldName)
	if err != nil {
		return nil, err
	}
	if fd.Managed {
		return nil, ankhaerr.New(ankhaerr.ShapeMismatch, "borrow_mut_unmanaged_field", "field %q is managed; use BorrowMutField", fieldName)
	}
	if visibilityFilter != nil && *visibilityFilter != fd.Visibility {
		return nil, ankhaerr.New(ankhaerr.ShapeMismatch, "borrow_mut_unmanaged_field", "field %q visibility does not match filter", fieldName)
	}
	if !src.alive() {
		return nil, ankhaerr.New(ankhaerr.DeadToken, "borrow_mut_unmanaged_field", "enclosing value is dead")
	}
	if err := src.borrowExclusive(); err != nil {
		return nil, err
	}
	return &RefMut{Type: fd.Type, Src: src, Slot: inst.FieldSlot(fieldName)}, nil
}
