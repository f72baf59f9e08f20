package vm

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/ast"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

func (f *frame) evalLiteral(o ast.OpLiteral) error {
	owned, err := buildLiteral(f.reg.Types, o.Value)
	if err != nil {
		return err
	}
	f.ctx.PushValue(owned)
	return nil
}

func (f *frame) evalStackDrop() error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	return value.Drop(v)
}

func (f *frame) evalStackUnwrapBoolean() error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	payload, err := rawPayload(v)
	if err != nil {
		return err
	}
	b, err := asBool(payload)
	if err != nil {
		return err
	}
	if err := value.Drop(v); err != nil {
		return err
	}
	f.ctx.SetRawBool(b)
	return nil
}

// evalBorrow/evalBorrowMut/evalLazy peek the top value and push the
// derived handle above it, per spec.md §4.5: "push the derived handle
// above the original (original remains accessible underneath)".
func (f *frame) evalBorrow() error {
	top, err := f.ctx.PeekValue()
	if err != nil {
		return err
	}
	ref, err := value.Borrow(top)
	if err != nil {
		return err
	}
	f.ctx.PushValue(ref)
	return nil
}

func (f *frame) evalBorrowMut() error {
	top, err := f.ctx.PeekValue()
	if err != nil {
		return err
	}
	refMut, err := value.BorrowMut(top)
	if err != nil {
		return err
	}
	f.ctx.PushValue(refMut)
	return nil
}

func (f *frame) evalLazy() error {
	top, err := f.ctx.PeekValue()
	if err != nil {
		return err
	}
	lazy, err := value.MakeLazy(top)
	if err != nil {
		return err
	}
	f.ctx.PushValue(lazy)
	return nil
}

func (f *frame) evalBorrowField(o ast.OpBorrowField) error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	ref, err := value.BorrowField(v, o.FieldName, o.KindFilter, o.VisibilityFilter)
	if err != nil {
		return err
	}
	f.ctx.PushValue(ref)
	return nil
}

func (f *frame) evalBorrowMutField(o ast.OpBorrowMutField) error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	refMut, err := value.BorrowMutField(v, o.FieldName, o.KindFilter, o.VisibilityFilter)
	if err != nil {
		return err
	}
	f.ctx.PushValue(refMut)
	return nil
}

func (f *frame) evalBorrowUnmanagedField(o ast.OpBorrowUnmanagedField) error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	ref, err := value.BorrowUnmanagedField(v, o.FieldName, o.VisibilityFilter)
	if err != nil {
		return err
	}
	f.ctx.PushValue(ref)
	return nil
}

func (f *frame) evalBorrowMutUnmanagedField(o ast.OpBorrowMutUnmanagedField) error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	refMut, err := value.BorrowMutUnmanagedField(v, o.FieldName, o.VisibilityFilter)
	if err != nil {
		return err
	}
	f.ctx.PushValue(refMut)
	return nil
}

func (f *frame) evalCopyFrom() error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	if _, ok := v.(*value.Owned); ok {
		return ankhaerr.New(ankhaerr.KindMismatch, "copy_from", "source must be Ref, RefMut, Lazy, or Box, not Owned")
	}
	clone, err := value.CopyFrom(v)
	if err != nil {
		return err
	}
	if err := value.Drop(v); err != nil {
		return err
	}
	f.ctx.PushValue(clone)
	return nil
}

func (f *frame) evalMoveInto() error {
	src, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	srcOwned, ok := src.(*value.Owned)
	if !ok {
		return ankhaerr.New(ankhaerr.KindMismatch, "move_into", "source must be Owned, got %s", src.Kind())
	}
	dst, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	if err := value.MoveInto(dst, srcOwned); err != nil {
		return err
	}
	f.ctx.PushValue(dst)
	return nil
}

func (f *frame) evalSwapIn() error {
	src, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	srcOwned, ok := src.(*value.Owned)
	if !ok {
		return ankhaerr.New(ankhaerr.KindMismatch, "swap_in", "source must be Owned, got %s", src.Kind())
	}
	dst, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	if err := value.SwapIn(dst, srcOwned); err != nil {
		return err
	}
	f.ctx.PushValue(dst)
	f.ctx.PushValue(srcOwned)
	return nil
}

func (f *frame) evalDestructure(o ast.OpDestructure) error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	owned, ok := v.(*value.Owned)
	if !ok {
		return ankhaerr.New(ankhaerr.KindMismatch, "destructure", "requires an Owned struct, got %s", v.Kind())
	}
	inst, ok := owned.Slot.Data.(*value.Instance)
	if !ok {
		return ankhaerr.New(ankhaerr.ShapeMismatch, "destructure", "type %q is not a struct", owned.Type.QualifiedName())
	}
	// push in reverse declaration order so pops yield declaration order
	for i := len(o.Fields) - 1; i >= 0; i-- {
		name := o.Fields[i]
		fd := owned.Type.FieldByName(name)
		if fd == nil {
			return ankhaerr.New(ankhaerr.ShapeMismatch, "destructure", "no field %q on type %q", name, owned.Type.QualifiedName())
		}
		slot := inst.FieldSlot(name)
		if fd.Managed {
			fieldVal, ok := slot.Data.(value.Value)
			if !ok {
				return ankhaerr.New(ankhaerr.InitializationError, "destructure", "field %q has not been initialized", name)
			}
			slot.Data = nil
			f.ctx.PushValue(fieldVal)
		} else {
			raw := slot.Data
			slot.Data = value.ZeroValue(primitiveNameOf(fd.Type))
			f.ctx.PushValue(value.NewOwned(fd.Type, raw))
		}
	}
	return value.Drop(owned)
}

func (f *frame) evalStructure(o ast.OpStructure) error {
	h, err := f.reg.ResolveType(o.TypeQuery)
	if err != nil {
		return err
	}
	if !h.IsStruct() {
		return ankhaerr.New(ankhaerr.ShapeMismatch, "structure", "type %q is not a struct", h.QualifiedName())
	}
	inst := value.NewInstance(h)
	for i := len(o.Fields) - 1; i >= 0; i-- {
		name := o.Fields[i]
		fd := h.FieldByName(name)
		if fd == nil {
			return ankhaerr.New(ankhaerr.ShapeMismatch, "structure", "no field %q on type %q", name, h.QualifiedName())
		}
		v, err := f.ctx.PopValue()
		if err != nil {
			return err
		}
		slot := inst.FieldSlot(name)
		if fd.Managed {
			slot.Data = v
		} else {
			owned, ok := v.(*value.Owned)
			if !ok {
				return ankhaerr.New(ankhaerr.KindMismatch, "structure", "unmanaged field %q requires an Owned initializer", name)
			}
			slot.Data = value.ConsumeRaw(owned)
		}
	}
	if !h.CanInitialize {
		if err := requireAllFieldsSet(h, o.Fields); err != nil {
			return err
		}
	} else {
		fillDefaults(h, inst, o.Fields)
	}
	f.ctx.PushValue(value.NewOwned(h, inst))
	return nil
}

func (f *frame) evalBox() error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	owned, ok := v.(*value.Owned)
	if !ok {
		return ankhaerr.New(ankhaerr.KindMismatch, "box", "requires an Owned value, got %s", v.Kind())
	}
	box, err := value.NewBox(owned)
	if err != nil {
		return err
	}
	f.ctx.PushValue(box)
	return nil
}

func (f *frame) evalManage() error {
	raw, err := f.ctx.PopRaw()
	if err != nil {
		return err
	}
	f.ctx.PushValue(value.Manage(raw))
	return nil
}

func (f *frame) evalUnmanage() error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	owned, ok := v.(*value.Owned)
	if !ok {
		return ankhaerr.New(ankhaerr.KindMismatch, "unmanage", "requires an Owned value, got %s", v.Kind())
	}
	f.ctx.PushRaw(value.Unmanage(owned))
	return nil
}

func (f *frame) evalCopy() error {
	top, err := f.ctx.PeekValue()
	if err != nil {
		return err
	}
	owned, ok := top.(*value.Owned)
	if !ok {
		return ankhaerr.New(ankhaerr.KindMismatch, "copy", "requires an Owned value, got %s", top.Kind())
	}
	clone, err := value.CopyFrom(owned)
	if err != nil {
		return err
	}
	f.ctx.PushValue(clone)
	return nil
}

func (f *frame) evalSwap() error {
	a, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	b, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	f.ctx.PushValue(a)
	f.ctx.PushValue(b)
	return nil
}

func (f *frame) evalDuplicateBox() error {
	top, err := f.ctx.PeekValue()
	if err != nil {
		return err
	}
	box, ok := top.(*value.Box)
	if !ok {
		return ankhaerr.New(ankhaerr.KindMismatch, "duplicate_box", "requires a Box, got %s", top.Kind())
	}
	f.ctx.PushValue(box.Clone())
	return nil
}

func (f *frame) evalEnsureStackType(o ast.OpEnsureStackType) error {
	top, err := f.ctx.PeekValue()
	if err != nil {
		return err
	}
	if !o.Query.Matches(top.TypeHandle()) {
		return ankhaerr.New(ankhaerr.TypeMismatch, "ensure_stack_type", "top of stack does not match type query")
	}
	return nil
}

func (f *frame) evalEnsureRegisterType(o ast.OpEnsureRegisterType) error {
	tok, err := f.register(o.Name)
	if err != nil {
		return err
	}
	if err := f.ctx.PushFromRegister(tok); err != nil {
		return err
	}
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	if !o.Query.Matches(v.TypeHandle()) {
		return ankhaerr.New(ankhaerr.TypeMismatch, "ensure_register_type", "register %q does not match type query", o.Name)
	}
	return nil
}

func (f *frame) evalEnsureStackKind(o ast.OpEnsureStackKind) error {
	top, err := f.ctx.PeekValue()
	if err != nil {
		return err
	}
	if top.Kind() != o.Kind {
		return ankhaerr.New(ankhaerr.KindMismatch, "ensure_stack_kind", "top of stack has kind %s, expected %s", top.Kind(), o.Kind)
	}
	return nil
}

func (f *frame) evalEnsureRegisterKind(o ast.OpEnsureRegisterKind) error {
	tok, err := f.register(o.Name)
	if err != nil {
		return err
	}
	if err := f.ctx.PushFromRegister(tok); err != nil {
		return err
	}
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	if v.Kind() != o.Kind {
		return ankhaerr.New(ankhaerr.KindMismatch, "ensure_register_kind", "register %q has kind %s, expected %s", o.Name, v.Kind(), o.Kind)
	}
	return nil
}

func (f *frame) evalCallMethod(o ast.OpCallMethod) error {
	top, err := f.ctx.PeekValue()
	if err != nil {
		return err
	}
	fn, err := f.reg.ResolveFunction(o.Query.WithOwnerTypeHash(top.TypeHandle().Hash))
	if err != nil {
		return err
	}
	return f.invokeFunction(fn)
}

func (f *frame) evalCallIndirect() error {
	v, err := f.ctx.PopValue()
	if err != nil {
		return err
	}
	payload, err := rawPayload(v)
	if err != nil {
		return err
	}
	fn, ok := payload.(*FunctionHandle)
	if !ok {
		return ankhaerr.New(ankhaerr.KindMismatch, "call_indirect", "value is not a callable function handle")
	}
	return f.invokeFunction(fn.Function)
}
