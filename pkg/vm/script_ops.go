package vm

import (
	"github.com/ankha-lang/ankhavm/pkg/ast"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

func (f *frame) evalGroup(o ast.OpGroup) error {
	return f.evalSequence(o.Items)
}

// evalGroupReversed evaluates items back to front — "the reverse form is
// how the source arranges call-with-arguments composition" (spec.md §4.5):
// the last-listed argument expression runs first, so its result sits
// deepest, and CallFunction's declared-order pop sees arguments in the
// order they were written.
func (f *frame) evalGroupReversed(o ast.OpGroupReversed) error {
	for i := len(o.Items) - 1; i >= 0; i-- {
		if err := f.eval(o.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *frame) evalMakeRegister(o ast.OpMakeRegister) error {
	tok, err := f.ctx.MakeRegister()
	if err != nil {
		return err
	}
	if o.Name != "" {
		f.names[o.Name] = tok
	}
	return nil
}

func (f *frame) evalDropRegister(o ast.OpDropRegister) error {
	tok, err := f.register(o.Name)
	if err != nil {
		return err
	}
	if err := f.ctx.DropRegister(tok); err != nil {
		return err
	}
	delete(f.names, o.Name)
	return nil
}

func (f *frame) evalPushFromRegister(o ast.OpPushFromRegister) error {
	tok, err := f.register(o.Name)
	if err != nil {
		return err
	}
	return f.ctx.PushFromRegister(tok)
}

func (f *frame) evalPopToRegister(o ast.OpPopToRegister) error {
	tok, err := f.register(o.Name)
	if err != nil {
		return err
	}
	return f.ctx.PopToRegister(tok)
}

func (f *frame) evalCallFunction(o ast.OpCallFunction) error {
	fn, err := f.reg.ResolveFunction(o.Query)
	if err != nil {
		return err
	}
	return f.invokeFunction(fn)
}

// invokeFunction pops len(fn.InputTypes) arguments off the stack in
// declared order (deepest-first, so the last pop yields the first declared
// input), invokes fn through the registry, and pushes its outputs in
// declared order. Shared by CallFunction, CallMethod, and CallIndirect.
func (f *frame) invokeFunction(fn *registry.Function) error {
	args := make([]value.Value, len(fn.InputTypes))
	for i := len(fn.InputTypes) - 1; i >= 0; i-- {
		v, err := f.ctx.PopValue()
		if err != nil {
			return err
		}
		args[i] = v
	}
	outputs, err := f.reg.Invoke(f.ctx, fn, args)
	if err != nil {
		return err
	}
	for _, out := range outputs {
		f.ctx.PushValue(out)
	}
	return nil
}

// evalPushScope enters a new scope, runs body, and exits it — unless body
// already exited it early via an explicit OpPopScope (spec.md §4.5: PopScope
// is "used to return from a function body early"), in which case the scope
// is already closed and a second close here would pop the wrong frame.
func (f *frame) evalPushScope(o ast.OpPushScope) error {
	if err := f.ctx.PushScope(false); err != nil {
		return err
	}
	depth := f.ctx.ScopeDepth()
	if err := f.evalSequence(o.Body); err != nil {
		return err
	}
	if f.ctx.ScopeDepth() < depth {
		return nil
	}
	return f.ctx.PopScope()
}

// evalLoopScope repeatedly runs body in a fresh sub-scope; each iteration
// pops a boolean (via the preceding StackUnwrapBoolean's raw-bool channel)
// at the end of the body — true continues (resetting the loop scope for the
// next pass via Context.LoopScope), false exits (Context.BranchScope, which
// closes the loop frame itself).
func (f *frame) evalLoopScope(o ast.OpLoopScope) error {
	if err := f.ctx.PushScope(true); err != nil {
		return err
	}
	for {
		if err := f.evalSequence(o.Body); err != nil {
			return err
		}
		cont, err := f.ctx.TakeRawBool()
		if err != nil {
			return err
		}
		if !cont {
			return f.ctx.BranchScope()
		}
		if err := f.ctx.LoopScope(); err != nil {
			return err
		}
	}
}

// evalBranchScope pops a boolean (via the raw-bool channel) and runs
// on_true or on_false; neither arm opens its own scope.
func (f *frame) evalBranchScope(o ast.OpBranchScope) error {
	cond, err := f.ctx.TakeRawBool()
	if err != nil {
		return err
	}
	if cond {
		return f.evalSequence(o.OnTrue)
	}
	if o.OnFalse != nil {
		return f.evalSequence(o.OnFalse)
	}
	return nil
}
