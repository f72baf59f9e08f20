package vm

import (
	"strings"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
	"github.com/ankha-lang/ankhavm/pkg/vmcontext"
)

// Install wires RunScript into reg as the registry's ScriptRunner, the
// inversion-of-control step that lets Scripted functions flow through the
// same registry.Invoke path as Native ones without registry importing vm.
// A host calls this once, right after install_core_types/install_library,
// before compiling or invoking any script.
func Install(reg *registry.Registry) {
	reg.SetScriptRunner(RunScript)
}

// RunScript implements registry.ScriptRunner for *Script bodies: it opens a
// fresh scope on ctx, pre-fills s.InputNames registers from args (in
// declared order), runs the body, and returns exactly s.OutputCount values
// popped off the stack, in declared order — testable property 2 (spec.md
// §8: "at function return, the stack contains exactly the declared output
// count of the called function, in declared order").
//
// ctx arrives as the registry.Context interface pkg/registry defines to
// avoid an import cycle; every Context in this module is a
// *vmcontext.Context (built by vmcontext.New or Fork), so the type
// assertion back to *vmcontext.Context below fails only for a foreign
// implementation of registry.Context.
func RunScript(ctx registry.Context, reg *registry.Registry, body any, args []value.Value) ([]value.Value, error) {
	s, ok := body.(*Script)
	if !ok {
		return nil, ankhaerr.New(ankhaerr.Internal, "run_script", "function body is not a *vm.Script (%T)", body)
	}
	vc, ok := ctx.(*vmcontext.Context)
	if !ok {
		return nil, ankhaerr.New(ankhaerr.Internal, "run_script", "context is not a *vmcontext.Context (%T)", ctx)
	}
	if len(args) != len(s.InputNames) {
		return nil, ankhaerr.New(ankhaerr.ShapeMismatch, "run_script",
			"%s::%s expects %d argument(s), got %d", s.ModuleName, s.Name, len(s.InputNames), len(args))
	}

	f := newFrame(vc, reg)
	if err := vc.PushScope(false); err != nil {
		return nil, err
	}
	depth := vc.ScopeDepth()

	for i, name := range s.InputNames {
		tok, err := vc.MakeRegister()
		if err != nil {
			return nil, err
		}
		f.names[name] = tok
		vc.PushValue(args[i])
		if err := vc.PopToRegister(tok); err != nil {
			return nil, err
		}
	}

	if err := f.evalSequence(s.Body); err != nil {
		return nil, err
	}

	outputs := make([]value.Value, s.OutputCount)
	for i := s.OutputCount - 1; i >= 0; i-- {
		v, err := vc.PopValue()
		if err != nil {
			return nil, err
		}
		outputs[i] = v
	}

	// The body may already have exited this scope early via a nested
	// OpPopScope (spec.md §4.5's "return from a function body early");
	// only close it here if it is still open.
	if vc.ScopeDepth() >= depth {
		if err := vc.PopScope(); err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

// Invoke is the host-side embedding entry point (spec.md §6:
// "invoke(context, registry, "module::function", args)"): it resolves
// qualifiedName ("module::name", or bare "name" for an unmoduled function)
// against reg and runs it to completion, Native or Scripted alike.
func Invoke(ctx *vmcontext.Context, reg *registry.Registry, qualifiedName string, args []value.Value) ([]value.Value, error) {
	name, module := qualifiedName, ""
	if idx := strings.LastIndex(qualifiedName, "::"); idx >= 0 {
		module, name = qualifiedName[:idx], qualifiedName[idx+2:]
	}
	q := registry.FunctionQuery{Name: &name}
	if module != "" {
		q.Module = &module
	}
	fn, err := reg.ResolveFunction(q)
	if err != nil {
		return nil, err
	}
	return reg.Invoke(ctx, fn, args)
}
