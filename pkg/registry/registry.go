// Package registry implements the Registry (component C): the intern store
// of types, structs/enums, and functions, with query predicates, field
// lookup, and method dispatch.
//
// Grounded on original_source's intuicio_core::registry::Registry
// (add_type/add_function, name+module qualified lookup — every library/*.rs
// install() in the crate this spec was distilled from calls exactly these
// two methods) and on the teacher's global-table style (pkg/eval/eval.go's
// macroTable + macroMutex).
package registry

import (
	"sync"

	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

// FunctionKind distinguishes a Native function (a Go function pointer) from
// a Scripted one (a sub-script run in a fresh scope), mirroring the
// teacher's HandlerWrapper split between a Native HandlerFn and a user
// Closure.
type FunctionKind int

const (
	Native FunctionKind = iota
	Scripted
)

// Context is the minimal surface a Native function needs from the
// evaluator's data stack: pop declared-order arguments, push declared-order
// outputs. pkg/vmcontext.Context satisfies this interface structurally —
// registry intentionally never imports pkg/vmcontext or pkg/vm, so that
// vm (which imports registry) cannot form an import cycle.
type Context interface {
	PushValue(v value.Value)
	PopValue() (value.Value, error)
}

// NativeFn is a native function pointer: it pops its declared arguments
// from ctx's stack in order and pushes its declared outputs, per spec.md
// §4.3.
type NativeFn func(ctx Context, reg *Registry) error

// ScriptRunner invokes a Scripted function's body (opaque to this package —
// concretely a *vm.Script) in a fresh scope with input registers pre-filled
// from args, returning the declared outputs. pkg/vm installs this via
// SetScriptRunner at startup; this indirection (inversion of control,
// rather than registry importing vm) is how Scripted functions are
// supported without a package cycle.
type ScriptRunner func(ctx Context, reg *Registry, body any, args []value.Value) ([]value.Value, error)

// Function is one registered callable: native or scripted, with its
// signature shape recorded for query matching and method-dispatch
// augmentation.
type Function struct {
	Name          string
	ModuleName    string
	Visibility    types.Visibility
	OwnerTypeHash *types.Hash // non-nil for a method
	InputTypes    []types.Hash
	OutputTypes   []types.Hash

	Kind FunctionKind
	Impl NativeFn
	Body any // opaque compiled script, valid when Kind == Scripted
}

// QualifiedName returns "module::name", or bare "name".
func (f *Function) QualifiedName() string {
	if f.ModuleName == "" {
		return f.Name
	}
	return f.ModuleName + "::" + f.Name
}

// Registry is the immutable-after-install, cheaply-clonable registry of
// types and functions (spec.md §5: "shared resources... Registry is
// immutable after installation"). Installation itself (Intern/AddFunction)
// is guarded by a mutex so setup code from multiple install_* calls can run
// concurrently if a host chooses to.
type Registry struct {
	Types *types.Registry

	mu        sync.RWMutex
	functions []*Function
	byQName   map[string]*Function
	runner    ScriptRunner
}

// New creates an empty registry with its own type intern store.
func New() *Registry {
	return &Registry{
		Types:   types.NewRegistry(),
		byQName: make(map[string]*Function),
	}
}

// SetScriptRunner installs the callback used to invoke Scripted function
// bodies. pkg/vm calls this once, after constructing its evaluator, before
// any Scripted function can be invoked.
func (r *Registry) SetScriptRunner(run ScriptRunner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runner = run
}

// AddFunction registers fn. Re-registering the same qualified name replaces
// the previous entry (hosts are expected to install_library/install_core
// exactly once, but this keeps re-installation idempotent rather than
// fatal).
func (r *Registry) AddFunction(fn *Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	qname := fn.QualifiedName()
	if existing, ok := r.byQName[qname]; ok {
		*existing = *fn
		return
	}
	r.functions = append(r.functions, fn)
	r.byQName[qname] = fn
}

// ResolveFunction selects the first function matching q, per spec.md
// §4.3's "selecting the first function whose signature the query
// validates". A RegistryMiss fatal abort is returned when nothing matches.
func (r *Registry) ResolveFunction(q FunctionQuery) (*Function, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fn := range r.functions {
		if q.Matches(fn) {
			return fn, nil
		}
	}
	return nil, ankhaerr.New(ankhaerr.RegistryMiss, "resolve_function", "no function matches query")
}

// ResolveType selects the first type matching q.
func (r *Registry) ResolveType(q TypeQuery) (*types.Handle, error) {
	for _, h := range r.Types.All() {
		if q.Matches(h) {
			return h, nil
		}
	}
	return nil, ankhaerr.New(ankhaerr.RegistryMiss, "resolve_type", "no type matches query")
}

// Invoke calls fn with the given popped-in-order arguments, returning its
// declared outputs. Native functions run directly; Scripted functions run
// through the installed ScriptRunner.
func (r *Registry) Invoke(ctx Context, fn *Function, args []value.Value) ([]value.Value, error) {
	switch fn.Kind {
	case Native:
		for _, a := range args {
			ctx.PushValue(a)
		}
		if err := fn.Impl(ctx, r); err != nil {
			return nil, err
		}
		outs := make([]value.Value, 0, len(fn.OutputTypes))
		for range fn.OutputTypes {
			v, err := ctx.PopValue()
			if err != nil {
				return nil, err
			}
			outs = append(outs, v)
		}
		// outputs were popped in reverse push order; restore declared order
		for i, j := 0, len(outs)-1; i < j; i, j = i+1, j-1 {
			outs[i], outs[j] = outs[j], outs[i]
		}
		return outs, nil
	case Scripted:
		r.mu.RLock()
		run := r.runner
		r.mu.RUnlock()
		if run == nil {
			return nil, ankhaerr.New(ankhaerr.Internal, "invoke", "no script runner installed")
		}
		return run(ctx, r, fn.Body, args)
	default:
		return nil, ankhaerr.New(ankhaerr.Internal, "invoke", "unknown function kind %d", fn.Kind)
	}
}

// DispatchMethod implements CallMethod (spec.md §4.3 / §4.5): it augments q
// with the top-of-stack value's type hash, then resolves and invokes.
func (r *Registry) DispatchMethod(ctx Context, top value.Value, q FunctionQuery, args []value.Value) ([]value.Value, error) {
	augmented := q.WithOwnerTypeHash(top.TypeHandle().Hash)
	fn, err := r.ResolveFunction(augmented)
	if err != nil {
		return nil, err
	}
	return r.Invoke(ctx, fn, args)
}
