// Package vm implements the Operation Evaluator (component E): the
// dispatch table that walks a compiled Script against a
// *vmcontext.Context, plus the Function/method wiring that installs a
// ScriptRunner into a *registry.Registry so Scripted functions are
// callable through the same registry.Invoke path as Native ones.
//
// Grounded on the teacher's pkg/codegen package-per-concern split
// (codegen.go, dps_codegen.go, region_codegen.go, exception.go each own one
// concern — mirrored here as expr_ops.go/script_ops.go/evaluator.go/
// dispatch.go) and on original_source's script.rs, the largest file in the
// crate this spec was distilled from and the actual operation-evaluation
// engine it documents.
package vm

import (
	"github.com/ankha-lang/ankhavm/pkg/ast"
)

// Script is the flat, already-resolved form compile_package produces from
// an ast.Function body: ast.Operation trees exactly as compiled, since
// ast.Operation's queries (registry.TypeQuery/FunctionQuery) are already the
// exact shape the evaluator consumes. Registers stay addressed by name at
// this layer — each invocation's frame resolves names to numeric
// vmcontext.RegisterToken values against its own Context, so nested and
// recursive calls never collide over a shared index space.
type Script struct {
	Name          string
	ModuleName    string
	InputNames    []string // register names the compiler pre-binds inputs to
	OutputCount   int
	RegisterSlots int // not set by compile_package; registers are resolved by name at run time
	Body          []ast.Operation
}
