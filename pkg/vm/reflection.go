package vm

import "github.com/ankha-lang/ankhavm/pkg/registry"

// FunctionHandle is the raw payload a reflection "Function" value wraps: a
// script-visible handle to a registered callable (spec.md's "Reflection
// facade" — "Type and Function values are script-visible handles to
// registry entries"). pkg/stdlib's reflection module stores one of these as
// the payload of an Owned native-typed value; CallIndirect pops such a
// value, extracts the handle via rawPayload, and invokes it.
type FunctionHandle struct {
	Function *registry.Function
}
