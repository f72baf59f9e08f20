// Package stdlib implements install_library (spec.md §6): the optional
// standard library modules a host wires in after install_core_types,
// mirroring original_source's crates/ankha/src/library/ one file per
// concern (array.rs, dictionary.rs, option.rs, event.rs, closure.rs,
// promise.rs, reflection.rs, channel.rs, thread.rs).
//
// Every module here follows the same shape: one or more native
// (non-struct, non-enum) types interned via registerNativeType, and a set
// of registry.Native functions operating on Go-side payloads stored inside
// an Owned's Slot.Data, exactly the way pkg/vm/vm_test.go's addI64Native
// fixture (and, upstream, every install() in original_source's library
// crate) operates on its inputs: pop declared arguments in reverse order,
// push declared outputs.
package stdlib

import (
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/types"
)

// moduleName namespaces every type/function this package registers, one
// per concern, matching original_source's module_name attributes.
const (
	arrayModule      = "array"
	dictionaryModule = "dictionary"
	optionModule     = "option"
	eventModule      = "event"
	closureModule    = "closure"
	promiseModule    = "promise"
	reflectionModule = "reflection"
	channelModule    = "channel"
	threadModule     = "thread"
)

// Install registers every stdlib module into reg. reg.Types must already
// carry the primitive types (install_core_types) since some native
// functions (e.g. array.size) return a primitive Owned directly.
func Install(reg *registry.Registry) error {
	for _, install := range []func(*registry.Registry) error{
		installArray,
		installDictionary,
		installOption,
		installEvent,
		installClosure,
		installPromise,
		installReflection,
		installChannel,
		installThread,
	} {
		if err := install(reg); err != nil {
			return err
		}
	}
	return nil
}

// registerNativeType interns an opaque native type: no struct/enum shape,
// a nominal zero-size layout (the real payload lives in Go's any, outside
// the spec's byte-offset field model), and finalizer run on Drop.
func registerNativeType(reg *registry.Registry, module, name string, finalizer types.Finalizer) (*types.Handle, error) {
	return reg.Types.Intern(types.Descriptor{
		Name:            name,
		ModuleName:      module,
		CanInitialize:   true,
		PrimitiveLayout: &types.Layout{Size: 0, Align: 1},
		Finalizer:       finalizer,
	})
}
