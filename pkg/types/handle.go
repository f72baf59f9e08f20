// Package types implements the Type & Layout Core (component A): primitive
// layout descriptors, type hashes, and finalizer function pointers, interned
// per type.
//
// ankhavm is a safe, allocation-based reimplementation, not a bytecode-level
// C-ABI one: a struct's "bytes" are a slice of field slots rather than a
// raw memory region addressed with unsafe.Pointer arithmetic. Field.Offset
// is still computed once at Intern time (see layout.go) as the nominal byte
// offset, but field access does not read it: BorrowField/
// BorrowUnmanagedField in pkg/value find a field's slot by name, at the
// field's position in Struct.Fields.
package types

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// Hash is an opaque 64-bit type identity. Two types compare equal iff their
// hashes compare equal.
type Hash uint64

// HashName computes the stable FNV-1a hash of a fully qualified type name
// ("module::name", or bare "name" for types with no module). This mirrors
// the teacher's preference for cheap, deterministic arithmetic identity
// (see pkg/ast/value.go's Tag enum) over a cryptographic hash: type names
// are not adversarial input, so FNV-1a's collision resistance is plenty.
func HashName(qualifiedName string) Hash {
	h := fnv.New64a()
	_, _ = h.Write([]byte(qualifiedName))
	return Hash(h.Sum64())
}

// Finalizer drops an initialized instance of a type. For primitives this is
// typically nil (no resources to release); for struct/enum/native types it
// recursively finalizes owned fields and releases any native resource.
type Finalizer func(payload any)

// Field describes one struct field: name, visibility, declared kind filter
// it was defined with (managed vs raw), its type, and its byte offset from
// the struct's conceptual base (see layout.go).
type Field struct {
	Name       string
	Visibility Visibility
	Managed    bool // true if the field holds one of the five managed kinds
	Type       *Handle
	Offset     uintptr
}

// EnumVariant is a struct shape paired with a discriminant byte.
type EnumVariant struct {
	*Struct
	Discriminant byte
}

// Struct is the shape of a struct type: ordered fields plus the layout they
// imply.
type Struct struct {
	Fields []*Field
	Layout Layout
}

// Enum is the shape of an enum type: its variants, keyed by discriminant.
type Enum struct {
	Variants []*EnumVariant
	Layout   Layout
}

func (e *Enum) VariantByDiscriminant(d byte) *EnumVariant {
	for _, v := range e.Variants {
		if v.Discriminant == d {
			return v
		}
	}
	return nil
}

// Handle is an interned, globally addressable type descriptor: layout,
// optional finalizer, can-initialize/is-copy bits, name/module/visibility,
// and (for structs/enums) shape.
type Handle struct {
	Hash          Hash
	Name          string
	ModuleName    string
	Visibility    Visibility
	Layout        Layout
	Finalizer     Finalizer
	CanInitialize bool
	IsCopy        bool

	Struct *Struct // non-nil iff this is a struct type
	Enum   *Enum   // non-nil iff this is an enum type
}

// QualifiedName returns "module::name", or bare "name" when ModuleName is
// empty.
func (h *Handle) QualifiedName() string {
	if h.ModuleName == "" {
		return h.Name
	}
	return h.ModuleName + "::" + h.Name
}

// Equal compares handles by hash, per spec.md §3 ("two types compare equal
// iff their hashes compare equal").
func (h *Handle) Equal(other *Handle) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.Hash == other.Hash
}

// IsStruct/IsEnum/IsPrimitive classify a handle's shape.
func (h *Handle) IsStruct() bool    { return h.Struct != nil }
func (h *Handle) IsEnum() bool      { return h.Enum != nil }
func (h *Handle) IsPrimitive() bool { return h.Struct == nil && h.Enum == nil }

// FieldByName looks up a struct field by name. It applies no visibility
// check; callers such as BorrowField compare the returned field's
// Visibility against their own filter.
func (h *Handle) FieldByName(name string) *Field {
	if h.Struct == nil {
		return nil
	}
	for _, f := range h.Struct.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Descriptor is the not-yet-interned description of a type, as supplied by
// a host or by compile_package lowering an ast.Struct/ast.Enum.
type Descriptor struct {
	Name          string
	ModuleName    string
	Visibility    Visibility
	Finalizer     Finalizer
	CanInitialize bool
	IsCopy        bool

	// Exactly one of these may be set; neither set means "primitive".
	StructFields []*FieldDescriptor
	EnumVariants []*VariantDescriptor

	// For primitives/native types the host supplies the layout directly.
	PrimitiveLayout *Layout
	// ExplicitHash lets a host pin a type's hash (e.g. primitives, whose
	// hash must be stable across processes without relying on name hashing
	// alone).
	ExplicitHash *Hash
}

type FieldDescriptor struct {
	Name       string
	Visibility Visibility
	Managed    bool
	Type       *Handle
}

type VariantDescriptor struct {
	Name         string
	Discriminant byte
	Fields       []*FieldDescriptor
}

// Registry is the intern store of type Handles, hash-map backed and guarded
// by a mutex in the teacher's pkg/eval global-table style (macroTable +
// macroMutex).
type Registry struct {
	mu      sync.RWMutex
	byHash  map[Hash]*Handle
	byQName map[string]*Handle
}

// NewRegistry creates an empty type intern store.
func NewRegistry() *Registry {
	return &Registry{
		byHash:  make(map[Hash]*Handle),
		byQName: make(map[string]*Handle),
	}
}

// Intern registers a type descriptor, computing field offsets and struct/
// enum layout, and returns its (new or previously interned) Handle.
// Interning the same qualified name twice returns the existing Handle
// unchanged — intern is idempotent, matching spec.md's "interned per type".
func (r *Registry) Intern(d Descriptor) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	qname := d.Name
	if d.ModuleName != "" {
		qname = d.ModuleName + "::" + d.Name
	}
	if existing, ok := r.byQName[qname]; ok {
		return existing, nil
	}

	h := &Handle{
		Name:          d.Name,
		ModuleName:    d.ModuleName,
		Visibility:    d.Visibility,
		Finalizer:     d.Finalizer,
		CanInitialize: d.CanInitialize,
		IsCopy:        d.IsCopy,
	}
	if d.ExplicitHash != nil {
		h.Hash = *d.ExplicitHash
	} else {
		h.Hash = HashName(qname)
	}

	switch {
	case d.StructFields != nil:
		fields := make([]*Field, len(d.StructFields))
		for i, fd := range d.StructFields {
			fields[i] = &Field{Name: fd.Name, Visibility: fd.Visibility, Managed: fd.Managed, Type: fd.Type}
		}
		s := &Struct{Fields: fields}
		s.Layout = computeFieldOffsets(fields)
		h.Struct = s
		h.Layout = s.Layout
	case d.EnumVariants != nil:
		variants := make([]*EnumVariant, len(d.EnumVariants))
		var shapes []*Struct
		for i, vd := range d.EnumVariants {
			fields := make([]*Field, len(vd.Fields))
			for j, fd := range vd.Fields {
				fields[j] = &Field{Name: fd.Name, Visibility: fd.Visibility, Managed: fd.Managed, Type: fd.Type}
			}
			s := &Struct{Fields: fields}
			s.Layout = computeFieldOffsets(fields)
			variants[i] = &EnumVariant{Struct: s, Discriminant: vd.Discriminant}
			shapes = append(shapes, s)
		}
		e := &Enum{Variants: variants}
		e.Layout = EnumLayout(shapes)
		h.Enum = e
		h.Layout = e.Layout
	case d.PrimitiveLayout != nil:
		h.Layout = *d.PrimitiveLayout
	default:
		return nil, fmt.Errorf("types: descriptor %q has no shape and no primitive layout", qname)
	}

	r.byHash[h.Hash] = h
	r.byQName[qname] = h
	return h, nil
}

// ByHash looks up a previously interned Handle by its hash.
func (r *Registry) ByHash(hash Hash) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byHash[hash]
	return h, ok
}

// ByQualifiedName looks up a previously interned Handle by "module::name"
// (or bare "name").
func (r *Registry) ByQualifiedName(qname string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byQName[qname]
	return h, ok
}

// All returns every interned Handle, for query predicates (§4.3) that scan
// by partial match rather than exact name/hash.
func (r *Registry) All() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.byHash))
	for _, h := range r.byHash {
		out = append(out, h)
	}
	return out
}
