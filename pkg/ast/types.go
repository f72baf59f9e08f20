package ast

import "github.com/ankha-lang/ankhavm/pkg/types"

// TypeRef is how the AST names a type before compile_package resolves it
// against a live Registry: an exact (module, name) pair, never a wildcard
// query (wildcards belong to runtime Structure/EnsureStackType queries, not
// to a field or parameter declaration).
type TypeRef struct {
	Module string
	Name   string
}

// Field is one struct/enum-variant field: name, visibility, declared type,
// and whether the field holds a managed value (Owned/Ref/RefMut/Lazy/Box)
// or a raw unmanaged payload.
type Field struct {
	Name       string
	Visibility types.Visibility
	Type       TypeRef
	Managed    bool
}

// Struct is a named, visibility-scoped, ordered field list with optional
// metadata (spec.md §6: "A Struct has name, visibility, optional metadata
// tree, and ordered fields").
type Struct struct {
	Name       string
	Visibility types.Visibility
	Meta       *Meta
	Fields     []Field
}

// EnumVariant is one variant of an Enum: a struct shape plus an optional
// explicit discriminant (nil lets the compiler assign one in declaration
// order, 0-based).
type EnumVariant struct {
	Struct        Struct
	Discriminant  *byte
}

// Enum is a tagged union of variant struct shapes.
type Enum struct {
	Name       string
	Visibility types.Visibility
	Meta       *Meta
	Variants   []EnumVariant
}

// Param is one typed input or output parameter of a Function.
type Param struct {
	Name    string
	Type    TypeRef
	Managed bool
}

// Function is a named, optionally method-owning, typed operation body.
type Function struct {
	Name        string
	OwnerType   *TypeRef // non-nil for a method
	Visibility  types.Visibility
	Meta        *Meta
	Inputs      []Param
	Outputs     []Param
	Body        []Operation
}
