// Package ast defines the external AST (component F's input boundary): the
// data-only shape a parser hands to compile_package. Nothing here runs —
// every type is a plain value type, mirroring the teacher's pkg/ast package
// (New*/Is* constructors, no behavior) and spec.md §6's "AST (parser
// output → VM input)".
package ast

// MetaKind tags which shape a Meta node takes.
type MetaKind int

const (
	MetaIdentifier MetaKind = iota
	MetaValue
	MetaArray
	MetaMap
)

// Meta is the open-ended metadata tree attached to any named entity
// (spec.md §6 "Metadata"): preserved verbatim by the core, never
// interpreted. Exactly one of the fields below is populated, selected by
// Kind.
type Meta struct {
	Kind MetaKind

	Identifier string      // MetaIdentifier
	Value      any         // MetaValue: bool | int64 | float64 | string
	Array      []Meta      // MetaArray
	Map        map[string]Meta // MetaMap
}

// NewMetaIdentifier builds an Identifier(string) metadata node.
func NewMetaIdentifier(name string) Meta { return Meta{Kind: MetaIdentifier, Identifier: name} }

// NewMetaValue builds a Value(Bool|Integer|Float|String) metadata node.
func NewMetaValue(v any) Meta { return Meta{Kind: MetaValue, Value: v} }

// NewMetaArray builds an Array(list<Meta>) metadata node.
func NewMetaArray(items []Meta) Meta { return Meta{Kind: MetaArray, Array: items} }

// NewMetaMap builds a Map(string -> Meta) metadata node.
func NewMetaMap(entries map[string]Meta) Meta { return Meta{Kind: MetaMap, Map: entries} }
