package ast

// Module groups structs, enums, and functions under one namespace
// (spec.md §6: "A Module has a name, structs, enums, functions").
type Module struct {
	Name      string
	Structs   []Struct
	Enums     []Enum
	Functions []Function
}

// File is one parsed source unit: the paths of other files it depends on,
// plus the modules it defines (spec.md §6: "A File contains
// dependencies: list<string> ... and modules: list<Module>").
type File struct {
	Path         string
	Dependencies []string
	Modules      []Module
}
