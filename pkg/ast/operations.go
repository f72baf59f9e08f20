package ast

import (
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/types"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

// Operation is the sealed interface every expression/script operation
// variant of spec.md §4.5 implements. compile_package and the VM's
// dispatch table both switch over this exhaustively, the same
// tagged-sum discipline spec.md §9 asks for at the value-kind layer.
type Operation interface {
	operation()
}

// Literal is the primitive payload carried by a Literal operation: exactly
// one of the fields below is meaningful, chosen by Primitive.
type Literal struct {
	Primitive value.PrimitiveName
	Bool      bool
	Int       int64
	Uint      uint64
	Float     float64
	Char      rune
	String    string
}

// --- Expression operations (leaf) ---

type OpLiteral struct{ Value Literal }

type OpStackDrop struct{}

type OpStackUnwrapBoolean struct{}

type OpBorrow struct{}
type OpBorrowMut struct{}
type OpLazy struct{}

type OpBorrowField struct {
	FieldName      string
	KindFilter     *value.Kind
	VisibilityFilter *types.Visibility
}

type OpBorrowMutField struct {
	FieldName      string
	KindFilter     *value.Kind
	VisibilityFilter *types.Visibility
}

type OpBorrowUnmanagedField struct {
	FieldName        string
	VisibilityFilter *types.Visibility
}

type OpBorrowMutUnmanagedField struct {
	FieldName        string
	VisibilityFilter *types.Visibility
}

type OpCopyFrom struct{}

type OpMoveInto struct{}

type OpSwapIn struct{}

// OpDestructure consumes an Owned struct and pushes each named field's
// managed contents, in reverse declaration order.
type OpDestructure struct {
	Fields []string
}

// OpStructure allocates a new Owned of the queried type and pops/writes
// the listed fields, in reverse field order.
type OpStructure struct {
	TypeQuery registry.TypeQuery
	Fields    []string
}

type OpBox struct{}

type OpManage struct{}
type OpUnmanage struct{}

type OpCopy struct{}
type OpSwap struct{}
type OpDuplicateBox struct{}

type OpEnsureStackType struct{ Query registry.TypeQuery }
type OpEnsureRegisterType struct {
	Query registry.TypeQuery
	Name  string
}
type OpEnsureStackKind struct{ Kind value.Kind }
type OpEnsureRegisterKind struct {
	Kind value.Kind
	Name string
}

type OpCallMethod struct{ Query registry.FunctionQuery }

type OpCallIndirect struct{}

func (OpLiteral) operation()                  {}
func (OpStackDrop) operation()                 {}
func (OpStackUnwrapBoolean) operation()        {}
func (OpBorrow) operation()                    {}
func (OpBorrowMut) operation()                 {}
func (OpLazy) operation()                      {}
func (OpBorrowField) operation()               {}
func (OpBorrowMutField) operation()            {}
func (OpBorrowUnmanagedField) operation()      {}
func (OpBorrowMutUnmanagedField) operation()   {}
func (OpCopyFrom) operation()                  {}
func (OpMoveInto) operation()                  {}
func (OpSwapIn) operation()                    {}
func (OpDestructure) operation()               {}
func (OpStructure) operation()                 {}
func (OpBox) operation()                       {}
func (OpManage) operation()                    {}
func (OpUnmanage) operation()                  {}
func (OpCopy) operation()                      {}
func (OpSwap) operation()                      {}
func (OpDuplicateBox) operation()              {}
func (OpEnsureStackType) operation()           {}
func (OpEnsureRegisterType) operation()        {}
func (OpEnsureStackKind) operation()           {}
func (OpEnsureRegisterKind) operation()        {}
func (OpCallMethod) operation()                {}
func (OpCallIndirect) operation()              {}

// --- Script operations ---

type OpExpression struct{ Expr Operation }

type OpGroup struct{ Items []Operation }
type OpGroupReversed struct{ Items []Operation }

type OpMakeRegister struct {
	Kind value.Kind
	Name string // "" if unnamed
}

// OpDropRegister/OpPushFromRegister/OpPopToRegister address a register by
// the name it was given at MakeRegister time. compile_package keeps these
// names as they are; each invocation's frame in pkg/vm maps them to
// vmcontext.RegisterToken slots at run time. An unnamed register (Name "")
// is not entered in that map, so these operations cannot address it.
type OpDropRegister struct{ Name string }

type OpPushFromRegister struct{ Name string }
type OpPopToRegister struct{ Name string }

type OpCallFunction struct{ Query registry.FunctionQuery }

type OpPushScope struct{ Body []Operation }
type OpPopScope struct{}
type OpLoopScope struct{ Body []Operation }
type OpBranchScope struct {
	OnTrue  []Operation
	OnFalse []Operation // nil means absent
}

func (OpExpression) operation()       {}
func (OpGroup) operation()            {}
func (OpGroupReversed) operation()    {}
func (OpMakeRegister) operation()     {}
func (OpDropRegister) operation()     {}
func (OpPushFromRegister) operation() {}
func (OpPopToRegister) operation()    {}
func (OpCallFunction) operation()     {}
func (OpPushScope) operation()        {}
func (OpPopScope) operation()         {}
func (OpLoopScope) operation()        {}
func (OpBranchScope) operation()      {}
