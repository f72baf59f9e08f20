package vm

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/ast"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/vmcontext"
)

// frame is one script invocation's evaluation state: the Context it drives,
// the Registry it resolves queries against, and the register-name
// namespace local to this invocation (MakeRegister/DropRegister/
// PushFromRegister/PopToRegister address registers by name at the AST
// layer; compile_package leaves name resolution to run time rather than
// pre-assigning indices, so nested/recursive calls never collide — each
// gets its own frame and its own names map).
type frame struct {
	ctx   *vmcontext.Context
	reg   *registry.Registry
	names map[string]vmcontext.RegisterToken
}

func newFrame(ctx *vmcontext.Context, reg *registry.Registry) *frame {
	return &frame{ctx: ctx, reg: reg, names: make(map[string]vmcontext.RegisterToken)}
}

// eval dispatches a single operation — expression or script level — by
// exhaustive type switch, the tagged-sum discipline spec.md §9 asks the
// value-kind layer to use, mirrored here at the operation layer.
func (f *frame) eval(op ast.Operation) error {
	switch o := op.(type) {
	// expression operations
	case ast.OpLiteral:
		return f.evalLiteral(o)
	case ast.OpStackDrop:
		return f.evalStackDrop()
	case ast.OpStackUnwrapBoolean:
		return f.evalStackUnwrapBoolean()
	case ast.OpBorrow:
		return f.evalBorrow()
	case ast.OpBorrowMut:
		return f.evalBorrowMut()
	case ast.OpLazy:
		return f.evalLazy()
	case ast.OpBorrowField:
		return f.evalBorrowField(o)
	case ast.OpBorrowMutField:
		return f.evalBorrowMutField(o)
	case ast.OpBorrowUnmanagedField:
		return f.evalBorrowUnmanagedField(o)
	case ast.OpBorrowMutUnmanagedField:
		return f.evalBorrowMutUnmanagedField(o)
	case ast.OpCopyFrom:
		return f.evalCopyFrom()
	case ast.OpMoveInto:
		return f.evalMoveInto()
	case ast.OpSwapIn:
		return f.evalSwapIn()
	case ast.OpDestructure:
		return f.evalDestructure(o)
	case ast.OpStructure:
		return f.evalStructure(o)
	case ast.OpBox:
		return f.evalBox()
	case ast.OpManage:
		return f.evalManage()
	case ast.OpUnmanage:
		return f.evalUnmanage()
	case ast.OpCopy:
		return f.evalCopy()
	case ast.OpSwap:
		return f.evalSwap()
	case ast.OpDuplicateBox:
		return f.evalDuplicateBox()
	case ast.OpEnsureStackType:
		return f.evalEnsureStackType(o)
	case ast.OpEnsureRegisterType:
		return f.evalEnsureRegisterType(o)
	case ast.OpEnsureStackKind:
		return f.evalEnsureStackKind(o)
	case ast.OpEnsureRegisterKind:
		return f.evalEnsureRegisterKind(o)
	case ast.OpCallMethod:
		return f.evalCallMethod(o)
	case ast.OpCallIndirect:
		return f.evalCallIndirect()

	// script operations
	case ast.OpExpression:
		return f.eval(o.Expr)
	case ast.OpGroup:
		return f.evalGroup(o)
	case ast.OpGroupReversed:
		return f.evalGroupReversed(o)
	case ast.OpMakeRegister:
		return f.evalMakeRegister(o)
	case ast.OpDropRegister:
		return f.evalDropRegister(o)
	case ast.OpPushFromRegister:
		return f.evalPushFromRegister(o)
	case ast.OpPopToRegister:
		return f.evalPopToRegister(o)
	case ast.OpCallFunction:
		return f.evalCallFunction(o)
	case ast.OpPushScope:
		return f.evalPushScope(o)
	case ast.OpPopScope:
		return f.ctx.PopScope()
	case ast.OpLoopScope:
		return f.evalLoopScope(o)
	case ast.OpBranchScope:
		return f.evalBranchScope(o)

	default:
		return ankhaerr.New(ankhaerr.Internal, "eval", "unhandled operation type %T", op)
	}
}

// evalSequence runs ops in order, stopping at the first error.
func (f *frame) evalSequence(ops []ast.Operation) error {
	for _, op := range ops {
		if err := f.eval(op); err != nil {
			return err
		}
	}
	return nil
}

func (f *frame) register(name string) (vmcontext.RegisterToken, error) {
	tok, ok := f.names[name]
	if !ok {
		return 0, ankhaerr.New(ankhaerr.RegisterOutOfRange, "register", "no register named %q in this scope", name)
	}
	return tok, nil
}
