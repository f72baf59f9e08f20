package vmcontext

import (
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

// StackToken marks a depth in the data stack at the moment a scope was
// pushed, so PopScope knows how many values to unwind and Drop.
type StackToken int

// dataStack is the evaluator's single operand stack (spec.md §4.1's "data
// stack"). Entries are usually managed value.Values, but Manage/Unmanage
// (spec.md §4.5: "raw <-> managed wrapping at the stack tip") briefly place
// an unmanaged *value.RawCell at the tip, so the backing slice holds `any`
// and PushValue/PopValue assert the common case, while PushRaw/PopRaw
// handle the unmanaged one. It is not safe for concurrent use — each
// Context (and each Context produced by Fork) owns exactly one, guarded by
// the goroutine-ownership check in context.go.
type dataStack struct {
	items []any
}

func newDataStack(capacity int) *dataStack {
	return &dataStack{items: make([]any, 0, capacity)}
}

func (s *dataStack) push(v value.Value) {
	s.items = append(s.items, v)
}

func (s *dataStack) pushRaw(r *value.RawCell) {
	s.items = append(s.items, r)
}

func (s *dataStack) popAny() (any, error) {
	if len(s.items) == 0 {
		return nil, ankhaerr.New(ankhaerr.StackUnderflow, "stack_pop", "data stack is empty")
	}
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return top, nil
}

func (s *dataStack) pop() (value.Value, error) {
	top, err := s.popAny()
	if err != nil {
		return nil, err
	}
	v, ok := top.(value.Value)
	if !ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "stack_pop", "expected a managed value, found an unmanaged raw cell")
	}
	return v, nil
}

func (s *dataStack) popRaw() (*value.RawCell, error) {
	top, err := s.popAny()
	if err != nil {
		return nil, err
	}
	r, ok := top.(*value.RawCell)
	if !ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "stack_pop", "expected an unmanaged raw cell, found a managed value")
	}
	return r, nil
}

func (s *dataStack) peek() (value.Value, error) {
	if len(s.items) == 0 {
		return nil, ankhaerr.New(ankhaerr.StackUnderflow, "stack_peek", "data stack is empty")
	}
	v, ok := s.items[len(s.items)-1].(value.Value)
	if !ok {
		return nil, ankhaerr.New(ankhaerr.KindMismatch, "stack_peek", "top of stack is an unmanaged raw cell")
	}
	return v, nil
}

func (s *dataStack) len() int { return len(s.items) }

func (s *dataStack) token() StackToken { return StackToken(len(s.items)) }

// unwindTo pops and Drops every managed value above tok, in LIFO order, the
// way PopScope discards a scope's leftover expression results (spec.md
// §4.4: a scope that exits with values still on the stack above its entry
// depth has those values dropped). A leftover unmanaged raw cell (between a
// stray Unmanage and its matching Manage) carries no finalizable ownership
// and is simply discarded.
func (s *dataStack) unwindTo(tok StackToken) error {
	for StackToken(len(s.items)) > tok {
		top, err := s.popAny()
		if err != nil {
			return err
		}
		if v, ok := top.(value.Value); ok {
			if err := value.Drop(v); err != nil {
				return err
			}
		}
	}
	return nil
}
