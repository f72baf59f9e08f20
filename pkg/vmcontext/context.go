// Package vmcontext implements the Evaluation Context (component D):
// per-invocation data stack, register file, and scope stack, plus Fork for
// spawning a thread with its own disjoint state over a shared Registry.
//
// Grounded on the teacher's pkg/eval evaluator state (one mutable
// environment threaded through a recursive eval, guarded against
// cross-goroutine reuse) and on original_source's intuicio_core::context::
// Context (data_stack/registers/stack of scopes, Fork-for-thread). The
// goroutine-ownership guard is grounded on AnatoleLucet/sig's owner.go,
// which uses the same github.com/petermattis/goid trick to fail fast when a
// single-owner structure is touched from the wrong goroutine.
package vmcontext

import (
	"fmt"

	"github.com/petermattis/goid"

	"github.com/ankha-lang/ankhavm/pkg/ankhaconfig"
	"github.com/ankha-lang/ankhavm/pkg/ankhaerr"
	"github.com/ankha-lang/ankhavm/pkg/ankhalog"
	"github.com/ankha-lang/ankhavm/pkg/registry"
	"github.com/ankha-lang/ankhavm/pkg/value"
)

// Context is one evaluator's mutable state: the data stack, register file,
// and scope stack it owns exclusively, plus a shared *registry.Registry and
// logger. It satisfies registry.Context structurally via PushValue/
// PopValue, so Native functions can operate on it without pkg/registry
// importing this package.
type Context struct {
	Registry *registry.Registry
	Log      *ankhalog.Logger
	config   ankhaconfig.Config

	stack     *dataStack
	registers *registers
	scopes    *scopeStack

	ownerGoroutine int64

	rawBool    bool
	rawBoolSet bool
}

// New builds a root Context bound to reg, owned by the calling goroutine.
func New(reg *registry.Registry, log *ankhalog.Logger, cfg ankhaconfig.Config) *Context {
	if log == nil {
		log = ankhalog.Nop()
	}
	return &Context{
		Registry:       reg,
		Log:            log,
		config:         cfg,
		stack:          newDataStack(cfg.InitialStackCapacity),
		registers:      newRegisters(cfg.InitialRegisterCapacity),
		scopes:         newScopeStack(),
		ownerGoroutine: goid.Get(),
	}
}

// guard fails fast (rather than silently corrupting shared slices) when a
// Context is driven from a goroutine other than the one that owns it.
// Fork exists precisely so a background thread gets its own Context instead
// of reaching across into this one.
func (c *Context) guard(op string) error {
	if current := goid.Get(); current != c.ownerGoroutine {
		return ankhaerr.New(ankhaerr.Internal, op, "context owned by goroutine %d accessed from goroutine %d", c.ownerGoroutine, current)
	}
	return nil
}

// Fork creates a new Context sharing this one's Registry and config but
// with a fresh, disjoint data stack/register file/scope stack, owned by the
// goroutine that calls Fork until Adopt rebinds it. This is how spec.md §6's thread.spawn
// gives a spawned goroutine isolated evaluator state without synchronizing
// on the parent's stack.
func (c *Context) Fork() *Context {
	return &Context{
		Registry:       c.Registry,
		Log:            c.Log,
		config:         c.config,
		stack:          newDataStack(c.config.InitialStackCapacity),
		registers:      newRegisters(c.config.InitialRegisterCapacity),
		scopes:         newScopeStack(),
		ownerGoroutine: goid.Get(),
	}
}

// Adopt rebinds ownership to the calling goroutine. pkg/stdlib's thread
// `new` calls this
// immediately inside the new goroutine on the Context returned by Fork,
// since Fork itself usually runs on the parent goroutine just before the
// `go` statement.
func (c *Context) Adopt() {
	c.ownerGoroutine = goid.Get()
}

// PushValue pushes v onto the data stack. Implements registry.Context.
func (c *Context) PushValue(v value.Value) {
	c.stack.push(v)
}

// PopValue pops the top of the data stack. Implements registry.Context.
func (c *Context) PopValue() (value.Value, error) {
	if err := c.guard("pop_value"); err != nil {
		return nil, err
	}
	return c.stack.pop()
}

// PushRaw pushes an unmanaged raw cell onto the data stack (the Unmanage
// operation's result).
func (c *Context) PushRaw(r *value.RawCell) {
	c.stack.pushRaw(r)
}

// PopRaw pops an unmanaged raw cell off the data stack (what Manage
// consumes).
func (c *Context) PopRaw() (*value.RawCell, error) {
	if err := c.guard("pop_raw"); err != nil {
		return nil, err
	}
	return c.stack.popRaw()
}

// PeekValue returns the top of the data stack without removing it.
func (c *Context) PeekValue() (value.Value, error) {
	if err := c.guard("peek_value"); err != nil {
		return nil, err
	}
	return c.stack.peek()
}

// StackLen reports the current data stack depth.
func (c *Context) StackLen() int { return c.stack.len() }

// Config returns the host-tunable knobs this Context was built with, so a
// stdlib native (e.g. channel.open) can size a resource consistently with
// the embedding host's configuration instead of hardcoding a constant.
func (c *Context) Config() ankhaconfig.Config { return c.config }

// SetRawBool stashes the unwrapped boolean byte StackUnwrapBoolean
// produces. The evaluator's data stack only ever holds managed Values
// (value.Value instances interned with a sealed Kind), so the one raw,
// non-managed scalar the operation set exposes — the discriminant
// LoopScope/BranchScope consume — rides this single-slot side channel
// instead of the stack proper. TakeRawBool clears it on read, so a stale
// value can never be observed twice.
func (c *Context) SetRawBool(b bool) {
	c.rawBool = b
	c.rawBoolSet = true
}

// TakeRawBool consumes the pending raw boolean, failing if
// StackUnwrapBoolean was not the immediately preceding operation.
func (c *Context) TakeRawBool() (bool, error) {
	if !c.rawBoolSet {
		return false, ankhaerr.New(ankhaerr.Internal, "take_raw_bool", "no unwrapped boolean is pending")
	}
	c.rawBoolSet = false
	return c.rawBool, nil
}

// MakeRegister allocates a fresh empty register, returning its token.
func (c *Context) MakeRegister() (RegisterToken, error) {
	if err := c.guard("make_register"); err != nil {
		return 0, err
	}
	return c.registers.makeRegister(), nil
}

// DropRegister drops tok's current occupant (if any) and empties the slot.
func (c *Context) DropRegister(tok RegisterToken) error {
	if err := c.guard("drop_register"); err != nil {
		return err
	}
	return c.registers.dropRegister(tok)
}

// PushFromRegister pushes tok's current value onto the data stack without
// consuming the register.
func (c *Context) PushFromRegister(tok RegisterToken) error {
	if err := c.guard("push_from_register"); err != nil {
		return err
	}
	v, err := c.registers.pushFromRegister(tok)
	if err != nil {
		return err
	}
	c.stack.push(v)
	return nil
}

// PopToRegister pops the data stack's top value into tok, dropping
// whatever previously occupied it.
func (c *Context) PopToRegister(tok RegisterToken) error {
	if err := c.guard("pop_to_register"); err != nil {
		return err
	}
	v, err := c.stack.pop()
	if err != nil {
		return err
	}
	return c.registers.popToRegister(tok, v)
}

// PushScope enters a new scope, remembering the current stack depth and
// register-file length as its unwind point. isLoop marks a scope that
// LoopScope/BranchScope may target as a continue/break destination.
func (c *Context) PushScope(isLoop bool) error {
	if err := c.guard("push_scope"); err != nil {
		return err
	}
	c.scopes.push(scopeFrame{
		stackToken:    c.stack.token(),
		registerToken: RegisterToken(c.registers.len()),
		isLoop:        isLoop,
	})
	return nil
}

// PopScope exits the innermost scope: registers opened since PushScope are
// dropped, then the data stack is unwound (dropping any leftover values)
// back to the scope's entry depth.
func (c *Context) PopScope() error {
	if err := c.guard("pop_scope"); err != nil {
		return err
	}
	frame, ok := c.scopes.pop()
	if !ok {
		return ankhaerr.New(ankhaerr.Internal, "pop_scope", "no scope is open")
	}
	return c.closeScope(frame)
}

func (c *Context) closeScope(frame scopeFrame) error {
	for tok := RegisterToken(c.registers.len()) - 1; tok >= frame.registerToken; tok-- {
		if err := c.registers.dropRegister(tok); err != nil {
			return err
		}
	}
	return c.stack.unwindTo(frame.stackToken)
}

// LoopScope re-enters the innermost loop-tagged scope: it unwinds to that
// scope's entry state (dropping registers/stack values accumulated during
// the iteration just finished) without popping the frame itself, so the
// next iteration starts clean. Returns ShapeMismatch-flavored Internal error
// if no loop scope is open.
func (c *Context) LoopScope() error {
	if err := c.guard("loop_scope"); err != nil {
		return err
	}
	idx, ok := c.scopes.nearestLoop()
	if !ok {
		return ankhaerr.New(ankhaerr.Internal, "loop_scope", "no enclosing loop scope")
	}
	frame := c.scopes.frames[idx]
	// drop any scopes nested inside the loop frame (a LoopScope from a
	// nested block continues the enclosing loop, discarding the nested
	// blocks' own frames too)
	c.scopes.frames = c.scopes.frames[:idx+1]
	return c.closeScope(frame)
}

// BranchScope exits scopes up to and including the innermost loop-tagged
// scope (spec.md §4.4's "break"), dropping accumulated state as it goes.
func (c *Context) BranchScope() error {
	if err := c.guard("branch_scope"); err != nil {
		return err
	}
	idx, ok := c.scopes.nearestLoop()
	if !ok {
		return ankhaerr.New(ankhaerr.Internal, "branch_scope", "no enclosing loop scope")
	}
	frame := c.scopes.frames[idx]
	c.scopes.frames = c.scopes.frames[:idx]
	return c.closeScope(frame)
}

// ScopeDepth reports how many scopes are currently open.
func (c *Context) ScopeDepth() int { return c.scopes.depth() }

func (c *Context) String() string {
	return fmt.Sprintf("Context{stack=%d registers=%d scopes=%d owner=%d}",
		c.stack.len(), c.registers.len(), c.scopes.depth(), c.ownerGoroutine)
}
