package transaction

import (
	"context"
	"fmt"

	oerrors "github.com/porthorian/modeltest/pkg/errors"
)

type State int

const (
	StateNotStarted State = iota
	StateActive
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

type Transaction interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	SetRollbackOnly()
	RollbackOnly() bool
	IsActive() bool
}

type Func func(ctx context.Context) error

// Callback is a Transaction whose commit and rollback run user functions.
// Nil functions are no-ops.
type Callback struct {
	OnBegin    Func
	OnCommit   Func
	OnRollback Func

	state        State
	rollbackOnly bool
}

var _ Transaction = (*Callback)(nil)

func NewCallback(onCommit Func, onRollback Func) *Callback {
	return &Callback{
		OnCommit:   onCommit,
		OnRollback: onRollback,
	}
}

func (c *Callback) Begin(ctx context.Context) error {
	if c.state != StateNotStarted {
		return stateError("begin", c.state)
	}
	c.state = StateActive
	if c.OnBegin != nil {
		return c.OnBegin(ctx)
	}
	return nil
}

func (c *Callback) Commit(ctx context.Context) error {
	if c.state != StateActive {
		return stateError("commit", c.state)
	}
	c.state = StateCommitted
	if c.OnCommit != nil {
		return c.OnCommit(ctx)
	}
	return nil
}

func (c *Callback) Rollback(ctx context.Context) error {
	if c.state != StateActive {
		return stateError("rollback", c.state)
	}
	c.state = StateRolledBack
	if c.OnRollback != nil {
		return c.OnRollback(ctx)
	}
	return nil
}

func (c *Callback) SetRollbackOnly() {
	c.rollbackOnly = true
}

func (c *Callback) RollbackOnly() bool {
	return c.rollbackOnly
}

func (c *Callback) IsActive() bool {
	return c.state == StateActive
}

func (c *Callback) State() State {
	return c.state
}

func stateError(op string, state State) error {
	return oerrors.New(oerrors.CodeTransactionState, fmt.Sprintf("transaction: cannot %s in state %s", op, state), nil)
}
