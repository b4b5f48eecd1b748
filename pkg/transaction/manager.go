package transaction

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	oerrors "github.com/porthorian/modeltest/pkg/errors"
)

var ErrRollbackOnly = oerrors.New(oerrors.CodeTransactionState, "transaction: marked rollback-only, rolled back instead of commit", nil)

// Manager drives the transactions enlisted by the providers of one session.
//
// Prepare transactions commit first, then regular transactions. After
// completion transactions are notified last, once, with the actual outcome.
// A Manager is owned by a single goroutine.
type Manager struct {
	logger logr.Logger

	state        State
	rollbackOnly bool

	prepare         []Transaction
	transactions    []Transaction
	afterCompletion []Transaction
}

var _ Transaction = (*Manager)(nil)

func NewManager(logger logr.Logger) *Manager {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &Manager{logger: logger}
}

func (m *Manager) State() State {
	return m.state
}

func (m *Manager) IsActive() bool {
	return m.state == StateActive
}

func (m *Manager) SetRollbackOnly() {
	m.rollbackOnly = true
}

func (m *Manager) RollbackOnly() bool {
	if m.rollbackOnly {
		return true
	}
	for _, list := range [][]Transaction{m.prepare, m.transactions, m.afterCompletion} {
		for _, tx := range list {
			if tx.RollbackOnly() {
				return true
			}
		}
	}
	return false
}

func (m *Manager) Enlist(ctx context.Context, tx Transaction) error {
	return m.enlist(ctx, &m.transactions, tx)
}

func (m *Manager) EnlistPrepare(ctx context.Context, tx Transaction) error {
	return m.enlist(ctx, &m.prepare, tx)
}

func (m *Manager) EnlistAfterCompletion(ctx context.Context, tx Transaction) error {
	return m.enlist(ctx, &m.afterCompletion, tx)
}

func (m *Manager) enlist(ctx context.Context, list *[]Transaction, tx Transaction) error {
	if tx == nil {
		return errors.New("transaction: cannot enlist nil transaction")
	}
	if m.state.Terminal() {
		return stateError("enlist", m.state)
	}
	if m.state == StateActive && !tx.IsActive() {
		if err := tx.Begin(ctx); err != nil {
			return err
		}
	}
	*list = append(*list, tx)
	return nil
}

func (m *Manager) Begin(ctx context.Context) error {
	if m.state != StateNotStarted {
		return stateError("begin", m.state)
	}
	m.state = StateActive

	for _, list := range [][]Transaction{m.prepare, m.transactions, m.afterCompletion} {
		for _, tx := range list {
			if tx.IsActive() {
				continue
			}
			if err := tx.Begin(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Commit commits every enlisted transaction. When the manager or any
// enlisted transaction is rollback-only, or a commit fails, the remaining
// work is rolled back and the after completion transactions see a rollback.
func (m *Manager) Commit(ctx context.Context) error {
	if m.state != StateActive {
		return stateError("commit", m.state)
	}

	if m.RollbackOnly() {
		if err := m.Rollback(ctx); err != nil {
			return errors.Join(ErrRollbackOnly, err)
		}
		return ErrRollbackOnly
	}

	pending := append(append([]Transaction{}, m.prepare...), m.transactions...)
	for i, tx := range pending {
		if !tx.IsActive() {
			continue
		}
		if err := tx.Commit(ctx); err != nil {
			m.logger.Error(err, "commit of enlisted transaction failed, rolling back remaining work")
			m.state = StateRolledBack
			errs := []error{err}
			errs = append(errs, rollbackAll(ctx, pending[i+1:])...)
			errs = append(errs, rollbackAll(ctx, m.afterCompletion)...)
			return errors.Join(errs...)
		}
	}

	m.state = StateCommitted

	var errs []error
	for _, tx := range m.afterCompletion {
		if !tx.IsActive() {
			continue
		}
		if err := tx.Commit(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) Rollback(ctx context.Context) error {
	if m.state != StateActive {
		return stateError("rollback", m.state)
	}
	m.state = StateRolledBack

	var errs []error
	errs = append(errs, rollbackAll(ctx, m.prepare)...)
	errs = append(errs, rollbackAll(ctx, m.transactions)...)
	errs = append(errs, rollbackAll(ctx, m.afterCompletion)...)
	return errors.Join(errs...)
}

func rollbackAll(ctx context.Context, txs []Transaction) []error {
	var errs []error
	for _, tx := range txs {
		if !tx.IsActive() {
			continue
		}
		if err := tx.Rollback(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
