package modeltest

import (
	"context"
	"errors"

	"github.com/porthorian/modeltest/pkg/session"
	"github.com/porthorian/modeltest/pkg/transaction"
)

// InRolledBackTransaction runs what in a new session and always rolls the
// transaction back, so nothing what does outlives the call. what's error is
// returned unchanged unless the rollback fails too.
func InRolledBackTransaction[T any](ctx context.Context, h *Harness, parameter T, what ParameterJob[T]) (err error) {
	s := h.NewSession()
	defer func() {
		if closeErr := s.Close(ctx); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	tm := s.TransactionManager()
	if err := tm.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if !tm.IsActive() {
			return
		}
		if rollbackErr := tm.Rollback(ctx); rollbackErr != nil {
			err = errors.Join(err, rollbackErr)
		}
	}()

	return what(ctx, s, parameter)
}

// InCommittedTransaction runs what in a new session and commits unless what
// fails.
func InCommittedTransaction[T any](ctx context.Context, h *Harness, parameter T, what ParameterJob[T]) error {
	return InCommittedTransactionWithCallbacks(ctx, h, parameter, what, nil, nil)
}

// InCommittedTransactionWithCallbacks is InCommittedTransaction with outcome
// callbacks. Exactly one of onCommit and onRollback runs, matching how the
// transaction actually completed; nil callbacks are skipped. Callback errors
// are joined to the returned error.
func InCommittedTransactionWithCallbacks[T any](ctx context.Context, h *Harness, parameter T, what ParameterJob[T], onCommit ParameterJob[T], onRollback ParameterJob[T]) error {
	return h.RunJobInTransaction(ctx, func(ctx context.Context, s *session.Session) error {
		outcome := transaction.NewCallback(bindJob(s, parameter, onCommit), bindJob(s, parameter, onRollback))
		if err := s.TransactionManager().EnlistAfterCompletion(ctx, outcome); err != nil {
			return err
		}
		return what(ctx, s, parameter)
	})
}

func bindJob[T any](s *session.Session, parameter T, job ParameterJob[T]) transaction.Func {
	if job == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return job(ctx, s, parameter)
	}
}
