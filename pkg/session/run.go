package session

import (
	"context"
	"errors"
)

// RunInTransaction runs fn in a new session inside a transaction. The
// transaction commits when fn succeeds, unless it was marked rollback-only,
// and rolls back when fn fails, panics or exits the goroutine. The session is
// closed before returning and fn's error is returned unchanged.
func RunInTransaction(ctx context.Context, factory Factory, fn func(ctx context.Context, s *Session) error) (err error) {
	s := New(factory)
	defer func() {
		if closeErr := s.Close(ctx); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	tm := s.TransactionManager()
	if err := tm.Begin(ctx); err != nil {
		return err
	}

	completed := false
	defer func() {
		if !completed && tm.IsActive() {
			if rollbackErr := tm.Rollback(ctx); rollbackErr != nil {
				s.logger.Error(rollbackErr, "rollback after aborted job failed")
			}
		}
	}()

	if err := fn(ctx, s); err != nil {
		completed = true
		if tm.IsActive() {
			if rollbackErr := tm.Rollback(ctx); rollbackErr != nil {
				return errors.Join(err, rollbackErr)
			}
		}
		return err
	}
	completed = true

	if !tm.IsActive() {
		return nil
	}
	if tm.RollbackOnly() {
		return tm.Rollback(ctx)
	}
	return tm.Commit(ctx)
}
