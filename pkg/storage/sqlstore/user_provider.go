package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/porthorian/modeltest/pkg/model"
)

type UserProvider struct {
	conn  *ConnectionProvider
	stmts *userStatements
}

var _ model.UserProvider = (*UserProvider)(nil)

func (p *UserProvider) AddUser(ctx context.Context, user model.User) (model.User, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.RealmID == "" || user.Username == "" {
		return model.User{}, model.ErrInvalidUser
	}
	if _, err := p.GetUserByUsername(ctx, user.RealmID, user.Username); err == nil {
		return model.User{}, model.ErrUserExists
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, err
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.DateAdded.IsZero() {
		user.DateAdded = time.Now().UTC()
	}

	q, err := p.conn.Querier(ctx)
	if err != nil {
		return model.User{}, err
	}
	err = execStmt(ctx, q, p.stmts.insertUser,
		user.ID,
		user.RealmID,
		user.Username,
		user.Email,
		user.Enabled,
		user.FederationLink,
		user.DateAdded,
	)
	if err != nil {
		return model.User{}, storageError("add user", err)
	}
	return user, nil
}

func (p *UserProvider) GetUser(ctx context.Context, realmID string, id string) (model.User, error) {
	return p.getUser(ctx, p.stmts.getUser, realmID, id)
}

func (p *UserProvider) GetUserByUsername(ctx context.Context, realmID string, username string) (model.User, error) {
	return p.getUser(ctx, p.stmts.getUserByUsername, realmID, strings.ToLower(strings.TrimSpace(username)))
}

func (p *UserProvider) getUser(ctx context.Context, stmt *sql.Stmt, args ...any) (model.User, error) {
	q, err := p.conn.Querier(ctx)
	if err != nil {
		return model.User{}, err
	}

	s := bound(ctx, q, stmt)
	defer closeBound(q, s)

	user, err := scanUser(s.QueryRowContext(ctx, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, storageError("get user", err)
	}
	return user, nil
}

func (p *UserProvider) ListUsers(ctx context.Context, realmID string) ([]model.User, error) {
	q, err := p.conn.Querier(ctx)
	if err != nil {
		return nil, err
	}

	users, err := queryAll(ctx, q, p.stmts.listUsers, scanUser, realmID)
	if err != nil {
		return nil, storageError("list users", err)
	}
	return users, nil
}

func (p *UserProvider) RemoveUser(ctx context.Context, realmID string, id string) (bool, error) {
	q, err := p.conn.Querier(ctx)
	if err != nil {
		return false, err
	}

	s := bound(ctx, q, p.stmts.deleteUser)
	defer closeBound(q, s)

	result, err := s.ExecContext(ctx, realmID, id)
	if err != nil {
		return false, storageError("remove user", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, storageError("remove user", err)
	}
	return affected > 0, nil
}

func (p *UserProvider) CountUsers(ctx context.Context, realmID string) (int, error) {
	q, err := p.conn.Querier(ctx)
	if err != nil {
		return 0, err
	}

	s := bound(ctx, q, p.stmts.countUsers)
	defer closeBound(q, s)

	var count int
	if err := s.QueryRowContext(ctx, realmID).Scan(&count); err != nil {
		return 0, storageError("count users", err)
	}
	return count, nil
}

func (p *UserProvider) Close() error {
	return nil
}

func scanUser(row scanner) (model.User, error) {
	var user model.User
	if err := row.Scan(
		&user.ID,
		&user.RealmID,
		&user.Username,
		&user.Email,
		&user.Enabled,
		&user.FederationLink,
		&user.DateAdded,
	); err != nil {
		return model.User{}, err
	}
	user.DateAdded = user.DateAdded.UTC()
	return user, nil
}
