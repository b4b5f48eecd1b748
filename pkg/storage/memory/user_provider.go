package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/porthorian/modeltest/pkg/model"
)

type UserProvider struct {
	users view[model.User]
}

var _ model.UserProvider = (*UserProvider)(nil)

func (p *UserProvider) begin(context.Context) error {
	p.users.begin()
	return nil
}

func (p *UserProvider) commit(context.Context) error {
	p.users.commit()
	return nil
}

func (p *UserProvider) rollback(context.Context) error {
	p.users.rollback()
	return nil
}

func (p *UserProvider) AddUser(ctx context.Context, user model.User) (model.User, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.RealmID == "" || user.Username == "" {
		return model.User{}, model.ErrInvalidUser
	}
	if _, err := p.GetUserByUsername(ctx, user.RealmID, user.Username); err == nil {
		return model.User{}, model.ErrUserExists
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.DateAdded.IsZero() {
		user.DateAdded = time.Now().UTC()
	}

	p.users.put(user.ID, user)
	return user, nil
}

func (p *UserProvider) GetUser(ctx context.Context, realmID string, id string) (model.User, error) {
	user, ok := p.users.get(id)
	if !ok || user.RealmID != realmID {
		return model.User{}, model.ErrUserNotFound
	}
	return user, nil
}

func (p *UserProvider) GetUserByUsername(ctx context.Context, realmID string, username string) (model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	matches := p.users.values(func(u model.User) bool {
		return u.RealmID == realmID && u.Username == username
	})
	if len(matches) == 0 {
		return model.User{}, model.ErrUserNotFound
	}
	return matches[0], nil
}

func (p *UserProvider) ListUsers(ctx context.Context, realmID string) ([]model.User, error) {
	return p.users.values(func(u model.User) bool {
		return u.RealmID == realmID
	}), nil
}

func (p *UserProvider) RemoveUser(ctx context.Context, realmID string, id string) (bool, error) {
	if _, err := p.GetUser(ctx, realmID, id); err != nil {
		return false, nil
	}
	return p.users.delete(id), nil
}

func (p *UserProvider) CountUsers(ctx context.Context, realmID string) (int, error) {
	users, err := p.ListUsers(ctx, realmID)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

func (p *UserProvider) Close() error {
	return nil
}
