package repository

import (
	"context"
	"fmt"

	"facturia/internal/domain"
	"facturia/internal/kv"
	"facturia/internal/store"
)

// UserRepository stores API credentials in the same substrate as the business
// tables. It satisfies the auth layer's UserStore interface.
type UserRepository struct {
	col *kv.Collection[domain.UserAccount, *domain.UserAccount]
}

func (r *UserRepository) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" {
		return fmt.Errorf("%w: username is required", store.ErrInvalidEntity)
	}
	_, err := r.col.CreateUnique(ctx, user, func(u domain.UserAccount) string { return u.Username })
	return err
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return r.col.All(ctx)
}

func (r *UserRepository) UpdateUserPassword(ctx context.Context, username string, password string) error {
	users, err := r.col.All(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		if user.Username != username {
			continue
		}
		_, err := r.col.Update(ctx, user.ID, func(u *domain.UserAccount) {
			u.Password = password
		})
		return err
	}
	return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
}
