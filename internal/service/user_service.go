package service

import (
	"context"
	"errors"

	"github.com/ddanshin/task-manager/internal/model"
	"github.com/ddanshin/task-manager/internal/repository"
)

type UserService struct {
	users repository.UserRepository
}

func NewUserService() *UserService {
	return &UserService{}
}

func (u *UserService) GetUser(ctx context.Context, userID int64) (*model.User, *Error) {
	user, err := u.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "User not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get user")
	}
	return userToModel(user), nil
}

func (u *UserService) GetUserByUsername(ctx context.Context, username string) (*model.User, *Error) {
	user, err := u.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "User not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get user")
	}
	return userToModel(user), nil
}

func (u *UserService) WithUserRepo(r repository.UserRepository) *UserService {
	u.users = r
	return u
}

func userToModel(user *repository.User) *model.User {
	createdAt := user.CreatedAt
	m := &model.User{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: &createdAt,
	}
	if user.FirstName != nil {
		m.FirstName = *user.FirstName
	}
	if user.LastName != nil {
		m.LastName = *user.LastName
	}
	if user.Email != nil {
		m.Email = *user.Email
	}
	if user.Location != nil {
		m.Location = *user.Location
	}
	return m
}
