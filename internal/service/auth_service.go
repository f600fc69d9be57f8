package service

import (
	"context"

	"github.com/ddanshin/task-manager/internal/auth"
	"github.com/ddanshin/task-manager/internal/model"
	"github.com/ddanshin/task-manager/internal/repository"
	"github.com/ddanshin/task-manager/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// dummyPasswordHash is compared against when the username does not exist, so
// the failure path costs a bcrypt verification either way.
var dummyPasswordHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMye.IjZAgcfl7p92ldGxad68LJZdL17lhWy")

type AuthService struct {
	users  repository.UserRepository
	issuer *auth.TokenIssuer
	cost   int
}

func NewAuthService(issuer *auth.TokenIssuer, cost int) *AuthService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{
		issuer: issuer,
		cost:   cost,
	}
}

func (a *AuthService) WithUserRepo(r repository.UserRepository) *AuthService {
	a.users = r
	return a
}

// Register stores a new user with a salted bcrypt digest. The plaintext
// password is never persisted or logged.
func (a *AuthService) Register(ctx context.Context, username, password string) *Error {
	l := logger.FromContext(ctx)

	digest, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		l.Error("failed to hash password", zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to register user")
	}

	_, err = a.users.Create(ctx, &repository.User{
		Username:     username,
		PasswordHash: digest,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		l.Warn("user already exists", zap.String("username", username))
		return NewError(ErrorCodeUserExists, "User already exists")
	}
	if err != nil {
		l.Error("failed to create user", zap.String("username", username), zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to register user")
	}

	return nil
}

// Login verifies credentials and mints a signed identity token. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (a *AuthService) Login(ctx context.Context, username, password string) (string, *Error) {
	l := logger.FromContext(ctx)

	user, err := a.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
		return "", NewError(ErrorCodeInvalidCredentials, "Invalid credentials")
	}
	if err != nil {
		l.Error("failed to look up user", zap.Error(err))
		return "", NewError(ErrorCodeUnspecified, "failed to log in")
	}

	if err = bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return "", NewError(ErrorCodeInvalidCredentials, "Invalid credentials")
	}

	token, err := a.issuer.Issue(user.Username)
	if err != nil {
		l.Error("failed to issue token", zap.Error(err))
		return "", NewError(ErrorCodeUnspecified, "failed to log in")
	}

	return token, nil
}

// ResolveIdentity maps a verified token subject to the stored user.
func (a *AuthService) ResolveIdentity(ctx context.Context, identity string) (*model.User, *Error) {
	user, err := a.users.GetByUsername(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "User not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to look up user")
	}
	return userToModel(user), nil
}
