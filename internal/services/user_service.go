package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/yoockh/scribe/internal/models"
	dbrepo "github.com/yoockh/scribe/internal/repositories/relational"
	"github.com/yoockh/scribe/internal/utils"
)

const (
	MaxUsernameLen = 80
	// bcrypt ignores input past 72 bytes
	MaxPasswordBytes = 72
)

type UserService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	Get(ctx context.Context, id uint) (*models.User, error)
}

type userService struct {
	users dbrepo.UserRepository
	cost  int
	dummy string
}

// NewUserService hashes with the given bcrypt cost; zero means bcrypt.DefaultCost.
func NewUserService(users dbrepo.UserRepository, cost int) (UserService, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := utils.HashPasswordCost("scribe-no-such-user", cost)
	if err != nil {
		return nil, err
	}
	return &userService{users: users, cost: cost, dummy: dummy}, nil
}

func (s *userService) Register(ctx context.Context, username, password string) (*models.User, error) {
	const op = "UserService.Register"

	username = strings.TrimSpace(username)
	switch {
	case username == "" || password == "":
		return nil, utils.E(utils.CodeInvalidArgument, op, "username and password are required", nil)
	case utf8.RuneCountInString(username) > MaxUsernameLen:
		return nil, utils.E(utils.CodeInvalidArgument, op, "username is too long", nil)
	case len(password) > MaxPasswordBytes:
		return nil, utils.E(utils.CodeInvalidArgument, op, "password is too long", nil)
	}

	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, utils.E(utils.CodeConflict, op, "username already taken", utils.ErrConflict)
	case !errors.Is(err, utils.ErrNotFound):
		return nil, utils.E(utils.CodeInternal, op, "failed to look up user", err)
	}

	hash, err := utils.HashPasswordCost(password, s.cost)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	u := &models.User{Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeConflict, op, "username already taken", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create user", err)
	}
	return u, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	const op = "UserService.Authenticate"
	invalid := utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, invalid
	}

	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, utils.ErrNotFound) {
		_ = utils.CheckPassword(s.dummy, password)
		return nil, invalid
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to look up user", err)
	}

	if err := utils.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, invalid
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id uint) (*models.User, error) {
	const op = "UserService.Get"

	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	return u, nil
}
