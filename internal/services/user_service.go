package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	appErr "github.com/taskhall/engine/pkg/errors"
	"github.com/taskhall/engine/pkg/validation"
)

// Account is a user as seen by themselves.
type Account struct {
	*models.User
	HasHonor bool `json:"has_honor"`
}

type UserService interface {
	Get(ctx context.Context, userID uuid.UUID) (*Account, error)
	UpdateNickname(ctx context.Context, userID uuid.UUID, nickname string) (*Account, error)
}

type userService struct {
	users          repository.UserRepository
	honorThreshold int
}

func NewUserService(users repository.UserRepository, honorThreshold int) UserService {
	return &userService{users: users, honorThreshold: honorThreshold}
}

var _ UserService = (*userService)(nil)

func (s *userService) Get(ctx context.Context, userID uuid.UUID) (*Account, error) {
	var u models.User
	if err := s.users.GetByID(ctx, userID, &u); err != nil {
		return nil, err
	}
	return &Account{User: &u, HasHonor: u.HasHonor(s.honorThreshold)}, nil
}

func (s *userService) UpdateNickname(ctx context.Context, userID uuid.UUID, nickname string) (*Account, error) {
	nickname = strings.TrimSpace(nickname)
	if err := validation.Var(nickname, "required,max=64"); err != nil {
		return nil, appErr.Invalid("invalid nickname", map[string]string{"nickname": "must be 1 to 64 characters"})
	}
	if err := s.users.UpdateNickname(ctx, userID, nickname); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}
