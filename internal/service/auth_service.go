package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/repo/mongodb"
	"github.com/diagnosis/luxsuv-tours/pkg/auth"
	"github.com/diagnosis/luxsuv-tours/pkg/events"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

type AuthService interface {
	Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error)
	UpdatePassword(ctx context.Context, user *domain.User, req *domain.UpdatePasswordRequest) (*domain.User, string, error)
	UpdateMe(ctx context.Context, user *domain.User, req *domain.UpdateMeRequest) (*domain.User, error)
	DeleteMe(ctx context.Context, user *domain.User) error
}

type authService struct {
	users     mongodb.UsersRepo
	tokens    *auth.TokenService
	passwords *Passwords
	validate  *validator.Validate
	events    events.Publisher
	now       func() time.Time
}

func NewAuthService(
	users mongodb.UsersRepo,
	tokens *auth.TokenService,
	passwords *Passwords,
	validate *validator.Validate,
	publisher events.Publisher,
) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validate:  validate,
		events:    publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var errIncorrectLogin = domain.E(domain.KindInvalidCredentials, "Incorrect email or password")

func (s *authService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := s.validate.Struct(req); err != nil {
		return nil, "", domain.ValidationError(err)
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, "", err
	}
	user, err := s.users.Create(ctx, &domain.User{
		Name:         req.Name,
		Email:        req.Email,
		Photo:        req.Photo,
		Role:         domain.RoleUser,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.IDHex())
	if err != nil {
		return nil, "", err
	}

	s.publish(ctx, events.UserSignedUp, events.UserSignedUpEvent{
		UserID:    user.IDHex(),
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	})
	return user, token, nil
}

// Login has no lockout: repeated failures keep returning the same error.
func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return nil, "", domain.ValidationError(err)
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", errIncorrectLogin
	}
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if !s.passwords.Matches(req.Password, user.PasswordHash) {
		logger.InfoContext(ctx, "login failed", "user_id", user.IDHex())
		return nil, "", errIncorrectLogin
	}

	token, err := s.tokens.Issue(user.IDHex())
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *authService) UpdatePassword(ctx context.Context, user *domain.User, req *domain.UpdatePasswordRequest) (*domain.User, string, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, "", domain.ValidationError(err)
	}
	if !s.passwords.Matches(req.PasswordCurrent, user.PasswordHash) {
		return nil, "", domain.E(domain.KindInvalidCredentials, "Your current password is wrong.")
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, "", err
	}
	stamp := changedAt(s.now())
	if err := s.users.SetPassword(ctx, user.ID, hash, stamp); err != nil {
		return nil, "", err
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &stamp

	token, err := s.tokens.Issue(user.IDHex())
	if err != nil {
		return nil, "", err
	}
	s.publish(ctx, events.PasswordChanged, events.PasswordChangedEvent{
		UserID:    user.IDHex(),
		Email:     user.Email,
		ChangedAt: stamp,
	})
	return user, token, nil
}

func (s *authService) UpdateMe(ctx context.Context, user *domain.User, req *domain.UpdateMeRequest) (*domain.User, error) {
	if req.Password != nil || req.PasswordConfirm != nil {
		return nil, domain.E(domain.KindValidation, "This route is not for password updates. Please use /updateMyPassword.")
	}
	if req.Email != nil {
		email := domain.NormalizeEmail(*req.Email)
		req.Email = &email
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ValidationError(err)
	}
	return s.users.UpdateProfile(ctx, user.ID, req.Name, req.Email)
}

func (s *authService) DeleteMe(ctx context.Context, user *domain.User) error {
	return s.users.Deactivate(ctx, user.ID)
}

func (s *authService) publish(ctx context.Context, subject string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "subject", subject, "error", err)
	}
}
