package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/platform/mailer"
	"github.com/diagnosis/luxsuv-tours/internal/repo/mongodb"
	"github.com/diagnosis/luxsuv-tours/pkg/auth"
	"github.com/diagnosis/luxsuv-tours/pkg/events"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

const resetTokenBytes = 32

// PasswordReset runs forgot-password and reset-password. Only the sha256 of
// a reset token is stored; the raw value travels by email alone.
type PasswordReset struct {
	users     mongodb.UsersRepo
	mailer    mailer.Service
	tokens    *auth.TokenService
	passwords *Passwords
	validate  *validator.Validate
	events    events.Publisher
	ttl       time.Duration
	baseURL   string
	now       func() time.Time
	random    io.Reader
}

type PasswordResetConfig struct {
	TTL time.Duration
	// BaseURL prefixes the reset link, e.g. https://tours.example.com.
	BaseURL string
}

func NewPasswordReset(
	users mongodb.UsersRepo,
	mail mailer.Service,
	tokens *auth.TokenService,
	passwords *Passwords,
	validate *validator.Validate,
	publisher events.Publisher,
	cfg PasswordResetConfig,
) *PasswordReset {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &PasswordReset{
		users:     users,
		mailer:    mail,
		tokens:    tokens,
		passwords: passwords,
		validate:  validate,
		events:    publisher,
		ttl:       cfg.TTL,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		now:       func() time.Time { return time.Now().UTC() },
		random:    rand.Reader,
	}
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Forgot issues a reset token and emails the link. An unknown email is a
// NotFound. If the email cannot be delivered the token is withdrawn.
func (p *PasswordReset) Forgot(ctx context.Context, req *domain.ForgotPasswordRequest) error {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := p.validate.Struct(req); err != nil {
		return domain.ValidationError(err)
	}

	user, err := p.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.E(domain.KindNotFound, "There is no user with that email address.")
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	buf := make([]byte, resetTokenBytes)
	if _, err := io.ReadFull(p.random, buf); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	raw := hex.EncodeToString(buf)

	if err := p.users.SetResetToken(ctx, user.ID, hashResetToken(raw), p.now().Add(p.ttl)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := p.baseURL + "/api/v1/users/resetPassword/" + raw
	if _, err := p.mailer.Send(ctx, mailer.PasswordReset(user.Email, user.Name, link)); err != nil {
		logger.ErrorContext(ctx, "password reset email failed", "user_id", user.IDHex(), "error", err)
		if cerr := p.users.ClearResetToken(context.WithoutCancel(ctx), user.ID); cerr != nil {
			logger.ErrorContext(ctx, "failed to withdraw reset token", "user_id", user.IDHex(), "error", cerr)
		}
		return domain.Wrap(domain.KindDeliveryFailed, "There was an error sending the email. Try again later!", err)
	}
	return nil
}

// Reset redeems a reset token. A token works once and only before it
// expires.
func (p *PasswordReset) Reset(ctx context.Context, rawToken string, req *domain.ResetPasswordRequest) (*domain.User, string, error) {
	user, err := p.users.FindByResetToken(ctx, hashResetToken(rawToken), p.now())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", domain.E(domain.KindInvalidResetToken, "Token is invalid or has expired")
	}
	if err != nil {
		return nil, "", fmt.Errorf("find user by reset token: %w", err)
	}
	if err := p.validate.Struct(req); err != nil {
		return nil, "", domain.ValidationError(err)
	}

	hash, err := p.passwords.Hash(req.Password)
	if err != nil {
		return nil, "", err
	}
	stamp := changedAt(p.now())
	// A concurrent redeem may have used the token since the lookup.
	err = p.users.ConsumeResetToken(ctx, user.ID, hashResetToken(rawToken), p.now(), hash, stamp)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", domain.E(domain.KindInvalidResetToken, "Token is invalid or has expired")
	}
	if err != nil {
		return nil, "", err
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &stamp
	user.PasswordResetToken = nil
	user.PasswordResetExpires = nil

	token, err := p.tokens.Issue(user.IDHex())
	if err != nil {
		return nil, "", err
	}
	if p.events != nil {
		if err := p.events.Publish(ctx, events.PasswordChanged, events.PasswordChangedEvent{
			UserID: user.IDHex(), Email: user.Email, Reset: true, ChangedAt: stamp,
		}); err != nil {
			logger.WarnContext(ctx, "failed to publish event", "subject", events.PasswordChanged, "error", err)
		}
	}
	return user, token, nil
}
