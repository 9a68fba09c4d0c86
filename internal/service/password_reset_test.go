package service

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/platform/mailer"
	"github.com/diagnosis/luxsuv-tours/pkg/auth"
	"github.com/diagnosis/luxsuv-tours/pkg/events"
)

type resetFixture struct {
	reset *PasswordReset
	users *memUsers
	mail  *mailer.DevMailer
	pub   *recordingPublisher
	user  *domain.User
	now   time.Time
}

func newResetFixture(t *testing.T, mail mailer.Service) *resetFixture {
	t.Helper()
	f := &resetFixture{
		users: newMemUsers(),
		pub:   &recordingPublisher{},
		now:   time.Date(2025, time.June, 3, 8, 0, 0, 0, time.UTC),
	}
	if mail == nil {
		f.mail = mailer.NewDevMailer()
		mail = f.mail
	}
	passwords := NewPasswords(cheapParams)
	hash, err := passwords.Hash(goodPassword)
	require.NoError(t, err)
	f.user, err = f.users.Create(context.Background(), &domain.User{
		Name: "Sophie Louise Hart", Email: "sophie@example.com", Role: domain.RoleUser, PasswordHash: hash,
	})
	require.NoError(t, err)

	f.reset = NewPasswordReset(f.users, mail, auth.NewTokenService("test-secret", time.Hour), passwords,
		domain.NewValidator(), f.pub, PasswordResetConfig{BaseURL: "https://tours.example.com/"})
	f.reset.now = func() time.Time { return f.now }
	f.reset.random = bytes.NewReader(bytes.Repeat([]byte{0xab}, resetTokenBytes))
	return f
}

var rawToken = strings.Repeat("ab", resetTokenBytes)

func TestForgotStoresOnlyTheHash(t *testing.T) {
	f := newResetFixture(t, nil)

	require.NoError(t, f.reset.Forgot(context.Background(), &domain.ForgotPasswordRequest{Email: "Sophie@Example.com"}))

	stored := f.users.get(f.user.ID)
	require.NotNil(t, stored.PasswordResetToken)
	assert.Equal(t, hashResetToken(rawToken), *stored.PasswordResetToken)
	assert.NotEqual(t, rawToken, *stored.PasswordResetToken)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.Equal(t, f.now.Add(10*time.Minute), *stored.PasswordResetExpires)

	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "sophie@example.com", sent[0].ToEmail)
	assert.Equal(t, "Your password reset token (valid for 10 min)", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "https://tours.example.com/api/v1/users/resetPassword/"+rawToken)
}

func TestForgotUnknownEmail(t *testing.T) {
	f := newResetFixture(t, nil)

	err := f.reset.Forgot(context.Background(), &domain.ForgotPasswordRequest{Email: "ghost@example.com"})
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Empty(t, f.mail.Sent())
}

func TestForgotWithdrawsTokenWhenEmailFails(t *testing.T) {
	f := newResetFixture(t, failingMailer{})

	err := f.reset.Forgot(context.Background(), &domain.ForgotPasswordRequest{Email: "sophie@example.com"})
	require.Error(t, err)
	assert.Equal(t, domain.KindDeliveryFailed, domain.KindOf(err))

	stored := f.users.get(f.user.ID)
	assert.Nil(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestResetRedeemsOnce(t *testing.T) {
	f := newResetFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.reset.Forgot(ctx, &domain.ForgotPasswordRequest{Email: "sophie@example.com"}))

	f.now = f.now.Add(5 * time.Minute)
	req := &domain.ResetPasswordRequest{Password: "Brandnew9$", PasswordConfirm: "Brandnew9$"}
	u, token, err := f.reset.Reset(ctx, rawToken, req)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, f.user.ID, u.ID)

	stored := f.users.get(f.user.ID)
	assert.Nil(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
	require.NotNil(t, stored.PasswordChangedAt)
	assert.Equal(t, f.now.Add(-time.Second), *stored.PasswordChangedAt)
	assert.True(t, f.reset.passwords.Matches("Brandnew9$", stored.PasswordHash))

	require.Len(t, f.pub.subjects, 1)
	assert.Equal(t, events.PasswordChanged, f.pub.subjects[0])
	assert.True(t, f.pub.payloads[0].(events.PasswordChangedEvent).Reset)

	_, _, err = f.reset.Reset(ctx, rawToken, req)
	assert.Equal(t, domain.KindInvalidResetToken, domain.KindOf(err))
}

func TestResetRejects(t *testing.T) {
	good := &domain.ResetPasswordRequest{Password: "Brandnew9$", PasswordConfirm: "Brandnew9$"}

	tests := []struct {
		name    string
		advance time.Duration
		token   string
		req     *domain.ResetPasswordRequest
		kind    domain.Kind
	}{
		{"expired", 11 * time.Minute, rawToken, good, domain.KindInvalidResetToken},
		{"unknown token", 0, strings.Repeat("cd", resetTokenBytes), good, domain.KindInvalidResetToken},
		{"mismatched confirm", 0, rawToken, &domain.ResetPasswordRequest{Password: "Brandnew9$", PasswordConfirm: "Other999$"}, domain.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResetFixture(t, nil)
			ctx := context.Background()
			require.NoError(t, f.reset.Forgot(ctx, &domain.ForgotPasswordRequest{Email: "sophie@example.com"}))
			f.now = f.now.Add(tt.advance)

			_, _, err := f.reset.Reset(ctx, tt.token, tt.req)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			assert.True(t, f.reset.passwords.Matches(goodPassword, f.users.get(f.user.ID).PasswordHash))
		})
	}
}

// gatedUsers holds every reset lookup until both redeemers have found the
// user, so both reach the password write with the same token.
type gatedUsers struct {
	*memUsers
	lookups sync.WaitGroup
}

func (g *gatedUsers) FindByResetToken(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	u, err := g.memUsers.FindByResetToken(ctx, hash, now)
	g.lookups.Done()
	g.lookups.Wait()
	return u, err
}

func TestResetConcurrentRedeemSucceedsOnce(t *testing.T) {
	f := newResetFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.reset.Forgot(ctx, &domain.ForgotPasswordRequest{Email: "sophie@example.com"}))

	gated := &gatedUsers{memUsers: f.users}
	gated.lookups.Add(2)
	f.reset.users = gated

	req := &domain.ResetPasswordRequest{Password: "Brandnew9$", PasswordConfirm: "Brandnew9$"}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = f.reset.Reset(ctx, rawToken, req)
		}()
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case domain.KindOf(err) == domain.KindInvalidResetToken:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Nil(t, f.users.get(f.user.ID).PasswordResetToken)
}
