package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/platform/mailer"
	"github.com/diagnosis/luxsuv-tours/pkg/events"
)

var cheapParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type memUsers struct {
	mu    sync.Mutex
	users map[bson.ObjectID]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[bson.ObjectID]*domain.User{}}
}

func (m *memUsers) get(id bson.ObjectID) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *m.users[id]
	return &u
}

func (m *memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if other.Email == u.Email {
			return nil, domain.E(domain.KindDuplicateKey, "Duplicate field value: "+u.Email)
		}
	}
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	u.Active = true
	cp := *u
	m.users[u.ID] = &cp
	return u, nil
}

func (m *memUsers) find(pred func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Active && pred(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.IDHex() == id })
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *memUsers) FindByResetToken(_ context.Context, hash string, now time.Time) (*domain.User, error) {
	return m.find(func(u *domain.User) bool {
		return u.PasswordResetToken != nil && *u.PasswordResetToken == hash &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
	})
}

func (m *memUsers) mutate(id bson.ObjectID, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active {
		return domain.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) SetPassword(_ context.Context, id bson.ObjectID, hash string, changedAt time.Time) error {
	return m.mutate(id, func(u *domain.User) {
		u.PasswordHash = hash
		u.PasswordChangedAt = &changedAt
		u.PasswordResetToken = nil
		u.PasswordResetExpires = nil
	})
}

func (m *memUsers) ConsumeResetToken(_ context.Context, id bson.ObjectID, tokenHash string, now time.Time, hash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active || u.PasswordResetToken == nil || *u.PasswordResetToken != tokenHash ||
		u.PasswordResetExpires == nil || !u.PasswordResetExpires.After(now) {
		return domain.ErrNotFound
	}
	u.PasswordHash = hash
	u.PasswordChangedAt = &changedAt
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
	return nil
}

func (m *memUsers) SetResetToken(_ context.Context, id bson.ObjectID, hash string, expires time.Time) error {
	return m.mutate(id, func(u *domain.User) {
		u.PasswordResetToken = &hash
		u.PasswordResetExpires = &expires
	})
}

func (m *memUsers) ClearResetToken(_ context.Context, id bson.ObjectID) error {
	return m.mutate(id, func(u *domain.User) {
		u.PasswordResetToken = nil
		u.PasswordResetExpires = nil
	})
}

func (m *memUsers) UpdateProfile(_ context.Context, id bson.ObjectID, name, email *string) (*domain.User, error) {
	err := m.mutate(id, func(u *domain.User) {
		if name != nil {
			u.Name = *name
		}
		if email != nil {
			u.Email = domain.NormalizeEmail(*email)
		}
	})
	if err != nil {
		return nil, err
	}
	return m.get(id), nil
}

func (m *memUsers) Deactivate(_ context.Context, id bson.ObjectID) error {
	return m.mutate(id, func(u *domain.User) { u.Active = false })
}

type failingMailer struct{}

func (failingMailer) Send(context.Context, mailer.Message) (string, error) {
	return "", errors.New("smtp: connection refused")
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var _ events.Publisher = (*recordingPublisher)(nil)
