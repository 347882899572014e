package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"lostfound/internal/entity"
	"lostfound/internal/mail"
	"lostfound/internal/repository"

	"github.com/google/uuid"
)

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]entity.Account
	failWith error
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: map[uuid.UUID]entity.Account{}}
}

func (r *memAccountRepo) Create(_ context.Context, account *entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	r.accounts[account.ID] = *account
	return nil
}

func (r *memAccountRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (r *memAccountRepo) FindByEmail(_ context.Context, email string) (*entity.Account, error) {
	return r.find(func(a entity.Account) bool { return a.Email == email })
}

func (r *memAccountRepo) FindByResetVerifier(_ context.Context, verifier string) (*entity.Account, error) {
	return r.find(func(a entity.Account) bool {
		return a.ResetVerifier != nil && *a.ResetVerifier == verifier
	})
}

func (r *memAccountRepo) SetResetToken(_ context.Context, id uuid.UUID, verifier string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	account, ok := r.accounts[id]
	if !ok {
		return errors.New("record not found")
	}
	account.ResetVerifier = &verifier
	account.ResetExpiresAt = &expiresAt
	r.accounts[id] = account
	return nil
}

func (r *memAccountRepo) ConsumeResetToken(_ context.Context, id uuid.UUID, verifier string, passwordHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return false, r.failWith
	}
	account, ok := r.accounts[id]
	if !ok || account.ResetVerifier == nil || *account.ResetVerifier != verifier {
		return false, nil
	}
	if account.ResetExpiresAt == nil || !account.ResetExpiresAt.After(now) {
		return false, nil
	}
	account.PasswordHash = passwordHash
	account.ResetVerifier = nil
	account.ResetExpiresAt = nil
	r.accounts[id] = account
	return true, nil
}

func (r *memAccountRepo) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	var n int64
	for id, account := range r.accounts {
		if account.ResetExpiresAt != nil && !account.ResetExpiresAt.After(now) {
			account.ResetVerifier = nil
			account.ResetExpiresAt = nil
			r.accounts[id] = account
			n++
		}
	}
	return n, nil
}

func (r *memAccountRepo) find(match func(entity.Account) bool) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, account := range r.accounts {
		if match(account) {
			return &account, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) get(id uuid.UUID) entity.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id]
}

func (r *memAccountRepo) seed(email, passwordHash string) entity.Account {
	account := entity.Account{
		ID:           uuid.New(),
		Email:        email,
		FullName:     "Ada Lovelace",
		PasswordHash: passwordHash,
	}
	r.mu.Lock()
	r.accounts[account.ID] = account
	r.mu.Unlock()
	return account
}

type memSecurityLogRepo struct {
	mu      sync.Mutex
	entries []entity.SecurityLog
}

func (r *memSecurityLogRepo) Append(_ context.Context, entry *entity.SecurityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memSecurityLogRepo) actions() []entity.SecurityAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.SecurityAction, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.Action)
	}
	return out
}

// recordingTransport captures outgoing mail and can be told to fail.
type recordingTransport struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (t *recordingTransport) Verify(context.Context) error { return t.err }

func (t *recordingTransport) Send(_ context.Context, msg mail.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *recordingTransport) last() mail.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return mail.Message{}
	}
	return t.sent[len(t.sent)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// plainHasher keeps tests fast; bcrypt is covered by the end-to-end test.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Verify(hash string, password string) bool { return hash == "plain:"+password }

type fakeLimiter struct{ err error }

func (l fakeLimiter) Allow(context.Context, string) error { return l.err }

func secretFromURL(resetURL string) string {
	return resetURL[strings.LastIndex(resetURL, "/")+1:]
}
