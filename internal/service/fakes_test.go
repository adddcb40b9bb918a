package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/repository"
)

// memoryTokenRepository serializes transactions behind one mutex, which is what the
// serializable Postgres transaction guarantees for a single row.
type memoryTokenRepository struct {
	mu          sync.Mutex
	rows        map[string]domain.Token
	txConflict  bool
	deleteCalls int
}

func newMemoryTokenRepository() *memoryTokenRepository {
	return &memoryTokenRepository{rows: make(map[string]domain.Token)}
}

type memoryTokenTx struct {
	rows map[string]domain.Token
}

func (t memoryTokenTx) GetByID(ctx context.Context, id string) (*domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (t memoryTokenTx) DeleteByID(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, ok := t.rows[id]; !ok {
		return 0, nil
	}
	delete(t.rows, id)
	return 1, nil
}

func (r *memoryTokenRepository) Create(ctx context.Context, token *domain.Token) error {
	id, err := auth.RandomID(domain.TokenIDLength)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	token.ID = id
	r.rows[id] = *token
	return nil
}

func (r *memoryTokenRepository) GetByID(ctx context.Context, id string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memoryTokenTx{rows: r.rows}.GetByID(ctx, id)
}

func (r *memoryTokenRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	return memoryTokenTx{rows: r.rows}.DeleteByID(ctx, id)
}

func (r *memoryTokenRepository) DeleteByTypeAndUser(ctx context.Context, tokenType, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, row := range r.rows {
		if row.Type == tokenType && row.UserID == userID {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryTokenRepository) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, row := range r.rows {
		if row.ExpiredAt.Before(now) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryTokenRepository) WithinTransaction(ctx context.Context, fn func(tx repository.TokenTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.txConflict {
		return repository.ErrTxConflict
	}

	working := make(map[string]domain.Token, len(r.rows))
	for id, row := range r.rows {
		working[id] = row
	}
	if err := fn(memoryTokenTx{rows: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.rows = working
	return nil
}

func (r *memoryTokenRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
	seq   int
	now   func() time.Time
}

func newMockUserRepository(now func() time.Time) *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User), now: now}
}

func (r *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrEmailTaken
		}
	}
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	user.CreatedAt = r.now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *mockUserRepository) UpdatePassword(ctx context.Context, id string, change func(current *domain.User) (string, error)) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	current := *user
	hash, err := change(&current)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.UpdatedAt = r.now()
	copied := *user
	return &copied, nil
}

type mockFileRepository struct {
	mu    sync.Mutex
	files map[string]*domain.File
}

func newMockFileRepository() *mockFileRepository {
	return &mockFileRepository{files: make(map[string]*domain.File)}
}

func (r *mockFileRepository) CreateFiles(ctx context.Context, files []*domain.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range files {
		if _, exists := r.files[f.ID]; exists {
			return repository.ErrFileExists
		}
	}
	for _, f := range files {
		copied := *f
		r.files[f.ID] = &copied
	}
	return nil
}

func (r *mockFileRepository) GetFiles(ctx context.Context, ids []string) ([]*domain.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.File
	for _, id := range ids {
		if f, ok := r.files[id]; ok {
			copied := *f
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *mockFileRepository) UpdateDomainType(ctx context.Context, ids []string, domainType string, now time.Time) ([]*domain.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.File
	for _, id := range ids {
		if f, ok := r.files[id]; ok {
			f.DomainType = domainType
			f.UpdatedAt = now
			copied := *f
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *mockFileRepository) DeleteFiles(ctx context.Context, ids []string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.files[id]; ok {
			delete(r.files, id)
			n++
		}
	}
	return n, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []*domain.EmailMessage
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg *domain.EmailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last() *domain.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

type eventLog struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func newEventLog() (*eventLog, *events.InMemoryDispatcher) {
	log := &eventLog{}
	d := events.NewInMemoryDispatcher(nil)
	d.SubscribeAll(func(_ context.Context, e events.DomainEvent) error {
		log.mu.Lock()
		defer log.mu.Unlock()
		log.events = append(log.events, e)
		return nil
	})
	return log, d
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Name())
	}
	return out
}

func (l *eventLog) last() events.DomainEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}
