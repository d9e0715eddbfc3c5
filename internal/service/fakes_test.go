package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/event-admin/internal/auth"
	"github.com/spec-kit/event-admin/internal/domain"
	"github.com/spec-kit/event-admin/internal/events"
	"github.com/spec-kit/event-admin/internal/repository"
	"github.com/spec-kit/event-admin/internal/revocation"
)

type memStaff struct {
	mu   sync.Mutex
	rows map[string]domain.StaffMember
}

func (m *memStaff) Create(_ context.Context, s *domain.StaffMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == s.Email {
			return repository.ErrDuplicateEmail
		}
	}
	s.ID = uuid.NewString()
	m.rows[s.ID] = *s
	return nil
}

func (m *memStaff) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &row, nil
}

func (m *memStaff) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == email {
			return &row, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStaff) List(_ context.Context, _ repository.StaffFilter) ([]domain.StaffMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StaffMember, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row)
	}
	return out, nil
}

func (m *memStaff) SetActive(_ context.Context, id string, active bool) error {
	return m.update(id, func(s *domain.StaffMember) { s.Active = active })
}

func (m *memStaff) UpdatePassword(_ context.Context, id, hash string) error {
	return m.update(id, func(s *domain.StaffMember) { s.PasswordHash = hash })
}

func (m *memStaff) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(s *domain.StaffMember) { s.LastLoginAt = &at })
}

func (m *memStaff) update(id string, fn func(*domain.StaffMember)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(&row)
	m.rows[id] = row
	return nil
}

type memMinisters struct {
	mu   sync.Mutex
	rows map[string]domain.Minister
}

func (m *memMinisters) Create(_ context.Context, min *domain.Minister) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == min.Email {
			return repository.ErrDuplicateEmail
		}
	}
	min.ID = uuid.NewString()
	m.rows[min.ID] = *min
	return nil
}

func (m *memMinisters) GetByID(_ context.Context, id string) (*domain.Minister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &row, nil
}

func (m *memMinisters) GetByEmail(_ context.Context, email string) (*domain.Minister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == email {
			return &row, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memMinisters) List(_ context.Context, active *bool, _, _ int) ([]domain.Minister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Minister
	for _, row := range m.rows {
		if active == nil || row.Active == *active {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memMinisters) SetActive(_ context.Context, id string, active bool) error {
	return m.update(id, func(min *domain.Minister) { min.Active = active })
}

func (m *memMinisters) UpdatePassword(_ context.Context, id, hash string) error {
	return m.update(id, func(min *domain.Minister) { min.PasswordHash = hash })
}

func (m *memMinisters) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(min *domain.Minister) { min.LastLoginAt = &at })
}

func (m *memMinisters) update(id string, fn func(*domain.Minister)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(&row)
	m.rows[id] = row
	return nil
}

type memGuests struct {
	mu   sync.Mutex
	rows map[string]domain.Guest
}

func (m *memGuests) Create(_ context.Context, g *domain.Guest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == g.Email {
			return repository.ErrDuplicateEmail
		}
	}
	g.ID = uuid.NewString()
	m.rows[g.ID] = *g
	return nil
}

func (m *memGuests) GetByID(_ context.Context, id string) (*domain.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &row, nil
}

func (m *memGuests) GetByEmail(_ context.Context, email string) (*domain.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == email {
			return &row, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memGuests) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	row.PasswordHash = hash
	m.rows[id] = row
	return nil
}

func (m *memGuests) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	row.LastLoginAt = &at
	m.rows[id] = row
	return nil
}

type env struct {
	staff      *memStaff
	ministers  *memMinisters
	guests     *memGuests
	store      *revocation.Store
	signer     *auth.Signer
	sessions   *auth.Sessions
	guards     map[domain.ActorKind]*auth.Guard
	dispatcher events.Dispatcher
	now        time.Time
}

const testSecret = "service-test-secret-long-enough-0123456789"

func newEnv(t *testing.T) *env {
	t.Helper()

	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store := revocation.New(client, revocation.Options{KeyPrefix: "svc:", MinTTL: time.Hour, ConnectAttempts: 1})
	require.NoError(t, store.Connect(context.Background()))

	e := &env{
		staff:      &memStaff{rows: map[string]domain.StaffMember{}},
		ministers:  &memMinisters{rows: map[string]domain.Minister{}},
		guests:     &memGuests{rows: map[string]domain.Guest{}},
		store:      store,
		dispatcher: events.NewInMemoryDispatcher(nil),
		now:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	clock := func() time.Time { return e.now }
	e.signer = auth.NewSigner(testSecret, auth.WithClock(clock))
	issuer := auth.NewIssuer(e.signer, auth.DefaultAccessTTL, auth.DefaultRefreshTTL)
	dir := repository.NewActorDirectory(e.staff, e.ministers, e.guests)
	validators := []*auth.Validator{auth.NewStaffValidator(dir), auth.NewMinisterValidator(dir), auth.NewGuestValidator(dir)}

	e.guards = map[domain.ActorKind]*auth.Guard{}
	for _, v := range validators {
		e.guards[v.Kind()] = auth.NewGuard(e.signer, store, v)
	}
	e.sessions = auth.NewSessions(auth.SessionsConfig{
		Signer:     e.signer,
		Issuer:     issuer,
		Store:      store,
		Validators: validators,
		Events:     e.dispatcher,
	})
	return e
}

func (e *env) authService() *AuthService {
	return NewAuthService(AuthDependencies{
		StaffRepo:    e.staff,
		MinisterRepo: e.ministers,
		GuestRepo:    e.guests,
		Sessions:     e.sessions,
		Dispatcher:   e.dispatcher,
		BcryptCost:   bcrypt.MinCost,
		Now:          func() time.Time { return e.now },
	})
}

func (e *env) staffService() *StaffService {
	return NewStaffService(DirectoryDependencies{
		StaffRepo:    e.staff,
		MinisterRepo: e.ministers,
		Sessions:     e.sessions,
		BcryptCost:   bcrypt.MinCost,
	})
}

func (e *env) advance(d time.Duration) {
	e.now = e.now.Add(d)
}
