package auth

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/rbac-core/internal/infrastructure/database"
	_ "github.com/nerrad567/rbac-core/migrations" // registers the schema
)

const testSecret = "test-secret-key-at-least-32-chars!"

// strongPassword satisfies the default password policy.
const strongPassword = "Str0ng!Pass"

// testDB opens a migrated, seeded database in a temp directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	if _, err := SeedRoles(ctx, db.DB, slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("seeding roles: %v", err)
	}
	return db.DB
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Record(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) count(typ EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type testEnv struct {
	db     *sql.DB
	svc    *Service
	users  *SQLiteUserRepository
	tokens *SQLiteTokenRepository
	sink   *recordingSink
	clock  *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	clock := newFakeClock()
	issuer := NewTokenIssuer(TokenConfig{
		Secret:   testSecret,
		Issuer:   "rbac-core",
		Audience: "rbac-clients",
	})
	issuer.now = clock.Now

	env := &testEnv{
		db:     db,
		users:  NewUserRepository(db),
		tokens: NewTokenRepository(db),
		sink:   &recordingSink{},
		clock:  clock,
	}
	env.svc = NewService(ServiceDeps{
		Users:  env.users,
		Roles:  NewRoleRepository(db),
		Tokens: env.tokens,
		Issuer: issuer,
		Events: env.sink,
	})
	env.svc.now = clock.Now
	return env
}

func signupRequest(email, first, last string) SignupRequest {
	return SignupRequest{
		Email:           email,
		Password:        strongPassword,
		ConfirmPassword: strongPassword,
		FirstName:       first,
		LastName:        last,
	}
}

// mustSignup creates an account through the service.
func (e *testEnv) mustSignup(t *testing.T, email string) *User {
	t.Helper()

	u, err := e.svc.Signup(context.Background(), signupRequest(email, "Test", "User"), "127.0.0.1")
	if err != nil {
		t.Fatalf("Signup(%s) error = %v", email, err)
	}
	return u
}
