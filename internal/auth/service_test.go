package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/gate"
	"github.com/hitoshi/demodash/internal/model"
	"github.com/hitoshi/demodash/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

type mockSessionRepo struct {
	createFn        func(ctx context.Context, session *model.Session) error
	findByIDFn      func(ctx context.Context, id string, now time.Time) (*model.Session, error)
	deleteByIDFn    func(ctx context.Context, id string) (bool, error)
	deleteExpiredFn func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string, now time.Time) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id, now)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return true, nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, now)
	}
	return 0, nil
}

type mockRowRepo struct {
	listFn func(ctx context.Context) ([]model.Row, error)
}

func (m *mockRowRepo) List(ctx context.Context) ([]model.Row, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.Row{}, nil
}

func (m *mockRowRepo) Insert(_ context.Context, _ *string) (int64, error) {
	return 0, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ repository.RowRepository = (*mockRowRepo)(nil)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(users *mockUserRepo, sessions *mockSessionRepo) *Service {
	return NewService(users, sessions, ServiceConfig{
		SessionMaxAge: 3600,
		BcryptCost:    bcrypt.MinCost,
		Now:           func() time.Time { return fixedNow },
	})
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	return string(h)
}

// --- テスト ---

func TestSignInWithPassword_ValidCredentials_CreatesSessionAndPublishes(t *testing.T) {
	user := &model.User{ID: "user-1", Email: "demo@example.com", PasswordHash: hashPassword(t, "password123")}
	var saved *model.Session

	svc := newTestService(
		&mockUserRepo{findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			if email != "demo@example.com" {
				t.Errorf("email = %q, want trimmed address", email)
			}
			return user, nil
		}},
		&mockSessionRepo{createFn: func(_ context.Context, s *model.Session) error {
			saved = s
			return nil
		}},
	)

	var events []backend.AuthEvent
	svc.Subscribe(func(ev backend.AuthEvent) { events = append(events, ev) })

	session, err := svc.SignInWithPassword(context.Background(), "  demo@example.com ", "password123")
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}
	if session != saved {
		t.Error("returned session should be the persisted one")
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	if session.Email != "demo@example.com" || session.UserID != "user-1" {
		t.Errorf("session = %+v", session)
	}
	if want := fixedNow.Add(time.Hour); !session.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, want)
	}
	if len(events) != 1 || events[0].Kind != backend.EventSignedIn || events[0].Session != session {
		t.Errorf("events = %+v, want one SIGNED_IN with the session", events)
	}
}

func TestSignInWithPassword_WrongPassword_ReturnsInvalidCredentials(t *testing.T) {
	user := &model.User{ID: "user-1", Email: "demo@example.com", PasswordHash: hashPassword(t, "password123")}
	svc := newTestService(
		&mockUserRepo{findByEmailFn: func(context.Context, string) (*model.User, error) { return user, nil }},
		&mockSessionRepo{createFn: func(context.Context, *model.Session) error {
			t.Error("session should not be created")
			return nil
		}},
	)

	_, err := svc.SignInWithPassword(context.Background(), "demo@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	be, ok := backend.AsError(err)
	if !ok || be.Message != "Invalid login credentials" {
		t.Errorf("backend error = %+v", be)
	}
}

func TestSignInWithPassword_UnknownUser_ReturnsInvalidCredentials(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	if _, err := svc.SignInWithPassword(context.Background(), "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.SignInWithPassword(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("empty input err = %v, want ErrInvalidCredentials", err)
	}
}

func TestSignInWithPassword_RepoError_ReturnsError(t *testing.T) {
	svc := newTestService(
		&mockUserRepo{findByEmailFn: func(context.Context, string) (*model.User, error) {
			return nil, errors.New("db down")
		}},
		&mockSessionRepo{},
	)

	_, err := svc.SignInWithPassword(context.Background(), "demo@example.com", "x")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want wrapped repository error", err)
	}
}

func TestGetSession_PassesClockAndReturnsSession(t *testing.T) {
	want := &model.Session{ID: "tok", UserID: "user-1", Email: "demo@example.com"}
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string, now time.Time) (*model.Session, error) {
			if id != "tok" {
				t.Errorf("id = %q", id)
			}
			if !now.Equal(fixedNow) {
				t.Errorf("now = %v, want %v", now, fixedNow)
			}
			return want, nil
		},
	})

	got, err := svc.GetSession(context.Background(), "tok")
	if err != nil || got != want {
		t.Errorf("GetSession() = %+v, %v", got, err)
	}

	got, err = svc.GetSession(context.Background(), "")
	if err != nil || got != nil {
		t.Errorf("GetSession(\"\") = %+v, %v; want nil, nil", got, err)
	}
}

func TestSignOut_DeletesSessionAndPublishes(t *testing.T) {
	var deletedID string
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{
		deleteByIDFn: func(_ context.Context, id string) (bool, error) {
			deletedID = id
			return true, nil
		},
	})

	var kinds []backend.EventKind
	svc.Subscribe(func(ev backend.AuthEvent) { kinds = append(kinds, ev.Kind) })

	if err := svc.SignOut(context.Background(), "tok"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if deletedID != "tok" {
		t.Errorf("deleted ID = %q, want tok", deletedID)
	}
	if len(kinds) != 1 || kinds[0] != backend.EventSignedOut {
		t.Errorf("kinds = %v, want [SIGNED_OUT]", kinds)
	}
}

func TestSignOut_MissingSession_ReturnsSessionExpired(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{
		deleteByIDFn: func(context.Context, string) (bool, error) { return false, nil },
	})
	var events []backend.AuthEvent
	svc.Subscribe(func(ev backend.AuthEvent) { events = append(events, ev) })

	err := svc.SignOut(context.Background(), "gone")
	be, ok := backend.AsError(err)
	if !ok {
		t.Fatalf("expected *backend.Error, got %v", err)
	}
	if be.Message != "session expired" {
		t.Errorf("Message = %q, want %q", be.Message, "session expired")
	}
	// 失効済みのトークンは SIGNED_OUT ではなく TOKEN_EXPIRED を通知する
	if len(events) != 1 || events[0].Kind != backend.EventTokenExpired || events[0].Session.ID != "gone" {
		t.Errorf("events = %+v, want one TOKEN_EXPIRED for gone", events)
	}

	if err := svc.SignOut(context.Background(), ""); err == nil {
		t.Error("expected error for empty token")
	}
	if len(events) != 1 {
		t.Errorf("empty token should not publish, got %d events", len(events))
	}
}

func TestRegister_HashesPasswordAndCreatesUser(t *testing.T) {
	var created *model.User
	svc := newTestService(&mockUserRepo{
		createFn: func(_ context.Context, u *model.User) error {
			created = u
			return nil
		},
	}, &mockSessionRepo{})

	user, err := svc.Register(context.Background(), "demo@example.com", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user != created {
		t.Fatal("returned user should be the persisted one")
	}
	if user.ID == "" || user.PasswordHash == "password123" {
		t.Errorf("user = %+v", user)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService(&mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			if email == "taken@example.com" {
				return &model.User{ID: "u"}, nil
			}
			return nil, nil
		},
	}, &mockSessionRepo{})

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", " ", "password123"},
		{"short password", "demo@example.com", "123"},
		{"duplicate", "taken@example.com", "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tt.email, tt.password); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGuardedRows_RequiresSession(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string, _ time.Time) (*model.Session, error) {
			if id == "valid" {
				return &model.Session{ID: id}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(&mockUserRepo{}, sessions)
	rows := &mockRowRepo{listFn: func(context.Context) ([]model.Row, error) {
		return []model.Row{{ID: 2}, {ID: 1}}, nil
	}}
	client := Backend(svc, rows)
	if err := client.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	got, err := client.Rows.ListRows(context.Background(), "valid")
	if err != nil || len(got) != 2 {
		t.Errorf("ListRows(valid) = %v, %v", got, err)
	}

	var kinds []backend.EventKind
	svc.Subscribe(func(ev backend.AuthEvent) { kinds = append(kinds, ev.Kind) })

	_, err = client.Rows.ListRows(context.Background(), "expired")
	be, ok := backend.AsError(err)
	if !ok || be.Status != 401 {
		t.Errorf("ListRows(expired) err = %v, want 401 backend error", err)
	}
	if len(kinds) != 1 || kinds[0] != backend.EventTokenExpired {
		t.Errorf("kinds = %v, want [TOKEN_EXPIRED]", kinds)
	}
}

func TestGuardedRows_ExpiredSession_ReturnsGateToLogin(t *testing.T) {
	now := fixedNow
	var stored *model.Session
	sessions := &mockSessionRepo{
		createFn: func(_ context.Context, s *model.Session) error {
			stored = s
			return nil
		},
		findByIDFn: func(_ context.Context, id string, at time.Time) (*model.Session, error) {
			if stored == nil || stored.ID != id || !at.Before(stored.ExpiresAt) {
				return nil, nil
			}
			return stored, nil
		},
	}
	users := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hashPassword(t, "password123")}, nil
		},
	}
	svc := NewService(users, sessions, ServiceConfig{
		SessionMaxAge: 3600,
		BcryptCost:    bcrypt.MinCost,
		Now:           func() time.Time { return now },
	})
	client := Backend(svc, &mockRowRepo{})

	src := gate.NewTokenSource(client.Auth, "")
	g := gate.New(src)
	g.Start(context.Background())
	defer g.Stop()

	session, err := client.Auth.SignInWithPassword(context.Background(), "demo@example.com", "password123")
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}
	if g.Variant() != gate.VariantDashboard {
		t.Fatalf("Variant() after sign-in = %q, want dashboard", g.Variant())
	}

	now = now.Add(2 * time.Hour)
	if _, err := client.Rows.ListRows(context.Background(), session.ID); err == nil {
		t.Fatal("expected error for expired session")
	}
	if src.Token() != "" {
		t.Errorf("Token() = %q, want empty after expiry", src.Token())
	}
	if g.Variant() != gate.VariantLogin {
		t.Errorf("Variant() = %q, want login after expiry", g.Variant())
	}
}
