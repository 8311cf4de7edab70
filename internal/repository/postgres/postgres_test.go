package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/identity-service/internal/domain"
	"github.com/ignite/identity-service/internal/pkg/clock"
	"github.com/ignite/identity-service/internal/pkg/ids"
	"github.com/ignite/identity-service/internal/service/outbox"
	"github.com/ignite/identity-service/internal/service/user"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newTestUoW(db *sql.DB) *UnitOfWork {
	gen := ids.NewV7()
	clk := clock.Fixed{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewUnitOfWork(db, NewOutboxStore(db), gen, clk)
}

func TestUnitOfWorkCommitsUserAndEnvelopeTogether(t *testing.T) {
	db, mock := setupTestDB(t)
	uow := newTestUoW(db)
	repo := NewUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox_envelopes").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := uow.Execute(context.Background(), func(ctx context.Context) error {
		u, err := domain.NewUser(uuid.New(), "alice", domain.NewUnverifiedEmail("alice@example.com"),
			"$2a$10$hash", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
		if err != nil {
			return err
		}
		return repo.Save(ctx, u)
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUnitOfWorkRollsBackAndKeepsOriginalError(t *testing.T) {
	db, mock := setupTestDB(t)
	uow := newTestUoW(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("domain said no")
	err := uow.Execute(context.Background(), func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v, want the closure's error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUnitOfWorkSkipsOutboxWhenNoEvents(t *testing.T) {
	db, mock := setupTestDB(t)
	uow := newTestUoW(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := uow.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUserRepoSaveMapsUniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"username conflict", "users_username_key", user.ErrUsernameTaken},
		{"email conflict", "users_email_key", user.ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupTestDB(t)
			repo := NewUserRepo(db)

			mock.ExpectExec("INSERT INTO users").
				WillReturnError(&pq.Error{Code: "23505", Constraint: tt.constraint})

			u, err := domain.NewUser(uuid.New(), "alice", domain.NewUnverifiedEmail("alice@example.com"),
				"$2a$10$hash", time.Now().UTC())
			if err != nil {
				t.Fatalf("NewUser() error: %v", err)
			}
			if err := repo.Save(context.Background(), u); !errors.Is(err, tt.want) {
				t.Errorf("Save() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUserRepoFindByIDNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewUserRepo(db)

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.FindByID(context.Background(), id); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("FindByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserRepoFindByIDRehydratesState(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewUserRepo(db)

	id := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "role", "status", "created_at", "updated_at",
	}).AddRow(id, "alice", "alice@example.com", "$2a$10$hash", "admin", "suspended_by_admin", now, now)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(id).
		WillReturnRows(rows)

	u, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID() error: %v", err)
	}
	if u.Role() != domain.RoleAdmin {
		t.Errorf("role = %s, want admin", u.Role())
	}
	if u.State().Tag() != domain.StateSuspendedByAdmin {
		t.Errorf("state = %s, want suspended_by_admin", u.State().Tag())
	}
}

func TestLeasePendingRequiresTransaction(t *testing.T) {
	db, _ := setupTestDB(t)
	store := NewOutboxStore(db)

	if _, err := store.LeasePending(context.Background(), 10); !errors.Is(err, outbox.ErrNoTransaction) {
		t.Fatalf("LeasePending() outside a transaction: error = %v, want ErrNoTransaction", err)
	}
}

func TestLeasePendingLocksDueEnvelopes(t *testing.T) {
	db, mock := setupTestDB(t)
	uow := newTestUoW(db)
	store := NewOutboxStore(db)

	envID := uuid.New()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "payload", "status", "trace_id", "created_at",
		"processed_at", "retry_count", "next_attempt_at", "last_attempted_at",
	}).AddRow(envID, "UserEvent::Created", []byte(`{}`), "pending", nil, created,
		nil, 0, created, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(10).
		WillReturnRows(rows)
	mock.ExpectCommit()

	var leased []domain.Envelope
	err := uow.Execute(context.Background(), func(ctx context.Context) error {
		var err error
		leased, err = store.LeasePending(ctx, 10)
		return err
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(leased) != 1 {
		t.Fatalf("leased %d envelopes, want 1", len(leased))
	}
	if leased[0].ID != envID {
		t.Errorf("leased id = %s, want %s", leased[0].ID, envID)
	}
	if leased[0].Status != domain.EnvelopePending {
		t.Errorf("status = %s, want pending", leased[0].Status)
	}
	if leased[0].NextAttemptAt == nil || !leased[0].NextAttemptAt.Equal(created) {
		t.Errorf("next_attempt_at = %v, want %v", leased[0].NextAttemptAt, created)
	}
}

func TestMarkHandledIgnoresDuplicates(t *testing.T) {
	db, mock := setupTestDB(t)
	store := NewOutboxStore(db)

	envID := uuid.New()
	at := time.Now().UTC()

	// ON CONFLICT DO NOTHING reports zero affected rows for a duplicate.
	mock.ExpectExec("INSERT INTO processed_handler_executions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.MarkHandled(context.Background(), "SendWelcomeEmail", envID, at); err != nil {
		t.Fatalf("MarkHandled() error: %v", err)
	}
}
