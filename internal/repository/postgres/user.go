package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/identity-service/internal/domain"
	"github.com/ignite/identity-service/internal/service/user"
)

const userColumns = `id, username, email, password_hash, role, status, created_at, updated_at`

// UserRepo implements user.Repository against PostgreSQL.
type UserRepo struct{ db *sql.DB }

// NewUserRepo creates a Postgres-backed user repository.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := runnerFrom(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row, "get user by id")
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := runnerFrom(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)
	return scanUser(row, "get user by username")
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := runnerFrom(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row, "get user by email")
}

func (r *UserRepo) FindAll(ctx context.Context) ([]*domain.User, error) {
	rows, err := runnerFrom(ctx, r.db).QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows, "scan user")
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// Save upserts the aggregate keyed by id. Unique-constraint violations map
// to the service sentinels by constraint name. After a successful write the
// aggregate is handed to the unit of work's entity tracker so its pending
// events flush at commit time.
func (r *UserRepo) Save(ctx context.Context, u *domain.User) error {
	_, err := runnerFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			username      = EXCLUDED.username,
			email         = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			role          = EXCLUDED.role,
			status        = EXCLUDED.status,
			updated_at    = EXCLUDED.updated_at
	`, u.ID(), u.Username(), u.Email().Address(), u.PasswordHash(),
		string(u.Role()), string(u.State().Tag()), u.CreatedAt(), u.UpdatedAt())
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("save user: %w", err)
	}

	if tracker := trackerFrom(ctx); tracker != nil {
		if err := tracker.Track(ctx, u); err != nil {
			return fmt.Errorf("track user events: %w", err)
		}
	}
	return nil
}

// mapUniqueViolation translates a 23505 into the violated field's sentinel.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch {
	case strings.Contains(pqErr.Constraint, "username"):
		return user.ErrUsernameTaken
	case strings.Contains(pqErr.Constraint, "email"):
		return user.ErrEmailTaken
	default:
		return fmt.Errorf("unique violation on %s: %w", pqErr.Constraint, err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, op string) (*domain.User, error) {
	var (
		id                   uuid.UUID
		username, email      string
		passwordHash         string
		roleStr, statusStr   string
		createdAt, updatedAt sql.NullTime
	)
	err := row.Scan(&id, &username, &email, &passwordHash, &roleStr, &statusStr, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	role, err := domain.ParseRole(roleStr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	state, err := domain.StateFromTag(domain.StateTag(statusStr), email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return domain.ReconstructUser(id, username, passwordHash, role, state, createdAt.Time, updatedAt.Time), nil
}
