package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Domenick1991/busbooking/internal/domain"
)

type userRecord struct {
	ID           int64     `db:"id"`
	FullName     string    `db:"full_name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// SQLUserRepository stores users through database/sql, so the same code
// serves lib/pq in production and the embedded SQLite database.
type SQLUserRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLUserRepository(db *sqlx.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *SQLUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := r.db.Rebind(`INSERT INTO users (full_name, email, password_hash, created_at) VALUES (?, ?, ?, ?) RETURNING id`)

	created := r.now()
	var id int64
	err := r.db.QueryRowxContext(ctx, query, user.FullName, user.Email, user.PasswordHash, created).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create user %q: %w", user.FullName, domain.ErrDuplicateUser)
		}
		return classify("failed to create user", err)
	}
	user.ID = id
	user.CreatedAt = created
	return nil
}

func (r *SQLUserRepository) GetByName(ctx context.Context, name string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT id, full_name, email, password_hash, created_at FROM users WHERE full_name = ?`, name)
}

func (r *SQLUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT id, full_name, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (r *SQLUserRepository) getOne(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	var rec userRecord
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %v: %w", arg, domain.ErrNotFound)
	}
	if err != nil {
		return nil, classify("failed to get user", err)
	}
	return &domain.User{
		ID:           rec.ID,
		FullName:     rec.FullName,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return isSQLiteUniqueViolation(err)
}

var _ UserRepository = (*SQLUserRepository)(nil)
