package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/domain"
)

// DB est le sous-ensemble de *pgxpool.Pool utilisé ici (pgxmock en test).
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// sqlUser sert de tampon entre la base et le domaine.
type sqlUser struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

const userColumns = `id, email, username, password_hash, created_at`

type PostgresRepo struct {
	db DB
}

func NewPostgresRepo(db DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// EnsureSchema crée la table users si besoin (idempotent).
func EnsureSchema(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Save(ctx context.Context, user *domain.User) error {
	q := `
		INSERT INTO users (id, email, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.Exec(ctx, q, user.ID, user.Email, user.Username, user.PasswordHash, user.CreatedAt); err != nil {
		return handleError(err)
	}
	return nil
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, q, email))
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, q, id))
}

// --- HELPERS ---

func scanUser(row pgx.Row) (*domain.User, error) {
	var u sqlUser
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db: scan user: %w", err)
	}
	return &domain.User{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}, nil
}

// handleError traduit les codes PostgreSQL en erreurs du domaine.
func handleError(err error) error {
	var pgErr *pgconn.PgError
	// 23505 = unique_violation (email ou username)
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrUserAlreadyExists
	}
	return fmt.Errorf("db: %w", err)
}
