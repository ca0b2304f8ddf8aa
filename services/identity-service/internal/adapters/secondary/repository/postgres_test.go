package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/domain"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepo) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock, NewPostgresRepo(mock)
}

func TestSave(t *testing.T) {
	mock, repo := newMock(t)
	user := &domain.User{ID: "u1", Email: "alice@example.com", Username: "alice", PasswordHash: "h", CreatedAt: time.Now().UTC()}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(user.ID, user.Email, user.Username, user.PasswordHash, user.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), user))
}

func TestSave_UniqueViolation(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Save(context.Background(), &domain.User{ID: "u1"})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestGetByEmail(t *testing.T) {
	mock, repo := newMock(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at"}).
			AddRow("u1", "alice@example.com", "alice", "h", created))

	u, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, &domain.User{ID: "u1", Email: "alice@example.com", Username: "alice", PasswordHash: "h", CreatedAt: created}, u)
}

func TestGetByID_NotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestGetByID_DBError(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)
}
