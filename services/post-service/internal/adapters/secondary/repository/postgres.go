package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/ports"
)

// DB est le sous-ensemble de *pgxpool.Pool utilisé ici (pgxmock en test).
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const postColumns = `id, user_id, content, media_ids, created_at`

type PostgresRepo struct {
	db DB
}

func NewPostgresRepo(db DB) ports.PostRepository {
	return &PostgresRepo{db: db}
}

// EnsureSchema crée la table et les index si besoin (idempotent).
func EnsureSchema(ctx context.Context, db DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id         UUID PRIMARY KEY,
			user_id    TEXT NOT NULL,
			content    TEXT NOT NULL,
			media_ids  TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS posts_user_created_idx ON posts (user_id, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepo) Insert(ctx context.Context, post *domain.Post) error {
	query := `
		INSERT INTO posts (id, user_id, content, media_ids, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, post.ID, post.UserID, post.Content, post.MediaIDs, post.CreatedAt)
	if err != nil {
		return storageErr("insert post", err)
	}
	return nil
}

func (r *PostgresRepo) FindByID(ctx context.Context, postID string) (*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return r.scanPost(r.db.QueryRow(ctx, query, postID))
}

// FindByOwnerAndID : le filtre sur user_id est dans la requête, un post d'un autre
// utilisateur est donc "introuvable".
func (r *PostgresRepo) FindByOwnerAndID(ctx context.Context, ownerID, postID string) (*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND user_id = $2`
	return r.scanPost(r.db.QueryRow(ctx, query, postID, ownerID))
}

func (r *PostgresRepo) DeleteByID(ctx context.Context, postID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID)
	if isInvalidID(err) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("delete post", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) ListPage(ctx context.Context, offset, limit int) ([]*domain.Post, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, storageErr("count posts", err)
	}
	if total == 0 || offset >= total {
		return []*domain.Post{}, total, nil
	}

	query := `
		SELECT ` + postColumns + `
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, storageErr("list posts", err)
	}
	posts, err := r.collectRows(rows)
	return posts, total, err
}

// ListByAuthor : PAGINATION KEYSET, pas d'OFFSET sur le profil.
func (r *PostgresRepo) ListByAuthor(ctx context.Context, authorID string, limit int, cursorTime time.Time) ([]*domain.Post, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if cursorTime.IsZero() {
		rows, err = r.db.Query(ctx, `
			SELECT `+postColumns+`
			FROM posts
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, authorID, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT `+postColumns+`
			FROM posts
			WHERE user_id = $1 AND created_at < $2
			ORDER BY created_at DESC
			LIMIT $3
		`, authorID, cursorTime, limit)
	}
	if err != nil {
		return nil, storageErr("list posts by author", err)
	}
	return r.collectRows(rows)
}

// --- Helpers ---

func (r *PostgresRepo) scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	if err := row.Scan(&p.ID, &p.UserID, &p.Content, &p.MediaIDs, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, domain.ErrPostNotFound
		}
		return nil, storageErr("scan post", err)
	}
	return &p, nil
}

func (r *PostgresRepo) collectRows(rows pgx.Rows) ([]*domain.Post, error) {
	defer rows.Close()

	posts := []*domain.Post{}
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.MediaIDs, &p.CreatedAt); err != nil {
			return nil, storageErr("scan post", err)
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate posts", err)
	}
	return posts, nil
}

// isInvalidID : 22P02 (invalid_text_representation), l'id n'est pas un UUID.
func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperr.ErrStorage, op, err)
}
