package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
)

const postsTable = "posts"

var postColumns = []string{
	"id", "run_id", "title", "slug", "content", "excerpt", "tags", "status", "created_at", "published_at",
}

// PostgresPostRepository persists published posts into Postgres.
type PostgresPostRepository struct {
	db querier
}

var _ ports.PostRepository = (*PostgresPostRepository)(nil)

// NewPostgresPostRepository wires a pgx pool implementation.
func NewPostgresPostRepository(db querier) *PostgresPostRepository {
	return &PostgresPostRepository{db: db}
}

// Slugs returns every slug in use.
func (r *PostgresPostRepository) Slugs(ctx context.Context) ([]string, error) {
	sql, args, err := psql.Select("slug").From(postsTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build slugs query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query slugs: %w", err)
	}
	slugs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan slugs: %w", err)
	}
	return slugs, nil
}

// FindByRun returns the post created for runID, if any.
func (r *PostgresPostRepository) FindByRun(ctx context.Context, runID string) (*domain.Post, error) {
	if runID == "" {
		return nil, nil
	}
	sql, args, err := psql.Select(postColumns...).From(postsTable).Where(sq.Eq{"run_id": runID}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build post query: %w", err)
	}
	post, err := scanPost(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query post for run %s: %w", runID, err)
	}
	return &post, nil
}

// Insert stores post, mapping unique violations to domain sentinels.
func (r *PostgresPostRepository) Insert(ctx context.Context, post domain.Post) (domain.Post, error) {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	var runID any
	if post.RunID != "" {
		runID = post.RunID
	}
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}

	sql, args, err := psql.Insert(postsTable).Columns(postColumns...).
		Values(post.ID, runID, post.Title, post.Slug, post.Content, post.Excerpt, tags, string(post.Status), post.CreatedAt, post.PublishedAt).
		Suffix("RETURNING " + strings.Join(postColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.Post{}, fmt.Errorf("build post insert: %w", err)
	}

	stored, err := scanPost(r.db.QueryRow(ctx, sql, args...))
	if name, ok := constraintViolation(err); ok {
		switch name {
		case "posts_slug_key":
			return domain.Post{}, domain.ErrSlugTaken
		case "posts_run_id_key":
			return domain.Post{}, domain.ErrPostExists
		}
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("insert post: %w", err)
	}
	return stored, nil
}

func scanPost(row pgx.Row) (domain.Post, error) {
	var (
		post   domain.Post
		runID  *string
		status string
	)
	if err := row.Scan(&post.ID, &runID, &post.Title, &post.Slug, &post.Content, &post.Excerpt,
		&post.Tags, &status, &post.CreatedAt, &post.PublishedAt); err != nil {
		return domain.Post{}, err
	}
	if runID != nil {
		post.RunID = *runID
	}
	post.Status = domain.PostStatus(status)
	return post, nil
}
