package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"ContentPipeline/internal/domain"
	"ContentPipeline/internal/ports"
)

const runsTable = "workflow_runs"

var runColumns = []string{
	"id", "status", "topics", "selected_topic", "draft_post", "pending_draft",
	"approval_token", "post_id", "lease_until", "attempts", "last_error",
	"created_at", "updated_at", "topics_sent_at", "topic_selected_at",
	"draft_sent_at", "approved_at", "published_at",
}

// PostgresRunRepository persists workflow runs into Postgres. Status changes
// are single UPDATE statements guarded by the expected status.
type PostgresRunRepository struct {
	db querier
}

var _ ports.RunRepository = (*PostgresRunRepository)(nil)

// NewPostgresRunRepository wires a pgx pool implementation.
func NewPostgresRunRepository(db querier) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

func (r *PostgresRunRepository) Find(ctx context.Context, filter ports.RunFilter) (*domain.WorkflowRun, error) {
	where := sq.Eq{}
	if filter.ID != "" {
		where["id"] = filter.ID
	}
	if filter.Status != "" {
		where["status"] = string(filter.Status)
	}
	if filter.Token != "" {
		where["approval_token"] = filter.Token
	}
	return r.first(ctx, psql.Select(runColumns...).From(runsTable).Where(where).OrderBy("created_at ASC").Limit(1))
}

func (r *PostgresRunRepository) FindOne(ctx context.Context, filter ports.RunFilter) (domain.WorkflowRun, error) {
	run, err := r.Find(ctx, filter)
	if err != nil {
		return domain.WorkflowRun{}, err
	}
	if run == nil {
		return domain.WorkflowRun{}, domain.ErrNotFound
	}
	return *run, nil
}

func (r *PostgresRunRepository) FindActive(ctx context.Context) (*domain.WorkflowRun, error) {
	return r.first(ctx, psql.Select(runColumns...).From(runsTable).
		Where(sq.NotEq{"status": string(domain.StatusPublished)}).
		OrderBy("created_at ASC").
		Limit(1))
}

func (r *PostgresRunRepository) LastPublished(ctx context.Context) (*domain.WorkflowRun, error) {
	return r.first(ctx, psql.Select(runColumns...).From(runsTable).
		Where(sq.Eq{"status": string(domain.StatusPublished)}).
		Where(sq.NotEq{"published_at": nil}).
		OrderBy("published_at DESC").
		Limit(1))
}

func (r *PostgresRunRepository) Insert(ctx context.Context, run domain.WorkflowRun) (domain.WorkflowRun, error) {
	values, err := runValues(run)
	if err != nil {
		return domain.WorkflowRun{}, err
	}
	query := psql.Insert(runsTable).Columns(runColumns...).Values(values...).
		Suffix("RETURNING " + strings.Join(runColumns, ", "))

	stored, err := r.one(ctx, query)
	if name, ok := constraintViolation(err); ok {
		if name == "workflow_runs_single_active" || name == "workflow_runs_pkey" {
			return domain.WorkflowRun{}, domain.ErrActiveRunExists
		}
		return domain.WorkflowRun{}, fmt.Errorf("insert run: %s: %w", name, err)
	}
	if err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("insert run: %w", err)
	}
	return stored, nil
}

func (r *PostgresRunRepository) Update(ctx context.Context, id string, expect domain.RunStatus, patch domain.RunPatch) (domain.WorkflowRun, error) {
	set, err := patchColumns(patch)
	if err != nil {
		return domain.WorkflowRun{}, err
	}
	set["updated_at"] = time.Now().UTC()

	query := psql.Update(runsTable).SetMap(set).
		Where(sq.Eq{"id": id, "status": string(expect)}).
		Suffix("RETURNING " + strings.Join(runColumns, ", "))

	run, err := r.one(ctx, query)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WorkflowRun{}, r.missReason(ctx, id)
	}
	if err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("update run %s: %w", id, err)
	}
	return run, nil
}

func (r *PostgresRunRepository) Claim(ctx context.Context, id string, expect domain.RunStatus, now, until time.Time) (domain.WorkflowRun, error) {
	query := psql.Update(runsTable).
		Set("lease_until", until.UTC()).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id, "status": string(expect)}).
		Where(sq.Or{sq.Eq{"lease_until": nil}, sq.LtOrEq{"lease_until": now.UTC()}}).
		Suffix("RETURNING " + strings.Join(runColumns, ", "))

	run, err := r.one(ctx, query)
	if errors.Is(err, pgx.ErrNoRows) {
		current, findErr := r.Find(ctx, ports.RunFilter{ID: id})
		switch {
		case findErr != nil:
			return domain.WorkflowRun{}, findErr
		case current == nil:
			return domain.WorkflowRun{}, domain.ErrNotFound
		case current.Status != expect:
			return domain.WorkflowRun{}, domain.ErrStaleStatus
		default:
			return domain.WorkflowRun{}, domain.ErrRunBusy
		}
	}
	if err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("claim run %s: %w", id, err)
	}
	return run, nil
}

func (r *PostgresRunRepository) Release(ctx context.Context, id string, until *time.Time, lastErr string) error {
	var lease any
	if until != nil {
		lease = until.UTC()
	}
	sql, args, err := psql.Update(runsTable).
		Set("lease_until", lease).
		Set("last_error", lastErr).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("release run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRunRepository) Delete(ctx context.Context, id string) error {
	sql, args, err := psql.Delete(runsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRunRepository) missReason(ctx context.Context, id string) error {
	current, err := r.Find(ctx, ports.RunFilter{ID: id})
	if err != nil {
		return err
	}
	if current == nil {
		return domain.ErrNotFound
	}
	return domain.ErrStaleStatus
}

func (r *PostgresRunRepository) first(ctx context.Context, query sq.Sqlizer) (*domain.WorkflowRun, error) {
	run, err := r.one(ctx, query)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return &run, nil
}

func (r *PostgresRunRepository) one(ctx context.Context, query sq.Sqlizer) (domain.WorkflowRun, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("build query: %w", err)
	}
	return scanRun(r.db.QueryRow(ctx, sql, args...))
}

func scanRun(row pgx.Row) (domain.WorkflowRun, error) {
	var (
		run                              domain.WorkflowRun
		status                           string
		topics, selected, draft, pending []byte
		postID                           *string
	)
	err := row.Scan(
		&run.ID, &status, &topics, &selected, &draft, &pending,
		&run.ApprovalToken, &postID, &run.LeaseUntil, &run.Attempts, &run.LastError,
		&run.CreatedAt, &run.UpdatedAt, &run.TopicsSentAt, &run.TopicSelectedAt,
		&run.DraftSentAt, &run.ApprovedAt, &run.PublishedAt,
	)
	if err != nil {
		return domain.WorkflowRun{}, err
	}
	run.Status = domain.RunStatus(status)
	if postID != nil {
		run.PostID = *postID
	}
	if err := decodeJSON(topics, &run.Topics); err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("decode topics: %w", err)
	}
	if err := decodeJSON(selected, &run.SelectedTopic); err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("decode selected topic: %w", err)
	}
	if err := decodeJSON(draft, &run.DraftPost); err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("decode draft: %w", err)
	}
	if err := decodeJSON(pending, &run.PendingDraft); err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("decode pending draft: %w", err)
	}
	return run, nil
}

func runValues(run domain.WorkflowRun) ([]any, error) {
	topics, err := encodeJSON(run.Topics)
	if err != nil {
		return nil, err
	}
	selected, err := encodeJSON(run.SelectedTopic)
	if err != nil {
		return nil, err
	}
	draft, err := encodeJSON(run.DraftPost)
	if err != nil {
		return nil, err
	}
	pending, err := encodeJSON(run.PendingDraft)
	if err != nil {
		return nil, err
	}
	var postID any
	if run.PostID != "" {
		postID = run.PostID
	}
	now := time.Now().UTC()
	createdAt, updatedAt := run.CreatedAt, run.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return []any{
		run.ID, string(run.Status), topics, selected, draft, pending,
		run.ApprovalToken, postID, run.LeaseUntil, run.Attempts, run.LastError,
		createdAt, updatedAt, run.TopicsSentAt, run.TopicSelectedAt,
		run.DraftSentAt, run.ApprovedAt, run.PublishedAt,
	}, nil
}

func patchColumns(p domain.RunPatch) (map[string]any, error) {
	set := map[string]any{}
	if p.Status != nil {
		set["status"] = string(*p.Status)
	}
	jsonFields := []struct {
		column string
		value  any
		isSet  bool
	}{
		{"topics", p.Topics, p.Topics != nil},
		{"selected_topic", p.SelectedTopic, p.SelectedTopic != nil},
		{"draft_post", p.DraftPost, p.DraftPost != nil},
		{"pending_draft", p.PendingDraft, p.PendingDraft != nil},
	}
	for _, f := range jsonFields {
		if !f.isSet {
			continue
		}
		raw, err := encodeJSON(f.value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.column, err)
		}
		set[f.column] = raw
	}
	if p.PostID != nil {
		set["post_id"] = *p.PostID
	}
	timestamps := map[string]*time.Time{
		"topics_sent_at":    p.TopicsSentAt,
		"topic_selected_at": p.TopicSelectedAt,
		"draft_sent_at":     p.DraftSentAt,
		"approved_at":       p.ApprovedAt,
		"published_at":      p.PublishedAt,
	}
	for column, t := range timestamps {
		if t != nil {
			set[column] = t.UTC()
		}
	}
	if p.ClearLease {
		set["lease_until"] = nil
		set["attempts"] = 0
		set["last_error"] = ""
	}
	return set, nil
}

// encodeJSON returns nil for nil values so the column stores SQL NULL.
func encodeJSON(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []domain.Topic:
		if t == nil {
			return nil, nil
		}
	case *domain.Topic:
		if t == nil {
			return nil, nil
		}
	case *domain.DraftPost:
		if t == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func decodeJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
