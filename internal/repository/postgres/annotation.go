package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/marginalia/internal/models"
)

type AnnotationStore struct {
	pool *pgxpool.Pool
}

func NewAnnotationStore(pool *pgxpool.Pool) *AnnotationStore {
	return &AnnotationStore{pool: pool}
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row scanner) (*models.Annotation, error) {
	var (
		doc              []byte
		created, updated time.Time
	)
	if err := row.Scan(&doc, &created, &updated); err != nil {
		return nil, err
	}
	var ann models.Annotation
	if err := json.Unmarshal(doc, &ann); err != nil {
		return nil, fmt.Errorf("decode annotation: %w", err)
	}
	ann.Created = created.UTC().Format(time.RFC3339Nano)
	ann.Updated = updated.UTC().Format(time.RFC3339Nano)
	return &ann, nil
}

func encode(ann models.Annotation) ([]byte, error) {
	ann = ann.ForAPI()
	ann.Created, ann.Updated = "", ""
	doc, err := json.Marshal(ann)
	if err != nil {
		return nil, fmt.Errorf("encode annotation: %w", err)
	}
	return doc, nil
}

func (s *AnnotationStore) Create(ctx context.Context, ann models.Annotation) (*models.Annotation, error) {
	ann.ID = uuid.NewString()
	doc, err := encode(ann)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO annotations (id, group_id, user_id, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING document, created_at, updated_at`

	created, err := scanAnnotation(s.pool.QueryRow(ctx, query, ann.ID, ann.Group, ann.User, doc))
	if err != nil {
		return nil, fmt.Errorf("insert annotation: %w", err)
	}
	return created, nil
}

func (s *AnnotationStore) Get(ctx context.Context, id string) (*models.Annotation, error) {
	query := `
		SELECT document, created_at, updated_at
		FROM annotations
		WHERE id = $1`

	ann, err := scanAnnotation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get annotation: %w", err)
	}
	return ann, nil
}

func (s *AnnotationStore) Update(ctx context.Context, ann models.Annotation) (*models.Annotation, error) {
	doc, err := encode(ann)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE annotations
		SET document = $2, group_id = $3, updated_at = now()
		WHERE id = $1
		RETURNING document, created_at, updated_at`

	updated, err := scanAnnotation(s.pool.QueryRow(ctx, query, ann.ID, doc, ann.Group))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update annotation: %w", err)
	}
	return updated, nil
}

func (s *AnnotationStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM annotations WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete annotation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *AnnotationStore) ListByGroup(ctx context.Context, group string, limit int) ([]models.Annotation, error) {
	query := `
		SELECT document, created_at, updated_at
		FROM annotations
		WHERE group_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, group, limit)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	anns := make([]models.Annotation, 0)
	for rows.Next() {
		ann, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		anns = append(anns, *ann)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}

	return anns, nil
}

func (s *AnnotationStore) CountByGroup(ctx context.Context, group string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM annotations WHERE group_id = $1`, group).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count annotations: %w", err)
	}
	return n, nil
}
