package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
)

// PostgresDraftRepository stores drafts as JSONB rows in composer_drafts.
type PostgresDraftRepository struct {
	db  *pgxpool.Pool
	ttl time.Duration
}

// NewPostgresDraftRepository constructs a PostgresDraftRepository.
func NewPostgresDraftRepository(db *pgxpool.Pool, ttl time.Duration) *PostgresDraftRepository {
	return &PostgresDraftRepository{db: db, ttl: ttl}
}

// Save upserts d.
func (r *PostgresDraftRepository) Save(ctx context.Context, d model.Draft) error {
	if err := validateDraft(d); err != nil {
		return err
	}
	stamp(&d, time.Now())

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO composer_drafts (id, data, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		d.ID, data, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Get returns the draft with id or ErrNotFound. Expired rows are ignored.
func (r *PostgresDraftRepository) Get(ctx context.Context, id string) (*model.Draft, error) {
	var data []byte
	err := r.db.QueryRow(ctx,
		`SELECT data FROM composer_drafts WHERE id = $1 AND updated_at > $2`,
		id, time.Now().UTC().Add(-r.ttl),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}

	var d model.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

// Delete removes the draft with id.
func (r *PostgresDraftRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM composer_drafts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// PurgeExpired deletes drafts not updated within the TTL and returns how many
// were removed.
func (r *PostgresDraftRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM composer_drafts WHERE updated_at <= $1`,
		time.Now().UTC().Add(-r.ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("purge drafts: %w", err)
	}
	return tag.RowsAffected(), nil
}
