package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
)

const draftKeyPrefix = "backoffice:composer:draft:"

// RedisDraftRepository stores drafts as JSON strings that expire after the TTL.
type RedisDraftRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDraftRepository constructs a RedisDraftRepository.
func NewRedisDraftRepository(rdb *redis.Client, ttl time.Duration) *RedisDraftRepository {
	return &RedisDraftRepository{rdb: rdb, ttl: ttl}
}

func draftKey(id string) string { return draftKeyPrefix + id }

// Save stores d and resets its expiry.
func (r *RedisDraftRepository) Save(ctx context.Context, d model.Draft) error {
	if err := validateDraft(d); err != nil {
		return err
	}
	stamp(&d, time.Now())

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := r.rdb.Set(ctx, draftKey(d.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Get returns the draft with id or ErrNotFound.
func (r *RedisDraftRepository) Get(ctx context.Context, id string) (*model.Draft, error) {
	data, err := r.rdb.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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
func (r *RedisDraftRepository) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
