package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
)

// MemoryDraftRepository keeps drafts in process memory. Drafts older than
// the TTL are treated as missing.
type MemoryDraftRepository struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	drafts map[string]model.Draft
}

// NewMemoryDraftRepository constructs a MemoryDraftRepository.
func NewMemoryDraftRepository(ttl time.Duration) *MemoryDraftRepository {
	return &MemoryDraftRepository{ttl: ttl, now: time.Now, drafts: make(map[string]model.Draft)}
}

// Save stores d, replacing any draft with the same ID.
func (r *MemoryDraftRepository) Save(ctx context.Context, d model.Draft) error {
	if err := validateDraft(d); err != nil {
		return err
	}
	stamp(&d, r.now())
	d.Courses = append([]model.CourseSlot{}, d.Courses...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[d.ID] = d
	return nil
}

// Get returns the draft with id or ErrNotFound.
func (r *MemoryDraftRepository) Get(ctx context.Context, id string) (*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.ttl > 0 && r.now().Sub(d.UpdatedAt) > r.ttl {
		delete(r.drafts, id)
		return nil, ErrNotFound
	}
	d.Courses = append([]model.CourseSlot{}, d.Courses...)
	return &d, nil
}

// Delete removes the draft with id. Deleting a missing draft is not an error.
func (r *MemoryDraftRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, id)
	return nil
}
