// Package service keeps the live registration composers of every operator
// session, writes their form state through to a draft store and restores
// it after a restart.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/composer"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/repository"
)

// ErrNotFound is returned for unknown, closed or expired composer sessions.
var ErrNotFound = errors.New("composer session not found")

// DraftStore persists composer form state.
type DraftStore interface {
	Save(ctx context.Context, d model.Draft) error
	Get(ctx context.Context, id string) (*model.Draft, error)
	Delete(ctx context.Context, id string) error
}

// Purger is implemented by draft stores that need expired rows removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Collaborators are the remote services every composer talks to.
type Collaborators struct {
	Orders    composer.OrderAPI
	Courses   composer.CourseDirectory
	Customers composer.CustomerDirectory
}

type session struct {
	c        *composer.Composer
	lastUsed time.Time
}

// ComposerService orchestrates composer sessions.
type ComposerService struct {
	remote  Collaborators
	drafts  DraftStore
	idleTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	revision atomic.Int64
}

// NewComposerService constructs a ComposerService. Sessions untouched for
// idleTTL are dropped from memory by Sweep; their drafts stay in the store
// until the store expires them.
func NewComposerService(remote Collaborators, drafts DraftStore, idleTTL time.Duration, logger *slog.Logger) *ComposerService {
	return &ComposerService{
		remote:   remote,
		drafts:   drafts,
		idleTTL:  idleTTL,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// OrdersRevision increases every time a registration is created. Clients
// refetch their order list when it changes.
func (s *ComposerService) OrdersRevision() int64 {
	return s.revision.Load()
}

func (s *ComposerService) newSession(id string, d *model.Draft) *session {
	deps := composer.Deps{
		Orders:    s.remote.Orders,
		Courses:   s.remote.Courses,
		Customers: s.remote.Customers,
		Notifier:  noticeLog{logger: s.logger.With("composer_id", id)},
		OnRegistered: func() {
			rev := s.revision.Add(1)
			s.logger.Info("registration created, order list changed", "composer_id", id, "orders_revision", rev)
		},
	}
	sess := &session{lastUsed: s.now()}
	if d != nil {
		sess.c = composer.Restore(deps, *d)
	} else {
		sess.c = composer.New(deps)
	}
	return sess
}

// Open starts a new composer session.
func (s *ComposerService) Open(ctx context.Context) (string, composer.State, error) {
	id := uuid.New().String()
	sess := s.newSession(id, nil)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.save(ctx, id, sess)
	s.logger.Info("composer opened", "composer_id", id)
	return id, s.state(id, sess), nil
}

// load returns the live session for id, restoring it from the draft store
// when it is not in memory. The store is read without holding the registry
// lock.
func (s *ComposerService) load(ctx context.Context, id string) (*session, error) {
	if sess := s.live(id); sess != nil {
		return sess, nil
	}

	d, err := s.drafts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load draft: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.lastUsed = s.now()
		return sess, nil
	}
	sess := s.newSession(id, d)
	s.sessions[id] = sess
	s.logger.Info("composer restored from draft", "composer_id", id)
	return sess, nil
}

func (s *ComposerService) live(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	sess.lastUsed = s.now()
	return sess
}

func (s *ComposerService) state(id string, sess *session) composer.State {
	st := sess.c.State()
	st.Draft.ID = id
	return st
}

// save writes through the form state. Draft storage is best effort: a
// failure is logged and the live composer keeps working. A closed composer
// has no draft left to write.
func (s *ComposerService) save(ctx context.Context, id string, sess *session) {
	st := sess.c.State()
	if st.Closed {
		return
	}
	d := st.Draft
	d.ID = id
	if err := s.drafts.Save(ctx, d); err != nil {
		s.logger.Warn("save draft failed", "composer_id", id, "error", err)
		return
	}
	// A submit that succeeded during the write has already deleted the draft.
	if sess.c.Closed() {
		if err := s.drafts.Delete(ctx, id); err != nil {
			s.logger.Warn("delete draft failed", "composer_id", id, "error", err)
		}
	}
}

func (s *ComposerService) forget(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	if err := s.drafts.Delete(ctx, id); err != nil {
		s.logger.Warn("delete draft failed", "composer_id", id, "error", err)
	}
}

// mutate applies fn to the composer of id and saves the result.
func (s *ComposerService) mutate(ctx context.Context, id string, fn func(c *composer.Composer) error) (composer.State, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return composer.State{}, err
	}
	if err := fn(sess.c); err != nil {
		if errors.Is(err, composer.ErrClosed) {
			return composer.State{}, ErrNotFound
		}
		return composer.State{}, err
	}
	s.save(ctx, id, sess)
	return s.state(id, sess), nil
}

// View returns the current state of a session.
func (s *ComposerService) View(ctx context.Context, id string) (composer.State, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return composer.State{}, err
	}
	return s.state(id, sess), nil
}

// Close discards a session. An in-flight submission is not cancelled.
func (s *ComposerService) Close(ctx context.Context, id string) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	sess.c.Close()
	s.forget(ctx, id)
	s.logger.Info("composer closed", "composer_id", id)
	return nil
}

// AddCourseSlot appends an empty course slot.
func (s *ComposerService) AddCourseSlot(ctx context.Context, id string) (composer.State, error) {
	return s.mutate(ctx, id, func(c *composer.Composer) error { return c.AddCourseSlot() })
}

// RemoveCourseSlot removes the slot at index.
func (s *ComposerService) RemoveCourseSlot(ctx context.Context, id string, index int) (composer.State, error) {
	return s.mutate(ctx, id, func(c *composer.Composer) error { return c.RemoveCourseSlot(index) })
}

// SetCourseAt sets the course of the slot at index.
func (s *ComposerService) SetCourseAt(ctx context.Context, id string, index int, courseID string) (composer.State, error) {
	return s.mutate(ctx, id, func(c *composer.Composer) error { return c.SetCourseAt(index, courseID) })
}

// SelectExistingCustomer selects a directory customer.
func (s *ComposerService) SelectExistingCustomer(ctx context.Context, id, customerID string) (composer.State, error) {
	return s.mutate(ctx, id, func(c *composer.Composer) error { return c.SelectExistingCustomer(customerID) })
}

// ClearExistingCustomer returns to inline customer entry.
func (s *ComposerService) ClearExistingCustomer(ctx context.Context, id string) (composer.State, error) {
	return s.mutate(ctx, id, func(c *composer.Composer) error { return c.ClearExistingCustomer() })
}

// SetInlineField updates one inline customer field.
func (s *ComposerService) SetInlineField(ctx context.Context, id, field, value string) (composer.State, error) {
	return s.mutate(ctx, id, func(c *composer.Composer) error { return c.SetInlineField(field, value) })
}

// SetPayment records the payment method and note.
func (s *ComposerService) SetPayment(ctx context.Context, id string, method model.PaymentMethod, note string) (composer.State, error) {
	return s.mutate(ctx, id, func(c *composer.Composer) error {
		if err := c.SetPaymentMethod(method); err != nil {
			return err
		}
		return c.SetNote(note)
	})
}

// CourseFilterUpdate carries the filter fields to change; nil fields are kept.
type CourseFilterUpdate struct {
	SearchText  *string
	Status      *string
	BasicStatus *string
}

// UpdateCourseFilter changes the course search filter.
func (s *ComposerService) UpdateCourseFilter(ctx context.Context, id string, u CourseFilterUpdate) (composer.State, error) {
	return s.mutate(ctx, id, func(c *composer.Composer) error {
		if u.SearchText != nil {
			if err := c.SetCourseSearchText(*u.SearchText); err != nil {
				return err
			}
		}
		if u.Status != nil {
			if err := c.SetCourseStatus(*u.Status); err != nil {
				return err
			}
		}
		if u.BasicStatus != nil {
			if err := c.SetCourseBasicStatus(*u.BasicStatus); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetCourseFilter restores the unfiltered course search.
func (s *ComposerService) ResetCourseFilter(ctx context.Context, id string) (composer.State, error) {
	return s.mutate(ctx, id, func(c *composer.Composer) error { return c.ResetCourseFilter() })
}

// SearchCourses runs the session's course filter.
func (s *ComposerService) SearchCourses(ctx context.Context, id string) (*model.CoursePage, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	page, err := sess.c.SearchCourses(ctx)
	if err != nil {
		if errors.Is(err, composer.ErrClosed) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.save(ctx, id, sess)
	return page, nil
}

// SearchCustomers queries the customer directory for a session.
func (s *ComposerService) SearchCustomers(ctx context.Context, id string, f model.CustomerFilter) (*model.CustomerPage, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	page, err := sess.c.SearchCustomers(ctx, f)
	if errors.Is(err, composer.ErrClosed) {
		return nil, ErrNotFound
	}
	return page, err
}

// Submit sends the session's registration. The returned notice is the
// message this call raised, if any. On success the session ends.
//
// The order call does not follow ctx cancellation: once issued it runs to
// completion, bounded by the admin client's timeout.
func (s *ComposerService) Submit(ctx context.Context, id string) (*model.Notice, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	notice, err := sess.c.SubmitNotice(context.WithoutCancel(ctx))
	switch {
	case err == nil:
		s.forget(ctx, id)
	case errors.Is(err, composer.ErrClosed):
		return nil, ErrNotFound
	}
	return notice, err
}

// Sweep drops sessions idle for longer than the idle TTL from memory and
// purges expired drafts from stores that need it.
func (s *ComposerService) Sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var dropped int
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) && !sess.c.State().InFlight {
			delete(s.sessions, id)
			dropped++
		}
	}
	s.mu.Unlock()
	if dropped > 0 {
		s.logger.Info("idle composers dropped", "count", dropped)
	}

	if p, ok := s.drafts.(Purger); ok {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			s.logger.Warn("purge drafts failed", "error", err)
		} else if n > 0 {
			s.logger.Info("expired drafts purged", "count", n)
		}
	}
}

// Run sweeps every interval until ctx is done.
func (s *ComposerService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
