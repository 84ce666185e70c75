// Package repository implements storage for composer drafts: in memory,
// in PostgreSQL through pgx and in Redis.
package repository

import (
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
)

// ErrNotFound is returned when a draft does not exist or has expired.
var ErrNotFound = errors.New("not found")

func validateDraft(d model.Draft) error {
	if d.ID == "" {
		return errors.New("draft id is required")
	}
	return nil
}

// Every save refreshes the draft's expiry.
func stamp(d *model.Draft, now time.Time) {
	d.UpdatedAt = now.UTC()
}
