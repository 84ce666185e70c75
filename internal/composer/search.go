package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
)

var errNoDirectory = errors.New("directory not configured")

// SetCourseSearchText narrows the course search to titles matching text.
func (c *Composer) SetCourseSearchText(text string) error {
	return c.updateFilter(func(f *model.CourseFilter) { f.SearchText = strings.TrimSpace(text) })
}

// SetCourseStatus filters courses by publication status. "" means any.
func (c *Composer) SetCourseStatus(status string) error {
	switch status {
	case "", model.CourseStatusPublished, model.CourseStatusDraft, model.CourseStatusUpcoming:
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidFilter, status)
	}
	return c.updateFilter(func(f *model.CourseFilter) { f.Status = status })
}

// SetCourseBasicStatus filters courses by paid or free. "" means any.
func (c *Composer) SetCourseBasicStatus(basic string) error {
	switch basic {
	case "", model.BasicStatusFree, model.BasicStatusPaid:
	default:
		return fmt.Errorf("%w: basicStatus %q", ErrInvalidFilter, basic)
	}
	return c.updateFilter(func(f *model.CourseFilter) { f.BasicStatus = basic })
}

// ResetCourseFilter restores the unfiltered course search.
func (c *Composer) ResetCourseFilter() error {
	return c.updateFilter(func(f *model.CourseFilter) { *f = model.DefaultCourseFilter() })
}

// Every filter change goes back to the first page.
func (c *Composer) updateFilter(apply func(f *model.CourseFilter)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	apply(&c.filter)
	c.filter.Page = 1
	return nil
}

// SearchCourses runs the current course filter against the course directory
// and makes the results the set SetCourseAt accepts.
func (c *Composer) SearchCourses(ctx context.Context) (*model.CoursePage, error) {
	if c.deps.Courses == nil {
		return nil, fmt.Errorf("course search: %w", errNoDirectory)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	filter := c.filter
	c.mu.Unlock()

	page, err := c.deps.Courses.ListCourses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("course search: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.options = append([]model.CourseSummary(nil), page.Courses...)
	c.optionIDs = make(map[string]struct{}, len(page.Courses))
	for _, course := range page.Courses {
		c.optionIDs[course.ID] = struct{}{}
	}
	return page, nil
}

// SearchCustomers queries the customer directory. It does not change the form.
func (c *Composer) SearchCustomers(ctx context.Context, f model.CustomerFilter) (*model.CustomerPage, error) {
	if c.deps.Customers == nil {
		return nil, fmt.Errorf("customer search: %w", errNoDirectory)
	}
	if c.Closed() {
		return nil, ErrClosed
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 10
	}
	f.Search = strings.TrimSpace(f.Search)

	page, err := c.deps.Customers.ListCustomers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("customer search: %w", err)
	}
	return page, nil
}
