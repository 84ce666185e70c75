// Package composer implements the manual registration composer: the form
// state an operator fills in to register a customer for one or more courses,
// its validation, and the single call that creates the order.
package composer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/validation"
)

// OrderAPI creates registrations on the remote admin service.
type OrderAPI interface {
	CreateManualRegistration(ctx context.Context, req model.RegistrationRequest) error
}

// CourseDirectory lists courses an operator can pick from.
type CourseDirectory interface {
	ListCourses(ctx context.Context, f model.CourseFilter) (*model.CoursePage, error)
}

// CustomerDirectory lists existing customers.
type CustomerDirectory interface {
	ListCustomers(ctx context.Context, f model.CustomerFilter) (*model.CustomerPage, error)
}

// Notifier receives success and error messages meant for the operator.
type Notifier interface {
	Notify(n model.Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(model.Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n model.Notice) { f(n) }

// Deps are the collaborators of a Composer. Orders is required; the
// directories are only needed for searches.
type Deps struct {
	Orders    OrderAPI
	Courses   CourseDirectory
	Customers CustomerDirectory
	Notifier  Notifier

	// OnRegistered runs after the order API accepted a registration, so the
	// caller can refresh its order list.
	OnRegistered func()
}

// Inline customer field names accepted by SetInlineField.
const (
	FieldName  = "name"
	FieldEmail = "email"
	FieldPhone = "phone"
)

// Composer holds one operator's registration form. It is safe for
// concurrent use; edits stay live while a submission is in flight.
type Composer struct {
	deps Deps

	mu            sync.Mutex
	selectedRef   string
	inline        model.InlineCustomer
	slots         []model.CourseSlot
	paymentMethod model.PaymentMethod
	note          string
	filter        model.CourseFilter
	options       []model.CourseSummary
	optionIDs     map[string]struct{}
	inFlight      bool
	closed        bool
}

// State is a point-in-time view of a Composer.
type State struct {
	Draft         model.Draft
	CourseOptions []model.CourseSummary
	InFlight      bool
	Closed        bool
}

// New returns a composer with a single empty course slot.
func New(deps Deps) *Composer {
	c := &Composer{deps: deps}
	c.resetLocked()
	return c
}

// Restore returns a composer carrying the form state of d. It is never in flight.
func Restore(deps Deps, d model.Draft) *Composer {
	c := New(deps)
	c.selectedRef = d.SelectedCustomerID
	c.inline = d.Inline
	c.slots = append([]model.CourseSlot{}, d.Courses...)
	c.paymentMethod = d.PaymentMethod
	c.note = d.Note
	if d.CourseFilter.Page > 0 {
		c.filter = d.CourseFilter
	}
	if len(d.CourseOptionIDs) > 0 {
		c.optionIDs = make(map[string]struct{}, len(d.CourseOptionIDs))
		for _, id := range d.CourseOptionIDs {
			c.optionIDs[id] = struct{}{}
		}
	}
	return c
}

func (c *Composer) resetLocked() {
	c.selectedRef = ""
	c.inline = model.InlineCustomer{}
	c.slots = []model.CourseSlot{{}}
	c.paymentMethod = ""
	c.note = ""
	c.filter = model.DefaultCourseFilter()
	c.options = nil
	c.optionIDs = nil
}

// AddCourseSlot appends an empty course slot.
func (c *Composer) AddCourseSlot() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.slots = append(c.slots, model.CourseSlot{})
	return nil
}

// RemoveCourseSlot removes the slot at index. The list may become empty.
func (c *Composer) RemoveCourseSlot(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if index < 0 || index >= len(c.slots) {
		return ErrSlotOutOfRange
	}
	c.slots = append(c.slots[:index], c.slots[index+1:]...)
	return nil
}

// SetCourseAt sets the course of the slot at index. A non-empty courseID
// must come from the most recent course search; "" clears the slot.
func (c *Composer) SetCourseAt(index int, courseID string) error {
	courseID = strings.TrimSpace(courseID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if index < 0 || index >= len(c.slots) {
		return ErrSlotOutOfRange
	}
	if courseID != "" {
		if _, ok := c.optionIDs[courseID]; !ok {
			return ErrUnknownCourse
		}
	}
	c.slots[index].CourseID = courseID
	return nil
}

// SelectExistingCustomer makes ref the customer of the registration. Inline
// fields are kept so that clearing the selection brings them back.
func (c *Composer) SelectExistingCustomer(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrEmptyCustomerRef
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.selectedRef = ref
	return nil
}

// ClearExistingCustomer drops the selected customer and unlocks inline editing.
func (c *Composer) ClearExistingCustomer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.selectedRef = ""
	return nil
}

// SetInlineField updates one inline customer field. It returns
// ErrInlineLocked without changing anything while an existing customer is
// selected.
func (c *Composer) SetInlineField(field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.selectedRef != "" {
		return ErrInlineLocked
	}
	switch field {
	case FieldName:
		c.inline.Name = value
	case FieldEmail:
		c.inline.Email = value
	case FieldPhone:
		c.inline.Phone = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// SetPaymentMethod records how the order was paid. "" unsets it.
func (c *Composer) SetPaymentMethod(m model.PaymentMethod) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, m)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.paymentMethod = m
	return nil
}

// SetNote records a free-text note for the order.
func (c *Composer) SetNote(note string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.note = note
	return nil
}

// Close discards the form. It does not cancel an in-flight submission.
func (c *Composer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.resetLocked()
}

// Closed reports whether the composer was closed or submitted successfully.
func (c *Composer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// State returns a copy of the current form state.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Draft:         c.draftLocked(),
		CourseOptions: append([]model.CourseSummary(nil), c.options...),
		InFlight:      c.inFlight,
		Closed:        c.closed,
	}
}

func (c *Composer) draftLocked() model.Draft {
	d := model.Draft{
		SelectedCustomerID: c.selectedRef,
		Inline:             c.inline,
		Courses:            append([]model.CourseSlot{}, c.slots...),
		PaymentMethod:      c.paymentMethod,
		Note:               c.note,
		CourseFilter:       c.filter,
	}
	for id := range c.optionIDs {
		d.CourseOptionIDs = append(d.CourseOptionIDs, id)
	}
	return d
}

// Submit validates the form and sends one registration to the order API.
//
// Validation failures and API failures are reported to the notifier and
// returned as *SubmitError; the form is left intact so the operator can
// retry. On success the form is discarded and the composer closes. A call
// made while another Submit is waiting on the API returns ErrSubmitInFlight.
func (c *Composer) Submit(ctx context.Context) error {
	_, err := c.SubmitNotice(ctx)
	return err
}

// SubmitNotice is Submit that also returns the notice this call raised. The
// notice is nil when the call was refused with ErrClosed or ErrSubmitInFlight.
func (c *Composer) SubmitNotice(ctx context.Context) (*model.Notice, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	req, serr := c.buildRequestLocked()
	if serr != nil {
		c.mu.Unlock()
		return c.notify(model.NoticeError, serr.Message), serr
	}
	c.inFlight = true
	c.mu.Unlock()

	err := c.deps.Orders.CreateManualRegistration(ctx, req)

	c.mu.Lock()
	c.inFlight = false
	if err == nil {
		c.closed = true
		c.resetLocked()
	}
	c.mu.Unlock()

	if err != nil {
		serr := classify(err)
		return c.notify(model.NoticeError, serr.Message), serr
	}

	n := c.notify(model.NoticeSuccess, msgCreated)
	if c.deps.OnRegistered != nil {
		c.deps.OnRegistered()
	}
	return n, nil
}

func (c *Composer) buildRequestLocked() (model.RegistrationRequest, *SubmitError) {
	identity, serr := c.identityLocked()
	if serr != nil {
		return model.RegistrationRequest{}, serr
	}

	courses := make([]model.CourseSlot, 0, len(c.slots))
	for _, s := range c.slots {
		if s.CourseID != "" {
			courses = append(courses, s)
		}
	}
	if len(courses) == 0 {
		return model.RegistrationRequest{}, &SubmitError{
			Kind: KindNoCourseSelected, Message: ErrNoCourseSelected.Error(), Err: ErrNoCourseSelected,
		}
	}

	if inline, ok := identity.(model.InlineCustomer); ok && !validation.Email(inline.Email) {
		return model.RegistrationRequest{}, &SubmitError{
			Kind: KindInvalidEmail, Message: ErrInvalidEmail.Error(), Err: ErrInvalidEmail,
		}
	}

	return model.RegistrationRequest{
		Courses:       courses,
		Customer:      identity,
		PaymentMethod: c.paymentMethod,
		Note:          strings.TrimSpace(c.note),
	}, nil
}

// identityLocked applies the priority rule: a selected customer always wins
// over inline fields.
func (c *Composer) identityLocked() (model.CustomerIdentity, *SubmitError) {
	if c.selectedRef != "" {
		return model.ExistingCustomer{ID: c.selectedRef}, nil
	}
	inline := model.InlineCustomer{
		Name:  strings.TrimSpace(c.inline.Name),
		Email: strings.TrimSpace(c.inline.Email),
		Phone: strings.TrimSpace(c.inline.Phone),
	}
	if inline.Name == "" || inline.Email == "" {
		return nil, &SubmitError{
			Kind: KindMissingCustomer, Message: ErrMissingCustomer.Error(), Err: ErrMissingCustomer,
		}
	}
	return inline, nil
}

func (c *Composer) notify(level, message string) *model.Notice {
	n := model.Notice{Level: level, Message: message}
	if c.deps.Notifier != nil {
		c.deps.Notifier.Notify(n)
	}
	return &n
}
