// Package model defines the core domain and wire types for the course back-office.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// CustomerIdentity is who a registration is for: either an existing customer
// from the directory or a customer typed into the form.
type CustomerIdentity interface {
	isCustomerIdentity()
}

// ExistingCustomer references a customer already known to the admin API.
type ExistingCustomer struct {
	ID string
}

// InlineCustomer is a customer entered directly into the composer.
type InlineCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (ExistingCustomer) isCustomerIdentity() {}
func (InlineCustomer) isCustomerIdentity()   {}

// CourseSlot is one editable course selection.
type CourseSlot struct {
	CourseID string `json:"course_id"`
}

// PaymentMethod is how an order placed by an operator was paid.
type PaymentMethod string

const (
	PaymentSSL   PaymentMethod = "SSL_PAY"
	PaymentBkash PaymentMethod = "BAKSH"
)

// Valid reports whether p is empty or one of the known methods.
func (p PaymentMethod) Valid() bool {
	switch p {
	case "", PaymentSSL, PaymentBkash:
		return true
	}
	return false
}

// RegistrationRequest is the body sent to the order creation endpoint.
type RegistrationRequest struct {
	Courses       []CourseSlot
	Customer      CustomerIdentity
	PaymentMethod PaymentMethod
	Note          string
}

// ErrNoCustomer is returned when a RegistrationRequest is encoded without a customer.
var ErrNoCustomer = errors.New("registration request has no customer")

type inlinePayload struct {
	Courses       []CourseSlot  `json:"courses"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Name          string        `json:"name"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	Note          string        `json:"note,omitempty"`
}

type existingPayload struct {
	Courses       []CourseSlot  `json:"courses"`
	UserID        string        `json:"userId"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	Note          string        `json:"note,omitempty"`
}

// MarshalJSON writes {courses, email, phone, name} for an inline customer and
// {courses, userId} for an existing one.
func (r RegistrationRequest) MarshalJSON() ([]byte, error) {
	courses := r.Courses
	if courses == nil {
		courses = []CourseSlot{}
	}
	switch c := r.Customer.(type) {
	case ExistingCustomer:
		return json.Marshal(existingPayload{
			Courses:       courses,
			UserID:        c.ID,
			PaymentMethod: r.PaymentMethod,
			Note:          r.Note,
		})
	case InlineCustomer:
		return json.Marshal(inlinePayload{
			Courses:       courses,
			Email:         c.Email,
			Phone:         c.Phone,
			Name:          c.Name,
			PaymentMethod: r.PaymentMethod,
			Note:          r.Note,
		})
	default:
		return nil, ErrNoCustomer
	}
}

// Publication statuses accepted by the course directory.
const (
	CourseStatusPublished = "PUBLISHED"
	CourseStatusDraft     = "DRAFT"
	CourseStatusUpcoming  = "UPCOMING"
)

// Paid/free filter values accepted by the course directory.
const (
	BasicStatusFree = "FREE"
	BasicStatusPaid = "PAID"
)

// CourseFilter is the query sent to the course directory.
type CourseFilter struct {
	Page        int    `json:"page"`
	PerPage     int    `json:"perPage"`
	OrderBy     string `json:"orderBy"`
	SearchText  string `json:"searchText"`
	BasicStatus string `json:"basicStatus"`
	Status      string `json:"status"`
}

// DefaultCourseFilter is the unfiltered first page used by the composer.
func DefaultCourseFilter() CourseFilter {
	return CourseFilter{Page: 1, PerPage: 100}
}

// CourseSummary is one entry of the course directory.
type CourseSummary struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Price     float64 `json:"price"`
}

// CoursePage is one page of course directory results.
type CoursePage struct {
	Courses []CourseSummary `json:"courses"`
	Total   int             `json:"total"`
}

// CustomerFilter is the query sent to the customer directory.
type CustomerFilter struct {
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
	Search  string `json:"search"`
}

// CustomerSummary is one entry of the customer directory.
type CustomerSummary struct {
	ID        string   `json:"id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email,omitempty"`
	Phones    []string `json:"phones,omitempty"`
}

// CustomerPage is one page of customer directory results.
type CustomerPage struct {
	Customers []CustomerSummary `json:"customers"`
	Total     int               `json:"total"`
}

// Draft is the persisted form state of a composer session. It never holds
// a RegistrationRequest, only what the operator has typed and picked so far.
type Draft struct {
	ID                 string         `json:"id"`
	SelectedCustomerID string         `json:"selected_customer_id,omitempty"`
	Inline             InlineCustomer `json:"inline"`
	Courses            []CourseSlot   `json:"courses"`
	PaymentMethod      PaymentMethod  `json:"payment_method,omitempty"`
	Note               string         `json:"note,omitempty"`
	CourseFilter       CourseFilter   `json:"course_filter"`
	CourseOptionIDs    []string       `json:"course_option_ids,omitempty"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Notice levels.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// Notice is a transient, user-facing message.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string  `json:"error"`
	Notice *Notice `json:"notice,omitempty"`
}
