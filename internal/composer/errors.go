package composer

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCustomer is returned by Submit when no existing customer is
	// selected and the inline name or email is empty.
	ErrMissingCustomer = errors.New("customer name and email are required unless an existing customer is selected")

	// ErrInvalidEmail is returned by Submit when the inline email is malformed.
	ErrInvalidEmail = errors.New("customer email is not a valid email address")

	// ErrNoCourseSelected is returned by Submit when no course slot is populated.
	ErrNoCourseSelected = errors.New("at least one course must be selected")

	// ErrSubmitInFlight is returned when Submit is called while a previous
	// submission is still waiting on the order API. No call is made.
	ErrSubmitInFlight = errors.New("a submission is already in progress")

	// ErrInlineLocked is returned when inline customer fields are edited while
	// an existing customer is selected. The field is left unchanged.
	ErrInlineLocked = errors.New("inline customer fields are locked while an existing customer is selected")

	ErrSlotOutOfRange       = errors.New("course slot index out of range")
	ErrUnknownCourse        = errors.New("course is not in the current search results")
	ErrUnknownField         = errors.New("unknown customer field")
	ErrEmptyCustomerRef     = errors.New("customer id is required")
	ErrInvalidPaymentMethod = errors.New("unknown payment method")
	ErrInvalidFilter        = errors.New("unknown course filter value")
	ErrClosed               = errors.New("composer is closed")
)

// Kind classifies a failed submission.
type Kind int

const (
	KindMissingCustomer Kind = iota + 1
	KindInvalidEmail
	KindNoCourseSelected
	KindRemoteRejected
	KindNetworkFailure
)

func (k Kind) String() string {
	switch k {
	case KindMissingCustomer:
		return "MissingCustomer"
	case KindInvalidEmail:
		return "InvalidEmail"
	case KindNoCourseSelected:
		return "NoCourseSelected"
	case KindRemoteRejected:
		return "RemoteRejected"
	case KindNetworkFailure:
		return "NetworkFailure"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsValidation reports whether k was raised before any network call.
func (k Kind) IsValidation() bool {
	return k == KindMissingCustomer || k == KindInvalidEmail || k == KindNoCourseSelected
}

// SubmitError is returned by Submit for every failure that produced a
// user-facing notification. Message is the text that was shown.
type SubmitError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }

func (e *SubmitError) Unwrap() error { return e.Err }

// Rejection is implemented by order API errors that carry a response from
// the service. Any other error from OrderAPI is treated as a network failure.
type Rejection interface {
	error
	Rejected() (status int, message string)
}

const (
	msgCreated       = "Order created successfully"
	msgCreateFailed  = "Order creation failed"
	msgNetworkFailed = "Could not reach the order service, please try again"
)

func classify(err error) *SubmitError {
	var rej Rejection
	if errors.As(err, &rej) {
		_, message := rej.Rejected()
		if message == "" {
			message = msgCreateFailed
		}
		return &SubmitError{Kind: KindRemoteRejected, Message: message, Err: err}
	}
	return &SubmitError{Kind: KindNetworkFailure, Message: msgNetworkFailed, Err: err}
}
