package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateSerial    = errors.New("book with this serial number already exists")
	ErrInvalidSerial      = errors.New("the serial number must contain exactly six digits")
	ErrInvalidCard        = errors.New("the library card number must contain exactly six digits")
	ErrInvalidField       = errors.New("invalid field")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Rejection reasons of the borrow state machine.
var (
	ErrUnsupportedField = errors.New("only the borrowing status of a book can be updated")
	ErrBorrowerRequired = errors.New("a borrower is required when the book is borrowed")
	ErrBorrowerNotFound = errors.New("borrower does not exist")
	ErrAlreadyBorrowed  = errors.New("this book has already been borrowed")
)

// Rejection is a refused transition. It unwraps to one of the reason errors above.
type Rejection struct {
	Reason error
	// Detail is the offending field name or card number, if any.
	Detail string
}

func Reject(reason error, detail string) *Rejection {
	return &Rejection{Reason: reason, Detail: detail}
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", r.Reason.Error(), r.Detail)
}

func (r *Rejection) Unwrap() error {
	return r.Reason
}

func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// ReasonCode is the stable machine-readable name of err for responses and logs.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedField):
		return "unsupported_field"
	case errors.Is(err, ErrBorrowerRequired):
		return "borrower_required"
	case errors.Is(err, ErrBorrowerNotFound):
		return "borrower_not_found"
	case errors.Is(err, ErrAlreadyBorrowed):
		return "already_borrowed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateSerial):
		return "duplicate_serial"
	case errors.Is(err, ErrInvalidSerial):
		return "invalid_serial_format"
	case errors.Is(err, ErrInvalidCard):
		return "invalid_card_format"
	case errors.Is(err, ErrInvalidField):
		return "invalid_field"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}

type ErrorResponse struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

func NewErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Message: err.Error(), Reason: ReasonCode(err)}
	var r *Rejection
	if errors.As(err, &r) {
		resp.Detail = r.Detail
	}
	return resp
}
