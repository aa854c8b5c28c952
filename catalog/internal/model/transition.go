package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
)

const (
	FieldIsBorrowed = "is_borrowed"
	FieldBorrowedBy = "borrowed_by"
	FieldBorrowedAt = "borrowed_at"
)

// Optional tells a field left out of a request apart from one sent as null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// Present reports whether the field was sent with a non-null value.
func (o Optional[T]) Present() bool {
	return o.Set && o.Value != nil
}

// TransitionRequest is a partial update of a book's borrow fields.
type TransitionRequest struct {
	IsBorrowed Optional[bool]
	BorrowedBy Optional[string]
	BorrowedAt Optional[time.Time]
	// Unsupported lists the names of any other fields present, sorted.
	Unsupported []string
}

func (r TransitionRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3+len(r.Unsupported))
	if r.IsBorrowed.Set {
		out[FieldIsBorrowed] = r.IsBorrowed.Value
	}
	if r.BorrowedBy.Set {
		out[FieldBorrowedBy] = r.BorrowedBy.Value
	}
	if r.BorrowedAt.Set {
		out[FieldBorrowedAt] = r.BorrowedAt.Value
	}
	for _, name := range r.Unsupported {
		out[name] = nil
	}
	return json.Marshal(out)
}

func (r *TransitionRequest) UnmarshalJSON(data []byte) error {
	parsed, err := ParseTransitionRequest(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseTransitionRequest decodes a JSON object. Unknown keys are recorded, not rejected,
// so the state machine can report them.
func ParseTransitionRequest(data []byte) (TransitionRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return TransitionRequest{}, fmt.Errorf("%w: request body must be a JSON object", errs.ErrInvalidField)
	}

	var req TransitionRequest
	for name, value := range raw {
		isNull := bytes.Equal(bytes.TrimSpace(value), []byte("null"))
		switch name {
		case FieldIsBorrowed:
			if isNull {
				return TransitionRequest{}, fmt.Errorf("%w: %s may not be null", errs.ErrInvalidField, name)
			}
			var v bool
			if err := json.Unmarshal(value, &v); err != nil {
				return TransitionRequest{}, fmt.Errorf("%w: %s must be a boolean", errs.ErrInvalidField, name)
			}
			req.IsBorrowed = Some(v)
		case FieldBorrowedBy:
			if isNull {
				req.BorrowedBy = Null[string]()
				continue
			}
			card, err := parseCardNumber(value)
			if err != nil {
				return TransitionRequest{}, err
			}
			req.BorrowedBy = Some(card)
		case FieldBorrowedAt:
			if isNull {
				req.BorrowedAt = Null[time.Time]()
				continue
			}
			var v time.Time
			if err := json.Unmarshal(value, &v); err != nil {
				return TransitionRequest{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", errs.ErrInvalidField, name)
			}
			req.BorrowedAt = Some(v)
		default:
			req.Unsupported = append(req.Unsupported, name)
		}
	}
	sort.Strings(req.Unsupported)
	return req, nil
}

// parseCardNumber accepts the card number as a JSON string or an integer.
func parseCardNumber(value json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(value, &n); err == nil && !strings.ContainsAny(n.String(), ".eE-+") {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: %s must be a card number", errs.ErrInvalidField, FieldBorrowedBy)
}
