// Package borrow decides borrow and return transitions of a single book.
//
// A book is either Available (not borrowed, no borrower, no timestamp) or Borrowed
// (borrowed, borrower set, timestamp set). Decide never produces any other combination.
package borrow

import (
	"context"
	"time"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
)

// State is the borrow-related part of a book record.
type State struct {
	IsBorrowed bool
	BorrowedBy *string
	BorrowedAt *time.Time
}

func Available() State {
	return State{}
}

func Borrowed(cardNumber string, at time.Time) State {
	return State{IsBorrowed: true, BorrowedBy: &cardNumber, BorrowedAt: &at}
}

func FromBook(b model.Book) State {
	return State{IsBorrowed: b.IsBorrowed, BorrowedBy: b.BorrowedBy, BorrowedAt: b.BorrowedAt}
}

// Apply returns b with its borrow fields replaced by s.
func (s State) Apply(b model.Book) model.Book {
	b.IsBorrowed = s.IsBorrowed
	b.BorrowedBy = s.BorrowedBy
	b.BorrowedAt = s.BorrowedAt
	return b
}

// Consistent reports whether the three borrow fields are jointly set or jointly empty.
func (s State) Consistent() bool {
	return s.IsBorrowed == (s.BorrowedBy != nil) && s.IsBorrowed == (s.BorrowedAt != nil)
}

func (s State) Equal(o State) bool {
	if s.IsBorrowed != o.IsBorrowed {
		return false
	}
	if (s.BorrowedBy == nil) != (o.BorrowedBy == nil) || (s.BorrowedBy != nil && *s.BorrowedBy != *o.BorrowedBy) {
		return false
	}
	if (s.BorrowedAt == nil) != (o.BorrowedAt == nil) || (s.BorrowedAt != nil && !s.BorrowedAt.Equal(*o.BorrowedAt)) {
		return false
	}
	return true
}

// BorrowerExists reports whether a card number belongs to a member.
// Its errors are infrastructure failures and are returned by Decide unchanged.
type BorrowerExists func(ctx context.Context, cardNumber string) (bool, error)

// Decide computes the next state of a book from its current state and a requested change.
//
// Rules, in order:
//
//	any field other than is_borrowed, borrowed_by, borrowed_at -> unsupported field
//	target borrowed, no borrower                             -> borrower required
//	target borrowed, borrower unknown                        -> borrower not found
//	target borrowed, book available                          -> borrowed now (or at the supplied time)
//	target borrowed, book borrowed by someone else           -> already borrowed
//	target borrowed, book borrowed by the same member        -> unchanged, except a new borrowed_at
//	target returned                                          -> available, borrower and timestamp dropped
//
// Targets are the requested values laid over the current ones.
func Decide(ctx context.Context, current State, req model.TransitionRequest, exists BorrowerExists, now time.Time) (State, error) {
	if len(req.Unsupported) > 0 {
		return current, errs.Reject(errs.ErrUnsupportedField, req.Unsupported[0])
	}

	targetBorrowed := current.IsBorrowed
	if req.IsBorrowed.Present() {
		targetBorrowed = *req.IsBorrowed.Value
	}
	if !targetBorrowed {
		return Available(), nil
	}

	targetBorrower := current.BorrowedBy
	if req.BorrowedBy.Set {
		targetBorrower = req.BorrowedBy.Value
	}
	if targetBorrower == nil {
		return current, errs.Reject(errs.ErrBorrowerRequired, "")
	}

	ok, err := exists(ctx, *targetBorrower)
	if err != nil {
		return current, err
	}
	if !ok {
		return current, errs.Reject(errs.ErrBorrowerNotFound, *targetBorrower)
	}

	if !current.IsBorrowed {
		at := now
		if req.BorrowedAt.Present() {
			at = *req.BorrowedAt.Value
		}
		return Borrowed(*targetBorrower, at), nil
	}

	if current.BorrowedBy == nil || *current.BorrowedBy != *targetBorrower {
		return current, errs.Reject(errs.ErrAlreadyBorrowed, "")
	}

	// TODO: confirm with the catalog owners whether a repeat borrow may move borrowed_at of an active loan.
	if req.BorrowedAt.Present() && (current.BorrowedAt == nil || !req.BorrowedAt.Value.Equal(*current.BorrowedAt)) {
		return Borrowed(*current.BorrowedBy, *req.BorrowedAt.Value), nil
	}
	return current, nil
}
