// Package transition runs borrow and return transitions as one locked unit of work per book.
package transition

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/catalog/internal/borrow"
	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
	"github.com/Maruda-Patryk/api-library/catalog/internal/repository"
	"github.com/Maruda-Patryk/api-library/pkg/validate"
)

const DefaultLockTimeout = 5 * time.Second

type Coordinator struct {
	books       repository.BookRepository
	now         func() time.Time
	lockTimeout time.Duration
	log         *zap.Logger
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithLockTimeout bounds the whole unit of work, lock wait included. Zero disables the bound.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.lockTimeout = d
	}
}

func NewCoordinator(books repository.BookRepository, log *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		books:       books,
		now:         time.Now,
		lockTimeout: DefaultLockTimeout,
		log:         log.Named("transition"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply validates req, then locks the book, decides and writes the result.
//
// Errors are errs.ErrInvalidSerial, errs.ErrInvalidCard, errs.ErrNotFound, a
// *errs.Rejection, or errs.ErrStorageUnavailable for everything the storage
// did not finish, lock timeouts included. Nothing is written on any error.
func (c *Coordinator) Apply(ctx context.Context, serialNumber string, req model.TransitionRequest) (model.Book, error) {
	res, err := c.Transition(ctx, serialNumber, req)
	return res.Book, err
}

// Result is a committed transition. Changed is false when the book already was in the decided state.
type Result struct {
	Book    model.Book
	Changed bool
}

// Transition is Apply that also reports whether the stored borrow state changed.
func (c *Coordinator) Transition(ctx context.Context, serialNumber string, req model.TransitionRequest) (Result, error) {
	if !validate.SixDigits(serialNumber) {
		return Result{}, errs.ErrInvalidSerial
	}
	if len(req.Unsupported) > 0 {
		return Result{}, errs.Reject(errs.ErrUnsupportedField, req.Unsupported[0])
	}
	if req.BorrowedBy.Present() && !validate.SixDigits(*req.BorrowedBy.Value) {
		return Result{}, errors.Wrap(errs.ErrInvalidCard, *req.BorrowedBy.Value)
	}
	if req.BorrowedAt.Present() {
		req.BorrowedAt = model.Some(normalize(*req.BorrowedAt.Value))
	}

	if c.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.lockTimeout)
		defer cancel()
	}
	now := normalize(c.now())

	var changed bool
	book, err := c.books.UpdateBorrowState(ctx, serialNumber,
		func(ctx context.Context, current model.Book, members repository.MemberChecker) (model.Book, error) {
			prev := borrow.FromBook(current)
			next, err := borrow.Decide(ctx, prev, req, members.MemberExists, now)
			if err != nil {
				return model.Book{}, err
			}
			changed = !next.Equal(prev)
			return next.Apply(current), nil
		})
	switch {
	case err == nil:
		c.log.Debug("transition applied",
			zap.String("serial_number", serialNumber),
			zap.Bool("is_borrowed", book.IsBorrowed),
			zap.Bool("changed", changed))
		return Result{Book: book, Changed: changed}, nil
	case errors.Is(err, errs.ErrNotFound):
		return Result{}, err
	case errs.IsRejection(err):
		c.log.Debug("transition rejected", zap.String("serial_number", serialNumber), zap.Error(err))
		return Result{}, err
	default:
		c.log.Warn("transition aborted", zap.String("serial_number", serialNumber), zap.Error(err))
		if errors.Is(err, errs.ErrStorageUnavailable) {
			return Result{}, err
		}
		return Result{}, errors.Wrap(errs.ErrStorageUnavailable, err.Error())
	}
}

// normalize keeps timestamps in UTC at the precision postgres stores.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
