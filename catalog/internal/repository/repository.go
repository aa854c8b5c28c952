package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
)

type Repository interface {
	BookRepository
	MemberRepository
}

type BookRepository interface {
	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	GetBook(ctx context.Context, serialNumber string) (model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	DeleteBook(ctx context.Context, serialNumber string) error
	// UpdateBorrowState locks the book, passes it to fn and stores the borrow
	// fields of the returned book. Nothing is written when fn fails.
	UpdateBorrowState(ctx context.Context, serialNumber string, fn UpdateFunc) (model.Book, error)
}

type MemberRepository interface {
	CreateMember(ctx context.Context, member model.Member) (model.Member, error)
	GetMember(ctx context.Context, cardNumber string) (model.Member, error)
	GetMembers(ctx context.Context, cardNumbers []string) (map[string]model.Member, error)
	ListMembers(ctx context.Context) ([]model.Member, error)
	DeleteMember(ctx context.Context, cardNumber string) error
	MemberChecker
}

// MemberChecker answers whether a card number belongs to a member.
type MemberChecker interface {
	MemberExists(ctx context.Context, cardNumber string) (bool, error)
}

// UpdateFunc receives the locked book and a member checker bound to the same unit of work.
type UpdateFunc func(ctx context.Context, current model.Book, members MemberChecker) (model.Book, error)

var _ Repository = (*repository)(nil)

type repository struct {
	db          *pgxpool.Pool
	log         *zap.Logger
	lockTimeout time.Duration
}

func NewRepository(db *pgxpool.Pool, lockTimeout time.Duration, log *zap.Logger) (*repository, error) {
	if db == nil {
		return nil, errors.New("nil pool")
	}
	return &repository{
		db:          db,
		log:         log.Named("repo"),
		lockTimeout: lockTimeout,
	}, nil
}

const (
	booksTableName   = `books`
	membersTableName = `library_user`
)

var (
	qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	bookColumns   = []string{"serial_number", "title", "author", "is_borrowed", "borrowed_by", "borrowed_at"}
	memberColumns = []string{"card_number", "first_name", "last_name", "email", "is_staff", "is_active", "date_joined"}
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// storageErr marks lock waits that ran out and cancelled statements as a storage outage.
func storageErr(err error, msg string) error {
	switch pgCode(err) {
	case pgerrcode.LockNotAvailable, pgerrcode.QueryCanceled:
		return errors.Wrap(errs.ErrStorageUnavailable, msg+": "+err.Error())
	}
	return errors.Wrap(err, msg)
}
