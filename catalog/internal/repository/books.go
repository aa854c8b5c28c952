package repository

import (
	"context"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
)

func (r *repository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	query, args, err := qb.Insert(booksTableName).
		Columns("serial_number", "title", "author").
		Values(book.SerialNumber, book.Title, book.Author).
		Suffix("returning " + joinColumns(bookColumns)).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err == nil {
		var created model.Book
		created, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
		if err == nil {
			return created, nil
		}
	}
	if pgCode(err) == pgerrcode.UniqueViolation {
		return model.Book{}, errs.ErrDuplicateSerial
	}
	return model.Book{}, storageErr(err, "CreateBook")
}

func (r *repository) GetBook(ctx context.Context, serialNumber string) (model.Book, error) {
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"serial_number": serialNumber}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, storageErr(err, "GetBook")
	}
	defer rows.Close()

	book, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, storageErr(err, "GetBook")
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context) ([]model.Book, error) {
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		OrderBy("serial_number").
		ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListBooks", zap.String("query", query))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "ListBooks")
	}
	defer rows.Close()

	books, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		return nil, storageErr(err, "ListBooks")
	}
	return books, nil
}

func (r *repository) DeleteBook(ctx context.Context, serialNumber string) error {
	query, args, err := qb.Delete(booksTableName).
		Where(sq.Eq{"serial_number": serialNumber}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return storageErr(err, "DeleteBook")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateBorrowState(ctx context.Context, serialNumber string, fn UpdateFunc) (model.Book, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Book{}, storageErr(err, "UpdateBorrowState: begin")
	}
	defer func() {
		if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.log.Warn("UpdateBorrowState: rollback", zap.Error(err))
		}
	}()

	if r.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, `select set_config('lock_timeout', $1, true)`, lockTimeoutSetting(r.lockTimeout)); err != nil {
			return model.Book{}, storageErr(err, "UpdateBorrowState: lock_timeout")
		}
	}

	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"serial_number": serialNumber}).
		Suffix("for update").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, storageErr(err, "UpdateBorrowState: lock")
	}
	current, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, storageErr(err, "UpdateBorrowState: lock")
	}

	next, err := fn(ctx, current, txMembers{tx: tx})
	if err != nil {
		return model.Book{}, err
	}

	query, args, err = qb.Update(booksTableName).
		Set("is_borrowed", next.IsBorrowed).
		Set("borrowed_by", next.BorrowedBy).
		Set("borrowed_at", next.BorrowedAt).
		Where(sq.Eq{"serial_number": serialNumber}).
		Suffix("returning " + joinColumns(bookColumns)).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	rows, err = tx.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, storageErr(err, "UpdateBorrowState: write")
	}
	updated, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		return model.Book{}, storageErr(err, "UpdateBorrowState: write")
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Book{}, storageErr(err, "UpdateBorrowState: commit")
	}
	return updated, nil
}

// txMembers checks members inside the book's transaction. The share lock keeps a
// checked member from being deleted before the borrow commits.
type txMembers struct {
	tx pgx.Tx
}

func (m txMembers) MemberExists(ctx context.Context, cardNumber string) (bool, error) {
	query, args, err := qb.Select("card_number").
		From(membersTableName).
		Where(sq.Eq{"card_number": cardNumber}).
		Suffix("for share").
		ToSql()
	if err != nil {
		return false, err
	}

	rows, err := m.tx.Query(ctx, query, args...)
	if err != nil {
		return false, storageErr(err, "MemberExists")
	}
	found := rows.Next()
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, storageErr(err, "MemberExists")
	}
	return found, nil
}

// lockTimeoutSetting renders d for postgres lock_timeout, where 0 means wait forever.
func lockTimeoutSetting(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10) + "ms"
}
