package repository

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
)

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

func (r *repository) CreateMember(ctx context.Context, member model.Member) (model.Member, error) {
	query, args, err := qb.Insert(membersTableName).
		Columns("card_number", "first_name", "last_name", "email", "is_staff", "is_active").
		Values(member.CardNumber, member.FirstName, member.LastName, member.Email, member.IsStaff, member.IsActive).
		Suffix("returning " + joinColumns(memberColumns)).
		ToSql()
	if err != nil {
		return model.Member{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err == nil {
		var created model.Member
		created, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Member])
		if err == nil {
			return created, nil
		}
	}
	if pgCode(err) == pgerrcode.UniqueViolation {
		return model.Member{}, errors.Wrap(errs.ErrInvalidField, "library card number already in use")
	}
	return model.Member{}, storageErr(err, "CreateMember")
}

func (r *repository) GetMember(ctx context.Context, cardNumber string) (model.Member, error) {
	query, args, err := qb.Select(memberColumns...).
		From(membersTableName).
		Where(sq.Eq{"card_number": cardNumber}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Member{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Member{}, storageErr(err, "GetMember")
	}
	defer rows.Close()

	member, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Member])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Member{}, errs.ErrNotFound
		}
		return model.Member{}, storageErr(err, "GetMember")
	}
	return member, nil
}

func (r *repository) GetMembers(ctx context.Context, cardNumbers []string) (map[string]model.Member, error) {
	out := make(map[string]model.Member, len(cardNumbers))
	if len(cardNumbers) == 0 {
		return out, nil
	}

	query, args, err := qb.Select(memberColumns...).
		From(membersTableName).
		Where(sq.Eq{"card_number": cardNumbers}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "GetMembers")
	}
	defer rows.Close()

	members, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Member])
	if err != nil {
		return nil, storageErr(err, "GetMembers")
	}
	for _, m := range members {
		out[m.CardNumber] = m
	}
	return out, nil
}

func (r *repository) ListMembers(ctx context.Context) ([]model.Member, error) {
	query, args, err := qb.Select(memberColumns...).
		From(membersTableName).
		OrderBy("card_number").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "ListMembers")
	}
	defer rows.Close()

	members, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Member])
	if err != nil {
		return nil, storageErr(err, "ListMembers")
	}
	return members, nil
}

func (r *repository) DeleteMember(ctx context.Context, cardNumber string) error {
	query, args, err := qb.Delete(membersTableName).
		Where(sq.Eq{"card_number": cardNumber}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return storageErr(err, "DeleteMember")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) MemberExists(ctx context.Context, cardNumber string) (bool, error) {
	query, args, err := qb.Select("1").
		Prefix("select exists (").
		From(membersTableName).
		Where(sq.Eq{"card_number": cardNumber}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, storageErr(err, "MemberExists")
	}
	return exists, nil
}
