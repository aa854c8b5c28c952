package auth

import (
	"context"

	"github.com/pkg/errors"
)

// XCardNumberHeader carries the library card number of the caller.
const XCardNumberHeader = "X-Card-Number"

type ctxKey int

const (
	cardNumberKey ctxKey = iota + 1
	staffKey
)

var ErrNoCardNumber = errors.New("card number is required")

func SetAuthContext(ctx context.Context, cardNumber string, isStaff bool) context.Context {
	ctx = context.WithValue(ctx, cardNumberKey, cardNumber)
	return context.WithValue(ctx, staffKey, isStaff)
}

func GetCardNumber(ctx context.Context) (string, error) {
	card, ok := ctx.Value(cardNumberKey).(string)
	if !ok || card == "" {
		return "", ErrNoCardNumber
	}
	return card, nil
}

func IsStaff(ctx context.Context) bool {
	staff, _ := ctx.Value(staffKey).(bool) //nolint:errcheck
	return staff
}
