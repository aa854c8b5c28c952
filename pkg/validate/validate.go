package validate

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// SixDigitsTag validates serial and library card numbers.
const SixDigitsTag = "sixdigits"

var sixDigits = regexp.MustCompile(`^\d{6}$`)

type CustomValidator struct {
	validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation(SixDigitsTag, func(fl validator.FieldLevel) bool { //nolint:errcheck
		return sixDigits.MatchString(fl.Field().String())
	})
	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func (cv *CustomValidator) Var(field interface{}, tag string) error {
	return cv.validator.Var(field, tag)
}

var (
	once sync.Once
	std  *CustomValidator
)

// Default returns a process-wide validator for code outside the echo context.
func Default() *CustomValidator {
	once.Do(func() {
		std = NewCustomValidator()
	})
	return std
}

// SixDigits reports whether s is exactly six ASCII digits.
func SixDigits(s string) bool {
	return Default().Var(s, SixDigitsTag) == nil
}
