package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
	"github.com/Maruda-Patryk/api-library/catalog/internal/repository"
	"github.com/Maruda-Patryk/api-library/catalog/internal/transition"
	"github.com/Maruda-Patryk/api-library/pkg/kafka"
	"github.com/Maruda-Patryk/api-library/pkg/validate"
)

type Service struct {
	log    *zap.Logger
	repo   repository.Repository
	coord  *transition.Coordinator
	events EventPublisher
}

func NewService(repo repository.Repository, coord *transition.Coordinator, events EventPublisher, log *zap.Logger) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		log:    log.Named("service"),
		repo:   repo,
		coord:  coord,
		events: events,
	}
}

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.BookView, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if err := validateCreate(req); err != nil {
		return model.BookView{}, err
	}

	book, err := s.repo.CreateBook(ctx, model.Book{
		SerialNumber: req.SerialNumber,
		Title:        req.Title,
		Author:       req.Author,
	})
	if err != nil {
		return model.BookView{}, err
	}
	s.log.Info("book created", zap.Stringer("book", book))
	s.events.Publish(ctx, NewEvent(kafka.EventBookCreated, book.SerialNumber, ""))
	return model.BookView{
		SerialNumber: book.SerialNumber,
		Title:        book.Title,
		Author:       book.Author,
	}, nil
}

func validateCreate(req model.CreateBookRequest) error {
	err := validate.Default().Validate(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(errs.ErrInvalidField, err.Error())
	}
	fe := fieldErrs[0]
	if fe.Field() == "SerialNumber" {
		return errs.ErrInvalidSerial
	}
	switch fe.Tag() {
	case "required":
		return errors.Wrapf(errs.ErrInvalidField, "%s is required", jsonName(fe.Field()))
	case "max":
		return errors.Wrapf(errs.ErrInvalidField, "%s is longer than %s characters", jsonName(fe.Field()), fe.Param())
	default:
		return errors.Wrapf(errs.ErrInvalidField, "%s is invalid", jsonName(fe.Field()))
	}
}

func jsonName(field string) string {
	switch field {
	case "SerialNumber":
		return "serial_number"
	default:
		return strings.ToLower(field)
	}
}

func (s *Service) GetBook(ctx context.Context, serialNumber string) (model.BookView, error) {
	if !validate.SixDigits(serialNumber) {
		return model.BookView{}, errs.ErrInvalidSerial
	}
	book, err := s.repo.GetBook(ctx, serialNumber)
	if err != nil {
		return model.BookView{}, err
	}
	views, err := s.views(ctx, book)
	if err != nil {
		return model.BookView{}, err
	}
	return views[0], nil
}

func (s *Service) ListBooks(ctx context.Context) ([]model.BookView, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, books...)
}

func (s *Service) DeleteBook(ctx context.Context, serialNumber string) error {
	if !validate.SixDigits(serialNumber) {
		return errs.ErrInvalidSerial
	}
	if err := s.repo.DeleteBook(ctx, serialNumber); err != nil {
		return err
	}
	s.log.Info("book deleted", zap.String("serial_number", serialNumber))
	s.events.Publish(ctx, NewEvent(kafka.EventBookDeleted, serialNumber, ""))
	return nil
}

func (s *Service) ApplyTransition(ctx context.Context, serialNumber string, req model.TransitionRequest) (model.BookView, error) {
	res, err := s.coord.Transition(ctx, serialNumber, req)
	if err != nil {
		return model.BookView{}, err
	}
	book := res.Book

	switch {
	case !res.Changed:
	case book.IsBorrowed:
		s.events.Publish(ctx, NewEvent(kafka.EventBookBorrowed, book.SerialNumber, *book.BorrowedBy))
	default:
		s.events.Publish(ctx, NewEvent(kafka.EventBookReturned, book.SerialNumber, ""))
	}

	views, err := s.views(ctx, book)
	if err != nil {
		// committed already; answer without the projection rather than fail
		s.log.Warn("borrower projection", zap.String("serial_number", serialNumber), zap.Error(err))
		return toView(book, nil), nil
	}
	return views[0], nil
}

// GetMember returns the public projection of a member.
func (s *Service) GetMember(ctx context.Context, cardNumber string) (model.Borrower, error) {
	if !validate.SixDigits(cardNumber) {
		return model.Borrower{}, errs.ErrInvalidCard
	}
	m, err := s.repo.GetMember(ctx, cardNumber)
	if err != nil {
		return model.Borrower{}, err
	}
	return m.Borrower(), nil
}

// LookupStaff reports the staff flag of a card number, ok is false for unknown cards.
func (s *Service) LookupStaff(ctx context.Context, cardNumber string) (isStaff, ok bool, err error) {
	if !validate.SixDigits(cardNumber) {
		return false, false, nil
	}
	m, err := s.repo.GetMember(ctx, cardNumber)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	return m.IsStaff, true, nil
}

// views resolves the borrowers of books with a single directory lookup.
func (s *Service) views(ctx context.Context, books ...model.Book) ([]model.BookView, error) {
	cards := make([]string, 0, len(books))
	for _, b := range books {
		if b.BorrowedBy != nil {
			cards = append(cards, *b.BorrowedBy)
		}
	}
	members, err := s.repo.GetMembers(ctx, cards)
	if err != nil {
		return nil, err
	}

	out := make([]model.BookView, 0, len(books))
	for _, b := range books {
		var borrower *model.Borrower
		if b.BorrowedBy != nil {
			if m, ok := members[*b.BorrowedBy]; ok {
				p := m.Borrower()
				borrower = &p
			}
		}
		out = append(out, toView(b, borrower))
	}
	return out, nil
}

func toView(b model.Book, borrower *model.Borrower) model.BookView {
	return model.BookView{
		SerialNumber: b.SerialNumber,
		Title:        b.Title,
		Author:       b.Author,
		IsBorrowed:   b.IsBorrowed,
		BorrowedAt:   b.BorrowedAt,
		BorrowedBy:   borrower,
	}
}
