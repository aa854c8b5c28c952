package handler

import (
	"context"

	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
	"github.com/Maruda-Patryk/api-library/catalog/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type CatalogService interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.BookView, error)
	GetBook(ctx context.Context, serialNumber string) (model.BookView, error)
	ListBooks(ctx context.Context) ([]model.BookView, error)
	DeleteBook(ctx context.Context, serialNumber string) error
	ApplyTransition(ctx context.Context, serialNumber string, req model.TransitionRequest) (model.BookView, error)
	GetMember(ctx context.Context, cardNumber string) (model.Borrower, error)
	LookupStaff(ctx context.Context, cardNumber string) (isStaff, ok bool, err error)
}

var _ CatalogService = (*service.Service)(nil)
