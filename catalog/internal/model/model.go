package model

import (
	"time"
)

const (
	MaxTitleLength = 255
	MaxNameLength  = 150
)

// Book is one physical copy, keyed by its serial number.
type Book struct {
	SerialNumber string     `json:"serial_number" db:"serial_number"`
	Title        string     `json:"title" db:"title"`
	Author       string     `json:"author" db:"author"`
	IsBorrowed   bool       `json:"is_borrowed" db:"is_borrowed"`
	BorrowedBy   *string    `json:"borrowed_by" db:"borrowed_by"`
	BorrowedAt   *time.Time `json:"borrowed_at" db:"borrowed_at"`
}

func (b Book) String() string {
	return b.SerialNumber + " - " + b.Title
}

type CreateBookRequest struct {
	SerialNumber string `json:"serial_number" validate:"required,sixdigits"`
	Title        string `json:"title" validate:"required,max=255"`
	Author       string `json:"author" validate:"required,max=255"`
}

type Member struct {
	CardNumber string    `json:"library_card_number" db:"card_number"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	Email      string    `json:"email" db:"email"`
	IsStaff    bool      `json:"is_staff" db:"is_staff"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	DateJoined time.Time `json:"date_joined" db:"date_joined"`
}

// Borrower is the read-only projection of a member shown on a borrowed book.
type Borrower struct {
	CardNumber string `json:"library_card_number"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
}

func (m Member) Borrower() Borrower {
	return Borrower{
		CardNumber: m.CardNumber,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Email:      m.Email,
	}
}

// BookView is a book as returned to callers, with the borrower resolved.
type BookView struct {
	SerialNumber string     `json:"serial_number"`
	Title        string     `json:"title"`
	Author       string     `json:"author"`
	IsBorrowed   bool       `json:"is_borrowed"`
	BorrowedAt   *time.Time `json:"borrowed_at"`
	BorrowedBy   *Borrower  `json:"borrowed_by"`
}
