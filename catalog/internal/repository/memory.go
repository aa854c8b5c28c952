package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
)

// MemoryRepository keeps books and members in process memory.
//
// Borrow updates of one serial number are serialized by a per-serial lock. The
// member check of an update reads the member map outside that lock, so a member
// removed right after the check may still end up as a borrower.
type MemoryRepository struct {
	mu      sync.RWMutex
	books   map[string]model.Book
	members map[string]model.Member
	locks   *keyLock
	log     *zap.Logger
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository(log *zap.Logger) *MemoryRepository {
	return &MemoryRepository{
		books:   make(map[string]model.Book),
		members: make(map[string]model.Member),
		locks:   newKeyLock(),
		log:     log.Named("memory_repo"),
	}
}

// SampleMembers are the members a fresh catalog starts with.
func SampleMembers() []model.Member {
	joined := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []model.Member{
		{CardNumber: "123456", FirstName: "Anna", LastName: "Nowak", Email: "anna.nowak@example.com", IsActive: true, DateJoined: joined},
		{CardNumber: "654321", FirstName: "Piotr", LastName: "Kowalski", Email: "piotr.kowalski@example.com", IsActive: true, DateJoined: joined},
		{CardNumber: "111111", FirstName: "Maria", LastName: "Wiśniewska", Email: "maria.wisniewska@example.com", IsActive: true, DateJoined: joined},
		{CardNumber: "000000", FirstName: "Jan", LastName: "Zieliński", Email: "jan.zielinski@example.com", IsStaff: true, IsActive: true, DateJoined: joined},
	}
}

func cloneBook(b model.Book) model.Book {
	if b.BorrowedBy != nil {
		v := *b.BorrowedBy
		b.BorrowedBy = &v
	}
	if b.BorrowedAt != nil {
		v := *b.BorrowedAt
		b.BorrowedAt = &v
	}
	return b
}

func (r *MemoryRepository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	if err := ctx.Err(); err != nil {
		return model.Book{}, err
	}
	book.IsBorrowed, book.BorrowedBy, book.BorrowedAt = false, nil, nil

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[book.SerialNumber]; ok {
		return model.Book{}, errs.ErrDuplicateSerial
	}
	r.books[book.SerialNumber] = book
	return book, nil
}

func (r *MemoryRepository) GetBook(ctx context.Context, serialNumber string) (model.Book, error) {
	if err := ctx.Err(); err != nil {
		return model.Book{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[serialNumber]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	return cloneBook(b), nil
}

func (r *MemoryRepository) ListBooks(ctx context.Context) ([]model.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	books := make([]model.Book, 0, len(r.books))
	for _, b := range r.books {
		books = append(books, cloneBook(b))
	}
	r.mu.RUnlock()

	sort.Slice(books, func(i, j int) bool { return books[i].SerialNumber < books[j].SerialNumber })
	return books, nil
}

func (r *MemoryRepository) DeleteBook(ctx context.Context, serialNumber string) error {
	unlock, err := r.locks.Lock(ctx, serialNumber)
	if err != nil {
		return errors.Wrap(err, "DeleteBook: lock")
	}
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[serialNumber]; !ok {
		return errs.ErrNotFound
	}
	delete(r.books, serialNumber)
	return nil
}

func (r *MemoryRepository) UpdateBorrowState(ctx context.Context, serialNumber string, fn UpdateFunc) (model.Book, error) {
	unlock, err := r.locks.Lock(ctx, serialNumber)
	if err != nil {
		return model.Book{}, errors.Wrap(err, "UpdateBorrowState: lock")
	}
	defer unlock()

	r.mu.RLock()
	current, ok := r.books[serialNumber]
	r.mu.RUnlock()
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}

	next, err := fn(ctx, cloneBook(current), r)
	if err != nil {
		return model.Book{}, err
	}
	// A decision that outlived its deadline is not written.
	if err := ctx.Err(); err != nil {
		return model.Book{}, errors.Wrap(err, "UpdateBorrowState: write")
	}

	current.IsBorrowed = next.IsBorrowed
	current.BorrowedBy = next.BorrowedBy
	current.BorrowedAt = next.BorrowedAt
	current = cloneBook(current)

	r.mu.Lock()
	r.books[serialNumber] = current
	r.mu.Unlock()

	r.log.Debug("borrow state updated",
		zap.String("serial_number", serialNumber),
		zap.Bool("is_borrowed", current.IsBorrowed))
	return cloneBook(current), nil
}

func (r *MemoryRepository) CreateMember(ctx context.Context, member model.Member) (model.Member, error) {
	if err := ctx.Err(); err != nil {
		return model.Member{}, err
	}
	if member.DateJoined.IsZero() {
		member.DateJoined = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[member.CardNumber]; ok {
		return model.Member{}, errors.Wrap(errs.ErrInvalidField, "library card number already in use")
	}
	r.members[member.CardNumber] = member
	return member, nil
}

func (r *MemoryRepository) GetMember(ctx context.Context, cardNumber string) (model.Member, error) {
	if err := ctx.Err(); err != nil {
		return model.Member{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[cardNumber]
	if !ok {
		return model.Member{}, errs.ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepository) GetMembers(ctx context.Context, cardNumbers []string) (map[string]model.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]model.Member, len(cardNumbers))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range cardNumbers {
		if m, ok := r.members[c]; ok {
			out[c] = m
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListMembers(ctx context.Context) ([]model.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	members := make([]model.Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	r.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool { return members[i].CardNumber < members[j].CardNumber })
	return members, nil
}

func (r *MemoryRepository) DeleteMember(ctx context.Context, cardNumber string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[cardNumber]; !ok {
		return errs.ErrNotFound
	}
	delete(r.members, cardNumber)
	return nil
}

func (r *MemoryRepository) MemberExists(ctx context.Context, cardNumber string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[cardNumber]
	return ok, nil
}
