package transition_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
	"github.com/Maruda-Patryk/api-library/catalog/internal/repository"
	"github.com/Maruda-Patryk/api-library/catalog/internal/transition"
)

func setup(t *testing.T, cards ...string) (*repository.MemoryRepository, *transition.Coordinator) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepository(zap.NewNop())
	for _, card := range cards {
		_, err := repo.CreateMember(ctx, model.Member{CardNumber: card, FirstName: "F" + card, LastName: "L" + card, IsActive: true})
		require.NoError(t, err)
	}
	_, err := repo.CreateBook(ctx, model.Book{SerialNumber: "654321", Title: "Solaris", Author: "Stanisław Lem"})
	require.NoError(t, err)
	return repo, transition.NewCoordinator(repo, zap.NewNop(), transition.WithLockTimeout(time.Second))
}

func borrowBy(card string) model.TransitionRequest {
	return model.TransitionRequest{IsBorrowed: model.Some(true), BorrowedBy: model.Some(card)}
}

func returnBook() model.TransitionRequest {
	return model.TransitionRequest{IsBorrowed: model.Some(false)}
}

func TestCoordinator_BorrowThenOtherMemberIsRejected(t *testing.T) {
	ctx := context.Background()
	repo, c := setup(t, "111222", "999888")
	before := time.Now().UTC().Truncate(time.Microsecond)

	book, err := c.Apply(ctx, "654321", borrowBy("111222"))
	require.NoError(t, err)
	assert.True(t, book.IsBorrowed)
	require.NotNil(t, book.BorrowedBy)
	assert.Equal(t, "111222", *book.BorrowedBy)
	require.NotNil(t, book.BorrowedAt)
	assert.False(t, book.BorrowedAt.Before(before))
	assert.Equal(t, time.UTC, book.BorrowedAt.Location())

	_, err = c.Apply(ctx, "654321", borrowBy("999888"))
	require.ErrorIs(t, err, errs.ErrAlreadyBorrowed)

	stored, err := repo.GetBook(ctx, "654321")
	require.NoError(t, err)
	assert.Equal(t, "111222", *stored.BorrowedBy)
}

func TestCoordinator_UnknownBorrower(t *testing.T) {
	ctx := context.Background()
	repo, c := setup(t, "111222")
	before, err := repo.GetBook(ctx, "654321")
	require.NoError(t, err)

	_, err = c.Apply(ctx, "654321", borrowBy("987654"))
	require.ErrorIs(t, err, errs.ErrBorrowerNotFound)
	var rejection *errs.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "987654", rejection.Detail)

	after, err := repo.GetBook(ctx, "654321")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCoordinator_UnsupportedField(t *testing.T) {
	ctx := context.Background()
	repo, c := setup(t, "111222")

	req, err := model.ParseTransitionRequest([]byte(`{"title": "New Title", "is_borrowed": true, "borrowed_by": "111222"}`))
	require.NoError(t, err)

	_, err = c.Apply(ctx, "654321", req)
	require.ErrorIs(t, err, errs.ErrUnsupportedField)

	after, err := repo.GetBook(ctx, "654321")
	require.NoError(t, err)
	assert.Equal(t, "Solaris", after.Title)
	assert.False(t, after.IsBorrowed)
}

func TestCoordinator_InputValidation(t *testing.T) {
	_, c := setup(t, "111222")

	tests := []struct {
		name    string
		serial  string
		req     model.TransitionRequest
		wantErr error
	}{
		{name: "short serial", serial: "12345", req: returnBook(), wantErr: errs.ErrInvalidSerial},
		{name: "letters in serial", serial: "12a456", req: returnBook(), wantErr: errs.ErrInvalidSerial},
		{name: "bad card", serial: "654321", req: borrowBy("12"), wantErr: errs.ErrInvalidCard},
		{name: "missing book", serial: "000001", req: returnBook(), wantErr: errs.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Apply(context.Background(), tt.serial, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCoordinator_IdempotentBorrowAndReturn(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t, "111222")

	first, err := c.Apply(ctx, "654321", borrowBy("111222"))
	require.NoError(t, err)
	second, err := c.Apply(ctx, "654321", borrowBy("111222"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	returned, err := c.Apply(ctx, "654321", returnBook())
	require.NoError(t, err)
	again, err := c.Apply(ctx, "654321", returnBook())
	require.NoError(t, err)
	assert.Equal(t, returned, again)
	assert.False(t, again.IsBorrowed)
	assert.Nil(t, again.BorrowedBy)
	assert.Nil(t, again.BorrowedAt)
}

func TestCoordinator_TransitionReportsChange(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t, "111222")

	steps := []struct {
		name        string
		req         model.TransitionRequest
		wantChanged bool
	}{
		{name: "return of available book", req: returnBook(), wantChanged: false},
		{name: "borrow", req: borrowBy("111222"), wantChanged: true},
		{name: "repeat borrow", req: borrowBy("111222"), wantChanged: false},
		{name: "return", req: returnBook(), wantChanged: true},
		{name: "repeat return", req: returnBook(), wantChanged: false},
	}
	for _, step := range steps {
		res, err := c.Transition(ctx, "654321", step.req)
		require.NoError(t, err, step.name)
		assert.Equal(t, step.wantChanged, res.Changed, step.name)
		assert.Equal(t, "654321", res.Book.SerialNumber, step.name)
	}
}

func TestCoordinator_SuppliedTimestampIsNormalized(t *testing.T) {
	_, c := setup(t, "111222")
	warsaw := time.FixedZone("CEST", 2*60*60)
	at := time.Date(2024, 5, 10, 14, 0, 0, 123456789, warsaw)

	req := borrowBy("111222")
	req.BorrowedAt = model.Some(at)
	book, err := c.Apply(context.Background(), "654321", req)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 10, 12, 0, 0, 123456000, time.UTC), *book.BorrowedAt)
}

func TestCoordinator_ConcurrentBorrowsHaveOneWinner(t *testing.T) {
	for i := 0; i < 20; i++ {
		ctx := context.Background()
		repo, c := setup(t, "111222", "999888")

		cards := []string{"111222", "999888"}
		results := make([]error, len(cards))
		var g errgroup.Group
		for i, card := range cards {
			i, card := i, card
			g.Go(func() error {
				_, results[i] = c.Apply(ctx, "654321", borrowBy(card))
				return nil
			})
		}
		require.NoError(t, g.Wait())

		var winner string
		var rejected int
		for i, err := range results {
			switch {
			case err == nil:
				require.Empty(t, winner, "two borrows succeeded")
				winner = cards[i]
			case errors.Is(err, errs.ErrAlreadyBorrowed):
				rejected++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		require.Equal(t, 1, rejected)

		stored, err := repo.GetBook(ctx, "654321")
		require.NoError(t, err)
		require.NotNil(t, stored.BorrowedBy)
		assert.Equal(t, winner, *stored.BorrowedBy)
	}
}

// blockingBooks holds the book lock until release is closed.
type blockingBooks struct {
	repository.BookRepository
	held    chan struct{}
	release chan struct{}
}

func (b *blockingBooks) hold(t *testing.T, serial string) {
	go func() {
		_, _ = b.BookRepository.UpdateBorrowState(context.Background(), serial, //nolint:errcheck
			func(_ context.Context, current model.Book, _ repository.MemberChecker) (model.Book, error) {
				close(b.held)
				<-b.release
				return current, nil
			})
	}()
	select {
	case <-b.held:
	case <-time.After(time.Second):
		t.Fatal("lock was not taken")
	}
}

func TestCoordinator_LockTimeoutIsStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	repo, _ := setup(t, "111222")
	books := &blockingBooks{BookRepository: repo, held: make(chan struct{}), release: make(chan struct{})}
	books.hold(t, "654321")
	defer close(books.release)

	c := transition.NewCoordinator(repo, zap.NewNop(), transition.WithLockTimeout(20*time.Millisecond))
	_, err := c.Apply(ctx, "654321", borrowBy("111222"))
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)
	assert.False(t, errs.IsRejection(err))

	stored, err := repo.GetBook(ctx, "654321")
	require.NoError(t, err)
	assert.False(t, stored.IsBorrowed)
}

// failingBooks breaks the member lookup inside the unit of work.
type failingBooks struct {
	repository.BookRepository
}

type brokenChecker struct{}

func (brokenChecker) MemberExists(context.Context, string) (bool, error) {
	return false, errors.New("connection reset by peer")
}

func (f failingBooks) UpdateBorrowState(ctx context.Context, serial string, fn repository.UpdateFunc) (model.Book, error) {
	return f.BookRepository.UpdateBorrowState(ctx, serial, func(ctx context.Context, current model.Book, _ repository.MemberChecker) (model.Book, error) {
		return fn(ctx, current, brokenChecker{})
	})
}

func TestCoordinator_LookupFailureIsStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	repo, _ := setup(t, "111222")
	c := transition.NewCoordinator(failingBooks{BookRepository: repo}, zap.NewNop())

	_, err := c.Apply(ctx, "654321", borrowBy("111222"))
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)

	stored, err := repo.GetBook(ctx, "654321")
	require.NoError(t, err)
	assert.False(t, stored.IsBorrowed)
}

func TestCoordinator_UsesClock(t *testing.T) {
	fixed := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	repo := repository.NewMemoryRepository(zap.NewNop())
	ctx := context.Background()
	_, err := repo.CreateMember(ctx, model.Member{CardNumber: "111222", FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	_, err = repo.CreateBook(ctx, model.Book{SerialNumber: "654321", Title: "Solaris", Author: "Lem"})
	require.NoError(t, err)

	clocked := transition.NewCoordinator(repo, zap.NewNop(), transition.WithClock(func() time.Time { return fixed }))
	book, err := clocked.Apply(ctx, "654321", borrowBy("111222"))
	require.NoError(t, err)
	assert.Equal(t, fixed, *book.BorrowedAt)
}
