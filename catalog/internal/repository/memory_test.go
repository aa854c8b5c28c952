package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
	"github.com/Maruda-Patryk/api-library/catalog/internal/model"
	"github.com/Maruda-Patryk/api-library/catalog/internal/repository"
)

func newMemory(t *testing.T) *repository.MemoryRepository {
	t.Helper()
	repo := repository.NewMemoryRepository(zap.NewNop())
	for _, m := range repository.SampleMembers() {
		_, err := repo.CreateMember(context.Background(), m)
		require.NoError(t, err)
	}
	return repo
}

func TestMemoryRepository_Books(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t)

	for _, serial := range []string{"300000", "100000", "200000"} {
		b, err := repo.CreateBook(ctx, model.Book{SerialNumber: serial, Title: "T" + serial, Author: "A"})
		require.NoError(t, err)
		require.False(t, b.IsBorrowed)
	}

	_, err := repo.CreateBook(ctx, model.Book{SerialNumber: "100000", Title: "dup", Author: "A"})
	require.ErrorIs(t, err, errs.ErrDuplicateSerial)

	books, err := repo.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "100000", books[0].SerialNumber)
	assert.Equal(t, "200000", books[1].SerialNumber)
	assert.Equal(t, "300000", books[2].SerialNumber)

	got, err := repo.GetBook(ctx, "200000")
	require.NoError(t, err)
	assert.Equal(t, "T200000", got.Title)

	require.NoError(t, repo.DeleteBook(ctx, "200000"))
	require.ErrorIs(t, repo.DeleteBook(ctx, "200000"), errs.ErrNotFound)
	_, err = repo.GetBook(ctx, "200000")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryRepository_UpdateBorrowState(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t)
	_, err := repo.CreateBook(ctx, model.Book{SerialNumber: "123456", Title: "Solaris", Author: "Lem"})
	require.NoError(t, err)

	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	card := "654321"
	updated, err := repo.UpdateBorrowState(ctx, "123456", func(ctx context.Context, current model.Book, members repository.MemberChecker) (model.Book, error) {
		ok, err := members.MemberExists(ctx, card)
		require.NoError(t, err)
		require.True(t, ok)
		current.IsBorrowed, current.BorrowedBy, current.BorrowedAt = true, &card, &at
		current.Title = "ignored"
		return current, nil
	})
	require.NoError(t, err)
	assert.True(t, updated.IsBorrowed)
	assert.Equal(t, "Solaris", updated.Title)

	got, err := repo.GetBook(ctx, "123456")
	require.NoError(t, err)
	require.NotNil(t, got.BorrowedBy)
	assert.Equal(t, "654321", *got.BorrowedBy)
	assert.True(t, got.BorrowedAt.Equal(at))

	// callers cannot reach stored state through returned pointers
	*got.BorrowedBy = "000000"
	again, err := repo.GetBook(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, "654321", *again.BorrowedBy)
}

func TestMemoryRepository_UpdateBorrowState_FailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t)
	_, err := repo.CreateBook(ctx, model.Book{SerialNumber: "123456", Title: "Solaris", Author: "Lem"})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = repo.UpdateBorrowState(ctx, "123456", func(_ context.Context, current model.Book, _ repository.MemberChecker) (model.Book, error) {
		current.IsBorrowed = true
		return current, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetBook(ctx, "123456")
	require.NoError(t, err)
	assert.False(t, got.IsBorrowed)
}

func TestMemoryRepository_UpdateBorrowState_NotFound(t *testing.T) {
	repo := newMemory(t)
	_, err := repo.UpdateBorrowState(context.Background(), "999999", func(context.Context, model.Book, repository.MemberChecker) (model.Book, error) {
		t.Fatal("must not be called")
		return model.Book{}, nil
	})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryRepository_UpdateBorrowState_LockTimeout(t *testing.T) {
	repo := newMemory(t)
	_, err := repo.CreateBook(context.Background(), model.Book{SerialNumber: "123456", Title: "Solaris", Author: "Lem"})
	require.NoError(t, err)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := repo.UpdateBorrowState(context.Background(), "123456", func(_ context.Context, current model.Book, _ repository.MemberChecker) (model.Book, error) {
			close(held)
			<-release
			return current, nil
		})
		done <- err
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = repo.UpdateBorrowState(ctx, "123456", func(context.Context, model.Book, repository.MemberChecker) (model.Book, error) {
		t.Fatal("must not be called")
		return model.Book{}, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
}

func TestMemoryRepository_Members(t *testing.T) {
	ctx := context.Background()
	repo := newMemory(t)

	ok, err := repo.MemberExists(ctx, "654321")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MemberExists(ctx, "987654")
	require.NoError(t, err)
	assert.False(t, ok)

	staff, err := repo.GetMember(ctx, "000000")
	require.NoError(t, err)
	assert.True(t, staff.IsStaff)

	found, err := repo.GetMembers(ctx, []string{"123456", "987654"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Anna", found["123456"].FirstName)

	members, err := repo.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 4)
	assert.Equal(t, "000000", members[0].CardNumber)

	_, err = repo.CreateMember(ctx, model.Member{CardNumber: "123456", FirstName: "X", LastName: "Y"})
	require.ErrorIs(t, err, errs.ErrInvalidField)

	require.NoError(t, repo.DeleteMember(ctx, "123456"))
	_, err = repo.GetMember(ctx, "123456")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
