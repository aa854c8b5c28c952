package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Maruda-Patryk/api-library/catalog/internal/errs"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CATALOG_STORAGE", "memory")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMembersGet(t *testing.T) {
	out, err := execute(t, "members", "get", "000000")
	require.NoError(t, err)
	require.JSONEq(t, `{"library_card_number":"000000","first_name":"Jan","last_name":"Zieliński","email":"jan.zielinski@example.com"}`, out)
}

func TestBooksList_Empty(t *testing.T) {
	out, err := execute(t, "books", "list")
	require.NoError(t, err)
	require.JSONEq(t, `[]`, out)
}

func TestBooksCreate(t *testing.T) {
	out, err := execute(t, "books", "create", "654321", "Solaris", "Stanisław Lem")
	require.NoError(t, err)
	require.JSONEq(t, `{"serial_number":"654321","title":"Solaris","author":"Stanisław Lem","is_borrowed":false,"borrowed_at":null,"borrowed_by":null}`, out)
}

func TestBooksGet_NotFound(t *testing.T) {
	_, err := execute(t, "books", "get", "654321")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestBooksBorrow_BadTimestamp(t *testing.T) {
	_, err := execute(t, "books", "borrow", "654321", "123456", "--at", "yesterday")
	require.Error(t, err)
}

func TestArgs(t *testing.T) {
	_, err := execute(t, "books", "get")
	require.Error(t, err)
}
