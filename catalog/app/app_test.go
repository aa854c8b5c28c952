package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Maruda-Patryk/api-library/catalog/app"
	"github.com/Maruda-Patryk/api-library/catalog/config"
)

func TestNewRepository_Memory(t *testing.T) {
	cfg := config.Config{Catalog: config.Catalog{Storage: config.StorageMemory}}

	repo, closeRepo, err := app.NewRepository(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeRepo()

	staff, err := repo.GetMember(context.Background(), "000000")
	require.NoError(t, err)
	require.True(t, staff.IsStaff)

	books, err := repo.ListBooks(context.Background())
	require.NoError(t, err)
	require.Empty(t, books)
}
