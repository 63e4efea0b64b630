package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/cvbuilder/internal/config"
	"github.com/devilmonastery/cvbuilder/internal/domain/entities"
	"github.com/devilmonastery/cvbuilder/internal/domain/repositories"
)

func TestOpenStores_Memory(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := openStores(ctx, &config.Config{Database: config.DatabaseConfig{Driver: "memory"}}, log)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Pinger.Ping(ctx))

	a := &entities.Account{AccountID: "a-1", Email: "Ann@Example.com", EmailNormalized: "ann@example.com"}
	require.NoError(t, st.Accounts.Create(ctx, a))

	got, err := st.Accounts.FindByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a-1", got.AccountID)

	dup := &entities.Account{AccountID: "a-2", EmailNormalized: "ann@example.com"}
	assert.ErrorIs(t, st.Accounts.Create(ctx, dup), repositories.ErrConflict)
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := openStores(context.Background(), &config.Config{Database: config.DatabaseConfig{Driver: "sqlite"}}, log)
	assert.ErrorContains(t, err, "sqlite")
}
