package command_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/api"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/test"
	"github/chapool/go-withdrawer/internal/util/command"
	"github/chapool/go-withdrawer/migrations"
)

func TestWithServer(t *testing.T) {
	ctx := t.Context()

	var testError = errors.New("test error")

	cfg := test.DefaultTestConfig(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "command.db")

	resultErr := command.WithServer(ctx, cfg, func(ctx context.Context, s *api.Server) error {
		_, err := migrations.Apply(s.DB, config.DriverSQLite)
		require.NoError(t, err)

		n, err := s.Store.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		return testError
	})

	assert.Equal(t, testError, resultErr)
}

func TestWithServerInitError(t *testing.T) {
	cfg := test.DefaultTestConfig(t)
	cfg.Queue.Backend = "kafka"

	called := false
	err := command.WithServer(t.Context(), cfg, func(context.Context, *api.Server) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
}

func TestNewSubcommandGroup(t *testing.T) {
	child := &cobra.Command{Use: "child", Run: func(*cobra.Command, []string) {}}

	group := command.NewSubcommandGroup("group", child)
	assert.Equal(t, "group", group.Use)
	require.Len(t, group.Commands(), 1)
	assert.Equal(t, "child", group.Commands()[0].Use)
}
