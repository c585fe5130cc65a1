package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"packvault-autosell-api/internal/lock"
	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/internal/pricing"
	"packvault-autosell-api/internal/repository"
	"packvault-autosell-api/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder(t *testing.T) Builder {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	resolver, err := pricing.NewResolver(nil, nil, zerolog.Nop())
	require.NoError(t, err)

	cfg := service.AutoSellConfig{
		Policy:           service.SelectionPolicy{MaxRarity: model.RarityMythic},
		MaxItemsPerBatch: 100,
		BatchTimeout:     time.Minute,
		HistoryLimit:     50,
	}
	services := &Services{
		AutoSell:  service.NewAutoSellService(store, store, resolver, lock.NewLocalLocker(time.Second), nil, cfg, zerolog.Nop()),
		Inventory: service.NewInventoryService(store, store),
	}
	return func(ctx context.Context) (*Services, error) { return services, nil }
}

func run(t *testing.T, build Builder, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(build)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := NewRootCommand(nil)

	for _, name := range []string{"preview", "process", "sell", "protect", "stats", "grant", "inventory"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand(nil)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	user := cmd.PersistentFlags().Lookup("user")
	require.NotNil(t, user)
	assert.Equal(t, "u", user.Shorthand)
}

func TestStatsCommand_Flags(t *testing.T) {
	cmd := NewRootCommand(nil)
	stats, _, err := cmd.Find([]string{"stats"})
	require.NoError(t, err)

	days := stats.Flags().Lookup("days")
	require.NotNil(t, days)
	assert.Equal(t, "7", days.DefValue)
	assert.NotNil(t, stats.Flags().Lookup("history"))
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := run(t, testBuilder(t), "--format", "yaml", "-u", "u1", "preview")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_RequiresUser(t *testing.T) {
	_, err := run(t, testBuilder(t), "preview")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGrant_InvalidRarity(t *testing.T) {
	_, err := run(t, testBuilder(t), "-u", "u1", "grant", "--definition", "d1", "--name", "Pebble", "--rarity", "shiny")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGrantThenProcess(t *testing.T) {
	build := testBuilder(t)

	_, err := run(t, build, "-u", "u1", "grant", "--definition", "pebble", "--name", "Pebble", "--rarity", "common", "--value", "10")
	require.NoError(t, err)
	_, err = run(t, build, "-u", "u1", "grant", "--definition", "crown", "--name", "Crown", "--rarity", "rare", "--value", "100", "--protected")
	require.NoError(t, err)

	out, err := run(t, build, "-u", "u1", "--format", "json", "process")
	require.NoError(t, err)

	var stats model.AutoSellRunStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.TotalProcessed)
	assert.Equal(t, 1, stats.SuccessfulSales)
	assert.Equal(t, 1, stats.SkippedItems)
	assert.Equal(t, int64(10), stats.TotalCredits)

	out, err = run(t, build, "-u", "u1", "inventory")
	require.NoError(t, err)
	assert.Contains(t, out, "Crown")
	assert.NotContains(t, out, "Pebble")
	assert.Contains(t, out, "Balance: 10 credits")
}

func TestSell_ProtectedItemFails(t *testing.T) {
	build := testBuilder(t)

	out, err := run(t, build, "-u", "u1", "--format", "json", "grant", "--definition", "crown", "--name", "Crown", "--rarity", "rare", "--value", "100", "--protected")
	require.NoError(t, err)
	var item model.InventoryItem
	require.NoError(t, json.Unmarshal([]byte(out), &item))

	_, err = run(t, build, "-u", "u1", "sell", item.ID)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, service.ErrItemProtected)

	_, err = run(t, build, "-u", "u1", "protect", item.ID, "--off")
	require.NoError(t, err)

	out, err = run(t, build, "-u", "u1", "sell", item.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "for 100 credits")
}

func TestStats_RejectsOutOfRangeDays(t *testing.T) {
	_, err := run(t, testBuilder(t), "-u", "u1", "stats", "--days", "0")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
}
