package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// run executes gamectl against dbPath and returns its output
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(&out)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"gamectl", "--db", dbPath}, args...))
	return out.String(), err
}

func TestGamesAddListAlias(t *testing.T) {
	db := filepath.Join(t.TempDir(), "bot.db")

	out, err := run(t, db, "games", "add", "--aliases", "BF6, BF", "Battlefield 6")
	require.NoError(t, err)
	assert.Contains(t, out, "added Battlefield 6")

	_, err = run(t, db, "games", "alias", "BF", "bf2042")
	require.NoError(t, err)

	out, err = run(t, db, "games", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Battlefield 6")
	assert.Contains(t, out, "bf2042")

	_, err = run(t, db, "games", "add", "BF6")
	assert.Error(t, err, "a name colliding with an alias is rejected")
}

func TestRegistrationsRoundTrip(t *testing.T) {
	db := filepath.Join(t.TempDir(), "bot.db")

	_, err := run(t, db, "games", "add", "Chess")
	require.NoError(t, err)

	_, err = run(t, db, "registrations", "add", "111", "Chess")
	require.NoError(t, err)
	_, err = run(t, db, "registrations", "add", "111", "Chess")
	assert.Error(t, err)

	out, err := run(t, db, "registrations", "list", "Chess")
	require.NoError(t, err)
	assert.Equal(t, "111\n", out)

	out, err = run(t, db, "registrations", "list", "--user", "111")
	require.NoError(t, err)
	assert.Equal(t, "Chess\n", out)

	_, err = run(t, db, "registrations", "add", "111", "Unknown Game")
	assert.Error(t, err, "the CLI never provisions games")

	_, err = run(t, db, "registrations", "remove", "111", "Chess")
	require.NoError(t, err)
	_, err = run(t, db, "registrations", "remove", "111", "Chess")
	assert.Error(t, err)
}

func TestGamesDelete(t *testing.T) {
	db := filepath.Join(t.TempDir(), "bot.db")

	_, err := run(t, db, "games", "add", "Chess")
	require.NoError(t, err)
	_, err = run(t, db, "registrations", "add", "111", "Chess")
	require.NoError(t, err)

	_, err = run(t, db, "games", "delete", "Chess")
	require.NoError(t, err)

	out, err := run(t, db, "registrations", "list", "--user", "111")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = run(t, db, "games", "delete", "Chess")
	assert.Error(t, err)
}

func TestConfigGetSet(t *testing.T) {
	db := filepath.Join(t.TempDir(), "bot.db")

	_, err := run(t, db, "config", "get", "ALERT_CHANNEL_ID")
	assert.Error(t, err)

	_, err = run(t, db, "config", "set", "ALERT_CHANNEL_ID", "123")
	require.NoError(t, err)
	_, err = run(t, db, "config", "set", "ALERT_CHANNEL_ID", "456")
	require.NoError(t, err)

	out, err := run(t, db, "config", "get", "ALERT_CHANNEL_ID")
	require.NoError(t, err)
	assert.Equal(t, "456\n", out)
}

func TestMissingArguments(t *testing.T) {
	db := filepath.Join(t.TempDir(), "bot.db")

	_, err := run(t, db, "registrations", "add", "111")
	assert.Error(t, err)
}
