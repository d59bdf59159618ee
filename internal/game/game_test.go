package game

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eufr4sio/minas-discord-bot/internal/storage"
)

func newTestServices(t *testing.T) (*Registry, *Registrations, *storage.Repository) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	registry := NewRegistry(repo)
	return registry, NewRegistrations(repo, registry, true), repo
}

func mustCreate(t *testing.T, r *Registry, name, aliases string) int64 {
	t.Helper()
	res, err := r.Create(context.Background(), name, "", aliases)
	require.NoError(t, err)
	require.Equal(t, Created, res.Outcome)
	return res.GameID
}

func TestParseAliases(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"BF6", []string{"BF6"}},
		{" BF6 , Battlefield ,, BF6 ", []string{"BF6", "Battlefield"}},
		{" , ", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAliases(tt.in), "input %q", tt.in)
	}
}

func TestAliasResolution(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestServices(t)

	id := mustCreate(t, registry, "Battlefield 6", "BF6")

	byAlias, found, err := registry.Resolve(ctx, "BF6")
	require.NoError(t, err)
	require.True(t, found)
	byName, found, err := registry.Resolve(ctx, "Battlefield 6")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, id, byName)
	assert.Equal(t, byName, byAlias)

	_, found, err = registry.Resolve(ctx, "bf6")
	require.NoError(t, err)
	assert.False(t, found, "matching is exact")
}

func TestCreateRejectsTakenName(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestServices(t)

	mustCreate(t, registry, "Battlefield 6", "BF6")

	res, err := registry.Create(ctx, "Battlefield 6", "", "")
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, res.Outcome)

	res, err = registry.Create(ctx, "BF6", "", "")
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, res.Outcome, "a name may not reuse an alias")

	res, err = registry.Create(ctx, "   ", "", "")
	require.NoError(t, err)
	assert.Equal(t, InvalidName, res.Outcome)
}

func TestCreateSkipsCollidingAliases(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestServices(t)

	bfID := mustCreate(t, registry, "Battlefield 6", "")

	res, err := registry.Create(ctx, "BF6", "", "Battlefield 6, Bee Eff")
	require.NoError(t, err)
	require.Equal(t, Created, res.Outcome)
	assert.Equal(t, []string{"Bee Eff"}, res.Aliases)
	assert.Equal(t, []string{"Battlefield 6"}, res.Skipped)

	// the existing canonical name still resolves to its own game
	id, found, err := registry.Resolve(ctx, "Battlefield 6")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, bfID, id)

	bf, err := registry.Get(ctx, bfID)
	require.NoError(t, err)
	assert.Empty(t, bf.Aliases)

	entries, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "BF6", entries[0].Game.Name)
	assert.Equal(t, []string{"Bee Eff"}, entries[0].Aliases)
	assert.Equal(t, "Battlefield 6", entries[1].Game.Name)
}

func TestAddAliases(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestServices(t)

	csID := mustCreate(t, registry, "Counter-Strike 2", "CS2")
	mustCreate(t, registry, "Dota 2", "")

	added, skipped, err := registry.AddAliases(ctx, csID, "CS, CS2, Dota 2, Counter-Strike 2")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS"}, added)
	assert.Equal(t, []string{"CS2", "Dota 2", "Counter-Strike 2"}, skipped)

	_, _, err = registry.AddAliases(ctx, 999, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	registry, registrations, _ := newTestServices(t)

	id := mustCreate(t, registry, "Battlefield 6", "BF6, Battlefield")
	_, err := registrations.Register(ctx, "u1", "BF6")
	require.NoError(t, err)
	_, err = registrations.Register(ctx, "u2", "Battlefield 6")
	require.NoError(t, err)

	deleted, err := registry.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	for _, name := range []string{"Battlefield 6", "BF6", "Battlefield"} {
		_, found, err := registry.Resolve(ctx, name)
		require.NoError(t, err)
		assert.False(t, found, name)
	}

	users, err := registrations.ListForGameID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, users)

	games, err := registrations.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestDeleteByName(t *testing.T) {
	ctx := context.Background()
	registry, _, _ := newTestServices(t)

	mustCreate(t, registry, "Minecraft", "MC")

	deleted, err := registry.DeleteByName(ctx, "MC")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = registry.DeleteByName(ctx, "Minecraft")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRegisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	registry, registrations, _ := newTestServices(t)
	mustCreate(t, registry, "Chess", "")

	outcome, err := registrations.Register(ctx, "u1", "Chess")
	require.NoError(t, err)
	assert.Equal(t, Registered, outcome)

	outcome, err = registrations.Register(ctx, "u1", "Chess")
	require.NoError(t, err)
	assert.Equal(t, AlreadyRegistered, outcome)

	games, err := registrations.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Chess"}, games)
}

func TestRegisterViaAliasIsSameRegistration(t *testing.T) {
	ctx := context.Background()
	registry, registrations, _ := newTestServices(t)
	mustCreate(t, registry, "Battlefield 6", "BF6")

	outcome, err := registrations.Register(ctx, "u1", "BF6")
	require.NoError(t, err)
	assert.Equal(t, Registered, outcome)

	outcome, err = registrations.Register(ctx, "u1", "Battlefield 6")
	require.NoError(t, err)
	assert.Equal(t, AlreadyRegistered, outcome)
}

func TestRegisterUnregisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	registry, registrations, _ := newTestServices(t)
	mustCreate(t, registry, "Chess", "")

	_, err := registrations.Register(ctx, "u1", "Chess")
	require.NoError(t, err)

	outcome, err := registrations.Unregister(ctx, "u1", "Chess")
	require.NoError(t, err)
	assert.Equal(t, Unregistered, outcome)

	games, err := registrations.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, games)

	outcome, err = registrations.Unregister(ctx, "u1", "Chess")
	require.NoError(t, err)
	assert.Equal(t, NotRegistered, outcome)

	outcome, err = registrations.Unregister(ctx, "u1", "Never Heard Of It")
	require.NoError(t, err)
	assert.Equal(t, NotRegistered, outcome)

	// the game outlives its last registrant
	_, found, err := registry.Resolve(ctx, "Chess")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRegisterAutoProvisions(t *testing.T) {
	ctx := context.Background()
	registry, registrations, _ := newTestServices(t)

	outcome, err := registrations.Register(ctx, "u1", "Unlisted Game")
	require.NoError(t, err)
	assert.Equal(t, Registered, outcome)

	entries, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Unlisted Game", entries[0].Game.Name)
	assert.Empty(t, entries[0].Game.ImageURL)
	assert.Empty(t, entries[0].Aliases)

	users, err := registrations.ListForGame(ctx, "Unlisted Game")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestRegisterWithoutAutoProvision(t *testing.T) {
	ctx := context.Background()
	registry, registrations, _ := newTestServices(t)
	registrations.AutoProvision = false

	outcome, err := registrations.Register(ctx, "u1", "Unlisted Game")
	require.NoError(t, err)
	assert.Equal(t, UnknownGame, outcome)

	entries, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegisterEmptyNameFailsCreation(t *testing.T) {
	ctx := context.Background()
	_, registrations, _ := newTestServices(t)

	outcome, err := registrations.Register(ctx, "u1", "  ")
	require.NoError(t, err)
	assert.Equal(t, GameCreationFailed, outcome)
}

func TestConcurrentDuplicateRegistration(t *testing.T) {
	ctx := context.Background()
	_, registrations, _ := newTestServices(t)

	const workers = 8
	outcomes := make([]RegisterOutcome, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = registrations.Register(ctx, "u1", "Chess")
		}(i)
	}
	wg.Wait()

	registered := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		if outcomes[i] == Registered {
			registered++
		} else {
			assert.Equal(t, AlreadyRegistered, outcomes[i])
		}
	}
	assert.Equal(t, 1, registered)

	users, err := registrations.ListForGame(ctx, "Chess")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestListForGameUnknown(t *testing.T) {
	_, registrations, _ := newTestServices(t)

	users, err := registrations.ListForGame(context.Background(), "Nothing")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	_, registrations, _ := newTestServices(t)

	for _, reg := range [][2]string{{"u1", "Chess"}, {"u2", "Chess"}, {"u1", "Go"}} {
		_, err := registrations.Register(ctx, reg[0], reg[1])
		require.NoError(t, err)
	}

	counts, err := registrations.Counts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "Chess", counts[0].Name)
	assert.Equal(t, 2, counts[0].Count)
	assert.Equal(t, "Go", counts[1].Name)
	assert.Equal(t, 1, counts[1].Count)
}

func TestOutcomeStrings(t *testing.T) {
	assert.Equal(t, "already_registered", AlreadyRegistered.String())
	assert.Equal(t, "not_registered", NotRegistered.String())
	assert.Equal(t, "already_exists", AlreadyExists.String())
}
