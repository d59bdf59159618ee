package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eufr4sio/minas-discord-bot/internal/storage"
)

// Store is the persistence the Registry needs
type Store interface {
	CreateGame(ctx context.Context, g *storage.Game) error
	GetGame(ctx context.Context, id int64) (*storage.Game, error)
	FindGameID(ctx context.Context, nameOrAlias string) (int64, error)
	ListGames(ctx context.Context) ([]*storage.Game, error)
	DeleteGame(ctx context.Context, id int64) (bool, error)
	CreateAlias(ctx context.Context, a *storage.Alias) error
	ListAliases(ctx context.Context, gameID int64) ([]string, error)
	ListAllAliases(ctx context.Context) (map[int64][]string, error)
}

// CreateOutcome is the result of Registry.Create
type CreateOutcome int

const (
	Created CreateOutcome = iota
	AlreadyExists
	InvalidName
)

func (o CreateOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	case InvalidName:
		return "invalid_name"
	}
	return fmt.Sprintf("CreateOutcome(%d)", int(o))
}

// CreateResult describes what Create did
type CreateResult struct {
	Outcome CreateOutcome
	GameID  int64
	Aliases []string // aliases stored
	Skipped []string // aliases dropped because the string was taken
}

// Entry is a game together with its aliases
type Entry struct {
	Game    *storage.Game
	Aliases []string
}

// Registry maps free-text game names and aliases to canonical games.
// Names and aliases share one namespace and matching is exact.
type Registry struct {
	store Store
}

// NewRegistry creates a registry backed by store
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Resolve looks up a game by canonical name, then by alias
func (r *Registry) Resolve(ctx context.Context, nameOrAlias string) (int64, bool, error) {
	id, err := r.store.FindGameID(ctx, nameOrAlias)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve %q: %w", nameOrAlias, err)
	}
	return id, true, nil
}

// Create adds a game. It refuses a name already used as a name or alias.
// aliasCSV is a comma separated list; aliases that are taken are skipped.
func (r *Registry) Create(ctx context.Context, name, imageURL, aliasCSV string) (CreateResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CreateResult{Outcome: InvalidName}, nil
	}

	if _, found, err := r.Resolve(ctx, name); err != nil {
		return CreateResult{}, err
	} else if found {
		return CreateResult{Outcome: AlreadyExists}, nil
	}

	g := &storage.Game{Name: name, ImageURL: strings.TrimSpace(imageURL)}
	if err := r.store.CreateGame(ctx, g); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return CreateResult{Outcome: AlreadyExists}, nil
		}
		return CreateResult{}, fmt.Errorf("create game %q: %w", name, err)
	}

	slog.Info("Game created", "game", name, "id", g.ID)

	result := CreateResult{Outcome: Created, GameID: g.ID}
	added, skipped, err := r.addAliases(ctx, g.ID, aliasCSV)
	result.Aliases = added
	result.Skipped = skipped
	if err != nil {
		return result, err
	}
	return result, nil
}

// AddAliases attaches more aliases to an existing game
func (r *Registry) AddAliases(ctx context.Context, gameID int64, aliasCSV string) (added, skipped []string, err error) {
	if _, err := r.store.GetGame(ctx, gameID); err != nil {
		return nil, nil, err
	}
	return r.addAliases(ctx, gameID, aliasCSV)
}

func (r *Registry) addAliases(ctx context.Context, gameID int64, aliasCSV string) (added, skipped []string, err error) {
	for _, alias := range ParseAliases(aliasCSV) {
		if _, found, err := r.Resolve(ctx, alias); err != nil {
			return added, skipped, err
		} else if found {
			slog.Debug("Skipping alias already in use", "alias", alias)
			skipped = append(skipped, alias)
			continue
		}

		err := r.store.CreateAlias(ctx, &storage.Alias{GameID: gameID, Alias: alias})
		switch {
		case err == nil:
			added = append(added, alias)
		case errors.Is(err, storage.ErrAlreadyExists):
			skipped = append(skipped, alias)
		default:
			return added, skipped, fmt.Errorf("create alias %q: %w", alias, err)
		}
	}
	return added, skipped, nil
}

// Delete removes a game with its aliases and registrations
func (r *Registry) Delete(ctx context.Context, gameID int64) (bool, error) {
	deleted, err := r.store.DeleteGame(ctx, gameID)
	if err != nil {
		return false, fmt.Errorf("delete game %d: %w", gameID, err)
	}
	if deleted {
		slog.Info("Game deleted", "id", gameID)
	}
	return deleted, nil
}

// DeleteByName resolves nameOrAlias and deletes the game it names
func (r *Registry) DeleteByName(ctx context.Context, nameOrAlias string) (bool, error) {
	id, found, err := r.Resolve(ctx, nameOrAlias)
	if err != nil || !found {
		return false, err
	}
	return r.Delete(ctx, id)
}

// Get returns a game and its aliases
func (r *Registry) Get(ctx context.Context, gameID int64) (*Entry, error) {
	g, err := r.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	aliases, err := r.store.ListAliases(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &Entry{Game: g, Aliases: aliases}, nil
}

// Lookup resolves nameOrAlias to its game. Returns storage.ErrNotFound if nothing matches.
func (r *Registry) Lookup(ctx context.Context, nameOrAlias string) (*Entry, error) {
	id, found, err := r.Resolve(ctx, nameOrAlias)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, storage.ErrNotFound
	}
	return r.Get(ctx, id)
}

// List returns every game ordered by name
func (r *Registry) List(ctx context.Context) ([]Entry, error) {
	games, err := r.store.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	aliases, err := r.store.ListAllAliases(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(games))
	for _, g := range games {
		entries = append(entries, Entry{Game: g, Aliases: aliases[g.ID]})
	}
	return entries, nil
}

// ParseAliases splits a comma separated list, trimming entries and
// dropping empty and repeated ones
func ParseAliases(csv string) []string {
	var aliases []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(csv, ",") {
		alias := strings.TrimSpace(part)
		if alias == "" || seen[alias] {
			continue
		}
		seen[alias] = true
		aliases = append(aliases, alias)
	}
	return aliases
}
