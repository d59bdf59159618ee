package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eufr4sio/minas-discord-bot/internal/storage"
)

// RegistrationStore is the persistence Registrations needs
type RegistrationStore interface {
	CreateRegistration(ctx context.Context, reg *storage.Registration) error
	DeleteRegistration(ctx context.Context, userID string, gameID int64) (bool, error)
	ListGamesForUser(ctx context.Context, userID string) ([]*storage.Game, error)
	ListUserIDsForGame(ctx context.Context, gameID int64) ([]string, error)
	CountRegistrations(ctx context.Context) ([]storage.GameCount, error)
}

// RegisterOutcome is the result of Registrations.Register
type RegisterOutcome int

const (
	Registered RegisterOutcome = iota
	AlreadyRegistered
	GameCreationFailed
	UnknownGame // only when auto-provisioning is off
)

func (o RegisterOutcome) String() string {
	switch o {
	case Registered:
		return "registered"
	case AlreadyRegistered:
		return "already_registered"
	case GameCreationFailed:
		return "game_creation_failed"
	case UnknownGame:
		return "unknown_game"
	}
	return fmt.Sprintf("RegisterOutcome(%d)", int(o))
}

// UnregisterOutcome is the result of Registrations.Unregister
type UnregisterOutcome int

const (
	Unregistered UnregisterOutcome = iota
	NotRegistered
)

func (o UnregisterOutcome) String() string {
	switch o {
	case Unregistered:
		return "unregistered"
	case NotRegistered:
		return "not_registered"
	}
	return fmt.Sprintf("UnregisterOutcome(%d)", int(o))
}

// Registrations links users to the games they want to hear about
type Registrations struct {
	store    RegistrationStore
	registry *Registry

	// AutoProvision creates a game the first time someone registers for an unknown name
	AutoProvision bool
}

// NewRegistrations creates the registration service
func NewRegistrations(store RegistrationStore, registry *Registry, autoProvision bool) *Registrations {
	return &Registrations{
		store:         store,
		registry:      registry,
		AutoProvision: autoProvision,
	}
}

// Register subscribes userID to the game named by nameOrAlias
func (r *Registrations) Register(ctx context.Context, userID, nameOrAlias string) (RegisterOutcome, error) {
	nameOrAlias = strings.TrimSpace(nameOrAlias)

	gameID, found, err := r.registry.Resolve(ctx, nameOrAlias)
	if err != nil {
		return 0, err
	}
	if !found {
		if !r.AutoProvision {
			return UnknownGame, nil
		}
		gameID, found, err = r.provision(ctx, nameOrAlias)
		if err != nil {
			return 0, err
		}
		if !found {
			return GameCreationFailed, nil
		}
	}

	err = r.store.CreateRegistration(ctx, &storage.Registration{UserID: userID, GameID: gameID})
	switch {
	case err == nil:
		slog.Info("User registered", "user", userID, "game", nameOrAlias)
		return Registered, nil
	case errors.Is(err, storage.ErrAlreadyExists):
		return AlreadyRegistered, nil
	case errors.Is(err, storage.ErrNotFound):
		// game deleted between resolve and insert
		return GameCreationFailed, nil
	default:
		return 0, fmt.Errorf("register %s for %q: %w", userID, nameOrAlias, err)
	}
}

// provision creates the game, falling back to a second lookup when a
// concurrent caller created it first
func (r *Registrations) provision(ctx context.Context, name string) (int64, bool, error) {
	result, err := r.registry.Create(ctx, name, "", "")
	if err != nil {
		return 0, false, err
	}
	switch result.Outcome {
	case Created:
		slog.Info("Auto-provisioned game", "game", name, "id", result.GameID)
		return result.GameID, true, nil
	case AlreadyExists:
		return r.registry.Resolve(ctx, name)
	default:
		return 0, false, nil
	}
}

// Unregister removes userID's registration for the game named by nameOrAlias.
// The game itself is kept even when nobody is left registered.
func (r *Registrations) Unregister(ctx context.Context, userID, nameOrAlias string) (UnregisterOutcome, error) {
	gameID, found, err := r.registry.Resolve(ctx, strings.TrimSpace(nameOrAlias))
	if err != nil {
		return 0, err
	}
	if !found {
		return NotRegistered, nil
	}

	removed, err := r.store.DeleteRegistration(ctx, userID, gameID)
	if err != nil {
		return 0, fmt.Errorf("unregister %s from %q: %w", userID, nameOrAlias, err)
	}
	if !removed {
		return NotRegistered, nil
	}
	slog.Info("User unregistered", "user", userID, "game", nameOrAlias)
	return Unregistered, nil
}

// ListForUser returns the names of the games userID is registered for, sorted
func (r *Registrations) ListForUser(ctx context.Context, userID string) ([]string, error) {
	games, err := r.store.ListGamesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(games))
	for _, g := range games {
		names = append(names, g.Name)
	}
	return names, nil
}

// ListForGame returns the users registered for the game named by nameOrAlias.
// An unknown game has no registrants.
func (r *Registrations) ListForGame(ctx context.Context, nameOrAlias string) ([]string, error) {
	gameID, found, err := r.registry.Resolve(ctx, nameOrAlias)
	if err != nil || !found {
		return nil, err
	}
	return r.ListForGameID(ctx, gameID)
}

// ListForGameID returns the users registered for gameID
func (r *Registrations) ListForGameID(ctx context.Context, gameID int64) ([]string, error) {
	return r.store.ListUserIDsForGame(ctx, gameID)
}

// Counts returns how many users are registered for each game
func (r *Registrations) Counts(ctx context.Context) ([]storage.GameCount, error) {
	return r.store.CountRegistrations(ctx)
}
