package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists is returned when a unique constraint rejects an insert
	ErrAlreadyExists = errors.New("storage: already exists")
)

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := filepath.Clean(dbPath) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers, the uniqueness constraints do the rest
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			image_url TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game_aliases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id INTEGER NOT NULL,
			alias TEXT NOT NULL UNIQUE,
			FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS user_game_registrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			game_id INTEGER NOT NULL,
			registered_at INTEGER NOT NULL,
			UNIQUE(user_id, game_id),
			FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			creator_id TEXT NOT NULL,
			start_time INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS event_rsvps (
			event_id INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('attending', 'declined', 'maybe', 'pending')),
			updated_at INTEGER NOT NULL,
			UNIQUE(event_id, user_id),
			FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_aliases_game ON game_aliases(game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_game ON user_game_registrations(game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_user ON user_game_registrations(user_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// Game operations

// CreateGame inserts a new game. Returns ErrAlreadyExists if the name is taken.
func (r *Repository) CreateGame(ctx context.Context, g *Game) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO games (name, image_url, created_at) VALUES (?, ?, ?)`,
		g.Name, nullString(g.ImageURL), toMillis(g.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create game: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

// GetGame finds a game by ID
func (r *Repository) GetGame(ctx context.Context, id int64) (*Game, error) {
	return r.scanGame(r.db.QueryRowContext(ctx,
		`SELECT id, name, image_url, created_at FROM games WHERE id = ?`, id,
	))
}

// GetGameByName finds a game by its canonical name
func (r *Repository) GetGameByName(ctx context.Context, name string) (*Game, error) {
	return r.scanGame(r.db.QueryRowContext(ctx,
		`SELECT id, name, image_url, created_at FROM games WHERE name = ?`, name,
	))
}

func (r *Repository) scanGame(row *sql.Row) (*Game, error) {
	g := &Game{}
	var image sql.NullString
	var created int64
	if err := row.Scan(&g.ID, &g.Name, &image, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	g.ImageURL = image.String
	g.CreatedAt = fromMillis(created)
	return g, nil
}

// FindGameID looks a game up by canonical name first, then by alias
func (r *Repository) FindGameID(ctx context.Context, nameOrAlias string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM games WHERE name = ?`, nameOrAlias).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	err = r.db.QueryRowContext(ctx, `SELECT game_id FROM game_aliases WHERE alias = ?`, nameOrAlias).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

// ListGames returns all games ordered by name
func (r *Repository) ListGames(ctx context.Context) ([]*Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, image_url, created_at FROM games ORDER BY name ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		g := &Game{}
		var image sql.NullString
		var created int64
		if err := rows.Scan(&g.ID, &g.Name, &image, &created); err != nil {
			return nil, err
		}
		g.ImageURL = image.String
		g.CreatedAt = fromMillis(created)
		games = append(games, g)
	}

	return games, rows.Err()
}

// DeleteGame removes a game together with its aliases and registrations.
// Returns false when no game had that ID.
func (r *Repository) DeleteGame(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete game: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_game_registrations WHERE game_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete registrations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM game_aliases WHERE game_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete aliases: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete game: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete game: %w", err)
	}
	return true, nil
}

// Alias operations

// CreateAlias inserts an alias. Returns ErrAlreadyExists if the alias is taken.
func (r *Repository) CreateAlias(ctx context.Context, a *Alias) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO game_aliases (game_id, alias) VALUES (?, ?)`,
		a.GameID, a.Alias,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("create alias: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// ListAliases returns the aliases of a game ordered alphabetically
func (r *Repository) ListAliases(ctx context.Context, gameID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT alias FROM game_aliases WHERE game_id = ? ORDER BY alias ASC`, gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, err
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

// ListAllAliases returns every alias grouped by game ID
func (r *Repository) ListAllAliases(ctx context.Context) (map[int64][]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT game_id, alias FROM game_aliases ORDER BY alias ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aliases := make(map[int64][]string)
	for rows.Next() {
		var gameID int64
		var alias string
		if err := rows.Scan(&gameID, &alias); err != nil {
			return nil, err
		}
		aliases[gameID] = append(aliases[gameID], alias)
	}
	return aliases, rows.Err()
}

// Registration operations

// CreateRegistration registers a user for a game.
// Returns ErrAlreadyExists for a duplicate and ErrNotFound if the game is gone.
func (r *Repository) CreateRegistration(ctx context.Context, reg *Registration) error {
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now()
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO user_game_registrations (user_id, game_id, registered_at) VALUES (?, ?, ?)`,
		reg.UserID, reg.GameID, toMillis(reg.RegisteredAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("create registration: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	reg.ID = id
	return nil
}

// DeleteRegistration removes a registration, reporting whether one existed
func (r *Repository) DeleteRegistration(ctx context.Context, userID string, gameID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_game_registrations WHERE user_id = ? AND game_id = ?`,
		userID, gameID,
	)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListGamesForUser returns the games a user is registered for, ordered by name
func (r *Repository) ListGamesForUser(ctx context.Context, userID string) ([]*Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.image_url, g.created_at
		 FROM games g
		 JOIN user_game_registrations ugr ON g.id = ugr.game_id
		 WHERE ugr.user_id = ?
		 ORDER BY g.name ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		g := &Game{}
		var image sql.NullString
		var created int64
		if err := rows.Scan(&g.ID, &g.Name, &image, &created); err != nil {
			return nil, err
		}
		g.ImageURL = image.String
		g.CreatedAt = fromMillis(created)
		games = append(games, g)
	}
	return games, rows.Err()
}

// ListUserIDsForGame returns the users registered for a game
func (r *Repository) ListUserIDsForGame(ctx context.Context, gameID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM user_game_registrations WHERE game_id = ?`, gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

// CountRegistrations returns the number of registrations of every game, busiest first
func (r *Repository) CountRegistrations(ctx context.Context) ([]GameCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id, g.name, COUNT(ugr.id)
		 FROM games g
		 LEFT JOIN user_game_registrations ugr ON g.id = ugr.game_id
		 GROUP BY g.id, g.name
		 ORDER BY COUNT(ugr.id) DESC, g.name ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []GameCount
	for rows.Next() {
		var c GameCount
		if err := rows.Scan(&c.GameID, &c.Name, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Config operations

// GetConfig retrieves a config value. Returns ErrNotFound if the key is unset.
func (r *Repository) GetConfig(ctx context.Context, key string) (ConfigValue, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return ConfigValue(value), nil
}

// SetConfig creates or updates a config value
func (r *Repository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
