package wizard

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultSession is the session ID used by the single-user web wizard.
const DefaultSession = "default"

// Store persists wizard sessions to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at the given path.
func NewStore(dbPath string) (*Store, error) {
	// Set pragmas via DSN so every pooled connection gets them; a PRAGMA run
	// via db.Exec applies to one connection only.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite supports only one writer at a time. Limit the pool so goroutines
	// queue at the Go level instead of fighting over the lock.
	db.SetMaxOpenConns(4)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS wizard_sessions (
			id         TEXT PRIMARY KEY,
			state_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	return err
}

// Get returns the state for a session, creating it with defaults on first access.
func (s *Store) Get(session string) (State, error) {
	var stateJSON string
	err := s.db.QueryRow(`SELECT state_json FROM wizard_sessions WHERE id=?`, session).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		st := Defaults()
		if err := s.Put(session, st); err != nil {
			return State{}, err
		}
		return st, nil
	}
	if err != nil {
		return State{}, err
	}

	var st State
	if err := json.Unmarshal([]byte(stateJSON), &st); err != nil {
		return State{}, fmt.Errorf("decoding session %q: %w", session, err)
	}
	if st.Blocklists == nil {
		st.Blocklists = []string{}
	}
	return st, nil
}

// Put replaces the state for a session.
func (s *Store) Put(session string, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO wizard_sessions (id, state_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state_json=excluded.state_json, updated_at=excluded.updated_at`,
		session, string(data), time.Now().Format(time.RFC3339),
	)
	return err
}

// Reset deletes a session so the next Get starts from defaults.
func (s *Store) Reset(session string) error {
	_, err := s.db.Exec(`DELETE FROM wizard_sessions WHERE id=?`, session)
	return err
}
