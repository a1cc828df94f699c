package margin

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Journal persists the last-synced on-chain equity figure to a local SQLite
// file. It exists purely as crash recovery: on restart, a Book can seed
// totalOnChain from the last snapshot instead of starting at notSynced until
// the first live Sync call completes, so a freshly restarted engine doesn't
// briefly reject every allocation as insufficient margin.
type Journal struct {
	db *sqlx.DB
}

// OpenJournal connects to (creating if absent) the SQLite file at path and
// ensures its schema exists.
func OpenJournal(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("margin journal: %w", err)
		}
	}
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("margin journal: %w", err)
	}
	const schema = `
	CREATE TABLE IF NOT EXISTS equity_snapshots (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_on_chain REAL NOT NULL,
		synced_at DATETIME NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("margin journal migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying connection.
func (j *Journal) Close() error { return j.db.Close() }

// Save upserts the single equity snapshot row.
func (j *Journal) Save(totalOnChain float64) error {
	const q = `
	INSERT INTO equity_snapshots (id, total_on_chain, synced_at) VALUES (1, ?, ?)
	ON CONFLICT(id) DO UPDATE SET total_on_chain = excluded.total_on_chain, synced_at = excluded.synced_at;`
	_, err := j.db.Exec(q, totalOnChain, time.Now().UTC())
	return err
}

// Load reads the last saved snapshot. ok is false if none exists yet.
func (j *Journal) Load() (totalOnChain float64, ok bool, err error) {
	var row struct {
		TotalOnChain float64   `db:"total_on_chain"`
		SyncedAt     time.Time `db:"synced_at"`
	}
	err = j.db.Get(&row, `SELECT total_on_chain, synced_at FROM equity_snapshots WHERE id = 1`)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return 0, false, nil
		}
		return 0, false, err
	}
	return row.TotalOnChain, true, nil
}
