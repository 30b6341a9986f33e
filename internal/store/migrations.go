package store

import (
	"database/sql"
	"fmt"
)

// migrate runs database migrations to ensure the schema is up to date,
// following the teacher's versioned-metadata-table pattern almost directly
// (cmd/sparesd's original migrate/ensureMetadataTable/getSchemaVersion/
// setSchemaVersion), generalized from the Collection/Deck/NoteType schema to
// spec section 6's Note/Card/ReviewLog/Tag/NoteLink/Parser schema.
func (s *SQLiteStore) migrate() error {
	if err := s.ensureMetadataTable(); err != nil {
		return err
	}

	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	migrations := []struct {
		version int
		name    string
		fn      func() error
	}{
		{1, "initial_schema", s.runMigration001InitialSchema},
	}

	for _, m := range migrations {
		if version < m.version {
			if err := m.fn(); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
			}
			if err := s.setSchemaVersion(m.version); err != nil {
				return fmt.Errorf("failed to update schema version: %w", err)
			}
			version = m.version
		}
	}

	return nil
}

func (s *SQLiteStore) ensureMetadataTable() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT)`)
	return err
}

func (s *SQLiteStore) getSchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

func (s *SQLiteStore) setSchemaVersion(version int) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`, fmt.Sprintf("%d", version))
	return err
}

// runMigration001InitialSchema creates spec section 6's persistence schema:
// note, card, review_log, tag, note_tag, card_tag, note_link, parser.
func (s *SQLiteStore) runMigration001InitialSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS parser (
		id   INTEGER PRIMARY KEY,
		name TEXT UNIQUE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS note (
		id          INTEGER PRIMARY KEY,
		parser_id   INTEGER NOT NULL,
		data        TEXT NOT NULL,
		keywords    TEXT,
		custom_data TEXT,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL,
		FOREIGN KEY (parser_id) REFERENCES parser(id)
	);

	CREATE TABLE IF NOT EXISTS card (
		id                 INTEGER PRIMARY KEY,
		note_id            INTEGER NOT NULL,
		"order"            INTEGER NOT NULL,
		back_type          INTEGER NOT NULL DEFAULT 0,
		due                INTEGER NOT NULL,
		stability          REAL NOT NULL DEFAULT 0,
		difficulty         REAL NOT NULL DEFAULT 0,
		desired_retention  REAL NOT NULL DEFAULT 0.9,
		state              INTEGER NOT NULL DEFAULT 1,
		special_state      INTEGER NOT NULL DEFAULT 0,
		custom_data        TEXT,
		created_at         INTEGER NOT NULL,
		updated_at         INTEGER NOT NULL,
		FOREIGN KEY (note_id) REFERENCES note(id) ON DELETE CASCADE,
		UNIQUE (note_id, "order")
	);

	CREATE TABLE IF NOT EXISTS review_log (
		id             INTEGER PRIMARY KEY,
		card_id        INTEGER NOT NULL,
		reviewed_at    INTEGER NOT NULL,
		rating         INTEGER NOT NULL,
		scheduler_name TEXT,
		scheduled_time INTEGER,
		duration       INTEGER,
		previous_state INTEGER,
		custom_data    TEXT,
		FOREIGN KEY (card_id) REFERENCES card(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS tag (
		id          INTEGER PRIMARY KEY,
		name        TEXT UNIQUE NOT NULL,
		parent_id   INTEGER,
		description TEXT,
		query       TEXT,
		auto_delete INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (parent_id) REFERENCES tag(id)
	);

	CREATE TABLE IF NOT EXISTS note_tag (
		note_id INTEGER NOT NULL,
		tag_id  INTEGER NOT NULL,
		PRIMARY KEY (note_id, tag_id),
		FOREIGN KEY (note_id) REFERENCES note(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tag(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS card_tag (
		card_id INTEGER NOT NULL,
		tag_id  INTEGER NOT NULL,
		PRIMARY KEY (card_id, tag_id),
		FOREIGN KEY (card_id) REFERENCES card(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tag(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS note_link (
		parent_note_id INTEGER NOT NULL,
		linked_note_id INTEGER NOT NULL,
		matched_keyword TEXT NOT NULL,
		PRIMARY KEY (parent_note_id, linked_note_id, matched_keyword),
		FOREIGN KEY (parent_note_id) REFERENCES note(id) ON DELETE CASCADE,
		FOREIGN KEY (linked_note_id) REFERENCES note(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_card_due ON card(due, state);
	CREATE INDEX IF NOT EXISTS idx_card_note ON card(note_id);
	CREATE INDEX IF NOT EXISTS idx_review_log_card ON review_log(card_id, reviewed_at);
	CREATE INDEX IF NOT EXISTS idx_note_tag_tag ON note_tag(tag_id);
	CREATE INDEX IF NOT EXISTS idx_card_tag_tag ON card_tag(tag_id);
	CREATE INDEX IF NOT EXISTS idx_note_link_parent ON note_link(parent_note_id);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
