// Package store implements SQLite persistence for the spec's note/card/
// review_log/tag/note_tag/card_tag/note_link/parser schema (spec section
// 6), adapted from the teacher's storage.go: same Store interface shape,
// same versioned-migration pattern, same transaction methods, generalized
// from Collection/Deck/NoteType/Note/Card/Revlog/Media/Profile to this
// engine's Note/Card/ReviewLog/Tag/NoteLink/Parser.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"spares/internal/model"
)

// Store is the persistence interface; business logic depends on this, never
// on *sql.DB directly.
type Store interface {
	CreateNote(n *model.Note) error
	GetNote(id int64) (*model.Note, error)
	UpdateNote(n *model.Note) error
	DeleteNote(id int64) error
	ListNotes() ([]model.Note, error)

	CreateCard(c *model.Card) error
	GetCard(id int64) (*model.Card, error)
	UpdateCard(c *model.Card) error
	DeleteCard(id int64) error
	ListCardsForNote(noteID int64) ([]model.Card, error)
	ListCardsByState(state model.State) ([]model.Card, error)

	AddReviewLog(r *model.ReviewLog) error
	ListReviewLogsForCard(cardID int64) ([]model.ReviewLog, error)

	CreateTag(t *model.Tag) error
	GetTagByName(name string) (*model.Tag, error)
	DeleteTag(id int64) error
	AddNoteTag(noteID, tagID int64) error
	AddCardTag(cardID, tagID int64) error
	RemoveCardTag(cardID, tagID int64) error
	CountCardsForTag(tagID int64) (int, error)

	AddNoteLink(l *model.NoteLink) error
	ListNoteLinks(parentNoteID int64) ([]model.NoteLink, error)

	EnsureParser(name string) (int64, error)

	BeginTx() (*sql.Tx, error)
	Close() error
}

// SQLiteStore implements Store over database/sql + mattn/go-sqlite3,
// matching the teacher's driver choice exactly.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error          { return s.db.Close() }
func (s *SQLiteStore) BeginTx() (*sql.Tx, error) { return s.db.Begin() }

func marshalJSON(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func unmarshalJSON(data []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Note methods

func (s *SQLiteStore) CreateNote(n *model.Note) error {
	customJSON, err := marshalJSON(n.CustomData)
	if err != nil {
		return err
	}
	keywordsJSON, err := json.Marshal(n.Keywords)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`INSERT INTO note (parser_id, data, keywords, custom_data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ParserID, n.Data, keywordsJSON, customJSON, n.CreatedAt.Unix(), n.UpdatedAt.Unix(),
	)
	if err != nil {
		return err
	}
	n.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetNote(id int64) (*model.Note, error) {
	row := s.db.QueryRow(`SELECT id, parser_id, data, keywords, custom_data, created_at, updated_at FROM note WHERE id = ?`, id)
	var n model.Note
	var keywordsJSON, customJSON []byte
	var createdAt, updatedAt int64
	if err := row.Scan(&n.ID, &n.ParserID, &n.Data, &keywordsJSON, &customJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(keywordsJSON, &n.Keywords); err != nil {
		return nil, err
	}
	custom, err := unmarshalJSON(customJSON)
	if err != nil {
		return nil, err
	}
	n.CustomData = custom
	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	n.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &n, nil
}

func (s *SQLiteStore) UpdateNote(n *model.Note) error {
	customJSON, err := marshalJSON(n.CustomData)
	if err != nil {
		return err
	}
	keywordsJSON, err := json.Marshal(n.Keywords)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE note SET data = ?, keywords = ?, custom_data = ?, updated_at = ? WHERE id = ?`,
		n.Data, keywordsJSON, customJSON, n.UpdatedAt.Unix(), n.ID,
	)
	return err
}

func (s *SQLiteStore) DeleteNote(id int64) error {
	_, err := s.db.Exec(`DELETE FROM note WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) ListNotes() ([]model.Note, error) {
	rows, err := s.db.Query(`SELECT id FROM note ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	notes := make([]model.Note, 0, len(ids))
	for _, id := range ids {
		n, err := s.GetNote(id)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, nil
}

// Card methods

func (s *SQLiteStore) CreateCard(c *model.Card) error {
	customJSON, err := marshalJSON(c.CustomData)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`INSERT INTO card (note_id, "order", back_type, due, stability, difficulty, desired_retention, state, special_state, custom_data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.NoteID, c.Order, int(c.BackType), c.Due.Unix(), c.Stability, c.Difficulty, c.DesiredRetention,
		int(c.State), int(c.SpecialState), customJSON, c.CreatedAt.Unix(), c.UpdatedAt.Unix(),
	)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

func scanCard(row interface{ Scan(...any) error }) (*model.Card, error) {
	var c model.Card
	var due, createdAt, updatedAt int64
	var backType, state, specialState int
	var customJSON []byte
	if err := row.Scan(&c.ID, &c.NoteID, &c.Order, &backType, &due, &c.Stability, &c.Difficulty,
		&c.DesiredRetention, &state, &specialState, &customJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.BackType = model.BackType(backType)
	c.State = model.State(state)
	c.SpecialState = model.SpecialState(specialState)
	c.Due = time.Unix(due, 0).UTC()
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	custom, err := unmarshalJSON(customJSON)
	if err != nil {
		return nil, err
	}
	c.CustomData = custom
	return &c, nil
}

const cardColumns = `id, note_id, "order", back_type, due, stability, difficulty, desired_retention, state, special_state, custom_data, created_at, updated_at`

func (s *SQLiteStore) GetCard(id int64) (*model.Card, error) {
	row := s.db.QueryRow(`SELECT `+cardColumns+` FROM card WHERE id = ?`, id)
	return scanCard(row)
}

func (s *SQLiteStore) UpdateCard(c *model.Card) error {
	customJSON, err := marshalJSON(c.CustomData)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE card SET "order" = ?, back_type = ?, due = ?, stability = ?, difficulty = ?, desired_retention = ?,
		 state = ?, special_state = ?, custom_data = ?, updated_at = ? WHERE id = ?`,
		c.Order, int(c.BackType), c.Due.Unix(), c.Stability, c.Difficulty, c.DesiredRetention,
		int(c.State), int(c.SpecialState), customJSON, c.UpdatedAt.Unix(), c.ID,
	)
	return err
}

func (s *SQLiteStore) DeleteCard(id int64) error {
	_, err := s.db.Exec(`DELETE FROM card WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) ListCardsForNote(noteID int64) ([]model.Card, error) {
	rows, err := s.db.Query(`SELECT `+cardColumns+` FROM card WHERE note_id = ? ORDER BY "order"`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cards []model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

func (s *SQLiteStore) ListCardsByState(state model.State) ([]model.Card, error) {
	rows, err := s.db.Query(`SELECT `+cardColumns+` FROM card WHERE state = ? ORDER BY due`, int(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cards []model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

// Review log methods

func (s *SQLiteStore) AddReviewLog(r *model.ReviewLog) error {
	customJSON, err := marshalJSON(r.CustomData)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`INSERT INTO review_log (card_id, reviewed_at, rating, scheduler_name, scheduled_time, duration, previous_state, custom_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CardID, r.ReviewedAt.Unix(), int(r.Rating), r.SchedulerName,
		int64(r.ScheduledTime.Seconds()), int64(r.Duration.Seconds()), int(r.PreviousState), customJSON,
	)
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) ListReviewLogsForCard(cardID int64) ([]model.ReviewLog, error) {
	rows, err := s.db.Query(
		`SELECT id, card_id, reviewed_at, rating, scheduler_name, scheduled_time, duration, previous_state, custom_data
		 FROM review_log WHERE card_id = ? ORDER BY reviewed_at`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.ReviewLog
	for rows.Next() {
		var l model.ReviewLog
		var reviewedAt int64
		var rating, previousState int
		var scheduledSecs, durationSecs int64
		var customJSON []byte
		if err := rows.Scan(&l.ID, &l.CardID, &reviewedAt, &rating, &l.SchedulerName,
			&scheduledSecs, &durationSecs, &previousState, &customJSON); err != nil {
			return nil, err
		}
		l.ReviewedAt = time.Unix(reviewedAt, 0).UTC()
		l.Rating = model.Rating(rating)
		l.PreviousState = model.State(previousState)
		l.ScheduledTime = time.Duration(scheduledSecs) * time.Second
		l.Duration = time.Duration(durationSecs) * time.Second
		custom, err := unmarshalJSON(customJSON)
		if err != nil {
			return nil, err
		}
		l.CustomData = custom
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Tag methods

func (s *SQLiteStore) CreateTag(t *model.Tag) error {
	res, err := s.db.Exec(
		`INSERT INTO tag (name, parent_id, description, query, auto_delete) VALUES (?, ?, ?, ?, ?)`,
		t.Name, t.ParentID, t.Description, nullIfEmpty(t.Query), t.AutoDelete,
	)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteStore) GetTagByName(name string) (*model.Tag, error) {
	row := s.db.QueryRow(`SELECT id, name, parent_id, description, query, auto_delete FROM tag WHERE name = ?`, name)
	var t model.Tag
	var parentID sql.NullInt64
	var query sql.NullString
	var autoDelete int
	if err := row.Scan(&t.ID, &t.Name, &parentID, &t.Description, &query, &autoDelete); err != nil {
		return nil, err
	}
	if parentID.Valid {
		v := parentID.Int64
		t.ParentID = &v
	}
	t.Query = query.String
	t.AutoDelete = autoDelete != 0
	return &t, nil
}

func (s *SQLiteStore) DeleteTag(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tag WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) AddNoteTag(noteID, tagID int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO note_tag (note_id, tag_id) VALUES (?, ?)`, noteID, tagID)
	return err
}

func (s *SQLiteStore) AddCardTag(cardID, tagID int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO card_tag (card_id, tag_id) VALUES (?, ?)`, cardID, tagID)
	return err
}

func (s *SQLiteStore) RemoveCardTag(cardID, tagID int64) error {
	_, err := s.db.Exec(`DELETE FROM card_tag WHERE card_id = ? AND tag_id = ?`, cardID, tagID)
	return err
}

func (s *SQLiteStore) CountCardsForTag(tagID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM card_tag WHERE tag_id = ?`, tagID).Scan(&count)
	return count, err
}

// Note link methods

func (s *SQLiteStore) AddNoteLink(l *model.NoteLink) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO note_link (parent_note_id, linked_note_id, matched_keyword) VALUES (?, ?, ?)`,
		l.ParentNoteID, l.LinkedNoteID, l.MatchedKeyword,
	)
	return err
}

func (s *SQLiteStore) ListNoteLinks(parentNoteID int64) ([]model.NoteLink, error) {
	rows, err := s.db.Query(`SELECT parent_note_id, linked_note_id, matched_keyword FROM note_link WHERE parent_note_id = ?`, parentNoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []model.NoteLink
	for rows.Next() {
		var l model.NoteLink
		if err := rows.Scan(&l.ParentNoteID, &l.LinkedNoteID, &l.MatchedKeyword); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// EnsureParser returns the id of the parser row named name, inserting it if
// absent.
func (s *SQLiteStore) EnsureParser(name string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM parser WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := s.db.Exec(`INSERT INTO parser (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
