package store

import (
	"path/filepath"
	"testing"
	"time"

	"spares/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureParserIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	id1, err := s.EnsureParser("markdown")
	if err != nil {
		t.Fatalf("EnsureParser: %v", err)
	}
	id2, err := s.EnsureParser("markdown")
	if err != nil {
		t.Fatalf("EnsureParser: %v", err)
	}
	if id1 != id2 {
		t.Errorf("EnsureParser returned different ids for the same name: %d != %d", id1, id2)
	}
	otherID, err := s.EnsureParser("latex")
	if err != nil {
		t.Fatalf("EnsureParser: %v", err)
	}
	if otherID == id1 {
		t.Errorf("distinct parser names should get distinct ids")
	}
}

func TestNoteCreateGetUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	parserID, err := s.EnsureParser("markdown")
	if err != nil {
		t.Fatalf("EnsureParser: %v", err)
	}

	now := time.Now().Truncate(time.Second)
	note := &model.Note{
		ParserID:   parserID,
		Data:       "The capital of France is Paris.",
		Keywords:   []string{"France", "Paris"},
		CustomData: map[string]any{"difficulty": "easy"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.CreateNote(note); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if note.ID == 0 {
		t.Fatalf("CreateNote did not assign an id")
	}

	got, err := s.GetNote(note.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Data != note.Data || len(got.Keywords) != 2 || got.CustomData["difficulty"] != "easy" {
		t.Errorf("GetNote round trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}

	got.Data = "updated body"
	got.UpdatedAt = now.Add(time.Hour)
	if err := s.UpdateNote(got); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	reloaded, err := s.GetNote(note.ID)
	if err != nil {
		t.Fatalf("GetNote after update: %v", err)
	}
	if reloaded.Data != "updated body" {
		t.Errorf("UpdateNote did not persist: %+v", reloaded)
	}

	if err := s.DeleteNote(note.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := s.GetNote(note.ID); err == nil {
		t.Errorf("expected an error fetching a deleted note")
	}
}

func TestCardCreateGetUpdateAndListByState(t *testing.T) {
	s := newTestStore(t)
	parserID, err := s.EnsureParser("markdown")
	if err != nil {
		t.Fatalf("EnsureParser: %v", err)
	}
	now := time.Now().Truncate(time.Second)
	note := &model.Note{ParserID: parserID, Data: "x", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateNote(note); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}

	card := &model.Card{
		NoteID:           note.ID,
		Order:            1,
		BackType:         model.BackTypeFullNote,
		Due:              now,
		DesiredRetention: 0.9,
		State:            model.StateReview,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.CreateCard(card); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	got, err := s.GetCard(card.ID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.NoteID != note.ID || got.Order != 1 || got.State != model.StateReview || !got.Due.Equal(now) {
		t.Errorf("GetCard round trip mismatch: %+v", got)
	}

	cards, err := s.ListCardsByState(model.StateReview)
	if err != nil {
		t.Fatalf("ListCardsByState: %v", err)
	}
	if len(cards) != 1 || cards[0].ID != card.ID {
		t.Fatalf("ListCardsByState = %+v", cards)
	}

	card.State = model.StateLearning
	card.UpdatedAt = now.Add(time.Minute)
	if err := s.UpdateCard(card); err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	stillReview, err := s.ListCardsByState(model.StateReview)
	if err != nil {
		t.Fatalf("ListCardsByState: %v", err)
	}
	if len(stillReview) != 0 {
		t.Errorf("card should no longer be in Review state: %+v", stillReview)
	}
}

func TestReviewLogRoundTrip(t *testing.T) {
	s := newTestStore(t)
	parserID, _ := s.EnsureParser("markdown")
	now := time.Now().Truncate(time.Second)
	note := &model.Note{ParserID: parserID, Data: "x", CreatedAt: now, UpdatedAt: now}
	s.CreateNote(note)
	card := &model.Card{NoteID: note.ID, Order: 1, Due: now, State: model.StateNew, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateCard(card); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	log := &model.ReviewLog{
		CardID:        card.ID,
		ReviewedAt:    now,
		Rating:        model.RatingGood,
		Duration:      5 * time.Second,
		SchedulerName: "fsrs",
		ScheduledTime: 24 * time.Hour,
		PreviousState: model.StateNew,
	}
	if err := s.AddReviewLog(log); err != nil {
		t.Fatalf("AddReviewLog: %v", err)
	}

	logs, err := s.ListReviewLogsForCard(card.ID)
	if err != nil {
		t.Fatalf("ListReviewLogsForCard: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].Rating != model.RatingGood || logs[0].Duration != 5*time.Second {
		t.Errorf("review log mismatch: %+v", logs[0])
	}
}

func TestTagAndCardTagLifecycle(t *testing.T) {
	s := newTestStore(t)
	parserID, _ := s.EnsureParser("markdown")
	now := time.Now().Truncate(time.Second)
	note := &model.Note{ParserID: parserID, Data: "x", CreatedAt: now, UpdatedAt: now}
	s.CreateNote(note)
	card := &model.Card{NoteID: note.ID, Order: 1, Due: now, State: model.StateNew, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateCard(card); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	tag := &model.Tag{Name: "geography"}
	if err := s.CreateTag(tag); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	got, err := s.GetTagByName("geography")
	if err != nil {
		t.Fatalf("GetTagByName: %v", err)
	}
	if got.ID != tag.ID {
		t.Errorf("GetTagByName mismatch: %+v", got)
	}

	if err := s.AddCardTag(card.ID, tag.ID); err != nil {
		t.Fatalf("AddCardTag: %v", err)
	}
	count, err := s.CountCardsForTag(tag.ID)
	if err != nil {
		t.Fatalf("CountCardsForTag: %v", err)
	}
	if count != 1 {
		t.Errorf("CountCardsForTag = %d, want 1", count)
	}

	if err := s.RemoveCardTag(card.ID, tag.ID); err != nil {
		t.Fatalf("RemoveCardTag: %v", err)
	}
	count, err = s.CountCardsForTag(tag.ID)
	if err != nil {
		t.Fatalf("CountCardsForTag: %v", err)
	}
	if count != 0 {
		t.Errorf("CountCardsForTag after remove = %d, want 0", count)
	}
}

func TestNoteLinkRoundTrip(t *testing.T) {
	s := newTestStore(t)
	parserID, _ := s.EnsureParser("markdown")
	now := time.Now().Truncate(time.Second)
	parent := &model.Note{ParserID: parserID, Data: "parent", CreatedAt: now, UpdatedAt: now}
	child := &model.Note{ParserID: parserID, Data: "child", CreatedAt: now, UpdatedAt: now}
	s.CreateNote(parent)
	s.CreateNote(child)

	if err := s.AddNoteLink(&model.NoteLink{ParentNoteID: parent.ID, LinkedNoteID: child.ID, MatchedKeyword: "child"}); err != nil {
		t.Fatalf("AddNoteLink: %v", err)
	}
	links, err := s.ListNoteLinks(parent.ID)
	if err != nil {
		t.Fatalf("ListNoteLinks: %v", err)
	}
	if len(links) != 1 || links[0].LinkedNoteID != child.ID {
		t.Fatalf("ListNoteLinks = %+v", links)
	}
}
