package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"spares/internal/backupmgr"
	"spares/internal/cloze"
	"spares/internal/config"
	"spares/internal/notedriver"
	"spares/internal/scheduler"
	"spares/internal/store"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ops, ok := cloze.Registry["markdown"]
	if !ok {
		t.Fatalf("markdown dialect not registered")
	}
	driver := notedriver.New(ops)
	sched := scheduler.New()
	rc := config.NewRuntimeContext(config.DefaultSchedulerConfig())
	bm := backupmgr.New(filepath.Join(dir, "test.db"), filepath.Join(dir, "backups"))
	return New(st, driver, sched, rc, bm)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSyncStatusUnconfigured(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/sync", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["configured"] != false {
		t.Errorf("configured = %v, want false", body["configured"])
	}
}

func TestCreateNoteAndGetNote(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	rec := postJSON(t, router, "/api/notes", CreateNoteRequest{
		ParserName: "markdown",
		Body:       "The capital of France is {{Paris}}.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("CreateNote status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var created NoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ResolvedCardsCount != 1 {
		t.Fatalf("ResolvedCardsCount = %d, want 1", created.ResolvedCardsCount)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/notes/"+strconv.FormatInt(created.NoteID, 10), nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GetNote status = %d, body=%s", getRec.Code, getRec.Body.String())
	}
}

func TestCreateNoteUnknownParserRejected(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h.Router(), "/api/notes", CreateNoteRequest{ParserName: "nonexistent", Body: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnswerCardAdvancesState(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	rec := postJSON(t, router, "/api/notes", CreateNoteRequest{
		ParserName: "markdown",
		Body:       "{{one}}",
	})
	var created NoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	cards, err := h.Store.ListCardsForNote(created.NoteID)
	if err != nil {
		t.Fatalf("ListCardsForNote: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}

	answerRec := postJSON(t, router, "/api/cards/"+strconv.FormatInt(cards[0].ID, 10)+"/answer", AnswerCardRequest{Rating: 3, TimeTakenSec: 5})
	if answerRec.Code != http.StatusOK {
		t.Fatalf("AnswerCard status = %d, body=%s", answerRec.Code, answerRec.Body.String())
	}
}

func TestSearchCompilesQuery(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h.Router(), "/api/search", SearchRequest{Query: `tag = "verb"`})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
}

func TestSearchRejectsInvalidQuery(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h.Router(), "/api/search", SearchRequest{Query: `c.state`})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
