// Package httpapi exposes the engine over HTTP, adapted from
// cmd/sparesd's original APIHandler/chi router: same middleware stack, CORS
// policy, and respondJSON/parseIDParam helpers, retargeted from
// Deck/NoteType/Collection endpoints onto notes, cards, reviews, search and
// backups.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/oauth2"

	"spares/internal/backupmgr"
	"spares/internal/bulkschedule"
	"spares/internal/cloze"
	"spares/internal/config"
	"spares/internal/model"
	"spares/internal/notedriver"
	"spares/internal/query"
	"spares/internal/scheduler"
	"spares/internal/store"
)

var htmlPolicy = bluemonday.UGCPolicy()

func sanitizeHTML(input string) string { return htmlPolicy.Sanitize(input) }

// Handler wires the persistence, compiler, query and scheduling packages
// into HTTP endpoints.
type Handler struct {
	Store      store.Store
	Driver     *notedriver.Driver
	Scheduler  *scheduler.FSRS
	RuntimeCtx *config.RuntimeContext
	BackupMgr  *backupmgr.Manager
	SyncToken  *oauth2.Token
}

// New builds a Handler over an already-open store and compiled dialect
// driver.
func New(st store.Store, driver *notedriver.Driver, sched *scheduler.FSRS, rc *config.RuntimeContext, bm *backupmgr.Manager) *Handler {
	return &Handler{Store: st, Driver: driver, Scheduler: sched, RuntimeCtx: rc, BackupMgr: bm}
}

// SetSyncToken installs the OAuth2 token for the account a remote sync
// adapter would use; nil means sync is not configured (spec section 6's
// sync adapter is external and out of scope — this only models the token
// lifecycle a real adapter would check before attempting a push/pull).
func (h *Handler) SetSyncToken(tok *oauth2.Token) { h.SyncToken = tok }

// Router builds the chi router with the teacher's middleware/CORS shape.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)
		r.Get("/sync", h.SyncStatus)

		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{id}", h.GetNote)

		r.Get("/cards/{id}", h.GetCard)
		r.Post("/cards/{id}/answer", h.AnswerCard)
		r.Post("/cards/{id}/bury", h.BuryCard)

		r.Post("/search", h.Search)

		r.Post("/bulk/advance", h.BulkAdvance)
		r.Post("/bulk/postpone", h.BulkPostpone)

		r.Post("/backups", h.CreateBackup)
		r.Post("/backups/restore", h.RestoreBackup)
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func parseIDParam(r *http.Request, paramName string) (int64, error) {
	idStr := chi.URLParam(r, paramName)
	return strconv.ParseInt(idStr, 10, 64)
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SyncStatus reports whether a sync account token is configured and
// unexpired. The sync push/pull protocol itself is an external adapter
// (spec section 6) and out of scope; this only exposes the token's
// lifecycle state.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	if h.SyncToken == nil {
		respondJSON(w, http.StatusOK, map[string]any{"configured": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"configured": true,
		"valid":      h.SyncToken.Valid(),
		"expiry":     h.SyncToken.Expiry,
	})
}

// CreateNoteRequest carries a raw note body plus its preceding settings text
// for one parser dialect.
type CreateNoteRequest struct {
	ParserName   string `json:"parserName"`
	RawSettings  string `json:"rawSettings"`
	Body         string `json:"body"`
}

// NoteResponse is the sanitized, persisted view of a compiled note.
type NoteResponse struct {
	NoteID             int64    `json:"noteId"`
	ResolvedCardsCount int      `json:"resolvedCardsCount"`
	Tags               []string `json:"tags"`
	Keywords           []string `json:"keywords"`
	LinkedNotes        []string `json:"linkedNotes"`
	Warnings           []string `json:"warnings"`
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Body == "" {
		http.Error(w, "body is required", http.StatusBadRequest)
		return
	}

	ops, ok := cloze.Registry[req.ParserName]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown parser %q", req.ParserName), http.StatusBadRequest)
		return
	}
	matches, err := ops.GetClozes(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	driver := notedriver.New(ops)
	global := notedriver.NewGlobalSettings()
	ns, err := driver.ResolveNote(req.RawSettings, req.Body, matches, global)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	parserID, err := h.Store.EnsureParser(req.ParserName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	now := h.RuntimeCtx.Now()
	note := &model.Note{
		ParserID:   parserID,
		Data:       sanitizeHTML(ns.RewrittenData),
		Keywords:   ns.Keywords,
		CustomData: ns.CustomData,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Store.CreateNote(note); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for _, c := range ns.Cards {
		card := &model.Card{
			NoteID:           note.ID,
			Order:            c.Orders[0],
			BackType:         model.BackType(c.BackType),
			Due:              now,
			DesiredRetention: 0.9,
			State:            model.StateNew,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := h.Store.CreateCard(card); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	respondJSON(w, http.StatusCreated, NoteResponse{
		NoteID:             note.ID,
		ResolvedCardsCount: ns.ResolvedCardsCount,
		Tags:               ns.Tags,
		Keywords:           ns.Keywords,
		LinkedNotes:        ns.LinkedNotes,
		Warnings:           ns.Warnings,
	})
}

func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "invalid note id", http.StatusBadRequest)
		return
	}
	note, err := h.Store.GetNote(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "invalid card id", http.StatusBadRequest)
		return
	}
	card, err := h.Store.GetCard(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// AnswerCardRequest rates a card the way the teacher's AnswerCardRequest did.
type AnswerCardRequest struct {
	Rating       int `json:"rating"`
	TimeTakenSec int `json:"timeTakenSec"`
}

func (h *Handler) AnswerCard(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "invalid card id", http.StatusBadRequest)
		return
	}
	var req AnswerCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	card, err := h.Store.GetCard(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	logs, err := h.Store.ListReviewLogsForCard(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var lastReview time.Time
	if len(logs) > 0 {
		lastReview = logs[len(logs)-1].ReviewedAt
	}

	now := h.RuntimeCtx.Now()
	updated, reviewLog, err := h.Scheduler.Schedule(card, lastReview, model.Rating(req.Rating), now, time.Duration(req.TimeTakenSec)*time.Second)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	updated.UpdatedAt = now
	if err := h.Store.UpdateCard(&updated); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.Store.AddReviewLog(&reviewLog); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) BuryCard(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "invalid card id", http.StatusBadRequest)
		return
	}
	card, err := h.Store.GetCard(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	updated, err := h.Scheduler.Bury(card)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	updated.UpdatedAt = h.RuntimeCtx.Now()
	if err := h.Store.UpdateCard(&updated); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// SearchRequest carries one query-language expression (spec C7).
type SearchRequest struct {
	Query string `json:"query"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	tree, err := query.Parse(req.Query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sql, args, err := query.CompileSelect(tree)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sql": sql, "args": args})
}

// BulkMoveRequest requests advancing or postponing up to N cards.
type BulkMoveRequest struct {
	N           int       `json:"n"`
	CardDueBy   time.Time `json:"cardDueBy"`
}

func (h *Handler) BulkAdvance(w http.ResponseWriter, r *http.Request) { h.bulkMove(w, r, bulkschedule.ActionAdvance) }
func (h *Handler) BulkPostpone(w http.ResponseWriter, r *http.Request) { h.bulkMove(w, r, bulkschedule.ActionPostpone) }

func (h *Handler) bulkMove(w http.ResponseWriter, r *http.Request, action bulkschedule.Action) {
	var req BulkMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cards, err := h.Store.ListCardsByState(model.StateReview)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	cfg := h.RuntimeCtx.Config
	moved := bulkschedule.Move(cards, req.N, action, req.CardDueBy, cfg.MinimumInterval, cfg.MaximumInterval, cfg)
	for i := range moved {
		if err := h.Store.UpdateCard(&moved[i]); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]int{"moved": len(moved)})
}

func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	path, err := h.BackupMgr.CreateBackup()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// RestoreBackupRequest names the zip file to restore from.
type RestoreBackupRequest struct {
	Path string `json:"path"`
}

func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req RestoreBackupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.BackupMgr.RestoreBackup(req.Path); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}
