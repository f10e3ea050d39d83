package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/mounthank/go-imagegen/internal/auth"
	"github.com/mounthank/go-imagegen/internal/generation"
)

const hubSessionName = "_imagegen_ui"

// principalBox holds the current principal id for one browsing session.
// Only the session hub writes it; the orchestrator reads it at display
// time, so a sign-out mid-generation just skips the history write.
type principalBox struct {
	mu sync.Mutex
	id string
	ok bool
}

func (b *principalBox) set(id string, ok bool) {
	b.mu.Lock()
	b.id, b.ok = id, ok
	b.mu.Unlock()
}

func (b *principalBox) get() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id, b.ok
}

type sessionEntry struct {
	orch     *generation.Orchestrator
	box      *principalBox
	lastSeen time.Time
}

// Entries idle past this are dropped so the hub stays bounded; the next
// request from such a session just starts a fresh idle orchestrator.
const (
	entryTTL      = 12 * time.Hour
	sweepInterval = 10 * time.Minute
)

// SessionHub keeps one orchestrator per browsing session so the
// submit/display/fail flow survives across requests.
type SessionHub struct {
	gen     generation.Generator
	saver   generation.Saver
	gateway *auth.Gateway
	store   sessions.Store
	now     func() time.Time

	mu        sync.Mutex
	entries   map[string]*sessionEntry
	lastSweep time.Time
}

func NewSessionHub(gen generation.Generator, saver generation.Saver, gateway *auth.Gateway, store sessions.Store) *SessionHub {
	return &SessionHub{
		gen:     gen,
		saver:   saver,
		gateway: gateway,
		store:   store,
		now:     time.Now,
		entries: make(map[string]*sessionEntry),
	}
}

// entryFor finds or creates the session's orchestrator and refreshes its
// view of the signed-in principal.
func (h *SessionHub) entryFor(w http.ResponseWriter, r *http.Request) (*sessionEntry, error) {
	session, err := h.store.Get(r, hubSessionName)
	if err != nil {
		return nil, err
	}

	sid, _ := session.Values["sid"].(string)
	if sid == "" {
		sid = uuid.New().String()
		session.Values["sid"] = sid
		if err := session.Save(r, w); err != nil {
			return nil, err
		}
	}

	now := h.now()
	h.mu.Lock()
	entry, ok := h.entries[sid]
	if !ok {
		box := &principalBox{}
		entry = &sessionEntry{
			orch: generation.NewOrchestrator(h.gen, h.saver, box.get),
			box:  box,
		}
		h.entries[sid] = entry
	}
	entry.lastSeen = now
	if now.Sub(h.lastSweep) >= sweepInterval {
		h.sweepLocked(now)
	}
	h.mu.Unlock()

	if p, ok := h.gateway.CurrentPrincipal(r); ok {
		entry.box.set(p.ID, true)
	} else {
		entry.box.set("", false)
	}
	return entry, nil
}

// sweepLocked drops entries idle past entryTTL. Callers hold h.mu. An
// orchestrator that is still submitting keeps its entry so the result of
// that submission is not thrown away.
func (h *SessionHub) sweepLocked(now time.Time) {
	h.lastSweep = now
	for sid, e := range h.entries {
		if now.Sub(e.lastSeen) <= entryTTL {
			continue
		}
		if e.orch.Snapshot().State == generation.StateSubmitting {
			continue
		}
		delete(h.entries, sid)
	}
}

type submitRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// SubmitGeneration drives one submission of the session's state machine.
// A submission while one is in flight is a no-op answered with 409.
func (h *SessionHub) SubmitGeneration(w http.ResponseWriter, r *http.Request) {
	entry, err := h.entryFor(w, r)
	if err != nil {
		log.Println("failed to load session:", err)
		http.Error(w, "Session unavailable", http.StatusServiceUnavailable)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Invalid request body",
		})
		return
	}

	if req.Model != "" {
		entry.orch.SelectModel(req.Model)
	}
	entry.orch.EditPrompt(req.Prompt)

	switch err := entry.orch.Submit(r.Context()); {
	case errors.Is(err, generation.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": err.Error(),
			"state": entry.orch.Snapshot(),
		})
	case errors.Is(err, generation.ErrPromptRequired):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Prompt is required",
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"state": entry.orch.Snapshot(),
		})
	}
}

// SessionState reports the session's current snapshot for rendering.
func (h *SessionHub) SessionState(w http.ResponseWriter, r *http.Request) {
	entry, err := h.entryFor(w, r)
	if err != nil {
		log.Println("failed to load session:", err)
		http.Error(w, "Session unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": entry.orch.Snapshot(),
	})
}

// Drain waits for every session's pending history writes. Called on
// shutdown so best-effort persistence still gets its chance to land.
func (h *SessionHub) Drain() {
	h.mu.Lock()
	entries := make([]*sessionEntry, 0, len(h.entries))
	for _, e := range h.entries {
		entries = append(entries, e)
	}
	h.mu.Unlock()
	for _, e := range entries {
		e.orch.Drain()
	}
}
