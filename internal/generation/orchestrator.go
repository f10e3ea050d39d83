package generation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mounthank/go-imagegen/models"
)

// ErrBusy is returned when a submission arrives while one is in flight.
// Callers treat it as a no-op: the first submission keeps running.
var ErrBusy = errors.New("a generation is already in progress")

type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateDisplaying State = "displaying"
	StateFailed     State = "failed"
)

// Generator is what the orchestrator submits to; *Service satisfies it.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Saver persists one history record. Implementations may enrich the record
// (archival) before writing it.
type Saver interface {
	Save(ctx context.Context, rec *models.SavedImage) error
}

// PrincipalFunc reports the signed-in user id for the session driving this
// orchestrator, if there is one. It is consulted at display time, so a
// sign-out mid-generation simply skips the history write.
type PrincipalFunc func() (string, bool)

// Snapshot is a point-in-time copy of the orchestrator for rendering.
type Snapshot struct {
	State    State  `json:"state"`
	ModelKey string `json:"model"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
	Debug    *Debug `json:"debug,omitempty"`
}

// Orchestrator drives one session's generation flow:
// idle -> submitting -> displaying | failed, back to idle on prompt edits.
// A second submission while one is in flight is rejected, everything else
// (model selection, prompt edits) stays available.
type Orchestrator struct {
	gen       Generator
	saver     Saver // nil disables persistence entirely
	principal PrincipalFunc

	mu       sync.Mutex
	state    State
	modelKey string
	prompt   string
	imageURL string
	errMsg   string
	debug    *Debug

	saves sync.WaitGroup
}

func NewOrchestrator(gen Generator, saver Saver, principal PrincipalFunc) *Orchestrator {
	return &Orchestrator{
		gen:       gen,
		saver:     saver,
		principal: principal,
		state:     StateIdle,
		modelKey:  "fluxDev",
	}
}

// SelectModel is a pure local state change. It may happen mid-generation
// and only affects the next submission.
func (o *Orchestrator) SelectModel(key string) {
	o.mu.Lock()
	o.modelKey = key
	o.mu.Unlock()
}

// EditPrompt updates the prompt and drops any finished result or error.
func (o *Orchestrator) EditPrompt(prompt string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompt = prompt
	if o.state != StateSubmitting {
		o.state = StateIdle
		o.imageURL = ""
		o.errMsg = ""
		o.debug = nil
	}
}

// Submit runs one generation to completion. It blocks the calling request,
// not the session: other calls may still read state or edit the prompt.
func (o *Orchestrator) Submit(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return ErrBusy
	}
	if o.prompt == "" {
		o.mu.Unlock()
		return ErrPromptRequired
	}
	o.state = StateSubmitting
	o.imageURL = ""
	o.errMsg = ""
	o.debug = nil
	prompt, modelKey := o.prompt, o.modelKey
	o.mu.Unlock()

	res, err := o.gen.Generate(ctx, Request{Prompt: prompt, Model: modelKey})
	if err != nil {
		o.fail(err.Error())
		return nil
	}

	imageURL, err := FirstImage(res.Output)
	if err != nil {
		o.fail(err.Error())
		return nil
	}

	o.mu.Lock()
	o.state = StateDisplaying
	o.imageURL = imageURL
	o.debug = &res.Debug
	o.mu.Unlock()

	if o.principal != nil && o.saver != nil {
		if userID, ok := o.principal(); ok {
			o.persist(userID, prompt, res, imageURL)
		}
	}
	return nil
}

// persist appends the history record off the request path. The image is
// already on screen, so a failed write is logged and nothing else.
func (o *Orchestrator) persist(userID, prompt string, res *Result, imageURL string) {
	rec := &models.SavedImage{
		UUID:       uuid.New().String(),
		CreatedAt:  time.Now(),
		UserID:     userID,
		Prompt:     prompt,
		Model:      res.Model.Name,
		Parameters: datatypes.JSONMap(res.Input),
		ImageURL:   imageURL,
	}
	o.saves.Add(1)
	go func() {
		defer o.saves.Done()
		if err := o.saver.Save(context.Background(), rec); err != nil {
			log.Printf("failed to save generated image for user %s: %v", userID, err)
		}
	}()
}

func (o *Orchestrator) fail(msg string) {
	o.mu.Lock()
	o.state = StateFailed
	o.errMsg = msg
	o.mu.Unlock()
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		State:    o.state,
		ModelKey: o.modelKey,
		Prompt:   o.prompt,
		ImageURL: o.imageURL,
		Error:    o.errMsg,
		Debug:    o.debug,
	}
}

// Drain blocks until in-flight history writes finish. Used on shutdown.
func (o *Orchestrator) Drain() {
	o.saves.Wait()
}
