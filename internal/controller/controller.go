// Package controller orchestrates a single learning session: it owns the
// lesson tree, drives the generation pipeline, and applies evaluator and
// analyzer verdicts. Exactly one controller exists per active session
// and all of its flows are awaited before the next mutation is applied;
// the controller itself does not guard against concurrent invocation.
package controller

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/studytree-dev/studytree/internal/assess"
	"github.com/studytree-dev/studytree/internal/pipeline"
	obsmetrics "github.com/studytree-dev/studytree/pkg/observability"
	"github.com/studytree-dev/studytree/pkg/session"
)

// State is the controller's primary state.
type State string

const (
	// StateIdle means no flow is in flight.
	StateIdle State = "idle"
	// StateGenerating means a generation flow is awaiting the backend.
	StateGenerating State = "generating"
	// StateEvaluating means an answer is being judged.
	StateEvaluating State = "evaluating"
)

// ErrNoSession is returned by flows that need an active session when
// none exists.
var ErrNoSession = errors.New("no active session")

// ErrNoCurrentNode is returned by flows that operate on the node in
// focus when the tree is still empty.
var ErrNoCurrentNode = errors.New("session has no current node")

// ErrSuperseded is returned when a flow's asynchronous result arrived
// after the session it belonged to was reset or replaced. The result is
// discarded; no mutation happens.
var ErrSuperseded = errors.New("flow superseded by a newer session action")

// Generator produces lesson content. *pipeline.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request, onProgress pipeline.ProgressFunc) (*pipeline.Result, error)
}

// Deps are the controller's collaborators.
type Deps struct {
	Generator  Generator
	Analyzer   assess.Analyzer
	Evaluator  assess.Evaluator
	Questioner assess.Questioner
	Store      session.Store
	// Slot is the persistence slot name. Defaults to "current".
	Slot string
	// OnProgress receives generation progress updates. Optional,
	// best-effort, never affects flow outcomes.
	OnProgress pipeline.ProgressFunc
}

// Controller is the single writer of a learning session's tree.
type Controller struct {
	gen        Generator
	analyzer   assess.Analyzer
	evaluator  assess.Evaluator
	questioner assess.Questioner
	store      session.Store
	slot       string
	onProgress pipeline.ProgressFunc

	sess    *session.LearningSession
	state   State
	lastErr string

	// token identifies the session generation each flow belongs to.
	// Reset and every session replacement bump it; a flow whose token
	// no longer matches discards its result instead of mutating the
	// tree.
	token uint64

	quiz *quizState
}

// New creates a controller with no active session.
func New(deps Deps) *Controller {
	slot := deps.Slot
	if slot == "" {
		slot = "current"
	}
	return &Controller{
		gen:        deps.Generator,
		analyzer:   deps.Analyzer,
		evaluator:  deps.Evaluator,
		questioner: deps.Questioner,
		store:      deps.Store,
		slot:       slot,
		onProgress: deps.OnProgress,
		state:      StateIdle,
	}
}

// Resume loads a previously persisted session, if any. A corrupt or
// absent document leaves the controller without a session; startup
// never fails because of a bad cached document.
func (c *Controller) Resume(ctx context.Context) bool {
	s := session.LoadIfPresent(ctx, c.store, c.slot)
	if s == nil {
		return false
	}
	c.token++
	c.sess = s
	if s.Tree != nil {
		obsmetrics.SetSessionNodes(s.Tree.Len())
	}
	return true
}

// Reset discards the active session and clears the persisted slot. Any
// in-flight flow's eventual result is discarded by the token guard.
func (c *Controller) Reset(ctx context.Context) error {
	c.token++
	c.sess = nil
	c.state = StateIdle
	c.lastErr = ""
	c.quiz = nil
	obsmetrics.SetSessionNodes(0)
	if err := c.store.Clear(ctx, c.slot); err != nil {
		obsmetrics.RecordPersistenceFailure()
		return err
	}
	return nil
}

// State returns the controller's primary state.
func (c *Controller) State() State { return c.state }

// LastError returns the display message of the most recent failed flow,
// empty after a successful one.
func (c *Controller) LastError() string { return c.lastErr }

// Session returns the active session, nil when none exists.
func (c *Controller) Session() *session.LearningSession { return c.sess }

// begin marks a flow started and returns the token it must present
// before applying its result.
func (c *Controller) begin(s State) uint64 {
	c.state = s
	c.lastErr = ""
	return c.token
}

// stale reports whether a flow's token was superseded while it was
// suspended. A stale flow must not touch the tree.
func (c *Controller) stale(token uint64) bool {
	return token != c.token
}

// fail records a session-level error and returns the controller to
// idle. The tree is left exactly as it was before the flow began.
func (c *Controller) fail(err error) error {
	c.lastErr = err.Error()
	c.state = StateIdle
	return err
}

// finish returns the controller to idle after a successful flow.
func (c *Controller) finish() {
	c.state = StateIdle
}

// persist writes the session to the slot. Persistence failures are
// logged and swallowed: the in-memory tree stays authoritative and the
// flow that mutated it still counts as succeeded.
func (c *Controller) persist(ctx context.Context) {
	if c.sess == nil {
		return
	}
	c.sess.LastUpdatedAt = time.Now().UTC()
	if err := c.store.Save(ctx, c.slot, c.sess); err != nil {
		obsmetrics.RecordPersistenceFailure()
		log.Printf("controller: persisting session %s failed: %v", c.sess.SessionID, err)
		return
	}
	obsmetrics.SetSessionNodes(c.sess.Tree.Len())
}
