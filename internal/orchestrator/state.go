package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/boya-scheduler/internal/course"
	"github.com/example/boya-scheduler/internal/selection"
)

type State string

const (
	Idle           State = "idle"
	Authenticated  State = "authenticated"
	Filtering      State = "filtering"
	AwaitingChoice State = "awaiting_choice"
	Waiting        State = "waiting"
	Renewing       State = "renewing"
	Executing      State = "executing"
	Done           State = "done"
	Failed         State = "failed"
)

func (s State) Terminal() bool { return s == Done || s == Failed }

// RunContext is the credential state of one process invocation. The
// orchestrator owns it for the duration of a run and hands it back to the
// caller, which persists it.
type RunContext struct {
	ID       uuid.UUID
	Username string
	Password string
	Token    string
}

func NewRunContext(username, password, token string) *RunContext {
	return &RunContext{ID: uuid.New(), Username: username, Password: password, Token: token}
}

// Result describes how far a run got.
type Result struct {
	State State
	// Every state entered, in order, starting with Idle.
	Trace []State

	Offerings []course.Offering
	Chosen    *course.Offering
	Waited    time.Duration
	Renewed   bool
	Outcome   *selection.Outcome
}

// enter moves to s. A run that reached Done or Failed stays there.
func (r *Result) enter(s State) {
	if r.State.Terminal() {
		return
	}
	r.State = s
	r.Trace = append(r.Trace, s)
}
