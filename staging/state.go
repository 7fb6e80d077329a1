package staging

import (
	"github.com/hypertrace/artifact-publisher/utils"
	"golang.org/x/exp/slices"
)

type State string

const (
	// None is the state of a session the repository refused to open.
	None         State = ""
	Opened       State = "opened"
	Uploading    State = "uploading"
	ReadyToClose State = "ready-to-close"
	Closed       State = "closed"
	Released     State = "released"
	Dropped      State = "dropped"
)

var transitions = map[State][]State{
	Opened:       {Uploading, Dropped},
	Uploading:    {ReadyToClose, Dropped},
	ReadyToClose: {Closed, Dropped},
	Closed:       {Released},
}

// IsTerminal reports whether no transition leaves the state. Closed is terminal unless a release follows.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsOpen reports whether the repository still holds staged content that was neither closed nor dropped.
func (s State) IsOpen() bool {
	return s == Opened || s == Uploading || s == ReadyToClose
}

// Session is one staging transaction on one repository target.
// A session is driven by a single goroutine.
type Session struct {
	Id     string
	Target string

	state          State
	uploaded       []string
	closeAttempted bool
	// dropErr is set when discarding the staged content failed, so it may still be on the repository.
	dropErr error
}

func newSession(id, target string) *Session {
	return &Session{Id: id, Target: target, state: Opened}
}

func (s *Session) State() State {
	return s.state
}

// Uploaded returns the remote paths uploaded in this session, in upload order.
func (s *Session) Uploaded() []string {
	return slices.Clone(s.uploaded)
}

func (s *Session) DropErr() error {
	return s.dropErr
}

func (s *Session) transition(to State) error {
	if !slices.Contains(transitions[s.state], to) {
		return &utils.StagingStateError{SessionId: s.Id, From: string(s.state), To: string(to)}
	}
	s.state = to
	return nil
}

// beginClose records the single close attempt the session is allowed.
func (s *Session) beginClose() error {
	if s.closeAttempted || s.state != ReadyToClose {
		return &utils.StagingStateError{SessionId: s.Id, From: string(s.state), To: string(Closed)}
	}
	s.closeAttempted = true
	return nil
}
