// Package mock provides a test double for the persona.Responder interface.
//
// Use Agent in orchestrator and HTTP handler tests to script character
// replies without a live LLM backend.
package mock

import (
	"context"
	"sync"

	"github.com/ColinWang98/Intercultural-Town/internal/persona"
)

// RespondCall records a single invocation of Respond.
type RespondCall struct {
	// SessionID is the session key passed to Respond.
	SessionID string
	// Prompt is the prompt passed to Respond.
	Prompt string
}

// Agent is a mock implementation of persona.Responder.
//
// Replies are served from Replies in order; once exhausted, Reply is returned
// for every further call. Set Err to fail all calls. RespondFunc, when set,
// overrides everything else.
type Agent struct {
	// Identity is returned by Persona.
	Identity persona.Persona

	mu sync.Mutex

	// Replies are returned one per call, in order.
	Replies []string

	// Reply is returned once Replies is exhausted.
	Reply string

	// Err, if non-nil, is returned from every Respond call.
	Err error

	// RespondFunc, if non-nil, handles every call instead of the fields above.
	RespondFunc func(ctx context.Context, sessionID, prompt string) (string, error)

	// Calls records every invocation of Respond in order.
	Calls []RespondCall

	next int
}

// Persona returns Identity.
func (a *Agent) Persona() persona.Persona { return a.Identity }

// Respond records the call and returns the next scripted reply.
func (a *Agent) Respond(ctx context.Context, sessionID, prompt string) (string, error) {
	a.mu.Lock()
	a.Calls = append(a.Calls, RespondCall{SessionID: sessionID, Prompt: prompt})
	fn := a.RespondFunc
	err := a.Err
	var reply string
	if a.next < len(a.Replies) {
		reply = a.Replies[a.next]
		a.next++
	} else {
		reply = a.Reply
	}
	a.mu.Unlock()

	if fn != nil {
		return fn(ctx, sessionID, prompt)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Reset clears recorded calls and rewinds the scripted replies. Thread-safe.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = nil
	a.next = 0
}

// Ensure Agent implements persona.Responder at compile time.
var _ persona.Responder = (*Agent)(nil)
