package persona

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ColinWang98/Intercultural-Town/internal/sanitize"
	"github.com/ColinWang98/Intercultural-Town/pkg/provider/llm"
)

// DefaultSessionPrefix marks the per-persona fallback session used when a
// prompt is issued outside any conversation. Conversations with this prefix
// are excluded from listings.
const DefaultSessionPrefix = "default_"

// SessionID returns the LLM session key for a persona within a conversation.
// An empty conversationID yields the persona's standalone fallback session.
func SessionID(personaID, conversationID string) string {
	if conversationID != "" {
		return conversationID
	}
	return DefaultSessionPrefix + personaID
}

// Responder produces in-character replies. The orchestrator depends on this
// interface so tests can substitute scripted agents.
type Responder interface {
	// Persona returns the character this responder plays.
	Persona() Persona

	// Respond sends prompt to the character within the given session and
	// returns the raw model reply. The reply has duplicate stream chunks
	// collapsed but is otherwise unsanitized; callers run it through the
	// sanitizer before display.
	Respond(ctx context.Context, sessionID, prompt string) (string, error)
}

// Compile-time interface check.
var _ Responder = (*Agent)(nil)

// AgentConfig holds the dependencies needed to create an [Agent].
type AgentConfig struct {
	// Persona is the character definition. Persona.ID must not be empty.
	Persona Persona

	// Provider is the LLM backend. Must not be nil.
	Provider llm.Provider

	// Temperature is passed through to the provider. Zero uses the provider
	// default.
	Temperature float64

	// MaxTokens caps completion length. Zero uses the provider default.
	MaxTokens int

	// HistoryLimit is the maximum number of messages retained per session.
	// Oldest messages are dropped first. Zero means unlimited.
	HistoryLimit int
}

// Agent binds a [Persona] to an LLM provider and keeps an independent message
// history per session, so the same character can hold several conversations
// at once without bleeding context between them.
//
// Safe for concurrent use; the provider call itself runs outside the lock so
// slow models do not serialise unrelated sessions.
type Agent struct {
	persona      Persona
	provider     llm.Provider
	temperature  float64
	maxTokens    int
	historyLimit int

	mu       sync.Mutex
	sessions map[string][]llm.Message
}

// NewAgent creates an [Agent] from the given configuration.
// Errors are prefixed with "persona: ".
func NewAgent(cfg AgentConfig) (*Agent, error) {
	if cfg.Persona.ID == "" {
		return nil, errors.New("persona: Persona.ID must not be empty")
	}
	if cfg.Provider == nil {
		return nil, errors.New("persona: Provider must not be nil")
	}

	return &Agent{
		persona:      cfg.Persona,
		provider:     cfg.Provider,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		historyLimit: cfg.HistoryLimit,
		sessions:     make(map[string][]llm.Message),
	}, nil
}

// Persona returns the character this agent plays.
func (a *Agent) Persona() Persona { return a.persona }

// Respond implements [Responder].
//
// The prompt is recorded in the session history together with the reply, so
// follow-up prompts in the same session see the full exchange. A reply that
// sanitizes down to nothing is still returned verbatim; deciding what to do
// with an unusable reply is the caller's job.
func (a *Agent) Respond(ctx context.Context, sessionID, prompt string) (string, error) {
	if sessionID == "" {
		return "", errors.New("persona: sessionID must not be empty")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("persona: prompt must not be empty")
	}

	userMsg := llm.Message{Role: llm.RoleUser, Content: prompt}

	a.mu.Lock()
	history := a.sessions[sessionID]
	msgs := make([]llm.Message, len(history), len(history)+1)
	copy(msgs, history)
	a.mu.Unlock()
	msgs = append(msgs, userMsg)

	req := llm.CompletionRequest{
		Messages:     msgs,
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
		SystemPrompt: a.persona.Instruction,
	}

	ch, err := a.provider.StreamCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("persona: %s: stream completion: %w", a.persona.ID, err)
	}

	var chunks []string
	for chunk := range ch {
		if chunk.FinishReason == "error" {
			return "", fmt.Errorf("persona: %s: stream failed: %s", a.persona.ID, chunk.Text)
		}
		if chunk.Text != "" {
			chunks = append(chunks, chunk.Text)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("persona: %s: %w", a.persona.ID, err)
	}

	reply := strings.TrimSpace(sanitize.JoinChunks(chunks))
	if reply == "" {
		return "", nil
	}

	a.mu.Lock()
	session := append(a.sessions[sessionID], userMsg, llm.Message{
		Role:    llm.RoleAssistant,
		Content: reply,
		Name:    a.persona.Name,
	})
	if a.historyLimit > 0 && len(session) > a.historyLimit {
		session = session[len(session)-a.historyLimit:]
	}
	a.sessions[sessionID] = session
	a.mu.Unlock()

	return reply, nil
}

// ResetSession drops the stored history for one session. Used when a
// conversation is deleted.
func (a *Agent) ResetSession(sessionID string) {
	a.mu.Lock()
	delete(a.sessions, sessionID)
	a.mu.Unlock()
}
