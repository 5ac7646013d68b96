// Package conversation implements the core of the chat backend: conversation
// state, the phase state machine, the speaker selection policy, and the turn
// orchestrator that ties them to persona agents.
//
// A conversation is an append-only message log shared between one player and
// one or more personas. Each incoming player message advances a per-
// conversation phase machine (small talk, topic deep-dives, wrap-up,
// finished) which decides who replies and how.
package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ColinWang98/Intercultural-Town/internal/persona"
)

// Message role strings on the wire. The Godot client already speaks this
// format, so they are part of the API contract.
const (
	// RoleUser marks a message sent by the player.
	RoleUser = "user"

	// RoleModel marks a message produced by a persona.
	RoleModel = "model"
)

// Message is one entry in a conversation's log. Messages are append-only and
// never mutated after being stored.
type Message struct {
	// Role is RoleUser or RoleModel.
	Role string `json:"role"`

	// Name is the speaker's display name for RoleModel messages. For RoleUser
	// messages it is empty unless the client supplied a player display name.
	Name string `json:"name,omitempty"`

	// Content is the message text. Persona content is post-sanitization;
	// player content is stored as received (trimmed).
	Content string `json:"content"`
}

// Conversation is the stored state of one player-NPC dialogue.
type Conversation struct {
	// ID is the opaque conversation identifier, assigned at creation.
	ID string `json:"id"`

	// PersonaIDs is the ordered participant list, fixed at creation.
	PersonaIDs []string `json:"persona_ids"`

	// Messages is the append-only message log.
	Messages []Message `json:"messages"`

	// CreatedAt is the creation timestamp (UTC).
	CreatedAt time.Time `json:"created_at"`

	// Profiles holds the dynamic persona configs supplied at creation, keyed
	// by persona ID. Not serialized to the client.
	Profiles map[string]persona.Profile `json:"-"`
}

// Summary is the listing view of a conversation.
type Summary struct {
	ID           string    `json:"id"`
	PersonaIDs   []string  `json:"persona_ids"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// NewID returns a fresh conversation identifier: a hex UUID without dashes,
// matching the id format the Godot client stores.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsInternalID reports whether id names an internal per-persona fallback
// session rather than a real conversation. Internal ids never appear in
// listings.
func IsInternalID(id string) bool {
	return strings.HasPrefix(id, persona.DefaultSessionPrefix)
}
