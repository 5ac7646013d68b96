// Package persona defines the NPC characters that participate in
// conversations and the agents that produce their replies.
//
// A [Persona] is a static character definition: stable ID, display name, and
// the system instruction that shapes the LLM's behaviour. A [Profile] is a
// dynamic character sheet the game client can send at conversation creation
// to define characters without a backend change. An [Agent] binds a persona
// to an LLM provider and keeps per-conversation message history.
package persona

import "strings"

// Persona is a static character definition.
type Persona struct {
	// ID is the stable identifier used in API requests ("mikko", "observer").
	// Always lowercase.
	ID string

	// Name is the display name attached to this persona's messages.
	Name string

	// Aliases are alternative spellings of the name that count as addressing
	// this persona in a player message (e.g. the Chinese transliteration).
	Aliases []string

	// Instruction is the system prompt sent with every completion for this
	// persona.
	Instruction string
}

// Mentioned reports whether text addresses this persona by name or alias.
// Matching is case-insensitive substring search. A persona without a name
// never matches; Contains treats the empty string as present in everything.
func (p Persona) Mentioned(text string) bool {
	lower := strings.ToLower(text)
	if p.Name != "" && strings.Contains(lower, strings.ToLower(p.Name)) {
		return true
	}
	for _, a := range p.Aliases {
		if a != "" && strings.Contains(lower, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// Registry is a read-only lookup of personas by ID, preserving definition
// order for listings.
type Registry struct {
	order []string
	byID  map[string]Persona
}

// NewRegistry builds a registry from the given personas. Later entries with a
// duplicate ID overwrite earlier ones; config validation rejects duplicates
// before a registry is ever built from user input.
func NewRegistry(personas ...Persona) *Registry {
	r := &Registry{byID: make(map[string]Persona, len(personas))}
	for _, p := range personas {
		if _, exists := r.byID[p.ID]; !exists {
			r.order = append(r.order, p.ID)
		}
		r.byID[p.ID] = p
	}
	return r
}

// Get returns the persona with the given ID.
func (r *Registry) Get(id string) (Persona, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Has reports whether a persona with the given ID exists.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// List returns all personas in definition order.
func (r *Registry) List() []Persona {
	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns all persona IDs in definition order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
