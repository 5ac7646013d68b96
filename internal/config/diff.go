package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	PersonasChanged bool          // true if any persona profile changed
	PersonaChanges  []PersonaDiff // per-persona diffs
	TopicsChanged   bool          // topic wiring changed (requires new conversations to pick up)
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// PersonaDiff describes what changed for a single persona between two configs.
type PersonaDiff struct {
	ID      string
	Changed bool
	Added   bool
	Removed bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Topic wiring
	if !reflect.DeepEqual(old.Topics, new.Topics) {
		d.TopicsChanged = true
	}

	// Build persona lookup maps keyed by id.
	oldPersonas := indexPersonas(old)
	newPersonas := indexPersonas(new)

	// Detect modified and removed personas.
	for id, oldIdx := range oldPersonas {
		newIdx, exists := newPersonas[id]
		if !exists {
			d.PersonaChanges = append(d.PersonaChanges, PersonaDiff{ID: id, Removed: true})
			d.PersonasChanged = true
			continue
		}
		if !reflect.DeepEqual(old.Personas[oldIdx], new.Personas[newIdx]) {
			d.PersonaChanges = append(d.PersonaChanges, PersonaDiff{ID: id, Changed: true})
			d.PersonasChanged = true
		}
	}

	// Detect added personas.
	for id := range newPersonas {
		if _, exists := oldPersonas[id]; !exists {
			d.PersonaChanges = append(d.PersonaChanges, PersonaDiff{ID: id, Added: true})
			d.PersonasChanged = true
		}
	}

	return d
}

// indexPersonas maps normalised persona ids to their slice index.
func indexPersonas(cfg *Config) map[string]int {
	idx := make(map[string]int, len(cfg.Personas))
	for i := range cfg.Personas {
		idx[normalizeID(cfg.Personas[i].ID)] = i
	}
	return idx
}
