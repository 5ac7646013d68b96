package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ColinWang98/Intercultural-Town/internal/persona"
)

// ValidProviderNames lists known LLM provider names. Used by [Validate] to
// warn about unrecognised names, which are usually typos.
var ValidProviderNames = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider
	if name := cfg.Provider.Name; name != "" && !slices.Contains(ValidProviderNames, name) {
		slog.Warn("unknown provider name — may be a typo or third-party provider",
			"name", name,
			"known", ValidProviderNames,
		)
	}
	if cfg.Provider.Name == "" {
		slog.Warn("provider.name is empty; personas will not be able to generate replies")
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; conversations are kept in memory and lost on restart")
	}

	// Personas: duplicate id detection over the configured profiles.
	idsSeen := make(map[string]int, len(cfg.Personas))
	for i, p := range cfg.Personas {
		prefix := fmt.Sprintf("personas[%d]", i)
		id := normalizeID(p.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
			continue
		}
		if prev, ok := idsSeen[id]; ok {
			errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of personas[%d]", prefix, id, prev))
		}
		idsSeen[id] = i
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
	}

	known := knownPersonaIDs(cfg)

	// Topics
	tagsSeen := make(map[string]int, len(cfg.Topics))
	for i, tc := range cfg.Topics {
		prefix := fmt.Sprintf("topics[%d]", i)
		if tc.Tag == "" {
			errs = append(errs, fmt.Errorf("%s.tag is required", prefix))
		} else if prev, ok := tagsSeen[tc.Tag]; ok {
			errs = append(errs, fmt.Errorf("%s.tag %q is a duplicate of topics[%d]", prefix, tc.Tag, prev))
		} else {
			tagsSeen[tc.Tag] = i
		}
		if len(tc.Keywords) == 0 {
			slog.Warn("topic has no trigger keywords and can never start", "tag", tc.Tag)
		}
		if tc.ExpertID == "" {
			errs = append(errs, fmt.Errorf("%s.expert_id is required", prefix))
		} else if !known[normalizeID(tc.ExpertID)] {
			errs = append(errs, fmt.Errorf("%s.expert_id %q is not a known persona", prefix, tc.ExpertID))
		}
		if tc.PossessedID != "" && !known[normalizeID(tc.PossessedID)] {
			errs = append(errs, fmt.Errorf("%s.possessed_id %q is not a known persona", prefix, tc.PossessedID))
		}
		if tc.ReactionID != "" && !known[normalizeID(tc.ReactionID)] {
			errs = append(errs, fmt.Errorf("%s.reaction_id %q is not a known persona", prefix, tc.ReactionID))
		}
	}

	// Observer / analyser references.
	if cfg.ObserverID != "" && !known[normalizeID(cfg.ObserverID)] {
		errs = append(errs, fmt.Errorf("observer_id %q is not a known persona", cfg.ObserverID))
	}
	if cfg.AnalyserID != "" && !known[normalizeID(cfg.AnalyserID)] {
		errs = append(errs, fmt.Errorf("analyser_id %q is not a known persona", cfg.AnalyserID))
	}

	// Conversation tuning ranges. Zero means "use the default".
	conv := cfg.Conversation
	if conv.DeepDiveTurns < 0 {
		errs = append(errs, fmt.Errorf("conversation.deep_dive_turns %d must not be negative", conv.DeepDiveTurns))
	}
	if conv.SoloReplyProbability < 0 || conv.SoloReplyProbability > 1 {
		errs = append(errs, fmt.Errorf("conversation.solo_reply_probability %.2f is out of range [0, 1]", conv.SoloReplyProbability))
	}
	if conv.MaxReplyLength < 0 {
		errs = append(errs, fmt.Errorf("conversation.max_reply_length %d must not be negative", conv.MaxReplyLength))
	}
	if conv.AgentTimeout < 0 {
		errs = append(errs, fmt.Errorf("conversation.agent_timeout %s must not be negative", conv.AgentTimeout.Std()))
	}
	for i, id := range conv.DefaultParticipants {
		if !known[normalizeID(id)] {
			errs = append(errs, fmt.Errorf("conversation.default_participants[%d] %q is not a known persona", i, id))
		}
	}

	return errors.Join(errs...)
}

// knownPersonaIDs collects the built-in persona ids plus every configured
// profile id.
func knownPersonaIDs(cfg *Config) map[string]bool {
	known := make(map[string]bool)
	for _, p := range persona.Defaults() {
		known[p.ID] = true
	}
	for _, p := range cfg.Personas {
		if id := normalizeID(p.ID); id != "" {
			known[id] = true
		}
	}
	return known
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
