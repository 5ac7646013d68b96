package conversation

import (
	"math/rand"
	"strings"
	"sync"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/ColinWang98/Intercultural-Town/internal/persona"
)

// DefaultSoloReplyProbability is the chance that only the first-selected
// speaker replies in a turn. Without it every player message would produce
// one reply per participant, which reads unnaturally and wastes model calls.
const DefaultSoloReplyProbability = 0.3

// fuzzyNameThreshold is the minimum Jaro-Winkler score for a misspelled
// latin-script token to count as addressing a participant ("miko" → Mikko).
const fuzzyNameThreshold = 0.85

// SpeakerPolicy decides which participants reply to a player message and in
// what order. Safe for concurrent use; the random source is guarded by a
// mutex because *rand.Rand is not.
type SpeakerPolicy struct {
	soloProbability float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSpeakerPolicy builds a policy around the given random source. A nil rng
// falls back to a source seeded from the global generator; tests pass a
// fixed-seed rand.New for determinism. soloProbability outside (0, 1] falls
// back to [DefaultSoloReplyProbability].
func NewSpeakerPolicy(rng *rand.Rand, soloProbability float64) *SpeakerPolicy {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if soloProbability <= 0 || soloProbability > 1 {
		soloProbability = DefaultSoloReplyProbability
	}
	return &SpeakerPolicy{soloProbability: soloProbability, rng: rng}
}

// Select returns the ordered participant IDs that should reply to
// playerMessage. The result is never empty for a non-empty participant list.
//
// Order of precedence for the lead speaker: explicit name or alias mention,
// fuzzy name match on latin-script tokens, round-robin after the most recent
// persona speaker, declared order. A single-participant conversation always
// returns exactly that participant.
func (p *SpeakerPolicy) Select(participants []persona.Persona, log []Message, playerMessage string) []string {
	if len(participants) == 0 {
		return nil
	}
	if len(participants) == 1 {
		return []string{participants[0].ID}
	}

	lead := p.mentionedParticipant(participants, playerMessage)
	if lead < 0 {
		lead = p.roundRobinNext(participants, log)
	}

	order := make([]string, 0, len(participants))
	order = append(order, participants[lead].ID)

	p.mu.Lock()
	solo := p.rng.Float64() < p.soloProbability
	p.mu.Unlock()
	if solo {
		return order
	}

	for i, pa := range participants {
		if i != lead {
			order = append(order, pa.ID)
		}
	}
	return order
}

// mentionedParticipant returns the index of the first participant the player
// addresses by name, alias, or close misspelling, or -1.
func (p *SpeakerPolicy) mentionedParticipant(participants []persona.Persona, message string) int {
	for i, pa := range participants {
		if pa.Mentioned(message) {
			return i
		}
	}

	// Fuzzy pass: latin-script tokens only; phonetic overlap or a high
	// Jaro-Winkler score counts ("miko", "ainno").
	tokens := latinTokens(message)
	if len(tokens) == 0 {
		return -1
	}
	for i, pa := range participants {
		name := strings.ToLower(pa.Name)
		if name == "" || !isLatin(name) {
			continue
		}
		namePrimary, nameSecondary := matchr.DoubleMetaphone(name)
		for _, tok := range tokens {
			if matchr.JaroWinkler(tok, name, false) >= fuzzyNameThreshold {
				return i
			}
			tp, ts := matchr.DoubleMetaphone(tok)
			if tp != "" && (tp == namePrimary || tp == nameSecondary) {
				return i
			}
			if ts != "" && (ts == namePrimary || ts == nameSecondary) {
				return i
			}
		}
	}
	return -1
}

// roundRobinNext returns the index of the participant after the most recent
// persona speaker in the log, or 0 when no participant has spoken yet.
func (p *SpeakerPolicy) roundRobinNext(participants []persona.Persona, log []Message) int {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Role != RoleModel {
			continue
		}
		for j, pa := range participants {
			if pa.Name == log[i].Name {
				return (j + 1) % len(participants)
			}
		}
	}
	return 0
}

// latinTokens splits message into lowercase runs of latin letters, dropping
// tokens too short to name anyone.
func latinTokens(message string) []string {
	var tokens []string
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.Is(unicode.Latin, r)
	})
	for _, f := range fields {
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// isLatin reports whether s consists entirely of latin-script letters.
func isLatin(s string) bool {
	for _, r := range s {
		if !unicode.Is(unicode.Latin, r) {
			return false
		}
	}
	return s != ""
}
