package conversation

import (
	"strings"

	"github.com/ColinWang98/Intercultural-Town/internal/topic"
)

// Phase is a conversation's position in the scripted dialogue arc. Deep-dive
// phases are derived from topic tags ("religion" → "religion_deep").
type Phase string

// The fixed phases. Deep-dive phases are constructed via [DeepDivePhase].
const (
	PhaseSmallTalk  Phase = "small_talk"
	PhaseWrapUp     Phase = "wrap_up"
	PhaseEvaluation Phase = "evaluation"
	PhaseFinished   Phase = "finished"
)

// DeepDivePhase returns the phase name for a topic deep-dive.
func DeepDivePhase(tag string) Phase {
	return Phase(tag + "_deep")
}

// DefaultDeepDiveTurns is how many player turns a deep-dive lasts before
// control returns to the base conversation.
const DefaultDeepDiveTurns = 3

// DefaultWrapUpKeywords are the affirmative-closure words that end the
// wrap-up phase.
func DefaultWrapUpKeywords() []string {
	return []string{"是", "好了", "可以", "没问题", "考虑清楚了", "没了", "没有"}
}

// PhaseState is the per-conversation mutable state owned by the orchestrator.
// It is created lazily on the first player message and mutated only by
// [PhaseMachine.Advance] under the conversation's turn lock.
type PhaseState struct {
	// Phase is the current phase after the most recent transition.
	Phase Phase

	// Topic is the active deep-dive topic tag, empty outside deep-dives.
	Topic string

	// Discussed marks topics that have already had their deep-dive. A topic
	// is entered at most once.
	Discussed map[string]bool

	// SubTurns counts player turns spent in the current deep-dive.
	SubTurns int
}

// PhaseMachineConfig configures a [PhaseMachine].
type PhaseMachineConfig struct {
	// Detector classifies player messages into topic tags. Must not be nil.
	Detector topic.Detector

	// Topics is the ordered list of topic tags; order fixes deep-dive
	// priority when one message triggers several topics.
	Topics []string

	// DeepDiveTurns is the number of turns a deep-dive lasts.
	// Defaults to [DefaultDeepDiveTurns] when zero.
	DeepDiveTurns int

	// WrapUpKeywords are the affirmative words that close the wrap-up phase.
	// Defaults to [DefaultWrapUpKeywords] when empty.
	WrapUpKeywords []string

	// Evaluation inserts the evaluation phase between wrap-up and finished.
	Evaluation bool
}

// PhaseMachine holds the transition rules. It is read-only after construction
// and safe for concurrent use; all mutable state lives in [PhaseState].
type PhaseMachine struct {
	detector       topic.Detector
	topics         []string
	deepDiveTurns  int
	wrapUpKeywords []string
	evaluation     bool
}

// NewPhaseMachine builds a [PhaseMachine] from cfg, filling defaults.
func NewPhaseMachine(cfg PhaseMachineConfig) *PhaseMachine {
	turns := cfg.DeepDiveTurns
	if turns <= 0 {
		turns = DefaultDeepDiveTurns
	}
	keywords := cfg.WrapUpKeywords
	if len(keywords) == 0 {
		keywords = DefaultWrapUpKeywords()
	}
	return &PhaseMachine{
		detector:       cfg.Detector,
		topics:         append([]string(nil), cfg.Topics...),
		deepDiveTurns:  turns,
		wrapUpKeywords: append([]string(nil), keywords...),
		evaluation:     cfg.Evaluation,
	}
}

// NewState returns a fresh per-conversation state in the initial phase.
func (m *PhaseMachine) NewState() *PhaseState {
	return &PhaseState{
		Phase:     PhaseSmallTalk,
		Discussed: make(map[string]bool, len(m.topics)),
	}
}

// Advance runs one transition for an incoming player message and returns the
// phase the turn should be dispatched under.
//
// The dispatch phase is not always the post-transition phase: the turn that
// exhausts a deep-dive still gets an expert reply (dispatch stays on the
// deep-dive), and the turn whose affirmative ends the wrap-up still gets a
// normal wrap-up reply before the closing summary. Entering a deep-dive or
// the wrap-up from small talk takes effect immediately.
func (m *PhaseMachine) Advance(state *PhaseState, playerMessage string) Phase {
	switch state.Phase {
	case PhaseSmallTalk:
		if tag := m.pendingTopic(playerMessage, state.Discussed); tag != "" {
			state.Phase = DeepDivePhase(tag)
			state.Topic = tag
			state.SubTurns = 0
			return state.Phase
		}
		if m.allDiscussed(state.Discussed) {
			state.Phase = PhaseWrapUp
			return PhaseWrapUp
		}
		return PhaseSmallTalk

	case PhaseWrapUp:
		if m.isAffirmative(playerMessage) {
			if m.evaluation {
				state.Phase = PhaseEvaluation
			} else {
				state.Phase = PhaseFinished
			}
		}
		return PhaseWrapUp

	case PhaseEvaluation:
		// The orchestrator normally produces the evaluation report in the
		// same turn that ends the wrap-up and moves the state to finished
		// itself. Reaching Advance here means that report never landed
		// (e.g. the analyser call failed), so the evaluation is retried.
		return PhaseEvaluation

	case PhaseFinished:
		return PhaseFinished

	default:
		// Deep-dive phase.
		dispatch := state.Phase
		state.SubTurns++
		if state.SubTurns >= m.deepDiveTurns {
			state.Discussed[state.Topic] = true
			state.Topic = ""
			state.SubTurns = 0
			if m.allDiscussed(state.Discussed) {
				state.Phase = PhaseWrapUp
			} else {
				state.Phase = PhaseSmallTalk
			}
		}
		return dispatch
	}
}

// pendingTopic returns the highest-priority not-yet-discussed topic raised by
// the message, or "".
func (m *PhaseMachine) pendingTopic(message string, discussed map[string]bool) string {
	for _, tag := range m.detector.Detect(message) {
		if !discussed[tag] {
			return tag
		}
	}
	return ""
}

// allDiscussed reports whether every configured topic has had its deep-dive.
func (m *PhaseMachine) allDiscussed(discussed map[string]bool) bool {
	for _, tag := range m.topics {
		if !discussed[tag] {
			return false
		}
	}
	return len(m.topics) > 0
}

// isAffirmative reports whether the message contains a wrap-up closure word.
func (m *PhaseMachine) isAffirmative(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range m.wrapUpKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
