package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ColinWang98/Intercultural-Town/internal/observe"
	"github.com/ColinWang98/Intercultural-Town/internal/persona"
	"github.com/ColinWang98/Intercultural-Town/internal/sanitize"
)

// ErrInvalidArgument marks request-level failures (duplicate or unknown
// persona ids, empty content). The HTTP layer maps it to 400.
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultAgentTimeout bounds a single persona call so one stalled model
// backend cannot hang the whole turn.
const DefaultAgentTimeout = 60 * time.Second

// TopicRoute binds a deep-dive topic to the personas that handle it: the
// expert who answers, the participant whose identity the expert "possesses",
// and the participant who may add a short reaction afterwards.
type TopicRoute struct {
	Tag         string
	ExpertID    string
	PossessedID string
	ReactionID  string
}

// DefaultTopicRoutes wires the built-in dinner-scenario topics: the religion
// expert speaks as Mikko with Aino reacting, the allergy expert as Aino with
// Mikko reacting.
func DefaultTopicRoutes() []TopicRoute {
	return []TopicRoute{
		{Tag: "religion", ExpertID: persona.IDReligionExpert, PossessedID: persona.IDMikko, ReactionID: persona.IDAino},
		{Tag: "allergy", ExpertID: persona.IDAllergyExpert, PossessedID: persona.IDAino, ReactionID: persona.IDMikko},
	}
}

// AgentFactory produces a [persona.Responder] for a persona definition. The
// orchestrator calls it once per persona (per conversation for dynamic
// personas) and caches the result.
type AgentFactory interface {
	Responder(p persona.Persona) (persona.Responder, error)
}

// AgentFactoryFunc adapts a function to the [AgentFactory] interface.
type AgentFactoryFunc func(p persona.Persona) (persona.Responder, error)

// Responder implements [AgentFactory].
func (f AgentFactoryFunc) Responder(p persona.Persona) (persona.Responder, error) {
	return f(p)
}

// OrchestratorConfig holds the dependencies for an [Orchestrator].
type OrchestratorConfig struct {
	// Store persists conversations. Must not be nil.
	Store Store

	// Registry resolves static persona ids. Must not be nil.
	Registry *persona.Registry

	// Factory creates agents for personas. Must not be nil.
	Factory AgentFactory

	// Machine is the phase state machine. Must not be nil.
	Machine *PhaseMachine

	// Policy selects speakers for base-conversation turns. Must not be nil.
	Policy *SpeakerPolicy

	// Sanitizer cleans raw persona output. Must not be nil.
	Sanitizer *sanitize.Sanitizer

	// Routes map deep-dive topic tags to their expert wiring.
	// Defaults to [DefaultTopicRoutes] when empty.
	Routes []TopicRoute

	// ObserverID is the persona that produces end-of-conversation summaries.
	// Defaults to [persona.IDObserver].
	ObserverID string

	// AnalyserID is the persona that grades finished conversations when the
	// evaluation phase is enabled. Defaults to ObserverID.
	AnalyserID string

	// DefaultParticipants is used when a conversation is created with an
	// empty participant list. Defaults to [persona.DefaultParticipants].
	DefaultParticipants []string

	// AgentTimeout bounds each persona call. Defaults to [DefaultAgentTimeout].
	AgentTimeout time.Duration

	// FillerReply is returned when every speaker in a turn fails. When empty
	// a line naming the participants is generated.
	FillerReply string

	// Logger receives degradation warnings. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records turn and agent-call telemetry. Optional.
	Metrics *observe.Metrics
}

// Orchestrator processes player messages: it advances the phase machine,
// selects speakers, calls persona agents, sanitizes and stores their replies,
// and composes the text returned to the client.
//
// All turn processing for one conversation runs under a per-conversation
// mutex, so concurrent HTTP requests to the same conversation cannot
// interleave the phase/log read-modify-write.
type Orchestrator struct {
	store        Store
	registry     *persona.Registry
	factory      AgentFactory
	machine      *PhaseMachine
	policy       *SpeakerPolicy
	sanitizer    *sanitize.Sanitizer
	routes       map[string]TopicRoute
	observerID   string
	analyserID   string
	defaultIDs   []string
	agentTimeout time.Duration
	filler       string
	log          *slog.Logger
	metrics      *observe.Metrics

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	phases map[string]*PhaseState
	agents map[string]persona.Responder

	watch *watchHub
}

// NewOrchestrator validates cfg and builds an [Orchestrator].
// Errors are prefixed with "conversation: ".
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("conversation: Store must not be nil")
	}
	if cfg.Registry == nil {
		return nil, errors.New("conversation: Registry must not be nil")
	}
	if cfg.Factory == nil {
		return nil, errors.New("conversation: Factory must not be nil")
	}
	if cfg.Machine == nil {
		return nil, errors.New("conversation: Machine must not be nil")
	}
	if cfg.Policy == nil {
		return nil, errors.New("conversation: Policy must not be nil")
	}
	if cfg.Sanitizer == nil {
		return nil, errors.New("conversation: Sanitizer must not be nil")
	}

	routes := cfg.Routes
	if len(routes) == 0 {
		routes = DefaultTopicRoutes()
	}
	routeMap := make(map[string]TopicRoute, len(routes))
	for _, r := range routes {
		routeMap[r.Tag] = r
	}

	observerID := cfg.ObserverID
	if observerID == "" {
		observerID = persona.IDObserver
	}
	analyserID := cfg.AnalyserID
	if analyserID == "" {
		analyserID = observerID
	}
	defaultIDs := cfg.DefaultParticipants
	if len(defaultIDs) == 0 {
		defaultIDs = persona.DefaultParticipants()
	}
	timeout := cfg.AgentTimeout
	if timeout <= 0 {
		timeout = DefaultAgentTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		store:        cfg.Store,
		registry:     cfg.Registry,
		factory:      cfg.Factory,
		machine:      cfg.Machine,
		policy:       cfg.Policy,
		sanitizer:    cfg.Sanitizer,
		routes:       routeMap,
		observerID:   observerID,
		analyserID:   analyserID,
		defaultIDs:   defaultIDs,
		agentTimeout: timeout,
		filler:       cfg.FillerReply,
		log:          logger,
		metrics:      cfg.Metrics,
		locks:        make(map[string]*sync.Mutex),
		phases:       make(map[string]*PhaseState),
		agents:       make(map[string]persona.Responder),
		watch:        newWatchHub(),
	}, nil
}

// CreateConversation validates the participant list, stores a new
// conversation, and synchronously generates an opening exchange when two or
// more personas participate. A failed opening generation falls back to a
// canned exchange instead of an empty log.
func (o *Orchestrator) CreateConversation(ctx context.Context, personaIDs []string, profiles []persona.Profile) (*Conversation, error) {
	ids := make([]string, 0, len(personaIDs))
	for _, id := range personaIDs {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		ids = append(ids, o.defaultIDs...)
	}

	if detail := duplicateDetail(ids); detail != "" {
		return nil, fmt.Errorf("%w: 检测到重复的聊天对象: %s", ErrInvalidArgument, detail)
	}

	profileMap := make(map[string]persona.Profile, len(profiles))
	for _, p := range profiles {
		profileMap[strings.ToLower(strings.TrimSpace(p.ID))] = p
	}

	var unknown []string
	for _, id := range ids {
		if !o.registry.Has(id) {
			if _, ok := profileMap[id]; !ok {
				unknown = append(unknown, id)
			}
		}
	}
	if len(unknown) > 0 {
		available := append(o.registry.IDs(), mapKeys(profileMap)...)
		return nil, fmt.Errorf("%w: 未知的聊天对象: %s，可用: %s",
			ErrInvalidArgument, strings.Join(unknown, ", "), strings.Join(available, ", "))
	}

	conv := &Conversation{
		ID:         NewID(),
		PersonaIDs: ids,
		CreatedAt:  time.Now().UTC(),
		Profiles:   profileMap,
	}
	if err := o.store.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("conversation: create: %w", err)
	}

	if len(ids) >= 2 {
		opening, err := o.generateOpening(ctx, conv)
		if err != nil {
			o.log.Warn("opening generation failed, using canned exchange",
				"conversation", conv.ID, "error", err)
			opening = o.cannedOpening(conv)
		}
		if err := o.appendMessages(ctx, conv.ID, opening...); err != nil {
			return nil, err
		}
		conv.Messages = opening
	}

	return conv, nil
}

// HandlePlayerMessage processes one player turn and returns the messages
// appended during the turn plus the composed reply text.
//
// The player's message is appended before any model work so it survives
// downstream failures. Individual persona failures degrade to skipped
// speakers; only when every speaker fails does the composed reply fall back
// to a neutral filler line, still with a nil error.
func (o *Orchestrator) HandlePlayerMessage(ctx context.Context, conversationID, text, playerName string) ([]Message, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", fmt.Errorf("%w: 消息内容不能为空", ErrInvalidArgument)
	}

	unlock := o.lockConversation(conversationID)
	defer unlock()

	start := time.Now()

	conv, err := o.store.Get(ctx, conversationID)
	if err != nil {
		return nil, "", err
	}
	prevLen := len(conv.Messages)

	playerMsg := Message{Role: RoleUser, Name: playerName, Content: text}
	if err := o.appendMessages(ctx, conversationID, playerMsg); err != nil {
		return nil, "", err
	}
	conv.Messages = append(conv.Messages, playerMsg)

	state := o.phaseState(conversationID)
	dispatch := o.machine.Advance(state, text)

	reply := o.dispatchTurn(ctx, conv, state, dispatch, text)

	o.metrics.RecordTurn(ctx, string(dispatch), time.Since(start))

	updated, err := o.store.Get(ctx, conversationID)
	if err != nil {
		return nil, "", err
	}
	return updated.Messages[prevLen:], reply, nil
}

// Summarize produces an observer summary of the conversation so far and
// appends it to the log. Read-only with respect to phase state.
func (o *Orchestrator) Summarize(ctx context.Context, conversationID string) (string, error) {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	conv, err := o.store.Get(ctx, conversationID)
	if err != nil {
		return "", err
	}
	name, summary := o.observerSummary(ctx, conv)
	if summary == "" {
		return "", nil
	}
	return name + ": " + summary, nil
}

// Phase returns the conversation's current phase. Conversations that have not
// received a message yet report small_talk.
func (o *Orchestrator) Phase(conversationID string) Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	if state, ok := o.phases[conversationID]; ok {
		return state.Phase
	}
	return PhaseSmallTalk
}

// DropConversation removes a conversation and its phase state.
func (o *Orchestrator) DropConversation(ctx context.Context, conversationID string) error {
	unlock := o.lockConversation(conversationID)
	defer unlock()

	if err := o.store.Delete(ctx, conversationID); err != nil {
		return err
	}
	o.mu.Lock()
	delete(o.phases, conversationID)
	o.mu.Unlock()
	o.watch.closeTopic(conversationID)
	return nil
}

// Watch subscribes to messages appended to a conversation. The returned
// cancel function must be called to release the subscription.
func (o *Orchestrator) Watch(conversationID string) (<-chan Message, func()) {
	return o.watch.subscribe(conversationID)
}

// --- turn dispatch ---

func (o *Orchestrator) dispatchTurn(ctx context.Context, conv *Conversation, state *PhaseState, dispatch Phase, playerText string) string {
	switch dispatch {
	case PhaseSmallTalk:
		return o.baseReply(ctx, conv, playerText)

	case PhaseWrapUp:
		reply := o.baseReply(ctx, conv, playerText)
		switch state.Phase {
		case PhaseFinished:
			if name, summary := o.observerSummary(ctx, conv); summary != "" {
				reply += "\n\n" + name + ": " + summary
			}
		case PhaseEvaluation:
			reply = o.appendEvaluation(ctx, conv, state, reply)
		}
		return reply

	case PhaseEvaluation:
		return o.appendEvaluation(ctx, conv, state, "")

	case PhaseFinished:
		name, summary := o.observerSummary(ctx, conv)
		if summary == "" {
			return o.fillerReply(conv)
		}
		return name + ": " + summary

	default:
		// Deep-dive phase.
		tag := strings.TrimSuffix(string(dispatch), "_deep")
		return o.deepDiveReply(ctx, conv, tag, playerText)
	}
}

// baseReply runs the speaker policy and collects replies from the selected
// participants in order, feeding each one the previous in-turn reply.
func (o *Orchestrator) baseReply(ctx context.Context, conv *Conversation, playerText string) string {
	participants := o.participants(conv)
	order := o.policy.Select(participants, conv.Messages, playerText)

	var parts []string
	var prevName, prevReply string

	for _, id := range order {
		p := o.resolvePersona(conv, id)

		var b strings.Builder
		if history := formatHistory(conv.Messages); history != "" {
			b.WriteString("【对话记录】\n" + history + "\n\n")
		}
		if prevReply != "" {
			b.WriteString("（" + prevName + " 刚刚说：" + prevReply + "）\n\n")
		}
		b.WriteString("玩家说：" + playerText + "\n\n请自然地回应，1-2句话即可。")

		reply, ok := o.callAgent(ctx, conv, p, b.String())
		if !ok {
			continue
		}

		msg := Message{Role: RoleModel, Name: p.Name, Content: reply}
		if err := o.appendMessages(ctx, conv.ID, msg); err != nil {
			o.log.Warn("append reply failed", "conversation", conv.ID, "error", err)
			continue
		}
		conv.Messages = append(conv.Messages, msg)
		parts = append(parts, p.Name+": "+reply)
		prevName, prevReply = p.Name, reply
	}

	if len(parts) == 0 {
		return o.fillerReply(conv)
	}
	return strings.Join(parts, "\n\n")
}

// deepDiveReply implements the possession pattern: the topic's expert answers
// under the possessed participant's display name, optionally followed by a
// one-line reaction from the other base participant.
func (o *Orchestrator) deepDiveReply(ctx context.Context, conv *Conversation, tag, playerText string) string {
	route, ok := o.routes[tag]
	if !ok {
		o.log.Warn("no route for deep-dive topic", "topic", tag, "conversation", conv.ID)
		return o.baseReply(ctx, conv, playerText)
	}

	expert, ok := o.registry.Get(route.ExpertID)
	if !ok {
		o.log.Warn("expert persona missing", "expert", route.ExpertID, "topic", tag)
		return o.baseReply(ctx, conv, playerText)
	}

	// The expert speaks with the possessed participant's face. When the
	// possessed participant has a dynamic profile, its traits ride along in
	// the prompt so the possession stays in character.
	possessed := o.resolvePersona(conv, route.PossessedID)
	displayName := possessed.Name
	if displayName == "" {
		displayName = expert.Name
	}

	var b strings.Builder
	if profile, ok := conv.Profiles[route.PossessedID]; ok {
		b.WriteString(profile.Instruction() + "\n\n")
	}
	if history := formatHistory(conv.Messages); history != "" {
		b.WriteString("【对话记录】\n" + history + "\n\n")
	}
	b.WriteString("玩家说：" + playerText + "\n\n请用你的专业知识回应，2-3句话即可。")

	expertReply, ok := o.callAgent(ctx, conv, expert, b.String())
	if !ok {
		return o.fillerReply(conv)
	}
	// Expert instructions end answers with a completion marker; it must not
	// reach the player.
	expertReply = strings.TrimSpace(strings.ReplaceAll(expertReply, "[DONE]", ""))
	if expertReply == "" {
		return o.fillerReply(conv)
	}

	msg := Message{Role: RoleModel, Name: displayName, Content: expertReply}
	if err := o.appendMessages(ctx, conv.ID, msg); err != nil {
		o.log.Warn("append expert reply failed", "conversation", conv.ID, "error", err)
	} else {
		conv.Messages = append(conv.Messages, msg)
	}
	composed := displayName + ": " + expertReply

	// Optional one-line reaction from the other base participant.
	if route.ReactionID != "" && route.ReactionID != route.PossessedID && containsID(conv.PersonaIDs, route.ReactionID) {
		reactor := o.resolvePersona(conv, route.ReactionID)

		var rb strings.Builder
		if history := formatHistory(conv.Messages); history != "" {
			rb.WriteString("【对话记录】\n" + history + "\n\n")
		}
		rb.WriteString(displayName + " 刚刚说了相关的内容：" + expertReply + "\n\n")
		rb.WriteString("玩家说：" + playerText + "\n\n请简短回应或补充，1句话即可。")

		if reaction, ok := o.callAgent(ctx, conv, reactor, rb.String()); ok {
			rmsg := Message{Role: RoleModel, Name: reactor.Name, Content: reaction}
			if err := o.appendMessages(ctx, conv.ID, rmsg); err != nil {
				o.log.Warn("append reaction failed", "conversation", conv.ID, "error", err)
			} else {
				conv.Messages = append(conv.Messages, rmsg)
				composed += "\n\n" + reactor.Name + ": " + reaction
			}
		}
	}

	return composed
}

// observerSummary asks the observer persona for a summary of the full
// history and appends it to the log. Returns the observer's display name and
// the summary text; an empty summary means the call failed.
func (o *Orchestrator) observerSummary(ctx context.Context, conv *Conversation) (string, string) {
	observer, ok := o.registry.Get(o.observerID)
	if !ok {
		o.log.Warn("observer persona missing", "observer", o.observerID)
		return "", ""
	}

	prompt := "【请总结以下对话】\n\n" + formatHistory(conv.Messages)
	summary, callOK := o.callAgent(ctx, conv, observer, prompt)
	if !callOK {
		return "", ""
	}

	msg := Message{Role: RoleModel, Name: observer.Name, Content: summary}
	if err := o.appendMessages(ctx, conv.ID, msg); err != nil {
		o.log.Warn("append summary failed", "conversation", conv.ID, "error", err)
	} else {
		conv.Messages = append(conv.Messages, msg)
	}
	return observer.Name, summary
}

// callAgent resolves the agent for p, calls it with a bounded timeout, and
// sanitizes the reply. ok=false means the speaker contributes nothing this
// turn (failure or absent reply) — never an error for the caller.
func (o *Orchestrator) callAgent(ctx context.Context, conv *Conversation, p persona.Persona, prompt string) (string, bool) {
	agent, err := o.agentFor(conv, p)
	if err != nil {
		o.log.Warn("agent construction failed", "persona", p.ID, "error", err)
		o.metrics.RecordAgentCall(ctx, p.ID, observe.OutcomeError, 0)
		return "", false
	}

	callCtx, cancel := context.WithTimeout(ctx, o.agentTimeout)
	defer cancel()

	start := time.Now()
	raw, err := agent.Respond(callCtx, persona.SessionID(p.ID, conv.ID), prompt)
	elapsed := time.Since(start)
	if err != nil {
		o.log.Warn("persona call failed", "persona", p.ID, "conversation", conv.ID, "error", err)
		o.metrics.RecordAgentCall(ctx, p.ID, observe.OutcomeError, elapsed)
		return "", false
	}

	labels := o.speakerLabels(conv)
	reply, ok := o.sanitizer.Sanitize(raw, labels...)
	if !ok {
		o.log.Debug("reply sanitized to nothing", "persona", p.ID, "conversation", conv.ID)
		o.metrics.RecordAgentCall(ctx, p.ID, observe.OutcomeEmpty, elapsed)
		return "", false
	}

	o.metrics.RecordAgentCall(ctx, p.ID, observe.OutcomeOK, elapsed)
	return reply, true
}

// agentFor returns the cached agent for a persona, creating it on first use.
// Static personas share one agent across conversations (sessions keep their
// histories apart); dynamic personas get a per-conversation agent because
// their instruction is conversation-specific.
func (o *Orchestrator) agentFor(conv *Conversation, p persona.Persona) (persona.Responder, error) {
	key := p.ID
	if _, dynamic := conv.Profiles[p.ID]; dynamic && !o.registry.Has(p.ID) {
		key = conv.ID + ":" + p.ID
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if agent, ok := o.agents[key]; ok {
		return agent, nil
	}
	agent, err := o.factory.Responder(p)
	if err != nil {
		return nil, err
	}
	o.agents[key] = agent
	return agent, nil
}

// --- opening exchange ---

// generateOpening has the first two participants exchange opening lines, in
// character, before the player joins.
func (o *Orchestrator) generateOpening(ctx context.Context, conv *Conversation) ([]Message, error) {
	participants := o.participants(conv)
	if len(participants) < 2 {
		return nil, errors.New("conversation: opening needs two participants")
	}
	first, second := participants[0], participants[1]

	firstPrompt := "【场景开始】你和好朋友 " + second.Name + " 正在讨论今晚聚餐的准备。\n\n" +
		"请自然地开口打招呼或提起话题，就像朋友间的日常聊天：\n" +
		"- 话题可以是人数、地点、时间等\n" +
		"- 1-2句话即可，保持轻松"

	firstReply, ok := o.callAgent(ctx, conv, first, firstPrompt)
	if !ok {
		return nil, fmt.Errorf("conversation: opening line from %s failed", first.ID)
	}
	out := []Message{{Role: RoleModel, Name: first.Name, Content: firstReply}}

	secondPrompt := "【场景开始】你和好朋友 " + first.Name + " 正在讨论今晚聚餐的准备。\n\n" +
		first.Name + " 刚刚说：" + firstReply + "\n\n" +
		"请自然地回应，就像朋友间的日常聊天：\n" +
		"- 可以回应对方的话题，或者补充新的想法\n" +
		"- 1-2句话即可"

	if secondReply, ok := o.callAgent(ctx, conv, second, secondPrompt); ok {
		out = append(out, Message{Role: RoleModel, Name: second.Name, Content: secondReply})
	}
	return out, nil
}

// cannedOpening is the fixed fallback exchange used when live generation
// fails at creation time.
func (o *Orchestrator) cannedOpening(conv *Conversation) []Message {
	participants := o.participants(conv)
	out := []Message{{Role: RoleModel, Name: participants[0].Name, Content: "Moi! 今晚聚餐准备得怎么样了？"}}
	if len(participants) > 1 {
		out = append(out, Message{Role: RoleModel, Name: participants[1].Name, Content: "Selvä! 我们正在讨论细节呢。"})
	}
	return out
}

// --- helpers ---

// participants resolves the conversation's participant ids to personas,
// applying dynamic profiles over static definitions.
func (o *Orchestrator) participants(conv *Conversation) []persona.Persona {
	out := make([]persona.Persona, 0, len(conv.PersonaIDs))
	for _, id := range conv.PersonaIDs {
		out = append(out, o.resolvePersona(conv, id))
	}
	return out
}

// resolvePersona returns the persona for id within conv: a dynamic profile
// wins over the static registry, and a profile's display name overrides a
// static persona's.
func (o *Orchestrator) resolvePersona(conv *Conversation, id string) persona.Persona {
	static, isStatic := o.registry.Get(id)
	profile, hasProfile := conv.Profiles[id]

	switch {
	case isStatic && hasProfile:
		if profile.Name != "" {
			static.Name = profile.Name
		}
		return static
	case hasProfile:
		return profile.Persona()
	default:
		return static
	}
}

// speakerLabels returns the display names whose dialogue lines the sanitizer
// should recognise for this conversation.
func (o *Orchestrator) speakerLabels(conv *Conversation) []string {
	labels := make([]string, 0, len(conv.PersonaIDs)+1)
	for _, p := range o.participants(conv) {
		if p.Name != "" {
			labels = append(labels, p.Name)
		}
	}
	if observer, ok := o.registry.Get(o.observerID); ok {
		labels = append(labels, observer.Name)
	}
	return labels
}

// fillerReply is the neutral line returned when nobody produced anything.
func (o *Orchestrator) fillerReply(conv *Conversation) string {
	if o.filler != "" {
		return o.filler
	}
	names := make([]string, 0, len(conv.PersonaIDs))
	for _, p := range o.participants(conv) {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		return "（大家暂时不知道说什么）"
	}
	return "（" + strings.Join(names, " 和 ") + " 暂时不知道说什么）"
}

// appendMessages writes messages to the store and notifies watchers.
func (o *Orchestrator) appendMessages(ctx context.Context, conversationID string, msgs ...Message) error {
	if err := o.store.AppendMessages(ctx, conversationID, msgs...); err != nil {
		return err
	}
	for _, m := range msgs {
		o.watch.publish(conversationID, m)
	}
	return nil
}

// lockConversation acquires the per-conversation turn lock.
func (o *Orchestrator) lockConversation(id string) func() {
	o.mu.Lock()
	lock, ok := o.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[id] = lock
	}
	o.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// phaseState returns the conversation's phase state, creating it lazily.
func (o *Orchestrator) phaseState(id string) *PhaseState {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.phases[id]
	if !ok {
		state = o.machine.NewState()
		o.phases[id] = state
	}
	return state
}

// formatHistory renders the message log as the prompt-friendly transcript
// the personas see (玩家: / Name: lines).
func formatHistory(msgs []Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Role == RoleUser:
			lines = append(lines, "玩家: "+m.Content)
		case m.Role == RoleModel && m.Name != "":
			lines = append(lines, m.Name+": "+m.Content)
		case m.Content != "":
			lines = append(lines, m.Content)
		}
	}
	return strings.Join(lines, "\n")
}

// duplicateDetail reports duplicated ids with occurrence counts, or "".
func duplicateDetail(ids []string) string {
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	var parts []string
	for _, id := range ids {
		if counts[id] > 1 {
			parts = append(parts, fmt.Sprintf("%s 出现了 %d 次", id, counts[id]))
			counts[id] = 0 // report each duplicate once
		}
	}
	return strings.Join(parts, ", ")
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func mapKeys(m map[string]persona.Profile) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
