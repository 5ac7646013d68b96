package config_test

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/ColinWang98/Intercultural-Town/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
  tls:
    cert_file: /etc/townchat/cert.pem
    key_file: /etc/townchat/key.pem

provider:
  name: deepseek
  api_key: sk-test
  base_url: https://api.deepseek.com
  model: deepseek-chat
  options:
    temperature: 0.7

storage:
  postgres_dsn: "postgres://localhost:5432/townchat?sslmode=disable"

personas:
  - id: pekka
    name: Pekka
    nationality: 芬兰
    personality: 稳重
    likes: ["钓鱼"]

observer_id: observer
analyser_id: observer

topics:
  - tag: religion
    keywords: ["宗教", "清真"]
    expert_id: religion_expert
    possessed_id: mikko
    reaction_id: aino

conversation:
  deep_dive_turns: 4
  solo_reply_probability: 0.25
  max_reply_length: 200
  agent_timeout: 45s
  wrap_up_keywords: ["没问题", "可以"]
  evaluation: true
  filler_reply: "……"
  default_participants: ["mikko", "pekka"]
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.TLS == nil || cfg.Server.TLS.CertFile != "/etc/townchat/cert.pem" {
		t.Errorf("tls not parsed: %+v", cfg.Server.TLS)
	}
	if cfg.Provider.Name != "deepseek" || cfg.Provider.Model != "deepseek-chat" {
		t.Errorf("provider: got %+v", cfg.Provider)
	}
	if len(cfg.Personas) != 1 || cfg.Personas[0].ID != "pekka" {
		t.Fatalf("personas: got %+v", cfg.Personas)
	}
	if len(cfg.Topics) != 1 || cfg.Topics[0].ExpertID != "religion_expert" {
		t.Fatalf("topics: got %+v", cfg.Topics)
	}
	if got := cfg.Conversation.AgentTimeout.Std(); got != 45*time.Second {
		t.Errorf("agent_timeout: got %s, want 45s", got)
	}
	if cfg.Conversation.DeepDiveTurns != 4 {
		t.Errorf("deep_dive_turns: got %d", cfg.Conversation.DeepDiveTurns)
	}
	if !cfg.Conversation.Evaluation {
		t.Error("evaluation should be enabled")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
npcs:
  - name: Ghost
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_DuplicatePersonaIDs(t *testing.T) {
	t.Parallel()
	yaml := `
personas:
  - id: pekka
    name: Pekka
  - id: Pekka
    name: Pekka Again
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate persona ids, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_PersonaRequiresIDAndName(t *testing.T) {
	t.Parallel()
	yaml := `
personas:
  - id: ""
    name: Nameless
  - id: pekka
    name: ""
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "personas[0].id is required") {
		t.Errorf("error should mention missing id, got: %v", err)
	}
	if !strings.Contains(errStr, "personas[1].name is required") {
		t.Errorf("error should mention missing name, got: %v", err)
	}
}

func TestValidate_TopicReferencesUnknownPersona(t *testing.T) {
	t.Parallel()
	yaml := `
topics:
  - tag: cuisine
    keywords: ["菜"]
    expert_id: nobody
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown expert_id, got nil")
	}
	if !strings.Contains(err.Error(), "expert_id") {
		t.Errorf("error should mention expert_id, got: %v", err)
	}
}

func TestValidate_DuplicateTopicTags(t *testing.T) {
	t.Parallel()
	yaml := `
topics:
  - tag: religion
    keywords: ["宗教"]
    expert_id: religion_expert
  - tag: religion
    keywords: ["清真"]
    expert_id: religion_expert
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate topic tags, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_UnknownObserverID(t *testing.T) {
	t.Parallel()
	yaml := `
observer_id: ghost
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown observer_id, got nil")
	}
	if !strings.Contains(err.Error(), "observer_id") {
		t.Errorf("error should mention observer_id, got: %v", err)
	}
}

func TestValidate_ConversationRanges(t *testing.T) {
	t.Parallel()
	yaml := `
conversation:
  deep_dive_turns: -1
  solo_reply_probability: 1.5
  max_reply_length: -10
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"deep_dive_turns", "solo_reply_probability", "max_reply_length"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_UnknownDefaultParticipant(t *testing.T) {
	t.Parallel()
	yaml := `
conversation:
  default_participants: ["mikko", "stranger"]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown default participant, got nil")
	}
	if !strings.Contains(err.Error(), "default_participants[1]") {
		t.Errorf("error should mention default_participants[1], got: %v", err)
	}
}

func TestValidate_ConfiguredPersonaSatisfiesReferences(t *testing.T) {
	t.Parallel()
	yaml := `
personas:
  - id: chef
    name: Chef
topics:
  - tag: cuisine
    keywords: ["菜"]
    expert_id: chef
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	if !slices.Contains(config.ValidProviderNames, "openai") {
		t.Error(`ValidProviderNames should contain "openai"`)
	}
}
