package openai

import (
	"testing"
	"time"

	"github.com/ColinWang98/Intercultural-Town/pkg/provider/llm"
)

// TestConvertMessage_System checks that system role is converted correctly.
func TestConvertMessage_System(t *testing.T) {
	msg := llm.Message{Role: llm.RoleSystem, Content: "你是一名芬兰学生。"}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfSystem == nil {
		t.Fatal("expected OfSystem to be set")
	}
}

// TestConvertMessage_User checks that user role is converted correctly.
func TestConvertMessage_User(t *testing.T) {
	msg := llm.Message{Role: llm.RoleUser, Content: "你好！"}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfUser == nil {
		t.Fatal("expected OfUser to be set")
	}
}

// TestConvertMessage_Assistant checks that assistant role is converted.
func TestConvertMessage_Assistant(t *testing.T) {
	msg := llm.Message{Role: llm.RoleAssistant, Content: "Moi!"}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
}

// TestConvertMessage_AssistantWithName checks that the speaker name is carried over.
func TestConvertMessage_AssistantWithName(t *testing.T) {
	msg := llm.Message{Role: llm.RoleAssistant, Content: "Moi!", Name: "Mikko"}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
	if !param.OfAssistant.Name.Valid() || param.OfAssistant.Name.Value != "Mikko" {
		t.Errorf("expected name Mikko, got %+v", param.OfAssistant.Name)
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	msg := llm.Message{Role: "tool", Content: "test"}
	_, err := convertMessage(msg)
	if err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestNew_MissingAPIKey ensures constructor rejects an empty API key.
func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// TestNew_MissingModel ensures constructor rejects an empty model.
func TestNew_MissingModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Options checks that optional settings are accepted without error.
func TestNew_Options(t *testing.T) {
	_, err := New("sk-test", "gpt-4o",
		WithBaseURL("https://custom.example.com"),
		WithOrganization("org-123"),
		WithTimeout(30*time.Second),
	)
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}

// TestBuildParams_SystemPromptFirst checks that the system prompt becomes the
// leading system message.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "你是一名芬兰学生。",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "你好！"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if params.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected leading system message")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("expected trailing user message")
	}
}

// TestBuildParams_Optionals checks that temperature and max tokens are only
// set when the request carries them.
func TestBuildParams_Optionals(t *testing.T) {
	p := &Provider{model: "gpt-4o"}

	bare, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "你好！"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bare.Temperature.Valid() {
		t.Errorf("expected unset temperature, got %v", bare.Temperature.Value)
	}
	if bare.MaxCompletionTokens.Valid() {
		t.Errorf("expected unset max tokens, got %v", bare.MaxCompletionTokens.Value)
	}

	full, err := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "你好！"}},
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !full.Temperature.Valid() || full.Temperature.Value != 0.7 {
		t.Errorf("expected temperature 0.7, got %+v", full.Temperature)
	}
	if !full.MaxCompletionTokens.Valid() || full.MaxCompletionTokens.Value != 256 {
		t.Errorf("expected max tokens 256, got %+v", full.MaxCompletionTokens)
	}
}

// TestBuildParams_UnknownRoleErrors checks that a bad history role surfaces
// from buildParams.
func TestBuildParams_UnknownRoleErrors(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	_, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "narrator", Content: "旁白"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}
