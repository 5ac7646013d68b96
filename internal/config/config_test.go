package config_test

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ColinWang98/Intercultural-Town/internal/config"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level config.LogLevel
		want  bool
	}{
		{config.LogDebug, true},
		{config.LogInfo, true},
		{config.LogWarn, true},
		{config.LogError, true},
		{config.LogLevel(""), false},
		{config.LogLevel("trace"), false},
		{config.LogLevel("INFO"), false},
	}
	for _, tt := range tests {
		if got := tt.level.IsValid(); got != tt.want {
			t.Errorf("LogLevel(%q).IsValid() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", yaml: `timeout: 60s`, want: 60 * time.Second},
		{name: "composite", yaml: `timeout: 1m30s`, want: 90 * time.Second},
		{name: "milliseconds", yaml: `timeout: 250ms`, want: 250 * time.Millisecond},
		{name: "not a duration", yaml: `timeout: fast`, wantErr: true},
		{name: "bare number", yaml: `timeout: 60`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out struct {
				Timeout config.Duration `yaml:"timeout"`
			}
			err := yaml.Unmarshal([]byte(tt.yaml), &out)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got nil", tt.yaml)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Timeout.Std() != tt.want {
				t.Errorf("got %s, want %s", out.Timeout.Std(), tt.want)
			}
		})
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	t.Parallel()
	in := struct {
		Timeout config.Duration `yaml:"timeout"`
	}{Timeout: config.Duration(90 * time.Second)}

	data, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "1m30s") {
		t.Errorf("marshalled output should contain %q, got %q", "1m30s", string(data))
	}
}
