package persona

import (
	"slices"
	"testing"
)

func TestMentioned(t *testing.T) {
	t.Parallel()

	mikko := Persona{ID: IDMikko, Name: "Mikko", Aliases: []string{"米科"}}

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"latin name", "Mikko，你觉得呢？", true},
		{"case-insensitive", "mikko 你好", true},
		{"chinese alias", "米科，今晚几点？", true},
		{"not mentioned", "今晚聚餐几点开始？", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := mikko.Mentioned(tt.text); got != tt.want {
				t.Fatalf("Mentioned(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestMentionedEmptyNameNeverMatches(t *testing.T) {
	t.Parallel()

	unnamed := Persona{ID: "ghost"}
	if unnamed.Mentioned("今晚聚餐几点开始？") {
		t.Fatal("persona without a name matched arbitrary text")
	}

	// An empty alias entry must not match either.
	aliased := Persona{ID: "ghost", Aliases: []string{""}}
	if aliased.Mentioned("随便说点什么") {
		t.Fatal("empty alias matched arbitrary text")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Defaults()...)

	if !r.Has(IDMikko) || !r.Has(IDObserver) {
		t.Fatal("built-in personas missing from registry")
	}
	if r.Has("nonexistent") {
		t.Fatal("unexpected persona found")
	}

	p, ok := r.Get(IDAino)
	if !ok || p.Name != "Aino" {
		t.Fatalf("Get(aino) = %+v, %v", p, ok)
	}

	want := []string{IDMikko, IDAino, IDReligionExpert, IDAllergyExpert, IDObserver}
	if got := r.IDs(); !slices.Equal(got, want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
}

func TestRegistryDuplicateKeepsOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry(
		Persona{ID: "a", Name: "First"},
		Persona{ID: "b", Name: "Second"},
		Persona{ID: "a", Name: "Replaced"},
	)

	if got := r.IDs(); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("IDs() = %v", got)
	}
	if p, _ := r.Get("a"); p.Name != "Replaced" {
		t.Fatalf("Get(a).Name = %q", p.Name)
	}
}

func TestSessionID(t *testing.T) {
	t.Parallel()

	if got := SessionID(IDMikko, "abc123"); got != "abc123" {
		t.Fatalf("got %q", got)
	}
	if got := SessionID(IDMikko, ""); got != "default_mikko" {
		t.Fatalf("got %q", got)
	}
}
