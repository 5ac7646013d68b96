package topic

import (
	"slices"
	"testing"
)

func TestKeywordDetector(t *testing.T) {
	t.Parallel()

	d := NewKeywordDetector(DefaultTopics())

	t.Run("no keywords no tags", func(t *testing.T) {
		t.Parallel()
		if got := d.Detect("你们好，今晚聚餐几点开始？"); got != nil {
			t.Fatalf("want nil, got %v", got)
		}
	})

	t.Run("allergy keyword", func(t *testing.T) {
		t.Parallel()
		got := d.Detect("有人对花生过敏吗？")
		if !slices.Equal(got, []string{"allergy"}) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("english keyword is case-insensitive", func(t *testing.T) {
		t.Parallel()
		got := d.Detect("Is the food HALAL?")
		if !slices.Equal(got, []string{"religion"}) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("both topics in priority order", func(t *testing.T) {
		t.Parallel()
		got := d.Detect("需要考虑清真饮食，还有海鲜过敏的人")
		if !slices.Equal(got, []string{"religion", "allergy"}) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("topic reported once despite multiple keywords", func(t *testing.T) {
		t.Parallel()
		got := d.Detect("牛奶、乳糖、麸质都要注意")
		if !slices.Equal(got, []string{"allergy"}) {
			t.Fatalf("got %v", got)
		}
	})
}

func TestKeywordDetectorTags(t *testing.T) {
	t.Parallel()

	d := NewKeywordDetector(DefaultTopics())
	if got := d.Tags(); !slices.Equal(got, []string{"religion", "allergy"}) {
		t.Fatalf("got %v", got)
	}
}
