// Package topic classifies player messages into conversation topics.
//
// The phase state machine consumes this package through the [Detector]
// interface so that the trigger vocabulary can be swapped or extended
// (per-event topic lists, an ML classifier, …) without touching the state
// transition logic.
package topic

import "strings"

// Topic describes one deep-dive subject and the vocabulary that triggers it.
type Topic struct {
	// Tag is the stable identifier for this topic (e.g. "religion", "allergy").
	// Order of topics in a list is significant: it is the deterministic
	// priority used when a message triggers several topics at once.
	Tag string

	// Keywords are the case-insensitive substrings that mark a player message
	// as raising this topic.
	Keywords []string
}

// Detector classifies a single player message into zero or more topic tags.
// Implementations must be safe for concurrent use.
type Detector interface {
	// Detect returns the tags of all topics raised by text, in the detector's
	// priority order. Only the current message is scanned, never history:
	// a topic counts as raised only when the player brings it up themselves.
	Detect(text string) []string
}

// KeywordDetector is a [Detector] backed by plain substring matching against
// per-topic keyword lists. It is read-only after construction.
type KeywordDetector struct {
	topics []Topic
}

// NewKeywordDetector builds a detector over the given topics. The slice order
// fixes the priority order of the returned tags.
func NewKeywordDetector(topics []Topic) *KeywordDetector {
	ts := make([]Topic, len(topics))
	copy(ts, topics)
	return &KeywordDetector{topics: ts}
}

// Detect implements [Detector]. Matching is case-insensitive; each topic is
// reported at most once regardless of how many of its keywords appear.
func (d *KeywordDetector) Detect(text string) []string {
	lower := strings.ToLower(text)

	var tags []string
	for _, t := range d.topics {
		for _, kw := range t.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				tags = append(tags, t.Tag)
				break
			}
		}
	}
	return tags
}

// Tags returns the configured topic tags in priority order.
func (d *KeywordDetector) Tags() []string {
	tags := make([]string, len(d.topics))
	for i, t := range d.topics {
		tags[i] = t.Tag
	}
	return tags
}

// DefaultTopics is the trigger vocabulary for the Finnish-students dinner
// scenario: religious dietary restrictions and food allergies.
func DefaultTopics() []Topic {
	return []Topic{
		{
			Tag: "religion",
			Keywords: []string{
				"宗教", "清真", "穆斯林", "伊斯兰", "犹太", "洁食",
				"halal", "kosher", "斋月", "素食", "纯素", "vegan",
				"信仰", "禁忌", "不吃猪", "不吃牛",
			},
		},
		{
			Tag: "allergy",
			Keywords: []string{
				"过敏", "花生", "坚果", "海鲜", "虾", "蟹", "贝类",
				"乳糖", "牛奶", "奶制品", "麸质", "gluten", "小麦",
				"不耐受", "敏感",
			},
		},
	}
}
