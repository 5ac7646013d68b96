// Package sanitize cleans raw LLM output before it is shown to the player.
//
// Reasoning-tuned models (DeepSeek R1, Qwen3, …) frequently leak their chain
// of thought into the visible reply: <think>…</think> blocks, planning
// sentences ("首先，我需要…"), or restatements of the system prompt. The
// sanitizer strips all of that and enforces a maximum reply length so a
// degenerate repetition loop cannot push an unbounded string to the client.
//
// The pipeline is, in order:
//
//  1. Remove <think>…</think> blocks (case-insensitive). An unclosed <think>
//     discards everything from the marker onward.
//  2. Locate the first line that looks like actual dialogue — a known speaker
//     label followed by a colon, or wrapped in 【brackets】 — and drop
//     everything before it.
//  3. If no dialogue line is found, drop individual lines that start with a
//     known thinking-style prefix.
//  4. Truncate to the configured maximum length, appending a single ellipsis.
//
// Truncation always happens after stripping, never before, so a reply is
// never cut mid-way through a reasoning block.
package sanitize

import (
	"regexp"
	"strings"
)

// DefaultMaxLength is the reply length cap applied when no option overrides
// it. Replies longer than this stall or truncate rendering in the Godot
// client's dialogue box.
const DefaultMaxLength = 2000

// Ellipsis is appended to a reply that was cut at the length cap.
const Ellipsis = "…"

var (
	thinkBlockRe = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkOpenRe  = regexp.MustCompile(`(?i)<think>`)
)

// thinkingPrefixes are line openers that indicate leaked reasoning rather
// than in-character dialogue. Used only when no dialogue line is found.
var thinkingPrefixes = []string{
	"思考：", "（思考）", "推理：", "【思考】", "（推理）",
	"好的，", "好，", "嗯，", "OK，", "Ok，", "ok，",
	"首先，", "接下来，", "然后，", "现在，",
	"用户希望", "用户想要", "用户需要", "用户请求", "用户提供",
	"我需要", "我应该", "我要", "我会",
	"让我", "我来", "最后，", "同时，", "另外，",
}

// Option is a functional option for configuring a [Sanitizer].
type Option func(*Sanitizer)

// WithMaxLength overrides the reply length cap. Values < 1 are ignored.
func WithMaxLength(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// WithExtraLabels adds speaker labels that are always recognised as dialogue
// openers, in addition to the per-call labels passed to [Sanitizer.Sanitize].
// Typically the observer's display names (e.g. "Observer", "观察者").
func WithExtraLabels(labels ...string) Option {
	return func(s *Sanitizer) {
		s.extraLabels = append(s.extraLabels, labels...)
	}
}

// Sanitizer strips reasoning text from model output and enforces a length
// cap. It is read-only after construction and safe for concurrent use.
type Sanitizer struct {
	maxLength   int
	extraLabels []string
}

// New returns a [Sanitizer] configured with the supplied options.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{maxLength: DefaultMaxLength}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sanitize cleans raw and reports whether any displayable text remains.
//
// speakerLabels are the display names whose "Name:" lines count as dialogue
// for this call (the conversation's participants). The second return value is
// false when the sanitized result is empty, so callers can distinguish "the
// model produced nothing usable" from an empty-string reply.
func (s *Sanitizer) Sanitize(raw string, speakerLabels ...string) (string, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", false
	}

	text = thinkBlockRe.ReplaceAllString(text, "")
	if loc := thinkOpenRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}

	labels := make([]string, 0, len(speakerLabels)+len(s.extraLabels))
	labels = append(labels, speakerLabels...)
	labels = append(labels, s.extraLabels...)

	lines := strings.Split(text, "\n")
	if idx := firstDialogueLine(lines, labels); idx >= 0 {
		text = strings.TrimSpace(strings.Join(lines[idx:], "\n"))
	} else {
		text = strings.TrimSpace(stripThinkingLines(lines))
	}

	text = s.truncate(text)
	if text == "" {
		return "", false
	}
	return text, true
}

// JoinChunks concatenates model-emitted text chunks, dropping any chunk whose
// exact text already appeared earlier in the same response. Reasoning models
// occasionally repeat an identical sentence hundreds of times; keeping only
// the first occurrence bounds the damage before sanitization runs.
func JoinChunks(chunks []string) string {
	var (
		b    strings.Builder
		seen = make(map[string]struct{}, len(chunks))
	)
	for _, c := range chunks {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		b.WriteString(c)
	}
	return b.String()
}

// firstDialogueLine returns the index of the first line that opens with a
// known speaker label ("Mikko:", "Aino：", "【Observer】"), or -1.
func firstDialogueLine(lines []string, labels []string) int {
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		for _, label := range labels {
			if label == "" {
				continue
			}
			if hasLabelPrefix(t, label) {
				return i
			}
		}
	}
	return -1
}

// hasLabelPrefix reports whether line starts with label followed by an ASCII
// or full-width colon, or with the label wrapped in 【】. Matching is
// case-insensitive.
func hasLabelPrefix(line, label string) bool {
	if rest, ok := cutPrefixFold(line, label); ok {
		rest = strings.TrimLeft(rest, " \t")
		return strings.HasPrefix(rest, ":") || strings.HasPrefix(rest, "：")
	}
	if rest, ok := strings.CutPrefix(line, "【"); ok {
		if rest, ok = cutPrefixFold(rest, label); ok {
			return strings.HasPrefix(rest, "】")
		}
	}
	return false
}

// cutPrefixFold is strings.CutPrefix with ASCII-case-insensitive matching.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) {
		return s, false
	}
	if strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// stripThinkingLines removes whole lines that begin with a thinking prefix.
// Blank lines are preserved to keep paragraph structure.
func stripThinkingLines(lines []string) string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			out = append(out, line)
			continue
		}
		thinking := false
		for _, prefix := range thinkingPrefixes {
			if strings.HasPrefix(t, prefix) {
				thinking = true
				break
			}
		}
		if thinking {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// truncate cuts text at the configured rune budget and appends [Ellipsis].
// Text already within budget is returned unchanged, so sanitizing an
// already-truncated reply is a no-op.
func (s *Sanitizer) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= s.maxLength {
		return text
	}
	return strings.TrimRight(string(runes[:s.maxLength]), " \t\n") + Ellipsis
}
