package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// EvaluationReport is the analyser's verdict on a finished conversation.
type EvaluationReport struct {
	Score    int    `json:"score"`
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback"`
}

// defaultEvaluationReport stands in when the analyser's output cannot be
// parsed, so a flaky model never blocks the conversation from finishing.
func defaultEvaluationReport() EvaluationReport {
	return EvaluationReport{
		Score:    60,
		Passed:   true,
		Feedback: "对话已完成，未能生成详细评估。",
	}
}

// Line renders the report the way it appears in the composed reply.
func (r EvaluationReport) Line() string {
	verdict := "未通过"
	if r.Passed {
		verdict = "通过"
	}
	return fmt.Sprintf("评估结果：得分 %d/100，%s。反馈：%s", r.Score, verdict, r.Feedback)
}

// appendEvaluation runs the analyser over the finished conversation, appends
// the report and the observer's closing summary, and moves the phase state to
// finished. The report and summary are appended to base, which may be empty
// when the evaluation is retried on its own turn.
func (o *Orchestrator) appendEvaluation(ctx context.Context, conv *Conversation, state *PhaseState, base string) string {
	report := o.evaluate(ctx, conv)
	state.Phase = PhaseFinished

	reply := base
	if reply != "" {
		reply += "\n\n"
	}
	reply += report.Line()

	msg := Message{Role: RoleModel, Name: "评估", Content: report.Line()}
	if err := o.appendMessages(ctx, conv.ID, msg); err != nil {
		o.log.Warn("append evaluation failed", "conversation", conv.ID, "error", err)
	} else {
		conv.Messages = append(conv.Messages, msg)
	}

	if name, summary := o.observerSummary(ctx, conv); summary != "" {
		reply += "\n\n" + name + ": " + summary
	}
	return reply
}

// evaluate asks the analyser persona to grade the conversation and parses its
// JSON verdict, tolerating surrounding prose or a code fence.
func (o *Orchestrator) evaluate(ctx context.Context, conv *Conversation) EvaluationReport {
	analyser, ok := o.registry.Get(o.analyserID)
	if !ok {
		o.log.Warn("analyser persona missing", "analyser", o.analyserID)
		return defaultEvaluationReport()
	}

	prompt := "【请评估以下对话】\n\n" + formatHistory(conv.Messages) + "\n\n" +
		"请以 JSON 格式输出评估结果，只输出 JSON：\n" +
		`{"score": 0到100的整数, "passed": true或false, "feedback": "一句话反馈"}`

	raw, callOK := o.callAgent(ctx, conv, analyser, prompt)
	if !callOK {
		return defaultEvaluationReport()
	}

	report, err := parseEvaluation(raw)
	if err != nil {
		o.log.Warn("unparseable evaluation, using default report",
			"conversation", conv.ID, "error", err)
		return defaultEvaluationReport()
	}
	return report
}

// parseEvaluation extracts the first JSON object from raw and decodes it.
func parseEvaluation(raw string) (EvaluationReport, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return EvaluationReport{}, fmt.Errorf("conversation: no JSON object in %q", raw)
	}

	var report EvaluationReport
	if err := json.Unmarshal([]byte(raw[start:end+1]), &report); err != nil {
		return EvaluationReport{}, fmt.Errorf("conversation: decode evaluation: %w", err)
	}
	if report.Score < 0 || report.Score > 100 {
		return EvaluationReport{}, fmt.Errorf("conversation: score %d out of range", report.Score)
	}
	return report, nil
}
