package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/pablodma/homeAssistant-asistant/internal/provider"
)

// Template placeholders the analysis document must carry.
const (
	placeholderConversationLog = "{{CONVERSATION_LOG}}"
	placeholderAPILogs         = "{{API_LOGS}}"
	placeholderMetrics         = "{{CURRENT_METRICS}}"
)

// analyze fills the diagnostic template with the evidence blocks, runs
// it through the model, and extracts the tagged sections. A truncated
// analysis is still used: its sections parsed so far are better than
// nothing, unlike a truncated patch.
func (r *Reviewer) analyze(ctx context.Context, template, convLog, apiLog, metricsBlock string) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "review.analyze")
	defer span.End()

	prompt := strings.NewReplacer(
		placeholderConversationLog, convLog,
		placeholderAPILogs, apiLog,
		placeholderMetrics, metricsBlock,
	).Replace(template)

	resp, err := r.generate(ctx, "analysis", &provider.GenerateRequest{
		Model:     r.model,
		Prompt:    prompt,
		MaxTokens: analysisMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("diagnostic analysis failed: %w", err)
	}
	if resp.Truncated() {
		span.AddEvent("analysis truncated")
	}

	return ExtractSections(resp.Text), nil
}
