package review

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
	"github.com/pablodma/homeAssistant-asistant/internal/provider"
)

// improverSystemPrompt instructs the patch model. The response contract
// is strict: a should_modify verdict is mandatory, and edits must be
// minimal and targeted so prompts do not drift cycle over cycle.
const improverSystemPrompt = `Eres un experto en ingeniería de prompts para sistemas multi-agente conversacionales.

Tu tarea es revisar el prompt de sistema de un agente y decidir si necesita modificaciones para corregir los problemas de calidad reportados.

Reglas estrictas:
1. Haz cambios MÍNIMOS y quirúrgicos. Modifica solo lo necesario para corregir los problemas reportados.
2. NUNCA elimines instrucciones existentes salvo que contradigan directamente la corrección.
3. Conserva el formato, la estructura y el idioma del prompt original.
4. Si los problemas no se pueden corregir editando el prompt, responde que no debe modificarse.

Responde EXACTAMENTE con esta estructura de etiquetas:

<should_modify>true o false</should_modify>
<improved_prompt>el prompt completo con tus cambios aplicados (solo si should_modify es true)</improved_prompt>
<changes>
<change section="seccion afectada" change="que cambiaste" reason="por que" />
</changes>
<reason>explicacion breve de tu decision</reason>
<not_applied>propuestas que no se pueden resolver editando el prompt, si las hay</not_applied>
<confidence>0.0 a 1.0</confidence>`

// patchProposal is a validated, appliable edit together with the
// prompt text it was derived from.
type patchProposal struct {
	currentPrompt string
	improvement   *Improvement
}

// proposeImprovement asks the model for a minimal edit to one agent's
// prompt. Returns nil with no error when the model declines to modify,
// answers inconclusively, or the response was truncated: a cut-off
// prompt must never be committed.
func (r *Reviewer) proposeImprovement(ctx context.Context, agentName string, agentIssues []*models.QualityIssue, proposals string) (*patchProposal, error) {
	current, err := r.docs.GetPrompt(ctx, agentName)
	if err != nil {
		return nil, fmt.Errorf("failed to read current prompt: %w", err)
	}

	resp, err := r.generate(ctx, "improvement", &provider.GenerateRequest{
		Model:       r.model,
		System:      improverSystemPrompt,
		Prompt:      buildImproveMessage(agentName, current, agentIssues, proposals),
		MaxTokens:   improveMaxTokens,
		Temperature: improveTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("improvement generation failed: %w", err)
	}
	if resp.Truncated() {
		log.Printf("[Review] discarding truncated improvement for agent %s", agentName)
		return nil, nil
	}

	imp := ParseImprovement(resp.Text)
	if imp == nil {
		log.Printf("[Review] inconclusive improvement response for agent %s, skipping", agentName)
		return nil, nil
	}
	if !imp.ShouldModify {
		log.Printf("[Review] model declined to modify prompt for agent %s: %s", agentName, imp.Reason)
		return nil, nil
	}
	if imp.ImprovedPrompt == "" {
		log.Printf("[Review] agent %s: should_modify without an improved prompt, skipping", agentName)
		return nil, nil
	}
	if imp.NotApplied != "" {
		log.Printf("[Review] agent %s: proposals not expressible as prompt edits: %s", agentName, imp.NotApplied)
	}
	return &patchProposal{currentPrompt: current, improvement: imp}, nil
}

// buildImproveMessage assembles the user turn for the patch model: the
// current prompt, a digest of the implicating issues, and the relevant
// diagnostic proposals.
func buildImproveMessage(agentName, currentPrompt string, agentIssues []*models.QualityIssue, proposals string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agente: %s\n\n", agentName)
	fmt.Fprintf(&b, "Prompt actual del agente:\n<current_prompt>\n%s\n</current_prompt>\n\n", currentPrompt)

	b.WriteString("Problemas de calidad sin resolver que involucran a este agente:\n")
	for _, issue := range agentIssues {
		fmt.Fprintf(&b, "- [%s/%s] User: %q -> Bot: %q",
			issue.Category, issue.Severity,
			truncate(issue.MessageIn, 100), truncate(issue.MessageOut, 100))
		if issue.QAAnalysis != "" {
			fmt.Fprintf(&b, " (QA: %s)", truncate(issue.QAAnalysis, 150))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nPropuestas del análisis de diagnóstico:\n%s\n", proposals)
	return b.String()
}
