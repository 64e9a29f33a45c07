package review

import (
	"testing"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

var testAgents = []string{"router", "finance", "calendar"}

func issueFor(agent string) *models.QualityIssue {
	return &models.QualityIssue{AgentName: agent, Category: "wrong_info", Severity: models.SeverityMedium}
}

func TestGroupIssuesByAgent(t *testing.T) {
	issues := []*models.QualityIssue{
		issueFor("finance"),
		issueFor("router"),
		issueFor("finance"),
		issueFor(""),            // no agent
		issueFor("unknown-bot"), // not a known agent
	}

	got := GroupIssuesByAgent(issues, testAgents)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	// Ordered by first appearance: finance before router.
	if got[0].Agent != "finance" || len(got[0].Issues) != 2 {
		t.Errorf("first candidate = %s with %d issues", got[0].Agent, len(got[0].Issues))
	}
	if got[1].Agent != "router" || len(got[1].Issues) != 1 {
		t.Errorf("second candidate = %s with %d issues", got[1].Agent, len(got[1].Issues))
	}
}

func TestSelectCandidatesNarrowsByMention(t *testing.T) {
	issues := []*models.QualityIssue{issueFor("finance"), issueFor("router")}
	proposals := "El agente Finance debería validar la moneda antes de responder."

	got := SelectCandidates(proposals, issues, testAgents)
	if len(got) != 1 || got[0].Agent != "finance" {
		t.Fatalf("expected only finance, got %+v", got)
	}
}

func TestSelectCandidatesFallsBackWhenNoneMentioned(t *testing.T) {
	issues := []*models.QualityIssue{issueFor("finance"), issueFor("router")}
	proposals := "Los agentes deberían ser más cuidadosos en general."

	got := SelectCandidates(proposals, issues, testAgents)
	if len(got) != 2 {
		t.Fatalf("expected full grouped set, got %d candidates", len(got))
	}
}

func TestSelectCandidatesEmpty(t *testing.T) {
	if got := SelectCandidates("anything", nil, testAgents); got != nil {
		t.Fatalf("expected nil for no issues, got %+v", got)
	}
	if got := SelectCandidates("anything", []*models.QualityIssue{issueFor("unknown")}, testAgents); got != nil {
		t.Fatalf("expected nil when no known agent implicated, got %+v", got)
	}
}
