package models

import (
	"encoding/json"
	"testing"
)

func TestHasCriticalOverride(t *testing.T) {
	tests := []struct {
		name  string
		issue QualityIssue
		want  bool
	}{
		{"hallucination", QualityIssue{Category: "hallucination", Severity: SeverityLow}, true},
		{"critical severity", QualityIssue{Category: "wrong_info", Severity: SeverityCritical}, true},
		{"ordinary", QualityIssue{Category: "wrong_info", Severity: SeverityHigh}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.issue.HasCriticalOverride(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRevisionJSONRoundTrip(t *testing.T) {
	rev := &PromptRevision{
		Changes:         []PromptChange{{Section: "tone", Change: "softer", Reason: "complaints"}},
		IssuesAddressed: []string{"a", "b"},
	}

	changes, err := rev.ChangesJSON()
	if err != nil {
		t.Fatal(err)
	}
	issues, err := rev.IssuesAddressedJSON()
	if err != nil {
		t.Fatal(err)
	}

	var back PromptRevision
	if err := back.SetChangesFromJSON(changes); err != nil {
		t.Fatal(err)
	}
	if err := back.SetIssuesAddressedFromJSON(issues); err != nil {
		t.Fatal(err)
	}
	if len(back.Changes) != 1 || back.Changes[0].Section != "tone" {
		t.Errorf("changes = %+v", back.Changes)
	}
	if len(back.IssuesAddressed) != 2 {
		t.Errorf("issues = %v", back.IssuesAddressed)
	}
}

func TestRevisionJSONEmpty(t *testing.T) {
	var rev PromptRevision
	changes, err := rev.ChangesJSON()
	if err != nil || string(changes) != "[]" {
		t.Errorf("empty changes = %s, err %v", changes, err)
	}
}

func TestSummary(t *testing.T) {
	rev := &PromptRevision{
		ID:        "rev-1",
		AgentName: "finance",
		CommitSHA: "abc",
	}
	s := rev.Summary()
	if s.RevisionID != "rev-1" || s.AgentName != "finance" || s.CommitSHA != "abc" {
		t.Errorf("summary = %+v", s)
	}

	// The digest never exposes the prompt bodies.
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, forbidden := range []string{"original_prompt", "improved_prompt"} {
		if string(data) != "" && containsKey(data, forbidden) {
			t.Errorf("summary leaks %s", forbidden)
		}
	}
}

func containsKey(data []byte, key string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}
