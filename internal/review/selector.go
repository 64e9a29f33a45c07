package review

import (
	"strings"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

// Candidate is one agent selected for a patch attempt together with
// the unresolved issues implicating it.
type Candidate struct {
	Agent  string
	Issues []*models.QualityIssue
}

// GroupIssuesByAgent buckets issues under the known agent they
// implicate. Issues naming no agent or an unknown agent are ignored.
// Candidates are ordered by the first appearance of their agent in the
// input, which keeps selection deterministic for a given batch.
func GroupIssuesByAgent(issues []*models.QualityIssue, knownAgents []string) []Candidate {
	known := make(map[string]bool, len(knownAgents))
	for _, a := range knownAgents {
		known[a] = true
	}

	index := map[string]int{}
	var candidates []Candidate
	for _, issue := range issues {
		if issue.AgentName == "" || !known[issue.AgentName] {
			continue
		}
		i, ok := index[issue.AgentName]
		if !ok {
			i = len(candidates)
			index[issue.AgentName] = i
			candidates = append(candidates, Candidate{Agent: issue.AgentName})
		}
		candidates[i].Issues = append(candidates[i].Issues, issue)
	}
	return candidates
}

// SelectCandidates narrows the grouped agents to those the diagnostic
// proposals mention by name (case-insensitive). When the proposals
// name none of them the full grouped set is kept, so a diagnosis that
// speaks only in generalities still drives patch attempts.
func SelectCandidates(proposals string, issues []*models.QualityIssue, knownAgents []string) []Candidate {
	grouped := GroupIssuesByAgent(issues, knownAgents)
	if len(grouped) == 0 {
		return nil
	}

	lowered := strings.ToLower(proposals)
	var matched []Candidate
	for _, c := range grouped {
		if strings.Contains(lowered, strings.ToLower(c.Agent)) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return grouped
	}
	return matched
}
