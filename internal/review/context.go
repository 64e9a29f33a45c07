package review

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

// Stock sentences for empty partitions, so downstream templates are
// always well-formed.
const (
	noConversationIssues = "No conversation quality issues found in this period."
	noTechnicalErrors    = "No technical errors found in this period."
)

// PartitionIssues splits a batch into soft (behavioral) and hard
// (technical) errors, preserving order.
func PartitionIssues(issues []*models.QualityIssue) (soft, hard []*models.QualityIssue) {
	for _, issue := range issues {
		if issue.IsHardError() {
			hard = append(hard, issue)
		} else {
			soft = append(soft, issue)
		}
	}
	return soft, hard
}

// BuildConversationLog renders soft errors as a conversational-failure
// log, one numbered block per issue.
func BuildConversationLog(softErrors []*models.QualityIssue) string {
	if len(softErrors) == 0 {
		return noConversationIssues
	}

	var entries []string
	for i, issue := range softErrors {
		var b strings.Builder
		fmt.Fprintf(&b, "--- Interaction #%d ---\n", i+1)
		fmt.Fprintf(&b, "Agent: %s\n", orDefault(issue.AgentName, "unknown"))
		fmt.Fprintf(&b, "Category: %s\n", issue.Category)
		fmt.Fprintf(&b, "Severity: %s\n", issue.Severity)
		fmt.Fprintf(&b, "User said: %s\n", orNA(issue.MessageIn))
		fmt.Fprintf(&b, "Bot responded: %s\n", orNA(issue.MessageOut))
		fmt.Fprintf(&b, "QA Analysis: %s\n", orNA(issue.QAAnalysis))
		fmt.Fprintf(&b, "QA Suggestion: %s\n", orNA(issue.QASuggestion))
		fmt.Fprintf(&b, "Confidence: %s\n", formatConfidence(issue.QAConfidence))
		if issue.AdminInsight != "" {
			fmt.Fprintf(&b, "Admin Insight: %s\n", issue.AdminInsight)
		}
		fmt.Fprintf(&b, "Time: %s\n", issue.CreatedAt.Format(time.RFC3339))
		entries = append(entries, b.String())
	}

	return strings.Join(entries, "\n")
}

// BuildAPILog renders hard errors as a technical-error log, one
// numbered block per issue.
func BuildAPILog(hardErrors []*models.QualityIssue) string {
	if len(hardErrors) == 0 {
		return noTechnicalErrors
	}

	var entries []string
	for i, issue := range hardErrors {
		var b strings.Builder
		fmt.Fprintf(&b, "--- Error #%d ---\n", i+1)
		fmt.Fprintf(&b, "Type: %s\n", issue.Category)
		fmt.Fprintf(&b, "Severity: %s\n", issue.Severity)
		fmt.Fprintf(&b, "Agent: %s\n", orDefault(issue.AgentName, "unknown"))
		fmt.Fprintf(&b, "Tool: %s\n", orNA(issue.ToolName))
		fmt.Fprintf(&b, "Error: %s\n", issue.ErrorMessage)
		fmt.Fprintf(&b, "Error Code: %s\n", orNA(issue.ErrorCode))
		fmt.Fprintf(&b, "User Message: %s\n", orNA(issue.MessageIn))
		fmt.Fprintf(&b, "Correlation ID: %s\n", orNA(issue.CorrelationID))
		fmt.Fprintf(&b, "Time: %s\n", issue.CreatedAt.Format(time.RFC3339))
		if issue.StackTrace != "" {
			fmt.Fprintf(&b, "Stack Trace:\n%s\n", truncate(issue.StackTrace, 500))
		}
		entries = append(entries, b.String())
	}

	return strings.Join(entries, "\n")
}

// BuildMetrics renders aggregate counts for a batch of issues: totals
// plus per-agent, per-category, and per-severity breakdowns, each
// sorted by count.
func BuildMetrics(issues []*models.QualityIssue) string {
	total := len(issues)
	soft, hard := 0, 0
	byAgent := map[string]int{}
	byCategory := map[string]int{}
	bySeverity := map[string]int{}

	for _, issue := range issues {
		if issue.IsHardError() {
			hard++
		} else {
			soft++
		}
		byAgent[orDefault(issue.AgentName, "unknown")]++
		byCategory[issue.Category]++
		bySeverity[string(issue.Severity)]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total issues: %d\n", total)
	fmt.Fprintf(&b, "Soft errors (quality): %d\n", soft)
	fmt.Fprintf(&b, "Hard errors (technical): %d\n", hard)

	b.WriteString("\nBy agent:\n")
	writeCounts(&b, byAgent)
	b.WriteString("\nBy category:\n")
	writeCounts(&b, byCategory)
	b.WriteString("\nBy severity:\n")
	writeCounts(&b, bySeverity)

	return strings.TrimRight(b.String(), "\n")
}

// writeCounts renders a count map as "  - key: n" lines, highest count
// first, ties broken alphabetically for stable output.
func writeCounts(b *strings.Builder, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Fprintf(b, "  - %s: %d\n", k, counts[k])
	}
}

func orNA(s string) string {
	return orDefault(s, "N/A")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func formatConfidence(c float64) string {
	if c == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", c)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
