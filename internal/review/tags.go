package review

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pablodma/homeAssistant-asistant/internal/models"
)

// analysisSections are the tag names the diagnostic template asks the
// model to emit. Extraction is permissive: a missing or malformed tag
// yields an empty section rather than an error.
var analysisSections = []string{
	"understanding_errors",
	"hard_errors",
	"improvement_proposals",
	"summary",
	"automated_fixes",
	"code_patches",
	"strategic_improvements",
	"process_improvements",
	"implementation_roadmap",
	"executive_summary",
}

var (
	sectionPatterns = compileSectionPatterns()
	changeAttrRe    = regexp.MustCompile(`(?s)<change\s+section="(.*?)"\s+change="(.*?)"\s+reason="(.*?)"\s*/?>`)
)

func compileSectionPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(analysisSections))
	for _, name := range analysisSections {
		patterns[name] = tagPattern(name)
	}
	return patterns
}

func tagPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<` + name + `>(.*?)</` + name + `>`)
}

// ExtractSections pulls every known analysis section out of a raw model
// response. Sections the model omitted are absent from the map.
func ExtractSections(text string) map[string]string {
	sections := make(map[string]string, len(analysisSections))
	for _, name := range analysisSections {
		if body, ok := extractTag(sectionPatterns[name], text); ok {
			sections[name] = body
		}
	}
	return sections
}

func extractTag(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Improvement is a parsed patch proposal from the improver model.
type Improvement struct {
	ShouldModify   bool
	ImprovedPrompt string
	Changes        []models.PromptChange
	Reason         string
	// NotApplied notes proposals that could not be expressed as a
	// document edit. Informational only.
	NotApplied string
	Confidence float64
}

var (
	shouldModifyRe   = tagPattern("should_modify")
	improvedPromptRe = tagPattern("improved_prompt")
	changesRe        = tagPattern("changes")
	reasonRe         = tagPattern("reason")
	notAppliedRe     = tagPattern("not_applied")
	confidenceRe     = tagPattern("confidence")
)

// ParseImprovement validates an improver response against the tag
// contract. A response that never states a should_modify verdict is
// inconclusive and returns nil: an unparseable answer must not be
// mistaken for permission to patch.
func ParseImprovement(text string) *Improvement {
	verdict, ok := extractTag(shouldModifyRe, text)
	if !ok {
		return nil
	}

	imp := &Improvement{
		ShouldModify: strings.EqualFold(verdict, "true"),
	}
	if prompt, ok := extractTag(improvedPromptRe, text); ok {
		imp.ImprovedPrompt = prompt
	}
	if reason, ok := extractTag(reasonRe, text); ok {
		imp.Reason = reason
	}
	if note, ok := extractTag(notAppliedRe, text); ok {
		imp.NotApplied = note
	}
	if raw, ok := extractTag(confidenceRe, text); ok {
		if c, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			imp.Confidence = c
		}
	}
	if block, ok := extractTag(changesRe, text); ok {
		imp.Changes = parseChanges(block)
	}
	return imp
}

// parseChanges extracts the individual <change .../> entries from a
// changes block. Entries that do not carry all three attributes are
// dropped.
func parseChanges(block string) []models.PromptChange {
	var changes []models.PromptChange
	for _, m := range changeAttrRe.FindAllStringSubmatch(block, -1) {
		changes = append(changes, models.PromptChange{
			Section: strings.TrimSpace(m[1]),
			Change:  strings.TrimSpace(m[2]),
			Reason:  strings.TrimSpace(m[3]),
		})
	}
	return changes
}
