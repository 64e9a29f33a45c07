package review

// SkipReason names why a patch attempt was not made for an agent.
type SkipReason string

const (
	SkipBudgetExhausted SkipReason = "budget_exhausted"
	SkipCooldown        SkipReason = "cooldown"
	SkipBelowThreshold  SkipReason = "below_threshold"
)

// GateInput is everything the per-agent gate needs to decide whether a
// patch attempt may proceed.
type GateInput struct {
	// IssueCount is how many unresolved issues implicate this agent.
	IssueCount int
	// MinIssues is the threshold below which single incidents are
	// treated as noise.
	MinIssues int
	// HasCriticalOverride is true when any implicating issue is a
	// hallucination or critical severity.
	HasCriticalOverride bool
	// CooldownElapsed is true when no revision was committed for this
	// agent within the cooldown window.
	CooldownElapsed bool
	// BudgetRemaining is how many patch attempts the cycle may still
	// make.
	BudgetRemaining int
}

// Verdict is the gate's decision for one agent.
type Verdict struct {
	Proceed bool
	Reason  SkipReason
}

// Decide applies the per-agent gating rules in order: cycle budget,
// then cooldown, then the minimum-issue threshold. The threshold is
// waived when a critical override is present; the budget and cooldown
// never are.
func Decide(in GateInput) Verdict {
	if in.BudgetRemaining <= 0 {
		return Verdict{Reason: SkipBudgetExhausted}
	}
	if !in.CooldownElapsed {
		return Verdict{Reason: SkipCooldown}
	}
	if in.IssueCount < in.MinIssues && !in.HasCriticalOverride {
		return Verdict{Reason: SkipBelowThreshold}
	}
	return Verdict{Proceed: true}
}
