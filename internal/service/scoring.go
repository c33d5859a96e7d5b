package service

import (
	"github.com/Harshitk-cp/factgraph/internal/domain"
)

// Outcome of comparing a challenger with the incumbent of a slot.
type Outcome string

const (
	OutcomeNoIncumbent Outcome = "no_incumbent"
	OutcomeSameSource  Outcome = "same_source"
	OutcomeFresher     Outcome = "fresher"
	OutcomeStale       Outcome = "stale"
	OutcomeMoreTrusted Outcome = "more_trusted"
	OutcomeLessTrusted Outcome = "less_trusted"
	OutcomeTie         Outcome = "tie"
)

// Decision is the verdict of the scoring policy.
type Decision struct {
	ChallengerWins bool
	Outcome        Outcome
}

// Decide applies the corroboration policy: the more recently observed fact
// wins, trust breaks ties on observation time, and a full tie keeps the
// incumbent. A source always replaces its own claim.
func Decide(incumbent *domain.ProvableFact, challenger domain.ProvableFact) Decision {
	if incumbent == nil {
		return Decision{ChallengerWins: true, Outcome: OutcomeNoIncumbent}
	}
	if incumbent.SourceID == challenger.SourceID {
		return Decision{ChallengerWins: true, Outcome: OutcomeSameSource}
	}

	switch {
	case challenger.ObservedAt.After(incumbent.ObservedAt):
		return Decision{ChallengerWins: true, Outcome: OutcomeFresher}
	case challenger.ObservedAt.Before(incumbent.ObservedAt):
		return Decision{Outcome: OutcomeStale}
	case challenger.SourceTrust > incumbent.SourceTrust:
		return Decision{ChallengerWins: true, Outcome: OutcomeMoreTrusted}
	case challenger.SourceTrust < incumbent.SourceTrust:
		return Decision{Outcome: OutcomeLessTrusted}
	default:
		return Decision{Outcome: OutcomeTie}
	}
}

// batchLess orders two claims of one source for the same slot. It extends
// the policy order with value and evidence so that folding a batch gives the
// same winner whatever the submission order.
func batchLess(a, b domain.ProvableFact) bool {
	if !a.ObservedAt.Equal(b.ObservedAt) {
		return a.ObservedAt.Before(b.ObservedAt)
	}
	if a.SourceTrust != b.SourceTrust {
		return a.SourceTrust < b.SourceTrust
	}
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	return a.EvidenceRef < b.EvidenceRef
}
