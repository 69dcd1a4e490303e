package game

// Ballot is one recorded vote. Ballots are kept in the order each voter first
// voted; changing a vote keeps the voter's original position.
type Ballot struct {
	VoterID  string
	TargetID string
}

type OutcomeInputs struct {
	Guess        string
	HasGuess     bool
	ScenarioName string
	OutsiderID   string
	Ballots      []Ballot
}

type Outcome struct {
	Winner    Side      `json:"winner,omitempty"`
	Reason    EndReason `json:"reason,omitempty"`
	AccusedID string    `json:"accusedId,omitempty"`
}

// DecideOutcome resolves a round. A guess takes precedence over votes, votes
// over the default outsider win. It has no side effects.
func DecideOutcome(in OutcomeInputs) Outcome {
	if in.HasGuess {
		if in.Guess == in.ScenarioName {
			return Outcome{Winner: SideOutsider, Reason: ReasonGuessCorrect}
		}
		return Outcome{Winner: SideGroup, Reason: ReasonGuessWrong}
	}
	if len(in.Ballots) > 0 {
		accused := Accused(in.Ballots)
		if accused == in.OutsiderID {
			return Outcome{Winner: SideGroup, Reason: ReasonVote, AccusedID: accused}
		}
		return Outcome{Winner: SideOutsider, Reason: ReasonVote, AccusedID: accused}
	}
	return Outcome{Winner: SideOutsider, Reason: ReasonNoVerdict}
}

// Accused is the target with the most votes. Ties go to the target that was
// voted for earliest.
func Accused(ballots []Ballot) string {
	counts := make(map[string]int, len(ballots))
	order := make([]string, 0, len(ballots))
	for _, ballot := range ballots {
		if _, seen := counts[ballot.TargetID]; !seen {
			order = append(order, ballot.TargetID)
		}
		counts[ballot.TargetID]++
	}
	accused := ""
	best := 0
	for _, target := range order {
		if counts[target] > best {
			best = counts[target]
			accused = target
		}
	}
	return accused
}
