package game

// PlayerView is the part of a player every connection in the room may see.
type PlayerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p Player) View() PlayerView {
	return PlayerView{ID: p.ID, Name: p.Name}
}

// Snapshot is the room-wide view broadcast to every connection. Roles are
// never included; votes appear from voting onwards and the outsider, scenario
// and guess only once the round has ended.
type Snapshot struct {
	RoomCode             string            `json:"roomCode"`
	Phase                Phase             `json:"phase"`
	Round                int               `json:"round"`
	Players              []PlayerView      `json:"players"`
	HostID               string            `json:"hostId,omitempty"`
	CanStart             bool              `json:"canStart"`
	MinPlayers           int               `json:"minPlayers"`
	MaxPlayers           int               `json:"maxPlayers"`
	TimeRemainingMs      *int64            `json:"timeRemaining"`
	RoundDurationMs      *int64            `json:"roundDurationMs"`
	RoundDurationMinutes Minutes           `json:"roundDurationMinutes"`
	Winner               *Side             `json:"winner"`
	EndReason            EndReason         `json:"endReason,omitempty"`
	Votes                map[string]string `json:"votes"`
	OutsiderID           *string           `json:"outsiderId"`
	OutsiderName         *string           `json:"outsiderName"`
	ScenarioName         *string           `json:"scenarioName"`
	OutsiderGuess        *string           `json:"outsiderGuess"`
	AccusedID            *string           `json:"accusedId"`
}

func (r *Room) Snapshot() Snapshot {
	snap := Snapshot{
		RoomCode:             r.code,
		Phase:                r.phase,
		Round:                r.round,
		Players:              make([]PlayerView, 0, len(r.players)),
		CanStart:             r.CanStart(),
		MinPlayers:           r.minPlayers,
		MaxPlayers:           r.maxPlayers,
		RoundDurationMinutes: MinutesOf(r.roundDuration),
	}
	for _, p := range r.players {
		snap.Players = append(snap.Players, p.View())
	}
	if host, ok := r.Host(); ok {
		snap.HostID = host.ID
	}
	if r.roundDuration > 0 {
		ms := r.roundDuration.Milliseconds()
		snap.RoundDurationMs = &ms
	}
	if remaining, ok := r.RemainingTime(); ok {
		ms := remaining.Milliseconds()
		snap.TimeRemainingMs = &ms
	}
	if r.phase == PhaseVoting || r.phase == PhaseEnded {
		snap.Votes = r.Votes()
	}
	if r.phase == PhaseEnded {
		winner := r.outcome.Winner
		snap.Winner = &winner
		snap.EndReason = r.outcome.Reason
		snap.OutsiderID = stringPtr(r.outsiderID)
		snap.OutsiderName = stringPtr(r.outsiderName)
		snap.ScenarioName = stringPtr(r.scenarioName)
		if r.hasGuess {
			snap.OutsiderGuess = stringPtr(r.guess)
		}
		if r.outcome.AccusedID != "" {
			snap.AccusedID = stringPtr(r.outcome.AccusedID)
		}
	}
	return snap
}

func stringPtr(value string) *string {
	return &value
}
