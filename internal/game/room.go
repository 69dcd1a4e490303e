package game

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"outsider/internal/scenario"
)

// DefaultMinPlayers is the product minimum for starting a round.
const DefaultMinPlayers = 3

// RoomOptions configures a Room. Rand and Now are injectable so tests can pin
// down role assignment and elapsed time.
type RoomOptions struct {
	Catalog       *scenario.Catalog
	MinPlayers    int
	MaxPlayers    int
	RoundDuration time.Duration
	Rand          *rand.Rand
	Now           func() time.Time
}

// Room is the state machine of one play session. It is not safe for
// concurrent use; the Directory serializes access per room.
type Room struct {
	code       string
	catalog    *scenario.Catalog
	minPlayers int
	maxPlayers int
	rng        *rand.Rand
	now        func() time.Time
	createdAt  time.Time

	phase          Phase
	players        []*Player
	roundDuration  time.Duration
	round          int
	scenarioName   string
	outsiderID     string
	outsiderName   string
	roundStartedAt time.Time
	votes          map[string]string
	voteOrder      []string
	guess          string
	hasGuess       bool
	outcome        Outcome
}

func NewRoom(code string, opts RoomOptions) *Room {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = scenario.Default()
	}
	minPlayers := opts.MinPlayers
	if minPlayers <= 0 {
		minPlayers = DefaultMinPlayers
	}
	maxPlayers := opts.MaxPlayers
	if maxPlayers <= 0 || maxPlayers > catalog.Capacity() {
		maxPlayers = catalog.Capacity()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	duration := opts.RoundDuration
	if duration < 0 {
		duration = 0
	}
	return &Room{
		code:          code,
		catalog:       catalog,
		minPlayers:    minPlayers,
		maxPlayers:    maxPlayers,
		rng:           rng,
		now:           now,
		createdAt:     now(),
		phase:         PhaseWaiting,
		roundDuration: duration,
		votes:         make(map[string]string),
	}
}

func (r *Room) Code() string { return r.code }
func (r *Room) Phase() Phase { return r.phase }
func (r *Room) Round() int { return r.round }
func (r *Room) CreatedAt() time.Time { return r.createdAt }
func (r *Room) RoundDuration() time.Duration { return r.roundDuration }
func (r *Room) ScenarioName() string { return r.scenarioName }
func (r *Room) OutsiderID() string { return r.outsiderID }
func (r *Room) PlayerCount() int { return len(r.players) }
func (r *Room) MinPlayers() int { return r.minPlayers }
func (r *Room) MaxPlayers() int { return r.maxPlayers }
func (r *Room) Outcome() Outcome { return r.outcome }

// Host is the earliest player still in the room.
func (r *Room) Host() (Player, bool) {
	if len(r.players) == 0 {
		return Player{}, false
	}
	return *r.players[0], true
}

func (r *Room) IsHost(playerID string) bool {
	return len(r.players) > 0 && r.players[0].ID == playerID
}

// Players returns copies in join order.
func (r *Room) Players() []Player {
	list := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		list = append(list, *p)
	}
	return list
}

func (r *Room) Player(id string) (Player, bool) {
	if p := r.find(id); p != nil {
		return *p, true
	}
	return Player{}, false
}

func (r *Room) find(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) AddPlayer(id, name string) (Player, error) {
	if r.phase != PhaseWaiting {
		return Player{}, fmt.Errorf("%w: game already in progress", ErrInvalidPhase)
	}
	for _, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			return Player{}, ErrDuplicateName
		}
		if p.ID == id {
			return Player{}, fmt.Errorf("%w: player id %s", ErrDuplicateName, id)
		}
	}
	if len(r.players) >= r.maxPlayers {
		return Player{}, fmt.Errorf("%w: at most %d players", ErrRoomFull, r.maxPlayers)
	}
	player := &Player{
		ID:       id,
		Name:     name,
		JoinedAt: r.now(),
	}
	r.players = append(r.players, player)
	return *player, nil
}

// RemovePlayer drops the player together with any vote cast by or for them.
// It never changes the phase.
func (r *Room) RemovePlayer(id string) {
	idx := -1
	for i, p := range r.players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	r.players = append(r.players[:idx], r.players[idx+1:]...)

	delete(r.votes, id)
	for voter, target := range r.votes {
		if target == id {
			delete(r.votes, voter)
		}
	}
	order := r.voteOrder[:0]
	for _, voter := range r.voteOrder {
		if _, ok := r.votes[voter]; ok {
			order = append(order, voter)
		}
	}
	r.voteOrder = order
}

func (r *Room) CanStart() bool {
	return r.phase == PhaseWaiting && len(r.players) >= r.minPlayers
}

func (r *Room) Start() error {
	if !r.CanStart() {
		if r.phase != PhaseWaiting {
			return fmt.Errorf("%w: game already in progress", ErrCannotStart)
		}
		return fmt.Errorf("%w: need at least %d players", ErrCannotStart, r.minPlayers)
	}

	outsiderIdx := r.rng.IntN(len(r.players))
	picked := r.catalog.At(r.rng.IntN(r.catalog.Len()))
	if len(r.players)-1 > len(picked.Roles) {
		return fmt.Errorf("%w: %s has %d roles for %d players", ErrInsufficientRoles, picked.Name, len(picked.Roles), len(r.players)-1)
	}

	roles := picked.Roles
	for i, p := range r.players {
		if i == outsiderIdx {
			p.IsOutsider = true
			p.Role = OutsiderRole
			p.ScenarioName = ""
			continue
		}
		k := r.rng.IntN(len(roles))
		p.IsOutsider = false
		p.Role = roles[k]
		p.ScenarioName = picked.Name
		roles = append(roles[:k], roles[k+1:]...)
	}

	outsider := r.players[outsiderIdx]
	r.phase = PhasePlaying
	r.round++
	r.roundStartedAt = r.now()
	r.scenarioName = picked.Name
	r.outsiderID = outsider.ID
	r.outsiderName = outsider.Name
	r.clearVotes()
	r.guess = ""
	r.hasGuess = false
	r.outcome = Outcome{}
	return nil
}

func (r *Room) RoleFor(playerID string) (RoleAssignment, error) {
	p := r.find(playerID)
	if p == nil {
		return RoleAssignment{}, ErrUnknownPlayer
	}
	if r.phase == PhaseWaiting {
		return RoleAssignment{}, fmt.Errorf("%w: round not started", ErrInvalidPhase)
	}
	assignment := RoleAssignment{IsOutsider: p.IsOutsider, Role: p.Role}
	if !p.IsOutsider {
		name := p.ScenarioName
		assignment.ScenarioName = &name
	}
	return assignment, nil
}

func (r *Room) SubmitVote(voterID, targetID string) error {
	if r.phase != PhaseVoting {
		return fmt.Errorf("%w: voting is not active", ErrInvalidPhase)
	}
	if r.find(voterID) == nil || r.find(targetID) == nil {
		return ErrUnknownPlayer
	}
	if voterID == targetID {
		return ErrSelfVote
	}
	if _, voted := r.votes[voterID]; !voted {
		r.voteOrder = append(r.voteOrder, voterID)
	}
	r.votes[voterID] = targetID
	return nil
}

// AllVoted reports whether every current player has a vote recorded.
func (r *Room) AllVoted() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if _, ok := r.votes[p.ID]; !ok {
			return false
		}
	}
	return true
}

func (r *Room) SubmitOutsiderGuess(playerID, scenarioName string) error {
	if r.outsiderID == "" || playerID != r.outsiderID {
		return ErrNotOutsider
	}
	if r.phase != PhasePlaying && r.phase != PhaseVoting {
		return fmt.Errorf("%w: game is not in progress", ErrInvalidPhase)
	}
	r.guess = scenarioName
	r.hasGuess = true
	return r.EndRound()
}

func (r *Room) StartVoting() error {
	if r.phase != PhasePlaying {
		return fmt.Errorf("%w: cannot start voting", ErrInvalidPhase)
	}
	r.phase = PhaseVoting
	r.clearVotes()
	return nil
}

// EndRound moves the room to ended and decides the winner. Calling it again
// on an ended room recomputes the same outcome.
func (r *Room) EndRound() error {
	if r.phase == PhaseWaiting {
		return fmt.Errorf("%w: round not started", ErrInvalidPhase)
	}
	if r.phase == PhaseEnded && r.outcome.Reason == ReasonOutsiderLeft {
		return nil
	}
	r.phase = PhaseEnded
	r.outcome = DecideOutcome(r.outcomeInputs())
	return nil
}

// ForfeitOutsider ends a running round in the group's favour because the
// outsider left the room.
func (r *Room) ForfeitOutsider() error {
	if r.phase != PhasePlaying && r.phase != PhaseVoting {
		return fmt.Errorf("%w: game is not in progress", ErrInvalidPhase)
	}
	r.phase = PhaseEnded
	r.outcome = Outcome{Winner: SideGroup, Reason: ReasonOutsiderLeft}
	return nil
}

func (r *Room) outcomeInputs() OutcomeInputs {
	ballots := make([]Ballot, 0, len(r.voteOrder))
	for _, voter := range r.voteOrder {
		ballots = append(ballots, Ballot{VoterID: voter, TargetID: r.votes[voter]})
	}
	return OutcomeInputs{
		Guess:        r.guess,
		HasGuess:     r.hasGuess,
		ScenarioName: r.scenarioName,
		OutsiderID:   r.outsiderID,
		Ballots:      ballots,
	}
}

// ResetRound returns the room to waiting from any phase, keeping the roster
// and the configured duration.
func (r *Room) ResetRound() {
	r.phase = PhaseWaiting
	r.scenarioName = ""
	r.outsiderID = ""
	r.outsiderName = ""
	r.roundStartedAt = time.Time{}
	r.clearVotes()
	r.guess = ""
	r.hasGuess = false
	r.outcome = Outcome{}
	for _, p := range r.players {
		p.Role = ""
		p.ScenarioName = ""
		p.IsOutsider = false
	}
}

// RemainingTime is false when the round length is unlimited or no round has
// started.
func (r *Room) RemainingTime() (time.Duration, bool) {
	if r.roundDuration <= 0 || r.roundStartedAt.IsZero() {
		return 0, false
	}
	remaining := r.roundDuration - r.now().Sub(r.roundStartedAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

func (r *Room) Votes() map[string]string {
	votes := make(map[string]string, len(r.votes))
	for voter, target := range r.votes {
		votes[voter] = target
	}
	return votes
}

func (r *Room) clearVotes() {
	clear(r.votes)
	r.voteOrder = r.voteOrder[:0]
}
