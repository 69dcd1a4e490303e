package server

import (
	"encoding/json"
	"errors"
	"strings"

	"outsider/internal/game"

	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"
)

const (
	intentJoinRoom      = "join-room"
	intentStartGame     = "start-game"
	intentSubmitVote    = "submit-vote"
	intentOutsiderGuess = "spy-guess"
	intentForceVoting   = "force-voting"
	intentResetGame     = "reset-game"

	eventJoinedRoom    = "joined-room"
	eventPlayerJoined  = "player-joined"
	eventRoleAssigned  = "role-assigned"
	eventGameStarted   = "game-started"
	eventTimerUpdate   = "timer-update"
	eventVoteSubmitted = "vote-submitted"
	eventVotingStarted = "voting-started"
	eventGameEnded     = "game-ended"
	eventGameReset     = "game-reset"
	eventPlayerLeft    = "player-left"
	eventError         = "error"
)

type joinRoomRequest struct {
	RoomCode   string `json:"roomCode" binding:"required,roomcode"`
	PlayerName string `json:"playerName" binding:"required,playername"`
}

type submitVoteRequest struct {
	TargetPlayerID string `json:"targetPlayerId" binding:"required,max=64"`
}

type outsiderGuessRequest struct {
	GuessedScenarioName string `json:"guessedScenarioName" binding:"required"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinedRoomPayload struct {
	Success  bool            `json:"success"`
	PlayerID string          `json:"playerId"`
	Player   game.PlayerView `json:"player"`
	RoomCode string          `json:"roomCode"`
	Snapshot game.Snapshot   `json:"snapshot"`
}

type playerJoinedPayload struct {
	Player   game.PlayerView `json:"player"`
	Snapshot game.Snapshot   `json:"snapshot"`
}

type snapshotPayload struct {
	Snapshot game.Snapshot `json:"snapshot"`
}

type gameEndedPayload struct {
	Snapshot game.Snapshot `json:"snapshot"`
	Guess    *string       `json:"guess,omitempty"`
}

type playerLeftPayload struct {
	PlayerID   string        `json:"playerId"`
	PlayerName string        `json:"playerName"`
	Snapshot   game.Snapshot `json:"snapshot"`
}

type timerPayload struct {
	TimeRemaining int64 `json:"timeRemaining"`
}

var joinRoomMessages = bindMessages{
	"RoomCode": {
		"required": "Room code is required",
		"roomcode": "Room code must be 6 letters or digits",
	},
	"PlayerName": {
		"required":   "Player name is required",
		"playername": "Player name must be 1-20 plain characters",
	},
}

var submitVoteMessages = bindMessages{
	"TargetPlayerID": {"required": "Vote target is required"},
}

var outsiderGuessMessages = bindMessages{
	"GuessedScenarioName": {
		"required": "Guess is required",
		"guess":    "Guess must be a scenario name",
	},
}

// decodeIntent unmarshals and validates an intent payload, reporting any
// problem to the client.
func (s *Server) decodeIntent(cl *client, data json.RawMessage, req any, messages bindMessages, normalize func()) bool {
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, req); err != nil {
		s.hub.send(cl, eventError, errorPayload{Message: "invalid payload"})
		return false
	}
	if normalize != nil {
		normalize()
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		s.hub.send(cl, eventError, errorPayload{Message: bindErrorMessage(err, messages, "invalid payload")})
		return false
	}
	return true
}

func (s *Server) dispatch(cl *client, in inbound) {
	switch in.Type {
	case intentJoinRoom:
		var req joinRoomRequest
		if !s.decodeIntent(cl, in.Data, &req, joinRoomMessages, func() {
			req.RoomCode = strings.ToUpper(strings.TrimSpace(req.RoomCode))
		}) {
			return
		}
		s.joinRoom(cl, req)
	case intentStartGame:
		s.startGame(cl)
	case intentSubmitVote:
		var req submitVoteRequest
		if !s.decodeIntent(cl, in.Data, &req, submitVoteMessages, nil) {
			return
		}
		s.submitVote(cl, req)
	case intentOutsiderGuess:
		var req outsiderGuessRequest
		if !s.decodeIntent(cl, in.Data, &req, outsiderGuessMessages, nil) {
			return
		}
		s.outsiderGuess(cl, req)
	case intentForceVoting:
		s.forceVoting(cl)
	case intentResetGame:
		s.resetGame(cl)
	default:
		s.hub.send(cl, eventError, errorPayload{Message: "unknown event " + in.Type})
	}
}

func (s *Server) joinRoom(cl *client, req joinRoomRequest) {
	name, _ := validateName(req.PlayerName)
	code := req.RoomCode
	player, err := s.dir.JoinWith(code, s.newID(), name, cl.id, func(room *game.Room, player game.Player) {
		cl.playerID = player.ID
		s.hub.subscribe(code, cl)
		snap := room.Snapshot()
		s.hub.send(cl, eventJoinedRoom, joinedRoomPayload{
			Success:  true,
			PlayerID: player.ID,
			Player:   player.View(),
			RoomCode: code,
			Snapshot: snap,
		})
		s.hub.broadcast(code, eventPlayerJoined, playerJoinedPayload{Player: player.View(), Snapshot: snap})
		s.history.Event(code, room.Round(), "player_joined", historyPayload{PlayerID: player.ID, PlayerName: player.Name})
	})
	if err != nil {
		s.reject(cl, intentJoinRoom, err)
		return
	}
	log.Info().Str("room", code).Str("player", player.ID).Str("conn", cl.id).Msg("player joined")
}

func (s *Server) startGame(cl *client) {
	m, ok := s.membership(cl)
	if !ok {
		return
	}
	err := s.dir.UpdateRoom(m.RoomCode, func(room *game.Room) error {
		if !room.IsHost(m.PlayerID) {
			return game.ErrNotHost
		}
		if err := room.Start(); err != nil {
			return err
		}
		s.roundStarted(room)
		return nil
	})
	if err != nil {
		s.reject(cl, intentStartGame, err)
		return
	}
	log.Info().Str("room", m.RoomCode).Str("player", m.PlayerID).Msg("round started")
}

func (s *Server) submitVote(cl *client, req submitVoteRequest) {
	m, ok := s.membership(cl)
	if !ok {
		return
	}
	err := s.dir.UpdateRoom(m.RoomCode, func(room *game.Room) error {
		if err := room.SubmitVote(m.PlayerID, req.TargetPlayerID); err != nil {
			return err
		}
		if !room.AllVoted() {
			s.hub.broadcast(room.Code(), eventVoteSubmitted, snapshotPayload{Snapshot: room.Snapshot()})
			return nil
		}
		if err := room.EndRound(); err != nil {
			return err
		}
		s.roundEnded(room, nil)
		return nil
	})
	if err != nil {
		s.reject(cl, intentSubmitVote, err)
	}
}

func (s *Server) outsiderGuess(cl *client, req outsiderGuessRequest) {
	m, ok := s.membership(cl)
	if !ok {
		return
	}
	guess, ok := s.guessName(req.GuessedScenarioName)
	if !ok {
		s.hub.send(cl, eventError, errorPayload{Message: outsiderGuessMessages["GuessedScenarioName"]["guess"]})
		return
	}
	err := s.dir.UpdateRoom(m.RoomCode, func(room *game.Room) error {
		if err := room.SubmitOutsiderGuess(m.PlayerID, guess); err != nil {
			return err
		}
		s.roundEnded(room, &guess)
		return nil
	})
	if err != nil {
		s.reject(cl, intentOutsiderGuess, err)
	}
}

func (s *Server) forceVoting(cl *client) {
	m, ok := s.membership(cl)
	if !ok {
		return
	}
	err := s.dir.UpdateRoom(m.RoomCode, func(room *game.Room) error {
		if err := room.StartVoting(); err != nil {
			return err
		}
		s.votingStarted(room, "forced")
		return nil
	})
	if err != nil {
		s.reject(cl, intentForceVoting, err)
	}
}

func (s *Server) resetGame(cl *client) {
	m, ok := s.membership(cl)
	if !ok {
		return
	}
	err := s.dir.UpdateRoom(m.RoomCode, func(room *game.Room) error {
		s.cancelRoundTimer(room.Code())
		room.ResetRound()
		s.hub.broadcast(room.Code(), eventGameReset, snapshotPayload{Snapshot: room.Snapshot()})
		s.history.Event(room.Code(), room.Round(), "round_reset", historyPayload{PlayerID: m.PlayerID})
		return nil
	})
	if err != nil {
		s.reject(cl, intentResetGame, err)
	}
}

// disconnect is idempotent; unknown connections are ignored.
func (s *Server) disconnect(cl *client) {
	m, ok := s.dir.LeaveWith(cl.id, func(room *game.Room, m game.Membership) {
		s.hub.unsubscribe(m.RoomCode, cl)
		running := room.Phase() == game.PhasePlaying || room.Phase() == game.PhaseVoting
		switch {
		case running && m.PlayerID == room.OutsiderID():
			if err := room.ForfeitOutsider(); err == nil {
				s.roundEnded(room, nil)
			}
		case room.Phase() == game.PhaseVoting && room.AllVoted():
			if err := room.EndRound(); err == nil {
				s.roundEnded(room, nil)
			}
		}
		s.hub.broadcast(m.RoomCode, eventPlayerLeft, playerLeftPayload{
			PlayerID:   m.PlayerID,
			PlayerName: m.PlayerName,
			Snapshot:   room.Snapshot(),
		})
		s.history.Event(m.RoomCode, room.Round(), "player_left", historyPayload{PlayerID: m.PlayerID, PlayerName: m.PlayerName})
	})
	if ok {
		log.Info().Str("room", m.RoomCode).Str("player", m.PlayerID).Str("conn", cl.id).Msg("player left")
	} else {
		log.Debug().Str("conn", cl.id).Msg("ws closed without room")
	}
}

// roundStarted deals private roles and announces the round. Runs inside the
// room's critical section.
func (s *Server) roundStarted(room *game.Room) {
	code := room.Code()
	if d := room.RoundDuration(); d > 0 {
		s.startRoundTimer(code, room.Round(), d)
	}
	for _, p := range room.Players() {
		assignment, err := room.RoleFor(p.ID)
		if err != nil {
			continue
		}
		s.hub.sendToPlayer(code, p.ID, eventRoleAssigned, assignment)
	}
	s.hub.broadcast(code, eventGameStarted, snapshotPayload{Snapshot: room.Snapshot()})
	s.history.RoundStarted(room)
}

func (s *Server) votingStarted(room *game.Room, reason string) {
	s.cancelRoundTimer(room.Code())
	s.hub.broadcast(room.Code(), eventVotingStarted, snapshotPayload{Snapshot: room.Snapshot()})
	s.history.Event(room.Code(), room.Round(), "voting_started", historyPayload{Reason: reason})
	log.Info().Str("room", room.Code()).Str("reason", reason).Msg("voting started")
}

func (s *Server) roundEnded(room *game.Room, guess *string) {
	s.cancelRoundTimer(room.Code())
	s.hub.broadcast(room.Code(), eventGameEnded, gameEndedPayload{Snapshot: room.Snapshot(), Guess: guess})
	s.history.RoundEnded(room)
	outcome := room.Outcome()
	log.Info().
		Str("room", room.Code()).
		Int("round", room.Round()).
		Str("winner", string(outcome.Winner)).
		Str("reason", string(outcome.Reason)).
		Msg("round ended")
}

func (s *Server) membership(cl *client) (game.Membership, bool) {
	m, ok := s.dir.Membership(cl.id)
	if !ok {
		s.hub.send(cl, eventError, errorPayload{Message: "Not in a room"})
	}
	return m, ok
}

var publicErrors = []error{
	game.ErrRoomNotFound,
	game.ErrRoomFull,
	game.ErrDuplicateName,
	game.ErrAlreadyJoined,
	game.ErrNotHost,
	game.ErrCannotStart,
	game.ErrInsufficientRoles,
	game.ErrNotOutsider,
	game.ErrSelfVote,
	game.ErrUnknownPlayer,
	game.ErrInvalidPhase,
}

// errorMessage maps a domain error to the text sent to the client.
func errorMessage(err error) string {
	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return "internal error"
}

func (s *Server) reject(cl *client, intent string, err error) {
	msg := errorMessage(err)
	if msg == "internal error" {
		log.Error().Err(err).Str("conn", cl.id).Str("intent", intent).Msg("intent failed")
	} else {
		log.Debug().Err(err).Str("conn", cl.id).Str("intent", intent).Msg("intent rejected")
	}
	s.hub.send(cl, eventError, errorPayload{Message: msg})
}
