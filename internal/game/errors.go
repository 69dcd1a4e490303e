package game

import "errors"

var (
	ErrInvalidPhase      = errors.New("action not allowed in current phase")
	ErrDuplicateName     = errors.New("player name already taken")
	ErrUnknownPlayer     = errors.New("player not found")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFull          = errors.New("room full")
	ErrCannotStart       = errors.New("cannot start game")
	ErrNotHost           = errors.New("only the host can start the game")
	ErrNotOutsider       = errors.New("only the outsider can guess the scenario")
	ErrSelfVote          = errors.New("players cannot vote for themselves")
	ErrInsufficientRoles = errors.New("scenario has fewer roles than players")
	ErrAlreadyJoined     = errors.New("connection already joined a room")
)
