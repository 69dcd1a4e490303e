package server

import (
	"errors"
	"time"

	"outsider/internal/game"

	"github.com/rs/zerolog/log"
)

var errStaleTimer = errors.New("round changed")

// roundTimer drives one finite round: a ticker broadcasting the remaining
// time and a deadline that opens voting.
type roundTimer struct {
	round    int
	ticker   *time.Ticker
	deadline *time.Timer
	stop     chan struct{}
}

func (t *roundTimer) cancel() {
	t.ticker.Stop()
	t.deadline.Stop()
	close(t.stop)
}

func (s *Server) tickInterval() time.Duration {
	if tick := s.cfg.TimerTick(); tick > 0 {
		return tick
	}
	return time.Second
}

func (s *Server) startRoundTimer(code string, round int, duration time.Duration) {
	timer := &roundTimer{
		round:  round,
		ticker: time.NewTicker(s.tickInterval()),
		stop:   make(chan struct{}),
	}
	timer.deadline = time.AfterFunc(duration, func() {
		s.expireRound(code, round)
	})

	s.timersMu.Lock()
	if existing, ok := s.timers[code]; ok {
		existing.cancel()
	}
	s.timers[code] = timer
	s.timersMu.Unlock()

	go func() {
		for {
			select {
			case <-timer.stop:
				return
			case <-timer.ticker.C:
				s.tickRound(code, round)
			}
		}
	}()
}

func (s *Server) cancelRoundTimer(code string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if timer, ok := s.timers[code]; ok {
		timer.cancel()
		delete(s.timers, code)
	}
}

func (s *Server) activeTimers() int {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	return len(s.timers)
}

func (s *Server) tickRound(code string, round int) {
	_ = s.dir.UpdateRoom(code, func(room *game.Room) error {
		if room.Round() != round || room.Phase() != game.PhasePlaying {
			return errStaleTimer
		}
		remaining, ok := room.RemainingTime()
		if !ok {
			return errStaleTimer
		}
		s.hub.broadcast(code, eventTimerUpdate, timerPayload{TimeRemaining: remaining.Milliseconds()})
		return nil
	})
}

// expireRound opens voting when the round it was scheduled for is still
// being played. Anything else means the timer is stale.
func (s *Server) expireRound(code string, round int) {
	err := s.dir.UpdateRoom(code, func(room *game.Room) error {
		if room.Round() != round || room.Phase() != game.PhasePlaying {
			return errStaleTimer
		}
		if err := room.StartVoting(); err != nil {
			return err
		}
		s.hub.broadcast(code, eventTimerUpdate, timerPayload{TimeRemaining: 0})
		s.votingStarted(room, "timeout")
		return nil
	})
	if err != nil && !errors.Is(err, errStaleTimer) && !errors.Is(err, game.ErrRoomNotFound) {
		log.Warn().Err(err).Str("room", code).Int("round", round).Msg("round expiry failed")
	}
}
