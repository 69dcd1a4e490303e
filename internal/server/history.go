package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"outsider/internal/db"
	"outsider/internal/game"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	historyRoomCreated  = "room_created"
	historyRoundStarted = "round_started"
	historyRoundEnded   = "round_ended"
	historyRoomDeleted  = "room_deleted"
)

type historyPayload struct {
	PlayerID     string            `json:"player_id,omitempty"`
	PlayerName   string            `json:"player,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Minutes      *game.Minutes     `json:"round_minutes,omitempty"`
	ScenarioName string            `json:"scenario,omitempty"`
	OutsiderID   string            `json:"outsider_id,omitempty"`
	OutsiderName string            `json:"outsider,omitempty"`
	PlayerCount  int               `json:"player_count,omitempty"`
	Winner       string            `json:"winner,omitempty"`
	Guess        string            `json:"guess,omitempty"`
	AccusedID    string            `json:"accused_id,omitempty"`
	Votes        map[string]string `json:"votes,omitempty"`
}

type historyRecord struct {
	Type    string
	Room    string
	Round   int
	At      time.Time
	Payload historyPayload
}

// Recorder writes an audit trail of rooms and rounds in the background. A nil
// Recorder, or one without a database, drops everything.
type Recorder struct {
	write  func(historyRecord) error
	queue  chan historyRecord
	done   chan struct{}
	mu     sync.RWMutex
	closed bool

	conn    *gorm.DB
	roomIDs map[string]uint
}

func NewRecorder(conn *gorm.DB, buffer int) *Recorder {
	if conn == nil {
		return nil
	}
	r := &Recorder{conn: conn, roomIDs: make(map[string]uint)}
	r.write = r.persist
	r.start(buffer)
	return r
}

func newRecorderFunc(write func(historyRecord) error, buffer int) *Recorder {
	r := &Recorder{write: write}
	r.start(buffer)
	return r
}

func (r *Recorder) start(buffer int) {
	if buffer <= 0 {
		buffer = 256
	}
	r.queue = make(chan historyRecord, buffer)
	r.done = make(chan struct{})
	go r.run()
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		if err := r.write(rec); err != nil {
			log.Warn().Err(err).Str("room", rec.Room).Str("type", rec.Type).Msg("history write failed")
		}
	}
}

// Close stops accepting records and waits for the queue to drain.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue never blocks a room; a full queue drops the record.
func (r *Recorder) enqueue(rec historyRecord) {
	if r == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- rec:
	default:
		log.Warn().Str("room", rec.Room).Str("type", rec.Type).Msg("history queue full, dropping record")
	}
}

func (r *Recorder) RoomCreated(code string, minutes game.Minutes, at time.Time) {
	r.enqueue(historyRecord{Type: historyRoomCreated, Room: code, At: at, Payload: historyPayload{Minutes: &minutes}})
}

func (r *Recorder) RoomDeleted(code string) {
	r.enqueue(historyRecord{Type: historyRoomDeleted, Room: code, At: time.Now().UTC()})
}

// RoundStarted must be called inside the room's critical section.
func (r *Recorder) RoundStarted(room *game.Room) {
	if r == nil {
		return
	}
	payload := historyPayload{
		ScenarioName: room.ScenarioName(),
		OutsiderID:   room.OutsiderID(),
		PlayerCount:  room.PlayerCount(),
	}
	if outsider, ok := room.Player(room.OutsiderID()); ok {
		payload.OutsiderName = outsider.Name
	}
	r.enqueue(historyRecord{Type: historyRoundStarted, Room: room.Code(), Round: room.Round(), At: time.Now().UTC(), Payload: payload})
}

// RoundEnded must be called inside the room's critical section.
func (r *Recorder) RoundEnded(room *game.Room) {
	if r == nil {
		return
	}
	snap := room.Snapshot()
	outcome := room.Outcome()
	payload := historyPayload{
		Reason:       string(outcome.Reason),
		Winner:       string(outcome.Winner),
		AccusedID:    outcome.AccusedID,
		ScenarioName: room.ScenarioName(),
		OutsiderID:   room.OutsiderID(),
		PlayerCount:  room.PlayerCount(),
		Votes:        snap.Votes,
	}
	if snap.OutsiderName != nil {
		payload.OutsiderName = *snap.OutsiderName
	}
	if snap.OutsiderGuess != nil {
		payload.Guess = *snap.OutsiderGuess
	}
	r.enqueue(historyRecord{Type: historyRoundEnded, Room: room.Code(), Round: room.Round(), At: time.Now().UTC(), Payload: payload})
}

// Event records a plain audit event.
func (r *Recorder) Event(code string, round int, eventType string, payload historyPayload) {
	r.enqueue(historyRecord{Type: eventType, Room: code, Round: round, At: time.Now().UTC(), Payload: payload})
}

func (r *Recorder) persist(rec historyRecord) error {
	roomID, err := r.roomID(rec)
	if err != nil {
		return err
	}
	switch rec.Type {
	case historyRoundStarted:
		if err := r.persistRoundStart(roomID, rec); err != nil {
			return err
		}
	case historyRoundEnded:
		if err := r.persistRoundEnd(roomID, rec); err != nil {
			return err
		}
	case historyRoomDeleted:
		delete(r.roomIDs, rec.Room)
		if err := r.conn.Model(&db.Room{}).Where("id = ?", roomID).Update("closed_at", rec.At).Error; err != nil {
			return err
		}
	}
	data, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	return r.conn.Create(&db.Event{
		RoomID:      roomID,
		RoundNumber: rec.Round,
		Type:        rec.Type,
		Payload:     datatypes.JSON(data),
		CreatedAt:   rec.At,
	}).Error
}

// roomID resolves the live row for a room code, creating it on
// room_created or when the row is missing.
func (r *Recorder) roomID(rec historyRecord) (uint, error) {
	if rec.Type != historyRoomCreated {
		if id, ok := r.roomIDs[rec.Room]; ok {
			return id, nil
		}
		var existing db.Room
		err := r.conn.Where("code = ? AND closed_at IS NULL", rec.Room).Order("id desc").First(&existing).Error
		if err == nil {
			r.roomIDs[rec.Room] = existing.ID
			return existing.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}
	row := db.Room{Code: rec.Room, CreatedAt: rec.At}
	if rec.Payload.Minutes != nil {
		row.RoundMinutes = int(*rec.Payload.Minutes)
	}
	if err := r.conn.Create(&row).Error; err != nil {
		return 0, err
	}
	r.roomIDs[rec.Room] = row.ID
	return row.ID, nil
}

func (r *Recorder) persistRoundStart(roomID uint, rec historyRecord) error {
	row := db.Round{
		RoomID:       roomID,
		Number:       rec.Round,
		ScenarioName: rec.Payload.ScenarioName,
		OutsiderID:   rec.Payload.OutsiderID,
		OutsiderName: rec.Payload.OutsiderName,
		PlayerCount:  rec.Payload.PlayerCount,
		StartedAt:    rec.At,
	}
	err := r.conn.Create(&row).Error
	if err == nil || !isUniqueViolation(err) {
		return err
	}
	return r.conn.Model(&db.Round{}).
		Where("room_id = ? AND number = ?", roomID, rec.Round).
		Updates(map[string]any{
			"scenario_name": row.ScenarioName,
			"outsider_id":   row.OutsiderID,
			"outsider_name": row.OutsiderName,
			"player_count":  row.PlayerCount,
			"started_at":    row.StartedAt,
		}).Error
}

func (r *Recorder) persistRoundEnd(roomID uint, rec historyRecord) error {
	votes, err := json.Marshal(rec.Payload.Votes)
	if err != nil {
		return err
	}
	return r.conn.Model(&db.Round{}).
		Where("room_id = ? AND number = ?", roomID, rec.Round).
		Updates(map[string]any{
			"winner":     rec.Payload.Winner,
			"end_reason": rec.Payload.Reason,
			"guess":      rec.Payload.Guess,
			"accused_id": rec.Payload.AccusedID,
			"votes":      datatypes.JSON(votes),
			"ended_at":   rec.At,
		}).Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
