package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"outsider/internal/scenario"

	"github.com/rs/zerolog/log"
)

// DefaultStaleAfter is how long an empty room may linger before Sweep removes it.
const DefaultStaleAfter = 2 * time.Hour

// Membership ties a transport connection to a player in a room.
type Membership struct {
	PlayerID   string
	RoomCode   string
	PlayerName string
}

type DirectoryConfig struct {
	Catalog    *scenario.Catalog
	MinPlayers int
	MaxPlayers int
	StaleAfter time.Duration
	Rand       *rand.Rand
	Now        func() time.Time
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

type roomEntry struct {
	mu     sync.Mutex
	room   *Room
	closed bool
}

// Directory owns every active room and the connection index. Lock order is
// always the directory mutex before a room entry's mutex.
type Directory struct {
	mu        sync.Mutex
	rooms     map[string]*roomEntry
	conns     map[string]Membership
	cfg       DirectoryConfig
	rng       *rand.Rand
	now       func() time.Time
	onDeleted func(code string)
}

func NewDirectory(cfg DirectoryConfig) *Directory {
	if cfg.Catalog == nil {
		cfg.Catalog = scenario.Default()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Directory{
		rooms: make(map[string]*roomEntry),
		conns: make(map[string]Membership),
		cfg:   cfg,
		rng:   rng,
		now:   now,
	}
}

// OnRoomDeleted registers a callback run after a room leaves the directory,
// outside of any directory lock.
func (d *Directory) OnRoomDeleted(fn func(code string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDeleted = fn
}

func (d *Directory) CreateRoom(roundDuration time.Duration) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	code := newRoomCode(d.rng)
	for {
		if _, taken := d.rooms[code]; !taken {
			break
		}
		code = newRoomCode(d.rng)
	}
	room := NewRoom(code, RoomOptions{
		Catalog:       d.cfg.Catalog,
		MinPlayers:    d.cfg.MinPlayers,
		MaxPlayers:    d.cfg.MaxPlayers,
		RoundDuration: roundDuration,
		Rand:          rand.New(rand.NewPCG(d.rng.Uint64(), d.rng.Uint64())),
		Now:           d.now,
	})
	d.rooms[code] = &roomEntry{room: room}
	return code
}

func (d *Directory) entry(code string) *roomEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rooms[code]
}

// UpdateRoom runs fn with exclusive access to the room.
func (d *Directory) UpdateRoom(code string, fn func(room *Room) error) error {
	e := d.entry(code)
	if e == nil {
		return ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrRoomNotFound
	}
	return fn(e.room)
}

func (d *Directory) Exists(code string) bool {
	return d.entry(code) != nil
}

func (d *Directory) Join(code, playerID, name, connID string) (Player, error) {
	return d.JoinWith(code, playerID, name, connID, nil)
}

// JoinWith is Join with a callback run inside the room's critical section
// right after the player was added.
func (d *Directory) JoinWith(code, playerID, name, connID string, onJoin func(room *Room, player Player)) (Player, error) {
	d.mu.Lock()
	if _, joined := d.conns[connID]; joined {
		d.mu.Unlock()
		return Player{}, ErrAlreadyJoined
	}
	e := d.rooms[code]
	d.mu.Unlock()
	if e == nil {
		return Player{}, ErrRoomNotFound
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Player{}, ErrRoomNotFound
	}
	player, err := e.room.AddPlayer(playerID, name)
	if err == nil && onJoin != nil {
		onJoin(e.room, player)
	}
	e.mu.Unlock()
	if err != nil {
		return Player{}, err
	}

	d.mu.Lock()
	d.conns[connID] = Membership{PlayerID: player.ID, RoomCode: code, PlayerName: player.Name}
	d.mu.Unlock()
	return player, nil
}

func (d *Directory) Membership(connID string) (Membership, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.conns[connID]
	return m, ok
}

// Leave forgets the connection and removes its player, deleting the room once
// it is empty. Unknown connections return false and change nothing.
func (d *Directory) Leave(connID string) (Membership, bool) {
	return d.LeaveWith(connID, nil)
}

// LeaveWith is Leave with a callback run inside the room's critical section
// right after the player was removed, before an empty room is deleted.
func (d *Directory) LeaveWith(connID string, onLeave func(room *Room, m Membership)) (Membership, bool) {
	d.mu.Lock()
	m, ok := d.conns[connID]
	if !ok {
		d.mu.Unlock()
		return Membership{}, false
	}
	delete(d.conns, connID)
	e := d.rooms[m.RoomCode]
	d.mu.Unlock()
	if e == nil {
		return m, true
	}

	e.mu.Lock()
	e.room.RemovePlayer(m.PlayerID)
	if onLeave != nil && !e.closed {
		onLeave(e.room, m)
	}
	empty := e.room.PlayerCount() == 0
	e.mu.Unlock()

	if empty {
		d.deleteIfEmpty(m.RoomCode, e)
	}
	return m, true
}

func (d *Directory) deleteIfEmpty(code string, e *roomEntry) {
	d.mu.Lock()
	deleted := false
	if d.rooms[code] == e {
		e.mu.Lock()
		if e.room.PlayerCount() == 0 {
			e.closed = true
			delete(d.rooms, code)
			deleted = true
		}
		e.mu.Unlock()
	}
	hook := d.onDeleted
	d.mu.Unlock()
	if deleted && hook != nil {
		hook(code)
	}
}

// Sweep deletes rooms that are empty and older than the staleness threshold.
func (d *Directory) Sweep(now time.Time) []string {
	d.mu.Lock()
	var removed []string
	for code, e := range d.rooms {
		e.mu.Lock()
		if e.room.PlayerCount() == 0 && now.Sub(e.room.CreatedAt()) > d.cfg.StaleAfter {
			e.closed = true
			delete(d.rooms, code)
			removed = append(removed, code)
		}
		e.mu.Unlock()
	}
	hook := d.onDeleted
	d.mu.Unlock()
	if hook != nil {
		for _, code := range removed {
			hook(code)
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (d *Directory) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := d.Sweep(d.now()); len(removed) > 0 {
				log.Info().Int("count", len(removed)).Strs("rooms", removed).Msg("swept stale rooms")
			}
		}
	}
}

func (d *Directory) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Rooms: len(d.rooms), Connections: len(d.conns)}
}
