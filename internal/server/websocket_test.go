package server

import (
	"math/rand/v2"
	"net/http"
	"strings"
	"testing"
	"time"

	"outsider/internal/game"
	"outsider/internal/scenario"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRoomBroadcastsRoster(t *testing.T) {
	srv, _ := newGateway(t, testConfig())
	ts := newTestServer(t, srv.Handler())
	code := createRoom(t, ts, nil)

	ada := joinRoom(t, ts, code, "Ada")

	bob := dialWS(t, ts)
	sendIntent(t, bob, intentJoinRoom, map[string]string{"roomCode": strings.ToLower(code), "playerName": "  Bob   Smith "})
	joined := readUntil(t, bob, eventJoinedRoom)
	assert.Equal(t, code, joined.Data["roomCode"])
	player := joined.Data["player"].(map[string]any)
	assert.Equal(t, map[string]any{"id": joined.Data["playerId"], "name": "Bob Smith"}, player)

	msg := readUntil(t, ada.conn, eventPlayerJoined)
	assert.Equal(t, map[string]any{"id": joined.Data["playerId"], "name": "Bob Smith"}, msg.Data["player"])
	snap := snapshotOf(t, msg)
	assert.Len(t, snap["players"], 2)
	assert.Equal(t, ada.id, snap["hostId"])
	assert.Equal(t, "waiting", snap["phase"])
	assert.Nil(t, snap["outsiderId"])
	assert.Nil(t, snap["votes"])
}

func TestJoinRoomErrors(t *testing.T) {
	srv, _ := newGateway(t, testConfig())
	ts := newTestServer(t, srv.Handler())
	code := createRoom(t, ts, nil)
	joinRoom(t, ts, code, "Ada")

	conn := dialWS(t, ts)
	cases := []struct {
		data any
		want string
	}{
		{map[string]string{"roomCode": "ZZZZZZ", "playerName": "Bob"}, game.ErrRoomNotFound.Error()},
		{map[string]string{"roomCode": code, "playerName": "ada"}, game.ErrDuplicateName.Error()},
		{map[string]string{"roomCode": "12", "playerName": "Bob"}, "Room code must be 6 letters or digits"},
		{map[string]string{"roomCode": code, "playerName": "<script>"}, "Player name must be 1-20 plain characters"},
		{map[string]string{"roomCode": code}, "Player name is required"},
	}
	for _, tc := range cases {
		sendIntent(t, conn, intentJoinRoom, tc.data)
		msg := readUntil(t, conn, eventError)
		assert.Equal(t, tc.want, msg.Data["message"])
	}

	sendIntent(t, conn, "dance", nil)
	msg := readUntil(t, conn, eventError)
	assert.Equal(t, "unknown event dance", msg.Data["message"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg = readUntil(t, conn, eventError)
	assert.Equal(t, "invalid message", msg.Data["message"])

	sendIntent(t, conn, intentStartGame, nil)
	msg = readUntil(t, conn, eventError)
	assert.Equal(t, "Not in a room", msg.Data["message"])
}

func startRound(t *testing.T, players []*testPlayer) (outsider *testPlayer, others []*testPlayer, scenarioName string) {
	t.Helper()
	sendIntent(t, players[0].conn, intentStartGame, nil)
	for _, p := range players {
		role := readUntil(t, p.conn, eventRoleAssigned)
		if role.Data["isOutsider"] == true {
			require.Nil(t, outsider, "two outsiders")
			outsider = p
			assert.Equal(t, game.OutsiderRole, role.Data["role"])
			assert.Nil(t, role.Data["scenarioName"])
		} else {
			others = append(others, p)
			name, _ := role.Data["scenarioName"].(string)
			require.NotEmpty(t, name)
			if scenarioName == "" {
				scenarioName = name
			}
			assert.Equal(t, scenarioName, name)
		}
		started := readUntil(t, p.conn, eventGameStarted)
		assert.Equal(t, "playing", snapshotOf(t, started)["phase"])
	}
	require.NotNil(t, outsider)
	return outsider, others, scenarioName
}

func setupRound(t *testing.T, minutes any) (*Server, []*testPlayer, *testPlayer, []*testPlayer, string) {
	t.Helper()
	srv, _ := newGateway(t, testConfig())
	ts := newTestServer(t, srv.Handler())
	code := createRoom(t, ts, map[string]any{"roundDurationMinutes": minutes})
	players := []*testPlayer{
		joinRoom(t, ts, code, "Ada"),
		joinRoom(t, ts, code, "Bob"),
		joinRoom(t, ts, code, "Cy"),
		joinRoom(t, ts, code, "Dee"),
	}
	outsider, others, scenarioName := startRound(t, players)
	return srv, players, outsider, others, scenarioName
}

func TestStartGameRequiresHost(t *testing.T) {
	srv, _ := newGateway(t, testConfig())
	ts := newTestServer(t, srv.Handler())
	code := createRoom(t, ts, nil)
	ada := joinRoom(t, ts, code, "Ada")
	bob := joinRoom(t, ts, code, "Bob")

	sendIntent(t, bob.conn, intentStartGame, nil)
	msg := readUntil(t, bob.conn, eventError)
	assert.Equal(t, game.ErrNotHost.Error(), msg.Data["message"])

	sendIntent(t, ada.conn, intentStartGame, nil)
	msg = readUntil(t, ada.conn, eventError)
	assert.Contains(t, msg.Data["message"], game.ErrCannotStart.Error())
}

func TestVotingResolvesWhenEveryoneVoted(t *testing.T) {
	srv, players, outsider, others, _ := setupRound(t, 6)

	sendIntent(t, players[1].conn, intentForceVoting, nil)
	for _, p := range players {
		msg := readUntil(t, p.conn, eventVotingStarted)
		assert.Equal(t, "voting", snapshotOf(t, msg)["phase"])
	}
	assert.Equal(t, 0, srv.activeTimers())

	sendIntent(t, players[0].conn, intentSubmitVote, map[string]string{"targetPlayerId": players[0].id})
	msg := readUntil(t, players[0].conn, eventError)
	assert.Equal(t, game.ErrSelfVote.Error(), msg.Data["message"])

	for _, p := range others {
		sendIntent(t, p.conn, intentSubmitVote, map[string]string{"targetPlayerId": outsider.id})
		readUntil(t, p.conn, eventVoteSubmitted)
	}
	sendIntent(t, outsider.conn, intentSubmitVote, map[string]string{"targetPlayerId": others[0].id})

	// The final vote ends the round without its own vote-submitted event.
	seen := typesUntil(t, outsider.conn, eventGameEnded)
	votes := 0
	for _, typ := range seen {
		if typ == eventVoteSubmitted {
			votes++
		}
	}
	assert.Equal(t, len(others), votes)
	expectNoMessage(t, outsider.conn, eventVoteSubmitted, 200*time.Millisecond)

	for _, p := range others {
		ended := readUntil(t, p.conn, eventGameEnded)
		snap := snapshotOf(t, ended)
		assert.Equal(t, "ended", snap["phase"])
		assert.Equal(t, "group", snap["winner"])
		assert.Equal(t, "vote", snap["endReason"])
		assert.Equal(t, outsider.id, snap["outsiderId"])
		assert.Equal(t, outsider.id, snap["accusedId"])
		assert.Len(t, snap["votes"], 4)
	}
}

func TestOutsiderGuess(t *testing.T) {
	_, players, outsider, others, scenarioName := setupRound(t, "unlimited")

	sendIntent(t, others[0].conn, intentOutsiderGuess, map[string]string{"guessedScenarioName": scenarioName})
	msg := readUntil(t, others[0].conn, eventError)
	assert.Equal(t, game.ErrNotOutsider.Error(), msg.Data["message"])

	sendIntent(t, outsider.conn, intentOutsiderGuess, map[string]string{"guessedScenarioName": scenarioName})
	for _, p := range players {
		ended := readUntil(t, p.conn, eventGameEnded)
		assert.Equal(t, scenarioName, ended.Data["guess"])
		snap := snapshotOf(t, ended)
		assert.Equal(t, "outsider", snap["winner"])
		assert.Equal(t, "guess_correct", snap["endReason"])
		assert.Equal(t, scenarioName, snap["scenarioName"])
		assert.Equal(t, scenarioName, snap["outsiderGuess"])
	}
}

func TestOutsiderGuessMatchesCatalogNameExactly(t *testing.T) {
	catalog, err := scenario.NewCatalog([]scenario.Scenario{
		{Name: "Base: Moon/2", Roles: []string{"Pilot", "Medic", "Cook", "Miner"}},
	})
	require.NoError(t, err)
	cfg := testConfig()
	dir := game.NewDirectory(game.DirectoryConfig{
		Catalog:    catalog,
		MinPlayers: cfg.MinPlayers,
		Rand:       rand.New(rand.NewPCG(5, 6)),
	})
	srv := New(dir, catalog, cfg, nil)
	ts := newTestServer(t, srv.Handler())
	code := createRoom(t, ts, nil)
	players := []*testPlayer{
		joinRoom(t, ts, code, "Ada"),
		joinRoom(t, ts, code, "Bob"),
		joinRoom(t, ts, code, "Cy"),
	}
	outsider, _, scenarioName := startRound(t, players)
	require.Equal(t, "Base: Moon/2", scenarioName)

	sendIntent(t, outsider.conn, intentOutsiderGuess, map[string]string{"guessedScenarioName": "   "})
	msg := readUntil(t, outsider.conn, eventError)
	assert.Equal(t, "Guess must be a scenario name", msg.Data["message"])

	sendIntent(t, outsider.conn, intentOutsiderGuess, map[string]string{"guessedScenarioName": " Base: Moon/2 "})
	for _, p := range players {
		ended := readUntil(t, p.conn, eventGameEnded)
		assert.Equal(t, "Base: Moon/2", ended.Data["guess"])
		snap := snapshotOf(t, ended)
		assert.Equal(t, "outsider", snap["winner"])
		assert.Equal(t, "guess_correct", snap["endReason"])
	}
}

func TestResetGameReturnsToWaiting(t *testing.T) {
	srv, players, _, _, _ := setupRound(t, 6)
	assert.Equal(t, 1, srv.activeTimers())

	sendIntent(t, players[2].conn, intentResetGame, nil)
	for _, p := range players {
		msg := readUntil(t, p.conn, eventGameReset)
		snap := snapshotOf(t, msg)
		assert.Equal(t, "waiting", snap["phase"])
		assert.Nil(t, snap["timeRemaining"])
		assert.Len(t, snap["players"], 4)
	}
	assert.Equal(t, 0, srv.activeTimers())
}

func TestTimerUpdatesWhilePlaying(t *testing.T) {
	_, players, _, _, _ := setupRound(t, 1)
	msg := readUntil(t, players[0].conn, eventTimerUpdate)
	remaining := msg.Data["timeRemaining"].(float64)
	assert.Greater(t, remaining, float64(0))
	assert.LessOrEqual(t, remaining, float64(time.Minute.Milliseconds()))
}

func TestDisconnectBroadcastsPlayerLeft(t *testing.T) {
	srv, dir := newGateway(t, testConfig())
	ts := newTestServer(t, srv.Handler())
	code := createRoom(t, ts, nil)
	ada := joinRoom(t, ts, code, "Ada")
	bob := joinRoom(t, ts, code, "Bob")

	require.NoError(t, ada.conn.Close())
	msg := readUntil(t, bob.conn, eventPlayerLeft)
	assert.Equal(t, ada.id, msg.Data["playerId"])
	assert.Equal(t, "Ada", msg.Data["playerName"])
	snap := snapshotOf(t, msg)
	assert.Equal(t, bob.id, snap["hostId"])
	assert.Len(t, snap["players"], 1)

	require.NoError(t, bob.conn.Close())
	require.Eventually(t, func() bool { return !dir.Exists(code) }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, dir.Stats().Connections)
}

func TestOutsiderLeavingForfeitsRound(t *testing.T) {
	srv, _, outsider, others, _ := setupRound(t, 6)

	require.NoError(t, outsider.conn.Close())
	for _, p := range others {
		ended := readUntil(t, p.conn, eventGameEnded)
		snap := snapshotOf(t, ended)
		assert.Equal(t, "group", snap["winner"])
		assert.Equal(t, "outsider_left", snap["endReason"])
		left := readUntil(t, p.conn, eventPlayerLeft)
		assert.Equal(t, outsider.id, left.Data["playerId"])
	}
	assert.Equal(t, 0, srv.activeTimers())
}

func TestLeaveDuringVotingResolvesRound(t *testing.T) {
	_, players, outsider, others, _ := setupRound(t, 6)

	sendIntent(t, players[0].conn, intentForceVoting, nil)
	for _, p := range players {
		readUntil(t, p.conn, eventVotingStarted)
	}
	// Everyone but the last innocent votes for the outsider, then that
	// player leaves and the remaining ballots are complete.
	quitter := others[len(others)-1]
	for _, p := range others[:len(others)-1] {
		sendIntent(t, p.conn, intentSubmitVote, map[string]string{"targetPlayerId": outsider.id})
		readUntil(t, p.conn, eventVoteSubmitted)
	}
	sendIntent(t, outsider.conn, intentSubmitVote, map[string]string{"targetPlayerId": others[0].id})
	readUntil(t, outsider.conn, eventVoteSubmitted)

	require.NoError(t, quitter.conn.Close())
	ended := readUntil(t, others[0].conn, eventGameEnded)
	snap := snapshotOf(t, ended)
	assert.Equal(t, "group", snap["winner"])
	assert.Equal(t, outsider.id, snap["accusedId"])
}

func TestIntentRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.IntentRatePerSecond = 0.001
	cfg.IntentBurst = 1
	srv, _ := newGateway(t, cfg)
	ts := newTestServer(t, srv.Handler())

	conn := dialWS(t, ts)
	sendIntent(t, conn, intentStartGame, nil)
	msg := readUntil(t, conn, eventError)
	assert.Equal(t, "Not in a room", msg.Data["message"])

	sendIntent(t, conn, intentStartGame, nil)
	msg = readUntil(t, conn, eventError)
	assert.Equal(t, "too many requests", msg.Data["message"])
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	srv, _ := newGateway(t, testConfig())
	ts := newTestServer(t, srv.Handler())

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if conn != nil {
		_ = conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
