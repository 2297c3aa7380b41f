package lobby

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-prsi"
	"go-prsi/conf"
)

// fakeWire records everything the hub sends and stands in for a
// *proto.Conn. Tests drive the hub synchronously through its internal
// entry points, so no goroutines or channels are involved.
type fakeWire struct {
	remote string
	lines  []string
	closed bool
}

func (f *fakeWire) SendLine(line string) { f.lines = append(f.lines, line) }
func (f *fakeWire) SendErr(cmd, code, msg string) {
	f.SendLine(fmt.Sprintf("ERR %s code=%s msg=%s", cmd, code, msg))
}
func (f *fakeWire) Close()         { f.closed = true }
func (f *fakeWire) Remote() string { return f.remote }

func (f *fakeWire) drain() []string {
	out := f.lines
	f.lines = nil
	return out
}

type harness struct {
	t   *testing.T
	s   *Server
	now time.Time
}

func newHarness(t *testing.T) *harness {
	log := logrus.New()
	log.SetOutput(io.Discard)

	c := conf.Default()
	c.MaxClients = 8
	c.MaxRooms = 2
	c.Log = log

	h := &harness{t: t, s: New(c), now: time.Unix(1700000000, 0)}
	h.s.clock = func() time.Time { return h.now }
	return h
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func (h *harness) dial(remote string) *fakeWire {
	h.t.Helper()
	w := &fakeWire{remote: remote}
	h.s.connect(w)
	require.Equal(h.t, []string{"EVT SERVER msg=welcome"}, w.drain())
	return w
}

func (h *harness) req(w *fakeWire, line string) []string {
	h.t.Helper()
	h.s.line(w, line)
	return w.drain()
}

var tokenRe = regexp.MustCompile(`^RESP LOGIN ok=1 session=([0-9a-f]{32})$`)

func (h *harness) login(nick string) (*fakeWire, string) {
	h.t.Helper()
	w := h.dial(nick + "-remote")
	lines := h.req(w, "REQ LOGIN nick="+nick)
	require.Len(h.t, lines, 1)
	m := tokenRe.FindStringSubmatch(lines[0])
	require.NotNil(h.t, m, "login reply %q", lines[0])
	return w, m[1]
}

// matchLines asserts a full reply sequence against anchored patterns.
func matchLines(t *testing.T, lines []string, patterns ...string) {
	t.Helper()
	require.Len(t, lines, len(patterns), "got %q", lines)
	for i, p := range patterns {
		assert.Regexp(t, "^"+p+"$", lines[i])
	}
}

// startPair brings alice and bob into room 1 and starts the game.
// Everything up to and including the start burst is drained.
func (h *harness) startPair() (alice, bob *fakeWire, bobToken string, seed int64) {
	h.t.Helper()
	alice, _ = h.login("alice")
	bob, bobToken = h.login("bob")
	h.req(alice, "REQ CREATE_ROOM name=den size=2")
	h.req(bob, "REQ JOIN_ROOM room=1")
	alice.drain()
	seed = h.now.Unix() ^ 1
	lines := h.req(alice, "REQ START_GAME")
	require.Equal(h.t, "RESP START_GAME ok=1", lines[0])
	bob.drain()
	return alice, bob, bobToken, seed
}

func TestLoginAndPing(t *testing.T) {
	h := newHarness(t)
	w, token := h.login("ada")
	assert.Len(t, token, 32)
	matchLines(t, h.req(w, "REQ PING"), "RESP PONG")
}

func TestLoginErrors(t *testing.T) {
	h := newHarness(t)

	w := h.dial("a")
	matchLines(t, h.req(w, "REQ LOGIN"),
		"ERR LOGIN code=BAD_FORMAT msg=missing_nick")
	matchLines(t, h.req(w, "REQ LOGIN nick="+strings.Repeat("a", maxNick)),
		"ERR LOGIN code=INVALID_VALUE msg=nick_too_long")

	// 31 characters still fit.
	lines := h.req(w, "REQ LOGIN nick="+strings.Repeat("a", maxNick-1))
	require.Len(t, lines, 1)
	assert.Regexp(t, tokenRe, lines[0])

	other := h.dial("b")
	matchLines(t, h.req(other, "REQ LOGIN nick="+strings.Repeat("a", maxNick-1)),
		"ERR LOGIN code=NICK_TAKEN msg=already_online")

	// Once the holder goes offline the hint changes to RESUME.
	h.s.disconnect(w)
	matchLines(t, h.req(other, "REQ LOGIN nick="+strings.Repeat("a", maxNick-1)),
		"ERR LOGIN code=NICK_TAKEN msg=use_resume_offline")
}

func TestStrikesAndUnknown(t *testing.T) {
	h := newHarness(t)
	w := h.dial("a")

	matchLines(t, h.req(w, "how do I play"),
		"ERR \\? code=BAD_FORMAT msg=parse_error")
	matchLines(t, h.req(w, "???"),
		"ERR \\? code=BAD_FORMAT msg=parse_error")
	assert.False(t, w.closed)

	// Well-formed nonsense is rejected without a strike.
	matchLines(t, h.req(w, "EVT PING"),
		"ERR PING code=BAD_FORMAT msg=expected_req")
	matchLines(t, h.req(w, "REQ FROBNICATE x=1"),
		"ERR FROBNICATE code=UNKNOWN_CMD msg=unknown")
	assert.False(t, w.closed)

	// The third parse failure is terminal; strikes never reset.
	matchLines(t, h.req(w, "still not a request"),
		"ERR \\? code=BAD_FORMAT msg=parse_error")
	assert.True(t, w.closed)
}

func TestClientTableFull(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < h.s.conf.MaxClients; i++ {
		h.dial(fmt.Sprintf("c%d", i))
	}
	w := &fakeWire{remote: "overflow"}
	h.s.connect(w)
	assert.Empty(t, w.lines, "no welcome for a dropped connection")
	assert.True(t, w.closed)
}

func TestRoomLifecycle(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.login("alice")
	bob, _ := h.login("bob")

	matchLines(t, h.req(alice, "REQ CREATE_ROOM name=den size=2"),
		"RESP CREATE_ROOM ok=1 room=1",
		"EVT PLAYER_JOIN nick=alice",
		"EVT HOST nick=alice",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-")

	// The joiner gets the roster replay and the state twice.
	matchLines(t, h.req(bob, "REQ JOIN_ROOM room=1"),
		"RESP JOIN_ROOM ok=1 room=1",
		"EVT HOST nick=alice",
		"EVT PLAYER_JOIN nick=alice",
		"EVT PLAYER_ONLINE nick=alice",
		"EVT PLAYER_JOIN nick=bob",
		"EVT PLAYER_ONLINE nick=bob",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-")
	matchLines(t, alice.drain(),
		"EVT PLAYER_JOIN nick=bob",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-")

	carol, _ := h.login("carol")
	matchLines(t, h.req(carol, "REQ LIST_ROOMS"),
		"RESP LIST_ROOMS ok=1 rooms=1",
		"EVT ROOM id=1 name=den players=2/2 state=LOBBY")
	matchLines(t, h.req(carol, "REQ JOIN_ROOM room=1"),
		"ERR JOIN_ROOM code=ROOM_FULL msg=full")
	matchLines(t, h.req(carol, "REQ JOIN_ROOM room=99"),
		"ERR JOIN_ROOM code=NO_SUCH_ROOM msg=id")
}

func TestCreateRoomErrors(t *testing.T) {
	h := newHarness(t)

	w := h.dial("a")
	matchLines(t, h.req(w, "REQ CREATE_ROOM name=x size=2"),
		"ERR CREATE_ROOM code=NOT_LOGGED msg=login_first")

	h.req(w, "REQ LOGIN nick=ada")
	matchLines(t, h.req(w, "REQ CREATE_ROOM"),
		"ERR CREATE_ROOM code=BAD_FORMAT msg=missing_fields")
	matchLines(t, h.req(w, "REQ CREATE_ROOM name=x size=five"),
		"ERR CREATE_ROOM code=INVALID_VALUE msg=size_2_4")
	matchLines(t, h.req(w, "REQ CREATE_ROOM name=x size=5"),
		"ERR CREATE_ROOM code=INVALID_VALUE msg=size_2_4")

	// Long room names are truncated, not rejected.
	long := strings.Repeat("n", 40)
	h.req(w, "REQ CREATE_ROOM name="+long+" size=2")
	lines := h.req(w, "REQ LIST_ROOMS")
	require.Len(t, lines, 2)
	assert.Equal(t, fmt.Sprintf("EVT ROOM id=1 name=%s players=1/2 state=LOBBY",
		long[:maxRoomName]), lines[1])

	matchLines(t, h.req(w, "REQ CREATE_ROOM name=y size=2"),
		"ERR CREATE_ROOM code=BAD_STATE msg=already_in_room")

	// Fill the room table from other slots.
	b, _ := h.login("bob")
	h.req(b, "REQ CREATE_ROOM name=second size=2")
	c, _ := h.login("carol")
	matchLines(t, h.req(c, "REQ CREATE_ROOM name=third size=2"),
		"ERR CREATE_ROOM code=LIMIT_REACHED msg=max_rooms")
}

func TestStartGameErrors(t *testing.T) {
	h := newHarness(t)

	w := h.dial("a")
	matchLines(t, h.req(w, "REQ START_GAME"),
		"ERR START_GAME code=NOT_LOGGED msg=login_first")

	h.req(w, "REQ LOGIN nick=ada")
	matchLines(t, h.req(w, "REQ START_GAME"),
		"ERR START_GAME code=BAD_STATE msg=not_in_room")

	h.req(w, "REQ CREATE_ROOM name=den size=2")
	matchLines(t, h.req(w, "REQ START_GAME"),
		"ERR START_GAME code=NOT_ENOUGH_PLAYERS msg=need_at_least_two")

	b, _ := h.login("bob")
	h.req(b, "REQ JOIN_ROOM room=1")
	w.drain()
	matchLines(t, h.req(b, "REQ START_GAME"),
		"ERR START_GAME code=NOT_HOST msg=host_only")

	h.req(w, "REQ START_GAME")
	matchLines(t, h.req(w, "REQ START_GAME"),
		"ERR START_GAME code=BAD_STATE msg=already_running")

	c, _ := h.login("carol")
	matchLines(t, h.req(c, "REQ JOIN_ROOM room=1"),
		"ERR JOIN_ROOM code=BAD_STATE msg=game_running")
}

func TestStartGameBurst(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.login("alice")
	bob, _ := h.login("bob")
	h.req(alice, "REQ CREATE_ROOM name=den size=2")
	h.req(bob, "REQ JOIN_ROOM room=1")
	alice.drain()

	matchLines(t, h.req(alice, "REQ START_GAME"),
		"RESP START_GAME ok=1",
		"EVT GAME_START players=2",
		"EVT HAND cards=([SHDC][789XJQKA],){3}[SHDC][789XJQKA]",
		"EVT TOP card=[SHDC][789XJQKA] active_suit=[SHDC] penalty=0",
		"EVT TURN nick=(alice|bob)",
		"EVT STATE room=1 phase=GAME paused=0 top=[SHDC][789XJQKA] active_suit=[SHDC] penalty=0 turn=(alice|bob)")
	matchLines(t, bob.drain(),
		"EVT GAME_START players=2",
		"EVT HAND cards=([SHDC][789XJQKA],){3}[SHDC][789XJQKA]",
		"EVT TOP card=[SHDC][789XJQKA] active_suit=[SHDC] penalty=0",
		"EVT TURN nick=(alice|bob)",
		"EVT STATE room=1 phase=GAME paused=0 top=[SHDC][789XJQKA] active_suit=[SHDC] penalty=0 turn=(alice|bob)")
}

func TestPlayRejections(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.login("alice")
	matchLines(t, h.req(alice, "REQ PLAY card=SA"),
		"ERR PLAY code=BAD_STATE msg=no_game")
	matchLines(t, h.req(alice, "REQ DRAW"),
		"ERR DRAW code=BAD_STATE msg=no_game")
	alice.drain()

	h2 := newHarness(t)
	alice, bob, _, seed := h2.startPair()
	mirror := prsi.NewGame(2, seed)
	mirror.Deal(cardsDealt)
	mirror.PickStartTop()

	wires := []*fakeWire{alice, bob}
	turn, other := wires[mirror.Turn()], wires[1-mirror.Turn()]

	matchLines(t, h2.req(turn, "REQ PLAY"),
		"ERR PLAY code=BAD_FORMAT msg=missing_card")
	matchLines(t, h2.req(turn, "REQ PLAY card=ZZ"),
		"ERR PLAY code=BAD_FORMAT msg=bad_card")
	matchLines(t, h2.req(other, "REQ DRAW"),
		"ERR DRAW code=NOT_YOUR_TURN msg=rejected")

	// A card the player does not hold is caught before legality.
	var absent prsi.Card
	for c := prsi.Card(0); c < prsi.DeckSize; c++ {
		held := false
		for _, hc := range mirror.Hand(mirror.Turn()) {
			if hc == c {
				held = true
			}
		}
		if !held {
			absent = c
			break
		}
	}
	matchLines(t, h2.req(turn, "REQ PLAY card="+absent.String()),
		"ERR PLAY code=NO_SUCH_CARD msg=rejected")
}

// TestGamePlaysToCompletion runs a whole game in lockstep with a
// mirror engine seeded like the server's, verifying the public burst
// after every move.
func TestGamePlaysToCompletion(t *testing.T) {
	h := newHarness(t)
	alice, bob, _, seed := h.startPair()
	mirror := prsi.NewGame(2, seed)
	mirror.Deal(cardsDealt)
	mirror.PickStartTop()

	wires := []*fakeWire{alice, bob}
	nicks := []string{"alice", "bob"}

	for step := 0; !mirror.Ended(); step++ {
		require.Less(t, step, 500, "game did not terminate")
		ppos := mirror.Turn()
		w := wires[ppos]
		for _, o := range wires {
			o.drain()
		}

		// Find the first legal card the way a simple client would.
		played := prsi.Card(255)
		wish := ""
		for _, c := range append([]prsi.Card(nil), mirror.Hand(ppos)...) {
			tw := ""
			if c.Rank() == prsi.Queen {
				tw = "H"
			}
			if _, err := mirror.Play(ppos, c, tw); err == nil {
				played, wish = c, tw
				break
			}
		}

		if played != 255 {
			req := "REQ PLAY card=" + played.String()
			if wish != "" {
				req += " wish=" + wish
			}
			lines := h.req(w, req)
			require.Equal(t, "RESP PLAY ok=1", lines[0])
			require.Equal(t, fmt.Sprintf("EVT TOP card=%s active_suit=%c penalty=%d",
				mirror.Top(), mirror.ActiveSuit(), mirror.Penalty()), lines[2])
			require.Equal(t, handLine(mirror, ppos), lines[3])
			if mirror.Ended() {
				require.Equal(t, "EVT GAME_END winner="+nicks[ppos], lines[4])
				assert.Regexp(t, "^EVT STATE room=1 phase=LOBBY ", lines[5])
			} else {
				require.Equal(t, "EVT TURN nick="+nicks[mirror.Turn()], lines[4])
			}
		} else {
			drawn, err := mirror.Draw(ppos)
			require.NoError(t, err)
			lines := h.req(w, "REQ DRAW")
			require.Equal(t, fmt.Sprintf("RESP DRAW ok=1 count=%d", len(drawn)), lines[0])
			require.Equal(t, handLine(mirror, ppos), lines[1])
			require.Equal(t, "EVT TURN nick="+nicks[mirror.Turn()], lines[2])
		}
	}

	// The room is back in the lobby; the same host can start again.
	lines := h.req(alice, "REQ START_GAME")
	assert.Equal(t, "RESP START_GAME ok=1", lines[0])
}

func handLine(g *prsi.Game, ppos int) string {
	parts := make([]string, len(g.Hand(ppos)))
	for i, c := range g.Hand(ppos) {
		parts[i] = c.String()
	}
	return "EVT HAND cards=" + strings.Join(parts, ",")
}

func TestDisconnectPausesAndResume(t *testing.T) {
	h := newHarness(t)
	alice, bob, bobToken, _ := h.startPair()

	h.s.disconnect(bob)
	matchLines(t, alice.drain(),
		"EVT PLAYER_OFFLINE nick=bob",
		"EVT GAME_PAUSED nick=bob timeout=120",
		"EVT STATE room=1 phase=GAME paused=1 .*")

	// Moves are blocked while paused, whoever's turn it is.
	matchLines(t, h.req(alice, "REQ PLAY card=SA"),
		"ERR PLAY code=PAUSED msg=wait_for_reconnect")
	matchLines(t, h.req(alice, "REQ DRAW"),
		"ERR DRAW code=PAUSED msg=wait_for_reconnect")

	bob2 := h.dial("bob-again")
	matchLines(t, h.req(bob2, "REQ RESUME nick=bob session="+bobToken),
		"RESP RESUME ok=1",
		"EVT HOST nick=alice",
		"EVT PLAYER_JOIN nick=alice",
		"EVT PLAYER_ONLINE nick=alice",
		"EVT PLAYER_JOIN nick=bob",
		"EVT PLAYER_ONLINE nick=bob",
		"EVT STATE room=1 phase=GAME paused=1 .*",
		"EVT HAND cards=.*",
		"EVT TOP card=.*",
		"EVT TURN nick=(alice|bob)",
		"EVT GAME_RESUMED",
		"EVT STATE room=1 phase=GAME paused=0 .*")
	matchLines(t, alice.drain(),
		"EVT PLAYER_ONLINE nick=bob",
		"EVT GAME_RESUMED",
		"EVT STATE room=1 phase=GAME paused=0 .*")

	// The identity moved into the new slot: the nick is online again.
	other := h.dial("squatter")
	matchLines(t, h.req(other, "REQ LOGIN nick=bob"),
		"ERR LOGIN code=NICK_TAKEN msg=already_online")
}

func TestResumeErrors(t *testing.T) {
	h := newHarness(t)
	_, token := h.login("carol")

	w := h.dial("a")
	matchLines(t, h.req(w, "REQ RESUME nick=carol"),
		"ERR RESUME code=BAD_FORMAT msg=missing_fields")
	matchLines(t, h.req(w, "REQ RESUME nick=nobody session="+token),
		"ERR RESUME code=BAD_SESSION msg=no_such_nick")
	matchLines(t, h.req(w, "REQ RESUME nick=carol session="+strings.Repeat("0", 32)),
		"ERR RESUME code=BAD_SESSION msg=token")
	matchLines(t, h.req(w, "REQ RESUME nick=carol session="+token),
		"ERR RESUME code=ALREADY_ONLINE msg=use_login")
}

func TestPauseExpiryAbortsGame(t *testing.T) {
	h := newHarness(t)
	alice, bob, _, _ := h.startPair()

	h.s.disconnect(bob)
	alice.drain()

	h.advance(OfflineTimeout + time.Second)
	h.s.tick()

	// The abort, the extra tick state, then the expired slot leaving.
	matchLines(t, alice.drain(),
		"EVT GAME_ABORT reason=reconnect_timeout",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-",
		"EVT PLAYER_LEAVE nick=bob",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-")

	// Alice sat silent through the whole window, so the same tick
	// evicted her connection as idle.
	assert.True(t, alice.closed)

	// Bob's identity is gone; the nick is free again.
	w := h.dial("b")
	lines := h.req(w, "REQ LOGIN nick=bob")
	require.Len(t, lines, 1)
	assert.Regexp(t, tokenRe, lines[0])
}

func TestIdleEviction(t *testing.T) {
	h := newHarness(t)
	w, _ := h.login("ada")

	h.advance(IdleTimeout)
	h.s.tick()
	assert.False(t, w.closed, "evicted at exactly the timeout")

	h.advance(time.Second)
	h.s.tick()
	assert.True(t, w.closed)

	// The transport close flows back as a disconnect; the identity
	// then survives until the offline window runs out.
	h.s.disconnect(w)
	h.advance(OfflineTimeout)
	h.s.tick()
	other := h.dial("b")
	matchLines(t, h.req(other, "REQ LOGIN nick=ada"),
		"ERR LOGIN code=NICK_TAKEN msg=use_resume_offline")

	h.advance(time.Second)
	h.s.tick()
	lines := h.req(other, "REQ LOGIN nick=ada")
	require.Len(t, lines, 1)
	assert.Regexp(t, tokenRe, lines[0])
}

func TestLeaveRoomLobby(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.login("alice")

	matchLines(t, h.req(alice, "REQ LEAVE_ROOM"),
		"ERR LEAVE_ROOM code=BAD_STATE msg=not_in_room")

	bob, _ := h.login("bob")
	carol, _ := h.login("carol")
	h.req(alice, "REQ CREATE_ROOM name=den size=3")
	h.req(bob, "REQ JOIN_ROOM room=1")
	h.req(carol, "REQ JOIN_ROOM room=1")
	alice.drain()
	bob.drain()

	// The host leaving migrates the role to the next seat.
	matchLines(t, h.req(alice, "REQ LEAVE_ROOM"),
		"EVT PLAYER_LEAVE nick=alice",
		"RESP LEAVE_ROOM ok=1")
	matchLines(t, bob.drain(),
		"EVT PLAYER_LEAVE nick=alice",
		"EVT HOST nick=bob",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-")

	// The last member out destroys the room.
	h.req(bob, "REQ LEAVE_ROOM")
	carol.drain()
	h.req(carol, "REQ LEAVE_ROOM")
	matchLines(t, h.req(carol, "REQ LIST_ROOMS"),
		"RESP LIST_ROOMS ok=1 rooms=0")
}

func TestLeaveDuringGame(t *testing.T) {
	h := newHarness(t)
	alice, bob, _, _ := h.startPair()

	// With one player left the survivor wins; the final suit stays
	// visible in the lobby state.
	matchLines(t, h.req(bob, "REQ LEAVE_ROOM"),
		"EVT PLAYER_LEAVE nick=bob",
		"RESP LEAVE_ROOM ok=1")
	matchLines(t, alice.drain(),
		"EVT PLAYER_LEAVE nick=bob",
		"EVT GAME_END winner=alice",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=[SHDC] penalty=[0-9]+ turn=-")
}

func TestLeaveDuringGameContinues(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.login("alice")
	bob, _ := h.login("bob")
	carol, _ := h.login("carol")
	h.req(alice, "REQ CREATE_ROOM name=den size=3")
	h.req(bob, "REQ JOIN_ROOM room=1")
	h.req(carol, "REQ JOIN_ROOM room=1")
	h.req(alice, "REQ START_GAME")
	bob.drain()
	carol.drain()

	// Two players remain, so the game goes on with fresh hands, turn
	// and state for everyone.
	matchLines(t, h.req(carol, "REQ LEAVE_ROOM"),
		"EVT PLAYER_LEAVE nick=carol",
		"RESP LEAVE_ROOM ok=1")
	matchLines(t, alice.drain(),
		"EVT PLAYER_LEAVE nick=carol",
		"EVT HAND cards=.*",
		"EVT TURN nick=(alice|bob)",
		"EVT STATE room=1 phase=GAME paused=0 .*")
	matchLines(t, bob.drain(),
		"EVT PLAYER_LEAVE nick=carol",
		"EVT HAND cards=.*",
		"EVT TURN nick=(alice|bob)",
		"EVT STATE room=1 phase=GAME paused=0 .*")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)

	// Logout needs no session at all.
	w := h.dial("anon")
	matchLines(t, h.req(w, "REQ LOGOUT"),
		"RESP LOGOUT ok=1")
	assert.True(t, w.closed)

	alice, bob, _, _ := h.startPair()
	matchLines(t, h.req(bob, "REQ LOGOUT"),
		"EVT PLAYER_LEAVE nick=bob",
		"EVT GAME_ABORT reason=logout",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-",
		"RESP LOGOUT ok=1")
	assert.True(t, bob.closed)
	matchLines(t, alice.drain(),
		"EVT PLAYER_LEAVE nick=bob",
		"EVT GAME_ABORT reason=logout",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-",
		"EVT STATE room=1 phase=LOBBY paused=0 top=- active_suit=- penalty=0 turn=-")

	// The identity is gone for good.
	fresh := h.dial("fresh")
	lines := h.req(fresh, "REQ LOGIN nick=bob")
	require.Len(t, lines, 1)
	assert.Regexp(t, tokenRe, lines[0])
}

func TestListRoomsRequiresLogin(t *testing.T) {
	h := newHarness(t)
	w := h.dial("a")
	matchLines(t, h.req(w, "REQ LIST_ROOMS"),
		"ERR LIST_ROOMS code=NOT_LOGGED msg=login_first")
}
