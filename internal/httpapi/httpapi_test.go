package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tabletop-sync/internal/fanout"
	"github.com/DoyleJ11/tabletop-sync/internal/game"
	"github.com/DoyleJ11/tabletop-sync/internal/hub"
	"github.com/DoyleJ11/tabletop-sync/internal/protocol"
	"github.com/DoyleJ11/tabletop-sync/internal/store"
	"github.com/DoyleJ11/tabletop-sync/internal/ws"
)

type testServer struct {
	*httptest.Server
	hub      *hub.Hub
	sessions *store.Memory
}

func newTestServer(t *testing.T, bp fanout.Publisher) *testServer {
	t.Helper()
	h := hub.NewHub(context.Background(), nil)
	mem := store.NewMemory()
	srv := httptest.NewServer(SetupRoutes(Deps{
		Hub:      h,
		Sessions: mem,
		Catalog: &store.MemoryCatalog{
			Cards: []game.Card{
				{ID: "k", Name: "Knight", Type: game.CardPlayer, Profession: "knight"},
				{ID: "s", Name: "Slash", Type: game.CardSkill, Role: "knight", Count: 2},
			},
			Campaigns: map[string]store.Campaign{"c1": {ID: "c1", Name: "Isle", Cards: []store.CampaignCard{
				{Card: game.Card{ID: "wood", Type: game.CardResource}, Count: 3},
			}}},
		},
		WS: ws.Options{Backplane: bp},
	}))
	t.Cleanup(func() {
		srv.Close()
		h.Shutdown()
	})
	return &testServer{Server: srv, hub: h, sessions: mem}
}

func (s *testServer) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?sessionId=" + sessionID
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })

	env := readEnvelope(t, c)
	require.Equal(t, protocol.TypeConnected, env.Type)
	require.Equal(t, sessionID, env.SessionID)
	return c
}

func readEnvelope(t *testing.T, c *websocket.Conn) protocol.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, b, err := c.Read(ctx)
	require.NoError(t, err)
	env, err := protocol.Peek(b)
	require.NoError(t, err)
	return env
}

// readNothing gives up after within. A cancelled read closes the
// connection, so call it last for a given conn.
func readNothing(t *testing.T, c *websocket.Conn, within time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()
	_, b, err := c.Read(ctx)
	if err == nil {
		t.Fatalf("expected no frame, got %s", b)
	}
}

func write(t *testing.T, c *websocket.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(frame)))
}

func TestWS_MissingSessionID(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWS_ForwardsToOthersOnly(t *testing.T) {
	srv := newTestServer(t, nil)
	a := srv.dial(t, "s1")
	b := srv.dial(t, "s1")
	c := srv.dial(t, "s1")
	other := srv.dial(t, "s2")

	write(t, a, `{"type":"sync","from":"dev-a","data":{"gameState":{"gameStarted":true}}}`)

	for _, peer := range []*websocket.Conn{b, c} {
		env := readEnvelope(t, peer)
		assert.Equal(t, protocol.TypeSync, env.Type)
		assert.Equal(t, "dev-a", env.From)
		assert.JSONEq(t, `{"gameState":{"gameStarted":true}}`, string(env.Data))
	}
	readNothing(t, a, 100*time.Millisecond)
	readNothing(t, other, 50*time.Millisecond)
}

func TestWS_StampsUnknownSender(t *testing.T) {
	srv := newTestServer(t, nil)
	a := srv.dial(t, "s1")
	b := srv.dial(t, "s1")

	write(t, a, `{"type":"sync","data":{}}`)
	assert.Equal(t, protocol.UnknownSender, readEnvelope(t, b).From)

	write(t, a, `{"type":"played_card","data":{"playerId":"q"}}`)
	env := readEnvelope(t, b)
	assert.Equal(t, protocol.TypePlayedCard, env.Type)
	assert.Empty(t, env.From)
}

func TestWS_PingIsAnsweredNotBroadcast(t *testing.T) {
	srv := newTestServer(t, nil)
	a := srv.dial(t, "s1")
	b := srv.dial(t, "s1")

	write(t, a, `{"type":"ping"}`)
	assert.Equal(t, protocol.TypePong, readEnvelope(t, a).Type)
	readNothing(t, b, 100*time.Millisecond)
}

func TestWS_MalformedFrameKeepsConnection(t *testing.T) {
	srv := newTestServer(t, nil)
	a := srv.dial(t, "s1")
	b := srv.dial(t, "s1")

	write(t, a, `{{{`)
	write(t, a, `{"type":"custom","data":1}`)

	env := readEnvelope(t, b)
	assert.Equal(t, protocol.Type("custom"), env.Type, "unknown types are still relayed")
}

func TestWS_EmptyRoomIsDiscarded(t *testing.T) {
	srv := newTestServer(t, nil)
	a := srv.dial(t, "s1")
	require.NoError(t, a.Close(websocket.StatusNormalClosure, ""))

	require.Eventually(t, func() bool {
		reply := make(chan hub.Stats, 1)
		srv.hub.Inbox() <- hub.GetStats{Reply: reply}
		_, ok := (<-reply).Rooms["s1"]
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWS_RoomSpansInstances(t *testing.T) {
	bus := fanout.NewBus()
	n1, n2 := bus.Node(), bus.Node()
	srv1 := newTestServer(t, n1)
	srv2 := newTestServer(t, n2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n1.Run(ctx, srv1.hub.Deliver)
	go n2.Run(ctx, srv2.hub.Deliver)

	a := srv1.dial(t, "s1")
	b := srv2.dial(t, "s1")

	got := make(chan string, 16)
	go func() {
		for {
			_, frame, err := b.Read(ctx)
			if err != nil {
				return
			}
			got <- string(frame)
		}
	}()

	// the bus registers nodes asynchronously; resend until the frame lands
	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case frame := <-got:
			assert.Contains(t, frame, "dev-a")
			return
		case <-tick.C:
			write(t, a, `{"type":"sync","from":"dev-a"}`)
		case <-deadline:
			t.Fatal("frame never crossed instances")
		}
	}
}

func TestSessionsAPI(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	remote := store.NewRemote(srv.URL, srv.Client())

	resp, err := http.Post(srv.URL+"/sessions", "application/json",
		strings.NewReader(`{"campaignId":"c1","professions":["knight"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Success bool         `json:"success"`
		Data    game.Session `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	id := body.Data.ID
	require.NotEmpty(t, id)
	assert.Len(t, body.Data.Players[0].SkillDeck, 2)
	assert.Len(t, body.Data.State.RedDeck, 3)

	_, err = remote.Update(ctx, id, game.Patch{GameStateFragment: game.GameStateFragment{
		GameStarted: game.Some(true),
		MapMarkers:  game.Some([]game.MapMarker{{ID: "m"}}),
	}})
	require.NoError(t, err)

	full, err := remote.Get(ctx, id, store.ModeFull)
	require.NoError(t, err)
	assert.True(t, full.State.GameStarted)
	assert.Len(t, full.State.MapMarkers, 1)

	lite, err := remote.Get(ctx, id, store.ModeLite)
	require.NoError(t, err)
	assert.Nil(t, lite.State.MapMarkers)
	assert.Len(t, lite.State.RedDeck, 3)

	list, err := remote.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	require.NoError(t, remote.Delete(ctx, id))
	_, err = remote.Get(ctx, id, store.ModeFull)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionsAPI_BadRequests(t *testing.T) {
	srv := newTestServer(t, nil)

	cases := []struct {
		name, body string
		want       int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"no campaign", `{"professions":["knight"]}`, http.StatusBadRequest},
		{"unknown profession", `{"campaignId":"c1","professions":["bard"]}`, http.StatusBadRequest},
		{"unknown campaign", `{"campaignId":"zz","professions":["knight"]}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestSessionsAPI_ImportRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	remote := store.NewRemote(srv.URL, srv.Client())

	created, err := remote.Create(ctx, game.Session{ID: "fixed", Name: "imported", Players: []game.Player{{ID: "q", Version: 3}}})
	require.NoError(t, err)
	assert.Equal(t, "fixed", created.ID)

	got, err := srv.sessions.Get(ctx, "fixed", store.ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Players[0].Version)
}
