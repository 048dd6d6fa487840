package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) []byte {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatalf("peer outbox closed unexpectedly")
		}
		return b
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return nil
	}
}

func recvNoFrame(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no frame within %v, got %s", within, b)
	case <-time.After(within):
	}
}

func recvClosed(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox not closed within %v", within)
		}
	}
}

func recvView(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	if !r.Send(GetState{Reply: reply}) {
		t.Fatalf("room is gone")
	}
	select {
	case v := <-reply:
		return v
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

func join(t *testing.T, r *Room, id string, buf int) chan []byte {
	t.Helper()
	out := make(chan []byte, buf)
	r.Send(Join{ClientID: id, Outbox: out})
	ack := recvFrame(t, out, 100*time.Millisecond)

	var env struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(ack, &env); err != nil {
		t.Fatalf("ack is not json: %v", err)
	}
	if env.Type != "connected" || env.SessionID != r.ID() {
		t.Fatalf("unexpected ack %s", ack)
	}
	return out
}

func TestRoom_JoinAcknowledges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, "s1", nil)
	join(t, r, "a", 4)

	if v := recvView(t, r); v.NumClients != 1 {
		t.Fatalf("want 1 client, got %d", v.NumClients)
	}
}

func TestRoom_ForwardExcludesSender(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, "s1", nil)
	a := join(t, r, "a", 4)
	b := join(t, r, "b", 4)
	c := join(t, r, "c", 4)

	payload := []byte(`{"type":"sync","from":"dev-a"}`)
	r.Send(Forward{From: "a", Payload: payload})

	for name, ch := range map[string]chan []byte{"b": b, "c": c} {
		if got := recvFrame(t, ch, 100*time.Millisecond); string(got) != string(payload) {
			t.Fatalf("%s: want %s, got %s", name, payload, got)
		}
	}
	recvNoFrame(t, a, 50*time.Millisecond)
}

func TestRoom_PreservesSendOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, "s1", nil)
	join(t, r, "a", 4)
	b := join(t, r, "b", 16)

	for _, p := range []string{"1", "2", "3"} {
		r.Send(Forward{From: "a", Payload: []byte(p)})
	}
	for _, want := range []string{"1", "2", "3"} {
		if got := string(recvFrame(t, b, 100*time.Millisecond)); got != want {
			t.Fatalf("want %s, got %s", want, got)
		}
	}
}

func TestRoom_RemoteReachesEveryone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, "s1", nil)
	a := join(t, r, "a", 4)
	b := join(t, r, "b", 4)

	r.Send(Remote{Payload: []byte("x")})
	recvFrame(t, a, 100*time.Millisecond)
	recvFrame(t, b, 100*time.Millisecond)
}

func TestRoom_DropSlowPeerOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, "s1", nil)
	slow := join(t, r, "slow", 1)
	fast := join(t, r, "fast", 8)

	r.Send(Forward{From: "x", Payload: []byte("1")})
	r.Send(Forward{From: "x", Payload: []byte("2")})

	v := recvView(t, r)
	if v.NumClients != 1 || v.Dropped != 1 {
		t.Fatalf("expected slow peer dropped; got %+v", v)
	}
	recvFrame(t, fast, 100*time.Millisecond)
	recvFrame(t, fast, 100*time.Millisecond)
	recvClosed(t, slow, 100*time.Millisecond)
}

func TestRoom_LeaveClosesOutbox(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(ctx, "s1", nil)
	a := join(t, r, "a", 4)
	r.Send(Leave{ClientID: "a"})
	recvClosed(t, a, 100*time.Millisecond)

	// a second leave for the same peer is harmless
	r.Send(Leave{ClientID: "a"})
	if v := recvView(t, r); v.NumClients != 0 {
		t.Fatalf("want 0 clients, got %d", v.NumClients)
	}
}

func TestRoom_Shutdown_ClosesPeersAndRejectsSends(t *testing.T) {
	r := New(context.Background(), "s1", nil)
	a := join(t, r, "a", 4)

	r.Send(Shutdown{})
	recvClosed(t, a, 100*time.Millisecond)

	select {
	case <-r.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("room did not finish")
	}
	if r.Send(Forward{From: "a", Payload: []byte("late")}) {
		t.Fatalf("send accepted after shutdown")
	}
}
