// Package fanout carries relay frames between relay instances so one room
// can span several processes.
package fanout

import (
	"context"
	"sync"
)

// Deliver receives a frame published by another instance.
type Deliver func(sessionID string, payload []byte)

type Publisher interface {
	Publish(ctx context.Context, sessionID string, payload []byte) error
}

type Backplane interface {
	Publisher
	// Run blocks, handing frames from other instances to deliver, until ctx
	// ends or the subscription fails.
	Run(ctx context.Context, deliver Deliver) error
	Close() error
}

// Bus is an in-process backplane. Nodes on the same bus see each other's
// frames, never their own.
type Bus struct {
	mu    sync.Mutex
	nodes map[*Node]Deliver
}

func NewBus() *Bus { return &Bus{nodes: make(map[*Node]Deliver)} }

func (b *Bus) Node() *Node { return &Node{bus: b} }

type Node struct {
	bus *Bus
}

func (n *Node) Publish(_ context.Context, sessionID string, payload []byte) error {
	n.bus.mu.Lock()
	targets := make([]Deliver, 0, len(n.bus.nodes))
	for other, d := range n.bus.nodes {
		if other != n {
			targets = append(targets, d)
		}
	}
	n.bus.mu.Unlock()

	for _, d := range targets {
		d(sessionID, append([]byte(nil), payload...))
	}
	return nil
}

func (n *Node) Run(ctx context.Context, deliver Deliver) error {
	n.bus.mu.Lock()
	n.bus.nodes[n] = deliver
	n.bus.mu.Unlock()

	<-ctx.Done()

	n.bus.mu.Lock()
	delete(n.bus.nodes, n)
	n.bus.mu.Unlock()
	return nil
}

func (n *Node) Close() error { return nil }
