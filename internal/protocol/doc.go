// Package protocol defines the relay wire format.
//
// Every frame is one JSON envelope:
//
//	{ type, data?, from?, sessionId? }
//
// Relay -> Client
// connected:
//   sessionId: string
// pong: {}
//
// Client -> Relay -> other clients in the room
// sync:
//   from: string                 // sender client id, "unknown" if absent
//   data.players: Player[]       // optional
//   data.gameState: {...}        // optional, partial: only present keys overwrite
//   data.activeEnemies: [...]    // optional
// played_card:
//   data: { card, playerId, playerName, playerColor, timestamp }
//
// Client -> Relay
// ping: {}                       // answered with pong, never broadcast
package protocol
