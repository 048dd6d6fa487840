// Package merge folds remote sync payloads into local session state.
//
// Players merge at whole-entity granularity by version: a remote copy wins
// only when its version is strictly greater. Two devices editing different
// fields of one player inside the same window therefore lose one edit; the
// lower-version copy is discarded, never field-merged.
//
// Session-level fields carry no version and are overwritten by whichever
// keys the fragment contains.
package merge

import (
	"slices"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
	"github.com/DoyleJ11/tabletop-sync/internal/protocol"
)

type Result struct {
	Updated []string // player ids replaced by the remote copy
	Kept    []string // player ids whose local copy was at least as new
	Ignored []string // remote player ids with no local counterpart
}

// Players returns a new player list where each local player is replaced by
// its remote copy when the remote version is higher. Order and membership
// follow local.
func Players(local, remote []game.Player) ([]game.Player, Result) {
	var res Result
	byID := make(map[string]game.Player, len(remote))
	for _, rp := range remote {
		byID[rp.ID] = rp
	}

	out := make([]game.Player, len(local))
	seen := make(map[string]bool, len(local))
	for i, lp := range local {
		seen[lp.ID] = true
		rp, ok := byID[lp.ID]
		switch {
		case !ok:
			out[i] = lp
		case rp.Version > lp.Version:
			out[i] = rp.Clone()
			res.Updated = append(res.Updated, lp.ID)
		default:
			out[i] = lp
			res.Kept = append(res.Kept, lp.ID)
		}
	}
	for _, rp := range remote {
		if !seen[rp.ID] {
			res.Ignored = append(res.Ignored, rp.ID)
		}
	}
	return out, res
}

// Detail gives an open detail view the same treatment as the player list.
func Detail(view game.Player, remote []game.Player) (game.Player, bool) {
	for _, rp := range remote {
		if rp.ID == view.ID && rp.Version > view.Version {
			return rp.Clone(), true
		}
	}
	return view, false
}

// Apply merges a sync payload into s and returns the merged copy.
func Apply(s game.Session, data protocol.SyncData) (game.Session, Result) {
	out := s.Clone()
	var res Result
	if len(data.Players) > 0 {
		out.Players, res = Players(out.Players, data.Players)
	}
	data.GameState.ApplyTo(&out.State)
	if data.ActiveEnemies.Set {
		out.ActiveEnemies = slices.Clone(data.ActiveEnemies.Value)
	}
	return out, res
}
