package game

import (
	"errors"
	"slices"
	"strings"
)

var ErrMapNotReady = errors.New("no map tile placed on an enabled cell")
var ErrCellDisabled = errors.New("cell is disabled")
var ErrCellOccupied = errors.New("cell is occupied")
var ErrMarkerNotFound = errors.New("marker not found")

const defaultMarkerColor = "#ef4444"

// grid returns the placed map and terrain sized to the full board.
func (t *txn) grid() ([]*PlacedMapTile, []bool) {
	g := &t.s.State
	cells := GridSize * GridSize
	if len(g.PlacedMap) < cells {
		g.PlacedMap = append(g.PlacedMap, make([]*PlacedMapTile, cells-len(g.PlacedMap))...)
	}
	if len(g.TerrainGrid) < cells {
		g.TerrainGrid = append(g.TerrainGrid, make([]bool, cells-len(g.TerrainGrid))...)
	}
	return g.PlacedMap, g.TerrainGrid
}

func validCell(i int) bool { return i >= 0 && i < GridSize*GridSize }

func (t *txn) board(a Action) error {
	g := &t.s.State
	placed, terrain := t.grid()

	switch a.Type {
	case ActPlaceTile, ActPlaceFromDiscard:
		if !validCell(a.Cell) {
			return ErrInvalidValue
		}
		if !terrain[a.Cell] {
			return ErrCellDisabled
		}
		if placed[a.Cell] != nil {
			return ErrCellOccupied
		}
		src := &g.MapCards
		if a.Type == ActPlaceFromDiscard {
			src = &g.MapDiscard
		}
		card, rest, ok := removeAt(*src, a.Index)
		if !ok {
			return ErrCardNotFound
		}
		*src = rest
		placed[a.Cell] = &PlacedMapTile{Card: card, Revealed: true}

	case ActToggleTerrain:
		if !validCell(a.Cell) {
			return ErrInvalidValue
		}
		terrain[a.Cell] = !terrain[a.Cell]
		if !terrain[a.Cell] && placed[a.Cell] != nil {
			g.MapCards = append(g.MapCards, placed[a.Cell].Card)
			placed[a.Cell] = nil
		}

	case ActRandomFill:
		var free []int
		for i := range placed {
			if placed[i] == nil && terrain[i] {
				free = append(free, i)
			}
		}
		shuffleCells(free)
		n := min(len(free), len(g.MapCards))
		for i, cell := range free[:n] {
			placed[cell] = &PlacedMapTile{Card: g.MapCards[i], Revealed: false}
		}
		g.MapCards = slices.Clone(g.MapCards[n:])

	case ActRevealTile:
		if !validCell(a.Cell) || placed[a.Cell] == nil {
			return ErrCardNotFound
		}
		tile := *placed[a.Cell]
		tile.Revealed = true
		placed[a.Cell] = &tile

	case ActDiscardTile:
		if !validCell(a.Cell) || placed[a.Cell] == nil {
			return ErrCardNotFound
		}
		g.MapDiscard = prepend(g.MapDiscard, placed[a.Cell].Card)
		placed[a.Cell] = nil

	case ActClearMap:
		for i, tile := range placed {
			if tile != nil {
				g.MapCards = append(g.MapCards, tile.Card)
				placed[i] = nil
			}
		}

	case ActStartGame:
		ready := false
		for i, tile := range placed {
			if tile != nil && terrain[i] {
				ready = true
				break
			}
		}
		if !ready {
			return ErrMapNotReady
		}
		g.GameStarted = true
	}
	return nil
}

func (t *txn) marker(a Action) error {
	g := &t.s.State
	i := slices.IndexFunc(g.MapMarkers, func(m MapMarker) bool { return m.ID == a.MarkerID })

	switch a.Type {
	case ActAddMarker:
		text := strings.TrimSpace(a.Text)
		if text == "" {
			return ErrInvalidValue
		}
		color := a.Color
		if color == "" {
			color = defaultMarkerColor
		}
		g.MapMarkers = append(g.MapMarkers, MapMarker{ID: newMarkerID(), Text: text, Color: color, X: a.X, Y: a.Y})
	case ActMoveMarker:
		if i < 0 {
			return ErrMarkerNotFound
		}
		g.MapMarkers[i].X, g.MapMarkers[i].Y = a.X, a.Y
	case ActRemoveMarker:
		if i < 0 {
			return ErrMarkerNotFound
		}
		g.MapMarkers = slices.Delete(g.MapMarkers, i, i+1)
	}
	return nil
}
