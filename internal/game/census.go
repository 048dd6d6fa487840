package game

// Census counts card instances per catalog id across every zone of the
// session. The played card slot and role cards are display state and are
// not counted. Transition rules keep this map unchanged.
func Census(s Session) map[string]int {
	counts := map[string]int{}
	add := func(cards []Card) {
		for _, c := range cards {
			counts[c.ID]++
		}
	}

	for _, p := range s.Players {
		add(p.HandResource)
		add(p.HandSkill)
		add(p.SkillDeck)
		add(p.SkillDiscard)
		add(p.Discard)
		for _, e := range p.Equipment {
			counts[e.Card.ID]++
		}
	}

	g := s.State
	for _, pile := range [][]Card{
		g.RedDeck, g.BlueDeck, g.GreenDeck, g.ShopDeck, g.PublicDiscard,
		g.EnemyDeck, g.EnemyDiscard, g.SupportDeck, g.SupportDiscard,
		g.BossDeck, g.BossDiscard, g.DaynightDeck, g.DaynightDiscard,
		g.SpecialCharacterDeck, g.SpecialCharacterDiscard, g.MapCards, g.MapDiscard,
	} {
		add(pile)
	}
	for _, tile := range g.PlacedMap {
		if tile != nil {
			counts[tile.Card.ID]++
		}
	}

	for _, list := range [][]Combatant{s.ActiveEnemies, s.ActiveBosses, s.ActiveSupports, s.ActiveSpecialCharacters} {
		for _, c := range list {
			counts[c.Card.ID]++
		}
	}
	return counts
}
