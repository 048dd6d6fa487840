package game

// fieldZones resolves the deck, discard and active list behind a field kind.
func (t *txn) fieldZones(f Field) (deck, discard *[]Card, active *[]Combatant, err error) {
	g := &t.s.State
	switch f {
	case FieldEnemy:
		return &g.EnemyDeck, &g.EnemyDiscard, &t.s.ActiveEnemies, nil
	case FieldBoss:
		return &g.BossDeck, &g.BossDiscard, &t.s.ActiveBosses, nil
	case FieldSupport:
		return &g.SupportDeck, &g.SupportDiscard, &t.s.ActiveSupports, nil
	case FieldSpecialCharacter:
		return &g.SpecialCharacterDeck, &g.SpecialCharacterDiscard, &t.s.ActiveSpecialCharacters, nil
	default:
		return nil, nil, nil, ErrUnknownZone
	}
}

func (t *txn) combatant(a Action) error {
	deck, discard, active, err := t.fieldZones(a.Field)
	if err != nil {
		return err
	}

	switch a.Type {
	case ActDrawCombatant:
		if len(*deck) == 0 {
			return ErrEmptyDeck
		}
		card := (*deck)[0]
		*deck = (*deck)[1:]
		*active = append(*active, newCombatant(card))

	case ActFieldFromDeck:
		card, rest, ok := removeAt(*deck, a.Index)
		if !ok {
			return ErrCardNotFound
		}
		*deck = rest
		*active = append(*active, newCombatant(card))

	case ActPromote:
		card, rest, ok := removeAt(*discard, a.Index)
		if !ok {
			return ErrCardNotFound
		}
		*discard = rest
		*active = append(*active, newCombatant(card))

	case ActReturnToDeck:
		card, rest, ok := removeAt(*discard, a.Index)
		if !ok {
			return ErrCardNotFound
		}
		*discard = rest
		*deck = append(*deck, card)

	case ActDiscardCombatant:
		i := indexOfCombatant(*active, a.CombatantID)
		if i < 0 {
			return ErrCombatantNotFound
		}
		c := (*active)[i]
		*active = append((*active)[:i], (*active)[i+1:]...)
		*discard = prepend(*discard, c.Card)

	case ActCombatantHP:
		i := indexOfCombatant(*active, a.CombatantID)
		if i < 0 {
			return ErrCombatantNotFound
		}
		c := &(*active)[i]
		c.CurrentHP = max(0, c.CurrentHP+a.Delta)

	case ActBindCombatant:
		i := indexOfCombatant(*active, a.CombatantID)
		if i < 0 {
			return ErrCombatantNotFound
		}
		if a.TargetID != "" {
			if _, err := t.player(a.TargetID); err != nil {
				return err
			}
		}
		(*active)[i].BoundToPlayerID = a.TargetID
	}
	return nil
}

func newCombatant(card Card) Combatant {
	hp := card.HP
	if hp <= 0 {
		hp = 1
	}
	return Combatant{ID: newCombatantID(), Card: card, CurrentHP: hp, MaxHP: hp}
}

func indexOfCombatant(list []Combatant, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
