package party

import "github.com/MaraKorvus/lobotjr/player"

// AllowedRarity is the highest item rarity that still counts in full for a
// party synced to level. Zero means gear is not scaled at that level.
func AllowedRarity(level int) int {
	switch {
	case level < 5:
		return 1
	case level < 9:
		return 2
	case level < 12:
		return 3
	default:
		return 0
	}
}

// SyncEffect is the status effect applied to m while synced to level. Each
// equipped item above the allowed rarity keeps allowed/rarity of its stats;
// the effect is the (negative) difference.
func SyncEffect(m *player.Player, level int) player.Stats {
	allowed := AllowedRarity(level)
	if allowed == 0 {
		return player.Stats{}
	}
	var effect player.Stats
	for _, it := range m.EquippedItems() {
		if it.Rarity <= allowed {
			continue
		}
		kept := it.Stats.Scale(float64(allowed) / float64(it.Rarity))
		effect = effect.Add(kept.Sub(it.Stats))
	}
	return effect
}
