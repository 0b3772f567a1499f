package player

import "math"

// DefaultLevelCap is the highest level a player can reach.
const DefaultLevelCap = 20

// XPForLevel returns the total xp needed to reach level on the legacy curve
// xp = 4*L^3 + 50.
func XPForLevel(level int) int {
	return 4*level*level*level + 50
}

// LevelForXP inverts XPForLevel. Anything below the level 2 threshold is
// level 1.
func LevelForXP(xp int) int {
	if xp < 82 {
		return 1
	}
	return int(math.Round(math.Cbrt(float64(xp-50) / 4)))
}

// TNL is the xp a player sitting exactly at level needs for the next level.
func TNL(level int) int {
	if level < 1 {
		level = 1
	}
	return XPForLevel(level+1) - XPForLevel(level)
}
