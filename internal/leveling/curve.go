package leveling

import "unicode/utf8"

// LevelForXP is floor(xp / xpPerLevel). Non-positive inputs yield level 0.
func LevelForXP(xp int64, xpPerLevel int) int {
	if xp <= 0 || xpPerLevel <= 0 {
		return 0
	}
	return int(xp / int64(xpPerLevel))
}

func XPForLevel(level int, xpPerLevel int) int64 {
	if level <= 0 || xpPerLevel <= 0 {
		return 0
	}
	return int64(level) * int64(xpPerLevel)
}

// MessageXP computes the base grant for a message of content.
// A non-positive trigger disables the length bonus.
func MessageXP(initial, extra, trigger int, content string) int64 {
	amount := int64(initial)
	if trigger > 0 && extra != 0 {
		amount += int64(extra) * int64(utf8.RuneCountInString(content)/trigger)
	}
	if amount < 0 {
		return 0
	}
	return amount
}
