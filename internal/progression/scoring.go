package progression

// BonusDoublePoints is the active-bonus key that doubles single-player winnings.
const BonusDoublePoints = "double_points"

const (
	minPoints       = 10
	basePoints      = 100
	pointsPerGuess  = 10
	pointsPerStreak = 5
)

// PointsFor computes the award for a correct guess.
//
//	base   = max(10, (100 - 10*attemptsUsed) * level)
//	points = base + 5*streak
//
// streak is the player's current streak before this win. attemptsUsed >= 1 is
// the caller's responsibility. The second argument is the session budget; it
// does not change the result.
func PointsFor(attemptsUsed, _, streak, level int) int {
	base := (basePoints - pointsPerGuess*attemptsUsed) * level
	if base < minPoints {
		base = minPoints
	}
	if streak < 0 {
		streak = 0
	}
	return base + pointsPerStreak*streak
}

// Bonuses is the part of a player record the double-points bonus touches.
type Bonuses interface {
	// BonusUses returns the remaining uses of bonus.
	BonusUses(bonus string) int
	// SpendBonus decrements bonus, removing it at zero.
	SpendBonus(bonus string)
}

// ApplyDoubleBonus doubles points when the player holds a double-points charge
// and spends one charge. It reports whether the bonus applied.
func ApplyDoubleBonus(b Bonuses, points int) (int, bool) {
	if b.BonusUses(BonusDoublePoints) <= 0 {
		return points, false
	}
	b.SpendBonus(BonusDoublePoints)
	return points * 2, true
}

// PvP winnings are 150% of the single-player award with no streak, kept as a
// ratio so the score never carries a fraction.
const (
	pvpBonusNum = 3
	pvpBonusDen = 2
)

// PvPAward returns the points a match winner receives, rounded down once.
func PvPAward(attemptsUsed, maxAttempts, level int) int {
	return PointsFor(attemptsUsed, maxAttempts, 0, level) * pvpBonusNum / pvpBonusDen
}
