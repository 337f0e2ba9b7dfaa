// Package scoring computes the points awarded for a list item.
//
// Points are only awarded once an item is marked dead: base points depend
// on the age bracket and up to deadpool.MaxBonusPoints bonus points may be
// added on top.
package scoring

import (
	"math"
	"strings"
	"unicode"

	"github.com/vvka-141/deadpool/internal/validation"
	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// ageBrackets maps inclusive upper age bounds to base points.
var ageBrackets = []struct {
	maxAge int
	points int
}{
	{20, 100},
	{40, 70},
	{60, 40},
	{80, 20},
}

// oldestBracketPoints applies above the last bracket.
const oldestBracketPoints = 10

// BasePoints returns the base points for an item of the given age.
// Items that are not dead, or whose age is unknown, earn nothing.
func BasePoints(age *int, isDead bool) int {
	if !isDead || age == nil {
		return 0
	}
	for _, b := range ageBrackets {
		if *age <= b.maxAge {
			return b.points
		}
	}
	return oldestBracketPoints
}

// ParseBonus reads the integer at the start of raw, ignoring leading
// whitespace and anything after the digits: "7.9" is 7, " 12pts" is 12,
// "0x10" is 16. Input without a leading integer is 0. Values beyond the
// int32 range saturate.
func ParseBonus(raw string) int {
	s := strings.TrimLeftFunc(raw, unicode.IsSpace)

	sign := 1
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}

	base := 10
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}

	var n int64
	for _, r := range s {
		d := digitValue(r)
		if d < 0 || d >= base {
			break
		}
		if n < math.MaxInt32 {
			n = n*int64(base) + int64(d)
		}
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	return sign * int(n)
}

func digitValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10
	default:
		return -1
	}
}

// BonusPoints returns the bonus for an item, clamped to [0, MaxBonusPoints].
// Only dead items with a bonus input earn a bonus.
func BonusPoints(raw *string, isDead bool) int {
	if !isDead || raw == nil {
		return 0
	}
	return min(max(ParseBonus(*raw), 0), deadpool.MaxBonusPoints)
}

// Compute returns the points breakdown of an update.
// A missing IsDead counts as alive.
func Compute(update deadpool.ScoreUpdate) deadpool.Points {
	isDead := update.IsDead != nil && *update.IsDead

	base := BasePoints(update.Age, isDead)
	bonus := BonusPoints(update.Bonus, isDead)
	return deadpool.Points{
		Base:  base,
		Bonus: bonus,
		Total: base + bonus,
	}
}

// Validate rejects an update without a positive list id or without an
// explicit dead/alive flag. The returned error matches deadpool.ErrValidation.
func Validate(update deadpool.ScoreUpdate) error {
	return validation.Input(update)
}
