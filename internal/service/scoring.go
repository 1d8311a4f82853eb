package service

import (
	"math"
	"time"

	"github.com/lexamine/lexam-backend/internal/model"
)

// passEpsilon absorbs float accumulation error at the pass boundary.
const passEpsilon = 1e-6

// normalizeChosen maps a submitted answer onto option numbers. Judgment items
// use a true/false answer code on the wire: 1 means the first option slot,
// 0 means the second. Every other value, and every value on non-judgment
// items, passes through unchanged.
func normalizeChosen(typeID int, chosen []int32) []int32 {
	if typeID != model.ItemTypeJudgment {
		return chosen
	}
	out := make([]int32, len(chosen))
	for i, v := range chosen {
		switch v {
		case 1:
			out[i] = 1
		case 0:
			out[i] = 2
		default:
			out[i] = v
		}
	}
	return out
}

// gradeItem grades one answered item against its key. The chosen set must
// equal the correct set exactly; a superset or subset earns nothing. An item
// with no key, or an empty answer, never scores.
func gradeItem(item *model.PaperItem, chosen []int32) (correct bool, score float64) {
	correctSet := item.CorrectSet()
	normalized := normalizeChosen(item.TypeID, chosen)

	chosenSet := make(map[int32]struct{}, len(normalized))
	for _, v := range normalized {
		chosenSet[v] = struct{}{}
	}

	if len(correctSet) == 0 || len(chosenSet) == 0 {
		return false, 0
	}
	if len(chosenSet) != len(correctSet) {
		return false, 0
	}
	for v := range chosenSet {
		if _, ok := correctSet[v]; !ok {
			return false, 0
		}
	}
	return true, item.Score
}

// isPassing compares a total against the pass mark with epsilon tolerance,
// so an exact-boundary total never fails on float noise.
func isPassing(total, passScore float64) bool {
	return total >= passScore-passEpsilon
}

// durationMinutes returns whole minutes between start and submit, clamped at
// zero. A nil start yields nil; the score row keeps the column null.
func durationMinutes(start *time.Time, submit time.Time) *int {
	if start == nil {
		return nil
	}
	mins := int(math.Floor(submit.Sub(*start).Minutes()))
	if mins < 0 {
		mins = 0
	}
	return &mins
}
