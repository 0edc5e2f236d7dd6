package fuzzy

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Distance 以 rune 計算 Levenshtein 距離
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Similarity 1 - distance/maxLength，兩者皆空時為 1
func Similarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(Distance(a, b))/float64(maxLen)
}
