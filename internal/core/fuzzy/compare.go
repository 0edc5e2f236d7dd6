package fuzzy

import (
	"strings"
	"unicode/utf8"
)

// MatchType 比對方式
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchAlternative MatchType = "alternative"
	MatchSubstring   MatchType = "substring"
	MatchToken       MatchType = "token"
	MatchTokenFuzzy  MatchType = "token_fuzzy"
	MatchFuzzy       MatchType = "fuzzy"
)

// 各層級的固定分數
const (
	ScoreExact      = 1.0
	ScoreSubstring  = 0.95
	ScoreToken      = 0.90
	ScoreTokenFuzzy = 0.85

	// MinSubstringLength 子字串比對的最短長度
	MinSubstringLength = 4
	// TokenSimilarity 單詞相似度門檻
	TokenSimilarity = 0.85
)

// Compare 比較兩個已正規化的名稱，回傳所有層級中的最高分；同分時取較強的層級
func Compare(a, b string) (float64, MatchType) {
	if a == "" || b == "" {
		return 0, MatchFuzzy
	}
	if a == b {
		return ScoreExact, MatchExact
	}

	best, typ := Similarity(a, b), MatchFuzzy
	ta, tb := strings.Fields(a), strings.Fields(b)
	if ScoreTokenFuzzy >= best && tokensSimilar(ta, tb) {
		best, typ = ScoreTokenFuzzy, MatchTokenFuzzy
	}
	if ScoreToken >= best && (tokensContained(ta, tb) || tokensContained(tb, ta)) {
		best, typ = ScoreToken, MatchToken
	}
	if ScoreSubstring >= best && containsEither(a, b) {
		best, typ = ScoreSubstring, MatchSubstring
	}
	return best, typ
}

// PairScore 比較兩個原始名稱的分數
func PairScore(a, b string) float64 {
	score, _ := Compare(Normalize(a), Normalize(b))
	return score
}

func containsEither(a, b string) bool {
	shorter, longer := a, b
	if utf8.RuneCountInString(a) > utf8.RuneCountInString(b) {
		shorter, longer = b, a
	}
	if utf8.RuneCountInString(shorter) < MinSubstringLength {
		return false
	}
	return strings.Contains(longer, shorter)
}

// tokensContained sub 的每個詞都出現在 set 中
func tokensContained(sub, set []string) bool {
	if len(sub) == 0 {
		return false
	}
	seen := make(map[string]bool, len(set))
	for _, t := range set {
		seen[t] = true
	}
	for _, t := range sub {
		if !seen[t] {
			return false
		}
	}
	return true
}

// tokensSimilar 較短一方的每個詞都能在另一方找到相似度達門檻的詞
func tokensSimilar(ta, tb []string) bool {
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	short, long := ta, tb
	if len(ta) > len(tb) {
		short, long = tb, ta
	}
	for _, s := range short {
		found := false
		for _, l := range long {
			if Similarity(s, l) >= TokenSimilarity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
