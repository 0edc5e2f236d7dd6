// Package fuzzy 食材名稱正規化與相似度計算
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"
)

var parenthetical = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

// 處理方式與顏色等不影響食材本身的修飾詞
var stopwords = map[string]bool{
	// English
	"chopped": true, "diced": true, "minced": true, "sliced": true, "grated": true,
	"fresh": true, "frozen": true, "raw": true, "cooked": true, "dried": true,
	"peeled": true, "large": true, "small": true,
	"red": true, "green": true, "yellow": true, "white": true, "black": true,
	// Deutsch
	"gehackt": true, "gehackte": true, "gehackter": true, "gewürfelt": true, "gewürfelte": true,
	"frisch": true, "frische": true, "frischer": true, "frisches": true,
	"gefroren": true, "tiefgekühlt": true, "roh": true, "gekocht": true, "gekochte": true,
	"getrocknet": true, "getrocknete": true, "geschält": true, "geschälte": true,
	"rot": true, "rote": true, "roter": true, "grün": true, "grüne": true, "grüner": true,
	"gelb": true, "gelbe": true, "gelber": true, "weiß": true, "weiße": true, "weißer": true,
	"schwarz": true, "schwarze": true, "schwarzer": true,
}

// Normalize 小寫、去括號註解、連字號轉空白、移除修飾詞並壓縮空白；結果為冪等
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = parenthetical.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !stopwords[w] {
			kept = append(kept, w)
		}
	}
	// 只剩修飾詞時保留原字，避免把 "Rot" 之類的名稱清成空字串
	if len(kept) == 0 {
		return strings.Join(words, " ")
	}
	return strings.Join(kept, " ")
}

// Tokens 正規化後的詞
func Tokens(name string) []string {
	return strings.Fields(Normalize(name))
}

// IsModifier 是否為處理方式或顏色等修飾詞
func IsModifier(word string) bool {
	return stopwords[strings.ToLower(word)]
}
