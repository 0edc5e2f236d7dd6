package recipe

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"recipe-ingest/internal/core/fuzzy"
)

// DefaultDuplicateThreshold 重複判定門檻
const DefaultDuplicateThreshold = 65

// 分數權重：100 × (titleWeight·t + ingredientWeight·i + bothWeight·t·i)
const (
	titleWeight      = 0.45
	ingredientWeight = 0.55
	bothWeight       = 0.5
	// sameIngredient 兩個食材名稱視為相同的最低分數
	sameIngredient = 0.85
	// titleBaseline 以下的標題相似度視為無關；不相關的德文標題常有 0.4 左右的編輯距離相似度
	titleBaseline = 0.4
)

// DuplicateMatch 候選食譜與既有食譜的相似結果
type DuplicateMatch struct {
	RecipeRef             string  `json:"recipe_ref"`
	Title                 string  `json:"title"`
	Score                 int     `json:"score"`
	CommonIngredientCount int     `json:"common_ingredient_count"`
	TotalIngredientCount  int     `json:"total_ingredient_count"`
	Recipe                *Recipe `json:"-"`
}

// FindDuplicates 依分數遞減排序，同分保留 corpus 原順序
func FindDuplicates(candidate *Recipe, corpus []*Recipe, minScore int) []DuplicateMatch {
	matches := []DuplicateMatch{}
	if candidate == nil {
		return matches
	}
	for _, existing := range corpus {
		if existing == nil || (candidate.ID != "" && existing.ID == candidate.ID) {
			continue
		}
		score, common, total := Score(candidate, existing)
		if score < minScore {
			continue
		}
		matches = append(matches, DuplicateMatch{
			RecipeRef:             existing.ID,
			Title:                 existing.Title,
			Score:                 score,
			CommonIngredientCount: common,
			TotalIngredientCount:  total,
			Recipe:                existing,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Score 計算 0-100 的重複分數，並回傳共同食材數與聯集食材數
func Score(a, b *Recipe) (score int, common int, total int) {
	t := titleSimilarity(a.Title, b.Title)
	common, total = ingredientOverlap(a.IngredientNames(), b.IngredientNames())
	var i float64
	if total > 0 {
		i = float64(common) / float64(total)
	}
	raw := 100 * (titleWeight*t + ingredientWeight*i + bothWeight*t*i)
	return int(math.Round(math.Min(100, math.Max(0, raw)))), common, total
}

// titleSimilarity 將編輯距離相似度從 titleBaseline..1 重新映射到 0..1
func titleSimilarity(a, b string) float64 {
	raw := fuzzy.Similarity(titleKey(a), titleKey(b))
	return math.Max(0, (raw-titleBaseline)/(1-titleBaseline))
}

func titleKey(title string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, title)
	return strings.Join(strings.Fields(s), " ")
}

// ingredientOverlap 以模糊比對一對一配對食材，回傳配對數與聯集大小
func ingredientOverlap(a, b []string) (int, int) {
	na, nb := uniqueNormalized(a), uniqueNormalized(b)
	used := make([]bool, len(nb))
	common := 0
	for _, x := range na {
		best, bestScore := -1, 0.0
		for j, y := range nb {
			if used[j] {
				continue
			}
			s, _ := fuzzy.Compare(x, y)
			if s > bestScore {
				best, bestScore = j, s
			}
		}
		if best >= 0 && bestScore >= sameIngredient {
			used[best] = true
			common++
		}
	}
	return common, len(na) + len(nb) - common
}

func uniqueNormalized(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		k := fuzzy.Normalize(n)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
