package ingredient

import (
	"strings"

	"recipe-ingest/internal/core/fuzzy"
)

// DefaultMinSimilarity 預設最低相似度
const DefaultMinSimilarity = 0.8

// Match 比對結果
type Match struct {
	Photo     *Photo          `json:"photo"`
	Score     float64         `json:"score"`
	MatchType fuzzy.MatchType `json:"match_type"`
}

// BatchResult 批次比對結果，Missing 保持輸入順序
type BatchResult struct {
	Matches map[string]*Match `json:"matches"`
	Missing []string          `json:"missing"`
}

// Index 預先正規化的圖片庫
type Index struct {
	entries []indexEntry
}

type indexEntry struct {
	photo     *Photo
	canonical string
	alts      []string
	// 只轉小寫、未去掉修飾詞的名稱，用於優先的完全相符
	rawCanonical string
	rawAlts      []string
}

// NewIndex 建立索引，保持 corpus 順序
func NewIndex(corpus []*Photo) *Index {
	idx := &Index{entries: make([]indexEntry, 0, len(corpus))}
	for _, p := range corpus {
		if p == nil {
			continue
		}
		e := indexEntry{
			photo:        p,
			canonical:    fuzzy.Normalize(p.CanonicalName),
			rawCanonical: rawKey(p.CanonicalName),
		}
		for _, alt := range p.AlternativeNames {
			if n := fuzzy.Normalize(alt); n != "" {
				e.alts = append(e.alts, n)
			}
			if r := rawKey(alt); r != "" {
				e.rawAlts = append(e.rawAlts, r)
			}
		}
		idx.entries = append(idx.entries, e)
	}
	return idx
}

// FindBestMatch 完全相符時直接回傳，原始名稱相符先於正規化後相符；
// 否則取所有模糊層級的最高分，同分取先出現者
func (idx *Index) FindBestMatch(name string, minSimilarity float64) *Match {
	n := fuzzy.Normalize(name)
	if n == "" {
		return nil
	}
	if m := idx.exact(rawKey(name), func(e *indexEntry) (string, []string) { return e.rawCanonical, e.rawAlts }); m != nil {
		return m
	}
	if m := idx.exact(n, func(e *indexEntry) (string, []string) { return e.canonical, e.alts }); m != nil {
		return m
	}

	var best *Match
	consider := func(p *Photo, candidate string) {
		score, typ := fuzzy.Compare(n, candidate)
		if best == nil || score > best.Score {
			best = &Match{Photo: p, Score: score, MatchType: typ}
		}
	}
	for _, e := range idx.entries {
		consider(e.photo, e.canonical)
		for _, alt := range e.alts {
			consider(e.photo, alt)
		}
	}
	if best == nil || best.Score < minSimilarity {
		return nil
	}
	return best
}

func (idx *Index) exact(key string, names func(*indexEntry) (string, []string)) *Match {
	if key == "" {
		return nil
	}
	for i := range idx.entries {
		if canonical, _ := names(&idx.entries[i]); canonical == key {
			return &Match{Photo: idx.entries[i].photo, Score: fuzzy.ScoreExact, MatchType: fuzzy.MatchExact}
		}
	}
	for i := range idx.entries {
		_, alts := names(&idx.entries[i])
		for _, alt := range alts {
			if alt == key {
				return &Match{Photo: idx.entries[i].photo, Score: fuzzy.ScoreExact, MatchType: fuzzy.MatchAlternative}
			}
		}
	}
	return nil
}

func rawKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// BatchMatch 逐一比對，重複的名稱只算一次
func (idx *Index) BatchMatch(names []string, minSimilarity float64) *BatchResult {
	res := &BatchResult{Matches: make(map[string]*Match), Missing: []string{}}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if m := idx.FindBestMatch(name, minSimilarity); m != nil {
			res.Matches[name] = m
		} else {
			res.Missing = append(res.Missing, name)
		}
	}
	return res
}

// FindBestMatch 對 corpus 比對單一名稱
func FindBestMatch(name string, corpus []*Photo, minSimilarity float64) *Match {
	return NewIndex(corpus).FindBestMatch(name, minSimilarity)
}

// BatchMatch 對 corpus 比對多個名稱
func BatchMatch(names []string, corpus []*Photo, minSimilarity float64) *BatchResult {
	return NewIndex(corpus).BatchMatch(names, minSimilarity)
}
