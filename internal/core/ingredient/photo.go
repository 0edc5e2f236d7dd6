// Package ingredient 食材圖片比對與別名產生
package ingredient

import (
	"strings"

	"recipe-ingest/internal/core/entity"
	"recipe-ingest/internal/pkg/common"
)

// Photo 食材圖片紀錄
type Photo struct {
	ID               string   `json:"id,omitempty"`
	CanonicalName    string   `json:"canonical_name"`
	AlternativeNames []string `json:"alternative_names"`
	ImageURL         string   `json:"image_url"`
	IsGenerated      bool     `json:"is_generated"`
}

// CanonicalName 主要名稱一律小寫
func CanonicalName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// MergeNames 將 add 併入 existing，不分大小寫去重並保持原順序
func MergeNames(existing []string, add ...string) []string {
	out := make([]string, 0, len(existing)+len(add))
	seen := make(map[string]bool, len(existing)+len(add))
	for _, n := range append(append([]string{}, existing...), add...) {
		n = strings.TrimSpace(n)
		k := strings.ToLower(n)
		if n == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	return out
}

func photoFromRecord(rec entity.Record) (*Photo, error) {
	var p Photo
	if err := common.Remarshal(rec, &p); err != nil {
		return nil, err
	}
	if p.AlternativeNames == nil {
		p.AlternativeNames = []string{}
	}
	return &p, nil
}

func photoToRecord(p *Photo) (entity.Record, error) {
	var rec entity.Record
	if err := common.Remarshal(p, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}
