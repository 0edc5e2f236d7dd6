package recipe

import (
	"fmt"

	"recipe-ingest/internal/pkg/common"
)

// Resolution 儲存時對重複食譜的處理方式
type Resolution string

const (
	ResolutionNew     Resolution = "new"
	ResolutionMerge   Resolution = "merge"
	ResolutionReplace Resolution = "replace"
)

// ParseResolution 空字串視為 new
func ParseResolution(s string) (Resolution, error) {
	switch Resolution(s) {
	case "", ResolutionNew:
		return ResolutionNew, nil
	case ResolutionMerge, ResolutionReplace:
		return Resolution(s), nil
	default:
		return "", common.Wrap(common.ErrInvalidRequest, fmt.Errorf("unknown resolution %q", s))
	}
}

// Merge 以候選食譜的非空欄位覆蓋既有食譜，保留既有 id。
// Validate 補上的預設值只填補既有食譜的空欄位
func Merge(existing, candidate *Recipe) *Recipe {
	out := *existing
	if candidate.Title != "" {
		out.Title = candidate.Title
	}
	if candidate.Description != "" {
		out.Description = candidate.Description
	}
	if candidate.PrepTime > 0 {
		out.PrepTime = candidate.PrepTime
	}
	if candidate.CookTime > 0 {
		out.CookTime = candidate.CookTime
	}
	if candidate.Servings > 0 && (!candidate.Defaulted(FieldServings) || existing.Servings <= 0) {
		out.Servings = candidate.Servings
	}
	if candidate.Difficulty != "" && (!candidate.Defaulted(FieldDifficulty) || existing.Difficulty == "") {
		out.Difficulty = candidate.Difficulty
	}
	if candidate.MealType != "" {
		out.MealType = candidate.MealType
	}
	if candidate.Course != "" {
		out.Course = candidate.Course
	}
	if candidate.Cuisine != "" {
		out.Cuisine = candidate.Cuisine
	}
	if candidate.Ingredients.Len() > 0 {
		out.Ingredients = candidate.Ingredients
	}
	if candidate.Instructions.Len() > 0 {
		out.Instructions = candidate.Instructions
	}
	if len(candidate.Nutrition) > 0 {
		out.Nutrition = candidate.Nutrition
	}
	if len(candidate.Tags) > 0 {
		out.Tags = candidate.Tags
	}
	if candidate.SourceURL != "" {
		out.SourceURL = candidate.SourceURL
	}
	if candidate.ImageURL != "" {
		out.ImageURL = candidate.ImageURL
	}
	out.ID = existing.ID
	out.DefaultedFields = nil
	return &out
}

// Replace 整筆覆寫，保留既有 id
func Replace(existing, candidate *Recipe) *Recipe {
	out := *candidate
	out.ID = existing.ID
	return &out
}
