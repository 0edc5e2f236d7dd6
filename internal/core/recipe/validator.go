package recipe

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"recipe-ingest/internal/pkg/common"
)

// DefaultServings servings 缺少或不合法時的預設值
const DefaultServings = 4

// ValidateJSON 解析 JSON 後執行 Validate
func ValidateJSON(content string) (*Recipe, error) {
	var raw map[string]any
	if err := common.ParseJSON(content, &raw); err != nil {
		return nil, common.Wrap(common.ErrInvalidRequest, fmt.Errorf("invalid recipe JSON: %w", err))
	}
	return Validate(raw)
}

// Validate 補齊預設值並轉換型別；只有缺少標題會失敗
func Validate(raw map[string]any) (*Recipe, error) {
	title := strings.TrimSpace(toString(raw["title"]))
	if title == "" {
		return nil, common.ErrMissingTitle
	}

	r := &Recipe{
		ID:          toString(raw["id"]),
		Title:       title,
		Description: strings.TrimSpace(toString(raw["description"])),
		PrepTime:    nonNegativeInt(raw["prep_time"]),
		CookTime:    nonNegativeInt(raw["cook_time"]),
		Servings:    nonNegativeInt(raw["servings"]),
		MealType:    strings.TrimSpace(toString(raw["meal_type"])),
		Course:      strings.TrimSpace(toString(raw["gang"])),
		Cuisine:     strings.TrimSpace(toString(raw["cuisine"])),
		Nutrition:   toNutrition(raw["nutrition"]),
		Tags:        toStrings(raw["tags"]),
		SourceURL:   strings.TrimSpace(toString(raw["source_url"])),
		ImageURL:    strings.TrimSpace(toString(raw["image_url"])),
	}
	if r.Servings <= 0 {
		r.Servings = DefaultServings
		r.markDefaulted(FieldServings)
	}
	difficulty, ok := toDifficulty(raw["difficulty"])
	r.Difficulty = difficulty
	if !ok {
		r.markDefaulted(FieldDifficulty)
	}
	// 重新解析自己輸出的 JSON 時保留原本的預設標記
	for _, f := range toStrings(raw["defaulted_fields"]) {
		if f == FieldServings || f == FieldDifficulty {
			r.markDefaulted(f)
		}
	}

	// 分組優先於平面列表
	if groups := toIngredientGroups(raw["ingredient_groups"]); len(groups) > 0 {
		r.Ingredients = Grouped(groups)
	} else {
		r.Ingredients = Flat(toIngredients(raw["ingredients"]))
	}
	if groups := toInstructionGroups(raw["instruction_groups"]); len(groups) > 0 {
		r.Instructions = Grouped(groups)
	} else {
		r.Instructions = Flat(toStrings(raw["instructions"]))
	}
	return r, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// toFloat 非數字一律為 0，接受 "1,5" 這類逗號小數
func toFloat(v any) float64 {
	var f float64
	switch t := v.(type) {
	case json.Number:
		f, _ = t.Float64()
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		parsed, err := strconv.ParseFloat(s, 64)
		if err == nil {
			f = parsed
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func nonNegativeFloat(v any) float64 {
	return math.Max(0, toFloat(v))
}

func nonNegativeInt(v any) int {
	return int(math.Round(nonNegativeFloat(v)))
}

// toDifficulty 無法辨識時回傳 medium 與 false
func toDifficulty(v any) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(toString(v))) {
	case "easy", "einfach", "leicht":
		return DifficultyEasy, true
	case "medium", "mittel", "normal":
		return DifficultyMedium, true
	case "hard", "schwer", "anspruchsvoll":
		return DifficultyHard, true
	default:
		return DifficultyMedium, false
	}
}

func toStrings(v any) []string {
	out := []string{}
	list, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range list {
		var s string
		switch t := item.(type) {
		case map[string]any:
			// {"step": "..."} 或 {"text": "..."}
			s = firstString(t, "step", "text", "instruction", "description")
		default:
			s = toString(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := toString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func toNutrition(v any) map[string]float64 {
	out := map[string]float64{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range m {
		out[k] = nonNegativeFloat(val)
	}
	return out
}

func toIngredients(v any) []Ingredient {
	out := []Ingredient{}
	list, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range list {
		var ing Ingredient
		switch t := item.(type) {
		case string:
			ing.Name = strings.TrimSpace(t)
		case map[string]any:
			ing = Ingredient{
				Name:   strings.TrimSpace(firstString(t, "ingredient_name", "name")),
				Amount: nonNegativeFloat(t["amount"]),
				Unit:   strings.TrimSpace(toString(t["unit"])),
				Notes:  strings.TrimSpace(toString(t["notes"])),
			}
		}
		if ing.Name != "" {
			out = append(out, ing)
		}
	}
	return out
}

func toIngredientGroups(v any) []Group[Ingredient] {
	var out []Group[Ingredient]
	list, _ := v.([]any)
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		items := toIngredients(m["ingredients"])
		if len(items) == 0 {
			continue
		}
		out = append(out, Group[Ingredient]{Name: strings.TrimSpace(firstString(m, "group_name", "name")), Items: items})
	}
	return out
}

func toInstructionGroups(v any) []Group[string] {
	var out []Group[string]
	list, _ := v.([]any)
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		items := toStrings(m["instructions"])
		if len(items) == 0 {
			continue
		}
		out = append(out, Group[string]{Name: strings.TrimSpace(firstString(m, "group_name", "name")), Items: items})
	}
	return out
}
