package recipe

import (
	"encoding/json"
	"slices"
)

// Difficulty 難度
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Ingredient 食材
type Ingredient struct {
	Name   string  `json:"ingredient_name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
	Notes  string  `json:"notes,omitempty"`
}

// Group 具名分組
type Group[T any] struct {
	Name  string
	Items []T
}

// Section 平面列表或具名分組，兩者互斥
type Section[T any] struct {
	grouped bool
	items   []T
	groups  []Group[T]
}

// Flat 建立平面列表
func Flat[T any](items []T) Section[T] {
	if items == nil {
		items = []T{}
	}
	return Section[T]{items: items}
}

// Grouped 建立具名分組
func Grouped[T any](groups []Group[T]) Section[T] {
	if groups == nil {
		groups = []Group[T]{}
	}
	return Section[T]{grouped: true, groups: groups}
}

// IsGrouped 是否為分組形式
func (s Section[T]) IsGrouped() bool {
	return s.grouped
}

// Items 平面列表，分組形式時為 nil
func (s Section[T]) Items() []T {
	if s.grouped {
		return nil
	}
	return s.items
}

// Groups 分組，平面形式時為 nil
func (s Section[T]) Groups() []Group[T] {
	if !s.grouped {
		return nil
	}
	return s.groups
}

// Flatten 依序攤平成單一列表，只需要總數的地方都用這個
func (s Section[T]) Flatten() []T {
	if !s.grouped {
		if s.items == nil {
			return []T{}
		}
		return s.items
	}
	out := []T{}
	for _, g := range s.groups {
		out = append(out, g.Items...)
	}
	return out
}

// Len 項目總數
func (s Section[T]) Len() int {
	return len(s.Flatten())
}

// Recipe 結構化食譜
type Recipe struct {
	ID           string
	Title        string
	Description  string
	PrepTime     int
	CookTime     int
	Servings     int
	Difficulty   Difficulty
	MealType     string
	Course       string
	Cuisine      string
	Ingredients  Section[Ingredient]
	Instructions Section[string]
	Nutrition    map[string]float64
	Tags         []string
	SourceURL    string
	ImageURL     string
	// DefaultedFields 由 Validate 補上預設值的欄位
	DefaultedFields []string
}

// 可能被補上預設值的欄位
const (
	FieldServings   = "servings"
	FieldDifficulty = "difficulty"
)

// Defaulted 欄位的值是否為 Validate 補上的預設值
func (r *Recipe) Defaulted(field string) bool {
	return slices.Contains(r.DefaultedFields, field)
}

func (r *Recipe) markDefaulted(field string) {
	if !r.Defaulted(field) {
		r.DefaultedFields = append(r.DefaultedFields, field)
	}
}

// IngredientNames 所有食材名稱
func (r *Recipe) IngredientNames() []string {
	items := r.Ingredients.Flatten()
	names := make([]string, 0, len(items))
	for _, ing := range items {
		names = append(names, ing.Name)
	}
	return names
}

type ingredientGroupJSON struct {
	Name        string       `json:"group_name"`
	Ingredients []Ingredient `json:"ingredients"`
}

type instructionGroupJSON struct {
	Name         string   `json:"group_name"`
	Instructions []string `json:"instructions"`
}

// recipeJSON 儲存與 API 使用的欄位格式
type recipeJSON struct {
	ID                string                 `json:"id,omitempty"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	PrepTime          int                    `json:"prep_time"`
	CookTime          int                    `json:"cook_time"`
	Servings          int                    `json:"servings"`
	Difficulty        Difficulty             `json:"difficulty"`
	MealType          string                 `json:"meal_type"`
	Course            string                 `json:"gang"`
	Cuisine           string                 `json:"cuisine"`
	Ingredients       []Ingredient           `json:"ingredients"`
	IngredientGroups  []ingredientGroupJSON  `json:"ingredient_groups"`
	Instructions      []string               `json:"instructions"`
	InstructionGroups []instructionGroupJSON `json:"instruction_groups"`
	Nutrition         map[string]float64     `json:"nutrition"`
	Tags              []string               `json:"tags"`
	SourceURL         string                 `json:"source_url"`
	ImageURL          string                 `json:"image_url"`
	DefaultedFields   []string               `json:"defaulted_fields,omitempty"`
}

// MarshalJSON 分組形式輸出 *_groups，同時附上攤平的列表；
// 平面形式的 *_groups 輸出空陣列，更新時才會清掉舊的分組
func (r Recipe) MarshalJSON() ([]byte, error) {
	out := recipeJSON{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		PrepTime:     r.PrepTime,
		CookTime:     r.CookTime,
		Servings:     r.Servings,
		Difficulty:   r.Difficulty,
		MealType:     r.MealType,
		Course:       r.Course,
		Cuisine:      r.Cuisine,
		Ingredients:  r.Ingredients.Flatten(),
		Instructions: r.Instructions.Flatten(),
		Nutrition:    r.Nutrition,
		Tags:         r.Tags,
		SourceURL:    r.SourceURL,
		ImageURL:     r.ImageURL,

		DefaultedFields:   r.DefaultedFields,
		IngredientGroups:  []ingredientGroupJSON{},
		InstructionGroups: []instructionGroupJSON{},
	}
	for _, g := range r.Ingredients.Groups() {
		out.IngredientGroups = append(out.IngredientGroups, ingredientGroupJSON{Name: g.Name, Ingredients: g.Items})
	}
	for _, g := range r.Instructions.Groups() {
		out.InstructionGroups = append(out.InstructionGroups, instructionGroupJSON{Name: g.Name, Instructions: g.Items})
	}
	if out.Nutrition == nil {
		out.Nutrition = map[string]float64{}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON 經過 Validate 的寬鬆解析，數字欄位可為字串
func (r *Recipe) UnmarshalJSON(data []byte) error {
	parsed, err := ValidateJSON(string(data))
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}
