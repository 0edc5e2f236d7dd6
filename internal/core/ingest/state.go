package ingest

import (
	"time"

	"recipe-ingest/internal/core/recipe"
	"recipe-ingest/internal/core/source"
)

// Stage 匯入階段，依序前進
type Stage string

const (
	StageInput        Stage = "INPUT"
	StageProcessing   Stage = "PROCESSING"
	StageOCRReview    Stage = "OCR_REVIEW"
	StageExtracting   Stage = "EXTRACTING"
	StageRecipeReview Stage = "RECIPE_REVIEW"
	StageComplete     Stage = "COMPLETE"
	StageCancelled    Stage = "CANCELLED"
)

var stageOrder = map[Stage]int{
	StageInput:        0,
	StageProcessing:   1,
	StageOCRReview:    2,
	StageExtracting:   3,
	StageRecipeReview: 4,
	StageComplete:     5,
	StageCancelled:    5,
}

// Terminal 是否為終止階段
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageCancelled
}

// Valid 是否為已知階段
func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Before 是否在 other 之前
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

// SourceContext 來源資訊，隨狀態保存
type SourceContext struct {
	Kind        source.Kind `json:"kind"`
	SourceURL   string      `json:"source_url,omitempty"`
	FileURL     string      `json:"file_url,omitempty"`
	FileName    string      `json:"file_name,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	BatchID     string      `json:"batch_id,omitempty"`
}

// State 匯入進度，每次階段轉換都會寫入 checkpoint
type State struct {
	SessionID      string                  `json:"session_id"`
	Stage          Stage                   `json:"stage"`
	Text           string                  `json:"text,omitempty"`
	StructuredText string                  `json:"structured_text,omitempty"`
	Metadata       map[string]any          `json:"metadata,omitempty"`
	Recipe         *recipe.Recipe          `json:"extracted_recipe,omitempty"`
	Duplicates     []recipe.DuplicateMatch `json:"duplicates,omitempty"`
	Source         SourceContext           `json:"source_context"`
	LastError      string                  `json:"last_error,omitempty"`
	Result         *recipe.SaveResult      `json:"result,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

func (s *State) setMeta(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
}

// TopDuplicate 分數最高的重複候選
func (s *State) TopDuplicate() *recipe.DuplicateMatch {
	if len(s.Duplicates) == 0 {
		return nil
	}
	return &s.Duplicates[0]
}
