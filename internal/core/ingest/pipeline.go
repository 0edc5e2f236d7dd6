package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"recipe-ingest/internal/core/ai/provider"
	"recipe-ingest/internal/core/checkpoint"
	"recipe-ingest/internal/core/recipe"
	"recipe-ingest/internal/core/resilience"
	"recipe-ingest/internal/core/source"
	"recipe-ingest/internal/pkg/common"
	"recipe-ingest/internal/pkg/metrics"

	"go.uber.org/zap"
)

// SourceExtractor 由來源取得原始文字
type SourceExtractor interface {
	Extract(ctx context.Context, src *source.RawSource, key string) (*source.Extraction, error)
}

// VocabularySource 分類詞彙來源
type VocabularySource interface {
	Vocabulary(ctx context.Context) recipe.Vocabulary
}

// RecipeStore 重複比對與儲存
type RecipeStore interface {
	FindDuplicates(ctx context.Context, candidate *recipe.Recipe, minScore int) ([]recipe.DuplicateMatch, error)
	Save(ctx context.Context, candidate *recipe.Recipe, resolution recipe.Resolution, targetID string) (*recipe.SaveResult, error)
}

// Dependencies 流程所需的協作者
type Dependencies struct {
	Extractor   SourceExtractor
	Normalizer  *Normalizer
	Text        provider.TextGenerator
	Executor    *resilience.Executor
	Checkpoints *checkpoint.Store
	Recipes     RecipeStore
	Categories  VocabularySource
	Metrics     *metrics.Collectors
	FloodGuard  *common.FloodGuard
}

// Options 流程參數
type Options struct {
	ExtractRetries     int
	DuplicateThreshold int
}

// CompleteRequest 儲存時的選擇；Recipe 非空時以使用者修改後的內容為準
type CompleteRequest struct {
	Resolution recipe.Resolution `json:"resolution"`
	TargetID   string            `json:"target_id,omitempty"`
	Recipe     *recipe.Recipe    `json:"recipe,omitempty"`
}

// Pipeline 分段擷取流程，每次階段轉換都寫入 checkpoint
type Pipeline struct {
	deps Dependencies
	opts Options
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*run
}

// errSessionCancelled 由 Cancel 或同一 session 的新呼叫中止時的 cause
var errSessionCancelled = errors.New("session cancelled")

type run struct {
	cancel context.CancelCauseFunc
}

// NewPipeline 創建匯入流程
func NewPipeline(deps Dependencies, opts Options) *Pipeline {
	if opts.ExtractRetries <= 0 {
		opts.ExtractRetries = 4
	}
	if opts.DuplicateThreshold <= 0 {
		opts.DuplicateThreshold = recipe.DefaultDuplicateThreshold
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop()
	}
	return &Pipeline{
		deps:     deps,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*run),
	}
}

func checkpointKey(sessionID string) string {
	return "session:" + sessionID
}

// Start 開始新的匯入，覆蓋同一 session 既有的進度，停在 OCR_REVIEW 等待確認
func (p *Pipeline) Start(ctx context.Context, sessionID string, src *source.RawSource) (*State, error) {
	if sessionID == "" {
		sessionID = common.GenerateUUID()
	}
	if src == nil {
		return nil, common.Wrap(common.ErrInvalidSource, errors.New("source is required"))
	}
	ctx, done := p.begin(ctx, sessionID)
	defer done()

	now := p.now()
	state := &State{
		SessionID: sessionID,
		Stage:     StageInput,
		Source:    SourceContext{Kind: src.Kind},
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.deps.FloodGuard.Reset(sessionID)
	p.save(ctx, state)

	p.transition(ctx, state, StageProcessing)
	started := p.now()
	text, err := p.process(ctx, state, src)
	if err != nil {
		return p.fail(ctx, state, StageInput, err)
	}
	p.observe(StageProcessing, started)

	state.Text = text
	state.setMeta("chars", len([]rune(text)))
	p.transition(ctx, state, StageOCRReview)
	common.LogInfo("來源文字已就緒",
		zap.String("session", sessionID),
		zap.String("kind", string(src.Kind)),
		zap.Int("chars", len([]rune(text))),
	)
	return state, nil
}

func (p *Pipeline) process(ctx context.Context, state *State, src *source.RawSource) (string, error) {
	extraction, err := p.deps.Extractor.Extract(ctx, src, state.SessionID)
	if err != nil {
		return "", err
	}
	state.Source.SourceURL = extraction.SourceURL
	state.Source.FileURL = extraction.FileURL
	state.Source.FileName = extraction.FileName
	state.Source.ContentType = extraction.ContentType
	return p.deps.Normalizer.Normalize(src.Kind, extraction.Text)
}

// Status 讀取目前進度
func (p *Pipeline) Status(ctx context.Context, sessionID string) (*State, error) {
	state, ok := p.load(ctx, sessionID)
	if !ok {
		return nil, common.Wrap(common.ErrNoCheckpoint, fmt.Errorf("session %s", sessionID))
	}
	return state, nil
}

// Resume 讀取進度；處理中被中斷的階段退回上一個可操作的階段
func (p *Pipeline) Resume(ctx context.Context, sessionID string) (*State, error) {
	state, err := p.Status(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if p.running(sessionID) {
		return state, nil
	}
	switch state.Stage {
	case StageProcessing:
		p.transition(ctx, state, StageInput)
	case StageExtracting:
		p.transition(ctx, state, StageOCRReview)
	}
	return state, nil
}

// Extract 以確認後的文字進行結構化與 JSON 擷取，成功後停在 RECIPE_REVIEW
func (p *Pipeline) Extract(ctx context.Context, sessionID string, editedText *string) (*State, error) {
	state, err := p.require(ctx, sessionID, StageOCRReview)
	if err != nil {
		return nil, err
	}
	if editedText != nil {
		text, err := p.deps.Normalizer.Normalize(state.Source.Kind, *editedText)
		if err != nil {
			return nil, err
		}
		state.Text = text
	}

	ctx, done := p.begin(ctx, sessionID)
	defer done()

	state.LastError = ""
	p.transition(ctx, state, StageExtracting)
	started := p.now()

	structured, err := p.generate(ctx, sessionID, "structure recipe", &provider.TextRequest{Prompt: structurePrompt(state.Text)})
	if err != nil {
		return p.fail(ctx, state, StageOCRReview, err)
	}
	state.StructuredText = strings.TrimSpace(structured)
	p.save(ctx, state)

	vocab := p.deps.Categories.Vocabulary(ctx)
	content, err := p.generate(ctx, sessionID, "extract recipe", &provider.TextRequest{
		Prompt:     extractPrompt(state.StructuredText, vocab),
		JSONSchema: recipeSchema(vocab),
	})
	if err != nil {
		return p.fail(ctx, state, StageOCRReview, err)
	}

	candidate, err := parseRecipe(content)
	if err != nil {
		return p.fail(ctx, state, StageOCRReview, err)
	}
	if candidate.SourceURL == "" {
		candidate.SourceURL = state.Source.SourceURL
	}
	state.Recipe = candidate
	state.Duplicates = p.duplicates(ctx, candidate)
	p.observe(StageExtracting, started)

	p.transition(ctx, state, StageRecipeReview)
	common.LogInfo("食譜擷取完成",
		zap.String("session", sessionID),
		zap.String("title", candidate.Title),
		zap.Int("ingredients", candidate.Ingredients.Len()),
		zap.Int("duplicates", len(state.Duplicates)),
	)
	return state, nil
}

func (p *Pipeline) generate(ctx context.Context, sessionID, name string, req *provider.TextRequest) (string, error) {
	return resilience.Execute(ctx, p.deps.Executor, func(ctx context.Context) (string, error) {
		return p.deps.Text.GenerateText(ctx, req)
	}, resilience.Options{Name: name, Key: sessionID, MaxRetries: p.opts.ExtractRetries})
}

func parseRecipe(content string) (*recipe.Recipe, error) {
	raw, err := common.ExtractJSONObject(content)
	if err != nil {
		return nil, common.Wrap(common.ErrInvalidRequest, fmt.Errorf("no recipe JSON in response: %w", err))
	}
	return recipe.ValidateJSON(raw)
}

// duplicates 比對失敗只記錄，不阻擋流程
func (p *Pipeline) duplicates(ctx context.Context, candidate *recipe.Recipe) []recipe.DuplicateMatch {
	if p.deps.Recipes == nil {
		return []recipe.DuplicateMatch{}
	}
	matches, err := p.deps.Recipes.FindDuplicates(ctx, candidate, p.opts.DuplicateThreshold)
	if err != nil {
		common.LogWarn("重複比對失敗", zap.String("title", candidate.Title), zap.Error(err))
		return []recipe.DuplicateMatch{}
	}
	return matches
}

// Back 退回上一個檢視階段
func (p *Pipeline) Back(ctx context.Context, sessionID string) (*State, error) {
	state, err := p.loadIdle(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch state.Stage {
	case StageOCRReview:
		state.Text = ""
		p.transition(ctx, state, StageInput)
	case StageRecipeReview:
		state.Recipe = nil
		state.Duplicates = nil
		state.StructuredText = ""
		p.transition(ctx, state, StageOCRReview)
	default:
		return nil, common.Wrap(common.ErrInvalidStage, fmt.Errorf("cannot go back from %s", state.Stage))
	}
	return state, nil
}

// Complete 依使用者選擇儲存食譜並清除進度
func (p *Pipeline) Complete(ctx context.Context, sessionID string, req CompleteRequest) (*State, error) {
	state, err := p.require(ctx, sessionID, StageRecipeReview)
	if err != nil {
		return nil, err
	}

	candidate := state.Recipe
	if req.Recipe != nil {
		if strings.TrimSpace(req.Recipe.Title) == "" {
			return nil, common.ErrMissingTitle
		}
		candidate = req.Recipe
	}
	if candidate == nil {
		return nil, common.Wrap(common.ErrInvalidStage, errors.New("no extracted recipe"))
	}
	ctx, done := p.begin(ctx, sessionID)
	defer done()

	if req.Resolution == "" {
		req.Resolution = recipe.ResolutionNew
	}
	targetID := req.TargetID
	if req.Resolution != recipe.ResolutionNew && targetID == "" {
		top := state.TopDuplicate()
		if top == nil {
			return nil, common.Wrap(common.ErrInvalidRequest, fmt.Errorf("%s requires a duplicate to target", req.Resolution))
		}
		targetID = top.RecipeRef
	}

	result, err := p.deps.Recipes.Save(ctx, candidate, req.Resolution, targetID)
	if err != nil {
		return nil, err
	}
	state.Recipe = result.Recipe
	state.Result = result
	state.Stage = StageComplete
	state.UpdatedAt = p.now()
	p.clear(ctx, sessionID)

	common.LogInfo("食譜匯入完成",
		zap.String("session", sessionID),
		zap.String("resolution", string(req.Resolution)),
		zap.Bool("queued", result.Queued),
	)
	return state, nil
}

// Cancel 中止進行中的呼叫並清除進度
func (p *Pipeline) Cancel(ctx context.Context, sessionID string) (*State, error) {
	cancelled := p.cancelRun(sessionID)
	state, ok := p.load(ctx, sessionID)
	if !ok {
		if !cancelled {
			return nil, common.Wrap(common.ErrNoCheckpoint, fmt.Errorf("session %s", sessionID))
		}
		state = &State{SessionID: sessionID, CreatedAt: p.now()}
	}
	state.Stage = StageCancelled
	state.UpdatedAt = p.now()
	p.clear(ctx, sessionID)
	common.LogInfo("匯入已取消", zap.String("session", sessionID))
	return state, nil
}

// require 讀取進度並確認目前階段
func (p *Pipeline) require(ctx context.Context, sessionID string, stage Stage) (*State, error) {
	state, err := p.loadIdle(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Stage != stage {
		return nil, common.Wrap(common.ErrInvalidStage, fmt.Errorf("session is in %s, expected %s", state.Stage, stage))
	}
	return state, nil
}

// loadIdle 讀取進度，執行中的 session 不允許其他操作
func (p *Pipeline) loadIdle(ctx context.Context, sessionID string) (*State, error) {
	if p.running(sessionID) {
		return nil, common.Wrap(common.ErrInvalidStage, errors.New("session is busy"))
	}
	return p.Status(ctx, sessionID)
}

// fail 退回 back 階段；請求逾時或中斷仍會退回，被 Cancel 中止的 session 則不再寫入
func (p *Pipeline) fail(ctx context.Context, state *State, back Stage, err error) (*State, error) {
	if ctx.Err() != nil {
		if errors.Is(context.Cause(ctx), errSessionCancelled) {
			return nil, err
		}
		ctx = context.WithoutCancel(ctx)
	}
	state.LastError = err.Error()
	p.transition(ctx, state, back)
	common.LogWarn("匯入階段失敗",
		zap.String("session", state.SessionID),
		zap.String("stage", string(back)),
		zap.Error(err),
	)
	return nil, err
}

func (p *Pipeline) transition(ctx context.Context, state *State, next Stage) {
	state.Stage = next
	state.UpdatedAt = p.now()
	p.save(ctx, state)
}

func (p *Pipeline) observe(stage Stage, started time.Time) {
	p.deps.Metrics.StageDuration.WithLabelValues(string(stage)).Observe(p.now().Sub(started).Seconds())
}

// save checkpoint 失敗只記錄；已取消的 session 不再寫入
func (p *Pipeline) save(ctx context.Context, state *State) {
	if ctx.Err() != nil {
		return
	}
	if err := p.deps.Checkpoints.Save(context.WithoutCancel(ctx), checkpointKey(state.SessionID), state); err != nil {
		common.LogWarn("寫入 checkpoint 失敗", zap.String("session", state.SessionID), zap.Error(err))
	}
}

// load checkpoint 讀取失敗視為沒有進度
func (p *Pipeline) load(ctx context.Context, sessionID string) (*State, bool) {
	var state State
	ok, err := p.deps.Checkpoints.Load(ctx, checkpointKey(sessionID), &state)
	if err != nil {
		common.LogWarn("讀取 checkpoint 失敗", zap.String("session", sessionID), zap.Error(err))
		return nil, false
	}
	if !ok || !state.Stage.Valid() {
		return nil, false
	}
	return &state, true
}

func (p *Pipeline) clear(ctx context.Context, sessionID string) {
	if err := p.deps.Checkpoints.Clear(context.WithoutCancel(ctx), checkpointKey(sessionID)); err != nil {
		common.LogWarn("清除 checkpoint 失敗", zap.String("session", sessionID), zap.Error(err))
	}
	p.deps.FloodGuard.Reset(sessionID)
}

// begin 登記 session 的可取消 context
func (p *Pipeline) begin(ctx context.Context, sessionID string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	r := &run{cancel: cancel}

	p.mu.Lock()
	if prev, ok := p.sessions[sessionID]; ok {
		prev.cancel(errSessionCancelled)
	}
	p.sessions[sessionID] = r
	p.mu.Unlock()

	return ctx, func() {
		cancel(nil)
		p.mu.Lock()
		if p.sessions[sessionID] == r {
			delete(p.sessions, sessionID)
		}
		p.mu.Unlock()
	}
}

func (p *Pipeline) running(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[sessionID]
	return ok
}

func (p *Pipeline) cancelRun(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.sessions[sessionID]
	if ok {
		r.cancel(errSessionCancelled)
		delete(p.sessions, sessionID)
	}
	return ok
}
