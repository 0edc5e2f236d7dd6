package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	core "recipe-ingest/internal/core/ingest"
	"recipe-ingest/internal/core/recipe"
	"recipe-ingest/internal/core/source"
	"recipe-ingest/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	common.InitNopLogger()
}

type fakePipeline struct {
	started   *source.RawSource
	sessionID string
	edited    *string
	complete  core.CompleteRequest
	queued    bool
	err       error
}

func (f *fakePipeline) state(id string, stage core.Stage) (*core.State, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.State{SessionID: id, Stage: stage}, nil
}

func (f *fakePipeline) Start(_ context.Context, id string, src *source.RawSource) (*core.State, error) {
	f.started, f.sessionID = src, id
	return f.state(id, core.StageOCRReview)
}

func (f *fakePipeline) Resume(_ context.Context, id string) (*core.State, error) {
	return f.state(id, core.StageOCRReview)
}

func (f *fakePipeline) Extract(_ context.Context, id string, text *string) (*core.State, error) {
	f.edited = text
	return f.state(id, core.StageRecipeReview)
}

func (f *fakePipeline) Back(_ context.Context, id string) (*core.State, error) {
	return f.state(id, core.StageOCRReview)
}

func (f *fakePipeline) Complete(_ context.Context, id string, req core.CompleteRequest) (*core.State, error) {
	f.complete = req
	st, err := f.state(id, core.StageComplete)
	if err != nil {
		return nil, err
	}
	st.Result = &recipe.SaveResult{Resolution: req.Resolution, Queued: f.queued}
	return st, nil
}

func (f *fakePipeline) Cancel(_ context.Context, id string) (*core.State, error) {
	return f.state(id, core.StageCancelled)
}

type fakeBatches struct {
	submitted []*source.RawSource
}

func (f *fakeBatches) Submit(_ context.Context, sources []*source.RawSource) (*core.Batch, error) {
	f.submitted = sources
	return &core.Batch{ID: "b1", Items: make([]core.BatchItem, len(sources))}, nil
}

func (f *fakeBatches) Batch(id string) (*core.Batch, error) {
	if id != "b1" {
		return nil, common.ErrNotFound
	}
	return &core.Batch{ID: id}, nil
}

func newRouter(p *fakePipeline, b *fakeBatches) *gin.Engine {
	r := gin.New()
	NewHandler(p, b).Register(r.Group("/api/v1/ingest"))
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestStartWithText(t *testing.T) {
	p := &fakePipeline{}
	r := newRouter(p, &fakeBatches{})

	w := doJSON(r, http.MethodPost, "/api/v1/ingest", `{"session_id":"s1","text":"Zwiebeln schneiden"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "s1", p.sessionID)
	require.Equal(t, source.KindText, p.started.Kind)

	var st core.State
	decodeBody(t, w, &st)
	require.Equal(t, core.StageOCRReview, st.Stage)
}

func TestStartRejectsAmbiguousSource(t *testing.T) {
	r := newRouter(&fakePipeline{}, &fakeBatches{})

	w := doJSON(r, http.MethodPost, "/api/v1/ingest", `{"text":"a","url":"https://example.com"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp common.ErrorResponse
	decodeBody(t, w, &resp)
	require.Equal(t, common.ErrInvalidSource.Code, resp.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/ingest", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartWithMultipartFile(t *testing.T) {
	p := &fakePipeline{}
	r := newRouter(p, &fakeBatches{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("session_id", "scan"))
	fw, err := mw.CreateFormFile("file", "rezept.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "scan", p.sessionID)
	require.Equal(t, source.KindFile, p.started.Kind)
	require.Equal(t, "rezept.pdf", p.started.FileName)
}

func TestExtractPassesEditedText(t *testing.T) {
	p := &fakePipeline{}
	r := newRouter(p, &fakeBatches{})

	w := doJSON(r, http.MethodPost, "/api/v1/ingest/s1/extract", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, p.edited)

	w = doJSON(r, http.MethodPost, "/api/v1/ingest/s1/extract", `{"text":"neu"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, p.edited)
	require.Equal(t, "neu", *p.edited)
}

func TestCompleteStatusReflectsQueue(t *testing.T) {
	p := &fakePipeline{}
	r := newRouter(p, &fakeBatches{})

	w := doJSON(r, http.MethodPost, "/api/v1/ingest/s1/complete", `{"resolution":"merge","target_id":"r1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, recipe.ResolutionMerge, p.complete.Resolution)
	require.Equal(t, "r1", p.complete.TargetID)

	p.queued = true
	w = doJSON(r, http.MethodPost, "/api/v1/ingest/s1/complete", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, recipe.ResolutionNew, p.complete.Resolution)

	w = doJSON(r, http.MethodPost, "/api/v1/ingest/s1/complete", `{"resolution":"overwrite"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPipelineErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		method string
		path   string
		status int
	}{
		{"stage", common.ErrInvalidStage, http.MethodPost, "/api/v1/ingest/s1/back", http.StatusConflict},
		{"missing", common.ErrNoCheckpoint, http.MethodGet, "/api/v1/ingest/s1", http.StatusNotFound},
		{"exhausted", common.Wrap(common.ErrRetryExhausted, context.DeadlineExceeded), http.MethodPost, "/api/v1/ingest/s1/extract", http.StatusServiceUnavailable},
		{"cancelled", context.Canceled, http.MethodDelete, "/api/v1/ingest/s1", 499},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&fakePipeline{err: tt.err}, &fakeBatches{})
			w := doJSON(r, tt.method, tt.path, "")
			require.Equal(t, tt.status, w.Code)
		})
	}
}

func TestBatchSubmitAndStatus(t *testing.T) {
	b := &fakeBatches{}
	r := newRouter(&fakePipeline{}, b)

	w := doJSON(r, http.MethodPost, "/api/v1/ingest/batch", `{"items":[{"text":"eins"},{"url":"https://example.com/r"}]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, b.submitted, 2)
	require.Equal(t, source.KindURL, b.submitted[1].Kind)

	w = doJSON(r, http.MethodGet, "/api/v1/ingest/batch/b1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/ingest/batch/zzz", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/ingest/batch", `{"items":[{"text":"eins"},{}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
