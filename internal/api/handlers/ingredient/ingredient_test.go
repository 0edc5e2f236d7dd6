package ingredient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recipe-ingest/internal/core/fuzzy"
	core "recipe-ingest/internal/core/ingredient"
	"recipe-ingest/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	common.InitNopLogger()
}

type fakeService struct {
	minSimilarity float64
	ensure        *core.EnsureResult
	added         []string
}

func (f *fakeService) Resolve(_ context.Context, names []string, minSimilarity float64) (*core.BatchResult, error) {
	f.minSimilarity = minSimilarity
	res := &core.BatchResult{Matches: map[string]*core.Match{}, Missing: []string{}}
	for _, n := range names {
		if strings.EqualFold(n, "tomate") {
			res.Matches[n] = &core.Match{Photo: &core.Photo{ID: "p1", CanonicalName: "tomate"}, Score: 1, MatchType: fuzzy.MatchExact}
			continue
		}
		res.Missing = append(res.Missing, n)
	}
	return res, nil
}

func (f *fakeService) EnsurePhoto(_ context.Context, name string) (*core.EnsureResult, error) {
	return f.ensure, nil
}

func (f *fakeService) GenerateAlternatives(_ context.Context, name string) ([]string, error) {
	if name == "" {
		return nil, common.ErrInvalidRequest
	}
	return []string{name + "n"}, nil
}

func (f *fakeService) AddAlternativeNames(_ context.Context, id string, names []string) (*core.Photo, error) {
	if id != "p1" {
		return nil, common.ErrNotFound
	}
	f.added = names
	return &core.Photo{ID: id, AlternativeNames: names}, nil
}

func newRouter(svc *fakeService) *gin.Engine {
	r := gin.New()
	NewHandler(svc).Register(r.Group("/api/v1/ingredients"))
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestMatch(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	w := post(r, "/api/v1/ingredients/match", `{"names":["Tomate","Safran"],"min_similarity":0.9}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 0.9, svc.minSimilarity)

	var res core.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, "p1", res.Matches["Tomate"].Photo.ID)
	require.Equal(t, []string{"Safran"}, res.Missing)

	w = post(r, "/api/v1/ingredients/match", `{"names":["x"],"min_similarity":2}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/api/v1/ingredients/match", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnsurePhotoStatus(t *testing.T) {
	tests := []struct {
		name   string
		result *core.EnsureResult
		status int
	}{
		{"existing", &core.EnsureResult{Photo: &core.Photo{ID: "p1"}}, http.StatusOK},
		{"created", &core.EnsureResult{Photo: &core.Photo{ID: "p2"}, Created: true}, http.StatusCreated},
		{"queued", &core.EnsureResult{Photo: &core.Photo{}, Created: true, Queued: true}, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&fakeService{ensure: tt.result})
			w := post(r, "/api/v1/ingredients/photos", `{"name":"Paprika"}`)
			require.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAlternatives(t *testing.T) {
	r := newRouter(&fakeService{})

	w := post(r, "/api/v1/ingredients/alternatives", `{"name":"Zwiebel"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res AlternativesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, []string{"Zwiebeln"}, res.Alternatives)
}

func TestAddAlternatives(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	w := post(r, "/api/v1/ingredients/photos/p1/alternatives", `{"names":["zwiebeln"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"zwiebeln"}, svc.added)

	w = post(r, "/api/v1/ingredients/photos/zzz/alternatives", `{"names":["a"]}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}
