package recipe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	core "recipe-ingest/internal/core/recipe"
	"recipe-ingest/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	common.InitNopLogger()
}

type corpusFinder struct {
	corpus   []*core.Recipe
	minScore int
}

func (f *corpusFinder) FindDuplicates(_ context.Context, candidate *core.Recipe, minScore int) ([]core.DuplicateMatch, error) {
	f.minScore = minScore
	return core.FindDuplicates(candidate, f.corpus, minScore), nil
}

func newFinder() *corpusFinder {
	return &corpusFinder{corpus: []*core.Recipe{{
		ID:    "r1",
		Title: "Tomatensuppe",
		Ingredients: core.Flat([]core.Ingredient{
			{Name: "Tomate"},
			{Name: "Zwiebel"},
		}),
	}}}
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recipes/duplicates", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func newRouter(f Finder) *gin.Engine {
	r := gin.New()
	NewHandler(f, 0).Register(r.Group("/api/v1/recipes"))
	return r
}

func TestDuplicatesFindsMatch(t *testing.T) {
	f := newFinder()
	r := newRouter(f)

	w := post(r, `{"recipe":{"title":"Tomatensuppe","ingredients":["Tomaten",{"name":"Zwiebel"}]}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, core.DefaultDuplicateThreshold, f.minScore)

	var resp DuplicatesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Duplicates, 1)
	require.Equal(t, "r1", resp.Duplicates[0].RecipeRef)
	require.Equal(t, 2, resp.Duplicates[0].CommonIngredientCount)
}

func TestDuplicatesEmptyList(t *testing.T) {
	r := newRouter(newFinder())

	w := post(r, `{"recipe":{"title":"Pfannkuchen","ingredients":["Mehl","Milch","Ei"]},"min_score":90}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"duplicates":[]}`, w.Body.String())
}

func TestDuplicatesRejectsInvalidInput(t *testing.T) {
	r := newRouter(newFinder())

	w := post(r, `{"recipe":{"ingredients":["Mehl"]}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = post(r, `{"recipe":{"title":"x"},"min_score":101}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
