package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"recipe-ingest/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	common.InitNopLogger()
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	r.ServeHTTP(w, req)
	return w
}

func TestDeduplicatorRejectsRepeatWithinWindow(t *testing.T) {
	d := NewDeduplicator(time.Second)
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }
	r := newEngine(d.Middleware())

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", `{"a":1}`).Code)
	require.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/echo", `{"a":1}`).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", `{"a":2}`).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/echo", "").Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/echo", "").Code)

	now = now.Add(2 * time.Second)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", `{"a":1}`).Code)
}

func TestDeduplicatorSweepsExpiredEntries(t *testing.T) {
	d := NewDeduplicator(time.Second)
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	require.False(t, d.seen("a"))
	require.False(t, d.seen("b"))
	now = now.Add(time.Minute)
	require.False(t, d.seen("c"))
	require.Len(t, d.requests, 1)
}

func doFrom(r http.Handler, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.RemoteAddr = ip + ":40000"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitIsPerClient(t *testing.T) {
	l := NewClientLimiter(2, time.Hour, 0)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	r := newEngine(l.Middleware())

	require.Equal(t, http.StatusOK, doFrom(r, "192.0.2.1").Code)
	require.Equal(t, http.StatusOK, doFrom(r, "192.0.2.1").Code)
	w := doFrom(r, "192.0.2.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1800", w.Header().Get("Retry-After"))
	require.Contains(t, w.Body.String(), common.ErrCodeTooManyRequests)

	// 其他客戶端不受影響
	require.Equal(t, http.StatusOK, doFrom(r, "192.0.2.2").Code)

	now = now.Add(20 * time.Minute)
	w = doFrom(r, "192.0.2.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "600", w.Header().Get("Retry-After"))

	now = now.Add(11 * time.Minute)
	require.Equal(t, http.StatusOK, doFrom(r, "192.0.2.1").Code)
}

func TestRateLimitEvictsOldestClient(t *testing.T) {
	l := NewClientLimiter(1, time.Hour, 2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("a")
	require.True(t, ok)
	ok, _ = l.Allow("b")
	require.True(t, ok)
	ok, _ = l.Allow("c")
	require.True(t, ok)
	require.Equal(t, 2, l.buckets.Len())

	// a 已被淘汰，重新取得滿桶
	ok, _ = l.Allow("a")
	require.True(t, ok)
	ok, wait := l.Allow("c")
	require.False(t, ok)
	require.Equal(t, time.Hour, wait)
}

func TestBodySizeLimitRejectsLargeBody(t *testing.T) {
	r := newEngine(BodySizeLimit(BodyLimits{JSON: 4, Multipart: 16}))

	w := do(r, http.MethodPost, "/echo", "0123456789")
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Contains(t, w.Body.String(), "SOURCE_TOO_LARGE")
	require.Contains(t, w.Body.String(), "limit 4 bytes")
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", "ok").Code)
}

func TestBodySizeLimitUsesMultipartLimitForUploads(t *testing.T) {
	r := newEngine(BodySizeLimit(BodyLimits{JSON: 4, Multipart: 16}))
	post := func(body string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, post("0123456789"))
	require.Equal(t, http.StatusRequestEntityTooLarge, post(strings.Repeat("x", 20)))
}

func TestRecoveryReturnsInternalError(t *testing.T) {
	r := newEngine(Recovery())

	w := do(r, http.MethodGet, "/panic", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), common.ErrCodeInternalError)
}

func TestTimeoutWritesGatewayTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(10 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	w := do(r, http.MethodGet, "/slow", "")
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	require.Contains(t, w.Body.String(), "REQUEST_TIMEOUT")
}
