package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 回傳原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對，包裝過的錯誤仍可用 errors.Is 判斷
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Wrap 以既有錯誤代碼包裝原始錯誤
func Wrap(base *CustomError, err error) *CustomError {
	return NewError(base.Code, base.Message, base.Status, err)
}

// HTTPError 外部服務回傳的非 2xx 狀態
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// StatusCode 回傳 HTTP 狀態碼
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// StatusOf 取得錯誤對應的 HTTP 狀態碼
func StatusOf(err error) int {
	var ce *CustomError
	if errors.As(err, &ce) && ce.Status != 0 {
		return ce.Status
	}
	return http.StatusInternalServerError
}

// CodeOf 取得錯誤代碼
func CodeOf(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternalError
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeUnauthorized    = "UNAUTHORIZED"      // 401
	ErrCodeForbidden       = "FORBIDDEN"         // 403
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeConflict        = "CONFLICT"          // 409
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrInvalidRequest  = NewError(ErrCodeInvalidRequest, "無效的請求", http.StatusBadRequest, nil)
	ErrNotFound        = NewError(ErrCodeNotFound, "資源不存在", http.StatusNotFound, nil)
	ErrConflict        = NewError(ErrCodeConflict, "資源已存在", http.StatusConflict, nil)
	ErrTooManyRequests = NewError(ErrCodeTooManyRequests, "請求過於頻繁", http.StatusTooManyRequests, nil)

	// 服務器錯誤
	ErrInternalError      = NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "服務暫時不可用", http.StatusServiceUnavailable, nil)

	// 匯入流程錯誤
	ErrInsufficientContent = NewError("INSUFFICIENT_CONTENT", "內容過短或無法辨識，請改用其他來源", http.StatusUnprocessableEntity, nil)
	ErrMissingTitle        = NewError("MISSING_TITLE", "食譜缺少標題", http.StatusUnprocessableEntity, nil)
	ErrRetryExhausted      = NewError("RETRY_EXHAUSTED", "服務暫時不可用，請稍後重試", http.StatusServiceUnavailable, nil)
	ErrRateLimited         = NewError("RATE_LIMITED", "請求過於頻繁，請稍後再試", http.StatusTooManyRequests, nil)
	ErrSessionExpired      = NewError("SESSION_EXPIRED", "登入已過期，請重新登入", http.StatusUnauthorized, nil)
	ErrAccessDenied        = NewError("ACCESS_DENIED", "沒有存取權限", http.StatusForbidden, nil)
	ErrNetworkQueuedWrite  = NewError("NETWORK_QUEUED_WRITE", "目前離線，變更已排入佇列", http.StatusAccepted, nil)
	ErrInvalidSource       = NewError("INVALID_SOURCE", "無效的來源", http.StatusBadRequest, nil)
	ErrSourceTooLarge      = NewError("SOURCE_TOO_LARGE", "檔案大小超出限制", http.StatusRequestEntityTooLarge, nil)
	ErrUnsupportedType     = NewError("UNSUPPORTED_TYPE", "不支持的檔案類型", http.StatusUnsupportedMediaType, nil)
	ErrInvalidStage        = NewError("INVALID_STAGE", "目前階段不允許此操作", http.StatusConflict, nil)
	ErrNoCheckpoint        = NewError("NO_CHECKPOINT", "找不到進度紀錄", http.StatusNotFound, nil)
)
