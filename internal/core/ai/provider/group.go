package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-ingest/internal/pkg/common"

	"go.uber.org/zap"
)

// Group 依序嘗試多個文字提供者
type Group struct {
	providers []TextGenerator
}

// NewGroup 創建提供者群組，nil 會被略過
func NewGroup(providers ...TextGenerator) *Group {
	g := &Group{}
	for _, p := range providers {
		if p != nil {
			g.providers = append(g.providers, p)
		}
	}
	return g
}

func (g *Group) Name() string {
	return "group"
}

// Len 提供者數量
func (g *Group) Len() int {
	return len(g.providers)
}

// GenerateText 前一個失敗時改用下一個。全部失敗時回傳第一個帶狀態碼的錯誤，
// 沒有的話回傳最後一個實際錯誤；ErrUnavailable 只在沒有其他錯誤時回傳
func (g *Group) GenerateText(ctx context.Context, req *TextRequest) (string, error) {
	if len(g.providers) == 0 {
		return "", ErrUnavailable
	}
	var statusErr, lastErr error
	for _, p := range g.providers {
		start := time.Now()
		out, err := p.GenerateText(ctx, req)
		common.LogAICall(p.Name(), time.Since(start), err)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, ErrUnavailable) {
			continue
		}
		common.LogWarn("文字生成失敗，改用下一個提供者", zap.String("provider", p.Name()), zap.Error(err))
		lastErr = err
		if statusErr == nil && hasStatus(err) {
			statusErr = err
		}
	}
	switch {
	case statusErr != nil:
		return "", fmt.Errorf("all text providers failed: %w", statusErr)
	case lastErr != nil:
		return "", fmt.Errorf("all text providers failed: %w", lastErr)
	default:
		return "", ErrUnavailable
	}
}

func hasStatus(err error) bool {
	var se interface{ StatusCode() int }
	return errors.As(err, &se) && se.StatusCode() != 0
}
