package ingredient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"recipe-ingest/internal/core/ai/provider"
	"recipe-ingest/internal/core/fuzzy"
	"recipe-ingest/internal/core/resilience"
	"recipe-ingest/internal/pkg/common"

	"go.uber.org/zap"
)

// MaxAlternativeNames 別名數量上限
const MaxAlternativeNames = 8

// AltNameGenerator 產生食材別名
type AltNameGenerator interface {
	Name() string
	Generate(ctx context.Context, name string) ([]string, error)
}

// RemoteGenerator 透過文字生成服務產生別名
type RemoteGenerator struct {
	text provider.TextGenerator
	exec *resilience.Executor
}

// NewRemoteGenerator 創建遠端別名產生器
func NewRemoteGenerator(text provider.TextGenerator, exec *resilience.Executor) *RemoteGenerator {
	return &RemoteGenerator{text: text, exec: exec}
}

func (g *RemoteGenerator) Name() string {
	return "remote"
}

var alternativesSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"alternatives": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"maxItems": MaxAlternativeNames,
		},
	},
	"required": []string{"alternatives"},
}

func (g *RemoteGenerator) Generate(ctx context.Context, name string) ([]string, error) {
	prompt := fmt.Sprintf(`Erzeuge alternative Schreibweisen für die Zutat "%s".
Berücksichtige:
1. Singular und Plural (z.B. Tomate / Tomaten)
2. Varianten mit und ohne Bindestrich oder Leerzeichen
3. gebräuchliche Synonyme und regionale Bezeichnungen
4. häufige Schreibvarianten
Verwende KEINE Zubereitungsarten (gehackt, gewürfelt, frisch, gekocht) und keine Farbadjektive.
Höchstens %d Einträge, ohne den Originalnamen.
Antworte nur mit JSON: {"alternatives": ["..."]}`, name, MaxAlternativeNames)

	content, err := resilience.Execute(ctx, g.exec, func(ctx context.Context) (string, error) {
		return g.text.GenerateText(ctx, &provider.TextRequest{Prompt: prompt, JSONSchema: alternativesSchema, MaxTokens: 256})
	}, resilience.Options{Name: "alternative names", MaxRetries: 2})
	if err != nil {
		return nil, err
	}

	raw, err := common.ExtractJSONObject(content)
	if err != nil {
		return nil, err
	}
	var out struct {
		Alternatives []string `json:"alternatives"`
	}
	if err := common.ParseJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid alternatives JSON: %w", err)
	}
	if len(out.Alternatives) == 0 {
		return nil, errors.New("no alternatives returned")
	}
	return out.Alternatives, nil
}

// RuleGenerator 固定規則：e/en 單複數互換與連字號變體
type RuleGenerator struct{}

func (RuleGenerator) Name() string {
	return "rules"
}

func (RuleGenerator) Generate(_ context.Context, name string) ([]string, error) {
	base := CanonicalName(name)
	if base == "" {
		return []string{}, nil
	}
	variants := []string{}
	forms := []string{base}
	if toggled := togglePlural(base); toggled != "" {
		forms = append(forms, toggled)
		variants = append(variants, toggled)
	}
	for _, f := range forms {
		variants = append(variants, separatorVariants(f)...)
	}
	return variants, nil
}

// togglePlural 最後一個詞 -en ↔ -e
func togglePlural(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	last := words[len(words)-1]
	switch {
	case strings.HasSuffix(last, "en") && len([]rune(last)) > 3:
		last = strings.TrimSuffix(last, "n")
	case strings.HasSuffix(last, "e"):
		last += "n"
	default:
		return ""
	}
	words[len(words)-1] = last
	return strings.Join(words, " ")
}

// separatorVariants 連字號、無分隔、空白三種寫法
func separatorVariants(name string) []string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == ' ' })
	if len(parts) < 2 {
		return nil
	}
	return []string{
		strings.Join(parts, "-"),
		strings.Join(parts, ""),
		strings.Join(parts, " "),
	}
}

// FallbackGenerator 主要產生器失敗時改用備援
type FallbackGenerator struct {
	primary  AltNameGenerator
	fallback AltNameGenerator
}

// NewFallbackGenerator 創建二層別名產生器
func NewFallbackGenerator(primary, fallback AltNameGenerator) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, fallback: fallback}
}

func (g *FallbackGenerator) Name() string {
	return g.primary.Name() + "+" + g.fallback.Name()
}

// Generate 結果一律經過 CleanAlternatives
func (g *FallbackGenerator) Generate(ctx context.Context, name string) ([]string, error) {
	out, err := g.primary.Generate(ctx, name)
	if err == nil {
		if cleaned := CleanAlternatives(name, out); len(cleaned) > 0 {
			return cleaned, nil
		}
	} else {
		common.LogWarn("別名產生失敗，改用規則", zap.String("name", name), zap.String("generator", g.primary.Name()), zap.Error(err))
	}
	out, err = g.fallback.Generate(ctx, name)
	if err != nil {
		return nil, err
	}
	return CleanAlternatives(name, out), nil
}

// CleanAlternatives 小寫、去重、排除原名與原名沒有的修飾詞，最多 MaxAlternativeNames 筆
func CleanAlternatives(name string, candidates []string) []string {
	self := CanonicalName(name)
	own := make(map[string]bool)
	for _, w := range splitWords(self) {
		own[w] = true
	}

	out := []string{}
	seen := map[string]bool{self: true}
	for _, c := range candidates {
		c = CanonicalName(c)
		if c == "" || seen[c] || hasForeignModifier(c, own) {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) == MaxAlternativeNames {
			break
		}
	}
	return out
}

func hasForeignModifier(name string, own map[string]bool) bool {
	for _, w := range splitWords(name) {
		if fuzzy.IsModifier(w) && !own[w] {
			return true
		}
	}
	return false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
