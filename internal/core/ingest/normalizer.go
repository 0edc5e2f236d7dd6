// Package ingest 食譜匯入流程：文字正規化、分段擷取與批次匯入
package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"recipe-ingest/internal/core/source"
	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// 各來源的最短長度
const (
	DefaultMinTextLength = 30
	DefaultMinFileLength = 50
	DefaultMinURLLength  = 100
)

var (
	markupPattern = regexp.MustCompile(`(?i)<\s*/?\s*(html|body|div|p|br|h[1-6]|li|ul|ol|span|table|tr|td|article|section|script|style|a)\b[^>]*>`)
	fencePattern  = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	spacePattern  = regexp.MustCompile(`[ \t\f\v]+`)
	blankPattern  = regexp.MustCompile(`\n{3,}`)
)

// Normalizer 將擷取出的原始文字整理成標準格式
type Normalizer struct {
	minLength map[source.Kind]int
}

// NewNormalizer 創建文字正規化器
func NewNormalizer(cfg config.IngestConfig) *Normalizer {
	return &Normalizer{minLength: map[source.Kind]int{
		source.KindText: orDefault(cfg.MinTextLength, DefaultMinTextLength),
		source.KindFile: orDefault(cfg.MinFileLength, DefaultMinFileLength),
		source.KindURL:  orDefault(cfg.MinURLLength, DefaultMinURLLength),
	}}
}

// MinLength 該來源種類的最短長度
func (n *Normalizer) MinLength(kind source.Kind) int {
	if v, ok := n.minLength[kind]; ok {
		return v
	}
	return DefaultMinTextLength
}

// Normalize 去除標記與多餘空白，過短或無法辨識時回傳 ErrInsufficientContent
func (n *Normalizer) Normalize(kind source.Kind, raw string) (string, error) {
	text := raw
	if kind == source.KindURL || markupPattern.MatchString(text) {
		text = stripMarkup(text)
	}
	text = Clean(text)

	minLen := n.MinLength(kind)
	length := utf8.RuneCountInString(text)
	if length < minLen {
		return "", common.Wrap(common.ErrInsufficientContent, fmt.Errorf("got %d characters, need at least %d", length, minLen))
	}
	if letters := countLetters(text); letters*2 < minLen {
		return "", common.Wrap(common.ErrInsufficientContent, fmt.Errorf("only %d letters in %d characters", letters, length))
	}
	return text, nil
}

// Clean 統一換行與空白，不檢查長度
func Clean(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = fencePattern.ReplaceAllString(text, "")
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\u00a0' || r == '\u2007' || r == '\u202f':
			return ' '
		case r == '\u200b' || r == '\ufeff':
			return -1
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Head:     true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Title: true,
}

// stripMarkup 只保留可見文字，區塊元素換行
func stripMarkup(raw string) string {
	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedElements[a] {
				skip++
			} else if blockElements[a] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedElements[a] {
				if skip > 0 {
					skip--
				}
			} else if blockElements[a] {
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockElements[atom.Lookup(name)] {
				b.WriteByte('\n')
			}
		}
	}
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
