// Package textutil 文章文本清洗
package textutil

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML 提取 HTML 片段的可见文本并合并空白
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return CollapseSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CollapseSpace(html.UnescapeString(s))
	}
	doc.Find("script, style").Remove()
	return CollapseSpace(doc.Text())
}

// Clean 解码 HTML 实体并规范省略号
func Clean(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "…", "...")
	return strings.TrimSpace(s)
}

func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateWords 最多保留 n 个词
func TruncateWords(s string, n int) string {
	words := strings.Fields(s)
	if n <= 0 || len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}
