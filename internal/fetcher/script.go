package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"newshub/internal/model"
	"newshub/internal/textutil"
)

// ScriptFetcher 运行外部抓取脚本, 从 stdout 读取 JSON 数组
type ScriptFetcher struct {
	command string
	args    []string
}

// NewScriptFetcher 按空白拆分命令, 第一段为可执行文件
func NewScriptFetcher(command string) *ScriptFetcher {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return &ScriptFetcher{}
	}
	return &ScriptFetcher{command: fields[0], args: fields[1:]}
}

func (f *ScriptFetcher) Name() string { return "feed" }

type scriptArticle struct {
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Link        string          `json:"link"`
	Source      json.RawMessage `json:"source"`
	PublishedAt string          `json:"publishedAt"`
	Published   string          `json:"published"`
	Description string          `json:"description"`
	Summary     string          `json:"summary"`
	URLToImage  string          `json:"urlToImage"`
	Category    string          `json:"category"`
}

func (f *ScriptFetcher) Fetch(ctx context.Context) ([]model.RawArticle, error) {
	if f.command == "" {
		return nil, &FetchError{Source: f.Name(), Err: errors.New("feed script is not configured")}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.command, f.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &FetchError{Source: f.Name(), Err: fmt.Errorf("%w: %s", err, tail(stderr.String(), 512))}
	}

	var items []scriptArticle
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &items); err != nil {
		return nil, &FetchError{Source: f.Name(), Err: fmt.Errorf("decode script output: %w", err)}
	}

	articles := make([]model.RawArticle, 0, len(items))
	for _, item := range items {
		articles = append(articles, model.RawArticle{
			Title:       textutil.CollapseSpace(item.Title),
			URL:         strings.TrimSpace(firstNonEmpty(item.URL, item.Link)),
			SourceName:  sourceName(item.Source),
			Description: textutil.StripHTML(firstNonEmpty(item.Description, item.Summary)),
			PublishedAt: parseTime(firstNonEmpty(item.PublishedAt, item.Published)),
			ImageURL:    item.URLToImage,
			Category:    strings.TrimSpace(item.Category),
		})
	}
	return articles, nil
}

// source 可能是字符串, 也可能是 {"name": "..."}
func sourceName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Name
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
