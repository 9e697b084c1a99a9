package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"newshub/config"
	"newshub/internal/model"
	"newshub/internal/textutil"
)

// NewsAPIFetcher 调用新闻搜索接口
type NewsAPIFetcher struct {
	cfg       config.NewsAPIConfig
	client    *http.Client
	baseDelay time.Duration
}

func NewNewsAPIFetcher(cfg config.NewsAPIConfig) *NewsAPIFetcher {
	return &NewsAPIFetcher{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		baseDelay: 500 * time.Millisecond,
	}
}

func (f *NewsAPIFetcher) Name() string { return "api" }

type newsAPIResponse struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	Articles json.RawMessage `json:"articles"`
}

type newsAPIArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
	PublishedAt string `json:"publishedAt"`
	URLToImage  string `json:"urlToImage"`
}

// retryableError 网络错误、429、5xx 可重试
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Fetch 抓取并校验 articles 数组
func (f *NewsAPIFetcher) Fetch(ctx context.Context) ([]model.RawArticle, error) {
	if f.cfg.URL == "" {
		return nil, &FetchError{Source: f.Name(), Err: errors.New("news api url is not configured")}
	}
	endpoint, err := f.endpoint()
	if err != nil {
		return nil, &FetchError{Source: f.Name(), Err: err}
	}

	attempts := max(f.cfg.Retries, 0) + 1
	var body []byte
	for attempt := 0; attempt < attempts; attempt++ {
		body, err = f.get(ctx, endpoint)
		if err == nil {
			break
		}
		var retryable *retryableError
		if !errors.As(err, &retryable) || attempt == attempts-1 {
			return nil, &FetchError{Source: f.Name(), Err: err}
		}

		delay := time.Duration(float64(f.baseDelay) * math.Pow(2, float64(attempt)))
		log.Printf("[Fetcher] api: attempt %d/%d failed, retrying in %s: %v", attempt+1, attempts, delay, err)
		select {
		case <-ctx.Done():
			return nil, &FetchError{Source: f.Name(), Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	articles, err := decodeNewsAPI(body)
	if err != nil {
		return nil, &FetchError{Source: f.Name(), Err: err}
	}
	return articles, nil
}

func (f *NewsAPIFetcher) endpoint() (string, error) {
	u, err := url.Parse(f.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse news api url: %w", err)
	}
	q := u.Query()
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("q", f.cfg.Query)
	set("apiKey", f.cfg.APIKey)
	set("language", f.cfg.Language)
	set("sortBy", f.cfg.SortBy)
	if f.cfg.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(f.cfg.PageSize))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *NewsAPIFetcher) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "newshub/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &retryableError{fmt.Errorf("request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &retryableError{fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("news api responded with HTTP %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &retryableError{err}
		}
		return nil, err
	}
	return body, nil
}

func decodeNewsAPI(body []byte) ([]model.RawArticle, error) {
	var resp newsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("news api error: %s", resp.Message)
	}

	var items []newsAPIArticle
	if len(resp.Articles) == 0 || string(resp.Articles) == "null" {
		return nil, errors.New("no articles array in response")
	}
	if err := json.Unmarshal(resp.Articles, &items); err != nil {
		return nil, fmt.Errorf("articles is not an array: %w", err)
	}

	articles := make([]model.RawArticle, 0, len(items))
	for _, item := range items {
		articles = append(articles, model.RawArticle{
			Title:       textutil.CollapseSpace(item.Title),
			URL:         item.URL,
			SourceName:  item.Source.Name,
			Description: textutil.StripHTML(item.Description),
			PublishedAt: parseTime(item.PublishedAt),
			ImageURL:    item.URLToImage,
		})
	}
	return articles, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
