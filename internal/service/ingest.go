package service

//go:generate go run go.uber.org/mock/mockgen -source=ingest.go -destination=../mocks/ingest_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"newshub/internal/fetcher"
	"newshub/internal/model"
	"newshub/internal/store"
	"newshub/internal/textutil"
)

// Summarizer 批量摘要, 结果与输入按位置对齐
type Summarizer interface {
	SummarizeBatch(ctx context.Context, texts []string) ([]string, error)
}

// ArticleStore 去重与持久化
type ArticleStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	InsertMany(ctx context.Context, articles []model.Article) store.InsertResult
}

// State 采集周期所处阶段
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateSummarizing State = "summarizing"
	StateDeduping    State = "deduping"
	StatePersisting  State = "persisting"
)

// CycleReport 单次采集周期的统计
type CycleReport struct {
	RunID      string    `json:"run_id"`
	Fetcher    string    `json:"fetcher"`
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`
	State      State     `json:"state"`
	Fetched    int       `json:"fetched"`
	Blocked    int       `json:"blocked"`
	Summarized int       `json:"summarized"`
	Duplicates int       `json:"duplicates"`
	Inserted   int       `json:"inserted"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

type IngestService struct {
	summarizer Summarizer
	store      ArticleStore
	blocklist  *fetcher.Blocklist
	now        func() time.Time

	mu   sync.Mutex
	last map[string]CycleReport
}

func NewIngestService(summarizer Summarizer, store ArticleStore, blocklist *fetcher.Blocklist) *IngestService {
	return &IngestService{
		summarizer: summarizer,
		store:      store,
		blocklist:  blocklist,
		now:        time.Now,
		last:       make(map[string]CycleReport),
	}
}

// RunCycle 执行一次完整的 抓取→过滤→摘要→去重→入库 周期.
// 任一阶段出错只终止本周期, 错误记录在报告中并返回给调用方.
func (s *IngestService) RunCycle(ctx context.Context, f fetcher.Fetcher) (report CycleReport, err error) {
	started := s.now()
	report = CycleReport{
		RunID:     uuid.NewString(),
		Fetcher:   f.Name(),
		StartedAt: started,
		State:     StateFetching,
	}
	defer func() {
		report.Duration = s.now().Sub(started).Round(time.Millisecond).String()
		if err != nil {
			report.Error = err.Error()
			log.Printf("[Ingest] %s run %s aborted while %s: %v", report.Fetcher, report.RunID, report.State, err)
		}
		s.record(report)
	}()

	// 1. 抓取
	raw, err := f.Fetch(ctx)
	if err != nil {
		return report, err
	}
	report.Fetched = len(raw)

	// 2. 屏蔽源
	raw, report.Blocked = s.blocklist.Filter(raw)
	if len(raw) == 0 {
		log.Printf("[Ingest] %s run %s: no candidates (fetched %d, blocked %d)",
			report.Fetcher, report.RunID, report.Fetched, report.Blocked)
		return report, nil
	}

	// 3. 摘要
	report.State = StateSummarizing
	inputs := make([]string, len(raw))
	for i, a := range raw {
		inputs[i] = strings.TrimSpace(a.Title + " " + a.Description)
	}
	summaries, err := s.summarizer.SummarizeBatch(ctx, inputs)
	if err != nil {
		return report, fmt.Errorf("summarize %d article(s): %w", len(inputs), err)
	}
	if len(summaries) != len(raw) {
		return report, fmt.Errorf("summarize: got %d summaries for %d article(s)", len(summaries), len(raw))
	}

	// 4. 合并
	now := s.now().UTC()
	articles := make([]model.Article, len(raw))
	for i, a := range raw {
		if strings.TrimSpace(summaries[i]) != "" {
			report.Summarized++
		}
		articles[i] = toArticle(a, summaries[i], now)
	}

	// 5. 去重
	report.State = StateDeduping
	fresh, duplicates, err := s.dedupe(ctx, articles)
	if err != nil {
		return report, err
	}
	report.Duplicates = duplicates
	if len(fresh) == 0 {
		log.Printf("[Ingest] %s run %s: fetched %d, blocked %d, summarized %d, all %d already stored",
			report.Fetcher, report.RunID, report.Fetched, report.Blocked, report.Summarized, duplicates)
		return report, nil
	}

	// 6. 入库
	report.State = StatePersisting
	result := s.store.InsertMany(ctx, fresh)
	report.Inserted = len(result.Inserted)
	report.Failed = len(result.Failed)
	for _, failure := range result.Failed {
		if errors.Is(failure, store.ErrDuplicate) {
			log.Printf("[Ingest] %s run %s: %s was stored concurrently, skipped", report.Fetcher, report.RunID, failure.URL)
			continue
		}
		log.Printf("[Ingest] %s run %s: %v", report.Fetcher, report.RunID, failure)
	}

	// 7. 统计
	log.Printf("[Ingest] %s run %s: fetched %d, blocked %d, summarized %d, duplicates %d, inserted %d, failed %d",
		report.Fetcher, report.RunID, report.Fetched, report.Blocked, report.Summarized,
		report.Duplicates, report.Inserted, report.Failed)
	return report, nil
}

// dedupe 去掉空 URL、批内重复及已入库的文章
func (s *IngestService) dedupe(ctx context.Context, articles []model.Article) ([]model.Article, int, error) {
	seen := make(map[string]struct{}, len(articles))
	fresh := make([]model.Article, 0, len(articles))
	duplicates := 0
	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		if _, ok := seen[a.URL]; ok {
			duplicates++
			continue
		}
		seen[a.URL] = struct{}{}

		exists, err := s.store.Exists(ctx, a.URL)
		if err != nil {
			return nil, 0, err
		}
		if exists {
			duplicates++
			continue
		}
		fresh = append(fresh, a)
	}
	return fresh, duplicates, nil
}

func toArticle(raw model.RawArticle, summary string, now time.Time) model.Article {
	a := model.Article{
		Title:       textutil.Clean(raw.Title),
		URL:         strings.TrimSpace(raw.URL),
		Source:      strings.TrimSpace(raw.SourceName),
		PublishedAt: now,
		Summary:     strings.TrimSpace(summary),
		Category:    strings.TrimSpace(raw.Category),
	}
	if a.Title == "" {
		a.Title = model.NoTitle
	}
	if a.Source == "" {
		a.Source = fetcher.Host(a.URL)
	}
	if a.Source == "" {
		a.Source = model.UnknownSource
	}
	if raw.PublishedAt != nil && !raw.PublishedAt.IsZero() {
		a.PublishedAt = raw.PublishedAt.UTC()
	}
	if a.Summary == "" {
		a.Summary = textutil.Clean(raw.Description)
	}
	if a.Summary == "" {
		a.Summary = model.NoSummary
	}
	if img := strings.TrimSpace(raw.ImageURL); img != "" {
		a.ImageURL = &img
	}
	return a
}

func (s *IngestService) record(report CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[report.Fetcher] = report
}

// LastReports 每个 fetcher 最近一次周期的报告
func (s *IngestService) LastReports() map[string]CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]CycleReport, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}
