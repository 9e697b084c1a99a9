// Package worker 摘要 worker 进程: 从 stdin 逐行读取请求, 向 stdout 写出响应
package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"newshub/config"
	"newshub/internal/summarizer"
	"newshub/internal/textutil"
)

// Summarizer 单篇文本摘要
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// NewSummarizer 根据配置选择摘要实现
func NewSummarizer(cfg config.WorkerConfig) Summarizer {
	extractive := NewExtractive(cfg.MaxWords)
	if cfg.Mode == "llm" {
		return NewLLM(cfg.LLM, extractive)
	}
	return extractive
}

// Options 控制单个请求内的并发与时限
type Options struct {
	// Concurrency 同一批次内同时摘要的条数
	Concurrency int
	// BatchTimeout 单批次时限, 到期未完成的条目使用回退摘要
	BatchTimeout time.Duration
}

// OptionsFromConfig 批次时限不超过 channel 超时的四分之三
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Concurrency:  cfg.Worker.Concurrency,
		BatchTimeout: cfg.Worker.BatchTimeout,
	}
	if limit := cfg.Summarizer.Timeout * 3 / 4; limit > 0 && (opts.BatchTimeout <= 0 || opts.BatchTimeout > limit) {
		opts.BatchTimeout = limit
	}
	return opts
}

// Serve 逐行读取请求直到输入结束或 ctx 取消, 响应与请求格式一致
func Serve(ctx context.Context, in io.Reader, out io.Writer, s Summarizer, opts Options) error {
	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			log.Printf("[Worker] empty request received")
			continue
		}

		id, texts, err := summarizer.DecodeRequest(line)
		if err != nil {
			log.Printf("[Worker] invalid request: %v", err)
			if err := writeLine(w, summarizer.EncodeResponse(nil, nil, fmt.Sprintf("invalid request: %v", err))); err != nil {
				return err
			}
			continue
		}

		summaries := summarizeBatch(ctx, s, texts, opts)
		if err := writeLine(w, summarizer.EncodeResponse(id, summaries, "")); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func summarizeBatch(ctx context.Context, s Summarizer, texts []string, opts Options) []string {
	if opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.BatchTimeout)
		defer cancel()
	}

	summaries := make([]string, len(texts))
	g := new(errgroup.Group)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			summaries[i] = summarizeOne(ctx, s, text)
			return nil
		})
	}
	g.Wait()
	return summaries
}

func summarizeOne(ctx context.Context, s Summarizer, text string) string {
	summary, err := s.Summarize(ctx, text)
	if err != nil {
		log.Printf("[Worker] summarization error: %v", err)
		return textutil.TruncateWords(textutil.Clean(text), 40)
	}
	return summary
}

func writeLine(w *bufio.Writer, line []byte) error {
	if _, err := w.Write(line); err != nil {
		return err
	}
	return w.Flush()
}
