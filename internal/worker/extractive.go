package worker

import (
	"context"
	"regexp"
	"strings"

	"newshub/internal/textutil"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+["')\]]*\s+`)

// Extractive 抽取式摘要, 保留文章开头的句子
type Extractive struct {
	maxWords int
}

func NewExtractive(maxWords int) *Extractive {
	if maxWords <= 0 {
		maxWords = 120
	}
	return &Extractive{maxWords: maxWords}
}

// Summarize 过短的文本原样返回, 过长的先截断到 maxWords 个词
func (e *Extractive) Summarize(ctx context.Context, text string) (string, error) {
	text = textutil.CollapseSpace(textutil.Clean(text))
	words := strings.Fields(text)
	if len(words) < 10 {
		return text, nil
	}
	if len(words) > e.maxWords {
		text = strings.Join(words[:e.maxWords], " ")
		words = words[:e.maxWords]
	}

	target := min(max(len(words)/3, 15), 60)

	var (
		out   []string
		count int
	)
	for _, sentence := range splitSentences(text) {
		out = append(out, sentence)
		count += len(strings.Fields(sentence))
		if count >= target {
			break
		}
	}

	summary := strings.Join(out, " ")
	if count > 2*target {
		summary = textutil.TruncateWords(summary, target) + "..."
	}
	return summary, nil
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
