package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"newshub/config"
	"newshub/internal/textutil"
)

// LLM 调用 OpenAI 兼容接口生成摘要, 失败时回退到 fallback
type LLM struct {
	cfg      config.LLMConfig
	client   *http.Client
	fallback Summarizer
}

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func NewLLM(cfg config.LLMConfig, fallback Summarizer) *LLM {
	return &LLM{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		fallback: fallback,
	}
}

func (s *LLM) Summarize(ctx context.Context, text string) (string, error) {
	if len(strings.Fields(text)) < 10 {
		return s.fallback.Summarize(ctx, text)
	}

	summary, err := s.Chat(ctx, s.cfg.Prompt, textutil.TruncateWords(text, 400))
	if err != nil {
		log.Printf("[Worker] llm summarization failed, using extractive summary: %v", err)
		return s.fallback.Summarize(ctx, text)
	}
	return textutil.Clean(summary), nil
}

// Chat 调用LLM
func (s *LLM) Chat(ctx context.Context, prompt, content string) (string, error) {
	if s.cfg.ApiURL == "" || s.cfg.ApiKey == "" || s.cfg.Model == "" {
		return "", fmt.Errorf("llm is not configured")
	}

	reqBody := ChatRequest{
		Model: s.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: content},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(s.cfg.ApiURL, "/")+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.ApiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm returned HTTP %d: %s", resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("no response from llm")
	}

	return chatResp.Choices[0].Message.Content, nil
}
