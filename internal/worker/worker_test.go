package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newshub/config"
)

type upperSummarizer struct{}

func (upperSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if text == "fail" {
		return "", errors.New("boom")
	}
	return strings.ToUpper(text), nil
}

func TestServe(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"id":3,"items":[{"content":"a"},{"content":"b"}]}`,
		``,
		`["plain",{"content":"obj"}]`,
		`{"id":4,"items":[{"content":"fail"}]}`,
		`not json`,
	}, "\n") + "\n")

	var out bytes.Buffer
	if err := Serve(context.Background(), in, &out, upperSummarizer{}, Options{Concurrency: 2}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 response lines, got %d: %q", len(lines), out.String())
	}

	expected := []string{
		`{"id":3,"summaries":["A","B"]}`,
		`["PLAIN","OBJ"]`,
		`{"id":4,"summaries":["fail"]}`,
	}
	for i, want := range expected {
		if lines[i] != want {
			t.Errorf("line %d = %s, want %s", i, lines[i], want)
		}
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(lines[3]), &errResp); err != nil || errResp.Error == "" {
		t.Fatalf("expected error response for invalid request, got %s", lines[3])
	}
}

func TestExtractive(t *testing.T) {
	e := NewExtractive(120)
	ctx := context.Background()

	short := "Too short to summarize &amp; keep…"
	got, _ := e.Summarize(ctx, short)
	if got != "Too short to summarize & keep..." {
		t.Fatalf("short text should be returned cleaned, got %q", got)
	}

	first := "The city council approved the new transit budget on Monday after a long debate about fares and service levels."
	second := "Officials said the plan adds buses to the busiest routes and extends evening service across several districts."
	third := "Critics argued the budget still leaves rural neighborhoods without reliable connections to the downtown core."
	long := strings.Join([]string{first, second, third, third, third}, " ")

	got, _ = e.Summarize(ctx, long)
	if !strings.HasPrefix(got, first) {
		t.Fatalf("expected summary to start with the lead sentence, got %q", got)
	}
	if len(strings.Fields(got)) >= len(strings.Fields(long)) {
		t.Fatalf("summary is not shorter than input: %q", got)
	}
}

func TestExtractive_TruncatesLongInput(t *testing.T) {
	words := make([]string, 300)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	got, _ := NewExtractive(120).Summarize(context.Background(), strings.Join(words, " "))
	if strings.Contains(got, "w120") {
		t.Fatalf("input beyond 120 words leaked into summary: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected run-on text to be truncated, got %q", got)
	}
}

func TestLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":" A tidy summary. "}}]}`)
	}))
	defer srv.Close()

	llm := NewLLM(config.LLMConfig{ApiURL: srv.URL, ApiKey: "key", Model: "m", Timeout: time.Second}, NewExtractive(120))
	text := "one two three four five six seven eight nine ten eleven twelve"
	got, err := llm.Summarize(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if got != "A tidy summary." {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestLLM_FallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	llm := NewLLM(config.LLMConfig{ApiURL: srv.URL, ApiKey: "key", Model: "m", Timeout: time.Second}, NewExtractive(120))
	text := "one two three four five six seven eight nine ten eleven twelve"
	got, err := llm.Summarize(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if got != text {
		t.Fatalf("expected extractive fallback, got %q", got)
	}
}

func slowLLMServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"llm summary"}}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func batchRequest(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = `{"content":"one two three four five six seven eight nine ten eleven twelve"}`
	}
	return `{"id":1,"items":[` + strings.Join(items, ",") + "]}\n"
}

func TestServe_LLMBatchRunsConcurrently(t *testing.T) {
	srv := slowLLMServer(t, 300*time.Millisecond)
	llm := NewLLM(config.LLMConfig{ApiURL: srv.URL, ApiKey: "key", Model: "m", Timeout: 5 * time.Second}, NewExtractive(120))

	var out bytes.Buffer
	start := time.Now()
	err := Serve(context.Background(), strings.NewReader(batchRequest(50)), &out, llm,
		Options{Concurrency: 10, BatchTimeout: 10 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("50 item batch took %s", elapsed)
	}

	var resp struct {
		Summaries []string `json:"summaries"`
	}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Summaries) != 50 {
		t.Fatalf("expected 50 summaries, got %d", len(resp.Summaries))
	}
	for i, s := range resp.Summaries {
		if s != "llm summary" {
			t.Fatalf("summary %d = %q", i, s)
		}
	}
}

func TestServe_BatchTimeoutFallsBack(t *testing.T) {
	srv := slowLLMServer(t, 5*time.Second)
	llm := NewLLM(config.LLMConfig{ApiURL: srv.URL, ApiKey: "key", Model: "m", Timeout: 10 * time.Second}, NewExtractive(120))

	var out bytes.Buffer
	start := time.Now()
	err := Serve(context.Background(), strings.NewReader(batchRequest(6)), &out, llm,
		Options{Concurrency: 2, BatchTimeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("batch ignored its deadline: %s", elapsed)
	}

	var resp struct {
		Summaries []string `json:"summaries"`
	}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Summaries) != 6 {
		t.Fatalf("expected 6 summaries, got %d", len(resp.Summaries))
	}
	for i, s := range resp.Summaries {
		if s != "one two three four five six seven eight nine ten eleven twelve" {
			t.Fatalf("summary %d should be the extractive fallback, got %q", i, s)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	opts := OptionsFromConfig(cfg)
	if opts.Concurrency != 8 || opts.BatchTimeout != 15*time.Second {
		t.Fatalf("unexpected defaults %+v", opts)
	}

	cfg.Summarizer.Timeout = 4 * time.Second
	if opts := OptionsFromConfig(cfg); opts.BatchTimeout != 3*time.Second {
		t.Fatalf("batch timeout should stay under the channel timeout, got %s", opts.BatchTimeout)
	}
}
