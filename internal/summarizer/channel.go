// Package summarizer 与常驻摘要 worker 进程通信
package summarizer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"newshub/config"
)

var (
	ErrSummarizationTimeout = errors.New("summarization timeout")
	ErrWorkerUnavailable    = errors.New("summarization worker unavailable")
	ErrParse                = errors.New("malformed worker response")
	ErrEmptyBatch           = errors.New("empty summarization batch")
)

type RestartPolicy string

const (
	RestartNone      RestartPolicy = "none"
	RestartImmediate RestartPolicy = "immediate"
	RestartBackoff   RestartPolicy = "backoff"
)

const maxLineSize = 16 << 20

// legacy 模式下连续超时达到该次数, 视为 worker 丢失了请求, 强制重启以清空队列
const maxLegacyTimeouts = 3

type Options struct {
	Command string
	Args    []string
	Env     []string

	Protocol        string
	Timeout         time.Duration
	MaxPending      int
	Restart         RestartPolicy
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// IgnoreStderr 可忽略的 worker 启动输出(子串匹配)
	IgnoreStderr []string
}

// OptionsFromConfig 由配置生成 Options, command 为空时由调用方填充
func OptionsFromConfig(cfg config.SummarizerConfig) Options {
	return Options{
		Command:         cfg.Command,
		Args:            cfg.Args,
		Protocol:        cfg.Protocol,
		Timeout:         cfg.Timeout,
		MaxPending:      cfg.MaxPending,
		Restart:         RestartPolicy(cfg.Restart),
		RestartDelay:    cfg.RestartDelay,
		MaxRestartDelay: cfg.MaxRestartDelay,
		IgnoreStderr:    cfg.IgnoreStderr,
	}
}

// Channel 持有 worker 进程及待响应队列.
// 状态由 mu 保护; 写 stdin 另外经 writeLock 串行化, 保证队列顺序与写入顺序一致.
type Channel struct {
	opts      Options
	slots     chan struct{}
	stop      chan struct{}
	writeLock chan struct{}

	mu       sync.Mutex
	proc     *process
	pending  []*call
	nextID   uint64
	closed   bool
	failures int
	restarts int
	timeouts int
}

type process struct {
	cmd   *exec.Cmd
	stdin *os.File
	done  chan struct{}
}

type call struct {
	id        uint64
	size      int
	result    chan result
	abandoned bool
}

type result struct {
	summaries []string
	err       error
}

// New 创建 Channel, 需调用 Start 启动 worker
func New(opts Options) *Channel {
	if opts.Protocol == "" {
		opts.Protocol = ProtocolTagged
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = 1
	}
	// 无 id 的响应只能在单个批次在途时安全匹配
	if opts.Protocol == ProtocolLegacy {
		opts.MaxPending = 1
	}
	if opts.Restart == "" {
		opts.Restart = RestartNone
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = time.Second
	}
	if opts.MaxRestartDelay < opts.RestartDelay {
		opts.MaxRestartDelay = opts.RestartDelay
	}
	return &Channel{
		opts:  opts,
		slots:     make(chan struct{}, opts.MaxPending),
		stop:      make(chan struct{}),
		writeLock: make(chan struct{}, 1),
	}
}

// Start 启动 worker 进程, 失败视为致命错误
func (c *Channel) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: channel closed", ErrWorkerUnavailable)
	}
	if c.proc != nil {
		return nil
	}
	return c.spawn()
}

// spawn 调用方需持有 mu
func (c *Channel) spawn() error {
	if c.opts.Command == "" {
		return errors.New("summarizer command is not configured")
	}

	cmd := exec.Command(c.opts.Command, c.opts.Args...)
	cmd.Env = append(os.Environ(), c.opts.Env...)

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	cmd.Stdin = stdinR

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		return fmt.Errorf("start %s: %w", c.opts.Command, err)
	}
	stdinR.Close()

	p := &process{cmd: cmd, stdin: stdinW, done: make(chan struct{})}
	c.proc = p

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		c.readStderr(stderr)
	}()
	go c.readLoop(p, stdout, stderrDone)

	log.Printf("[Summarizer] worker started (pid %d, protocol %s)", cmd.Process.Pid, c.opts.Protocol)
	return nil
}

// SummarizeBatch 提交一批文本, 返回与输入位置一一对应的摘要
func (c *Channel) SummarizeBatch(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}

	deadline := time.Now().Add(c.opts.Timeout)
	timer := time.NewTimer(c.opts.Timeout)
	defer timer.Stop()

	select {
	case c.slots <- struct{}{}:
	case <-timer.C:
		return nil, ErrSummarizationTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.slots }()

	cl, err := c.submit(ctx, texts, deadline, timer.C)
	if err != nil {
		return nil, err
	}

	select {
	case r := <-cl.result:
		return r.summaries, r.err
	case <-timer.C:
		if r, ok := c.abandon(cl); ok {
			return r.summaries, r.err
		}
		log.Printf("[Summarizer] request %d timed out after %s", cl.id, c.opts.Timeout)
		return nil, ErrSummarizationTimeout
	case <-ctx.Done():
		if r, ok := c.abandon(cl); ok {
			return r.summaries, r.err
		}
		return nil, ctx.Err()
	}
}

func (c *Channel) submit(ctx context.Context, texts []string, deadline time.Time, expired <-chan time.Time) (*call, error) {
	select {
	case c.writeLock <- struct{}{}:
	case <-expired:
		return nil, ErrSummarizationTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.writeLock }()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: channel closed", ErrWorkerUnavailable)
	}
	p := c.proc
	if p == nil {
		c.mu.Unlock()
		return nil, ErrWorkerUnavailable
	}
	c.nextID++
	cl := &call{id: c.nextID, size: len(texts), result: make(chan result, 1)}
	payload, err := EncodeRequest(c.opts.Protocol, cl.id, texts)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("encode request: %w", err)
	}
	c.pending = append(c.pending, cl)
	c.mu.Unlock()

	if err := p.stdin.SetWriteDeadline(deadline); err != nil {
		c.mu.Lock()
		c.remove(cl)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: set write deadline: %v", ErrWorkerUnavailable, err)
	}
	if _, err := p.stdin.Write(payload); err != nil {
		c.mu.Lock()
		c.remove(cl)
		c.mu.Unlock()
		// 写了一半的帧会导致流错位
		p.cmd.Process.Kill()
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, ErrSummarizationTimeout
		}
		return nil, fmt.Errorf("%w: write request: %v", ErrWorkerUnavailable, err)
	}
	return cl, nil
}

// abandon 摘除超时的请求; 若结果已在此期间送达, 返回该结果且 ok 为 true
func (c *Channel) abandon(cl *call) (result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.contains(cl) {
		return <-cl.result, true
	}
	if c.opts.Protocol == ProtocolLegacy {
		// 保留占位, 迟到的响应被丢弃而不会错投
		cl.abandoned = true
		c.timeouts++
		if c.timeouts >= maxLegacyTimeouts && c.proc != nil {
			log.Printf("[Summarizer] %d consecutive timeouts, killing worker to reset the queue", c.timeouts)
			c.timeouts = 0
			c.proc.cmd.Process.Kill()
		}
		return result{}, false
	}
	c.remove(cl)
	return result{}, false
}

func (c *Channel) contains(cl *call) bool {
	for _, p := range c.pending {
		if p == cl {
			return true
		}
	}
	return false
}

func (c *Channel) remove(cl *call) {
	for i, p := range c.pending {
		if p == cl {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *Channel) popOldest() *call {
	if len(c.pending) == 0 {
		return nil
	}
	cl := c.pending[0]
	c.pending = c.pending[1:]
	return cl
}

func (c *Channel) popByID(id uint64) *call {
	for i, cl := range c.pending {
		if cl.id == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return cl
		}
	}
	return nil
}

func (c *Channel) readLoop(p *process, stdout io.Reader, stderrDone <-chan struct{}) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		c.handleLine(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		log.Printf("[Summarizer] reading worker output: %v", err)
		p.cmd.Process.Kill()
	}

	<-stderrDone
	err := p.cmd.Wait()
	p.stdin.Close()
	c.handleExit(p, err)
	close(p.done)
}

func (c *Channel) handleLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	if line[0] != '[' && line[0] != '{' {
		log.Printf("[Summarizer] worker: %s", line)
		return
	}

	resp, decodeErr := DecodeResponse(line)

	c.mu.Lock()
	defer c.mu.Unlock()

	var cl *call
	if decodeErr == nil && resp.ID != nil {
		cl = c.popByID(*resp.ID)
	} else {
		cl = c.popOldest()
	}
	if cl == nil {
		log.Printf("[Summarizer] dropping response with no pending request")
		return
	}
	if cl.abandoned {
		log.Printf("[Summarizer] dropping late response for request %d", cl.id)
		return
	}
	c.timeouts = 0

	var r result
	switch {
	case decodeErr != nil:
		r.err = fmt.Errorf("%w: %v", ErrParse, decodeErr)
	case resp.Error != "":
		r.err = fmt.Errorf("worker error: %s", resp.Error)
	case len(resp.Summaries) != cl.size:
		r.err = fmt.Errorf("%w: got %d summaries for %d texts", ErrParse, len(resp.Summaries), cl.size)
	default:
		r.summaries = resp.Summaries
		c.failures = 0
	}
	cl.result <- r
}

func (c *Channel) readStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || c.ignored(line) {
			continue
		}
		log.Printf("[Summarizer] worker stderr: %s", line)
	}
}

func (c *Channel) ignored(line string) bool {
	for _, s := range c.opts.IgnoreStderr {
		if s != "" && strings.Contains(line, s) {
			return true
		}
	}
	return false
}

func (c *Channel) handleExit(p *process, waitErr error) {
	c.mu.Lock()
	if c.proc == p {
		c.proc = nil
	}
	pending := c.pending
	c.pending = nil
	c.timeouts = 0
	for _, cl := range pending {
		if !cl.abandoned {
			cl.result <- result{err: fmt.Errorf("%w: worker exited", ErrWorkerUnavailable)}
		}
	}
	closed := c.closed
	c.mu.Unlock()

	if closed {
		log.Printf("[Summarizer] worker stopped")
		return
	}
	log.Printf("[Summarizer] worker exited (%v), failed %d pending request(s)", exitStatus(waitErr), len(pending))
	if c.opts.Restart != RestartNone {
		go c.restart()
	}
}

func exitStatus(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}

func (c *Channel) restart() {
	c.mu.Lock()
	c.failures++
	delay := c.restartDelay(c.failures)
	c.mu.Unlock()

	if delay > 0 {
		log.Printf("[Summarizer] restarting worker in %s", delay)
		select {
		case <-time.After(delay):
		case <-c.stop:
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.proc != nil {
		return
	}
	if err := c.spawn(); err != nil {
		log.Printf("[Summarizer] restart failed: %v", err)
		go c.restart()
		return
	}
	c.restarts++
}

func (c *Channel) restartDelay(failures int) time.Duration {
	switch c.opts.Restart {
	case RestartImmediate:
		if failures <= 1 {
			return 0
		}
		return c.opts.RestartDelay
	case RestartBackoff:
		delay := c.opts.RestartDelay
		for i := 1; i < failures && delay < c.opts.MaxRestartDelay; i++ {
			delay *= 2
		}
		return min(delay, c.opts.MaxRestartDelay)
	}
	return 0
}

type Stats struct {
	Running  bool   `json:"running"`
	Pending  int    `json:"pending"`
	Restarts int    `json:"restarts"`
	Protocol string `json:"protocol"`
}

func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Running:  c.proc != nil,
		Pending:  len(c.pending),
		Restarts: c.restarts,
		Protocol: c.opts.Protocol,
	}
}

// Close 关闭 stdin 等待 worker 退出, 超时则强杀
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.stop)
	p := c.proc
	c.mu.Unlock()

	if p == nil {
		return nil
	}
	p.stdin.Close()
	select {
	case <-p.done:
	case <-time.After(3 * time.Second):
		p.cmd.Process.Kill()
		<-p.done
	}
	return nil
}
