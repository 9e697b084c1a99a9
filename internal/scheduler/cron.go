package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"newshub/config"
	"newshub/internal/fetcher"
	"newshub/internal/service"
)

var (
	// ErrCycleRunning 同一 fetcher 的上一个周期尚未结束
	ErrCycleRunning = errors.New("ingest cycle already running")
	ErrUnknownJob   = errors.New("unknown ingest job")
)

// Runner 执行单次采集周期
type Runner interface {
	RunCycle(ctx context.Context, f fetcher.Fetcher) (service.CycleReport, error)
}

type job struct {
	fetcher fetcher.Fetcher
	spec    string
	entryID cron.EntryID
	running atomic.Bool
}

type Scheduler struct {
	cron   *cron.Cron
	chain  cron.Chain
	runner Runner
	config config.CronConfig
	jobs   map[string]*job
	names  []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(runner Runner, cfg config.CronConfig) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(logger)), cron.WithLogger(logger)),
		chain:  cron.NewChain(cron.Recover(logger)),
		runner: runner,
		config: cfg,
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob 按 cron 表达式定时运行 fetcher 的采集周期, 以 fetcher 名称注册
func (s *Scheduler) AddJob(spec string, f fetcher.Fetcher) error {
	name := f.Name()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{fetcher: f, spec: spec}
	id, err := s.cron.AddFunc(spec, func() { s.tick(j) })
	if err != nil {
		return fmt.Errorf("schedule %s (%s): %w", name, spec, err)
	}
	j.entryID = id
	s.jobs[name] = j
	s.names = append(s.names, name)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, name := range s.names {
		log.Printf("[Cron] %s scheduled (%s)", name, s.jobs[name].spec)
	}
	if s.config.RunOnStart {
		for _, name := range s.names {
			if err := s.Trigger(name); err != nil {
				log.Printf("[Cron] %s: %v", name, err)
			}
		}
	}
	log.Printf("[Cron] Scheduler started (%d jobs)", len(s.names))
}

func (s *Scheduler) tick(j *job) {
	if _, err := s.run(s.ctx, j); errors.Is(err, ErrCycleRunning) {
		log.Printf("[Cron] %s: previous cycle still running, tick dropped", j.fetcher.Name())
	}
}

func (s *Scheduler) run(ctx context.Context, j *job) (service.CycleReport, error) {
	if !j.running.CompareAndSwap(false, true) {
		return service.CycleReport{}, ErrCycleRunning
	}
	defer j.running.Store(false)
	return s.cycle(ctx, j)
}

// cycle 调用方需已持有运行锁
func (s *Scheduler) cycle(ctx context.Context, j *job) (service.CycleReport, error) {
	if s.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CycleTimeout)
		defer cancel()
	}
	log.Printf("[Cron] %s: starting cycle", j.fetcher.Name())
	return s.runner.RunCycle(ctx, j.fetcher)
}

func (s *Scheduler) job(name string) (*job, error) {
	j, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return j, nil
}

// Trigger 在后台立即运行一次, 与定时任务共用运行锁
func (s *Scheduler) Trigger(name string) error {
	j, err := s.job(name)
	if err != nil {
		return err
	}
	if !j.running.CompareAndSwap(false, true) {
		return ErrCycleRunning
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.running.Store(false)
		s.chain.Then(cron.FuncJob(func() { s.cycle(s.ctx, j) })).Run()
	}()
	return nil
}

// RunNow 同步运行一次并返回报告
func (s *Scheduler) RunNow(ctx context.Context, name string) (service.CycleReport, error) {
	j, err := s.job(name)
	if err != nil {
		return service.CycleReport{}, err
	}
	return s.run(ctx, j)
}

// NextRuns 各任务下次运行时间
func (s *Scheduler) NextRuns() map[string]time.Time {
	next := make(map[string]time.Time, len(s.jobs))
	for name, j := range s.jobs {
		next[name] = s.cron.Entry(j.entryID).Next
	}
	return next
}

// Jobs 已注册的任务名, 按注册顺序
func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.names...)
}

// Running 该任务是否有周期正在运行
func (s *Scheduler) Running(name string) bool {
	j, ok := s.jobs[name]
	return ok && j.running.Load()
}

// Stop 停止定时器, 取消进行中的周期并等待其退出
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	s.cancel()
	<-ctx.Done()
	s.wg.Wait()
	log.Println("[Cron] Scheduler stopped")
}
